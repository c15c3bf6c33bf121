package store

import (
	"context"
	"fmt"
)

func (r *eventRepo) AppendPhotoEvent(ctx context.Context, data PhotoEventData) error {
	seqNum, err := r.seq.Next(ctx)
	if err != nil {
		return fmt.Errorf("next sequence: %w", err)
	}

	received := data.ReceivedAt
	if received.IsZero() {
		received = r.now()
	}
	_, err = r.db.ExecContext(ctx, `INSERT INTO photo_events
		(sequence, timestamp, session_id, photo_index, size_bytes, received_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		seqNum, formatTime(r.now()), data.SessionID, int64(data.Index), data.SizeBytes, formatTime(received),
	)
	if err != nil {
		return fmt.Errorf("save photo event: %w", err)
	}
	return nil
}

func (r *eventRepo) AppendQueryEvent(ctx context.Context, data QueryEventData) error {
	seqNum, err := r.seq.Next(ctx)
	if err != nil {
		return fmt.Errorf("next sequence: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `INSERT INTO query_events
		(sequence, timestamp, session_id, variant, question, photo_count, answer, error_message, latency_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		seqNum, formatTime(r.now()), data.SessionID, data.Variant, data.Question,
		data.PhotoCount, data.Answer, data.ErrorMessage, data.LatencyMs,
	)
	if err != nil {
		return fmt.Errorf("save query event: %w", err)
	}
	return nil
}

func (r *eventRepo) QueryQueryEvents(ctx context.Context, opts QueryOpts) ([]QueryEventRecord, error) {
	where, args := opts.where()
	if opts.Session != "" {
		where = append(where, "session_id = ?")
		args = append(args, opts.Session)
	}

	rows, err := r.db.QueryContext(ctx, `SELECT id, sequence, timestamp, session_id, variant, question,
		photo_count, answer, error_message, latency_ms FROM query_events`+
		joinWhere(where)+" ORDER BY sequence DESC"+opts.limit(), args...)
	if err != nil {
		return nil, fmt.Errorf("query query events: %w", err)
	}
	defer rows.Close()

	var out []QueryEventRecord
	for rows.Next() {
		var (
			rec QueryEventRecord
			ts  string
		)
		if err := rows.Scan(&rec.ID, &rec.Sequence, &ts, &rec.SessionID, &rec.Variant, &rec.Question,
			&rec.PhotoCount, &rec.Answer, &rec.ErrorMessage, &rec.LatencyMs); err != nil {
			return nil, fmt.Errorf("scan query event: %w", err)
		}
		if rec.Timestamp, err = parseTime(ts); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (r *eventRepo) PhotoCount(ctx context.Context, sessionID string) (int, error) {
	query := `SELECT COUNT(*) FROM photo_events`
	var args []any
	if sessionID != "" {
		query += ` WHERE session_id = ?`
		args = append(args, sessionID)
	}

	var n int
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count photo events: %w", err)
	}
	return n, nil
}
