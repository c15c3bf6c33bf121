package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/abhisek/snapask/internal/capture"
)

var replayCmd = &cobra.Command{
	Use:   "replay <file>",
	Short: "Feed a recorded notification stream through the pipeline",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		question, _ := cmd.Flags().GetString("question")
		realtime, _ := cmd.Flags().GetBool("realtime")
		model, _ := cmd.Flags().GetString("model")

		e, err := setup(cmd, setupOptions{})
		if err != nil {
			return err
		}
		defer e.Close()

		a, err := e.newAgent(e.registry(), model)
		if err != nil {
			return err
		}
		pipeline := e.newPipeline(a)
		defer pipeline.Close()

		ctx := cmd.Context()
		n, err := replayFile(ctx, args[0], realtime, pipeline.HandleNotification)
		if err != nil {
			return err
		}
		if err := pipeline.Flush(ctx); err != nil {
			return fmt.Errorf("flush pipeline: %w", err)
		}

		st := pipeline.Stats()
		fmt.Printf("Notifications:  %d\n", n)
		fmt.Printf("Photos:         %d completed, %d discarded, %d noise\n",
			st.Chunks.Completed, st.Chunks.Discarded, st.Chunks.Noise)
		fmt.Printf("Window:         %d held, %d evicted\n", st.Window, st.Evicted)
		fmt.Printf("Session:        %d photos\n", a.Snapshot().PhotoCount)

		if question == "" {
			return nil
		}
		fmt.Println()
		return printAnswer(a.Answer(ctx, question))
	},
}

var recordCmd = &cobra.Command{
	Use:   "record <file>",
	Short: "Record raw camera notifications to a file for later replay",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		bridge, _ := cmd.Flags().GetString("bridge")
		duration, _ := cmd.Flags().GetDuration("duration")

		e, err := setup(cmd, setupOptions{})
		if err != nil {
			return err
		}
		defer e.Close()

		link, err := e.newLink(bridge)
		if err != nil {
			return err
		}

		f, err := os.Create(args[0])
		if err != nil {
			return fmt.Errorf("create capture file: %w", err)
		}
		defer f.Close()
		w := capture.NewWriter(f)

		ctx := cmd.Context()
		if duration > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, duration)
			defer cancel()
		}

		fmt.Fprintln(os.Stderr, "Recording, press Ctrl+C to stop.")
		runErr := runLink(ctx, e, link, func(data []byte) {
			if err := w.Record(data); err != nil {
				e.logger.Warn("failed to record notification", zap.Error(err))
			}
		})

		if err := w.Flush(); err != nil {
			return fmt.Errorf("flush capture file: %w", err)
		}
		fmt.Printf("Recorded %d notifications to %s\n", w.Count(), args[0])
		return runErr
	},
}

func init() {
	replayCmd.Flags().StringP("question", "q", "", "Ask this question once the photos are in")
	replayCmd.Flags().Bool("realtime", false, "Reproduce the recorded timing")
	replayCmd.Flags().String("model", "", "Vision model: remote, local or text")

	recordCmd.Flags().String("bridge", "", "Camera bridge websocket URL")
	recordCmd.Flags().Duration("duration", 0, "Stop after this long (default: until interrupted)")
}

// replayFile streams the notifications in path to handle.
func replayFile(ctx context.Context, path string, realtime bool, handle func([]byte)) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("open capture file: %w", err)
	}
	defer f.Close()

	n, err := capture.Replay(ctx, f, capture.ReplayOptions{Realtime: realtime}, handle)
	if err != nil && ctx.Err() == nil {
		return n, fmt.Errorf("replay %s: %w", path, err)
	}
	return n, nil
}

// sinceStart formats elapsed time for CLI output.
func sinceStart(start time.Time) string {
	return time.Since(start).Round(time.Millisecond).String()
}
