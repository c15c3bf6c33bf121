package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/abhisek/snapask/internal/store"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recent questions and answers",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		session, _ := cmd.Flags().GetString("session")
		prune, _ := cmd.Flags().GetDuration("prune")

		e, err := setup(cmd, setupOptions{})
		if err != nil {
			return err
		}
		defer e.Close()

		if prune > 0 {
			n, err := e.store.Prune(cmd.Context(), time.Now().Add(-prune))
			if err != nil {
				return err
			}
			fmt.Printf("Removed %d events older than %s.\n", n, prune)
			return nil
		}

		events, err := e.store.EventRepo().QueryQueryEvents(cmd.Context(), store.QueryOpts{Limit: limit, Session: session})
		if err != nil {
			return fmt.Errorf("query history: %w", err)
		}
		if len(events) == 0 {
			fmt.Println("No questions recorded yet.")
			return nil
		}

		for _, ev := range events {
			ok := "✓"
			body := ev.Answer
			if ev.ErrorMessage != "" {
				ok = "✗"
				body = ev.ErrorMessage
			}
			fmt.Printf("%s %s  %-6s  %2d photos  %6dms  %s\n",
				ok,
				ev.Timestamp.Local().Format("2006-01-02 15:04:05"),
				ev.Variant,
				ev.PhotoCount,
				ev.LatencyMs,
				ev.Question,
			)
			fmt.Printf("    %s\n", strings.ReplaceAll(body, "\n", "\n    "))
		}
		return nil
	},
}

func init() {
	historyCmd.Flags().IntP("limit", "n", 20, "Number of questions to show")
	historyCmd.Flags().String("session", "", "Only show one session")
	historyCmd.Flags().Duration("prune", 0, "Delete events older than this (e.g. 720h) instead of listing")
}
