package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/abhisek/snapask/internal/app"
)

var uiCmd = &cobra.Command{
	Use:   "ui",
	Short: "Open the terminal UI (default)",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runApp(cmd)
	},
}

func init() {
	addSessionFlags(uiCmd)
}

// addSessionFlags registers the flags shared by commands that run a live
// session.
func addSessionFlags(c *cobra.Command) {
	c.Flags().String("bridge", "", "Camera bridge websocket URL (overrides device.bridge)")
	c.Flags().String("replay", "", "Feed notifications from a capture file instead of a camera")
	c.Flags().String("model", "", "Vision model: remote, local or text")
}

// runApp opens the store, builds the session and pipeline, connects the
// photo source and launches the TUI.
func runApp(cmd *cobra.Command) error {
	e, err := setup(cmd, setupOptions{quietStderr: true})
	if err != nil {
		return err
	}
	defer e.Close()

	model, _ := cmd.Flags().GetString("model")
	bridge, _ := cmd.Flags().GetString("bridge")
	replay, _ := cmd.Flags().GetString("replay")

	reg := e.registry()
	a, err := e.newAgent(reg, model)
	if err != nil {
		return err
	}
	pipeline := e.newPipeline(a)
	defer pipeline.Close()

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	opts := app.Options{
		Agent:      a,
		Configured: reg.IsConfigured,
		History:    e.store.EventRepo(),
		MaxPhotos:  e.cfg.Agent.MaxPhotos,
		Logger:     e.logger,
	}

	switch {
	case replay != "":
		go func() {
			n, err := replayFile(ctx, replay, true, pipeline.HandleNotification)
			if err != nil {
				e.logger.Error("replay failed", zap.String("file", replay), zap.Error(err))
				return
			}
			e.logger.Info("replay finished", zap.Int("notifications", n))
		}()
	case bridge != "" || e.cfg.Device.Bridge != "":
		link, err := e.newLink(bridge)
		if err != nil {
			return err
		}
		go runLink(ctx, e, link, pipeline.HandleNotification)
		opts.Camera = link
	default:
		e.logger.Info("no photo source configured")
	}

	if err := app.Run(opts); err != nil {
		return fmt.Errorf("run ui: %w", err)
	}
	return nil
}
