package cmd

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/abhisek/snapask/internal/device"
	"github.com/abhisek/snapask/internal/feed"
	"github.com/abhisek/snapask/internal/ingest"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the photo pipeline headless and publish session state over HTTP",
	RunE: func(cmd *cobra.Command, args []string) error {
		addr, _ := cmd.Flags().GetString("addr")
		bridge, _ := cmd.Flags().GetString("bridge")
		replay, _ := cmd.Flags().GetString("replay")
		model, _ := cmd.Flags().GetString("model")

		e, err := setup(cmd, setupOptions{})
		if err != nil {
			return err
		}
		defer e.Close()
		if addr == "" {
			addr = e.cfg.Server.Addr
		}

		a, err := e.newAgent(e.registry(), model)
		if err != nil {
			return err
		}
		pipeline := e.newPipeline(a)
		defer pipeline.Close()

		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()

		var link *device.Link
		opts := []feed.Option{feed.WithLogger(e.logger)}

		switch {
		case replay != "":
			go func() {
				n, err := replayFile(ctx, replay, true, pipeline.HandleNotification)
				if err != nil {
					e.logger.Error("replay failed", zap.Error(err))
					return
				}
				e.logger.Info("replay finished", zap.Int("notifications", n))
			}()
		default:
			link, err = e.newLink(bridge)
			if err != nil {
				return err
			}
			go runLink(ctx, e, link, pipeline.HandleNotification)
			opts = append(opts, feed.WithCamera(link))
		}

		opts = append(opts, feed.WithStats(func() any {
			st := serveStats{Session: a.SessionID(), Pipeline: pipeline.Stats()}
			if link != nil {
				ls := link.Stats()
				st.Link = &ls
				st.Connected = link.Connected()
			}
			return st
		}))

		server := feed.NewServer(a, opts...)
		defer server.Close()

		srv := &http.Server{Addr: addr, Handler: server, ReadHeaderTimeout: 10 * time.Second}
		e.logger.Info("serving session state", zap.String("addr", addr), zap.String("session", a.SessionID()))
		fmt.Printf("Session state on http://%s/snapshot (websocket: /state)\n", addr)
		return serveUntilDone(ctx, srv, e.logger)
	},
}

// serveStats is the GET /stats payload.
type serveStats struct {
	Session   string        `json:"session"`
	Connected bool          `json:"connected"`
	Link      *device.Stats `json:"link,omitempty"`
	Pipeline  ingest.Stats  `json:"pipeline"`
}

func init() {
	serveCmd.Flags().String("addr", "", "Listen address (default server.addr, 127.0.0.1:8080)")
	serveCmd.Flags().String("bridge", "", "Camera bridge websocket URL")
	serveCmd.Flags().String("replay", "", "Feed notifications from a capture file instead of a camera")
	serveCmd.Flags().String("model", "", "Vision model: remote, local or text")
}
