package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/abhisek/snapask/internal/device"
)

var captureCmd = &cobra.Command{
	Use:   "capture",
	Short: "Ask the camera to take a photo (or start periodic capture)",
	RunE: func(cmd *cobra.Command, args []string) error {
		bridge, _ := cmd.Flags().GetString("bridge")
		interval, _ := cmd.Flags().GetBool("interval")
		timeout, _ := cmd.Flags().GetDuration("timeout")

		e, err := setup(cmd, setupOptions{})
		if err != nil {
			return err
		}
		defer e.Close()

		link, err := e.newLink(bridge)
		if err != nil {
			return err
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
		defer cancel()

		done := make(chan error, 1)
		go func() { done <- link.Run(ctx, func([]byte) {}) }()

		if err := link.WaitConnected(ctx); err != nil {
			cancel()
			if runErr := <-done; runErr != nil {
				return runErr
			}
			return fmt.Errorf("camera bridge not reachable: %w", err)
		}
		if err := sendCapture(ctx, link, interval); err != nil {
			return err
		}
		cancel()
		<-done

		if interval {
			fmt.Println("Periodic capture started.")
		} else {
			fmt.Println("Photo requested.")
		}
		return nil
	},
}

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Serve a fake camera bridge that streams the given images",
	RunE: func(cmd *cobra.Command, args []string) error {
		addr, _ := cmd.Flags().GetString("addr")
		paths, _ := cmd.Flags().GetStringSlice("image")
		chunkSize, _ := cmd.Flags().GetInt("chunk-size")
		interval, _ := cmd.Flags().GetDuration("interval")

		images, err := readImages(paths)
		if err != nil {
			return err
		}

		e, err := setup(cmd, setupOptions{})
		if err != nil {
			return err
		}
		defer e.Close()

		mux := http.NewServeMux()
		mux.Handle("/notify", &device.Simulator{
			Images:    images,
			ChunkSize: chunkSize,
			Interval:  interval,
			Logger:    e.logger,
		})

		srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}
		fmt.Printf("Simulated camera on ws://%s/notify (%d images)\n", addr, len(images))
		return serveUntilDone(cmd.Context(), srv, e.logger)
	},
}

func init() {
	captureCmd.Flags().String("bridge", "", "Camera bridge websocket URL")
	captureCmd.Flags().Bool("interval", false, "Start periodic capture instead of a single photo")
	captureCmd.Flags().Duration("timeout", 15*time.Second, "Give up if the bridge does not answer in time")

	simulateCmd.Flags().String("addr", "127.0.0.1:9000", "Listen address")
	simulateCmd.Flags().StringSlice("image", nil, "JPEG files to stream (repeatable)")
	simulateCmd.Flags().Int("chunk-size", 180, "Payload bytes per notification")
	simulateCmd.Flags().Duration("interval", 5*time.Second, "Delay between photos in periodic mode")
	simulateCmd.MarkFlagRequired("image")
}

// runLink keeps the device link up until ctx ends. When device.capture is
// configured the matching command is sent once the first connection opens.
func runLink(ctx context.Context, e *env, link *device.Link, handle device.Handler) error {
	if mode := e.cfg.Device.Capture; mode != "" {
		go func() {
			if err := link.WaitConnected(ctx); err != nil {
				return
			}
			if err := sendCapture(ctx, link, mode == "interval"); err != nil {
				e.logger.Warn("initial capture command failed", zap.Error(err))
			}
		}()
	}

	err := link.Run(ctx, handle)
	if err != nil {
		e.logger.Error("device link stopped", zap.Error(err))
	}
	return err
}

func sendCapture(ctx context.Context, link *device.Link, interval bool) error {
	var err error
	if interval {
		err = link.CaptureInterval(ctx)
	} else {
		err = link.CaptureOnce(ctx)
	}
	if err != nil {
		return fmt.Errorf("send capture command: %w", err)
	}
	return nil
}

// serveUntilDone runs srv until ctx is cancelled, then shuts it down.
func serveUntilDone(ctx context.Context, srv *http.Server, logger *zap.Logger) error {
	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("listen on %s: %w", srv.Addr, err)
	case <-ctx.Done():
	}

	logger.Info("shutting down", zap.String("addr", srv.Addr))
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func readImages(paths []string) ([][]byte, error) {
	images := make([][]byte, 0, len(paths))
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("read image: %w", err)
		}
		images = append(images, data)
	}
	return images, nil
}
