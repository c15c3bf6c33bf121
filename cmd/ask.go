package cmd

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/abhisek/snapask/internal/agent"
	"github.com/abhisek/snapask/internal/photo"
)

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Answer one question about image files",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		paths, _ := cmd.Flags().GetStringSlice("image")
		model, _ := cmd.Flags().GetString("model")

		e, a, err := sessionWithImages(cmd, paths, model)
		if err != nil {
			return err
		}
		defer e.Close()

		start := time.Now()
		snap := a.Answer(cmd.Context(), strings.Join(args, " "))
		if err := printAnswer(snap); err != nil {
			return err
		}
		fmt.Printf("\n(%s, %d photos, %s)\n", snap.Variant.Label(), snap.PhotoCount, sinceStart(start))
		return nil
	},
}

var describeCmd = &cobra.Command{
	Use:   "describe",
	Short: "Describe the last given image as structured fields",
	RunE: func(cmd *cobra.Command, args []string) error {
		paths, _ := cmd.Flags().GetStringSlice("image")
		model, _ := cmd.Flags().GetString("model")

		e, a, err := sessionWithImages(cmd, paths, model)
		if err != nil {
			return err
		}
		defer e.Close()

		d, err := a.Describe(cmd.Context())
		if errors.Is(err, agent.ErrDescribeUnsupported) {
			return fmt.Errorf("%s cannot describe photos; pick remote or local with --model", a.Snapshot().Variant.Label())
		}
		if err != nil {
			return fmt.Errorf("describe: %w", err)
		}

		fmt.Printf("Summary:  %s\n", d.Summary)
		if len(d.Objects) > 0 {
			fmt.Printf("Objects:  %s\n", strings.Join(d.Objects, ", "))
		}
		if d.Text != "" {
			fmt.Printf("Text:     %s\n", d.Text)
		}
		return nil
	},
}

func init() {
	for _, c := range []*cobra.Command{askCmd, describeCmd} {
		c.Flags().StringSliceP("image", "i", nil, "JPEG file (repeatable, oldest first)")
		c.Flags().String("model", "", "Vision model: remote, local or text")
	}
	describeCmd.MarkFlagRequired("image")
}

// sessionWithImages builds a session holding the given files as photos.
func sessionWithImages(cmd *cobra.Command, paths []string, model string) (*env, *agent.Agent, error) {
	images, err := readImages(paths)
	if err != nil {
		return nil, nil, err
	}

	e, err := setup(cmd, setupOptions{})
	if err != nil {
		return nil, nil, err
	}
	a, err := e.newAgent(e.registry(), model)
	if err != nil {
		e.Close()
		return nil, nil, err
	}

	now := time.Now()
	batch := make([]photo.Photo, len(images))
	for i, data := range images {
		batch[i] = photo.Photo{Index: uint64(i + 1), Data: data, ReceivedAt: now}
	}
	if err := a.AddPhotos(cmd.Context(), batch); err != nil {
		e.Close()
		return nil, nil, err
	}
	return e, a, nil
}

// printAnswer writes the answer, or returns the session error.
func printAnswer(snap agent.Snapshot) error {
	if snap.Error != "" {
		return errors.New(snap.Error)
	}
	fmt.Println(snap.Answer)
	return nil
}
