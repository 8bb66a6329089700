package main

import (
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"spoilerBot/internal/infrastructure/config"
	"spoilerBot/internal/infrastructure/render"
)

func renderCmd() *cobra.Command {
	var (
		text     string
		out      string
		maxLines int
	)

	cmd := &cobra.Command{
		Use:   "render",
		Short: "Render a placeholder GIF locally",
		Long: `Render the placeholder for --text into --out without connecting to any
chat backend. The gif section of --config is applied when given.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if maxLines < 1 {
				return &config.Error{Field: "max_lines", Msg: fmt.Sprintf("must be at least 1, got %d", maxLines)}
			}

			gifCfg := render.Config{}
			if configPath != "" {
				cfg, err := config.Load(configPath)
				if err != nil {
					return err
				}
				gifCfg = cfg.GIF
			}

			r, err := render.New(gifCfg, zerolog.Nop())
			if err != nil {
				return &config.Error{Field: "gif", Err: err}
			}
			tmp, err := r.Render(cmd.Context(), "preview", text, maxLines)
			if err != nil {
				return err
			}
			defer os.Remove(tmp)

			if err := copyFile(tmp, out); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s (%d lines)\n", out, len(r.Layout(text, maxLines)))
			return nil
		},
	}

	cmd.Flags().StringVarP(&text, "text", "t", "", "Spoiler text to render")
	cmd.Flags().StringVarP(&out, "out", "o", "spoiler.gif", "Output file")
	cmd.Flags().IntVar(&maxLines, "max-lines", config.DefaultMaxLines, "Maximum number of wrapped lines")
	_ = cmd.MarkFlagRequired("text")
	return cmd
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	f, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, in); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
