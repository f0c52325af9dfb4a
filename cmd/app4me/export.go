package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

func newExportCmd() *cobra.Command {
	opts := &requestOptions{}
	var output string

	cmd := &cobra.Command{
		Use:   "export <query>",
		Short: "Export every app matching the filter as CSV, marking the search results",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			prof, err := loadProfile(cmd)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			st, pipeline, err := openPipeline(ctx, prof)
			if err != nil {
				return err
			}
			defer st.Close()

			var w io.Writer = cmd.OutOrStdout()
			if output != "" && output != "-" {
				f, err := os.Create(output)
				if err != nil {
					return fmt.Errorf("failed to create %s: %w", output, err)
				}
				defer f.Close()
				w = f
			}

			resp, err := pipeline.Export(ctx, w, opts.request(strings.Join(args, " ")))
			if err != nil {
				return err
			}
			slog.Info("export written",
				slog.String("output", output),
				slog.Int("results", len(resp.Results)),
				slog.String("request_id", resp.RequestID),
			)
			return nil
		},
	}
	opts.register(cmd)
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file, stdout when empty")
	return cmd
}
