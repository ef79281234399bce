package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rendis/flowlint/internal/diagram"
	"github.com/rendis/flowlint/pkg/schema"
)

func newGraphCommand(a *app) *cobra.Command {
	var format, output string

	cmd := &cobra.Command{
		Use:   "graph <file>",
		Short: "Render the step graph of a flow",
		Long:  "Render the resolver step graph as ASCII, Mermaid or PNG. Unreachable steps and steps with findings are highlighted.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return schema.NewErrorf(schema.ErrCodeNotFound, "read %s", args[0]).WithCause(err)
			}

			model, err := diagram.BuildDocument(data, a.validator(false).Validate(data))
			if err != nil {
				return err
			}

			switch strings.ToLower(format) {
			case "ascii":
				_, err = fmt.Fprint(cmd.OutOrStdout(), diagram.RenderASCII(model))
			case "mermaid":
				_, err = fmt.Fprint(cmd.OutOrStdout(), diagram.RenderMermaid(model))
			case "image", "png":
				if output == "" {
					return fmt.Errorf("--output is required for image format")
				}
				png, renderErr := diagram.RenderImage(cmd.Context(), model)
				if renderErr != nil {
					return renderErr
				}
				if err = os.WriteFile(output, png, 0o644); err == nil {
					a.logger.Info("diagram written", slog.String("path", output), slog.Int("bytes", len(png)))
				}
			default:
				return fmt.Errorf("unknown graph format %q: use ascii, mermaid or image", format)
			}
			return err
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "ascii", "output format: ascii, mermaid, image")
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file for image format")
	return cmd
}
