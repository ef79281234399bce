package main

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"

	"github.com/rendis/flowlint/internal/uicode"
	"github.com/rendis/flowlint/pkg/schema"
)

func newEndpointCommand(a *app) *cobra.Command {
	var hint string
	var list bool

	cmd := &cobra.Command{
		Use:   "endpoint <name | connector-file>",
		Short: "Resolve a connector endpoint",
		Long:  "Print the connector entry of an endpoint. When a name is defined by several connector files, pass --connector to pick one. With --list, print the endpoint names of a connector file.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			reg := a.registry()
			if list {
				names, err := reg.Endpoints(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return writeJSON(cmd, names)
			}
			ep, err := reg.Lookup(cmd.Context(), args[0], hint)
			if err != nil {
				return err
			}
			return writeJSON(cmd, ep)
		},
	}

	cmd.Flags().StringVarP(&hint, "connector", "c", "", "connector file to search")
	cmd.Flags().BoolVar(&list, "list", false, "list the endpoints of a connector file")
	return cmd
}

func newUICodeCommand(a *app) *cobra.Command {
	var hint, schemaFile string

	cmd := &cobra.Command{
		Use:   "uicode [endpoint]",
		Short: "Generate the map-action form of an endpoint request",
		Long:  "Generate the uiCode map-action tree from the request schema of an endpoint, or from a JSON Schema file with --schema.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var schemaJSON []byte
			switch {
			case schemaFile != "":
				data, err := os.ReadFile(schemaFile)
				if err != nil {
					return schema.NewErrorf(schema.ErrCodeNotFound, "read %s", schemaFile).WithCause(err)
				}
				schemaJSON = data
			case len(args) == 1:
				ep, err := a.registry().Lookup(cmd.Context(), args[0], hint)
				if err != nil {
					return err
				}
				if schemaJSON, err = ep.RequestSchema(cmd.Context()); err != nil {
					return err
				}
			default:
				return schema.NewError(schema.ErrCodeValidation, "pass an endpoint name or --schema")
			}

			form, err := uicode.NewGenerator().Generate(schemaJSON)
			if err != nil {
				return err
			}
			return writeJSON(cmd, form)
		},
	}

	cmd.Flags().StringVarP(&hint, "connector", "c", "", "connector file to search")
	cmd.Flags().StringVar(&schemaFile, "schema", "", "JSON Schema file to use instead of an endpoint")
	return cmd
}

func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
