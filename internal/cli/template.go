package cli

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/personalia-io/personalia-sdk-go/personalia/schema"
	"github.com/personalia-io/personalia-sdk-go/personalia/types"
)

func newTemplateCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "template",
		Short: "Inspect templates",
	}
	cmd.AddCommand(newTemplateFieldsCmd(a))
	return cmd
}

func newTemplateFieldsCmd(a *app) *cobra.Command {
	var example, jsonSchema bool

	cmd := &cobra.Command{
		Use:   "fields <template-id>",
		Short: "List the input fields of a template",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := a.client(cmd.Context())
			if err != nil {
				return err
			}
			defer client.Close()

			info, err := client.Templates().Info(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if jsonSchema {
				return writeJSON(out, schema.Build(info))
			}

			w := tabwriter.NewWriter(out, 0, 0, 3, ' ', 0)
			_, _ = fmt.Fprintln(w, "FIELD\tTYPE\tDESCRIPTION")
			for _, f := range info.Fields {
				_, _ = fmt.Fprintf(w, "%s\t%s\t%s\n", f.Name, f.Type, f.Description)
			}
			if err := w.Flush(); err != nil {
				return err
			}

			if example {
				fmt.Fprintln(out, "\nExample request:")
				return writeJSON(out, types.CreateContentRequest{
					TemplateID: info.TemplateID,
					Fields:     schema.ExampleFields(info, time.Now()),
				})
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&example, "example", false, "print an example content request")
	cmd.Flags().BoolVar(&jsonSchema, "schema", false, "print the JSON Schema of the template fields")
	return cmd
}
