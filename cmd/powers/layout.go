package main

import (
	"encoding/json"
	"fmt"

	"github.com/powers-protocol/powers/internal/application/graph"
	"github.com/spf13/cobra"
)

var layoutCmd = &cobra.Command{
	Use:   "layout FILE",
	Short: "Lay out the mandate graph of a Powers contract",
	Long: `Reads mandates from a YAML or JSON file ("-" for stdin) and prints the
computed graph: node positions and edges as JSON, or a Mermaid flowchart.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		selected, _ := cmd.Flags().GetString("selected")
		format, _ := cmd.Flags().GetString("format")

		file, err := readMandates(args[0], cmd.InOrStdin())
		if err != nil {
			return err
		}

		view := graph.NewView(file.Mandates, graph.ViewOptions{Selected: selected})
		for _, w := range view.Warnings {
			fmt.Fprintf(cmd.ErrOrStderr(), "warning: %s\n", w)
		}

		out := cmd.OutOrStdout()
		switch format {
		case "mermaid":
			fmt.Fprint(out, graph.GenerateMermaid(view))
			return nil
		case "json":
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(view)
		default:
			return fmt.Errorf("unknown format %q (must be json or mermaid)", format)
		}
	},
}

func init() {
	layoutCmd.Flags().String("selected", "", "mandate id to highlight with its connected mandates")
	layoutCmd.Flags().String("format", "json", "output format: json or mermaid")
	rootCmd.AddCommand(layoutCmd)
}
