package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/sakif/coderunner/internal/language"
)

var outputFlag string

var languagesCmd = &cobra.Command{
	Use:     "languages",
	Aliases: []string{"langs"},
	Short:   "List supported languages and their toolchains",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return printLanguages(cmd.OutOrStdout(), language.Default(), outputFlag)
	},
}

func init() {
	languagesCmd.Flags().StringVarP(&outputFlag, "output", "o", "table", "Output format: table or yaml")
	rootCmd.AddCommand(languagesCmd)
}

func printLanguages(w io.Writer, registry *language.Registry, format string) error {
	profiles := registry.Profiles()

	switch format {
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(profiles); err != nil {
			return fmt.Errorf("encoding yaml: %w", err)
		}
		return enc.Close()

	case "table", "":
		tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tNAME\tEXT\tCOMPILE\tRUN")
		for _, p := range profiles {
			compile := "-"
			if p.Compiled() {
				compile = strings.Join(p.Compile, " ")
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", p.ID, p.Name, p.Extension, compile, strings.Join(p.Run, " "))
		}
		return tw.Flush()

	default:
		return fmt.Errorf("unknown output format %q (want table or yaml)", format)
	}
}
