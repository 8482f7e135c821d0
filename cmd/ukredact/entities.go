package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/straja-ai/ukredact/internal/entities"
	"github.com/straja-ai/ukredact/internal/pipeline"
)

func newEntitiesCmd(a *app) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "entities",
		Short: "List entity classes and which are active",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			analyzer, closeModel, err := pipeline.Build(a.cfg, nil, nil)
			if err != nil {
				return err
			}
			defer closeModel()

			info := analyzer.Info()
			if asJSON {
				return printJSON(cmd.OutOrStdout(), info)
			}

			active := entities.NewSet(append(append([]string(nil), info.NEREntities...), info.PatternEntities...)...)
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "ner backend: %s\nstrategy: %s\nformat: %s\nmax text length: %d\n\n",
				info.NERBackend, info.Strategy, info.Format, info.MaxTextLength)

			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ENTITY\tDETECTOR\tACTIVE\tDESCRIPTION")
			for _, c := range append(entities.NERClasses(), entities.PatternClasses()...) {
				fmt.Fprintf(tw, "%s\t%s\t%t\t%s\n", c.Name, c.Detector, active.Has(c.Name), c.Description)
			}
			for _, name := range info.PatternEntities {
				if _, known := entities.Lookup(name); !known {
					fmt.Fprintf(tw, "%s\t%s\t%t\t%s\n", name, entities.DetectorPattern, true, "custom rule")
				}
			}
			return tw.Flush()
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print as JSON")
	return cmd
}
