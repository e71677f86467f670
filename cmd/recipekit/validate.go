package main

import (
	"fmt"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newValidateCmd(g *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Load catalog and models and run startup validation",
		Long: `Load the catalog and the model artifacts, project the whole catalog,
assign clusters and check model dimensions and the cluster label policy.
Exits non-zero on any contract violation.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, closeFn, err := openEngine(cmd.Context(), g.settings)
			if err != nil {
				return err
			}
			defer closeFn()
			if err := e.Validate(cmd.Context()); err != nil {
				return err
			}

			st := e.Stats()
			out := cmd.OutOrStdout()
			if g.format == "json" {
				return writeJSON(out, st)
			}
			tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintf(tw, "recipes\t%d\n", st.Recipes)
			fmt.Fprintf(tw, "clusters\t%d\n", st.Clusters)
			fmt.Fprintf(tw, "dim\t%d\n", st.Dim)
			fmt.Fprintf(tw, "model\t%s\n", st.Model)
			if st.ManifestVersion != "" {
				fmt.Fprintf(tw, "manifest\t%s\n", st.ManifestVersion)
			}
			fmt.Fprintf(tw, "policy\t%s\n", st.Policy)
			ids := make([]int, 0, len(st.ClusterSizes))
			for id := range st.ClusterSizes {
				ids = append(ids, id)
			}
			sort.Ints(ids)
			for _, id := range ids {
				fmt.Fprintf(tw, "cluster %d\t%d\n", id, st.ClusterSizes[id])
			}
			if err := tw.Flush(); err != nil {
				return err
			}
			fmt.Fprintln(out, "ok")
			return nil
		},
	}
}
