package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/rushteam/recipekit/core"
	"github.com/rushteam/recipekit/search"
)

func newRecommendCmd(g *globalOptions) *cobra.Command {
	var (
		topN      int
		diversify bool
		factor    float64
		exclude   bool
	)
	cmd := &cobra.Command{
		Use:   "recommend <recipe name>",
		Short: "Recommend recipes similar to a target recipe",
		Example: `  recipekit recommend "Garlic Chicken"
  recipekit recommend --top-n 5 --diversify --factor 0.2 "Garlic Chicken"`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, closeFn, err := openEngine(cmd.Context(), g.settings)
			if err != nil {
				return err
			}
			defer closeFn()

			req := e.DefaultRequest(args[0])
			if cmd.Flags().Changed("top-n") {
				req.TopN = topN
			}
			if cmd.Flags().Changed("diversify") {
				req.Diversify = diversify
			}
			if cmd.Flags().Changed("factor") {
				req.DiversityFactor = factor
			}
			if cmd.Flags().Changed("exclude-target") {
				req.ExcludeTarget = exclude
			}
			views, err := e.Recommend(cmd.Context(), req)
			if err != nil {
				return err
			}
			return printViews(cmd.OutOrStdout(), g.format, views)
		},
	}
	cmd.Flags().IntVarP(&topN, "top-n", "n", 10, "number of recommendations")
	cmd.Flags().BoolVar(&diversify, "diversify", false, "decay scores by position in the cluster")
	cmd.Flags().Float64Var(&factor, "factor", 0.1, "diversity factor")
	cmd.Flags().BoolVar(&exclude, "exclude-target", false, "drop the target recipe from the results")
	return cmd
}

func newSuggestCmd(g *globalOptions) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "suggest <text>",
		Short: "Autocomplete recipe names",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			q := strings.TrimSpace(args[0])
			if q == "" {
				return fmt.Errorf("suggest: empty query")
			}
			e, closeFn, err := openEngine(cmd.Context(), g.settings)
			if err != nil {
				return err
			}
			defer closeFn()

			names := e.Suggest(q, limit)
			out := cmd.OutOrStdout()
			if g.format == "json" {
				return writeJSON(out, names)
			}
			for _, n := range names {
				fmt.Fprintln(out, n)
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 5, "maximum suggestions")
	return cmd
}

func newSearchCmd(g *globalOptions) *cobra.Command {
	var (
		q        search.Query
		servings []string
	)
	cmd := &cobra.Command{
		Use:   "search",
		Short: "Faceted search over the catalog",
		Example: `  recipekit search --category Main --ingredients "garlic, rice"
  recipekit search --diet-type Vegetarian --servings crowd --quick`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			for _, s := range servings {
				switch strings.ToLower(s) {
				case "one":
					q.ServingsOne = true
				case "two":
					q.ServingsTwo = true
				case "crowd":
					q.ServingsCrowd = true
				default:
					return fmt.Errorf("--servings: unknown value %q", s)
				}
			}
			e, closeFn, err := openEngine(cmd.Context(), g.settings)
			if err != nil {
				return err
			}
			defer closeFn()
			return printViews(cmd.OutOrStdout(), g.format, e.Search(q))
		},
	}
	cmd.Flags().StringVar(&q.Name, "name", "", "name substring")
	cmd.Flags().StringVar(&q.Category, "category", "", "category")
	cmd.Flags().StringVar(&q.DietType, "diet-type", "", `diet type ("General" means any)`)
	cmd.Flags().StringVar(&q.Ingredients, "ingredients", "", "comma separated ingredients, all must match")
	cmd.Flags().StringSliceVar(&servings, "servings", nil, "one, two, crowd (combined with AND)")
	cmd.Flags().BoolVar(&q.Quick, "quick", false, "cook time <= 15 minutes")
	cmd.Flags().IntVarP(&q.Limit, "limit", "n", 20, "maximum results, 0 for all")
	return cmd
}

func printViews(w io.Writer, format string, views []core.RecipeView) error {
	if format == "json" {
		return writeJSON(w, views)
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "RANK\tNAME\tCATEGORY\tRATING\tREVIEWS\tDIET\tSERVINGS\tCOOK")
	for _, v := range views {
		cook := "-"
		if v.Cook != nil {
			cook = strconv.Itoa(*v.Cook) + "m"
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%d\t%s\t%d\t%s\n",
			v.Rank, v.Name, v.Category, strconv.FormatFloat(v.Rating, 'f', -1, 64),
			v.RatingCount, v.DietType, v.Servings, cook)
	}
	return tw.Flush()
}

func writeJSON(w io.Writer, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "%s\n", data)
	return err
}
