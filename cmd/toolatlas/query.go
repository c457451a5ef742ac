package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"toolatlas/internal/core"
	"toolatlas/internal/selection"
	"toolatlas/pkg/catalogapi"
)

func newSummaryCmd(root *rootOptions) *cobra.Command {
	q := &queryOptions{}
	var output string
	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Print every chart series and KPI for a filter state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			snap, err := runQuery(cmd.Context(), root, q, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			switch strings.ToLower(output) {
			case "json":
				return writeIndented(cmd.OutOrStdout(), snap)
			case "", "text":
				return printSummary(cmd.OutOrStdout(), snap)
			default:
				return fmt.Errorf("unknown output %q", output)
			}
		},
	}
	q.bind(cmd)
	cmd.Flags().StringVarP(&output, "output", "o", "text", "text or json")
	return cmd
}

func newDrillCmd(root *rootOptions) *cobra.Command {
	q := &queryOptions{}
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "drill",
		Short: "Print the organizations-view filter for the current scope",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := root.open(cmd.Context(), cmd.ErrOrStderr(), nil)
			if err != nil {
				return err
			}
			defer a.Close()
			if _, err := applyQuery(cmd.Context(), a.explorer, q); err != nil {
				return err
			}
			expr, target, err := a.explorer.Drill()
			if err != nil {
				return err
			}
			if asJSON {
				return writeIndented(cmd.OutOrStdout(), map[string]any{"filter": expr, "target": target})
			}
			if target != "" {
				_, err = fmt.Fprintln(cmd.OutOrStdout(), target)
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s=%s\n", expr.Param, expr.Value)
			return err
		},
	}
	q.bind(cmd)
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the filter expression as JSON")
	return cmd
}

func runQuery(ctx context.Context, root *rootOptions, q *queryOptions, stderr io.Writer) (core.Snapshot, error) {
	a, err := root.open(ctx, stderr, nil)
	if err != nil {
		return core.Snapshot{}, err
	}
	defer a.Close()
	return applyQuery(ctx, a.explorer, q)
}

// applyQuery sets the filter state in one fetch and then applies the pick.
// A rejected pick is reported as an error on the command line.
func applyQuery(ctx context.Context, e *core.Explorer, q *queryOptions) (core.Snapshot, error) {
	filters, err := q.parseFilters()
	if err != nil {
		return core.Snapshot{}, err
	}
	dimension, value, picked, err := q.parsePick()
	if err != nil {
		return core.Snapshot{}, err
	}
	snap, err := e.SetQuery(ctx, filters, q.search, q.yearMin, q.yearMax)
	if err != nil {
		return core.Snapshot{}, err
	}
	if !picked {
		return snap, nil
	}
	outcome, snap := e.TogglePick(dimension, value)
	if outcome != selection.OutcomePicked {
		return core.Snapshot{}, fmt.Errorf("pick %s=%s %s", dimension, value, outcome)
	}
	return snap, nil
}

func printSummary(w io.Writer, snap core.Snapshot) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "scope\t%s\n", snap.Scope)
	fmt.Fprintf(tw, "selection\t%s\n", snap.Selection)
	fmt.Fprintf(tw, "tools\t%d\n", snap.Summary.KPIs.Entities)
	fmt.Fprintf(tw, "parent organizations\t%d\n", snap.Summary.KPIs.ParentOrganizations)
	fmt.Fprintf(tw, "unattributed tools\t%d\n", snap.Summary.KPIs.UnattributedEntities)
	for _, d := range catalogapi.Dimensions() {
		series := snap.Summary.Series(d)
		if len(series) == 0 {
			continue
		}
		fmt.Fprintf(tw, "\n%s\t\n", d)
		for _, c := range series {
			fmt.Fprintf(tw, "  %s\t%d\n", c.Label, c.Count)
		}
	}
	return tw.Flush()
}

func writeIndented(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

