package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/xraph/tally"
	"github.com/xraph/tally/counter"
	"github.com/xraph/tally/id"
)

func newReconcileCmd(a *app) *cobra.Command {
	var (
		fixture  string
		kindName string
		pageSize int
	)
	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Seed a fixture and recount every stored counter of a kind",
		Long: `Seed a fixture, then recount every counter of the given kind from its
child rows. Drift found is corrected and listed. Use --kind all to reconcile
every counted kind.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			kinds, err := reconcileKinds(kindName)
			if err != nil {
				return err
			}
			f, err := loadFixture(fixture)
			if err != nil {
				return err
			}
			sd, err := f.seed(cmd.Context(), a.logger, tally.WithReconcilePageSize(pageSize))
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			table := newTable(out, "Kind", "ID", "Field", "Stored", "Actual")
			total := 0
			for _, kind := range kinds {
				drifts, err := sd.engine.Reconcile(cmd.Context(), kind)
				if err != nil {
					return err
				}
				for _, d := range drifts {
					table.Append([]string{
						d.Kind.String(), d.ID.String(), string(d.Field),
						strconv.FormatInt(d.Stored, 10), strconv.FormatInt(d.Actual, 10),
					})
				}
				total += len(drifts)
			}
			if total > 0 {
				table.Render()
			}
			fmt.Fprintf(out, "%d counters corrected\n", total)
			return nil
		},
	}
	cmd.Flags().StringVar(&fixture, "fixture", "", "YAML fixture to seed")
	cmd.Flags().StringVar(&kindName, "kind", "all", "entity kind to reconcile, or all")
	cmd.Flags().IntVar(&pageSize, "page-size", 500, "identifiers loaded per page")
	_ = cmd.MarkFlagRequired("fixture")
	return cmd
}

func reconcileKinds(name string) ([]id.Kind, error) {
	if name == "all" {
		return counter.Counted(), nil
	}
	kind, err := id.ParseKind(name)
	if err != nil {
		return nil, err
	}
	if len(counter.Fields(kind)) == 0 {
		return nil, fmt.Errorf("%s: %w", kind, tally.ErrInvalidCounter)
	}
	return []id.Kind{kind}, nil
}
