package cmd

import (
	"context"
	"errors"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/kebunops/opsreport/internal/model"
	"github.com/kebunops/opsreport/internal/render"
	"github.com/kebunops/opsreport/internal/util"
)

// ─── locations ────────────────────────────────────────────────────────────────

var locationsSelect string

var locationsCmd = &cobra.Command{
	Use:   "locations",
	Short: "List locations, their IDs and the resolved location_id query",
	Long: `Fetches the location dropdown, merges locations from refdata.yaml and
shows each display name with its ID. The default selection is every name,
hidden ones included; hidden locations only drop out of chart series.

--select resolves a comma-separated list of display names to the
location_id query the report endpoints receive, in selection order.
Names without a known ID are skipped.`,
	Example: `  opsreport locations
  opsreport locations --select "GH 2,GH 1"
  opsreport locations --format json`,
	RunE: func(cmd *cobra.Command, args []string) error {
		deps, err := buildDeps()
		if err != nil {
			return err
		}
		defer deps.Close()

		started := time.Now()
		view := deps.Service.Locations(cmd.Context(), util.SplitList(locationsSelect))

		result := newResult(model.KindLocations, "locations", view, len(view.Records), started)
		result.Warnings = alertWarnings(view.Alerts)
		return emit(cmd.OutOrStdout(), result, deps.Config.Format)
	},
}

// ─── refs ─────────────────────────────────────────────────────────────────────

var refsCmd = &cobra.Command{
	Use:   "refs",
	Short: "List reference data: locations, pests and variants",
	Long: `Loads the location, pest (hama) and variant lists in parallel. A failing
list is reported as a warning; the others are still shown. Pest units missing
from the API are filled from refdata.yaml.`,
	Example: `  opsreport refs
  opsreport refs --format xlsx --out refs.xlsx`,
	RunE: func(cmd *cobra.Command, args []string) error {
		deps, err := buildDeps()
		if err != nil {
			return err
		}
		defer deps.Close()

		started := time.Now()
		refs, err := loadRefs(cmd.Context(), deps.Client)

		for i, p := range refs.Pests {
			if p.Unit != "" {
				continue
			}
			if known, ok := deps.RefData.Pest(p.ID); ok && known.Unit != "" {
				refs.Pests[i].Unit = known.Unit
			}
		}

		tables := []render.Table{
			{Title: "Locations", Header: []string{"NAME", "ID", "HIDDEN"}},
			{Title: "Pests", Header: []string{"ID", "NAME", "UNIT"}},
			{Title: "Variants", Header: []string{"ID", "NAME"}},
		}
		for _, l := range refs.Locations {
			tables[0].Rows = append(tables[0].Rows, []any{l.Name, l.ID, l.Hidden})
		}
		for _, p := range refs.Pests {
			tables[1].Rows = append(tables[1].Rows, []any{p.ID, p.Name, p.Unit})
		}
		for _, v := range refs.Variants {
			tables[2].Rows = append(tables[2].Rows, []any{v.ID, v.Name})
		}

		items := len(refs.Locations) + len(refs.Pests) + len(refs.Variants)
		result := newResult(model.KindTable, "refs", tables, items, started)
		var me *util.MultiError
		if errors.As(err, &me) {
			for _, e := range me.Errors {
				result.Warnings = append(result.Warnings, e.Error())
			}
		} else if err != nil {
			return err
		}
		return emit(cmd.OutOrStdout(), result, deps.Config.Format)
	},
}

// refLists is the combined reference data.
type refLists struct {
	Locations []model.LocationRecord
	Pests     []model.NamedRecord
	Variants  []model.NamedRecord
}

// refClient is the part of the API client loadRefs needs.
type refClient interface {
	Locations(ctx context.Context) ([]model.LocationRecord, error)
	Pests(ctx context.Context) ([]model.NamedRecord, error)
	Variants(ctx context.Context) ([]model.NamedRecord, error)
}

// loadRefs fetches the three lists concurrently. One list failing does not
// cancel the others; failures come back together as a *util.MultiError.
func loadRefs(ctx context.Context, c refClient) (refLists, error) {
	var (
		out  refLists
		errs [3]error
		g    errgroup.Group
	)
	g.Go(func() error {
		out.Locations, errs[0] = c.Locations(ctx)
		return nil
	})
	g.Go(func() error {
		out.Pests, errs[1] = c.Pests(ctx)
		return nil
	})
	g.Go(func() error {
		out.Variants, errs[2] = c.Variants(ctx)
		return nil
	})
	// Each list reports through errs, so Wait never fails.
	_ = g.Wait()

	me := &util.MultiError{}
	for _, err := range errs {
		me.Add(err)
	}
	return out, me.Err()
}

// ─── Registration ─────────────────────────────────────────────────────────────

func init() {
	rootCmd.AddCommand(locationsCmd)
	rootCmd.AddCommand(refsCmd)

	locationsCmd.Flags().StringVar(&locationsSelect, "select", "",
		"comma-separated display names to resolve (default: every location, hidden included)")
}
