package command

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/staydrive/inventory-engine/internal/calendar"
	"github.com/staydrive/inventory-engine/internal/capacity"
	"github.com/staydrive/inventory-engine/internal/retention"
)

var purgeFlags struct {
	kind   string
	id     string
	before string
	retain int
}

var purgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Delete unbooked capacity history",
	Long: `Delete capacity records dated before a cutoff that never had a unit
booked. With --kind and --id one resource is purged; without them every
active homestay and car plus the driver schedules are swept, keeping
--retain days of history. Cutoffs in the future are clamped to today.`,
	Args: cobra.NoArgs,
	RunE: purge,
}

func init() {
	f := purgeCmd.Flags()
	f.StringVar(&purgeFlags.kind, "kind", "", "resource kind (homestay or car)")
	f.StringVar(&purgeFlags.id, "id", "", "resource id")
	f.StringVar(&purgeFlags.before, "before", "", "cutoff day YYYY-MM-DD, exclusive (default today)")
	f.IntVar(&purgeFlags.retain, "retain", 0, "days of history kept by a full sweep (default RETENTION_DAYS)")
	purgeCmd.MarkFlagsRequiredTogether("kind", "id")
	rootCmd.AddCommand(purgeCmd)
}

func purge(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	res, err := connect(ctx, cfg)
	if err != nil {
		return err
	}
	defer res.Close()
	cleaner := newContainer(cfg, res).Cleaner

	if purgeFlags.kind == "" {
		retain := purgeFlags.retain
		if retain <= 0 {
			retain = cfg.RetentionDays
		}
		removed, err := cleaner.Sweep(ctx, retain)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "removed %d records\n", removed)
		return nil
	}

	kind, err := capacity.ParseKind(purgeFlags.kind)
	if err != nil {
		return err
	}
	var before *calendar.Day
	if purgeFlags.before != "" {
		d, err := calendar.Parse(purgeFlags.before)
		if err != nil {
			return err
		}
		before = &d
	}

	result, err := cleaner.Purge(ctx, capacity.Key{Kind: kind, ResourceID: purgeFlags.id}, before)
	if err != nil {
		return err
	}
	printPurge(cmd, result)
	return nil
}

func printPurge(cmd *cobra.Command, r *retention.Result) {
	fmt.Fprintf(cmd.OutOrStdout(), "removed %d records dated before %s\n", r.Removed, r.Cutoff)
}
