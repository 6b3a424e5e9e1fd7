// Package main provides the bilitrend CLI entry point: three batch jobs
// that build a labeled dataset of trending and non-trending videos.
package main

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"bilitrend/internal/bili"
	"bilitrend/internal/dataset"
	"bilitrend/internal/harvest"
	"bilitrend/internal/store"
)

var version = "0.1.0"

// referenceTimezone fixes what "today" means: the upstream platform's
// timezone, so cron runs on differently configured hosts agree on the day.
const referenceTimezone = "Asia/Shanghai"

func main() {
	_ = godotenv.Load()

	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// getDataDir returns the dataset directory path.
func getDataDir() string {
	if dir := os.Getenv("BILITREND_DATA_DIR"); dir != "" {
		return dir
	}
	return "data"
}

// newClient builds the API client, honoring the BILITREND_API_URL override
// (useful for testing).
func newClient() *bili.Client {
	var opts []bili.ClientOption
	if url := os.Getenv("BILITREND_API_URL"); url != "" {
		opts = append(opts, bili.WithBaseURL(url))
	}
	return bili.NewClient(opts...)
}

// resolveDay validates the optional positional date argument, defaulting to
// today in the reference timezone.
func resolveDay(args []string) (string, error) {
	if len(args) == 0 {
		loc, err := time.LoadLocation(referenceTimezone)
		if err != nil {
			loc = time.UTC
		}
		return time.Now().In(loc).Format("2006-01-02"), nil
	}
	if _, err := time.Parse("2006-01-02", args[0]); err != nil {
		return "", fmt.Errorf("invalid date %q: expected YYYY-MM-DD", args[0])
	}
	return args[0], nil
}

// newRootCmd creates the root command for the bilitrend CLI.
func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "bilitrend",
		Short: "Collect labeled video engagement data from the trending and recent-upload feeds",
		Long: "Bilitrend builds a daily labeled dataset for popularity modeling:\n" +
			"trending videos (label=1), sampled recent uploads (label=0), and\n" +
			"delayed engagement snapshots for both.",
		Version:      version,
		SilenceUsage: true,
	}

	rootCmd.SetVersionTemplate("bilitrend version {{.Version}}\n")

	rootCmd.AddCommand(newTrendingCmd())
	rootCmd.AddCommand(newNegativesCmd())
	rootCmd.AddCommand(newSnapshotsCmd())

	return rootCmd
}

// newTrendingCmd creates the trending subcommand.
func newTrendingCmd() *cobra.Command {
	var (
		pageSize int
		maxPages int
		delayMs  int
		noRaw    bool
	)

	cmd := &cobra.Command{
		Use:   "trending [date]",
		Short: "Harvest the trending feed into the day's dataset (label=1)",
		Long: "Pages through the currently-popular feed until an empty page and merges\n" +
			"every video into the day's dataset with its first-seen snapshot.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			day, err := resolveDay(args)
			if err != nil {
				return err
			}

			st := store.New(getDataDir())
			h := &harvest.Trending{
				Feed:       newClient(),
				Store:      st,
				PageSize:   pageSize,
				MaxPages:   maxPages,
				Delay:      time.Duration(delayMs) * time.Millisecond,
				ArchiveRaw: !noRaw,
			}

			sum, err := h.Run(context.Background(), day)
			if err != nil {
				logrus.WithError(err).Error("trending run failed")
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "[trending] day=%s new=%d merged=%d skipped=%d failed=%d total=%d\n",
				sum.Day, sum.New, sum.Merged, sum.Skipped, sum.Failed, sum.Total)
			fmt.Fprintf(cmd.OutOrStdout(), "[trending] wrote: %s\n", st.DailyPath(day))
			return nil
		},
	}

	cmd.Flags().IntVar(&pageSize, "ps", 50, "Feed page size")
	cmd.Flags().IntVar(&maxPages, "pn-max", 100, "Upper bound on pages per run")
	cmd.Flags().IntVar(&delayMs, "delay", 200, "Inter-request delay in milliseconds")
	cmd.Flags().BoolVar(&noRaw, "no-raw", false, "Skip archiving raw feed pages")

	return cmd
}

// newNegativesCmd creates the negatives subcommand.
func newNegativesCmd() *cobra.Command {
	var (
		pageSize int
		delayMs  int
		seed     int64
	)

	cmd := &cobra.Command{
		Use:   "negatives [date]",
		Short: "Sample non-trending candidates into the day's dataset (label=0)",
		Long: "For each category with trending videos that day, samples an equal number\n" +
			"of recent uploads that are not in the dataset yet. Requires the day's\n" +
			"dataset to exist (run 'bilitrend trending' first).",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			day, err := resolveDay(args)
			if err != nil {
				return err
			}

			st := store.New(getDataDir())
			h := &harvest.Negatives{
				Feed:     newClient(),
				Store:    st,
				PageSize: pageSize,
				Delay:    time.Duration(delayMs) * time.Millisecond,
			}
			if cmd.Flags().Changed("seed") {
				h.Rand = rand.New(rand.NewSource(seed))
			}

			sum, err := h.Run(context.Background(), day)
			if err != nil {
				logrus.WithError(err).Error("negative sampling run failed")
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "[negatives] day=%s added=%d categories=%d failed=%d total=%d\n",
				sum.Day, sum.Added, sum.Categories, sum.Failed, sum.Total)
			fmt.Fprintf(cmd.OutOrStdout(), "[negatives] wrote: %s\n", st.DailyPath(day))
			return nil
		},
	}

	cmd.Flags().IntVar(&pageSize, "ps", 50, "Recent-upload feed page size")
	cmd.Flags().IntVar(&delayMs, "delay", 200, "Inter-request delay in milliseconds")
	cmd.Flags().Int64Var(&seed, "seed", 0, "Random seed for reproducible sampling")

	return cmd
}

// newSnapshotsCmd creates the snapshots subcommand.
func newSnapshotsCmd() *cobra.Command {
	var (
		delayMs    int
		policyName string
	)

	cmd := &cobra.Command{
		Use:   "snapshots [date]",
		Short: "Backfill delayed engagement snapshots for the day's dataset",
		Long: "For every video in the day's dataset, fills at most one due snapshot\n" +
			"bucket per run. The deadline policy gates buckets on publish time plus\n" +
			"delay; the sequence policy fills slots positionally per run.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			day, err := resolveDay(args)
			if err != nil {
				return err
			}

			policy, err := snapshotPolicy(policyName)
			if err != nil {
				return err
			}

			st := store.New(getDataDir())
			h := &harvest.Snapshots{
				Stats:  newClient(),
				Store:  st,
				Policy: policy,
				Delay:  time.Duration(delayMs) * time.Millisecond,
			}

			sum, err := h.Run(context.Background(), day)
			if err != nil {
				logrus.WithError(err).Error("snapshot backfill run failed")
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "[snapshots] day=%s updated=%d skipped_early=%d skipped_filled=%d failed=%d total=%d\n",
				sum.Day, sum.Updated, sum.SkippedEarly, sum.SkippedFilled, sum.Failed, sum.Total)
			fmt.Fprintf(cmd.OutOrStdout(), "[snapshots] wrote: %s\n", st.DailyPath(day))
			return nil
		},
	}

	cmd.Flags().IntVar(&delayMs, "delay", 150, "Inter-request delay in milliseconds")
	cmd.Flags().StringVar(&policyName, "policy", "deadline", "Snapshot eligibility policy: deadline or sequence")

	return cmd
}

func snapshotPolicy(name string) (dataset.SnapshotPolicy, error) {
	switch name {
	case "deadline":
		return dataset.DeadlinePolicy{Buckets: dataset.DefaultBuckets}, nil
	case "sequence":
		return dataset.SequencePolicy{Order: dataset.DefaultOrder}, nil
	default:
		return nil, fmt.Errorf("invalid policy %q: must be 'deadline' or 'sequence'", name)
	}
}
