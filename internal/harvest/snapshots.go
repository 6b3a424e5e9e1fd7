package harvest

import (
	"context"
	"fmt"
	"time"

	"bilitrend/internal/bili"
	"bilitrend/internal/dataset"
	"bilitrend/internal/store"

	"github.com/sirupsen/logrus"
)

// StatsFetcher is the slice of the API client the backfiller uses.
type StatsFetcher interface {
	Stats(ctx context.Context, aid int64, bvid string) (*bili.Stat, error)
}

// Snapshots backfills delayed engagement snapshots for every record in the
// day's dataset. The policy decides which bucket, if any, a record may fill
// now; at most one bucket is filled per record per run, oldest-due first.
// A failed stat fetch writes nothing, so the bucket stays open for the next
// run.
type Snapshots struct {
	Stats  StatsFetcher
	Store  *store.Store
	Policy dataset.SnapshotPolicy

	Delay time.Duration

	Now   func() time.Time
	Sleep func(time.Duration)
}

// SnapshotsSummary is the per-run report.
type SnapshotsSummary struct {
	Day           string
	Updated       int
	SkippedEarly  int // unfilled buckets exist but none is due yet
	SkippedFilled int // every bucket already filled
	Failed        int
	Total         int
}

// Run executes one backfill pass for the given day. The day's dataset must
// already exist.
func (h *Snapshots) Run(ctx context.Context, day string) (*SnapshotsSummary, error) {
	ds, err := h.Store.Load(day)
	if err != nil {
		return nil, err
	}

	now := clockOrNow(h.Now)()
	sleep := sleepOrReal(h.Sleep)
	ds.Touch(now.Unix())

	delay := h.Delay
	if delay <= 0 {
		delay = defaultDelay
	}

	sum := &SnapshotsSummary{Day: day}
	for i := range ds.Videos {
		rec := &ds.Videos[i]

		bucket, ok := h.Policy.EligibleBucket(rec, now)
		if !ok {
			if h.Policy.Pending(rec) {
				sum.SkippedEarly++
			} else {
				sum.SkippedFilled++
			}
			continue
		}

		stat, err := h.Stats.Stats(ctx, rec.Aid, rec.Bvid)
		if err != nil {
			// Nothing written: the bucket stays eligible-unfilled so a
			// later run can retry.
			log.WithFields(logrus.Fields{"bvid": rec.Bvid, "bucket": bucket}).WithError(err).Warn("stat fetch failed")
			sum.Failed++
			sleep(delay)
			continue
		}

		if rec.SetSnapshot(bucket, statSnapshot(stat, now.Unix())) {
			sum.Updated++
		}

		sleep(delay)
	}

	ds.Recompute()
	if err := h.Store.Save(day, ds); err != nil {
		return nil, fmt.Errorf("failed to persist daily dataset: %w", err)
	}
	sum.Total = ds.Count

	log.WithFields(logrus.Fields{
		"day":            day,
		"updated":        sum.Updated,
		"skipped_early":  sum.SkippedEarly,
		"skipped_filled": sum.SkippedFilled,
		"failed":         sum.Failed,
		"total":          sum.Total,
	}).Info("snapshot backfill run complete")
	return sum, nil
}
