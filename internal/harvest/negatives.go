package harvest

import (
	"context"
	"fmt"
	"math/rand"
	"sort"
	"time"

	"bilitrend/internal/bili"
	"bilitrend/internal/dataset"
	"bilitrend/internal/store"

	"github.com/sirupsen/logrus"
)

// RecentFeed is the slice of the API client the negative sampler uses.
type RecentFeed interface {
	RecentByCategory(ctx context.Context, categoryID int64, page, pageSize int) ([]bili.Item, error)
}

// Negatives samples candidate label=0 records from each category's
// recent-upload feed, one category per label=1 category already present in
// the day's dataset. Candidates already in the dataset are excluded, and at
// most as many are taken as the category has positives. Snapshots accrue
// later through the backfiller, so negatives start with empty maps.
type Negatives struct {
	Feed  RecentFeed
	Store *store.Store

	PageSize int
	Delay    time.Duration

	// Rand drives the sampling; seed it for reproducible runs. nil means
	// time-seeded.
	Rand *rand.Rand

	Now   func() time.Time
	Sleep func(time.Duration)
}

// NegativesSummary is the per-run report.
type NegativesSummary struct {
	Day        string
	Added      int
	Categories int // categories that contributed at least one candidate page
	Failed     int // categories skipped on upstream failure
	Total      int
}

// Run executes one sampling pass for the given day. The day's dataset must
// already exist: sampling quotas derive from its positives.
func (h *Negatives) Run(ctx context.Context, day string) (*NegativesSummary, error) {
	ds, err := h.Store.Load(day)
	if err != nil {
		return nil, err
	}

	now := clockOrNow(h.Now)()
	sleep := sleepOrReal(h.Sleep)
	capture := now.Unix()
	ds.Touch(capture)

	rng := h.Rand
	if rng == nil {
		rng = rand.New(rand.NewSource(now.UnixNano()))
	}
	pageSize := h.PageSize
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	delay := h.Delay
	if delay <= 0 {
		delay = defaultDelay
	}

	sum := &NegativesSummary{Day: day}

	need := ds.PositiveCountByTid()
	if len(need) == 0 {
		log.WithField("day", day).Info("no positive samples found; nothing to do")
		sum.Total = ds.Count
		return sum, nil
	}

	tids := make([]int64, 0, len(need))
	for tid := range need {
		tids = append(tids, tid)
	}
	sort.Slice(tids, func(i, j int) bool { return tids[i] < tids[j] })

	for _, tid := range tids {
		quota := need[tid]
		if quota <= 0 {
			continue
		}

		items, err := h.Feed.RecentByCategory(ctx, tid, 1, pageSize)
		if err != nil {
			log.WithFields(logrus.Fields{"tid": tid}).WithError(err).Warn("recent-upload feed failed; skipping category")
			sum.Failed++
			sleep(delay)
			continue
		}

		candidates := make([]bili.Item, 0, len(items))
		for _, item := range items {
			if item.Bvid == "" || ds.Has(item.Bvid) {
				continue
			}
			candidates = append(candidates, item)
		}
		if len(candidates) == 0 {
			sleep(delay)
			continue
		}
		sum.Categories++

		// Shortfall is fine: take what the feed offered.
		k := quota
		if k > len(candidates) {
			k = len(candidates)
		}
		for _, item := range sampleItems(rng, candidates, k) {
			rec := negativeRecord(item, capture)
			if ds.Has(rec.Bvid) {
				continue
			}
			ds.Upsert(rec)
			sum.Added++
		}

		sleep(delay)
	}

	ds.Recompute()
	if err := h.Store.Save(day, ds); err != nil {
		return nil, fmt.Errorf("failed to persist daily dataset: %w", err)
	}
	sum.Total = ds.Count

	log.WithFields(logrus.Fields{
		"day":        day,
		"added":      sum.Added,
		"categories": sum.Categories,
		"failed":     sum.Failed,
		"total":      sum.Total,
	}).Info("negative sampling run complete")
	return sum, nil
}

// sampleItems picks k items without replacement, leaving the input intact.
func sampleItems(rng *rand.Rand, items []bili.Item, k int) []bili.Item {
	out := make([]bili.Item, len(items))
	copy(out, items)
	rng.Shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
	return out[:k]
}

// negativeRecord normalizes a candidate into a label=0 record. Snapshot and
// feature maps start empty: engagement accrues only through the backfiller.
func negativeRecord(item bili.Item, capture int64) dataset.Record {
	return dataset.Record{
		Bvid:        item.Bvid,
		Aid:         item.Aid,
		Label:       0,
		Title:       item.Title,
		URL:         videoURL(item.Bvid),
		Tid:         item.Tid,
		Tname:       item.Tname,
		Pubdate:     item.Pubdate,
		FirstSeenTs: capture,
		Up:          dataset.Uploader{Mid: item.Owner.Mid, Name: item.Owner.Name},
		Snapshots:   map[string]dataset.Snapshot{},
		Features:    map[string]dataset.Features{},
	}
}
