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

// TrendingFeed is the slice of the API client the trending harvester uses.
type TrendingFeed interface {
	Trending(ctx context.Context, page, pageSize int) (*bili.TrendingPage, error)
}

// Trending harvests the "currently popular" feed. Every item becomes a
// label=1 record with its first-seen snapshot; paging stops at the first
// empty page.
type Trending struct {
	Feed  TrendingFeed
	Store *store.Store

	PageSize   int
	MaxPages   int
	Delay      time.Duration
	ArchiveRaw bool

	// Now and Sleep are injectable for tests; nil means real time.
	Now   func() time.Time
	Sleep func(time.Duration)
}

// TrendingSummary is the per-run report.
type TrendingSummary struct {
	Day     string
	Pages   int
	New     int
	Merged  int
	Skipped int // items without a usable id
	Failed  int // pages skipped on upstream failure
	Total   int
}

// Run executes one harvest for the given day and persists the dataset.
func (h *Trending) Run(ctx context.Context, day string) (*TrendingSummary, error) {
	now := clockOrNow(h.Now)()
	sleep := sleepOrReal(h.Sleep)
	capture := now.Unix()

	ds, err := h.Store.LoadOrInit(day, capture)
	if err != nil {
		return nil, err
	}
	ds.Touch(capture)

	pageSize := h.PageSize
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	maxPages := h.MaxPages
	if maxPages <= 0 {
		maxPages = defaultMaxPages
	}
	delay := h.Delay
	if delay <= 0 {
		delay = defaultDelay
	}

	sum := &TrendingSummary{Day: day}
	for page := 1; page <= maxPages; page++ {
		result, err := h.Feed.Trending(ctx, page, pageSize)
		if err != nil {
			log.WithFields(logrus.Fields{"page": page}).WithError(err).Warn("trending page failed; skipping")
			sum.Failed++
			sleep(delay)
			continue
		}

		if h.ArchiveRaw && len(result.Raw) > 0 {
			if _, err := h.Store.SaveRaw(now, page, result.Raw); err != nil {
				log.WithFields(logrus.Fields{"page": page}).WithError(err).Warn("could not archive raw page")
			}
		}

		// An empty page is the hard stop: never request past it.
		if len(result.Items) == 0 {
			break
		}
		sum.Pages++

		for _, item := range result.Items {
			rec, ok := trendingRecord(item, capture)
			if !ok {
				sum.Skipped++
				continue
			}
			if ds.Upsert(rec) {
				sum.Merged++
			} else {
				sum.New++
			}
		}

		sleep(delay)
	}

	ds.Recompute()
	if err := h.Store.Save(day, ds); err != nil {
		return nil, fmt.Errorf("failed to persist daily dataset: %w", err)
	}
	sum.Total = ds.Count

	log.WithFields(logrus.Fields{
		"day":     day,
		"pages":   sum.Pages,
		"new":     sum.New,
		"merged":  sum.Merged,
		"skipped": sum.Skipped,
		"failed":  sum.Failed,
		"total":   sum.Total,
	}).Info("trending run complete")
	return sum, nil
}

// trendingRecord normalizes a feed item into a label=1 record with its
// first-seen snapshot and features. Items without a bvid are dropped.
func trendingRecord(item bili.Item, capture int64) (dataset.Record, bool) {
	if item.Bvid == "" {
		return dataset.Record{}, false
	}

	snap := statSnapshot(item.Stat, capture)
	rec := dataset.Record{
		Bvid:        item.Bvid,
		Aid:         item.Aid,
		Label:       1,
		Title:       item.Title,
		URL:         videoURL(item.Bvid),
		Tid:         item.Tid,
		Tname:       item.Tname,
		Pubdate:     item.Pubdate,
		FirstSeenTs: capture,
		Up:          dataset.Uploader{Mid: item.Owner.Mid, Name: item.Owner.Name},
		Snapshots:   map[string]dataset.Snapshot{dataset.BucketFirstSeen: snap},
		Features:    map[string]dataset.Features{dataset.BucketFirstSeen: dataset.ComputeFeatures(snap)},
	}
	return rec, true
}
