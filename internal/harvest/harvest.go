// Package harvest contains the three batch jobs that feed the daily
// dataset: the trending harvester (label=1), the negative sampler (label=0)
// and the snapshot backfiller. Each is a thin orchestrator: fetch, normalize,
// route through the merge engine, recompute aggregates, persist atomically.
package harvest

import (
	"time"

	"bilitrend/internal/bili"
	"bilitrend/internal/dataset"

	"github.com/sirupsen/logrus"
)

const (
	defaultPageSize = 50
	defaultMaxPages = 100
	defaultDelay    = 200 * time.Millisecond
)

var log = logrus.WithField("system", "harvest")

// clockOrNow returns the injected clock, or the real one.
func clockOrNow(clock func() time.Time) func() time.Time {
	if clock != nil {
		return clock
	}
	return time.Now
}

// sleepOrReal returns the injected sleeper, or the real one.
func sleepOrReal(sleep func(time.Duration)) func(time.Duration) {
	if sleep != nil {
		return sleep
	}
	return time.Sleep
}

// videoURL builds the canonical watch URL for a bvid.
func videoURL(bvid string) string {
	return "https://www.bilibili.com/video/" + bvid
}

// statSnapshot turns one stat reading into a snapshot captured at ts.
func statSnapshot(stat *bili.Stat, ts int64) dataset.Snapshot {
	snap := dataset.Snapshot{Ts: ts}
	if stat != nil {
		snap.View = stat.View
		snap.Like = stat.Like
		snap.Coin = stat.Coin
		snap.Favorite = stat.Favorite
		snap.Reply = stat.Reply
		snap.Danmaku = stat.Danmaku
		snap.Share = stat.Share
	}
	return snap
}
