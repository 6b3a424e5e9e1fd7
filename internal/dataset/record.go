// Package dataset models the daily labeled-video dataset: entity records
// keyed by bvid, the merge engine that folds repeated observations into one
// record, derived engagement features, snapshot eligibility policies, and
// the aggregate statistics recomputed on every write.
package dataset

// BucketFirstSeen is the snapshot bucket written at the moment a video is
// first observed on the trending feed.
const BucketFirstSeen = "0h"

// Snapshot is one observation of a video's engagement counters, tagged by
// the time-bucket key it is stored under in Record.Snapshots.
type Snapshot struct {
	Ts       int64  `json:"ts"`
	View     int64  `json:"view"`
	Like     int64  `json:"like"`
	Coin     int64  `json:"coin"`
	Favorite *int64 `json:"favorite,omitempty"`
	Reply    *int64 `json:"reply,omitempty"`
	Danmaku  *int64 `json:"danmaku,omitempty"`
	Share    *int64 `json:"share,omitempty"`
}

func (s Snapshot) clone() Snapshot {
	out := s
	out.Favorite = cloneInt64(s.Favorite)
	out.Reply = cloneInt64(s.Reply)
	out.Danmaku = cloneInt64(s.Danmaku)
	out.Share = cloneInt64(s.Share)
	return out
}

// Uploader identifies the channel that published a video. Follower is only
// known from feeds that expose it, hence the pointer.
type Uploader struct {
	Mid      int64  `json:"mid"`
	Name     string `json:"name"`
	Follower *int64 `json:"follower"`
}

// Record is one video in the daily dataset. Snapshots and Features are
// keyed by the same time-bucket keys and grow append-only: a bucket, once
// written, is never overwritten (see Merge and SetSnapshot).
type Record struct {
	Bvid        string              `json:"bvid"`
	Aid         int64               `json:"aid"`
	Label       int                 `json:"label"`
	Title       string              `json:"title"`
	URL         string              `json:"url"`
	Tid         *int64              `json:"tid"`
	Tname       string              `json:"tname"`
	Pubdate     int64               `json:"pubdate"`
	FirstSeenTs int64               `json:"first_seen_ts"`
	Up          Uploader            `json:"up"`
	Snapshots   map[string]Snapshot `json:"snapshots"`
	Features    map[string]Features `json:"features"`
}

func (r Record) clone() Record {
	out := r
	out.Tid = cloneInt64(r.Tid)
	out.Up.Follower = cloneInt64(r.Up.Follower)
	out.Snapshots = make(map[string]Snapshot, len(r.Snapshots))
	for k, v := range r.Snapshots {
		out.Snapshots[k] = v.clone()
	}
	out.Features = make(map[string]Features, len(r.Features))
	for k, v := range r.Features {
		out.Features[k] = v.clone()
	}
	return out
}

// HasBucket reports whether the bucket has already been filled.
func (r *Record) HasBucket(bucket string) bool {
	_, ok := r.Snapshots[bucket]
	return ok
}

// SetSnapshot stores one observation under bucket together with its derived
// features. A bucket that already holds a snapshot is left untouched; the
// return value reports whether the write happened.
func (r *Record) SetSnapshot(bucket string, s Snapshot) bool {
	if r.HasBucket(bucket) {
		return false
	}
	if r.Snapshots == nil {
		r.Snapshots = make(map[string]Snapshot)
	}
	if r.Features == nil {
		r.Features = make(map[string]Features)
	}
	r.Snapshots[bucket] = s.clone()
	r.Features[bucket] = ComputeFeatures(s)
	return true
}

func cloneInt64(v *int64) *int64 {
	if v == nil {
		return nil
	}
	out := *v
	return &out
}
