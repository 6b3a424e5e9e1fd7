package dataset

import "strconv"

// Source identifies where the daily dataset was collected from.
const Source = "bilibili_popular"

// Meta is the fully derived label breakdown; Recompute rebuilds it from
// Videos on every write.
type Meta struct {
	PosCount   int `json:"pos_count"`
	NegCount   int `json:"neg_count"`
	TotalCount int `json:"total_count"`
}

// CategoryStat aggregates the videos of one category. The averages cover
// first-seen ("0h") snapshots only and stay nil while no video in the
// category has one.
type CategoryStat struct {
	Tname         string   `json:"tname"`
	VideoCount    int      `json:"video_count"`
	AvgView0h     *float64 `json:"avg_view_0h,omitempty"`
	AvgLikeRate0h *float64 `json:"avg_like_rate_0h,omitempty"`
}

// Dataset is one calendar day's labeled collection of video records.
// CaptureTs is set once when the skeleton is created; LastCaptureTs is
// bumped by every harvester run. Count, Meta and CategoryStats are derived
// and must never be hand-maintained.
type Dataset struct {
	Date          string                   `json:"date"`
	CaptureTs     int64                    `json:"capture_ts"`
	LastCaptureTs int64                    `json:"last_capture_ts"`
	Source        string                   `json:"source"`
	Count         int                      `json:"count"`
	Meta          Meta                     `json:"meta"`
	CategoryStats map[string]*CategoryStat `json:"category_stats"`
	Videos        []Record                 `json:"videos"`

	index map[string]int
}

// New builds the empty skeleton for a day.
func New(day string, now int64) *Dataset {
	return &Dataset{
		Date:          day,
		CaptureTs:     now,
		LastCaptureTs: now,
		Source:        Source,
		CategoryStats: make(map[string]*CategoryStat),
		Videos:        []Record{},
		index:         make(map[string]int),
	}
}

// Reindex rebuilds the in-memory bvid index. The store calls it after
// unmarshalling a persisted document.
func (d *Dataset) Reindex() {
	d.index = make(map[string]int, len(d.Videos))
	for i, v := range d.Videos {
		if v.Bvid != "" {
			d.index[v.Bvid] = i
		}
	}
}

// Touch marks a harvester run at now.
func (d *Dataset) Touch(now int64) {
	if d.CaptureTs == 0 {
		d.CaptureTs = now
	}
	d.LastCaptureTs = now
}

// Has reports whether a record with the bvid is already present.
func (d *Dataset) Has(bvid string) bool {
	_, ok := d.index[bvid]
	return ok
}

// Get returns a pointer to the stored record for in-place updates.
func (d *Dataset) Get(bvid string) (*Record, bool) {
	i, ok := d.index[bvid]
	if !ok {
		return nil, false
	}
	return &d.Videos[i], true
}

// Upsert routes an observed record through the merge engine. New bvids are
// appended; existing ones are merged in place, so no observation can
// destroy previously captured data. It reports whether a merge happened.
func (d *Dataset) Upsert(rec Record) bool {
	if d.index == nil {
		d.index = make(map[string]int)
	}
	if i, ok := d.index[rec.Bvid]; ok {
		d.Videos[i] = Merge(&d.Videos[i], rec)
		return true
	}
	d.Videos = append(d.Videos, Merge(nil, rec))
	d.index[rec.Bvid] = len(d.Videos) - 1
	return false
}

// PositiveCountByTid counts label=1 records per category id.
func (d *Dataset) PositiveCountByTid() map[int64]int {
	out := make(map[int64]int)
	for _, v := range d.Videos {
		if v.Label != 1 || v.Tid == nil {
			continue
		}
		out[*v.Tid]++
	}
	return out
}

// Recompute rebuilds every derived aggregate from Videos. It runs before
// each persistence step; after it, Count == len(Videos) and
// Meta.PosCount+Meta.NegCount == Meta.TotalCount.
func (d *Dataset) Recompute() {
	d.Count = len(d.Videos)

	meta := Meta{TotalCount: len(d.Videos)}
	for _, v := range d.Videos {
		if v.Label == 1 {
			meta.PosCount++
		} else {
			meta.NegCount++
		}
	}
	d.Meta = meta

	type catAcc struct {
		viewSum     float64
		viewCnt     int
		likeRateSum float64
		likeRateCnt int
	}
	stats := make(map[string]*CategoryStat)
	acc := make(map[string]*catAcc)
	for _, v := range d.Videos {
		if v.Tid == nil {
			continue
		}
		key := strconv.FormatInt(*v.Tid, 10)
		cs, ok := stats[key]
		if !ok {
			cs = &CategoryStat{Tname: v.Tname}
			stats[key] = cs
			acc[key] = &catAcc{}
		}
		if cs.Tname == "" && v.Tname != "" {
			cs.Tname = v.Tname
		}
		cs.VideoCount++

		if snap, ok := v.Snapshots[BucketFirstSeen]; ok {
			a := acc[key]
			a.viewSum += float64(snap.View)
			a.viewCnt++
			if feat, ok := v.Features[BucketFirstSeen]; ok && feat.LikeRate != nil {
				a.likeRateSum += *feat.LikeRate
				a.likeRateCnt++
			}
		}
	}
	for key, a := range acc {
		if a.viewCnt > 0 {
			avg := round6(a.viewSum / float64(a.viewCnt))
			stats[key].AvgView0h = &avg
		}
		if a.likeRateCnt > 0 {
			avg := round6(a.likeRateSum / float64(a.likeRateCnt))
			stats[key].AvgLikeRate0h = &avg
		}
	}
	d.CategoryStats = stats
}
