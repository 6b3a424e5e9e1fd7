package dataset

import "math"

// Features holds the ratios derived from the snapshot stored under the same
// bucket key. A nil ratio means "undefined" (for example like_rate with
// zero views) and is persisted as JSON null.
type Features struct {
	LikeRate     *float64 `json:"like_rate"`
	CoinRate     *float64 `json:"coin_rate,omitempty"`
	FavoriteRate *float64 `json:"favorite_rate,omitempty"`
}

func (f Features) clone() Features {
	out := f
	out.LikeRate = cloneFloat64(f.LikeRate)
	out.CoinRate = cloneFloat64(f.CoinRate)
	out.FavoriteRate = cloneFloat64(f.FavoriteRate)
	return out
}

// Rate divides num by den, rounded to six fractional digits so the persisted
// value survives re-serialization unchanged. It fails soft: a nil numerator,
// or a nil, zero or negative denominator, yields nil instead of an error.
func Rate(num, den *int64) *float64 {
	if num == nil || den == nil || *den <= 0 {
		return nil
	}
	r := round6(float64(*num) / float64(*den))
	return &r
}

// ComputeFeatures derives the ratio features for one snapshot. It is called
// exactly once per (record, bucket): the result lives beside the snapshot
// under the same key and is never recomputed in place.
func ComputeFeatures(s Snapshot) Features {
	view := s.View
	like := s.Like
	coin := s.Coin
	f := Features{
		LikeRate: Rate(&like, &view),
		CoinRate: Rate(&coin, &view),
	}
	if s.Favorite != nil {
		f.FavoriteRate = Rate(s.Favorite, &view)
	}
	return f
}

func round6(x float64) float64 {
	return math.Round(x*1e6) / 1e6
}

func cloneFloat64(v *float64) *float64 {
	if v == nil {
		return nil
	}
	out := *v
	return &out
}
