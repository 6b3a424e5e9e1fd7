// Package bili provides a client for the bilibili web API feeds the
// collector reads: the trending feed, per-category recent uploads, and
// per-video engagement stats.
package bili

// Item is one video entry from a feed page, normalized across the slightly
// different shapes the feeds return.
type Item struct {
	Bvid    string
	Aid     int64
	Title   string
	Tid     *int64
	Tname   string
	Pubdate int64
	Owner   Owner
	Stat    *Stat
}

// Owner identifies the uploader of a video.
type Owner struct {
	Mid  int64
	Name string
}

// Stat holds one reading of a video's engagement counters. View, like and
// coin are always reported; the rest depend on the endpoint.
type Stat struct {
	View     int64
	Like     int64
	Coin     int64
	Favorite *int64
	Reply    *int64
	Danmaku  *int64
	Share    *int64
}

// TrendingPage is one page of the trending feed together with the raw
// payload, so callers can archive pages as received.
type TrendingPage struct {
	Items []Item
	Raw   []byte
}
