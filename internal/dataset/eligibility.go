package dataset

import "time"

// Bucket pairs a snapshot key with its semantic delay from publish.
type Bucket struct {
	Key   string
	Delay time.Duration
}

// DefaultBuckets are the delays the backfiller captures after publish,
// ordered earliest-due first.
var DefaultBuckets = []Bucket{
	{Key: "1h", Delay: time.Hour},
	{Key: "3h", Delay: 3 * time.Hour},
	{Key: "6h", Delay: 6 * time.Hour},
}

// DefaultOrder is the bucket order used by the sequence policy.
var DefaultOrder = []string{"1h", "3h", "6h"}

// SnapshotPolicy decides whether a record may take a snapshot right now,
// and under which bucket. A bucket already present in the record's
// snapshots is filled and is never offered again.
type SnapshotPolicy interface {
	// EligibleBucket returns the single bucket the record may fill at now.
	// At most one bucket is offered per call, earliest-due first.
	EligibleBucket(rec *Record, now time.Time) (string, bool)

	// Pending reports whether any of the policy's buckets remains unfilled.
	Pending(rec *Record) bool
}

// DeadlinePolicy makes bucket "Nh" eligible once now reaches publish time
// plus N hours. Filling early is rejected, not delayed. Records without a
// trusted publish timestamp are never eligible. Buckets must be ordered by
// ascending delay.
type DeadlinePolicy struct {
	Buckets []Bucket
}

func (p DeadlinePolicy) EligibleBucket(rec *Record, now time.Time) (string, bool) {
	if rec.Pubdate <= 0 {
		return "", false
	}
	for _, b := range p.Buckets {
		if rec.HasBucket(b.Key) {
			continue
		}
		if now.Unix() >= rec.Pubdate+int64(b.Delay/time.Second) {
			return b.Key, true
		}
	}
	return "", false
}

func (p DeadlinePolicy) Pending(rec *Record) bool {
	for _, b := range p.Buckets {
		if !rec.HasBucket(b.Key) {
			return true
		}
	}
	return false
}

// SequencePolicy fills buckets positionally: each successful run against a
// record fills the next unfilled bucket in Order, regardless of elapsed
// wall time. A failed fetch fills nothing, so the position does not
// advance. Once every bucket in Order is filled, further runs are no-ops.
type SequencePolicy struct {
	Order []string
}

func (p SequencePolicy) EligibleBucket(rec *Record, _ time.Time) (string, bool) {
	for _, key := range p.Order {
		if !rec.HasBucket(key) {
			return key, true
		}
	}
	return "", false
}

func (p SequencePolicy) Pending(rec *Record) bool {
	for _, key := range p.Order {
		if !rec.HasBucket(key) {
			return true
		}
	}
	return false
}
