package dataset

import (
	"testing"
	"time"
)

// deadline policy: a bucket becomes eligible only once the wall clock
// reaches publish time plus the bucket's delay, and a filled bucket is
// terminal.
func TestDeadlinePolicy_EligibleBucket(t *testing.T) {
	pub := time.Unix(1700000000, 0)
	policy := DeadlinePolicy{Buckets: DefaultBuckets}

	rec := &Record{Bvid: "BV1", Pubdate: pub.Unix()}

	tests := []struct {
		name       string
		now        time.Time
		filled     []string
		wantBucket string
		wantOK     bool
	}{
		{"30 minutes in, nothing due", pub.Add(30 * time.Minute), nil, "", false},
		{"61 minutes in, 1h due", pub.Add(61 * time.Minute), nil, "1h", true},
		{"1h filled, 3h not due", pub.Add(65 * time.Minute), []string{"1h"}, "", false},
		{"3h due after 1h filled", pub.Add(3*time.Hour + time.Minute), []string{"1h"}, "3h", true},
		{"oldest due first when several are due", pub.Add(7 * time.Hour), nil, "1h", true},
		{"all filled", pub.Add(10 * time.Hour), []string{"1h", "3h", "6h"}, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := &Record{Bvid: rec.Bvid, Pubdate: rec.Pubdate, Snapshots: map[string]Snapshot{}}
			for _, k := range tt.filled {
				r.Snapshots[k] = Snapshot{Ts: 1}
			}

			bucket, ok := policy.EligibleBucket(r, tt.now)

			if ok != tt.wantOK || bucket != tt.wantBucket {
				t.Errorf("EligibleBucket = (%q, %v), want (%q, %v)", bucket, ok, tt.wantBucket, tt.wantOK)
			}
		})
	}
}

func TestDeadlinePolicy_UntrustedPublishTime(t *testing.T) {
	policy := DeadlinePolicy{Buckets: DefaultBuckets}
	rec := &Record{Bvid: "BV1", Pubdate: 0}

	if _, ok := policy.EligibleBucket(rec, time.Unix(2000000000, 0)); ok {
		t.Error("record without publish timestamp must never be eligible")
	}
	if !policy.Pending(rec) {
		t.Error("unfilled buckets should still count as pending")
	}
}

func TestDeadlinePolicy_Pending(t *testing.T) {
	policy := DeadlinePolicy{Buckets: DefaultBuckets}
	rec := &Record{Snapshots: map[string]Snapshot{"1h": {}, "3h": {}}}

	if !policy.Pending(rec) {
		t.Error("6h is unfilled, Pending should be true")
	}

	rec.Snapshots["6h"] = Snapshot{}
	if policy.Pending(rec) {
		t.Error("all buckets filled, Pending should be false")
	}
}

// sequence policy: the Kth successful fill takes the Kth slot of the fixed
// order, regardless of wall time; a run that fills nothing does not advance
// the position.
func TestSequencePolicy_EligibleBucket(t *testing.T) {
	policy := SequencePolicy{Order: DefaultOrder}
	now := time.Unix(1700000000, 0) // ignored by the policy
	rec := &Record{Bvid: "BV1", Snapshots: map[string]Snapshot{}}

	bucket, ok := policy.EligibleBucket(rec, now)
	if !ok || bucket != "1h" {
		t.Fatalf("first run should offer 1h, got (%q, %v)", bucket, ok)
	}

	// A failed fetch stores nothing: the same slot is offered again.
	bucket, ok = policy.EligibleBucket(rec, now)
	if !ok || bucket != "1h" {
		t.Fatalf("position advanced without a fill, got (%q, %v)", bucket, ok)
	}

	rec.Snapshots["1h"] = Snapshot{Ts: 1}
	bucket, ok = policy.EligibleBucket(rec, now)
	if !ok || bucket != "3h" {
		t.Fatalf("second slot should be 3h, got (%q, %v)", bucket, ok)
	}

	rec.Snapshots["3h"] = Snapshot{Ts: 2}
	rec.Snapshots["6h"] = Snapshot{Ts: 3}
	if _, ok := policy.EligibleBucket(rec, now); ok {
		t.Error("all slots filled, further runs must be no-ops")
	}
	if policy.Pending(rec) {
		t.Error("all slots filled, Pending should be false")
	}
}
