package dataset

// Merge folds a newly observed record for the same video into the stored
// one and returns the result; neither input is mutated. The rules make
// repeated and re-ordered harvester runs harmless:
//
//   - label is monotonic toward 1: once any observation carried label=1 the
//     merged record keeps it.
//   - first_seen_ts keeps the earliest present value.
//   - scalar identity fields (and uploader subfields) follow fill-if-empty:
//     the stored value wins unless it is empty/zero and the new one is not.
//   - snapshots and features take the union of bucket keys; on collision the
//     stored bucket wins. A bucket records a fixed delay from publish, not
//     "latest value", so a later observation must never replace it.
//
// Merge(R, R) == R for any record R.
func Merge(old *Record, incoming Record) Record {
	if old == nil {
		return incoming.clone()
	}
	merged := old.clone()

	if incoming.Label == 1 {
		merged.Label = 1
	}

	switch {
	case merged.FirstSeenTs == 0:
		merged.FirstSeenTs = incoming.FirstSeenTs
	case incoming.FirstSeenTs != 0 && incoming.FirstSeenTs < merged.FirstSeenTs:
		merged.FirstSeenTs = incoming.FirstSeenTs
	}

	if merged.Aid == 0 {
		merged.Aid = incoming.Aid
	}
	if merged.Title == "" {
		merged.Title = incoming.Title
	}
	if merged.URL == "" {
		merged.URL = incoming.URL
	}
	if emptyInt64Ptr(merged.Tid) && !emptyInt64Ptr(incoming.Tid) {
		merged.Tid = cloneInt64(incoming.Tid)
	}
	if merged.Tname == "" {
		merged.Tname = incoming.Tname
	}
	if merged.Pubdate == 0 {
		merged.Pubdate = incoming.Pubdate
	}

	if merged.Up.Mid == 0 {
		merged.Up.Mid = incoming.Up.Mid
	}
	if merged.Up.Name == "" {
		merged.Up.Name = incoming.Up.Name
	}
	if emptyInt64Ptr(merged.Up.Follower) && !emptyInt64Ptr(incoming.Up.Follower) {
		merged.Up.Follower = cloneInt64(incoming.Up.Follower)
	}

	for k, v := range incoming.Snapshots {
		if _, ok := merged.Snapshots[k]; !ok {
			merged.Snapshots[k] = v.clone()
		}
	}
	for k, v := range incoming.Features {
		if _, ok := merged.Features[k]; !ok {
			merged.Features[k] = v.clone()
		}
	}

	return merged
}

func emptyInt64Ptr(v *int64) bool {
	return v == nil || *v == 0
}
