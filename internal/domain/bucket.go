package domain

// Time constants for the rolling window. All arithmetic is in unix seconds.
const (
	// BucketSeconds is the length of one aggregation bucket.
	BucketSeconds int64 = 3600

	// WindowSeconds is the length of the trailing rolling window.
	WindowSeconds int64 = 86400

	// BucketsPerWindow is the number of whole buckets a window spans.
	BucketsPerWindow = WindowSeconds / BucketSeconds
)

// CoordScale converts decimal degrees to the fixed-point representation used
// for anchor coordinates: degrees * 1e6, truncated.
const CoordScale int64 = 1_000_000

// BucketIndexFor returns the bucket index covering ts, floor(ts / 3600).
// Plain integer division truncates toward zero, which differs from floor for
// negative timestamps, so the remainder is corrected explicitly.
func BucketIndexFor(ts int64) int64 {
	idx := ts / BucketSeconds
	if ts%BucketSeconds < 0 {
		idx--
	}
	return idx
}

// BucketStart returns the inclusive start time of a bucket.
func BucketStart(idx int64) int64 {
	return idx * BucketSeconds
}

// WindowBounds returns the first and last bucket indices whose start time
// falls inside the half-open window [asOf-WindowSeconds, asOf).
func WindowBounds(asOf int64) (first, last int64) {
	start := asOf - WindowSeconds
	first = BucketIndexFor(start)
	if BucketStart(first) < start {
		first++
	}
	last = BucketIndexFor(asOf - 1)
	return first, last
}
