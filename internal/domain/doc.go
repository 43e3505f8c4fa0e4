// Package domain models the rainfall rolling-window oracle for a parametric
// weather-insurance product.
//
// # Buckets
//
// Hourly precipitation observations are aggregated into fixed one-hour
// buckets. A bucket is identified by its index:
//
//	bucket_index = floor(unix_timestamp / 3600)
//	bucket_start = bucket_index * 3600
//
// A resubmission for an index that already holds a value is a correction and
// overwrites the stored value (last write wins). Corrections are a first-class
// case: weather providers routinely revise recent hours.
//
// # Rolling window
//
// Per location the oracle maintains the sum of bucket values inside the
// trailing 24 hours, measured from the most recent observation. The window is
// half-open: a bucket whose start equals window_start is inside, one starting
// a second earlier is out. Buckets that fall behind the window are pruned as
// the frontier advances.
//
// # Locations
//
// A location (typically an insurance market) must be bound exactly once to a
// weather-provider location key before any reading or query is accepted.
// Anchor coordinates are captured at bind time as 1e-6-degree fixed-point
// integers for audit purposes and never change afterwards. Unbound locations
// fail closed everywhere.
//
// # Settlement
//
// A policy settles against a strike threshold: did the rolling sum ever reach
// or exceed strike_mm during the coverage window? Because the rolling sum only
// changes at bucket boundaries, sampling the coverage window at hourly steps
// is exact.
//
// All quantities are plain integers: unix seconds for time, whole millimeters
// for rainfall. Nothing in this package performs I/O.
package domain
