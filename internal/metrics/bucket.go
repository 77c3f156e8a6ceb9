package metrics

// BucketStart returns the start of the interval of length intervalSec that
// contains the unix timestamp ts: ts - (ts mod intervalSec), floored so the
// result never exceeds ts. intervalSec must be positive.
func BucketStart(ts, intervalSec int64) int64 {
	rem := ts % intervalSec
	if rem < 0 {
		rem += intervalSec
	}
	return ts - rem
}
