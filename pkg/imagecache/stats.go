package imagecache

import (
	"github.com/puzpuzpuz/xsync/v3"
)

// Stats is a point-in-time snapshot of cache activity.
type Stats struct {
	Hits      int64 `json:"hits"`
	Misses    int64 `json:"misses"`
	Coalesced int64 `json:"coalesced"`
	Fetches   int64 `json:"fetches"`
	Failures  int64 `json:"failures"`
	Evictions int64 `json:"evictions"`
	Entries   int   `json:"entries"`
	Bytes     int64 `json:"bytes"`
	InFlight  int   `json:"in_flight"`
}

// counters are updated outside the cache lock on the hot path.
type counters struct {
	hits      *xsync.Counter
	misses    *xsync.Counter
	coalesced *xsync.Counter
	fetches   *xsync.Counter
	failures  *xsync.Counter
	evictions *xsync.Counter
}

func newCounters() *counters {
	return &counters{
		hits:      xsync.NewCounter(),
		misses:    xsync.NewCounter(),
		coalesced: xsync.NewCounter(),
		fetches:   xsync.NewCounter(),
		failures:  xsync.NewCounter(),
		evictions: xsync.NewCounter(),
	}
}
