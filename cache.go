package stubdns

import (
	"time"
)

// clampTTL converts a record TTL in seconds to a cache entry lifetime
// clamped into [minTTL, maxTTL]. A maxTTL of zero means unbounded.
func clampTTL(ttlSecs uint32, minTTL, maxTTL time.Duration) time.Duration {
	ttl := time.Duration(ttlSecs) * time.Second
	if maxTTL != 0 && ttl > maxTTL {
		ttl = maxTTL
	}
	if ttl < minTTL {
		ttl = minTTL
	}
	return ttl
}

func expiryFor(ttlSecs uint32, minTTL, maxTTL time.Duration) time.Time {
	return time.Now().Add(clampTTL(ttlSecs, minTTL, maxTTL))
}
