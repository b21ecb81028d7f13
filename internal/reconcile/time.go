package reconcile

import "time"

// nowNano returns the current time as unix nanoseconds, the same unit
// store.Item/store.ChangeEvent timestamps are kept in.
func nowNano() int64 {
	return time.Now().UnixNano()
}

// fallbackTimestamp converts a provider-reported unix-seconds timestamp to
// unix nanoseconds, falling back to the current time when the provider
// didn't report one (timestamps are provider-reported or a local
// fallback).
func fallbackTimestamp(providerUnixSeconds int64) int64 {
	if providerUnixSeconds == 0 {
		return nowNano()
	}

	return time.Unix(providerUnixSeconds, 0).UnixNano()
}
