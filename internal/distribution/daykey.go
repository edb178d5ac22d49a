package distribution

// DefaultWindowSeconds is one UTC day.
const DefaultWindowSeconds int64 = 86_400

// DayKey maps a unix timestamp (seconds) to its window index.
// Pure: the same (ts, window) always yields the same key.
func DayKey(ts, windowSeconds int64) (int64, error) {
	if windowSeconds <= 0 {
		return 0, configError("window length must be positive, got %d", windowSeconds)
	}
	if ts < 0 {
		return 0, configError("timestamp must be non-negative, got %d", ts)
	}
	return ts / windowSeconds, nil
}

// WindowStart returns the first timestamp of a day key.
func WindowStart(dayKey, windowSeconds int64) int64 {
	return dayKey * windowSeconds
}
