package flagkit

import "time"

func defaultString(v, d string) string {
	if v == "" {
		return d
	}
	return v
}

func defaultDuration(v, d time.Duration) time.Duration {
	if v <= 0 {
		return d
	}
	return v
}
