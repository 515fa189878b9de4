package batch

import "time"

// SetCloseGrace replaces closeGrace and returns a function restoring it.
func SetCloseGrace(d time.Duration) (restore func()) {
	old := closeGrace
	closeGrace = d
	return func() { closeGrace = old }
}
