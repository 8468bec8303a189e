package cast

import "time"

// SetHeartbeatInterval shortens the heartbeat for tests and returns a
// restore func.
func SetHeartbeatInterval(d time.Duration) (restore func()) {
	prev := heartbeatInterval
	heartbeatInterval = d
	return func() { heartbeatInterval = prev }
}
