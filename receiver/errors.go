package receiver

import "github.com/pkg/errors"

var (
	ErrAppNotRunning      = errors.New("app not running")
	ErrLaunchTimeout      = errors.New("launch timed out")
	ErrLaunchRejected     = errors.New("launch rejected by device")
	ErrChannelUnavailable = errors.New("application channel not bound")
	ErrDisconnected       = errors.New("device connection lost")
)
