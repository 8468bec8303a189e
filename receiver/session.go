// Package receiver drives a Chromecast from disconnected to casting:
// it launches the custom receiver app, tracks the transportId the
// device assigns to it, and keeps the application channels consistent
// with device-reported reality.
package receiver

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/buger/jsonparser"
	"github.com/pkg/errors"

	"github.com/zekimust-a11y/soundstream-sub000/cast"
	"github.com/zekimust-a11y/soundstream-sub000/log"
	"github.com/zekimust-a11y/soundstream-sub000/nowplaying"
)

const (
	// DefaultAppID is the registered id of the custom receiver app.
	DefaultAppID = "32D29E8D"
	// DefaultNamespace is the custom message namespace the receiver
	// app listens on.
	DefaultNamespace = "urn:x-cast:com.soundstream.display"

	defaultLaunchTimeout = time.Second * 10
)

// Session owns the device transport and exposes the operations the
// playback bridge needs. The transport's socket and channels are never
// touched by anyone else.
type Session struct {
	conn cast.Conn
	addr string
	port int

	appID         string
	namespace     string
	launchTimeout time.Duration

	mu          sync.Mutex
	transportID string
	appConnCh   cast.Chan
	appCh       cast.Chan
	pending     *pendingLaunch
	casting     bool
	lastParams  *ZoneParams
}

type SessionOption func(*Session)

func WithAppID(appID string) SessionOption {
	return func(s *Session) {
		if appID != "" {
			s.appID = appID
		}
	}
}

func WithNamespace(namespace string) SessionOption {
	return func(s *Session) {
		if namespace != "" {
			s.namespace = namespace
		}
	}
}

func WithDevicePort(port int) SessionOption {
	return func(s *Session) {
		if port > 0 {
			s.port = port
		}
	}
}

func WithLaunchTimeout(d time.Duration) SessionOption {
	return func(s *Session) {
		if d > 0 {
			s.launchTimeout = d
		}
	}
}

func NewSession(conn cast.Conn, addr string, opts ...SessionOption) *Session {
	s := &Session{
		conn:          conn,
		addr:          addr,
		port:          cast.DefaultPort,
		appID:         DefaultAppID,
		namespace:     DefaultNamespace,
		launchTimeout: defaultLaunchTimeout,
	}
	for _, o := range opts {
		o(s)
	}
	conn.OnDisconnect(s.handleDisconnect)
	return s
}

// pendingLaunch is the single in-flight launch request. Concurrent
// callers of EnsureLaunched share it instead of issuing a second
// LAUNCH.
type pendingLaunch struct {
	done  chan struct{}
	timer *time.Timer
	err   error
}

// EnsureLaunched connects to the device if needed and makes sure the
// receiver app is running with its channels bound. It returns once a
// RECEIVER_STATUS confirms the launch, the device rejects it, or the
// launch times out.
func (s *Session) EnsureLaunched(ctx context.Context) error {
	s.mu.Lock()
	if err := s.connectLocked(); err != nil {
		s.mu.Unlock()
		return err
	}
	if s.transportID != "" && s.appCh != nil {
		s.mu.Unlock()
		return nil
	}
	if s.pending == nil {
		p := &pendingLaunch{done: make(chan struct{})}
		launch := cast.LaunchRequest{PayloadHeader: cast.LaunchHeader, AppId: s.appID}
		if _, err := s.conn.ReceiverChannel().SendWithID(&launch); err != nil {
			s.mu.Unlock()
			return errors.Wrap(err, "unable to send LAUNCH")
		}
		p.timer = time.AfterFunc(s.launchTimeout, func() {
			s.mu.Lock()
			s.finishLaunchLocked(p, ErrLaunchTimeout)
			s.mu.Unlock()
		})
		s.pending = p
		log.WithField("package", "receiver").Infof("launching app %s", s.appID)
	}
	p := s.pending
	s.mu.Unlock()

	select {
	case <-p.done:
		return p.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// CastZone tells the running receiver app which zone to mirror. It
// never panics or returns an error; a false return means "not casting"
// and is safe to retry on the next poll tick.
func (s *Session) CastZone(ctx context.Context, p ZoneParams) bool {
	s.mu.Lock()
	if s.casting && s.lastParams != nil && *s.lastParams == p {
		s.mu.Unlock()
		return true
	}
	s.mu.Unlock()

	if err := s.EnsureLaunched(ctx); err != nil {
		log.WithField("package", "receiver").WithError(err).Warn("unable to launch receiver app")
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.appCh == nil {
		log.WithField("package", "receiver").WithError(ErrChannelUnavailable).Warn("unable to cast zone")
		return false
	}
	msg := zoneParamsPayload{Type: "SET_LMS_PARAMS", Host: p.Host, Port: p.Port, Player: p.Player}
	if err := s.appCh.Send(&msg); err != nil {
		s.casting = false
		log.WithField("package", "receiver").WithError(err).Warn("unable to send zone params")
		return false
	}
	s.casting = true
	params := p
	s.lastParams = &params
	log.WithField("package", "receiver").WithFields(log.Fields{
		"host":   p.Host,
		"port":   p.Port,
		"player": p.Player,
	}).Info("casting zone")
	return true
}

// Stop ends the cast session. Calling it while not casting is a no-op
// success and sends no STOP frame. It always leaves the session in a
// state where a fresh CastZone will re-launch cleanly.
func (s *Session) Stop() bool {
	s.mu.Lock()
	if !s.casting {
		s.mu.Unlock()
		return true
	}
	stop := cast.StopHeader
	if _, err := s.conn.ReceiverChannel().SendWithID(&stop); err != nil {
		log.WithField("package", "receiver").WithError(err).Warn("unable to send STOP")
	}
	s.casting = false
	s.lastParams = nil
	s.resetAppLocked()
	s.mu.Unlock()

	if err := s.conn.Disconnect(); err != nil {
		log.WithField("package", "receiver").WithError(err).Warn("error disconnecting")
	}
	log.WithField("package", "receiver").Info("stopped casting")
	return true
}

func (s *Session) IsCasting() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.casting
}

// CastTarget reports the zone currently being cast, if any.
func (s *Session) CastTarget() (ZoneParams, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.casting || s.lastParams == nil {
		return ZoneParams{}, false
	}
	return *s.lastParams, true
}

// SendNowPlaying publishes a now-playing payload on the custom channel.
func (s *Session) SendNowPlaying(msg *nowplaying.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.casting || s.appCh == nil {
		return ErrChannelUnavailable
	}
	return s.appCh.Send(&nowPlayingPayload{Type: "NOW_PLAYING", Payload: msg})
}

// SendPause publishes the lightweight pause notice.
func (s *Session) SendPause() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.casting || s.appCh == nil {
		return ErrChannelUnavailable
	}
	return s.appCh.Send(&pausePayload{Type: "PAUSE"})
}

func (s *Session) connectLocked() error {
	if s.conn.Connected() {
		return nil
	}
	if err := s.conn.Connect(s.addr, s.port); err != nil {
		return err
	}
	// Fresh connection means fresh intrinsic channels, so these
	// subscriptions never double up.
	recv := s.conn.ReceiverChannel()
	recv.OnMessage("RECEIVER_STATUS", s.onReceiverStatus)
	recv.OnMessage("LAUNCH_ERROR", s.onLaunchError)
	return nil
}

func (s *Session) onReceiverStatus(data []byte) {
	var resp cast.ReceiverStatusResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		log.WithField("package", "receiver").WithError(err).Error("unable to unmarshal RECEIVER_STATUS")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var app *cast.Application
	for i := range resp.Status.Applications {
		if resp.Status.Applications[i].AppId == s.appID {
			app = &resp.Status.Applications[i]
			break
		}
	}

	if app == nil {
		s.resetAppLocked()
		s.casting = false
		s.lastParams = nil
		s.finishLaunchLocked(s.pending, ErrAppNotRunning)
		return
	}
	if app.TransportId == "" {
		// Listed but not yet addressable, wait for the next push.
		return
	}
	if app.TransportId != s.transportID {
		s.bindLocked(app.TransportId)
	}
	s.finishLaunchLocked(s.pending, nil)
}

func (s *Session) onLaunchError(data []byte) {
	reason, err := jsonparser.GetString(data, "reason")
	if err != nil || reason == "" {
		reason = "Launch failed"
	}
	s.mu.Lock()
	s.finishLaunchLocked(s.pending, errors.Wrap(ErrLaunchRejected, reason))
	s.mu.Unlock()
}

func (s *Session) handleDisconnect(cause error) {
	s.mu.Lock()
	s.resetAppLocked()
	s.casting = false
	s.lastParams = nil
	s.finishLaunchLocked(s.pending, ErrDisconnected)
	s.mu.Unlock()
}

// bindLocked creates the application channels addressed to a newly
// reported transportId.
func (s *Session) bindLocked(transportID string) {
	s.transportID = transportID
	s.appConnCh = s.conn.NewChannel(cast.DefaultSender, transportID, cast.NamespaceConnection)
	s.appCh = s.conn.NewChannel(cast.DefaultSender, transportID, s.namespace)

	connect := cast.ConnectHeader
	if err := s.appConnCh.Send(&connect); err != nil {
		log.WithField("package", "receiver").WithError(err).Warn("unable to open app connection channel")
	}
	// No reply protocol is defined for inbound app messages, just log
	// them.
	s.appCh.OnMessage("*", func(data []byte) {
		log.WithField("package", "receiver").Debugf("app message: %s", data)
	})
	log.WithField("package", "receiver").Infof("bound app transportId %s", transportID)
}

func (s *Session) resetAppLocked() {
	s.transportID = ""
	s.appConnCh = nil
	s.appCh = nil
}

func (s *Session) finishLaunchLocked(p *pendingLaunch, err error) {
	if p == nil || s.pending != p {
		return
	}
	s.pending = nil
	if p.timer != nil {
		p.timer.Stop()
	}
	p.err = err
	close(p.done)
}
