package bridge_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"github.com/zekimust-a11y/soundstream-sub000/bridge"
	"github.com/zekimust-a11y/soundstream-sub000/lms"
	"github.com/zekimust-a11y/soundstream-sub000/nowplaying"
	"github.com/zekimust-a11y/soundstream-sub000/receiver"
)

type fakeCaster struct {
	mu         sync.Mutex
	casting    bool
	castFails  bool
	castCalls  []receiver.ZoneParams
	stops      int
	nowPlaying []*nowplaying.Message
	pauses     int
}

func (c *fakeCaster) CastZone(ctx context.Context, p receiver.ZoneParams) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.castCalls = append(c.castCalls, p)
	if c.castFails {
		c.casting = false
		return false
	}
	c.casting = true
	return true
}

func (c *fakeCaster) Stop() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.casting {
		c.stops++
	}
	c.casting = false
	return true
}

func (c *fakeCaster) IsCasting() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.casting
}

func (c *fakeCaster) SendNowPlaying(msg *nowplaying.Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.casting {
		return receiver.ErrChannelUnavailable
	}
	c.nowPlaying = append(c.nowPlaying, msg)
	return nil
}

func (c *fakeCaster) SendPause() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.casting {
		return receiver.ErrChannelUnavailable
	}
	c.pauses++
	return nil
}

func (c *fakeCaster) setCastFails(v bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.castFails = v
}

func (c *fakeCaster) stopCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stops
}

func (c *fakeCaster) castCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.castCalls)
}

func (c *fakeCaster) pauseCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pauses
}

func (c *fakeCaster) sentCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.nowPlaying)
}

type fakeSource struct {
	mu        sync.Mutex
	players   []lms.Player
	playerErr error
	snap      lms.Snapshot
	statusErr error
	statusFor []string
	cover     []byte
	coverErr  error
}

func (s *fakeSource) Host() string { return "10.0.0.2" }
func (s *fakeSource) Port() int    { return 9000 }

func (s *fakeSource) Players(ctx context.Context) ([]lms.Player, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.players, s.playerErr
}

func (s *fakeSource) Status(ctx context.Context, playerID string) (*lms.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.statusFor = append(s.statusFor, playerID)
	if s.statusErr != nil {
		return nil, s.statusErr
	}
	snap := s.snap
	return &snap, nil
}

func (s *fakeSource) CoverArt(ctx context.Context, coverID string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cover, s.coverErr
}

func (s *fakeSource) setSnapshot(snap lms.Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snap = snap
}

func (s *fakeSource) setStatusErr(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.statusErr = err
}

func (s *fakeSource) statusRequests() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string{}, s.statusFor...)
}

func playingSnap() lms.Snapshot {
	return lms.Snapshot{
		Mode:     lms.ModePlay,
		HasTrack: true,
		Elapsed:  12.5,
		Volume:   60,
		Track: lms.Track{
			Title:    "Roads",
			Artist:   "Portishead",
			Album:    "Dummy",
			Duration: 307,
		},
	}
}

func pausedSnap() lms.Snapshot {
	snap := playingSnap()
	snap.Mode = lms.ModePause
	return snap
}

func stoppedSnap() lms.Snapshot {
	snap := playingSnap()
	snap.Mode = lms.ModeStop
	snap.HasTrack = false
	return snap
}

func newBridge(caster *fakeCaster, source *fakeSource, opts ...bridge.Option) *bridge.Bridge {
	opts = append([]bridge.Option{bridge.WithPreferredPlayer("aa:bb")}, opts...)
	return bridge.New(caster, source, opts...)
}

func TestPlayStartsCasting(t *testing.T) {
	assertions := require.New(t)
	caster := &fakeCaster{}
	source := &fakeSource{snap: playingSnap()}
	b := newBridge(caster, source)

	b.Tick(context.Background())

	assertions.Equal(1, caster.castCount())
	assertions.Equal(receiver.ZoneParams{Host: "10.0.0.2", Port: 9000, Player: "aa:bb"}, caster.castCalls[0])
	assertions.Equal(1, caster.sentCount())
	msg := caster.nowPlaying[0]
	assertions.Equal(nowplaying.StatePlaying, msg.State)
	assertions.Equal("Roads", msg.NowPlaying.ThreeLine.Line1)
}

func TestResumeWithinTimeoutKeepsCasting(t *testing.T) {
	assertions := require.New(t)
	caster := &fakeCaster{}
	source := &fakeSource{snap: playingSnap()}
	b := newBridge(caster, source, bridge.WithPauseTimeout(time.Millisecond*60))

	b.Tick(context.Background())
	assertions.True(caster.IsCasting())

	source.setSnapshot(pausedSnap())
	b.Tick(context.Background())
	assertions.Equal(1, caster.pauseCount())
	assertions.Equal(0, caster.stopCount())

	// Play resumes before the timeout fires.
	time.Sleep(time.Millisecond * 20)
	source.setSnapshot(playingSnap())
	b.Tick(context.Background())

	time.Sleep(time.Millisecond * 100)
	assertions.Equal(0, caster.stopCount())
	assertions.True(caster.IsCasting())
}

func TestPauseHeldPastTimeoutStopsOnce(t *testing.T) {
	assertions := require.New(t)
	caster := &fakeCaster{}
	source := &fakeSource{snap: playingSnap()}
	b := newBridge(caster, source, bridge.WithPauseTimeout(time.Millisecond*40))

	b.Tick(context.Background())
	source.setSnapshot(pausedSnap())
	b.Tick(context.Background())
	b.Tick(context.Background())
	b.Tick(context.Background())

	time.Sleep(time.Millisecond * 120)
	assertions.Equal(1, caster.stopCount())
	assertions.False(caster.IsCasting())

	// Still paused, still stopped: nothing new happens.
	b.Tick(context.Background())
	time.Sleep(time.Millisecond * 80)
	assertions.Equal(1, caster.stopCount())
}

func TestStopIsImmediateAndCancelsPauseTimer(t *testing.T) {
	assertions := require.New(t)
	caster := &fakeCaster{}
	source := &fakeSource{snap: playingSnap()}
	b := newBridge(caster, source, bridge.WithPauseTimeout(time.Millisecond*40))

	b.Tick(context.Background())
	source.setSnapshot(pausedSnap())
	b.Tick(context.Background())

	// Stop arrives before the pause timer fires.
	source.setSnapshot(stoppedSnap())
	b.Tick(context.Background())
	assertions.Equal(1, caster.stopCount())

	// The dead timer never produces a second stop.
	time.Sleep(time.Millisecond * 100)
	assertions.Equal(1, caster.stopCount())
}

func TestEmptyPlaylistStops(t *testing.T) {
	assertions := require.New(t)
	caster := &fakeCaster{}
	source := &fakeSource{snap: playingSnap()}
	b := newBridge(caster, source)

	b.Tick(context.Background())
	assertions.True(caster.IsCasting())

	snap := playingSnap()
	snap.HasTrack = false
	snap.Track = lms.Track{}
	source.setSnapshot(snap)
	b.Tick(context.Background())
	assertions.Equal(1, caster.stopCount())
}

func TestFailedCastRetriesNextTick(t *testing.T) {
	assertions := require.New(t)
	caster := &fakeCaster{castFails: true}
	source := &fakeSource{snap: playingSnap()}
	b := newBridge(caster, source)

	b.Tick(context.Background())
	assertions.False(caster.IsCasting())
	assertions.Equal(0, caster.sentCount())

	caster.setCastFails(false)
	b.Tick(context.Background())
	assertions.Equal(2, caster.castCount())
	assertions.True(caster.IsCasting())
	assertions.Equal(1, caster.sentCount())
}

func TestStatusErrorSkipsTick(t *testing.T) {
	assertions := require.New(t)
	caster := &fakeCaster{}
	source := &fakeSource{snap: playingSnap()}
	b := newBridge(caster, source)

	b.Tick(context.Background())
	assertions.True(caster.IsCasting())

	source.setStatusErr(errors.New("connection refused"))
	b.Tick(context.Background())
	assertions.True(caster.IsCasting())
	assertions.Equal(0, caster.stopCount())
	assertions.Equal(1, caster.castCount())
}

func TestPausedTicksKeepPublishing(t *testing.T) {
	assertions := require.New(t)
	caster := &fakeCaster{}
	source := &fakeSource{snap: playingSnap()}
	b := newBridge(caster, source, bridge.WithPauseTimeout(time.Second*5))

	b.Tick(context.Background())
	assertions.Equal(1, caster.sentCount())

	// First paused tick sends the lightweight notice only.
	source.setSnapshot(pausedSnap())
	b.Tick(context.Background())
	assertions.Equal(1, caster.pauseCount())
	assertions.Equal(1, caster.sentCount())

	// Later paused ticks go back to full payloads.
	b.Tick(context.Background())
	assertions.Equal(1, caster.pauseCount())
	assertions.Equal(2, caster.sentCount())
	assertions.Equal(nowplaying.StatePaused, caster.nowPlaying[1].State)
}

func TestAutoSelectsFirstConnectedPlayer(t *testing.T) {
	assertions := require.New(t)
	caster := &fakeCaster{}
	source := &fakeSource{
		snap: playingSnap(),
		players: []lms.Player{
			{ID: "11:11", Name: "Attic", Connected: false},
			{ID: "22:22", Name: "Kitchen", Connected: true},
		},
	}
	b := bridge.New(caster, source)

	b.Tick(context.Background())
	assertions.Equal([]string{"22:22"}, source.statusRequests())
	assertions.Equal("22:22", caster.castCalls[0].Player)

	// The pick is sticky across ticks.
	b.Tick(context.Background())
	assertions.Equal([]string{"22:22", "22:22"}, source.statusRequests())
}

func TestPreferredPlayerSwitchesImmediately(t *testing.T) {
	assertions := require.New(t)
	caster := &fakeCaster{}
	source := &fakeSource{snap: playingSnap()}
	b := newBridge(caster, source)

	b.Tick(context.Background())
	assertions.Equal([]string{"aa:bb"}, source.statusRequests())

	b.SetPreferredPlayer("cc:dd")
	b.Tick(context.Background())
	assertions.Equal([]string{"aa:bb", "cc:dd"}, source.statusRequests())
	assertions.Equal("cc:dd", caster.castCalls[1].Player)
}

func TestNoPlayersNoDecision(t *testing.T) {
	assertions := require.New(t)
	caster := &fakeCaster{}
	source := &fakeSource{snap: playingSnap()}
	b := bridge.New(caster, source)

	b.Tick(context.Background())
	assertions.Equal(0, caster.castCount())
	assertions.Empty(source.statusRequests())
}

func TestRunStopsCastOnCancel(t *testing.T) {
	assertions := require.New(t)
	caster := &fakeCaster{}
	source := &fakeSource{snap: playingSnap()}
	b := newBridge(caster, source, bridge.WithPollInterval(time.Millisecond*10))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- b.Run(ctx) }()

	deadline := time.After(time.Second)
	for caster.castCount() == 0 {
		select {
		case <-deadline:
			t.Fatal("bridge never cast")
		case <-time.After(time.Millisecond * 5):
		}
	}
	cancel()

	err := <-done
	assertions.ErrorIs(err, context.Canceled)
	assertions.Equal(1, caster.stopCount())
	assertions.False(caster.IsCasting())
}
