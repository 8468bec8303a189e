// Package bridge polls the music server and turns its transport state
// into cast start/stop/update decisions, without thrashing the cast
// session on transient pauses.
package bridge

import (
	"context"
	"sync"
	"time"

	"github.com/zekimust-a11y/soundstream-sub000/lms"
	"github.com/zekimust-a11y/soundstream-sub000/log"
	"github.com/zekimust-a11y/soundstream-sub000/nowplaying"
	"github.com/zekimust-a11y/soundstream-sub000/receiver"
)

const (
	defaultPollInterval = time.Millisecond * 2000
	defaultPauseTimeout = time.Millisecond * 5500
)

// Caster is the receiver session surface the bridge drives. The bridge
// never touches the transport underneath it.
type Caster interface {
	CastZone(ctx context.Context, p receiver.ZoneParams) bool
	Stop() bool
	IsCasting() bool
	SendNowPlaying(msg *nowplaying.Message) error
	SendPause() error
}

// Source is the polled external playback source.
type Source interface {
	Host() string
	Port() int
	Players(ctx context.Context) ([]lms.Player, error)
	Status(ctx context.Context, playerID string) (*lms.Snapshot, error)
	CoverArt(ctx context.Context, coverID string) ([]byte, error)
}

// ImageSource provides artist background images. Optional.
type ImageSource interface {
	ArtistImages(ctx context.Context, artist string) []string
}

type Bridge struct {
	caster  Caster
	source  Source
	images  ImageSource
	builder *nowplaying.Builder

	pollInterval time.Duration
	pauseTimeout time.Duration

	mu          sync.Mutex
	preferred   string
	playerID    string
	prevMode    string
	pauseTimer  *time.Timer
	pauseGen    int
	lastCoverID string
	coverData   []byte
}

type Option func(*Bridge)

func WithPollInterval(d time.Duration) Option {
	return func(b *Bridge) {
		if d > 0 {
			b.pollInterval = d
		}
	}
}

func WithPauseTimeout(d time.Duration) Option {
	return func(b *Bridge) {
		if d > 0 {
			b.pauseTimeout = d
		}
	}
}

// WithPreferredPlayer pins the player to mirror; it always wins over
// the auto-selected first player.
func WithPreferredPlayer(playerID string) Option {
	return func(b *Bridge) {
		b.preferred = playerID
	}
}

func WithImageSource(images ImageSource) Option {
	return func(b *Bridge) {
		b.images = images
	}
}

func New(caster Caster, source Source, opts ...Option) *Bridge {
	b := &Bridge{
		caster:       caster,
		source:       source,
		builder:      nowplaying.NewBuilder(source.Host(), source.Port()),
		pollInterval: defaultPollInterval,
		pauseTimeout: defaultPauseTimeout,
	}
	for _, o := range opts {
		o(b)
	}
	return b
}

// SetPreferredPlayer changes the pinned player. The switch takes
// effect on the next poll tick, without any debounce.
func (b *Bridge) SetPreferredPlayer(playerID string) {
	b.mu.Lock()
	b.preferred = playerID
	b.mu.Unlock()
}

// Run polls until the context is cancelled, then stops any active
// cast.
func (b *Bridge) Run(ctx context.Context) error {
	log.WithField("package", "bridge").Infof("polling every %s", b.pollInterval)
	t := time.NewTicker(b.pollInterval)
	defer t.Stop()
	for {
		b.Tick(ctx)
		select {
		case <-ctx.Done():
			b.cancelPauseTimer()
			b.caster.Stop()
			return ctx.Err()
		case <-t.C:
		}
	}
}

// Tick runs one poll cycle. An unreachable or malformed status skips
// the tick's decision entirely.
func (b *Bridge) Tick(ctx context.Context) {
	playerID := b.selectPlayer(ctx)
	if playerID == "" {
		return
	}

	snap, err := b.source.Status(ctx, playerID)
	if err != nil {
		log.WithField("package", "bridge").WithError(err).Warn("status fetch failed, skipping tick")
		return
	}

	b.decide(ctx, playerID, snap)

	b.mu.Lock()
	b.prevMode = snap.Mode
	b.mu.Unlock()
}

func (b *Bridge) decide(ctx context.Context, playerID string, snap *lms.Snapshot) {
	switch {
	case snap.Mode == lms.ModePlay && snap.HasTrack:
		b.cancelPauseTimer()
		// CastZone is idempotent for an unchanged target, so this
		// also picks up player switches and retries failed attempts.
		b.caster.CastZone(ctx, receiver.ZoneParams{
			Host:   b.source.Host(),
			Port:   b.source.Port(),
			Player: playerID,
		})

	case snap.Mode == lms.ModeStop || !snap.HasTrack:
		// Stop is immediate, never debounced.
		b.cancelPauseTimer()
		if b.caster.IsCasting() {
			b.caster.Stop()
		}

	case snap.Mode == lms.ModePause:
		if b.caster.IsCasting() {
			b.armPauseTimer()
		}
	}

	if b.caster.IsCasting() && snap.HasTrack {
		b.publish(ctx, snap)
	}
}

// publish sends the per-tick update: a lightweight pause notice when
// pause is first observed, a full now-playing payload otherwise.
func (b *Bridge) publish(ctx context.Context, snap *lms.Snapshot) {
	b.mu.Lock()
	enteringPause := snap.Mode == lms.ModePause && b.prevMode != lms.ModePause
	b.mu.Unlock()

	if enteringPause {
		if err := b.caster.SendPause(); err != nil {
			log.WithField("package", "bridge").WithError(err).Debug("unable to send pause notice")
		}
		return
	}

	var images []string
	if b.images != nil {
		images = b.images.ArtistImages(ctx, snap.Track.Artist)
	}
	msg := b.builder.Build(snap, images, b.coverFor(ctx, snap))
	if msg == nil {
		return
	}
	if err := b.caster.SendNowPlaying(msg); err != nil {
		log.WithField("package", "bridge").WithError(err).Debug("unable to send now playing")
	}
}

// selectPlayer resolves which player to mirror: the preferred player
// when configured, otherwise the first connected player the server
// reports.
func (b *Bridge) selectPlayer(ctx context.Context) string {
	b.mu.Lock()
	preferred := b.preferred
	current := b.playerID
	b.mu.Unlock()

	if preferred != "" {
		if current != preferred {
			b.mu.Lock()
			b.playerID = preferred
			b.mu.Unlock()
			log.WithField("package", "bridge").Infof("using preferred player %s", preferred)
		}
		return preferred
	}
	if current != "" {
		return current
	}

	players, err := b.source.Players(ctx)
	if err != nil {
		log.WithField("package", "bridge").WithError(err).Warn("unable to list players")
		return ""
	}
	pick := ""
	for _, p := range players {
		if p.Connected {
			pick = p.ID
			break
		}
	}
	if pick == "" && len(players) > 0 {
		pick = players[0].ID
	}
	if pick == "" {
		return ""
	}

	b.mu.Lock()
	b.playerID = pick
	b.mu.Unlock()
	log.WithField("package", "bridge").Infof("auto-selected player %s", pick)
	return pick
}

// coverFor fetches cover bytes once per track change; failures leave
// the payload without embedded image data.
func (b *Bridge) coverFor(ctx context.Context, snap *lms.Snapshot) []byte {
	id := snap.Track.CoverID
	if id == "" {
		b.mu.Lock()
		b.lastCoverID = ""
		b.coverData = nil
		b.mu.Unlock()
		return nil
	}

	b.mu.Lock()
	if id == b.lastCoverID {
		data := b.coverData
		b.mu.Unlock()
		return data
	}
	b.mu.Unlock()

	data, err := b.source.CoverArt(ctx, id)
	if err != nil {
		log.WithField("package", "bridge").WithError(err).Debugf("unable to fetch cover %s", id)
		data = nil
	}
	b.mu.Lock()
	b.lastCoverID = id
	b.coverData = data
	b.mu.Unlock()
	return data
}

// At most one pause timer exists; arming while armed is a no-op.
func (b *Bridge) armPauseTimer() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.pauseTimer != nil {
		return
	}
	b.pauseGen++
	gen := b.pauseGen
	b.pauseTimer = time.AfterFunc(b.pauseTimeout, func() { b.pauseExpired(gen) })
	log.WithField("package", "bridge").Debugf("pause observed, stopping in %s unless play resumes", b.pauseTimeout)
}

func (b *Bridge) cancelPauseTimer() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.pauseTimer == nil {
		return
	}
	b.pauseTimer.Stop()
	b.pauseTimer = nil
	b.pauseGen++
}

func (b *Bridge) pauseExpired(gen int) {
	b.mu.Lock()
	if b.pauseGen != gen {
		b.mu.Unlock()
		return
	}
	b.pauseTimer = nil
	b.mu.Unlock()

	log.WithField("package", "bridge").Info("pause held past timeout, stopping cast")
	b.caster.Stop()
}
