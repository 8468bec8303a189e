// Package nowplaying builds the wire payload the receiver app renders.
// Building is a pure transformation of a playback snapshot plus
// whatever enrichment data the caller already has.
package nowplaying

import (
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/h2non/filetype"

	"github.com/zekimust-a11y/soundstream-sub000/lms"
)

// Onscreen playback states.
const (
	StatePlaying = "playing"
	StatePaused  = "paused"
	StateStopped = "stopped"
)

type Volume struct {
	Type    string `json:"type"`
	Min     int    `json:"min"`
	Max     int    `json:"max"`
	Value   int    `json:"value"`
	IsMuted bool   `json:"is_muted"`
}

type Output struct {
	Volume Volume `json:"volume"`
}

type OneLine struct {
	Line1 string `json:"line1"`
}

type TwoLine struct {
	Line1 string `json:"line1"`
	Line2 string `json:"line2"`
}

type ThreeLine struct {
	Line1 string `json:"line1"`
	Line2 string `json:"line2"`
	Line3 string `json:"line3"`
}

type TrackInfo struct {
	OneLine   OneLine   `json:"one_line"`
	TwoLine   TwoLine   `json:"two_line"`
	ThreeLine ThreeLine `json:"three_line"`
	Length    float64   `json:"length"`
	ImageKeys []string  `json:"image_keys"`
}

// Message is the NOW_PLAYING payload. It is never mutated after
// construction.
type Message struct {
	State        string    `json:"state"`
	SeekPosition float64   `json:"seek_position"`
	Output       Output    `json:"output"`
	NowPlaying   TrackInfo `json:"now_playing"`
	ImageURL     string    `json:"image_url"`
	ImageData    string    `json:"image_data,omitempty"`
	ArtistImages []string  `json:"artist_images"`
}

type Builder struct {
	lmsHost string
	lmsPort int
}

func NewBuilder(lmsHost string, lmsPort int) *Builder {
	return &Builder{lmsHost: lmsHost, lmsPort: lmsPort}
}

// Build returns nil when no track is queued; the caller must not send
// in that case.
func (b *Builder) Build(snap *lms.Snapshot, artistImages []string, cover []byte) *Message {
	if snap == nil || !snap.HasTrack {
		return nil
	}

	track := snap.Track
	if artistImages == nil {
		artistImages = []string{}
	}

	msg := &Message{
		State:        stateFor(snap.Mode),
		SeekPosition: snap.Elapsed,
		Output: Output{
			Volume: Volume{
				Type:    "number",
				Min:     0,
				Max:     100,
				Value:   clampVolume(snap.Volume),
				IsMuted: snap.Muted,
			},
		},
		NowPlaying: TrackInfo{
			OneLine:   OneLine{Line1: oneLine(track)},
			TwoLine:   TwoLine{Line1: track.Title, Line2: track.Artist},
			ThreeLine: ThreeLine{Line1: track.Title, Line2: track.Artist, Line3: track.Album},
			Length:    track.Duration,
			ImageKeys: imageKeys(track),
		},
		ImageURL:     b.artworkURL(track),
		ImageData:    dataURI(cover),
		ArtistImages: artistImages,
	}
	return msg
}

func stateFor(mode string) string {
	switch mode {
	case lms.ModePlay:
		return StatePlaying
	case lms.ModePause:
		return StatePaused
	default:
		return StateStopped
	}
}

func clampVolume(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

func oneLine(track lms.Track) string {
	if track.Artist == "" {
		return track.Title
	}
	return track.Title + " - " + track.Artist
}

func imageKeys(track lms.Track) []string {
	if track.CoverID == "" {
		return []string{}
	}
	return []string{track.CoverID}
}

// artworkURL resolves the cover image URL. Direct URLs win; relative
// ones and bare cover ids are resolved against the music server.
func (b *Builder) artworkURL(track lms.Track) string {
	if u := track.ArtworkURL; u != "" {
		if strings.HasPrefix(u, "http://") || strings.HasPrefix(u, "https://") {
			return u
		}
		return fmt.Sprintf("http://%s:%d/%s", b.lmsHost, b.lmsPort, strings.TrimPrefix(u, "/"))
	}
	if track.CoverID != "" {
		return fmt.Sprintf("http://%s:%d/music/%s/cover.jpg", b.lmsHost, b.lmsPort, track.CoverID)
	}
	return ""
}

func dataURI(cover []byte) string {
	if len(cover) == 0 {
		return ""
	}
	kind, err := filetype.Match(cover)
	if err != nil || kind == filetype.Unknown {
		return ""
	}
	return fmt.Sprintf("data:%s;base64,%s", kind.MIME.Value, base64.StdEncoding.EncodeToString(cover))
}
