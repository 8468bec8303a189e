package lms

import (
	"strconv"

	"github.com/buger/jsonparser"
)

// Transport modes reported by the server.
const (
	ModePlay  = "play"
	ModePause = "pause"
	ModeStop  = "stop"
)

type Track struct {
	Title      string
	Artist     string
	Album      string
	CoverID    string
	ArtworkURL string
	Duration   float64
}

// Snapshot is the normalized transport status of one player for one
// poll tick. It is rebuilt every tick and never persisted.
type Snapshot struct {
	Mode     string
	HasTrack bool
	Elapsed  float64
	Volume   int
	Muted    bool
	Track    Track
}

// snapshotFromStatus is the only place the server's field aliases are
// known. Older firmwares report "mixer volume"/"mixer muting" with a
// space, newer ones use underscores, and numeric values sometimes
// arrive as strings.
func snapshotFromStatus(result []byte) *Snapshot {
	s := &Snapshot{}
	s.Mode, _ = jsonparser.GetString(result, "mode")
	if t, err := jsonparser.GetFloat(result, "time"); err == nil {
		s.Elapsed = t
	}
	if v, ok := numericAlias(result, "mixer volume", "mixer_volume"); ok {
		s.Volume = int(v)
	}
	if m, ok := numericAlias(result, "mixer muting", "mixer_muting"); ok {
		s.Muted = m != 0
	}

	jsonparser.ArrayEach(result, func(value []byte, dataType jsonparser.ValueType, offset int, _ error) {
		if s.HasTrack {
			return
		}
		s.HasTrack = true
		s.Track.Title, _ = jsonparser.GetString(value, "title")
		s.Track.Artist, _ = jsonparser.GetString(value, "artist")
		s.Track.Album, _ = jsonparser.GetString(value, "album")
		s.Track.CoverID, _ = jsonparser.GetString(value, "coverid")
		s.Track.ArtworkURL, _ = jsonparser.GetString(value, "artwork_url")
		if d, ok := numericAlias(value, "duration"); ok {
			s.Track.Duration = d
		}
	}, "playlist_loop")

	return s
}

func numericAlias(data []byte, keys ...string) (float64, bool) {
	for _, key := range keys {
		value, dataType, _, err := jsonparser.Get(data, key)
		if err != nil {
			continue
		}
		switch dataType {
		case jsonparser.Number, jsonparser.String:
			if f, err := strconv.ParseFloat(string(value), 64); err == nil {
				return f, true
			}
		}
	}
	return 0, false
}
