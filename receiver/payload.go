package receiver

import "github.com/zekimust-a11y/soundstream-sub000/nowplaying"

// ZoneParams identifies the playback zone the receiver app should
// mirror.
type ZoneParams struct {
	Host   string
	Port   int
	Player string
}

type zoneParamsPayload struct {
	Type   string `json:"type"`
	Host   string `json:"host"`
	Port   int    `json:"port"`
	Player string `json:"player"`
}

type nowPlayingPayload struct {
	Type    string              `json:"type"`
	Payload *nowplaying.Message `json:"payload"`
}

type pausePayload struct {
	Type    string   `json:"type"`
	Payload struct{} `json:"payload"`
}
