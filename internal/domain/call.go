package domain

import "time"

type RoomID string

// MediaKind tells what the caller intends to open. The relay never touches
// the media itself, this is display metadata for the callee.
type MediaKind string

const (
	MediaAudio   MediaKind = "audio"
	MediaVideo   MediaKind = "video"
	MediaUnknown MediaKind = "unknown"
)

// ParseMediaKind maps anything off the wire onto a known kind.
func ParseMediaKind(raw string) MediaKind {
	switch MediaKind(raw) {
	case MediaAudio, MediaVideo:
		return MediaKind(raw)
	}
	return MediaUnknown
}

// Participant pins a logical user to the single connection a call runs on.
type Participant struct {
	UserID UserID `json:"userId"`
	ConnID ConnID `json:"connectionId"`
}

// CallSession is a passive audit record of one call, keyed by room.
// It is never authoritative call state; signaling stays stateless per-event.
type CallSession struct {
	RoomID       RoomID
	Participants []Participant
	Media        MediaKind
	StartedAt    time.Time
	EndedAt      time.Time
}
