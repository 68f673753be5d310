package protocol

import (
	"encoding/json"
	"errors"
)

// Message kinds exchanged between clients and the gateway. The set is fixed
// at compile time; the gateway's dispatch table only ever maps these values.
const (
	TypeConnected       = "connected"
	TypeFindGame        = "find_game"
	TypeSearching       = "searching"
	TypeGameFound       = "game_found"
	TypeSessionNotFound = "session_not_found"
)

// Envelope is the wire format for every inbound client frame.
// Data is left raw so each handler decodes only its own payload.
type Envelope struct {
	Type      string          `json:"type"`
	Data      json.RawMessage `json:"data,omitempty"`
	Recipient Recipient       `json:"recipient,omitempty"`
}

// Message is an outbound frame. Data is marshalled as-is.
type Message struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}

// FindGameData is the payload of a find_game request. Rating is kept as a
// json.Number so a non-integer value can be rejected instead of silently
// truncated.
type FindGameData struct {
	Rating json.Number `json:"rating"`
}

// GameFoundData is sent to both players once their session is reachable.
type GameFoundData struct {
	GameID    string `json:"gameId"`
	SessionID string `json:"sessionId"`
	IP        string `json:"ip"`
	Port      int    `json:"port"`
}

// SessionNotFoundData is sent to both players when session provisioning
// gave up before the session became reachable.
type SessionNotFoundData struct {
	GameID string `json:"gameId"`
}

// Recipient addresses one or many players. On the wire it is either a JSON
// string or an array of strings; in memory it is always a slice.
type Recipient []string

func (r Recipient) MarshalJSON() ([]byte, error) {
	if len(r) == 1 {
		return json.Marshal(r[0])
	}
	return json.Marshal([]string(r))
}

func (r *Recipient) UnmarshalJSON(b []byte) error {
	var single string
	if err := json.Unmarshal(b, &single); err == nil {
		*r = Recipient{single}
		return nil
	}
	var many []string
	if err := json.Unmarshal(b, &many); err == nil {
		*r = Recipient(many)
		return nil
	}
	return errors.New("recipient must be a string or an array of strings")
}
