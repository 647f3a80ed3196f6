package dto

// Session describes one DKG or signing run. It is immutable once negotiated.
type Session struct {
	Threshold  uint16 `json:"threshold"`
	PartyCount uint16 `json:"party_count"`
	Curve      string `json:"curve"`
	RoomID     string `json:"room_id,omitempty"`
}

// PartyAssignment is the ordinal handed to this process for a session.
// Ordinals run from 1 to the party count and are never reused within a session.
type PartyAssignment struct {
	Ordinal     uint16 `json:"ordinal"`
	SessionUUID string `json:"session_uuid"`
}
