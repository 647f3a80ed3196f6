package dto

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// Entry is a single envelope stored in the relay.
type Entry struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Index addresses an Entry for a get request.
type Index struct {
	Key string `json:"key"`
}

// NotFound is the relay's error text for a key that has not been written yet.
// Clients keep polling on it; any other error text is fatal.
const NotFound = "not found"

// ManagerError is the error body returned by the relay.
type ManagerError struct {
	Error string `json:"error"`
}

// Result is the relay response envelope: exactly one of Ok or Err is set.
// An empty success, as returned by set, decodes as {"Ok": null}.
type Result[T any] struct {
	Ok  *T            `json:"Ok,omitempty"`
	Err *ManagerError `json:"Err,omitempty"`
}

// OkResult wraps a successful payload.
func OkResult[T any](v T) Result[T] {
	return Result[T]{Ok: &v}
}

// ErrResult wraps a relay error.
func ErrResult[T any](format string, args ...interface{}) Result[T] {
	return Result[T]{Err: &ManagerError{Error: fmt.Sprintf(format, args...)}}
}

// EmptyOk is the body the relay writes for successful writes.
var EmptyOk = json.RawMessage(`{"Ok":null}`)

// Params are the cohort parameters as posted to signupkeygen.
type Params struct {
	Parties   string `json:"parties"`
	Threshold string `json:"threshold"`
}

// NewParams formats numeric cohort parameters.
func NewParams(threshold, parties uint16) Params {
	return Params{
		Parties:   strconv.Itoa(int(parties)),
		Threshold: strconv.Itoa(int(threshold)),
	}
}

// Values parses the cohort parameters.
func (p Params) Values() (threshold, parties uint16, err error) {
	t, err := strconv.ParseUint(p.Threshold, 10, 16)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid threshold %q: %v", p.Threshold, err)
	}
	n, err := strconv.ParseUint(p.Parties, 10, 16)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid parties %q: %v", p.Parties, err)
	}
	return uint16(t), uint16(n), nil
}

// KeygenSignupRequest is posted as the JSON tuple [params, curve_name].
type KeygenSignupRequest struct {
	Params Params
	Curve  string
}

// MarshalJSON encodes the request as a two element array.
func (r KeygenSignupRequest) MarshalJSON() ([]byte, error) {
	return json.Marshal([]interface{}{r.Params, r.Curve})
}

// UnmarshalJSON decodes the two element array form.
func (r *KeygenSignupRequest) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if len(raw) != 2 {
		return fmt.Errorf("signupkeygen expects [params, curve], got %d elements", len(raw))
	}
	if err := json.Unmarshal(raw[0], &r.Params); err != nil {
		return err
	}
	return json.Unmarshal(raw[1], &r.Curve)
}

// PartySignup is the relay's answer to a keygen signup.
type PartySignup struct {
	Number uint16 `json:"number"`
	UUID   string `json:"uuid"`
}

// SigningSignupRequest is posted repeatedly while a signing room fills up.
type SigningSignupRequest struct {
	Threshold   uint16 `json:"threshold"`
	RoomID      string `json:"room_id"`
	PartyNumber uint16 `json:"party_number"` // ordinal of the signer's key share
	PartyUUID   string `json:"party_uuid"`
	CurveName   string `json:"curve_name"`
}

// SigningPartySignup is the relay's answer to a signing signup poll.
type SigningPartySignup struct {
	PartyOrder  uint16 `json:"party_order"`
	PartyUUID   string `json:"party_uuid"`
	RoomUUID    string `json:"room_uuid"`
	TotalJoined uint16 `json:"total_joined"`
}
