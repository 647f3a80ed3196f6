package session

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"tss-cli/internal/dto"
)

// keygenSlot is the most recent ordinal handed out for one cohort shape.
type keygenSlot struct {
	Number uint16
	UUID   string
}

// member is one signer waiting in, or seated in, a signing room.
type member struct {
	PartyUUID  string
	KeyOrdinal uint16
	LastPing   time.Time
	JoinedAt   time.Time
}

// Room is the relay's view of a signing room identified by a caller-chosen id.
type Room struct {
	ID        string
	Threshold uint16
	Curve     string
	UUID      string // empty until the quorum is complete
	ClosedAt  time.Time
	members   []*member
}

// Manager handles the keygen signups and signing rooms of a relay.
type Manager struct {
	mu         sync.Mutex
	keygen     map[dto.Session]*keygenSlot
	rooms      map[string]*Room
	staleAfter time.Duration
	roomTTL    time.Duration
	now        func() time.Time
}

// NewManager creates a new session manager. Signers that have not polled for
// staleAfter are evicted from rooms that are still filling up; a closed room
// is reserved for roomTTL before its id can be reused.
func NewManager(staleAfter, roomTTL time.Duration) *Manager {
	return &Manager{
		keygen:     make(map[dto.Session]*keygenSlot),
		rooms:      make(map[string]*Room),
		staleAfter: staleAfter,
		roomTTL:    roomTTL,
		now:        time.Now,
	}
}

// SignupKeygen assigns the next free ordinal of the current keygen session for
// the given cohort shape, opening a new session once the previous one is full.
func (m *Manager) SignupKeygen(params dto.Params, curve string) (dto.PartySignup, error) {
	threshold, parties, err := params.Values()
	if err != nil {
		return dto.PartySignup{}, err
	}
	if parties == 0 || threshold >= parties {
		return dto.PartySignup{}, fmt.Errorf("invalid cohort: threshold %d, parties %d", threshold, parties)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	key := dto.Session{Threshold: threshold, PartyCount: parties, Curve: curve}
	slot, exists := m.keygen[key]
	if !exists || slot.Number >= parties {
		slot = &keygenSlot{Number: 1, UUID: uuid.New().String()}
		m.keygen[key] = slot
	} else {
		slot.Number++
	}
	return dto.PartySignup{Number: slot.Number, UUID: slot.UUID}, nil
}

// SignupSign registers or refreshes a signer in a room. The room closes, and
// receives its uuid, when threshold+1 signers are present; ordinals are fixed
// from that moment on.
func (m *Manager) SignupSign(req dto.SigningSignupRequest) (dto.SigningPartySignup, error) {
	if req.RoomID == "" {
		return dto.SigningPartySignup{}, fmt.Errorf("room id is required")
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()

	room, exists := m.rooms[req.RoomID]
	if exists && room.UUID != "" && room.seat(req.PartyUUID) == 0 && now.Sub(room.ClosedAt) > m.roomTTL {
		exists = false
	}
	if !exists {
		room = &Room{ID: req.RoomID, Threshold: req.Threshold, Curve: req.CurveName}
		m.rooms[req.RoomID] = room
	}
	if room.Threshold != req.Threshold || room.Curve != req.CurveName {
		return dto.SigningPartySignup{}, fmt.Errorf("room %s expects threshold %d on %s", room.ID, room.Threshold, room.Curve)
	}

	if room.UUID != "" {
		order := room.seat(req.PartyUUID)
		if order == 0 {
			return dto.SigningPartySignup{}, fmt.Errorf("room %s is full", room.ID)
		}
		room.members[order-1].LastPing = now
		return room.answer(order), nil
	}

	room.evictStale(now, m.staleAfter)

	order := room.seat(req.PartyUUID)
	if order == 0 {
		room.members = append(room.members, &member{
			PartyUUID:  uuid.New().String(),
			KeyOrdinal: req.PartyNumber,
			JoinedAt:   now,
			LastPing:   now,
		})
		order = uint16(len(room.members))
	} else {
		room.members[order-1].LastPing = now
	}

	if len(room.members) == int(room.Threshold)+1 {
		room.UUID = uuid.New().String()
		room.ClosedAt = now
	}
	return room.answer(order), nil
}

// GetRoom returns a snapshot of a room.
func (m *Manager) GetRoom(id string) (Room, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	room, exists := m.rooms[id]
	if !exists {
		return Room{}, false
	}
	return *room, true
}

// seat returns the 1-based order of a party in the room, or 0.
func (r *Room) seat(partyUUID string) uint16 {
	if partyUUID == "" {
		return 0
	}
	for i, mb := range r.members {
		if mb.PartyUUID == partyUUID {
			return uint16(i + 1)
		}
	}
	return 0
}

// evictStale drops silent signers; the survivors keep their join order and
// are renumbered densely.
func (r *Room) evictStale(now time.Time, staleAfter time.Duration) {
	if staleAfter <= 0 {
		return
	}
	kept := r.members[:0]
	for _, mb := range r.members {
		if now.Sub(mb.LastPing) <= staleAfter {
			kept = append(kept, mb)
		}
	}
	r.members = kept
}

func (r *Room) answer(order uint16) dto.SigningPartySignup {
	return dto.SigningPartySignup{
		PartyOrder:  order,
		PartyUUID:   r.members[order-1].PartyUUID,
		RoomUUID:    r.UUID,
		TotalJoined: uint16(len(r.members)),
	}
}
