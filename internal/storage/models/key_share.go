package models

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// KeyShare holds a single party's key share bundle.
// It belongs to a KeyData record.
type KeyShare struct {
	gorm.Model
	KeyDataID    uuid.UUID `gorm:"type:uuid;uniqueIndex:idx_key_party" json:"-"`
	PartyOrdinal int       `gorm:"uniqueIndex:idx_key_party" json:"partyOrdinal"`
	ShareData    []byte    `json:"-"` // encoded bundle, never rendered
}
