package models

import (
	"github.com/google/uuid"
)

// KeyData describes a group key this node holds a share of.
type KeyData struct {
	KeyID     uuid.UUID  `gorm:"type:uuid;primary_key;" json:"keyId"`
	PublicKey string     `gorm:"type:varchar(200);uniqueIndex" json:"publicKey"` // hex of the compressed group key
	Shares    []KeyShare `gorm:"foreignKey:KeyDataID;references:KeyID"`
	Curve     string     `gorm:"type:varchar(16)" json:"curve"`
	Threshold int        `json:"threshold"`
	Parties   int        `json:"parties"`
}
