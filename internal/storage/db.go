package storage

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"tss-cli/internal/config"
	"tss-cli/internal/logger"
	"tss-cli/internal/storage/models"
)

// InitDB opens the configured database and migrates the schema.
func InitDB(cfg config.DBConfig) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch cfg.Type {
	case "postgres":
		dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%d sslmode=%s TimeZone=%s",
			cfg.Host, cfg.User, cfg.Password, cfg.DBName, cfg.Port, cfg.SSLMode, cfg.TimeZone)
		dialector = postgres.Open(dsn)
	case "sqlite", "":
		dialector = sqlite.Open(cfg.DBName)
	default:
		return nil, fmt.Errorf("unsupported database type %q", cfg.Type)
	}

	db, err := gorm.Open(dialector, &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Silent)})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %v", err)
	}
	logger.Log.Info("Database connection successfully established.")

	if err := db.AutoMigrate(&models.KeyData{}, &models.KeyShare{}); err != nil {
		return nil, fmt.Errorf("failed to auto-migrate database: %v", err)
	}
	logger.Log.Info("Database schema migrated.")
	return db, nil
}

// DBStore keeps key shares in a SQL database. One database may hold the
// shares of several parties, keyed by key id and party ordinal.
type DBStore struct {
	db *gorm.DB
}

// NewDBStore creates a store on an initialized database, see InitDB.
func NewDBStore(db *gorm.DB) *DBStore {
	return &DBStore{db: db}
}

// SaveKeyShare stores rec, replacing an earlier share of the same party.
func (s *DBStore) SaveKeyShare(ctx context.Context, rec Record) error {
	keyID, err := uuid.Parse(rec.KeyID)
	if err != nil {
		return errors.Wrapf(err, "invalid key id %q", rec.KeyID)
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		keyRecord := models.KeyData{
			KeyID:     keyID,
			PublicKey: rec.PublicKey,
			Curve:     rec.Curve,
			Threshold: int(rec.Threshold),
			Parties:   int(rec.Parties),
		}
		if err := tx.Where(models.KeyData{KeyID: keyID}).FirstOrCreate(&keyRecord).Error; err != nil {
			return fmt.Errorf("failed to create key record: %v", err)
		}
		if keyRecord.PublicKey != rec.PublicKey {
			return fmt.Errorf("key %s already stored with public key %s", keyID, keyRecord.PublicKey)
		}

		var share models.KeyShare
		err := tx.Unscoped().
			Where("key_data_id = ? AND party_ordinal = ?", keyID, int(rec.PartyOrdinal)).
			First(&share).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			share = models.KeyShare{
				KeyDataID:    keyID,
				PartyOrdinal: int(rec.PartyOrdinal),
				ShareData:    rec.Data,
			}
			if err := tx.Create(&share).Error; err != nil {
				return fmt.Errorf("failed to create key share for party %d: %v", rec.PartyOrdinal, err)
			}
		case err != nil:
			return err
		default:
			if err := tx.Unscoped().Model(&share).Updates(map[string]interface{}{
				"share_data": rec.Data,
				"deleted_at": nil,
			}).Error; err != nil {
				return fmt.Errorf("failed to update key share for party %d: %v", rec.PartyOrdinal, err)
			}
		}
		logger.Log.Infof("Key share of party %d saved for key %s", rec.PartyOrdinal, keyID)
		return nil
	})
}

// LoadKeyShare returns the share of party ordinal for key keyID.
func (s *DBStore) LoadKeyShare(ctx context.Context, keyID string, ordinal uint16) (*Record, error) {
	id, err := uuid.Parse(keyID)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid key id %q", keyID)
	}

	var keyRecord models.KeyData
	err = s.db.WithContext(ctx).
		Preload("Shares", "party_ordinal = ?", int(ordinal)).
		First(&keyRecord, "key_id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errors.Wrapf(ErrNotFound, "key %s", keyID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find key with ID %s: %v", keyID, err)
	}
	if len(keyRecord.Shares) == 0 {
		return nil, errors.Wrapf(ErrNotFound, "key %s has no share for party %d", keyID, ordinal)
	}

	return &Record{
		KeyID:        keyRecord.KeyID.String(),
		Curve:        keyRecord.Curve,
		Threshold:    uint16(keyRecord.Threshold),
		Parties:      uint16(keyRecord.Parties),
		PartyOrdinal: ordinal,
		PublicKey:    keyRecord.PublicKey,
		Data:         keyRecord.Shares[0].ShareData,
	}, nil
}
