package gormkv

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ai-dispatch-be/pkg/kv"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Entry is the backing table for the Postgres KV store. The unique key
// constraint is what makes PutIfAbsent atomic.
type Entry struct {
	Key       string `gorm:"primaryKey;size:512"`
	Value     []byte
	Version   int64
	UpdatedAt time.Time
}

func (Entry) TableName() string {
	return "kv_entries"
}

// Store persists entries in a Postgres table through GORM.
type Store struct {
	db *gorm.DB
}

var _ kv.Store = &Store{}

func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// Migrate creates the backing table.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(&Entry{})
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var entry Entry
	err := s.db.WithContext(ctx).Where("key = ?", key).First(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("kv get %s: %w", key, err)
	}
	return entry.Value, true, nil
}

func (s *Store) Put(ctx context.Context, key string, value []byte) error {
	entry := Entry{Key: key, Value: value, Version: 1, UpdatedAt: time.Now()}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "key"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"value":      value,
			"version":    gorm.Expr("kv_entries.version + 1"),
			"updated_at": time.Now(),
		}),
	}).Create(&entry).Error
	if err != nil {
		return fmt.Errorf("kv put %s: %w", key, err)
	}
	return nil
}

func (s *Store) PutIfAbsent(ctx context.Context, key string, value []byte) error {
	entry := Entry{Key: key, Value: value, Version: 1, UpdatedAt: time.Now()}
	res := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoNothing: true,
	}).Create(&entry)
	if res.Error != nil {
		return fmt.Errorf("kv put-if-absent %s: %w", key, res.Error)
	}
	if res.RowsAffected == 0 {
		return kv.ErrKeyExists
	}
	return nil
}
