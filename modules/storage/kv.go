package storage

import (
	"fmt"
	"log"
	"strconv"
	"time"

	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Slot keys for the persisted store state. Each cache slot occupies two rows:
// the serialized collection under the key itself and the write time (epoch
// milliseconds) under the key plus the timestamp suffix.
const (
	KeyProductsCache = "products_cache"
	KeyCartCache     = "cart_cache"
	KeyAuthToken     = "auth_token"

	timestampSuffix = "_timestamp"
)

// Entry is one key-value row.
type Entry struct {
	Key       string    `gorm:"primarykey;size:64" json:"key"`
	Value     []byte    `json:"value"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName returns the table name for Entry.
func (Entry) TableName() string {
	return "kv_entries"
}

// Store provides raw key-value access plus the cache envelope helpers.
type Store struct {
	db *gorm.DB
}

// NewStore creates a new Store on db.
func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// Migrate runs database migrations for the key-value table.
func (s *Store) Migrate() error {
	return s.db.AutoMigrate(&Entry{})
}

// Put writes value under key, replacing any previous value.
func (s *Store) Put(key string, value []byte) error {
	entry := Entry{Key: key, Value: value}
	if err := s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		UpdateAll: true,
	}).Create(&entry).Error; err != nil {
		return fmt.Errorf("failed to put %q: %w", key, err)
	}
	return nil
}

// Get reads the value under key. The second return is false when absent.
func (s *Store) Get(key string) ([]byte, bool, error) {
	var entry Entry
	if err := s.db.First(&entry, "key = ?", key).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to get %q: %w", key, err)
	}
	return entry.Value, true, nil
}

// Delete removes the value under key. Deleting an absent key is not an error.
func (s *Store) Delete(key string) error {
	if err := s.db.Delete(&Entry{}, "key = ?", key).Error; err != nil {
		return fmt.Errorf("failed to delete %q: %w", key, err)
	}
	return nil
}

// SaveEnvelope persists payload under key together with the write timestamp.
// Both rows are written concurrently.
func (s *Store) SaveEnvelope(key string, payload []byte) error {
	now := strconv.FormatInt(time.Now().UnixMilli(), 10)

	var g errgroup.Group
	g.Go(func() error { return s.Put(key, payload) })
	g.Go(func() error { return s.Put(key+timestampSuffix, []byte(now)) })
	return g.Wait()
}

// LoadEnvelope reads the payload and write time persisted under key. It fails
// soft: a missing row, an I/O error or an unparseable timestamp is logged and
// reported as absent, so a corrupt cache degrades to a fresh remote fetch.
func (s *Store) LoadEnvelope(key string) (payload []byte, writtenAt time.Time, ok bool) {
	var (
		g       errgroup.Group
		tsBytes []byte
		hasData bool
		hasTS   bool
	)

	g.Go(func() error {
		var err error
		payload, hasData, err = s.Get(key)
		return err
	})
	g.Go(func() error {
		var err error
		tsBytes, hasTS, err = s.Get(key + timestampSuffix)
		return err
	})

	if err := g.Wait(); err != nil {
		log.Printf("[storage] Cache load error for %q: %v", key, err)
		return nil, time.Time{}, false
	}
	if !hasData || !hasTS {
		return nil, time.Time{}, false
	}

	millis, err := strconv.ParseInt(string(tsBytes), 10, 64)
	if err != nil {
		log.Printf("[storage] Corrupt cache timestamp for %q: %v", key, err)
		return nil, time.Time{}, false
	}

	return payload, time.UnixMilli(millis), true
}

// ClearEnvelope removes both rows of the cache slot under key.
func (s *Store) ClearEnvelope(key string) error {
	var g errgroup.Group
	g.Go(func() error { return s.Delete(key) })
	g.Go(func() error { return s.Delete(key + timestampSuffix) })
	return g.Wait()
}
