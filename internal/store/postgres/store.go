// Package postgres backs the DocumentStore with a single documents table.
// Document bodies live in a JSONB column; the collection column is derived
// from the path so collection scans stay indexed.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/tempochess/game-server/internal/store"
	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

type Document struct {
	Path       string         `gorm:"primaryKey;size:512"`
	Collection string         `gorm:"index;size:512;not null"`
	Data       datatypes.JSON `gorm:"not null"`
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

func NewConnection(databaseURL string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(databaseURL), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, err
	}

	if err := db.AutoMigrate(&Document{}); err != nil {
		return nil, err
	}

	return db, nil
}

type Store struct {
	db *gorm.DB
}

func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

func (s *Store) GetDocument(ctx context.Context, path string) (map[string]interface{}, error) {
	var doc Document
	err := s.db.WithContext(ctx).First(&doc, "path = ?", path).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return decodeBody(doc.Data)
}

func (s *Store) SetDocument(ctx context.Context, path string, data map[string]interface{}, merge bool) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return setDocumentTx(tx, path, data, merge)
	})
}

func setDocumentTx(tx *gorm.DB, path string, data map[string]interface{}, merge bool) error {
	body := data
	if merge {
		var existing Document
		err := tx.First(&existing, "path = ?", path).Error
		if err == nil {
			current, derr := decodeBody(existing.Data)
			if derr != nil {
				return derr
			}
			body = store.MergeMaps(current, data)
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
	}

	raw, err := json.Marshal(body)
	if err != nil {
		return err
	}

	doc := Document{
		Path:       path,
		Collection: store.Collection(path),
		Data:       datatypes.JSON(raw),
	}
	return tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "path"}},
		DoUpdates: clause.AssignmentColumns([]string{"collection", "data", "updated_at"}),
	}).Create(&doc).Error
}

func (s *Store) UpdateDocument(ctx context.Context, path string, data map[string]interface{}, updateMask ...string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var doc Document
		err := tx.First(&doc, "path = ?", path).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return store.ErrNotFound
			}
			return err
		}

		current, err := decodeBody(doc.Data)
		if err != nil {
			return err
		}

		applied := data
		if len(updateMask) > 0 {
			masked := make(map[string]interface{}, len(updateMask))
			for _, field := range updateMask {
				if v, ok := data[field]; ok {
					masked[field] = v
				}
			}
			applied = masked
		}

		raw, err := json.Marshal(store.MergeMaps(current, applied))
		if err != nil {
			return err
		}
		doc.Data = datatypes.JSON(raw)
		return tx.Save(&doc).Error
	})
}

func (s *Store) DeleteDocument(ctx context.Context, path string) error {
	return s.db.WithContext(ctx).Delete(&Document{}, "path = ?", path).Error
}

func (s *Store) QueryDocuments(ctx context.Context, collection string, filters []store.Filter) ([]store.Snapshot, error) {
	var docs []Document
	err := s.db.WithContext(ctx).
		Where("collection = ?", collection).
		Order("path ASC").
		Find(&docs).Error
	if err != nil {
		return nil, err
	}

	var out []store.Snapshot
	for _, doc := range docs {
		data, err := decodeBody(doc.Data)
		if err != nil {
			return nil, err
		}
		if !store.MatchFilters(data, filters) {
			continue
		}
		out = append(out, store.Snapshot{Path: doc.Path, Data: data})
	}
	return out, nil
}

func (s *Store) BatchWrite(ctx context.Context, ops []store.WriteOp) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, op := range ops {
			if op.Delete {
				if err := tx.Delete(&Document{}, "path = ?", op.Path).Error; err != nil {
					return err
				}
				continue
			}
			if err := setDocumentTx(tx, op.Path, op.Data, op.Merge); err != nil {
				return err
			}
		}
		return nil
	})
}

func decodeBody(raw datatypes.JSON) (map[string]interface{}, error) {
	var data map[string]interface{}
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, err
	}
	return data, nil
}
