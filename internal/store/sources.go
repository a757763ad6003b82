package store

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
)

// SourceDescriptor is a named, re-resolvable log source.
type SourceDescriptor struct {
	Name    string
	Scheme  string
	Target  string
	Service string
	AddedAt time.Time
}

// AddSource saves a descriptor under its name, replacing any previous one.
func (s *Store) AddSource(desc SourceDescriptor) error {
	if desc.Name == "" {
		return fmt.Errorf("store: source name must not be empty")
	}
	if desc.AddedAt.IsZero() {
		desc.AddedAt = time.Now().UTC()
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	rec := SourceRecord{
		Name:    desc.Name,
		Scheme:  desc.Scheme,
		Target:  desc.Target,
		Service: desc.Service,
		AddedAt: desc.AddedAt.UTC(),
	}
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("name = ?", desc.Name).Delete(&SourceRecord{}).Error; err != nil {
			return err
		}
		return tx.Create(&rec).Error
	})
	if err != nil {
		return fmt.Errorf("store: add source %s: %w", desc.Name, err)
	}
	return nil
}

// ListSources returns all saved descriptors ordered by name.
func (s *Store) ListSources() ([]SourceDescriptor, error) {
	var recs []SourceRecord
	if err := s.db.Order("name").Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("store: list sources: %w", err)
	}
	out := make([]SourceDescriptor, 0, len(recs))
	for _, rec := range recs {
		out = append(out, SourceDescriptor{
			Name:    rec.Name,
			Scheme:  rec.Scheme,
			Target:  rec.Target,
			Service: rec.Service,
			AddedAt: rec.AddedAt.UTC(),
		})
	}
	return out, nil
}

// GetSource returns the descriptor saved under name.
func (s *Store) GetSource(name string) (*SourceDescriptor, error) {
	var rec SourceRecord
	err := s.db.Where("name = ?", name).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("store: source %s: %w", name, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("store: get source %s: %w", name, err)
	}
	return &SourceDescriptor{
		Name:    rec.Name,
		Scheme:  rec.Scheme,
		Target:  rec.Target,
		Service: rec.Service,
		AddedAt: rec.AddedAt.UTC(),
	}, nil
}

// RemoveSource deletes the descriptor saved under name.
func (s *Store) RemoveSource(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res := s.db.Where("name = ?", name).Delete(&SourceRecord{})
	if res.Error != nil {
		return fmt.Errorf("store: remove source %s: %w", name, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("store: source %s: %w", name, ErrNotFound)
	}
	return nil
}
