package store

import (
	"fmt"
	"time"

	"gorm.io/gorm"
)

// SignatureVector is a cached embedding of one error signature.
type SignatureVector struct {
	ErrorID   string
	Service   string
	Signature string
	Values    []float32
}

// PutVector caches an embedding, replacing any previous one for the same
// error id.
func (s *Store) PutVector(v SignatureVector) error {
	if v.ErrorID == "" {
		return fmt.Errorf("store: vector error id must not be empty")
	}
	data, err := marshalField(v.Values)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	rec := VectorRecord{
		ErrorID:    v.ErrorID,
		Service:    v.Service,
		Signature:  v.Signature,
		VectorJSON: data,
		Dim:        len(v.Values),
		CreatedAt:  time.Now().UTC(),
	}
	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("error_id = ?", v.ErrorID).Delete(&VectorRecord{}).Error; err != nil {
			return err
		}
		return tx.Create(&rec).Error
	})
	if err != nil {
		return fmt.Errorf("store: put vector %s: %w", v.ErrorID, err)
	}
	return nil
}

// Vectors returns every cached embedding.
func (s *Store) Vectors() ([]SignatureVector, error) {
	var recs []VectorRecord
	if err := s.db.Order("error_id").Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("store: vectors: %w", err)
	}
	out := make([]SignatureVector, 0, len(recs))
	for _, rec := range recs {
		v := SignatureVector{
			ErrorID:   rec.ErrorID,
			Service:   rec.Service,
			Signature: rec.Signature,
		}
		if err := unmarshalField(rec.VectorJSON, &v.Values); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}
