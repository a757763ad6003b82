package store

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/pale-fire/logdoctor/internal/model"
)

// FindEvent resolves an event or error id across all stored runs, newest run
// first. Error ids resolve to their first occurrence within the chosen run.
// Returns the event and the id of the run that holds it.
func (s *Store) FindEvent(id string) (*model.Event, string, error) {
	var rec EventRecord
	err := s.db.Model(&EventRecord{}).
		Select("events.*").
		Joins("JOIN runs ON runs.id = events.run_id AND runs.corrupt = ?", false).
		Where("events.event_id = ? OR events.error_id = ?", id, id).
		Order("runs.created_at DESC, events.timestamp ASC, events.seq ASC").
		First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, "", fmt.Errorf("store: event %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, "", fmt.Errorf("store: find event %s: %w", id, err)
	}
	ev, err := toModelEvent(rec)
	if err != nil {
		s.quarantine(rec.RunID, err)
		return nil, "", fmt.Errorf("store: run %s is corrupt: %w", rec.RunID, err)
	}
	return &ev, rec.RunID, nil
}

// FindGroup resolves a group id across all stored runs, newest run first.
// Returns the group and the id of the run that holds it.
func (s *Store) FindGroup(id string) (*model.Group, string, error) {
	var rec GroupRecord
	err := s.db.Model(&GroupRecord{}).
		Select("groups.*").
		Joins("JOIN runs ON runs.id = groups.run_id AND runs.corrupt = ?", false).
		Where("groups.group_id = ?", id).
		Order("runs.created_at DESC").
		First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, "", fmt.Errorf("store: group %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, "", fmt.Errorf("store: find group %s: %w", id, err)
	}

	g, err := s.hydrateGroup(rec)
	if err != nil {
		return nil, "", err
	}
	return g, rec.RunID, nil
}

// FindGroupOfEvent returns the group within one run that holds the event,
// or ErrNotFound when the event was never grouped.
func (s *Store) FindGroupOfEvent(runID, eventID string) (*model.Group, error) {
	var member GroupMemberRecord
	err := s.db.Where("run_id = ? AND event_id = ?", runID, eventID).First(&member).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("store: no group holds event %s: %w", eventID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("store: group of event %s: %w", eventID, err)
	}

	var rec GroupRecord
	err = s.db.Where("run_id = ? AND group_id = ?", runID, member.GroupID).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("store: group %s: %w", member.GroupID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("store: group of event %s: %w", eventID, err)
	}
	return s.hydrateGroup(rec)
}

func (s *Store) hydrateGroup(rec GroupRecord) (*model.Group, error) {
	var members []GroupMemberRecord
	err := s.db.Where("run_id = ? AND group_id = ?", rec.RunID, rec.GroupID).
		Order("position").Find(&members).Error
	if err != nil {
		return nil, fmt.Errorf("store: find group %s: %w", rec.GroupID, err)
	}
	g, err := toModelGroup(rec, members)
	if err != nil {
		s.quarantine(rec.RunID, err)
		return nil, fmt.Errorf("store: run %s is corrupt: %w", rec.RunID, err)
	}
	return &g, nil
}

// EventsByIDs loads specific events of one run, in the order given. Missing
// ids are skipped.
func (s *Store) EventsByIDs(runID string, ids []string) ([]model.Event, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var recs []EventRecord
	err := s.db.Where("run_id = ? AND event_id IN ?", runID, ids).Find(&recs).Error
	if err != nil {
		return nil, fmt.Errorf("store: events of run %s: %w", runID, err)
	}
	byID := make(map[string]EventRecord, len(recs))
	for _, rec := range recs {
		byID[rec.EventID] = rec
	}
	out := make([]model.Event, 0, len(ids))
	for _, id := range ids {
		rec, ok := byID[id]
		if !ok {
			continue
		}
		ev, err := toModelEvent(rec)
		if err != nil {
			s.quarantine(runID, err)
			return nil, fmt.Errorf("store: run %s is corrupt: %w", runID, err)
		}
		out = append(out, ev)
	}
	return out, nil
}
