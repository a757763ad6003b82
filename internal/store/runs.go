package store

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/pale-fire/logdoctor/internal/model"
	"github.com/pale-fire/logdoctor/internal/timeline"
)

// insertBatch keeps multi-row INSERTs under SQLite's variable limit.
const insertBatch = 200

// SaveRun persists a complete run in one transaction. The run id must be
// unused.
func (s *Store) SaveRun(run *model.Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, err := toRunRecord(run)
	if err != nil {
		return err
	}
	events := make([]EventRecord, 0, len(run.Events))
	for _, ev := range run.Events {
		er, err := toEventRecord(run.ID, ev)
		if err != nil {
			return err
		}
		events = append(events, er)
	}
	groups := make([]GroupRecord, 0, len(run.Groups))
	var members []GroupMemberRecord
	for _, g := range run.Groups {
		gr, ms, err := toGroupRecords(run.ID, g)
		if err != nil {
			return err
		}
		groups = append(groups, gr)
		members = append(members, ms...)
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&rec).Error; err != nil {
			return err
		}
		if len(events) > 0 {
			if err := tx.CreateInBatches(&events, insertBatch).Error; err != nil {
				return err
			}
		}
		if len(groups) > 0 {
			if err := tx.CreateInBatches(&groups, insertBatch).Error; err != nil {
				return err
			}
		}
		if len(members) > 0 {
			if err := tx.CreateInBatches(&members, insertBatch).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("store: save run %s: %w", run.ID, err)
	}
	s.invalidate(run.ID)
	return nil
}

// LoadRun returns the run with the given id. Events and groups come back in
// the order they were saved. A run whose rows no longer decode is marked
// corrupt and excluded from future lookups.
func (s *Store) LoadRun(id string) (*model.Run, error) {
	var rec RunRecord
	err := s.db.Where("id = ? AND corrupt = ?", id, false).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("store: run %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("store: load run %s: %w", id, err)
	}

	run, err := s.assembleRun(rec)
	if err != nil {
		s.quarantine(id, err)
		return nil, fmt.Errorf("store: run %s is corrupt: %w", id, err)
	}
	return run, nil
}

func (s *Store) assembleRun(rec RunRecord) (*model.Run, error) {
	run, err := toModelRun(rec)
	if err != nil {
		return nil, err
	}

	var evRecs []EventRecord
	if err := s.db.Where("run_id = ?", rec.ID).Order("id").Find(&evRecs).Error; err != nil {
		return nil, err
	}
	run.Events = make([]model.Event, 0, len(evRecs))
	for _, er := range evRecs {
		ev, err := toModelEvent(er)
		if err != nil {
			return nil, err
		}
		run.Events = append(run.Events, ev)
	}

	var grRecs []GroupRecord
	if err := s.db.Where("run_id = ?", rec.ID).Order("id").Find(&grRecs).Error; err != nil {
		return nil, err
	}
	run.Groups = make([]model.Group, 0, len(grRecs))
	for _, gr := range grRecs {
		var ms []GroupMemberRecord
		err := s.db.Where("run_id = ? AND group_id = ?", rec.ID, gr.GroupID).
			Order("position").Find(&ms).Error
		if err != nil {
			return nil, err
		}
		g, err := toModelGroup(gr, ms)
		if err != nil {
			return nil, err
		}
		run.Groups = append(run.Groups, g)
	}
	return run, nil
}

// quarantine flags a run whose stored rows failed to decode. Other runs
// stay readable.
func (s *Store) quarantine(id string, cause error) {
	s.log.Warn().Str("run", id).Err(cause).Msg("marking run corrupt")
	if err := s.MarkCorrupt(id); err != nil {
		s.log.Error().Str("run", id).Err(err).Msg("mark corrupt failed")
	}
}

// MarkCorrupt excludes a run from every lookup without deleting its rows.
func (s *Store) MarkCorrupt(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res := s.db.Model(&RunRecord{}).Where("id = ?", id).Update("corrupt", true)
	if res.Error != nil {
		return fmt.Errorf("store: mark corrupt %s: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("store: run %s: %w", id, ErrNotFound)
	}
	s.invalidate(id)
	return nil
}

// ListRuns returns run metadata, newest first, without events or groups.
// limit <= 0 means all.
func (s *Store) ListRuns(limit int) ([]model.Run, error) {
	q := s.db.Where("corrupt = ?", false).Order("created_at DESC, id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var recs []RunRecord
	if err := q.Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("store: list runs: %w", err)
	}
	runs := make([]model.Run, 0, len(recs))
	for _, rec := range recs {
		run, err := toModelRun(rec)
		if err != nil {
			s.quarantine(rec.ID, err)
			continue
		}
		runs = append(runs, *run)
	}
	return runs, nil
}

// AppendEvents adds a streaming batch to an open run. Groups evolve while a
// stream runs, so the given groups replace their stored versions.
func (s *Store) AppendEvents(runID string, events []model.Event, groups []model.Group) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var rec RunRecord
	err := s.db.Where("id = ? AND corrupt = ?", runID, false).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("store: run %s: %w", runID, ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("store: append to run %s: %w", runID, err)
	}
	if !rec.Append {
		return fmt.Errorf("store: run %s is not accepting appends", runID)
	}

	evRecs := make([]EventRecord, 0, len(events))
	for _, ev := range events {
		er, err := toEventRecord(runID, ev)
		if err != nil {
			return err
		}
		evRecs = append(evRecs, er)
	}
	ids := make([]string, 0, len(groups))
	grRecs := make([]GroupRecord, 0, len(groups))
	var members []GroupMemberRecord
	for _, g := range groups {
		gr, ms, err := toGroupRecords(runID, g)
		if err != nil {
			return err
		}
		ids = append(ids, g.ID)
		grRecs = append(grRecs, gr)
		members = append(members, ms...)
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if len(evRecs) > 0 {
			if err := tx.CreateInBatches(&evRecs, insertBatch).Error; err != nil {
				return err
			}
		}
		if len(ids) > 0 {
			err := tx.Where("run_id = ? AND group_id IN ?", runID, ids).
				Delete(&GroupRecord{}).Error
			if err != nil {
				return err
			}
			err = tx.Where("run_id = ? AND group_id IN ?", runID, ids).
				Delete(&GroupMemberRecord{}).Error
			if err != nil {
				return err
			}
			if err := tx.CreateInBatches(&grRecs, insertBatch).Error; err != nil {
				return err
			}
			if len(members) > 0 {
				if err := tx.CreateInBatches(&members, insertBatch).Error; err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("store: append to run %s: %w", runID, err)
	}
	s.invalidate(runID)
	return nil
}

// FinalizeRun closes out a streaming run: counters, summary, and origin
// statuses are rewritten and the run stops accepting appends.
func (s *Store) FinalizeRun(run *model.Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, err := toRunRecord(run)
	if err != nil {
		return err
	}
	rec.Append = false
	err = s.db.Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&RunRecord{}).Where("id = ? AND corrupt = ?", run.ID, false).
			Updates(map[string]any{
				"origins_json":  rec.OriginsJSON,
				"counters_json": rec.CountersJSON,
				"summary_json":  rec.SummaryJSON,
				"partial":       rec.Partial,
				"failed":        rec.Failed,
				"append":        false,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("store: finalize run %s: %w", run.ID, err)
	}
	s.invalidate(run.ID)
	return nil
}

// GetTimeline builds a timeline view over a stored run, caching the result
// per (run, window, filter) until the run changes.
func (s *Store) GetTimeline(runID string, spec model.WindowSpec, opts timeline.Options) ([]model.Event, error) {
	key := spec.CacheKey() + "|" + opts.CacheKey()

	s.mu.Lock()
	if views, ok := s.tlCache[runID]; ok {
		if view, ok := views[key]; ok {
			s.mu.Unlock()
			return view, nil
		}
	}
	s.mu.Unlock()

	run, err := s.LoadRun(runID)
	if err != nil {
		return nil, err
	}
	view, err := timeline.Build(run.Events, spec, opts)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	if _, ok := s.tlCache[runID]; !ok {
		s.tlCache[runID] = make(map[string][]model.Event)
	}
	s.tlCache[runID][key] = view
	s.mu.Unlock()
	return view, nil
}

func toRunRecord(run *model.Run) (RunRecord, error) {
	origins, err := marshalField(run.Origins)
	if err != nil {
		return RunRecord{}, err
	}
	counters, err := marshalField(run.Counters)
	if err != nil {
		return RunRecord{}, err
	}
	summary, err := marshalField(run.Summary)
	if err != nil {
		return RunRecord{}, err
	}
	return RunRecord{
		ID:           run.ID,
		CreatedAt:    run.CreatedAt.UTC(),
		OriginsJSON:  origins,
		CountersJSON: counters,
		SummaryJSON:  summary,
		Partial:      run.Partial,
		Failed:       run.Failed,
		Append:       run.Append,
	}, nil
}

func toModelRun(rec RunRecord) (*model.Run, error) {
	run := &model.Run{
		ID:        rec.ID,
		CreatedAt: rec.CreatedAt.UTC(),
		Partial:   rec.Partial,
		Failed:    rec.Failed,
		Append:    rec.Append,
	}
	if err := unmarshalField(rec.OriginsJSON, &run.Origins); err != nil {
		return nil, err
	}
	if err := unmarshalField(rec.CountersJSON, &run.Counters); err != nil {
		return nil, err
	}
	if err := unmarshalField(rec.SummaryJSON, &run.Summary); err != nil {
		return nil, err
	}
	return run, nil
}
