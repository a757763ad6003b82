// Package store persists analysis runs in an embedded SQLite database so
// later commands can query events, groups, and timelines without re-reading
// the logs.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/glebarez/sqlite"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/pale-fire/logdoctor/internal/model"
)

// ErrNotFound reports that no row matched a lookup.
var ErrNotFound = errors.New("store: not found")

// Store wraps the database. Writes are serialized; a run is immutable once
// saved except through AppendEvents/FinalizeRun on its own id.
type Store struct {
	db  *gorm.DB
	log zerolog.Logger

	mu      sync.Mutex
	tlCache map[string]map[string][]model.Event // run id -> query key -> view
}

// Open creates or opens the database at path and migrates the schema.
func Open(path string, log zerolog.Logger) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("store: %w", err)
		}
	}
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}
	err = db.AutoMigrate(
		&RunRecord{},
		&EventRecord{},
		&GroupRecord{},
		&GroupMemberRecord{},
		&SourceRecord{},
		&VectorRecord{},
	)
	if err != nil {
		return nil, fmt.Errorf("store: migrate: %w", err)
	}
	return &Store{
		db:      db,
		log:     log,
		tlCache: make(map[string]map[string][]model.Event),
	}, nil
}

// Close releases the underlying connection.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("store: %w", err)
	}
	return sqlDB.Close()
}

func (s *Store) invalidate(runID string) {
	delete(s.tlCache, runID)
}

func marshalField(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("store: encode: %w", err)
	}
	return string(b), nil
}

func unmarshalField(data string, v any) error {
	if data == "" {
		return nil
	}
	if err := json.Unmarshal([]byte(data), v); err != nil {
		return fmt.Errorf("store: decode: %w", err)
	}
	return nil
}

func toEventRecord(runID string, ev model.Event) (EventRecord, error) {
	fields, err := marshalField(ev.Fields)
	if err != nil {
		return EventRecord{}, err
	}
	return EventRecord{
		RunID:      runID,
		EventID:    ev.ID,
		ErrorID:    ev.ErrorID,
		Origin:     ev.Origin,
		Service:    ev.Service,
		Timestamp:  ev.Timestamp.UTC(),
		TimeApprox: ev.TimeApprox,
		Severity:   int8(ev.Severity),
		Message:    ev.Message,
		FieldsJSON: fields,
		Parser:     ev.Parser,
		Seq:        ev.Seq,
	}, nil
}

func toModelEvent(rec EventRecord) (model.Event, error) {
	ev := model.Event{
		ID:         rec.EventID,
		ErrorID:    rec.ErrorID,
		Origin:     rec.Origin,
		Service:    rec.Service,
		Timestamp:  rec.Timestamp.UTC(),
		TimeApprox: rec.TimeApprox,
		Severity:   model.Severity(rec.Severity),
		Message:    rec.Message,
		Parser:     rec.Parser,
		Seq:        rec.Seq,
	}
	if err := unmarshalField(rec.FieldsJSON, &ev.Fields); err != nil {
		return model.Event{}, err
	}
	return ev, nil
}

func toGroupRecords(runID string, g model.Group) (GroupRecord, []GroupMemberRecord, error) {
	origins, err := marshalField(g.Origins)
	if err != nil {
		return GroupRecord{}, nil, err
	}
	rec := GroupRecord{
		RunID:       runID,
		GroupID:     g.ID,
		Signature:   g.Signature,
		OriginsJSON: origins,
		Start:       g.Start.UTC(),
		End:         g.End.UTC(),
		Confidence:  g.Confidence,
		Closed:      g.Closed,
	}
	members := make([]GroupMemberRecord, 0, len(g.EventIDs))
	for i, id := range g.EventIDs {
		members = append(members, GroupMemberRecord{
			RunID:    runID,
			GroupID:  g.ID,
			EventID:  id,
			Position: i,
		})
	}
	return rec, members, nil
}

func toModelGroup(rec GroupRecord, members []GroupMemberRecord) (model.Group, error) {
	g := model.Group{
		ID:         rec.GroupID,
		Signature:  rec.Signature,
		Start:      rec.Start.UTC(),
		End:        rec.End.UTC(),
		Confidence: rec.Confidence,
		Closed:     rec.Closed,
	}
	if err := unmarshalField(rec.OriginsJSON, &g.Origins); err != nil {
		return model.Group{}, err
	}
	g.EventIDs = make([]string, 0, len(members))
	for _, m := range members {
		g.EventIDs = append(g.EventIDs, m.EventID)
	}
	return g, nil
}
