package store

import "time"

// RunRecord is one persisted analysis run. Events and groups live in their
// own tables; aggregate fields are JSON blobs since nothing queries inside
// them.
type RunRecord struct {
	ID           string    `gorm:"primaryKey;size:36"`
	CreatedAt    time.Time `gorm:"index"`
	OriginsJSON  string    `gorm:"type:text"`
	CountersJSON string    `gorm:"type:text"`
	SummaryJSON  string    `gorm:"type:text"`
	Partial      bool
	Failed       bool
	Append       bool
	Corrupt      bool `gorm:"index"` // excluded from every lookup
}

func (RunRecord) TableName() string { return "runs" }

// EventRecord stores one event of one run. Event ids are stable across
// re-parses of identical input, so uniqueness holds only per run.
type EventRecord struct {
	ID         uint      `gorm:"primaryKey"`
	RunID      string    `gorm:"uniqueIndex:uniq_run_event;index;size:36"`
	EventID    string    `gorm:"uniqueIndex:uniq_run_event;index;size:20"`
	ErrorID    string    `gorm:"index;size:20"`
	Origin     string    `gorm:"index;size:256"`
	Service    string    `gorm:"index;size:256"`
	Timestamp  time.Time `gorm:"index"`
	TimeApprox bool
	Severity   int8   `gorm:"index"`
	Message    string `gorm:"type:text"`
	FieldsJSON string `gorm:"type:text"`
	Parser     string `gorm:"size:32"`
	Seq        uint64
}

func (EventRecord) TableName() string { return "events" }

type GroupRecord struct {
	ID          uint   `gorm:"primaryKey"`
	RunID       string `gorm:"uniqueIndex:uniq_run_group;index;size:36"`
	GroupID     string `gorm:"uniqueIndex:uniq_run_group;index;size:20"`
	Signature   string `gorm:"type:text"`
	OriginsJSON string `gorm:"type:text"`
	Start       time.Time
	End         time.Time
	Confidence  float64
	Closed      bool
}

func (GroupRecord) TableName() string { return "groups" }

// GroupMemberRecord keeps group membership ordered by event time.
type GroupMemberRecord struct {
	ID       uint   `gorm:"primaryKey"`
	RunID    string `gorm:"index;size:36"`
	GroupID  string `gorm:"index;size:20"`
	EventID  string `gorm:"index;size:20"`
	Position int
}

func (GroupMemberRecord) TableName() string { return "group_members" }

// SourceRecord is a saved source descriptor, re-resolvable by name.
type SourceRecord struct {
	ID      uint      `gorm:"primaryKey"`
	Name    string    `gorm:"uniqueIndex;size:256"`
	Scheme  string    `gorm:"size:16"`
	Target  string    `gorm:"size:1024"`
	Service string    `gorm:"size:256"`
	AddedAt time.Time `gorm:"index"`
}

func (SourceRecord) TableName() string { return "log_sources" }

// VectorRecord caches one error signature's embedding for similar-error
// search. Keyed by error id: signatures are stable across runs.
type VectorRecord struct {
	ID         uint   `gorm:"primaryKey"`
	ErrorID    string `gorm:"uniqueIndex;size:20"`
	Service    string `gorm:"size:256"`
	Signature  string `gorm:"type:text"`
	VectorJSON string `gorm:"type:text"`
	Dim        int
	CreatedAt  time.Time
}

func (VectorRecord) TableName() string { return "semantic_vectors" }
