package store

import (
	"context"
	"time"

	"github.com/plannetic/compliance-cli/internal/model"
)

// AssessmentFilter specifies criteria for listing assessments.
type AssessmentFilter struct {
	SubjectID string           `json:"subject_id,omitempty"`
	Type      model.RecordType `json:"record_type,omitempty"`
	Limit     int              `json:"limit,omitempty"`
	Offset    int              `json:"offset,omitempty"`
}

// Store defines the persistence interface for the compliance core.
// The uniqueness of (subject_id, record_type) on compliance records is
// enforced here, at the storage boundary; the materializer above this
// layer does not lock.
type Store interface {
	// Subjects
	ListSubjects(ctx context.Context) ([]model.Subject, error)
	UpsertSubjects(ctx context.Context, subjects []model.Subject) (int64, error)

	// Compliance records
	ListRecords(ctx context.Context, rt model.RecordType) ([]model.ComplianceRecord, error)
	GetRecord(ctx context.Context, rt model.RecordType, id string) (*model.ComplianceRecord, error)
	// GetRecordBySubject returns (nil, nil) when the subject has no real record.
	GetRecordBySubject(ctx context.Context, rt model.RecordType, subjectID string) (*model.ComplianceRecord, error)
	// InsertRecord is idempotent per (subject, type): on conflict it
	// returns the already-existing record instead of failing.
	InsertRecord(ctx context.Context, rec *model.ComplianceRecord) (*model.ComplianceRecord, error)
	UpdateRecord(ctx context.Context, rec *model.ComplianceRecord) error
	// UpsertRecord inserts or fully updates in a single write, closing
	// the partial-failure window of a separate insert-then-update.
	UpsertRecord(ctx context.Context, rec *model.ComplianceRecord) (*model.ComplianceRecord, error)

	// Assessments (append-only; superseded, never deleted)
	CreateAssessment(ctx context.Context, a *model.Assessment) error
	// LatestAssessment returns (nil, nil) when the subject has never
	// been assessed for the given type.
	LatestAssessment(ctx context.Context, rt model.RecordType, subjectID string) (*model.Assessment, error)
	ListAssessments(ctx context.Context, filter AssessmentFilter) ([]model.Assessment, error)
	// ListDueReviews returns the latest assessment per (subject, type)
	// whose next review falls at or before dueBy.
	ListDueReviews(ctx context.Context, dueBy time.Time) ([]model.Assessment, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
