// Package records reconciles the authoritative record store against the
// full subject list. Subjects without a persisted record are shown with
// an ephemeral "virtual" record that is materialized lazily on first
// edit; virtual records are never persisted as-is.
package records

import (
	"context"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/plannetic/compliance-cli/internal/model"
	"github.com/plannetic/compliance-cli/internal/store"
	"github.com/plannetic/compliance-cli/internal/workflow"
)

// VirtualPrefix marks record ids synthesized from the subject list.
const VirtualPrefix = "virtual-"

// IsVirtual reports whether a record id denotes a not-yet-persisted
// record.
func IsVirtual(recordID string) bool {
	return strings.HasPrefix(recordID, VirtualPrefix)
}

// VirtualID derives the deterministic virtual record id for a subject.
func VirtualID(subjectID string) string {
	return VirtualPrefix + subjectID
}

// SubjectIDFromVirtual recovers the subject id from a virtual record id.
func SubjectIDFromVirtual(recordID string) (string, error) {
	if !IsVirtual(recordID) {
		return "", eris.Errorf("records: %q is not a virtual record id", recordID)
	}
	return strings.TrimPrefix(recordID, VirtualPrefix), nil
}

// NewVirtual synthesizes the default record shown for a subject that has
// no persisted row.
func NewVirtual(subject model.Subject, rt model.RecordType) model.ComplianceRecord {
	rec := model.ComplianceRecord{
		ID:        VirtualID(subject.ID),
		SubjectID: subject.ID,
		Type:      rt,
		Statuses:  model.DefaultStatuses(rt),
	}
	rec.Overall = workflow.DeriveOverall(&rec)
	return rec
}

// Reconcile merges real records with the subject list: one record per
// subject, real records taking precedence over synthesized virtual
// ones. Pure; the Materializer wraps it with store access.
func Reconcile(subjects []model.Subject, real []model.ComplianceRecord, rt model.RecordType) []model.ComplianceRecord {
	bySubject := make(map[string]model.ComplianceRecord, len(real))
	for _, rec := range real {
		bySubject[rec.SubjectID] = rec
	}

	merged := make([]model.ComplianceRecord, 0, len(subjects))
	for _, subject := range subjects {
		if rec, ok := bySubject[subject.ID]; ok {
			merged = append(merged, rec)
			continue
		}
		merged = append(merged, NewVirtual(subject, rt))
	}
	return merged
}

// FieldUpdate carries the writable fields of a compliance record.
// Nil pointers leave the corresponding field untouched.
type FieldUpdate struct {
	Statuses map[string]string `json:"statuses,omitempty"`
	Notes    *string           `json:"notes,omitempty"`
	Evidence *string           `json:"evidence,omitempty"`
}

// Materializer provides record reconciliation and lazy materialization
// over the persistence layer. It holds no locks: at-most-one real record
// per (subject, type) is enforced by the store's unique constraint.
type Materializer struct {
	store store.Store
}

// NewMaterializer creates a Materializer backed by the given store.
func NewMaterializer(s store.Store) *Materializer {
	return &Materializer{store: s}
}

// Reconcile returns one record per subject for the given type,
// synthesizing virtual defaults for subjects without a persisted row.
func (m *Materializer) Reconcile(ctx context.Context, rt model.RecordType) ([]model.ComplianceRecord, error) {
	subjects, err := m.store.ListSubjects(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "records: list subjects")
	}
	real, err := m.store.ListRecords(ctx, rt)
	if err != nil {
		return nil, eris.Wrap(err, "records: list records")
	}
	return Reconcile(subjects, real, rt), nil
}

// Materialize promotes a virtual record to a real one with default
// field values. Idempotent: if another caller materialized the subject
// first, the existing record is returned.
func (m *Materializer) Materialize(ctx context.Context, rt model.RecordType, virtualID string) (*model.ComplianceRecord, error) {
	subjectID, err := SubjectIDFromVirtual(virtualID)
	if err != nil {
		return nil, err
	}

	rec := model.ComplianceRecord{
		SubjectID: subjectID,
		Type:      rt,
		Statuses:  model.DefaultStatuses(rt),
	}
	rec.Overall = workflow.DeriveOverall(&rec)

	real, err := m.store.InsertRecord(ctx, &rec)
	if err != nil {
		return nil, eris.Wrapf(err, "records: materialize subject %s", subjectID)
	}

	zap.L().Info("records: materialized virtual record",
		zap.String("subject_id", subjectID),
		zap.String("record_type", string(rt)),
		zap.String("record_id", real.ID),
	)
	return real, nil
}

// UpdateField applies a field update to a record. A virtual record id is
// materialized and updated in a single store upsert, so a first edit
// cannot leave behind a default-valued record with the edit lost. A real
// record id is read, merged and updated in place.
func (m *Materializer) UpdateField(ctx context.Context, rt model.RecordType, recordID string, update FieldUpdate) (*model.ComplianceRecord, error) {
	if !IsVirtual(recordID) {
		existing, err := m.store.GetRecord(ctx, rt, recordID)
		if err != nil {
			return nil, eris.Wrap(err, "records: get record")
		}
		applyUpdate(existing, update)
		if err := m.store.UpdateRecord(ctx, existing); err != nil {
			return nil, eris.Wrapf(err, "records: update record %s", recordID)
		}
		return existing, nil
	}

	subjectID, err := SubjectIDFromVirtual(recordID)
	if err != nil {
		return nil, err
	}
	// The subject may have been materialized since the caller listed
	// records; start from the real row if one exists.
	current, err := m.store.GetRecordBySubject(ctx, rt, subjectID)
	if err != nil {
		return nil, eris.Wrap(err, "records: check existing record")
	}
	if current == nil {
		virtual := model.ComplianceRecord{
			SubjectID: subjectID,
			Type:      rt,
			Statuses:  model.DefaultStatuses(rt),
		}
		virtual.Overall = workflow.DeriveOverall(&virtual)
		current = &virtual
	}

	applyUpdate(current, update)

	result, err := m.store.UpsertRecord(ctx, current)
	if err != nil {
		return nil, eris.Wrapf(err, "records: update record %s", recordID)
	}
	return result, nil
}

// SetStatus overwrites one category's status on a record (materializing
// it first when virtual) and persists the recomputed aggregate.
func (m *Materializer) SetStatus(ctx context.Context, rt model.RecordType, recordID, category, status string) (*model.ComplianceRecord, error) {
	rec := &model.ComplianceRecord{Type: rt, Statuses: model.DefaultStatuses(rt)}
	if err := workflow.SetStatus(rec, category, status); err != nil {
		return nil, err
	}
	return m.UpdateField(ctx, rt, recordID, FieldUpdate{
		Statuses: map[string]string{category: status},
	})
}

// applyUpdate merges a FieldUpdate into a record and recomputes the
// aggregate status.
func applyUpdate(rec *model.ComplianceRecord, update FieldUpdate) {
	if rec.Statuses == nil {
		rec.Statuses = model.DefaultStatuses(rec.Type)
	}
	for category, status := range update.Statuses {
		rec.Statuses[category] = status
	}
	if update.Notes != nil {
		rec.Notes = *update.Notes
	}
	if update.Evidence != nil {
		rec.Evidence = *update.Evidence
	}
	rec.Overall = workflow.DeriveOverall(rec)
	rec.UpdatedAt = time.Now().UTC()
}
