package store

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/plannetic/compliance-cli/internal/model"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

const recordCols = "id, subject_id, record_type, statuses, overall, notes, evidence, created_at, updated_at"

func newMockStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return &PostgresStore{pool: mock}, mock
}

func recordRow(rec model.ComplianceRecord) *pgxmock.Rows {
	statuses, _ := json.Marshal(rec.Statuses)
	return pgxmock.NewRows([]string{
		"id", "subject_id", "record_type", "statuses", "overall",
		"notes", "evidence", "created_at", "updated_at",
	}).AddRow(
		rec.ID, rec.SubjectID, rec.Type, statuses, rec.Overall,
		rec.Notes, rec.Evidence, rec.CreatedAt, rec.UpdatedAt,
	)
}

func TestPostgresGetRecordBySubject_Missing(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery("SELECT " + recordCols).
		WithArgs("aml", "sub-1").
		WillReturnError(pgx.ErrNoRows)

	rec, err := s.GetRecordBySubject(context.Background(), model.RecordAML, "sub-1")
	require.NoError(t, err)
	assert.Nil(t, rec)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresGetRecord_NotFound(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery("SELECT " + recordCols).
		WithArgs("aml", "rec-404").
		WillReturnError(pgx.ErrNoRows)

	_, err := s.GetRecord(context.Background(), model.RecordAML, "rec-404")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresUpsertRecord_ReturnsStoredRow(t *testing.T) {
	s, mock := newMockStore(t)

	now := time.Now().UTC()
	stored := model.ComplianceRecord{
		ID:        "rec-1",
		SubjectID: "sub-1",
		Type:      model.RecordBreach,
		Statuses:  map[string]string{model.CategoryStatus: string(model.BreachClosed)},
		Overall:   model.OverallFullyCompliant,
		Notes:     "resolved",
		CreatedAt: now,
		UpdatedAt: now,
	}

	mock.ExpectQuery("INSERT INTO compliance_records").
		WithArgs(
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
		).
		WillReturnRows(recordRow(stored))

	got, err := s.UpsertRecord(context.Background(), &model.ComplianceRecord{
		SubjectID: "sub-1",
		Type:      model.RecordBreach,
		Statuses:  map[string]string{model.CategoryStatus: string(model.BreachClosed)},
		Overall:   model.OverallFullyCompliant,
		Notes:     "resolved",
	})
	require.NoError(t, err)
	assert.Equal(t, "rec-1", got.ID)
	assert.Equal(t, model.OverallFullyCompliant, got.Overall)
	assert.Equal(t, string(model.BreachClosed), got.Statuses[model.CategoryStatus])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresInsertRecord_ConflictReturnsExisting(t *testing.T) {
	s, mock := newMockStore(t)

	now := time.Now().UTC()
	existing := model.ComplianceRecord{
		ID:        "rec-existing",
		SubjectID: "sub-1",
		Type:      model.RecordAML,
		Statuses:  model.DefaultStatuses(model.RecordAML),
		Overall:   model.OverallNotAssessed,
		CreatedAt: now,
		UpdatedAt: now,
	}

	mock.ExpectExec("INSERT INTO compliance_records").
		WithArgs(
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
		).
		WillReturnResult(pgxmock.NewResult("INSERT", 0))
	mock.ExpectQuery("SELECT " + recordCols).
		WithArgs("aml", "sub-1").
		WillReturnRows(recordRow(existing))

	got, err := s.InsertRecord(context.Background(), &model.ComplianceRecord{
		SubjectID: "sub-1",
		Type:      model.RecordAML,
		Statuses:  model.DefaultStatuses(model.RecordAML),
	})
	require.NoError(t, err)
	assert.Equal(t, "rec-existing", got.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresUpdateRecord_NotFound(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec("UPDATE compliance_records").
		WithArgs(
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
		).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := s.UpdateRecord(context.Background(), &model.ComplianceRecord{
		ID:       "rec-404",
		Type:     model.RecordAML,
		Statuses: model.DefaultStatuses(model.RecordAML),
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresListDueReviews_FiltersAndSorts(t *testing.T) {
	s, mock := newMockStore(t)

	answers, _ := json.Marshal([]model.Answer{})
	completedA := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	completedB := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	completedC := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)

	rows := pgxmock.NewRows([]string{
		"id", "subject_id", "record_type", "answers", "total", "tier",
		"completed_at", "next_review_at", "created_at",
	}).
		AddRow("a-1", "sub-1", model.RecordAML, answers, 6, model.TierHigh,
			completedA, completedA.AddDate(1, 0, 0), completedA).
		AddRow("a-2", "sub-2", model.RecordAML, answers, 4, model.TierMedium,
			completedB, completedB.AddDate(2, 0, 0), completedB).
		AddRow("a-3", "sub-3", model.RecordAML, answers, 0, model.TierLow,
			completedC, completedC.AddDate(3, 0, 0), completedC)

	mock.ExpectQuery("SELECT DISTINCT ON").WillReturnRows(rows)

	due, err := s.ListDueReviews(context.Background(), time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Len(t, due, 2)

	// Sorted ascending by next review date, the not-yet-due row dropped.
	assert.Equal(t, "a-1", due[0].ID)
	assert.Equal(t, "a-2", due[1].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSortByNextReview(t *testing.T) {
	assessments := []model.Assessment{
		{ID: "c", NextReviewAt: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)},
		{ID: "a", NextReviewAt: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)},
		{ID: "b", NextReviewAt: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)},
	}
	sortByNextReview(assessments)
	assert.Equal(t, "a", assessments[0].ID)
	assert.Equal(t, "b", assessments[1].ID)
	assert.Equal(t, "c", assessments[2].ID)
}
