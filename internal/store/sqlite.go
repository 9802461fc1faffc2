package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/plannetic/compliance-cli/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS subjects (
	id         TEXT PRIMARY KEY,
	name       TEXT NOT NULL,
	email      TEXT NOT NULL DEFAULT '',
	created_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS compliance_records (
	id          TEXT PRIMARY KEY,
	subject_id  TEXT NOT NULL REFERENCES subjects(id),
	record_type TEXT NOT NULL,
	statuses    TEXT NOT NULL,
	overall     TEXT NOT NULL,
	notes       TEXT NOT NULL DEFAULT '',
	evidence    TEXT NOT NULL DEFAULT '',
	created_at  DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at  DATETIME NOT NULL DEFAULT (datetime('now')),
	UNIQUE(subject_id, record_type)
);

CREATE TABLE IF NOT EXISTS assessments (
	id             TEXT PRIMARY KEY,
	subject_id     TEXT NOT NULL REFERENCES subjects(id),
	record_type    TEXT NOT NULL,
	answers        TEXT NOT NULL,
	total          INTEGER NOT NULL,
	tier           TEXT NOT NULL,
	completed_at   DATETIME NOT NULL,
	next_review_at DATETIME NOT NULL,
	created_at     DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_records_type ON compliance_records(record_type);
CREATE INDEX IF NOT EXISTS idx_records_subject ON compliance_records(subject_id);
CREATE INDEX IF NOT EXISTS idx_assessments_subject_type ON assessments(subject_id, record_type);
CREATE INDEX IF NOT EXISTS idx_assessments_next_review ON assessments(next_review_at);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) ListSubjects(ctx context.Context) ([]model.Subject, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, email, created_at FROM subjects ORDER BY name, id`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list subjects")
	}
	defer rows.Close()

	var subjects []model.Subject
	for rows.Next() {
		var sub model.Subject
		if err := rows.Scan(&sub.ID, &sub.Name, &sub.Email, &sub.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan subject")
		}
		subjects = append(subjects, sub)
	}
	return subjects, eris.Wrap(rows.Err(), "sqlite: list subjects iterate")
}

func (s *SQLiteStore) UpsertSubjects(ctx context.Context, subjects []model.Subject) (int64, error) {
	if len(subjects) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: begin upsert subjects")
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO subjects (id, name, email, created_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET name = excluded.name, email = excluded.email`,
	)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: prepare upsert subjects")
	}
	defer stmt.Close()

	now := time.Now().UTC()
	var n int64
	for _, sub := range subjects {
		id := sub.ID
		if id == "" {
			id = uuid.New().String()
		}
		createdAt := sub.CreatedAt
		if createdAt.IsZero() {
			createdAt = now
		}
		if _, err := stmt.ExecContext(ctx, id, sub.Name, sub.Email, createdAt); err != nil {
			return n, eris.Wrapf(err, "sqlite: upsert subject %s", sub.Name)
		}
		n++
	}

	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "sqlite: commit upsert subjects")
	}
	return n, nil
}

const recordColumns = `id, subject_id, record_type, statuses, overall, notes, evidence, created_at, updated_at`

func (s *SQLiteStore) ListRecords(ctx context.Context, rt model.RecordType) ([]model.ComplianceRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+recordColumns+` FROM compliance_records WHERE record_type = ? ORDER BY created_at, id`,
		string(rt),
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list records")
	}
	defer rows.Close()

	var records []model.ComplianceRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, *rec)
	}
	return records, eris.Wrap(rows.Err(), "sqlite: list records iterate")
}

func (s *SQLiteStore) GetRecord(ctx context.Context, rt model.RecordType, id string) (*model.ComplianceRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+recordColumns+` FROM compliance_records WHERE record_type = ? AND id = ?`,
		string(rt), id,
	)
	rec, err := scanRecord(row)
	if err == errNoRecord {
		return nil, eris.Errorf("record not found: %s", id)
	}
	return rec, err
}

func (s *SQLiteStore) GetRecordBySubject(ctx context.Context, rt model.RecordType, subjectID string) (*model.ComplianceRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+recordColumns+` FROM compliance_records WHERE record_type = ? AND subject_id = ?`,
		string(rt), subjectID,
	)
	rec, err := scanRecord(row)
	if err == errNoRecord {
		return nil, nil
	}
	return rec, err
}

func (s *SQLiteStore) InsertRecord(ctx context.Context, rec *model.ComplianceRecord) (*model.ComplianceRecord, error) {
	stored := prepareRecord(rec)
	statusesJSON, err := json.Marshal(stored.Statuses)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: marshal statuses")
	}

	// INSERT OR IGNORE + re-read keeps first-edit materialization
	// idempotent under concurrent calls for the same subject.
	_, err = s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO compliance_records (`+recordColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		stored.ID, stored.SubjectID, string(stored.Type), string(statusesJSON), string(stored.Overall),
		stored.Notes, stored.Evidence, stored.CreatedAt, stored.UpdatedAt,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: insert record for subject %s", rec.SubjectID)
	}

	return s.GetRecordBySubject(ctx, stored.Type, stored.SubjectID)
}

func (s *SQLiteStore) UpdateRecord(ctx context.Context, rec *model.ComplianceRecord) error {
	statusesJSON, err := json.Marshal(rec.Statuses)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal statuses")
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE compliance_records SET statuses = ?, overall = ?, notes = ?, evidence = ?, updated_at = ? WHERE id = ?`,
		string(statusesJSON), string(rec.Overall), rec.Notes, rec.Evidence, time.Now().UTC(), rec.ID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update record %s", rec.ID)
	}
	return checkRowsAffected(res, "record", rec.ID)
}

func (s *SQLiteStore) UpsertRecord(ctx context.Context, rec *model.ComplianceRecord) (*model.ComplianceRecord, error) {
	stored := prepareRecord(rec)
	statusesJSON, err := json.Marshal(stored.Statuses)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: marshal statuses")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO compliance_records (`+recordColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(subject_id, record_type) DO UPDATE SET
			statuses = excluded.statuses,
			overall = excluded.overall,
			notes = excluded.notes,
			evidence = excluded.evidence,
			updated_at = excluded.updated_at`,
		stored.ID, stored.SubjectID, string(stored.Type), string(statusesJSON), string(stored.Overall),
		stored.Notes, stored.Evidence, stored.CreatedAt, stored.UpdatedAt,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: upsert record for subject %s", rec.SubjectID)
	}

	return s.GetRecordBySubject(ctx, stored.Type, stored.SubjectID)
}

func (s *SQLiteStore) CreateAssessment(ctx context.Context, a *model.Assessment) error {
	answersJSON, err := json.Marshal(a.Answers)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal answers")
	}

	createdAt := a.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO assessments (id, subject_id, record_type, answers, total, tier, completed_at, next_review_at, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.SubjectID, string(a.Type), string(answersJSON), a.Total, string(a.Tier),
		a.CompletedAt, a.NextReviewAt, createdAt,
	)
	return eris.Wrapf(err, "sqlite: insert assessment for subject %s", a.SubjectID)
}

const assessmentColumns = `id, subject_id, record_type, answers, total, tier, completed_at, next_review_at, created_at`

func (s *SQLiteStore) LatestAssessment(ctx context.Context, rt model.RecordType, subjectID string) (*model.Assessment, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+assessmentColumns+` FROM assessments
		 WHERE record_type = ? AND subject_id = ?
		 ORDER BY completed_at DESC, created_at DESC LIMIT 1`,
		string(rt), subjectID,
	)
	a, err := scanAssessment(row)
	if err == errNoRecord {
		return nil, nil
	}
	return a, err
}

func (s *SQLiteStore) ListAssessments(ctx context.Context, filter AssessmentFilter) ([]model.Assessment, error) {
	query := `SELECT ` + assessmentColumns + ` FROM assessments WHERE 1=1`
	var args []any

	if filter.SubjectID != "" {
		query += ` AND subject_id = ?`
		args = append(args, filter.SubjectID)
	}
	if filter.Type != "" {
		query += ` AND record_type = ?`
		args = append(args, string(filter.Type))
	}
	query += ` ORDER BY completed_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list assessments")
	}
	defer rows.Close()

	var assessments []model.Assessment
	for rows.Next() {
		a, err := scanAssessment(rows)
		if err != nil {
			return nil, err
		}
		assessments = append(assessments, *a)
	}
	return assessments, eris.Wrap(rows.Err(), "sqlite: list assessments iterate")
}

func (s *SQLiteStore) ListDueReviews(ctx context.Context, dueBy time.Time) ([]model.Assessment, error) {
	// Only the latest assessment per (subject, type) drives the review
	// cycle; superseded assessments keep their dates for audit only.
	rows, err := s.db.QueryContext(ctx,
		`SELECT a.id, a.subject_id, a.record_type, a.answers, a.total, a.tier, a.completed_at, a.next_review_at, a.created_at
		 FROM assessments a
		 JOIN (
			SELECT subject_id, record_type, MAX(completed_at) AS latest
			FROM assessments GROUP BY subject_id, record_type
		 ) l ON a.subject_id = l.subject_id AND a.record_type = l.record_type AND a.completed_at = l.latest
		 WHERE a.next_review_at <= ?
		 ORDER BY a.next_review_at`,
		dueBy,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list due reviews")
	}
	defer rows.Close()

	var assessments []model.Assessment
	for rows.Next() {
		a, err := scanAssessment(rows)
		if err != nil {
			return nil, err
		}
		assessments = append(assessments, *a)
	}
	return assessments, eris.Wrap(rows.Err(), "sqlite: list due reviews iterate")
}

// helpers

var errNoRecord = eris.New("no rows")

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Errorf("%s not found: %s", entity, id)
	}
	return nil
}

// prepareRecord fills in generated fields before a write: a fresh id
// when the caller passed none, default statuses, and timestamps.
func prepareRecord(rec *model.ComplianceRecord) model.ComplianceRecord {
	stored := *rec
	if stored.ID == "" {
		stored.ID = uuid.New().String()
	}
	if stored.Statuses == nil {
		stored.Statuses = model.DefaultStatuses(stored.Type)
	}
	now := time.Now().UTC()
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = now
	}
	stored.UpdatedAt = now
	return stored
}

type scannable interface {
	Scan(dest ...any) error
}

func scanRecord(row scannable) (*model.ComplianceRecord, error) {
	var rec model.ComplianceRecord
	var statusesJSON string

	err := row.Scan(&rec.ID, &rec.SubjectID, &rec.Type, &statusesJSON, &rec.Overall,
		&rec.Notes, &rec.Evidence, &rec.CreatedAt, &rec.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, errNoRecord
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan record")
	}

	if err := json.Unmarshal([]byte(statusesJSON), &rec.Statuses); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal statuses")
	}
	return &rec, nil
}

func scanAssessment(row scannable) (*model.Assessment, error) {
	var a model.Assessment
	var answersJSON string

	err := row.Scan(&a.ID, &a.SubjectID, &a.Type, &answersJSON, &a.Total, &a.Tier,
		&a.CompletedAt, &a.NextReviewAt, &a.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, errNoRecord
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan assessment")
	}

	if err := json.Unmarshal([]byte(answersJSON), &a.Answers); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal answers")
	}
	return &a, nil
}
