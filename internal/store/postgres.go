package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/plannetic/compliance-cli/internal/db"
	"github.com/plannetic/compliance-cli/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool db.Pool
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// preparedStatements lists queries to prepare on each new connection for
// faster execution of the most frequently used store operations.
var preparedStatements = map[string]string{
	"list_subjects":         `SELECT id, name, email, created_at FROM subjects ORDER BY name, id`,
	"list_records":          `SELECT id, subject_id, record_type, statuses, overall, notes, evidence, created_at, updated_at FROM compliance_records WHERE record_type = $1 ORDER BY created_at, id`,
	"get_record":            `SELECT id, subject_id, record_type, statuses, overall, notes, evidence, created_at, updated_at FROM compliance_records WHERE record_type = $1 AND id = $2`,
	"get_record_by_subject": `SELECT id, subject_id, record_type, statuses, overall, notes, evidence, created_at, updated_at FROM compliance_records WHERE record_type = $1 AND subject_id = $2`,
	"update_record":         `UPDATE compliance_records SET statuses = $1, overall = $2, notes = $3, evidence = $4, updated_at = $5 WHERE id = $6`,
	"insert_assessment":     `INSERT INTO assessments (id, subject_id, record_type, answers, total, tier, completed_at, next_review_at, created_at) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
	"latest_assessment":     `SELECT id, subject_id, record_type, answers, total, tier, completed_at, next_review_at, created_at FROM assessments WHERE record_type = $1 AND subject_id = $2 ORDER BY completed_at DESC, created_at DESC LIMIT 1`,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	// Prepare frequently-used statements on each new connection.
	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool}, nil
}

// Pool returns the underlying database pool for use by subsystems that
// need direct query access.
func (s *PostgresStore) Pool() db.Pool {
	return s.pool
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS subjects (
	id         TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	name       TEXT NOT NULL,
	email      TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS compliance_records (
	id          TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	subject_id  TEXT NOT NULL REFERENCES subjects(id),
	record_type TEXT NOT NULL,
	statuses    JSONB NOT NULL,
	overall     TEXT NOT NULL,
	notes       TEXT NOT NULL DEFAULT '',
	evidence    TEXT NOT NULL DEFAULT '',
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE(subject_id, record_type)
);

CREATE TABLE IF NOT EXISTS assessments (
	id             TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	subject_id     TEXT NOT NULL REFERENCES subjects(id),
	record_type    TEXT NOT NULL,
	answers        JSONB NOT NULL,
	total          INTEGER NOT NULL,
	tier           TEXT NOT NULL,
	completed_at   TIMESTAMPTZ NOT NULL,
	next_review_at TIMESTAMPTZ NOT NULL,
	created_at     TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_records_type ON compliance_records(record_type);
CREATE INDEX IF NOT EXISTS idx_records_subject ON compliance_records(subject_id);
CREATE INDEX IF NOT EXISTS idx_assessments_subject_type ON assessments(subject_id, record_type);
CREATE INDEX IF NOT EXISTS idx_assessments_next_review ON assessments(next_review_at);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) ListSubjects(ctx context.Context) ([]model.Subject, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, name, email, created_at FROM subjects ORDER BY name, id`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list subjects")
	}
	defer rows.Close()

	var subjects []model.Subject
	for rows.Next() {
		var sub model.Subject
		if err := rows.Scan(&sub.ID, &sub.Name, &sub.Email, &sub.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan subject")
		}
		subjects = append(subjects, sub)
	}
	return subjects, eris.Wrap(rows.Err(), "postgres: list subjects iterate")
}

func (s *PostgresStore) UpsertSubjects(ctx context.Context, subjects []model.Subject) (int64, error) {
	if len(subjects) == 0 {
		return 0, nil
	}

	now := time.Now().UTC()
	rows := make([][]any, 0, len(subjects))
	for _, sub := range subjects {
		id := sub.ID
		if id == "" {
			id = uuid.New().String()
		}
		createdAt := sub.CreatedAt
		if createdAt.IsZero() {
			createdAt = now
		}
		rows = append(rows, []any{id, sub.Name, sub.Email, createdAt})
	}

	n, err := db.BulkUpsert(ctx, s.pool, db.UpsertConfig{
		Table:        "subjects",
		Columns:      []string{"id", "name", "email", "created_at"},
		ConflictKeys: []string{"id"},
		UpdateCols:   []string{"name", "email"},
	}, rows)
	return n, eris.Wrap(err, "postgres: upsert subjects")
}

func (s *PostgresStore) ListRecords(ctx context.Context, rt model.RecordType) ([]model.ComplianceRecord, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, subject_id, record_type, statuses, overall, notes, evidence, created_at, updated_at
		 FROM compliance_records WHERE record_type = $1 ORDER BY created_at, id`,
		string(rt),
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list records")
	}
	defer rows.Close()

	var records []model.ComplianceRecord
	for rows.Next() {
		rec, err := scanPgRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, *rec)
	}
	return records, eris.Wrap(rows.Err(), "postgres: list records iterate")
}

func (s *PostgresStore) GetRecord(ctx context.Context, rt model.RecordType, id string) (*model.ComplianceRecord, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, subject_id, record_type, statuses, overall, notes, evidence, created_at, updated_at
		 FROM compliance_records WHERE record_type = $1 AND id = $2`,
		string(rt), id,
	)
	rec, err := scanPgRecord(row)
	if eris.Is(err, pgx.ErrNoRows) {
		return nil, eris.Errorf("record not found: %s", id)
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: get record")
	}
	return rec, nil
}

func (s *PostgresStore) GetRecordBySubject(ctx context.Context, rt model.RecordType, subjectID string) (*model.ComplianceRecord, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, subject_id, record_type, statuses, overall, notes, evidence, created_at, updated_at
		 FROM compliance_records WHERE record_type = $1 AND subject_id = $2`,
		string(rt), subjectID,
	)
	rec, err := scanPgRecord(row)
	if eris.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: get record by subject")
	}
	return rec, nil
}

func (s *PostgresStore) InsertRecord(ctx context.Context, rec *model.ComplianceRecord) (*model.ComplianceRecord, error) {
	stored := prepareRecord(rec)
	statusesJSON, err := json.Marshal(stored.Statuses)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: marshal statuses")
	}

	// ON CONFLICT DO NOTHING + re-read: the unique constraint on
	// (subject_id, record_type) is the backstop against two concurrent
	// first edits materializing the same subject twice.
	_, err = s.pool.Exec(ctx,
		`INSERT INTO compliance_records (id, subject_id, record_type, statuses, overall, notes, evidence, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 ON CONFLICT (subject_id, record_type) DO NOTHING`,
		stored.ID, stored.SubjectID, string(stored.Type), statusesJSON, string(stored.Overall),
		stored.Notes, stored.Evidence, stored.CreatedAt, stored.UpdatedAt,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: insert record for subject %s", rec.SubjectID)
	}

	return s.GetRecordBySubject(ctx, stored.Type, stored.SubjectID)
}

func (s *PostgresStore) UpdateRecord(ctx context.Context, rec *model.ComplianceRecord) error {
	statusesJSON, err := json.Marshal(rec.Statuses)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal statuses")
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE compliance_records SET statuses = $1, overall = $2, notes = $3, evidence = $4, updated_at = $5 WHERE id = $6`,
		statusesJSON, string(rec.Overall), rec.Notes, rec.Evidence, time.Now().UTC(), rec.ID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update record %s", rec.ID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("record not found: %s", rec.ID)
	}
	return nil
}

func (s *PostgresStore) UpsertRecord(ctx context.Context, rec *model.ComplianceRecord) (*model.ComplianceRecord, error) {
	stored := prepareRecord(rec)
	statusesJSON, err := json.Marshal(stored.Statuses)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: marshal statuses")
	}

	// A single INSERT ... ON CONFLICT DO UPDATE collapses the
	// materialize-then-update pair into one transactional write.
	row := s.pool.QueryRow(ctx,
		`INSERT INTO compliance_records (id, subject_id, record_type, statuses, overall, notes, evidence, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 ON CONFLICT (subject_id, record_type) DO UPDATE SET
			statuses = EXCLUDED.statuses,
			overall = EXCLUDED.overall,
			notes = EXCLUDED.notes,
			evidence = EXCLUDED.evidence,
			updated_at = EXCLUDED.updated_at
		 RETURNING id, subject_id, record_type, statuses, overall, notes, evidence, created_at, updated_at`,
		stored.ID, stored.SubjectID, string(stored.Type), statusesJSON, string(stored.Overall),
		stored.Notes, stored.Evidence, stored.CreatedAt, stored.UpdatedAt,
	)
	result, err := scanPgRecord(row)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: upsert record for subject %s", rec.SubjectID)
	}
	return result, nil
}

func (s *PostgresStore) CreateAssessment(ctx context.Context, a *model.Assessment) error {
	answersJSON, err := json.Marshal(a.Answers)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal answers")
	}

	createdAt := a.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO assessments (id, subject_id, record_type, answers, total, tier, completed_at, next_review_at, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		a.ID, a.SubjectID, string(a.Type), answersJSON, a.Total, string(a.Tier),
		a.CompletedAt, a.NextReviewAt, createdAt,
	)
	return eris.Wrapf(err, "postgres: insert assessment for subject %s", a.SubjectID)
}

func (s *PostgresStore) LatestAssessment(ctx context.Context, rt model.RecordType, subjectID string) (*model.Assessment, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, subject_id, record_type, answers, total, tier, completed_at, next_review_at, created_at
		 FROM assessments WHERE record_type = $1 AND subject_id = $2
		 ORDER BY completed_at DESC, created_at DESC LIMIT 1`,
		string(rt), subjectID,
	)
	a, err := scanPgAssessment(row)
	if eris.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: latest assessment")
	}
	return a, nil
}

func (s *PostgresStore) ListAssessments(ctx context.Context, filter AssessmentFilter) ([]model.Assessment, error) {
	query := `SELECT id, subject_id, record_type, answers, total, tier, completed_at, next_review_at, created_at FROM assessments WHERE 1=1`
	var args []any

	if filter.SubjectID != "" {
		args = append(args, filter.SubjectID)
		query += fmt.Sprintf(` AND subject_id = $%d`, len(args))
	}
	if filter.Type != "" {
		args = append(args, string(filter.Type))
		query += fmt.Sprintf(` AND record_type = $%d`, len(args))
	}
	query += ` ORDER BY completed_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	args = append(args, limit)
	query += fmt.Sprintf(` LIMIT $%d`, len(args))

	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += fmt.Sprintf(` OFFSET $%d`, len(args))
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list assessments")
	}
	defer rows.Close()

	var assessments []model.Assessment
	for rows.Next() {
		a, err := scanPgAssessment(rows)
		if err != nil {
			return nil, err
		}
		assessments = append(assessments, *a)
	}
	return assessments, eris.Wrap(rows.Err(), "postgres: list assessments iterate")
}

func (s *PostgresStore) ListDueReviews(ctx context.Context, dueBy time.Time) ([]model.Assessment, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT DISTINCT ON (subject_id, record_type)
			id, subject_id, record_type, answers, total, tier, completed_at, next_review_at, created_at
		 FROM assessments
		 ORDER BY subject_id, record_type, completed_at DESC`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list due reviews")
	}
	defer rows.Close()

	var due []model.Assessment
	for rows.Next() {
		a, err := scanPgAssessment(rows)
		if err != nil {
			return nil, err
		}
		if !a.NextReviewAt.After(dueBy) {
			due = append(due, *a)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "postgres: list due reviews iterate")
	}

	sortByNextReview(due)
	return due, nil
}

// sortByNextReview sorts assessments ascending by next review date.
func sortByNextReview(assessments []model.Assessment) {
	// Insertion sort is fine for typical result sizes.
	for i := 1; i < len(assessments); i++ {
		for j := i; j > 0 && assessments[j].NextReviewAt.Before(assessments[j-1].NextReviewAt); j-- {
			assessments[j], assessments[j-1] = assessments[j-1], assessments[j]
		}
	}
}

func scanPgRecord(row pgx.Row) (*model.ComplianceRecord, error) {
	var rec model.ComplianceRecord
	var statusesJSON []byte

	err := row.Scan(&rec.ID, &rec.SubjectID, &rec.Type, &statusesJSON, &rec.Overall,
		&rec.Notes, &rec.Evidence, &rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(statusesJSON, &rec.Statuses); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal statuses")
	}
	return &rec, nil
}

func scanPgAssessment(row pgx.Row) (*model.Assessment, error) {
	var a model.Assessment
	var answersJSON []byte

	err := row.Scan(&a.ID, &a.SubjectID, &a.Type, &answersJSON, &a.Total, &a.Tier,
		&a.CompletedAt, &a.NextReviewAt, &a.CreatedAt)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(answersJSON, &a.Answers); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal answers")
	}
	return &a, nil
}
