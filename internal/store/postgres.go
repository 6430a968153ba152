// Package store persists job postings and candidate records in Postgres.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Kounain2234/AI-Recruitment-App/internal/domain"
)

// ErrNotFound is returned when a row does not exist or belongs to another user.
var ErrNotFound = errors.New("not found")

// DB is the subset of *pgxpool.Pool the store uses.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

var _ DB = (*pgxpool.Pool)(nil)

type Postgres struct {
	db DB
}

func New(db DB) *Postgres {
	return &Postgres{db: db}
}

// Connect opens a pool and runs migrations.
func Connect(ctx context.Context, dsn string) (*pgxpool.Pool, *Postgres, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to postgres: %w", err)
	}
	pg := New(pool)
	if err := pg.Migrate(ctx); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("run migrations: %w", err)
	}
	return pool, pg, nil
}

func (p *Postgres) Migrate(ctx context.Context) error {
	const stmt = `
        CREATE TABLE IF NOT EXISTS jobs (
            id UUID PRIMARY KEY,
            user_id TEXT NOT NULL,
            title TEXT NOT NULL,
            description TEXT NOT NULL DEFAULT '',
            location TEXT NOT NULL DEFAULT '',
            work_type TEXT[] NOT NULL DEFAULT '{}',
            years_experience TEXT NOT NULL DEFAULT '',
            must_have_skills TEXT[] NOT NULL DEFAULT '{}',
            good_to_have_skills TEXT[] NOT NULL DEFAULT '{}',
            status TEXT NOT NULL DEFAULT 'active',
            created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
        );
        CREATE INDEX IF NOT EXISTS jobs_user_idx ON jobs (user_id, created_at DESC);
        CREATE TABLE IF NOT EXISTS candidates (
            id UUID PRIMARY KEY,
            job_id UUID NOT NULL REFERENCES jobs(id) ON DELETE CASCADE,
            user_id TEXT NOT NULL,
            name TEXT NOT NULL,
            email TEXT NOT NULL DEFAULT '',
            phone TEXT NOT NULL DEFAULT '',
            location TEXT NOT NULL DEFAULT '',
            match_score INT NOT NULL DEFAULT 0 CHECK (match_score BETWEEN 0 AND 100),
            predictive_score INT NOT NULL DEFAULT 0 CHECK (predictive_score BETWEEN 0 AND 100),
            bias_score INT NOT NULL DEFAULT 0 CHECK (bias_score BETWEEN 0 AND 100),
            skills_analysis JSONB NOT NULL DEFAULT '[]',
            robust_points TEXT[] NOT NULL DEFAULT '{}',
            lacking_points TEXT[] NOT NULL DEFAULT '{}',
            growth_potential TEXT NOT NULL DEFAULT '',
            total_experience TEXT NOT NULL DEFAULT '',
            relevant_experience TEXT NOT NULL DEFAULT '',
            resume_url TEXT NOT NULL DEFAULT '',
            parsed_data JSONB,
            status TEXT NOT NULL DEFAULT 'new',
            created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
        );
        CREATE INDEX IF NOT EXISTS candidates_job_idx ON candidates (job_id, match_score DESC);`
	_, err := p.db.Exec(ctx, stmt)
	return err
}

func (p *Postgres) CreateJob(ctx context.Context, job *domain.JobPosting) error {
	if job.Status == "" {
		job.Status = domain.JobStatusActive
	}
	if err := job.Validate(); err != nil {
		return err
	}
	job.ID = uuid.NewString()
	const query = `
        INSERT INTO jobs (id, user_id, title, description, location, work_type, years_experience,
                          must_have_skills, good_to_have_skills, status)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
        RETURNING created_at`
	return p.db.QueryRow(ctx, query,
		job.ID, job.UserID, job.Title, job.Description, job.Location, nonNil(job.WorkType),
		job.YearsExperience, nonNil(job.MustHaveSkills), nonNil(job.GoodToHaveSkills), string(job.Status),
	).Scan(&job.CreatedAt)
}

const jobColumns = `id::text, user_id, title, description, location, work_type, years_experience,
        must_have_skills, good_to_have_skills, status, created_at`

func (p *Postgres) GetJob(ctx context.Context, userID, jobID string) (*domain.JobPosting, error) {
	if _, err := uuid.Parse(jobID); err != nil {
		return nil, ErrNotFound
	}
	row := p.db.QueryRow(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = $1 AND user_id = $2`, jobID, userID)
	job, err := scanJob(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return job, err
}

func (p *Postgres) ListJobs(ctx context.Context, userID string, status domain.JobStatus) ([]domain.JobPosting, error) {
	query := `SELECT ` + jobColumns + ` FROM jobs WHERE user_id = $1`
	args := []any{userID}
	if status != "" {
		query += ` AND status = $2`
		args = append(args, string(status))
	}
	query += ` ORDER BY created_at DESC`

	rows, err := p.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []domain.JobPosting{}
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *job)
	}
	return out, rows.Err()
}

// InsertCandidate validates rec and stores it, returning the new id.
func (p *Postgres) InsertCandidate(ctx context.Context, rec *domain.CandidateRecord) (string, error) {
	if rec.Status == "" {
		rec.Status = domain.CandidateStatusNew
	}
	if err := rec.Validate(); err != nil {
		return "", fmt.Errorf("invalid candidate: %w", err)
	}
	skills, err := json.Marshal(nonNilSkills(rec.SkillsAnalysis))
	if err != nil {
		return "", fmt.Errorf("encode skills: %w", err)
	}
	var parsed []byte
	if rec.ParsedData != nil {
		if parsed, err = json.Marshal(rec.ParsedData); err != nil {
			return "", fmt.Errorf("encode parsed data: %w", err)
		}
	}

	id := uuid.NewString()
	const query = `
        INSERT INTO candidates (id, job_id, user_id, name, email, phone, location, match_score,
                                predictive_score, bias_score, skills_analysis, robust_points, lacking_points,
                                growth_potential, total_experience, relevant_experience, resume_url,
                                parsed_data, status)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)
        RETURNING created_at`
	var createdAt time.Time
	err = p.db.QueryRow(ctx, query,
		id, rec.JobID, rec.UserID, rec.Name, rec.Email, rec.Phone, rec.Location, rec.MatchScore,
		rec.PredictiveScore, rec.BiasScore, skills, nonNil(rec.RobustPoints), nonNil(rec.LackingPoints),
		rec.GrowthPotential, rec.TotalExperience, rec.RelevantExperience, rec.ResumeURL,
		parsed, string(rec.Status),
	).Scan(&createdAt)
	if err != nil {
		return "", fmt.Errorf("insert candidate: %w", err)
	}
	rec.ID = id
	rec.CreatedAt = createdAt
	return id, nil
}

// CandidateFilter narrows ListCandidates. Empty fields match everything.
type CandidateFilter struct {
	UserID string
	JobID  string
	Status domain.CandidateStatus
	Query  string
	Limit  int
}

const candidateColumns = `id::text, job_id::text, user_id, name, email, phone, location, match_score,
        predictive_score, bias_score, skills_analysis, robust_points, lacking_points, growth_potential,
        total_experience, relevant_experience, resume_url, parsed_data, status, created_at`

func buildCandidateQuery(f CandidateFilter) (string, []any) {
	var (
		where = []string{"user_id = $1"}
		args  = []any{f.UserID}
	)
	add := func(clause string, arg any) {
		args = append(args, arg)
		where = append(where, fmt.Sprintf(clause, len(args)))
	}
	if f.JobID != "" {
		add("job_id::text = $%d", f.JobID)
	}
	if f.Status != "" {
		add("status = $%d", string(f.Status))
	}
	if q := strings.TrimSpace(f.Query); q != "" {
		add("name ILIKE $%d", "%"+escapeLike(q)+"%")
	}
	limit := f.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	args = append(args, limit)
	query := fmt.Sprintf(`SELECT %s FROM candidates WHERE %s ORDER BY match_score DESC, created_at DESC LIMIT $%d`,
		candidateColumns, strings.Join(where, " AND "), len(args))
	return query, args
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

func (p *Postgres) ListCandidates(ctx context.Context, f CandidateFilter) ([]domain.CandidateRecord, error) {
	query, args := buildCandidateQuery(f)
	rows, err := p.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []domain.CandidateRecord{}
	for rows.Next() {
		rec, err := scanCandidate(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *rec)
	}
	return out, rows.Err()
}

func (p *Postgres) GetCandidate(ctx context.Context, userID, id string) (*domain.CandidateRecord, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrNotFound
	}
	row := p.db.QueryRow(ctx, `SELECT `+candidateColumns+` FROM candidates WHERE id = $1 AND user_id = $2`, id, userID)
	rec, err := scanCandidate(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return rec, err
}

func (p *Postgres) UpdateCandidateStatus(ctx context.Context, userID, id string, status domain.CandidateStatus) error {
	if !status.Valid() {
		return fmt.Errorf("unknown candidate status %q", status)
	}
	if _, err := uuid.Parse(id); err != nil {
		return ErrNotFound
	}
	tag, err := p.db.Exec(ctx, `UPDATE candidates SET status = $1 WHERE id = $2 AND user_id = $3`, string(status), id, userID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteJob removes a job; its candidates go with it.
func (p *Postgres) DeleteJob(ctx context.Context, userID, jobID string) error {
	if _, err := uuid.Parse(jobID); err != nil {
		return ErrNotFound
	}
	return p.deleteOwned(ctx, `DELETE FROM jobs WHERE id = $1 AND user_id = $2`, jobID, userID)
}

func (p *Postgres) DeleteCandidate(ctx context.Context, userID, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return ErrNotFound
	}
	return p.deleteOwned(ctx, `DELETE FROM candidates WHERE id = $1 AND user_id = $2`, id, userID)
}

func (p *Postgres) deleteOwned(ctx context.Context, query, id, userID string) error {
	tag, err := p.db.Exec(ctx, query, id, userID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// CandidateCounts summarizes a user's candidates for the dashboard.
type CandidateCounts struct {
	Total    int                            `json:"total"`
	ByStatus map[domain.CandidateStatus]int `json:"by_status"`
}

// NewCandidateCounts returns counts with every known status present at zero.
func NewCandidateCounts() CandidateCounts {
	c := CandidateCounts{ByStatus: make(map[domain.CandidateStatus]int, len(domain.CandidateStatuses))}
	for _, status := range domain.CandidateStatuses {
		c.ByStatus[status] = 0
	}
	return c
}

// Add folds n candidates with status into the counts.
func (c *CandidateCounts) Add(status domain.CandidateStatus, n int) {
	c.Total += n
	c.ByStatus[status] += n
}

func (p *Postgres) CountCandidates(ctx context.Context, userID string) (CandidateCounts, error) {
	counts := NewCandidateCounts()
	rows, err := p.db.Query(ctx, `SELECT status, COUNT(*) FROM candidates WHERE user_id = $1 GROUP BY status`, userID)
	if err != nil {
		return counts, err
	}
	defer rows.Close()
	for rows.Next() {
		var (
			status string
			n      int
		)
		if err := rows.Scan(&status, &n); err != nil {
			return counts, err
		}
		counts.Add(domain.CandidateStatus(status), n)
	}
	return counts, rows.Err()
}

func scanJob(row pgx.Row) (*domain.JobPosting, error) {
	var (
		job    domain.JobPosting
		status string
	)
	err := row.Scan(&job.ID, &job.UserID, &job.Title, &job.Description, &job.Location, &job.WorkType,
		&job.YearsExperience, &job.MustHaveSkills, &job.GoodToHaveSkills, &status, &job.CreatedAt)
	if err != nil {
		return nil, err
	}
	job.Status = domain.JobStatus(status)
	return &job, nil
}

func scanCandidate(row pgx.Row) (*domain.CandidateRecord, error) {
	var (
		rec            domain.CandidateRecord
		skills, parsed []byte
		status         string
	)
	err := row.Scan(&rec.ID, &rec.JobID, &rec.UserID, &rec.Name, &rec.Email, &rec.Phone, &rec.Location,
		&rec.MatchScore, &rec.PredictiveScore, &rec.BiasScore, &skills, &rec.RobustPoints, &rec.LackingPoints,
		&rec.GrowthPotential, &rec.TotalExperience, &rec.RelevantExperience, &rec.ResumeURL, &parsed,
		&status, &rec.CreatedAt)
	if err != nil {
		return nil, err
	}
	rec.Status = domain.CandidateStatus(status)
	if err := decodeCandidateJSON(&rec, skills, parsed); err != nil {
		return nil, err
	}
	return &rec, nil
}

func decodeCandidateJSON(rec *domain.CandidateRecord, skills, parsed []byte) error {
	rec.SkillsAnalysis = []domain.SkillMatch{}
	if len(skills) > 0 {
		if err := json.Unmarshal(skills, &rec.SkillsAnalysis); err != nil {
			return fmt.Errorf("decode skills_analysis: %w", err)
		}
	}
	if len(parsed) > 0 {
		if err := json.Unmarshal(parsed, &rec.ParsedData); err != nil {
			return fmt.Errorf("decode parsed_data: %w", err)
		}
	}
	return nil
}

func nonNil(in []string) []string {
	if in == nil {
		return []string{}
	}
	return in
}

func nonNilSkills(in []domain.SkillMatch) []domain.SkillMatch {
	if in == nil {
		return []domain.SkillMatch{}
	}
	return in
}
