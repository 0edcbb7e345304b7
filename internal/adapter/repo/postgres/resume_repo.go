package postgres

import (
	"fmt"

	"go.opentelemetry.io/otel"

	"github.com/fairyhunter13/ai-talent-ranker/internal/domain"
)

// ResumeTable holds one cleaned resume per row.
const ResumeTable = "cleaned_resumes"

const resumeColumns = `id::text, COALESCE(fullname,''), COALESCE(email,''), COALESCE(phonenumber,''),
	COALESCE(experience,''), COALESCE(language_skill,''), COALESCE(certificate,''), COALESCE(achievement,''),
	COALESCE(project,''), COALESCE(activity,''), COALESCE(professional_skill,''), COALESCE(soft_skill,''),
	COALESCE(education,''), COALESCE(full_text,'')`

// ResumeRepo reads candidate records from cleaned_resumes.
type ResumeRepo struct{ Pool PgxPool }

// NewResumeRepo constructs a ResumeRepo with the given pool.
func NewResumeRepo(p PgxPool) *ResumeRepo { return &ResumeRepo{Pool: p} }

// LoadAll returns every resume ordered by id.
func (r *ResumeRepo) LoadAll(ctx domain.Context) ([]domain.Candidate, error) {
	ctx, span := otel.Tracer("repo.resumes").Start(ctx, "resumes.LoadAll")
	defer span.End()
	span.SetAttributes(dbAttrs("SELECT", ResumeTable)...)

	q := `SELECT ` + resumeColumns + ` FROM ` + ResumeTable + ` ORDER BY id`
	out, err := r.query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("op=resume.load_all: %w", err)
	}
	return out, nil
}

// GetByIDs returns the resumes whose id is in ids. Unknown ids are skipped
// and the result carries no particular order.
func (r *ResumeRepo) GetByIDs(ctx domain.Context, ids []string) ([]domain.Candidate, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	ctx, span := otel.Tracer("repo.resumes").Start(ctx, "resumes.GetByIDs")
	defer span.End()
	span.SetAttributes(dbAttrs("SELECT", ResumeTable)...)

	q := `SELECT ` + resumeColumns + ` FROM ` + ResumeTable + ` WHERE id::text = ANY($1::text[])`
	out, err := r.query(ctx, q, ids)
	if err != nil {
		return nil, fmt.Errorf("op=resume.get_by_ids: %w", err)
	}
	return out, nil
}

// LoadTexts returns (id, full_text) pairs for index synchronisation. Only
// ID and FullText are populated on the returned candidates.
func (r *ResumeRepo) LoadTexts(ctx domain.Context) ([]domain.Candidate, error) {
	ctx, span := otel.Tracer("repo.resumes").Start(ctx, "resumes.LoadTexts")
	defer span.End()
	span.SetAttributes(dbAttrs("SELECT", ResumeTable)...)

	rows, err := r.Pool.Query(ctx, `SELECT id::text, COALESCE(full_text,'') FROM `+ResumeTable+` ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("op=resume.load_texts: %w", err)
	}
	defer rows.Close()
	var out []domain.Candidate
	for rows.Next() {
		var c domain.Candidate
		if err := rows.Scan(&c.ID, &c.FullText); err != nil {
			return nil, fmt.Errorf("op=resume.load_texts: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("op=resume.load_texts: %w", err)
	}
	return out, nil
}

func (r *ResumeRepo) query(ctx domain.Context, q string, args ...any) ([]domain.Candidate, error) {
	rows, err := r.Pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []domain.Candidate
	for rows.Next() {
		var c domain.Candidate
		if err := rows.Scan(
			&c.ID, &c.FullName, &c.Email, &c.PhoneNumber,
			&c.Experience, &c.LanguageSkill, &c.Certificate, &c.Achievement,
			&c.Project, &c.Activity, &c.ProfessionalSkill, &c.SoftSkill,
			&c.Education, &c.FullText,
		); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
