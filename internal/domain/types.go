package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// CandidateStatus tracks where a candidate sits in the review flow.
type CandidateStatus string

const (
	CandidateStatusNew         CandidateStatus = "new"
	CandidateStatusReviewed    CandidateStatus = "reviewed"
	CandidateStatusShortlisted CandidateStatus = "shortlisted"
	CandidateStatusScheduled   CandidateStatus = "scheduled"
	CandidateStatusRejected    CandidateStatus = "rejected"
)

// CandidateStatuses lists the review flow in order.
var CandidateStatuses = []CandidateStatus{
	CandidateStatusNew, CandidateStatusReviewed, CandidateStatusShortlisted,
	CandidateStatusScheduled, CandidateStatusRejected,
}

// Valid reports whether s is a known candidate status.
func (s CandidateStatus) Valid() bool {
	switch s {
	case CandidateStatusNew, CandidateStatusReviewed, CandidateStatusShortlisted,
		CandidateStatusScheduled, CandidateStatusRejected:
		return true
	default:
		return false
	}
}

// JobStatus is the publication state of a job posting.
type JobStatus string

const (
	JobStatusActive JobStatus = "active"
	JobStatusDraft  JobStatus = "draft"
	JobStatusClosed JobStatus = "closed"
)

// Valid reports whether s is a known job status.
func (s JobStatus) Valid() bool {
	switch s {
	case JobStatusActive, JobStatusDraft, JobStatusClosed:
		return true
	default:
		return false
	}
}

// GrowthPotential categories returned by the screening workflow.
const (
	GrowthHigh   = "high"
	GrowthMedium = "medium"
	GrowthLow    = "low"
)

// SkillMatch is one row of the per-skill match breakdown.
type SkillMatch struct {
	Name  string `json:"name" mapstructure:"name"`
	Match int    `json:"match" mapstructure:"match"`
}

// JobPosting is a position candidates are screened against.
type JobPosting struct {
	ID               string    `json:"id"`
	UserID           string    `json:"user_id"`
	Title            string    `json:"title"`
	Description      string    `json:"description"`
	Location         string    `json:"location"`
	WorkType         []string  `json:"work_type"`
	YearsExperience  string    `json:"years_experience"`
	MustHaveSkills   []string  `json:"must_have_skills"`
	GoodToHaveSkills []string  `json:"good_to_have_skills"`
	Status           JobStatus `json:"status"`
	CreatedAt        time.Time `json:"created_at"`
}

// Validate checks required fields before the posting is stored.
func (j *JobPosting) Validate() error {
	var errs []error
	if strings.TrimSpace(j.UserID) == "" {
		errs = append(errs, errors.New("user_id is required"))
	}
	if strings.TrimSpace(j.Title) == "" {
		errs = append(errs, errors.New("title is required"))
	}
	if !j.Status.Valid() {
		errs = append(errs, fmt.Errorf("unknown job status %q", j.Status))
	}
	return errors.Join(errs...)
}

// CandidateRecord is the persisted outcome of one analyzed resume.
type CandidateRecord struct {
	ID                 string          `json:"id,omitempty"`
	JobID              string          `json:"job_id"`
	UserID             string          `json:"user_id"`
	Name               string          `json:"name"`
	Email              string          `json:"email"`
	Phone              string          `json:"phone"`
	Location           string          `json:"location"`
	MatchScore         int             `json:"match_score"`
	PredictiveScore    int             `json:"predictive_score"`
	BiasScore          int             `json:"bias_score"`
	SkillsAnalysis     []SkillMatch    `json:"skills_analysis"`
	RobustPoints       []string        `json:"robust_points"`
	LackingPoints      []string        `json:"lacking_points"`
	GrowthPotential    string          `json:"growth_potential"`
	TotalExperience    string          `json:"total_experience"`
	RelevantExperience string          `json:"relevant_experience"`
	ResumeURL          string          `json:"resume_url"`
	ParsedData         map[string]any  `json:"parsed_data,omitempty"`
	Status             CandidateStatus `json:"status"`
	CreatedAt          time.Time       `json:"created_at,omitempty"`
}

// Validate checks required fields and score ranges at the store boundary.
func (c *CandidateRecord) Validate() error {
	var errs []error
	if strings.TrimSpace(c.JobID) == "" {
		errs = append(errs, errors.New("job_id is required"))
	}
	if strings.TrimSpace(c.UserID) == "" {
		errs = append(errs, errors.New("user_id is required"))
	}
	if strings.TrimSpace(c.Name) == "" {
		errs = append(errs, errors.New("name is required"))
	}
	if !c.Status.Valid() {
		errs = append(errs, fmt.Errorf("unknown candidate status %q", c.Status))
	}
	scores := []struct {
		field string
		value int
	}{
		{"match_score", c.MatchScore},
		{"predictive_score", c.PredictiveScore},
		{"bias_score", c.BiasScore},
	}
	for _, s := range scores {
		if s.value < 0 || s.value > 100 {
			errs = append(errs, fmt.Errorf("%s %d out of range 0-100", s.field, s.value))
		}
	}
	switch c.GrowthPotential {
	case "", GrowthHigh, GrowthMedium, GrowthLow:
	default:
		errs = append(errs, fmt.Errorf("unknown growth_potential %q", c.GrowthPotential))
	}
	return errors.Join(errs...)
}
