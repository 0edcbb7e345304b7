package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Intent is the classified shape of a hiring query.
type Intent string

const (
	IntentProjectDescription Intent = "project_description"
	IntentSpecificRole       Intent = "specific_role"
)

// Known reports whether the label is one of the two recognised intents.
func (i Intent) Known() bool {
	return i == IntentProjectDescription || i == IntentSpecificRole
}

// Criterion names a weighted ranking criterion.
type Criterion string

const (
	CriterionExperience        Criterion = "experience"
	CriterionProfessionalSkill Criterion = "professional_skill"
	CriterionLanguage          Criterion = "language"
	CriterionCertificate       Criterion = "certificate"
	CriterionAchievement       Criterion = "achievement"
	CriterionProject           Criterion = "project"
	CriterionSoftSkill         Criterion = "soft_skill"
	CriterionActivity          Criterion = "activity"
)

// Criteria lists the eight criteria in scoring order.
var Criteria = []Criterion{
	CriterionExperience,
	CriterionProfessionalSkill,
	CriterionLanguage,
	CriterionCertificate,
	CriterionAchievement,
	CriterionProject,
	CriterionSoftSkill,
	CriterionActivity,
}

var defaultWeights = map[Criterion]float64{
	CriterionExperience:        7,
	CriterionProfessionalSkill: 8,
	CriterionLanguage:          5,
	CriterionCertificate:       4,
	CriterionAchievement:       4,
	CriterionProject:           5,
	CriterionSoftSkill:         3,
	CriterionActivity:          2,
}

const (
	MinWeight = 0
	MaxWeight = 10
)

// Weights maps criteria to importance in [0,10].
type Weights map[Criterion]float64

// DefaultWeights returns a fresh copy of the fixed default weights.
func DefaultWeights() Weights {
	w := make(Weights, len(defaultWeights))
	for k, v := range defaultWeights {
		w[k] = v
	}
	return w
}

// Get returns the weight for c, or the fixed default when absent.
func (w Weights) Get(c Criterion) float64 {
	if v, ok := w[c]; ok {
		return v
	}
	return defaultWeights[c]
}

// WeightsFromRaw keeps only recognised criteria with numeric values.
func WeightsFromRaw(raw map[string]any) Weights {
	w := Weights{}
	for _, c := range Criteria {
		v, ok := raw[string(c)]
		if !ok {
			continue
		}
		f, ok := toFloat(v)
		if !ok {
			continue
		}
		if f < MinWeight {
			f = MinWeight
		}
		if f > MaxWeight {
			f = MaxWeight
		}
		w[c] = f
	}
	return w
}

func toFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case int:
		return float64(t), true
	case json.Number:
		f, err := t.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		return f, err == nil
	default:
		return 0, false
	}
}

// StringList decodes from either a JSON array of strings or a single string.
type StringList []string

func (s *StringList) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*s = nil
		return nil
	}
	if b[0] == '"' {
		var one string
		if err := json.Unmarshal(b, &one); err != nil {
			return err
		}
		if strings.TrimSpace(one) == "" {
			*s = nil
			return nil
		}
		*s = StringList{one}
		return nil
	}
	var many []any
	if err := json.Unmarshal(b, &many); err != nil {
		return fmt.Errorf("string list: %w", err)
	}
	out := make(StringList, 0, len(many))
	for _, v := range many {
		switch t := v.(type) {
		case string:
			out = append(out, t)
		case nil:
		default:
			out = append(out, fmt.Sprint(t))
		}
	}
	*s = out
	return nil
}

// RoleSpec describes one position to staff.
type RoleSpec struct {
	PositionTitle    string     `json:"position_title"`
	ExperienceLevel  string     `json:"experience_level"`
	HardSkills       StringList `json:"hard_skills"`
	Responsibilities StringList `json:"responsibilities"`
	Justification    string     `json:"justification"`
}

// UnspecifiedRole is shown when a role has no title.
const UnspecifiedRole = "UNSPECIFIED ROLE"

// DisplayTitle is the upper-cased title used to label a role's results.
func (r RoleSpec) DisplayTitle() string {
	t := strings.TrimSpace(r.PositionTitle)
	if t == "" {
		return UnspecifiedRole
	}
	return strings.ToUpper(t)
}

// Plan is the decomposition of a query into roles.
type Plan struct {
	ProjectSummary string     `json:"project_summary,omitempty"`
	Roles          []RoleSpec `json:"team_composition"`
}

// Candidate is a resume record from the resume store.
type Candidate struct {
	ID                string `json:"id"`
	FullName          string `json:"fullname"`
	Email             string `json:"email"`
	PhoneNumber       string `json:"phonenumber"`
	Experience        string `json:"experience"`
	LanguageSkill     string `json:"language_skill"`
	Certificate       string `json:"certificate"`
	Achievement       string `json:"achievement"`
	Project           string `json:"project"`
	Activity          string `json:"activity"`
	ProfessionalSkill string `json:"professional_skill"`
	SoftSkill         string `json:"soft_skill"`
	Education         string `json:"education"`
	FullText          string `json:"-"`
}

// Metric is a number that also accepts numeric strings and null.
type Metric float64

func (m *Metric) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*m = 0
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		s = strings.TrimSpace(s)
		if s == "" {
			*m = 0
			return nil
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return fmt.Errorf("metric %q: %w", s, err)
		}
		*m = Metric(f)
		return nil
	}
	var f float64
	if err := json.Unmarshal(b, &f); err != nil {
		return err
	}
	*m = Metric(f)
	return nil
}

// QualityMetrics are the fourteen values extracted from a resume.
type QualityMetrics struct {
	ExpYears                   Metric `json:"parsed_exp_years"`
	LangScore                  Metric `json:"parsed_lang_score"`
	EducationScore             Metric `json:"parsed_education_score"`
	ProfSkillAdvanced          Metric `json:"parsed_prof_skill_advanced"`
	ProfSkillBasic             Metric `json:"parsed_prof_skill_basic"`
	SoftSkillCount             Metric `json:"parsed_soft_skill_count"`
	CertsHighValue             Metric `json:"parsed_certs_high_value"`
	CertsStandardValue         Metric `json:"parsed_certs_standard_value"`
	AchievementsHighImpact     Metric `json:"parsed_achievements_high_impact"`
	AchievementsStandardImpact Metric `json:"parsed_achievements_standard_impact"`
	ProjectsHighImpact         Metric `json:"parsed_projects_high_impact"`
	ProjectsStandardImpact     Metric `json:"parsed_projects_standard_impact"`
	ActivitiesHighImpact       Metric `json:"parsed_activities_high_impact"`
	ActivitiesStandardImpact   Metric `json:"parsed_activities_standard_impact"`
}

// Weighted returns the metric that feeds criterion c.
func (q QualityMetrics) Weighted(c Criterion) float64 {
	switch c {
	case CriterionExperience:
		return float64(q.ExpYears)
	case CriterionProfessionalSkill:
		return float64(q.ProfSkillAdvanced)
	case CriterionLanguage:
		return float64(q.LangScore)
	case CriterionCertificate:
		return float64(q.CertsHighValue)
	case CriterionAchievement:
		return float64(q.AchievementsHighImpact)
	case CriterionProject:
		return float64(q.ProjectsHighImpact)
	case CriterionSoftSkill:
		return float64(q.SoftSkillCount)
	case CriterionActivity:
		return float64(q.ActivitiesHighImpact)
	}
	return 0
}

// ScoredCandidate is one ranked entry for a role.
type ScoredCandidate struct {
	ID                string         `json:"id"`
	Candidate         Candidate      `json:"data"`
	Metrics           QualityMetrics `json:"parsed_scores"`
	RelevanceScore    float64        `json:"relevance_score"`
	QualityScore      float64        `json:"quality_score"`
	NormalizedQuality float64        `json:"normalized_quality"`
	FinalScore        float64        `json:"final_score"`
	MatchedSkills     []string       `json:"matched_skills,omitempty"`
}

// RoleResult is the ranked list for one role.
type RoleResult struct {
	Role       string            `json:"role"`
	Spec       RoleSpec          `json:"spec"`
	Candidates []ScoredCandidate `json:"candidates"`
}

// StageStatus distinguishes success from degraded outcomes.
type StageStatus string

const (
	StageOK       StageStatus = "ok"
	StageFallback StageStatus = "fallback"
	StageFailed   StageStatus = "failed"
)

// StageReport is the typed outcome of one pipeline stage.
type StageReport struct {
	Stage  string      `json:"stage"`
	Status StageStatus `json:"status"`
	Detail string      `json:"detail,omitempty"`
}

// Degraded reports whether the stage did not complete normally.
func (r StageReport) Degraded() bool { return r.Status != StageOK }

// SearchResult is the output of one pipeline run.
type SearchResult struct {
	Query          string        `json:"query"`
	RefinedQuery   string        `json:"refined_query"`
	Intent         Intent        `json:"intent"`
	Weights        Weights       `json:"weights"`
	ProjectSummary string        `json:"project_summary,omitempty"`
	Roles          []RoleResult  `json:"roles"`
	Stages         []StageReport `json:"stages"`
	CompletedAt    time.Time     `json:"completed_at"`
}
