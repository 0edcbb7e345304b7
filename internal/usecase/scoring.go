package usecase

import (
	"sort"

	"github.com/fairyhunter13/ai-talent-ranker/internal/config"
	"github.com/fairyhunter13/ai-talent-ranker/internal/domain"
	"github.com/fairyhunter13/ai-talent-ranker/pkg/textx"
)

// Scorer fuses extracted metrics, skill matches and relevance into a final score.
type Scorer struct {
	WeightRelevance float64
	WeightQuality   float64
	QualityCeiling  float64
	SkillBonus      float64
}

// DefaultScorer uses the 0.4/0.6 blend, a 300 quality ceiling and a 15 point
// bonus per matched skill.
func DefaultScorer() Scorer {
	return Scorer{WeightRelevance: 0.4, WeightQuality: 0.6, QualityCeiling: 300, SkillBonus: 15}
}

// ScorerFromConfig reads the fusion constants from cfg.
func ScorerFromConfig(cfg config.Config) Scorer {
	s := Scorer{
		WeightRelevance: cfg.WeightRelevance,
		WeightQuality:   cfg.WeightQuality,
		QualityCeiling:  cfg.QualityCeiling,
		SkillBonus:      cfg.SkillMatchBonus,
	}
	if s.QualityCeiling <= 0 {
		s.QualityCeiling = 300
	}
	return s
}

// MatchedSkills returns the role skills the candidate declares, compared
// lower-cased and trimmed, in role order without repeats.
func MatchedSkills(role domain.RoleSpec, c domain.Candidate) []string {
	have := map[string]struct{}{}
	for _, s := range textx.SplitFold(c.ProfessionalSkill, ",") {
		have[s] = struct{}{}
	}
	var out []string
	seen := map[string]struct{}{}
	for _, s := range role.HardSkills {
		s = textx.Fold(s)
		if s == "" {
			continue
		}
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		if _, ok := have[s]; ok {
			out = append(out, s)
		}
	}
	return out
}

// QualityScore is the weighted metric sum plus the skill-match bonus.
func (s Scorer) QualityScore(m domain.QualityMetrics, w domain.Weights, role domain.RoleSpec, c domain.Candidate) (float64, []string) {
	var score float64
	for _, crit := range domain.Criteria {
		score += m.Weighted(crit) * w.Get(crit)
	}
	matched := MatchedSkills(role, c)
	score += float64(len(matched)) * s.SkillBonus
	return score, matched
}

// Normalize scales a quality score by the fixed ceiling.
func (s Scorer) Normalize(quality float64) float64 { return quality / s.QualityCeiling }

// Final blends relevance with normalized quality.
func (s Scorer) Final(relevance, normalized float64) float64 {
	return s.WeightRelevance*relevance + s.WeightQuality*normalized
}

// Score builds the ranked entry for one evaluated candidate.
func (s Scorer) Score(c domain.Candidate, relevance float64, m domain.QualityMetrics, w domain.Weights, role domain.RoleSpec) domain.ScoredCandidate {
	q, matched := s.QualityScore(m, w, role, c)
	n := s.Normalize(q)
	return domain.ScoredCandidate{
		ID:                c.ID,
		Candidate:         c,
		Metrics:           m,
		RelevanceScore:    relevance,
		QualityScore:      q,
		NormalizedQuality: n,
		FinalScore:        s.Final(relevance, n),
		MatchedSkills:     matched,
	}
}

// Rank sorts in place by final score, highest first. Ties keep input order.
func Rank(cs []domain.ScoredCandidate) []domain.ScoredCandidate {
	sort.SliceStable(cs, func(i, j int) bool { return cs[i].FinalScore > cs[j].FinalScore })
	return cs
}

// Shortlist returns at most k leading candidates.
func Shortlist(cs []domain.ScoredCandidate, k int) []domain.ScoredCandidate {
	if k < 0 || len(cs) <= k {
		return cs
	}
	return cs[:k]
}
