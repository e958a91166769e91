package model

import "time"

type Criterion string

const (
	CriterionRelevance   Criterion = "relevance"
	CriterionFeasibility Criterion = "feasibility"
	CriterionImpact      Criterion = "impact"
	CriterionInnovation  Criterion = "innovation"
	CriterionClarity     Criterion = "clarity"
)

// AllCriteria lists every criterion in rubric order.
var AllCriteria = []Criterion{
	CriterionRelevance,
	CriterionFeasibility,
	CriterionImpact,
	CriterionInnovation,
	CriterionClarity,
}

type Recommendation string

const (
	RecommendationApprove Recommendation = "approve"
	RecommendationRevise  Recommendation = "revise"
	RecommendationReject  Recommendation = "reject"
)

// Evaluation is one expert's judgment of a target entity. Immutable after
// creation; a re-evaluation is a new row.
type Evaluation struct {
	ID             int64             `json:"id"`
	TargetID       int64             `json:"target_id"`
	EvaluatorID    int64             `json:"evaluator_id"`
	Scores         map[Criterion]int `json:"scores"` // each 0-100
	Strengths      string            `json:"strengths,omitempty"`
	Weaknesses     string            `json:"weaknesses,omitempty"`
	Recommendation Recommendation    `json:"recommendation"`
	CreatedAt      time.Time         `json:"created_at"`
}
