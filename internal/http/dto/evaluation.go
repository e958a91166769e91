package dto

import (
	"time"

	"civium.app/pipeline/internal/consensus"
	"civium.app/pipeline/internal/model"
)

type CreateEvaluationRequest struct {
	TargetID       int64          `json:"target_id,string" binding:"required"`
	EvaluatorID    int64          `json:"evaluator_id,string" binding:"required"`
	Scores         map[string]int `json:"scores" binding:"required"`
	Strengths      string         `json:"strengths,omitempty" binding:"omitempty,max=2000"`
	Weaknesses     string         `json:"weaknesses,omitempty" binding:"omitempty,max=2000"`
	Recommendation string         `json:"recommendation" binding:"required,oneof=approve revise reject"`
}

func (r CreateEvaluationRequest) ToModel() *model.Evaluation {
	scores := make(map[model.Criterion]int, len(r.Scores))
	for criterion, score := range r.Scores {
		scores[model.Criterion(criterion)] = score
	}
	return &model.Evaluation{
		TargetID:       r.TargetID,
		EvaluatorID:    r.EvaluatorID,
		Scores:         scores,
		Strengths:      r.Strengths,
		Weaknesses:     r.Weaknesses,
		Recommendation: model.Recommendation(r.Recommendation),
	}
}

type EvaluationResponse struct {
	ID             int64          `json:"id,string"`
	TargetID       int64          `json:"target_id,string"`
	EvaluatorID    int64          `json:"evaluator_id,string"`
	Scores         map[string]int `json:"scores"`
	Strengths      string         `json:"strengths,omitempty"`
	Weaknesses     string         `json:"weaknesses,omitempty"`
	Recommendation string         `json:"recommendation"`
	CreatedAt      time.Time      `json:"created_at"`
}

func ToEvaluationResponse(ev *model.Evaluation) *EvaluationResponse {
	scores := make(map[string]int, len(ev.Scores))
	for criterion, score := range ev.Scores {
		scores[string(criterion)] = score
	}
	return &EvaluationResponse{
		ID:             ev.ID,
		TargetID:       ev.TargetID,
		EvaluatorID:    ev.EvaluatorID,
		Scores:         scores,
		Strengths:      ev.Strengths,
		Weaknesses:     ev.Weaknesses,
		Recommendation: string(ev.Recommendation),
		CreatedAt:      ev.CreatedAt,
	}
}

type ConsensusResponse struct {
	TargetID        int64              `json:"target_id,string"`
	Average         float64            `json:"average"`
	StdDev          float64            `json:"std_dev"`
	Level           string             `json:"level"`
	EvaluationCount int                `json:"evaluation_count"`
	CriterionAvgs   map[string]float64 `json:"criterion_averages"`
	Recommendations []string           `json:"recommendations"`
}

func ToConsensusResponse(result *consensus.Result) *ConsensusResponse {
	avgs := make(map[string]float64, len(result.CriterionAvgs))
	for criterion, avg := range result.CriterionAvgs {
		avgs[string(criterion)] = avg
	}
	recs := make([]string, 0, len(result.Recommendations))
	for _, r := range result.Recommendations {
		recs = append(recs, string(r))
	}
	return &ConsensusResponse{
		TargetID:        result.TargetID,
		Average:         result.Average,
		StdDev:          result.StdDev,
		Level:           string(result.Level),
		EvaluationCount: result.EvaluationCount,
		CriterionAvgs:   avgs,
		Recommendations: recs,
	}
}
