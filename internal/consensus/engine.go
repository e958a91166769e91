// Package consensus aggregates independent expert evaluations of one target
// into a single verdict. Read-side only; results are recomputed on demand
// from the current evaluation set and never persisted on their own.
package consensus

import (
	"errors"
	"math"
	"sort"

	"civium.app/pipeline/internal/model"
)

// ErrNoEvaluations is returned when a consensus is requested for a target
// that has no evaluations. A consensus over nothing is undefined.
var ErrNoEvaluations = errors.New("no evaluations for target")

type Level string

const (
	LevelHigh   Level = "high"
	LevelMedium Level = "medium"
	LevelLow    Level = "low"
)

// Weights is the fixed per-criterion weight table. Entries sum to 1.0.
type Weights map[model.Criterion]float64

// DefaultWeights mirrors the evaluation rubric used across the portal.
func DefaultWeights() Weights {
	return Weights{
		model.CriterionRelevance:   0.25,
		model.CriterionFeasibility: 0.20,
		model.CriterionImpact:      0.25,
		model.CriterionInnovation:  0.15,
		model.CriterionClarity:     0.15,
	}
}

// Thresholds are the stddev boundaries for the consensus level.
type Thresholds struct {
	High   float64 // stddev <= High        -> high consensus
	Medium float64 // High < stddev <= Medium -> medium; above -> low
}

func DefaultThresholds() Thresholds {
	return Thresholds{High: 8, Medium: 15}
}

// Result is the aggregated verdict for one target.
type Result struct {
	TargetID        int64                       `json:"target_id"`
	Average         float64                     `json:"average"`
	StdDev          float64                     `json:"std_dev"`
	Level           Level                       `json:"level"`
	EvaluationCount int                         `json:"evaluation_count"`
	CriterionAvgs   map[model.Criterion]float64 `json:"criterion_averages"`
	Recommendations []model.Recommendation      `json:"recommendations"`
}

type Engine struct {
	weights    Weights
	thresholds Thresholds
}

func NewEngine(weights Weights, thresholds Thresholds) *Engine {
	if weights == nil {
		weights = DefaultWeights()
	}
	return &Engine{weights: weights, thresholds: thresholds}
}

// Aggregate computes the consensus over all evaluations of one target.
// Order-independent: the same set of evaluations always yields the same
// result regardless of slice order.
func (e *Engine) Aggregate(targetID int64, evals []model.Evaluation) (*Result, error) {
	if len(evals) == 0 {
		return nil, ErrNoEvaluations
	}

	overall := make([]float64, len(evals))
	criterionSums := map[model.Criterion]float64{}
	criterionCounts := map[model.Criterion]int{}
	recommendations := map[model.Recommendation]struct{}{}

	for i, ev := range evals {
		overall[i] = e.OverallScore(ev)
		for criterion, score := range ev.Scores {
			criterionSums[criterion] += float64(score)
			criterionCounts[criterion]++
		}
		if ev.Recommendation != "" {
			recommendations[ev.Recommendation] = struct{}{}
		}
	}

	mean := meanOf(overall)
	stddev := populationStdDev(overall, mean)

	criterionAvgs := make(map[model.Criterion]float64, len(criterionSums))
	for criterion, sum := range criterionSums {
		criterionAvgs[criterion] = sum / float64(criterionCounts[criterion])
	}

	return &Result{
		TargetID:        targetID,
		Average:         mean,
		StdDev:          stddev,
		Level:           e.level(stddev),
		EvaluationCount: len(evals),
		CriterionAvgs:   criterionAvgs,
		Recommendations: sortedRecommendations(recommendations),
	}, nil
}

// OverallScore is the weighted overall score of a single evaluation.
// Criteria missing from the evaluation contribute zero. Summation runs in
// rubric order so the same scores always produce the same float.
func (e *Engine) OverallScore(ev model.Evaluation) float64 {
	var total float64
	for _, criterion := range model.AllCriteria {
		total += float64(ev.Scores[criterion]) * e.weights[criterion]
	}
	return total
}

func (e *Engine) level(stddev float64) Level {
	switch {
	case stddev <= e.thresholds.High:
		return LevelHigh
	case stddev <= e.thresholds.Medium:
		return LevelMedium
	default:
		return LevelLow
	}
}

func meanOf(values []float64) float64 {
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func populationStdDev(values []float64, mean float64) float64 {
	var sum float64
	for _, v := range values {
		d := v - mean
		sum += d * d
	}
	return math.Sqrt(sum / float64(len(values)))
}

func sortedRecommendations(set map[model.Recommendation]struct{}) []model.Recommendation {
	out := make([]model.Recommendation, 0, len(set))
	for r := range set {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
