package coverage

import (
	"context"
	"log/slog"
	"sort"

	"civium.app/pipeline/internal/model"
)

// Policy holds the coverage weighting constants. They are supplied
// configuration, not inferred business rules.
type Policy struct {
	// WeightPerEntity is the coverage percentage contributed by each linked
	// entity of a required type, capped at 100.
	WeightPerEntity float64

	// FullCoverageThreshold is the per-type coverage below which an
	// objective/entity-type pair is reported as a gap.
	FullCoverageThreshold float64

	// RequiredTypes maps an objective's sector to the entity types it needs
	// to be considered covered.
	RequiredTypes map[model.Sector][]model.EntityType
}

// DefaultPolicy requires two linked entities per type for full coverage.
func DefaultPolicy() Policy {
	all := []model.EntityType{model.EntityTypeProject, model.EntityTypeInitiative, model.EntityTypeIndicator}
	return Policy{
		WeightPerEntity:       50,
		FullCoverageThreshold: 100,
		RequiredTypes: map[model.Sector][]model.EntityType{
			"mobility":       all,
			"environment":    all,
			"digitalization": {model.EntityTypeProject, model.EntityTypeInitiative},
			"health":         {model.EntityTypeProject, model.EntityTypeIndicator},
			"education":      {model.EntityTypeProject, model.EntityTypeInitiative},
			"economy":        all,
		},
	}
}

// Analyzer computes coverage snapshots and gap lists from a plan and the
// entity counts the store reports for it. Pure aggregation, no writes.
type Analyzer struct {
	policy Policy
	logger *slog.Logger
}

func NewAnalyzer(policy Policy, logger *slog.Logger) *Analyzer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Analyzer{policy: policy, logger: logger}
}

// Analyze produces a snapshot and the gaps still open for the plan.
// A plan with zero objectives is fully covered: there is nothing to cover.
func (a *Analyzer) Analyze(ctx context.Context, plan *model.StrategicPlan, counts []model.EntityCount) (*model.CoverageSnapshot, []model.Gap) {
	byObjective := indexCounts(counts)

	snapshot := &model.CoverageSnapshot{
		PlanID:     plan.ID,
		TypeCounts: map[model.EntityType]int{},
	}
	var gaps []model.Gap
	var sum float64
	scored := 0

	for _, obj := range plan.Objectives {
		required, ok := a.policy.RequiredTypes[obj.Sector]
		if !ok || obj.Sector == "" {
			a.logger.WarnContext(ctx, "objective has unknown sector, skipping",
				"objective_id", obj.ID,
				"sector", obj.Sector)
			snapshot.SkippedObjectives++
			continue
		}

		oc := model.ObjectiveCoverage{
			ObjectiveID: obj.ID,
			Sector:      obj.Sector,
			TypeCounts:  map[model.EntityType]int{},
		}

		fullyCovered := true
		var typeSum float64
		for _, et := range required {
			count := byObjective[obj.ID][et]
			oc.TypeCounts[et] = count
			snapshot.TypeCounts[et] += count

			typeCov := min100(float64(count) * a.policy.WeightPerEntity)
			typeSum += typeCov
			if count == 0 {
				fullyCovered = false
			}
			if typeCov < a.policy.FullCoverageThreshold {
				oc.MissingTypes = append(oc.MissingTypes, et)
				gaps = append(gaps, model.Gap{
					ObjectiveID:  obj.ID,
					PlanID:       plan.ID,
					EntityType:   et,
					PriorityTier: obj.PriorityTier,
					PlanPosition: obj.Position,
					Coverage:     typeCov,
				})
			}
		}

		oc.Coverage = typeSum / float64(len(required))
		oc.FullyCovered = fullyCovered
		snapshot.Objectives = append(snapshot.Objectives, oc)
		sum += oc.Coverage
		scored++
	}

	if scored == 0 {
		snapshot.OverallCoverage = 100
	} else {
		snapshot.OverallCoverage = sum / float64(scored)
	}
	snapshot.GapCount = len(gaps)

	sortGaps(gaps)
	return snapshot, gaps
}

// Gaps are emitted in plan order so downstream enqueue batches preserve the
// plan's original sequencing.
func sortGaps(gaps []model.Gap) {
	sort.SliceStable(gaps, func(i, j int) bool {
		if gaps[i].PlanPosition != gaps[j].PlanPosition {
			return gaps[i].PlanPosition < gaps[j].PlanPosition
		}
		return gaps[i].EntityType < gaps[j].EntityType
	})
}

func indexCounts(counts []model.EntityCount) map[int64]map[model.EntityType]int {
	out := make(map[int64]map[model.EntityType]int)
	for _, c := range counts {
		if out[c.ObjectiveID] == nil {
			out[c.ObjectiveID] = map[model.EntityType]int{}
		}
		out[c.ObjectiveID][c.EntityType] += c.Count
	}
	return out
}

func min100(v float64) float64 {
	if v > 100 {
		return 100
	}
	return v
}
