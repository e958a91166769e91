package consensus_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"civium.app/pipeline/internal/consensus"
	"civium.app/pipeline/internal/model"
)

// uniformEval builds an evaluation where every criterion carries the same
// score, so the weighted overall score equals that score (weights sum to 1).
func uniformEval(evaluator int64, score int) model.Evaluation {
	return model.Evaluation{
		TargetID:    1,
		EvaluatorID: evaluator,
		Scores: map[model.Criterion]int{
			model.CriterionRelevance:   score,
			model.CriterionFeasibility: score,
			model.CriterionImpact:      score,
			model.CriterionInnovation:  score,
			model.CriterionClarity:     score,
		},
	}
}

var _ = Describe("Engine", func() {
	var engine *consensus.Engine

	BeforeEach(func() {
		engine = consensus.NewEngine(consensus.DefaultWeights(), consensus.DefaultThresholds())
	})

	It("rejects an empty evaluation set", func() {
		_, err := engine.Aggregate(1, nil)
		Expect(err).To(MatchError(consensus.ErrNoEvaluations))
	})

	It("weights a single evaluation's criteria into the overall score", func() {
		ev := model.Evaluation{Scores: map[model.Criterion]int{
			model.CriterionRelevance:   80, // .25
			model.CriterionFeasibility: 60, // .20
			model.CriterionImpact:      40, // .25
			model.CriterionInnovation:  100, // .15
			model.CriterionClarity:     20,  // .15
		}}
		// 20 + 12 + 10 + 15 + 3 = 60
		Expect(engine.OverallScore(ev)).To(BeNumerically("~", 60, 1e-9))
	})

	It("is order-independent", func() {
		evals := []model.Evaluation{uniformEval(1, 70), uniformEval(2, 72), uniformEval(3, 95)}
		reversed := []model.Evaluation{evals[2], evals[1], evals[0]}

		a, err := engine.Aggregate(1, evals)
		Expect(err).NotTo(HaveOccurred())
		b, err := engine.Aggregate(1, reversed)
		Expect(err).NotTo(HaveOccurred())

		Expect(a.Average).To(Equal(b.Average))
		Expect(a.StdDev).To(Equal(b.StdDev))
		Expect(a.Level).To(Equal(b.Level))
	})

	It("labels the [70, 72, 95] panel as medium consensus", func() {
		result, err := engine.Aggregate(1, []model.Evaluation{
			uniformEval(1, 70), uniformEval(2, 72), uniformEval(3, 95),
		})
		Expect(err).NotTo(HaveOccurred())

		Expect(result.Average).To(BeNumerically("~", 79, 1e-9))
		Expect(result.StdDev).To(BeNumerically("~", 11.34, 0.01))
		Expect(result.Level).To(Equal(consensus.LevelMedium))
		Expect(result.EvaluationCount).To(Equal(3))
	})

	Describe("level boundaries", func() {
		It("treats stddev exactly 15.0 as medium", func() {
			// Two uniform evaluations at 50 and 80: stddev = 15 exactly.
			result, err := engine.Aggregate(1, []model.Evaluation{uniformEval(1, 50), uniformEval(2, 80)})
			Expect(err).NotTo(HaveOccurred())
			Expect(result.StdDev).To(Equal(15.0))
			Expect(result.Level).To(Equal(consensus.LevelMedium))
		})

		It("treats stddev just above 15 as low", func() {
			// Nudge one impact score by a point: overall 80.25, stddev 15.125.
			high := uniformEval(2, 80)
			high.Scores[model.CriterionImpact] = 81
			result, err := engine.Aggregate(1, []model.Evaluation{uniformEval(1, 50), high})
			Expect(err).NotTo(HaveOccurred())
			Expect(result.StdDev).To(BeNumerically(">", 15))
			Expect(result.Level).To(Equal(consensus.LevelLow))
		})

		It("treats stddev exactly 8.0 as high", func() {
			// Overall 66: .25*62 + .20*70 + .25*62 + .15*70 + .15*70;
			// every term lands on an exact half, so 50 vs 66 gives
			// stddev 8 with no float noise.
			at66 := model.Evaluation{TargetID: 1, EvaluatorID: 2, Scores: map[model.Criterion]int{
				model.CriterionRelevance:   62,
				model.CriterionFeasibility: 70,
				model.CriterionImpact:      62,
				model.CriterionInnovation:  70,
				model.CriterionClarity:     70,
			}}
			result, err := engine.Aggregate(1, []model.Evaluation{uniformEval(1, 50), at66})
			Expect(err).NotTo(HaveOccurred())
			Expect(result.StdDev).To(Equal(8.0))
			Expect(result.Level).To(Equal(consensus.LevelHigh))
		})

		It("treats stddev just above 8 as medium", func() {
			// Overall 67, same exact-half construction as above.
			at67 := model.Evaluation{TargetID: 1, EvaluatorID: 2, Scores: map[model.Criterion]int{
				model.CriterionRelevance:   64,
				model.CriterionFeasibility: 70,
				model.CriterionImpact:      64,
				model.CriterionInnovation:  70,
				model.CriterionClarity:     70,
			}}
			result, err := engine.Aggregate(1, []model.Evaluation{uniformEval(1, 50), at67})
			Expect(err).NotTo(HaveOccurred())
			Expect(result.StdDev).To(Equal(8.5))
			Expect(result.Level).To(Equal(consensus.LevelMedium))
		})
	})

	It("averages per criterion and merges recommendations", func() {
		a := uniformEval(1, 60)
		a.Recommendation = model.RecommendationApprove
		b := uniformEval(2, 80)
		b.Recommendation = model.RecommendationRevise
		c := uniformEval(3, 70)
		c.Recommendation = model.RecommendationApprove

		result, err := engine.Aggregate(1, []model.Evaluation{a, b, c})
		Expect(err).NotTo(HaveOccurred())

		Expect(result.CriterionAvgs[model.CriterionRelevance]).To(BeNumerically("~", 70, 1e-9))
		Expect(result.Recommendations).To(Equal([]model.Recommendation{
			model.RecommendationApprove, model.RecommendationRevise,
		}))
	})
})
