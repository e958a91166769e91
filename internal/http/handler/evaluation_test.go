package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"

	"github.com/gin-gonic/gin"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"civium.app/pipeline/internal/consensus"
	"civium.app/pipeline/internal/http/handler"
	"civium.app/pipeline/internal/model"
	"civium.app/pipeline/internal/service"
)

func evaluationBody() map[string]any {
	return map[string]any{
		"target_id":    "7",
		"evaluator_id": "3",
		"scores": map[string]int{
			"relevance":   80,
			"feasibility": 75,
			"impact":      85,
			"innovation":  60,
			"clarity":     90,
		},
		"recommendation": "approve",
	}
}

var _ = Describe("EvaluationHandler", func() {
	var (
		router *gin.Engine
		svc    *mockEvaluationService
	)

	BeforeEach(func() {
		gin.SetMode(gin.TestMode)
		router = gin.New()
		svc = &mockEvaluationService{}
		h := handler.NewEvaluationHandler(svc)
		router.POST("/evaluations", h.Create)
		router.GET("/entities/:id/consensus", h.GetConsensus)
	})

	Describe("Create", func() {
		It("returns 201 with the stored evaluation", func() {
			svc.createFn = func(_ context.Context, eval *model.Evaluation) (*model.Evaluation, error) {
				eval.ID = 99
				return eval, nil
			}

			body, _ := json.Marshal(evaluationBody())
			req := httptest.NewRequest(http.MethodPost, "/evaluations", bytes.NewBuffer(body))
			req.Header.Set("Content-Type", "application/json")
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			Expect(w.Code).To(Equal(http.StatusCreated))
			var resp map[string]any
			Expect(json.Unmarshal(w.Body.Bytes(), &resp)).To(Succeed())
			Expect(resp["id"]).To(Equal("99"))
			Expect(resp["recommendation"]).To(Equal("approve"))
		})

		It("returns 400 on an unknown recommendation", func() {
			body := evaluationBody()
			body["recommendation"] = "defer"
			raw, _ := json.Marshal(body)

			req := httptest.NewRequest(http.MethodPost, "/evaluations", bytes.NewBuffer(raw))
			req.Header.Set("Content-Type", "application/json")
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			Expect(w.Code).To(Equal(http.StatusBadRequest))
		})

		It("returns 400 when the service rejects the scores", func() {
			svc.createFn = func(_ context.Context, _ *model.Evaluation) (*model.Evaluation, error) {
				return nil, &service.ValidationError{Field: "scores", Reason: "impact must be in [0, 100]"}
			}

			body, _ := json.Marshal(evaluationBody())
			req := httptest.NewRequest(http.MethodPost, "/evaluations", bytes.NewBuffer(body))
			req.Header.Set("Content-Type", "application/json")
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			Expect(w.Code).To(Equal(http.StatusBadRequest))
			Expect(w.Body.String()).To(ContainSubstring("scores"))
		})
	})

	Describe("GetConsensus", func() {
		It("returns the aggregated result", func() {
			svc.consensusFn = func(_ context.Context, targetID int64) (*consensus.Result, error) {
				return &consensus.Result{
					TargetID:        targetID,
					Average:         79,
					StdDev:          11.34,
					Level:           consensus.LevelMedium,
					EvaluationCount: 3,
				}, nil
			}

			req := httptest.NewRequest(http.MethodGet, "/entities/7/consensus", nil)
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			Expect(w.Code).To(Equal(http.StatusOK))
			var resp map[string]any
			Expect(json.Unmarshal(w.Body.Bytes(), &resp)).To(Succeed())
			Expect(resp["target_id"]).To(Equal("7"))
			Expect(resp["level"]).To(Equal("medium"))
			Expect(resp["evaluation_count"]).To(BeNumerically("==", 3))
		})

		It("returns 404 when there are no evaluations", func() {
			svc.consensusFn = func(_ context.Context, _ int64) (*consensus.Result, error) {
				return nil, consensus.ErrNoEvaluations
			}

			req := httptest.NewRequest(http.MethodGet, "/entities/7/consensus", nil)
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			Expect(w.Code).To(Equal(http.StatusNotFound))
		})

		It("returns 400 on a non-numeric target id", func() {
			req := httptest.NewRequest(http.MethodGet, "/entities/xyz/consensus", nil)
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			Expect(w.Code).To(Equal(http.StatusBadRequest))
		})
	})
})
