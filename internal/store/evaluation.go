package store

import (
	"context"
	"encoding/json"

	"github.com/jackc/pgx/v5"

	"civium.app/pipeline/common/id"
	"civium.app/pipeline/internal/model"
)

type evaluationStore struct {
	db DBTX
}

func (s *evaluationStore) Create(ctx context.Context, eval *model.Evaluation) (*model.Evaluation, error) {
	scoresJSON, err := json.Marshal(eval.Scores)
	if err != nil {
		return nil, err
	}

	row := s.db.QueryRow(ctx, `
		INSERT INTO evaluations (id, target_id, evaluator_id, scores, strengths, weaknesses, recommendation)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, target_id, evaluator_id, scores, strengths, weaknesses, recommendation, created_at`,
		id.New(), eval.TargetID, eval.EvaluatorID, scoresJSON,
		eval.Strengths, eval.Weaknesses, string(eval.Recommendation))

	return scanEvaluation(row)
}

func (s *evaluationStore) ListByTarget(ctx context.Context, targetID int64) ([]model.Evaluation, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, target_id, evaluator_id, scores, strengths, weaknesses, recommendation, created_at
		FROM evaluations
		WHERE target_id = $1
		ORDER BY created_at ASC`, targetID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var evals []model.Evaluation
	for rows.Next() {
		eval, err := scanEvaluation(rows)
		if err != nil {
			return nil, err
		}
		evals = append(evals, *eval)
	}
	return evals, rows.Err()
}

func scanEvaluation(row pgx.Row) (*model.Evaluation, error) {
	var eval model.Evaluation
	var scoresJSON []byte
	var recommendation string
	if err := row.Scan(
		&eval.ID, &eval.TargetID, &eval.EvaluatorID, &scoresJSON,
		&eval.Strengths, &eval.Weaknesses, &recommendation, &eval.CreatedAt,
	); err != nil {
		return nil, err
	}
	if len(scoresJSON) > 0 {
		if err := json.Unmarshal(scoresJSON, &eval.Scores); err != nil {
			return nil, err
		}
	}
	eval.Recommendation = model.Recommendation(recommendation)
	return &eval, nil
}
