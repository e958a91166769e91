package dto

import (
	"time"

	"civium.app/pipeline/internal/gate"
	"civium.app/pipeline/internal/model"
	"civium.app/pipeline/internal/service"
)

type ProcessQueueRequest struct {
	EntityTypes []string `json:"entity_types,omitempty" binding:"omitempty,dive,oneof=project initiative indicator"`
	// MaxItems bounds this run's claim; zero means the configured batch size.
	MaxItems int `json:"max_items,omitempty" binding:"omitempty,min=1"`
}

func (r ProcessQueueRequest) ModelEntityTypes() []model.EntityType {
	out := make([]model.EntityType, 0, len(r.EntityTypes))
	for _, et := range r.EntityTypes {
		out = append(out, model.EntityType(et))
	}
	return out
}

type QueueItemResponse struct {
	ID           int64      `json:"id,string"`
	ObjectiveID  int64      `json:"objective_id,string"`
	PlanID       int64      `json:"plan_id,string"`
	EntityType   string     `json:"entity_type"`
	Priority     int        `json:"priority"`
	Status       string     `json:"status"`
	Attempts     int        `json:"attempts"`
	MaxAttempts  int        `json:"max_attempts"`
	EntityRef    *int64     `json:"entity_ref,omitempty"`
	QualityScore *int       `json:"quality_score,omitempty"`
	LastError    *string    `json:"last_error,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
	ClaimedAt    *time.Time `json:"claimed_at,omitempty"`
}

func ToQueueItemResponse(item model.QueueItem) QueueItemResponse {
	return QueueItemResponse{
		ID:           item.ID,
		ObjectiveID:  item.ObjectiveID,
		PlanID:       item.PlanID,
		EntityType:   string(item.EntityType),
		Priority:     item.Priority,
		Status:       string(item.Status),
		Attempts:     item.Attempts,
		MaxAttempts:  item.MaxAttempts,
		EntityRef:    item.EntityRef,
		QualityScore: item.QualityScore,
		LastError:    item.LastError,
		CreatedAt:    item.CreatedAt,
		UpdatedAt:    item.UpdatedAt,
		ClaimedAt:    item.ClaimedAt,
	}
}

type EnqueueGapsResponse struct {
	Snapshot *CoverageResponse   `json:"snapshot"`
	Enqueued []QueueItemResponse `json:"enqueued"`
}

func ToEnqueueGapsResponse(result *service.EnqueueResult) *EnqueueGapsResponse {
	resp := &EnqueueGapsResponse{
		Snapshot: ToCoverageResponse(result.Snapshot),
		Enqueued: make([]QueueItemResponse, 0, len(result.Enqueued)),
	}
	for _, item := range result.Enqueued {
		resp.Enqueued = append(resp.Enqueued, ToQueueItemResponse(item))
	}
	return resp
}

type ObjectiveCoverageResponse struct {
	ObjectiveID  int64          `json:"objective_id,string"`
	Sector       string         `json:"sector"`
	Coverage     float64        `json:"coverage"`
	FullyCovered bool           `json:"fully_covered"`
	TypeCounts   map[string]int `json:"type_counts"`
	MissingTypes []string       `json:"missing_types,omitempty"`
}

type CoverageResponse struct {
	ID                int64                       `json:"id,string"`
	PlanID            int64                       `json:"plan_id,string"`
	OverallCoverage   float64                     `json:"overall_coverage"`
	Objectives        []ObjectiveCoverageResponse `json:"objectives"`
	TypeCounts        map[string]int              `json:"type_counts"`
	GapCount          int                         `json:"gap_count"`
	SkippedObjectives int                         `json:"skipped_objectives"`
	CreatedAt         time.Time                   `json:"created_at"`
}

func ToCoverageResponse(s *model.CoverageSnapshot) *CoverageResponse {
	resp := &CoverageResponse{
		ID:                s.ID,
		PlanID:            s.PlanID,
		OverallCoverage:   s.OverallCoverage,
		Objectives:        make([]ObjectiveCoverageResponse, 0, len(s.Objectives)),
		TypeCounts:        typeCounts(s.TypeCounts),
		GapCount:          s.GapCount,
		SkippedObjectives: s.SkippedObjectives,
		CreatedAt:         s.CreatedAt,
	}
	for _, o := range s.Objectives {
		missing := make([]string, 0, len(o.MissingTypes))
		for _, t := range o.MissingTypes {
			missing = append(missing, string(t))
		}
		resp.Objectives = append(resp.Objectives, ObjectiveCoverageResponse{
			ObjectiveID:  o.ObjectiveID,
			Sector:       string(o.Sector),
			Coverage:     o.Coverage,
			FullyCovered: o.FullyCovered,
			TypeCounts:   typeCounts(o.TypeCounts),
			MissingTypes: missing,
		})
	}
	return resp
}

func typeCounts(in map[model.EntityType]int) map[string]int {
	out := make(map[string]int, len(in))
	for t, n := range in {
		out[string(t)] = n
	}
	return out
}

type BatchItemResponse struct {
	ItemID    int64  `json:"item_id,string"`
	Status    string `json:"status"`
	EntityRef *int64 `json:"entity_ref,omitempty"`
}

type ProcessQueueResponse struct {
	Claimed int                 `json:"claimed"`
	Summary gate.Summary        `json:"summary"`
	Items   []BatchItemResponse `json:"items"`
}

func ToProcessQueueResponse(result *service.BatchResult) *ProcessQueueResponse {
	resp := &ProcessQueueResponse{
		Claimed: result.Claimed,
		Summary: result.Summary,
		Items:   make([]BatchItemResponse, 0, len(result.Items)),
	}
	for _, item := range result.Items {
		resp.Items = append(resp.Items, BatchItemResponse{
			ItemID:    item.ItemID,
			Status:    string(item.Status),
			EntityRef: item.EntityRef,
		})
	}
	return resp
}

type QueueStatsResponse struct {
	PlanID int64          `json:"plan_id,string"`
	Counts map[string]int `json:"counts"`
}

func ToQueueStatsResponse(planID int64, counts map[model.QueueStatus]int) *QueueStatsResponse {
	resp := &QueueStatsResponse{PlanID: planID, Counts: make(map[string]int, len(counts))}
	for status, n := range counts {
		resp.Counts[string(status)] = n
	}
	return resp
}
