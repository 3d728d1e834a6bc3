package services

import (
	"context"

	"approval-tracker/backend/internal/workflow"
	"approval-tracker/backend/pkg/models"
)

// Tracker is the set of operations exposed to the API, MCP and CLI surfaces.
type Tracker interface {
	// ListActivities returns every activity, sorted by id.
	ListActivities(ctx context.Context) ([]models.Activity, error)
	// GetActivity returns one activity.
	GetActivity(ctx context.Context, id string) (*models.Activity, error)
	// CreateActivity creates an activity with a fresh approval record.
	CreateActivity(ctx context.Context, activity models.Activity) (*models.Activity, error)
	// ListCommissions returns the commissions of an activity.
	ListCommissions(ctx context.Context, activityID string) ([]models.Commission, error)
	// GetCommission returns one commission with its state as of today.
	GetCommission(ctx context.Context, id string) (*models.Commission, error)
	// CreateCommission creates a commission with fresh campus and dictation records.
	CreateCommission(ctx context.Context, input CommissionInput) (*models.Commission, error)
	// Progress resolves the step record of a workflow instance.
	Progress(ctx context.Context, kind workflow.Kind, key string) (*workflow.Progress, error)
	// UpdateSteps validates and writes a proposed set of step values.
	UpdateSteps(ctx context.Context, kind workflow.Kind, key string, proposed map[string]bool, actor string) (*UpdateResult, error)
}
