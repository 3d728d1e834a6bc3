// Package api contains the HTTP handlers for the approval tracker
package api

import (
	"net/http"

	"approval-tracker/backend/internal/auth"
	"approval-tracker/backend/internal/services"
	"approval-tracker/backend/internal/workflow"
	"approval-tracker/backend/pkg/models"

	"github.com/labstack/echo/v4"
	"github.com/oapi-codegen/runtime"
)

// Server holds the dependencies for the API server.
type Server struct {
	Tracker services.Tracker
}

// NewServer creates a new Server.
func NewServer(tracker services.Tracker) *Server {
	return &Server{Tracker: tracker}
}

// RegisterHandlers mounts the tracker routes on g, which is expected to be
// the /api/v1 group with auth middleware applied.
func RegisterHandlers(g *echo.Group, s *Server) {
	g.GET("/workflows", s.ListWorkflows)
	g.GET("/activities", s.ListActivities)
	g.POST("/activities", s.CreateActivity)
	g.GET("/activities/:id", s.GetActivity)
	g.GET("/activities/:id/commissions", s.ListCommissions)
	g.POST("/commissions", s.CreateCommission)
	g.GET("/commissions/:id", s.GetCommission)
	g.GET("/progress/:kind/:id", s.GetProgress)
	g.PUT("/progress/:kind/:id", s.PutProgress)
}

// WorkflowView describes one workflow definition.
type WorkflowView struct {
	Kind  workflow.Kind   `json:"kind"`
	Steps []workflow.Step `json:"steps"`
}

// UpdateRequest is the body of PUT /progress/{kind}/{id}.
type UpdateRequest struct {
	Steps map[string]bool `json:"steps"`
}

// UpdateResponse wraps an update outcome with a human readable message.
type UpdateResponse struct {
	Message string `json:"message"`
	*services.UpdateResult
}

const (
	msgNothingToSave = "nothing to save"
	msgSaved         = "changes saved"
)

func pathParam(c echo.Context, name string) (string, error) {
	var value string
	err := runtime.BindStyledParameterWithOptions("simple", name, c.Param(name), &value,
		runtime.BindStyledParameterOptions{ParamLocation: runtime.ParamLocationPath, Explode: false, Required: true})
	if err != nil {
		return "", echo.NewHTTPError(http.StatusBadRequest, "Invalid format for parameter "+name+": "+err.Error())
	}
	return value, nil
}

// ListWorkflows returns the step definitions of every workflow kind
// (GET /api/v1/workflows)
func (s *Server) ListWorkflows(c echo.Context) error {
	kinds := workflow.Kinds()
	views := make([]WorkflowView, 0, len(kinds))
	for _, k := range kinds {
		def, err := workflow.Lookup(k)
		if err != nil {
			return err
		}
		views = append(views, WorkflowView{Kind: k, Steps: def.Steps()})
	}
	return c.JSON(http.StatusOK, views)
}

// ListActivities returns every activity
// (GET /api/v1/activities)
func (s *Server) ListActivities(c echo.Context) error {
	activities, err := s.Tracker.ListActivities(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, activities)
}

// CreateActivity creates an activity with a fresh approval record
// (POST /api/v1/activities)
func (s *Server) CreateActivity(c echo.Context) error {
	var activity models.Activity
	if err := c.Bind(&activity); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body: "+err.Error())
	}

	created, err := s.Tracker.CreateActivity(c.Request().Context(), activity)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, created)
}

// GetActivity returns one activity
// (GET /api/v1/activities/{id})
func (s *Server) GetActivity(c echo.Context) error {
	id, err := pathParam(c, "id")
	if err != nil {
		return err
	}
	activity, err := s.Tracker.GetActivity(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, activity)
}

// ListCommissions returns the commissions of an activity
// (GET /api/v1/activities/{id}/commissions)
func (s *Server) ListCommissions(c echo.Context) error {
	id, err := pathParam(c, "id")
	if err != nil {
		return err
	}
	commissions, err := s.Tracker.ListCommissions(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, commissions)
}

// CreateCommission creates a commission with fresh campus and dictation records
// (POST /api/v1/commissions)
func (s *Server) CreateCommission(c echo.Context) error {
	var input services.CommissionInput
	if err := c.Bind(&input); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body: "+err.Error())
	}

	created, err := s.Tracker.CreateCommission(c.Request().Context(), input)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, created)
}

// GetCommission returns one commission
// (GET /api/v1/commissions/{id})
func (s *Server) GetCommission(c echo.Context) error {
	id, err := pathParam(c, "id")
	if err != nil {
		return err
	}
	commission, err := s.Tracker.GetCommission(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, commission)
}

func kindAndID(c echo.Context) (workflow.Kind, string, error) {
	kind, err := pathParam(c, "kind")
	if err != nil {
		return "", "", err
	}
	id, err := pathParam(c, "id")
	if err != nil {
		return "", "", err
	}
	return workflow.Kind(kind), id, nil
}

// GetProgress resolves the step record of a workflow instance
// (GET /api/v1/progress/{kind}/{id})
func (s *Server) GetProgress(c echo.Context) error {
	kind, id, err := kindAndID(c)
	if err != nil {
		return err
	}
	progress, err := s.Tracker.Progress(c.Request().Context(), kind, id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, progress)
}

// PutProgress submits a proposed set of step values. The editor identity
// comes from the authenticated request.
// (PUT /api/v1/progress/{kind}/{id})
func (s *Server) PutProgress(c echo.Context) error {
	kind, id, err := kindAndID(c)
	if err != nil {
		return err
	}

	var req UpdateRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body: "+err.Error())
	}

	ctx := c.Request().Context()
	result, err := s.Tracker.UpdateSteps(ctx, kind, id, req.Steps, auth.ActorFromContext(ctx))
	if err != nil {
		return err
	}

	msg := msgSaved
	if result.Noop {
		msg = msgNothingToSave
	}
	return c.JSON(http.StatusOK, UpdateResponse{Message: msg, UpdateResult: result})
}
