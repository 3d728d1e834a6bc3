package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"approval-tracker/backend/internal/auth"
	"approval-tracker/backend/internal/services"
	"approval-tracker/backend/internal/workflow"
	"approval-tracker/backend/pkg/models"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

type Server struct {
	mcpServer *server.MCPServer
	tracker   services.Tracker
}

func NewServer(tracker services.Tracker) *Server {
	s := &Server{
		mcpServer: server.NewMCPServer(
			"Approval Tracker",
			"1.0.0",
			server.WithToolCapabilities(true),
		),
		tracker: tracker,
	}

	s.registerTools()
	return s
}

func (s *Server) GetMCPServer() *server.MCPServer {
	return s.mcpServer
}

func (s *Server) registerTools() {
	s.mcpServer.AddTool(
		mcp.NewTool(
			"list_workflows",
			mcp.WithDescription("List the workflow kinds and their ordered steps"),
		),
		s.handleListWorkflows,
	)

	s.mcpServer.AddTool(
		mcp.NewTool(
			"list_activities",
			mcp.WithDescription("List training activities"),
		),
		s.handleListActivities,
	)

	s.mcpServer.AddTool(
		mcp.NewTool(
			"get_progress",
			mcp.WithDescription("Show which steps of a workflow instance are done, current and pending"),
			mcp.WithString("kind", mcp.Required(), mcp.Description("approval, campus or dictation")),
			mcp.WithString("id", mcp.Required(), mcp.Description("Activity id for approval, commission id otherwise")),
		),
		s.handleGetProgress,
	)

	s.mcpServer.AddTool(
		mcp.NewTool(
			"update_steps",
			mcp.WithDescription("Set the completed steps of a workflow instance. Steps not listed are marked not done."),
			mcp.WithString("kind", mcp.Required(), mcp.Description("approval, campus or dictation")),
			mcp.WithString("id", mcp.Required(), mcp.Description("Activity id for approval, commission id otherwise")),
			mcp.WithArray("completed", mcp.Required(),
				mcp.Description("Keys of the steps that are complete"),
				mcp.Items(map[string]any{"type": "string"}),
			),
			mcp.WithString("actor", mcp.Description("Editor recorded in the audit fields")),
		),
		s.handleUpdateSteps,
	)

	s.mcpServer.AddTool(
		mcp.NewTool(
			"create_activity",
			mcp.WithDescription("Create a training activity with a fresh approval record"),
			mcp.WithString("id", mcp.Required(), mcp.Description("Activity id")),
			mcp.WithString("name", mcp.Required(), mcp.Description("Activity name")),
			mcp.WithString("area", mcp.Description("Owning area")),
		),
		s.handleCreateActivity,
	)
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	jsonBytes, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return mcp.NewToolResultText(string(jsonBytes)), nil
}

func (s *Server) handleListWorkflows(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	type view struct {
		Kind  workflow.Kind   `json:"kind"`
		Steps []workflow.Step `json:"steps"`
	}
	var out []view
	for _, k := range workflow.Kinds() {
		def, err := workflow.Lookup(k)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		out = append(out, view{Kind: k, Steps: def.Steps()})
	}
	return jsonResult(out)
}

func (s *Server) handleListActivities(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	activities, err := s.tracker.ListActivities(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to list activities: %v", err)), nil
	}
	return jsonResult(activities)
}

func (s *Server) handleGetProgress(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	kind, err := request.RequireString("kind")
	if err != nil {
		return mcp.NewToolResultError("Missing required parameter: kind"), nil
	}
	id, err := request.RequireString("id")
	if err != nil || id == "" {
		return mcp.NewToolResultError("Missing required parameter: id"), nil
	}

	progress, err := s.tracker.Progress(ctx, workflow.Kind(kind), id)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to load progress: %v", err)), nil
	}
	return jsonResult(progress)
}

func (s *Server) handleUpdateSteps(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	kind, err := request.RequireString("kind")
	if err != nil {
		return mcp.NewToolResultError("Missing required parameter: kind"), nil
	}
	id, err := request.RequireString("id")
	if err != nil || id == "" {
		return mcp.NewToolResultError("Missing required parameter: id"), nil
	}
	completed, err := request.RequireStringSlice("completed")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Invalid parameter completed: %v", err)), nil
	}

	def, err := workflow.Lookup(workflow.Kind(kind))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	proposed, err := workflow.ProposalFromDone(def, completed)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	actor := request.GetString("actor", "")
	if actor == "" {
		actor = auth.ActorFromContext(ctx)
	}

	result, err := s.tracker.UpdateSteps(ctx, def.Kind(), id, proposed, actor)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to update steps: %v", err)), nil
	}
	if result.Noop {
		return mcp.NewToolResultText("nothing to save"), nil
	}
	return jsonResult(result)
}

func (s *Server) handleCreateActivity(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := request.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError("Missing required parameter: id"), nil
	}
	name, err := request.RequireString("name")
	if err != nil {
		return mcp.NewToolResultError("Missing required parameter: name"), nil
	}

	activity, err := s.tracker.CreateActivity(ctx, models.Activity{
		ID:   id,
		Name: name,
		Area: request.GetString("area", ""),
	})
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to create activity: %v", err)), nil
	}
	return jsonResult(activity)
}

// MountHTTPHandlers exposes the MCP server over SSE under /mcp. The editor
// identity placed on the HTTP request by the auth middleware is carried into
// tool calls.
func MountHTTPHandlers(mux *http.ServeMux, mcpServer *server.MCPServer) {
	sseServer := server.NewSSEServer(mcpServer,
		server.WithStaticBasePath("/mcp"),
		server.WithSSEContextFunc(func(ctx context.Context, r *http.Request) context.Context {
			if actor := auth.ActorFromContext(r.Context()); actor != "" {
				return auth.WithActor(ctx, actor)
			}
			return ctx
		}),
	)

	mux.HandleFunc("/mcp", func(w http.ResponseWriter, r *http.Request) {
		// Direct POST for tool calls
		if r.Method == http.MethodPost {
			sseServer.ServeHTTP(w, r)
			return
		}
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	})

	// SSE endpoints
	mux.HandleFunc("/mcp/sse", sseServer.ServeHTTP)
	mux.HandleFunc("/mcp/message", sseServer.ServeHTTP)
}
