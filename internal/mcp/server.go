package mcp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"setuptask/internal/core"
	"setuptask/internal/store"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// MCPServer exposes the orchestration core as MCP tools over stdio.
type MCPServer struct {
	store    *store.Store
	registry *core.Registry
	engine   *core.Engine
	reporter *core.Reporter
	logger   *slog.Logger
}

// NewMCPServer creates a new MCP server instance.
func NewMCPServer(st *store.Store, registry *core.Registry, engine *core.Engine, reporter *core.Reporter, logger *slog.Logger) *MCPServer {
	return &MCPServer{
		store:    st,
		registry: registry,
		engine:   engine,
		reporter: reporter,
		logger:   logger,
	}
}

// Run starts the MCP server using stdio transport.
func (s *MCPServer) Run() error {
	mcpServer := server.NewMCPServer(
		"setuptask",
		"1.0.0",
		server.WithToolCapabilities(true),
	)

	s.registerTools(mcpServer)

	s.logger.Info("MCP server starting on stdio")
	return server.ServeStdio(mcpServer)
}

func (s *MCPServer) registerTools(mcpServer *server.MCPServer) {
	mcpServer.AddTool(mcp.NewTool("setup_list_tasks",
		mcp.WithDescription("List all setup tasks with their categories, prerequisites, and completion status"),
		mcp.WithString("category",
			mcp.Description("Only list tasks in this category"),
		),
	), s.handleListTasks)

	mcpServer.AddTool(mcp.NewTool("setup_get_task",
		mcp.WithDescription("Get the details of one setup task"),
		mcp.WithString("task_id",
			mcp.Required(),
			mcp.Description("Task ID"),
		),
	), s.handleGetTask)

	mcpServer.AddTool(mcp.NewTool("setup_run_task",
		mcp.WithDescription("Run a setup task now. Fails if the task's prerequisite has not completed."),
		mcp.WithString("task_id",
			mcp.Required(),
			mcp.Description("Task ID"),
		),
		mcp.WithString("fields",
			mcp.Description("Input fields as key=value pairs separated by commas, e.g. 'ssh_port=22,domain=example.com'"),
		),
	), s.handleRunTask)

	mcpServer.AddTool(mcp.NewTool("setup_progress",
		mcp.WithDescription("Show overall and per-category completion progress"),
	), s.handleProgress)

	mcpServer.AddTool(mcp.NewTool("setup_history",
		mcp.WithDescription("Show the task lifecycle history, newest first"),
		mcp.WithString("subject",
			mcp.Description("Only show events for this task"),
		),
		mcp.WithNumber("limit",
			mcp.Description("Number of entries to return, default 20"),
			mcp.Min(1),
			mcp.Max(100),
		),
	), s.handleHistory)

	mcpServer.AddTool(mcp.NewTool("setup_get_run_log",
		mcp.WithDescription("Get the captured output of one execution run"),
		mcp.WithString("run_id",
			mcp.Required(),
			mcp.Description("Run ID"),
		),
		mcp.WithNumber("tail",
			mcp.Description("Return only the last N lines, default all"),
			mcp.Min(0),
		),
	), s.handleGetRunLog)

	mcpServer.AddTool(mcp.NewTool("setup_reset",
		mcp.WithDescription("Reset the completion ledger: all tasks become pending again"),
	), s.handleReset)

	s.logger.Info("MCP tools registered", "count", 7)
}

func (s *MCPServer) handleListTasks(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	record, err := s.store.LoadState(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to load state: %v", err)), nil
	}

	category := mcp.ParseString(request, "category", "")
	var tasks []*core.Task
	if category != "" {
		tasks = s.registry.TasksInCategory(category)
	} else {
		tasks = s.registry.Tasks()
	}
	if len(tasks) == 0 {
		return mcp.NewToolResultText("no tasks found"), nil
	}

	result := fmt.Sprintf("%d tasks:\n\n", len(tasks))
	for _, task := range tasks {
		result += fmt.Sprintf("[%s] %s (%s)\n", taskStatus(task.ID, record), task.ID, task.CategoryID)
		result += fmt.Sprintf("  %s\n", task.DisplayName)
		if task.PrerequisiteID != nil {
			result += fmt.Sprintf("  requires: %s\n", *task.PrerequisiteID)
		}
		result += "\n"
	}
	return mcp.NewToolResultText(result), nil
}

func (s *MCPServer) handleGetTask(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	taskID := mcp.ParseString(request, "task_id", "")

	task, err := s.registry.Lookup(taskID)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("task not found: %s", taskID)), nil
	}
	record, err := s.store.LoadState(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to load state: %v", err)), nil
	}

	result := fmt.Sprintf("Task: %s\n", task.ID)
	result += fmt.Sprintf("Name: %s\n", task.DisplayName)
	result += fmt.Sprintf("Category: %s\n", task.CategoryID)
	result += fmt.Sprintf("Status: %s\n", taskStatus(task.ID, record))
	if task.Description != "" {
		result += fmt.Sprintf("Description: %s\n", task.Description)
	}
	if task.PrerequisiteID != nil {
		result += fmt.Sprintf("Prerequisite: %s\n", *task.PrerequisiteID)
	}
	return mcp.NewToolResultText(result), nil
}

func (s *MCPServer) handleRunTask(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	taskID := mcp.ParseString(request, "task_id", "")
	fields := parseFields(mcp.ParseString(request, "fields", ""))

	result, err := s.engine.Execute(ctx, taskID, fields)
	if err != nil {
		var prereqErr *core.PrerequisiteError
		switch {
		case errors.Is(err, core.ErrTaskNotFound):
			return mcp.NewToolResultError(fmt.Sprintf("task not found: %s", taskID)), nil
		case errors.As(err, &prereqErr):
			return mcp.NewToolResultError(prereqErr.Error()), nil
		default:
			return mcp.NewToolResultError(fmt.Sprintf("execution failed: %v", err)), nil
		}
	}

	if result.Success() {
		return mcp.NewToolResultText(fmt.Sprintf("Task %s completed\nRun ID: %s", result.TaskID, result.RunID)), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Task %s failed with exit code %d\nRun ID: %s", result.TaskID, result.Code, result.RunID)), nil
}

func (s *MCPServer) handleProgress(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	overall, err := s.reporter.Overall(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to compute progress: %v", err)), nil
	}
	categories, err := s.reporter.Categories(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to compute progress: %v", err)), nil
	}

	result := fmt.Sprintf("Overall: %d/%d (%d%%)\n\n", overall.Completed, overall.Total, overall.Percentage)
	for _, p := range categories {
		result += fmt.Sprintf("%s: %d/%d (%d%%)\n", p.CategoryID, p.Completed, p.Total, p.Percentage)
	}
	return mcp.NewToolResultText(result), nil
}

func (s *MCPServer) handleHistory(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	subject := mcp.ParseString(request, "subject", "")
	limit := int(mcp.ParseFloat64(request, "limit", 20))

	entries, err := s.store.ListHistory(ctx, subject, limit, 0)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to list history: %v", err)), nil
	}
	if len(entries) == 0 {
		return mcp.NewToolResultText("no history entries"), nil
	}

	result := fmt.Sprintf("%d history entries:\n\n", len(entries))
	for _, entry := range entries {
		result += fmt.Sprintf("%s  %s %s", entry.Timestamp.UTC().Format(time.RFC3339), entry.SubjectID, entry.Event)
		if entry.Note != nil {
			result += fmt.Sprintf(" (%s)", *entry.Note)
		}
		result += "\n"
	}
	return mcp.NewToolResultText(result), nil
}

func (s *MCPServer) handleGetRunLog(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	runID := mcp.ParseString(request, "run_id", "")
	tail := int(mcp.ParseFloat64(request, "tail", 0))

	content, err := s.store.ReadRunLog(runID, tail)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to read log: %v", err)), nil
	}
	return mcp.NewToolResultText(content), nil
}

func (s *MCPServer) handleReset(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if err := s.engine.Reset(ctx); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to reset: %v", err)), nil
	}
	return mcp.NewToolResultText("completion ledger reset"), nil
}

func taskStatus(taskID string, record *core.StateRecord) core.TaskStatus {
	if record.InProgress != nil && *record.InProgress == taskID {
		return core.TaskStatusInProgress
	}
	for _, id := range record.Completed {
		if id == taskID {
			return core.TaskStatusCompleted
		}
	}
	return core.TaskStatusPending
}

func parseFields(raw string) map[string]string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	fields := make(map[string]string)
	for _, pair := range strings.Split(raw, ",") {
		key, value, found := strings.Cut(pair, "=")
		if !found {
			continue
		}
		fields[strings.TrimSpace(key)] = strings.TrimSpace(value)
	}
	return fields
}
