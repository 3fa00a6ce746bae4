package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/dshills/codescope/internal/config"
	"github.com/dshills/codescope/internal/indexer"
	"github.com/dshills/codescope/internal/project"
	"github.com/dshills/codescope/internal/searcher"
	"github.com/dshills/codescope/internal/session"
)

// MCP error codes
const (
	ErrorCodeInvalidParams      = -32602 // Invalid method parameters
	ErrorCodeInternalError      = -32603 // Internal JSON-RPC error
	ErrorCodeProjectNotFound    = -32001 // project_path is not a readable directory
	ErrorCodeIndexingInProgress = -32002 // Another indexing operation is already running
	ErrorCodeNotIndexed         = -32003 // Project not indexed
	ErrorCodeEmptyQuery         = -32004 // Query parameter is empty
	ErrorCodeNoActiveSession    = -32005 // end_session without begin_session
)

// handleSearchCodebase handles the search_codebase tool invocation
func (s *Server) handleSearchCodebase(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.GetArguments()

	query := strings.TrimSpace(getStringDefault(args, "query", ""))
	if query == "" {
		return nil, newMCPError(ErrorCodeEmptyQuery, "query parameter is required and cannot be empty", map[string]interface{}{
			"param":  "query",
			"reason": "missing or empty",
		})
	}

	p, err := s.projectFor(args, false)
	if err != nil {
		return nil, err
	}

	limit := getIntDefault(args, "n_results", p.Config.Search.NResults)
	if limit < 1 || limit > searcher.MaxLimit {
		return nil, newMCPError(ErrorCodeInvalidParams, fmt.Sprintf("n_results must be between 1 and %d", searcher.MaxLimit), map[string]interface{}{
			"param": "n_results",
			"value": limit,
		})
	}

	resp, err := p.Searcher.Search(ctx, searcher.SearchRequest{
		Query:    query,
		Limit:    limit,
		UseCache: true,
	})
	if err != nil {
		return nil, toolError("search failed", err)
	}

	if len(resp.Results) == 0 {
		return mcp.NewToolResultText("No results found."), nil
	}
	return mcp.NewToolResultText(formatJSON(searcher.Hits(resp.Results))), nil
}

// handleIndexCodebase handles the index_codebase tool invocation
func (s *Server) handleIndexCodebase(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.GetArguments()

	p, err := s.projectFor(args, true)
	if err != nil {
		return nil, err
	}

	mode := indexer.ModeIncremental
	if getBoolDefault(args, "full", false) {
		mode = indexer.ModeFull
	}

	res, err := p.Index(ctx, mode)
	if err != nil {
		return nil, toolError("indexing failed", err)
	}

	return mcp.NewToolResultText(formatJSON(map[string]interface{}{
		"mode":            mode.String(),
		"chunks_indexed":  res.ChunksIndexed,
		"files_changed":   res.FilesChanged,
		"files_deleted":   res.FilesDeleted,
		"files_unchanged": res.FilesUnchanged,
		"duration_ms":     res.Duration.Milliseconds(),
	})), nil
}

// handleReindexFile handles the reindex_file tool invocation
func (s *Server) handleReindexFile(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.GetArguments()

	file := getStringDefault(args, "file_path", "")
	if file == "" {
		return nil, newMCPError(ErrorCodeInvalidParams, "file_path parameter is required", map[string]interface{}{
			"param":  "file_path",
			"reason": "missing or empty",
		})
	}

	p, err := s.projectFor(args, true)
	if err != nil {
		return nil, err
	}

	res, err := p.ReindexFile(ctx, file)
	if err != nil {
		return nil, toolError("reindex failed", err)
	}

	return mcp.NewToolResultText(formatJSON(map[string]interface{}{
		"file":           file,
		"chunks_indexed": res.ChunksIndexed,
		"files_changed":  res.FilesChanged,
		"files_deleted":  res.FilesDeleted,
	})), nil
}

// handleGetStatus handles the get_status tool invocation
func (s *Server) handleGetStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.GetArguments()

	status, err := s.status(ctx, getStringDefault(args, "project_path", "."))
	if err != nil {
		return nil, err
	}
	return mcp.NewToolResultText(formatJSON(status)), nil
}

// handleBeginSession handles the begin_session tool invocation
func (s *Server) handleBeginSession(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	p, err := s.projectFor(request.GetArguments(), true)
	if err != nil {
		return nil, err
	}

	n, err := p.BeginSession()
	if err != nil {
		return nil, toolError("failed to begin session", err)
	}

	return mcp.NewToolResultText(formatJSON(map[string]interface{}{
		"status":        "session_started",
		"files_tracked": n,
	})), nil
}

// handleEndSession handles the end_session tool invocation
func (s *Server) handleEndSession(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	p, err := s.projectFor(request.GetArguments(), true)
	if err != nil {
		return nil, err
	}

	out, err := p.EndSession(ctx)
	if err != nil {
		return nil, toolError("failed to end session", err)
	}

	return mcp.NewToolResultText(formatJSON(map[string]interface{}{
		"status":           "session_ended",
		"files_modified":   len(out.Diff.Modified),
		"files_created":    len(out.Diff.Created),
		"files_deleted":    len(out.Diff.Deleted),
		"chunks_reindexed": out.ChunksReindexed,
	})), nil
}

// projectFor resolves the project_path argument and opens its project.
func (s *Server) projectFor(args map[string]interface{}, create bool) (*project.Project, error) {
	root, err := s.resolveRoot(getStringDefault(args, "project_path", "."))
	if err != nil {
		return nil, newMCPError(ErrorCodeProjectNotFound, "invalid project_path", map[string]interface{}{
			"param":  "project_path",
			"reason": err.Error(),
		})
	}

	p, err := s.project(root, create)
	if err != nil {
		return nil, toolError("failed to open project", err)
	}
	return p, nil
}

// status reports an unindexed project without creating its database.
func (s *Server) status(ctx context.Context, path string) (interface{}, error) {
	root, err := s.resolveRoot(path)
	if err != nil {
		return nil, newMCPError(ErrorCodeProjectNotFound, "invalid project_path", map[string]interface{}{
			"param":  "project_path",
			"reason": err.Error(),
		})
	}

	p, err := s.project(root, false)
	if errors.Is(err, project.ErrNotIndexed) {
		return map[string]interface{}{
			"indexed": false,
			"project": root,
			"message": "Project not indexed. Use index_codebase tool to index this project.",
		}, nil
	}
	if err != nil {
		return nil, toolError("failed to open project", err)
	}

	status, err := p.Status(ctx)
	if err != nil {
		return nil, toolError("failed to get status", err)
	}
	return status, nil
}

// Helper functions

// toolError maps engine errors onto MCP error codes
func toolError(message string, err error) error {
	code := ErrorCodeInternalError
	switch {
	case errors.Is(err, indexer.ErrIndexingInProgress):
		code = ErrorCodeIndexingInProgress
		message = "another indexing operation is already running"
	case errors.Is(err, project.ErrNotIndexed):
		code = ErrorCodeNotIndexed
		message = "Project not indexed. Run index_codebase first."
	case errors.Is(err, searcher.ErrEmptyQuery):
		code = ErrorCodeEmptyQuery
	case errors.Is(err, session.ErrNoActiveSession):
		code = ErrorCodeNoActiveSession
		message = "No active session. Call begin_session first."
	case errors.Is(err, config.ErrMissingAPIKey), errors.Is(err, config.ErrInvalidChunking):
		code = ErrorCodeInvalidParams
	}
	return newMCPError(code, message, map[string]interface{}{
		"error": err.Error(),
	})
}

// newMCPError creates a properly formatted MCP error
func newMCPError(code int, message string, data interface{}) error {
	// MCP errors are returned as regular errors, the framework handles encoding
	return &MCPError{
		Code:    code,
		Message: message,
		Data:    data,
	}
}

// MCPError represents an MCP protocol error
type MCPError struct {
	Code    int
	Message string
	Data    interface{}
}

func (e *MCPError) Error() string {
	return fmt.Sprintf("MCP error %d: %s", e.Code, e.Message)
}

// validatePath checks if a path exists and is a readable directory
func validatePath(path string) error {
	if path == "" {
		return ErrPathRequired
	}

	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return ErrPathNotFound
	}
	if err != nil {
		return ErrPathNotReadable
	}

	if !info.IsDir() {
		return ErrNotDirectory
	}

	f, err := os.Open(path)
	if err != nil {
		return ErrPathNotReadable
	}
	_ = f.Close()

	return nil
}

// formatJSON formats a value as indented JSON
func formatJSON(data interface{}) string {
	bytes, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", data)
	}
	return string(bytes)
}

// getBoolDefault extracts a boolean parameter with a default value
func getBoolDefault(args map[string]interface{}, key string, defaultValue bool) bool {
	if val, ok := args[key].(bool); ok {
		return val
	}
	return defaultValue
}

// getIntDefault extracts an integer parameter with a default value
func getIntDefault(args map[string]interface{}, key string, defaultValue int) int {
	if val, ok := args[key].(float64); ok {
		return int(val)
	}
	if val, ok := args[key].(int); ok {
		return val
	}
	return defaultValue
}

// getStringDefault extracts a string parameter with a default value
func getStringDefault(args map[string]interface{}, key string, defaultValue string) string {
	if val, ok := args[key].(string); ok {
		return val
	}
	return defaultValue
}

// Validation helpers

var (
	ErrPathRequired    = errors.New("path is required")
	ErrPathNotFound    = errors.New("path does not exist")
	ErrPathNotReadable = errors.New("path is not readable")
	ErrNotDirectory    = errors.New("path is not a directory")
)
