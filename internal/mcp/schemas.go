package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/dshills/codescope/internal/searcher"
)

// projectPathProperty is shared by every tool
func projectPathProperty() map[string]interface{} {
	return map[string]interface{}{
		"type":        "string",
		"description": "Project root, absolute or relative to the server's working directory",
		"default":     ".",
	}
}

// searchCodebaseTool returns the tool definition for search_codebase
func searchCodebaseTool() mcp.Tool {
	return mcp.Tool{
		Name: "search_codebase",
		Description: "Semantic search over the indexed codebase. Use this before reading files " +
			"to find the code relevant to a task. Returns file, line range, similarity, symbol and content.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"query": map[string]interface{}{
					"type":        "string",
					"description": "Natural language description of the code you are looking for",
				},
				"project_path": projectPathProperty(),
				"n_results": map[string]interface{}{
					"type":        "integer",
					"description": "Maximum number of results to return",
					"default":     searcher.DefaultLimit,
					"minimum":     1,
					"maximum":     searcher.MaxLimit,
				},
			},
			Required: []string{"query"},
		},
	}
}

// indexCodebaseTool returns the tool definition for index_codebase
func indexCodebaseTool() mcp.Tool {
	return mcp.Tool{
		Name:        "index_codebase",
		Description: "Index or incrementally re-index a project so it can be searched",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"project_path": projectPathProperty(),
				"full": map[string]interface{}{
					"type":        "boolean",
					"description": "If true, clear the index and re-process every file",
					"default":     false,
				},
			},
		},
	}
}

// reindexFileTool returns the tool definition for reindex_file
func reindexFileTool() mcp.Tool {
	return mcp.Tool{
		Name:        "reindex_file",
		Description: "Re-index a single file after editing it; a missing file is removed from the index",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"file_path": map[string]interface{}{
					"type":        "string",
					"description": "File to re-index, absolute or relative to the project root",
				},
				"project_path": projectPathProperty(),
			},
			Required: []string{"file_path"},
		},
	}
}

// getStatusTool returns the tool definition for get_status
func getStatusTool() mcp.Tool {
	return mcp.Tool{
		Name:        "get_status",
		Description: "Report whether a project is indexed, with chunk and file counts",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"project_path": projectPathProperty(),
			},
		},
	}
}

// beginSessionTool returns the tool definition for begin_session
func beginSessionTool() mcp.Tool {
	return mcp.Tool{
		Name: "begin_session",
		Description: "Snapshot the project's files at the start of a coding session. " +
			"Call end_session when done to re-index whatever changed.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"project_path": projectPathProperty(),
			},
		},
	}
}

// endSessionTool returns the tool definition for end_session
func endSessionTool() mcp.Tool {
	return mcp.Tool{
		Name:        "end_session",
		Description: "Compare files against the begin_session snapshot and re-index the changes",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"project_path": projectPathProperty(),
			},
		},
	}
}
