package mcp

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
)

const sessionWorkflowText = "Follow this workflow for this coding session:\n\n" +
	"1. Call begin_session to start tracking file changes.\n" +
	"2. Use search_codebase to find relevant code before reading files.\n" +
	"3. Make your code changes as needed.\n" +
	"4. When done, call end_session to automatically re-index changed files.\n\n" +
	"This keeps the semantic search index up to date with your changes."

// registerPrompts registers the reusable agent instructions.
func (s *Server) registerPrompts() {
	s.mcp.AddPrompt(
		mcp.NewPrompt("search_first",
			mcp.WithPromptDescription("Search the codebase before reading files directly"),
			mcp.WithArgument("query",
				mcp.ArgumentDescription("What you're looking for in the codebase"),
				mcp.RequiredArgument())),
		handleSearchFirst,
	)
	s.mcp.AddPrompt(
		mcp.NewPrompt("session_workflow",
			mcp.WithPromptDescription("Recommended begin_session / end_session workflow for a coding session")),
		handleSessionWorkflow,
	)
}

func handleSearchFirst(ctx context.Context, request mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	query := request.Params.Arguments["query"]
	if query == "" {
		return nil, newMCPError(ErrorCodeInvalidParams, "query argument is required", nil)
	}
	return userPrompt("Search the codebase before reading files", SearchFirstText(query)), nil
}

func handleSessionWorkflow(ctx context.Context, request mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	return userPrompt("Coding session workflow", sessionWorkflowText), nil
}

// SearchFirstText is the search_first prompt body for query.
func SearchFirstText(query string) string {
	return fmt.Sprintf("Before reading any files, use the search_codebase tool to find relevant code for: %s\n\n"+
		"Review the search results and only read the top matching files. "+
		"This is more efficient than scanning the file tree manually.", query)
}

func userPrompt(description, text string) *mcp.GetPromptResult {
	return mcp.NewGetPromptResult(description, []mcp.PromptMessage{
		mcp.NewPromptMessage(mcp.RoleUser, mcp.NewTextContent(text)),
	})
}
