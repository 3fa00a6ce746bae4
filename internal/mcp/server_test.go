package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/codescope/internal/config"
)

type handler func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error)

// testServer builds a server over a small project with a private global file.
func testServer(t *testing.T) (*Server, string) {
	t.Helper()
	t.Setenv("CODESCOPE_EMBEDDING_PROVIDER", "")
	t.Setenv("CODESCOPE_EMBEDDING_MODEL", "")

	root := t.TempDir()
	writeFile(t, root, "auth/login.txt", "validate user password\nhash password with bcrypt\n")
	writeFile(t, root, "cache/lru.txt", "evict least recently used entry\n")
	writeFile(t, root, "README.md", "# demo\n")

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	srv, err := NewServer(Options{
		Root:       root,
		GlobalPath: filepath.Join(t.TempDir(), "config.yaml"),
		Logger:     logger,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = srv.Close() })
	return srv, root
}

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func call(t *testing.T, h handler, args map[string]interface{}) (string, error) {
	t.Helper()
	req := mcp.CallToolRequest{}
	req.Params.Arguments = args
	res, err := h(context.Background(), req)
	if err != nil {
		return "", err
	}
	require.NotEmpty(t, res.Content)
	tc, ok := res.Content[0].(mcp.TextContent)
	require.True(t, ok)
	return tc.Text, nil
}

func decode(t *testing.T, text string) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(text), &out), text)
	return out
}

func requireCode(t *testing.T, err error, code int) {
	t.Helper()
	var mcpErr *MCPError
	require.True(t, errors.As(err, &mcpErr), "expected MCPError, got %v", err)
	assert.Equal(t, code, mcpErr.Code)
}

func TestNewServer(t *testing.T) {
	srv, root := testServer(t)
	assert.NotNil(t, srv.MCPServer())
	assert.Equal(t, root, srv.root)
	assert.Empty(t, srv.projects, "projects open lazily")
}

func TestSearchBeforeIndex(t *testing.T) {
	srv, root := testServer(t)

	_, err := call(t, srv.handleSearchCodebase, map[string]interface{}{"query": "password"})
	requireCode(t, err, ErrorCodeNotIndexed)

	_, err = os.Stat(filepath.Join(root, ".codescope"))
	assert.True(t, os.IsNotExist(err), "search must not create state")
}

func TestSearchValidation(t *testing.T) {
	srv, _ := testServer(t)

	_, err := call(t, srv.handleSearchCodebase, map[string]interface{}{"query": "   "})
	requireCode(t, err, ErrorCodeEmptyQuery)

	_, err = call(t, srv.handleSearchCodebase, map[string]interface{}{
		"query":        "x",
		"project_path": "does/not/exist",
	})
	requireCode(t, err, ErrorCodeProjectNotFound)
}

func TestIndexAndSearch(t *testing.T) {
	srv, _ := testServer(t)

	text, err := call(t, srv.handleIndexCodebase, map[string]interface{}{})
	require.NoError(t, err)
	out := decode(t, text)
	assert.Equal(t, "incremental", out["mode"])
	assert.EqualValues(t, 3, out["files_changed"])
	assert.EqualValues(t, 3, out["chunks_indexed"])

	text, err = call(t, srv.handleIndexCodebase, map[string]interface{}{})
	require.NoError(t, err)
	out = decode(t, text)
	assert.EqualValues(t, 0, out["files_changed"])
	assert.EqualValues(t, 3, out["files_unchanged"])

	text, err = call(t, srv.handleSearchCodebase, map[string]interface{}{
		"query":     "password hashing",
		"n_results": float64(2),
	})
	require.NoError(t, err)
	var hits []map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(text), &hits))
	require.NotEmpty(t, hits)
	assert.LessOrEqual(t, len(hits), 2)
	assert.Equal(t, "auth/login.txt", hits[0]["file"])
	assert.Equal(t, "1-2", hits[0]["lines"])

	_, err = call(t, srv.handleSearchCodebase, map[string]interface{}{
		"query":     "x",
		"n_results": float64(0),
	})
	requireCode(t, err, ErrorCodeInvalidParams)
}

func TestFullIndex(t *testing.T) {
	srv, _ := testServer(t)

	_, err := call(t, srv.handleIndexCodebase, map[string]interface{}{})
	require.NoError(t, err)

	text, err := call(t, srv.handleIndexCodebase, map[string]interface{}{"full": true})
	require.NoError(t, err)
	out := decode(t, text)
	assert.Equal(t, "full", out["mode"])
	assert.EqualValues(t, 3, out["files_changed"])
}

func TestReindexFile(t *testing.T) {
	srv, root := testServer(t)

	_, err := call(t, srv.handleReindexFile, map[string]interface{}{})
	requireCode(t, err, ErrorCodeInvalidParams)

	_, err = call(t, srv.handleIndexCodebase, map[string]interface{}{})
	require.NoError(t, err)

	writeFile(t, root, "cache/lru.txt", "one\ntwo\nthree\n")
	text, err := call(t, srv.handleReindexFile, map[string]interface{}{"file_path": "cache/lru.txt"})
	require.NoError(t, err)
	out := decode(t, text)
	assert.EqualValues(t, 1, out["files_changed"])
	assert.EqualValues(t, 1, out["chunks_indexed"])

	require.NoError(t, os.Remove(filepath.Join(root, "cache", "lru.txt")))
	text, err = call(t, srv.handleReindexFile, map[string]interface{}{"file_path": "cache/lru.txt"})
	require.NoError(t, err)
	assert.EqualValues(t, 1, decode(t, text)["files_deleted"])
}

func TestGetStatus(t *testing.T) {
	srv, root := testServer(t)

	text, err := call(t, srv.handleGetStatus, map[string]interface{}{})
	require.NoError(t, err)
	out := decode(t, text)
	assert.Equal(t, false, out["indexed"])
	assert.Equal(t, root, out["project"])

	_, err = call(t, srv.handleIndexCodebase, map[string]interface{}{})
	require.NoError(t, err)

	text, err = call(t, srv.handleGetStatus, map[string]interface{}{"project_path": root})
	require.NoError(t, err)
	out = decode(t, text)
	assert.Equal(t, true, out["indexed"])
	assert.Equal(t, "local", out["provider"])
	assert.EqualValues(t, 3, out["chunks"])
	assert.EqualValues(t, 3, out["tracked_files"])
}

func TestSessionTools(t *testing.T) {
	srv, root := testServer(t)

	_, err := call(t, srv.handleEndSession, map[string]interface{}{})
	requireCode(t, err, ErrorCodeNoActiveSession)

	text, err := call(t, srv.handleBeginSession, map[string]interface{}{})
	require.NoError(t, err)
	out := decode(t, text)
	assert.Equal(t, "session_started", out["status"])
	assert.EqualValues(t, 3, out["files_tracked"])

	writeFile(t, root, "auth/token.txt", "issue signed tokens\n")
	writeFile(t, root, "README.md", "# demo\nmore docs\n")

	text, err = call(t, srv.handleEndSession, map[string]interface{}{})
	require.NoError(t, err)
	out = decode(t, text)
	assert.Equal(t, "session_ended", out["status"])
	assert.EqualValues(t, 1, out["files_created"])
	assert.EqualValues(t, 1, out["files_modified"])
	assert.EqualValues(t, 0, out["files_deleted"])
	assert.EqualValues(t, 4, out["chunks_reindexed"], "first run after begin indexes every file")
}

func readResource(t *testing.T, fn func(context.Context, mcp.ReadResourceRequest) ([]mcp.ResourceContents, error), uri string) string {
	t.Helper()
	req := mcp.ReadResourceRequest{}
	req.Params.URI = uri
	contents, err := fn(context.Background(), req)
	require.NoError(t, err)
	require.Len(t, contents, 1)
	tc, ok := contents[0].(mcp.TextResourceContents)
	require.True(t, ok)
	assert.Equal(t, uri, tc.URI)
	return tc.Text
}

func TestResources(t *testing.T) {
	srv, root := testServer(t)

	t.Run("files before index", func(t *testing.T) {
		out := decode(t, readResource(t, srv.readFiles, FilesURI))
		assert.Equal(t, false, out["indexed"])
	})

	_, err := call(t, srv.handleIndexCodebase, map[string]interface{}{})
	require.NoError(t, err)

	t.Run("status", func(t *testing.T) {
		out := decode(t, readResource(t, srv.readStatus, StatusURI))
		assert.Equal(t, true, out["indexed"])
		assert.Equal(t, filepath.Join(root, ".codescope", config.DBFileName), out["db_path"])
	})

	t.Run("files", func(t *testing.T) {
		out := decode(t, readResource(t, srv.readFiles, FilesURI))
		assert.EqualValues(t, 3, out["total_files"])
		assert.EqualValues(t, 3, out["tracked_files"])
		assert.Equal(t, []interface{}{"README.md", "auth/login.txt", "cache/lru.txt"}, out["files"])
	})

	t.Run("tree", func(t *testing.T) {
		text := readResource(t, srv.readTree, TreeURI)
		want := filepath.Base(root) + "/\n" +
			"|-- auth\n" +
			"|   +-- login.txt\n" +
			"|-- cache\n" +
			"|   +-- lru.txt\n" +
			"+-- README.md"
		assert.Equal(t, want, text)
	})

	t.Run("config masks keys", func(t *testing.T) {
		g := &config.Global{OpenAIAPIKey: "sk-1234567890abcdef"}
		require.NoError(t, g.Save(srv.globalPath))

		out := decode(t, readResource(t, srv.readConfig, ConfigURI))
		assert.Equal(t, "local", out["active_provider"])
		global := out["global_config"].(map[string]interface{})
		assert.Equal(t, "sk-1...cdef", global[config.KeyOpenAIAPIKey])
	})
}

func TestRenderTree(t *testing.T) {
	got := RenderTree("proj", []string{"b.go", "A/z.go", "a/x.go", "lib/deep/y.go", "C.txt"})
	want := "proj/\n" +
		"|-- A\n" +
		"|   +-- z.go\n" +
		"|-- a\n" +
		"|   +-- x.go\n" +
		"|-- lib\n" +
		"|   +-- deep\n" +
		"|       +-- y.go\n" +
		"|-- b.go\n" +
		"+-- C.txt"
	assert.Equal(t, want, got)

	assert.Equal(t, "empty/", RenderTree("empty", nil))
}

func TestPrompts(t *testing.T) {
	req := mcp.GetPromptRequest{}
	req.Params.Arguments = map[string]string{"query": "retry logic"}
	res, err := handleSearchFirst(context.Background(), req)
	require.NoError(t, err)
	require.Len(t, res.Messages, 1)
	assert.Equal(t, mcp.RoleUser, res.Messages[0].Role)
	text := res.Messages[0].Content.(mcp.TextContent).Text
	assert.Contains(t, text, "find relevant code for: retry logic")
	assert.Equal(t, SearchFirstText("retry logic"), text)

	_, err = handleSearchFirst(context.Background(), mcp.GetPromptRequest{})
	requireCode(t, err, ErrorCodeInvalidParams)

	res, err = handleSessionWorkflow(context.Background(), mcp.GetPromptRequest{})
	require.NoError(t, err)
	assert.Contains(t, res.Messages[0].Content.(mcp.TextContent).Text, "1. Call begin_session")
}
