package mcp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/mark3labs/mcp-go/server"

	"github.com/dshills/codescope/internal/chunker"
	"github.com/dshills/codescope/internal/config"
	"github.com/dshills/codescope/internal/project"
)

const (
	// ServerName is the MCP server name
	ServerName = "codescope"
	// ServerVersion is the current server version
	ServerVersion = "0.3.0"
	// Instructions is sent to clients during initialization
	Instructions = "Codebase indexer & semantic search for AI coding agents"
)

// Options configures a Server.
type Options struct {
	// Root is the project used by resources and by tools called with
	// project_path "." (default: the working directory).
	Root string
	// GlobalPath is the global config file (default: ~/.codescope/config.yaml).
	GlobalPath string
	// Overrides are applied to every resolved project config.
	Overrides config.Overrides
	Logger    *slog.Logger
}

// Server wraps the MCP server with one lazily opened project per root
type Server struct {
	mcp        *server.MCPServer
	root       string
	globalPath string
	overrides  config.Overrides
	languages  *chunker.Languages
	logger     *slog.Logger

	mu       sync.Mutex
	projects map[string]*project.Project
}

// NewServer creates a new MCP server instance
func NewServer(opts Options) (*Server, error) {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	root := opts.Root
	if root == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get working directory: %w", err)
		}
		root = wd
	}
	root, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve root: %w", err)
	}

	globalPath := opts.GlobalPath
	if globalPath == "" {
		if globalPath, err = config.DefaultGlobalPath(); err != nil {
			return nil, err
		}
	}

	mcpServer := server.NewMCPServer(
		ServerName,
		ServerVersion,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
		server.WithPromptCapabilities(false),
		server.WithInstructions(Instructions),
	)

	s := &Server{
		mcp:        mcpServer,
		root:       root,
		globalPath: globalPath,
		overrides:  opts.Overrides,
		languages:  chunker.NewLanguages(),
		logger:     opts.Logger,
		projects:   make(map[string]*project.Project),
	}

	s.registerTools()
	s.registerResources()
	s.registerPrompts()

	return s, nil
}

// MCPServer exposes the underlying server for in-process clients and tests.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

// Serve starts the MCP server on stdio and blocks until shutdown
func (s *Server) Serve(ctx context.Context) error {
	defer func() { _ = s.Close() }()
	s.logger.Info("mcp: serving on stdio", slog.String("root", s.root))

	stdio := server.NewStdioServer(s.mcp)
	stdio.SetErrorLogger(slog.NewLogLogger(s.logger.Handler(), slog.LevelError))
	return stdio.Listen(ctx, os.Stdin, os.Stdout)
}

// Close releases every opened project.
func (s *Server) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var errs []error
	for root, p := range s.projects {
		errs = append(errs, p.Close())
		delete(s.projects, root)
	}
	return errors.Join(errs...)
}

// registerTools registers all MCP tools
func (s *Server) registerTools() {
	s.mcp.AddTool(searchCodebaseTool(), s.handleSearchCodebase)
	s.mcp.AddTool(indexCodebaseTool(), s.handleIndexCodebase)
	s.mcp.AddTool(reindexFileTool(), s.handleReindexFile)
	s.mcp.AddTool(getStatusTool(), s.handleGetStatus)
	s.mcp.AddTool(beginSessionTool(), s.handleBeginSession)
	s.mcp.AddTool(endSessionTool(), s.handleEndSession)
}

// resolveRoot turns a project_path argument into an absolute directory.
// Relative paths are taken from the server root.
func (s *Server) resolveRoot(path string) (string, error) {
	if path == "" || path == "." {
		return s.root, nil
	}
	if !filepath.IsAbs(path) {
		path = filepath.Join(s.root, path)
	}
	path = filepath.Clean(path)
	if err := validatePath(path); err != nil {
		return "", err
	}
	return path, nil
}

// resolveConfig builds the effective config for root.
func (s *Server) resolveConfig(root string) (*config.Config, error) {
	return config.Resolve(root, s.globalPath, s.overrides)
}

// project returns the cached project for root, opening it on first use.
// With create unset an unindexed root fails with project.ErrNotIndexed
// instead of getting a fresh database.
func (s *Server) project(root string, create bool) (*project.Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if p, ok := s.projects[root]; ok {
		return p, nil
	}

	cfg, err := s.resolveConfig(root)
	if err != nil {
		return nil, err
	}

	var p *project.Project
	if create {
		p, err = project.Open(cfg, s.languages, s.logger)
	} else {
		p, err = project.OpenExisting(cfg, s.languages, s.logger)
	}
	if err != nil {
		return nil, err
	}

	s.projects[root] = p
	s.logger.Debug("mcp: opened project", slog.String("root", root))
	return p, nil
}
