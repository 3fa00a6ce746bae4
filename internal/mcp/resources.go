package mcp

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/dshills/codescope/internal/changes"
	"github.com/dshills/codescope/internal/config"
	"github.com/dshills/codescope/internal/discover"
)

// Resource URIs
const (
	StatusURI = "codescope://status"
	FilesURI  = "codescope://files"
	TreeURI   = "codescope://tree"
	ConfigURI = "codescope://config"
)

// registerResources registers the read-only views of the server root.
func (s *Server) registerResources() {
	s.mcp.AddResource(
		mcp.NewResource(StatusURI, "Index status",
			mcp.WithResourceDescription("Whether the project is indexed, with provider, model and chunk count"),
			mcp.WithMIMEType("application/json")),
		s.readStatus,
	)
	s.mcp.AddResource(
		mcp.NewResource(FilesURI, "Indexable files",
			mcp.WithResourceDescription("Files that would be indexed, and how many are tracked"),
			mcp.WithMIMEType("application/json")),
		s.readFiles,
	)
	s.mcp.AddResource(
		mcp.NewResource(TreeURI, "File tree",
			mcp.WithResourceDescription("Directory tree of the indexable files"),
			mcp.WithMIMEType("text/plain")),
		s.readTree,
	)
	s.mcp.AddResource(
		mcp.NewResource(ConfigURI, "Configuration",
			mcp.WithResourceDescription("Active provider and model, and the global settings with keys masked"),
			mcp.WithMIMEType("application/json")),
		s.readConfig,
	)
}

func (s *Server) readStatus(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	status, err := s.status(ctx, ".")
	if err != nil {
		return nil, err
	}
	return jsonContents(request.Params.URI, status), nil
}

func (s *Server) readFiles(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	cfg, err := s.resolveConfig(s.root)
	if err != nil {
		return nil, err
	}
	if !cfg.Indexed() {
		return jsonContents(request.Params.URI, map[string]interface{}{
			"indexed": false,
			"files":   []string{},
		}), nil
	}

	files, err := s.relFiles(cfg)
	if err != nil {
		return nil, err
	}
	reg := changes.Load(cfg.StateDir(), s.logger)

	return jsonContents(request.Params.URI, map[string]interface{}{
		"project":       cfg.Root,
		"total_files":   len(files),
		"tracked_files": reg.Len(),
		"files":         files,
	}), nil
}

func (s *Server) readTree(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	cfg, err := s.resolveConfig(s.root)
	if err != nil {
		return nil, err
	}
	files, err := s.relFiles(cfg)
	if err != nil {
		return nil, err
	}
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      request.Params.URI,
			MIMEType: "text/plain",
			Text:     RenderTree(filepath.Base(cfg.Root), files),
		},
	}, nil
}

func (s *Server) readConfig(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	cfg, err := s.resolveConfig(s.root)
	if err != nil {
		return nil, err
	}
	global, err := config.LoadGlobal(s.globalPath)
	if err != nil {
		return nil, err
	}
	return jsonContents(request.Params.URI, map[string]interface{}{
		"active_provider": cfg.Embedding.Provider,
		"active_model":    cfg.Embedding.Model,
		"global_config":   global.Values(),
	}), nil
}

// relFiles lists the candidate files of cfg's root as sorted relative
// slash paths. The ignore file is read fresh so edits show up without a
// restart.
func (s *Server) relFiles(cfg *config.Config) ([]string, error) {
	files, err := discover.Files(cfg.Root, cfg.DiscoverOptions())
	if err != nil {
		return nil, fmt.Errorf("failed to list files: %w", err)
	}
	rel := make([]string, 0, len(files))
	for _, f := range files {
		r, err := filepath.Rel(cfg.Root, f)
		if err != nil {
			continue
		}
		rel = append(rel, filepath.ToSlash(r))
	}
	sort.Strings(rel)
	return rel, nil
}

func jsonContents(uri string, v interface{}) []mcp.ResourceContents {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      uri,
			MIMEType: "application/json",
			Text:     formatJSON(v),
		},
	}
}

// treeNode is a directory level; files are nodes without children.
type treeNode map[string]treeNode

// RenderTree draws relative slash paths as an ASCII tree under "name/".
// Directories come before files, each group ordered case-insensitively.
func RenderTree(name string, paths []string) string {
	root := treeNode{}
	for _, p := range paths {
		node := root
		for _, part := range strings.Split(p, "/") {
			child, ok := node[part]
			if !ok {
				child = treeNode{}
				node[part] = child
			}
			node = child
		}
	}

	var b strings.Builder
	b.WriteString(name)
	b.WriteString("/")
	renderTree(&b, root, "")
	return b.String()
}

func renderTree(b *strings.Builder, node treeNode, prefix string) {
	names := make([]string, 0, len(node))
	for n := range node {
		names = append(names, n)
	}
	sort.Strings(names)
	sort.SliceStable(names, func(i, j int) bool {
		di, dj := len(node[names[i]]) > 0, len(node[names[j]]) > 0
		if di != dj {
			return di
		}
		return strings.ToLower(names[i]) < strings.ToLower(names[j])
	})

	for i, n := range names {
		last := i == len(names)-1
		connector, extension := "|-- ", "|   "
		if last {
			connector, extension = "+-- ", "    "
		}
		b.WriteString("\n")
		b.WriteString(prefix)
		b.WriteString(connector)
		b.WriteString(n)
		if child := node[n]; len(child) > 0 {
			renderTree(b, child, prefix+extension)
		}
	}
}
