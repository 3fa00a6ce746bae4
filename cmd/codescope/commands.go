package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/dshills/codescope/internal/config"
	"github.com/dshills/codescope/internal/discover"
	"github.com/dshills/codescope/internal/indexer"
	"github.com/dshills/codescope/internal/project"
	"github.com/dshills/codescope/internal/searcher"
	"github.com/dshills/codescope/internal/watcher"
)

const dryRunListed = 5

func pathFlag() cli.Flag {
	return &cli.StringFlag{
		Name:  "path",
		Usage: "Project root",
		Value: ".",
	}
}

func jsonFlag() cli.Flag {
	return &cli.BoolFlag{
		Name:  "json",
		Usage: "Print JSON",
	}
}

func out(cmd *cli.Command) io.Writer {
	return cmd.Root().Writer
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func indexCommand() *cli.Command {
	return &cli.Command{
		Name:      "index",
		Usage:     "Index a codebase; only changed files are processed unless --full is set",
		ArgsUsage: "[path]",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "full", Usage: "Clear the index and re-process every file"},
			&cli.BoolFlag{Name: "dry-run", Usage: "Show what would be indexed without indexing"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			root := cmd.Args().First()
			if root == "" {
				root = "."
			}
			cfg, logger, err := resolve(cmd, root, 0)
			if err != nil {
				return err
			}
			if cmd.Bool("dry-run") {
				return dryRun(ctx, cmd, cfg, logger)
			}

			p, err := project.Open(cfg, nil, logger)
			if err != nil {
				return err
			}
			defer func() { _ = p.Close() }()

			mode := indexer.ModeIncremental
			label := "Incremental index"
			if cmd.Bool("full") {
				mode = indexer.ModeFull
				label = "Full re-index"
			}
			w := out(cmd)
			fmt.Fprintf(w, "%s %s (%s)\n", label, cfg.Root, cfg.Embedding.Provider)

			res, err := p.Index(ctx, mode)
			if err != nil {
				return err
			}
			fmt.Fprintf(w, "Done! %d chunks indexed in %s\n", res.ChunksIndexed, res.Duration.Round(time.Millisecond))
			if mode == indexer.ModeIncremental {
				fmt.Fprintf(w, "  %d changed, %d deleted, %d unchanged\n",
					res.FilesChanged, res.FilesDeleted, res.FilesUnchanged)
			}
			return nil
		},
	}
}

// dryRun lists candidate files and, for an indexed project, what an
// incremental run would touch. It never creates a database.
func dryRun(ctx context.Context, cmd *cli.Command, cfg *config.Config, logger *slog.Logger) error {
	w := out(cmd)
	fmt.Fprintf(w, "Dry run %s\n", cfg.Root)

	var files []string
	var plan *indexer.Plan
	if cfg.Indexed() {
		p, err := project.OpenExisting(cfg, nil, logger)
		if err != nil {
			return err
		}
		defer func() { _ = p.Close() }()
		if plan, err = p.Indexer.Plan(ctx); err != nil {
			return err
		}
		if files, err = p.Indexer.Files(); err != nil {
			return err
		}
	} else {
		var err error
		if files, err = discover.Files(cfg.Root, cfg.DiscoverOptions()); err != nil {
			return err
		}
	}

	fmt.Fprintf(w, "  Indexable files: %d\n", len(files))
	if len(files) == 0 {
		fmt.Fprintln(w, "  No files found. Check extensions and .codescope/.codescopeignore")
		return nil
	}
	for _, f := range files[:min(len(files), dryRunListed)] {
		rel, _ := filepath.Rel(cfg.Root, f)
		fmt.Fprintf(w, "    %s\n", filepath.ToSlash(rel))
	}
	if len(files) > dryRunListed {
		fmt.Fprintf(w, "    ... and %d more\n", len(files)-dryRunListed)
	}
	if plan != nil {
		fmt.Fprintf(w, "  Would re-index %d, delete %d\n", len(plan.Changed), len(plan.Deleted))
	}
	return nil
}

func reindexFileCommand() *cli.Command {
	return &cli.Command{
		Name:      "reindex-file",
		Usage:     "Re-index a single file; a missing file is removed from the index",
		ArgsUsage: "<file>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "project", Usage: "Project root", Value: "."},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			file := cmd.Args().First()
			if file == "" {
				return cli.Exit("reindex-file requires a file argument", 1)
			}
			cfg, logger, err := resolve(cmd, cmd.String("project"), 0)
			if err != nil {
				return err
			}
			p, err := project.OpenExisting(cfg, nil, logger)
			if errors.Is(err, project.ErrNotIndexed) {
				return cli.Exit("Not indexed. Run `codescope index` first.", 1)
			}
			if err != nil {
				return err
			}
			defer func() { _ = p.Close() }()

			abs, err := filepath.Abs(file)
			if err != nil {
				return err
			}
			res, err := p.ReindexFile(ctx, abs)
			if err != nil {
				return err
			}

			rel, _ := filepath.Rel(cfg.Root, abs)
			rel = filepath.ToSlash(rel)
			w := out(cmd)
			switch {
			case res.FilesDeleted > 0:
				fmt.Fprintf(w, "Cleaned up %s\n", rel)
			case res.ChunksIndexed > 0:
				fmt.Fprintf(w, "Re-indexed %s (%d chunks)\n", rel, res.ChunksIndexed)
			default:
				fmt.Fprintf(w, "Skipped %s\n", rel)
			}
			return nil
		},
	}
}

func searchCommand() *cli.Command {
	return &cli.Command{
		Name:      "search",
		Usage:     "Semantic search over an indexed codebase",
		ArgsUsage: "<query>",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "num-results", Aliases: []string{"n"}, Usage: "Number of results to return"},
			&cli.BoolFlag{Name: "show-code", Usage: "Show matching code"},
			pathFlag(),
			jsonFlag(),
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			query := cmd.Args().First()
			if query == "" {
				return cli.Exit("search requires a query argument", 1)
			}
			cfg, logger, err := resolve(cmd, cmd.String("path"), int(cmd.Int("num-results")))
			if err != nil {
				return err
			}
			p, err := project.OpenExisting(cfg, nil, logger)
			if errors.Is(err, project.ErrNotIndexed) {
				return cli.Exit("Not indexed. Run `codescope index` first.", 1)
			}
			if err != nil {
				return err
			}
			defer func() { _ = p.Close() }()

			resp, err := p.Searcher.Search(ctx, searcher.SearchRequest{
				Query: query,
				Limit: cfg.Search.NResults,
			})
			if err != nil {
				return err
			}

			w := out(cmd)
			if cmd.Bool("json") {
				return printJSON(w, searcher.Hits(resp.Results))
			}
			if len(resp.Results) == 0 {
				fmt.Fprintln(w, "No results found.")
				return nil
			}
			for i, r := range resp.Results {
				fmt.Fprintf(w, "%d. %s", i+1, searcher.FormatResult(r, cmd.Bool("show-code")))
			}
			return nil
		},
	}
}

func statusCommand() *cli.Command {
	return &cli.Command{
		Name:  "status",
		Usage: "Show indexing status for a project",
		Flags: []cli.Flag{pathFlag(), jsonFlag()},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg, logger, err := resolve(cmd, cmd.String("path"), 0)
			if err != nil {
				return err
			}
			w := out(cmd)
			if !cfg.Indexed() {
				if cmd.Bool("json") {
					return printJSON(w, map[string]interface{}{"indexed": false, "project": cfg.Root})
				}
				fmt.Fprintln(w, "Not indexed. Run `codescope index` first.")
				return nil
			}

			p, err := project.OpenExisting(cfg, nil, logger)
			if err != nil {
				return err
			}
			defer func() { _ = p.Close() }()

			st, err := p.Status(ctx)
			if err != nil {
				return err
			}
			if cmd.Bool("json") {
				return printJSON(w, st)
			}
			fmt.Fprintf(w, "Project:   %s\n", st.Project)
			fmt.Fprintf(w, "DB path:   %s\n", st.DBPath)
			fmt.Fprintf(w, "Provider:  %s\n", st.Provider)
			fmt.Fprintf(w, "Model:     %s\n", st.Model)
			fmt.Fprintf(w, "Chunks:    %d\n", st.Chunks)
			fmt.Fprintf(w, "Files:     %d (%d tracked)\n", st.Files, st.TrackedFiles)
			fmt.Fprintf(w, "Schema:    %s\n", st.Schema)
			if st.Session {
				fmt.Fprintln(w, "Session:   active")
			}
			return nil
		},
	}
}

func sessionCommand() *cli.Command {
	open := func(cmd *cli.Command) (*project.Project, error) {
		cfg, logger, err := resolve(cmd, cmd.String("path"), 0)
		if err != nil {
			return nil, err
		}
		return project.Open(cfg, nil, logger)
	}

	return &cli.Command{
		Name:  "session",
		Usage: "Track the files changed during a coding session",
		Commands: []*cli.Command{
			{
				Name:  "begin",
				Usage: "Snapshot the current files",
				Flags: []cli.Flag{pathFlag()},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					p, err := open(cmd)
					if err != nil {
						return err
					}
					defer func() { _ = p.Close() }()

					n, err := p.BeginSession()
					if err != nil {
						return err
					}
					fmt.Fprintf(out(cmd), "Session started, %d files tracked\n", n)
					return nil
				},
			},
			{
				Name:  "diff",
				Usage: "Show what changed since begin, without ending the session",
				Flags: []cli.Flag{pathFlag(), jsonFlag()},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					p, err := open(cmd)
					if err != nil {
						return err
					}
					defer func() { _ = p.Close() }()

					files, err := p.Indexer.Files()
					if err != nil {
						return err
					}
					diff, err := p.Session.Diff(files, p.Config.Root)
					if err != nil {
						return err
					}
					w := out(cmd)
					if cmd.Bool("json") {
						return printJSON(w, diff)
					}
					printList(w, "Modified", diff.Modified)
					printList(w, "Created", diff.Created)
					printList(w, "Deleted", diff.Deleted)
					if diff.Empty() {
						fmt.Fprintln(w, "No changes.")
					}
					return nil
				},
			},
			{
				Name:  "end",
				Usage: "Re-index what changed since begin and clear the snapshot",
				Flags: []cli.Flag{pathFlag()},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					p, err := open(cmd)
					if err != nil {
						return err
					}
					defer func() { _ = p.Close() }()

					res, err := p.EndSession(ctx)
					if err != nil {
						return err
					}
					fmt.Fprintf(out(cmd), "Session ended: %d modified, %d created, %d deleted, %d chunks re-indexed\n",
						len(res.Diff.Modified), len(res.Diff.Created), len(res.Diff.Deleted), res.ChunksReindexed)
					return nil
				},
			},
		},
	}
}

func printList(w io.Writer, label string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(w, "%s (%d):\n", label, len(items))
	for _, it := range items {
		fmt.Fprintf(w, "  %s\n", it)
	}
}

func watchCommand() *cli.Command {
	return &cli.Command{
		Name:  "watch",
		Usage: "Re-index files as they change",
		Flags: []cli.Flag{
			pathFlag(),
			&cli.DurationFlag{Name: "debounce", Usage: "Quiet period before re-indexing", Value: watcher.DefaultDebounce},
			&cli.BoolFlag{Name: "skip-initial", Usage: "Do not run an incremental index before watching"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg, logger, err := resolve(cmd, cmd.String("path"), 0)
			if err != nil {
				return err
			}
			p, err := project.Open(cfg, nil, logger)
			if err != nil {
				return err
			}
			defer func() { _ = p.Close() }()

			w := out(cmd)
			if !cmd.Bool("skip-initial") {
				res, err := p.Index(ctx, indexer.ModeIncremental)
				if err != nil {
					return err
				}
				fmt.Fprintf(w, "Indexed %d chunks (%d changed, %d deleted)\n",
					res.ChunksIndexed, res.FilesChanged, res.FilesDeleted)
			}

			wt := watcher.New(cfg.Root, p.Indexer.Filter(), p, logger, watcher.Options{
				Debounce: cmd.Duration("debounce"),
				OnEvent: func(kind, path string, res *indexer.Result) {
					if path == "" {
						fmt.Fprintf(w, "%s: %d chunks\n", kind, res.ChunksIndexed)
						return
					}
					fmt.Fprintf(w, "%s %s (%d chunks)\n", kind, path, res.ChunksIndexed)
				},
			})
			fmt.Fprintf(w, "Watching %s (Ctrl-C to stop)\n", cfg.Root)
			return wt.Run(ctx)
		},
	}
}

func initCommand() *cli.Command {
	return &cli.Command{
		Name:      "init",
		Usage:     "Create .codescope/ with a default ignore file",
		ArgsUsage: "[path]",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			root := cmd.Args().First()
			if root == "" {
				root = "."
			}
			cfg, _, err := resolve(cmd, root, 0)
			if err != nil {
				return err
			}

			w := out(cmd)
			fmt.Fprintf(w, "Initializing codescope in %s\n", cfg.Root)
			path, created, err := discover.EnsureIgnoreFile(cfg.StateDir())
			if err != nil {
				return err
			}
			if created {
				fmt.Fprintf(w, "  Created: %s\n", path)
			} else {
				fmt.Fprintf(w, "  Already exists: %s\n", path)
			}
			fmt.Fprintln(w, "Next steps:")
			fmt.Fprintln(w, "  1. Edit .codescope/.codescopeignore to choose which files to skip")
			fmt.Fprintln(w, "  2. Run `codescope index .` to index the project")
			return nil
		},
	}
}

func configCommand() *cli.Command {
	return &cli.Command{
		Name:  "config",
		Usage: "Manage the global configuration",
		Commands: []*cli.Command{
			{
				Name:  "show",
				Usage: "Show the global configuration",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					gp, err := globalPath(cmd)
					if err != nil {
						return err
					}
					g, err := config.LoadGlobal(gp)
					if err != nil {
						return err
					}

					w := out(cmd)
					fmt.Fprintf(w, "Config file: %s\n\n", gp)
					values := g.Values()
					for _, key := range config.SortedKeys() {
						if v, ok := values[key]; ok {
							fmt.Fprintf(w, "  %s = %s\n", key, v)
						} else {
							fmt.Fprintf(w, "  %s = (not set)  %s\n", key, config.ValidKeys[key])
						}
					}
					return nil
				},
			},
			{
				Name:      "set",
				Usage:     "Set a global configuration value",
				ArgsUsage: "<key> <value>",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					if cmd.NArg() != 2 {
						return cli.Exit("usage: codescope config set <key> <value>", 1)
					}
					key, value := cmd.Args().Get(0), cmd.Args().Get(1)

					gp, err := globalPath(cmd)
					if err != nil {
						return err
					}
					g, err := config.LoadGlobal(gp)
					if err != nil {
						return err
					}
					if err := g.Set(key, value); err != nil {
						return err
					}
					if err := g.Save(gp); err != nil {
						return err
					}

					shown := value
					if config.SensitiveKeys[key] {
						shown = config.Mask(value)
					}
					w := out(cmd)
					fmt.Fprintf(w, "Set %s = %s\n", key, shown)
					if key == config.KeyEmbeddingProvider {
						fmt.Fprintln(w, "Note: existing indexes use the previous provider's embeddings.")
						fmt.Fprintln(w, "  Run `codescope index --full .` to rebuild with the new provider.")
					}
					return nil
				},
			},
		},
	}
}
