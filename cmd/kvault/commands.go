package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/starford/kvault/internal"
	"github.com/starford/kvault/internal/corpus"
	"github.com/starford/kvault/internal/docservice"
	"github.com/starford/kvault/internal/index"
	"github.com/starford/kvault/internal/models"
	"github.com/starford/kvault/internal/render"
	"github.com/starford/kvault/internal/search"
)

func searchCommand() *cli.Command {
	return &cli.Command{
		Name:      "search",
		Usage:     "Search documents across all roots",
		ArgsUsage: "<query>",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "limit", Aliases: []string{"l"}, Usage: "Maximum results, 0 for all (default from config)"},
			&cli.StringFlag{Name: "category", Aliases: []string{"c"}, Usage: "Only search this category"},
			&cli.BoolFlag{Name: "case-sensitive", Aliases: []string{"s"}, Usage: "Match case exactly (plain backend)"},
			&cli.StringFlag{Name: "backend", Aliases: []string{"b"}, Usage: "Backend: plain, ranked or auto (default from config)"},
			&cli.IntFlag{Name: "fuzzy", Aliases: []string{"f"}, Usage: "Edit distance for ranked matching: 0, 1 or 2"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			query, err := queryArg(cmd.Args().Slice())
			if err != nil {
				return err
			}
			app, err := loadApp(cmd)
			if err != nil {
				return err
			}

			req := search.Request{
				Query:         query,
				Limit:         -1,
				CaseSensitive: cmd.Bool("case-sensitive"),
				Fuzzy:         int(cmd.Int("fuzzy")),
			}
			if cmd.IsSet("limit") {
				req.Limit = int(cmd.Int("limit"))
			}
			if cmd.IsSet("category") {
				c := cmd.String("category")
				req.Category = &c
			}
			if cmd.IsSet("backend") {
				if req.Backend, err = models.ParseBackend(cmd.String("backend")); err != nil {
					return err
				}
			}

			resp, err := app.Dispatcher().Search(ctx, app.SearchRequest(req))
			if err != nil {
				return err
			}
			render.Auto().SearchResults(query, resp)
			return nil
		},
	}
}

func listCommand() *cli.Command {
	return &cli.Command{
		Name:  "list",
		Usage: "List documents",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "category", Aliases: []string{"c"}, Usage: "Only list this category"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			app, err := loadApp(cmd)
			if err != nil {
				return err
			}
			var category *string
			if cmd.IsSet("category") {
				c := cmd.String("category")
				category = &c
			}
			entries, err := app.Docs().List(ctx, category)
			if err != nil {
				return err
			}
			render.Auto().Documents(entries)
			return nil
		},
	}
}

func addCommand() *cli.Command {
	return &cli.Command{
		Name:  "add",
		Usage: "Add a document to the primary root (content from --file or stdin)",
		Description: "Title, category and tags not given as flags are taken from the content's\n" +
			"YAML frontmatter; the title falls back to the first '# ' heading.",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "title", Aliases: []string{"t"}, Usage: "Document title"},
			&cli.StringFlag{Name: "category", Aliases: []string{"C"}, Usage: "Category and directory name"},
			&cli.StringFlag{Name: "tags", Aliases: []string{"T"}, Usage: "Comma-separated tags"},
			&cli.StringFlag{Name: "file", Aliases: []string{"f"}, Usage: "Read content from file instead of stdin"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			app, err := loadApp(cmd)
			if err != nil {
				return err
			}
			content, err := readContent(cmd.String("file"), os.Stdin)
			if err != nil {
				return err
			}
			req := docservice.AddRequest{
				Title:    cmd.String("title"),
				Category: cmd.String("category"),
				Tags:     cmd.String("tags"),
				Content:  content,
			}
			docservice.InferMetadata(&req)
			doc, err := app.Docs().Add(ctx, req)
			if err != nil {
				return err
			}
			render.Auto().Added(doc)
			return nil
		},
	}
}

// readContent reads path, or stdin when path is empty or "-".
func readContent(path string, stdin io.Reader) (string, error) {
	if path == "" || path == "-" {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return "", fmt.Errorf("read stdin: %w", err)
		}
		return string(data), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read content: %w", err)
	}
	return string(data), nil
}

func getCommand() *cli.Command {
	return &cli.Command{
		Name:      "get",
		Usage:     "Print a document's content",
		ArgsUsage: "<path>",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			path := cmd.Args().First()
			if path == "" {
				return fmt.Errorf("get: a document path is required")
			}
			app, err := loadApp(cmd)
			if err != nil {
				return err
			}
			content, err := app.Docs().Get(ctx, path)
			if err != nil {
				return err
			}
			render.Auto().Content(content)
			return nil
		},
	}
}

func indexCommand() *cli.Command {
	return &cli.Command{
		Name:  "index",
		Usage: "Build the ranked search index of every root",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "status", Usage: "Report index state without building"},
			&cli.BoolFlag{Name: "watch", Aliases: []string{"w"}, Usage: "Rebuild whenever a manifest changes"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			app, err := loadApp(cmd)
			if err != nil {
				return err
			}
			p := render.Auto()

			if cmd.Bool("status") {
				statuses, err := app.IndexStatus()
				if err != nil {
					return err
				}
				for _, st := range statuses {
					p.Status(st)
				}
				return nil
			}

			stats, err := app.BuildIndex(ctx)
			for _, st := range stats {
				p.Built(st)
			}
			if err != nil {
				return err
			}
			if !cmd.Bool("watch") {
				return nil
			}

			p.Info("Watching manifests for changes (Ctrl-C to stop)")
			err = app.WatchIndex(ctx, func(root string, st *index.BuildStats, err error) {
				if err != nil {
					p.Error(fmt.Errorf("rebuild %s: %w", root, err))
					return
				}
				p.Built(st)
			})
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
	}
}

func initCommand() *cli.Command {
	return &cli.Command{
		Name:      "init",
		Usage:     "Create a corpus root with an empty manifest",
		ArgsUsage: "[path]",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			path := cmd.Args().First()
			if path == "" {
				app, err := loadApp(cmd)
				if err != nil {
					return err
				}
				paths := app.Config().Corpus.ExpandedPaths()
				if len(paths) == 0 {
					return fmt.Errorf("init: no path given and no corpus paths configured")
				}
				path = paths[0]
			}
			root, created, err := corpus.Init(path)
			if err != nil {
				return err
			}
			p := render.Auto()
			if created {
				p.Info("Initialized corpus root at " + root.Path())
			} else {
				p.Info("Corpus root already initialized at " + root.Path())
			}
			return nil
		},
	}
}

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Serve the corpus over MCP (stdio) and/or HTTP",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "http", Usage: "Serve the HTTP API"},
			&cli.BoolFlag{Name: "mcp", Usage: "Serve MCP on stdio (default when no transport is chosen)"},
			&cli.BoolFlag{Name: "watch", Aliases: []string{"w"}, Usage: "Rebuild indexes when a manifest changes"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			app, err := loadApp(cmd)
			if err != nil {
				return err
			}
			opts := internal.ServeOptions{
				HTTP:  cmd.Bool("http"),
				MCP:   cmd.Bool("mcp"),
				Watch: cmd.Bool("watch"),
			}
			if !opts.HTTP && !opts.MCP {
				opts.MCP = true
			}
			return app.Serve(ctx, opts)
		},
	}
}

// queryArg joins the search arguments. A missing query is a usage error; an
// explicitly empty one ("") is searched and matches nothing.
func queryArg(args []string) (string, error) {
	if len(args) == 0 {
		return "", errors.New("search: missing required argument <query>\n\nUsage: kvault search [options] <query>")
	}
	return strings.Join(args, " "), nil
}
