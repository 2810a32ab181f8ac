package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/urfave/cli/v3"

	"curio/internal/ai"
	"curio/internal/config"
	"curio/internal/feed"
	"curio/internal/httpapi"
	"curio/internal/mcpserver"
	"curio/internal/store"
	"curio/internal/version"
)

func main() {
	app := &cli.Command{
		Name:  "curio",
		Usage: "Curio, an AI-assisted RSS reader",
		Commands: []*cli.Command{
			{
				Name:  "serve",
				Usage: "Run the HTTP API server",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "addr", Usage: "Listen address (default from config)"},
					&cli.StringFlag{Name: "feeds", Usage: "Path to the feeds JSON document"},
				},
				Action: func(ctx context.Context, c *cli.Command) error {
					return serve(ctx, c.String("addr"), c.String("feeds"))
				},
			},
			{
				Name:  "feeds",
				Usage: "Manage feed subscriptions",
				Commands: []*cli.Command{
					{
						Name:  "list",
						Usage: "List subscribed feeds",
						Action: func(ctx context.Context, c *cli.Command) error {
							st, err := openStore("")
							if err != nil {
								return err
							}
							feeds, err := st.List()
							if err != nil {
								return err
							}
							if len(feeds) == 0 {
								fmt.Println("No feeds subscribed.")
								return nil
							}
							for _, f := range feeds {
								fmt.Printf("%s\t%s\n", f.Title, f.URL)
							}
							return nil
						},
					},
					{
						Name:  "add",
						Usage: "Subscribe to a feed",
						Arguments: []cli.Argument{
							&cli.StringArg{Name: "url", UsageText: "feed URL"},
							&cli.StringArg{Name: "title", UsageText: "display title"},
						},
						Action: func(ctx context.Context, c *cli.Command) error {
							st, err := openStore("")
							if err != nil {
								return err
							}
							created, err := st.Add(c.StringArg("url"), c.StringArg("title"))
							if err != nil {
								return err
							}
							fmt.Printf("Added %s (%s)\n", created.Title, created.URL)
							return nil
						},
					},
					{
						Name:  "remove",
						Usage: "Unsubscribe from a feed",
						Arguments: []cli.Argument{
							&cli.StringArg{Name: "url", UsageText: "feed URL"},
						},
						Action: func(ctx context.Context, c *cli.Command) error {
							st, err := openStore("")
							if err != nil {
								return err
							}
							removed, err := st.Remove(c.StringArg("url"))
							if err != nil {
								return err
							}
							fmt.Printf("Removed %s (%s)\n", removed.Title, removed.URL)
							return nil
						},
					},
				},
			},
			{
				Name:  "validate",
				Usage: "Check that a URL resolves to a parseable feed",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "url", UsageText: "feed URL"},
				},
				Action: func(ctx context.Context, c *cli.Command) error {
					appCfg, _ := config.LoadAppConfig()
					fetcher := feed.NewFetcher(time.Duration(appCfg.FetchTimeoutSec) * time.Second)
					info, err := fetcher.Validate(ctx, c.StringArg("url"))
					if err != nil {
						return err
					}
					fmt.Printf("Title: %s\n", info.Title)
					if info.Description != "" {
						fmt.Printf("Description: %s\n", info.Description)
					}
					fmt.Printf("Link: %s\n", info.Link)
					fmt.Printf("Items: %d\n", info.Items)
					return nil
				},
			},
			{
				Name:  "articles",
				Usage: "Fetch and print the articles of a feed",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "url", UsageText: "feed URL"},
				},
				Action: func(ctx context.Context, c *cli.Command) error {
					appCfg, _ := config.LoadAppConfig()
					fetcher := feed.NewFetcher(time.Duration(appCfg.FetchTimeoutSec) * time.Second)
					articles, err := fetcher.Fetch(ctx, c.StringArg("url"))
					if err != nil {
						return err
					}
					for _, a := range articles {
						fmt.Printf("Title: %s\n", a.Title)
						fmt.Printf("Link: %s\n", a.Link)
						fmt.Printf("Date: %s\n", a.PubDate)
						if a.ContentSnippet != "" {
							snippet := a.ContentSnippet
							if len(snippet) > 400 {
								snippet = snippet[:400] + "..."
							}
							fmt.Printf("Snippet: %s\n", snippet)
						}
						fmt.Println(strings.Repeat("-", 80))
					}
					return nil
				},
			},
			{
				Name:  "mcp",
				Usage: "Run MCP server on stdio",
				Action: func(ctx context.Context, c *cli.Command) error {
					return mcpserver.Run(ctx)
				},
			},
			{
				Name:  "version",
				Usage: "Print the version",
				Action: func(ctx context.Context, c *cli.Command) error {
					fmt.Println(version.GetVersion())
					return nil
				},
			},
		},
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		log.Fatal(err)
	}
}

func openStore(path string) (*store.FileStore, error) {
	if strings.TrimSpace(path) == "" {
		p, err := config.LoadFeedsPath()
		if err != nil {
			return nil, err
		}
		path = p
	}
	return store.Open(config.ExpandPath(path))
}

func serve(ctx context.Context, addr, feedsPath string) error {
	appCfg, err := config.LoadAppConfig()
	if err != nil {
		return err
	}
	if strings.TrimSpace(addr) == "" {
		addr = appCfg.ListenAddr
	}
	if strings.TrimSpace(feedsPath) == "" {
		feedsPath = appCfg.FeedsPath
	}

	st, err := openStore(feedsPath)
	if err != nil {
		return err
	}
	fetcher := feed.NewFetcher(time.Duration(appCfg.FetchTimeoutSec) * time.Second)
	assistant := ai.NewAssistant(ai.NewClient(appCfg.AIConf))
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	api := httpapi.NewServer(st, fetcher, assistant, logger, appCfg.ArticlesPerFeed)
	server := &http.Server{
		Addr:    addr,
		Handler: api.Handler(),
	}

	go func() {
		logger.Info("curio API server starting", "addr", addr, "feeds", st.Path)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
