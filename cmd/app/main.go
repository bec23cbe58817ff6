package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/starford/sowilo/internal"
	pkgconfig "github.com/starford/sowilo/pkg/config"
)

func loadConfig(cmd *cli.Command) (*internal.Config, error) {
	cfg := internal.NewDefaultConfig()
	if err := pkgconfig.Load(cmd.String("config"), cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}

func build(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if _, err := internal.Build(ctx, internal.WithConfig(cfg)); err != nil {
		return fmt.Errorf("build error: %w", err)
	}
	return nil
}

func serve(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if cmd.IsSet("port") {
		cfg.Serve.Port = int(cmd.Int("port"))
	}
	if cmd.Bool("no-watch") {
		cfg.Serve.Watch = false
	}
	if err := internal.Serve(ctx, internal.WithConfig(cfg)); err != nil {
		return fmt.Errorf("serve error: %w", err)
	}
	return nil
}

func query(_ context.Context, cmd *cli.Command) error {
	terms := strings.Join(cmd.Args().Slice(), " ")
	if strings.TrimSpace(terms) == "" {
		return fmt.Errorf("search: at least one term is required")
	}
	hits, err := internal.Search(cmd.String("index"), terms)
	if err != nil {
		return fmt.Errorf("search error: %w", err)
	}
	for _, h := range hits {
		fmt.Fprintf(cmd.Root().Writer, "%d\t%s\t%s\n", h.Matched, h.Title, h.Rel)
	}
	return nil
}

func main() {
	cmd := &cli.Command{
		Name:   "sowilo",
		Usage:  "Static site generator for Markdown note trees with wiki-links and a client-side search index",
		Action: build,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "Path to config file",
				DefaultText: "config/config.yaml",
				Value:       "config/config.yaml",
				Sources:     cli.EnvVars("APP_CONFIG_FILE"),
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "build",
				Usage:  "Build the site once",
				Action: build,
			},
			{
				Name:   "serve",
				Usage:  "Build, serve the output directory and rebuild on changes",
				Action: serve,
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "port",
						Usage: "Override serve.port",
					},
					&cli.BoolFlag{
						Name:  "no-watch",
						Usage: "Do not rebuild on content changes",
					},
				},
			},
			{
				Name:      "search",
				Usage:     "Query a built search index",
				ArgsUsage: "<terms...>",
				Action:    query,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "index",
						Usage:    "Path to a searchindex file",
						Required: true,
					},
				},
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
