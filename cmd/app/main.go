package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/starford/sitedesk/internal"
	pkgconfig "github.com/starford/sitedesk/pkg/config"
)

func loadOptions(cmd *cli.Command) ([]internal.Option, error) {
	cfg := internal.NewDefaultConfig()
	if err := pkgconfig.LoadOptional(cmd.String("config"), cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	opts := []internal.Option{
		internal.WithConfig(cfg),
	}
	if root := cmd.String("project"); root != "" {
		opts = append(opts, internal.WithProjectRoot(root))
	}
	return opts, nil
}

func serve(ctx context.Context, cmd *cli.Command) error {
	opts, err := loadOptions(cmd)
	if err != nil {
		return err
	}
	if err := internal.Run(ctx, opts...); err != nil {
		return fmt.Errorf("app run error: %w", err)
	}
	return nil
}

func create(ctx context.Context, cmd *cli.Command) error {
	if cmd.NArg() != 2 {
		return fmt.Errorf("usage: %s create <name> <parent>", cmd.Root().Name)
	}
	opts, err := loadOptions(cmd)
	if err != nil {
		return err
	}
	opts = append(opts, internal.WithLogOutput(os.Stderr))
	path, err := internal.CreateProject(ctx, cmd.Args().Get(0), cmd.Args().Get(1), opts...)
	if err != nil {
		return err
	}
	fmt.Println(path)
	return nil
}

func buildSite(ctx context.Context, cmd *cli.Command) error {
	opts, err := loadOptions(cmd)
	if err != nil {
		return err
	}
	opts = append(opts, internal.WithLogOutput(os.Stderr))
	return internal.RunBuild(ctx, os.Stdout, opts...)
}

func serveMCP(ctx context.Context, cmd *cli.Command) error {
	opts, err := loadOptions(cmd)
	if err != nil {
		return err
	}
	opts = append(opts, internal.WithLogOutput(os.Stderr))
	return internal.ServeMCP(ctx, opts...)
}

func main() {
	cmd := &cli.Command{
		Name:   "sitedesk",
		Usage:  "Local content manager for a static blog and portfolio site",
		Action: serve,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "Path to config file",
				DefaultText: "config/config.yaml",
				Value:       "config/config.yaml",
				Sources:     cli.EnvVars("APP_CONFIG_FILE"),
			},
			&cli.StringFlag{
				Name:    "project",
				Aliases: []string{"p"},
				Usage:   "Project root (overrides project.root)",
				Sources: cli.EnvVars("SITEDESK_PROJECT"),
			},
		},
		Commands: []*cli.Command{
			{
				Name:      "create",
				Usage:     "Create a new project from the bundled templates",
				ArgsUsage: "<name> <parent>",
				Action:    create,
			},
			{
				Name:   "build",
				Usage:  "Run the site build once and print its output",
				Action: buildSite,
			},
			{
				Name:   "mcp",
				Usage:  "Serve the content tools over MCP on stdio",
				Action: serveMCP,
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
