package main

import (
	"context"
	"fmt"
	"os"

	"github.com/alecthomas/kong"

	"org_membership/internal/config"
)

var (
	version = "dev"
	cli     struct {
		Config config.Config `embed:""`

		Version kong.VersionFlag
		Serve   ServeCmd   `cmd:"" default:"withargs" help:"Start the HTTP API."`
		Migrate MigrateCmd `cmd:"" help:"Create or update the database schema."`
		Seed    SeedCmd    `cmd:"" help:"Create demo users and a shared organisation."`
	}
)

func main() {
	if _, err := config.LoadDotEnv(); err != nil {
		fmt.Fprintf(os.Stderr, "load .env: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()
	cmd := kong.Parse(&cli,
		kong.Name("org-membership"),
		kong.Description("Multi-tenant identity and organisation membership API."),
		kong.Vars{
			"version": version,
		},
		kong.BindTo(ctx, (*context.Context)(nil)),
		kong.Bind(&cli.Config))
	err := cmd.Run()
	cmd.FatalIfErrorf(err)
}
