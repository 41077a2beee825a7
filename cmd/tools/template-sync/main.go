// cmd/tools/template-sync/main.go
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"notification-workers/internal/common/config"
	"notification-workers/internal/common/database"
	"notification-workers/internal/common/logger"
	"notification-workers/internal/templates"
	"notification-workers/pkg/registry"
)

var manifestPath string

func main() {
	addCmd := flag.NewFlagSet("add", flag.ExitOnError)
	validateCmd := flag.NewFlagSet("validate", flag.ExitOnError)
	pushCmd := flag.NewFlagSet("push", flag.ExitOnError)

	// Add command flags
	addCmd.StringVar(&manifestPath, "path", "configs/templates.json", "Path to template manifest")
	application := addCmd.String("application", "", "Application owning the template (e.g., app1)")
	name := addCmd.String("name", "", "Template name (e.g., welcome)")
	file := addCmd.String("file", "", "Template body file, relative to the manifest")
	description := addCmd.String("description", "", "Description")

	// Validate command flags
	validateCmd.StringVar(&manifestPath, "path", "configs/templates.json", "Path to template manifest")

	// Push command flags
	pushCmd.StringVar(&manifestPath, "path", "configs/templates.json", "Path to template manifest")
	configPath := pushCmd.String("config", "", "Path to config file (defaults to the worker's config lookup)")
	dryRun := pushCmd.Bool("dry-run", false, "Validate and list templates without writing")

	if len(os.Args) < 2 {
		help()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "add":
		addCmd.Parse(os.Args[2:])
		if *application == "" || *name == "" || *file == "" {
			fmt.Println("Error: application, name, and file are required for add.")
			addCmd.Usage()
			os.Exit(1)
		}
		entry := registry.TemplateEntry{
			Application: *application,
			Name:        *name,
			File:        *file,
			Description: *description,
		}
		if err := addTemplate(manifestPath, entry); err != nil {
			fmt.Printf("Error adding template: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Added template: %s\n", entry.Key())

	case "validate":
		validateCmd.Parse(os.Args[2:])
		m, err := registry.LoadManifest(manifestPath)
		if err != nil {
			fmt.Printf("Error loading manifest: %v\n", err)
			os.Exit(1)
		}
		if err := validateManifest(m, os.Stdout); err != nil {
			fmt.Printf("Validation failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("Manifest is valid.")

	case "push":
		pushCmd.Parse(os.Args[2:])
		m, err := registry.LoadManifest(manifestPath)
		if err != nil {
			fmt.Printf("Error loading manifest: %v\n", err)
			os.Exit(1)
		}
		if err := validateManifest(m, os.Stdout); err != nil {
			fmt.Printf("Validation failed: %v\n", err)
			os.Exit(1)
		}
		if *dryRun {
			fmt.Printf("Dry run: %d templates would be pushed.\n", len(m.Templates))
			return
		}
		if err := push(*configPath, m); err != nil {
			fmt.Printf("Push failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Pushed %d templates.\n", len(m.Templates))

	case "help":
		help()

	default:
		fmt.Printf("Unknown command: %s\n", os.Args[1])
		help()
		os.Exit(1)
	}
}

func push(configPath string, m *registry.TemplateManifest) error {
	var (
		cfg *config.Config
		err error
	)
	if configPath != "" {
		cfg, err = config.LoadFromFile(configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return fmt.Errorf("config load failed: %w", err)
	}

	log := logger.NewStructured("info", "text")

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	pg, err := database.NewPostgres(cfg.Database.Postgres)
	if err != nil {
		return err
	}
	defer pg.Close()

	if err := pg.Ping(ctx); err != nil {
		return err
	}
	if err := pg.EnsureSchema(ctx); err != nil {
		return err
	}

	var evictor Evictor
	if cfg.Database.Redis.Enabled() {
		rdb := database.NewRedis(cfg.Database.Redis)
		defer rdb.Close()
		evictor = templates.NewCachedResolver(nil, rdb.Client, cfg.Dispatch.CacheTTL(), log)
	}

	return pushManifest(ctx, m, templates.NewRepository(pg.DB), evictor, log, os.Stdout)
}

func help() {
	fmt.Println(`Template Sync Tool

Usage:
  template-sync add -application <app> -name <name> -file <path> [-description <text>] [-path <manifest>]
  template-sync validate [-path <manifest>]
  template-sync push [-path <manifest>] [-config <config.yaml>] [-dry-run]
  template-sync help

Commands:
  add       Add a template entry to the manifest
  validate  Compile every template and render it against its sample model
  push      Validate, then upsert every template into PostgreSQL and evict cached copies

Examples:
  template-sync add -application app1 -name welcome -file app1/welcome.ftl
  template-sync validate -path configs/templates.json
  template-sync push -config configs/config.yaml`)
}
