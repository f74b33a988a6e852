// Package main is the entrypoint for the factsentry vault gateway.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/factsentry/factsentry/internal/config"
	"github.com/factsentry/factsentry/internal/server"
	"github.com/factsentry/factsentry/internal/vault"
)

// Version is set at build time via -ldflags.
var Version = "dev"

// startable is an interface for anything that can be started and then
// shut down with a context — satisfied by *server.Server.
type startable interface {
	Start(ctx context.Context) error
}

// serverFactory creates a startable server from config. Tests can inject a
// failing factory to cover the server.New() error path.
type serverFactory func(*config.Config, string) (startable, error)

// defaultServerFactory is the production factory that delegates to server.New.
func defaultServerFactory(cfg *config.Config, version string) (startable, error) {
	return server.New(cfg, version)
}

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	fs := flag.NewFlagSet("factsentry", flag.ContinueOnError)
	configPath := fs.String("config", "factsentry.yaml", "path to configuration file")
	showVersion := fs.Bool("version", false, "print version and exit")

	if err := fs.Parse(args); err != nil {
		if err == flag.ErrHelp {
			printUsage()
			return 0
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	if *showVersion {
		fmt.Printf("factsentry %s\n", Version)
		return 0
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	subcmd := "serve"
	remaining := fs.Args()
	if len(remaining) > 0 {
		subcmd = remaining[0]
		remaining = remaining[1:]
	}

	switch subcmd {
	case "serve":
		return cmdServe(*configPath, defaultServerFactory)
	case "validate":
		return cmdValidate(*configPath)
	case "init":
		return cmdInit(remaining)
	case "status":
		return cmdStatus(*configPath)
	case "help":
		printUsage()
		return 0
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", subcmd)
		printUsage()
		return 1
	}
}

func printUsage() {
	fmt.Fprintf(os.Stderr, `factsentry %s — Personal Data Vault Gateway

Usage:
  factsentry [flags] <command>

Commands:
  serve      Start the vault gateway server (default)
  validate   Validate configuration file
  init       Generate a new factsentry.yaml (and optionally a starter vault)
  status     Show vault posture, personas, and pending approvals
  help       Show this help message

Flags:
  --config string   Path to configuration file (default "factsentry.yaml")
  --version         Print version and exit

Examples:
  factsentry serve --config factsentry.yaml
  factsentry validate --config factsentry.yaml
  factsentry init --profile dev --vault
  factsentry status
`, Version)
}

// cmdServe starts the gateway HTTP server with hot reload and graceful shutdown.
func cmdServe(configPath string, newServer serverFactory) int {
	logger := slog.Default()
	logger.Info("starting factsentry",
		"version", Version,
		"config", configPath,
	)

	cfg, err := config.Load(configPath)
	if err != nil {
		logger.Error("configuration error", "error", err)
		return 1
	}

	srv, err := newServer(cfg, Version)
	if err != nil {
		logger.Error("server initialization error", "error", err)
		return 1
	}

	// Graceful shutdown on SIGINT/SIGTERM
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Reload.Enabled {
		reloader := config.NewReloader(configPath, cfg, logger)
		if sub, ok := srv.(config.Reloadable); ok {
			reloader.Register(sub)
		}
		if err := reloader.Start(ctx); err != nil {
			logger.Error("config reloader error", "error", err)
			return 1
		}
		defer reloader.Stop()
	}

	if err := srv.Start(ctx); err != nil {
		logger.Error("server error", "error", err)
		return 1
	}

	return 0
}

// cmdValidate loads and validates the configuration file.
func cmdValidate(configPath string) int {
	logger := slog.Default()
	logger.Info("validating configuration", "config", configPath)

	if _, err := config.Load(configPath); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	fmt.Println("config valid")
	return 0
}

// cmdInit generates a new factsentry.yaml with the specified profile.
func cmdInit(args []string) int {
	fs := flag.NewFlagSet("init", flag.ContinueOnError)
	profile := fs.String("profile", "dev", "configuration profile (dev or prod)")
	withVault := fs.Bool("vault", false, "also write a starter vault.json if absent")

	if err := fs.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return 0
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	var profileYAML string
	switch *profile {
	case "dev":
		profileYAML = config.DevProfile()
	case "prod":
		profileYAML = config.ProdProfile()
	default:
		fmt.Fprintf(os.Stderr, "Error: unknown profile %q (use dev or prod)\n", *profile)
		return 1
	}

	outPath := "factsentry.yaml"
	if err := os.WriteFile(outPath, []byte(profileYAML), 0644); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing %s: %v\n", outPath, err)
		return 1
	}
	fmt.Printf("Generated %s with profile %q\n", outPath, *profile)

	if *withVault {
		if _, err := os.Stat("vault.json"); err == nil {
			fmt.Fprintln(os.Stderr, "vault.json already exists, leaving it untouched")
			return 0
		}
		store := vault.NewStore("vault.json", slog.Default())
		starter := &vault.Snapshot{
			Personas: []vault.Persona{{Name: "default"}},
			Settings: vault.Settings{Posture: "balanced"},
		}
		if err := store.Save(starter); err != nil {
			fmt.Fprintf(os.Stderr, "Error writing vault.json: %v\n", err)
			return 1
		}
		fmt.Println("Generated starter vault.json (balanced posture, empty default persona)")
	}

	return 0
}

// cmdStatus prints a human-readable summary of the vault state.
func cmdStatus(configPath string) int {
	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	store := vault.NewStore(cfg.Vault.Path, slog.Default())
	err = store.View(func(snap *vault.Snapshot) error {
		fmt.Printf("vault: %s\n", cfg.Vault.Path)
		fmt.Printf("posture: %s\n", postureLabel(snap.Settings.Posture))

		fmt.Printf("personas: %d\n", len(snap.Personas))
		for i := range snap.Personas {
			p := &snap.Personas[i]
			visibility := "visible"
			if !p.Visible() {
				visibility = "hidden"
			}
			fmt.Printf("  %s: %d facts (%s)\n", p.Name, len(p.Facts), visibility)
		}

		nowMs := time.Now().UnixMilli()
		live := 0
		for i := range snap.Pending {
			if snap.Pending[i].Status == vault.StatusPending && !snap.Pending[i].Expired(nowMs) {
				live++
			}
		}
		fmt.Printf("pending approvals: %d\n", live)
		fmt.Printf("standing rules: %d\n", len(snap.Rules))
		fmt.Printf("scheduled rules: %d\n", len(snap.ScheduledRules))

		tail := snap.AuditTail(5)
		fmt.Printf("audit entries: %d\n", len(snap.Audit))
		for i := range tail {
			ev := &tail[i]
			when := ev.Timestamp.Format(time.RFC3339)
			fmt.Printf("  %s %-13s %s -> %s (%d fields)\n",
				when, ev.Decision, ev.Purpose, ev.RecipientDomain, len(ev.FieldsReleased))
		}
		return nil
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading vault: %v\n", err)
		return 1
	}
	return 0
}

// postureLabel shows the configured posture, naming the default explicitly.
func postureLabel(p string) string {
	if p == "" {
		return "balanced (default)"
	}
	return p
}
