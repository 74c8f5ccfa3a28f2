package main

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"github.com/urfave/cli/v2"
	"golang.org/x/oauth2"

	"calnotes/internal/config"
	"calnotes/internal/google"
	"calnotes/internal/metrics"
	"calnotes/internal/models"
	"calnotes/internal/notes"
	"calnotes/internal/selection"
	"calnotes/internal/storage"
	"calnotes/internal/syncer"
	"calnotes/internal/timerange"
)

func main() {
	// Load .env file first, but don't error if it doesn't exist.
	_ = godotenv.Load()

	app := &cli.App{
		Name:  "calnotes",
		Usage: "Turn calendar events into Markdown meeting notes.",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Aliases: []string{"c"}, Usage: "Path to a YAML config file (default $CALNOTES_CONFIG)."},
		},
		Commands: []*cli.Command{
			authCommand(),
			calendarsCommand(),
			generateCommand(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		slog.Error("Application failed", "error", err)
		os.Exit(1)
	}
}

// loadConfig loads the configuration, applies its timezone to time.Local and
// builds the logger.
func loadConfig(c *cli.Context) (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load(c.Context, c.String("config"))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	loc, err := cfg.Location()
	if err != nil {
		return nil, nil, err
	}
	time.Local = loc
	return cfg, setupLogger(cfg.LogLevel), nil
}

func authCommand() *cli.Command {
	return &cli.Command{
		Name:  "auth",
		Usage: "Authenticate with a Google account to get an API token.",
		Action: func(c *cli.Context) error {
			cfg, logger, err := loadConfig(c)
			if err != nil {
				return err
			}
			logger.Info("Starting Google authentication flow.")

			oauthConfig, err := google.GetOAuthConfigForAuthFlow(cfg.Google.ClientID, cfg.Google.ClientSecret)
			if err != nil {
				return fmt.Errorf("failed to get google oauth config: %w", err)
			}

			authURL := oauthConfig.AuthCodeURL("state-token", oauth2.AccessTypeOffline)
			fmt.Printf("Go to the following link in your browser then type the "+
				"authorization code: \n%v\n", authURL)

			fmt.Print("Enter Authorization Code: ")
			reader := bufio.NewReader(os.Stdin)
			authCode, _ := reader.ReadString('\n')
			authCode = strings.TrimSpace(authCode)

			token, err := google.TokenFromWeb(c.Context, oauthConfig, authCode)
			if err != nil {
				return fmt.Errorf("unable to retrieve token from web: %w", err)
			}

			fmt.Print("Enter a name for this account (e.g., 'personal', 'work'): ")
			accountName, _ := reader.ReadString('\n')
			accountName = strings.TrimSpace(accountName)
			if accountName == "" {
				return fmt.Errorf("account name must not be empty")
			}
			tokenFile := google.TokenFile(cfg.Google.TokenDir, accountName)

			if err := google.SaveToken(tokenFile, token); err != nil {
				return fmt.Errorf("failed to save token: %w", err)
			}

			logger.Info("Successfully authenticated and saved token.", "file", tokenFile)
			return nil
		},
	}
}

func calendarsCommand() *cli.Command {
	return &cli.Command{
		Name:  "calendars",
		Usage: "List the calendars of the configured source.",
		Action: func(c *cli.Context) error {
			cfg, logger, err := loadConfig(c)
			if err != nil {
				return err
			}
			sources, err := buildSources(c.Context, logger, cfg)
			if err != nil {
				return err
			}
			for _, src := range sources {
				cals, err := src.ListCalendars(c.Context)
				if err != nil {
					return fmt.Errorf("failed to list calendars: %w", err)
				}
				for _, cal := range cals {
					marker := ""
					if cal.Primary {
						marker = " (primary)"
					}
					fmt.Printf("%s\t%s%s\n", cal.ID, cal.Name, marker)
				}
			}
			return nil
		},
	}
}

func generateCommand() *cli.Command {
	return &cli.Command{
		Name:    "generate",
		Aliases: []string{"sync"},
		Usage:   "Create notes for the events of a day or a date range.",
		Flags: []cli.Flag{
			&cli.StringSliceFlag{Name: "calendar", Usage: "Calendar ID to read (repeatable). Defaults to the configured or primary calendars."},
			&cli.StringFlag{Name: "from", Usage: "First day, YYYY-MM-DD. Defaults to today."},
			&cli.StringFlag{Name: "to", Usage: "Last day, YYYY-MM-DD. Defaults to --from."},
			&cli.StringFlag{Name: "folder", Usage: "Target folder, relative to the storage root."},
			&cli.StringFlag{Name: "template", Usage: "Template note path, relative to the storage root."},
			&cli.StringFlag{Name: "policy", Usage: "What to do when a note exists: skip, overwrite or suffix."},
			&cli.StringSliceFlag{Name: "event", Usage: "Only write this event ID (repeatable)."},
			&cli.BoolFlag{Name: "interactive", Aliases: []string{"i"}, Usage: "Pick the events to write from a numbered list."},
			&cli.BoolFlag{Name: "dry-run", Usage: "Log what would be written without making changes."},
			&cli.StringFlag{Name: "schedule", Usage: "Run on a cron schedule (e.g. \"0 7 * * 1-5\") instead of once."},
			&cli.StringFlag{Name: "metrics-file", Usage: "Write Prometheus metrics to this textfile after each run."},
		},
		Action: func(c *cli.Context) error {
			cfg, logger, err := loadConfig(c)
			if err != nil {
				return err
			}
			applyGenerateFlags(c, cfg)
			if err := cfg.Validate(); err != nil {
				return err
			}
			policy, err := notes.ParsePolicy(cfg.Policy)
			if err != nil {
				return err
			}
			if c.Bool("interactive") && c.IsSet("schedule") {
				return fmt.Errorf("--interactive cannot be combined with --schedule")
			}
			if c.Bool("dry-run") {
				logger.Info("Performing a dry run. No changes will be made.")
			}

			sources, err := buildSources(c.Context, logger, cfg)
			if err != nil {
				return err
			}
			store, err := buildStore(logger, cfg)
			if err != nil {
				return err
			}
			m := metrics.NewManager()

			sel := selection.All()
			if ids := c.StringSlice("event"); len(ids) > 0 {
				sel = selection.Of(ids...)
			}

			runOnce := func(ctx context.Context) error {
				rng, err := dayRange(c.String("from"), c.String("to"))
				if err != nil {
					return err
				}

				var runStore notes.Storage = store
				var dry *storage.DryRun
				if c.Bool("dry-run") {
					dry = storage.NewDryRun(logger, store)
					runStore = dry
				}

				req := syncer.Request{
					Range:        rng,
					Calendars:    cfg.CalendarIDs(),
					Folder:       cfg.Folder,
					TemplatePath: cfg.Template,
					Policy:       policy,
					Selection:    sel,
				}
				if c.Bool("interactive") {
					req.Choose = func(events []models.Event) (selection.Selection, error) {
						return selection.Prompt(os.Stdin, os.Stdout, events)
					}
				}

				res, err := syncer.NewSyncer(logger, runStore, m, sources...).Sync(ctx, req)
				if cfg.MetricsFile != "" {
					if werr := m.WriteTextfile(cfg.MetricsFile); werr != nil {
						logger.Error("Failed to write metrics", "error", werr)
					}
				}
				if err != nil {
					return err
				}
				printResult(res, dry)
				return nil
			}

			ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			if !c.IsSet("schedule") {
				return runOnce(ctx)
			}

			scheduler := cron.New()
			_, err = scheduler.AddFunc(c.String("schedule"), func() {
				if err := runOnce(ctx); err != nil {
					logger.Error("Generation run failed", "error", err)
				}
			})
			if err != nil {
				return fmt.Errorf("invalid schedule '%s': %w", c.String("schedule"), err)
			}
			logger.Info("Starting scheduler.", "schedule", c.String("schedule"))
			scheduler.Start()
			<-ctx.Done()
			<-scheduler.Stop().Done()
			logger.Info("Scheduler stopped.")
			return nil
		},
	}
}

// applyGenerateFlags lets explicit flags override the loaded configuration.
func applyGenerateFlags(c *cli.Context, cfg *config.Config) {
	if ids := c.StringSlice("calendar"); len(ids) > 0 {
		cfg.Calendars = ids
	}
	if c.IsSet("folder") {
		cfg.Folder = c.String("folder")
	}
	if c.IsSet("template") {
		cfg.Template = c.String("template")
	}
	if c.IsSet("policy") {
		cfg.Policy = c.String("policy")
	}
	if c.IsSet("metrics-file") {
		cfg.MetricsFile = c.String("metrics-file")
	}
}

// dayRange resolves --from/--to into a local range. Without --from it is
// today, computed at call time so scheduled runs follow the clock.
func dayRange(from, to string) (timerange.Range, error) {
	if from == "" {
		if to != "" {
			return timerange.Range{}, fmt.Errorf("--to requires --from")
		}
		return timerange.CurrentDay(), nil
	}
	first, err := timerange.ParseDay(from)
	if err != nil {
		return timerange.Range{}, err
	}
	if to == "" {
		return first, nil
	}
	last, err := timerange.ParseDay(to)
	if err != nil {
		return timerange.Range{}, err
	}
	return timerange.Custom(first.Start, last.End)
}

func printResult(res notes.Result, dry *storage.DryRun) {
	prefix := ""
	if dry != nil {
		prefix = "[DRY RUN] "
	}
	fmt.Printf("%sCreated %d note(s), skipped %d.\n", prefix, len(res.Created), len(res.Skipped))
	for _, name := range res.Created {
		fmt.Printf("  + %s\n", name)
	}
	for _, s := range res.Skipped {
		fmt.Printf("  - %s (%s)\n", s.Filename, s.Reason)
	}
}

func setupLogger(level string) *slog.Logger {
	var logLevel slog.Level
	switch strings.ToLower(level) {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))
}
