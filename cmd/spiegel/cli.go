package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/mindmorass/spiegel/internal/app"
	"github.com/mindmorass/spiegel/internal/backend"
	"github.com/mindmorass/spiegel/internal/enrich"
	"github.com/mindmorass/spiegel/internal/events"
	"github.com/mindmorass/spiegel/internal/hotkey"
	"github.com/mindmorass/spiegel/internal/settings"
	"github.com/mindmorass/spiegel/internal/storage"
)

// previewRunes bounds the text shown by list
const previewRunes = 80

// newCLIApp creates the CLI application with all commands.
func newCLIApp(out io.Writer) *cli.App {
	runCommand := runCmd()
	cliApp := &cli.App{
		Name:    "spiegel",
		Usage:   "Capture the current selection with a global hotkey and file it with a category",
		Version: Version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Config file (default ~/.spiegel/config.yaml)",
				EnvVars: []string{"SPIEGEL_CONFIG"},
			},
		},
		Action: runCommand.Action,
		Commands: []*cli.Command{
			runCommand,
			listCmd(out),
			showCmd(out),
			deleteCmd(out),
			exportCmd(out),
			settingsCmd(out),
			hotkeyCmd(out),
			apikeyCmd(out),
			configCmd(out),
		},
	}
	// Disable default exit error handler to allow proper error return in tests
	cliApp.ExitErrHandler = func(_ *cli.Context, _ error) {}
	return cliApp
}

// runCmd starts the agent.
func runCmd() *cli.Command {
	return &cli.Command{
		Name:  "run",
		Usage: "Run the capture agent (default)",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "headless", Usage: "Run without the tray menu"},
		},
		Action: func(c *cli.Context) error {
			cfg, err := loadConfig(c)
			if err != nil {
				return outputError(err)
			}

			logger, closer, err := newLogger(cfg.LogLevel, cfg.DataDir)
			if err != nil {
				return outputError(err)
			}
			defer closer.Close()
			slog.SetDefault(logger)

			deps := app.SystemDeps()
			deps.Headless = c.Bool("headless")
			a, err := app.Assemble(cfg, deps, Version, logger)
			if err != nil {
				return outputError(fmt.Errorf("failed to create application: %w", err))
			}

			ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
			defer stop()

			logger.Info("spiegel starting", "version", Version, "data_dir", cfg.DataDir)
			return a.Run(ctx)
		},
	}
}

// recordView is the CLI rendering of a stored record.
type recordView struct {
	ID        int64     `json:"id"`
	Kind      string    `json:"kind"`
	Category  string    `json:"category"`
	Tags      []string  `json:"tags"`
	Summary   *string   `json:"summary"`
	CreatedAt time.Time `json:"created_at"`
	Preview   string    `json:"preview,omitempty"`
	Text      string    `json:"text,omitempty"`
	Width     uint      `json:"width,omitempty"`
	Height    uint      `json:"height,omitempty"`
	Image     string    `json:"image,omitempty"`
}

func newRecordView(r storage.Record, full bool) recordView {
	v := recordView{
		ID:        r.ID,
		Kind:      string(r.Capture.Kind()),
		Category:  r.Category,
		Tags:      r.Tags,
		Summary:   r.Summary,
		CreatedAt: r.CreatedAt,
	}
	if text, ok := r.Capture.Text(); ok {
		if full {
			v.Text = text
		} else {
			v.Preview = enrich.Truncate(strings.Join(strings.Fields(text), " "), previewRunes)
		}
	}
	if img, ok := r.Capture.Image(); ok {
		v.Width, v.Height = img.Width, img.Height
		if full {
			v.Image = img.Data
		} else {
			v.Preview = fmt.Sprintf("[image %dx%d]", img.Width, img.Height)
		}
	}
	return v
}

// listCmd creates the list command.
func listCmd(out io.Writer) *cli.Command {
	return &cli.Command{
		Name:  "list",
		Usage: "List captures, newest first",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "category", Usage: "Only show this category"},
			&cli.IntFlag{Name: "limit", Aliases: []string{"n"}, Value: 20, Usage: "Maximum number of captures (0 = all)"},
		},
		Action: func(c *cli.Context) error {
			return withStore(c, func(ctx context.Context, store *storage.Store) error {
				records, err := store.List(ctx)
				if err != nil {
					return err
				}

				category := c.String("category")
				limit := c.Int("limit")
				views := make([]recordView, 0, len(records))
				for _, r := range records {
					if category != "" && r.Category != category {
						continue
					}
					views = append(views, newRecordView(r, false))
					if limit > 0 && len(views) == limit {
						break
					}
				}
				return outputJSON(out, views)
			})
		},
	}
}

// showCmd creates the show command.
func showCmd(out io.Writer) *cli.Command {
	return &cli.Command{
		Name:      "show",
		Usage:     "Show one capture with its full content",
		ArgsUsage: "<id>",
		Action: func(c *cli.Context) error {
			id, err := parseID(c)
			if err != nil {
				return outputError(err)
			}
			return withStore(c, func(ctx context.Context, store *storage.Store) error {
				r, err := store.Get(ctx, id)
				if err != nil {
					return err
				}
				return outputJSON(out, newRecordView(r, true))
			})
		},
	}
}

// deleteCmd creates the delete command.
func deleteCmd(out io.Writer) *cli.Command {
	return &cli.Command{
		Name:      "delete",
		Usage:     "Delete a capture",
		ArgsUsage: "<id>",
		Action: func(c *cli.Context) error {
			id, err := parseID(c)
			if err != nil {
				return outputError(err)
			}
			return withStore(c, func(ctx context.Context, store *storage.Store) error {
				if err := store.Delete(ctx, id); err != nil {
					return err
				}
				return outputJSON(out, map[string]any{"id": id, "deleted": true})
			})
		},
	}
}

// exportCmd creates the export command.
func exportCmd(out io.Writer) *cli.Command {
	return &cli.Command{
		Name:  "export",
		Usage: "Write all captures as JSON lines to the export backend",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "dir", Aliases: []string{"d"}, Usage: "Local directory (overrides the configured backend)"},
		},
		Action: func(c *cli.Context) error {
			cfg, err := loadConfig(c)
			if err != nil {
				return outputError(err)
			}
			return withStore(c, func(ctx context.Context, store *storage.Store) error {
				bc := exportBackendConfig(cfg, c.String("dir"))
				name, err := app.ExportRecords(ctx, store, bc)
				if err != nil {
					return err
				}
				return outputJSON(out, map[string]any{
					"name":     name,
					"backend":  bc.Type,
					"location": bc.Location,
				})
			})
		},
	}
}

// settingsCmd creates the settings command group.
func settingsCmd(out io.Writer) *cli.Command {
	return &cli.Command{
		Name:  "settings",
		Usage: "Read and write runtime settings",
		Subcommands: []*cli.Command{
			{
				Name:  "list",
				Usage: "Print all settings",
				Action: func(c *cli.Context) error {
					return withSettings(c, func(_ context.Context, cache *settings.Cache) error {
						return outputJSON(out, redact(cache.List()))
					})
				},
			},
			{
				Name:      "get",
				Usage:     "Print one setting",
				ArgsUsage: "<key>",
				Action: func(c *cli.Context) error {
					if c.NArg() != 1 {
						return outputError(errors.New("expected <key>"))
					}
					key := c.Args().First()
					return withSettings(c, func(_ context.Context, cache *settings.Cache) error {
						v, ok := cache.Get(key)
						if !ok {
							return fmt.Errorf("setting %q is not set", key)
						}
						return outputJSON(out, redact(map[string]string{key: v}))
					})
				},
			},
			{
				Name:      "set",
				Usage:     "Write one setting",
				ArgsUsage: "<key> <value>",
				Action: func(c *cli.Context) error {
					if c.NArg() != 2 {
						return outputError(errors.New("expected <key> <value>"))
					}
					return setSetting(c, out, c.Args().Get(0), c.Args().Get(1))
				},
			},
		},
	}
}

// hotkeyCmd creates the hotkey command group.
func hotkeyCmd(out io.Writer) *cli.Command {
	return &cli.Command{
		Name:  "hotkey",
		Usage: "Inspect or change the global capture hotkey",
		Subcommands: []*cli.Command{
			{
				Name:  "get",
				Usage: "Print the configured accelerator",
				Action: func(c *cli.Context) error {
					return withSettings(c, func(_ context.Context, cache *settings.Cache) error {
						return outputJSON(out, map[string]string{"hotkey": cache.GlobalHotkey()})
					})
				},
			},
			{
				Name:      "set",
				Usage:     "Change the accelerator (a running agent picks it up within settings_reload)",
				ArgsUsage: "<accelerator>",
				Action: func(c *cli.Context) error {
					if c.NArg() != 1 {
						return outputError(errors.New("expected <accelerator>"))
					}
					return setSetting(c, out, settings.KeyGlobalHotkey, c.Args().First())
				},
			},
			{
				Name:      "check",
				Usage:     "Validate an accelerator and print its canonical form",
				ArgsUsage: "<accelerator>",
				Action: func(c *cli.Context) error {
					if c.NArg() != 1 {
						return outputError(errors.New("expected <accelerator>"))
					}
					b, err := hotkey.Parse(c.Args().First())
					if err != nil {
						return outputError(err)
					}
					return outputJSON(out, map[string]string{"hotkey": b.String()})
				},
			},
		},
	}
}

// apikeyCmd stores the enrichment API key in the system keychain.
func apikeyCmd(out io.Writer) *cli.Command {
	return &cli.Command{
		Name:  "apikey",
		Usage: "Store the enrichment API key in the system keychain (reads stdin)",
		Action: func(c *cli.Context) error {
			if !stdinHasData() {
				return outputError(errors.New("api key must be piped via stdin"))
			}
			data, err := io.ReadAll(os.Stdin)
			if err != nil {
				return outputError(err)
			}
			key := strings.TrimSpace(string(data))
			if key == "" {
				return outputError(errors.New("api key is empty"))
			}
			if err := enrich.StoreAPIKey(key); err != nil {
				return outputError(err)
			}
			return outputJSON(out, map[string]any{"stored": true})
		},
	}
}

// configCmd creates the config command group.
func configCmd(out io.Writer) *cli.Command {
	return &cli.Command{
		Name:  "config",
		Usage: "Manage the config file",
		Subcommands: []*cli.Command{
			{
				Name:  "init",
				Usage: "Write a config file with the defaults",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "force", Usage: "Overwrite an existing file"},
				},
				Action: func(c *cli.Context) error {
					path := configPath(c)
					if _, err := os.Stat(path); err == nil && !c.Bool("force") {
						return outputError(fmt.Errorf("%s already exists (use --force)", path))
					}
					if err := app.SaveConfig(app.DefaultConfig(), path); err != nil {
						return outputError(err)
					}
					return outputJSON(out, map[string]string{"path": path})
				},
			},
			{
				Name:  "show",
				Usage: "Print the effective configuration",
				Action: func(c *cli.Context) error {
					cfg, err := loadConfig(c)
					if err != nil {
						return outputError(err)
					}
					return outputJSON(out, cfg)
				},
			},
		},
	}
}

func setSetting(c *cli.Context, out io.Writer, key, value string) error {
	if err := app.ValidateSetting(key, value); err != nil {
		return outputError(err)
	}
	return withSettings(c, func(ctx context.Context, cache *settings.Cache) error {
		if err := cache.Set(ctx, key, value); err != nil {
			return err
		}
		return outputJSON(out, redact(map[string]string{key: value}))
	})
}

func loadConfig(c *cli.Context) (*app.Config, error) {
	cfg, err := app.LoadConfig(c.String("config"))
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

func configPath(c *cli.Context) string {
	if p := c.String("config"); p != "" {
		return p
	}
	return app.DefaultConfigPath()
}

// withStore opens the database for the duration of fn.
func withStore(c *cli.Context, fn func(ctx context.Context, store *storage.Store) error) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return outputError(err)
	}
	store, err := storage.Open(cfg.DataDir, events.Discard)
	if err != nil {
		return outputError(fmt.Errorf("failed to open database: %w", err))
	}
	defer store.Close()

	if err := fn(c.Context, store); err != nil {
		return outputError(err)
	}
	return nil
}

// withSettings loads the settings cache, seeding defaults like the agent does.
func withSettings(c *cli.Context, fn func(ctx context.Context, cache *settings.Cache) error) error {
	return withStore(c, func(ctx context.Context, store *storage.Store) error {
		logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
		cache := settings.New(store, logger)
		cache.Initialize(ctx)
		return fn(ctx, cache)
	})
}

func exportBackendConfig(cfg *app.Config, dir string) *backend.Config {
	if dir != "" {
		return &backend.Config{Type: backend.BackendLocal, Location: dir}
	}
	return &backend.Config{
		Type:     backend.BackendType(cfg.Export.Backend),
		Location: cfg.Export.Location,
		S3Region: cfg.Export.S3Region,
	}
}

// redact hides secrets in printed settings.
func redact(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		if k == settings.KeyLLMAPIKey && v != "" {
			v = "********"
		}
		out[k] = v
	}
	return out
}

func parseID(c *cli.Context) (int64, error) {
	if c.NArg() != 1 {
		return 0, errors.New("expected <id>")
	}
	id, err := strconv.ParseInt(c.Args().First(), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q", c.Args().First())
	}
	return id, nil
}

// outputJSON writes JSON output.
func outputJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// outputError formats error for CLI.
func outputError(err error) error {
	if errors.Is(err, storage.ErrNotFound) {
		return cli.Exit("not found: "+err.Error(), 1)
	}
	return cli.Exit(err.Error(), 1)
}

// stdinHasData returns true if stdin has piped data (not a terminal).
func stdinHasData() bool {
	stat, err := os.Stdin.Stat()
	if err != nil {
		return false
	}
	return (stat.Mode() & os.ModeCharDevice) == 0
}
