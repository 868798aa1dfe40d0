// Package cmd holds the taskplan command tree.
package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/harrisonrobin/taskplan/pkg/config"
	"github.com/harrisonrobin/taskplan/pkg/google"
	"github.com/harrisonrobin/taskplan/pkg/logging"
	"github.com/harrisonrobin/taskplan/pkg/store"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var (
	cfgFile  string
	logLevel string
)

var rootCmd = &cobra.Command{
	Use:   "taskplan",
	Short: "Order your tasks and book them into free calendar time.",
	Long: `taskplan keeps a list of personal tasks, orders them by due date and
priority, and asks a language model to place them into the free time on your
Google Calendar.`,
	SilenceUsage: true,
}

// Execute runs the root command. It is called by main.main().
func Execute() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default is ~/.config/taskplan/config.json)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override log.level (trace|debug|info|warn|error)")
}

// app is the set of dependencies a command needs, built on demand.
type app struct {
	cfg      *config.Config
	log      zerolog.Logger
	loc      *time.Location
	docs     *store.DocStore
	tasks    *store.TaskRepository
	profiles *store.ProfileRepository
}

func loadApp() (*app, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}
	level := cfg.Log.Level
	if logLevel != "" {
		level = logLevel
	}
	log := logging.New(logging.Options{Level: level, Format: cfg.Log.Format})

	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	docs, err := store.Open(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open task store %s: %w", cfg.DBPath, err)
	}
	return &app{
		cfg:      cfg,
		log:      log,
		loc:      loc,
		docs:     docs,
		tasks:    store.NewTaskRepository(docs, log),
		profiles: store.NewProfileRepository(docs),
	}, nil
}

func (a *app) Close() {
	if err := a.docs.Close(); err != nil {
		a.log.Warn().Err(err).Msg("closing task store")
	}
}

// calendar returns an authenticated client and the id of the configured
// target calendar.
func (a *app) calendar(ctx context.Context) (*google.CalendarClient, string, error) {
	client, err := google.NewClient(ctx, a.loc, a.log)
	if err != nil {
		return nil, "", fmt.Errorf("google calendar: %w", err)
	}
	calendarID, err := client.ResolveCalendarID(ctx, a.cfg.Calendar)
	if err != nil {
		return nil, "", err
	}
	return client, calendarID, nil
}
