package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/alecthomas/kong"

	"streakAPI/internal/cli"
	"streakAPI/internal/config"
	"streakAPI/internal/store"
	"streakAPI/internal/workers"
	"streakAPI/services"
	"streakAPI/utils"
)

var CLI struct {
	Database   string        `help:"Postgres URL." env:"DATABASE_URL" required:""`
	BadgesFile string        `help:"Badge table TOML file." env:"BADGES_FILE" type:"path"`
	Timezone   string        `help:"IANA timezone used for 'today'." env:"RECONCILE_TIMEZONE" default:"UTC"`
	Timeout    time.Duration `help:"Overall command timeout." default:"2m"`

	Validate    cli.ValidateCmd    `cmd:"" help:"Run the daily validator for one user."`
	Recalculate cli.RecalculateCmd `cmd:"" help:"Rebuild one user's streak from activity history."`
	Badges      cli.BadgesCmd      `cmd:"" help:"Show earned badges and progress."`
	Reconcile   cli.ReconcileCmd   `cmd:"" help:"Validate every running streak once."`
	Schema      cli.SchemaCmd      `cmd:"" help:"Create or verify the database schema."`
}

func main() {
	kctx := kong.Parse(&CLI,
		kong.Name("streakctl"),
		kong.Description("Operator tool for the streak engine"),
		kong.UsageOnError(),
	)

	if err := run(kctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func run(kctx *kong.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log, err := cfg.NewLogger()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), CLI.Timeout)
	defer cancel()

	pool, err := store.Connect(ctx, CLI.Database)
	if err != nil {
		return err
	}
	defer pool.Close()

	table, err := config.LoadBadgeTable(CLI.BadgesFile)
	if err != nil {
		return err
	}
	loc, err := utils.LoadLocation(CLI.Timezone)
	if err != nil {
		return err
	}

	streakStore := store.NewPgStreakStore(pool)
	activityStore := store.NewPgActivityStore(pool)
	service, err := services.NewStreakService(services.StreakServiceConfig{
		Streaks:          streakStore,
		Badges:           store.NewPgBadgeStore(pool),
		Oracle:           activityStore,
		Counter:          activityStore,
		Days:             activityStore,
		Table:            table,
		Logger:           log,
		MaxAttempts:      cfg.MaxAttempts,
		RecalculateBelow: cfg.RecalculateBelow,
	})
	if err != nil {
		return err
	}

	appCtx := &cli.Context{
		Ctx:      ctx,
		Service:  service,
		Worker:   workers.NewReconciliationWorker(streakStore, service, loc, log),
		Location: loc,
		Out:      os.Stdout,
		Now:      time.Now,
		EnsureSchema: func(ctx context.Context) error {
			return store.EnsureSchema(ctx, pool)
		},
	}

	return kctx.Run(appCtx)
}
