package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"streakAPI/internal/store"
	"streakAPI/internal/workers"
	"streakAPI/services"
	"streakAPI/utils"
)

type Context struct {
	Ctx      context.Context
	Service  *services.StreakService
	Worker   *workers.ReconciliationWorker
	Location *time.Location
	Out      io.Writer
	Now      func() time.Time

	// EnsureSchema applies the database schema; nil when the CLI runs
	// without a database.
	EnsureSchema func(ctx context.Context) error
}

func (c *Context) day(override string) (string, error) {
	if override != "" {
		if !utils.IsValidDay(override) {
			return "", fmt.Errorf("invalid --today %q, want YYYY-MM-DD", override)
		}
		return override, nil
	}
	return utils.DayOf(c.Now(), c.Location), nil
}

func (c *Context) print(v any) error {
	enc := json.NewEncoder(c.Out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

type ValidateCmd struct {
	UID   string `arg:"" help:"User id (Clerk subject)."`
	Today string `help:"Day to validate against (YYYY-MM-DD). Defaults to today."`
}

func (cmd *ValidateCmd) Run(ctx *Context) error {
	today, err := ctx.day(cmd.Today)
	if err != nil {
		return err
	}
	res, err := ctx.Service.Validate(ctx.Ctx, cmd.UID, today)
	if err != nil {
		return fmt.Errorf("validate %s: %w", cmd.UID, err)
	}
	return ctx.print(map[string]any{
		"outcome":        res.Outcome,
		"activity_today": res.ActivityToday,
		"streak":         res.Streak,
	})
}

type RecalculateCmd struct {
	UID   string `arg:"" help:"User id (Clerk subject)."`
	Today string `help:"Day the walk starts from (YYYY-MM-DD). Defaults to today."`
}

func (cmd *RecalculateCmd) Run(ctx *Context) error {
	today, err := ctx.day(cmd.Today)
	if err != nil {
		return err
	}
	update, err := ctx.Service.Recalculate(ctx.Ctx, cmd.UID, today)
	if err != nil {
		return fmt.Errorf("recalculate %s: %w", cmd.UID, err)
	}
	return ctx.print(update)
}

type BadgesCmd struct {
	UID string `arg:"" help:"User id (Clerk subject)."`
}

func (cmd *BadgesCmd) Run(ctx *Context) error {
	achievements, err := ctx.Service.Achievements(ctx.Ctx, cmd.UID)
	if err != nil {
		return fmt.Errorf("badges %s: %w", cmd.UID, err)
	}
	return ctx.print(achievements)
}

type ReconcileCmd struct{}

func (cmd *ReconcileCmd) Run(ctx *Context) error {
	summary, err := ctx.Worker.RunOnce(ctx.Ctx)
	if err != nil {
		return fmt.Errorf("reconcile: %w", err)
	}
	return ctx.print(summary)
}

type SchemaCmd struct{}

func (cmd *SchemaCmd) Run(ctx *Context) error {
	if ctx.EnsureSchema == nil {
		return fmt.Errorf("no database configured")
	}
	if err := ctx.EnsureSchema(ctx.Ctx); err != nil {
		return err
	}
	_, err := fmt.Fprintf(ctx.Out, "schema at version %d\n", store.SchemaVersion)
	return err
}
