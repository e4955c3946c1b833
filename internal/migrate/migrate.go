// Package migrate applies the embedded SQL migrations.
package migrate

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/and161185/findit/migrations"
)

// Command is a goose command understood by Run.
type Command string

const (
	CmdUp     Command = "up"
	CmdDown   Command = "down"
	CmdStatus Command = "status"
	CmdReset  Command = "reset"
)

// Up runs all pending migrations from the embedded filesystem.
func Up(ctx context.Context, dsn string) error {
	return Run(ctx, dsn, CmdUp)
}

// Run executes cmd against the database at dsn.
func Run(ctx context.Context, dsn string, cmd Command) error {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return err
	}
	defer db.Close()

	goose.SetBaseFS(migrations.FS)
	if err := goose.SetDialect("postgres"); err != nil {
		return err
	}

	switch cmd {
	case CmdUp:
		return goose.UpContext(ctx, db, ".")
	case CmdDown:
		return goose.DownContext(ctx, db, ".")
	case CmdStatus:
		return goose.StatusContext(ctx, db, ".")
	case CmdReset:
		if err := goose.ResetContext(ctx, db, "."); err != nil {
			return err
		}
		return goose.UpContext(ctx, db, ".")
	default:
		return fmt.Errorf("unknown migrate command %q", cmd)
	}
}
