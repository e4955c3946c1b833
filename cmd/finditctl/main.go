// Command finditctl runs FindIt maintenance tasks against the configured database.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/and161185/findit/internal/config"
	"github.com/and161185/findit/internal/migrate"
	"github.com/and161185/findit/internal/notify"
	"github.com/and161185/findit/internal/repository/postgres"
	"github.com/and161185/findit/internal/service"
)

// mailer delivers a single email synchronously.
type mailer interface {
	Send(ctx context.Context, e notify.Email) error
	Close(ctx context.Context) error
}

// env holds the collaborators commands are built from.
type env struct {
	loadConfig func(path string) (*config.Config, error)
	migrate    func(ctx context.Context, dsn string, cmd migrate.Command) error
	admin      func(ctx context.Context, cfg *config.Config) (service.AdminService, func(), error)
	mailer     func(cfg *config.Config, log *zap.Logger) mailer
	log        *zap.Logger
	out        io.Writer
}

func defaultEnv(log *zap.Logger) *env {
	return &env{
		loadConfig: config.Load,
		migrate:    migrate.Run,
		admin:      openAdmin,
		mailer:     openMailer,
		log:        log,
		out:        os.Stdout,
	}
}

func openAdmin(ctx context.Context, cfg *config.Config) (service.AdminService, func(), error) {
	db, err := postgres.New(ctx, postgres.PoolConfig{
		DSN:      cfg.Database.DSN(),
		MaxConns: 2,
	})
	if err != nil {
		return nil, nil, err
	}
	return service.NewAdminService(postgres.NewItemRepo(db)), db.Close, nil
}

func openMailer(cfg *config.Config, log *zap.Logger) mailer {
	var s notify.Sender = notify.NewLogSender(log)
	if cfg.Mail.ResendAPIKey != "" {
		s = notify.NewResendSender(cfg.Mail.ResendAPIKey, cfg.Mail.From)
	}
	return notify.NewDispatcher(s, log, 1, 1, cfg.Mail.SendTimeout)
}

func newRootCmd(e *env) *cobra.Command {
	var cfgPath string
	var cfg *config.Config

	root := &cobra.Command{
		Use:           "finditctl",
		Short:         "FindIt maintenance commands",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			c, err := e.loadConfig(cfgPath)
			if err != nil {
				return err
			}
			cfg = c
			return nil
		},
	}
	root.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "path to a yaml config file")
	root.SetOut(e.out)

	conf := func() *config.Config { return cfg }
	root.AddCommand(
		newMigrateCmd(e, conf),
		newNormalizeCmd(e, conf),
		newWipeCmd(e, conf),
		newEmailTestCmd(e, conf),
	)
	return root
}

func newMigrateCmd(e *env, conf func() *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:       "migrate <up|down|status|reset>",
		Short:     "Apply or inspect database migrations",
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{string(migrate.CmdUp), string(migrate.CmdDown), string(migrate.CmdStatus), string(migrate.CmdReset)},
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := e.migrate(cmd.Context(), conf().Database.DSN(), migrate.Command(args[0])); err != nil {
				return fmt.Errorf("migrate %s: %w", args[0], err)
			}
			e.log.Info("migrations applied", zap.String("command", args[0]))
			return nil
		},
	}
}

func newNormalizeCmd(e *env, conf func() *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "normalize-locations",
		Short: `Prefix non-campus item locations with "Other - "`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, closeFn, err := e.admin(cmd.Context(), conf())
			if err != nil {
				return err
			}
			defer closeFn()

			res, err := svc.NormalizeLocations(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "checked %d items, updated %d\n", res.Total, res.Updated)
			return nil
		},
	}
}

func newWipeCmd(e *env, conf func() *config.Config) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "wipe-items",
		Short: "Delete every item together with its claims and messages",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !yes {
				return errors.New("refusing to wipe without --yes")
			}
			svc, closeFn, err := e.admin(cmd.Context(), conf())
			if err != nil {
				return err
			}
			defer closeFn()

			n, err := svc.WipeItems(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %d items\n", n)
			return nil
		},
	}
	cmd.Flags().BoolVar(&yes, "yes", false, "confirm the wipe")
	return cmd
}

func newEmailTestCmd(e *env, conf func() *config.Config) *cobra.Command {
	var to string
	cmd := &cobra.Command{
		Use:   "email-test",
		Short: "Send one email synchronously to check mail settings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			m := e.mailer(conf(), e.log)
			defer func() { _ = m.Close(context.Background()) }()

			err := m.Send(cmd.Context(), notify.Email{Kind: notify.KindWelcome, To: to, Name: "FindIt admin"})
			if err != nil {
				return fmt.Errorf("send to %s: %w", to, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "sent test email to %s\n", to)
			return nil
		},
	}
	cmd.Flags().StringVar(&to, "to", "", "recipient address")
	_ = cmd.MarkFlagRequired("to")
	return cmd
}

func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd(defaultEnv(logger)).ExecuteContext(ctx); err != nil {
		logger.Error("command failed", zap.Error(err))
		stop()
		_ = logger.Sync()
		os.Exit(1)
	}
}
