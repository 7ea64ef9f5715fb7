package main

import (
	"github.com/romanzh1/mindful-garden/internal/config"
	"github.com/romanzh1/mindful-garden/internal/repository"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage database migrations",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply all pending migrations",
			RunE: func(cmd *cobra.Command, args []string) error {
				return withRepo(func(repo *repository.Postgres, dir string) error {
					return repo.Up(dir)
				})
			},
		},
		&cobra.Command{
			Use:   "reset",
			Short: "Roll back every migration",
			RunE: func(cmd *cobra.Command, args []string) error {
				return withRepo(func(repo *repository.Postgres, dir string) error {
					return repo.Reset(dir)
				})
			},
		},
	)

	return cmd
}

func withRepo(fn func(repo *repository.Postgres, dir string) error) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	repo, err := repository.NewDB(cfg.PostgresDSN(), cfg.MaxIdleConns, cfg.MaxOpenConns)
	if err != nil {
		return err
	}
	defer repo.Close()

	if err = fn(repo, cfg.MigrationsDir); err != nil {
		return err
	}

	zap.S().Infow("migrations done", zap.String("dir", cfg.MigrationsDir))
	return nil
}
