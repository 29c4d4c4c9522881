package main

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/upb/authd/internal/credentials"
	"github.com/upb/authd/internal/seed"
	"github.com/upb/authd/repositories/sqlstore"
	"go.uber.org/zap"
)

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:       "migrate [up|down|status]",
		Short:     "Apply, roll back or inspect schema migrations",
		Args:      cobra.MatchAll(cobra.MaximumNArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{string(sqlstore.MigrateUp), string(sqlstore.MigrateDown), string(sqlstore.MigrateStatus)},
		RunE: func(cmd *cobra.Command, args []string) error {
			command := sqlstore.MigrateUp
			if len(args) == 1 {
				command = sqlstore.MigrationCommand(args[0])
			}

			cfg, logger, err := bootstrap(cmd.Context())
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			db, err := sqlstore.NewDB(cfg.Database, logger)
			if err != nil {
				return err
			}
			defer db.Close()

			if err := db.Migrate(cmd.Context(), command); err != nil {
				logger.Error("migration failed", zap.String("command", string(command)), zap.Error(err))
				return err
			}
			return nil
		},
	}
}

func newSeedCmd() *cobra.Command {
	var (
		file    string
		migrate bool
	)

	cmd := &cobra.Command{
		Use:   "seed -f FILE",
		Short: "Create groups, permissions, users and bindings from a YAML file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			f, err := os.Open(file)
			if err != nil {
				return fmt.Errorf("open seed file: %w", err)
			}
			defer f.Close()

			doc, err := seed.Load(f)
			if err != nil {
				return err
			}

			cfg, logger, err := bootstrap(cmd.Context())
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()
			cfg.Database.AutoMigrate = cfg.Database.AutoMigrate || migrate

			factory, err := sqlstore.NewRepositoryFactory(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer factory.Close()

			hasher := credentials.NewHasher(credentials.Params{
				Memory:      cfg.Security.Argon2Memory,
				Iterations:  cfg.Security.Argon2Iterations,
				Parallelism: cfg.Security.Argon2Parallelism,
			})
			seeder := seed.NewSeeder(factory.NewRepositories(), factory.GetTransactionManager(), hasher, logger)

			summary, err := seeder.Apply(cmd.Context(), doc)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "created %d permissions, %d groups, %d users; %d bindings ensured\n",
				summary.Permissions, summary.Groups, summary.Users, summary.Bindings)
			return nil
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "seed file (YAML)")
	cmd.Flags().BoolVar(&migrate, "migrate", false, "apply pending migrations first")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func newHashPasswordCmd() *cobra.Command {
	params := credentials.DefaultParams
	var password string

	cmd := &cobra.Command{
		Use:   "hash-password",
		Short: "Print the stored hash for a password read from --password or stdin",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if password == "" {
				line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				if err != nil && line == "" {
					return errors.New("no password given")
				}
				password = strings.TrimRight(line, "\r\n")
			}

			hash, err := credentials.NewHasher(params).Hash(password)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), hash)
			return nil
		},
	}

	cmd.Flags().StringVar(&password, "password", "", "password to hash (read from stdin when empty)")
	cmd.Flags().Uint32Var(&params.Memory, "memory", params.Memory, "argon2 memory in KiB")
	cmd.Flags().Uint32Var(&params.Iterations, "iterations", params.Iterations, "argon2 iterations")
	cmd.Flags().Uint8Var(&params.Parallelism, "parallelism", params.Parallelism, "argon2 parallelism")
	return cmd
}
