package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"

	"github.com/loyalty-pay/balance_ledger/internal/audit"
	"github.com/loyalty-pay/balance_ledger/internal/config"
	"github.com/loyalty-pay/balance_ledger/internal/infra"
	"github.com/loyalty-pay/balance_ledger/internal/logging"
	"github.com/loyalty-pay/balance_ledger/internal/middleware"
	"github.com/loyalty-pay/balance_ledger/internal/wiring"
)

// errDiscrepancies makes `ledgerctl audit` exit non-zero when the ledger does not balance.
var errDiscrepancies = errors.New("audit found discrepancies")

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			db, err := infra.NewPostgresPool(ctx, cfg.DatabaseURL)
			if err != nil {
				return err
			}
			defer db.Close()

			if err := infra.Migrate(ctx, db); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "schema applied")
			return nil
		},
	}
}

func auditCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "audit",
		Short: "Check every balance against deposits minus completed purchases",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			db, err := infra.NewPostgresPool(ctx, cfg.DatabaseURL)
			if err != nil {
				return err
			}
			defer db.Close()

			var cache *redis.Client
			if cfg.LedgerBackend == config.BackendRedis {
				cache, err = infra.NewRedisClient(ctx, cfg.RedisURL, cfg.StoreTimeout)
				if err != nil {
					return err
				}
				defer cache.Close()
			}

			report, err := runAudit(ctx, cfg, db, cache)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if err := enc.Encode(report); err != nil {
				return err
			}
			if !report.OK() {
				return fmt.Errorf("%w: %d account(s)", errDiscrepancies, len(report.Discrepancies))
			}
			return nil
		},
	}
}

func runAudit(ctx context.Context, cfg config.Config, db *pgxpool.Pool, cache *redis.Client) (audit.Report, error) {
	stores, err := wiring.NewStores(cfg, db, cache)
	if err != nil {
		return audit.Report{}, err
	}
	auditor := audit.NewAuditor(stores.Ledger, stores.Deposits, stores.Purchases, logging.Discard())
	return auditor.Check(ctx)
}

func hashKeyCmd() *cobra.Command {
	var cost int
	cmd := &cobra.Command{
		Use:   "hash-key [key]",
		Short: "Print a bcrypt hash for OPERATOR_KEY_HASH",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			hash, err := bcrypt.GenerateFromPassword([]byte(args[0]), cost)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(hash))
			return nil
		},
	}
	cmd.Flags().IntVar(&cost, "cost", bcrypt.DefaultCost, "bcrypt cost")
	return cmd
}

func tokenCmd() *cobra.Command {
	var ttl time.Duration
	cmd := &cobra.Command{
		Use:   "token [user-id]",
		Short: "Issue a client token signed with JWT_SECRET (development only)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if !cfg.IsDevelopment() {
				return errors.New("token issuing is only available with APP_ENV=development")
			}
			if cfg.JWTSecret == "" {
				return errors.New("JWT_SECRET must be set")
			}
			token, err := middleware.IssueToken([]byte(cfg.JWTSecret), args[0], ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().DurationVar(&ttl, "ttl", time.Hour, "token lifetime")
	return cmd
}
