package main

import (
	"errors"
	"os"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/spf13/cobra"

	"github.com/lehine87/educanvas/cmd/educanvasctl/cli"
	"github.com/lehine87/educanvas/internal/auth"
	"github.com/lehine87/educanvas/internal/members"
	"github.com/lehine87/educanvas/internal/platform/db"
)

const passwordEnv = "EDUCANVAS_BOOTSTRAP_PASSWORD"

var bootstrapOpts struct {
	email  string
	name   string
	tenant string
}

var bootstrapCmd = &cobra.Command{
	Use:   "bootstrap",
	Short: "Create a tenant owner account",
	Long: `Create a user and grant it an active owner membership.

The password is read from ` + passwordEnv + `. Without --tenant a new
tenant identifier is allocated and printed.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		password := os.Getenv(passwordEnv)
		if password == "" {
			return errors.New(passwordEnv + " must be set")
		}
		opts := cli.BootstrapOptions{Email: bootstrapOpts.email, Name: bootstrapOpts.name, Password: password}
		if bootstrapOpts.tenant != "" {
			id, err := uuid.Parse(bootstrapOpts.tenant)
			if err != nil {
				return errors.New("--tenant must be a UUID")
			}
			opts.TenantID = id
		}

		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		ctx := cmd.Context()
		pool, err := db.New(ctx, cfg.PGDSN, db.Options{MaxConns: 2})
		if err != nil {
			return err
		}
		defer pool.Close()

		var res cli.BootstrapResult
		err = db.WithTx(ctx, pool, func(tx pgx.Tx) error {
			accounts := auth.NewService(auth.NewRepository(tx), nil)
			owners := members.NewService(members.NewRepository(tx), nil)
			var err error
			res, err = cli.Bootstrap(ctx, accounts, owners, opts)
			return err
		})
		if err != nil {
			return err
		}
		cmd.Printf("user %s (%s) is owner of tenant %s\n", res.User.ID, res.User.Email, res.Membership.TenantID)
		return nil
	},
}

func init() {
	bootstrapCmd.Flags().StringVar(&bootstrapOpts.email, "email", "", "owner email")
	bootstrapCmd.Flags().StringVar(&bootstrapOpts.name, "name", "", "owner display name")
	bootstrapCmd.Flags().StringVar(&bootstrapOpts.tenant, "tenant", "", "existing tenant UUID")
	_ = bootstrapCmd.MarkFlagRequired("email")
	rootCmd.AddCommand(bootstrapCmd)
}
