package main

import (
	"github.com/hibiken/asynq"
	"github.com/spf13/cobra"

	"github.com/lehine87/educanvas/cmd/educanvasctl/cli"
	"github.com/lehine87/educanvas/jobs"
)

var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "Inspect and trigger background jobs",
}

var jobsTriggerCmd = &cobra.Command{
	Use:       "trigger <task>",
	Short:     "Enqueue a periodic job now",
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{jobs.TaskAuditPrune, jobs.TaskMembersExpirePending},
	RunE: func(cmd *cobra.Command, args []string) error {
		return withJobsCLI(func(c *cli.JobsCLI) error {
			info, err := c.Trigger(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			cmd.Printf("enqueued %s as %s on %s\n", info.Type, info.ID, info.Queue)
			return nil
		})
	},
}

var jobsStatsJSON bool

var jobsStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show queue depth",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withJobsCLI(func(c *cli.JobsCLI) error {
			stats, err := c.InspectQueues()
			if err != nil {
				return err
			}
			return cli.WriteQueueStats(cmd.OutOrStdout(), stats, jobsStatsJSON)
		})
	},
}

func init() {
	jobsStatsCmd.Flags().BoolVar(&jobsStatsJSON, "json", false, "print JSON")
	jobsCmd.AddCommand(jobsTriggerCmd, jobsStatsCmd)
	rootCmd.AddCommand(jobsCmd)
}

func withJobsCLI(fn func(*cli.JobsCLI) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	opts := asynq.RedisClientOpt{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB}
	client := asynq.NewClient(opts)
	defer func() { _ = client.Close() }()
	inspector := asynq.NewInspector(opts)
	defer func() { _ = inspector.Close() }()
	return fn(cli.NewJobsCLI(client, inspector, cli.Retention{
		Audit:          cfg.AuditRetention,
		PendingMembers: cfg.PendingMembershipTTL,
	}))
}
