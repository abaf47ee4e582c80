package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Kocoro-lab/Shannon/go/hunter/internal/app"
	"github.com/Kocoro-lab/Shannon/go/hunter/internal/config"
	"github.com/Kocoro-lab/Shannon/go/hunter/internal/tasks"
)

var rootCmd = &cobra.Command{
	Use:   "huntctl",
	Short: "Run grounded signal hunts from the command line",
	Long: `huntctl plans and runs signal hunts for a business profile.
A request file holds the profile, the sales triggers and an optional region.
Only approved triggers take part in a hunt.`,
	SilenceUsage: true,
}

func main() {
	addPersistentFlags()
	rootCmd.AddCommand(runCmd(), planCmd())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().String("config", "", "path to hunter.yaml")
	rootCmd.PersistentFlags().StringP("request", "r", "hunt.yaml", "hunt request file (YAML or JSON)")
	rootCmd.PersistentFlags().String("region", "", "override the profile's region")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	_ = viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))
	_ = viper.BindPFlag("request", rootCmd.PersistentFlags().Lookup("request"))
	_ = viper.BindPFlag("region", rootCmd.PersistentFlags().Lookup("region"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
}

func runCmd() *cobra.Command {
	var skipCache bool
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a hunt and print the verified signals",
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := loadRequestFile(viper.GetString("request"))
			if err != nil {
				return err
			}
			if region := viper.GetString("region"); region != "" {
				req.Region = region
			}
			req.SkipCache = req.SkipCache || skipCache

			cfg, err := config.Load(viper.GetString("config"))
			if err != nil {
				return err
			}
			logger, err := app.NewLogger(cfg.Logging)
			if err != nil {
				return err
			}
			defer logger.Sync()

			a, err := app.New(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer a.Close()

			report, err := a.Hunter.Run(cmd.Context(), req)
			if err != nil {
				return err
			}
			if viper.GetBool("json") {
				return printJSON(cmd.OutOrStdout(), report)
			}
			renderReport(cmd.OutOrStdout(), report)
			return nil
		},
	}
	cmd.Flags().BoolVar(&skipCache, "skip-cache", false, "ignore cached results")
	return cmd
}

func planCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "plan",
		Short: "Print the search tasks a hunt would run",
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := loadRequestFile(viper.GetString("request"))
			if err != nil {
				return err
			}
			if region := viper.GetString("region"); region != "" {
				req.Region = region
			}
			cfg, err := config.Load(viper.GetString("config"))
			if err != nil {
				return err
			}
			builder, err := tasks.NewBuilder(cfg.Search.RecencyDays, cfg.Search.ResultsPerTask, cfg.Search.TemplatesDir)
			if err != nil {
				return err
			}
			plan, err := builder.Build(req.Profile, req.Triggers, req.Region)
			if err != nil {
				return err
			}
			if viper.GetBool("json") {
				return printJSON(cmd.OutOrStdout(), plan)
			}
			renderPlan(cmd.OutOrStdout(), plan)
			return nil
		},
	}
}
