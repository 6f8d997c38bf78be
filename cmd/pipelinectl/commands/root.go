// Package commands implements the pipelinectl subcommands.
package commands

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"mlops-pipeline/internal/bootstrap"
	"mlops-pipeline/internal/config"
)

// v carries the environment configuration with command flags bound over it.
var v = viper.New()

// cfg is loaded before any subcommand runs.
var cfg *config.Config

// RootCmd is the pipelinectl entry point.
var RootCmd = &cobra.Command{
	Use:   "pipelinectl",
	Short: "Compile, submit, run and audit the diabetes training pipelines",
	Long: `pipelinectl drives the diabetes classifier pipelines.

Examples:
  pipelinectl compile --py pipeline-dev.py --output pipeline.yaml
  pipelinectl audit --pipeline-spec pipeline.yaml
  pipelinectl run --pipeline-spec pipeline.yaml --parameter-values-json '{"project_id":"p","region":"r","model_display_name":"m","input_raw_data_gcs_uri":"data/"}'
  pipelinectl submit --runtime kubernetes --pipeline-spec pipeline.yaml --display-name diabetes`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.LoadFrom(v)
		if err != nil {
			return err
		}
		cfg = loaded
		bootstrap.InitLogger(cfg.Logger)
		return nil
	},
}

func init() {
	RootCmd.PersistentFlags().String("pipeline-root", "", "Directory stages write their artifacts under")
	RootCmd.PersistentFlags().String("log-level", "", "Log level (debug, info, warn, error)")
	RootCmd.PersistentFlags().String("log-format", "", "Log format (json or text)")
	_ = v.BindPFlag("PIPELINE_ROOT", RootCmd.PersistentFlags().Lookup("pipeline-root"))
	_ = v.BindPFlag("LOGGER_LEVEL", RootCmd.PersistentFlags().Lookup("log-level"))
	_ = v.BindPFlag("LOGGER_FORMAT", RootCmd.PersistentFlags().Lookup("log-format"))

	RootCmd.AddCommand(CompileCmd)
	RootCmd.AddCommand(AuditCmd)
	RootCmd.AddCommand(SubmitCmd)
	RootCmd.AddCommand(RunCmd)
	RootCmd.AddCommand(StageCmd)
}
