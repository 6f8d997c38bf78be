package commands

import (
	"fmt"
	"io"

	"github.com/cockroachdb/errors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"mlops-pipeline/internal/bootstrap"
	"mlops-pipeline/internal/core/domain"
	"mlops-pipeline/internal/core/services"
	"mlops-pipeline/internal/pipelinespec"
)

// RunCmd executes a pipeline in-process and waits for its outcome.
var RunCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a pipeline in-process and wait for the outcome",
	RunE:  runRun,
}

var (
	runSpecFlag        string
	runPipelineFlag    string
	runDisplayNameFlag string
	runParamsFlag      string
	runLabelsFlag      string
	runRegistryFlag    bool
)

func init() {
	f := RunCmd.Flags()
	f.StringVar(&runSpecFlag, "pipeline-spec", "", "Compiled pipeline spec to run")
	f.StringVar(&runPipelineFlag, "pipeline", "", "Built-in pipeline to run instead of a compiled spec (dev or prod)")
	f.StringVar(&runDisplayNameFlag, "display-name", "", "Run display name (defaults to the pipeline name)")
	f.StringVar(&runParamsFlag, "parameter-values-json", "", "Pipeline parameter values as a JSON object")
	f.StringVar(&runLabelsFlag, "labels-json", "", "Run labels as a JSON object")
	f.BoolVar(&runRegistryFlag, "registry", true, "Connect to the model registry database for the registration stage")
	f.String("run-store", "", "Path of the sqlite run store")
	_ = v.BindPFlag("RUNSTORE_PATH", f.Lookup("run-store"))
}

func runRun(cmd *cobra.Command, args []string) error {
	spec, err := chooseSpec(runSpecFlag, runPipelineFlag)
	if err != nil {
		return err
	}
	params, err := pipelinespec.ParameterValuesFromJSON([]byte(runParamsFlag))
	if err != nil {
		return err
	}
	labels, err := pipelinespec.LabelsFromJSON([]byte(runLabelsFlag))
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	var pool *pgxpool.Pool
	if runRegistryFlag {
		if pool, err = bootstrap.OpenRegistry(ctx, cfg.Database); err != nil {
			return errors.WithHint(err, "pass --registry=false to run without registering the model")
		}
		defer pool.Close()
	}
	db, err := bootstrap.OpenRunStore(cfg.RunStore)
	if err != nil {
		return err
	}
	defer db.Close()

	runs := bootstrap.PipelineRuns(cfg, db, bootstrap.StageServices(cfg, pool), nil)
	run, runErr := runs.Run(ctx, services.CreateRunRequest{
		Spec:        spec,
		DisplayName: runDisplayNameFlag,
		Parameters:  params,
		Labels:      labels,
	})
	if run != nil {
		printRun(cmd.OutOrStdout(), run)
	}
	return runErr
}

// chooseSpec loads a compiled spec or selects a built-in one. Exactly one
// source must be given.
func chooseSpec(path, name string) (*pipelinespec.PipelineSpec, error) {
	switch {
	case path != "" && name != "":
		return nil, errors.Wrap(domain.ErrInvalidSpec, "set either --pipeline-spec or --pipeline, not both")
	case path != "":
		return pipelinespec.LoadFile(path)
	case name != "":
		return pipelinespec.Select(name)
	default:
		return nil, errors.WithHint(
			errors.Wrap(domain.ErrInvalidSpec, "no pipeline given"),
			"pass --pipeline-spec pipeline.yaml or --pipeline dev",
		)
	}
}

func printRun(w io.Writer, run *domain.PipelineRun) {
	fmt.Fprintf(w, "Run %s (%s)\n", run.JobID, run.ID)
	fmt.Fprintf(w, "  status:  %s\n", run.Status)
	if run.Outcome != "" {
		fmt.Fprintf(w, "  outcome: %s\n", run.Outcome)
	}
	for _, st := range run.Stages {
		fmt.Fprintf(w, "  stage %-10s %s\n", st.Stage, st.Status)
	}
	for _, m := range run.Metrics {
		fmt.Fprintf(w, "  metric %s.%s = %g\n", m.Stage, m.Name, m.Value)
	}
	if run.FailedStage != "" {
		fmt.Fprintf(w, "  failed stage: %s\n", run.FailedStage)
	}
}
