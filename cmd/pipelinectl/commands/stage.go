package commands

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/jackc/pgx/v5/pgxpool"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"mlops-pipeline/internal/bootstrap"
	"mlops-pipeline/internal/core/domain"
	"mlops-pipeline/internal/core/services"
	"mlops-pipeline/internal/pipeline/executor"
	"mlops-pipeline/internal/pipelinespec"
)

// outcomeFile names the file the gate's decision is written to.
const outcomeFile = "outcome"

// StageCmd runs a single pipeline component. It is the container command of
// every stage when a pipeline runs on kubernetes.
var StageCmd = &cobra.Command{
	Use:   "stage <split|train|evaluate|gate|approve|register|reject>",
	Short: "Run one pipeline stage",
	Args:  cobra.ExactArgs(1),
	RunE:  runStage,
}

var (
	stageRunIDFlag      string
	stageParamFlags     []string
	stageArtifactFlags  []string
	stageOutputFlags    []string
	stageOutputsDirFlag string
)

var stageAliases = map[string]string{
	"split":    pipelinespec.ComponentDataSplit,
	"train":    pipelinespec.ComponentModelFit,
	"evaluate": pipelinespec.ComponentModelEvaluate,
	"gate":     pipelinespec.ComponentApprovalGate,
	"approve":  pipelinespec.ComponentModelApproved,
	"register": pipelinespec.ComponentModelRegister,
	"reject":   pipelinespec.ComponentModelReject,
}

func init() {
	f := StageCmd.Flags()
	f.StringVar(&stageRunIDFlag, "run-id", "", "Run the stage belongs to")
	f.StringArrayVar(&stageParamFlags, "param", nil, "Stage input as name=value (repeatable)")
	f.StringArrayVar(&stageArtifactFlags, "artifact", nil, "Input artifact as slot=uri (repeatable)")
	f.StringArrayVar(&stageOutputFlags, "output", nil, "Output artifact as slot=uri (repeatable)")
	f.StringVar(&stageOutputsDirFlag, "outputs-dir", "", "Directory to write logged metrics and the gate outcome to")
}

func runStage(cmd *cobra.Command, args []string) error {
	component, err := stageComponent(args[0])
	if err != nil {
		return err
	}
	params, err := parseAssignments("param", stageParamFlags)
	if err != nil {
		return err
	}
	artifacts, err := parseAssignments("artifact", stageArtifactFlags)
	if err != nil {
		return err
	}
	outputs, err := parseAssignments("output", stageOutputFlags)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	var pool *pgxpool.Pool
	if component == pipelinespec.ComponentModelRegister {
		if pool, err = bootstrap.OpenRegistry(ctx, cfg.Database); err != nil {
			return err
		}
		defer pool.Close()
	}
	registry := services.NewComponentRegistry(bootstrap.StageServices(cfg, pool))

	in := &executor.StageInput{
		RunID:      stageRunIDFlag,
		Stage:      component,
		Parameters: params,
		Artifacts:  artifacts,
		Outputs:    outputs,
	}
	logger := log.WithFields(log.Fields{
		"run_id": stageRunIDFlag,
		"stage":  component,
	})
	logger.Info("stage started")

	out, err := registry[component].Run(ctx, in)
	if err != nil {
		logger.WithError(err).Error("stage failed")
		return err
	}
	if err := writeStageOutputs(stageOutputsDirFlag, out); err != nil {
		return err
	}
	logger.Info("stage finished")
	return nil
}

// stageComponent accepts a component name or its short alias.
func stageComponent(name string) (string, error) {
	if c, ok := stageAliases[name]; ok {
		return c, nil
	}
	for _, c := range stageAliases {
		if c == name {
			return c, nil
		}
	}
	return "", errors.Wrapf(domain.ErrInvalidParameter, "unknown stage %q", name)
}

// parseAssignments turns repeated key=value flags into a map.
func parseAssignments(flag string, values []string) (map[string]string, error) {
	out := make(map[string]string, len(values))
	for _, kv := range values {
		key, value, ok := strings.Cut(kv, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, errors.Wrapf(domain.ErrInvalidParameter, "--%s %q must look like name=value", flag, kv)
		}
		if _, dup := out[key]; dup {
			return nil, errors.Wrapf(domain.ErrInvalidParameter, "--%s %q is set twice", flag, key)
		}
		out[key] = value
	}
	return out, nil
}

// writeStageOutputs writes one file per logged metric and, for the gate, the
// outcome, so the orchestrator can pass them to downstream stages.
func writeStageOutputs(dir string, out *executor.StageOutput) error {
	if dir == "" || out == nil {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrap(err, "create outputs directory")
	}
	for name, value := range out.Metrics {
		data := []byte(strconv.FormatFloat(value, 'f', -1, 64))
		if err := os.WriteFile(filepath.Join(dir, name), data, 0o644); err != nil {
			return errors.Wrapf(err, "write metric %s", name)
		}
	}
	if out.Decision != nil {
		data := []byte(out.Decision.Outcome())
		if err := os.WriteFile(filepath.Join(dir, outcomeFile), data, 0o644); err != nil {
			return errors.Wrap(err, "write gate outcome")
		}
	}
	return nil
}
