package commands

import (
	"fmt"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	"mlops-pipeline/internal/pipelinespec"
)

// AuditCmd checks that every stage of a compiled spec sets the expected CPU
// limit.
var AuditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Check the CPU limit of every stage in a compiled spec",
	RunE:  runAudit,
}

var (
	auditSpecFlag string
	auditCPUFlag  string
)

func init() {
	AuditCmd.Flags().StringVar(&auditSpecFlag, "pipeline-spec", "pipeline.yaml", "Compiled pipeline spec to audit")
	AuditCmd.Flags().StringVar(&auditCPUFlag, "cpu-limit", pipelinespec.ExpectedCPULimit, "CPU limit every stage must set")
}

func runAudit(cmd *cobra.Command, args []string) error {
	spec, err := pipelinespec.LoadFile(auditSpecFlag)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	problems := pipelinespec.AuditCPULimits(spec, auditCPUFlag)
	if len(problems) == 0 {
		fmt.Fprintf(out, "All %d stages set a CPU limit of %s\n", len(spec.Stages), auditCPUFlag)
		return nil
	}
	for _, p := range problems {
		fmt.Fprintf(out, "- %s\n", p)
	}
	return errors.Newf("%d of %d stages failed the CPU limit audit", len(problems), len(spec.Stages))
}
