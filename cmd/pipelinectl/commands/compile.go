package commands

import (
	"fmt"
	"os"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	"mlops-pipeline/internal/pipelinespec"
)

// CompileCmd writes a built-in pipeline definition as a YAML spec.
var CompileCmd = &cobra.Command{
	Use:   "compile",
	Short: "Compile the dev or prod pipeline to a YAML spec",
	RunE:  runCompile,
}

var (
	compilePyFlag     string
	compileOutputFlag string
)

func init() {
	CompileCmd.Flags().StringVar(&compilePyFlag, "py", "", "Pipeline to compile; a name containing \"dev\" or \"prod\"")
	CompileCmd.Flags().StringVar(&compileOutputFlag, "output", "pipeline.yaml", "File to write the compiled spec to")
	_ = CompileCmd.MarkFlagRequired("py")
}

func runCompile(cmd *cobra.Command, args []string) error {
	spec, err := pipelinespec.Select(compilePyFlag)
	if err != nil {
		return errors.WithHint(err, "pass --py with a name containing \"dev\" or \"prod\"")
	}
	data, err := pipelinespec.Marshal(spec)
	if err != nil {
		return err
	}
	if err := os.WriteFile(compileOutputFlag, data, 0o644); err != nil {
		return errors.Wrapf(err, "write %s", compileOutputFlag)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Compiled %s to %s\n", spec.Pipeline.Name, compileOutputFlag)
	return nil
}
