package pipelinespec

import "fmt"

// ExpectedCPULimit is the CPU limit every stage must declare.
const ExpectedCPULimit = "1"

// AuditCPULimits lists every stage whose CPU limit is missing or differs from
// expected. An empty result means the spec passes.
func AuditCPULimits(spec *PipelineSpec, expected string) []string {
	var problems []string
	for _, st := range spec.Stages {
		switch cpu := st.Resources.CPULimit; {
		case cpu == "":
			problems = append(problems, fmt.Sprintf("stage %q has no CPU limit set", st.Name))
		case cpu != expected:
			problems = append(problems, fmt.Sprintf("stage %q requests %s CPUs (expected %s)", st.Name, cpu, expected))
		}
	}
	return problems
}
