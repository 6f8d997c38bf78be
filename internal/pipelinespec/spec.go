// Package pipelinespec is the compiled, serializable form of a pipeline: a
// named DAG of stages with typed run parameters. It is what `compile` writes,
// what the in-process executor interprets and what the Kubernetes runtime
// turns into a Workflow.
package pipelinespec

import (
	"bytes"
	"io"
	"os"
	"sort"

	"github.com/Masterminds/semver/v3"
	"github.com/cockroachdb/errors"
	"gopkg.in/yaml.v3"

	"mlops-pipeline/internal/core/domain"
)

// SchemaVersion is written by Marshal. Load accepts any 2.1.x document.
const SchemaVersion = "2.1.0"

var schemaConstraint = mustConstraint("~2.1")

type ParameterType string

const (
	ParameterString ParameterType = "STRING"
	ParameterDouble ParameterType = "DOUBLE"
)

type PipelineSpec struct {
	SchemaVersion string                   `yaml:"schemaVersion"`
	Pipeline      PipelineInfo             `yaml:"pipelineInfo"`
	Parameters    map[string]ParameterSpec `yaml:"parameters"`
	Stages        []StageSpec              `yaml:"stages"`
}

type PipelineInfo struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description,omitempty"`
}

// ParameterSpec declares a run parameter. A nil Default makes it required.
type ParameterSpec struct {
	Type        ParameterType `yaml:"type"`
	Default     *string       `yaml:"default,omitempty"`
	Description string        `yaml:"description,omitempty"`
}

// StageSpec is one node of the DAG.
//
// Inputs values are literals or expressions: {{params.NAME}} reads a run
// parameter and {{stages.STAGE.metrics.NAME}} reads a metric logged by an
// upstream stage. Artifacts maps an input slot to "STAGE.SLOT" of an upstream
// output.
type StageSpec struct {
	Name      string            `yaml:"name"`
	Component string            `yaml:"component"`
	Inputs    map[string]string `yaml:"inputs,omitempty"`
	Artifacts map[string]string `yaml:"artifacts,omitempty"`
	Outputs   []string          `yaml:"outputs,omitempty"`
	After     []string          `yaml:"after,omitempty"`
	When      *Condition        `yaml:"when,omitempty"`
	Resources Resources         `yaml:"resources,omitempty"`
}

// Condition gates a stage on the decision produced by an upstream stage.
type Condition struct {
	Stage   string         `yaml:"stage"`
	Outcome domain.Outcome `yaml:"outcome"`
}

type Resources struct {
	CPULimit    string `yaml:"cpuLimit,omitempty"`
	MemoryLimit string `yaml:"memoryLimit,omitempty"`
}

func (s *PipelineSpec) Stage(name string) (*StageSpec, bool) {
	for i := range s.Stages {
		if s.Stages[i].Name == name {
			return &s.Stages[i], true
		}
	}
	return nil, false
}

// Dependencies returns the upstream stages of st, sorted and without
// duplicates.
func (st *StageSpec) Dependencies() []string {
	seen := map[string]struct{}{}
	for _, a := range st.After {
		seen[a] = struct{}{}
	}
	for _, ref := range st.Artifacts {
		if producer, _, ok := splitArtifactRef(ref); ok {
			seen[producer] = struct{}{}
		}
	}
	for _, v := range st.Inputs {
		if e, ok := parseExpr(v); ok && e.kind == exprStageMetric {
			seen[e.stage] = struct{}{}
		}
	}
	if st.When != nil {
		seen[st.When.Stage] = struct{}{}
	}
	deps := make([]string, 0, len(seen))
	for d := range seen {
		deps = append(deps, d)
	}
	sort.Strings(deps)
	return deps
}

// Load reads and validates a YAML spec.
func Load(r io.Reader) (*PipelineSpec, error) {
	var spec PipelineSpec
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&spec); err != nil {
		return nil, errors.Wrapf(domain.ErrInvalidSpec, "decode: %v", err)
	}
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	return &spec, nil
}

func LoadFile(path string) (*PipelineSpec, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "open pipeline spec")
	}
	defer f.Close()
	return Load(f)
}

// Marshal renders the spec as YAML.
func Marshal(spec *PipelineSpec) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(spec); err != nil {
		return nil, errors.Wrap(err, "encode pipeline spec")
	}
	if err := enc.Close(); err != nil {
		return nil, errors.Wrap(err, "encode pipeline spec")
	}
	return buf.Bytes(), nil
}

// Validate checks the schema version, that every reference resolves and that
// the stages form a DAG.
func (s *PipelineSpec) Validate() error {
	v, err := semver.NewVersion(s.SchemaVersion)
	if err != nil {
		return errors.Wrapf(domain.ErrUnsupportedSchema, "%q: %v", s.SchemaVersion, err)
	}
	if !schemaConstraint.Check(v) {
		return errors.Wrapf(domain.ErrUnsupportedSchema, "%s does not satisfy %s", v, schemaConstraint)
	}
	if s.Pipeline.Name == "" {
		return errors.Wrap(domain.ErrInvalidSpec, "pipeline name is required")
	}
	if len(s.Stages) == 0 {
		return errors.Wrap(domain.ErrInvalidSpec, "pipeline has no stages")
	}

	for name, p := range s.Parameters {
		if p.Type != ParameterString && p.Type != ParameterDouble {
			return errors.Wrapf(domain.ErrInvalidSpec, "parameter %q has unknown type %q", name, p.Type)
		}
		if p.Default != nil {
			if err := checkType(name, p.Type, *p.Default); err != nil {
				return errors.Wrapf(domain.ErrInvalidSpec, "default: %v", err)
			}
		}
	}

	outputs := make(map[string]map[string]struct{}, len(s.Stages))
	for _, st := range s.Stages {
		if st.Name == "" || st.Component == "" {
			return errors.Wrap(domain.ErrInvalidSpec, "every stage needs a name and a component")
		}
		if _, dup := outputs[st.Name]; dup {
			return errors.Wrapf(domain.ErrInvalidSpec, "duplicate stage %q", st.Name)
		}
		slots := make(map[string]struct{}, len(st.Outputs))
		for _, o := range st.Outputs {
			slots[o] = struct{}{}
		}
		outputs[st.Name] = slots
	}

	for _, st := range s.Stages {
		for _, dep := range st.After {
			if _, ok := outputs[dep]; !ok {
				return errors.Wrapf(domain.ErrInvalidSpec, "stage %q runs after unknown stage %q", st.Name, dep)
			}
		}
		for slot, ref := range st.Artifacts {
			producer, out, ok := splitArtifactRef(ref)
			if !ok {
				return errors.Wrapf(domain.ErrInvalidSpec, "stage %q artifact %q: %q is not STAGE.SLOT", st.Name, slot, ref)
			}
			if _, ok := outputs[producer][out]; !ok {
				return errors.Wrapf(domain.ErrInvalidSpec, "stage %q artifact %q: %q is not an output", st.Name, slot, ref)
			}
		}
		for key, v := range st.Inputs {
			e, ok := parseExpr(v)
			if !ok {
				continue
			}
			switch e.kind {
			case exprParam:
				if _, ok := s.Parameters[e.name]; !ok {
					return errors.Wrapf(domain.ErrInvalidSpec, "stage %q input %q: unknown parameter %q", st.Name, key, e.name)
				}
			case exprStageMetric:
				if _, ok := outputs[e.stage]; !ok {
					return errors.Wrapf(domain.ErrInvalidSpec, "stage %q input %q: unknown stage %q", st.Name, key, e.stage)
				}
			}
		}
		if st.When != nil {
			if _, ok := outputs[st.When.Stage]; !ok {
				return errors.Wrapf(domain.ErrInvalidSpec, "stage %q is conditioned on unknown stage %q", st.Name, st.When.Stage)
			}
			if !st.When.Outcome.Valid() {
				return errors.Wrapf(domain.ErrInvalidSpec, "stage %q has unknown outcome %q", st.Name, st.When.Outcome)
			}
		}
	}

	_, err = s.TopologicalOrder()
	return err
}

// TopologicalOrder returns the stages so that every stage follows all of its
// dependencies. Ties are broken by declaration order, so the order is stable
// for a given document.
func (s *PipelineSpec) TopologicalOrder() ([]*StageSpec, error) {
	index := make(map[string]int, len(s.Stages))
	for i, st := range s.Stages {
		index[st.Name] = i
	}

	indegree := make([]int, len(s.Stages))
	dependents := make([][]int, len(s.Stages))
	for i := range s.Stages {
		for _, dep := range s.Stages[i].Dependencies() {
			j, ok := index[dep]
			if !ok {
				return nil, errors.Wrapf(domain.ErrInvalidSpec, "stage %q depends on unknown stage %q", s.Stages[i].Name, dep)
			}
			indegree[i]++
			dependents[j] = append(dependents[j], i)
		}
	}

	order := make([]*StageSpec, 0, len(s.Stages))
	done := make([]bool, len(s.Stages))
	for len(order) < len(s.Stages) {
		next := -1
		for i := range s.Stages {
			if !done[i] && indegree[i] == 0 {
				next = i
				break
			}
		}
		if next < 0 {
			return nil, errors.Wrap(domain.ErrInvalidSpec, "stages contain a cycle")
		}
		done[next] = true
		order = append(order, &s.Stages[next])
		for _, d := range dependents[next] {
			indegree[d]--
		}
	}
	return order, nil
}

func mustConstraint(c string) *semver.Constraints {
	constraint, err := semver.NewConstraint(c)
	if err != nil {
		panic(err)
	}
	return constraint
}
