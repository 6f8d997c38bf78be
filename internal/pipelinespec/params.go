package pipelinespec

import (
	"bytes"
	"encoding/json"
	"sort"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"

	"mlops-pipeline/internal/core/domain"
)

type exprKind int

const (
	exprParam exprKind = iota + 1
	exprStageMetric
)

type expr struct {
	kind  exprKind
	name  string
	stage string
}

// parseExpr recognizes {{params.NAME}} and {{stages.STAGE.metrics.NAME}}.
func parseExpr(v string) (expr, bool) {
	v = strings.TrimSpace(v)
	if !strings.HasPrefix(v, "{{") || !strings.HasSuffix(v, "}}") {
		return expr{}, false
	}
	body := strings.TrimSpace(v[2 : len(v)-2])
	parts := strings.Split(body, ".")
	switch {
	case len(parts) == 2 && parts[0] == "params" && parts[1] != "":
		return expr{kind: exprParam, name: parts[1]}, true
	case len(parts) == 4 && parts[0] == "stages" && parts[2] == "metrics" && parts[1] != "" && parts[3] != "":
		return expr{kind: exprStageMetric, stage: parts[1], name: parts[3]}, true
	}
	return expr{}, false
}

// ParamRef is the expression that reads run parameter name.
func ParamRef(name string) string {
	return "{{params." + name + "}}"
}

// MetricRef is the expression that reads metric name logged by stage.
func MetricRef(stage, name string) string {
	return "{{stages." + stage + ".metrics." + name + "}}"
}

// ParamName reports the parameter v reads, if v is a parameter expression.
func ParamName(v string) (string, bool) {
	e, ok := parseExpr(v)
	if !ok || e.kind != exprParam {
		return "", false
	}
	return e.name, true
}

// MetricSource reports the stage and metric v reads, if v is a metric
// expression.
func MetricSource(v string) (stage, metric string, ok bool) {
	e, ok := parseExpr(v)
	if !ok || e.kind != exprStageMetric {
		return "", "", false
	}
	return e.stage, e.name, true
}

func splitArtifactRef(ref string) (stage, slot string, ok bool) {
	i := strings.LastIndex(ref, ".")
	if i <= 0 || i == len(ref)-1 {
		return "", "", false
	}
	return ref[:i], ref[i+1:], true
}

// SplitArtifactRef splits "STAGE.SLOT".
func SplitArtifactRef(ref string) (stage, slot string, ok bool) {
	return splitArtifactRef(ref)
}

// ResolveParameters applies defaults to values and type-checks the result.
// Unknown names and missing required parameters are errors.
func (s *PipelineSpec) ResolveParameters(values map[string]string) (map[string]string, error) {
	out := make(map[string]string, len(s.Parameters))
	for name := range values {
		if _, ok := s.Parameters[name]; !ok {
			return nil, errors.Wrapf(domain.ErrInvalidParameter, "unknown parameter %q", name)
		}
	}

	var missing []string
	for name, p := range s.Parameters {
		v, ok := values[name]
		if !ok {
			if p.Default == nil {
				missing = append(missing, name)
				continue
			}
			v = *p.Default
		}
		if err := checkType(name, p.Type, v); err != nil {
			return nil, err
		}
		out[name] = v
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return nil, errors.Wrapf(domain.ErrMissingParameter, "%s", strings.Join(missing, ", "))
	}
	return out, nil
}

func checkType(name string, t ParameterType, v string) error {
	if t != ParameterDouble {
		return nil
	}
	if _, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err != nil {
		return errors.Wrapf(domain.ErrInvalidParameter, "parameter %q: %q is not a number", name, v)
	}
	return nil
}

// ParameterValuesFromJSON decodes a JSON object of parameter values. Numbers
// keep their literal text; booleans and strings become their string form.
func ParameterValuesFromJSON(raw []byte) (map[string]string, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return map[string]string{}, nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var obj map[string]any
	if err := dec.Decode(&obj); err != nil {
		return nil, errors.Wrapf(domain.ErrInvalidParameter, "parameter values: %v", err)
	}
	out := make(map[string]string, len(obj))
	for k, v := range obj {
		switch tv := v.(type) {
		case string:
			out[k] = tv
		case json.Number:
			out[k] = tv.String()
		case bool:
			out[k] = strconv.FormatBool(tv)
		case nil:
			out[k] = ""
		default:
			return nil, errors.Wrapf(domain.ErrInvalidParameter, "parameter %q must be a scalar", k)
		}
	}
	return out, nil
}

// LabelsFromJSON decodes a JSON object of string labels.
func LabelsFromJSON(raw []byte) (map[string]string, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return map[string]string{}, nil
	}
	var labels map[string]string
	if err := json.Unmarshal(raw, &labels); err != nil {
		return nil, errors.Wrapf(domain.ErrInvalidParameter, "labels: %v", err)
	}
	return labels, nil
}
