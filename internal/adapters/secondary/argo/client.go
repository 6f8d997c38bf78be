package argo

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/cockroachdb/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime/schema"
	"k8s.io/client-go/dynamic"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"

	"mlops-pipeline/internal/config"
	"mlops-pipeline/internal/core/domain"
	output "mlops-pipeline/internal/core/ports/output"
	"mlops-pipeline/internal/pipelinespec"
)

var workflowGVR = schema.GroupVersionResource{
	Group:    "argoproj.io",
	Version:  "v1alpha1",
	Resource: "workflows",
}

const (
	labelPipeline      = "mlops-pipeline/pipeline-name"
	annotationRoot     = "mlops-pipeline/pipeline-root"
	annotationCaching  = "mlops-pipeline/enable-caching"
	entrypoint         = "pipeline"
	outputsDir         = "/tmp/outputs"
	outcomeParameter   = "outcome"
	defaultNamespace   = "ml-pipelines"
	workflowNameExpr   = "{{workflow.name}}"
	stageCommandBinary = "pipelinectl"
)

type workflowClient struct {
	client    dynamic.Interface
	enabled   bool
	defaultNS string
	image     string
}

// NewWorkflowClient creates the Argo Workflows adapter. Stages run as
// containers of image invoking the pipelinectl stage command.
func NewWorkflowClient(cfg *config.KubernetesConfig, image string) (output.WorkflowSubmitter, error) {
	if !cfg.Enabled {
		return &workflowClient{enabled: false}, nil
	}

	var restCfg *rest.Config
	var err error

	if cfg.InCluster {
		restCfg, err = rest.InClusterConfig()
	} else if cfg.KubeConfigPath != "" {
		restCfg, err = clientcmd.BuildConfigFromFlags("", cfg.KubeConfigPath)
	} else {
		// Try default kubeconfig location
		home, _ := os.UserHomeDir()
		kubeconfig := filepath.Join(home, ".kube", "config")
		restCfg, err = clientcmd.BuildConfigFromFlags("", kubeconfig)
	}
	if err != nil {
		return nil, errors.Wrap(err, "build k8s config")
	}

	client, err := dynamic.NewForConfig(restCfg)
	if err != nil {
		return nil, errors.Wrap(err, "create dynamic client")
	}
	return newWorkflowClient(client, cfg.DefaultNS, image), nil
}

func newWorkflowClient(client dynamic.Interface, namespace, image string) *workflowClient {
	if namespace == "" {
		namespace = defaultNamespace
	}
	return &workflowClient{client: client, enabled: true, defaultNS: namespace, image: image}
}

func (c *workflowClient) IsAvailable() bool {
	return c.enabled
}

func (c *workflowClient) Submit(ctx context.Context, job *output.WorkflowJob) (*output.WorkflowSubmission, error) {
	if !c.enabled {
		return nil, domain.ErrRuntimeDisabled
	}
	obj, err := c.buildWorkflow(job)
	if err != nil {
		return nil, err
	}

	created, err := c.client.Resource(workflowGVR).
		Namespace(c.defaultNS).
		Create(ctx, obj, metav1.CreateOptions{})
	if err != nil {
		return nil, errors.Wrap(err, "create argo workflow")
	}

	return &output.WorkflowSubmission{
		Name:      created.GetName(),
		Namespace: created.GetNamespace(),
		UID:       string(created.GetUID()),
	}, nil
}

func (c *workflowClient) Phase(ctx context.Context, name string) (string, error) {
	if !c.enabled {
		return "", domain.ErrRuntimeDisabled
	}
	obj, err := c.client.Resource(workflowGVR).
		Namespace(c.defaultNS).
		Get(ctx, name, metav1.GetOptions{})
	if err != nil {
		return "", errors.Wrap(err, "get argo workflow")
	}
	phase, _, _ := unstructured.NestedString(obj.Object, "status", "phase")
	return phase, nil
}

// buildWorkflow translates the pipeline DAG into a Workflow with one DAG
// task and one container template per stage. Metric references and gate
// conditions become Argo output parameters.
func (c *workflowClient) buildWorkflow(job *output.WorkflowJob) (*unstructured.Unstructured, error) {
	spec := job.Spec
	if spec == nil {
		return nil, errors.Wrap(domain.ErrInvalidSpec, "pipeline spec is required")
	}
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	order, err := spec.TopologicalOrder()
	if err != nil {
		return nil, err
	}

	exported := exportedOutputs(spec)

	tasks := make([]interface{}, 0, len(order))
	templates := []interface{}{nil}
	for _, st := range order {
		tasks = append(tasks, buildTask(st))
		templates = append(templates, c.buildTemplate(st, job.PipelineRoot, exported[st.Name]))
	}
	templates[0] = map[string]interface{}{
		"name": entrypoint,
		"dag":  map[string]interface{}{"tasks": tasks},
	}

	labels := map[string]interface{}{labelPipeline: spec.Pipeline.Name}
	for k, v := range job.Labels {
		labels[k] = v
	}

	workflowSpec := map[string]interface{}{
		"entrypoint": entrypoint,
		"arguments":  map[string]interface{}{"parameters": nameValues(job.Parameters)},
		"templates":  templates,
	}
	if job.ServiceAccount != "" {
		workflowSpec["serviceAccountName"] = job.ServiceAccount
	}

	return &unstructured.Unstructured{
		Object: map[string]interface{}{
			"apiVersion": "argoproj.io/v1alpha1",
			"kind":       "Workflow",
			"metadata": map[string]interface{}{
				"name":      job.JobID,
				"namespace": c.defaultNS,
				"labels":    labels,
				"annotations": map[string]interface{}{
					annotationRoot:    job.PipelineRoot,
					annotationCaching: strconv.FormatBool(job.EnableCaching),
				},
			},
			"spec": workflowSpec,
		},
	}, nil
}

func buildTask(st *pipelinespec.StageSpec) map[string]interface{} {
	task := map[string]interface{}{
		"name":     st.Name,
		"template": st.Name,
	}
	if deps := st.Dependencies(); len(deps) > 0 {
		task["dependencies"] = toInterfaces(deps)
	}
	if st.When != nil {
		task["when"] = taskOutput(st.When.Stage, outcomeParameter) + " == " + string(st.When.Outcome)
	}

	args := make(map[string]string, len(st.Inputs))
	for key, v := range st.Inputs {
		args[key] = argoExpression(v)
	}
	if len(args) > 0 {
		task["arguments"] = map[string]interface{}{"parameters": nameValues(args)}
	}
	return task
}

func (c *workflowClient) buildTemplate(st *pipelinespec.StageSpec, root string, exports []string) map[string]interface{} {
	args := []interface{}{"stage", st.Component, "--run-id", workflowNameExpr, "--outputs-dir", outputsDir}
	for _, key := range sortedKeys(st.Inputs) {
		args = append(args, "--param", key+"={{inputs.parameters."+key+"}}")
	}
	for _, slot := range sortedKeys(st.Artifacts) {
		producer, out, _ := pipelinespec.SplitArtifactRef(st.Artifacts[slot])
		args = append(args, "--artifact", slot+"="+artifactPath(root, producer, out))
	}
	outputs := append([]string(nil), st.Outputs...)
	sort.Strings(outputs)
	for _, slot := range outputs {
		args = append(args, "--output", slot+"="+artifactPath(root, st.Name, slot))
	}

	container := map[string]interface{}{
		"image":   c.image,
		"command": []interface{}{stageCommandBinary},
		"args":    args,
	}
	limits := map[string]interface{}{}
	if st.Resources.CPULimit != "" {
		limits["cpu"] = st.Resources.CPULimit
	}
	if st.Resources.MemoryLimit != "" {
		limits["memory"] = st.Resources.MemoryLimit
	}
	if len(limits) > 0 {
		container["resources"] = map[string]interface{}{"limits": limits}
	}

	tmpl := map[string]interface{}{
		"name":      st.Name,
		"container": container,
	}
	if len(st.Inputs) > 0 {
		params := make([]interface{}, 0, len(st.Inputs))
		for _, key := range sortedKeys(st.Inputs) {
			params = append(params, map[string]interface{}{"name": key})
		}
		tmpl["inputs"] = map[string]interface{}{"parameters": params}
	}
	if len(exports) > 0 {
		params := make([]interface{}, 0, len(exports))
		for _, name := range exports {
			params = append(params, map[string]interface{}{
				"name":      name,
				"valueFrom": map[string]interface{}{"path": outputsDir + "/" + name},
			})
		}
		tmpl["outputs"] = map[string]interface{}{"parameters": params}
	}
	return tmpl
}

// exportedOutputs lists, per stage, the metrics other stages read and the
// gate outcome conditions depend on.
func exportedOutputs(spec *pipelinespec.PipelineSpec) map[string][]string {
	set := map[string]map[string]bool{}
	add := func(stage, name string) {
		if set[stage] == nil {
			set[stage] = map[string]bool{}
		}
		set[stage][name] = true
	}
	for _, st := range spec.Stages {
		for _, v := range st.Inputs {
			if stage, metric, ok := pipelinespec.MetricSource(v); ok {
				add(stage, metric)
			}
		}
		if st.When != nil {
			add(st.When.Stage, outcomeParameter)
		}
	}

	out := make(map[string][]string, len(set))
	for stage, names := range set {
		for name := range names {
			out[stage] = append(out[stage], name)
		}
		sort.Strings(out[stage])
	}
	return out
}

// argoExpression rewrites pipeline expressions into Argo's template syntax.
func argoExpression(v string) string {
	if name, ok := pipelinespec.ParamName(v); ok {
		return "{{workflow.parameters." + name + "}}"
	}
	if stage, metric, ok := pipelinespec.MetricSource(v); ok {
		return taskOutput(stage, metric)
	}
	return v
}

func taskOutput(stage, name string) string {
	return "{{tasks." + stage + ".outputs.parameters." + name + "}}"
}

func artifactPath(root, stage, slot string) string {
	return filepath.Join(root, workflowNameExpr, stage, slot)
}

func nameValues(m map[string]string) []interface{} {
	out := make([]interface{}, 0, len(m))
	for _, k := range sortedKeys(m) {
		out = append(out, map[string]interface{}{"name": k, "value": m[k]})
	}
	return out
}

func toInterfaces(s []string) []interface{} {
	out := make([]interface{}, len(s))
	for i, v := range s {
		out[i] = v
	}
	return out
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

var _ output.WorkflowSubmitter = (*workflowClient)(nil)
