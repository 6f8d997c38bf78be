package commands

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"mlops-pipeline/internal/adapters/primary/http/dto"
	"mlops-pipeline/internal/adapters/secondary/argo"
	"mlops-pipeline/internal/apiclient"
	"mlops-pipeline/internal/core/domain"
	output "mlops-pipeline/internal/core/ports/output"
	"mlops-pipeline/internal/pipelinespec"
)

const (
	runtimeServer     = "server"
	runtimeKubernetes = "kubernetes"
)

// SubmitCmd hands a compiled spec to the pipeline server or to the cluster.
var SubmitCmd = &cobra.Command{
	Use:   "submit",
	Short: "Submit a compiled pipeline spec as a pipeline job",
	RunE:  runSubmit,
}

var (
	submitProjectFlag        string
	submitRegionFlag         string
	submitSpecFlag           string
	submitServiceAccountFlag string
	submitDisplayNameFlag    string
	submitParamsFlag         string
	submitLabelsFlag         string
	submitCachingFlag        bool
	submitRuntimeFlag        string
)

func init() {
	f := SubmitCmd.Flags()
	f.StringVar(&submitProjectFlag, "project", "", "Project the model is registered in")
	f.StringVar(&submitRegionFlag, "region", "", "Region the model is registered in")
	f.StringVar(&submitSpecFlag, "pipeline-spec", "pipeline.yaml", "Compiled pipeline spec")
	f.StringVar(&submitServiceAccountFlag, "service-account", "", "Service account the job runs as")
	f.StringVar(&submitDisplayNameFlag, "display-name", "", "Job display name (defaults to the pipeline name)")
	f.StringVar(&submitParamsFlag, "parameter-values-json", "", "Pipeline parameter values as a JSON object")
	f.StringVar(&submitLabelsFlag, "labels-json", "", "Job labels as a JSON object")
	f.BoolVar(&submitCachingFlag, "enable-caching", false, "Allow the runtime to reuse cached stage results")
	f.StringVar(&submitRuntimeFlag, "runtime", runtimeServer, "Where the job runs: server or kubernetes")
	f.String("server-url", "", "Pipeline server base URL")
	f.String("namespace", "", "Kubernetes namespace for the workflow")
	_ = v.BindPFlag("UPSTREAM_URL", f.Lookup("server-url"))
	_ = v.BindPFlag("KUBERNETES_NAMESPACE", f.Lookup("namespace"))
}

func runSubmit(cmd *cobra.Command, args []string) error {
	raw, err := os.ReadFile(submitSpecFlag)
	if err != nil {
		return errors.Wrapf(err, "read %s", submitSpecFlag)
	}
	spec, err := pipelinespec.Load(strings.NewReader(string(raw)))
	if err != nil {
		return err
	}
	params, err := submitParameters(submitProjectFlag, submitRegionFlag, submitParamsFlag)
	if err != nil {
		return err
	}
	labels, err := pipelinespec.LabelsFromJSON([]byte(submitLabelsFlag))
	if err != nil {
		return err
	}
	displayName := strings.TrimSpace(submitDisplayNameFlag)
	if displayName == "" {
		displayName = spec.Pipeline.Name
	}

	out := cmd.OutOrStdout()
	switch submitRuntimeFlag {
	case runtimeServer:
		values, err := json.Marshal(params)
		if err != nil {
			return errors.Wrap(err, "encode parameter values")
		}
		client := apiclient.NewClient(cfg.Upstream.URL, cfg.Upstream.Timeout)
		job, err := client.SubmitJob(cmd.Context(), &dto.CreatePipelineJobRequest{
			DisplayName:     displayName,
			PipelineSpec:    string(raw),
			ParameterValues: values,
			Labels:          labels,
			ServiceAccount:  submitServiceAccountFlag,
			EnableCaching:   submitCachingFlag,
			Runtime:         string(domain.RuntimeLocal),
		})
		if err != nil {
			return errors.WithHint(err, "check that the pipeline server is reachable at UPSTREAM_URL")
		}
		fmt.Fprintf(out, "Submitted job %s (run %s, status %s)\n", job.JobID, job.ID, job.Status)
		return nil

	case runtimeKubernetes:
		resolved, err := spec.ResolveParameters(params)
		if err != nil {
			return err
		}
		k8s := cfg.Kubernetes
		k8s.Enabled = true
		submitter, err := argo.NewWorkflowClient(&k8s, cfg.Pipeline.StageImage)
		if err != nil {
			return err
		}
		jobID := domain.JobID(displayName, time.Now().UTC())
		sub, err := submitter.Submit(cmd.Context(), &output.WorkflowJob{
			JobID:          jobID,
			Spec:           spec,
			Parameters:     resolved,
			Labels:         labels,
			ServiceAccount: submitServiceAccountFlag,
			PipelineRoot:   cfg.Pipeline.Root,
			EnableCaching:  submitCachingFlag,
		})
		if err != nil {
			return err
		}
		log.WithFields(log.Fields{
			"job_id":    jobID,
			"namespace": sub.Namespace,
		}).Debug("workflow submitted")
		fmt.Fprintf(out, "Submitted job %s to namespace %s\n", sub.Name, sub.Namespace)
		return nil

	default:
		return errors.Wrapf(domain.ErrInvalidParameter, "unknown runtime %q (use %s or %s)",
			submitRuntimeFlag, runtimeServer, runtimeKubernetes)
	}
}

// submitParameters decodes the parameter values and fills the project and
// region parameters from their flags when the JSON leaves them out.
func submitParameters(project, region, rawJSON string) (map[string]string, error) {
	params, err := pipelinespec.ParameterValuesFromJSON([]byte(rawJSON))
	if err != nil {
		return nil, err
	}
	if _, ok := params[pipelinespec.ParamProjectID]; !ok && project != "" {
		params[pipelinespec.ParamProjectID] = project
	}
	if _, ok := params[pipelinespec.ParamRegion]; !ok && region != "" {
		params[pipelinespec.ParamRegion] = region
	}
	return params, nil
}
