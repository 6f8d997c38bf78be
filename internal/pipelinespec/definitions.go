package pipelinespec

import (
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"

	"mlops-pipeline/internal/core/domain"
)

// Components the stages of the diabetes pipelines are bound to.
const (
	ComponentDataSplit     = "data-split"
	ComponentModelFit      = "model-fit"
	ComponentModelEvaluate = "model-evaluate"
	ComponentApprovalGate  = "approval-gate"
	ComponentModelApproved = "model-approved"
	ComponentModelRegister = "model-register"
	ComponentModelReject   = "model-reject"
)

// Stage names.
const (
	StagePreprocess = "preprocess"
	StageTrain      = "train"
	StageEvaluate   = "evaluate"
	StageGate       = "gate"
	StageApprove    = "approve"
	StageRegister   = "register"
	StageReject     = "reject"
)

// Run parameters.
const (
	ParamProjectID        = "project_id"
	ParamRegion           = "region"
	ParamModelDisplayName = "model_display_name"
	ParamInputURI         = "input_raw_data_gcs_uri"
	ParamRegRate          = "reg_rate"
	ParamMinAccuracy      = "min_accuracy"
	ParamParentModel      = "parent_model"
)

// Stage input names.
const (
	InputSourceURI     = "source_uri"
	InputSplitFraction = "split_fraction"
	InputSeed          = "seed"
	InputRegRate       = "reg_rate"
	InputMinAccuracy   = "min_accuracy"
	InputAccuracy      = "accuracy"
	InputProject       = "project"
	InputRegion        = "region"
	InputDisplayName   = "display_name"
	InputParentModel   = "parent_model"
)

// Artifact slots.
const (
	SlotTrain = "train"
	SlotTest  = "test"
	SlotModel = "model"
)

const (
	DevPipelineName  = "mlops-diabetes-dev-pipeline"
	ProdPipelineName = "mlops-diabetes-prod-pipeline"

	workMemoryLimit  = "3.75G"
	gateMemoryLimit  = "1G"
	devMinAccuracy   = "0.70"
	prodMinAccuracy  = "0.80"
	defaultRegRate   = "0.05"
	defaultParentRef = ""
)

// Dev is the development pipeline. Every stage carries resource limits.
func Dev() *PipelineSpec {
	spec := diabetesPipeline(DevPipelineName,
		"Development pipeline for diabetes prediction model", devMinAccuracy)
	work := Resources{CPULimit: ExpectedCPULimit, MemoryLimit: workMemoryLimit}
	gate := Resources{CPULimit: ExpectedCPULimit, MemoryLimit: gateMemoryLimit}
	for i := range spec.Stages {
		switch spec.Stages[i].Component {
		case ComponentModelApproved, ComponentModelReject, ComponentApprovalGate:
			spec.Stages[i].Resources = gate
		default:
			spec.Stages[i].Resources = work
		}
	}
	return spec
}

// Prod is the production pipeline. Its approval stage also reports the
// accuracy and the model it approved.
func Prod() *PipelineSpec {
	spec := diabetesPipeline(ProdPipelineName,
		"Production pipeline for diabetes prediction model", prodMinAccuracy)
	approve, _ := spec.Stage(StageApprove)
	approve.Inputs = map[string]string{
		InputAccuracy: MetricRef(StageEvaluate, domain.MetricAccuracy),
	}
	approve.Artifacts = map[string]string{SlotModel: StageTrain + "." + SlotModel}
	return spec
}

// Select picks a definition by name the way the compiler picks a pipeline
// file: a name containing "dev" selects Dev, one containing "prod" selects
// Prod.
func Select(name string) (*PipelineSpec, error) {
	switch {
	case strings.Contains(name, "dev"):
		return Dev(), nil
	case strings.Contains(name, "prod"):
		return Prod(), nil
	default:
		return nil, errors.Wrapf(domain.ErrUnknownPipeline, "%q", name)
	}
}

func diabetesPipeline(name, description, minAccuracy string) *PipelineSpec {
	modelRef := StageTrain + "." + SlotModel
	accuracy := MetricRef(StageEvaluate, domain.MetricAccuracy)

	return &PipelineSpec{
		SchemaVersion: SchemaVersion,
		Pipeline:      PipelineInfo{Name: name, Description: description},
		Parameters: map[string]ParameterSpec{
			ParamProjectID:        {Type: ParameterString},
			ParamRegion:           {Type: ParameterString},
			ParamModelDisplayName: {Type: ParameterString},
			ParamInputURI:         {Type: ParameterString},
			ParamRegRate:          {Type: ParameterDouble, Default: ptr(defaultRegRate)},
			ParamMinAccuracy:      {Type: ParameterDouble, Default: ptr(minAccuracy)},
			ParamParentModel:      {Type: ParameterString, Default: ptr(defaultParentRef)},
		},
		Stages: []StageSpec{
			{
				Name:      StagePreprocess,
				Component: ComponentDataSplit,
				Inputs: map[string]string{
					InputSourceURI:     ParamRef(ParamInputURI),
					InputSplitFraction: strconv.FormatFloat(domain.DefaultSplitFraction, 'f', -1, 64),
					InputSeed:          strconv.Itoa(domain.DefaultSplitSeed),
				},
				Outputs: []string{SlotTrain, SlotTest},
			},
			{
				Name:      StageTrain,
				Component: ComponentModelFit,
				Inputs:    map[string]string{InputRegRate: ParamRef(ParamRegRate)},
				Artifacts: map[string]string{SlotTrain: StagePreprocess + "." + SlotTrain},
				Outputs:   []string{SlotModel},
			},
			{
				Name:      StageEvaluate,
				Component: ComponentModelEvaluate,
				Inputs:    map[string]string{InputMinAccuracy: ParamRef(ParamMinAccuracy)},
				Artifacts: map[string]string{
					SlotModel: modelRef,
					SlotTest:  StagePreprocess + "." + SlotTest,
				},
			},
			{
				Name:      StageGate,
				Component: ComponentApprovalGate,
				Inputs: map[string]string{
					InputAccuracy:    accuracy,
					InputMinAccuracy: ParamRef(ParamMinAccuracy),
				},
				Artifacts: map[string]string{SlotModel: modelRef},
			},
			{
				Name:      StageApprove,
				Component: ComponentModelApproved,
				When:      &Condition{Stage: StageGate, Outcome: domain.OutcomeApproved},
			},
			{
				Name:      StageRegister,
				Component: ComponentModelRegister,
				Inputs: map[string]string{
					InputProject:     ParamRef(ParamProjectID),
					InputRegion:      ParamRef(ParamRegion),
					InputDisplayName: ParamRef(ParamModelDisplayName),
					InputParentModel: ParamRef(ParamParentModel),
					InputAccuracy:    accuracy,
					InputMinAccuracy: ParamRef(ParamMinAccuracy),
				},
				Artifacts: map[string]string{SlotModel: modelRef},
				After:     []string{StageApprove},
				When:      &Condition{Stage: StageGate, Outcome: domain.OutcomeApproved},
			},
			{
				Name:      StageReject,
				Component: ComponentModelReject,
				Inputs: map[string]string{
					InputAccuracy:    accuracy,
					InputMinAccuracy: ParamRef(ParamMinAccuracy),
				},
				When: &Condition{Stage: StageGate, Outcome: domain.OutcomeRejected},
			},
		},
	}
}

func ptr(s string) *string {
	return &s
}
