package orchestrator

// Span attribute keys.
const (
	AttrCmdCommand   = "tracebuild.cmd.command"
	AttrCmdArguments = "tracebuild.cmd.arguments"
	AttrCmdExitCode  = "tracebuild.cmd.exit_code"
	AttrBuildBranch  = "tracebuild.build.branch"
	AttrBuildCommit  = "tracebuild.build.commit"
)

// Metric label keys.
const (
	LabelName     = "tracebuild.name"
	LabelExitCode = "tracebuild.exit_code"
	LabelStatus   = "tracebuild.status"
	LabelBranch   = "tracebuild.branch"
)

// Duration histogram names.
const (
	MetricCmdDuration   = "tracebuild.cmd.duration"
	MetricStepDuration  = "tracebuild.step.duration"
	MetricBuildDuration = "tracebuild.build.duration"
)

// DurationBuckets are the explicit bucket bounds, in seconds, of every
// duration histogram.
var DurationBuckets = []float64{0, 1, 10, 100, 1000}
