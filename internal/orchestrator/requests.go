package orchestrator

import (
	"strings"

	"github.com/fyrsmithlabs/tracebuild/internal/build"
)

// CommandRequest describes a command to run inside a build.
type CommandRequest struct {
	Build   build.ID
	Step    *build.StepID // optional parent step
	Name    string        // optional; replaces the command line in the span name
	Command string
	Args    []string
}

// spanName is "cmd - <name>" when a name is set, else "cmd - <command line>".
func (r CommandRequest) spanName() string {
	if r.Name != "" {
		return "cmd - " + r.Name
	}
	return strings.TrimSpace("cmd - " + r.Command + " " + strings.Join(r.Args, " "))
}

// metricName is the tracebuild.name label value.
func (r CommandRequest) metricName() string {
	if r.Name != "" {
		return r.Name
	}
	return r.Command
}

// StepRequest describes a finished step.
type StepRequest struct {
	Build  build.ID
	Parent *build.StepID // optional parent step
	ID     build.StepID
	Start  build.Timestamp
	Name   string       // optional
	Status build.Status // optional; StatusUnset leaves the span status unset
}

func (r StepRequest) spanName() string {
	return withName("step", r.Name)
}

// BuildRequest describes a finished build.
type BuildRequest struct {
	ID     build.ID
	Start  build.Timestamp
	Name   string       // optional
	Branch string       // optional
	Commit string       // optional
	Status build.Status // optional
}

func (r BuildRequest) spanName() string {
	return withName("build", r.Name)
}

func withName(kind, name string) string {
	if name == "" {
		return kind
	}
	return kind + " - " + name
}
