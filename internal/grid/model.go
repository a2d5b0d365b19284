// Package grid loads declarative HCL grid files and turns them into
// registered task graphs. A grid is a flat list of step blocks:
//
//	step "print" "hello" {
//	  message    = "hi"
//	  depends_on = ["sleep.warmup"]
//	}
//
// The first label picks the runner handler, the second names the step.
// Remaining attributes are the runner's arguments; depends_on names the
// upstream steps as "<runner>.<name>" addresses.
package grid

import (
	"fmt"

	"github.com/hashicorp/hcl/v2"
	"github.com/zclconf/go-cty/cty"

	"github.com/vk/depgridgo/dag"
)

// File is the decoded form of one grid file.
type File struct {
	Steps []*Step `hcl:"step,block"`
}

// Step is one step block.
type Step struct {
	Runner    string   `hcl:"runner,label"`
	Name      string   `hcl:"name,label"`
	DependsOn []string `hcl:"depends_on,optional"`
	Remain    hcl.Body `hcl:",remain"`
}

// ID returns the step's task id, "<runner>.<name>".
func (s *Step) ID() dag.Id {
	return dag.Id(s.Runner + "." + s.Name)
}

// Args statically evaluates the step's remaining attributes into argument
// values. Grid arguments are literals; references are not supported.
func (s *Step) Args() (map[string]cty.Value, error) {
	attrs, diags := s.Remain.JustAttributes()
	if diags.HasErrors() {
		return nil, fmt.Errorf("reading arguments of step %s: %w", s.ID(), diags)
	}
	args := make(map[string]cty.Value, len(attrs))
	for name, attr := range attrs {
		v, diags := attr.Expr.Value(nil)
		if diags.HasErrors() {
			return nil, fmt.Errorf("evaluating argument %q of step %s: %w", name, s.ID(), diags)
		}
		args[name] = v
	}
	return args, nil
}
