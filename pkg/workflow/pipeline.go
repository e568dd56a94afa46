package workflow

import "fmt"

// Pipeline is a named ordered sequence of steps. At most one conditional
// branch per decision point; no cycles.
type Pipeline struct {
	Name  string
	Steps []Step
}

func (p *Pipeline) stepIndex(name string) int {
	for i := range p.Steps {
		if p.Steps[i].Name == name {
			return i
		}
	}
	return -1
}

// Registry is the immutable pipeline lookup table, built once at startup and
// injected into the engine. Never mutated at runtime.
type Registry struct {
	pipelines map[string]*Pipeline
}

// NewRegistry validates and indexes the given pipelines: unique pipeline and
// step names, dispatch steps wired as side effects with evidence among their
// inputs, and side-effecting steps carrying the full fingerprint/effect/apply
// triple.
func NewRegistry(pipelines ...*Pipeline) (*Registry, error) {
	index := make(map[string]*Pipeline, len(pipelines))

	for _, p := range pipelines {
		if p.Name == "" {
			return nil, fmt.Errorf("pipeline with empty name")
		}
		if _, dup := index[p.Name]; dup {
			return nil, fmt.Errorf("duplicate pipeline %q", p.Name)
		}
		if len(p.Steps) == 0 {
			return nil, fmt.Errorf("pipeline %q has no steps", p.Name)
		}

		names := make(map[string]bool, len(p.Steps))
		for i := range p.Steps {
			step := &p.Steps[i]
			if step.Name == "" {
				return nil, fmt.Errorf("pipeline %q: step %d has empty name", p.Name, i)
			}
			if names[step.Name] {
				return nil, fmt.Errorf("pipeline %q: duplicate step %q", p.Name, step.Name)
			}
			names[step.Name] = true

			if step.SideEffect {
				if step.Fingerprint == nil || step.Effect == nil || step.Apply == nil {
					return nil, fmt.Errorf("pipeline %q: side-effecting step %q needs Fingerprint, Effect and Apply", p.Name, step.Name)
				}
			} else if step.Run == nil {
				return nil, fmt.Errorf("pipeline %q: pure step %q needs Run", p.Name, step.Name)
			}

			if step.Dispatch {
				if !step.SideEffect {
					return nil, fmt.Errorf("pipeline %q: dispatch step %q must be side-effecting", p.Name, step.Name)
				}
				if !hasField(step.Inputs, FieldEvidence) {
					return nil, fmt.Errorf("pipeline %q: dispatch step %q must declare %s as input", p.Name, step.Name, FieldEvidence)
				}
			}
		}

		index[p.Name] = p
	}

	return &Registry{pipelines: index}, nil
}

// Get returns the pipeline registered under name.
func (r *Registry) Get(name string) (*Pipeline, bool) {
	p, ok := r.pipelines[name]
	return p, ok
}

// Names lists the registered pipeline names.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.pipelines))
	for name := range r.pipelines {
		names = append(names, name)
	}
	return names
}

func hasField(fields []Field, f Field) bool {
	for _, x := range fields {
		if x == f {
			return true
		}
	}
	return false
}
