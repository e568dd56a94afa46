package evidence

// Bundle is the set of supporting facts gathered before a dispatch-class
// action. It is attached to the run state, never persisted on its own.
type Bundle struct {
	ResourceAvailable bool `json:"resource_available"`
	RelationCount     int  `json:"relation_count"`
	CaseCount         int  `json:"case_count"`
}

// Minimum support a dispatch needs before it may be committed automatically.
const (
	MinRelations = 3
	MinCases     = 2
)

// Reason codes rendered to the caller when a dispatch is refused. Stable
// strings: clients and tests match on them.
const (
	ReasonResourceUnavailable = "resource unavailable"
	ReasonRelationsBelowMin   = "relations<3"
	ReasonCasesBelowMin       = "cases<2"
)

// Evaluate decides dispatch eligibility. Pure function: same bundle, same
// verdict. Every failing condition is reported, not just the first, so the
// refusal can be explained in full. There is no override path here; human
// approval is a separate confirmation cycle upstream.
func Evaluate(b Bundle) (bool, []string) {
	var reasons []string

	if !b.ResourceAvailable {
		reasons = append(reasons, ReasonResourceUnavailable)
	}
	if b.RelationCount < MinRelations {
		reasons = append(reasons, ReasonRelationsBelowMin)
	}
	if b.CaseCount < MinCases {
		reasons = append(reasons, ReasonCasesBelowMin)
	}

	return len(reasons) == 0, reasons
}
