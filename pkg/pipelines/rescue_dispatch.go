package pipelines

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"ai-dispatch-be/pkg/llm"
	"ai-dispatch-be/pkg/workflow"

	"github.com/google/uuid"
)

type incidentEffect struct {
	Severity string `json:"severity"`
	Summary  string `json:"summary"`
}

type commitEffect struct {
	DispatchID  string    `json:"dispatch_id"`
	CommittedAt time.Time `json:"committed_at"`
}

// rescueDispatch: assess the incident, gather supporting evidence, plan a
// dispatch and commit it. The commit step is dispatch-class: the evidence
// gate decides whether the plan is executed or downgraded to a suggestion.
func rescueDispatch(deps Deps) *workflow.Pipeline {
	return &workflow.Pipeline{
		Name: RescueDispatch,
		Steps: []workflow.Step{
			{
				Name:          "assess-incident",
				Inputs:        []workflow.Field{workflow.FieldRawInput, workflow.FieldLocation},
				Outputs:       []workflow.Field{workflow.FieldIncident},
				ClarifyReason: "the incident location is needed before help can be sent",
				AllowFreeForm: true,
				SideEffect:    true,
				Fingerprint: func(st *workflow.State) string {
					return fingerprint(st.SessionID, st.Slot(workflow.SlotLocation), st.RawInput)
				},
				Effect: func(ctx context.Context, st *workflow.State) (json.RawMessage, error) {
					prompt := fmt.Sprintf(
						"An incident was reported at %q: %s\nRespond with ONLY a JSON object {\"severity\": \"low|medium|high\", \"summary\": \"...\"}.",
						st.Slot(workflow.SlotLocation), st.RawInput,
					)
					response, err := deps.LLM.Generate(ctx, prompt, llm.WithTemperature(0.0))
					if err != nil {
						return nil, fmt.Errorf("incident assessment failed: %w", err)
					}
					var out incidentEffect
					if err := json.Unmarshal([]byte(extractJSON(response)), &out); err != nil {
						return nil, fmt.Errorf("incident assessment returned unparseable output: %w", err)
					}
					return json.Marshal(out)
				},
				Apply: func(st *workflow.State, result json.RawMessage) error {
					var out incidentEffect
					if err := json.Unmarshal(result, &out); err != nil {
						return err
					}
					st.Incident = &workflow.IncidentReport{
						Location: st.Slot(workflow.SlotLocation),
						Severity: out.Severity,
						Summary:  out.Summary,
					}
					return nil
				},
			},
			{
				Name:    "collect-evidence",
				Inputs:  []workflow.Field{workflow.FieldIncident},
				Outputs: []workflow.Field{workflow.FieldEvidence},
				Run: func(ctx context.Context, st *workflow.State) error {
					bundle := deps.Evidence.Collect(ctx, "", st.Incident.Severity, st.Incident.Summary)
					st.Evidence = &bundle
					return nil
				},
			},
			{
				Name:    "plan-dispatch",
				Inputs:  []workflow.Field{workflow.FieldIncident},
				Outputs: []workflow.Field{workflow.FieldPlan},
				Run: func(ctx context.Context, st *workflow.State) error {
					st.Plan = &workflow.DispatchPlan{
						PlanID: uuid.NewString(),
						Target: st.Incident.Location,
						Summary: fmt.Sprintf("Send a responder to %s: %s (severity %s)",
							st.Incident.Location, st.Incident.Summary, st.Incident.Severity),
					}
					return nil
				},
			},
			{
				Name:       "commit-dispatch",
				Inputs:     []workflow.Field{workflow.FieldEvidence, workflow.FieldPlan},
				SideEffect: true,
				Dispatch:   true,
				Fingerprint: func(st *workflow.State) string {
					return st.Plan.PlanID
				},
				Effect: func(ctx context.Context, st *workflow.State) (json.RawMessage, error) {
					dispatchID, err := deps.Dispatcher.CommitPlan(ctx, *st.Plan)
					if err != nil {
						return nil, err
					}
					return json.Marshal(commitEffect{DispatchID: dispatchID, CommittedAt: time.Now()})
				},
				Apply: func(st *workflow.State, result json.RawMessage) error {
					var out commitEffect
					if err := json.Unmarshal(result, &out); err != nil {
						return err
					}
					st.Plan.CommittedAt = &out.CommittedAt
					return nil
				},
			},
			{
				Name:    "compose-reply",
				Inputs:  []workflow.Field{workflow.FieldPlan},
				Outputs: []workflow.Field{workflow.FieldReply},
				Run: func(ctx context.Context, st *workflow.State) error {
					if st.Disposition == workflow.DispositionSuggestOnly {
						st.Reply = fmt.Sprintf(
							"I can't dispatch automatically (%s). Suggested action: %s",
							strings.Join(st.GateReasons, ", "), st.Plan.Summary,
						)
						return nil
					}
					st.Reply = "Dispatched: " + st.Plan.Summary
					return nil
				},
			},
		},
	}
}

func extractJSON(response string) string {
	startIdx := strings.Index(response, "{")
	endIdx := strings.LastIndex(response, "}")
	if startIdx == -1 || endIdx == -1 || endIdx <= startIdx {
		return ""
	}
	return response[startIdx : endIdx+1]
}
