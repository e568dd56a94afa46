package pipelines

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"ai-dispatch-be/internal/entity"
	"ai-dispatch-be/pkg/clarify"
	"ai-dispatch-be/pkg/llm"
	"ai-dispatch-be/pkg/workflow"
)

type analysisEffect struct {
	DeviceName string    `json:"device_name"`
	Summary    string    `json:"summary"`
	ObservedAt time.Time `json:"observed_at"`
}

// videoAnalysis: resolve the camera, analyze its footage, compose a reply.
// The device slot is solicited from the user when neither the input nor the
// classifier supplied it.
func videoAnalysis(deps Deps) *workflow.Pipeline {
	return &workflow.Pipeline{
		Name: VideoAnalysis,
		Steps: []workflow.Step{
			{
				Name:          "resolve-device",
				Inputs:        []workflow.Field{workflow.FieldDeviceName},
				ClarifyReason: "a device name is required to run video analysis",
				Candidates:    deviceCandidates(deps, entity.DeviceKindCamera),
				Run: func(ctx context.Context, st *workflow.State) error {
					name := st.Slot(workflow.SlotDeviceName)
					device, err := deps.Devices.FindByName(ctx, name)
					if err != nil {
						return fmt.Errorf("device lookup failed: %w", err)
					}
					if device == nil {
						return workflow.Errorf(workflow.KindValidation, "unknown device %q", name)
					}
					if device.Status != entity.DeviceStatusOnline {
						return workflow.Errorf(workflow.KindValidation, "device %q is %s", name, device.Status)
					}
					return nil
				},
			},
			{
				Name:       "analyze-footage",
				Inputs:     []workflow.Field{workflow.FieldDeviceName, workflow.FieldRawInput},
				Outputs:    []workflow.Field{workflow.FieldAnalysis},
				SideEffect: true,
				Fingerprint: func(st *workflow.State) string {
					return fingerprint(st.SessionID, st.Slot(workflow.SlotDeviceName), st.RawInput)
				},
				Effect: func(ctx context.Context, st *workflow.State) (json.RawMessage, error) {
					device := st.Slot(workflow.SlotDeviceName)
					prompt := fmt.Sprintf(
						"You are reviewing footage metadata from device %q.\nUser request: %s\nDescribe, in two sentences, what the analysis of the requested footage should report.",
						device, st.RawInput,
					)
					summary, err := deps.LLM.Generate(ctx, prompt, llm.WithTemperature(0.2))
					if err != nil {
						return nil, fmt.Errorf("footage analysis failed: %w", err)
					}
					return json.Marshal(analysisEffect{
						DeviceName: device,
						Summary:    summary,
						ObservedAt: time.Now(),
					})
				},
				Apply: func(st *workflow.State, result json.RawMessage) error {
					var out analysisEffect
					if err := json.Unmarshal(result, &out); err != nil {
						return err
					}
					st.Analysis = &workflow.AnalysisResult{
						DeviceName: out.DeviceName,
						Summary:    out.Summary,
						ObservedAt: out.ObservedAt,
					}
					return nil
				},
			},
			{
				Name:    "compose-reply",
				Inputs:  []workflow.Field{workflow.FieldAnalysis},
				Outputs: []workflow.Field{workflow.FieldReply},
				Run: func(ctx context.Context, st *workflow.State) error {
					st.Reply = fmt.Sprintf("Analysis of %s: %s", st.Analysis.DeviceName, st.Analysis.Summary)
					return nil
				},
			},
		},
	}
}

// deviceCandidates builds the clarification options for a device slot from
// the currently available devices of one kind.
func deviceCandidates(deps Deps, kind string) func(ctx context.Context, st *workflow.State) ([]clarify.Option, error) {
	return func(ctx context.Context, st *workflow.State) ([]clarify.Option, error) {
		devices, err := deps.Devices.FindAvailableByKind(ctx, kind)
		if err != nil {
			return nil, fmt.Errorf("failed to list available %s devices: %w", kind, err)
		}
		options := make([]clarify.Option, 0, len(devices))
		for _, d := range devices {
			label := d.Name
			if d.Location != "" {
				label = fmt.Sprintf("%s (%s)", d.Name, d.Location)
			}
			options = append(options, clarify.Option{Label: label, ID: d.Name})
		}
		return options, nil
	}
}
