package pipelines

import (
	"context"
	"encoding/json"
	"fmt"

	"ai-dispatch-be/internal/entity"
	"ai-dispatch-be/pkg/clarify"
	"ai-dispatch-be/pkg/workflow"
)

type commandEffect struct {
	Status string `json:"status"`
}

// deviceControl resolves the target device, asks the user to confirm the
// action, and only then issues the command. A non-confirm answer routes
// straight to the reply step without touching the device.
func deviceControl(deps Deps) *workflow.Pipeline {
	return &workflow.Pipeline{
		Name: DeviceControl,
		Steps: []workflow.Step{
			{
				Name:          "resolve-device",
				Inputs:        []workflow.Field{workflow.FieldDeviceName},
				ClarifyReason: "which device should be controlled?",
				Candidates:    deviceCandidates(deps, entity.DeviceKindLock),
				Run: func(ctx context.Context, st *workflow.State) error {
					name := st.Slot(workflow.SlotDeviceName)
					device, err := deps.Devices.FindByName(ctx, name)
					if err != nil {
						return err
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
				Name:          "confirm-action",
				Inputs:        []workflow.Field{workflow.FieldConfirmation},
				ClarifyReason: "device commands need an explicit go-ahead",
				Candidates: func(ctx context.Context, st *workflow.State) ([]clarify.Option, error) {
					return []clarify.Option{
						{Label: "Proceed", ID: "confirm"},
						{Label: "Cancel", ID: "cancel"},
					}, nil
				},
				Run: func(ctx context.Context, st *workflow.State) error {
					return nil
				},
				Next: func(st *workflow.State) string {
					if st.Slot(workflow.SlotConfirmation) != "confirm" {
						return "compose-reply"
					}
					return ""
				},
			},
			{
				Name:       "execute-command",
				Inputs:     []workflow.Field{workflow.FieldDeviceName, workflow.FieldConfirmation},
				SideEffect: true,
				Fingerprint: func(st *workflow.State) string {
					return fingerprint(st.SessionID, st.Slot(workflow.SlotDeviceName), deviceAction(st))
				},
				Effect: func(ctx context.Context, st *workflow.State) (json.RawMessage, error) {
					status, err := deps.Commander.ExecuteCommand(ctx, st.Slot(workflow.SlotDeviceName), deviceAction(st))
					if err != nil {
						return nil, err
					}
					return json.Marshal(commandEffect{Status: status})
				},
				Apply: func(st *workflow.State, result json.RawMessage) error {
					var out commandEffect
					if err := json.Unmarshal(result, &out); err != nil {
						return err
					}
					st.Reply = fmt.Sprintf("Done: %s on %s (%s)",
						deviceAction(st), st.Slot(workflow.SlotDeviceName), out.Status)
					return nil
				},
			},
			{
				Name:    "compose-reply",
				Outputs: []workflow.Field{workflow.FieldReply},
				Run: func(ctx context.Context, st *workflow.State) error {
					if st.Reply == "" {
						st.Reply = fmt.Sprintf("Cancelled, no command was sent to %s.", st.Slot(workflow.SlotDeviceName))
					}
					return nil
				},
			},
		},
	}
}

func deviceAction(st *workflow.State) string {
	if st.Intent != nil {
		if action, ok := st.Intent.Slots["action"]; ok && action != "" {
			return action
		}
	}
	return "toggle"
}
