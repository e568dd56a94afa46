package pipelines

import (
	"context"
	"encoding/json"

	"ai-dispatch-be/pkg/llm"
	"ai-dispatch-be/pkg/workflow"
)

type chatEffect struct {
	Reply string `json:"reply"`
}

// generalChat is the fallback pipeline: one model call, memoized so a
// resumed session does not pay for the same completion twice.
func generalChat(deps Deps) *workflow.Pipeline {
	return &workflow.Pipeline{
		Name: GeneralChat,
		Steps: []workflow.Step{
			{
				Name:       "generate-reply",
				Inputs:     []workflow.Field{workflow.FieldRawInput},
				Outputs:    []workflow.Field{workflow.FieldReply},
				SideEffect: true,
				Fingerprint: func(st *workflow.State) string {
					return fingerprint(st.SessionID, st.RawInput)
				},
				Effect: func(ctx context.Context, st *workflow.State) (json.RawMessage, error) {
					response, err := deps.LLM.Generate(ctx,
						"You are a helpful facility assistant. Answer concisely.\n\nUser: "+st.RawInput,
						llm.WithTemperature(0.7),
					)
					if err != nil {
						return nil, err
					}
					return json.Marshal(chatEffect{Reply: response})
				},
				Apply: func(st *workflow.State, result json.RawMessage) error {
					var out chatEffect
					if err := json.Unmarshal(result, &out); err != nil {
						return err
					}
					st.Reply = out.Reply
					return nil
				},
			},
		},
	}
}
