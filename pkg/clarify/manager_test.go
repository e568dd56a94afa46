package clarify

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"testing"
)

type priorStub struct {
	value string
	ok    bool
}

func (p priorStub) LastSlotValue(ctx context.Context, sessionID, slot string) (string, bool) {
	return p.value, p.ok
}

func testLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}

func manyOptions(n int) []Option {
	options := make([]Option, 0, n)
	for i := 0; i < n; i++ {
		options = append(options, Option{Label: fmt.Sprintf("Device %d", i), ID: fmt.Sprintf("device-%d", i)})
	}
	return options
}

func TestBuildRequest(t *testing.T) {
	candidates := []Option{
		{Label: "Lobby Cam", ID: "lobby-cam"},
		{Label: "Garage Cam", ID: "garage-cam"},
		{Label: "Roof Cam", ID: "roof-cam"},
	}

	tests := []struct {
		name        string
		prior       PriorValueSource
		candidates  []Option
		wantFirstID string
		wantLen     int
	}{
		{
			name:        "no prior keeps candidate order",
			prior:       priorStub{},
			candidates:  candidates,
			wantFirstID: "lobby-cam",
			wantLen:     3,
		},
		{
			name:        "prior value promoted to default without duplication",
			prior:       priorStub{value: "garage-cam", ok: true},
			candidates:  candidates,
			wantFirstID: "garage-cam",
			wantLen:     3,
		},
		{
			name:        "prior already first stays put",
			prior:       priorStub{value: "lobby-cam", ok: true},
			candidates:  candidates,
			wantFirstID: "lobby-cam",
			wantLen:     3,
		},
		{
			name:        "prior not among candidates is ignored",
			prior:       priorStub{value: "basement-cam", ok: true},
			candidates:  candidates,
			wantFirstID: "lobby-cam",
			wantLen:     3,
		},
		{
			name:        "options capped",
			prior:       priorStub{},
			candidates:  manyOptions(25),
			wantFirstID: "device-0",
			wantLen:     MaxOptions,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewManager(tt.prior, testLogger())
			req := m.BuildRequest(context.Background(), "session-1", "device_name", tt.candidates, "pick one", false)

			if len(req.Options) != tt.wantLen {
				t.Fatalf("len(Options) = %d, want %d", len(req.Options), tt.wantLen)
			}
			if req.Options[0].ID != tt.wantFirstID {
				t.Errorf("Options[0].ID = %q, want %q", req.Options[0].ID, tt.wantFirstID)
			}
			if req.DefaultIndex != 0 {
				t.Errorf("DefaultIndex = %d, want 0", req.DefaultIndex)
			}

			seen := map[string]bool{}
			for _, opt := range req.Options {
				if seen[opt.ID] {
					t.Errorf("option %q appears twice", opt.ID)
				}
				seen[opt.ID] = true
			}
		})
	}
}

func TestResolve(t *testing.T) {
	req := &Request{
		Slot: "device_name",
		Options: []Option{
			{Label: "Lobby Cam", ID: "lobby-cam"},
			{Label: "Garage Cam", ID: "garage-cam"},
		},
	}
	freeForm := &Request{
		Slot:          "location",
		AllowFreeForm: true,
	}

	tests := []struct {
		name      string
		req       *Request
		answer    Answer
		want      string
		wantError bool
	}{
		{
			name:   "option id match",
			req:    req,
			answer: Answer{OptionID: "garage-cam"},
			want:   "garage-cam",
		},
		{
			name:      "unknown option id",
			req:       req,
			answer:    Answer{OptionID: "roof-cam"},
			wantError: true,
		},
		{
			name:   "free-form value matching an option label",
			req:    req,
			answer: Answer{Value: "Lobby Cam"},
			want:   "lobby-cam",
		},
		{
			name:      "free-form value rejected when options are binding",
			req:       req,
			answer:    Answer{Value: "somewhere else"},
			wantError: true,
		},
		{
			name:   "free-form value accepted when allowed",
			req:    freeForm,
			answer: Answer{Value: "third floor, east wing"},
			want:   "third floor, east wing",
		},
		{
			name:      "empty answer",
			req:       req,
			answer:    Answer{},
			wantError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewManager(nil, testLogger())
			got, err := m.Resolve(tt.req, tt.answer)

			if tt.wantError {
				if !errors.Is(err, ErrUnresolvable) {
					t.Fatalf("err = %v, want ErrUnresolvable", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("value = %q, want %q", got, tt.want)
			}
		})
	}
}
