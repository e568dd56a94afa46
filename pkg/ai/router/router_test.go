package router

import (
	"io"
	"log"
	"testing"
)

func TestRoute(t *testing.T) {
	routes := map[string]string{
		"VIDEO_ANALYSIS": "video-analysis",
		"RESCUE":         "rescue-dispatch",
	}
	r := New(routes, "general-chat", log.New(io.Discard, "", 0))

	tests := []struct {
		name   string
		intent string
		want   string
	}{
		{name: "mapped intent", intent: "VIDEO_ANALYSIS", want: "video-analysis"},
		{name: "another mapped intent", intent: "RESCUE", want: "rescue-dispatch"},
		{name: "unmapped intent falls back", intent: "SOMETHING_NEW", want: "general-chat"},
		{name: "empty intent falls back", intent: "", want: "general-chat"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := r.Route(tt.intent); got != tt.want {
				t.Errorf("Route(%q) = %q, want %q", tt.intent, got, tt.want)
			}
		})
	}
}

func TestRoutesAreCopied(t *testing.T) {
	routes := map[string]string{"RESCUE": "rescue-dispatch"}
	r := New(routes, "general-chat", log.New(io.Discard, "", 0))

	// Mutating the caller's map must not affect routing.
	routes["RESCUE"] = "hijacked"

	if got := r.Route("RESCUE"); got != "rescue-dispatch" {
		t.Errorf("Route(RESCUE) = %q after caller mutation, want rescue-dispatch", got)
	}
	if r.Fallback() != "general-chat" {
		t.Errorf("Fallback() = %q", r.Fallback())
	}
}
