package clarify

import (
	"context"
	"errors"
	"fmt"
	"log"
)

// MaxOptions caps how many candidates a clarification question may carry.
const MaxOptions = 10

// ErrUnresolvable is wrapped by Resolve when an answer matches neither an
// option id nor a permitted free-form value. The slot stays unset; the engine
// never guesses.
var ErrUnresolvable = errors.New("clarify: answer does not resolve to a value")

// Option is one selectable candidate: a human-readable label and the
// identifier that becomes the slot value when chosen.
type Option struct {
	Label string `json:"label"`
	ID    string `json:"id"`
}

// Request is the structured question returned to the caller when a required
// slot is missing.
type Request struct {
	Slot         string   `json:"slot"`
	Options      []Option `json:"options"`
	DefaultIndex int      `json:"default_index"`
	Reason       string   `json:"reason"`

	// AllowFreeForm permits answers that are not one of the options.
	// Persisted with the pending suspension, not shown to the caller.
	AllowFreeForm bool `json:"allow_free_form"`
}

// Answer is the caller's reply to a Request: either a chosen option id or a
// free-form value.
type Answer struct {
	OptionID string `json:"option_id,omitempty"`
	Value    string `json:"value,omitempty"`
}

func (a Answer) IsZero() bool {
	return a.OptionID == "" && a.Value == ""
}

// PriorValueSource recalls the value a slot resolved to in an earlier
// successful run of the same session, e.g. the device the user picked last
// time. Backed by the checkpoint history.
type PriorValueSource interface {
	LastSlotValue(ctx context.Context, sessionID, slot string) (string, bool)
}

// Manager builds clarification requests and resolves answers back into slot
// values.
type Manager struct {
	prior  PriorValueSource
	logger *log.Logger
}

func NewManager(prior PriorValueSource, logger *log.Logger) *Manager {
	return &Manager{prior: prior, logger: logger}
}

// BuildRequest assembles the question for a missing slot. If a prior run of
// the session resolved a semantically related value and that value is still
// among the candidates, it is moved to index 0 and becomes the default; it is
// never inserted twice.
func (m *Manager) BuildRequest(ctx context.Context, sessionID, slot string, candidates []Option, reason string, allowFreeForm bool) *Request {
	options := make([]Option, 0, len(candidates))
	options = append(options, candidates...)

	if m.prior != nil {
		if prev, ok := m.prior.LastSlotValue(ctx, sessionID, slot); ok {
			if idx := indexOfID(options, prev); idx > 0 {
				m.logger.Printf("[CLARIFY] promoting previously used %s=%q to default", slot, prev)
				promoted := options[idx]
				options = append(options[:idx], options[idx+1:]...)
				options = append([]Option{promoted}, options...)
			}
		}
	}

	if len(options) > MaxOptions {
		options = options[:MaxOptions]
	}

	return &Request{
		Slot:          slot,
		Options:       options,
		DefaultIndex:  0,
		Reason:        reason,
		AllowFreeForm: allowFreeForm,
	}
}

// Resolve validates an answer against the request it responds to and returns
// the value the slot should take. When options were provided the answer must
// name one of them by id; free-form values are accepted only when the request
// permits them. An unresolvable answer yields ErrUnresolvable, not a guess.
func (m *Manager) Resolve(req *Request, answer Answer) (string, error) {
	if answer.OptionID != "" {
		if indexOfID(req.Options, answer.OptionID) >= 0 {
			return answer.OptionID, nil
		}
		return "", fmt.Errorf("%w: option %q is not one of the offered choices for slot %q", ErrUnresolvable, answer.OptionID, req.Slot)
	}

	if answer.Value != "" {
		// A free-form value that happens to match an option label or id is
		// resolved to that option's id.
		for _, opt := range req.Options {
			if opt.ID == answer.Value || opt.Label == answer.Value {
				return opt.ID, nil
			}
		}
		if req.AllowFreeForm {
			return answer.Value, nil
		}
		return "", fmt.Errorf("%w: slot %q requires one of the offered options", ErrUnresolvable, req.Slot)
	}

	return "", fmt.Errorf("%w: empty answer for slot %q", ErrUnresolvable, req.Slot)
}

func indexOfID(options []Option, id string) int {
	for i, opt := range options {
		if opt.ID == id {
			return i
		}
	}
	return -1
}
