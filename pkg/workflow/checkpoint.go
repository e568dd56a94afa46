package workflow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"ai-dispatch-be/pkg/clarify"
	"ai-dispatch-be/pkg/kv"
)

// Checkpoint is the immutable snapshot written after every completed step.
// Later checkpoints supersede earlier ones; nothing is deleted.
type Checkpoint struct {
	SessionID string    `json:"session_id"`
	Seq       int       `json:"seq"`
	Pipeline  string    `json:"pipeline"`
	StepName  string    `json:"step_name"`
	PriorStep string    `json:"prior_step"` // empty when this run started fresh
	State     *State    `json:"state"`
	CreatedAt time.Time `json:"created_at"`
}

// Pending records a run suspended at an input-completeness check: which step
// to re-evaluate on resume and the clarification question that was asked.
type Pending struct {
	SessionID  string           `json:"session_id"`
	Pipeline   string           `json:"pipeline"`
	ResumeStep string           `json:"resume_step"`
	Request    *clarify.Request `json:"request"`
	State      *State           `json:"state"`
	Seq        int              `json:"seq"` // checkpoint seq at suspension time
	CreatedAt  time.Time        `json:"created_at"`
}

// CheckpointStore persists checkpoints and pending suspensions through the
// shared KV contract. Key layout: "{sessionId}/{seq}" per snapshot, plus a
// "{sessionId}/latest" pointer and a "{sessionId}/pending" record.
type CheckpointStore struct {
	store  kv.Store
	logger *log.Logger
}

func NewCheckpointStore(store kv.Store, logger *log.Logger) *CheckpointStore {
	return &CheckpointStore{store: store, logger: logger}
}

func checkpointKey(sessionID string, seq int) string {
	return fmt.Sprintf("%s/%d", sessionID, seq)
}

func latestKey(sessionID string) string {
	return sessionID + "/latest"
}

func pendingKey(sessionID string) string {
	return sessionID + "/pending"
}

// Append writes a checkpoint. Sequence numbers are strictly increasing with
// no gaps: the snapshot key is written with put-if-absent, so a concurrent
// writer racing on the same seq loses instead of clobbering history.
func (s *CheckpointStore) Append(ctx context.Context, cp *Checkpoint) error {
	latest, err := s.Latest(ctx, cp.SessionID)
	if err != nil {
		return err
	}

	expected := 1
	if latest != nil {
		expected = latest.Seq + 1
	}
	if cp.Seq != expected {
		return fmt.Errorf("checkpoint seq %d for session %s, expected %d", cp.Seq, cp.SessionID, expected)
	}

	data, err := json.Marshal(cp)
	if err != nil {
		return fmt.Errorf("marshal checkpoint: %w", err)
	}

	if err := s.store.PutIfAbsent(ctx, checkpointKey(cp.SessionID, cp.Seq), data); err != nil {
		if errors.Is(err, kv.ErrKeyExists) {
			return fmt.Errorf("checkpoint %s/%d already written by a concurrent run", cp.SessionID, cp.Seq)
		}
		return err
	}

	seqBytes, _ := json.Marshal(cp.Seq)
	if err := s.store.Put(ctx, latestKey(cp.SessionID), seqBytes); err != nil {
		return err
	}

	s.logger.Printf("[CHECKPOINT] session=%s seq=%d step=%s", cp.SessionID, cp.Seq, cp.StepName)
	return nil
}

// Latest loads the most recent checkpoint for a session, or nil when the
// session has none.
func (s *CheckpointStore) Latest(ctx context.Context, sessionID string) (*Checkpoint, error) {
	raw, found, err := s.store.Get(ctx, latestKey(sessionID))
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}

	var seq int
	if err := json.Unmarshal(raw, &seq); err != nil {
		return nil, fmt.Errorf("corrupt latest pointer for session %s: %w", sessionID, err)
	}

	return s.Load(ctx, sessionID, seq)
}

// Load fetches one checkpoint by sequence number.
func (s *CheckpointStore) Load(ctx context.Context, sessionID string, seq int) (*Checkpoint, error) {
	raw, found, err := s.store.Get(ctx, checkpointKey(sessionID, seq))
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, fmt.Errorf("checkpoint %s/%d not found", sessionID, seq)
	}

	var cp Checkpoint
	if err := json.Unmarshal(raw, &cp); err != nil {
		return nil, fmt.Errorf("corrupt checkpoint %s/%d: %w", sessionID, seq, err)
	}
	return &cp, nil
}

// History returns all checkpoints for a session in sequence order.
func (s *CheckpointStore) History(ctx context.Context, sessionID string) ([]*Checkpoint, error) {
	latest, err := s.Latest(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if latest == nil {
		return nil, nil
	}

	history := make([]*Checkpoint, 0, latest.Seq)
	for seq := 1; seq <= latest.Seq; seq++ {
		cp, err := s.Load(ctx, sessionID, seq)
		if err != nil {
			return nil, err
		}
		history = append(history, cp)
	}
	return history, nil
}

// SavePending records a suspension so any process can resume the session.
func (s *CheckpointStore) SavePending(ctx context.Context, p *Pending) error {
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshal pending: %w", err)
	}
	return s.store.Put(ctx, pendingKey(p.SessionID), data)
}

// LoadPending returns the open suspension for a session, or nil.
func (s *CheckpointStore) LoadPending(ctx context.Context, sessionID string) (*Pending, error) {
	raw, found, err := s.store.Get(ctx, pendingKey(sessionID))
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}

	var p Pending
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("corrupt pending record for session %s: %w", sessionID, err)
	}
	if p.Request == nil {
		return nil, nil // cleared
	}
	return &p, nil
}

// ClearPending marks the suspension answered. The key is overwritten with an
// empty record rather than deleted, matching the supersede-not-delete
// discipline of the rest of the store.
func (s *CheckpointStore) ClearPending(ctx context.Context, sessionID string) error {
	data, _ := json.Marshal(&Pending{SessionID: sessionID})
	return s.store.Put(ctx, pendingKey(sessionID), data)
}

// LastSlotValue recalls what a slot resolved to in the latest checkpointed
// state of this session. Feeds clarification default ordering: the device the
// user picked last time becomes the suggested default next time.
func (s *CheckpointStore) LastSlotValue(ctx context.Context, sessionID, slot string) (string, bool) {
	latest, err := s.Latest(ctx, sessionID)
	if err != nil || latest == nil || latest.State == nil {
		return "", false
	}
	if v := latest.State.Slot(slot); v != "" {
		return v, true
	}
	return "", false
}
