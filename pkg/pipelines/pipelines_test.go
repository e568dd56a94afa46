package pipelines

import (
	"context"
	"fmt"
	"io"
	"log"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"ai-dispatch-be/internal/entity"
	"ai-dispatch-be/pkg/clarify"
	"ai-dispatch-be/pkg/evidence"
	"ai-dispatch-be/pkg/kv/memorykv"
	"ai-dispatch-be/pkg/llm"
	"ai-dispatch-be/pkg/lock"
	"ai-dispatch-be/pkg/workflow"
)

// stubLLM returns canned responses keyed by a substring of the prompt.
type stubLLM struct {
	responses map[string]string
}

func (s *stubLLM) Chat(ctx context.Context, history []llm.Message, options ...llm.Option) (string, error) {
	if len(history) == 0 {
		return "", fmt.Errorf("empty history")
	}
	return s.Generate(ctx, history[len(history)-1].Content, options...)
}

func (s *stubLLM) Generate(ctx context.Context, prompt string, options ...llm.Option) (string, error) {
	for key, response := range s.responses {
		if strings.Contains(prompt, key) {
			return response, nil
		}
	}
	return "generic model output", nil
}

type stubDevices struct {
	devices []*entity.Device
}

func (s *stubDevices) Create(ctx context.Context, device *entity.Device) error { return nil }

func (s *stubDevices) FindByName(ctx context.Context, name string) (*entity.Device, error) {
	for _, d := range s.devices {
		if d.Name == name {
			return d, nil
		}
	}
	return nil, nil
}

func (s *stubDevices) FindAvailableByKind(ctx context.Context, kind string) ([]*entity.Device, error) {
	var out []*entity.Device
	for _, d := range s.devices {
		if d.Kind == kind && d.Status == entity.DeviceStatusOnline {
			out = append(out, d)
		}
	}
	return out, nil
}

func (s *stubDevices) CountAvailableByKind(ctx context.Context, kind string) (int64, error) {
	devices, _ := s.FindAvailableByKind(ctx, kind)
	return int64(len(devices)), nil
}

func (s *stubDevices) UpdateStatus(ctx context.Context, name, status string) error {
	for _, d := range s.devices {
		if d.Name == name {
			d.Status = status
		}
	}
	return nil
}

type stubSources struct {
	bundle evidence.Bundle
}

func (s *stubSources) CheckResourceAvailability(ctx context.Context, target string) (bool, error) {
	return s.bundle.ResourceAvailable, nil
}

func (s *stubSources) CountSupportingRelations(ctx context.Context, subject string) (int, error) {
	return s.bundle.RelationCount, nil
}

func (s *stubSources) CountSupportingCases(ctx context.Context, query string) (int, error) {
	return s.bundle.CaseCount, nil
}

type stubDispatcher struct {
	commits int32
}

func (s *stubDispatcher) CommitPlan(ctx context.Context, plan workflow.DispatchPlan) (string, error) {
	atomic.AddInt32(&s.commits, 1)
	return "dispatch-1", nil
}

type stubCommander struct {
	commands int32
}

func (s *stubCommander) ExecuteCommand(ctx context.Context, deviceName, action string) (string, error) {
	atomic.AddInt32(&s.commands, 1)
	return "accepted", nil
}

type harness struct {
	engine     *workflow.Engine
	dispatcher *stubDispatcher
	commander  *stubCommander
}

func newHarness(t *testing.T, bundle evidence.Bundle) *harness {
	t.Helper()

	logger := log.New(io.Discard, "", 0)
	devices := &stubDevices{devices: []*entity.Device{
		{Name: "lobby-cam", Kind: entity.DeviceKindCamera, Location: "Lobby", Status: entity.DeviceStatusOnline},
		{Name: "garage-cam", Kind: entity.DeviceKindCamera, Location: "Garage", Status: entity.DeviceStatusOnline},
		{Name: "front-door-lock", Kind: entity.DeviceKindLock, Location: "Front Door", Status: entity.DeviceStatusOnline},
	}}
	sources := &stubSources{bundle: bundle}
	dispatcher := &stubDispatcher{}
	commander := &stubCommander{}

	model := &stubLLM{responses: map[string]string{
		"reviewing footage": "Nothing unusual between 2am and 4am.",
		"incident was reported": `{"severity": "high", "summary": "person collapsed"}`,
	}}

	registry, err := BuildRegistry(Deps{
		LLM:        model,
		Devices:    devices,
		Evidence:   evidence.NewCollector(sources, sources, sources, logger),
		Dispatcher: dispatcher,
		Commander:  commander,
		Logger:     logger,
	})
	if err != nil {
		t.Fatalf("BuildRegistry: %v", err)
	}

	store := memorykv.New()
	checkpoints := workflow.NewCheckpointStore(store, logger)
	engine := workflow.NewEngine(
		registry,
		checkpoints,
		workflow.NewTaskExecutor(store, logger),
		clarify.NewManager(checkpoints, logger),
		lock.NewMemoryLocker(),
		nil,
		logger,
	)

	return &harness{engine: engine, dispatcher: dispatcher, commander: commander}
}

func TestVideoAnalysisAsksForDevice(t *testing.T) {
	h := newHarness(t, evidence.Bundle{})
	ctx := context.Background()

	st := workflow.NewState("va-1", "user-1", "check the camera footage from last night", time.Now())
	res, err := h.engine.Run(ctx, VideoAnalysis, st)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if res.Status != workflow.StatusSuspended {
		t.Fatalf("Status = %s, want suspended", res.Status)
	}
	if res.Clarify.Slot != workflow.SlotDeviceName {
		t.Errorf("Clarify.Slot = %q, want %s", res.Clarify.Slot, workflow.SlotDeviceName)
	}
	if len(res.Clarify.Options) != 2 {
		t.Fatalf("len(Options) = %d, want the 2 online cameras", len(res.Clarify.Options))
	}
	if len(res.Clarify.Options) > clarify.MaxOptions {
		t.Errorf("options exceed cap")
	}

	// Answering completes the run with a reply about the chosen device.
	res, err = h.engine.Resume(ctx, "va-1", clarify.Answer{OptionID: "garage-cam"})
	if err != nil {
		t.Fatalf("Resume: %v", err)
	}
	if res.Status != workflow.StatusCompleted {
		t.Fatalf("Status = %s, want completed (failure: %v)", res.Status, res.Failure)
	}
	if !strings.Contains(res.State.Reply, "garage-cam") {
		t.Errorf("Reply = %q, want it to name the device", res.State.Reply)
	}
}

func TestVideoAnalysisRejectsOfflineDevice(t *testing.T) {
	h := newHarness(t, evidence.Bundle{})

	st := workflow.NewState("va-2", "user-1", "check the camera", time.Now())
	st.SetSlot(workflow.SlotDeviceName, "basement-cam")

	res, err := h.engine.Run(context.Background(), VideoAnalysis, st)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Status != workflow.StatusFailed {
		t.Fatalf("Status = %s, want failed", res.Status)
	}
	if res.Failure.Kind != workflow.KindValidation {
		t.Errorf("Failure.Kind = %s, want %s", res.Failure.Kind, workflow.KindValidation)
	}
}

func TestRescueDispatchSuggestOnlyOnWeakEvidence(t *testing.T) {
	weak := evidence.Bundle{ResourceAvailable: true, RelationCount: 1, CaseCount: 3}
	h := newHarness(t, weak)
	ctx := context.Background()

	st := workflow.NewState("rd-1", "user-1", "someone collapsed, send help", time.Now())
	res, err := h.engine.Run(ctx, RescueDispatch, st)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Status != workflow.StatusSuspended {
		t.Fatalf("Status = %s, want suspended on location", res.Status)
	}
	if res.Clarify.Slot != workflow.SlotLocation {
		t.Fatalf("Clarify.Slot = %q, want %s", res.Clarify.Slot, workflow.SlotLocation)
	}

	res, err = h.engine.Resume(ctx, "rd-1", clarify.Answer{Value: "third floor, east wing"})
	if err != nil {
		t.Fatalf("Resume: %v", err)
	}
	if res.Status != workflow.StatusCompleted {
		t.Fatalf("Status = %s, want completed (failure: %v)", res.Status, res.Failure)
	}

	if res.State.Disposition != workflow.DispositionSuggestOnly {
		t.Errorf("Disposition = %q, want %q", res.State.Disposition, workflow.DispositionSuggestOnly)
	}
	if h.dispatcher.commits != 0 {
		t.Errorf("dispatch committed %d times despite weak evidence", h.dispatcher.commits)
	}

	found := false
	for _, reason := range res.State.GateReasons {
		if reason == evidence.ReasonRelationsBelowMin {
			found = true
		}
	}
	if !found {
		t.Errorf("GateReasons = %v, want to contain %q", res.State.GateReasons, evidence.ReasonRelationsBelowMin)
	}
	if !strings.Contains(res.State.Reply, "Suggested action") {
		t.Errorf("Reply = %q, want a suggestion", res.State.Reply)
	}
	if res.State.Plan.CommittedAt != nil {
		t.Errorf("plan marked committed despite refusal")
	}
}

func TestRescueDispatchCommitsOnStrongEvidence(t *testing.T) {
	strong := evidence.Bundle{ResourceAvailable: true, RelationCount: 5, CaseCount: 4}
	h := newHarness(t, strong)
	ctx := context.Background()

	st := workflow.NewState("rd-2", "user-1", "someone collapsed, send help", time.Now())
	st.SetSlot(workflow.SlotLocation, "third floor, east wing")

	res, err := h.engine.Run(ctx, RescueDispatch, st)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Status != workflow.StatusCompleted {
		t.Fatalf("Status = %s, want completed (failure: %v)", res.Status, res.Failure)
	}

	if res.State.Disposition != workflow.DispositionDispatched {
		t.Errorf("Disposition = %q, want %q", res.State.Disposition, workflow.DispositionDispatched)
	}
	if h.dispatcher.commits != 1 {
		t.Errorf("dispatch commits = %d, want 1", h.dispatcher.commits)
	}
	if res.State.Plan.CommittedAt == nil {
		t.Errorf("plan not marked committed")
	}
	if res.State.Incident == nil || res.State.Incident.Severity != "high" {
		t.Errorf("Incident = %+v, want assessed severity high", res.State.Incident)
	}
}

func TestDeviceControlRequiresConfirmation(t *testing.T) {
	h := newHarness(t, evidence.Bundle{})
	ctx := context.Background()

	st := workflow.NewState("dc-1", "user-1", "lock the front door", time.Now())
	st.SetSlot(workflow.SlotDeviceName, "front-door-lock")

	res, err := h.engine.Run(ctx, DeviceControl, st)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Status != workflow.StatusSuspended {
		t.Fatalf("Status = %s, want suspended on confirmation", res.Status)
	}
	if res.Clarify.Slot != workflow.SlotConfirmation {
		t.Fatalf("Clarify.Slot = %q, want %s", res.Clarify.Slot, workflow.SlotConfirmation)
	}
	if h.commander.commands != 0 {
		t.Fatalf("command ran before confirmation")
	}

	res, err = h.engine.Resume(ctx, "dc-1", clarify.Answer{OptionID: "confirm"})
	if err != nil {
		t.Fatalf("Resume: %v", err)
	}
	if res.Status != workflow.StatusCompleted {
		t.Fatalf("Status = %s, want completed (failure: %v)", res.Status, res.Failure)
	}
	if h.commander.commands != 1 {
		t.Errorf("commands = %d, want 1", h.commander.commands)
	}
	if !strings.Contains(res.State.Reply, "front-door-lock") {
		t.Errorf("Reply = %q, want it to name the device", res.State.Reply)
	}
}

func TestDeviceControlCancelSkipsCommand(t *testing.T) {
	h := newHarness(t, evidence.Bundle{})
	ctx := context.Background()

	st := workflow.NewState("dc-2", "user-1", "lock the front door", time.Now())
	st.SetSlot(workflow.SlotDeviceName, "front-door-lock")

	res, err := h.engine.Run(ctx, DeviceControl, st)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Status != workflow.StatusSuspended {
		t.Fatalf("Status = %s, want suspended", res.Status)
	}

	res, err = h.engine.Resume(ctx, "dc-2", clarify.Answer{OptionID: "cancel"})
	if err != nil {
		t.Fatalf("Resume: %v", err)
	}
	if res.Status != workflow.StatusCompleted {
		t.Fatalf("Status = %s, want completed (failure: %v)", res.Status, res.Failure)
	}
	if h.commander.commands != 0 {
		t.Errorf("commands = %d, want 0 after cancel", h.commander.commands)
	}
	if !strings.Contains(res.State.Reply, "Cancelled") {
		t.Errorf("Reply = %q, want a cancellation notice", res.State.Reply)
	}
}

func TestGeneralChatReplies(t *testing.T) {
	h := newHarness(t, evidence.Bundle{})

	st := workflow.NewState("gc-1", "user-1", "what are the visiting hours?", time.Now())
	res, err := h.engine.Run(context.Background(), GeneralChat, st)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Status != workflow.StatusCompleted {
		t.Fatalf("Status = %s, want completed (failure: %v)", res.Status, res.Failure)
	}
	if res.State.Reply == "" {
		t.Errorf("Reply is empty")
	}
}
