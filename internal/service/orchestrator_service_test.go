// FILE: internal/service/orchestrator_service_test.go
package service

import (
	"context"
	"io"
	"log"
	"testing"
	"time"

	"ai-dispatch-be/internal/dto"
	"ai-dispatch-be/internal/entity"
	"ai-dispatch-be/internal/pkg/logger"
	"ai-dispatch-be/pkg/ai/classifier"
	"ai-dispatch-be/pkg/ai/router"
	"ai-dispatch-be/pkg/clarify"
	"ai-dispatch-be/pkg/kv/memorykv"
	"ai-dispatch-be/pkg/lock"
	"ai-dispatch-be/pkg/workflow"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memorySessions struct {
	sessions map[uuid.UUID]*entity.Session
}

func newMemorySessions() *memorySessions {
	return &memorySessions{sessions: map[uuid.UUID]*entity.Session{}}
}

func (m *memorySessions) Create(ctx context.Context, session *entity.Session) error {
	copied := *session
	m.sessions[session.Id] = &copied
	return nil
}

func (m *memorySessions) Update(ctx context.Context, session *entity.Session) error {
	copied := *session
	m.sessions[session.Id] = &copied
	return nil
}

func (m *memorySessions) FindById(ctx context.Context, id uuid.UUID) (*entity.Session, error) {
	session, ok := m.sessions[id]
	if !ok {
		return nil, nil
	}
	copied := *session
	return &copied, nil
}

func (m *memorySessions) FindAllByUserId(ctx context.Context, userId uuid.UUID) ([]*entity.Session, error) {
	var out []*entity.Session
	for _, session := range m.sessions {
		if session.UserId == userId {
			copied := *session
			out = append(out, &copied)
		}
	}
	return out, nil
}

type fixedClassifier struct {
	result *classifier.Result
}

func (f *fixedClassifier) Classify(ctx context.Context, rawInput string) (*classifier.Result, error) {
	return f.result, nil
}

type nopLogger struct{}

func (nopLogger) Debug(module, message string, details map[string]interface{}) {}
func (nopLogger) Info(module, message string, details map[string]interface{})  {}
func (nopLogger) Warn(module, message string, details map[string]interface{})  {}
func (nopLogger) Error(module, message string, details map[string]interface{}) {}
func (nopLogger) Sync() error                                                  { return nil }

func (nopLogger) GetLogs(level, module string, limit, offset int) ([]logger.LogEntry, error) {
	return nil, nil
}

func (nopLogger) GetLogById(id string) (*logger.LogEntry, error) { return nil, nil }

// chatAndAskPipelines is a minimal registry: "general-chat" completes in one
// step, "device-control" suspends until the device slot is answered.
func chatAndAskPipelines() []*workflow.Pipeline {
	chat := &workflow.Pipeline{
		Name: "general-chat",
		Steps: []workflow.Step{
			{
				Name:    "reply",
				Inputs:  []workflow.Field{workflow.FieldRawInput},
				Outputs: []workflow.Field{workflow.FieldReply},
				Run: func(ctx context.Context, st *workflow.State) error {
					st.Reply = "echo: " + st.RawInput
					return nil
				},
			},
		},
	}
	ask := &workflow.Pipeline{
		Name: "device-control",
		Steps: []workflow.Step{
			{
				Name:          "resolve-device",
				Inputs:        []workflow.Field{workflow.FieldDeviceName},
				ClarifyReason: "which device?",
				Candidates: func(ctx context.Context, st *workflow.State) ([]clarify.Option, error) {
					return []clarify.Option{{Label: "Front Door Lock", ID: "front-door-lock"}}, nil
				},
				Run: func(ctx context.Context, st *workflow.State) error { return nil },
			},
			{
				Name:    "reply",
				Outputs: []workflow.Field{workflow.FieldReply},
				Run: func(ctx context.Context, st *workflow.State) error {
					st.Reply = "locked " + st.Slot(workflow.SlotDeviceName)
					return nil
				},
			},
		},
	}
	return []*workflow.Pipeline{chat, ask}
}

func newTestService(t *testing.T, verdict *classifier.Result) (IOrchestratorService, *memorySessions) {
	t.Helper()

	logger := log.New(io.Discard, "", 0)
	store := memorykv.New()
	checkpoints := workflow.NewCheckpointStore(store, logger)
	registry, err := workflow.NewRegistry(chatAndAskPipelines()...)
	require.NoError(t, err)

	engine := workflow.NewEngine(
		registry,
		checkpoints,
		workflow.NewTaskExecutor(store, logger),
		clarify.NewManager(checkpoints, logger),
		lock.NewMemoryLocker(),
		nil,
		logger,
	)

	routes := map[string]string{
		classifier.IntentDeviceControl: "device-control",
		classifier.IntentChat:          "general-chat",
	}
	sessions := newMemorySessions()

	svc := NewOrchestratorService(
		sessions,
		&fixedClassifier{result: verdict},
		router.New(routes, "general-chat", logger),
		engine,
		checkpoints,
		30*time.Second,
		nopLogger{},
	)
	return svc, sessions
}

func TestSubmitStartsAndCompletesChat(t *testing.T) {
	svc, sessions := newTestService(t, &classifier.Result{
		IntentType: classifier.IntentChat,
		Confidence: 0.92,
	})
	userId := uuid.New()

	res, err := svc.Submit(context.Background(), userId, &dto.SubmitRequest{Input: "hello there"})
	require.NoError(t, err)

	assert.Equal(t, string(workflow.StatusCompleted), res.Status)
	assert.Equal(t, "general-chat", res.Pipeline)
	assert.Equal(t, "echo: hello there", res.Reply)
	assert.NotEmpty(t, res.SessionId)

	stored, err := sessions.FindById(context.Background(), uuid.MustParse(res.SessionId))
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, string(workflow.StatusCompleted), stored.LastStatus)
}

func TestSubmitSuspendsAndResumes(t *testing.T) {
	svc, _ := newTestService(t, &classifier.Result{
		IntentType: classifier.IntentDeviceControl,
		Confidence: 0.88,
	})
	userId := uuid.New()
	ctx := context.Background()

	res, err := svc.Submit(ctx, userId, &dto.SubmitRequest{Input: "lock the door"})
	require.NoError(t, err)

	require.Equal(t, string(workflow.StatusSuspended), res.Status)
	require.NotNil(t, res.Clarify)
	assert.Equal(t, workflow.SlotDeviceName, res.Clarify.Slot)
	require.Len(t, res.Clarify.Options, 1)

	res, err = svc.Submit(ctx, userId, &dto.SubmitRequest{
		SessionId: res.SessionId,
		Answer:    &dto.SubmitAnswer{OptionId: "front-door-lock"},
	})
	require.NoError(t, err)

	assert.Equal(t, string(workflow.StatusCompleted), res.Status)
	assert.Equal(t, "locked front-door-lock", res.Reply)
}

func TestSubmitRequiresInputForNewSession(t *testing.T) {
	svc, _ := newTestService(t, &classifier.Result{IntentType: classifier.IntentChat})

	_, err := svc.Submit(context.Background(), uuid.New(), &dto.SubmitRequest{})
	assert.True(t, workflow.IsKind(err, workflow.KindValidation))
}

func TestSubmitPipelineOverrideSkipsClassification(t *testing.T) {
	// The classifier would route to device-control; the override wins.
	svc, _ := newTestService(t, &classifier.Result{IntentType: classifier.IntentDeviceControl})

	res, err := svc.Submit(context.Background(), uuid.New(), &dto.SubmitRequest{
		Input:            "hello",
		PipelineOverride: "general-chat",
	})
	require.NoError(t, err)
	assert.Equal(t, "general-chat", res.Pipeline)
	assert.Equal(t, string(workflow.StatusCompleted), res.Status)
}

func TestResumeRejectsForeignSession(t *testing.T) {
	svc, _ := newTestService(t, &classifier.Result{IntentType: classifier.IntentDeviceControl})
	ctx := context.Background()

	res, err := svc.Submit(ctx, uuid.New(), &dto.SubmitRequest{Input: "lock the door"})
	require.NoError(t, err)
	require.Equal(t, string(workflow.StatusSuspended), res.Status)

	// A different user cannot touch the session.
	_, err = svc.Submit(ctx, uuid.New(), &dto.SubmitRequest{
		SessionId: res.SessionId,
		Answer:    &dto.SubmitAnswer{OptionId: "front-door-lock"},
	})
	assert.True(t, workflow.IsKind(err, workflow.KindValidation))
}

func TestGetHistoryAndSessions(t *testing.T) {
	svc, _ := newTestService(t, &classifier.Result{IntentType: classifier.IntentChat})
	userId := uuid.New()
	ctx := context.Background()

	res, err := svc.Submit(ctx, userId, &dto.SubmitRequest{Input: "hello"})
	require.NoError(t, err)

	history, err := svc.GetHistory(ctx, userId, uuid.MustParse(res.SessionId))
	require.NoError(t, err)
	require.Len(t, history.Checkpoints, 1)
	assert.Equal(t, 1, history.Checkpoints[0].Seq)
	assert.Equal(t, "reply", history.Checkpoints[0].StepName)

	sessions, err := svc.GetSessions(ctx, userId)
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, res.SessionId, sessions[0].SessionId)

	// Another user sees neither the history nor the session.
	_, err = svc.GetHistory(ctx, uuid.New(), uuid.MustParse(res.SessionId))
	assert.True(t, workflow.IsKind(err, workflow.KindValidation))
}
