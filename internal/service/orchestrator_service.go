// FILE: internal/service/orchestrator_service.go
package service

import (
	"context"
	"time"

	"ai-dispatch-be/internal/dto"
	"ai-dispatch-be/internal/entity"
	"ai-dispatch-be/internal/pkg/logger"
	"ai-dispatch-be/internal/repository/contract"
	"ai-dispatch-be/pkg/ai/classifier"
	"ai-dispatch-be/pkg/ai/router"
	"ai-dispatch-be/pkg/clarify"
	"ai-dispatch-be/pkg/workflow"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// IOrchestratorService is the application entrypoint for the engine: it
// classifies fresh input, routes it to a pipeline and runs or resumes the
// session.
type IOrchestratorService interface {
	Submit(ctx context.Context, userId uuid.UUID, request *dto.SubmitRequest) (*dto.SubmitResponse, error)
	GetSessions(ctx context.Context, userId uuid.UUID) ([]*dto.SessionInfo, error)
	GetHistory(ctx context.Context, userId uuid.UUID, sessionId uuid.UUID) (*dto.SessionHistoryResponse, error)
}

type orchestratorService struct {
	sessions    contract.SessionRepository
	classifier  classifier.Classifier
	router      *router.Router
	engine      *workflow.Engine
	checkpoints *workflow.CheckpointStore
	validate    *validator.Validate
	runTimeout  time.Duration
	sysLogger   logger.ILogger
}

func NewOrchestratorService(
	sessions contract.SessionRepository,
	intentClassifier classifier.Classifier,
	intentRouter *router.Router,
	engine *workflow.Engine,
	checkpoints *workflow.CheckpointStore,
	runTimeout time.Duration,
	sysLogger logger.ILogger,
) IOrchestratorService {
	return &orchestratorService{
		sessions:    sessions,
		classifier:  intentClassifier,
		router:      intentRouter,
		engine:      engine,
		checkpoints: checkpoints,
		validate:    validator.New(),
		runTimeout:  runTimeout,
		sysLogger:   sysLogger,
	}
}

func (s *orchestratorService) Submit(ctx context.Context, userId uuid.UUID, request *dto.SubmitRequest) (*dto.SubmitResponse, error) {
	if err := s.validate.Struct(request); err != nil {
		return nil, workflow.Errorf(workflow.KindValidation, "invalid request: %v", err)
	}

	ctx, cancel := context.WithTimeout(ctx, s.runTimeout)
	defer cancel()

	if request.SessionId == "" {
		return s.start(ctx, userId, request)
	}
	return s.resume(ctx, userId, request)
}

// start classifies the input, routes it and runs the chosen pipeline from
// step zero under a fresh session.
func (s *orchestratorService) start(ctx context.Context, userId uuid.UUID, request *dto.SubmitRequest) (*dto.SubmitResponse, error) {
	sessionId := uuid.New()

	pipelineName := request.PipelineOverride
	st := workflow.NewState(sessionId.String(), userId.String(), request.Input, time.Now())

	if pipelineName == "" {
		verdict, err := s.classifier.Classify(ctx, request.Input)
		if err != nil {
			return nil, workflow.Errorf(workflow.KindDependency, "intent classification failed: %v", err)
		}
		pipelineName = s.router.Route(verdict.IntentType)
		st.Intent = &workflow.IntentResult{
			Type:       verdict.IntentType,
			Confidence: verdict.Confidence,
			Slots:      verdict.Slots,
		}
		for slot, value := range verdict.Slots {
			st.SetSlot(slot, value)
		}
		s.sysLogger.Info("orchestrator", "input classified", map[string]interface{}{
			"session_id": sessionId.String(),
			"intent":     verdict.IntentType,
			"confidence": verdict.Confidence,
			"pipeline":   pipelineName,
		})
	}

	session := &entity.Session{
		Id:         sessionId,
		UserId:     userId,
		Pipeline:   pipelineName,
		LastStatus: "RUNNING",
		CreatedAt:  time.Now(),
	}
	if err := s.sessions.Create(ctx, session); err != nil {
		return nil, workflow.Errorf(workflow.KindInternal, "failed to create session: %v", err)
	}

	result, err := s.engine.Run(ctx, pipelineName, st)
	if err != nil {
		s.recordStatus(ctx, session, "FAILED")
		return nil, err
	}

	s.recordStatus(ctx, session, string(result.Status))
	return toSubmitResponse(sessionId.String(), pipelineName, result), nil
}

// resume feeds the caller's answer (possibly empty) back into the suspended
// or interrupted session.
func (s *orchestratorService) resume(ctx context.Context, userId uuid.UUID, request *dto.SubmitRequest) (*dto.SubmitResponse, error) {
	sessionId, err := uuid.Parse(request.SessionId)
	if err != nil {
		return nil, workflow.Errorf(workflow.KindValidation, "invalid session id %q", request.SessionId)
	}

	session, err := s.sessions.FindById(ctx, sessionId)
	if err != nil {
		return nil, workflow.Errorf(workflow.KindInternal, "failed to load session: %v", err)
	}
	if session == nil || session.UserId != userId {
		return nil, workflow.Errorf(workflow.KindValidation, "session %s not found", sessionId)
	}

	var answer clarify.Answer
	if request.Answer != nil {
		answer = clarify.Answer{OptionID: request.Answer.OptionId, Value: request.Answer.Value}
	}

	result, err := s.engine.Resume(ctx, sessionId.String(), answer)
	if err != nil {
		return nil, err
	}

	s.recordStatus(ctx, session, string(result.Status))
	return toSubmitResponse(sessionId.String(), session.Pipeline, result), nil
}

func (s *orchestratorService) GetSessions(ctx context.Context, userId uuid.UUID) ([]*dto.SessionInfo, error) {
	sessions, err := s.sessions.FindAllByUserId(ctx, userId)
	if err != nil {
		return nil, workflow.Errorf(workflow.KindInternal, "failed to list sessions: %v", err)
	}

	infos := make([]*dto.SessionInfo, 0, len(sessions))
	for _, session := range sessions {
		infos = append(infos, &dto.SessionInfo{
			SessionId:  session.Id.String(),
			Pipeline:   session.Pipeline,
			LastStatus: session.LastStatus,
			CreatedAt:  session.CreatedAt,
		})
	}
	return infos, nil
}

func (s *orchestratorService) GetHistory(ctx context.Context, userId uuid.UUID, sessionId uuid.UUID) (*dto.SessionHistoryResponse, error) {
	session, err := s.sessions.FindById(ctx, sessionId)
	if err != nil {
		return nil, workflow.Errorf(workflow.KindInternal, "failed to load session: %v", err)
	}
	if session == nil || session.UserId != userId {
		return nil, workflow.Errorf(workflow.KindValidation, "session %s not found", sessionId)
	}

	history, err := s.checkpoints.History(ctx, sessionId.String())
	if err != nil {
		return nil, workflow.Errorf(workflow.KindInternal, "failed to load checkpoints: %v", err)
	}

	infos := make([]dto.CheckpointInfo, 0, len(history))
	for _, cp := range history {
		infos = append(infos, dto.CheckpointInfo{
			Seq:       cp.Seq,
			Pipeline:  cp.Pipeline,
			StepName:  cp.StepName,
			PriorStep: cp.PriorStep,
			CreatedAt: cp.CreatedAt,
		})
	}
	return &dto.SessionHistoryResponse{SessionId: sessionId.String(), Checkpoints: infos}, nil
}

func (s *orchestratorService) recordStatus(ctx context.Context, session *entity.Session, status string) {
	now := time.Now()
	session.LastStatus = status
	session.UpdatedAt = &now
	if err := s.sessions.Update(ctx, session); err != nil {
		s.sysLogger.Warn("orchestrator", "failed to record session status", map[string]interface{}{
			"session_id": session.Id.String(),
			"status":     status,
			"error":      err.Error(),
		})
	}
}

func toSubmitResponse(sessionId, pipeline string, result *workflow.Result) *dto.SubmitResponse {
	response := &dto.SubmitResponse{
		SessionId: sessionId,
		Status:    string(result.Status),
		Pipeline:  pipeline,
	}
	if result.State != nil {
		response.Reply = result.State.Reply
		response.Disposition = result.State.Disposition
		response.GateReasons = result.State.GateReasons
	}
	if result.Clarify != nil {
		payload := &dto.ClarifyPayload{
			Slot:         result.Clarify.Slot,
			DefaultIndex: result.Clarify.DefaultIndex,
			Reason:       result.Clarify.Reason,
		}
		for _, opt := range result.Clarify.Options {
			payload.Options = append(payload.Options, dto.ClarifyOption{Label: opt.Label, Id: opt.ID})
		}
		response.Clarify = payload
	}
	if result.Failure != nil {
		response.Failure = &dto.FailurePayload{
			Kind:    string(result.Failure.Kind),
			Message: result.Failure.Message,
		}
	}
	return response
}
