package pipelines

import (
	"crypto/md5"
	"fmt"
	"log"
	"strings"

	"ai-dispatch-be/internal/repository/contract"
	"ai-dispatch-be/pkg/ai/classifier"
	"ai-dispatch-be/pkg/dispatch"
	"ai-dispatch-be/pkg/evidence"
	"ai-dispatch-be/pkg/llm"
	"ai-dispatch-be/pkg/workflow"
)

// Pipeline names.
const (
	VideoAnalysis  = "video-analysis"
	RescueDispatch = "rescue-dispatch"
	DeviceControl  = "device-control"
	GeneralChat    = "general-chat"
)

// Deps are the collaborators the pipeline steps close over. Everything is an
// interface so tests can substitute stubs.
type Deps struct {
	LLM        llm.LLMProvider
	Devices    contract.DeviceRepository
	Evidence   *evidence.Collector
	Dispatcher dispatch.Dispatcher
	Commander  dispatch.DeviceCommander
	Logger     *log.Logger
}

// BuildRegistry assembles the immutable pipeline registry the engine runs.
// Called once at startup.
func BuildRegistry(deps Deps) (*workflow.Registry, error) {
	return workflow.NewRegistry(
		videoAnalysis(deps),
		rescueDispatch(deps),
		deviceControl(deps),
		generalChat(deps),
	)
}

// Routes is the static intent -> pipeline table for the intent router.
func Routes() map[string]string {
	return map[string]string{
		classifier.IntentVideoAnalysis: VideoAnalysis,
		classifier.IntentRescue:        RescueDispatch,
		classifier.IntentDeviceControl: DeviceControl,
		classifier.IntentChat:          GeneralChat,
	}
}

// fingerprint hashes the logical inputs of a side-effecting step into its
// memoization key.
func fingerprint(parts ...string) string {
	return fmt.Sprintf("%x", md5.Sum([]byte(strings.Join(parts, "|"))))
}
