package implementation

import (
	"context"
	"log"

	"ai-dispatch-be/internal/entity"
	"ai-dispatch-be/internal/repository/contract"
	"ai-dispatch-be/pkg/evidence"
	"ai-dispatch-be/pkg/llm"

	"github.com/pgvector/pgvector-go"
)

// caseMaxDistance is the cosine distance under which a historical case
// counts as supporting the incident query. Embeddings are normalized, so
// the usable range is [0, 2].
const caseMaxDistance = 0.5

// EvidenceSources adapts the repositories to the three evidence source
// contracts the collector consumes. Failures propagate; degrading them to
// zero/false is the collector's job, not ours.
//
// A nil embedder is valid: case counting then uses keyword matching instead
// of vector similarity.
type EvidenceSources struct {
	devices  contract.DeviceRepository
	graph    contract.GraphRepository
	cases    contract.RescueCaseRepository
	embedder llm.Embedder
}

var (
	_ evidence.ResourceChecker = &EvidenceSources{}
	_ evidence.RelationCounter = &EvidenceSources{}
	_ evidence.CaseCounter     = &EvidenceSources{}
)

func NewEvidenceSources(devices contract.DeviceRepository, graph contract.GraphRepository, cases contract.RescueCaseRepository, embedder llm.Embedder) *EvidenceSources {
	return &EvidenceSources{devices: devices, graph: graph, cases: cases, embedder: embedder}
}

// CheckResourceAvailability reports whether at least one responder unit is
// online. target currently selects the device kind; an empty target means
// the responder pool.
func (s *EvidenceSources) CheckResourceAvailability(ctx context.Context, target string) (bool, error) {
	kind := target
	if kind == "" {
		kind = entity.DeviceKindResponder
	}
	count, err := s.devices.CountAvailableByKind(ctx, kind)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (s *EvidenceSources) CountSupportingRelations(ctx context.Context, subject string) (int, error) {
	count, err := s.graph.CountRelations(ctx, subject)
	return int(count), err
}

// CountSupportingCases prefers embedding similarity over keyword matching:
// "person collapsed in hall B" should find past medical incidents that share
// no keywords. A failed embedding falls back to the keyword path rather
// than losing the case signal entirely.
func (s *EvidenceSources) CountSupportingCases(ctx context.Context, query string) (int, error) {
	if s.embedder != nil {
		vec, err := s.embedder.Embed(ctx, query)
		if err == nil {
			count, err := s.cases.CountNearest(ctx, pgvector.NewVector(vec), caseMaxDistance)
			return int(count), err
		}
		log.Printf("[EVIDENCE] embedding failed (%v), falling back to keyword match", err)
	}
	count, err := s.cases.CountMatching(ctx, query)
	return int(count), err
}
