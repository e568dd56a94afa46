package evidence

import (
	"context"
	"log"
)

// ResourceChecker reports whether the resource a dispatch would commit
// (a rescue unit, a device) is currently available.
type ResourceChecker interface {
	CheckResourceAvailability(ctx context.Context, target string) (bool, error)
}

// RelationCounter counts distinct knowledge-graph relations supporting the
// proposed action.
type RelationCounter interface {
	CountSupportingRelations(ctx context.Context, subject string) (int, error)
}

// CaseCounter counts distinct historical case references similar to the
// current incident.
type CaseCounter interface {
	CountSupportingCases(ctx context.Context, query string) (int, error)
}

// Collector gathers a Bundle from the three sources. Each source may fail
// independently; a failure degrades that source's contribution to zero/false
// instead of failing the run, so the gate can still render a deterministic
// verdict.
type Collector struct {
	resources ResourceChecker
	relations RelationCounter
	cases     CaseCounter
	logger    *log.Logger
}

func NewCollector(resources ResourceChecker, relations RelationCounter, cases CaseCounter, logger *log.Logger) *Collector {
	return &Collector{
		resources: resources,
		relations: relations,
		cases:     cases,
		logger:    logger,
	}
}

// Collect queries all three sources. target names the resource to commit,
// subject keys the knowledge-graph lookup, query describes the incident for
// case matching.
func (c *Collector) Collect(ctx context.Context, target, subject, query string) Bundle {
	var bundle Bundle

	available, err := c.resources.CheckResourceAvailability(ctx, target)
	if err != nil {
		c.logger.Printf("[EVIDENCE] resource check failed for %q, counting as unavailable: %v", target, err)
	} else {
		bundle.ResourceAvailable = available
	}

	relations, err := c.relations.CountSupportingRelations(ctx, subject)
	if err != nil {
		c.logger.Printf("[EVIDENCE] relation count failed for %q, counting as 0: %v", subject, err)
	} else {
		bundle.RelationCount = relations
	}

	cases, err := c.cases.CountSupportingCases(ctx, query)
	if err != nil {
		c.logger.Printf("[EVIDENCE] case count failed, counting as 0: %v", err)
	} else {
		bundle.CaseCount = cases
	}

	return bundle
}
