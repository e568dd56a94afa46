package router

import (
	"log"
)

// Router maps a classified intent to the pipeline that handles it. The table
// is copied at construction and never mutated afterwards; an intent with no
// mapping routes to the fallback pipeline.
type Router struct {
	routes   map[string]string
	fallback string
	logger   *log.Logger
}

// New builds the router from an intent -> pipeline table and a fallback
// pipeline name for unmapped intents.
func New(routes map[string]string, fallback string, logger *log.Logger) *Router {
	copied := make(map[string]string, len(routes))
	for intent, pipeline := range routes {
		copied[intent] = pipeline
	}
	return &Router{
		routes:   copied,
		fallback: fallback,
		logger:   logger,
	}
}

// Route returns the pipeline name for an intent.
func (r *Router) Route(intentType string) string {
	if pipeline, ok := r.routes[intentType]; ok {
		r.logger.Printf("[ROUTER] intent %s -> pipeline %s", intentType, pipeline)
		return pipeline
	}
	r.logger.Printf("[ROUTER] intent %s has no mapping, falling back to %s", intentType, r.fallback)
	return r.fallback
}

// Fallback returns the fallback pipeline name.
func (r *Router) Fallback() string {
	return r.fallback
}
