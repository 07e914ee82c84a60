package discovery

import (
	"fmt"

	"CorpusHarvester/internal/ports"
)

// Registry keeps a mapping from strategy names to issue sources.
type Registry struct {
	sources map[string]ports.IssueSource
}

// NewRegistry builds an empty registry.
func NewRegistry() *Registry {
	return &Registry{sources: map[string]ports.IssueSource{}}
}

// Register adds or replaces a source implementation.
func (r *Registry) Register(source ports.IssueSource) {
	if r.sources == nil {
		r.sources = map[string]ports.IssueSource{}
	}
	r.sources[source.Name()] = source
}

// Resolve returns a source by name or an error if it is absent.
func (r *Registry) Resolve(name string) (ports.IssueSource, error) {
	if source, ok := r.sources[name]; ok {
		return source, nil
	}
	return nil, fmt.Errorf("discovery strategy %s is not registered", name)
}
