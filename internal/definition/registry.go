package definition

import (
	"crypto/sha256"
	"fmt"
	"sort"
	"strings"
	"sync/atomic"

	"github.com/pitabwire/backoffice/model"
)

// snapshot is an immutable set of definitions indexed by ID.
type snapshot struct {
	domains map[string]model.DomainDefinition
	views   map[string]model.ViewDefinition
	sources map[string]model.OptionSourceDefinition
	// viewIDs is sorted.
	viewIDs  []string
	checksum string
}

// Registry serves definitions to concurrent readers. Replace swaps the whole
// set at once, so a reader never sees a half-applied reload.
type Registry struct {
	snap atomic.Pointer[snapshot]
}

// NewRegistry creates a Registry from defs.
func NewRegistry(defs []model.DomainDefinition) *Registry {
	r := &Registry{}
	r.Replace(defs)
	return r
}

// Replace swaps the registry contents. On duplicate IDs the definition from
// the later domain wins; the validator reports duplicates before this point.
func (r *Registry) Replace(defs []model.DomainDefinition) {
	s := &snapshot{
		domains: make(map[string]model.DomainDefinition, len(defs)),
		views:   make(map[string]model.ViewDefinition),
		sources: make(map[string]model.OptionSourceDefinition),
	}

	var checksumParts []string
	for _, def := range defs {
		s.domains[def.Domain] = def
		checksumParts = append(checksumParts, def.Checksum)

		for _, v := range def.Views {
			s.views[v.ID] = v
		}
		for _, src := range def.OptionSources {
			s.sources[src.ID] = src
		}
	}

	s.viewIDs = make([]string, 0, len(s.views))
	for id := range s.views {
		s.viewIDs = append(s.viewIDs, id)
	}
	sort.Strings(s.viewIDs)

	sort.Strings(checksumParts)
	s.checksum = fmt.Sprintf("%x", sha256.Sum256([]byte(strings.Join(checksumParts, ":"))))

	r.snap.Store(s)
}

func (r *Registry) current() *snapshot {
	return r.snap.Load()
}

// GetDomain returns the domain definition with the given name.
func (r *Registry) GetDomain(domain string) (model.DomainDefinition, bool) {
	d, ok := r.current().domains[domain]
	return d, ok
}

// GetView returns the view definition with the given ID.
func (r *Registry) GetView(viewID string) (model.ViewDefinition, bool) {
	v, ok := r.current().views[viewID]
	return v, ok
}

// GetOptionSource returns the option source definition with the given ID.
func (r *Registry) GetOptionSource(id string) (model.OptionSourceDefinition, bool) {
	s, ok := r.current().sources[id]
	return s, ok
}

// ViewIDs returns the IDs of all views, sorted.
func (r *Registry) ViewIDs() []string {
	ids := r.current().viewIDs
	out := make([]string, len(ids))
	copy(out, ids)
	return out
}

// AllOptionSources returns every option source definition sorted by ID.
func (r *Registry) AllOptionSources() []model.OptionSourceDefinition {
	s := r.current()
	out := make([]model.OptionSourceDefinition, 0, len(s.sources))
	for _, src := range s.sources {
		out = append(out, src)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Checksum returns the combined checksum of the loaded definitions.
func (r *Registry) Checksum() string {
	return r.current().checksum
}
