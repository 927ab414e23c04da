package actions

import (
	"context"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/dmitrijs2005/filingapi/internal/logging"
)

// Validator checks one precondition of an action. It returns an empty
// string when the check passes and a user-facing message otherwise. A
// non-nil error means the check itself could not be performed.
type Validator interface {
	Name() string
	Validate(ctx context.Context, rc *RequestContext) (string, error)
}

type Registry struct {
	mu         sync.RWMutex
	validators map[string]Validator
	log        logging.Logger
}

func NewRegistry(log logging.Logger) *Registry {
	return &Registry{
		validators: map[string]Validator{},
		log:        log.With("module", "action_registry"),
	}
}

// Register adds validators, replacing any with the same name.
func (r *Registry) Register(vs ...Validator) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, v := range vs {
		r.validators[v.Name()] = v
	}
}

func (r *Registry) Get(name string) (Validator, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.validators[name]
	return v, ok
}

// Names lists the registered validator names in lexical order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.validators))
	for n := range r.validators {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Run executes the named validators concurrently and returns the failure
// messages in the order the names were given. Unknown names are logged and
// skipped.
func (r *Registry) Run(ctx context.Context, names []string, rc *RequestContext) ([]string, error) {
	results := make([]string, len(names))
	g, gctx := errgroup.WithContext(ctx)
	for i, name := range names {
		v, ok := r.Get(name)
		if !ok {
			r.log.Warn(ctx, "Action validator not found.", "validator", name)
			continue
		}
		g.Go(func() error {
			msg, err := v.Validate(gctx, rc)
			results[i] = msg
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var msgs []string
	for _, m := range results {
		if m != "" {
			msgs = append(msgs, m)
		}
	}
	return msgs, nil
}
