package provider

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Registry is a thread-safe registry of data providers. It maps provider
// names to Provider instances and keeps, per model type, the providers
// that serve it in registration order.
type Registry struct {
	mu        sync.RWMutex
	providers map[string]Provider
	modelIdx  map[ModelType][]string // model → provider names (priority order)
	defaults  map[ModelType]string
	log       zerolog.Logger
}

// NewRegistry creates a new empty provider registry.
func NewRegistry() *Registry {
	return &Registry{
		providers: make(map[string]Provider),
		modelIdx:  make(map[ModelType][]string),
		defaults:  make(map[ModelType]string),
		log:       zerolog.Nop(),
	}
}

// SetLogger sets the logger used for fallback decisions.
func (r *Registry) SetLogger(l zerolog.Logger) {
	r.mu.Lock()
	r.log = l.With().Str("component", "registry").Logger()
	r.mu.Unlock()
}

// Register adds a provider. Initialize it with Init first when it takes
// credentials. Registering a name again replaces the previous entry.
func (r *Registry) Register(p Provider) error {
	info := p.Info()
	if info.Name == "" {
		return errors.New("provider name cannot be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.providers[info.Name] = p
	for _, model := range p.SupportedModels() {
		if !slices.Contains(r.modelIdx[model], info.Name) {
			r.modelIdx[model] = append(r.modelIdx[model], info.Name)
		}
		if _, ok := r.defaults[model]; !ok {
			r.defaults[model] = info.Name
		}
	}
	return nil
}

// Unregister removes a provider from the registry.
func (r *Registry) Unregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.providers, name)
	for model, names := range r.modelIdx {
		filtered := slices.DeleteFunc(slices.Clone(names), func(n string) bool { return n == name })
		if len(filtered) == 0 {
			delete(r.modelIdx, model)
			delete(r.defaults, model)
			continue
		}
		r.modelIdx[model] = filtered
		if r.defaults[model] == name {
			r.defaults[model] = filtered[0]
		}
	}
}

// Get returns a provider by name.
func (r *Registry) Get(name string) (Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.providers[name]
	if !ok {
		return nil, &ErrProviderNotFound{Name: name}
	}
	return p, nil
}

// List returns info about all registered providers, sorted by name.
func (r *Registry) List() []ProviderInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	infos := make([]ProviderInfo, 0, len(r.providers))
	for _, p := range r.providers {
		infos = append(infos, p.Info())
	}
	sort.Slice(infos, func(i, j int) bool {
		return infos[i].Name < infos[j].Name
	})
	return infos
}

// ProvidersFor returns the providers serving model, default first.
func (r *Registry) ProvidersFor(model ModelType) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.modelIdx[model])
}

// DefaultProvider returns the default provider name for a model type.
func (r *Registry) DefaultProvider(model ModelType) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	name, ok := r.defaults[model]
	return name, ok
}

// SetDefault sets the default provider for a model type.
func (r *Registry) SetDefault(model ModelType, providerName string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.providers[providerName]
	if !ok {
		return &ErrProviderNotFound{Name: providerName}
	}
	if p.Fetcher(model) == nil {
		return &ErrModelNotSupported{Provider: providerName, Model: model}
	}
	r.defaults[model] = providerName
	return nil
}

// Fetch retrieves data for model from the provider named in params, or
// from the model's default provider.
func (r *Registry) Fetch(ctx context.Context, model ModelType, params QueryParams) (*FetchResult, error) {
	providerName := params[ParamProvider]

	r.mu.RLock()
	if providerName == "" {
		providerName = r.defaults[model]
	}
	p, ok := r.providers[providerName]
	r.mu.RUnlock()

	if !ok || providerName == "" {
		return nil, &ErrProviderNotFound{Name: providerName}
	}

	fetcher := p.Fetcher(model)
	if fetcher == nil {
		return nil, &ErrModelNotSupported{Provider: providerName, Model: model}
	}
	if err := ValidateParams(params, fetcher.RequiredParams()); err != nil {
		return nil, err
	}

	result, err := fetcher.Fetch(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("provider %q fetch %s: %w", providerName, model, err)
	}

	result.Provider = providerName
	result.Model = model
	if result.FetchedAt.IsZero() {
		result.FetchedAt = time.Now()
	}
	return result, nil
}

// FetchFrom fetches model from one named provider.
func (r *Registry) FetchFrom(ctx context.Context, name string, model ModelType, params QueryParams) (*FetchResult, error) {
	p := make(QueryParams, len(params)+1)
	for k, v := range params {
		p[k] = v
	}
	p[ParamProvider] = name
	return r.Fetch(ctx, model, p)
}

// FetchInOrder tries the named providers in order and returns the first
// success. Names that are not registered or do not serve model are
// skipped. An empty order means every provider serving model, default
// first. The returned error joins every attempt's failure.
func (r *Registry) FetchInOrder(ctx context.Context, model ModelType, params QueryParams, order []string) (*FetchResult, error) {
	if len(order) == 0 {
		order = r.ProvidersFor(model)
		if def, ok := r.DefaultProvider(model); ok {
			order = append([]string{def}, slices.DeleteFunc(order, func(n string) bool { return n == def })...)
		}
	}

	r.mu.RLock()
	log := r.log
	r.mu.RUnlock()

	var errs []error
	for _, name := range order {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		p, err := r.Get(name)
		if err != nil || p.Fetcher(model) == nil {
			continue
		}
		result, err := r.FetchFrom(ctx, name, model, params)
		if err == nil {
			return result, nil
		}
		log.Debug().Err(err).Str("provider", name).Str("model", string(model)).Msg("provider failed, trying next")
		errs = append(errs, err)
	}
	if len(errs) == 0 {
		return nil, fmt.Errorf("no provider serves model %s", model)
	}
	return nil, fmt.Errorf("all providers failed for model %s: %w", model, errors.Join(errs...))
}

// FetchWithFallback tries the preferred or default provider first, then
// the other providers serving model.
func (r *Registry) FetchWithFallback(ctx context.Context, model ModelType, params QueryParams) (*FetchResult, error) {
	if name := params[ParamProvider]; name != "" {
		others := slices.DeleteFunc(r.ProvidersFor(model), func(n string) bool { return n == name })
		return r.FetchInOrder(ctx, model, params, append([]string{name}, others...))
	}
	return r.FetchInOrder(ctx, model, params, nil)
}

// ModelCoverage returns the providers serving each model type.
func (r *Registry) ModelCoverage() map[ModelType][]string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	coverage := make(map[ModelType][]string, len(r.modelIdx))
	for model, names := range r.modelIdx {
		coverage[model] = slices.Clone(names)
	}
	return coverage
}

var global = NewRegistry()

// Global returns the default global provider registry.
func Global() *Registry {
	return global
}
