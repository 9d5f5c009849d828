package provider

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/seenimoa/dcfvalue/internal/infra"
)

// BaseFetcher provides common functionality for fetcher implementations.
// Embed it in concrete fetchers to get caching and rate limiting.
type BaseFetcher struct {
	model       ModelType
	description string
	required    []string
	optional    []string
	cacheTTL    time.Duration
	cache       *infra.Cache[any]
	limiter     *infra.RateLimiter
}

// FetcherOption customizes a BaseFetcher.
type FetcherOption func(*BaseFetcher)

// WithCacheTTL sets how long results stay cached.
func WithCacheTTL(ttl time.Duration) FetcherOption {
	return func(b *BaseFetcher) { b.cacheTTL = ttl }
}

// WithRateLimit gives the fetcher its own limiter.
func WithRateLimit(perSecond float64, burst int) FetcherOption {
	return func(b *BaseFetcher) { b.limiter = infra.NewRateLimiter(perSecond, burst) }
}

// WithLimiter shares a limiter between fetchers of the same provider.
func WithLimiter(l *infra.RateLimiter) FetcherOption {
	return func(b *BaseFetcher) {
		if l != nil {
			b.limiter = l
		}
	}
}

// NewBaseFetcher creates a base fetcher. Results are cached for an hour
// and requests limited to five per second unless opts say otherwise.
func NewBaseFetcher(model ModelType, desc string, required, optional []string, opts ...FetcherOption) BaseFetcher {
	b := BaseFetcher{
		model:       model,
		description: desc,
		required:    required,
		optional:    optional,
		cacheTTL:    time.Hour,
	}
	for _, opt := range opts {
		opt(&b)
	}
	if b.limiter == nil {
		b.limiter = infra.NewRateLimiter(5, 5)
	}
	b.cache = infra.NewCache[any](b.cacheTTL)
	return b
}

func (b *BaseFetcher) ModelType() ModelType     { return b.model }
func (b *BaseFetcher) Description() string      { return b.description }
func (b *BaseFetcher) RequiredParams() []string { return b.required }
func (b *BaseFetcher) OptionalParams() []string { return b.optional }

// CacheGet retrieves a value from the fetcher's cache.
func (b *BaseFetcher) CacheGet(key string) (any, bool) {
	return b.cache.Get(key)
}

// CacheSet stores a value in the fetcher's cache.
func (b *BaseFetcher) CacheSet(key string, value any) {
	b.cache.Set(key, value)
}

// RateLimit waits until a request slot is available.
func (b *BaseFetcher) RateLimit(ctx context.Context) error {
	return b.limiter.Wait(ctx)
}

// Cached serves params from the cache, or calls load after taking a rate
// limit slot and caches what it returns.
func (b *BaseFetcher) Cached(ctx context.Context, params QueryParams, load func(ctx context.Context) (any, error)) (*FetchResult, error) {
	key := CacheKey(b.model, params)
	if v, ok := b.cache.Get(key); ok {
		return &FetchResult{Data: v, FetchedAt: time.Now(), Cached: true}, nil
	}
	if err := b.RateLimit(ctx); err != nil {
		return nil, err
	}
	v, err := load(ctx)
	if err != nil {
		return nil, err
	}
	b.cache.Set(key, v)
	return &FetchResult{Data: v, FetchedAt: time.Now()}, nil
}

// CacheKey builds a cache key from model type and query parameters.
// The provider override is not part of the key.
func CacheKey(model ModelType, params QueryParams) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		if k == ParamProvider {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var sb strings.Builder
	sb.WriteString(string(model))
	for _, k := range keys {
		sb.WriteString(":" + k + "=" + params[k])
	}
	return sb.String()
}

// BaseProvider provides common functionality for provider implementations.
type BaseProvider struct {
	info        ProviderInfo
	fetchers    map[ModelType]Fetcher
	credentials map[string]string
}

// NewBaseProvider creates a base provider.
func NewBaseProvider(name, description, website string, creds []ProviderCredential) BaseProvider {
	return BaseProvider{
		info: ProviderInfo{
			Name:        name,
			Description: description,
			Website:     website,
			Credentials: creds,
		},
		fetchers:    make(map[ModelType]Fetcher),
		credentials: make(map[string]string),
	}
}

func (bp *BaseProvider) Info() ProviderInfo { return bp.info }

// Init validates and stores credentials.
func (bp *BaseProvider) Init(credentials map[string]string) error {
	for _, cred := range bp.info.Credentials {
		if !cred.Required {
			continue
		}
		if val := credentials[cred.Name]; val == "" {
			return &ErrInvalidCredentials{
				Provider: bp.info.Name,
				Detail:   "missing required credential: " + cred.Name,
			}
		}
	}
	bp.credentials = make(map[string]string, len(credentials))
	for k, v := range credentials {
		bp.credentials[k] = v
	}
	return nil
}

func (bp *BaseProvider) Fetcher(model ModelType) Fetcher {
	return bp.fetchers[model]
}

// SupportedModels returns the registered models sorted by name.
func (bp *BaseProvider) SupportedModels() []ModelType {
	models := make([]ModelType, 0, len(bp.fetchers))
	for m := range bp.fetchers {
		models = append(models, m)
	}
	sort.Slice(models, func(i, j int) bool { return models[i] < models[j] })
	return models
}

func (bp *BaseProvider) Ping(ctx context.Context) error {
	return nil // Override in concrete providers.
}

// RegisterFetcher adds a fetcher to this provider.
func (bp *BaseProvider) RegisterFetcher(f Fetcher) {
	bp.fetchers[f.ModelType()] = f
	bp.info.Models = bp.SupportedModels()
}

// Credential returns a stored credential value.
func (bp *BaseProvider) Credential(name string) string {
	return bp.credentials[name]
}
