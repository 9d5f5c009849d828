package provider

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

// mockFetcher implements the Fetcher interface for testing.
type mockFetcher struct {
	BaseFetcher
	fetchFn func(ctx context.Context, params QueryParams) (*FetchResult, error)
}

func newMockFetcher(model ModelType, required []string) *mockFetcher {
	return &mockFetcher{
		BaseFetcher: NewBaseFetcher(model, "mock fetcher for "+string(model), required, nil),
	}
}

func (m *mockFetcher) Fetch(ctx context.Context, params QueryParams) (*FetchResult, error) {
	if m.fetchFn != nil {
		return m.fetchFn(ctx, params)
	}
	return &FetchResult{
		Data:      "mock-data",
		FetchedAt: time.Now(),
	}, nil
}

// mockProvider implements the Provider interface for testing.
type mockProvider struct {
	BaseProvider
}

func newMockProvider(name string, models ...ModelType) *mockProvider {
	mp := &mockProvider{
		BaseProvider: NewBaseProvider(name, "Mock "+name, "https://example.com", nil),
	}
	for _, m := range models {
		mp.RegisterFetcher(newMockFetcher(m, []string{ParamSymbol}))
	}
	return mp
}

func withFetch(p *mockProvider, model ModelType, fn func(ctx context.Context, params QueryParams) (*FetchResult, error)) *mockProvider {
	f := newMockFetcher(model, []string{ParamSymbol})
	f.fetchFn = fn
	p.RegisterFetcher(f)
	return p
}

func failing(name string) func(context.Context, QueryParams) (*FetchResult, error) {
	return func(context.Context, QueryParams) (*FetchResult, error) {
		return nil, errors.New(name + " down")
	}
}

// ── Registry ──

func TestRegistryRegisterAndGet(t *testing.T) {
	reg := NewRegistry()
	p := newMockProvider("test-provider", ModelEquityInfo, ModelEquityHistorical)

	if err := p.Init(nil); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	if err := reg.Register(p); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	got, err := reg.Get("test-provider")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Info().Name != "test-provider" {
		t.Errorf("expected name test-provider, got %s", got.Info().Name)
	}
	if len(got.Info().Models) != 2 {
		t.Errorf("expected 2 models in info, got %v", got.Info().Models)
	}
}

func TestRegistryRejectsEmptyName(t *testing.T) {
	if err := NewRegistry().Register(newMockProvider("")); err == nil {
		t.Error("expected error for empty provider name")
	}
}

func TestRegistryGetNotFound(t *testing.T) {
	reg := NewRegistry()
	_, err := reg.Get("nonexistent")
	var nf *ErrProviderNotFound
	if !errors.As(err, &nf) {
		t.Errorf("expected ErrProviderNotFound, got %T", err)
	}
}

func TestRegistryList(t *testing.T) {
	reg := NewRegistry()
	_ = reg.Register(newMockProvider("beta", ModelEquityInfo))
	_ = reg.Register(newMockProvider("alpha", ModelEquityHistorical))

	list := reg.List()
	if len(list) != 2 {
		t.Fatalf("expected 2 providers, got %d", len(list))
	}
	if list[0].Name != "alpha" || list[1].Name != "beta" {
		t.Errorf("expected alphabetical order, got %s, %s", list[0].Name, list[1].Name)
	}
}

func TestRegistryProvidersFor(t *testing.T) {
	reg := NewRegistry()
	_ = reg.Register(newMockProvider("p1", ModelEquityInfo, ModelBalanceSheet))
	_ = reg.Register(newMockProvider("p2", ModelEquityInfo))
	_ = reg.Register(newMockProvider("p3", ModelBalanceSheet))

	if provs := reg.ProvidersFor(ModelEquityInfo); len(provs) != 2 {
		t.Fatalf("expected 2 providers for EquityInfo, got %d", len(provs))
	}
	if provs := reg.ProvidersFor(ModelBalanceSheet); len(provs) != 2 {
		t.Fatalf("expected 2 providers for BalanceSheet, got %d", len(provs))
	}
	if provs := reg.ProvidersFor(ModelFredSeries); len(provs) != 0 {
		t.Fatalf("expected 0 providers for FredSeries, got %d", len(provs))
	}
}

func TestRegistrySetDefault(t *testing.T) {
	reg := NewRegistry()
	_ = reg.Register(newMockProvider("p1", ModelEquityInfo))
	_ = reg.Register(newMockProvider("p2", ModelEquityInfo))

	def, ok := reg.DefaultProvider(ModelEquityInfo)
	if !ok || def != "p1" {
		t.Errorf("expected default p1, got %s (ok=%v)", def, ok)
	}

	if err := reg.SetDefault(ModelEquityInfo, "p2"); err != nil {
		t.Fatalf("SetDefault failed: %v", err)
	}
	def, _ = reg.DefaultProvider(ModelEquityInfo)
	if def != "p2" {
		t.Errorf("expected default p2, got %s", def)
	}

	if err := reg.SetDefault(ModelEquityInfo, "nope"); err == nil {
		t.Error("expected error setting default to non-existent provider")
	}
	var ns *ErrModelNotSupported
	if err := reg.SetDefault(ModelTreasuryRates, "p1"); !errors.As(err, &ns) {
		t.Errorf("expected ErrModelNotSupported, got %v", err)
	}
}

func TestRegistryUnregister(t *testing.T) {
	reg := NewRegistry()
	_ = reg.Register(newMockProvider("p1", ModelEquityInfo))
	_ = reg.Register(newMockProvider("p2", ModelEquityInfo))

	reg.Unregister("p1")

	if _, err := reg.Get("p1"); err == nil {
		t.Error("expected error after unregister")
	}
	provs := reg.ProvidersFor(ModelEquityInfo)
	if len(provs) != 1 || provs[0] != "p2" {
		t.Errorf("expected only p2 after unregister, got %v", provs)
	}
	if def, _ := reg.DefaultProvider(ModelEquityInfo); def != "p2" {
		t.Errorf("expected default to shift to p2, got %s", def)
	}
}

func TestRegistryFetch(t *testing.T) {
	reg := NewRegistry()
	_ = reg.Register(newMockProvider("test", ModelEquityInfo))

	result, err := reg.Fetch(context.Background(), ModelEquityInfo, QueryParams{ParamSymbol: "AAPL"})
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if result.Provider != "test" {
		t.Errorf("expected provider 'test', got %s", result.Provider)
	}
	if result.Model != ModelEquityInfo {
		t.Errorf("expected model EquityInfo, got %s", result.Model)
	}
	if result.Data != "mock-data" {
		t.Errorf("unexpected data: %v", result.Data)
	}
}

func TestRegistryFetchMissingParam(t *testing.T) {
	reg := NewRegistry()
	_ = reg.Register(newMockProvider("test", ModelEquityInfo))

	_, err := reg.Fetch(context.Background(), ModelEquityInfo, QueryParams{})
	var mp *ErrMissingParam
	if !errors.As(err, &mp) || mp.Param != ParamSymbol {
		t.Errorf("expected ErrMissingParam for symbol, got %T: %v", err, err)
	}
}

func TestRegistryFetchUnsupportedModel(t *testing.T) {
	reg := NewRegistry()
	_ = reg.Register(newMockProvider("test", ModelEquityInfo))

	_, err := reg.Fetch(context.Background(), ModelFredSeries, QueryParams{ParamSymbol: "AAPL"})
	if err == nil {
		t.Fatal("expected error for unsupported model")
	}
}

func TestRegistryFetchFrom(t *testing.T) {
	reg := NewRegistry()
	_ = reg.Register(newMockProvider("p1", ModelEquityInfo))
	_ = reg.Register(withFetch(newMockProvider("p2"), ModelEquityInfo, func(context.Context, QueryParams) (*FetchResult, error) {
		return &FetchResult{Data: "from-p2"}, nil
	}))

	params := QueryParams{ParamSymbol: "AAPL"}
	result, err := reg.FetchFrom(context.Background(), "p2", ModelEquityInfo, params)
	if err != nil {
		t.Fatalf("FetchFrom failed: %v", err)
	}
	if result.Data != "from-p2" {
		t.Errorf("expected data from p2, got %v", result.Data)
	}
	if _, ok := params[ParamProvider]; ok {
		t.Error("FetchFrom must not modify the caller's params")
	}
}

func TestRegistryFetchInOrder(t *testing.T) {
	reg := NewRegistry()
	var p1Calls atomic.Int32
	_ = reg.Register(withFetch(newMockProvider("p1"), ModelCashFlowStatement, func(context.Context, QueryParams) (*FetchResult, error) {
		p1Calls.Add(1)
		return nil, errors.New("p1 down")
	}))
	_ = reg.Register(withFetch(newMockProvider("p2"), ModelCashFlowStatement, func(context.Context, QueryParams) (*FetchResult, error) {
		return &FetchResult{Data: "p2-data"}, nil
	}))
	_ = reg.Register(newMockProvider("p3", ModelEquityInfo))

	ctx := context.Background()
	params := QueryParams{ParamSymbol: "AAPL"}

	result, err := reg.FetchInOrder(ctx, ModelCashFlowStatement, params, []string{"missing", "p3", "p1", "p2"})
	if err != nil {
		t.Fatalf("FetchInOrder failed: %v", err)
	}
	if result.Provider != "p2" || result.Data != "p2-data" {
		t.Errorf("got %s/%v, want p2/p2-data", result.Provider, result.Data)
	}
	if p1Calls.Load() != 1 {
		t.Errorf("p1 called %d times, want 1", p1Calls.Load())
	}

	// p2 first means p1 is never consulted.
	if _, err := reg.FetchInOrder(ctx, ModelCashFlowStatement, params, []string{"p2", "p1"}); err != nil {
		t.Fatal(err)
	}
	if p1Calls.Load() != 1 {
		t.Errorf("p1 called again")
	}
}

func TestRegistryFetchInOrderJoinsErrors(t *testing.T) {
	reg := NewRegistry()
	_ = reg.Register(withFetch(newMockProvider("a"), ModelEquityInfo, failing("a")))
	_ = reg.Register(withFetch(newMockProvider("b"), ModelEquityInfo, failing("b")))

	_, err := reg.FetchInOrder(context.Background(), ModelEquityInfo, QueryParams{ParamSymbol: "X"}, nil)
	if err == nil {
		t.Fatal("expected error")
	}
	for _, want := range []string{"a down", "b down"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q missing %q", err, want)
		}
	}

	_, err = reg.FetchInOrder(context.Background(), ModelFredSeries, QueryParams{}, nil)
	if err == nil || !strings.Contains(err.Error(), "no provider") {
		t.Errorf("expected no-provider error, got %v", err)
	}
}

func TestRegistryFetchWithFallback(t *testing.T) {
	reg := NewRegistry()
	_ = reg.Register(withFetch(newMockProvider("p1"), ModelEquityInfo, failing("p1")))
	_ = reg.Register(withFetch(newMockProvider("p2"), ModelEquityInfo, func(context.Context, QueryParams) (*FetchResult, error) {
		return &FetchResult{Data: "fallback-data"}, nil
	}))

	result, err := reg.FetchWithFallback(context.Background(), ModelEquityInfo, QueryParams{ParamSymbol: "AAPL"})
	if err != nil {
		t.Fatalf("FetchWithFallback failed: %v", err)
	}
	if result.Data != "fallback-data" {
		t.Errorf("expected fallback-data, got %v", result.Data)
	}
}

func TestModelCoverage(t *testing.T) {
	reg := NewRegistry()
	_ = reg.Register(newMockProvider("p1", ModelEquityInfo, ModelBalanceSheet))
	_ = reg.Register(newMockProvider("p2", ModelEquityInfo, ModelTreasuryRates))

	coverage := reg.ModelCoverage()
	if len(coverage[ModelEquityInfo]) != 2 {
		t.Errorf("expected 2 providers for EquityInfo, got %d", len(coverage[ModelEquityInfo]))
	}
	if len(coverage[ModelBalanceSheet]) != 1 {
		t.Errorf("expected 1 provider for BalanceSheet, got %d", len(coverage[ModelBalanceSheet]))
	}
	if len(coverage[ModelTreasuryRates]) != 1 {
		t.Errorf("expected 1 provider for TreasuryRates, got %d", len(coverage[ModelTreasuryRates]))
	}
}

// ── Base provider and fetcher ──

func TestBaseProviderInit(t *testing.T) {
	creds := []ProviderCredential{
		{Name: "api_key", Required: true, EnvVar: "TEST_KEY"},
	}
	bp := NewBaseProvider("test", "desc", "https://test.com", creds)

	err := bp.Init(map[string]string{})
	var ic *ErrInvalidCredentials
	if !errors.As(err, &ic) {
		t.Errorf("expected ErrInvalidCredentials, got %v", err)
	}

	if err := bp.Init(map[string]string{"api_key": "secret123"}); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	if bp.Credential("api_key") != "secret123" {
		t.Error("credential not stored")
	}
}

func TestBaseProviderRegisterFetcher(t *testing.T) {
	bp := NewBaseProvider("test", "desc", "https://test.com", nil)
	bp.RegisterFetcher(newMockFetcher(ModelEquityInfo, nil))

	if bp.Fetcher(ModelEquityInfo) == nil {
		t.Error("fetcher not registered")
	}
	if bp.Fetcher(ModelBalanceSheet) != nil {
		t.Error("fetcher should be nil for unregistered model")
	}
	if len(bp.SupportedModels()) != 1 {
		t.Errorf("expected 1 supported model, got %d", len(bp.SupportedModels()))
	}
}

func TestBaseFetcherCached(t *testing.T) {
	f := NewBaseFetcher(ModelEquityInfo, "test", nil, nil, WithCacheTTL(time.Minute), WithRateLimit(100, 10))
	calls := 0
	load := func(context.Context) (any, error) {
		calls++
		return "profile", nil
	}
	params := QueryParams{ParamSymbol: "AAPL"}

	first, err := f.Cached(context.Background(), params, load)
	if err != nil || first.Cached {
		t.Fatalf("first call: %+v, %v", first, err)
	}
	second, err := f.Cached(context.Background(), params, load)
	if err != nil || !second.Cached || second.Data != "profile" {
		t.Fatalf("second call: %+v, %v", second, err)
	}
	if calls != 1 {
		t.Errorf("load called %d times, want 1", calls)
	}

	if _, err := f.Cached(context.Background(), QueryParams{ParamSymbol: "BAD"}, func(context.Context) (any, error) {
		return nil, errors.New("boom")
	}); err == nil {
		t.Error("expected load error")
	}
}

// ── Helpers ──

func TestCacheKey(t *testing.T) {
	params := QueryParams{
		ParamSymbol:   "AAPL",
		ParamPeriod:   "annual",
		ParamProvider: "fmp",
	}

	key := CacheKey(ModelIncomeStatement, params)
	if key != "IncomeStatement:period=annual:symbol=AAPL" {
		t.Errorf("unexpected key %q", key)
	}
}

func TestValidateParams(t *testing.T) {
	if err := ValidateParams(QueryParams{ParamSymbol: "AAPL"}, []string{ParamSymbol}); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if err := ValidateParams(QueryParams{}, []string{ParamSymbol}); err == nil {
		t.Error("expected error for missing param")
	}
	if err := ValidateParams(QueryParams{ParamSymbol: ""}, []string{ParamSymbol}); err == nil {
		t.Error("expected error for empty param")
	}
}

func TestTyped(t *testing.T) {
	v, err := Typed[string](&FetchResult{Data: "x"})
	if err != nil || v != "x" {
		t.Errorf("Typed = %q, %v", v, err)
	}
	if _, err := Typed[int](&FetchResult{Data: "x", Model: ModelEquityInfo, Provider: "p"}); err == nil {
		t.Error("expected type error")
	}
}

func TestAllModels(t *testing.T) {
	seen := make(map[ModelType]bool)
	for _, m := range AllModels() {
		if seen[m] {
			t.Errorf("duplicate model type: %s", m)
		}
		seen[m] = true
		if ModelCategory(m) == "Other" {
			t.Errorf("model %s has no category", m)
		}
	}
}

func TestGlobalRegistry(t *testing.T) {
	if Global() == nil {
		t.Fatal("Global() returned nil")
	}
}
