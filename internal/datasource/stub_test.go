package datasource

import (
	"context"
	"errors"
	"math"
	"sync/atomic"
	"testing"

	"github.com/seenimoa/dcfvalue/internal/provider"
	"github.com/seenimoa/dcfvalue/pkg/models"
)

// stubFetcher answers one model from a function.
type stubFetcher struct {
	provider.BaseFetcher
	fn    func(params provider.QueryParams) (any, error)
	calls atomic.Int32
}

func (f *stubFetcher) Fetch(_ context.Context, params provider.QueryParams) (*provider.FetchResult, error) {
	f.calls.Add(1)
	data, err := f.fn(params)
	if err != nil {
		return nil, err
	}
	return &provider.FetchResult{Data: data}, nil
}

type stubProvider struct {
	provider.BaseProvider
}

func newStub(name string) *stubProvider {
	return &stubProvider{BaseProvider: provider.NewBaseProvider(name, "stub "+name, "", nil)}
}

func (s *stubProvider) serve(model provider.ModelType, fn func(params provider.QueryParams) (any, error)) *stubFetcher {
	f := &stubFetcher{BaseFetcher: provider.NewBaseFetcher(model, "stub", nil, nil), fn: fn}
	s.RegisterFetcher(f)
	return f
}

// value serves a fixed result.
func value(v any) func(provider.QueryParams) (any, error) {
	return func(provider.QueryParams) (any, error) { return v, nil }
}

// byPeriod serves annual and quarterly statements separately.
func byPeriod(annual, quarterly *models.Statement) func(provider.QueryParams) (any, error) {
	return func(p provider.QueryParams) (any, error) {
		st := annual
		if p[provider.ParamPeriod] == "quarterly" {
			st = quarterly
		}
		if st == nil {
			return nil, errDown
		}
		return st, nil
	}
}

var errDown = errors.New("source down")

func down(provider.QueryParams) (any, error) { return nil, errDown }

func registry(t *testing.T, providers ...*stubProvider) *provider.Registry {
	t.Helper()
	reg := provider.NewRegistry()
	for _, p := range providers {
		if err := reg.Register(p); err != nil {
			t.Fatalf("register %s: %v", p.Info().Name, err)
		}
	}
	return reg
}

func statement(kind models.StatementKind, period string, rows map[models.LineItem][]float64) *models.Statement {
	st := &models.Statement{Kind: kind, PeriodType: period}
	for item, vals := range rows {
		st.Set(item, vals)
	}
	return st
}

var nan = math.NaN()
