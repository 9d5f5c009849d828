package datasource

import (
	"context"
	"fmt"

	"github.com/seenimoa/dcfvalue/internal/provider"
	"github.com/seenimoa/dcfvalue/internal/valuation"
	"github.com/seenimoa/dcfvalue/pkg/models"
)

// YieldSource reads the 10-year yield from one registered provider.
type YieldSource struct {
	reg  *provider.Registry
	name string
}

var _ valuation.YieldSource = (*YieldSource)(nil)

// NewYieldSource binds a provider name to reg.
func NewYieldSource(reg *provider.Registry, name string) *YieldSource {
	return &YieldSource{reg: reg, name: name}
}

func (y *YieldSource) Name() string { return y.name }

// TenYearYield returns the provider's 10-year yield as a fraction.
func (y *YieldSource) TenYearYield(ctx context.Context) (float64, error) {
	res, err := y.reg.FetchFrom(ctx, y.name, provider.ModelTreasuryRates, nil)
	if err != nil {
		return 0, err
	}
	q, err := provider.Typed[models.YieldQuote](res)
	if err != nil {
		return 0, err
	}
	if !(q.Value > 0) {
		return 0, fmt.Errorf("%s: non-positive yield %v", y.name, q.Value)
	}
	return q.Value, nil
}

// YieldSources returns one source per registered yield provider, in
// yield order.
func (m *MarketData) YieldSources() []valuation.YieldSource {
	var out []valuation.YieldSource
	for _, name := range m.opt.yieldOrder {
		p, err := m.reg.Get(name)
		if err != nil || p.Fetcher(provider.ModelTreasuryRates) == nil {
			continue
		}
		out = append(out, NewYieldSource(m.reg, name))
	}
	return out
}
