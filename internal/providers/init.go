// Package providers initializes and registers all concrete data providers
// with a provider registry.
package providers

import (
	"github.com/seenimoa/dcfvalue/internal/provider"
	"github.com/seenimoa/dcfvalue/internal/providers/alphavantage"
	"github.com/seenimoa/dcfvalue/internal/providers/federalreserve"
	"github.com/seenimoa/dcfvalue/internal/providers/fmp"
	"github.com/seenimoa/dcfvalue/internal/providers/fred"
	"github.com/seenimoa/dcfvalue/internal/providers/sec"
	"github.com/seenimoa/dcfvalue/internal/providers/treasury"
	"github.com/seenimoa/dcfvalue/internal/providers/yfinance"
)

// Credentials carries the keys of providers that need them. Empty keys
// leave the provider unregistered.
type Credentials struct {
	FMPAPIKey          string
	AlphaVantageAPIKey string
	FredAPIKey         string
	SECUserAgent       string
}

// RegisterAllTo registers all available providers to the given registry.
func RegisterAllTo(reg *provider.Registry, creds Credentials) error {
	// --- Free sources ---
	secP := sec.New()
	if err := secP.Init(map[string]string{"user_agent": creds.SECUserAgent}); err != nil {
		return err
	}
	if err := reg.Register(secP); err != nil {
		return err
	}

	yf := yfinance.New()
	if err := yf.Init(nil); err != nil {
		return err
	}
	if err := reg.Register(yf); err != nil {
		return err
	}

	for _, p := range []provider.Provider{treasury.New(), federalreserve.New()} {
		if err := reg.Register(p); err != nil {
			return err
		}
	}

	// --- FMP (requires API key) ---
	if creds.FMPAPIKey != "" {
		fp := fmp.New()
		if err := fp.Init(map[string]string{"api_key": creds.FMPAPIKey}); err != nil {
			return err
		}
		if err := reg.Register(fp); err != nil {
			return err
		}
	}

	// --- Alpha Vantage (requires API key) ---
	if creds.AlphaVantageAPIKey != "" {
		av := alphavantage.New()
		if err := av.Init(map[string]string{"api_key": creds.AlphaVantageAPIKey}); err != nil {
			return err
		}
		if err := reg.Register(av); err != nil {
			return err
		}
	}

	// --- FRED (requires API key) ---
	if creds.FredAPIKey != "" {
		fr := fred.New()
		if err := fr.Init(map[string]string{"api_key": creds.FredAPIKey}); err != nil {
			return err
		}
		if err := reg.Register(fr); err != nil {
			return err
		}
	}

	// The page scrape is the primary yield source; FMP statements are
	// preferred over Yahoo's when a key is present.
	if err := reg.SetDefault(provider.ModelTreasuryRates, "treasury"); err != nil {
		return err
	}
	if creds.FMPAPIKey != "" {
		for _, m := range []provider.ModelType{
			provider.ModelEquityInfo,
			provider.ModelIncomeStatement,
			provider.ModelBalanceSheet,
			provider.ModelCashFlowStatement,
		} {
			if err := reg.SetDefault(m, "fmp"); err != nil {
				return err
			}
		}
	}
	return nil
}
