package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/seenimoa/dcfvalue/internal/config"
	"github.com/seenimoa/dcfvalue/internal/datasource"
	"github.com/seenimoa/dcfvalue/internal/infra"
	"github.com/seenimoa/dcfvalue/internal/provider"
	"github.com/seenimoa/dcfvalue/internal/providers"
	"github.com/seenimoa/dcfvalue/internal/report"
	"github.com/seenimoa/dcfvalue/internal/valuation"
	"github.com/seenimoa/dcfvalue/pkg/models"
)

// app bundles the collaborators a valuation command needs.
type app struct {
	acquirer *datasource.Acquirer
	engine   *valuation.Engine
}

// newRegistry installs the shared HTTP client and registers every provider
// the configured credentials allow.
func newRegistry(cfg *config.Config, log zerolog.Logger) (*provider.Registry, error) {
	infra.SetDefaultClient(infra.NewClient(infra.HTTPConfig{
		Timeout:           cfg.Providers.Timeout,
		Retries:           uint64(cfg.Providers.Retries),
		RetryDelay:        cfg.Providers.RetryDelay,
		UserAgent:         "dcfvalue/" + version,
		RequestsPerSecond: cfg.Providers.RequestsPerSecond,
	}, log))

	reg := provider.Global()
	reg.SetLogger(log)
	err := providers.RegisterAllTo(reg, providers.Credentials{
		FMPAPIKey:          cfg.Providers.FMPAPIKey,
		AlphaVantageAPIKey: cfg.Providers.AlphaVantageAPIKey,
		FredAPIKey:         cfg.Providers.FredAPIKey,
		SECUserAgent:       cfg.Providers.SECUserAgent,
	})
	if err != nil {
		return nil, fmt.Errorf("register providers: %w", err)
	}
	return reg, nil
}

func newApp(cfg *config.Config, log zerolog.Logger) (*app, error) {
	reg, err := newRegistry(cfg, log)
	if err != nil {
		return nil, err
	}
	opts := []datasource.Option{
		datasource.WithOrder(cfg.Providers.Order...),
		datasource.WithLogger(log),
	}
	if len(cfg.Providers.YieldOrder) > 0 {
		opts = append(opts, datasource.WithYieldOrder(cfg.Providers.YieldOrder...))
	}
	md := datasource.NewMarketData(reg, opts...)

	tables := valuation.DefaultTables()
	if cfg.Valuation.MaxOverrideAge > 0 {
		tables.MaxOverrideAge = cfg.Valuation.MaxOverrideAge
	}
	engine := valuation.NewEngine(md.Sources(),
		valuation.WithTables(tables),
		valuation.WithHorizon(cfg.Valuation.Horizon),
		valuation.WithMarketIndex(cfg.Valuation.MarketIndex),
		valuation.WithLogger(log),
	)
	return &app{
		acquirer: datasource.NewAcquirer(reg, opts...),
		engine:   engine,
	}, nil
}

// forEachTicker runs fn for every ticker, pausing delay between them. A
// failed ticker is logged and the loop moves on; the joined errors are
// returned at the end.
func forEachTicker(ctx context.Context, tickers []string, delay time.Duration, log zerolog.Logger, fn func(ctx context.Context, ticker string) error) error {
	var errs []error
	for i, t := range tickers {
		if i > 0 && delay > 0 {
			select {
			case <-ctx.Done():
				return errors.Join(append(errs, ctx.Err())...)
			case <-time.After(delay):
			}
		}
		if err := ctx.Err(); err != nil {
			return errors.Join(append(errs, err)...)
		}
		ticker := datasource.NormalizeTicker(t)
		if err := fn(ctx, ticker); err != nil {
			log.Error().Err(err).Str("ticker", ticker).Msg("valuation failed")
			errs = append(errs, fmt.Errorf("%s: %w", ticker, err))
		}
	}
	return errors.Join(errs...)
}

// value acquires the record for ticker and runs the base-case valuation.
func (a *app) value(ctx context.Context, ticker, cik string) (*models.ValuationResult, error) {
	rec, err := a.acquirer.Fetch(ctx, ticker, cik)
	if err != nil {
		return nil, err
	}
	return a.engine.Value(ctx, rec, cik)
}

// writeOutput writes content to dir/<ticker><suffix> and returns the path.
func writeOutput(dir, ticker, suffix, content string) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}
	path := filepath.Join(dir, outputName(ticker, suffix))
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return "", fmt.Errorf("write %s: %w", path, err)
	}
	return path, nil
}

// outputName makes a file name from a ticker such as "BRK.B" or "^GSPC".
func outputName(ticker, suffix string) string {
	b := []byte(ticker)
	for i, c := range b {
		switch {
		case c >= 'A' && c <= 'Z', c >= 'a' && c <= 'z', c >= '0' && c <= '9', c == '-', c == '_':
		default:
			b[i] = '_'
		}
	}
	return string(b) + suffix
}

// commonFlags reads the flags shared by the valuation commands.
func commonFlags(cmd *cobra.Command, args []string) (cik, htmlDir string, err error) {
	cik, _ = cmd.Flags().GetString("cik")
	htmlDir, _ = cmd.Flags().GetString("html")
	if cik != "" && len(args) > 1 {
		return "", "", errors.New("--cik applies to a single ticker")
	}
	return cik, htmlDir, nil
}

func addCommonFlags(cmd *cobra.Command) {
	cmd.Flags().String("cik", "", "SEC CIK for the ticker (skips the ticker lookup)")
	cmd.Flags().String("html", "", "directory to write an HTML report per ticker")
}

// --- Value Command ---

var valueCmd = &cobra.Command{
	Use:   "value [ticker...]",
	Short: "Run a base-case DCF valuation",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cik, htmlDir, err := commonFlags(cmd, args)
		if err != nil {
			return err
		}
		a, err := newApp(cfg, logger)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		return forEachTicker(cmd.Context(), args, cfg.Valuation.TickerDelay, logger, func(ctx context.Context, ticker string) error {
			v, err := a.value(ctx, ticker, cik)
			if err != nil {
				return err
			}
			fmt.Fprint(out, report.RenderText(v, nil, nil))
			return writeHTML(out, htmlDir, ticker, v, nil, nil)
		})
	},
}

func init() {
	addCommonFlags(valueCmd)
}

// --- Monte Carlo Command ---

var monteCarloCmd = &cobra.Command{
	Use:     "montecarlo [ticker...]",
	Aliases: []string{"mc"},
	Short:   "Value tickers and simulate the valuation under uncertainty",
	Args:    cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cik, htmlDir, err := commonFlags(cmd, args)
		if err != nil {
			return err
		}
		opts := valuation.SimulationOptions{
			Iterations: cfg.Valuation.Iterations,
			Seed:       cfg.Valuation.Seed,
			Workers:    cfg.Valuation.Workers,
		}
		if cmd.Flags().Changed("iterations") {
			opts.Iterations, _ = cmd.Flags().GetInt("iterations")
		}
		if cmd.Flags().Changed("seed") {
			opts.Seed, _ = cmd.Flags().GetInt64("seed")
		}
		if cmd.Flags().Changed("workers") {
			opts.Workers, _ = cmd.Flags().GetInt("workers")
		}
		svgDir, _ := cmd.Flags().GetString("svg")

		a, err := newApp(cfg, logger)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		return forEachTicker(cmd.Context(), args, cfg.Valuation.TickerDelay, logger, func(ctx context.Context, ticker string) error {
			rec, err := a.acquirer.Fetch(ctx, ticker, cik)
			if err != nil {
				return err
			}
			start := time.Now()
			base, mc, err := a.engine.MonteCarlo(ctx, rec, cik, opts)
			if err != nil {
				if base != nil {
					fmt.Fprint(out, report.RenderText(base, nil, nil))
				}
				return err
			}
			logger.Info().Str("ticker", ticker).Int("iterations", len(mc.Values)).
				Str("elapsed", report.FormatDuration(time.Since(start))).Msg("simulation complete")

			st := a.engine.Sensitivity(base)
			fmt.Fprint(out, report.RenderText(base, mc, &st))
			if svgDir != "" {
				chart := report.DefaultChartConfig()
				chart.Title = ticker + " DCF Monte Carlo"
				svg := report.HistogramSVG(mc.Values, mc.BaseCase, mc.CurrentPrice, chart)
				path, err := writeOutput(svgDir, ticker, "_montecarlo.svg", svg)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "Histogram written to %s\n", path)
			}
			return writeHTML(out, htmlDir, ticker, base, mc, &st)
		})
	},
}

func init() {
	addCommonFlags(monteCarloCmd)
	monteCarloCmd.Flags().Int("iterations", valuation.DefaultIterations, "number of simulated valuations")
	monteCarloCmd.Flags().Int64("seed", 0, "random seed (0 seeds from the clock)")
	monteCarloCmd.Flags().Int("workers", 1, "parallel simulation workers")
	monteCarloCmd.Flags().String("svg", "", "directory to write a histogram SVG per ticker")
}

// --- Sensitivity Command ---

var sensitivityCmd = &cobra.Command{
	Use:   "sensitivity [ticker...]",
	Short: "Show per-share value over a grid of discount and growth rates",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cik, htmlDir, err := commonFlags(cmd, args)
		if err != nil {
			return err
		}
		a, err := newApp(cfg, logger)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		return forEachTicker(cmd.Context(), args, cfg.Valuation.TickerDelay, logger, func(ctx context.Context, ticker string) error {
			v, err := a.value(ctx, ticker, cik)
			if err != nil {
				return err
			}
			st := a.engine.Sensitivity(v)
			fmt.Fprint(out, report.RenderText(v, nil, &st))
			return writeHTML(out, htmlDir, ticker, v, nil, &st)
		})
	},
}

func init() {
	addCommonFlags(sensitivityCmd)
}

func writeHTML(out io.Writer, dir, ticker string, v *models.ValuationResult, mc *models.MonteCarloResult, st *models.SensitivityTable) error {
	if dir == "" {
		return nil
	}
	html, err := report.GenerateHTML(v, mc, st)
	if err != nil {
		return fmt.Errorf("render html: %w", err)
	}
	path, err := writeOutput(dir, ticker, "_dcf.html", html)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Report written to %s\n", path)
	return nil
}
