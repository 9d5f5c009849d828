// dcfvalue estimates the intrinsic value of US-listed equities with a
// discounted cash flow model, Monte Carlo simulation and a sensitivity grid.
//
// Main CLI entrypoint using cobra command framework.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/seenimoa/dcfvalue/internal/config"
	"github.com/seenimoa/dcfvalue/internal/datasource"
	"github.com/seenimoa/dcfvalue/internal/infra"
	"github.com/seenimoa/dcfvalue/internal/provider"
)

// Build-time variables (set via -ldflags).
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// Global config and logger, set by the root command's pre-run hook.
var (
	cfg    *config.Config
	logger = zerolog.Nop()
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "dcfvalue",
	Short: "Discounted cash flow valuation for US equities",
	Long: `dcfvalue estimates a company's intrinsic value per share.
It derives a discount rate (WACC) and a growth rate from public market
data, projects free cash flow with a terminal value, and can simulate
the valuation under uncertainty.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		configFile, _ := cmd.Flags().GetString("config")
		if configFile != "" {
			cfg, err = config.LoadFromFile(configFile)
		} else {
			cfg, err = config.Load()
		}
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		if level, _ := cmd.Flags().GetString("log-level"); level != "" {
			cfg.Logging.Level = level
		}
		logger = infra.NewLogger(cfg.Logging.Level, cfg.Logging.Format)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "config file path (default: ./config/config.yaml)")
	rootCmd.PersistentFlags().String("log-level", "", "log level override (debug, info, warn, error)")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(valueCmd)
	rootCmd.AddCommand(monteCarloCmd)
	rootCmd.AddCommand(sensitivityCmd)
	rootCmd.AddCommand(providersCmd)
	rootCmd.AddCommand(fetchCmd)
	rootCmd.AddCommand(statusCmd)
}

// --- Version Command ---

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("dcfvalue %s\n", version)
		fmt.Printf("  commit:  %s\n", commit)
		fmt.Printf("  built:   %s\n", date)
	},
}

// --- Providers Command ---

var providersCmd = &cobra.Command{
	Use:   "providers",
	Short: "List registered data providers and the data they serve",
	RunE: func(cmd *cobra.Command, args []string) error {
		reg, err := newRegistry(cfg, logger)
		if err != nil {
			return err
		}
		ping, _ := cmd.Flags().GetBool("ping")

		infos := reg.List()
		sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
		for _, info := range infos {
			fmt.Printf("%-16s %s\n", info.Name, info.Description)
			models := make([]string, len(info.Models))
			for i, m := range info.Models {
				models[i] = string(m)
			}
			fmt.Printf("%-16s models: %s\n", "", strings.Join(models, ", "))
			if ping {
				fmt.Printf("%-16s ping:   %s\n", "", pingStatus(cmd.Context(), reg, info.Name))
			}
		}
		return nil
	},
}

func init() {
	providersCmd.Flags().Bool("ping", false, "check connectivity to each provider")
}

func pingStatus(ctx context.Context, reg *provider.Registry, name string) string {
	p, err := reg.Get(name)
	if err != nil {
		return err.Error()
	}
	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()
	start := time.Now()
	if err := p.Ping(ctx); err != nil {
		return "❌ " + err.Error()
	}
	return "✅ ok (" + time.Since(start).Round(time.Millisecond).String() + ")"
}

// --- Fetch Command ---

var fetchCmd = &cobra.Command{
	Use:   "fetch [model] [symbol]",
	Short: "Fetch one raw data model and print it as JSON",
	Long: `Fetch one data model through the provider registry, falling back
across every provider that serves it.

Examples:
  dcfvalue fetch EquityInfo AAPL
  dcfvalue fetch TreasuryRates
  dcfvalue fetch FredSeries --series DGS10
  dcfvalue fetch CashFlowStatement MSFT --provider fmp`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		reg, err := newRegistry(cfg, logger)
		if err != nil {
			return err
		}
		model := provider.ModelType(args[0])
		if len(reg.ProvidersFor(model)) == 0 {
			return fmt.Errorf("no registered provider serves %q", args[0])
		}

		params := provider.QueryParams{}
		if len(args) == 2 {
			params[provider.ParamSymbol] = datasource.NormalizeTicker(args[1])
		}
		for flag, param := range map[string]string{
			"provider": provider.ParamProvider,
			"period":   provider.ParamPeriod,
			"series":   provider.ParamSeries,
			"cik":      provider.ParamCIK,
		} {
			if v, _ := cmd.Flags().GetString(flag); v != "" {
				params[param] = v
			}
		}

		res, err := reg.FetchWithFallback(cmd.Context(), model, params)
		if err != nil {
			return err
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	},
}

func init() {
	fetchCmd.Flags().String("provider", "", "preferred provider (others are tried on failure)")
	fetchCmd.Flags().String("period", "", "period parameter, e.g. annual, quarterly or 1y")
	fetchCmd.Flags().String("series", "", "series id for FredSeries")
	fetchCmd.Flags().String("cik", "", "SEC CIK for CompanyFacts")
}

// --- Status Command ---

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show configuration and data coverage",
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Println("═══════════════════════════════════════")
		fmt.Println("  dcfvalue - System Status")
		fmt.Println("═══════════════════════════════════════")
		fmt.Printf("  Version:       %s (%s)\n", version, commit)
		fmt.Println()

		fmt.Println("  Configuration:")
		fmt.Printf("    Record sources:  %s\n", strings.Join(cfg.Providers.Order, " → "))
		fmt.Printf("    Yield sources:   %s\n", strings.Join(cfg.Providers.YieldOrder, " → "))
		fmt.Printf("    Horizon:         %d years\n", cfg.Valuation.Horizon)
		fmt.Printf("    Iterations:      %d (workers: %d)\n", cfg.Valuation.Iterations, cfg.Valuation.Workers)
		fmt.Printf("    HTTP:            %s timeout, %d retries, %.1f req/s\n",
			cfg.Providers.Timeout, cfg.Providers.Retries, cfg.Providers.RequestsPerSecond)
		fmt.Println()

		fmt.Println("  Credentials:")
		for _, k := range config.CheckAPIKeys(cfg) {
			status := "❌ not set"
			if k.IsSet {
				status = fmt.Sprintf("✅ set (%s: %s)", k.Source, k.Masked)
			}
			fmt.Printf("    %-20s %s\n", k.Name+":", status)
		}
		fmt.Println()

		reg, err := newRegistry(cfg, logger)
		if err != nil {
			return err
		}
		coverage := reg.ModelCoverage()
		fmt.Println("  Data coverage:")
		category := ""
		for _, m := range provider.AllModels() {
			names := coverage[m]
			if len(names) == 0 {
				continue
			}
			if c := provider.ModelCategory(m); c != category {
				category = c
				fmt.Printf("    %s\n", c)
			}
			fmt.Printf("      %-20s %s\n", string(m)+":", strings.Join(names, ", "))
		}
		fmt.Println("═══════════════════════════════════════")
		return nil
	},
}
