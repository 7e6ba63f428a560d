// Command console inspects a pool snapshot: it enumerates routes, prices
// pairs, solves orders across routes, and can watch a pair list while
// exporting metrics.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/swapgraph/swapgraph-go/cmd/console/config"
	"github.com/swapgraph/swapgraph-go/pricing"
	"github.com/swapgraph/swapgraph-go/router"
	"github.com/swapgraph/swapgraph-go/solver"
	"github.com/swapgraph/swapgraph-go/tokens"
)

func main() {
	root := &cobra.Command{
		Use:          "console",
		Short:        "Swap graph console",
		SilenceUsage: true,
	}

	root.PersistentFlags().String("config", "", "config file path")
	root.PersistentFlags().String("snapshot", "", "pool snapshot JSON path")
	root.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	root.PersistentFlags().Int("max-depth", router.DefaultMaxDepth, "maximum hops per route")
	root.PersistentFlags().Int("max-routes", router.DefaultMaxRoutes, "maximum routes per search")

	routesCmd := &cobra.Command{
		Use:   "routes",
		Short: "Enumerate routes between two tokens",
		RunE:  runRoutes,
	}
	routesCmd.Flags().String("from", "", "source token address or symbol")
	routesCmd.Flags().String("to", "", "destination token address or symbol")
	root.AddCommand(routesCmd)

	priceCmd := &cobra.Command{
		Use:   "price",
		Short: "Compute the liquidity-weighted price of a pair",
		RunE:  runPrice,
	}
	priceCmd.Flags().String("base", "", "base token address or symbol")
	priceCmd.Flags().String("quote", "", "quote token address or symbol")
	priceCmd.Flags().String("min-liquidity", "", "minimum route depth in base units")
	root.AddCommand(priceCmd)

	solveCmd := &cobra.Command{
		Use:   "solve",
		Short: "Split an order across routes",
		RunE:  runSolve,
	}
	solveCmd.Flags().String("have", "", "input token address or symbol")
	solveCmd.Flags().String("want", "", "output token address or symbol")
	solveCmd.Flags().String("amount-in", "", "exact input amount in base units")
	solveCmd.Flags().String("amount-out", "", "exact output amount in base units")
	solveCmd.Flags().String("min-out", "", "minimum acceptable output")
	solveCmd.Flags().String("max-in", "", "maximum acceptable input")
	solveCmd.Flags().Bool("single", false, "use the single-route solver")
	root.AddCommand(solveCmd)

	watchCmd := &cobra.Command{
		Use:   "watch",
		Short: "Watch a pair list and export metrics",
		RunE:  runWatch,
	}
	watchCmd.Flags().StringSlice("pairs", nil, "pairs to watch, e.g. WETH/USDC,WBTC/WETH")
	watchCmd.Flags().Duration("interval", 15*time.Second, "observation interval")
	watchCmd.Flags().String("metrics-addr", ":9090", "prometheus listen address")
	watchCmd.Flags().String("min-liquidity", "", "minimum route depth in base units")
	root.AddCommand(watchCmd)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevel()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}

	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return cfg.Build()
}

// zapAdapter bridges a zap logger to the library's small logging interface.
type zapAdapter struct {
	sugar *zap.SugaredLogger
}

func (a zapAdapter) Debug(msg string, args ...any) { a.sugar.Debugw(msg, args...) }
func (a zapAdapter) Info(msg string, args ...any)  { a.sugar.Infow(msg, args...) }
func (a zapAdapter) Warn(msg string, args ...any)  { a.sugar.Warnw(msg, args...) }
func (a zapAdapter) Error(msg string, args ...any) { a.sugar.Errorw(msg, args...) }

// session bundles everything a subcommand needs after setup.
type session struct {
	cfg      config.Config
	logger   zapAdapter
	zlog     *zap.Logger
	tokenSet *tokens.Set
	finder   *router.Finder
}

func newSession(cmd *cobra.Command) (*session, error) {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return nil, err
	}
	if cfg.Snapshot == "" {
		return nil, fmt.Errorf("--snapshot is required")
	}

	zlog, err := newLogger(cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	logger := zapAdapter{sugar: zlog.Sugar()}

	system, tokenSet, err := loadSnapshot(cfg.Snapshot, logger)
	if err != nil {
		return nil, err
	}
	tokenCount, poolCount := system.Len()
	logger.Info("snapshot loaded", "tokens", tokenCount, "pools", poolCount)

	finder := router.NewFinder(system, router.Config{
		MaxDepth:  cfg.MaxDepth,
		MaxRoutes: cfg.MaxRoutes,
	})
	return &session{cfg: cfg, logger: logger, zlog: zlog, tokenSet: tokenSet, finder: finder}, nil
}

// resolveToken accepts a 0x address or a snapshot symbol.
func (s *session) resolveToken(raw string) (tokens.Token, error) {
	if raw == "" {
		return tokens.Token{}, fmt.Errorf("token argument is empty")
	}
	if strings.HasPrefix(raw, "0x") || strings.HasPrefix(raw, "0X") {
		if !common.IsHexAddress(raw) {
			return tokens.Token{}, fmt.Errorf("%q is not a valid address", raw)
		}
		token, ok := s.tokenSet.GetByAddress(common.HexToAddress(raw))
		if !ok {
			return tokens.Token{}, fmt.Errorf("token %s not in snapshot", raw)
		}
		return token, nil
	}
	token, ok := s.tokenSet.GetBySymbol(raw)
	if !ok {
		return tokens.Token{}, fmt.Errorf("token symbol %q not in snapshot", raw)
	}
	return token, nil
}

func runRoutes(cmd *cobra.Command, _ []string) error {
	s, err := newSession(cmd)
	if err != nil {
		return err
	}
	defer s.zlog.Sync()

	fromRaw, _ := cmd.Flags().GetString("from")
	toRaw, _ := cmd.Flags().GetString("to")
	from, err := s.resolveToken(fromRaw)
	if err != nil {
		return err
	}
	to, err := s.resolveToken(toRaw)
	if err != nil {
		return err
	}

	routes, err := s.finder.FindRoutes(from.Address, to.Address)
	if err != nil {
		return err
	}
	if len(routes) == 0 {
		fmt.Printf("no routes from %s to %s\n", from.Symbol, to.Symbol)
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "HOPS\tPATH\tLIQUIDITY\tFEE")
	for _, route := range routes {
		depth := "-"
		if liquidity, err := route.Liquidity(); err == nil {
			depth = liquidity.String()
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", len(route), route.String(), depth, route.TotalFee().StringFixed(6))
	}
	return w.Flush()
}

func runPrice(cmd *cobra.Command, _ []string) error {
	s, err := newSession(cmd)
	if err != nil {
		return err
	}
	defer s.zlog.Sync()

	baseRaw, _ := cmd.Flags().GetString("base")
	quoteRaw, _ := cmd.Flags().GetString("quote")
	base, err := s.resolveToken(baseRaw)
	if err != nil {
		return err
	}
	quote, err := s.resolveToken(quoteRaw)
	if err != nil {
		return err
	}

	aggregator := pricing.NewAggregator(s.finder, pricing.Config{
		MinLiquidity: s.cfg.MinLiquidity,
		Logger:       s.logger,
	})
	price, err := aggregator.Price(base.Address, quote.Address)
	if err != nil {
		return err
	}
	fmt.Printf("%s/%s = %s\n", base.Symbol, quote.Symbol, price.String())
	return nil
}

func runSolve(cmd *cobra.Command, _ []string) error {
	s, err := newSession(cmd)
	if err != nil {
		return err
	}
	defer s.zlog.Sync()

	haveRaw, _ := cmd.Flags().GetString("have")
	wantRaw, _ := cmd.Flags().GetString("want")
	have, err := s.resolveToken(haveRaw)
	if err != nil {
		return err
	}
	want, err := s.resolveToken(wantRaw)
	if err != nil {
		return err
	}

	order := solver.Order{Have: have, Want: want}
	if raw, _ := cmd.Flags().GetString("amount-in"); raw != "" {
		if order.AmountIn, err = parseAmount(raw); err != nil {
			return fmt.Errorf("amount-in: %w", err)
		}
	}
	if raw, _ := cmd.Flags().GetString("amount-out"); raw != "" {
		if order.AmountOut, err = parseAmount(raw); err != nil {
			return fmt.Errorf("amount-out: %w", err)
		}
	}
	if raw, _ := cmd.Flags().GetString("min-out"); raw != "" {
		if order.MinAmountOut, err = parseAmount(raw); err != nil {
			return fmt.Errorf("min-out: %w", err)
		}
	}
	if raw, _ := cmd.Flags().GetString("max-in"); raw != "" {
		if order.MaxAmountIn, err = parseAmount(raw); err != nil {
			return fmt.Errorf("max-in: %w", err)
		}
	}

	routes, err := s.finder.FindRoutes(have.Address, want.Address)
	if err != nil {
		return err
	}

	var solve solver.Solver = solver.NewMarginalSolver(s.logger)
	if single, _ := cmd.Flags().GetBool("single"); single {
		solve = &solver.SingleRouteSolver{Logger: s.logger}
	}

	solution, err := solve.Solve(order, routes)
	if err != nil && solution == nil {
		return err
	}
	if err != nil {
		fmt.Printf("unfillable: %v\n", err)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ROUTE\tIN\tOUT")
	for _, allocation := range solution.Allocations {
		fmt.Fprintf(w, "%s\t%s %s\t%s %s\n",
			allocation.Route.String(),
			allocation.AmountIn, have.Symbol,
			allocation.AmountOut, want.Symbol)
	}
	fmt.Fprintf(w, "TOTAL\t%s %s\t%s %s\n", solution.TotalIn, have.Symbol, solution.TotalOut, want.Symbol)
	if solution.Shortfall.Sign() > 0 {
		fmt.Fprintf(w, "SHORTFALL\t%s\t\n", solution.Shortfall)
	}
	return w.Flush()
}

func runWatch(cmd *cobra.Command, _ []string) error {
	s, err := newSession(cmd)
	if err != nil {
		return err
	}
	defer s.zlog.Sync()

	var watchlist []pricing.Pair
	for _, raw := range s.cfg.Pairs {
		base, quote, found := strings.Cut(raw, "/")
		if !found {
			return fmt.Errorf("pair %q must be BASE/QUOTE", raw)
		}
		baseToken, err := s.resolveToken(base)
		if err != nil {
			return err
		}
		quoteToken, err := s.resolveToken(quote)
		if err != nil {
			return err
		}
		watchlist = append(watchlist, pricing.Pair{Base: baseToken.Address, Quote: quoteToken.Address})
	}
	if len(watchlist) == 0 {
		return fmt.Errorf("--pairs is required")
	}

	registry := prometheus.NewRegistry()
	aggregator := pricing.NewAggregator(s.finder, pricing.Config{
		MinLiquidity: s.cfg.MinLiquidity,
		Registry:     registry,
		Logger:       s.logger,
	})
	watcher := pricing.NewWatcher(aggregator, watchlist, s.cfg.Interval)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	server := &http.Server{Addr: s.cfg.MetricsAddr, Handler: mux}
	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("metrics server failed", "err", err)
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		server.Shutdown(shutdownCtx)
	}()
	s.logger.Info("serving metrics", "addr", s.cfg.MetricsAddr)

	if err := watcher.Run(ctx); err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}
