package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/MoonbridgeInc/hermes/internal/chain"
	"github.com/MoonbridgeInc/hermes/internal/config"
	"github.com/MoonbridgeInc/hermes/internal/gasprice"
	"github.com/MoonbridgeInc/hermes/internal/metrics"
)

const (
	flagConfig      = "config"
	flagLogLevel    = "log-level"
	flagMetricsAddr = "metrics-addr"

	metricsNamespace = "relayctl"
)

func init() {
	// Initialize SDK config
	config.InitSDKConfig()
}

// newRootCmd returns the relayctl command tree
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "relayctl",
		Short: "Inspect and validate relayer safety parameters and gas pricing",
		Long: `relayctl resolves the light client parameters a relayer uses when creating
clients, quotes gas prices under the configured pricing policy, and measures the
fee a relayer pays to relay a transfer.

Chains are read from a relayer config.toml ([[chains]] entries).`,
		SilenceUsage: true,
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Help()
		},
	}

	cmd.PersistentFlags().String(flagConfig, "config.toml", "relayer config file")
	cmd.PersistentFlags().String(flagLogLevel, "", "log level override (debug|info|warn|error)")
	cmd.PersistentFlags().String(flagMetricsAddr, "", "serve prometheus metrics on this address while the command runs")

	cmd.AddCommand(newResolveCmd())
	cmd.AddCommand(newEstimateCmd())
	cmd.AddCommand(newMeasureCmd())
	cmd.AddCommand(newConfigCmd())

	return cmd
}

// app holds what every subcommand needs: the loaded config, a logger and the
// metrics collectors
type app struct {
	cfg      config.Config
	logger   *slog.Logger
	registry *prometheus.Registry
	metrics  *metrics.Metrics
}

// loadApp reads the config named by --config, with --log-level bound over
// global.log_level
func loadApp(cmd *cobra.Command) (*app, error) {
	v := config.NewViper()
	path, _ := cmd.Flags().GetString(flagConfig)
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	if err := bindLogLevel(cmd, v); err != nil {
		return nil, err
	}

	cfg, err := config.FromViper(v)
	if err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	m, err := metrics.New(metricsNamespace, registry)
	if err != nil {
		return nil, fmt.Errorf("failed to register metrics: %w", err)
	}

	logger := newLogger(cmd, cfg.Global.LogLevel)
	logger.Debug("Loaded config", "path", path, "chains", len(cfg.Chains))

	a := &app{
		cfg:      cfg,
		logger:   logger,
		registry: registry,
		metrics:  m,
	}
	if addr, _ := cmd.Flags().GetString(flagMetricsAddr); addr != "" {
		a.serveMetrics(cmd.Context(), addr)
	}
	return a, nil
}

func bindLogLevel(cmd *cobra.Command, v *viper.Viper) error {
	flag := cmd.Flags().Lookup(flagLogLevel)
	if flag == nil || !flag.Changed {
		return nil
	}
	if err := v.BindPFlag("global.log_level", flag); err != nil {
		return fmt.Errorf("failed to bind --%s: %w", flagLogLevel, err)
	}
	return nil
}

func newLogger(cmd *cobra.Command, level string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.ToUpper(level))); err != nil {
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{
		Level: lvl,
	}))
}

// serveMetrics exposes the registry until ctx is done
func (a *app) serveMetrics(ctx context.Context, addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		a.logger.Info("Serving metrics", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("Metrics server failed", "error", err)
		}
	}()
	go func() {
		<-ctx.Done()
		srv.Close()
	}()
}

// connectedChain is a chain client together with the account it signs with
type connectedChain struct {
	cfg     config.ChainConfig
	chain   chain.Chain
	address string
}

// connect opens a client for the chain with the given id. Chains of an
// unsupported kind connect to an Unsupported client without dialing.
func (a *app) connect(id string) (*connectedChain, error) {
	cc, err := a.cfg.Chain(id)
	if err != nil {
		return nil, err
	}
	chainCfg, err := cc.ChainConfig()
	if err != nil {
		return nil, err
	}
	if !chainCfg.Kind.Supported() {
		return &connectedChain{cfg: cc, chain: chain.NewUnsupported(cc.ID, chainCfg.Kind)}, nil
	}

	clientCtx, err := chain.NewClientContext(cc.Endpoint())
	if err != nil {
		return nil, err
	}

	pricer := gasprice.NewService(a.logger, gasprice.NewFeeMarketSource(clientCtx), a.metrics)
	c, err := chain.New(a.logger, chainCfg, clientCtx, pricer)
	if err != nil {
		return nil, fmt.Errorf("failed to create client for %s: %w", id, err)
	}

	var address string
	if clientCtx.FromAddress != nil {
		address = clientCtx.FromAddress.String()
	}
	return &connectedChain{cfg: cc, chain: c, address: address}, nil
}

func writeLine(cmd *cobra.Command, format string, args ...any) {
	fmt.Fprintf(cmd.OutOrStdout(), format+"\n", args...)
}
