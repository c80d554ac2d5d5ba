// Command chat-server runs a single RDP shard hosting the chat
// application: it binds a UDP datagram.Channel, installs the
// chatstore handler behind the logging/rate-limit middleware chain,
// optionally advertises itself in etcd, and serves Prometheus metrics.
//
// Structured the way malbeclabs-doublezero's cmd/server binaries are:
// pflag-backed global vars, a rootCmd built in init, a run() that
// returns an error for main to report.
package main

import (
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"chatter/chatstore"
	"chatter/config"
	"chatter/datagram"
	"chatter/metrics"
	"chatter/middleware"
	"chatter/rdplog"
	"chatter/rdpserver"
	"chatter/registry"
)

var (
	listenAddr         string
	dedupTTL           time.Duration
	cleanupInterval    time.Duration
	rateLimitPerSecond float64
	rateLimitBurst     int
	handlerTimeout     time.Duration
	registryEndpoints  []string
	registryKey        string
	metricsAddr        string
	verbose            bool

	version = "dev"
)

var rootCmd = &cobra.Command{
	Use:   "chat-server",
	Short: "Run a Chatter RDP server shard",
	RunE: func(cmd *cobra.Command, args []string) error {
		return run()
	},
}

func init() {
	rootCmd.Flags().StringVar(&listenAddr, "listen", "0.0.0.0:8000", "UDP address to listen on")
	rootCmd.Flags().DurationVar(&dedupTTL, "dedup-ttl", config.DefaultDedupTTL, "How long a request's reply is cached for replay dedup")
	rootCmd.Flags().DurationVar(&cleanupInterval, "cleanup-interval", config.DefaultCleanupInterval, "How often fetched messages are swept")
	rootCmd.Flags().Float64Var(&rateLimitPerSecond, "rate-limit-per-second", 0, "Token bucket rate; 0 disables rate limiting")
	rootCmd.Flags().IntVar(&rateLimitBurst, "rate-limit-burst", 0, "Token bucket burst size")
	rootCmd.Flags().DurationVar(&handlerTimeout, "handler-timeout", 0, "Stop waiting for a handler (and suppress its reply) if it runs longer than this; 0 disables it")
	rootCmd.Flags().StringSliceVar(&registryEndpoints, "registry-endpoints", nil, "etcd endpoints to advertise this shard on")
	rootCmd.Flags().StringVar(&registryKey, "registry-key", "chat-server", "Service name this shard registers under")
	rootCmd.Flags().StringVar(&metricsAddr, "metrics-addr", ":2112", "Address to serve Prometheus metrics on; empty disables it")
	rootCmd.Flags().BoolVar(&verbose, "verbose", false, "Enable debug logging")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	cfg := &config.ServerConfig{
		ListenAddr:         listenAddr,
		DedupTTL:           dedupTTL,
		CleanupInterval:    cleanupInterval,
		RateLimitPerSecond: rateLimitPerSecond,
		RateLimitBurst:     rateLimitBurst,
		HandlerTimeout:     handlerTimeout,
		RegistryEndpoints:  registryEndpoints,
		RegistryKey:        registryKey,
		MetricsAddr:        metricsAddr,
		Verbose:            verbose,
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	log := rdplog.New(cfg.Verbose)

	reg := prometheus.NewRegistry()
	serverMetrics := metrics.NewServerMetrics(reg)

	if cfg.MetricsAddr != "" {
		go serveMetrics(log, cfg.MetricsAddr, reg)
	}

	channel, err := datagram.Open(cfg.ListenAddr)
	if err != nil {
		return fmt.Errorf("chat-server: open channel: %w", err)
	}

	srv := rdpserver.New(channel,
		rdpserver.WithLogger(log),
		rdpserver.WithMetrics(serverMetrics),
		rdpserver.WithDedupTTL(cfg.DedupTTL),
	)

	store := chatstore.NewStore()
	handler := chatstore.NewHandler(store, chatstore.WithCleanupInterval(cfg.CleanupInterval))
	srv.OnMessage(handler.Handle)
	srv.Use(middleware.LoggingMiddleware(log))
	if cfg.RateLimitPerSecond > 0 {
		srv.Use(middleware.RateLimitMiddleware(cfg.RateLimitPerSecond, cfg.RateLimitBurst))
	}
	if cfg.HandlerTimeout > 0 {
		srv.Use(middleware.TimeoutMiddleware(cfg.HandlerTimeout))
	}

	if len(cfg.RegistryEndpoints) > 0 {
		if err := advertise(log, cfg, channel.LocalAddr().String()); err != nil {
			return err
		}
	}

	log.Info("chat-server starting", "listen", channel.LocalAddr().String(), "version", version)

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Listen() }()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-sigCh:
		log.Info("chat-server shutting down", "signal", sig.String())
		return srv.Close()
	}
}

func advertise(log *slog.Logger, cfg *config.ServerConfig, addr string) error {
	reg, err := registry.NewEtcdRegistry(cfg.RegistryEndpoints)
	if err != nil {
		return fmt.Errorf("chat-server: connect to registry: %w", err)
	}
	const leaseTTL = 10
	if err := reg.Register(cfg.RegistryKey, registry.ShardInstance{Addr: addr, Weight: 1}, leaseTTL); err != nil {
		return fmt.Errorf("chat-server: register shard: %w", err)
	}
	log.Info("chat-server registered shard", "service", cfg.RegistryKey, "addr", addr)
	return nil
}

func serveMetrics(log *slog.Logger, addr string, reg *prometheus.Registry) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		log.Error("chat-server: metrics listener failed", "error", err)
		return
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	log.Info("chat-server metrics listening", "addr", listener.Addr().String())
	if err := http.Serve(listener, mux); err != nil {
		log.Error("chat-server: metrics server failed", "error", err)
	}
}
