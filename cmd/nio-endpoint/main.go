// File: cmd/nio-endpoint/main.go
// Author: momentics <momentics@gmail.com>
//
// Entry point: binds every spec §6 knob to a cobra/pflag/viper layered
// configuration, builds the container tree, the HTTP/1.1 Processor,
// and the NIO Endpoint, then runs until SIGINT/SIGTERM.
package main

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/momentics/nio-endpoint/api"
	"github.com/momentics/nio-endpoint/container"
	"github.com/momentics/nio-endpoint/control"
	"github.com/momentics/nio-endpoint/endpoint"
	"github.com/momentics/nio-endpoint/http1"
)

// version and build are set via -ldflags at release build time.
var (
	version = "dev"
	build   = "unknown"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix("NIO")
	v.AutomaticEnv()

	cmd := &cobra.Command{
		Use:   "nio-endpoint",
		Short: "HTTP/1.1 NIO endpoint with an epoll Acceptor/Poller/Worker core",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(v)
		},
	}

	flags := cmd.Flags()
	flags.String("address", "0.0.0.0", "listen address")
	flags.Int("port", 8080, "listen port")
	flags.Int("accept-count", 100, "listen(2) backlog")
	flags.Int("max-connections", 8192, "Acceptor permit count (spec §4.1)")
	flags.Duration("connection-timeout", 20*time.Second, "idle read/write timeout")
	flags.Duration("keep-alive-timeout", 60*time.Second, "idle timeout once a keep-alive connection has served a request")
	flags.Int("max-keep-alive-requests", 100, "requests served per connection before forced close, -1 for unlimited")
	flags.Duration("selector-timeout", time.Second, "Poller epoll_wait ceiling")
	flags.Int("poller-thread-priority", 0, "advisory scheduling priority, kept for config parity; not applied on any platform")
	flags.Int("poller-cpu-affinity", -1, "pin the Poller's OS thread to this CPU core, -1 to leave scheduling to the Go runtime")
	flags.Int("processor-cache", 512, "pooled Selector Pool capacity")
	flags.Int("event-cache", 512, "kept for config parity; PollerEvents are not pooled, so this value is unused")
	flags.Int("buffer-pool-cache", 512, "pooled ChannelWrapper capacity")
	flags.Int("app-read-buf-size", 8*1024, "application read buffer size")
	flags.Int("app-write-buf-size", 8*1024, "application write buffer size")
	flags.Bool("direct-buffer", false, "advisory; Go buffers are always heap-backed, kept for config parity with spec §6")
	flags.Bool("ssl-enabled", false, "enable TLS")
	flags.StringSlice("ssl-protocols", nil, "TLS protocols; listing TLSv1.3 sets the minimum version to TLS 1.3, other values are ignored")
	flags.String("keystore-file", "", "PEM certificate+key bundle path")
	flags.String("keystore-password", "", "unused for PEM keystores, kept for config parity with spec §6")
	flags.String("client-auth", "none", "none|want|require")
	flags.Int("max-http-header-size", 8*1024, "header buffer size (spec §4.4)")
	flags.Bool("reject-illegal-header", false, "reject requests with malformed header lines instead of skipping them")
	flags.Int("worker-threads", 64, "Worker Pool size")
	flags.String("config", "", "optional config file (yaml/json/toml), hot-reloaded on change")
	flags.Int("metrics-port", 9090, "Prometheus /metrics listen port, 0 disables it")
	flags.Int("inherited-fd", -1, "adopt a pre-bound listening socket fd instead of binding a new one")
	flags.Bool("dump-config", false, "print the fully resolved configuration as YAML and exit")

	_ = v.BindPFlags(flags)
	return cmd
}

// dumpConfig prints cfg as YAML to stdout, for operators diffing what
// flags/env/config-file resolved to before actually binding a socket.
func dumpConfig(cfg endpoint.Config) error {
	enc := yaml.NewEncoder(os.Stdout)
	defer enc.Close()
	return enc.Encode(cfg)
}

func run(v *viper.Viper) error {
	log, err := zap.NewProduction()
	if err != nil {
		return err
	}
	defer log.Sync()

	if cfgFile := v.GetString("config"); cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("reading config file: %w", err)
		}
	}

	cfg := buildEndpointConfig(v)
	if v.GetBool("dump-config") {
		return dumpConfig(cfg)
	}
	plane := control.NewPlane(control.NewConfigStore(v))
	plane.OnReload(func() { log.Info("configuration reloaded") })
	info := api.ServiceInfo{Name: "nio-endpoint", Version: version, Build: build, StartedAt: time.Now()}
	plane.Debug.RegisterProbe("service.info", func() any { return info })

	engine := buildDemoContainerTree(log)
	if err := engine.Start(context.Background()); err != nil {
		return fmt.Errorf("starting container tree: %w", err)
	}
	defer engine.Stop(context.Background())

	bgSched := &container.TickerScheduler{}
	container.StartBackgroundProcessor(engine, bgSched)
	defer bgSched.Stop()

	proc := &http1.Processor{
		Engine:              engine,
		MaxHTTPHeaderSize:   cfg.MaxHTTPHeaderSize,
		RejectIllegalHeader: cfg.RejectIllegalHeader,
		Log:                 log,
		Metrics:             plane.Metrics,
	}

	var tlsEngine endpoint.TLSEngine
	if cfg.SSLEnabled {
		tlsCfg, err := buildTLSConfig(cfg)
		if err != nil {
			return fmt.Errorf("building TLS config: %w", err)
		}
		tlsEngine = endpoint.NewTLSEngine(tlsCfg)
	}

	ep := endpoint.New(cfg, proc, log, tlsEngine)
	ep.Metrics = plane.Metrics
	plane.Debug.RegisterProbe("endpoint.connections", func() any { return ep.ConnCount() })
	if err := ep.Bind(v.GetInt("inherited-fd")); err != nil {
		return fmt.Errorf("binding listener: %w", err)
	}
	if err := ep.Start(); err != nil {
		return fmt.Errorf("starting endpoint: %w", err)
	}
	log.Info("endpoint started", zap.String("address", cfg.Address), zap.Int("port", cfg.Port))

	var metricsSrv *http.Server
	if port := v.GetInt("metrics-port"); port > 0 {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(plane.Metrics.Registry, promhttp.HandlerOpts{}))
		mux.HandleFunc("/debug/vars", func(w http.ResponseWriter, r *http.Request) {
			for k, val := range plane.Stats() {
				fmt.Fprintf(w, "%s: %v\n", k, val)
			}
		})
		metricsSrv = &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux}
		go func() {
			if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Warn("metrics server stopped", zap.Error(err))
			}
		}()
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	log.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if metricsSrv != nil {
		_ = metricsSrv.Shutdown(ctx)
	}
	return ep.Stop(ctx)
}

func buildEndpointConfig(v *viper.Viper) endpoint.Config {
	cfg := endpoint.DefaultConfig()
	cfg.Address = v.GetString("address")
	cfg.Port = v.GetInt("port")
	cfg.AcceptCount = v.GetInt("accept-count")
	cfg.MaxConnections = v.GetInt("max-connections")
	cfg.ConnectionTimeout = v.GetDuration("connection-timeout")
	cfg.KeepAliveTimeout = v.GetDuration("keep-alive-timeout")
	cfg.MaxKeepAliveRequests = v.GetInt("max-keep-alive-requests")
	cfg.SelectorTimeout = v.GetDuration("selector-timeout")
	cfg.PollerThreadPriority = v.GetInt("poller-thread-priority")
	cfg.PollerCPUAffinity = v.GetInt("poller-cpu-affinity")
	cfg.ProcessorCache = v.GetInt("processor-cache")
	cfg.EventCache = v.GetInt("event-cache")
	cfg.BufferPoolCache = v.GetInt("buffer-pool-cache")
	cfg.AppReadBufSize = v.GetInt("app-read-buf-size")
	cfg.AppWriteBufSize = v.GetInt("app-write-buf-size")
	cfg.DirectBuffer = v.GetBool("direct-buffer")
	cfg.SSLEnabled = v.GetBool("ssl-enabled")
	cfg.SSLProtocols = v.GetStringSlice("ssl-protocols")
	cfg.KeystoreFile = v.GetString("keystore-file")
	cfg.KeystorePassword = v.GetString("keystore-password")
	cfg.ClientAuth = v.GetString("client-auth")
	cfg.MaxHTTPHeaderSize = v.GetInt("max-http-header-size")
	cfg.RejectIllegalHeader = v.GetBool("reject-illegal-header")
	cfg.WorkerThreads = v.GetInt("worker-threads")
	return cfg
}

func buildTLSConfig(cfg endpoint.Config) (*tls.Config, error) {
	cert, err := tls.LoadX509KeyPair(cfg.KeystoreFile, cfg.KeystoreFile)
	if err != nil {
		return nil, fmt.Errorf("loading keystore %q: %w", cfg.KeystoreFile, err)
	}
	tlsCfg := &tls.Config{Certificates: []tls.Certificate{cert}}
	switch cfg.ClientAuth {
	case "want":
		tlsCfg.ClientAuth = tls.VerifyClientCertIfGiven
	case "require":
		tlsCfg.ClientAuth = tls.RequireAndVerifyClientCert
	default:
		tlsCfg.ClientAuth = tls.NoClientCert
	}
	for _, p := range cfg.SSLProtocols {
		if p == "TLSv1.3" {
			tlsCfg.MinVersion = tls.VersionTLS13
		}
	}
	return tlsCfg, nil
}

// buildDemoContainerTree wires a minimal Engine/Host/Context/Wrapper
// tree so the endpoint has somewhere to dispatch requests out of the
// box; real deployments replace this with their own tree.
func buildDemoContainerTree(log *zap.Logger) *container.Engine {
	engine := container.NewEngine("engine", 10*time.Second)
	engine.DefaultHost = "localhost"

	host := container.NewHost("localhost", 0)
	ctx := container.NewContext("root", 0)
	ctx.Pipeline().AddValve(container.NewAccessLogValve(log))

	echo := container.NewWrapper("echo", func(_ context.Context, req *container.Request, resp *container.Response) error {
		resp.Status = 200
		resp.SetHeader("Content-Type", "text/plain; charset=utf-8")
		resp.Body = []byte("ok\n")
		return nil
	}, 0)
	ctx.Mappings["/"] = "echo"
	ctx.Mappings["/healthz"] = "echo"

	_ = ctx.AddChild("echo", echo)
	_ = host.AddChild("/", ctx)
	_ = engine.AddChild("localhost", host)
	return engine
}
