// Package main provides the hyrax-auth server entrypoint.
//
// hyrax-auth guards a Hyrax data server. Requests under the application
// context path pass through an authentication filter, which manages user
// sessions and login through the configured identity providers, and an
// authorization filter, which asks a policy decision point whether the
// caller may perform the request.
//
// # Configuration
//
// The server reads a YAML configuration file, or the legacy Hyrax XML access
// configuration when the file name ends in .xml:
//
//	server:
//	  host: 127.0.0.1
//	  port: "8080"
//	  context_path: /opendap
//	authentication:
//	  providers:
//	    - class: urs
//	      default: true
//	      urs_url: https://urs.earthdata.nasa.gov
//	      client_id: my-client
//	      client_auth_code: bXktY2xpZW50OnNlY3JldA==
//	authorization:
//	  pdp:
//	    class: local
//	    policies:
//	      - {class: regex, role: ".*", resource: "/opendap/public/.*", actions: [GET]}
//
// Identity providers and the policy decision point are built on the first
// request. If that fails the filters answer 503 and the configuration file
// is read again on the next request.
//
// Command line options:
//
//	--host          API server hostname (overrides server.host)
//	--port          API server port (overrides server.port)
//	--external-url  External URL for AuthZEN discovery
//	--version       Show version information
//	--help          Show help message
//
// Logging options:
//
//	--log-level    Logging level: debug, info, warn, error, fatal (overrides logging.level)
//	--log-format   Logging format: text or json (overrides logging.format)
//	--log-output   Log output: stdout, stderr, or file path (overrides logging.output)
//
// # API Endpoints
//
//	GET  /health, /healthz      - Liveness probe
//	GET  /ready, /readiness     - Readiness probe, 503 until the filters initialize
//	GET  /metrics               - Prometheus metrics
//	GET  /status                - Identity providers, PDP kind and session count
//	POST /authzen/decision      - AuthZEN access evaluation
//	GET  /.well-known/authzen-configuration
//	GET|POST <context>/pdpService - PDP service for remote enforcement points (when enabled)
//	GET  <context>/whoami       - The caller as seen by the filters
//	GET  /swagger/index.html    - API documentation
//
// The login landing page, guest login and logout live under the context path
// at the configured login and logout paths.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	_ "github.com/OPENDAP/hyrax-auth/docs/swagger" // Import generated docs
	"github.com/OPENDAP/hyrax-auth/pkg/api"
	"github.com/OPENDAP/hyrax-auth/pkg/config"
	"github.com/OPENDAP/hyrax-auth/pkg/filter"
	"github.com/OPENDAP/hyrax-auth/pkg/logging"
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// @title Hyrax Auth API
// @version 1.0
// @description Authentication and authorization front end for Hyrax data servers.
// @description
// @description Users log in through configurable identity providers and every request under the
// @description application context is checked against a policy decision point.

// @contact.name OPeNDAP
// @contact.url https://github.com/OPENDAP/hyrax-auth
// @contact.email support@opendap.org

// @license.name LGPL-2.1
// @license.url https://www.gnu.org/licenses/old-licenses/lgpl-2.1.html

// @host localhost:8080
// @BasePath /

// @schemes http https

// @tag.name Health
// @tag.description Health check and readiness endpoints for Kubernetes and monitoring systems

// @tag.name Status
// @tag.description Server status and caller information

// @tag.name AuthZEN
// @tag.description AuthZEN access evaluation endpoints

// @tag.name PDP
// @tag.description Policy decision point service for remote enforcement points

// Version is set at build time using -ldflags:
// go build -ldflags "-X main.Version=1.0.0" ./cmd
var Version = "dev"

// limiterIdle is how long a client may stay quiet before its rate limiter is dropped.
const limiterIdle = 10 * time.Minute

func usage() {
	prog := os.Args[0]
	fmt.Fprintf(os.Stderr, "\nUsage: %s [options] <auth.yaml|auth.xml>\n", prog)
	fmt.Fprintln(os.Stderr, "Options:")
	fmt.Fprintln(os.Stderr, "  --help         Show this help message and exit.")
	fmt.Fprintln(os.Stderr, "  --version      Show version information and exit.")
	fmt.Fprintln(os.Stderr, "  --host         API server hostname (default: from configuration)")
	fmt.Fprintln(os.Stderr, "  --port         API server port (default: from configuration)")
	fmt.Fprintln(os.Stderr, "  --external-url External URL for AuthZEN discovery (e.g., https://data.example.org)")
	fmt.Fprintln(os.Stderr, "                 Can also be set via HA_EXTERNAL_URL environment variable")
	fmt.Fprintln(os.Stderr, "Logging options:")
	fmt.Fprintln(os.Stderr, "  --log-level    Logging level: debug, info, warn, error, fatal")
	fmt.Fprintln(os.Stderr, "  --log-format   Logging format: text or json")
	fmt.Fprintln(os.Stderr, "  --log-output   Log output: stdout, stderr, or file path")
	fmt.Fprintln(os.Stderr, "")
}

// newLogger builds the process logger from the logging configuration.
func newLogger(cfg config.LoggingConfig) (logging.Logger, error) {
	if _, ok := logging.ParseLevel(cfg.Level); !ok {
		fmt.Fprintf(os.Stderr, "Warning: unknown log level '%s', using 'info'\n", cfg.Level)
	}
	logger := logging.New(cfg.Level, cfg.Format)

	switch output := strings.ToLower(cfg.Output); output {
	case "", "stdout":
	case "stderr":
		logger.(logging.OutputConfigurable).SetOutput(os.Stderr)
	default:
		if err := os.MkdirAll(filepath.Dir(cfg.Output), 0755); err != nil {
			return nil, fmt.Errorf("failed to create log directory: %w", err)
		}
		file, err := os.OpenFile(cfg.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file: %w", err)
		}
		logger.(logging.OutputConfigurable).SetOutput(file)
	}
	return logger, nil
}

// baseURL picks the external URL: the flag, then HA_EXTERNAL_URL, then the
// listen address.
func baseURL(flagValue string, server config.ServerConfig) string {
	if flagValue != "" {
		return flagValue
	}
	if v := os.Getenv("HA_EXTERNAL_URL"); v != "" {
		return v
	}
	return fmt.Sprintf("http://%s:%s", server.Host, server.Port)
}

// setupRouter wires the filters and every endpoint. Filter settings are
// built from configFile on first use.
func setupRouter(cfg *config.Config, configFile, externalURL string, logger logging.Logger) (*gin.Engine, *api.ServerContext) {
	serverCtx := api.NewServerContext(logger)
	serverCtx.ContextPath = cfg.Server.NormalizedContextPath()
	serverCtx.PDPService = cfg.PDPService
	serverCtx.BaseURL = baseURL(externalURL, cfg.Server)
	serverCtx.Metrics = api.NewMetrics()
	serverCtx.RateLimiter = api.NewRateLimiter(cfg.Security.RateLimitRPS, cfg.Security.RateLimitBurst)

	opts := filter.Options{
		Logger:      logger,
		Recorder:    serverCtx.Metrics,
		PublicPaths: api.PublicPaths(serverCtx, cfg.Server.PublicPaths...),
	}
	serverCtx.Filters = filter.NewLazy(filter.FromFile(configFile, opts), logger)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(serverCtx.Metrics.MetricsMiddleware())
	r.Use(filter.NewAuthenticationFilter(serverCtx.Filters, opts).Middleware())
	r.Use(filter.NewAuthorizationFilter(serverCtx.Filters, opts).Middleware())

	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	api.RegisterHealthEndpoints(r, serverCtx)
	api.RegisterMetricsEndpoint(r, serverCtx.Metrics)
	api.RegisterAPIRoutes(r, serverCtx)

	return r, serverCtx
}

// cleanupLimiters periodically forgets idle rate limiter clients until ctx is done.
func cleanupLimiters(ctx context.Context, rl *api.RateLimiter, every time.Duration, logger logging.Logger) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := rl.CleanupOldLimiters(limiterIdle); n > 0 {
				logger.Debug("Dropped idle rate limiters", logging.F("count", n))
			}
		}
	}
}

func main() {
	showHelp := flag.Bool("help", false, "Show help message")
	showVersion := flag.Bool("version", false, "Show version information")
	host := flag.String("host", "", "API server hostname")
	port := flag.String("port", "", "API server port")
	externalURL := flag.String("external-url", "", "External URL for AuthZEN discovery (e.g., https://data.example.org)")

	logLevel := flag.String("log-level", "", "Logging level (debug, info, warn, error, fatal)")
	logFormat := flag.String("log-format", "", "Logging format (text, json)")
	logOutput := flag.String("log-output", "", "Log output (stdout, stderr, or file path)")

	flag.Parse()

	if *showHelp {
		usage()
		os.Exit(0)
	}
	if *showVersion {
		fmt.Println("Version:", Version)
		os.Exit(0)
	}

	args := flag.Args()
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "Error: missing configuration file argument.")
		usage()
		os.Exit(1)
	}
	configFile := args[0]

	cfg, err := config.LoadConfig(configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	for flagValue, target := range map[*string]*string{
		host:      &cfg.Server.Host,
		port:      &cfg.Server.Port,
		logLevel:  &cfg.Logging.Level,
		logFormat: &cfg.Logging.Format,
		logOutput: &cfg.Logging.Output,
	} {
		if *flagValue != "" {
			*target = *flagValue
		}
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := newLogger(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}

	gin.SetMode(gin.ReleaseMode)
	r, serverCtx := setupRouter(cfg, configFile, *externalURL, logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go cleanupLimiters(ctx, serverCtx.RateLimiter, time.Minute, logger)

	listenAddr := fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port)
	logger.Info("API server starting",
		logging.F("address", listenAddr),
		logging.F("version", Version),
		logging.F("config", configFile),
		logging.F("context_path", serverCtx.ContextPath),
		logging.F("pdp_service", cfg.PDPService.Enabled),
		logging.F("log_level", cfg.Logging.Level))

	srv := &http.Server{
		Addr:              listenAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Error("API server failed to start",
				logging.F("error", err.Error()),
				logging.F("address", listenAddr))
			os.Exit(1)
		}
	case <-ctx.Done():
		logger.Info("Shutting down API server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("API server shutdown failed", logging.F("error", err.Error()))
		}
	}
}
