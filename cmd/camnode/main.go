package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/djlord-it/camsync/internal/camera"
	"github.com/djlord-it/camsync/internal/config"
	"github.com/djlord-it/camsync/internal/metrics"
	"github.com/djlord-it/camsync/internal/orchestrator"
	"github.com/djlord-it/camsync/internal/status"
	"github.com/djlord-it/camsync/internal/sweeper"
	"github.com/djlord-it/camsync/internal/timing"
	"github.com/djlord-it/camsync/internal/transport/udp"
)

// Build-time variables set via -ldflags
var (
	version = "dev"
	commit  = "unknown"
)

const (
	exitSuccess       = 0
	exitRuntimeError  = 1
	exitInvalidConfig = 2
)

const httpShutdownTimeout = 10 * time.Second

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(exitRuntimeError)
	}

	cmd := os.Args[1]

	switch cmd {
	case "serve":
		os.Exit(runServe())
	case "validate":
		os.Exit(runValidate())
	case "config":
		os.Exit(runConfig())
	case "version":
		os.Exit(runVersion())
	case "--help", "-h", "help":
		printUsage()
		os.Exit(exitSuccess)
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", cmd)
		printUsage()
		os.Exit(exitRuntimeError)
	}
}

func printUsage() {
	fmt.Println(`camnode - synchronized camera capture daemon

Usage:
  camnode <command>

Commands:
  serve      Listen for triggers and capture stills
  validate   Validate configuration (no sockets opened)
  config     Print effective configuration as JSON
  version    Print version information

Environment Variables:
  LISTEN_PORT               UDP trigger port (default: "5005")
  ACK_PORT                  UDP port acks are sent back to (default: "5006")
  ACK_ENABLED               Send acks after each capture (default: "true")
  SAVE_DIR                  Capture output directory (default: "/home/pi/captures")
  FILENAME_PREFIX           Default artifact prefix (default: "capture")
  NODE_NAME                 Node name for status reporting (default: hostname)

  DEFAULT_LEAD_TIME         Lead applied to bare triggers (default: "800ms")
  SETTLE_DURATION           Pause between wait and capture (default: "120ms")
  FINE_WAIT_THRESHOLD       Busy-wait window before target (default: "10ms")

  CAPTURE_COMMAND           Capture tool (default: "rpicam-jpeg")
  CAPTURE_WIDTH             Still width in pixels (default: "4056")
  CAPTURE_HEIGHT            Still height in pixels (default: "3040")
  CAPTURE_QUALITY           JPEG quality 1-100 (default: "95")
  CAPTURE_TIMEOUT           Capture tool timeout (default: "10s")

  STATUS_ENABLED            Enable status HTTP server (default: "true")
  STATUS_ADDR               Status server address (default: ":8080")

  SWEEP_ENABLED             Enable artifact retention sweep (default: "false")
  SWEEP_INTERVAL            How often to sweep (default: "1h")
  SWEEP_MAX_AGE             Artifact age before deletion (default: "168h")
  SWEEP_BATCH_SIZE          Max deletions per cycle (default: "100")

  METRICS_ENABLED           Enable Prometheus metrics (default: "false")
  METRICS_PATH              Metrics endpoint path (default: "/metrics")
  METRICS_PORT              Metrics server port (default: "9090")`)
}

func runServe() int {
	cfg := config.LoadNode()

	if err := config.ValidateNode(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		return exitInvalidConfig
	}

	if err := os.MkdirAll(cfg.SaveDir, 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "failed to create save dir: %v\n", err)
		return exitRuntimeError
	}

	conn, err := udp.Listen(cfg.ListenPort)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to bind trigger port: %v\n", err)
		return exitRuntimeError
	}

	// Initialize metrics sink (optional)
	var metricsSink *metrics.PrometheusSink
	var metricsServer *http.Server

	if cfg.MetricsEnabled {
		metricsSink = metrics.NewPrometheusSink(prometheus.DefaultRegisterer)
		log.Printf("camnode: metrics enabled (port=%d, path=%s)", cfg.MetricsPort, cfg.MetricsPath)

		metricsMux := http.NewServeMux()
		metricsMux.Handle(cfg.MetricsPath, promhttp.Handler())
		metricsServer = &http.Server{
			Addr:    ":" + strconv.Itoa(cfg.MetricsPort),
			Handler: metricsMux,
		}
		go func() {
			log.Printf("camnode: metrics server listening on :%d", cfg.MetricsPort)
			if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Printf("camnode: metrics server error: %v", err)
			}
		}()
	} else {
		log.Println("camnode: METRICS_ENABLED not set; metrics disabled")
	}

	waiter := timing.NewHybridWaiter().WithFineThreshold(cfg.FineWaitThreshold)
	capturer := camera.NewExecCapturer(cfg.CaptureCommand, cfg.CaptureTimeout)

	orch := orchestrator.New(
		orchestrator.Config{
			AckPort:         cfg.AckPort,
			AckEnabled:      cfg.AckEnabled,
			DefaultLeadTime: cfg.DefaultLeadTime,
			SettleDuration:  cfg.SettleDuration,
			SaveDir:         cfg.SaveDir,
			DefaultPrefix:   cfg.FilenamePrefix,
			CaptureWidth:    cfg.CaptureWidth,
			CaptureHeight:   cfg.CaptureHeight,
			CaptureQuality:  cfg.CaptureQuality,
		},
		conn,
		waiter,
		capturer,
	)
	if metricsSink != nil {
		orch = orch.WithMetrics(metricsSink)
	}

	// Start status server if enabled
	var statusServer *http.Server
	if cfg.StatusEnabled {
		statusServer = &http.Server{
			Addr:    cfg.StatusAddr,
			Handler: status.NewHandler(cfg.NodeName, cfg.SaveDir),
		}
		go func() {
			log.Printf("camnode: status server listening on %s", cfg.StatusAddr)
			if err := statusServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Printf("camnode: status server error: %v", err)
			}
		}()
	} else {
		log.Println("camnode: STATUS_ENABLED=false; status server disabled")
	}

	// Use separate contexts for orchestrator and sweeper to enable ordered shutdown.
	orchCtx, cancelOrch := context.WithCancel(context.Background())

	var orchWg sync.WaitGroup
	var sweeperWg sync.WaitGroup
	var cancelSweeper context.CancelFunc

	orchWg.Add(1)
	go func() {
		defer orchWg.Done()
		err := orch.Run(orchCtx)
		if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, net.ErrClosed) {
			log.Printf("camnode: orchestrator error: %v", err)
		}
	}()

	// Start sweeper if enabled
	if cfg.SweepEnabled {
		var sweeperCtx context.Context
		sweeperCtx, cancelSweeper = context.WithCancel(context.Background())
		sweep := sweeper.New(sweeper.Config{
			Dir:       cfg.SaveDir,
			Interval:  cfg.SweepInterval,
			MaxAge:    cfg.SweepMaxAge,
			BatchSize: cfg.SweepBatchSize,
		})
		sweeperWg.Add(1)
		go func() {
			defer sweeperWg.Done()
			sweep.Run(sweeperCtx)
		}()
	} else {
		log.Println("camnode: SWEEP_ENABLED not set; sweeper disabled")
	}

	log.Printf("camnode: started (node=%s, listen=%d, save_dir=%s)", cfg.NodeName, cfg.ListenPort, cfg.SaveDir)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	received := <-sig

	log.Printf("camnode: received signal %v, shutting down", received)

	// Phase 1: Stop the orchestrator. Closing the socket unblocks a
	// pending receive; an in-flight capture finishes first.
	log.Println("camnode: stopping orchestrator...")
	cancelOrch()
	conn.Close()
	orchWg.Wait()
	log.Println("camnode: orchestrator stopped")

	// Phase 2: Stop sweeper
	if cancelSweeper != nil {
		log.Println("camnode: stopping sweeper...")
		cancelSweeper()
		sweeperWg.Wait()
		log.Println("camnode: sweeper stopped")
	}

	// Phase 3: Stop status server with graceful shutdown
	if statusServer != nil {
		log.Println("camnode: stopping status server...")
		statusShutdownCtx, statusShutdownCancel := context.WithTimeout(context.Background(), httpShutdownTimeout)
		defer statusShutdownCancel()
		if err := statusServer.Shutdown(statusShutdownCtx); err != nil {
			log.Printf("camnode: status server shutdown error: %v", err)
		}
		log.Println("camnode: status server stopped")
	}

	// Phase 4: Stop metrics server if running
	if metricsServer != nil {
		log.Println("camnode: stopping metrics server...")
		metricsShutdownCtx, metricsShutdownCancel := context.WithTimeout(context.Background(), httpShutdownTimeout)
		defer metricsShutdownCancel()
		if err := metricsServer.Shutdown(metricsShutdownCtx); err != nil {
			log.Printf("camnode: metrics server shutdown error: %v", err)
		}
		log.Println("camnode: metrics server stopped")
	}

	log.Println("camnode: stopped")
	return exitSuccess
}

func runValidate() int {
	cfg := config.LoadNode()

	if err := config.ValidateNode(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return exitInvalidConfig
	}

	fmt.Println("configuration valid")
	return exitSuccess
}

func runConfig() int {
	cfg := config.LoadNode()

	data, err := cfg.MaskedJSON()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to marshal config: %v\n", err)
		return exitRuntimeError
	}

	fmt.Println(string(data))
	return exitSuccess
}

func runVersion() int {
	fmt.Printf("camnode version %s (commit: %s)\n", version, commit)
	return exitSuccess
}
