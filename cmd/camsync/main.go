package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/djlord-it/camsync/internal/analytics"
	"github.com/djlord-it/camsync/internal/broadcaster"
	"github.com/djlord-it/camsync/internal/config"
	"github.com/djlord-it/camsync/internal/metrics"
	"github.com/djlord-it/camsync/internal/schedule"
	"github.com/djlord-it/camsync/internal/store/postgres"
	"github.com/djlord-it/camsync/internal/transport/udp"

	_ "github.com/lib/pq"
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
	exitPartialRound  = 3
)

const httpShutdownTimeout = 10 * time.Second

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(exitRuntimeError)
	}

	cmd := os.Args[1]

	switch cmd {
	case "trigger":
		os.Exit(runTrigger())
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
	fmt.Println(`camsync - synchronized camera fleet coordinator

Usage:
  camsync <command>

Commands:
  trigger    Fire one synchronized round and print per-node results
             (exits 3 when any node failed or timed out)
  serve      Fire rounds on a cron schedule until interrupted
  validate   Validate configuration (no connections made)
  config     Print effective configuration as JSON (secrets masked)
  version    Print version information

Environment Variables:
  FLEET_ADDRS               Comma-separated node host:port list (required)
  FLEET_FILE                YAML node list; takes precedence over FLEET_ADDRS
  ACK_PORT                  UDP port to collect acks on (default: "5006")
  LEAD_TIME                 Lead between send and shoot time (default: "300ms")
  ACK_WAIT                  Extra wait for acks past the shoot time (default: "2s")
  TRIGGER_PREFIX            Artifact prefix sent with each trigger (optional)

  SCHEDULE                  Cron expression for serve mode (required by serve)
  SCHEDULE_TIMEZONE         Timezone for the schedule (default: "UTC")

  DATABASE_URL              PostgreSQL round history (optional)
  DB_OP_TIMEOUT             Database operation timeout (default: "5s")
  REDIS_ADDR                Redis address for outcome analytics (optional)

  METRICS_ENABLED           Enable Prometheus metrics, serve mode (default: "false")
  METRICS_PATH              Metrics endpoint path (default: "/metrics")
  METRICS_PORT              Metrics server port (default: "9090")`)
}

// buildBroadcaster wires the broadcaster with whatever optional backends
// the config names. The returned cleanup closes them.
func buildBroadcaster(cfg config.CoordinatorConfig, conn *udp.Conn, metricsSink metrics.Sink) (*broadcaster.Broadcaster, func(), error) {
	b := broadcaster.New(broadcaster.Config{AckWait: cfg.AckWait}, conn)
	if metricsSink != nil {
		b = b.WithMetrics(metricsSink)
	}

	var cleanups []func()
	cleanup := func() {
		for _, fn := range cleanups {
			fn()
		}
	}

	if cfg.DatabaseURL != "" {
		db, err := sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			return nil, cleanup, fmt.Errorf("open database: %w", err)
		}
		cleanups = append(cleanups, func() { db.Close() })
		if err := db.Ping(); err != nil {
			return nil, cleanup, fmt.Errorf("connect to database: %w", err)
		}
		b = b.WithStore(postgres.New(db, cfg.DBOpTimeout))
		log.Println("camsync: round history enabled (postgres)")
	} else {
		log.Println("camsync: DATABASE_URL not set; round history disabled")
	}

	if cfg.RedisAddr != "" {
		redisClient := redis.NewClient(&redis.Options{
			Addr: cfg.RedisAddr,
		})
		cleanups = append(cleanups, func() { redisClient.Close() })
		b = b.WithAnalytics(analytics.NewRedisSink(redisClient))
		log.Printf("camsync: analytics enabled (redis=%s)", cfg.RedisAddr)
	} else {
		log.Println("camsync: REDIS_ADDR not set; analytics disabled")
	}

	return b, cleanup, nil
}

func runTrigger() int {
	cfg := config.LoadCoordinator()

	if err := config.ValidateCoordinator(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		return exitInvalidConfig
	}

	nodes, err := cfg.Fleet()
	if err != nil {
		fmt.Fprintf(os.Stderr, "fleet error: %v\n", err)
		return exitInvalidConfig
	}

	conn, err := udp.Listen(cfg.AckPort)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to bind ack port: %v\n", err)
		return exitRuntimeError
	}
	defer conn.Close()

	b, cleanup, err := buildBroadcaster(cfg, conn, nil)
	defer cleanup()
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return exitRuntimeError
	}

	round, err := b.TriggerAll(context.Background(), nodes, cfg.LeadTime, cfg.TriggerPrefix)
	if err != nil {
		fmt.Fprintf(os.Stderr, "trigger failed: %v\n", err)
		return exitRuntimeError
	}

	fmt.Print(broadcaster.FormatResults(round))

	ok, failed, timedOut := round.Counts()
	fmt.Printf("%d ok, %d failed, %d timed out\n", ok, failed, timedOut)
	if failed+timedOut > 0 {
		return exitPartialRound
	}
	return exitSuccess
}

func runServe() int {
	cfg := config.LoadCoordinator()

	if err := config.ValidateCoordinator(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		return exitInvalidConfig
	}
	if cfg.Schedule == "" {
		fmt.Fprintln(os.Stderr, "configuration error: SCHEDULE is required in serve mode")
		return exitInvalidConfig
	}

	nodes, err := cfg.Fleet()
	if err != nil {
		fmt.Fprintf(os.Stderr, "fleet error: %v\n", err)
		return exitInvalidConfig
	}

	conn, err := udp.Listen(cfg.AckPort)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to bind ack port: %v\n", err)
		return exitRuntimeError
	}
	defer conn.Close()

	// Initialize metrics sink (optional)
	var metricsSink *metrics.PrometheusSink
	var metricsServer *http.Server

	if cfg.MetricsEnabled {
		metricsSink = metrics.NewPrometheusSink(prometheus.DefaultRegisterer)
		log.Printf("camsync: metrics enabled (port=%d, path=%s)", cfg.MetricsPort, cfg.MetricsPath)

		metricsMux := http.NewServeMux()
		metricsMux.Handle(cfg.MetricsPath, promhttp.Handler())
		metricsServer = &http.Server{
			Addr:    ":" + strconv.Itoa(cfg.MetricsPort),
			Handler: metricsMux,
		}
		go func() {
			log.Printf("camsync: metrics server listening on :%d", cfg.MetricsPort)
			if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Printf("camsync: metrics server error: %v", err)
			}
		}()
	} else {
		log.Println("camsync: METRICS_ENABLED not set; metrics disabled")
	}

	// Avoid handing a typed nil to the broadcaster.
	var sink metrics.Sink
	if metricsSink != nil {
		sink = metricsSink
	}
	b, cleanup, err := buildBroadcaster(cfg, conn, sink)
	defer cleanup()
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return exitRuntimeError
	}

	sched, err := schedule.New(
		schedule.Config{
			Expression: cfg.Schedule,
			Timezone:   cfg.ScheduleTimezone,
			Nodes:      nodes,
			LeadTime:   cfg.LeadTime,
			Prefix:     cfg.TriggerPrefix,
		},
		b,
	)
	if err != nil {
		fmt.Fprintf(os.Stderr, "schedule error: %v\n", err)
		return exitInvalidConfig
	}

	schedulerCtx, cancelScheduler := context.WithCancel(context.Background())

	var schedulerWg sync.WaitGroup
	schedulerWg.Add(1)
	go func() {
		defer schedulerWg.Done()
		sched.Run(schedulerCtx)
	}()

	log.Printf("camsync: started (schedule=%q, nodes=%d, lead=%s)", cfg.Schedule, len(nodes), cfg.LeadTime)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	received := <-sig

	log.Printf("camsync: received signal %v, shutting down", received)

	// Phase 1: Stop the scheduler. An in-flight round finishes its ack
	// collection before Run returns.
	log.Println("camsync: stopping scheduler...")
	cancelScheduler()
	schedulerWg.Wait()
	log.Println("camsync: scheduler stopped")

	// Phase 2: Stop metrics server if running
	if metricsServer != nil {
		log.Println("camsync: stopping metrics server...")
		metricsShutdownCtx, metricsShutdownCancel := context.WithTimeout(context.Background(), httpShutdownTimeout)
		defer metricsShutdownCancel()
		if err := metricsServer.Shutdown(metricsShutdownCtx); err != nil {
			log.Printf("camsync: metrics server shutdown error: %v", err)
		}
		log.Println("camsync: metrics server stopped")
	}

	log.Println("camsync: stopped")
	return exitSuccess
}

func runValidate() int {
	cfg := config.LoadCoordinator()

	if err := config.ValidateCoordinator(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return exitInvalidConfig
	}

	fmt.Println("configuration valid")
	return exitSuccess
}

func runConfig() int {
	cfg := config.LoadCoordinator()

	data, err := cfg.MaskedJSON()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to marshal config: %v\n", err)
		return exitRuntimeError
	}

	fmt.Println(string(data))
	return exitSuccess
}

func runVersion() int {
	fmt.Printf("camsync version %s (commit: %s)\n", version, commit)
	return exitSuccess
}
