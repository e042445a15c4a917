package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/banshee-data/posture.report/internal/api"
	"github.com/banshee-data/posture.report/internal/config"
	"github.com/banshee-data/posture.report/internal/db"
	"github.com/banshee-data/posture.report/internal/framefeed"
	"github.com/banshee-data/posture.report/internal/fsutil"
	"github.com/banshee-data/posture.report/internal/notify"
	"github.com/banshee-data/posture.report/internal/posture/pipeline"
	"github.com/banshee-data/posture.report/internal/timeutil"
	"github.com/banshee-data/posture.report/internal/version"
)

var (
	listen     = flag.String("listen", ":8090", "HTTP listen address")
	grpcListen = flag.String("grpc-listen", ":8091", "gRPC health listen address (empty disables)")
	dbFile     = flag.String("db", "posture.db", "SQLite session history (empty disables)")
	configFile = flag.String("config", "", "Tuning config JSON file (defaults when empty)")
	feedSpec   = flag.String("feed", "disabled", "Frame source: serial:<dev>, udp:<addr>, pcap:<file>, file:<file> or disabled")

	baudRate       = flag.Int("baud", 115200, "Serial baud rate")
	udpRcvBuf      = flag.Int("udp-rcvbuf", 1<<20, "UDP receive buffer size in bytes")
	pcapPort       = flag.Int("pcap-port", 9870, "UDP destination port to extract from pcap captures")
	replayRealtime = flag.Bool("replay-realtime", false, "Pace pcap replay at capture speed")
	replayInterval = flag.Duration("replay-interval", 0, "Gap between frames replayed from a file (0 replays as fast as possible)")
	replayLoop     = flag.Bool("replay-loop", false, "Restart file replay at end of input")

	sampleEvery = flag.Duration("sample-every", time.Second, "Minimum gap between persisted metric samples")
	flushEvery  = flag.Duration("flush-every", 5*time.Second, "How often buffered samples are written")

	logDiag     = flag.String("log-diag", "", "Write diagnostic logs to this file (- for stderr)")
	logTrace    = flag.String("log-trace", "", "Write per-frame trace logs to this file (- for stderr)")
	showVersion = flag.Bool("version", false, "Print version and exit")
)

const usageHeader = `Usage: posture [flags]
       posture migrate <action> [args]

`

func main() {
	flag.Usage = func() {
		fmt.Fprint(flag.CommandLine.Output(), usageHeader)
		flag.PrintDefaults()
	}
	flag.Parse()

	if *showVersion {
		fmt.Printf("posture %s (%s, built %s)\n", version.Version, version.GitSHA, version.BuildTime)
		return
	}

	if flag.NArg() > 0 && flag.Arg(0) == "migrate" {
		if *dbFile == "" {
			log.Fatal("migrate needs --db")
		}
		if err := db.RunMigrateCommand(flag.Args()[1:], *dbFile, os.Stdout, os.Stdin); err != nil {
			log.Fatalf("migrate: %v", err)
		}
		return
	}
	if flag.NArg() > 0 {
		flag.Usage()
		os.Exit(2)
	}

	if *listen == "" {
		log.Fatal("Listen address is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		log.Fatal(err)
	}
}

func run(parent context.Context) error {
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	logs, err := openLogs(*logDiag, *logTrace, os.Stderr)
	if err != nil {
		return err
	}
	defer logs.Close()
	logs.Apply()

	clock := timeutil.RealClock{}

	tuning, err := loadTuning(*configFile)
	if err != nil {
		return err
	}
	metricPresets, perfPresets := loadPresets(tuning)
	cfg := engineConfig(tuning, metricPresets, perfPresets)
	engine, err := pipeline.NewEngine(cfg)
	if err != nil {
		return fmt.Errorf("pipeline config: %w", err)
	}
	log.Printf("presets: metric %q, performance %q", cfg.Thresholds.Name, cfg.Performance.Name)

	settings := tuning.GetNotifications().Settings()
	dispatcher := notify.NewDispatcher(notify.FromSettings(settings), settings)

	var (
		database *db.DB
		recorder *db.Recorder
		session  *db.Session
	)
	if *dbFile != "" {
		database, err = db.NewDB(*dbFile)
		if err != nil {
			return fmt.Errorf("open database: %w", err)
		}
		defer database.Close()

		host, _ := os.Hostname()
		session, err = database.StartSession(clock.Now(), cfg.Thresholds.Name, cfg.Performance.Name, host)
		if err != nil {
			return fmt.Errorf("start session: %w", err)
		}
		recorder = db.NewRecorder(database, session.ID, *sampleEvery)
		log.Printf("session %s recording to %s", session.ID, *dbFile)
	}

	charts := api.NewSampleBuffer(tuning.GetChartSamples())
	health := api.NewHealthServer()

	runnerCfg := pipeline.RunnerConfig{
		Clock:       clock,
		QueueSize:   tuning.GetFrameQueueSize(),
		Alerts:      dispatcher,
		Samples:     charts,
		OnFeedState: health.SetFeedLive,
	}
	if recorder != nil {
		runnerCfg.History = recorder
		runnerCfg.Samples = pipeline.SampleSinks{charts, recorder}
	}
	runner := pipeline.NewRunner(engine, runnerCfg)

	src, err := framefeed.Open(*feedSpec, feedOptions())
	if err != nil {
		return fmt.Errorf("open feed: %w", err)
	}
	feed := framefeed.NewFeed(src, runner, clock)
	defer feed.Close()

	sessionID := ""
	if session != nil {
		sessionID = session.ID
	}
	srv := api.NewServer(api.Options{
		Runner:             runner,
		MetricPresets:      metricPresets,
		PerformancePresets: perfPresets,
		Dispatcher:         dispatcher,
		DB:                 database,
		SessionID:          sessionID,
		Charts:             charts,
		Clock:              clock,
	})
	mux := srv.ServeMux()
	srv.AttachAdminRoutes(mux)
	feed.AttachAdminRoutes(mux)
	if database != nil {
		if err := database.AttachAdminRoutes(mux); err != nil {
			return fmt.Errorf("attach db admin routes: %w", err)
		}
	}

	var wg sync.WaitGroup

	// The runner gets its own context so it can resolve open episodes after
	// the feed has stopped.
	runnerCtx, stopRunner := context.WithCancel(context.Background())
	defer stopRunner()
	runnerDone := make(chan struct{})
	go func() {
		defer close(runnerDone)
		if err := runner.Run(runnerCtx); err != nil {
			log.Printf("runner: %v", err)
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		dispatcher.Run(ctx)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := feed.Run(ctx); err != nil {
			log.Printf("%v", err)
		}
	}()

	if recorder != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			recorder.Run(ctx, clock, *flushEvery)
		}()
	}

	if *grpcListen != "" {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := health.ListenAndServe(ctx, *grpcListen); err != nil {
				log.Printf("grpc: %v", err)
			}
		}()
	}

	server := &http.Server{
		Addr:    *listen,
		Handler: api.LoggingMiddleware(mux),
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("HTTP server shutdown error: %v", err)
		}
	}()

	log.Printf("posture %s listening on %s", version.Version, *listen)
	var serveErr error
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		serveErr = fmt.Errorf("http server: %w", err)
		cancel()
	}

	wg.Wait()
	stopRunner()
	<-runnerDone

	if recorder != nil {
		if err := recorder.Flush(); err != nil {
			log.Printf("final sample flush: %v", err)
		}
		if err := database.EndSession(session.ID, clock.Now()); err != nil {
			log.Printf("end session: %v", err)
		}
	}
	log.Printf("shutdown complete")
	return serveErr
}

func loadTuning(path string) (*config.TuningConfig, error) {
	if path == "" {
		return config.EmptyTuningConfig(), nil
	}
	t, err := config.LoadTuningConfig(path)
	if err != nil {
		return nil, fmt.Errorf("load tuning config: %w", err)
	}
	return t, nil
}

// loadPresets opens both preset files. An unusable file is logged and the
// built-in presets are used.
func loadPresets(t *config.TuningConfig) (*config.PresetStore[config.MetricPreset], *config.PresetStore[config.PerformancePreset]) {
	fsys := fsutil.OSFileSystem{}
	metric := config.NewMetricPresetStore(fsys, t.GetMetricPresetsFile())
	if err := metric.Load(); err != nil {
		log.Printf("metric presets: %v", err)
	}
	perf := config.NewPerformancePresetStore(fsys, t.GetPerformancePresetsFile())
	if err := perf.Load(); err != nil {
		log.Printf("performance presets: %v", err)
	}
	return metric, perf
}

func engineConfig(t *config.TuningConfig, metric *config.PresetStore[config.MetricPreset], perf *config.PresetStore[config.PerformancePreset]) pipeline.Config {
	metricName, mp := metric.Resolve(t.GetMetricPreset())
	perfName, pp := perf.Resolve(t.GetPerformancePreset())
	return pipeline.ConfigFromTuning(t,
		pipeline.PerformanceFromPreset(perfName, pp),
		pipeline.ThresholdsFromPreset(metricName, mp))
}

func feedOptions() framefeed.OpenOptions {
	return framefeed.OpenOptions{
		Serial:    framefeed.PortOptions{BaudRate: *baudRate},
		UDPRcvBuf: *udpRcvBuf,
		PcapPort:  *pcapPort,
		Realtime:  *replayRealtime,
		Interval:  *replayInterval,
		Loop:      *replayLoop,
	}
}
