package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"go.uber.org/zap"

	"github.com/LeonardoBeccarini/yard_tracker/internal/config"
	"github.com/LeonardoBeccarini/yard_tracker/internal/datafile"
	"github.com/LeonardoBeccarini/yard_tracker/internal/metrics"
	"github.com/LeonardoBeccarini/yard_tracker/internal/model/messages"
	"github.com/LeonardoBeccarini/yard_tracker/internal/services/event"
	"github.com/LeonardoBeccarini/yard_tracker/internal/services/ingestion"
	"github.com/LeonardoBeccarini/yard_tracker/internal/services/status"
	"github.com/LeonardoBeccarini/yard_tracker/internal/services/tracker"
	transportSimulator "github.com/LeonardoBeccarini/yard_tracker/internal/transport-simulator"
	"github.com/LeonardoBeccarini/yard_tracker/pkg/dedup"
	"github.com/LeonardoBeccarini/yard_tracker/pkg/logger"
	"github.com/LeonardoBeccarini/yard_tracker/pkg/rabbitmq"
)

func main() {
	os.Exit(run())
}

func run() int {
	cfg := config.Load()

	debug := flag.Bool("debug", cfg.LogLevel == "debug", "enable debug logging")
	realtime := flag.Bool("realtime", cfg.Realtime, "simulate an unreliable link with a producer/consumer pipeline")
	speed := flag.Float64("speed", cfg.Speed, "real-time speed factor (2 = twice as fast)")
	yardsPath := flag.String("yards", cfg.YardsPath, "yard directory file")
	messagesPath := flag.String("messages", cfg.MessagesPath, "machine messages JSON file")
	outputDir := flag.String("output", cfg.OutputDir, "output directory")
	seed := flag.Int64("seed", cfg.Seed, "transport simulator seed (0: time based)")
	flag.Parse()

	cfg.Realtime = *realtime
	cfg.Speed = *speed
	cfg.YardsPath = *yardsPath
	cfg.MessagesPath = *messagesPath
	cfg.OutputDir = *outputDir
	cfg.Seed = *seed
	if *debug {
		cfg.LogLevel = "debug"
	}

	log, err := logger.NewLogger(cfg.LogLevel, cfg.LogFormat, "yard-tracker")
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		return 1
	}
	defer func() { _ = log.Sync() }()

	if err := cfg.Validate(); err != nil {
		log.Error("invalid configuration", zap.Error(err))
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// === Input ===
	yardRecords, err := datafile.LoadYards(cfg.YardsPath, log)
	if err != nil {
		log.Error("load yards", zap.String("path", cfg.YardsPath), zap.Error(err))
		return 1
	}
	reports, err := datafile.LoadReports(cfg.MessagesPath, log)
	if err != nil {
		log.Error("load messages", zap.String("path", cfg.MessagesPath), zap.Error(err))
		return 1
	}
	log.Info("input loaded", zap.Int("yards", len(yardRecords)), zap.Int("messages", len(reports)))

	// === Engine ===
	m := metrics.New()
	engine, err := tracker.NewEngineFromRecords(yardRecords, log,
		tracker.WithMetrics(m),
		tracker.WithNoteDeduper(dedup.New(10*time.Minute, 10000)))
	if err != nil {
		log.Error("build engine", zap.Error(err))
		return 1
	}

	// === Sinks ===
	sinks := newSinks(ctx, cfg, log)
	defer sinks.close()
	dispatcher := event.NewDispatcher(sinks.list, cfg.QueueSize, log, m)

	p, err := ingestion.New(engine, log, ingestion.Options{
		QueueSize:     cfg.QueueSize,
		PollTimeout:   cfg.PollTimeout,
		ProgressEvery: cfg.ProgressEvery,
		Metrics:       m,
		Dispatcher:    dispatcher,
	})
	if err != nil {
		log.Error("build pipeline", zap.Error(err))
		return 1
	}

	// === Status surfaces ===
	health := status.NewHealthServer(log)
	if cfg.GRPCPort > 0 {
		go func() {
			if err := health.Serve(ctx, ":"+strconv.Itoa(cfg.GRPCPort)); err != nil {
				log.Error("grpc health server", zap.Error(err))
			}
		}()
	}
	var hs *http.Server
	if cfg.HTTPPort > 0 {
		mux := status.NewHTTPMux(p, m)
		mux.Handle("GET /sinks", event.NewHealthHandler(sinks.deps))
		mux.Handle("GET /readyz", event.NewReadyHandler(sinks.deps, 2*time.Second))
		if sinks.deps.Influx != nil {
			mux.Handle("GET /transitions/latest", event.NewTransitionsLatestHandler(sinks.deps.Influx, cfg.InfluxOrg, cfg.InfluxBucket))
		}
		hs = &http.Server{
			Addr:              ":" + strconv.Itoa(cfg.HTTPPort),
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			log.Info("http listening", zap.Int("port", cfg.HTTPPort))
			if err := hs.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error("http server", zap.Error(err))
			}
		}()
	}

	// === Run ===
	health.SetServing(true)
	var (
		events    []messages.TransitionEvent
		transport *messages.TransportStats
		runErr    error
	)
	if cfg.Realtime {
		tcfg := transportSimulator.DefaultConfig()
		tcfg.LossRate = cfg.LossRate
		tcfg.CoordinateErrorRate = cfg.CoordinateErrorRate
		tcfg.MaxDelay = cfg.MaxDelay
		tcfg.MessageInterval = cfg.MessageInterval
		tcfg.Speed = cfg.Speed

		opts := []transportSimulator.Option{transportSimulator.WithMetrics(m)}
		if cfg.Seed != 0 {
			opts = append(opts, transportSimulator.WithRand(rand.New(rand.NewSource(cfg.Seed))))
		}
		sim, err := transportSimulator.NewSimulator(tcfg, log, opts...)
		if err != nil {
			log.Error("build transport simulator", zap.Error(err))
			return 1
		}
		events, runErr = p.RunRealtime(ctx, reports, sim)
		st := sim.Stats()
		transport = &st
		log.Info("transport statistics",
			zap.Int64("generated", st.Generated),
			zap.Int64("delivered", st.Delivered),
			zap.Int64("lost", st.Lost),
			zap.Int64("delayed", st.Delayed),
			zap.Int64("corrupted", st.Corrupted),
			zap.Float64("delivery_rate", st.DeliveryRate),
			zap.Float64("error_rate", st.ErrorRate))
	} else {
		events, runErr = p.RunBatch(reports)
	}
	health.SetServing(false)
	dispatcher.Close()

	exit := 0
	if runErr != nil {
		log.Error("processing interrupted", zap.Error(runErr))
		exit = 1
	}

	// === Output ===
	summaries := engine.YardSummaries()
	if sinks.influx != nil {
		sinks.influx.WriteSummaries(summaries, time.Now().UTC())
	}
	err = datafile.WriteOutputs(cfg.OutputDir, datafile.Summary{
		RunID:       p.RunID(),
		Realtime:    cfg.Realtime,
		Speed:       cfg.Speed,
		Processed:   engine.Processed(),
		Failed:      engine.Failed(),
		Yards:       summaries,
		Machines:    engine.MachineSnapshots(),
		Transitions: events,
		Transport:   transport,
	})
	if err != nil {
		log.Error("write outputs", zap.String("dir", cfg.OutputDir), zap.Error(err))
		exit = 1
	}

	ys, ms, ps := engine.YardStatistics(), engine.MachineStatistics(), engine.ProcessingStatistics()
	log.Info("run complete",
		zap.Int("processed", ps.Processed),
		zap.Int("failed", ps.Failed),
		zap.Float64("success_rate", ps.SuccessRate),
		zap.Int("transitions", len(events)),
		zap.Int("yards_fully_cleaned", ys.CleanedYards),
		zap.Float64("average_completion", ys.AverageCompletion),
		zap.Int("machines", ms.TotalMachines),
		zap.Int("active_machines", ms.ActiveMachines),
		zap.String("output", cfg.OutputDir))
	for _, issue := range engine.ValidateConsistency() {
		log.Warn("consistency check", zap.String("issue", issue))
	}

	if hs != nil {
		shCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = hs.Shutdown(shCtx)
	}
	return exit
}

// sinkSet holds the optional external consumers of transition events.
type sinkSet struct {
	list    []event.Sink
	deps    event.Deps
	influx  *event.InfluxSink
	closers []func()
}

func (s *sinkSet) close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
}

// newSinks connects the enabled sinks. A sink that cannot be reached is
// logged and left out; the run itself never depends on one.
func newSinks(ctx context.Context, cfg config.Config, log *zap.Logger) *sinkSet {
	s := &sinkSet{}
	cb := event.BreakerSettings{Fails: cfg.CBFails, Open: cfg.CBOpen, Interval: cfg.CBInterval}

	if cfg.MQTTEnabled {
		client, err := rabbitmq.NewRabbitMQConn(ctx, &cfg.Rabbit, log)
		if err != nil {
			log.Warn("mqtt sink disabled", zap.Error(err))
		} else {
			pub := rabbitmq.NewPublisher(client, 1, log)
			s.deps.MQTT = client
			s.list = append(s.list, event.NewBreakerSink(event.NewMQTTSink(pub, cfg.TopicFormat), cb))
			s.closers = append(s.closers, pub.Close)
		}
	}

	if cfg.InfluxEnabled {
		client := influxdb2.NewClientWithOptions(cfg.InfluxURL, cfg.InfluxToken,
			influxdb2.DefaultOptions().SetBatchSize(50).SetFlushInterval(200))
		writeAPI := client.WriteAPI(cfg.InfluxOrg, cfg.InfluxBucket)
		writer := event.NewWriter(writeAPI.Errors(), log)
		s.influx = event.NewInfluxSink(writeAPI, writer)
		s.deps.Influx = client
		s.deps.Writer = writer
		s.list = append(s.list, event.NewBreakerSink(s.influx, cb))
		s.closers = append(s.closers, func() {
			writeAPI.Flush()
			client.Close()
		})
	}
	return s
}
