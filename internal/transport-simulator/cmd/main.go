package main

import (
	"flag"
	"math/rand"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/LeonardoBeccarini/yard_tracker/internal/datafile"
	transportSimulator "github.com/LeonardoBeccarini/yard_tracker/internal/transport-simulator"
	"github.com/LeonardoBeccarini/yard_tracker/pkg/logger"
)

func main() {
	out := flag.String("out", "data", "output directory")
	seed := flag.Int64("seed", 42, "random seed")
	logLevel := flag.String("log-level", "info", "debug|info|warn|error")
	flag.Parse()

	log, err := logger.NewLogger(*logLevel, "console", "yard-generator")
	if err != nil {
		panic(err)
	}
	defer func() { _ = log.Sync() }()

	cfg := transportSimulator.DefaultGeneratorConfig()
	cfg.Start = time.Now().UTC().Add(-time.Hour).Truncate(time.Second)
	ds := transportSimulator.NewGenerator(cfg, rand.New(rand.NewSource(*seed))).Generate()

	yardsPath := filepath.Join(*out, "yards.txt")
	messagesPath := filepath.Join(*out, "machine_messages.json")
	if err := datafile.WriteYards(yardsPath, ds.Yards); err != nil {
		log.Error("write yards", zap.Error(err))
		os.Exit(1)
	}
	if err := datafile.WriteReports(messagesPath, ds.Reports); err != nil {
		log.Error("write messages", zap.Error(err))
		os.Exit(1)
	}

	inYard := 0
	for _, r := range ds.Reports {
		if r.YardID != 0 {
			inYard++
		}
	}
	log.Info("test data generated",
		zap.String("yards_file", yardsPath),
		zap.String("messages_file", messagesPath),
		zap.Int("yards", len(ds.Yards)),
		zap.Int("messages", len(ds.Reports)),
		zap.Int("messages_in_yards", inYard),
		zap.Int64("seed", *seed))
}
