package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/claude/repcam/internal/config"
	"github.com/claude/repcam/internal/replay"
)

// Version is set at build time via -ldflags.
var Version = "dev"

func main() {
	configPath := flag.String("config", "", "path to config file; its counter section supplies thresholds")
	input := flag.String("input", "-", "pose log (JSON Lines); - reads stdin")
	flexion := flag.Float64("flexion", 0, "flexion threshold in degrees (overrides config)")
	extension := flag.Float64("extension", 0, "extension threshold in degrees (overrides config)")
	debounce := flag.Duration("debounce", 0, "minimum time between reps (overrides config)")
	window := flag.Int("window", 0, "smoothing window size (overrides config)")
	asJSON := flag.Bool("json", false, "print the summary as JSON")
	version := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *version {
		fmt.Println("repcam-replay", Version)
		return
	}

	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "flexion":
			cfg.Counter.FlexionThreshold = *flexion
		case "extension":
			cfg.Counter.ExtensionThreshold = *extension
		case "debounce":
			cfg.Counter.Debounce = *debounce
		case "window":
			cfg.Counter.WindowSize = *window
		}
	})

	rp, err := replay.New(cfg.Counter, log)
	if err != nil {
		log.Error("invalid counter configuration", "error", err)
		os.Exit(1)
	}

	var r io.Reader = os.Stdin
	if *input != "-" {
		f, err := os.Open(*input)
		if err != nil {
			log.Error("failed to open pose log", "path", *input, "error", err)
			os.Exit(1)
		}
		defer f.Close()
		r = f
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	stats, err := rp.Replay(ctx, r)
	if err != nil {
		log.Error("replay failed", "error", err)
		os.Exit(1)
	}

	if *asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		enc.Encode(stats)
		return
	}

	fmt.Printf("frames:    %d\n", stats.Frames)
	fmt.Printf("skipped:   %d\n", stats.Skipped)
	if stats.Malformed > 0 {
		fmt.Printf("malformed: %d\n", stats.Malformed)
	}
	fmt.Printf("reps:      %d\n", stats.Final.Count)
	for _, rep := range stats.Reps {
		fmt.Printf("  #%d at %.2fs (smoothed %.1f°)\n", rep.Count, rep.At, rep.Angle)
	}
}
