package main

import (
	"flag"
	"fmt"
	"log/slog"
	"math/rand"
	"os"
	"time"

	"github.com/yaricom/goNEAT/v4/neat/genetics"

	"github.com/pthm-cable/hexgrow/config"
	"github.com/pthm-cable/hexgrow/growth"
	_ "github.com/pthm-cable/hexgrow/modules"
	"github.com/pthm-cable/hexgrow/neural"
	"github.com/pthm-cable/hexgrow/render"
	"github.com/pthm-cable/hexgrow/sim"
)

func main() {
	// CLI flags
	configPath := flag.String("config", "", "Path to config.yaml (empty = use defaults)")
	seed := flag.Int64("seed", 0, "RNG seed for the starting genome (0 = config seed, then time-based)")
	steps := flag.Int("steps", 0, "Step budget (0 = use config)")
	genomePath := flag.String("genome", "", "Replay a saved genome JSON instead of seeding a random one")
	asciiSteps := flag.Bool("ascii", false, "Print the grid after every step")
	verbose := flag.Bool("verbose", false, "Per-step debug logging")
	textLog := flag.Bool("text-log", false, "Log as text instead of JSON")

	flag.Parse()

	// Initialize config before anything else
	if err := config.Init(*configPath); err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	cfg := config.Get()

	// Set up slog (JSON to stdout for structured logging)
	var handler slog.Handler = slog.NewJSONHandler(os.Stdout, nil)
	if *textLog {
		handler = slog.NewTextHandler(os.Stdout, nil)
	}
	logger := slog.New(handler)
	slog.SetDefault(logger)

	// Set up seed
	rngSeed := *seed
	if rngSeed == 0 {
		rngSeed = cfg.NEAT.Seed
	}
	if rngSeed == 0 {
		rngSeed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(rngSeed))

	maxSteps := cfg.Simulation.MaxSteps
	if *steps > 0 {
		maxSteps = *steps
	}

	factory, target, hasTarget, err := growth.NewExperimentFactory(cfg)
	if err != nil {
		slog.Error("failed to build experiment", "error", err)
		os.Exit(1)
	}

	layout := neural.GenomeConfig{
		BaseInputs:  growth.BaseInputCount,
		BaseOutputs: growth.BaseOutputCount,
		Modules:     growth.ModuleDescriptors(cfg.Modules),
		Target:      target,
		HasTarget:   hasTarget,
	}

	// Genome: replay a saved winner or seed a fresh random one
	var g *genetics.Genome
	if *genomePath != "" {
		g, err = neural.LoadGenome(*genomePath)
		if err != nil {
			slog.Error("failed to load genome", "path", *genomePath, "error", err)
			os.Exit(1)
		}
	} else if prob := cfg.NEAT.SeedConnectionProb; prob > 0 && prob < 1 {
		g = neural.NewSparseSeedGenome(1, layout, prob, rng)
	} else {
		g = neural.NewSeedGenome(1, layout, rng)
	}

	ng, err := neural.FromGenome(g, layout)
	if err != nil {
		slog.Error("failed to build network", "error", err)
		os.Exit(1)
	}

	opts := sim.Options{
		Width:         cfg.Simulation.Width,
		Height:        cfg.Simulation.Height,
		MaxSteps:      maxSteps,
		BreakOnRepeat: cfg.Simulation.BreakOnRepeat,
		Verbose:       *verbose || cfg.Simulation.Verbose,
		Log:           logger,
	}
	if *asciiSteps {
		opts.Renderer = render.NewASCIIRenderer(os.Stdout)
	}

	s, err := sim.New(ng, factory(), opts)
	if err != nil {
		slog.Error("failed to build simulation", "error", err)
		os.Exit(1)
	}

	slog.Info("starting run",
		"grid", fmt.Sprintf("%dx%d", opts.Width, opts.Height),
		"max_steps", maxSteps,
		"seed", rngSeed,
		"experiment", cfg.Experiment.Kind,
		"modules", len(cfg.Modules),
	)

	res, err := s.Run()
	if err != nil {
		slog.Error("run failed", "error", err)
		os.Exit(1)
	}

	slog.Info("run complete",
		"steps", res.Steps,
		"reason", res.Reason.String(),
		"max_fitness", res.MaxFitness,
		"cells", s.Grid().Count(),
	)

	if cfg.Output.ASCII {
		fmt.Print(s.Grid().ASCII())
	}
}
