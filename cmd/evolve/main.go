// Package main evolves growth programs with NEAT: epochs of parallel
// evaluation, speciated reproduction, per-generation CSV telemetry, and a
// winner genome dump.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"math/rand"
	"os"
	"path/filepath"
	"time"

	"github.com/pthm-cable/hexgrow/config"
	"github.com/pthm-cable/hexgrow/evolve"
	"github.com/pthm-cable/hexgrow/growth"
	_ "github.com/pthm-cable/hexgrow/modules"
	"github.com/pthm-cable/hexgrow/neural"
	"github.com/pthm-cable/hexgrow/sim"
	"github.com/pthm-cable/hexgrow/telemetry"
)

func main() {
	// CLI flags
	configPath := flag.String("config", "", "Path to config.yaml (empty = use defaults)")
	generations := flag.Int("generations", 0, "Generation budget (0 = use config)")
	seed := flag.Int64("seed", 0, "RNG seed (0 = config seed, then time-based)")
	outputDir := flag.String("output", "", "Output directory (empty = use config)")
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

	gens := cfg.NEAT.Generations
	if *generations > 0 {
		gens = *generations
	}
	outDir := cfg.Output.Dir
	if *outputDir != "" {
		outDir = *outputDir
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

	// NEAT options: built-in defaults overlaid with the config rates
	opts := neural.DefaultOptions()
	cfg.NEAT.Apply(opts)

	evaluator := &evolve.SimEvaluator{
		Layout:        layout,
		NewExperiment: factory,
		Options: sim.Options{
			Width:         cfg.Simulation.Width,
			Height:        cfg.Simulation.Height,
			MaxSteps:      cfg.Simulation.MaxSteps,
			BreakOnRepeat: cfg.Simulation.BreakOnRepeat,
			Log:           logger,
		},
	}

	pop, err := evolve.NewPopulation(layout, opts, evaluator, evolve.Config{
		PopSize:            opts.PopSize,
		SeedConnectionProb: cfg.NEAT.SeedConnectionProb,
		Workers:            cfg.Derived.Workers,
		Log:                logger,
	}, rng)
	if err != nil {
		slog.Error("failed to build population", "error", err)
		os.Exit(1)
	}
	defer pop.Close()

	om, err := telemetry.NewOutputManager(outDir, cfg.Output.StatsCSV)
	if err != nil {
		slog.Error("failed to open output directory", "error", err)
		os.Exit(1)
	}
	defer om.Close()
	if err := om.WriteConfig(cfg); err != nil {
		slog.Warn("failed to write config snapshot", "error", err)
	}

	collector := telemetry.NewCollector()

	slog.Info("starting evolution",
		"population", opts.PopSize,
		"generations", gens,
		"workers", cfg.Derived.Workers,
		"seed", rngSeed,
		"experiment", cfg.Experiment.Kind,
		"target", hasTarget,
	)

	solved := false
	for gen := 1; gen <= gens; gen++ {
		evalStart := time.Now()
		res, err := pop.RunGeneration()
		if err != nil {
			slog.Error("generation failed", "generation", gen, "error", err)
			os.Exit(1)
		}

		for _, ind := range pop.Members() {
			collector.Record(ind.Fitness, ind.Steps, ind.Cells, ind.Reason)
		}
		stats := collector.Flush(res.Generation, res.SpeciesCount, time.Since(evalStart))
		slog.Info("generation complete", "stats", stats)
		if err := om.WriteStats(stats); err != nil {
			slog.Warn("failed to write stats", "error", err)
		}

		if res.Solved {
			slog.Info("target fitness reached", "generation", res.Generation, "fitness", res.BestFitness)
			solved = true
			break
		}

		if gen < gens {
			if err := pop.Reproduce(); err != nil {
				slog.Error("reproduction failed", "generation", gen, "error", err)
				os.Exit(1)
			}
		}
	}

	best := pop.BestEver()
	if best == nil {
		slog.Error("no generations completed")
		os.Exit(1)
	}

	slog.Info("evolution complete",
		"generations", pop.Generation(),
		"best_fitness", best.Fitness,
		"solved", solved,
	)

	if outDir != "" && cfg.Output.Winner != "" {
		winnerPath := filepath.Join(outDir, cfg.Output.Winner)
		if err := neural.SaveGenome(winnerPath, best.Genome); err != nil {
			slog.Error("failed to save winner", "error", err)
			os.Exit(1)
		}
		slog.Info("winner saved", "path", winnerPath)
	}

	// Regrow the winner's pattern for the terminal.
	if cfg.Output.ASCII {
		ng, err := neural.FromGenome(best.Genome, layout)
		if err != nil {
			slog.Error("failed to rebuild winner network", "error", err)
			os.Exit(1)
		}
		s, err := sim.New(ng, factory(), evaluator.Options)
		if err != nil {
			slog.Error("failed to rebuild winner run", "error", err)
			os.Exit(1)
		}
		if _, err := s.Run(); err != nil {
			slog.Error("winner replay failed", "error", err)
			os.Exit(1)
		}
		fmt.Print(s.Grid().ASCII())
	}
}
