// Package main tunes growth and NEAT parameters with CMA-ES: each candidate
// parameter vector is scored by running short evolutions from fixed seeds and
// averaging the best fitness they reach.
package main

import (
	"encoding/csv"
	"flag"
	"fmt"
	"log"
	"math"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"sync"
	"time"

	"gonum.org/v1/gonum/optimize"
	"gopkg.in/yaml.v3"

	"github.com/pthm-cable/hexgrow/config"
)

// formatDuration formats a duration as h/m/s for progress lines.
func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	s := d / time.Second

	if h > 0 {
		return fmt.Sprintf("%dh%02dm%02ds", h, m, s)
	}
	return fmt.Sprintf("%dm%02ds", m, s)
}

func main() {
	// CLI flags
	configPath := flag.String("config", "", "Base config YAML file (empty = embedded defaults)")
	seeds := flag.Int("seeds", 2, "Evolution seeds per evaluation")
	generations := flag.Int("generations", 8, "Generations per evolution")
	maxEvals := flag.Int("max-evals", 60, "Maximum number of evaluations")
	population := flag.Int("population", 0, "CMA-ES population size (0 = auto)")
	outputDir := flag.String("output", "", "Output directory for results")
	flag.Parse()

	if *outputDir == "" {
		log.Fatal("--output is required")
	}
	if err := os.MkdirAll(*outputDir, 0755); err != nil {
		log.Fatalf("failed to create output directory: %v", err)
	}

	// Load base config
	if err := config.Init(*configPath); err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	baseCfg := config.Get()

	params := NewParamVector()
	dim := params.Dim()

	// Fixed evolution seeds so every evaluation faces the same draws
	seedBase := baseCfg.NEAT.Seed
	if seedBase == 0 {
		seedBase = 42
	}
	evalSeeds := make([]int64, *seeds)
	for i := range evalSeeds {
		evalSeeds[i] = seedBase + int64(i)*1000
	}

	evaluator := NewEvaluator(params, baseCfg, evalSeeds, *generations)

	// Start the search from the base config's own parameter values
	initX := params.Normalize(params.Clamp(params.ExtractFromConfig(baseCfg)))

	problem := optimize.Problem{
		Func: func(x []float64) float64 {
			return evaluator.Evaluate(params.Denormalize(x))
		},
	}

	workers := runtime.GOMAXPROCS(0)
	settings := &optimize.Settings{
		FuncEvaluations: *maxEvals,
		Concurrent:      workers,
	}

	popSize := *population
	if popSize == 0 {
		// Auto-size: 4 + floor(3*ln(n))
		popSize = 4 + int(3*math.Log(float64(dim)))
	}

	method := &optimize.CmaEsChol{
		InitStepSize: 0.3,
		Population:   popSize,
	}

	// Open eval log
	logPath := filepath.Join(*outputDir, "tune_log.csv")
	logFile, err := os.Create(logPath)
	if err != nil {
		log.Fatalf("failed to create log file: %v", err)
	}
	defer logFile.Close()

	logWriter := csv.NewWriter(logFile)
	defer logWriter.Flush()

	header := []string{"eval", "score"}
	for _, spec := range params.Specs {
		header = append(header, spec.Name)
	}
	logWriter.Write(header)

	// Evaluations run concurrently; the log and counters share one lock
	var mu sync.Mutex
	evalCount := 0
	startTime := time.Now()

	scoreFunc := problem.Func
	problem.Func = func(x []float64) float64 {
		score := scoreFunc(x)
		raw := params.Clamp(params.Denormalize(x))

		mu.Lock()
		evalCount++
		count := evalCount

		row := []string{strconv.Itoa(count), fmt.Sprintf("%.6f", score)}
		for _, v := range raw {
			row = append(row, fmt.Sprintf("%.6f", v))
		}
		logWriter.Write(row)
		logWriter.Flush()

		elapsed := time.Since(startTime)
		remaining := time.Duration(*maxEvals-count) * (elapsed / time.Duration(count))
		_, bestScore := evaluator.Best()
		mu.Unlock()

		fmt.Printf("Eval %d/%d: mean_best=%.3f (best=%.3f) | elapsed: %s, ETA: %s\n",
			count, *maxEvals, -score, -bestScore, formatDuration(elapsed), formatDuration(remaining))

		return score
	}

	fmt.Printf("Starting CMA-ES tuning: %d parameters, population=%d, max_evals=%d, concurrent=%d\n",
		dim, popSize, *maxEvals, workers)
	fmt.Printf("Per evaluation: %d seeds x %d generations\n", *seeds, *generations)

	result, err := optimize.Minimize(problem, initX, settings, method)
	if err != nil {
		log.Printf("optimization ended: %v", err)
	}

	bestVector, bestScore := evaluator.Best()
	if bestVector == nil {
		bestVector = params.Clamp(params.Denormalize(result.X))
	}

	fmt.Printf("\nTuning complete after %d evaluations in %s\n", evalCount, formatDuration(time.Since(startTime)))
	fmt.Printf("Best mean fitness: %.3f\n", -bestScore)

	// Apply the winner to a fresh config and save it
	bestCfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("failed to reload config: %v", err)
	}
	params.ApplyToConfig(bestCfg, bestVector)

	configOutPath := filepath.Join(*outputDir, "best_config.yaml")
	if err := bestCfg.WriteYAML(configOutPath); err != nil {
		log.Printf("failed to write best config: %v", err)
	} else {
		fmt.Printf("Best config saved to: %s\n", configOutPath)
	}

	// Print the tuned sections as YAML, pasteable into a config file
	out := struct {
		Modules []config.ModuleConfig `yaml:"modules"`
		NEAT    config.NEATConfig     `yaml:"neat"`
	}{bestCfg.Modules, bestCfg.NEAT}
	data, err := yaml.Marshal(out)
	if err != nil {
		log.Fatalf("failed to marshal best parameters: %v", err)
	}
	fmt.Printf("\nBest parameters:\n%s", data)
}
