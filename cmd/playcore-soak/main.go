// Package main implements the playcore-soak harness. It runs playback
// sessions against the in-memory stub collaborators, injects chaos, and
// validates the orchestrator's lifecycle invariants.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/mfeldt/playcore/internal/config"
	"github.com/mfeldt/playcore/internal/log"
)

// Report is the JSON output schema for soak test results.
type Report struct {
	RunID           string           `json:"run_id"`
	Seed            int64            `json:"seed"`
	StartedAt       time.Time        `json:"started_at"`
	EndedAt         time.Time        `json:"ended_at"`
	DurationSeconds float64          `json:"duration_s"`
	ScenarioResults []ScenarioResult `json:"scenario_results"`
	Summary         Summary          `json:"summary"`
}

// ScenarioResult holds the outcome of a single test scenario.
type ScenarioResult struct {
	Name         string           `json:"name"`
	Pass         bool             `json:"pass"`
	Reason       string           `json:"reason,omitempty"`
	Observations map[string]int64 `json:"observations"`
	Failures     []Failure        `json:"failures"`
}

// Failure captures a specific invariant violation.
type Failure struct {
	Time    time.Time `json:"time"`
	RuleID  string    `json:"rule_id"`
	Message string    `json:"message"`
}

// Summary provides the aggregate verdict.
type Summary struct {
	PassedScenarios int    `json:"passed_scenarios"`
	FailedScenarios int    `json:"failed_scenarios"`
	Verdict         string `json:"verdict"`
}

// Config holds command-line configuration.
type Config struct {
	Profile         string
	ConfigPath      string
	Base            config.Playback
	Duration        time.Duration
	Seed            int64
	FeedInterval    time.Duration
	SegmentDuration float64
	Segments        int
	FailRate        float64
	EmptyRate       float64
	RefreshFailRate float64
	MetricsAddr     string
	ArtifactDir     string
}

func main() {
	cfg := parseFlags()

	if cfg.Seed == 0 {
		cfg.Seed = time.Now().UnixNano()
	}

	log.Configure(log.Config{Service: "playcore-soak"})

	base, err := resolvePlayback(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load playback config: %v\n", err)
		os.Exit(1)
	}
	cfg.Base = base

	fmt.Printf("playcore-soak\n")
	fmt.Printf("Seed: %d\n", cfg.Seed)
	fmt.Printf("Profile: %s\n", cfg.Profile)
	fmt.Printf("Duration: %s\n", cfg.Duration)

	if cfg.MetricsAddr != "" {
		stop := serveMetrics(cfg.MetricsAddr)
		defer stop()
	}

	report := Report{
		RunID:     fmt.Sprintf("soak-%d", cfg.Seed),
		Seed:      cfg.Seed,
		StartedAt: time.Now(),
	}

	switch cfg.Profile {
	case "smoke":
		report.ScenarioResults = []ScenarioResult{
			runVODCompletion(cfg),
			runWatchdogFault(cfg),
		}
	case "live":
		report.ScenarioResults = []ScenarioResult{runLiveRefresh(cfg)}
	case "chaos":
		report.ScenarioResults = []ScenarioResult{runChaosInjection(cfg)}
	case "nightly":
		report.ScenarioResults = []ScenarioResult{
			runVODCompletion(cfg),
			runLiveRefresh(cfg),
			runChaosInjection(cfg),
			runWatchdogFault(cfg),
		}
	default:
		fmt.Printf("Unknown profile: %s\n", cfg.Profile)
		os.Exit(1)
	}

	report.EndedAt = time.Now()
	report.DurationSeconds = report.EndedAt.Sub(report.StartedAt).Seconds()

	for _, sr := range report.ScenarioResults {
		if sr.Pass {
			report.Summary.PassedScenarios++
		} else {
			report.Summary.FailedScenarios++
		}
	}
	if report.Summary.FailedScenarios == 0 {
		report.Summary.Verdict = "PASS"
	} else {
		report.Summary.Verdict = "FAIL"
	}

	if err := writeReport(cfg.ArtifactDir, report); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to write report: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("\nVerdict: %s (%d passed, %d failed)\n",
		report.Summary.Verdict,
		report.Summary.PassedScenarios,
		report.Summary.FailedScenarios)

	if report.Summary.Verdict != "PASS" {
		os.Exit(1)
	}
}

func parseFlags() Config {
	cfg := Config{}

	flag.StringVar(&cfg.Profile, "profile", "smoke", "Test profile: smoke|live|chaos|nightly")
	flag.StringVar(&cfg.ConfigPath, "config", "", "Playback config YAML (defaults with a stub asset URL when empty)")
	flag.DurationVar(&cfg.Duration, "duration", 30*time.Second, "Per-scenario duration for open-ended scenarios")
	flag.Int64Var(&cfg.Seed, "seed", 0, "Random seed (0=random)")
	flag.DurationVar(&cfg.FeedInterval, "feed-interval", 10*time.Millisecond, "Session feed cadence")
	flag.Float64Var(&cfg.SegmentDuration, "segment-duration", 2, "Synthetic segment duration in seconds")
	flag.IntVar(&cfg.Segments, "segments", 50, "Segments per track for bounded scenarios")
	flag.Float64Var(&cfg.FailRate, "fail-rate", 0.05, "Injected segment fetch failure probability")
	flag.Float64Var(&cfg.EmptyRate, "empty-rate", 0.05, "Injected empty segment probability")
	flag.Float64Var(&cfg.RefreshFailRate, "refresh-fail-rate", 0.2, "Injected playlist refresh failure probability")
	flag.StringVar(&cfg.MetricsAddr, "metrics-addr", "", "Listen address for /metrics and /healthz (empty=disabled)")
	flag.StringVar(&cfg.ArtifactDir, "artifact-dir", "./soak-artifacts", "Output directory")

	flag.Parse()
	return cfg
}

// resolvePlayback builds the playback configuration the scenarios start
// from: the YAML file plus PLAYCORE_* env when -config is given, stub
// defaults otherwise.
func resolvePlayback(cfg Config) (config.Playback, error) {
	if cfg.ConfigPath == "" {
		pb := config.Defaults()
		pb.AssetURL = "stub://asset"
		return pb, nil
	}
	return config.Load(cfg.ConfigPath)
}

func writeReport(dir string, report Report) error {
	if err := os.MkdirAll(dir, 0750); err != nil {
		return err
	}

	path := fmt.Sprintf("%s/report.json", dir)
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0600)
}
