package main

import (
	"flag"
	"io"
	"math/rand"
	"os"
	"runtime"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/profile"
	"github.com/plus3/archon/ecs"
	"github.com/rotisserie/eris"
	"github.com/sirupsen/logrus"
)

const frameDelta = 1.0 / 60.0

func envInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
		logrus.WithField("key", key).Warn("ignoring non-integer environment value")
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
		logrus.WithField("key", key).Warn("ignoring invalid duration in environment")
	}
	return fallback
}

func profileMode(name string) func(*profile.Profile) {
	switch name {
	case "cpu":
		return profile.CPUProfile
	case "mem":
		return profile.MemProfile
	case "block":
		return profile.BlockProfile
	case "mutex":
		return profile.MutexProfile
	case "trace":
		return profile.TraceProfile
	}
	return nil
}

type config struct {
	duration       time.Duration
	entities       int
	workers        int
	singleThreaded bool
	profile        string
	seed           int64
	gcPauseMetrics bool
}

func main() {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		logrus.WithError(err).Warn("failed to load .env")
	}

	var cfg config
	flag.DurationVar(&cfg.duration, "duration", envDuration("ECS_STRESS_DURATION", 10*time.Second), "how long to run the stress test")
	flag.IntVar(&cfg.entities, "entities", envInt("ECS_STRESS_ENTITIES", 10000), "number of entities to spawn")
	flag.IntVar(&cfg.workers, "workers", envInt("ECS_STRESS_WORKERS", runtime.GOMAXPROCS(0)), "scheduler worker count")
	flag.BoolVar(&cfg.singleThreaded, "single-threaded", false, "run systems one at a time")
	flag.StringVar(&cfg.profile, "profile", os.Getenv("ECS_STRESS_PROFILE"), "enable profiling (cpu, mem, block, mutex, trace)")
	flag.Int64Var(&cfg.seed, "seed", time.Now().UnixNano(), "random seed")
	flag.BoolVar(&cfg.gcPauseMetrics, "gc-pause-metrics", false, "include GC pause metrics in the report")
	verbose := flag.Bool("v", false, "debug logging")
	flag.Parse()

	if *verbose {
		logrus.SetLevel(logrus.DebugLevel)
	}

	if err := run(cfg, os.Stdout); err != nil {
		logrus.WithError(err).Fatal("stress test failed")
	}
}

// run executes the stress test and writes the report to out. Errors are
// returned rather than fatal so the profiler is always stopped and flushed.
func run(cfg config, out io.Writer) error {
	if cfg.profile != "" {
		mode := profileMode(cfg.profile)
		if mode == nil {
			return eris.Errorf("unknown profile mode %q", cfg.profile)
		}
		defer profile.Start(mode, profile.ProfilePath("."), profile.NoShutdownHook).Stop()
	}

	rng := rand.New(rand.NewSource(cfg.seed))
	log := logrus.WithField("seed", cfg.seed)

	registry := ecs.NewComponentRegistry()
	registerComponents(registry)
	world := ecs.NewWorld(registry, ecs.WithLogger(log))
	world.AddSingleton(Metrics{})
	world.AddSingleton(Churn{})

	opts := []ecs.SchedulerOption{ecs.WithSchedulerLogger(log), ecs.WithWorkers(cfg.workers)}
	if cfg.singleThreaded {
		opts = append(opts, ecs.WithSingleThreaded())
	}
	scheduler := ecs.NewScheduler(world, opts...)
	systemCount := registerSystems(scheduler, rng)
	if err := scheduler.Build(); err != nil {
		return eris.Wrap(err, "failed to build schedule")
	}

	log.WithField("entities", cfg.entities).Info("spawning entities")
	populate(world, rng, cfg.entities)

	log.WithField("duration", cfg.duration).Info("running stress test")

	var memStatsStart runtime.MemStats
	runtime.GC()
	runtime.ReadMemStats(&memStatsStart)

	var updateStats Stats
	var updates int64
	startTime := time.Now()
	for time.Since(startTime) < cfg.duration {
		start := time.Now()
		if err := scheduler.Once(frameDelta); err != nil {
			return eris.Wrapf(err, "scheduler pass %d failed", updates)
		}
		updateStats.Samples = append(updateStats.Samples, time.Since(start))
		updates++
	}
	totalTime := time.Since(startTime)

	var memStatsEnd runtime.MemStats
	runtime.ReadMemStats(&memStatsEnd)
	updateStats.Finalize()

	metrics, _ := ecs.GetSingleton[Metrics](world)
	churn, _ := ecs.GetSingleton[Churn](world)

	report := &Report{
		Duration:       cfg.duration,
		Entities:       cfg.entities,
		Components:     componentCount,
		Systems:        systemCount,
		TotalUpdates:   updates,
		TotalTime:      totalTime,
		UpdateTime:     updateStats,
		GCPauseMetrics: cfg.gcPauseMetrics,
		MemStatsStart:  memStatsStart,
		MemStatsEnd:    memStatsEnd,
		Scheduler:      scheduler.GetStats(),
		World:          world.CollectStats(),
		Ambiguities:    len(scheduler.Ambiguities()),
		Metrics:        *metrics,
		Churn:          *churn,
	}
	return eris.Wrap(report.Generate(out), "failed to generate report")
}
