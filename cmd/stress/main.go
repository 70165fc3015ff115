// FILE: lixenwraith/logpipe/cmd/stress/main.go
package main

import (
	"fmt"
	"math/rand"
	"os"
	"os/signal"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/lixenwraith/logpipe"
)

const (
	totalBursts    = 100
	logsPerBurst   = 500
	maxMessageSize = 2000
	numWorkers     = 64
)

const configFile = "stress_config.toml"
const logsDir = "./logs"

// Example TOML content for the stress test. The rolling writer rolls every
// megabyte and keeps four backups, the shared writer is appended to by every
// worker in process mode, and errors are copied into a JSON stream.
var tomlContent = `
[logpipe]
level = "debug"
writing_thread = true
coalesce_ms = 10
shutdown_timeout_ms = 10000
heartbeat_interval_s = 1

[writer.rolling]
type = "rolling file"
file = "./logs/stress_{count}.log"
latest = "./logs/stress_latest.log"
policies = "size: 1mb"
backups = 4
convert = "gzip"
format = "{date: HH:mm:ss.SSS} {level|min-size=5} [{thread}] {message}"

[writer.shared]
type = "shared file"
file = "./logs/shared.log"
writingthread = false
level = "warn"
format = "{date: HH:mm:ss.SSS} {pid} {level|min-size=5} {message}"

[writer.errors]
type = "json"
file = "./logs/errors.json"
level = "error"

[writer.errors.field]
time = "{date: yyyy-MM-dd'T'HH:mm:ss.SSSXXX}"
level = "{level}"
thread = "{thread}"
message = "{message}"

[writer.heartbeat]
type = "file"
file = "./logs/heartbeat.log"
tag = "heartbeat"
format = "{date: HH:mm:ss} {message}"
`

var levels = []logpipe.Level{
	logpipe.LevelDebug,
	logpipe.LevelInfo,
	logpipe.LevelWarn,
	logpipe.LevelError,
}

func generateRandomMessage(size int) string {
	const chars = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789 "
	var sb strings.Builder
	sb.Grow(size)
	for i := 0; i < size; i++ {
		sb.WriteByte(chars[rand.Intn(len(chars))])
	}
	return sb.String()
}

// logBurst simulates a burst of logging activity
func logBurst(logger *logpipe.Logger, burstID int) {
	for i := 0; i < logsPerBurst; i++ {
		msg := generateRandomMessage(rand.Intn(maxMessageSize) + 10)
		const format = "{} bst={} seq={} rnd={}"
		switch levels[rand.Intn(len(levels))] {
		case logpipe.LevelDebug:
			logger.Debug(format, msg, burstID, i, rand.Int63())
		case logpipe.LevelInfo:
			logger.Info(format, msg, burstID, i, rand.Int63())
		case logpipe.LevelWarn:
			logger.Warn(format, msg, burstID, i, rand.Int63())
		case logpipe.LevelError:
			logger.Error(format, msg, burstID, i, rand.Int63())
		}
	}
}

// worker logs whole bursts under its own thread name
func worker(id int, engine *logpipe.Engine, burstChan chan int, wg *sync.WaitGroup, completedBursts *atomic.Int64) {
	defer wg.Done()
	logger := engine.Logger().WithThread(fmt.Sprintf("worker-%02d", id))
	for burstID := range burstChan {
		logBurst(logger, burstID)
		completed := completedBursts.Add(1)
		if completed%10 == 0 || completed == totalBursts {
			fmt.Printf("\rProgress: %d/%d bursts completed", completed, totalBursts)
		}
	}
}

func main() {
	fmt.Println("--- Logpipe Stress Test ---")

	// --- Setup Config ---
	if err := os.WriteFile(configFile, []byte(tomlContent), 0644); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to write config: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Created config file: %s\n", configFile)
	_ = os.RemoveAll(logsDir) // Clean previous run's logs directory before starting

	cfg, err := logpipe.NewConfigFromFile(configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Command line arguments are "key=value" overrides, e.g. writer.rolling.policies=daily
	engine, err := logpipe.FromConfig(cfg).Override(os.Args[1:]...).Build()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize engine: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Engine initialized with writers %v. Logs will be written to: %s\n", cfg.WriterNames(), logsDir)

	registry := prometheus.NewRegistry()
	registry.MustRegister(logpipe.NewCollector(engine, "stress"))

	fmt.Printf("Starting stress test: %d workers, %d bursts, %d logs/burst.\n",
		numWorkers, totalBursts, logsPerBurst)
	fmt.Println("Check file rotation in the logs directory. Press Ctrl+C to stop early.")

	// --- Setup Workers and Signal Handling ---
	burstChan := make(chan int, numWorkers)
	var wg sync.WaitGroup
	completedBursts := atomic.Int64{}
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	stopChan := make(chan struct{})

	go func() {
		<-sigChan
		fmt.Println("\n[Signal Received] Stopping burst generation...")
		close(stopChan)
	}()

	for i := 0; i < numWorkers; i++ {
		wg.Add(1)
		go worker(i, engine, burstChan, &wg, &completedBursts)
	}

	// --- Run Test ---
	startTime := time.Now()
submit:
	for i := 1; i <= totalBursts; i++ {
		select {
		case burstChan <- i:
		case <-stopChan:
			fmt.Println("[Signal Received] Halting burst submission.")
			break submit
		}
	}
	close(burstChan)

	fmt.Println("\nWaiting for workers to finish...")
	wg.Wait()
	duration := time.Since(startTime)
	finalCompleted := completedBursts.Load()

	fmt.Printf("\n--- Test Finished ---")
	fmt.Printf("\nCompleted %d/%d bursts in %v\n", finalCompleted, totalBursts, duration.Round(time.Millisecond))
	if finalCompleted > 0 && duration.Seconds() > 0 {
		logsPerSec := float64(finalCompleted*logsPerBurst) / duration.Seconds()
		fmt.Printf("Approximate Logs/sec: %.2f\n", logsPerSec)
	}

	// --- Shutdown Engine ---
	fmt.Println("Shutting down engine...")
	if err := engine.Shutdown(0); err != nil {
		fmt.Fprintf(os.Stderr, "Engine shutdown error: %v\n", err)
	} else {
		fmt.Println("Engine shutdown complete.")
	}

	families, err := registry.Gather()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to gather metrics: %v\n", err)
		os.Exit(1)
	}
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			value := m.GetCounter().GetValue()
			if m.GetGauge() != nil {
				value = m.GetGauge().GetValue()
			}
			fmt.Printf("%-40s %.0f\n", mf.GetName(), value)
		}
	}
	fmt.Printf("Check log files in '%s' and the config '%s'.\n", logsDir, configFile)
}
