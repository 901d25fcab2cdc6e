// Command fingerbot drives a Tuya-style BLE press accessory: it can trigger
// one press, query the battery level, or keep watching the battery through
// the accessory façade.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/chaz8081/fingerbot/internal/accessory"
	"github.com/chaz8081/fingerbot/internal/ble"
	"github.com/chaz8081/fingerbot/internal/config"
	"github.com/chaz8081/fingerbot/internal/engine"
)

func main() {
	configPath := flag.String("config", "", "path to config file (default: ~/.config/fingerbot/config.yaml)")
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("config validation: %v", err)
	}
	setupLogging(cfg.LogLevel)

	eng, err := newEngine(cfg)
	if err != nil {
		log.Fatalf("engine: %v", err)
	}

	switch cmd := flag.Arg(0); cmd {
	case "press":
		runPress(eng)
	case "battery":
		runBattery(eng)
	case "watch":
		runWatch(eng, cfg)
	default:
		fmt.Fprintf(os.Stderr, "usage: fingerbot [-config path] <press|battery|watch>\n")
		os.Exit(2)
	}
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		path = config.DefaultConfigPath()
	}
	return config.Load(path)
}

func setupLogging(level string) {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})))
}

func newEngine(cfg *config.Config) (*engine.Engine, error) {
	policy := engine.PolicyFailOpen
	if cfg.WriteFailure == "fail-fast" {
		policy = engine.PolicyFailFast
	}
	return engine.New(ble.NewHardwareAdapter(), engine.Credentials{
		Address:  cfg.DeviceAddress,
		DeviceID: cfg.DeviceID,
		LocalKey: cfg.LocalKey,
	}, engine.Options{
		ScanDuration:     cfg.ScanDuration.Std(),
		ScanRetries:      cfg.ScanRetries,
		RetryCooldown:    cfg.RetryCooldown.Std(),
		ConnectTimeout:   cfg.ConnectTimeout.Std(),
		OperationTimeout: cfg.OperationTimeout.Std(),
		PressDuration:    cfg.PressDuration.Std(),
		WritePolicy:      policy,
	})
}

func runPress(eng *engine.Engine) {
	start := time.Now()
	if err := eng.Press(context.Background()); err != nil {
		log.Fatalf("press: %v", err)
	}
	log.Printf("Pressed in %s", time.Since(start).Round(time.Millisecond))
}

func runBattery(eng *engine.Engine) {
	levels := make(chan int, 1)
	eng.OnBattery(func(level int) {
		select {
		case levels <- level:
		default:
		}
	})

	if err := eng.BatteryQuery(context.Background()); err != nil {
		log.Fatalf("battery query: %v", err)
	}

	select {
	case level := <-levels:
		fmt.Printf("battery: %d%%\n", level)
	default:
		log.Println("No battery level in the device's responses")
	}
}

func runWatch(eng *engine.Engine, cfg *config.Config) {
	acc := accessory.New(eng, cfg.BatteryInterval.Std())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	log.Printf("Watching battery for %s (refresh interval %s). Ctrl+C to quit.", cfg.DeviceAddress, cfg.BatteryInterval.Std())

	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	// First read primes the cache via a background query.
	log.Printf("battery: %d%% (cached)", acc.BatteryLevel())
	for {
		select {
		case <-ticker.C:
			log.Printf("battery: %d%% (cached)", acc.BatteryLevel())
		case <-sigCh:
			log.Println("Stopping")
			return
		}
	}
}
