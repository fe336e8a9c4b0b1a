package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/quantfold/execution-engine/cmd/common"
	"github.com/quantfold/execution-engine/internal/config"
	"github.com/quantfold/execution-engine/internal/monitoring"
	"github.com/quantfold/execution-engine/pkg/reporting"
)

func main() {
	flags := common.RegisterCommonFlags()
	reportPath := flag.String("report", "", "Write session report to this .xlsx path on exit")
	flag.Parse()
	flags.Apply()

	if *flags.Version {
		common.PrintVersion("execution-engine")
		return
	}
	if *flags.Help {
		flag.Usage()
		return
	}

	common.LoadEnvFile(*flags.EnvFile)
	cfg := config.Load()
	if *flags.Broker != "" {
		cfg.Broker.Name = *flags.Broker
	}
	if err := common.NewFlagValidator().
		ValidateChoice("broker", cfg.Broker.Name, []string{"paper", "bybit"}).
		ValidateFloat("quote fallback price", cfg.Execution.QuoteFallbackPrice, 0, 1_000_000).
		Err(); err != nil {
		common.Error("%v", err)
		os.Exit(1)
	}

	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Printf("Starting execution engine in %s mode (broker: %s)", cfg.Environment, cfg.Broker.Name)

	healthChecker := monitoring.NewHealthChecker()

	engine, err := NewEngine(cfg, healthChecker)
	if err != nil {
		common.Error("Failed to initialize engine: %v", err)
		os.Exit(1)
	}

	console := reporting.NewConsoleReporter()
	console.PrintStartupInfo("execution-engine", engine.gateway.GetName(), cfg.Risk.Limits)

	// Monitoring endpoints
	go setupMonitoringServers(cfg, healthChecker)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := engine.Start(ctx); err != nil {
		common.Error("Failed to start engine: %v", err)
		os.Exit(1)
	}
	common.Success("Engine started on %s", engine.gateway.GetName())

	// Wait for shutdown signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	log.Println("Shutting down...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	report := engine.Shutdown(shutdownCtx)
	console.PrintSessionSummary(report)

	if *reportPath != "" {
		path := *reportPath
		if filepath.Ext(path) == "" {
			path += ".xlsx"
		}
		if err := reporting.NewExcelReporter().WriteSessionXLSX(report, path); err != nil {
			common.Error("Failed to write session report: %v", err)
		} else {
			common.Success("Session report written to %s", path)
		}
	}

	log.Println("Engine stopped successfully")
}

func setupMonitoringServers(cfg *config.Config, healthChecker *monitoring.HealthChecker) {
	// Separate mux for the health server
	healthMux := http.NewServeMux()
	healthMux.Handle("/health", healthChecker)

	go func() {
		log.Printf("Starting health server on port %d", cfg.Monitoring.HealthPort)
		if err := http.ListenAndServe(fmt.Sprintf(":%d", cfg.Monitoring.HealthPort), healthMux); err != nil {
			log.Printf("Health server error: %v", err)
		}
	}()

	go func() {
		log.Printf("Starting Prometheus server on port %d", cfg.Monitoring.PrometheusPort)
		if err := http.ListenAndServe(fmt.Sprintf(":%d", cfg.Monitoring.PrometheusPort), monitoring.NewMetricsHandler()); err != nil {
			log.Printf("Prometheus server error: %v", err)
		}
	}()
}
