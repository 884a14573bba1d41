package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/InnerAnimal/meaux-infra/internal/catalog"
	"github.com/InnerAnimal/meaux-infra/internal/domain"
	"github.com/InnerAnimal/meaux-infra/internal/orchestrator"
	"github.com/InnerAnimal/meaux-infra/pkg/config"
	"github.com/InnerAnimal/meaux-infra/pkg/logger"
)

func main() {
	configPath := flag.String("config", os.Getenv("INFRA_CONFIG"), "path to config file")
	asJSON := flag.Bool("json", false, "emit the raw summary as JSON")
	quiet := flag.Bool("quiet", false, "suppress progress logging")
	flag.Parse()

	level := slog.LevelInfo
	if *quiet {
		level = slog.LevelError
	}
	log := logger.New(os.Stderr, "healthcheck", level)

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	_, orch := catalog.Build(cfg, log)
	summary, err := orch.Run(ctx, orchestrator.Options{PlanOnly: true})
	if err != nil {
		log.Error("audit failed", "error", err)
		os.Exit(1)
	}

	if *asJSON {
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		_ = encoder.Encode(summary)
	} else {
		printReport(summary)
	}

	if summary.HasHardErrors() {
		os.Exit(1)
	}
}

func printReport(s *domain.Summary) {
	fmt.Println("Infrastructure Health Report")
	fmt.Println(strings.Repeat("=", 40))

	fmt.Println("\nEnvironment variables:")
	for _, v := range s.EnvironmentVars {
		fmt.Printf("  %s %s\n", mark(v.Configured), v.Key)
	}

	fmt.Println("\nProjects:")
	for _, p := range s.ProjectAudit {
		fmt.Printf("  %s %s", mark(p.Status == domain.ProjectReady), p.Name)
		if len(p.Issues) > 0 {
			fmt.Printf(" (%s)", strings.Join(p.Issues, "; "))
		}
		fmt.Println()
	}

	fmt.Println("\nDNS:")
	for _, d := range s.DNSVerification {
		fmt.Printf("  %s %s", mark(d.Status == domain.DNSConfigured), d.Domain)
		if d.Error != "" {
			fmt.Printf(" (%s)", d.Error)
		} else if d.StatusCode != 0 {
			fmt.Printf(" [%d]", d.StatusCode)
		}
		fmt.Println()
	}

	fmt.Println("\nHealth checks:")
	for _, h := range s.HealthChecks {
		fmt.Printf("  %s %s", mark(h.Status == domain.Healthy), h.Name)
		if h.Error != "" {
			fmt.Printf(" (%s)", h.Error)
		} else {
			fmt.Printf(" [%d, %dms]", h.StatusCode, h.ResponseTimeMS)
		}
		fmt.Println()
	}

	fmt.Println("\nDeployments:")
	for _, d := range s.DeploymentVerification {
		fmt.Printf("  %s %s", mark(d.Status == domain.Deployed), d.Project)
		if d.State != "" {
			fmt.Printf(" [%s]", d.State)
		}
		if d.Error != "" {
			fmt.Printf(" (%s)", d.Error)
		}
		fmt.Println()
	}

	if len(s.Recommendations) > 0 {
		fmt.Println("\nRecommendations:")
		for _, r := range s.Recommendations {
			fmt.Printf("  [%s] %s\n", r.Severity, r.Message)
		}
	}
	fmt.Println()
}

func mark(ok bool) string {
	if ok {
		return "+"
	}
	return "-"
}
