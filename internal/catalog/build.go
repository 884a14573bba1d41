package catalog

import (
	"log/slog"
	"os"

	"github.com/InnerAnimal/meaux-infra/internal/auth"
	"github.com/InnerAnimal/meaux-infra/internal/orchestrator"
	"github.com/InnerAnimal/meaux-infra/internal/provider/cloudflare"
	"github.com/InnerAnimal/meaux-infra/internal/provider/integrations"
	"github.com/InnerAnimal/meaux-infra/internal/provider/render"
	"github.com/InnerAnimal/meaux-infra/internal/provider/supabase"
	"github.com/InnerAnimal/meaux-infra/internal/provider/vercel"
	"github.com/InnerAnimal/meaux-infra/internal/tool"
	"github.com/InnerAnimal/meaux-infra/pkg/config"
)

// Build wires default provider clients and the orchestrator into a populated
// registry.
func Build(cfg config.Config, logger *slog.Logger) (*tool.Registry, *orchestrator.Orchestrator) {
	deps := Deps{
		CF:           cloudflare.New(),
		Vercel:       vercel.New(),
		Render:       render.New(),
		Supabase:     supabase.New(),
		Integrations: integrations.New(),
	}

	orchOpts := []orchestrator.Option{}
	if os.Getenv("VERCEL_TOKEN") != "" {
		orchOpts = append(orchOpts, orchestrator.WithDeploymentSource(deps.Vercel))
	}
	deps.Orch = orchestrator.New(cfg, logger, orchOpts...)

	gate := auth.NewGate(cfg.Auth)
	registry := tool.NewRegistry(gate, logger)
	Register(registry, deps)
	return registry, deps.Orch
}
