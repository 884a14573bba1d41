// Package catalog registers every exposed operation against the tool
// registry, binding provider clients and the orchestrator into named,
// validated, gated tools.
package catalog

import (
	"context"
	"fmt"

	"github.com/InnerAnimal/meaux-infra/internal/orchestrator"
	"github.com/InnerAnimal/meaux-infra/internal/provider/cloudflare"
	"github.com/InnerAnimal/meaux-infra/internal/provider/integrations"
	"github.com/InnerAnimal/meaux-infra/internal/provider/render"
	"github.com/InnerAnimal/meaux-infra/internal/provider/supabase"
	"github.com/InnerAnimal/meaux-infra/internal/provider/vercel"
	"github.com/InnerAnimal/meaux-infra/internal/tool"
	"github.com/InnerAnimal/meaux-infra/internal/validate"
)

// Deps are the clients the catalog wires tools to.
type Deps struct {
	CF           *cloudflare.Client
	Vercel       *vercel.Client
	Render       *render.Client
	Supabase     *supabase.Client
	Integrations *integrations.Client
	Orch         *orchestrator.Orchestrator
}

// handle adapts a typed operation to the registry's handler signature. The
// assertion cannot fail because NewInput constructs the matching type.
func handle[T tool.Input](fn func(ctx context.Context, in T) (any, error)) tool.Handler {
	return func(ctx context.Context, in tool.Input) (any, error) {
		return fn(ctx, in.(T))
	}
}

func newInput[T any]() func() tool.Input {
	return func() tool.Input {
		var zero T
		return any(&zero).(tool.Input)
	}
}

// Register binds every tool to the registry in catalog order.
func Register(reg *tool.Registry, deps Deps) {
	registerCloudflare(reg, deps.CF)
	registerVercel(reg, deps.Vercel)
	registerRender(reg, deps.Render)
	registerSupabase(reg, deps.Supabase)
	registerIntegrations(reg, deps.Integrations)
	registerOrchestration(reg, deps.Orch)
}

func registerCloudflare(reg *tool.Registry, cf *cloudflare.Client) {
	reg.Register(tool.Descriptor{
		Name:        "cf_list_dns_records",
		Description: "List DNS records in a Cloudflare zone, optionally filtered by name and type",
		NewInput:    newInput[cloudflare.ListDNSRecordsInput](),
		Handle: handle(func(ctx context.Context, in *cloudflare.ListDNSRecordsInput) (any, error) {
			return cf.ListDNSRecords(ctx, *in)
		}),
	})
	reg.Register(tool.Descriptor{
		Name:        "cf_upsert_dns_record",
		Description: "Create or update a DNS record in a Cloudflare zone",
		Mutating:    true,
		NewInput:    newInput[cloudflare.UpsertDNSRecordInput](),
		Handle: handle(func(ctx context.Context, in *cloudflare.UpsertDNSRecordInput) (any, error) {
			return cf.UpsertDNSRecord(ctx, *in)
		}),
	})
	reg.Register(tool.Descriptor{
		Name:        "cf_point_to_vercel",
		Description: "Point a domain's apex and www records at Vercel's edge",
		Mutating:    true,
		NewInput:    newInput[cloudflare.PointToVercelInput](),
		Handle: handle(func(ctx context.Context, in *cloudflare.PointToVercelInput) (any, error) {
			return cf.PointToVercel(ctx, *in)
		}),
	})
	reg.Register(tool.Descriptor{
		Name:        "cf_list_workers",
		Description: "List Worker services in a Cloudflare account",
		NewInput:    newInput[cloudflare.ListWorkersInput](),
		Handle: handle(func(ctx context.Context, in *cloudflare.ListWorkersInput) (any, error) {
			return cf.ListWorkers(ctx, *in)
		}),
	})
	reg.Register(tool.Descriptor{
		Name:        "cf_deploy_worker",
		Description: "Upload a Worker script, optionally binding KV namespaces",
		Mutating:    true,
		NewInput:    newInput[cloudflare.DeployWorkerInput](),
		Handle: handle(func(ctx context.Context, in *cloudflare.DeployWorkerInput) (any, error) {
			return cf.DeployWorker(ctx, *in)
		}),
	})
	reg.Register(tool.Descriptor{
		Name:        "cf_get_kv",
		Description: "Read a value from a Workers KV namespace",
		NewInput:    newInput[cloudflare.GetKVInput](),
		Handle: handle(func(ctx context.Context, in *cloudflare.GetKVInput) (any, error) {
			value, err := cf.GetKV(ctx, *in)
			if err != nil {
				return nil, err
			}
			return map[string]string{"key": in.Key, "value": value}, nil
		}),
	})
	reg.Register(tool.Descriptor{
		Name:        "cf_set_kv",
		Description: "Write a value into a Workers KV namespace",
		Mutating:    true,
		NewInput:    newInput[cloudflare.SetKVInput](),
		Handle: handle(func(ctx context.Context, in *cloudflare.SetKVInput) (any, error) {
			if err := cf.SetKV(ctx, *in); err != nil {
				return nil, err
			}
			return map[string]string{"key": in.Key, "status": "written"}, nil
		}),
	})
}

type emptyInput struct{}

func (emptyInput) Validate() validate.Violations { return nil }

func registerVercel(reg *tool.Registry, vc *vercel.Client) {
	reg.Register(tool.Descriptor{
		Name:        "vercel_projects_list",
		Description: "List Vercel projects",
		NewInput:    newInput[emptyInput](),
		Handle: handle(func(ctx context.Context, _ *emptyInput) (any, error) {
			return vc.ListProjects(ctx)
		}),
	})
	reg.Register(tool.Descriptor{
		Name:        "vercel_project_get",
		Description: "Fetch one Vercel project by ID or name",
		NewInput:    newInput[vercel.GetProjectInput](),
		Handle: handle(func(ctx context.Context, in *vercel.GetProjectInput) (any, error) {
			return vc.GetProject(ctx, *in)
		}),
	})
	reg.Register(tool.Descriptor{
		Name:        "vercel_deployments_list",
		Description: "List recent deployments, optionally scoped to a project",
		NewInput:    newInput[vercel.ListDeploymentsInput](),
		Handle: handle(func(ctx context.Context, in *vercel.ListDeploymentsInput) (any, error) {
			return vc.ListDeployments(ctx, *in)
		}),
	})
	reg.Register(tool.Descriptor{
		Name:        "vercel_deploy",
		Description: "Trigger a deployment from the linked git repository",
		Mutating:    true,
		NewInput:    newInput[vercel.DeployInput](),
		Handle: handle(func(ctx context.Context, in *vercel.DeployInput) (any, error) {
			return vc.TriggerDeployment(ctx, *in)
		}),
	})
	reg.Register(tool.Descriptor{
		Name:        "vercel_link_domain",
		Description: "Attach a domain to a Vercel project",
		Mutating:    true,
		NewInput:    newInput[vercel.LinkDomainInput](),
		Handle: handle(func(ctx context.Context, in *vercel.LinkDomainInput) (any, error) {
			return vc.LinkDomain(ctx, *in)
		}),
	})
	reg.Register(tool.Descriptor{
		Name:        "vercel_domains_list",
		Description: "List domains attached to a Vercel project",
		NewInput:    newInput[vercel.ListDomainsInput](),
		Handle: handle(func(ctx context.Context, in *vercel.ListDomainsInput) (any, error) {
			return vc.ListDomains(ctx, *in)
		}),
	})
	reg.Register(tool.Descriptor{
		Name:        "vercel_env_get",
		Description: "List environment variables of a Vercel project",
		NewInput:    newInput[vercel.GetEnvInput](),
		Handle: handle(func(ctx context.Context, in *vercel.GetEnvInput) (any, error) {
			return vc.GetEnv(ctx, *in)
		}),
	})
	reg.Register(tool.Descriptor{
		Name:        "vercel_env_set",
		Description: "Set an encrypted environment variable on a Vercel project",
		Mutating:    true,
		NewInput:    newInput[vercel.SetEnvInput](),
		Handle: handle(func(ctx context.Context, in *vercel.SetEnvInput) (any, error) {
			return vc.SetEnv(ctx, *in)
		}),
	})
}

func registerRender(reg *tool.Registry, rc *render.Client) {
	reg.Register(tool.Descriptor{
		Name:        "render_services_list",
		Description: "List Render services",
		NewInput:    newInput[emptyInput](),
		Handle: handle(func(ctx context.Context, _ *emptyInput) (any, error) {
			return rc.ListServices(ctx)
		}),
	})
	reg.Register(tool.Descriptor{
		Name:        "render_service_get",
		Description: "Fetch one Render service by ID",
		NewInput:    newInput[render.GetServiceInput](),
		Handle: handle(func(ctx context.Context, in *render.GetServiceInput) (any, error) {
			return rc.GetService(ctx, *in)
		}),
	})
	reg.Register(tool.Descriptor{
		Name:        "render_deploys_list",
		Description: "List deploys of a Render service",
		NewInput:    newInput[render.ListDeploysInput](),
		Handle: handle(func(ctx context.Context, in *render.ListDeploysInput) (any, error) {
			return rc.ListDeploys(ctx, *in)
		}),
	})
	reg.Register(tool.Descriptor{
		Name:        "render_deploy_trigger",
		Description: "Trigger a deploy of a Render service",
		Mutating:    true,
		NewInput:    newInput[render.TriggerDeployInput](),
		Handle: handle(func(ctx context.Context, in *render.TriggerDeployInput) (any, error) {
			return rc.TriggerDeploy(ctx, *in)
		}),
	})
	reg.Register(tool.Descriptor{
		Name:        "render_env_get",
		Description: "List environment variables of a Render service",
		NewInput:    newInput[render.GetEnvInput](),
		Handle: handle(func(ctx context.Context, in *render.GetEnvInput) (any, error) {
			return rc.GetEnv(ctx, *in)
		}),
	})
	reg.Register(tool.Descriptor{
		Name:        "render_env_set",
		Description: "Replace environment variables of a Render service",
		Mutating:    true,
		NewInput:    newInput[render.SetEnvInput](),
		Handle: handle(func(ctx context.Context, in *render.SetEnvInput) (any, error) {
			return rc.SetEnv(ctx, *in)
		}),
	})
}

func registerSupabase(reg *tool.Registry, sb *supabase.Client) {
	reg.Register(tool.Descriptor{
		Name:        "supabase_query",
		Description: "Select rows from a table through the REST interface",
		NewInput:    newInput[supabase.QueryInput](),
		Handle: handle(func(ctx context.Context, in *supabase.QueryInput) (any, error) {
			return sb.Query(ctx, *in)
		}),
	})
	reg.Register(tool.Descriptor{
		Name:        "supabase_insert",
		Description: "Insert rows into a table",
		Mutating:    true,
		NewInput:    newInput[supabase.InsertInput](),
		Handle: handle(func(ctx context.Context, in *supabase.InsertInput) (any, error) {
			return sb.Insert(ctx, *in)
		}),
	})
	reg.Register(tool.Descriptor{
		Name:        "supabase_update",
		Description: "Update rows matching a filter",
		Mutating:    true,
		NewInput:    newInput[supabase.UpdateInput](),
		Handle: handle(func(ctx context.Context, in *supabase.UpdateInput) (any, error) {
			return sb.Update(ctx, *in)
		}),
	})
	reg.Register(tool.Descriptor{
		Name:        "supabase_delete",
		Description: "Delete rows matching a filter",
		Mutating:    true,
		NewInput:    newInput[supabase.DeleteInput](),
		Handle: handle(func(ctx context.Context, in *supabase.DeleteInput) (any, error) {
			return sb.Delete(ctx, *in)
		}),
	})
	reg.Register(tool.Descriptor{
		Name:        "supabase_table_stats",
		Description: "Report the row count of a table",
		NewInput:    newInput[supabase.TableStatsInput](),
		Handle: handle(func(ctx context.Context, in *supabase.TableStatsInput) (any, error) {
			return sb.Stats(ctx, *in)
		}),
	})
}

func registerIntegrations(reg *tool.Registry, ig *integrations.Client) {
	reg.Register(tool.Descriptor{
		Name:        "github_open_pr",
		Description: "Open a pull request on a GitHub repository",
		Mutating:    true,
		NewInput:    newInput[integrations.OpenPRInput](),
		Handle: handle(func(ctx context.Context, in *integrations.OpenPRInput) (any, error) {
			return ig.OpenPR(ctx, *in)
		}),
	})
	reg.Register(tool.Descriptor{
		Name:        "stripe_list_products",
		Description: "List Stripe products",
		NewInput:    newInput[integrations.ListProductsInput](),
		Handle: handle(func(ctx context.Context, in *integrations.ListProductsInput) (any, error) {
			return ig.ListProducts(ctx, *in)
		}),
	})
	reg.Register(tool.Descriptor{
		Name:        "ga4_send_event",
		Description: "Send a Measurement Protocol event to Google Analytics 4",
		NewInput:    newInput[integrations.SendEventInput](),
		Handle: handle(func(ctx context.Context, in *integrations.SendEventInput) (any, error) {
			if err := ig.SendEvent(ctx, *in); err != nil {
				return nil, err
			}
			return map[string]string{"status": "sent"}, nil
		}),
	})
	reg.Register(tool.Descriptor{
		Name:        "whatsapp_send_message",
		Description: "Send a WhatsApp message through the Cloud API",
		Mutating:    true,
		NewInput:    newInput[integrations.SendMessageInput](),
		Handle: handle(func(ctx context.Context, in *integrations.SendMessageInput) (any, error) {
			return ig.SendMessage(ctx, *in)
		}),
	})
	reg.Register(tool.Descriptor{
		Name:        "openai_generate",
		Description: "Generate text with an OpenAI chat model",
		NewInput:    newInput[integrations.GenerateInput](),
		Handle: handle(func(ctx context.Context, in *integrations.GenerateInput) (any, error) {
			text, err := ig.Generate(ctx, *in)
			if err != nil {
				return nil, err
			}
			return map[string]string{"text": text}, nil
		}),
	})
	reg.Register(tool.Descriptor{
		Name:        "notion_create_page",
		Description: "Create a Notion page (not yet implemented)",
		Mutating:    true,
		NewInput:    newInput[stubInput](),
		Handle: handle(func(ctx context.Context, _ *stubInput) (any, error) {
			return stubResult("notion_create_page"), nil
		}),
	})
	reg.Register(tool.Descriptor{
		Name:        "slack_send_message",
		Description: "Send a Slack message (not yet implemented)",
		Mutating:    true,
		NewInput:    newInput[stubInput](),
		Handle: handle(func(ctx context.Context, _ *stubInput) (any, error) {
			return stubResult("slack_send_message"), nil
		}),
	})
}

type stubInput struct{}

func (stubInput) Validate() validate.Violations { return nil }

func stubResult(name string) map[string]string {
	return map[string]string{
		"status":  "not_implemented",
		"message": fmt.Sprintf("%s is planned but not wired to its provider yet", name),
	}
}

// FinishProjectInput drives the full audit pipeline. Confirm must be set
// explicitly; absent means refused.
type FinishProjectInput struct {
	Confirm  *bool `json:"confirm"`
	PlanOnly *bool `json:"planOnly"`
}

func (in *FinishProjectInput) Validate() validate.Violations {
	var v validate.Violations
	if in.Confirm == nil {
		v.Add("confirm", "is required")
	}
	return v
}

func registerOrchestration(reg *tool.Registry, orch *orchestrator.Orchestrator) {
	reg.Register(tool.Descriptor{
		Name:        "finish_project",
		Description: "Run the full infrastructure audit: env vars, project config, DNS, health checks, deployments",
		Mutating:    true,
		NewInput:    newInput[FinishProjectInput](),
		Handle: handle(func(ctx context.Context, in *FinishProjectInput) (any, error) {
			if !*in.Confirm {
				return map[string]string{
					"status":  "refused",
					"message": "finish_project requires confirm=true; no audit was run",
				}, nil
			}
			planOnly := true
			if in.PlanOnly != nil {
				planOnly = *in.PlanOnly
			}
			return orch.Run(ctx, orchestrator.Options{PlanOnly: planOnly})
		}),
	})
}
