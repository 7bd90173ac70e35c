package tools

import (
	"github.com/nextlevelbuilder/goclaw/internal/config"
	"github.com/nextlevelbuilder/goclaw/internal/cron"
	"github.com/nextlevelbuilder/goclaw/internal/tools/codex"
	"github.com/nextlevelbuilder/goclaw/internal/tools/todo"
)

// Factory builds the two disjoint tool registries the runtime needs: the
// main agent's (everything) and a subagent's (everything except
// message/spawn/cron, so a delegated run can never recurse into the
// session or fan out further sub-agents).
type Factory struct {
	workspace string
	cfg       *config.Config
	spawner   Spawner
	cronSvc   *cron.Service
}

func NewFactory(workspace string, cfg *config.Config, spawner Spawner, cronSvc *cron.Service) *Factory {
	return &Factory{workspace: workspace, cfg: cfg, spawner: spawner, cronSvc: cronSvc}
}

// BuildMain returns the registry wired into the main agent loop.
func (f *Factory) BuildMain() *Registry {
	r := f.buildShared()
	r.Register(NewMessageTool())
	if f.spawner != nil {
		r.Register(NewSpawnTool(f.spawner))
	}
	if f.cronSvc != nil {
		r.Register(NewCronTool(f.cronSvc))
	}
	return r
}

// BuildSubagent returns an isolated registry for one spawned delegate run:
// every capability a sub-agent is allowed, never message/spawn/cron.
func (f *Factory) BuildSubagent() *Registry {
	return f.buildShared()
}

func (f *Factory) buildShared() *Registry {
	r := NewRegistry()
	restrict := f.cfg.Tools.RestrictToWorkspace

	r.Register(NewReadFileTool(f.workspace, restrict))
	r.Register(NewWriteFileTool(f.workspace, restrict))
	r.Register(NewEditFileTool(f.workspace, restrict))
	r.Register(NewListDirTool(f.workspace, restrict))
	r.Register(NewExecTool(f.workspace, restrict))

	r.Register(NewWebSearchTool(WebSearchConfig{
		Provider: f.cfg.Tools.Web.Search.Provider,
		Brave:    searchProviderFromConfig(f.cfg.Tools.Web.Search.Providers["brave"]),
		Tavily:   searchProviderFromConfig(f.cfg.Tools.Web.Search.Providers["tavily"]),
		Serper:   searchProviderFromConfig(f.cfg.Tools.Web.Search.Providers["serper"]),
		CacheTTL: defaultCacheTTL,
	}))
	r.Register(NewWebFetchTool(WebFetchConfig{CacheTTL: defaultCacheTTL}))

	if f.cfg.Tools.Web.Browser.Enabled {
		if browser, err := NewBrowserTool(f.workspace, f.cfg.Tools.Web.Browser); err == nil {
			r.Register(browser)
		}
	}

	if f.cfg.Tools.Codex.Enabled {
		r.Register(codex.NewRunTool(f.workspace, f.cfg.Tools.Codex, restrict))
		r.Register(codex.NewMergeTool(f.workspace, f.cfg.Tools.Codex, restrict, ""))
	}

	r.Register(todo.NewTool(f.workspace))

	return r
}

func searchProviderFromConfig(p config.WebSearchProvider) SearchProviderConfig {
	return SearchProviderConfig{APIKey: p.APIKey, BaseURL: p.BaseURL}
}
