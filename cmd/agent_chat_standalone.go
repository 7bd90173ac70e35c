package cmd

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/nextlevelbuilder/goclaw/internal/agent"
	"github.com/nextlevelbuilder/goclaw/internal/bus"
	"github.com/nextlevelbuilder/goclaw/internal/channels"
	"github.com/nextlevelbuilder/goclaw/internal/config"
	"github.com/nextlevelbuilder/goclaw/internal/cron"
	"github.com/nextlevelbuilder/goclaw/internal/heartbeat"
	"github.com/nextlevelbuilder/goclaw/internal/memory"
	"github.com/nextlevelbuilder/goclaw/internal/mcp"
	"github.com/nextlevelbuilder/goclaw/internal/providers"
	"github.com/nextlevelbuilder/goclaw/internal/redact"
	"github.com/nextlevelbuilder/goclaw/internal/sessions"
	"github.com/nextlevelbuilder/goclaw/internal/subagent"
	"github.com/nextlevelbuilder/goclaw/internal/tools"
)

func chatCmd() *cobra.Command {
	var message string
	var sessionKey string

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Chat with the agent from the terminal",
		Run: func(cmd *cobra.Command, args []string) {
			cfg, err := config.Load(resolveConfigPath())
			if err != nil {
				fmt.Fprintf(os.Stderr, "config: %v\n", err)
				os.Exit(1)
			}
			runtime, err := bootstrapRuntime(cfg)
			if err != nil {
				fmt.Fprintf(os.Stderr, "bootstrap: %v\n", err)
				os.Exit(1)
			}
			runChatREPL(runtime, message, sessionKey)
		},
	}
	cmd.Flags().StringVarP(&message, "message", "m", "", "send one message and print the reply, instead of an interactive REPL")
	cmd.Flags().StringVar(&sessionKey, "session", "cli:local", "session key to chat against")
	return cmd
}

func runCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the full agent runtime: bus, CLI channel, cron, heartbeat",
		Run: func(cmd *cobra.Command, args []string) {
			cfg, err := config.Load(resolveConfigPath())
			if err != nil {
				fmt.Fprintf(os.Stderr, "config: %v\n", err)
				os.Exit(1)
			}
			runtime, err := bootstrapRuntime(cfg)
			if err != nil {
				fmt.Fprintf(os.Stderr, "bootstrap: %v\n", err)
				os.Exit(1)
			}
			runRuntime(runtime)
		},
	}
}

func init() {
	rootCmd.AddCommand(runCmd())
}

// runtime holds every collaborator bootstrapRuntime wires together, so both
// `chat` (direct, bus-less) and `run` (full bus + channel loop) can share
// one construction path.
type runtime struct {
	cfg       *config.Config
	workspace string
	loop      *agent.Loop
	msgBus    *bus.Bus
	cronSvc   *cron.Service
	heartbeat *heartbeat.Service
	mcpMgr    *mcp.Manager
}

func bootstrapRuntime(cfg *config.Config) (*runtime, error) {
	workspace := config.ExpandHome(cfg.WorkspacePath)
	if !filepath.IsAbs(workspace) {
		if abs, err := filepath.Abs(workspace); err == nil {
			workspace = abs
		}
	}
	if err := os.MkdirAll(workspace, 0o755); err != nil {
		return nil, fmt.Errorf("create workspace: %w", err)
	}

	provider, err := buildProvider(cfg)
	if err != nil {
		return nil, err
	}

	redactor := redact.New(cfg.Security.RedactSensitiveOutput, workspace, resolveConfigPath(), []string{
		cfg.Providers.AnthropicAPIKey,
		cfg.Providers.OpenAIAPIKey,
	})

	sessDir := filepath.Join(workspace, ".goclaw", "sessions")
	sessStore, err := sessions.NewStore(sessDir)
	if err != nil {
		return nil, fmt.Errorf("sessions store: %w", err)
	}

	memStore, err := memory.NewStore(workspace)
	if err != nil {
		return nil, fmt.Errorf("memory store: %w", err)
	}

	msgBus := bus.New(256)

	cronStoreDir := cfg.Cron.StoreDir
	if cronStoreDir == "" {
		cronStoreDir = filepath.Join(workspace, ".goclaw", "cron.json")
	}
	cronSvc := cron.NewService(cronStoreDir)

	// Building the main registry needs subMgr as its Spawner, and subMgr needs
	// a registry-builder callback for each delegated run — break the cycle
	// with a throwaway factory bound only to BuildSubagent (which never
	// touches the spawner field).
	subagentFactory := tools.NewFactory(workspace, cfg, nil, cronSvc)
	subMgr := subagent.NewManager(provider, cfg.Model, msgBus, subagentFactory.BuildSubagent)

	mainRegistry := tools.NewFactory(workspace, cfg, subMgr, cronSvc).BuildMain()

	mcpMgr := mcp.NewManager(mainRegistry, mcp.WithConfigs(cfg.Tools.McpServers))

	loop := agent.NewLoop(agent.LoopConfig{
		Workspace:     workspace,
		Config:        cfg,
		Provider:      provider,
		Model:         cfg.Model,
		MaxIterations: cfg.MaxIterations,
		Temperature:   cfg.Temperature,
		MaxTokens:     cfg.MaxTokens,
		MemoryWindow:  cfg.MemoryWindow,
		Sessions:      sessStore,
		Memory:        memStore,
		Registry:      mainRegistry,
		Bus:           msgBus,
		Redactor:      redactor,
	})

	var hb *heartbeat.Service
	if cfg.Heartbeat.Every != "" && cfg.Heartbeat.Every != "0m" {
		if every, perr := time.ParseDuration(cfg.Heartbeat.Every); perr == nil {
			onExecute := func(ctx context.Context, tasks string) (string, error) {
				to := cfg.Heartbeat.To
				if to == "" {
					to = "direct"
				}
				return loop.ProcessDirect(ctx, tasks, "", "cli", to)
			}
			hb = heartbeat.NewService(workspace, provider, cfg.Heartbeat.Model, onExecute, every, true, cfg.Heartbeat.ActiveHours)
		}
	}

	return &runtime{
		cfg:       cfg,
		workspace: workspace,
		loop:      loop,
		msgBus:    msgBus,
		cronSvc:   cronSvc,
		heartbeat: hb,
		mcpMgr:    mcpMgr,
	}, nil
}

func buildProvider(cfg *config.Config) (providers.Provider, error) {
	switch {
	case cfg.Providers.AnthropicAPIKey != "":
		return providers.NewAnthropicProvider(cfg.Providers.AnthropicAPIKey), nil
	case cfg.Providers.OpenAIAPIKey != "":
		return providers.NewOpenAIProvider("openai", cfg.Providers.OpenAIAPIKey, cfg.Providers.OpenAIAPIBase, cfg.Model), nil
	default:
		return nil, fmt.Errorf("no LLM provider configured: set GOCLAW_ANTHROPIC_API_KEY or GOCLAW_OPENAI_API_KEY")
	}
}

// runChatREPL drives the agent directly (ProcessDirect), bypassing the bus
// entirely — no channel, no cron, no heartbeat. Good for a quick terminal
// conversation against the configured workspace.
func runChatREPL(rt *runtime, message, sessionKey string) {
	if message != "" {
		resp, err := rt.loop.ProcessDirect(context.Background(), message, sessionKey, "cli", "local")
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		fmt.Println(resp)
		return
	}

	fmt.Fprintf(os.Stderr, "\nGoClaw Interactive Chat\n")
	fmt.Fprintf(os.Stderr, "Workspace: %s\n", rt.workspace)
	fmt.Fprintf(os.Stderr, "Session: %s\n", sessionKey)
	fmt.Fprintf(os.Stderr, "Type \"exit\" to quit, \"/new\" to archive and start fresh\n\n")

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	scanner := bufio.NewScanner(os.Stdin)
	for {
		select {
		case <-ctx.Done():
			fmt.Fprintln(os.Stderr, "\nGoodbye!")
			return
		default:
		}

		fmt.Fprint(os.Stderr, "You: ")
		if !scanner.Scan() {
			break
		}
		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}
		if input == "exit" || input == "quit" {
			fmt.Fprintln(os.Stderr, "Goodbye!")
			return
		}

		resp, err := rt.loop.ProcessDirect(ctx, input, sessionKey, "cli", "local")
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n\n", err)
			continue
		}
		fmt.Printf("\n%s\n\n", resp)
	}
}

// runRuntime starts the bus-driven agent loop alongside a CLI channel, the
// cron ticker, and the heartbeat service, and blocks until interrupted.
func runRuntime(rt *runtime) {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := rt.mcpMgr.Start(ctx); err != nil {
		slog.Warn("mcp startup had failures", "error", err)
	}
	defer rt.mcpMgr.Stop()

	cli := channels.NewCLIChannel(rt.msgBus, "local")
	if err := cli.Start(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "cli channel: %v\n", err)
		os.Exit(1)
	}

	go rt.loop.Run(ctx)
	go runOutboundPump(ctx, rt.msgBus, cli)
	go runCronTicker(ctx, rt.cronSvc, rt.loop, rt.msgBus)

	if rt.heartbeat != nil {
		rt.heartbeat.Start(ctx)
		defer rt.heartbeat.Stop()
	}

	fmt.Fprintf(os.Stderr, "GoClaw running. Workspace: %s. Press Ctrl+C to stop.\n", rt.workspace)
	<-ctx.Done()
	rt.loop.Stop()
	_ = cli.Stop(context.Background())
}

// runOutboundPump delivers every published OutboundMessage to the one
// channel that owns its Channel field (only "cli" is wired today).
func runOutboundPump(ctx context.Context, msgBus *bus.Bus, cli *channels.CLIChannel) {
	for {
		msg, ok := pollOutbound(ctx, msgBus)
		if !ok {
			return
		}
		if err := cli.Send(ctx, msg); err != nil {
			slog.Error("outbound delivery failed", "error", err)
		}
	}
}

func pollOutbound(ctx context.Context, msgBus *bus.Bus) (bus.OutboundMessage, bool) {
	for {
		if msg, ok := msgBus.TryConsumeOutbound(); ok {
			return msg, true
		}
		select {
		case <-ctx.Done():
			return bus.OutboundMessage{}, false
		case <-time.After(100 * time.Millisecond):
		}
	}
}

// runCronTicker polls due cron jobs once a second and dispatches each
// through the agent loop.
func runCronTicker(ctx context.Context, cronSvc *cron.Service, loop *agent.Loop, msgBus *bus.Bus) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			nowMs := time.Now().UnixMilli()
			for _, job := range cronSvc.DueJobs(nowMs) {
result, err := cron.DispatchCronJob(ctx, job, loop, msgBus)
				if err != nil {
					result = fmt.Sprintf("error: %v", err)
				}
				cronSvc.RecordRun(job.ID, result, time.Now().UnixMilli())
			}
		}
	}
}
