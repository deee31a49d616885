// Command toolloop runs one tool-calling session against a workspace in the
// terminal. The task is taken from the command line or typed at the prompt.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"
	"github.com/martinemde/toolloop/agentloop"
	"github.com/martinemde/toolloop/config"
	"github.com/martinemde/toolloop/execlog"
	"github.com/martinemde/toolloop/fstools"
	"github.com/martinemde/toolloop/unifiedllm"
	"github.com/rs/zerolog"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "toolloop: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "", "path to a YAML config file")
	workspace := flag.String("workspace", "", "workspace root (overrides config)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	if *workspace != "" {
		cfg.WorkspaceRoot = *workspace
	}

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}
	logFile, err := os.OpenFile(filepath.Join(cfg.DataDir, "toolloop.log"), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open log: %w", err)
	}
	defer logFile.Close()
	logger := zerolog.New(logFile).Level(cfg.Level()).With().Timestamp().Logger()

	store, err := execlog.Open(filepath.Join(cfg.DataDir, "executions"), execlog.WithLogger(logger))
	if err != nil {
		return err
	}

	ws, err := fstools.NewWorkspace(cfg.WorkspaceRoot,
		fstools.WithRecords(store),
		fstools.WithGatedTools(cfg.GatedTools...),
		fstools.WithLogger(logger),
	)
	if err != nil {
		return err
	}

	llm, modelID, err := newLLM(cfg)
	if err != nil {
		return err
	}
	if n, ok := llm.(unifiedllm.Namer); ok {
		logger.Info().Str("provider", n.Name()).Str("model", modelID).Str("workspace", ws.Root()).Msg("model ready")
	}

	loopCfg := cfg.ToLoopConfig()
	loopCfg.SessionID = uuid.NewString()
	loopCfg.Environment = ws.EnvironmentContext(modelID)
	loopCfg.Instructions = joinInstructions(ws.ProjectInstructions(), cfg.Instructions)

	emitter := agentloop.NewEventEmitter(loopCfg.SessionID, 256)
	session, err := agentloop.NewSession(agentloop.SessionOptions{
		Config:       loopCfg,
		Model:        llm,
		Dispatcher:   ws,
		Capabilities: ws.Capabilities(),
		Recorder:     store,
		UI:           emitter,
		Logger:       logger,
	})
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	task := strings.TrimSpace(strings.Join(flag.Args(), " "))
	p := tea.NewProgram(newUI(ctx, session, emitter, task, modelID), tea.WithAltScreen())
	final, err := p.Run()
	if err != nil {
		return fmt.Errorf("terminal ui: %w", err)
	}

	u, ok := final.(ui)
	if !ok || u.result == nil {
		return nil
	}
	fmt.Println(u.summary())
	if u.result.Status == agentloop.StatusFailed {
		return errors.New(u.result.Reason)
	}
	return nil
}

// newLLM builds the model adapter selected by cfg and reports the resolved
// model id.
func newLLM(cfg *config.Config) (unifiedllm.Model, string, error) {
	if cfg.UseAnthropicSDK() {
		a, err := unifiedllm.NewAnthropicAdapter(cfg.APIKey,
			unifiedllm.WithAnthropicModel(cfg.Model),
			unifiedllm.WithAnthropicMaxTokens(cfg.MaxTokens),
		)
		if err != nil {
			return nil, "", err
		}
		return a, a.ModelID(), nil
	}

	a, err := unifiedllm.NewGollmAdapter(cfg.Provider, cfg.APIKey,
		unifiedllm.WithModel(cfg.Model),
		unifiedllm.WithMaxTokens(cfg.MaxTokens),
		unifiedllm.WithTemperature(cfg.Temperature),
	)
	if err != nil {
		return nil, "", err
	}
	return a, a.ModelID(), nil
}

func joinInstructions(parts ...string) string {
	var out []string
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, "\n\n")
}
