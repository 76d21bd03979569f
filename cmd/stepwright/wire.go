package main

import (
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/rahul/stepwright/internal/agent"
	"github.com/rahul/stepwright/internal/governance"
	"github.com/rahul/stepwright/internal/observability"
	"github.com/rahul/stepwright/internal/planning"
	"github.com/rahul/stepwright/internal/schema"
	"github.com/rahul/stepwright/internal/store"
	"github.com/rahul/stepwright/internal/tools"
	"github.com/rahul/stepwright/pkg/config"
)

// app holds everything a command may need. Fields a command did not ask
// for stay nil.
type app struct {
	cfg         *config.Config
	model       llms.Model
	tools       *tools.Registry
	base        []schema.Entry
	schema      *schema.Registry
	interpreter *planning.Interpreter
	store       *store.PlanStore
	logger      *observability.Logger
	agent       *agent.Agent
}

// loadConfig falls back to defaults when the default config file is absent.
func loadConfig(path string, explicit bool) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err == nil {
		return cfg, nil
	}
	if !explicit {
		if _, statErr := os.Stat(path); errors.Is(statErr, fs.ErrNotExist) {
			return config.Default(), nil
		}
	}
	return nil, err
}

func newModel(cfg *config.Config) (llms.Model, error) {
	name, p := cfg.GetDefaultProvider()
	if name == "" {
		return nil, fmt.Errorf("no enabled provider found in config")
	}
	switch name {
	case "openai", "openrouter":
		opts := []openai.Option{
			openai.WithToken(p.APIKey),
			openai.WithModel(p.Model),
		}
		if p.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(p.BaseURL))
		}
		return openai.New(opts...)
	}
	return nil, fmt.Errorf("provider %s is not supported", name)
}

// newToolRegistry registers every tool. model may be nil when the tools are
// only described, never run.
func newToolRegistry(cfg *config.Config, model llms.Model) *tools.Registry {
	root := cfg.App.Workspace
	registry := tools.NewRegistry()
	registry.Register(tools.NewCodeSearchTool(root))
	registry.Register(tools.NewFileTool(root))
	registry.Register(tools.NewGitTool(root))
	registry.Register(tools.NewRefactorTool(root))
	registry.Register(tools.NewFetchTool())
	registry.Register(tools.NewExplainTool(model))
	registry.Register(tools.NewSummaryTool(model))

	web, err := tools.NewWebSearchTool()
	if err != nil {
		log.Printf("Warning: Failed to initialize web search tool: %v", err)
	} else {
		registry.Register(web)
	}
	return registry
}

// buildSchema derives entries from the registered tools, annotated with the
// built-in alias tables, and composes the configured schema file on top.
func buildSchema(cfg *config.Config, registry *tools.Registry) ([]schema.Entry, *schema.Registry, error) {
	base, err := schema.FromTools(registry.Describers(), schema.BuiltinByTool())
	if err != nil {
		return nil, nil, fmt.Errorf("derive tool schema: %w", err)
	}
	entries := base
	if path := cfg.Interpreter.SchemaPath; path != "" {
		file, err := schema.LoadFile(path)
		if err != nil {
			return nil, nil, err
		}
		entries = schema.Compose(base, file)
	}
	reg, err := schema.NewRegistry(entries)
	if err != nil {
		return nil, nil, err
	}
	return base, reg, nil
}

func newInterpreter(cfg *config.Config, reg *schema.Registry) (*planning.Interpreter, error) {
	opts := []planning.Option{
		planning.WithFallbackTool(cfg.Interpreter.FallbackTool),
		planning.WithSummaryStep(cfg.Interpreter.SummaryStep),
	}
	if len(cfg.Interpreter.ReasoningTags) > 0 {
		tags := make([]planning.TagPair, len(cfg.Interpreter.ReasoningTags))
		for i, pair := range cfg.Interpreter.ReasoningTags {
			tags[i] = planning.TagPair{Open: pair[0], Close: pair[1]}
		}
		opts = append(opts, planning.WithReasoningTags(tags))
	}
	return planning.NewInterpreter(reg, opts...)
}

func newPolicy(cfg *config.Config) (*governance.DefaultPolicyEngine, error) {
	gov := governance.NewDefaultPolicyEngine()
	for _, t := range cfg.Governance.DenyTools {
		gov.DenyTool(t)
	}
	for tool, actions := range cfg.Governance.DenyActions {
		gov.DenyAction(tool, actions...)
	}
	for _, pattern := range cfg.Governance.DenyArguments {
		if err := gov.DenyArguments(pattern); err != nil {
			return nil, err
		}
	}
	return gov, nil
}

// newOfflineApp wires what interpretation alone needs: no model, no store.
func newOfflineApp(cfg *config.Config) (*app, error) {
	a := &app{cfg: cfg, tools: newToolRegistry(cfg, nil)}
	var err error
	if a.base, a.schema, err = buildSchema(cfg, a.tools); err != nil {
		return nil, err
	}
	if a.interpreter, err = newInterpreter(cfg, a.schema); err != nil {
		return nil, err
	}
	return a, nil
}

// answerTools names the tools whose output is sent back as the reply: the
// summary step and whichever tool the interpreter falls back to.
func answerTools(cfg *config.Config) []string {
	if fb := cfg.Interpreter.FallbackTool; fb != "" {
		return []string{"summary", fb}
	}
	return agent.DefaultAnswerTools()
}

// newApp wires the full pipeline. Close releases the store.
func newApp(cfg *config.Config) (*app, error) {
	model, err := newModel(cfg)
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, model: model, tools: newToolRegistry(cfg, model)}
	if a.base, a.schema, err = buildSchema(cfg, a.tools); err != nil {
		return nil, err
	}
	if a.interpreter, err = newInterpreter(cfg, a.schema); err != nil {
		return nil, err
	}
	gov, err := newPolicy(cfg)
	if err != nil {
		return nil, err
	}
	if a.store, err = openStore(cfg); err != nil {
		return nil, err
	}
	a.logger = observability.NewLogger()

	analyzer := agent.NewAnalyzer(model, a.schema, agent.NewPromptManager(cfg.App.PromptsDir), a.logger)
	analyzer.OfferTools = cfg.OfferTools()

	engine := agent.NewEngine(a.tools, gov, a.logger)
	engine.Recorder = a.store
	engine.AnswerTools = answerTools(cfg)

	a.agent = agent.NewAgent(analyzer, a.interpreter, engine)
	a.agent.History = a.store
	a.agent.Plans = a.store
	return a, nil
}

func (a *app) Close() error {
	if a.store == nil {
		return nil
	}
	return a.store.Close()
}

// watcher returns the schema file watcher, or nil when watching is off.
func (a *app) watcher() *schema.Watcher {
	path := a.cfg.Interpreter.SchemaPath
	if path == "" || !a.cfg.Interpreter.WatchSchema {
		return nil
	}
	base := a.base
	return &schema.Watcher{
		Path:     path,
		Registry: a.schema,
		Build:    func(file []schema.Entry) []schema.Entry { return schema.Compose(base, file) },
		OnReload: a.logger.LogSchemaReload,
	}
}

func openStore(cfg *config.Config) (*store.PlanStore, error) {
	return store.NewPlanStore(cfg.Memory.Path)
}
