package agent

import (
	"context"
	"fmt"
	"log"

	"github.com/tmc/langchaingo/llms"

	"github.com/rahul/stepwright/internal/observability"
	"github.com/rahul/stepwright/internal/planning"
	"github.com/rahul/stepwright/internal/store"
)

// Brain defines the core intelligence interface for the agent.
type Brain interface {
	Think(ctx context.Context, chatID string, input string) (string, error)
}

type HistoryStore interface {
	AddMessage(chatID string, role string, content string) error
	GetHistory(chatID string, limit int) ([]llms.MessageContent, error)
}

type PlanSaver interface {
	SavePlan(rec store.PlanRecord) error
}

// Agent asks the model for a plan, interprets the reply, and executes the
// resulting steps.
type Agent struct {
	Analyzer     *Analyzer
	Interpreter  *planning.Interpreter
	Engine       *Engine
	History      HistoryStore
	Plans        PlanSaver
	Logger       *observability.Logger
	HistoryLimit int
}

func NewAgent(analyzer *Analyzer, interpreter *planning.Interpreter, engine *Engine) *Agent {
	return &Agent{
		Analyzer:     analyzer,
		Interpreter:  interpreter,
		Engine:       engine,
		Logger:       engine.Logger,
		HistoryLimit: 6,
	}
}

// Plan asks the model and interprets its reply. A model failure is not an
// error: the interpreter synthesizes a plan from the request instead.
func (a *Agent) Plan(ctx context.Context, chatID, input string) *planning.Plan {
	observability.SetStatus(observability.RolePlanning, input)
	defer observability.SetStatus(observability.RoleIdle, "")

	var history []llms.MessageContent
	if a.History != nil && a.HistoryLimit > 0 {
		h, err := a.History.GetHistory(chatID, a.HistoryLimit)
		if err != nil {
			log.Printf("Warning: Failed to load history for %s: %v", chatID, err)
		}
		history = h
	}

	var raw string
	if a.Analyzer != nil {
		var err error
		raw, err = a.Analyzer.Analyze(ctx, chatID, input, history)
		if err != nil {
			log.Printf("Warning: %v; falling back to request heuristics", err)
		}
	}

	plan := a.Interpreter.Interpret(input, raw)
	observability.CountPlan()
	a.logPlan(chatID, plan)
	return plan
}

// Run plans and executes one request.
func (a *Agent) Run(ctx context.Context, chatID, input string) (*Report, error) {
	defer observability.SetStatus(observability.RoleIdle, "")

	plan := a.Plan(ctx, chatID, input)
	if a.Plans != nil {
		if err := a.Plans.SavePlan(store.NewPlanRecord(chatID, plan)); err != nil {
			log.Printf("Warning: Failed to save plan %s: %v", plan.ID, err)
		}
	}

	if questions := clarification(plan); len(questions) > 0 {
		log.Printf("Plan %s needs clarification, asking %d questions instead of executing", plan.ID, len(questions))
		return &Report{Plan: plan, Clarification: questions, AnswerTools: a.Engine.AnswerTools}, nil
	}

	report := a.Engine.Execute(ctx, chatID, plan)
	if err := ctx.Err(); err != nil {
		return report, fmt.Errorf("run interrupted: %w", err)
	}
	return report, nil
}

// clarification returns the questions of an extracted plan that asked for
// clarification. Synthesized plans never do.
func clarification(plan *planning.Plan) []string {
	if plan.Origin != planning.OriginExtracted {
		return nil
	}
	return plan.Analysis.Questions()
}

func (a *Agent) Think(ctx context.Context, chatID string, input string) (string, error) {
	report, err := a.Run(ctx, chatID, input)
	if err != nil {
		return "", err
	}
	answer := report.Answer()

	if a.History != nil {
		if err := a.History.AddMessage(chatID, "human", input); err != nil {
			log.Printf("Warning: Failed to store message: %v", err)
		}
		if err := a.History.AddMessage(chatID, "ai", answer); err != nil {
			log.Printf("Warning: Failed to store message: %v", err)
		}
	}
	return answer, nil
}

func (a *Agent) logPlan(chatID string, plan *planning.Plan) {
	a.Logger.LogPlan(chatID, plan.ID, string(plan.Origin), len(plan.Steps), len(plan.Unresolvable()))
	for _, r := range plan.Repairs {
		a.Logger.LogRepair(chatID, plan.ID, r)
	}
	if plan.Origin == planning.OriginFallback && len(plan.Steps) > 0 {
		a.Logger.LogFallback(chatID, plan.ID, plan.Steps[0].Tool, "no structured output")
	}
	for _, s := range plan.Steps {
		for _, f := range s.Provenance {
			a.Logger.LogCorrection(chatID, plan.ID, s.ID, s.Tool, f.String())
		}
	}
}
