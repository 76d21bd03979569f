package observability

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// EventType defines the category of the log event.
type EventType string

const (
	EventTypePlan         EventType = "plan"
	EventTypeStep         EventType = "step"
	EventTypeRepair       EventType = "repair"
	EventTypeCorrection   EventType = "correction"
	EventTypeFallback     EventType = "fallback"
	EventTypeToolCall     EventType = "tool_call"
	EventTypeToolResult   EventType = "tool_result"
	EventTypePolicyCheck  EventType = "policy_check"
	EventTypeSchemaReload EventType = "schema_reload"
	EventTypeHeartbeat    EventType = "heartbeat"
	EventTypeLLM          EventType = "llm"
)

// Event represents a structured log entry.
type Event struct {
	Type      EventType `json:"type"`
	ChatID    string    `json:"chat_id,omitempty"`
	PlanID    string    `json:"plan_id,omitempty"`
	Data      any       `json:"data"`
	Timestamp time.Time `json:"timestamp"`
}

// Logger handles structured logging.
type Logger struct {
	mu         sync.Mutex
	out        io.Writer
	llmLogPath string
	maxSize    int64
}

func NewLogger() *Logger {
	return NewLoggerTo(os.Stdout, "logs")
}

// NewLoggerTo writes events to out and model exchanges under dir.
// An empty dir disables the model exchange file.
func NewLoggerTo(out io.Writer, dir string) *Logger {
	l := &Logger{
		out:     out,
		maxSize: 10 * 1024 * 1024, // 10MB
	}
	if dir != "" {
		l.llmLogPath = filepath.Join(dir, "llm.jsonl")
	}
	return l
}

// Log emits a structured JSON event.
func (l *Logger) Log(evt Event) {
	if l == nil {
		return
	}
	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now()
	}
	data, err := json.Marshal(evt)
	if err != nil {
		data = []byte(fmt.Sprintf(`{"error": %q}`, "failed to marshal event: "+err.Error()))
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintln(l.out, string(data))

	if evt.Type == EventTypeLLM && l.llmLogPath != "" {
		l.writeToFile(data)
	}
}

func (l *Logger) writeToFile(data []byte) {
	if err := os.MkdirAll(filepath.Dir(l.llmLogPath), 0755); err != nil {
		log.Printf("failed to create log directory: %v", err)
		return
	}

	// Check size before writing
	info, err := os.Stat(l.llmLogPath)
	if err == nil && info.Size() > l.maxSize {
		l.rotateLogs()
	}

	f, err := os.OpenFile(l.llmLogPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		log.Printf("failed to open log file: %v", err)
		return
	}
	defer f.Close()

	if _, err := f.Write(append(data, '\n')); err != nil {
		log.Printf("failed to write to log file: %v", err)
	}
}

func (l *Logger) rotateLogs() {
	oldPath := l.llmLogPath + ".old"
	_ = os.Remove(oldPath)
	_ = os.Rename(l.llmLogPath, oldPath)
}

// Helper methods for common events

func (l *Logger) LogPlan(chatID, planID, origin string, steps, unresolvable int) {
	l.Log(Event{
		Type:   EventTypePlan,
		ChatID: chatID,
		PlanID: planID,
		Data: map[string]any{
			"origin":       origin,
			"steps":        steps,
			"unresolvable": unresolvable,
		},
	})
}

func (l *Logger) LogRepair(chatID, planID, repair string) {
	l.Log(Event{
		Type:   EventTypeRepair,
		ChatID: chatID,
		PlanID: planID,
		Data:   map[string]string{"repair": repair},
	})
}

func (l *Logger) LogCorrection(chatID, planID, stepID, tool, fix string) {
	l.Log(Event{
		Type:   EventTypeCorrection,
		ChatID: chatID,
		PlanID: planID,
		Data: map[string]string{
			"step": stepID,
			"tool": tool,
			"fix":  fix,
		},
	})
}

func (l *Logger) LogFallback(chatID, planID, tool, reason string) {
	l.Log(Event{
		Type:   EventTypeFallback,
		ChatID: chatID,
		PlanID: planID,
		Data: map[string]string{
			"tool":   tool,
			"reason": reason,
		},
	})
}

func (l *Logger) LogStep(chatID, planID, stepID, tool, status, detail string) {
	l.Log(Event{
		Type:   EventTypeStep,
		ChatID: chatID,
		PlanID: planID,
		Data: map[string]string{
			"step":   stepID,
			"tool":   tool,
			"status": status,
			"detail": detail,
		},
	})
}

func (l *Logger) LogToolCall(chatID, planID, tool, args string) {
	l.Log(Event{
		Type:   EventTypeToolCall,
		ChatID: chatID,
		PlanID: planID,
		Data: map[string]string{
			"tool": tool,
			"args": args,
		},
	})
}

func (l *Logger) LogToolResult(chatID, planID, tool string, result string, duration time.Duration) {
	l.Log(Event{
		Type:   EventTypeToolResult,
		ChatID: chatID,
		PlanID: planID,
		Data: map[string]any{
			"tool":        tool,
			"bytes":       len(result),
			"duration_ms": duration.Milliseconds(),
		},
	})
}

func (l *Logger) LogPolicyCheck(chatID, planID, tool, effect, reason string) {
	l.Log(Event{
		Type:   EventTypePolicyCheck,
		ChatID: chatID,
		PlanID: planID,
		Data: map[string]string{
			"tool":   tool,
			"effect": effect,
			"reason": reason,
		},
	})
}

func (l *Logger) LogSchemaReload(version uint64, err error) {
	data := map[string]any{"version": version}
	if err != nil {
		data["error"] = err.Error()
	}
	l.Log(Event{Type: EventTypeSchemaReload, Data: data})
}

func (l *Logger) LogHeartbeat() {
	l.Log(Event{
		Type: EventTypeHeartbeat,
		Data: map[string]string{"status": "alive"},
	})
}

func (l *Logger) LogLLM(chatID, planID string, prompt any, response string, toolCalls any) {
	l.Log(Event{
		Type:   EventTypeLLM,
		ChatID: chatID,
		PlanID: planID,
		Data: map[string]any{
			"prompt":     prompt,
			"response":   response,
			"tool_calls": toolCalls,
		},
	})
}
