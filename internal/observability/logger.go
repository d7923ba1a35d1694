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
	EventTypeLessonStart     EventType = "lesson_start"
	EventTypeLessonExit      EventType = "lesson_exit"
	EventTypeStepEnter       EventType = "step_enter"
	EventTypeTaskMounted     EventType = "task_mounted"
	EventTypeTaskSatisfied   EventType = "task_satisfied"
	EventTypeAdvance         EventType = "advance"
	EventTypeAdvanceDenied   EventType = "advance_denied"
	EventTypeConfigError     EventType = "config_error"
	EventTypeRevealCancelled EventType = "reveal_cancelled"
	EventTypeGrade           EventType = "grade"
	EventTypeCost            EventType = "cost"
	EventTypeLLM             EventType = "llm"
)

// Event represents a structured log entry.
type Event struct {
	Type      EventType `json:"type"`
	SessionID string    `json:"session_id,omitempty"`
	StepID    int       `json:"step_id,omitempty"`
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

// NewLogger writes events to out and keeps a copy of every llm event
// under dir. A nil out discards events; an empty dir uses "logs".
func NewLogger(out io.Writer, dir string) *Logger {
	if out == nil {
		out = io.Discard
	}
	if dir == "" {
		dir = "logs"
	}
	return &Logger{
		out:        out,
		llmLogPath: filepath.Join(dir, "llm.jsonl"),
		maxSize:    10 * 1024 * 1024, // 10MB
	}
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
		data = []byte(fmt.Sprintf("{\"error\": \"failed to marshal event: %v\"}", err))
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintln(l.out, string(data))

	if evt.Type == EventTypeLLM {
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
	// Simple rotation: keep one .old file
	oldPath := l.llmLogPath + ".old"
	_ = os.Remove(oldPath)
	_ = os.Rename(l.llmLogPath, oldPath)
}

// Helper methods for common events

func (l *Logger) LogLesson(sessionID, lessonID string, start bool, aborted bool) {
	typ := EventTypeLessonStart
	if !start {
		typ = EventTypeLessonExit
	}
	l.Log(Event{
		Type:      typ,
		SessionID: sessionID,
		Data: map[string]any{
			"lesson":  lessonID,
			"aborted": aborted,
		},
	})
}

func (l *Logger) LogStep(sessionID string, stepID, index int, kind string) {
	l.Log(Event{
		Type:      EventTypeStepEnter,
		SessionID: sessionID,
		StepID:    stepID,
		Data: map[string]any{
			"index": index,
			"kind":  kind,
		},
	})
}

func (l *Logger) LogTask(sessionID string, stepID int, typ EventType, detail string) {
	l.Log(Event{
		Type:      typ,
		SessionID: sessionID,
		StepID:    stepID,
		Data:      map[string]string{"detail": detail},
	})
}

func (l *Logger) LogAdvance(sessionID string, stepID int, allowed bool, phase string) {
	typ := EventTypeAdvance
	if !allowed {
		typ = EventTypeAdvanceDenied
	}
	l.Log(Event{
		Type:      typ,
		SessionID: sessionID,
		StepID:    stepID,
		Data:      map[string]string{"phase": phase},
	})
}

func (l *Logger) LogGrade(sessionID string, stepID int, pass, fallback bool, message string) {
	l.Log(Event{
		Type:      EventTypeGrade,
		SessionID: sessionID,
		StepID:    stepID,
		Data: map[string]any{
			"pass":     pass,
			"fallback": fallback,
			"message":  message,
		},
	})
}

func (l *Logger) LogCost(sessionID string, stepID int, promptTokens, completionTokens int, model string) {
	l.Log(Event{
		Type:      EventTypeCost,
		SessionID: sessionID,
		StepID:    stepID,
		Data: map[string]any{
			"prompt_tokens":     promptTokens,
			"completion_tokens": completionTokens,
			"total_tokens":      promptTokens + completionTokens,
			"model":             model,
		},
	})
}

func (l *Logger) LogLLM(sessionID string, stepID int, prompt any, response string, toolCalls any) {
	l.Log(Event{
		Type:      EventTypeLLM,
		SessionID: sessionID,
		StepID:    stepID,
		Data: map[string]any{
			"prompt":     prompt,
			"response":   response,
			"tool_calls": toolCalls,
		},
	})
}
