package scenario

import (
	"fmt"
	"strings"
)

// Kind selects how a step is presented.
type Kind int

const (
	KindImage Kind = iota + 1
	KindCodeExplain
	KindInteractiveTask
	KindTechSummary
	KindVictory
)

var kindNames = map[Kind]string{
	KindImage:           "image",
	KindCodeExplain:     "code_explain",
	KindInteractiveTask: "interactive_task",
	KindTechSummary:     "tech_summary",
	KindVictory:         "victory",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// ParseKind maps an authored kind name onto a Kind.
func ParseKind(s string) (Kind, error) {
	norm := strings.ToLower(strings.TrimSpace(s))
	for k, name := range kindNames {
		if name == norm || strings.ReplaceAll(name, "_", "") == norm {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown step kind %q", s)
}

// Speaker is the character delivering a step's narration.
// It only affects presentation.
type Speaker string

const (
	SpeakerNarrator Speaker = "narrator"
	SpeakerMentor   Speaker = "mentor"
	SpeakerLearner  Speaker = "learner"
	SpeakerRival    Speaker = "rival"
)

// DisplayName returns the label shown next to the narration.
func (s Speaker) DisplayName() string {
	switch s {
	case SpeakerNarrator, "":
		return "Narrator"
	case SpeakerMentor:
		return "Mentor"
	case SpeakerLearner:
		return "You"
	case SpeakerRival:
		return "Rival"
	default:
		return strings.ToUpper(string(s[:1])) + string(s[1:])
	}
}

// Payload is the kind-specific data attached to a step. The set of
// implementations is closed; see the payload types below.
type Payload interface {
	payload()
}

// ImagePayload is a still picture with a caption.
type ImagePayload struct {
	Asset   string
	Caption string
}

// CodePayload is a read-only code panel.
type CodePayload struct {
	Language string
	Code     string
	// Highlight holds 1-based line numbers to emphasize.
	Highlight []int
}

// TaskPayload configures the task collaborator mounted for an
// interactive step.
type TaskPayload struct {
	Lab    string
	Config map[string]any
}

// SummaryPayload lists the technical takeaways of a lesson.
type SummaryPayload struct {
	Title  string
	Points []string
}

// VictoryPayload closes a lesson.
type VictoryPayload struct {
	Message string
}

func (ImagePayload) payload()   {}
func (CodePayload) payload()    {}
func (*TaskPayload) payload()   {}
func (SummaryPayload) payload() {}
func (VictoryPayload) payload() {}

// Step is one beat of a scenario.
type Step struct {
	ID        int
	Speaker   Speaker
	Narration string
	Kind      Kind
	Payload   Payload
}

// Task returns the task configuration of an interactive step. It
// returns a *ConfigurationError when the step is interactive but has no
// usable configuration.
func (s Step) Task() (*TaskPayload, error) {
	if s.Kind != KindInteractiveTask {
		return nil, &ConfigurationError{StepID: s.ID, Reason: fmt.Sprintf("step is %s, not interactive", s.Kind)}
	}
	task, ok := s.Payload.(*TaskPayload)
	if !ok || task == nil {
		return nil, &ConfigurationError{StepID: s.ID, Reason: "missing task configuration"}
	}
	if strings.TrimSpace(task.Lab) == "" {
		return nil, &ConfigurationError{StepID: s.ID, Reason: "task configuration names no lab"}
	}
	return task, nil
}
