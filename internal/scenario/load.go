package scenario

import (
	"bytes"
	"fmt"
	"html"
	"os"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"gopkg.in/yaml.v3"
)

// strict removes any markup authors paste into narration or captions.
// Code listings are never passed through it.
var strict = bluemonday.StrictPolicy()

type scriptFile struct {
	ID      string     `yaml:"id"`
	Title   string     `yaml:"title"`
	Chapter string     `yaml:"chapter"`
	Steps   []stepFile `yaml:"steps"`
}

type stepFile struct {
	ID      int          `yaml:"id"`
	Speaker string       `yaml:"speaker"`
	Kind    string       `yaml:"kind"`
	Text    string       `yaml:"text"`
	Image   *imageFile   `yaml:"image"`
	Code    *codeFile    `yaml:"code"`
	Task    *taskFile    `yaml:"task"`
	Summary *summaryFile `yaml:"summary"`
	Victory *victoryFile `yaml:"victory"`
}

type imageFile struct {
	Asset   string `yaml:"asset"`
	Caption string `yaml:"caption"`
}

type codeFile struct {
	Language  string `yaml:"language"`
	Source    string `yaml:"source"`
	Highlight []int  `yaml:"highlight"`
}

type taskFile struct {
	Lab    string         `yaml:"lab"`
	Config map[string]any `yaml:"config"`
}

type summaryFile struct {
	Title  string   `yaml:"title"`
	Points []string `yaml:"points"`
}

type victoryFile struct {
	Message string `yaml:"message"`
}

// LoadFile reads a YAML lesson script from disk.
func LoadFile(path string) (Script, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Script{}, fmt.Errorf("read script: %w", err)
	}
	s, err := Parse(data)
	if err != nil {
		return Script{}, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}

// Parse decodes a YAML lesson script. Steps without an explicit id are
// numbered after the previous step.
func Parse(data []byte) (Script, error) {
	var f scriptFile
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return Script{}, fmt.Errorf("decode script: %w", err)
	}

	steps := make([]Step, 0, len(f.Steps))
	prev := 0
	for i, sf := range f.Steps {
		kind, err := ParseKind(sf.Kind)
		if err != nil {
			return Script{}, fmt.Errorf("step #%d: %w", i+1, err)
		}
		id := sf.ID
		if id == 0 {
			id = prev + 1
		}
		prev = id

		steps = append(steps, Step{
			ID:        id,
			Speaker:   Speaker(strings.ToLower(strings.TrimSpace(sf.Speaker))),
			Narration: clean(sf.Text),
			Kind:      kind,
			Payload:   sf.payload(kind),
		})
	}

	return NewScript(f.ID, clean(f.Title), clean(f.Chapter), steps)
}

func (sf stepFile) payload(kind Kind) Payload {
	switch kind {
	case KindImage:
		if sf.Image == nil {
			return ImagePayload{}
		}
		return ImagePayload{Asset: sf.Image.Asset, Caption: clean(sf.Image.Caption)}
	case KindCodeExplain:
		if sf.Code == nil {
			return CodePayload{}
		}
		return CodePayload{
			Language:  sf.Code.Language,
			Code:      strings.TrimRight(sf.Code.Source, "\n"),
			Highlight: sf.Code.Highlight,
		}
	case KindInteractiveTask:
		// A missing task block stays nil; it is reported by Lint and
		// rendered as a placeholder.
		if sf.Task == nil {
			return nil
		}
		return &TaskPayload{Lab: strings.TrimSpace(sf.Task.Lab), Config: sf.Task.Config}
	case KindTechSummary:
		if sf.Summary == nil {
			return SummaryPayload{}
		}
		points := make([]string, len(sf.Summary.Points))
		for i, p := range sf.Summary.Points {
			points[i] = clean(p)
		}
		return SummaryPayload{Title: clean(sf.Summary.Title), Points: points}
	case KindVictory:
		if sf.Victory == nil {
			return VictoryPayload{}
		}
		return VictoryPayload{Message: clean(sf.Victory.Message)}
	}
	return nil
}

func clean(s string) string {
	return strings.TrimSpace(html.UnescapeString(strict.Sanitize(s)))
}
