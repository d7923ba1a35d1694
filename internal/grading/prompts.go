package grading

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// DefaultPrompt is used when no prompt files are available.
const DefaultPrompt = `You are the examiner in a programming lesson game.
Judge whether the learner's answer shows they understood the concept asked about.
Be lenient with wording and spelling; be strict about the core idea.
Always reply by calling submit_verdict with a short, encouraging message addressed to the learner.`

type PromptManager struct {
	Directory string
}

func NewPromptManager(dir string) *PromptManager {
	return &PromptManager{Directory: dir}
}

// GetGraderPrompt concatenates the markdown files of the prompt
// directory into the examiner's system prompt.
func (pm *PromptManager) GetGraderPrompt() (string, error) {
	files, err := os.ReadDir(pm.Directory)
	if err != nil {
		return "", fmt.Errorf("failed to read prompts directory: %v", err)
	}

	var contents []string

	// persona first, output format last, everything else by name
	order := map[string]int{
		"persona.md": 1,
		"rubric.md":  2,
		"tone.md":    3,
		"format.md":  4,
	}

	sort.Slice(files, func(i, j int) bool {
		oi, okI := order[files[i].Name()]
		oj, okJ := order[files[j].Name()]
		if okI && okJ {
			return oi < oj
		}
		if okI {
			return true
		}
		if okJ {
			return false
		}
		return files[i].Name() < files[j].Name()
	})

	for _, f := range files {
		if !f.IsDir() && strings.HasSuffix(f.Name(), ".md") {
			path := filepath.Join(pm.Directory, f.Name())
			data, err := os.ReadFile(path)
			if err != nil {
				log.Printf("Warning: Failed to read prompt file %s: %v", path, err)
				continue
			}
			contents = append(contents, string(data))
		}
	}

	if len(contents) == 0 {
		return "", fmt.Errorf("no prompt files found in %s", pm.Directory)
	}

	return strings.Join(contents, "\n\n---\n\n"), nil
}
