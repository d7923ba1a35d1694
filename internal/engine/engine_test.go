package engine

import (
	"errors"
	"math/rand"
	"testing"

	"github.com/rahul/storylab/internal/scenario"
)

func mustScript(t *testing.T, kinds ...scenario.Kind) scenario.Script {
	t.Helper()
	steps := make([]scenario.Step, len(kinds))
	for i, k := range kinds {
		steps[i] = scenario.Step{ID: i + 1, Kind: k}
		if k == scenario.KindInteractiveTask {
			steps[i].Payload = &scenario.TaskPayload{Lab: "toggle"}
		}
	}
	s, err := scenario.NewScript("test", "Test", "", steps)
	if err != nil {
		t.Fatalf("NewScript failed: %v", err)
	}
	return s
}

func TestEngineEmptyScript(t *testing.T) {
	_, err := New(scenario.Script{})
	if !errors.Is(err, scenario.ErrEmptyScript) {
		t.Fatalf("Expected ErrEmptyScript, got %v", err)
	}
}

func TestEngineGatedWalkthrough(t *testing.T) {
	e, err := New(mustScript(t, scenario.KindImage, scenario.KindInteractiveTask, scenario.KindVictory))
	if err != nil {
		t.Fatal(err)
	}
	if e.Index() != 0 || e.TaskSatisfied() {
		t.Fatalf("fresh engine: index=%d satisfied=%v", e.Index(), e.TaskSatisfied())
	}

	if !e.Advance() || e.Index() != 1 {
		t.Fatalf("Expected advance to index 1, got %d", e.Index())
	}

	if e.Advance() {
		t.Error("advance on an unsatisfied task should be a no-op")
	}
	if e.Index() != 1 {
		t.Fatalf("Expected index 1, got %d", e.Index())
	}
	if e.Phase(false) != PhaseAwaitingTask {
		t.Errorf("Expected %s, got %s", PhaseAwaitingTask, e.Phase(false))
	}

	e.ReportTaskSatisfied()
	if e.Phase(false) != PhaseReadyToAdvance {
		t.Errorf("Expected %s, got %s", PhaseReadyToAdvance, e.Phase(false))
	}
	if !e.Advance() || e.Index() != 2 {
		t.Fatalf("Expected advance to index 2, got %d", e.Index())
	}
	if e.CurrentStep().Kind != scenario.KindVictory {
		t.Errorf("Expected victory step, got %s", e.CurrentStep().Kind)
	}

	if e.Advance() || e.Index() != 2 {
		t.Errorf("advance from the last step must be a no-op, index=%d", e.Index())
	}
	if e.Phase(false) != PhaseTerminal || !e.Terminal() {
		t.Errorf("Expected terminal phase, got %s", e.Phase(false))
	}
}

func TestEngineResetsTaskFlagOnAdvance(t *testing.T) {
	e, _ := New(mustScript(t, scenario.KindImage, scenario.KindInteractiveTask, scenario.KindVictory))

	// A stray completion on a non-task step must not leak forward.
	e.ReportTaskSatisfied()
	if !e.Advance() {
		t.Fatal("advance failed")
	}
	if e.TaskSatisfied() {
		t.Fatal("task flag survived the index change")
	}
	if e.CanAdvance() {
		t.Fatal("interactive step should be gated after advance")
	}
}

func TestEngineIdempotentCompletion(t *testing.T) {
	once, _ := New(mustScript(t, scenario.KindInteractiveTask, scenario.KindInteractiveTask, scenario.KindVictory))
	many, _ := New(mustScript(t, scenario.KindInteractiveTask, scenario.KindInteractiveTask, scenario.KindVictory))

	once.ReportTaskSatisfied()
	for i := 0; i < 7; i++ {
		many.ReportTaskSatisfied()
	}
	if many.Index() != 0 {
		t.Fatal("reporting completion moved the index")
	}
	if once.CanAdvance() != many.CanAdvance() || once.TaskSatisfied() != many.TaskSatisfied() {
		t.Fatal("repeated completion differs from a single one")
	}
	once.Advance()
	many.Advance()
	if once.Index() != many.Index() || once.TaskSatisfied() != many.TaskSatisfied() {
		t.Fatalf("after advance: once=(%d,%v) many=(%d,%v)",
			once.Index(), once.TaskSatisfied(), many.Index(), many.TaskSatisfied())
	}
}

func TestEngineDeadEndsOnMissingTaskConfig(t *testing.T) {
	s, err := scenario.NewScript("broken", "", "", []scenario.Step{
		{ID: 1, Kind: scenario.KindInteractiveTask},
		{ID: 2, Kind: scenario.KindVictory},
	})
	if err != nil {
		t.Fatal(err)
	}
	e, err := New(s)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 10; i++ {
		if e.Advance() {
			t.Fatal("advanced past a step whose task can never be completed")
		}
	}
	if e.Index() != 0 || e.CanAdvance() {
		t.Fatalf("index=%d canAdvance=%v", e.Index(), e.CanAdvance())
	}
}

func TestEngineRandomWalkInvariants(t *testing.T) {
	kinds := []scenario.Kind{
		scenario.KindImage, scenario.KindCodeExplain, scenario.KindInteractiveTask,
		scenario.KindTechSummary, scenario.KindInteractiveTask, scenario.KindVictory,
	}
	rng := rand.New(rand.NewSource(7))

	for run := 0; run < 50; run++ {
		e, _ := New(mustScript(t, kinds...))
		for op := 0; op < 100; op++ {
			if rng.Intn(3) == 0 {
				e.ReportTaskSatisfied()
				continue
			}
			could := e.CanAdvance()
			before := e.Index()
			moved := e.Advance()
			if moved != could {
				t.Fatalf("Advance()=%v but CanAdvance() was %v", moved, could)
			}
			if moved && (e.Index() != before+1 || e.TaskSatisfied()) {
				t.Fatalf("bad state after advance: index=%d satisfied=%v", e.Index(), e.TaskSatisfied())
			}
			if e.Index() < 0 || e.Index() > e.Len()-1 {
				t.Fatalf("index %d out of bounds", e.Index())
			}
		}
	}
}
