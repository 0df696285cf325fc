package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/bobarin/promptreel/internal/models"
)

// stubModel returns a canned draft (or error) regardless of input.
type stubModel struct {
	text string
	err  error
}

func (m *stubModel) Draft(ctx context.Context, system, user string) (string, error) {
	return m.text, m.err
}

const wellFormedPlan = `{"scenes":[
	{"image_prompt":"a cabin in the woods","narration":"It begins quietly.","duration":5},
	{"image_prompt":"smoke over the treetops","narration":"Something stirs.","duration":7},
	{"image_prompt":"a lantern in the dark","narration":"And then, light.","duration":6}
]}`

func TestParseScenePlanBareJSON(t *testing.T) {
	scenes, err := parseScenePlan(wellFormedPlan)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if len(scenes) != 3 {
		t.Fatalf("expected 3 scenes, got %d", len(scenes))
	}
	if scenes[1].ImagePrompt != "smoke over the treetops" {
		t.Errorf("unexpected prompt %q", scenes[1].ImagePrompt)
	}
	if int(scenes[1].Duration) != 7 {
		t.Errorf("expected duration 7, got %d", scenes[1].Duration)
	}
}

func TestParseScenePlanFenced(t *testing.T) {
	fenced := "```json\n" + wellFormedPlan + "\n```"
	scenes, err := parseScenePlan(fenced)
	if err != nil {
		t.Fatalf("fenced parse failed: %v", err)
	}
	if len(scenes) != 3 {
		t.Errorf("expected 3 scenes, got %d", len(scenes))
	}
}

func TestParseScenePlanSurroundingProse(t *testing.T) {
	noisy := "Here is the plan: " + wellFormedPlan + " Hope that helps!"
	scenes, err := parseScenePlan(noisy)
	if err != nil {
		t.Fatalf("noisy parse failed: %v", err)
	}
	if len(scenes) != 3 {
		t.Errorf("expected 3 scenes, got %d", len(scenes))
	}
}

func TestParseScenePlanMalformed(t *testing.T) {
	cases := []string{
		"",
		"I could not do that, sorry.",
		`{"scenes": []}`,
		`{"scenes": "not a list"}`,
		`{"plan": [1,2,3]}`,
		"``` broken { fence",
	}
	for _, raw := range cases {
		if _, err := parseScenePlan(raw); !errors.Is(err, errPlanMalformed) {
			t.Errorf("input %q: expected errPlanMalformed, got %v", truncate(raw, 40), err)
		}
	}
}

func TestPlanLengthInvariant(t *testing.T) {
	// Every combination of requested count and model behavior must yield
	// exactly the requested number of scenes.
	responses := map[string]*stubModel{
		"well-formed":   {text: wellFormedPlan},
		"malformed":     {text: "not json at all"},
		"empty scenes":  {text: `{"scenes": []}`},
		"missing field": {text: `{"clips": []}`},
		"draft error":   {err: errors.New("boom")},
		"oversized":     {text: oversizedPlan(20)},
	}

	for name, model := range responses {
		planner := NewPlannerService(model)
		for count := 1; count <= models.MaxScenes; count++ {
			plan := planner.Plan(context.Background(), "a trip to the mountains", count, "")
			if len(plan) != count {
				t.Errorf("%s, count=%d: plan has %d scenes", name, count, len(plan))
			}
		}
	}

	// No credential configured at all.
	planner := NewPlannerService(nil)
	for count := 1; count <= models.MaxScenes; count++ {
		if plan := planner.Plan(context.Background(), "x", count, ""); len(plan) != count {
			t.Errorf("nil model, count=%d: plan has %d scenes", count, len(plan))
		}
	}
}

func oversizedPlan(n int) string {
	var b strings.Builder
	b.WriteString(`{"scenes":[`)
	for i := 0; i < n; i++ {
		if i > 0 {
			b.WriteString(",")
		}
		fmt.Fprintf(&b, `{"image_prompt":"scene %d","narration":"line %d","duration":6}`, i, i)
	}
	b.WriteString("]}")
	return b.String()
}

func TestDurationClampAcrossModelGarbage(t *testing.T) {
	raw := `{"scenes":[
		{"image_prompt":"a","narration":"b","duration":120},
		{"image_prompt":"a","narration":"b","duration":-4},
		{"image_prompt":"a","narration":"b","duration":"6"},
		{"image_prompt":"a","narration":"b","duration":"soon"},
		{"image_prompt":"a","narration":"b","duration":6.5},
		{"image_prompt":"a","narration":"b"}
	]}`

	planner := NewPlannerService(&stubModel{text: raw})
	plan := planner.Plan(context.Background(), "p", 6, "")

	want := []int{
		models.MaxSceneDurationSec,     // 120 clamped down
		models.DefaultSceneDurationSec, // negative resolves to default
		6,                              // quoted integer accepted
		models.DefaultSceneDurationSec, // non-numeric
		models.DefaultSceneDurationSec, // non-integer
		models.DefaultSceneDurationSec, // missing
	}
	for i, w := range want {
		if plan[i].DurationSec != w {
			t.Errorf("scene %d: duration %d, want %d", i, plan[i].DurationSec, w)
		}
	}
}

func TestNormalizeFillsEmptyFields(t *testing.T) {
	raw := `{"scenes":[{"image_prompt":"","narration":"  ","duration":6}]}`
	planner := NewPlannerService(&stubModel{text: raw})
	plan := planner.Plan(context.Background(), "the original prompt", 2, "")

	for i, sc := range plan {
		if sc.ImagePrompt == "" || sc.Narration == "" {
			t.Errorf("scene %d has empty fields after normalization: %+v", i, sc)
		}
	}
	if plan[0].ImagePrompt != "the original prompt" {
		t.Errorf("empty image_prompt should default to the prompt, got %q", plan[0].ImagePrompt)
	}
	// The padded second scene is synthesized from the prompt.
	if !strings.Contains(plan[1].ImagePrompt, "the original prompt") {
		t.Errorf("padded scene not derived from prompt: %q", plan[1].ImagePrompt)
	}
}

func TestFallbackPlanDeterministic(t *testing.T) {
	a := fallbackPlan("a trip to the mountains", "watercolor", 6)
	b := fallbackPlan("a trip to the mountains", "watercolor", 6)

	if len(a) != 6 || len(b) != 6 {
		t.Fatalf("expected 6 scenes, got %d and %d", len(a), len(b))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Errorf("scene %d differs between runs: %+v vs %+v", i, a[i], b[i])
		}
		if !strings.Contains(a[i].ImagePrompt, "a trip to the mountains") {
			t.Errorf("scene %d image prompt missing the user prompt: %q", i, a[i].ImagePrompt)
		}
		if !strings.Contains(a[i].ImagePrompt, "watercolor") {
			t.Errorf("scene %d image prompt missing the style: %q", i, a[i].ImagePrompt)
		}
		if a[i].DurationSec != models.DefaultSceneDurationSec {
			t.Errorf("scene %d duration %d, want default", i, a[i].DurationSec)
		}
		if a[i].Narration == "" {
			t.Errorf("scene %d has empty narration", i)
		}
	}
}

func TestPlanInstructionMentionsCountAndStyle(t *testing.T) {
	instr := buildPlanInstruction(4, "film noir")
	if !strings.Contains(instr, "exactly 4 scenes") {
		t.Errorf("instruction missing scene count: %q", instr)
	}
	if !strings.Contains(instr, "film noir") {
		t.Errorf("instruction missing style: %q", instr)
	}
	if !strings.Contains(instr, `"scenes"`) {
		t.Errorf("instruction missing JSON shape: %q", instr)
	}
}
