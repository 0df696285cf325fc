package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/bobarin/promptreel/internal/models"
)

// errPlanMalformed marks model output that could not be interpreted as a scene
// plan. It never leaves this package — the planner resolves it into a fallback.
var errPlanMalformed = errors.New("plan malformed")

// PlanModel is an LLM backend that drafts a scene plan as raw text.
// The text may be fenced, prefixed with prose, or otherwise messy —
// the planner repairs it downstream.
type PlanModel interface {
	Draft(ctx context.Context, system, user string) (string, error)
}

// PlannerService turns a free-text prompt into a normalized scene plan.
// It never fails: when the model is unavailable or misbehaves it degrades
// to a deterministic plan built from the prompt itself, indistinguishable
// in contract from a model-produced plan.
type PlannerService struct {
	model PlanModel // nil = no credential configured, always use the fallback
}

func NewPlannerService(model PlanModel) *PlannerService {
	return &PlannerService{model: model}
}

// Plan produces a scene plan of exactly sceneCount descriptors.
func (s *PlannerService) Plan(ctx context.Context, prompt string, sceneCount int, style string) models.ScenePlan {
	sceneCount = models.ClampSceneCount(sceneCount)

	if s.model == nil {
		log.Printf("[Planner] no model configured, using deterministic plan (%d scenes)", sceneCount)
		return fallbackPlan(prompt, style, sceneCount)
	}

	raw, err := s.model.Draft(ctx, buildPlanInstruction(sceneCount, style), prompt)
	if err != nil {
		log.Printf("[Planner] model draft failed (%v), using deterministic plan", err)
		return fallbackPlan(prompt, style, sceneCount)
	}

	scenes, err := parseScenePlan(raw)
	if err != nil {
		log.Printf("[Planner] %v (raw: %s), using deterministic plan", err, truncate(raw, 200))
		return fallbackPlan(prompt, style, sceneCount)
	}

	log.Printf("[Planner] model returned %d scenes, normalizing to %d", len(scenes), sceneCount)
	return normalizePlan(scenes, prompt, sceneCount)
}

// buildPlanInstruction is the system prompt: it demands exactly sceneCount
// entries in the fixed JSON shape and nothing else.
func buildPlanInstruction(sceneCount int, style string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "From the user's request, produce a short video plan with exactly %d scenes.\n", sceneCount)
	b.WriteString("Respond with ONLY the following JSON shape and nothing else:\n")
	b.WriteString(`{"scenes":[{"image_prompt":"...","narration":"...","duration":6}]}` + "\n")
	b.WriteString("image_prompt: a clear, cinematic, realistic visual description.\n")
	b.WriteString("narration: short and fluent, written to be spoken aloud.\n")
	fmt.Fprintf(&b, "duration: an integer between %d and %d seconds per scene.\n",
		models.MinSceneDurationSec, models.MaxSceneDurationSec)
	b.WriteString("Keep recurring characters and settings visually consistent across image prompts.\n")
	if style != "" {
		fmt.Fprintf(&b, "Render every image_prompt in this visual style: %s.\n", style)
	}
	return b.String()
}

// ---------------------------------------------------------------------------
// Parsing — a pure function from raw model text to scene descriptors.
// Fallback composition happens one level up, in Plan.
// ---------------------------------------------------------------------------

// rawScene tolerates the schema drift generative models produce: durations
// arrive as numbers, quoted numbers, or garbage.
type rawScene struct {
	ImagePrompt string       `json:"image_prompt"`
	Narration   string       `json:"narration"`
	Duration    looseseconds `json:"duration"`
}

// looseseconds decodes an integer duration from whatever the model sent.
// Anything non-integer decodes to zero, which normalization replaces with
// the default.
type looseseconds int

func (d *looseseconds) UnmarshalJSON(data []byte) error {
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			*d = 0
			return nil
		}
		n = json.Number(strings.TrimSpace(s))
	}
	v, err := n.Int64()
	if err != nil {
		*d = 0
		return nil
	}
	*d = looseseconds(v)
	return nil
}

// parseScenePlan interprets raw model text as the required JSON shape.
// It tolerates fenced code blocks and surrounding prose.
func parseScenePlan(raw string) ([]rawScene, error) {
	text := stripFences(raw)

	var parsed struct {
		Scenes []rawScene `json:"scenes"`
	}

	if err := json.Unmarshal([]byte(text), &parsed); err != nil {
		// The model wrapped its JSON in explanatory text — rescue the
		// substring between the first '{' and the last '}'.
		first := strings.Index(text, "{")
		last := strings.LastIndex(text, "}")
		if first == -1 || last <= first {
			return nil, fmt.Errorf("%w: no JSON object in model text", errPlanMalformed)
		}
		if err := json.Unmarshal([]byte(text[first:last+1]), &parsed); err != nil {
			return nil, fmt.Errorf("%w: %v", errPlanMalformed, err)
		}
	}

	if len(parsed.Scenes) == 0 {
		return nil, fmt.Errorf("%w: scenes missing or empty", errPlanMalformed)
	}

	return parsed.Scenes, nil
}

// stripFences removes a leading/trailing markdown code fence if present.
func stripFences(text string) string {
	t := strings.TrimSpace(text)
	if strings.HasPrefix(t, "```") {
		t = strings.ReplaceAll(t, "```json", "")
		t = strings.ReplaceAll(t, "```", "")
		t = strings.TrimSpace(t)
	}
	return t
}

// normalizePlan enforces the plan invariants: exact length, clamped
// durations, and non-empty prompts/narration defaulting to the user's text.
func normalizePlan(scenes []rawScene, prompt string, sceneCount int) models.ScenePlan {
	if len(scenes) > sceneCount {
		scenes = scenes[:sceneCount]
	}

	plan := make(models.ScenePlan, 0, sceneCount)
	for _, sc := range scenes {
		desc := models.SceneDescriptor{
			ImagePrompt: strings.TrimSpace(sc.ImagePrompt),
			Narration:   strings.TrimSpace(sc.Narration),
			DurationSec: models.ClampDuration(int(sc.Duration)),
		}
		if desc.ImagePrompt == "" {
			desc.ImagePrompt = prompt
		}
		if desc.Narration == "" {
			desc.Narration = prompt
		}
		plan = append(plan, desc)
	}

	for len(plan) < sceneCount {
		plan = append(plan, syntheticScene(prompt))
	}

	return plan
}

// syntheticScene pads an undersized plan with a descriptor derived from the
// original prompt.
func syntheticScene(prompt string) models.SceneDescriptor {
	return models.SceneDescriptor{
		ImagePrompt: prompt,
		Narration:   prompt,
		DurationSec: models.DefaultSceneDurationSec,
	}
}

// ---------------------------------------------------------------------------
// Deterministic fallback plan
// ---------------------------------------------------------------------------

// fallbackShots cycles through a handful of cinematic framings so the
// degraded video still has visual variety.
var fallbackShots = []struct {
	angle     string
	narration string
}{
	{"wide establishing shot at golden hour", ""},
	{"close-up with shallow depth of field", "The story draws in closer, detail by detail."},
	{"slow aerial view, soft morning light", "Seen from above, everything falls into place."},
	{"street-level shot, warm evening light", "Down here the moment feels quiet and near."},
	{"interior scene, soft warm lighting", "Inside, the light settles and the pace slows."},
	{"sunset silhouette, orange sky", "As the light fades, the story comes to rest."},
}

// fallbackPlan builds a deterministic plan by interpolating the prompt and
// style into templated shots. Same inputs, same plan — no model involved.
func fallbackPlan(prompt, style string, sceneCount int) models.ScenePlan {
	plan := make(models.ScenePlan, 0, sceneCount)
	for i := 0; i < sceneCount; i++ {
		shot := fallbackShots[i%len(fallbackShots)]

		imagePrompt := fmt.Sprintf("%s, %s, cinematic, realistic, high detail", prompt, shot.angle)
		if style != "" {
			imagePrompt += ", " + style
		}

		narration := shot.narration
		if narration == "" {
			narration = prompt
		}

		plan = append(plan, models.SceneDescriptor{
			ImagePrompt: imagePrompt,
			Narration:   narration,
			DurationSec: models.DefaultSceneDurationSec,
		})
	}
	return plan
}
