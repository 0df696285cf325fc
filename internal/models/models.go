package models

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Scene count and duration bounds for a job. The planner enforces these
// regardless of what the model returns.
const (
	MinScenes     = 1
	MaxScenes     = 12
	DefaultScenes = 6

	MinSceneDurationSec     = 4
	MaxSceneDurationSec     = 8
	DefaultSceneDurationSec = 6
)

// DefaultPrompt is used when a job arrives with a blank text field.
const DefaultPrompt = "a short cinematic story"

// Ratio is the requested output aspect ratio.
type Ratio string

const (
	RatioSquare    Ratio = "square"
	RatioPortrait  Ratio = "portrait"
	RatioLandscape Ratio = "landscape"
)

// ScalePolicy controls how a source image is mapped onto the render target.
type ScalePolicy string

const (
	// ScaleFill scales up and crops so the frame is covered exactly (no letterbox).
	ScaleFill ScalePolicy = "fill"
	// ScaleFit scales down and pads so the full image is preserved (letterbox).
	ScaleFit ScalePolicy = "fit"
)

// RenderTarget is the output frame size in pixels, derived once per job
// from the requested ratio and shared read-only by every segment render.
type RenderTarget struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// RenderTargetFor maps a ratio to its fixed pixel pair.
// Unknown ratios fall back to portrait, the short-form default.
func RenderTargetFor(ratio Ratio) RenderTarget {
	switch ratio {
	case RatioSquare:
		return RenderTarget{Width: 1080, Height: 1080}
	case RatioLandscape:
		return RenderTarget{Width: 1920, Height: 1080}
	default:
		return RenderTarget{Width: 1080, Height: 1920}
	}
}

// SceneDescriptor is one planned unit of the video: an image prompt, a
// narration line, and a duration. Immutable once the plan is normalized.
type SceneDescriptor struct {
	ImagePrompt string `json:"image_prompt"`
	Narration   string `json:"narration"`
	DurationSec int    `json:"duration"`
}

// ScenePlan is the ordered scene list for one job. Its length always equals
// the job's requested scene count — the planner truncates or pads as needed.
type ScenePlan []SceneDescriptor

// ClampSceneCount bounds a requested scene count to [MinScenes, MaxScenes].
// Zero or negative requests get the default.
func ClampSceneCount(n int) int {
	if n <= 0 {
		return DefaultScenes
	}
	if n < MinScenes {
		return MinScenes
	}
	if n > MaxScenes {
		return MaxScenes
	}
	return n
}

// ClampDuration bounds a scene duration to the valid range. Non-positive
// values (missing, negative, or unparseable upstream) get the default.
func ClampDuration(sec int) int {
	if sec <= 0 {
		return DefaultSceneDurationSec
	}
	if sec < MinSceneDurationSec {
		return MinSceneDurationSec
	}
	if sec > MaxSceneDurationSec {
		return MaxSceneDurationSec
	}
	return sec
}

// FlexString accepts either a JSON string or a JSON number. Payloads arrive
// from chat bots and workflow files that are loose about quoting chat IDs
// and seeds.
type FlexString string

func (f *FlexString) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*f = FlexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err == nil {
		*f = FlexString(n.String())
		return nil
	}
	return fmt.Errorf("value %s is neither string nor number", string(data))
}

// FlexBool accepts a JSON bool or a boolean-like string ("1", "true", "yes", "on").
type FlexBool bool

func (f *FlexBool) UnmarshalJSON(data []byte) error {
	var b bool
	if err := json.Unmarshal(data, &b); err == nil {
		*f = FlexBool(b)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("value %s is neither bool nor string", string(data))
	}
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "true", "yes", "on":
		*f = true
	default:
		*f = false
	}
	return nil
}

// Job is the top-level unit of work: one payload in, one delivered video out.
// It lives for exactly one pipeline run and is never retried as a whole.
type Job struct {
	ChatID  FlexString `json:"chat_id"`
	Text    string     `json:"text"`
	Style   string     `json:"style,omitempty"`
	Voice   string     `json:"voice,omitempty"`
	Ratio   Ratio      `json:"ratio,omitempty"`
	Scenes  int        `json:"scenes,omitempty"`
	Model   string     `json:"model,omitempty"`
	Seed    FlexString `json:"seed,omitempty"`
	Enhance FlexBool   `json:"enhance,omitempty"`
	Caption string     `json:"caption,omitempty"`
}

// Normalize applies defaults and clamps so downstream stages never see an
// out-of-range job. Returns an error only when chat_id is missing — every
// other field has a usable default.
func (j *Job) Normalize() error {
	if strings.TrimSpace(string(j.ChatID)) == "" {
		return fmt.Errorf("chat_id is required")
	}
	if strings.TrimSpace(j.Text) == "" {
		j.Text = DefaultPrompt
	}
	if j.Ratio != RatioSquare && j.Ratio != RatioLandscape {
		j.Ratio = RatioPortrait
	}
	j.Scenes = ClampSceneCount(j.Scenes)
	return nil
}

// BaseSeed returns the job-level seed for deterministic image generation.
// Per-scene seeds are derived from this by offsetting with the scene index.
// A missing or unparseable seed yields fallback (typically time-derived).
func (j *Job) BaseSeed(fallback int64) int64 {
	s := strings.TrimSpace(string(j.Seed))
	if s == "" {
		return fallback
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return fallback
	}
	return n
}
