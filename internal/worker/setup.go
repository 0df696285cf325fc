package worker

import (
	"log"
	"time"

	"github.com/bobarin/promptreel/internal/config"
	"github.com/bobarin/promptreel/internal/models"
	"github.com/bobarin/promptreel/internal/services"
)

// FromConfig wires the production service set. Timeouts differ per
// collaborator: planning is quick, image generation is slow, and the final
// upload can carry tens of megabytes.
func FromConfig(cfg *config.Config) *Worker {
	planClient := services.NewClient(2*time.Minute, cfg.MaxAttempts)
	imageClient := services.NewClient(3*time.Minute, cfg.MaxAttempts)
	uploadClient := services.NewClient(5*time.Minute, cfg.MaxAttempts)

	var model services.PlanModel
	switch {
	case cfg.GeminiKey != "":
		model = services.NewGeminiPlanModel(planClient, cfg.GeminiKey, cfg.GeminiModel)
	case cfg.OpenAIKey != "":
		model = services.NewOpenAIPlanModel(cfg.OpenAIKey, cfg.OpenAIModel)
	default:
		log.Println("[Worker] no planner credentials configured, scene plans will use the built-in fallback")
	}

	return New(
		services.NewPlannerService(model),
		services.NewImageService(imageClient, cfg.ImageEndpoint),
		services.NewEdgeTTSService(cfg.TTSVoice),
		services.NewFFmpegService(),
		services.NewTelegramService(uploadClient, cfg.TelegramToken),
		Options{
			Scale:   models.ScalePolicy(cfg.ScaleMode),
			TempDir: cfg.TempDir,
		},
	)
}
