package worker

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/bobarin/promptreel/internal/models"
	"github.com/bobarin/promptreel/internal/queue"
	"github.com/bobarin/promptreel/internal/services"
)

// Options are the per-deployment rendering knobs.
type Options struct {
	Scale   models.ScalePolicy
	TempDir string
}

// Worker runs the whole pipeline for one job: plan, fetch assets, render
// segments, assemble, deliver. Scenes are processed strictly in order, one
// at a time; the remote endpoints involved rate-limit aggressively and the
// retry client's pacing only works when requests are not racing each other.
type Worker struct {
	planner *services.PlannerService
	images  services.ImageFetcher
	tts     services.SpeechSynthesizer
	encoder services.Encoder
	sink    services.Deliverer
	opts    Options
}

func New(planner *services.PlannerService, images services.ImageFetcher, tts services.SpeechSynthesizer, encoder services.Encoder, sink services.Deliverer, opts Options) *Worker {
	if opts.TempDir == "" {
		opts.TempDir = os.TempDir()
	}
	if opts.Scale == "" {
		opts.Scale = models.ScaleFill
	}
	return &Worker{
		planner: planner,
		images:  images,
		tts:     tts,
		encoder: encoder,
		sink:    sink,
		opts:    opts,
	}
}

// Run executes one job end to end. Returns nil only when the video was
// delivered.
func (w *Worker) Run(ctx context.Context, job *models.Job) error {
	if err := job.Normalize(); err != nil {
		return fmt.Errorf("invalid job: %w", err)
	}

	jobID := uuid.New().String()
	jobDir := filepath.Join(w.opts.TempDir, "job_"+jobID)
	if err := os.MkdirAll(jobDir, 0755); err != nil {
		return fmt.Errorf("create job dir: %w", err)
	}
	defer func() {
		if err := os.RemoveAll(jobDir); err != nil {
			log.Printf("[Worker] cleanup of %s failed: %v", jobDir, err)
		}
	}()

	log.Printf("[Worker] job %s started: %q (%d scenes, %s)", jobID[:8], job.Text, job.Scenes, job.Ratio)
	start := time.Now()

	target := models.RenderTargetFor(job.Ratio)
	plan := w.planner.Plan(ctx, job.Text, job.Scenes, job.Style)
	baseSeed := job.BaseSeed(time.Now().UnixNano() % 1_000_000_000)

	segments := make([]string, 0, len(plan))
	for i, scene := range plan {
		segPath, err := w.renderScene(ctx, jobDir, i, scene, job, target, baseSeed)
		if err != nil {
			return fmt.Errorf("scene %d/%d: %w", i+1, len(plan), err)
		}
		segments = append(segments, segPath)
	}

	finalPath := filepath.Join(jobDir, "final.mp4")
	if err := w.assemble(ctx, segments, finalPath); err != nil {
		return err
	}

	if err := w.sink.Deliver(ctx, string(job.ChatID), finalPath, job.Caption); err != nil {
		return fmt.Errorf("delivery: %w", err)
	}

	log.Printf("[Worker] job %s delivered in %s", jobID[:8], time.Since(start).Round(time.Second))
	return nil
}

// renderScene produces one finished segment: image, narration, then encode.
func (w *Worker) renderScene(ctx context.Context, jobDir string, index int, scene models.SceneDescriptor, job *models.Job, target models.RenderTarget, baseSeed int64) (string, error) {
	imagePath := filepath.Join(jobDir, fmt.Sprintf("scene_%d.jpg", index+1))
	audioPath := filepath.Join(jobDir, fmt.Sprintf("scene_%d.mp3", index+1))
	segPath := filepath.Join(jobDir, fmt.Sprintf("seg_%d.mp4", index+1))

	imgOpts := services.ImageOptions{
		Width:   target.Width,
		Height:  target.Height,
		Model:   job.Model,
		Seed:    baseSeed + int64(index),
		Enhance: bool(job.Enhance),
	}
	if err := w.images.FetchImage(ctx, scene.ImagePrompt, imgOpts, imagePath); err != nil {
		return "", err
	}

	if err := w.tts.Synthesize(ctx, scene.Narration, job.Voice, audioPath); err != nil {
		return "", err
	}

	if ms, err := w.encoder.AudioDuration(ctx, audioPath); err == nil {
		log.Printf("[Worker] scene %d narration runs %.1fs (planned %ds)", index+1, float64(ms)/1000, scene.DurationSec)
	}

	if err := w.encoder.RenderSegment(ctx, imagePath, audioPath, segPath, target, w.opts.Scale); err != nil {
		return "", err
	}
	return segPath, nil
}

// assemble joins the segments, preferring a fast stream copy and falling
// back to a single re-encode when the copy is rejected.
func (w *Worker) assemble(ctx context.Context, segments []string, outPath string) error {
	err := w.encoder.ConcatCopy(ctx, segments, outPath)
	if err == nil {
		return nil
	}

	log.Printf("[Worker] stream-copy concat failed (%v), re-encoding", err)
	if err := w.encoder.ConcatReencode(ctx, segments, outPath); err != nil {
		return fmt.Errorf("assemble: %w", err)
	}
	return nil
}

// ProcessQueue pulls jobs off the queue until the context is cancelled.
// A failed job is logged and dropped; the loop moves on to the next one.
func (w *Worker) ProcessQueue(ctx context.Context, q *queue.Queue) error {
	log.Println("[Worker] queue loop started")
	for {
		job, err := q.Dequeue(ctx, 5*time.Second)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			log.Printf("[Worker] dequeue error: %v", err)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Second):
			}
			continue
		}
		if job == nil {
			continue
		}

		if err := w.Run(ctx, job); err != nil {
			log.Printf("[Worker] job for chat %s failed: %v", job.ChatID, err)
		}
	}
}
