package main

import (
	"context"
	"encoding/json"
	"log"
	"math/rand"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bobarin/promptreel/internal/config"
	"github.com/bobarin/promptreel/internal/models"
	"github.com/bobarin/promptreel/internal/worker"
)

// One-shot mode: render a single payload file and exit. Used by cron jobs
// and workflow runners that do not keep a queue around.
func main() {
	if len(os.Args) != 2 {
		log.Fatalf("usage: %s <payload.json>", os.Args[0])
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	data, err := os.ReadFile(os.Args[1])
	if err != nil {
		log.Fatalf("Failed to read payload: %v", err)
	}

	var job models.Job
	if err := json.Unmarshal(data, &job); err != nil {
		log.Fatalf("Failed to decode payload: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Spread start times apart when a batch of renders launches at once,
	// so the first remote calls do not land in the same instant.
	time.Sleep(200*time.Millisecond + time.Duration(rand.Int63n(int64(time.Second))))

	if err := worker.FromConfig(cfg).Run(ctx, &job); err != nil {
		log.Fatalf("Render failed: %v", err)
	}
}
