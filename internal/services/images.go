package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/url"
	"os"
	"strconv"
	"strings"
)

// ErrAssetFetch marks an image or audio acquisition that failed
// irrecoverably for one scene. Fatal for the job.
var ErrAssetFetch = errors.New("asset fetch failed")

// ImageOptions carries the per-scene query parameters for image generation.
type ImageOptions struct {
	Width   int
	Height  int
	Model   string // optional generation model name (e.g. "flux")
	Seed    int64  // deterministic per-scene seed
	Enhance bool
}

// ImageFetcher resolves a scene's image prompt into a downloaded file.
type ImageFetcher interface {
	FetchImage(ctx context.Context, prompt string, opts ImageOptions, outPath string) error
}

// ImageService downloads generated images from a Pollinations-style GET
// endpoint: the prompt is a path segment, everything else a query parameter.
// Downloads go through the resilient client in hard-failure mode. There is
// no fallback image.
type ImageService struct {
	client   *Client
	endpoint string
}

var _ ImageFetcher = (*ImageService)(nil)

func NewImageService(client *Client, endpoint string) *ImageService {
	// The prompt is appended as a path segment, so the endpoint must end
	// with a separator.
	if !strings.HasSuffix(endpoint, "/") {
		endpoint += "/"
	}
	return &ImageService{client: client, endpoint: endpoint}
}

func (s *ImageService) FetchImage(ctx context.Context, prompt string, opts ImageOptions, outPath string) error {
	imageURL := buildImageURL(s.endpoint, prompt, opts)
	log.Printf("[Images] fetching %dx%d seed=%d: %q", opts.Width, opts.Height, opts.Seed, truncate(prompt, 60))

	resp, err := s.client.Do(ctx, Request{Method: "GET", URL: imageURL})
	if err != nil {
		return fmt.Errorf("%w: image download: %v", ErrAssetFetch, err)
	}

	// A tiny body is an error page, not an image.
	if len(resp.Body) < 100 {
		return fmt.Errorf("%w: image response too small (%d bytes)", ErrAssetFetch, len(resp.Body))
	}

	if err := os.WriteFile(outPath, resp.Body, 0644); err != nil {
		return fmt.Errorf("%w: write image: %v", ErrAssetFetch, err)
	}

	return nil
}

// buildImageURL appends the escaped prompt as a path segment and the
// rendering options as query parameters.
func buildImageURL(endpoint, prompt string, opts ImageOptions) string {
	q := url.Values{}
	if opts.Width > 0 {
		q.Set("width", strconv.Itoa(opts.Width))
	}
	if opts.Height > 0 {
		q.Set("height", strconv.Itoa(opts.Height))
	}
	if opts.Model != "" {
		q.Set("model", opts.Model)
	}
	q.Set("seed", strconv.FormatInt(opts.Seed, 10))
	if opts.Enhance {
		q.Set("enhance", "true")
	}
	q.Set("nologo", "true")
	q.Set("safe", "true")

	return endpoint + url.PathEscape(prompt) + "?" + q.Encode()
}
