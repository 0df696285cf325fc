package services

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
)

// Telegram rejects captions beyond this length.
const maxCaptionLen = 1024

// Deliverer hands the finished video to its destination.
type Deliverer interface {
	Deliver(ctx context.Context, chatID, videoPath, caption string) error
}

// TelegramService uploads the assembled video via the bot API's sendVideo
// call. Uploads go through the resilient client in hard-failure mode:
// after surviving the whole pipeline, delivery is not allowed to fail
// quietly.
type TelegramService struct {
	client  *Client
	token   string
	baseURL string
}

var _ Deliverer = (*TelegramService)(nil)

func NewTelegramService(client *Client, token string) *TelegramService {
	return &TelegramService{
		client:  client,
		token:   token,
		baseURL: "https://api.telegram.org",
	}
}

func (s *TelegramService) Deliver(ctx context.Context, chatID, videoPath, caption string) error {
	video, err := os.ReadFile(videoPath)
	if err != nil {
		return fmt.Errorf("read video: %w", err)
	}

	body, contentType, err := buildSendVideoBody(chatID, filepath.Base(videoPath), video, truncateCaption(caption))
	if err != nil {
		return fmt.Errorf("build upload: %w", err)
	}

	log.Printf("[Telegram] uploading %s (%.1f MB) to chat %s", filepath.Base(videoPath), float64(len(video))/(1024*1024), chatID)

	header := http.Header{}
	header.Set("Content-Type", contentType)

	resp, err := s.client.Do(ctx, Request{
		Method: "POST",
		URL:    fmt.Sprintf("%s/bot%s/sendVideo", s.baseURL, s.token),
		Body:   body,
		Header: header,
	})
	if err != nil {
		return fmt.Errorf("telegram delivery: %w", err)
	}

	log.Printf("[Telegram] delivered, response: %s", truncate(string(resp.Body), 200))
	return nil
}

func buildSendVideoBody(chatID, filename string, video []byte, caption string) ([]byte, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	if err := w.WriteField("chat_id", chatID); err != nil {
		return nil, "", err
	}
	if caption != "" {
		if err := w.WriteField("caption", caption); err != nil {
			return nil, "", err
		}
	}

	part, err := w.CreateFormFile("video", filename)
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(video); err != nil {
		return nil, "", err
	}

	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return buf.Bytes(), w.FormDataContentType(), nil
}

// truncateCaption enforces the API limit without splitting a multi-byte
// character.
func truncateCaption(caption string) string {
	runes := []rune(caption)
	if len(runes) <= maxCaptionLen {
		return caption
	}
	return string(runes[:maxCaptionLen])
}
