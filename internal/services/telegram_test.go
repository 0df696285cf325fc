package services

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestTruncateCaption(t *testing.T) {
	if got := truncateCaption("short"); got != "short" {
		t.Errorf("short caption modified: %q", got)
	}

	long := strings.Repeat("x", 2000)
	got := truncateCaption(long)
	if len([]rune(got)) != maxCaptionLen {
		t.Errorf("expected %d runes, got %d", maxCaptionLen, len([]rune(got)))
	}

	// Multi-byte characters must not be split mid-rune.
	wide := strings.Repeat("日", 1500)
	got = truncateCaption(wide)
	if len([]rune(got)) != maxCaptionLen {
		t.Errorf("expected %d runes of wide text, got %d", maxCaptionLen, len([]rune(got)))
	}
	for _, r := range got {
		if r != '日' {
			t.Fatalf("truncation corrupted a rune: %q", r)
		}
	}
}

func TestDeliverUploadsMultipart(t *testing.T) {
	var gotChatID, gotCaption, gotFilename string
	var gotVideo []byte

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || !strings.HasSuffix(r.URL.Path, "/sendVideo") {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if ct := r.Header.Get("Content-Type"); !strings.HasPrefix(ct, "multipart/form-data; boundary=") {
			t.Errorf("content type %q does not carry the multipart boundary", ct)
		}
		if err := r.ParseMultipartForm(10 << 20); err != nil {
			t.Fatalf("parse multipart: %v", err)
		}
		gotChatID = r.FormValue("chat_id")
		gotCaption = r.FormValue("caption")

		file, header, err := r.FormFile("video")
		if err != nil {
			t.Fatalf("video part: %v", err)
		}
		defer file.Close()
		gotFilename = header.Filename
		buf := make([]byte, header.Size)
		file.Read(buf)
		gotVideo = buf

		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	dir := t.TempDir()
	videoPath := filepath.Join(dir, "final.mp4")
	if err := os.WriteFile(videoPath, []byte("fake mp4 bytes"), 0644); err != nil {
		t.Fatalf("write video: %v", err)
	}

	c, _ := testClient(3)
	svc := NewTelegramService(c, "test-token")
	svc.baseURL = srv.URL

	err := svc.Deliver(context.Background(), "12345", videoPath, "my caption")
	if err != nil {
		t.Fatalf("deliver: %v", err)
	}

	if gotChatID != "12345" {
		t.Errorf("chat_id = %q", gotChatID)
	}
	if gotCaption != "my caption" {
		t.Errorf("caption = %q", gotCaption)
	}
	if gotFilename != "final.mp4" {
		t.Errorf("filename = %q", gotFilename)
	}
	if string(gotVideo) != "fake mp4 bytes" {
		t.Errorf("video bytes = %q", gotVideo)
	}
}

func TestDeliverRetriesServerErrors(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	dir := t.TempDir()
	videoPath := filepath.Join(dir, "final.mp4")
	os.WriteFile(videoPath, []byte("bytes"), 0644)

	c, _ := testClient(3)
	svc := NewTelegramService(c, "tok")
	svc.baseURL = srv.URL

	if err := svc.Deliver(context.Background(), "1", videoPath, ""); err != nil {
		t.Fatalf("deliver should recover after retry: %v", err)
	}
	if calls != 2 {
		t.Errorf("expected 2 upload attempts, got %d", calls)
	}
}
