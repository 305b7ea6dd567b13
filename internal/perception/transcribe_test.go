package perception

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestWhisperTranscriber(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/audio/transcriptions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Fatalf("parse form: %v", err)
		}
		if r.FormValue("model") != "whisper-large-v3" || r.FormValue("language") != "en" || r.FormValue("response_format") != "text" {
			t.Errorf("unexpected fields %v", r.MultipartForm.Value)
		}
		f, hdr, err := r.FormFile("file")
		if err != nil {
			t.Fatalf("form file: %v", err)
		}
		data, _ := io.ReadAll(f)
		if hdr.Filename != "note.m4a" || string(data) != "RIFF-audio" {
			t.Errorf("unexpected upload %s %q", hdr.Filename, data)
		}
		w.Write([]byte(" Write a proof that root two is irrational.\n"))
	}))
	defer server.Close()

	tr := NewWhisperTranscriber("gsk", server.URL, "", time.Second)
	text, err := tr.Transcribe(context.Background(), "/tmp/uploads/note.m4a", strings.NewReader("RIFF-audio"))
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if text != "Write a proof that root two is irrational." {
		t.Errorf("got %q", text)
	}
}

func TestWhisperTranscriber_Errors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "file too large", http.StatusRequestEntityTooLarge)
	}))
	defer server.Close()

	tr := NewWhisperTranscriber("gsk", server.URL, "", time.Second)
	if _, err := tr.Transcribe(context.Background(), "a.wav", strings.NewReader("x")); err == nil || !strings.Contains(err.Error(), "413") {
		t.Errorf("expected status error, got %v", err)
	}

	noKey := NewWhisperTranscriber("", server.URL, "", time.Second)
	if _, err := noKey.Transcribe(context.Background(), "a.wav", strings.NewReader("x")); !errors.Is(err, ErrNoAPIKey) {
		t.Errorf("expected ErrNoAPIKey, got %v", err)
	}
}
