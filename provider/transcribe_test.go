package provider

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestTranscribe(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/openai/v1/audio/transcriptions" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer gsk" {
			t.Errorf("Authorization = %q", r.Header.Get("Authorization"))
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Fatalf("ParseMultipartForm: %v", err)
		}
		if got := r.FormValue("model"); got != "whisper-large-v3-turbo" {
			t.Errorf("model = %q", got)
		}
		if got := r.FormValue("response_format"); got != "verbose_json" {
			t.Errorf("response_format = %q", got)
		}
		f, hdr, err := r.FormFile("file")
		if err != nil {
			t.Fatalf("FormFile: %v", err)
		}
		defer f.Close()
		data, _ := io.ReadAll(f)
		if hdr.Filename != "audio_1.mp3" || string(data) != "ID3fake" {
			t.Errorf("file = %q (%q)", hdr.Filename, data)
		}
		_, _ = w.Write([]byte(`{"text":"  add a task to call mom  ","language":"english","duration":2.5,"segments":[{"id":0,"start":0,"end":2.5,"text":"add a task to call mom"}]}`))
	}))
	defer server.Close()

	tr := NewTranscriber(TranscriberConfig{APIKey: "gsk", BaseURL: server.URL + "/openai/v1"})
	got, err := tr.Transcribe(context.Background(), "audio_1.mp3", strings.NewReader("ID3fake"))
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if got.Text != "add a task to call mom" {
		t.Errorf("Text = %q", got.Text)
	}
	if got.Language != "english" || got.Duration != 2.5 || len(got.Segments) != 1 {
		t.Errorf("transcription = %+v", got)
	}
}

func TestTranscribeAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"message":"bad audio"}}`, http.StatusBadRequest)
	}))
	defer server.Close()

	tr := NewTranscriber(TranscriberConfig{BaseURL: server.URL})
	_, err := tr.Transcribe(context.Background(), "a.wav", strings.NewReader("x"))
	if err == nil || !strings.Contains(err.Error(), "400") {
		t.Fatalf("err = %v, want status 400", err)
	}
}
