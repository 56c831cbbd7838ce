package sarvam

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestNew_RequiresAPIKey(t *testing.T) {
	t.Parallel()
	if _, err := New(""); err == nil {
		t.Fatal("New with empty api key succeeded")
	}
}

func TestTranscribe(t *testing.T) {
	t.Parallel()

	var gotKey, gotLanguage, gotModel string
	var gotAudio []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/speech-to-text" {
			t.Errorf("path = %q", r.URL.Path)
		}
		gotKey = r.Header.Get("API-Subscription-Key")

		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Fatalf("parse multipart: %v", err)
		}
		gotLanguage = r.FormValue("language_code")
		gotModel = r.FormValue("model")

		f, _, err := r.FormFile("file")
		if err != nil {
			t.Fatalf("form file: %v", err)
		}
		defer f.Close()
		buf := make([]byte, 16)
		n, _ := f.Read(buf)
		gotAudio = buf[:n]

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"request_id":"req-1","transcript":"bill kitta undi","language_code":"te-IN"}`))
	}))
	defer srv.Close()

	p, err := New("test-key", WithBaseURL(srv.URL), WithModel("saarika:v2"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	res, err := p.Transcribe(context.Background(), []byte("RIFFwav"), "te-IN")
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}

	if gotKey != "test-key" {
		t.Errorf("api key header = %q", gotKey)
	}
	if gotLanguage != "te-IN" || gotModel != "saarika:v2" {
		t.Errorf("form fields language=%q model=%q", gotLanguage, gotModel)
	}
	if string(gotAudio) != "RIFFwav" {
		t.Errorf("uploaded audio = %q", gotAudio)
	}
	if res.Text != "bill kitta undi" || res.Language != "te-IN" {
		t.Errorf("result = %+v", res)
	}
}

func TestTranscribe_LanguageFallback(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"transcript":"hello"}`))
	}))
	defer srv.Close()

	p, _ := New("k", WithBaseURL(srv.URL))
	res, err := p.Transcribe(context.Background(), []byte("x"), "en-IN")
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if res.Language != "en-IN" {
		t.Errorf("language = %q, want requested language when response omits it", res.Language)
	}
}

func TestTranscribe_Errors(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "invalid api key", http.StatusForbidden)
	}))
	defer srv.Close()

	p, _ := New("bad-key", WithBaseURL(srv.URL))

	if _, err := p.Transcribe(context.Background(), nil, "te-IN"); err == nil {
		t.Error("Transcribe with empty audio succeeded")
	}

	_, err := p.Transcribe(context.Background(), []byte("x"), "te-IN")
	if err == nil {
		t.Fatal("Transcribe against failing API succeeded")
	}
	if !strings.Contains(err.Error(), "403") {
		t.Errorf("error %q does not carry the status code", err)
	}
}
