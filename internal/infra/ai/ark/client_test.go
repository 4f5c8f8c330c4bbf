package ark

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	domain "github.com/bryanwahyu/friendlens/internal/domain/analysis"
)

func testImages(n int) []domain.Image {
	images := make([]domain.Image, n)
	for i := range images {
		images[i] = domain.Image{Data: []byte(fmt.Sprintf("img-%d", i)), ContentType: "image/jpeg"}
	}
	return images
}

func TestAnalyze_NotConfigured(t *testing.T) {
	c := NewClient("", "http://localhost:1", "", 0)
	_, err := c.Analyze(context.Background(), testImages(5))
	if !errors.Is(err, domain.ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
}

func TestAnalyze_RequestShape(t *testing.T) {
	var captured requestPayload
	var authHeader string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader = r.Header.Get("Authorization")
		body, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(body, &captured); err != nil {
			t.Errorf("request body not decodable: %v", err)
		}
		fmt.Fprint(w, `{"output_text":"ok"}`)
	}))
	defer srv.Close()

	c := NewClient("test-key", srv.URL, "test-model", 0)
	if _, err := c.Analyze(context.Background(), testImages(2)); err != nil {
		t.Fatal(err)
	}

	if authHeader != "Bearer test-key" {
		t.Errorf("wrong auth header: %q", authHeader)
	}
	if captured.Model != "test-model" {
		t.Errorf("wrong model: %q", captured.Model)
	}
	if len(captured.Input) != 2 {
		t.Fatalf("expected system + user blocks, got %d", len(captured.Input))
	}
	if captured.Input[0].Role != "system" || captured.Input[1].Role != "user" {
		t.Errorf("wrong block roles: %s, %s", captured.Input[0].Role, captured.Input[1].Role)
	}

	user := captured.Input[1].Content
	if len(user) != 3 {
		t.Fatalf("expected prompt + 2 image parts, got %d", len(user))
	}
	if user[0].Type != "input_text" || user[0].Text == "" {
		t.Errorf("first user part must be the prompt text")
	}
	for i, part := range user[1:] {
		if part.Type != "input_image" {
			t.Errorf("part %d: expected input_image, got %s", i, part.Type)
		}
		want := "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString([]byte(fmt.Sprintf("img-%d", i)))
		if part.ImageURL != want {
			t.Errorf("part %d: image data URI mismatch or out of order", i)
		}
	}
}

func TestAnalyze_OutputTextField(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"output_text":"Report A"}`)
	}))
	defer srv.Close()

	c := NewClient("k", srv.URL, "", 0)
	text, err := c.Analyze(context.Background(), testImages(5))
	if err != nil {
		t.Fatal(err)
	}
	if text != "Report A" {
		t.Errorf("expected %q, got %q", "Report A", text)
	}
}

func TestAnalyze_OutputItemList(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"output":[
			{"content":[{"type":"reasoning","text":"skip me"},{"type":"output_text","text":"part one "}]},
			{"content":[{"type":"output_text","text":"part two"}]}
		]}`)
	}))
	defer srv.Close()

	c := NewClient("k", srv.URL, "", 0)
	text, err := c.Analyze(context.Background(), testImages(5))
	if err != nil {
		t.Fatal(err)
	}
	if text != "part one part two" {
		t.Errorf("expected concatenated text parts in order, got %q", text)
	}
}

func TestAnalyze_RawFallback(t *testing.T) {
	raw := `{"unexpected":"shape","n":1}`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, raw)
	}))
	defer srv.Close()

	c := NewClient("k", srv.URL, "", 0)
	text, err := c.Analyze(context.Background(), testImages(5))
	if err != nil {
		t.Fatal(err)
	}
	if text != raw {
		t.Errorf("expected raw serialization fallback, got %q", text)
	}
	if text == "" {
		t.Error("extracted text must never be empty")
	}
}

func TestAnalyze_UpstreamErrorForwarded(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		fmt.Fprint(w, "service unavailable")
	}))
	defer srv.Close()

	c := NewClient("k", srv.URL, "", 0)
	_, err := c.Analyze(context.Background(), testImages(5))

	var upstream *domain.UpstreamError
	if !errors.As(err, &upstream) {
		t.Fatalf("expected UpstreamError, got %v", err)
	}
	if upstream.Status != http.StatusServiceUnavailable {
		t.Errorf("expected status 503, got %d", upstream.Status)
	}
	if upstream.Body != "service unavailable" {
		t.Errorf("error body must be forwarded verbatim, got %q", upstream.Body)
	}
}

func TestAnalyze_TimeoutMapsToUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	c := NewClient("k", srv.URL, "", 20*time.Millisecond)
	_, err := c.Analyze(context.Background(), testImages(5))

	var upstream *domain.UpstreamError
	if !errors.As(err, &upstream) {
		t.Fatalf("expected UpstreamError on timeout, got %v", err)
	}
	if upstream.Status != http.StatusBadGateway {
		t.Errorf("expected 502 for transport failure, got %d", upstream.Status)
	}
}

func TestExtractText_EmptyOutputTextFallsBack(t *testing.T) {
	raw := `{"output_text":"","output":[{"content":[{"type":"output_text","text":"ignored"}]}]}`
	text := extractText([]byte(raw))
	if text != raw {
		t.Errorf("empty consolidated field should fall back to raw serialization, got %q", text)
	}
	if strings.TrimSpace(text) == "" {
		t.Error("fallback must be non-empty")
	}
}
