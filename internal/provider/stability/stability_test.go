package stability

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"pairshot/internal/provider"
)

func TestGenerateSuccess(t *testing.T) {
	imageBytes := []byte("fake-png")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("Authorization = %s", got)
		}

		var req generateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.CfgScale != 7 || req.Steps != 30 || req.Width != 1024 || req.Height != 1024 {
			t.Errorf("unexpected parameters: %+v", req)
		}
		if len(req.TextPrompts) != 1 || req.TextPrompts[0].Text != "a wooden table" {
			t.Errorf("unexpected prompts: %+v", req.TextPrompts)
		}

		json.NewEncoder(w).Encode(generateResponse{
			Artifacts: []artifact{{Base64: base64.StdEncoding.EncodeToString(imageBytes)}},
		})
	}))
	defer srv.Close()

	img, err := New(srv.URL, "test-key").Generate(context.Background(), "a wooden table", 7)
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if img.Provider != "stability" {
		t.Errorf("Provider = %s", img.Provider)
	}
	if string(img.Data) != "fake-png" {
		t.Errorf("payload mismatch")
	}
}

func TestGenerateHardFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "invalid api key", http.StatusUnauthorized)
	}))
	defer srv.Close()

	_, err := New(srv.URL, "bad-key").Generate(context.Background(), "prompt", 1)
	if err == nil {
		t.Fatal("expected error on 401")
	}
}

func TestGenerateEmptyArtifacts(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(generateResponse{})
	}))
	defer srv.Close()

	_, err := New(srv.URL, "test-key").Generate(context.Background(), "prompt", 1)
	if !errors.Is(err, provider.ErrEmptyPayload) {
		t.Errorf("err = %v, want ErrEmptyPayload", err)
	}
}
