package pollinations

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"pairshot/internal/provider"
)

// newTestAdapter 创建不真正休眠的测试适配器
func newTestAdapter(baseURL string) *Adapter {
	a := New(baseURL)
	a.sleep = func(ctx context.Context, d time.Duration) error { return nil }
	return a
}

func TestGenerateSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Errorf("method = %s, want GET", r.Method)
		}
		q := r.URL.Query()
		if q.Get("width") != "768" || q.Get("height") != "1024" {
			t.Errorf("unexpected dimensions: %s x %s", q.Get("width"), q.Get("height"))
		}
		if q.Get("seed") != "42" {
			t.Errorf("seed = %s, want 42", q.Get("seed"))
		}
		w.Header().Set("Content-Type", "image/png")
		w.Write([]byte("fake-png-bytes"))
	}))
	defer srv.Close()

	img, err := newTestAdapter(srv.URL).Generate(context.Background(), "a red chair", 42)
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if img.Provider != "pollinations" {
		t.Errorf("Provider = %s", img.Provider)
	}
	if img.ContentType != "image/png" {
		t.Errorf("ContentType = %s", img.ContentType)
	}
	if string(img.Data) != "fake-png-bytes" {
		t.Errorf("unexpected payload")
	}
}

func TestGenerateRetriesOnBadGateway(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// 前两次 502，第三次成功
		if calls.Add(1) <= 2 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte("image-data"))
	}))
	defer srv.Close()

	img, err := newTestAdapter(srv.URL).Generate(context.Background(), "prompt", 1)
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if img == nil || len(img.Data) == 0 {
		t.Fatal("expected image after retries")
	}
	if got := calls.Load(); got != 3 {
		t.Errorf("calls = %d, want 3", got)
	}
}

func TestGenerateExhaustsRetries(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(524)
	}))
	defer srv.Close()

	_, err := newTestAdapter(srv.URL).Generate(context.Background(), "prompt", 1)
	if err == nil {
		t.Fatal("expected error after exhausting retries")
	}
	if got := calls.Load(); got != int32(maxAttempts) {
		t.Errorf("calls = %d, want %d", got, maxAttempts)
	}
}

func TestGenerateNoRetryOnOtherStatus(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	_, err := newTestAdapter(srv.URL).Generate(context.Background(), "prompt", 1)
	if err == nil {
		t.Fatal("expected error")
	}
	if got := calls.Load(); got != 1 {
		t.Errorf("calls = %d, want 1 (403 must not retry)", got)
	}
}

func TestGenerateEmptyPayload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	_, err := newTestAdapter(srv.URL).Generate(context.Background(), "prompt", 1)
	if !errors.Is(err, provider.ErrEmptyPayload) {
		t.Errorf("err = %v, want ErrEmptyPayload", err)
	}
}

func TestGenerateContextCancelDuringBackoff(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	a := New(srv.URL)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := a.Generate(ctx, "prompt", 1)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}
