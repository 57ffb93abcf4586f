package httpkit

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestNewClientSetsUserAgent(t *testing.T) {
	var gotUA string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
	}))
	defer srv.Close()

	client := NewClient()
	resp, err := client.Get(srv.URL)
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	DrainAndClose(resp.Body, 1024)

	if !strings.HasPrefix(gotUA, "anota/") {
		t.Errorf("User-Agent = %q, want anota/ prefix", gotUA)
	}
}

func TestNewClientPreservesExplicitUserAgent(t *testing.T) {
	var gotUA string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
	}))
	defer srv.Close()

	client := NewClient()
	req, _ := http.NewRequest("GET", srv.URL, nil)
	req.Header.Set("User-Agent", "custom-agent/1.0")
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("Do() error: %v", err)
	}
	DrainAndClose(resp.Body, 1024)

	if gotUA != "custom-agent/1.0" {
		t.Errorf("User-Agent = %q, want custom-agent/1.0", gotUA)
	}
}

func TestWithTimeout(t *testing.T) {
	client := NewClient(WithTimeout(0))
	if client.Timeout != 0 {
		t.Errorf("Timeout = %v, want 0 (disabled)", client.Timeout)
	}

	client = NewClient(WithTimeout(5 * time.Second))
	if client.Timeout != 5*time.Second {
		t.Errorf("Timeout = %v, want 5s", client.Timeout)
	}
}

func TestReadErrorBody(t *testing.T) {
	body := io.NopCloser(strings.NewReader("upstream exploded"))
	if got := ReadErrorBody(body, 1024); got != "upstream exploded" {
		t.Errorf("ReadErrorBody() = %q", got)
	}

	if got := ReadErrorBody(nil, 1024); got != "" {
		t.Errorf("ReadErrorBody(nil) = %q, want empty", got)
	}
}
