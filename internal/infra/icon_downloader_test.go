package infra

import (
	"context"
	"image/color"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/disintegration/imaging"
)

func TestIconDownloader_DownloadAndCache(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if r.URL.Path != "/eth.png" {
			http.NotFound(w, r)
			return
		}
		img := imaging.New(64, 32, color.NRGBA{R: 255, A: 255})
		imaging.Encode(w, img, imaging.PNG)
	}))
	defer srv.Close()

	d, err := NewIconDownloader(t.TempDir(), srv.URL+"/%s.png")
	if err != nil {
		t.Fatalf("NewIconDownloader failed: %v", err)
	}

	path, err := d.DownloadIcon(context.Background(), "ETH")
	if err != nil {
		t.Fatalf("DownloadIcon failed: %v", err)
	}
	if path != d.GetIconPath("eth") {
		t.Errorf("Unexpected path %s", path)
	}

	img, err := imaging.Open(path)
	if err != nil {
		t.Fatalf("Saved icon unreadable: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 24 || b.Dy() != 24 {
		t.Errorf("Expected 24x24, got %dx%d", b.Dx(), b.Dy())
	}

	if _, err := d.DownloadIcon(context.Background(), "ETH"); err != nil {
		t.Fatalf("Second DownloadIcon failed: %v", err)
	}
	if hits.Load() != 1 {
		t.Errorf("Expected cached icon on second call, server hit %d times", hits.Load())
	}
}

func TestIconDownloader_Errors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	d, err := NewIconDownloader(t.TempDir(), srv.URL+"/%s.png")
	if err != nil {
		t.Fatalf("NewIconDownloader failed: %v", err)
	}

	if _, err := d.DownloadIcon(context.Background(), "../.."); err == nil {
		t.Error("Expected error for asset without safe characters")
	}
	if _, err := d.DownloadIcon(context.Background(), "NOPE"); err == nil {
		t.Error("Expected error for missing icon")
	}
}

func TestSanitizeSymbol(t *testing.T) {
	tests := map[string]string{
		"ETH":         "ETH",
		"../etc/pass": "etcpass",
		"SUI-PERP":    "SUIPERP",
		"":            "",
	}
	for in, want := range tests {
		if got := sanitizeSymbol(in); got != want {
			t.Errorf("sanitizeSymbol(%q): expected %q, got %q", in, want, got)
		}
	}
}
