package infra

import (
	"context"
	"fmt"
	"image/color"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/disintegration/imaging"
)

const (
	// DefaultIconURL is the CDN template; %s is the lowercase base asset.
	DefaultIconURL = "https://assets.coincap.io/assets/icons/%s@2x.png"
	iconSize       = 24
)

// IconDownloader downloads and caches base-asset icons for the market selector.
type IconDownloader struct {
	basePath    string
	urlTemplate string
	client      *http.Client
}

// NewIconDownloader creates a downloader writing into dir (empty = per-user assets dir).
func NewIconDownloader(dir, urlTemplate string) (*IconDownloader, error) {
	path := dir
	if path == "" {
		var err error
		path, err = getAssetsPath()
		if err != nil {
			return nil, fmt.Errorf("failed to resolve assets path: %w", err)
		}
	}
	if urlTemplate == "" {
		urlTemplate = DefaultIconURL
	}

	// Ensure directory exists
	if err := os.MkdirAll(path, 0755); err != nil {
		return nil, fmt.Errorf("failed to create assets directory: %w", err)
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.MaxIdleConns = 100
	transport.MaxConnsPerHost = 10
	transport.IdleConnTimeout = 30 * time.Second

	return &IconDownloader{
		basePath:    path,
		urlTemplate: urlTemplate,
		client: &http.Client{
			Timeout:   10 * time.Second,
			Transport: transport,
		},
	}, nil
}

// DownloadIcon fetches the icon for a base asset (e.g. "ETH") unless it is cached.
// Icons are resized to 24x24 and flattened onto a transparent square.
func (d *IconDownloader) DownloadIcon(ctx context.Context, asset string) (string, error) {
	// Security: Sanitize to prevent path traversal
	safe := sanitizeSymbol(asset)
	if safe == "" {
		return "", fmt.Errorf("invalid asset: %q", asset)
	}

	filePath := d.GetIconPath(safe)
	if _, err := os.Stat(filePath); err == nil {
		return filePath, nil // cache hit
	}

	url := fmt.Sprintf(d.urlTemplate, strings.ToLower(safe))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", DefaultUserAgent)

	resp, err := d.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("bad status: %s", resp.Status)
	}

	src, err := imaging.Decode(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to decode image: %w", err)
	}

	// Non-square sources keep their aspect ratio inside the 24x24 box.
	fitted := imaging.Fit(src, iconSize, iconSize, imaging.Lanczos)
	canvas := imaging.New(iconSize, iconSize, color.NRGBA{})
	icon := imaging.PasteCenter(canvas, fitted)

	if err := imaging.Save(icon, filePath); err != nil {
		return "", fmt.Errorf("failed to save resized image: %w", err)
	}
	return filePath, nil
}

// GetIconPath returns the local path for an asset's icon.
func (d *IconDownloader) GetIconPath(asset string) string {
	return filepath.Join(d.basePath, strings.ToLower(sanitizeSymbol(asset))+".png")
}

func getAssetsPath() (string, error) {
	var configDir string
	var err error

	if runtime.GOOS == "windows" {
		configDir = os.Getenv("LOCALAPPDATA")
		if configDir == "" {
			configDir, err = os.UserConfigDir()
		}
	} else {
		configDir, err = os.UserConfigDir()
	}
	if err != nil {
		return "", err
	}

	return filepath.Join(configDir, "Thrust", "assets", "icons"), nil
}

func sanitizeSymbol(symbol string) string {
	res := make([]rune, 0, len(symbol))
	for _, r := range symbol {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			res = append(res, r)
		}
	}
	return string(res)
}
