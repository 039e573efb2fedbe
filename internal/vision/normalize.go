// Package vision turns a meal photo into parsed food items and a calorie
// estimate: fetch and bound the image, send it to a multimodal model, parse
// the reply.
package vision

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/jpeg"
	"io"
	"log/slog"
	"net/http"
	"time"

	// Register decoders for the formats upload collaborators produce.
	_ "image/gif"
	_ "image/png"

	"golang.org/x/image/draw"

	"github.com/raphaelgruber/mealchat-go/internal/metrics"
)

// MaxDimension bounds the longer side of the re-encoded image. Caps the
// inference payload size and latency.
const MaxDimension = 1024

// JPEGQuality is the fixed re-encode quality.
const JPEGQuality = 85

// Normalized is a bounded-size JPEG ready for inference.
type Normalized struct {
	Data   []byte
	Width  int
	Height int
}

// Normalizer fetches remote images and re-encodes them within MaxDimension.
type Normalizer struct {
	hc      *http.Client
	logger  *slog.Logger
	metrics *metrics.Collector
}

// NewNormalizer creates a normalizer with the given fetch timeout.
func NewNormalizer(fetchTimeout time.Duration, logger *slog.Logger, collector *metrics.Collector) *Normalizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Normalizer{
		hc:      &http.Client{Timeout: fetchTimeout},
		logger:  logger,
		metrics: collector,
	}
}

// Fetch retrieves the image at url and normalizes it. Any failure (non-2xx
// response, network error, undecodable bytes) returns an error the caller
// turns into a user-visible fallback; nothing here is retried.
func (n *Normalizer) Fetch(ctx context.Context, url string) (*Normalized, error) {
	start := time.Now()
	result, err := n.fetch(ctx, url)
	if err != nil {
		n.metrics.RecordFailure(metrics.OpImageFetch, time.Since(start))
		n.logger.Warn("image fetch failed", "url", url, "error", err)
		return nil, err
	}
	n.metrics.Record(metrics.OpImageFetch, time.Since(start))
	n.logger.Info("image normalized",
		"url", url,
		"width", result.Width,
		"height", result.Height,
		"size_bytes", len(result.Data),
	)
	return result, nil
}

func (n *Normalizer) fetch(ctx context.Context, url string) (*Normalized, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	resp, err := n.hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("fetch image: status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read image body: %w", err)
	}

	return Normalize(data)
}

// Normalize decodes raw image bytes and re-encodes them as a JPEG whose
// longer side does not exceed MaxDimension. Images already within the bound
// keep their dimensions, never upscaled.
func Normalize(data []byte) (*Normalized, error) {
	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}

	bounds := src.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w <= 0 || h <= 0 {
		return nil, fmt.Errorf("decode image: empty bounds %dx%d", w, h)
	}

	outW, outH := boundedSize(w, h)
	var out image.Image = src
	if outW != w || outH != h {
		dst := image.NewRGBA(image.Rect(0, 0, outW, outH))
		draw.CatmullRom.Scale(dst, dst.Bounds(), src, bounds, draw.Over, nil)
		out = dst
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, out, &jpeg.Options{Quality: JPEGQuality}); err != nil {
		return nil, fmt.Errorf("encode jpeg: %w", err)
	}

	return &Normalized{Data: buf.Bytes(), Width: outW, Height: outH}, nil
}

// boundedSize scales (w, h) so neither exceeds MaxDimension, preserving
// aspect ratio and never enlarging.
func boundedSize(w, h int) (int, int) {
	if w <= MaxDimension && h <= MaxDimension {
		return w, h
	}
	if w >= h {
		return MaxDimension, max(1, h*MaxDimension/w)
	}
	return max(1, w*MaxDimension/h), MaxDimension
}
