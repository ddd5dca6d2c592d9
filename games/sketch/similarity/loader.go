/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package similarity

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	_ "golang.org/x/image/webp"

	"github.com/Seednode/sketchduel/games/sketch"
)

const (
	DefaultFetchTimeout = 10 * time.Second
	DefaultMaxBytes     = 8 << 20

	// MaxDimension bounds either side of a decoded image.
	MaxDimension = 4096
)

var (
	ErrFetch  = fmt.Errorf("%w: fetch image", sketch.ErrScoringFailure)
	ErrDecode = fmt.Errorf("%w: decode image", sketch.ErrExtractionFailure)
)

// Loader turns image references into decoded images. References may be
// data URLs, http(s) URLs or bare base64; drawings are never fetched.
type Loader struct {
	client   *http.Client
	maxBytes int64
}

// NewLoader returns a Loader. A nil client gets DefaultFetchTimeout, and a
// non-positive maxBytes means DefaultMaxBytes.
func NewLoader(client *http.Client, maxBytes int64) *Loader {
	if client == nil {
		client = &http.Client{Timeout: DefaultFetchTimeout}
	}
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}

	return &Loader{client: client, maxBytes: maxBytes}
}

// LoadReference decodes a reference image, fetching http(s) URLs.
func (l *Loader) LoadReference(ctx context.Context, src string) (image.Image, error) {
	src = strings.TrimSpace(src)

	if strings.HasPrefix(src, "http://") || strings.HasPrefix(src, "https://") {
		data, err := l.fetch(ctx, src)
		if err != nil {
			return nil, err
		}
		return l.decode(data)
	}

	return l.LoadDrawing(ctx, src)
}

// LoadDrawing decodes a client-submitted drawing. Only data URLs and bare
// base64 are accepted.
func (l *Loader) LoadDrawing(_ context.Context, src string) (image.Image, error) {
	src = strings.TrimSpace(src)

	var (
		data []byte
		err  error
	)

	switch {
	case src == "":
		return nil, fmt.Errorf("%w: empty source", ErrDecode)
	case strings.HasPrefix(src, "data:"):
		data, err = decodeDataURL(src)
	case strings.Contains(src, "://"):
		return nil, fmt.Errorf("%w: drawings must be inline images", ErrDecode)
	default:
		data, err = decodeBase64(src)
	}
	if err != nil {
		return nil, err
	}

	return l.decode(data)
}

// decode checks size limits before handing data to the image decoders,
// which allocate the full pixel buffer up front.
func (l *Loader) decode(data []byte) (image.Image, error) {
	if int64(len(data)) > l.maxBytes {
		return nil, fmt.Errorf("%w: %d bytes exceeds %d", ErrDecode, len(data), l.maxBytes)
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecode, err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 || cfg.Width > MaxDimension || cfg.Height > MaxDimension {
		return nil, fmt.Errorf("%w: %dx%d exceeds %dx%d",
			ErrDecode, cfg.Width, cfg.Height, MaxDimension, MaxDimension)
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecode, err)
	}

	return img, nil
}

func (l *Loader) fetch(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFetch, err)
	}
	req.Header.Set("Accept", "image/*")

	resp, err := l.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFetch, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, fmt.Errorf("%w: %s returned %s", ErrFetch, rawURL, resp.Status)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, l.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFetch, err)
	}
	if int64(len(data)) > l.maxBytes {
		return nil, fmt.Errorf("%w: %s exceeds %d bytes", ErrFetch, rawURL, l.maxBytes)
	}

	return data, nil
}

// decodeDataURL handles data:[<mediatype>][;base64],<data>.
func decodeDataURL(src string) ([]byte, error) {
	meta, payload, ok := strings.Cut(strings.TrimPrefix(src, "data:"), ",")
	if !ok {
		return nil, fmt.Errorf("%w: malformed data URL", ErrDecode)
	}

	if strings.HasSuffix(meta, ";base64") {
		return decodeBase64(payload)
	}

	data, err := url.PathUnescape(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecode, err)
	}

	return []byte(data), nil
}

func decodeBase64(payload string) ([]byte, error) {
	payload = strings.TrimRight(strings.TrimSpace(payload), "=")

	data, err := base64.RawStdEncoding.DecodeString(payload)
	if err != nil {
		data, err = base64.RawURLEncoding.DecodeString(payload)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecode, err)
	}

	return data, nil
}

// EncodeDataURL renders img as a PNG data URL.
func EncodeDataURL(img image.Image) (string, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return "", err
	}

	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}
