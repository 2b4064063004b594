package imagefetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gabriel-vasile/mimetype"
)

var (
	ErrInvalidURL       = errors.New("image_url must be an absolute http(s) URL")
	ErrImageTooLarge    = errors.New("image exceeds size limit")
	ErrNotImage         = errors.New("url does not point to an image")
	ErrUnsupportedImage = errors.New("only JPEG and PNG images are supported")
	ErrEmptyImage       = errors.New("image is empty")
)

// StatusError is returned when the image host answers with a non-2xx status.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("download %s: status %d", e.URL, e.StatusCode)
}

// Image is a downloaded image with its sniffed content type.
type Image struct {
	Data      []byte
	MIME      string
	Extension string // with leading dot, e.g. ".jpg"
}

// Config holds the download limits.
type Config struct {
	MaxBytes        int64
	Timeout         time.Duration
	Retries         int
	InitialInterval time.Duration // first backoff delay, default 250ms
}

// Fetcher downloads images over HTTP with bounded retries.
type Fetcher struct {
	cfg        Config
	httpClient *http.Client
}

func NewFetcher(cfg Config) *Fetcher {
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = 10 << 20
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.Retries < 0 {
		cfg.Retries = 0
	}
	if cfg.InitialInterval <= 0 {
		cfg.InitialInterval = 250 * time.Millisecond
	}
	return &Fetcher{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
			Transport: &http.Transport{
				Proxy:                 http.ProxyFromEnvironment,
				ResponseHeaderTimeout: cfg.Timeout * 2 / 3,
				TLSHandshakeTimeout:   cfg.Timeout / 3,
				MaxIdleConns:          100,
				MaxIdleConnsPerHost:   10,
			},
		},
	}
}

// Fetch downloads rawURL and verifies that the body is a JPEG or PNG image.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (*Image, error) {
	if err := validateURL(rawURL); err != nil {
		return nil, err
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = f.cfg.InitialInterval
	b.MaxElapsedTime = f.cfg.Timeout

	var data []byte
	attempt := 0
	err := backoff.Retry(func() error {
		attempt++
		var err error
		data, err = f.download(ctx, rawURL)
		if err != nil {
			slog.Warn("image download failed", "url", rawURL, "attempt", attempt, "error", err)
		}
		return err
	}, backoff.WithContext(backoff.WithMaxRetries(b, uint64(f.cfg.Retries)), ctx))
	if err != nil {
		return nil, err
	}

	if len(data) == 0 {
		return nil, ErrEmptyImage
	}

	mt := mimetype.Detect(data)
	if !isImage(mt) {
		return nil, fmt.Errorf("%w (detected %s)", ErrNotImage, mt.String())
	}
	if !mt.Is("image/jpeg") && !mt.Is("image/png") {
		return nil, fmt.Errorf("%w (detected %s)", ErrUnsupportedImage, mt.String())
	}

	return &Image{
		Data:      data,
		MIME:      mt.String(),
		Extension: mt.Extension(),
	}, nil
}

func (f *Fetcher) download(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, backoff.Permanent(fmt.Errorf("create image request: %w", err))
	}
	req.Header.Set("Accept", "image/*")
	req.Header.Set("User-Agent", "plantspeak/1.0")

	resp, err := f.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, backoff.Permanent(ctx.Err())
		}
		return nil, fmt.Errorf("download image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		statusErr := &StatusError{URL: rawURL, StatusCode: resp.StatusCode}
		if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
			return nil, statusErr
		}
		return nil, backoff.Permanent(statusErr)
	}

	if resp.ContentLength > f.cfg.MaxBytes {
		return nil, backoff.Permanent(fmt.Errorf("%w: %d bytes", ErrImageTooLarge, resp.ContentLength))
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, f.cfg.MaxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read image: %w", err)
	}
	if int64(len(data)) > f.cfg.MaxBytes {
		return nil, backoff.Permanent(fmt.Errorf("%w: more than %d bytes", ErrImageTooLarge, f.cfg.MaxBytes))
	}

	return data, nil
}

func validateURL(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return ErrInvalidURL
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return ErrInvalidURL
	}
	return nil
}

func isImage(mt *mimetype.MIME) bool {
	for m := mt; m != nil; m = m.Parent() {
		if strings.HasPrefix(m.String(), "image/") {
			return true
		}
	}
	return false
}
