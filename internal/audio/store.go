package audio

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

var ErrInvalidName = errors.New("invalid audio file name")

// Store persists generated audio and hands out a link to it.
type Store interface {
	Save(ctx context.Context, name string, data []byte, contentType string) (string, error)
	Delete(ctx context.Context, name string) error
	Name() string
}

// NewName returns a fresh random file name with the given extension.
func NewName(ext string) string {
	return uuid.NewString() + ext
}

// ValidName accepts only names produced by NewName for .mp3 and .wav.
func ValidName(name string) bool {
	ext := filepath.Ext(name)
	if ext != ".mp3" && ext != ".wav" {
		return false
	}
	id := strings.TrimSuffix(name, ext)
	parsed, err := uuid.Parse(id)
	return err == nil && parsed.String() == id
}

// ContentType maps a stored file name to its MIME type.
func ContentType(name string) string {
	switch filepath.Ext(name) {
	case ".mp3":
		return "audio/mpeg"
	case ".wav":
		return "audio/wav"
	default:
		return "application/octet-stream"
	}
}

// LocalStore keeps audio files in a directory served by the API itself.
type LocalStore struct {
	dir           string
	publicBaseURL string
}

func NewLocalStore(dir, publicBaseURL string) (*LocalStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create audio dir: %w", err)
	}
	return &LocalStore{dir: dir, publicBaseURL: strings.TrimRight(publicBaseURL, "/")}, nil
}

func (s *LocalStore) Name() string { return "local" }

// Save writes the file atomically and returns its public URL.
func (s *LocalStore) Save(_ context.Context, name string, data []byte, _ string) (string, error) {
	if !ValidName(name) {
		return "", ErrInvalidName
	}

	tmp, err := os.CreateTemp(s.dir, ".tmp-*")
	if err != nil {
		return "", fmt.Errorf("create temp audio file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return "", fmt.Errorf("write audio file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return "", fmt.Errorf("close audio file: %w", err)
	}
	if err := os.Rename(tmpName, filepath.Join(s.dir, name)); err != nil {
		os.Remove(tmpName)
		return "", fmt.Errorf("move audio file: %w", err)
	}

	return s.URL(name), nil
}

// URL is the link under which the API serves name.
func (s *LocalStore) URL(name string) string {
	return s.publicBaseURL + "/audio/" + name
}

// Path resolves name inside the audio directory.
func (s *LocalStore) Path(name string) (string, error) {
	if !ValidName(name) {
		return "", ErrInvalidName
	}
	return filepath.Join(s.dir, name), nil
}

// Delete removes a file; a missing file is not an error.
func (s *LocalStore) Delete(_ context.Context, name string) error {
	path, err := s.Path(name)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("delete audio file: %w", err)
	}
	return nil
}

// Sweep deletes audio files last modified before now-maxAge.
func (s *LocalStore) Sweep(ctx context.Context, maxAge time.Duration) (int, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return 0, fmt.Errorf("read audio dir: %w", err)
	}

	cutoff := time.Now().Add(-maxAge)
	removed := 0
	for _, e := range entries {
		if ctx.Err() != nil {
			return removed, ctx.Err()
		}
		if e.IsDir() || !ValidName(e.Name()) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		if info.ModTime().After(cutoff) {
			continue
		}
		if err := s.Delete(ctx, e.Name()); err != nil {
			slog.Warn("sweep audio file failed", "file", e.Name(), "error", err)
			continue
		}
		removed++
	}
	return removed, nil
}
