package audio

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// SupabaseStore uploads audio to a Supabase Storage bucket and links to the
// public object URL. The bucket must be public for the links to resolve.
type SupabaseStore struct {
	baseURL    string
	serviceKey string
	bucket     string
	httpClient *http.Client
}

func NewSupabaseStore(supabaseURL, serviceKey, bucket string) *SupabaseStore {
	return &SupabaseStore{
		baseURL:    strings.TrimRight(supabaseURL, "/") + "/storage/v1",
		serviceKey: serviceKey,
		bucket:     bucket,
		httpClient: &http.Client{Timeout: 2 * time.Minute},
	}
}

func (s *SupabaseStore) Name() string { return "supabase" }

func (s *SupabaseStore) Save(ctx context.Context, name string, data []byte, contentType string) (string, error) {
	if !ValidName(name) {
		return "", ErrInvalidName
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.objectURL(name), bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("create upload request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.serviceKey)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("x-upsert", "true")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("upload audio: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("upload failed (%d): %s", resp.StatusCode, string(body))
	}

	return s.PublicURL(name), nil
}

func (s *SupabaseStore) Delete(ctx context.Context, name string) error {
	if !ValidName(name) {
		return ErrInvalidName
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, s.objectURL(name), nil)
	if err != nil {
		return fmt.Errorf("create delete request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.serviceKey)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("delete audio: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil
	}
	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		if objectNotFound(body) {
			return nil
		}
		return fmt.Errorf("delete failed (%d): %s", resp.StatusCode, string(body))
	}
	return nil
}

// storageError is the error body Supabase Storage returns. Missing objects
// come back as HTTP 400 with statusCode "404".
type storageError struct {
	StatusCode json.RawMessage `json:"statusCode"`
	Error      string          `json:"error"`
}

func objectNotFound(body []byte) bool {
	var e storageError
	if err := json.Unmarshal(body, &e); err != nil {
		return false
	}
	code := strings.Trim(string(e.StatusCode), `"`)
	return code == "404" || strings.EqualFold(strings.ReplaceAll(e.Error, " ", "_"), "not_found")
}

func (s *SupabaseStore) PublicURL(name string) string {
	return fmt.Sprintf("%s/object/public/%s/%s", s.baseURL, s.bucket, name)
}

func (s *SupabaseStore) objectURL(name string) string {
	return fmt.Sprintf("%s/object/%s/%s", s.baseURL, s.bucket, name)
}
