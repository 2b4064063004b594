package plantnet

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Organs accepted by the identify endpoint.
const (
	OrganLeaf   = "leaf"
	OrganFlower = "flower"
	OrganFruit  = "fruit"
	OrganBark   = "bark"
	OrganHabit  = "habit"
	OrganOther  = "other"
)

var ErrInvalidOrgan = errors.New("organs must be one of leaf, flower, fruit, bark, habit, other, auto")

// ValidOrgan reports whether organ is accepted by Pl@ntNet.
func ValidOrgan(organ string) bool {
	switch organ {
	case OrganLeaf, OrganFlower, OrganFruit, OrganBark, OrganHabit, OrganOther:
		return true
	}
	return false
}

// APIError is a non-2xx answer from Pl@ntNet. Body holds the raw response.
type APIError struct {
	StatusCode  int
	ContentType string
	Body        []byte
}

func (e *APIError) Error() string {
	msg := strings.TrimSpace(string(e.Body))
	if len(msg) > 200 {
		msg = msg[:200] + "..."
	}
	return fmt.Sprintf("plantnet error (status %d): %s", e.StatusCode, msg)
}

// NotFound reports whether Pl@ntNet found no matching species.
func (e *APIError) NotFound() bool {
	return e.StatusCode == http.StatusNotFound
}

// Config holds connection settings for the identify API.
type Config struct {
	BaseURL string // default: "https://my-api.plantnet.org"
	Project string // default: "all"
	Timeout time.Duration
}

// Client posts images to the Pl@ntNet v2 identify endpoint.
type Client struct {
	cfg        Config
	httpClient *http.Client
}

func NewClient(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://my-api.plantnet.org"
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Project == "" {
		cfg.Project = "all"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}
}

// IdentifyRequest is one identification attempt for a single image.
type IdentifyRequest struct {
	APIKey    string
	Organ     string
	Image     []byte
	MIME      string
	Extension string
	Lang      string
	NbResults int
}

// Identify uploads the image and returns the parsed answer. Non-2xx answers
// are returned as *APIError.
func (c *Client) Identify(ctx context.Context, req IdentifyRequest) (*Result, error) {
	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)

	ext := req.Extension
	if ext == "" {
		ext = ".jpg"
	}
	mimeType := req.MIME
	if mimeType == "" {
		mimeType = "image/jpeg"
	}

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="images"; filename="plant%s"`, ext))
	header.Set("Content-Type", mimeType)
	part, err := mw.CreatePart(header)
	if err != nil {
		return nil, fmt.Errorf("create image part: %w", err)
	}
	if _, err := part.Write(req.Image); err != nil {
		return nil, fmt.Errorf("write image part: %w", err)
	}
	if err := mw.WriteField("organs", req.Organ); err != nil {
		return nil, fmt.Errorf("write organs field: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("close multipart writer: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(req), body)
	if err != nil {
		return nil, fmt.Errorf("create identify request: %w", err)
	}
	httpReq.Header.Set("Content-Type", mw.FormDataContentType())
	httpReq.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("identify request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read identify response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &APIError{
			StatusCode:  resp.StatusCode,
			ContentType: resp.Header.Get("Content-Type"),
			Body:        raw,
		}
	}

	return ParseResult(raw)
}

func (c *Client) endpoint(req IdentifyRequest) string {
	q := url.Values{}
	q.Set("api-key", req.APIKey)
	if req.Lang != "" {
		q.Set("lang", req.Lang)
	}
	if req.NbResults > 0 {
		q.Set("nb-results", strconv.Itoa(req.NbResults))
	}
	return fmt.Sprintf("%s/v2/identify/%s?%s", c.cfg.BaseURL, url.PathEscape(c.cfg.Project), q.Encode())
}

// Project returns the configured flora project.
func (c *Client) Project() string { return c.cfg.Project }

// Result is a successful answer. Raw is kept so callers can return the
// upstream JSON untouched.
type Result struct {
	Raw                             json.RawMessage `json:"-"`
	BestMatch                       string          `json:"bestMatch"`
	Language                        string          `json:"language"`
	Results                         []Match         `json:"results"`
	RemainingIdentificationRequests *int            `json:"remainingIdentificationRequests,omitempty"`
}

type Match struct {
	Score   float64 `json:"score"`
	Species Species `json:"species"`
}

type Species struct {
	ScientificNameWithoutAuthor string   `json:"scientificNameWithoutAuthor"`
	ScientificName              string   `json:"scientificName"`
	CommonNames                 []string `json:"commonNames"`
}

// ParseResult decodes an identify answer and keeps the raw bytes.
func ParseResult(raw []byte) (*Result, error) {
	var r Result
	if err := json.Unmarshal(raw, &r); err != nil {
		return nil, fmt.Errorf("decode identify response: %w", err)
	}
	r.Raw = json.RawMessage(raw)
	return &r, nil
}

// BestScore is the score of the top result, or 0 when there are none.
func (r *Result) BestScore() float64 {
	if r == nil || len(r.Results) == 0 {
		return 0
	}
	best := r.Results[0].Score
	for _, m := range r.Results[1:] {
		if m.Score > best {
			best = m.Score
		}
	}
	return best
}

// BestName is the scientific name of the best match.
func (r *Result) BestName() string {
	if r == nil {
		return ""
	}
	if r.BestMatch != "" {
		return r.BestMatch
	}
	if len(r.Results) > 0 {
		return r.Results[0].Species.ScientificName
	}
	return ""
}
