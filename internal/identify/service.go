package identify

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/nikhilbhutani/plantspeak/internal/history"
	"github.com/nikhilbhutani/plantspeak/internal/imagefetch"
	"github.com/nikhilbhutani/plantspeak/internal/plantnet"
)

// OrganAuto asks the service to pick between leaf and flower.
const OrganAuto = "auto"

var (
	ErrMissingAPIKey   = errors.New("missing api_key")
	ErrMissingImageURL = errors.New("missing image_url")
)

type ImageFetcher interface {
	Fetch(ctx context.Context, rawURL string) (*imagefetch.Image, error)
}

type Identifier interface {
	Identify(ctx context.Context, req plantnet.IdentifyRequest) (*plantnet.Result, error)
}

type ResultCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
}

type Recorder interface {
	Record(ctx context.Context, e history.Entry) error
}

// Request mirrors the /identify body.
type Request struct {
	ImageURL  string `json:"image_url"`
	Organs    string `json:"organs,omitempty"`
	APIKey    string `json:"api_key,omitempty"`
	Lang      string `json:"lang,omitempty"`
	NbResults int    `json:"nb_results,omitempty"`
}

// Answer is the identification picked for a request.
type Answer struct {
	Organ  string
	Result *plantnet.Result
	Cached bool
}

type Config struct {
	DefaultAPIKey string
	DefaultLang   string
	Project       string
	AutoThreshold float64
	CacheTTL      time.Duration
}

type Service struct {
	cfg      Config
	fetcher  ImageFetcher
	plantnet Identifier
	cache    ResultCache // optional
	recorder Recorder    // optional
}

func NewService(cfg Config, fetcher ImageFetcher, pn Identifier, cache ResultCache, recorder Recorder) *Service {
	if cfg.Project == "" {
		cfg.Project = "all"
	}
	return &Service{
		cfg:      cfg,
		fetcher:  fetcher,
		plantnet: pn,
		cache:    cache,
		recorder: recorder,
	}
}

// Identify downloads the image and runs one or two identification attempts.
func (s *Service) Identify(ctx context.Context, req Request) (*Answer, error) {
	req, err := s.normalize(req)
	if err != nil {
		return nil, err
	}

	key := s.cacheKey(req)
	if ans := s.lookup(ctx, key); ans != nil {
		s.record(ctx, req, ans)
		return ans, nil
	}

	img, err := s.fetcher.Fetch(ctx, req.ImageURL)
	if err != nil {
		return nil, fmt.Errorf("fetch image: %w", err)
	}

	var ans *Answer
	if req.Organs == OrganAuto {
		ans, err = s.identifyAuto(ctx, req, img)
	} else {
		ans, err = s.attempt(ctx, req, img, req.Organs)
	}
	if err != nil {
		return nil, err
	}

	s.store(ctx, key, ans)
	s.record(ctx, req, ans)
	return ans, nil
}

func (s *Service) normalize(req Request) (Request, error) {
	req.ImageURL = strings.TrimSpace(req.ImageURL)
	req.Organs = strings.ToLower(strings.TrimSpace(req.Organs))
	if req.APIKey == "" {
		req.APIKey = s.cfg.DefaultAPIKey
	}
	if req.Lang == "" {
		req.Lang = s.cfg.DefaultLang
	}
	if req.Organs == "" {
		req.Organs = plantnet.OrganLeaf
	}

	if req.APIKey == "" {
		return req, ErrMissingAPIKey
	}
	if req.ImageURL == "" {
		return req, ErrMissingImageURL
	}
	if req.Organs != OrganAuto && !plantnet.ValidOrgan(req.Organs) {
		return req, plantnet.ErrInvalidOrgan
	}
	if req.NbResults < 0 {
		req.NbResults = 0
	}
	return req, nil
}

// identifyAuto tries leaf first and only asks for flower when leaf is not
// confident enough. The higher best score wins; ties keep leaf.
func (s *Service) identifyAuto(ctx context.Context, req Request, img *imagefetch.Image) (*Answer, error) {
	leaf, leafErr := s.attempt(ctx, req, img, plantnet.OrganLeaf)
	if leafErr != nil && !isNotFound(leafErr) {
		return nil, leafErr
	}
	if leaf != nil && leaf.Result.BestScore() >= s.cfg.AutoThreshold {
		return leaf, nil
	}

	flower, flowerErr := s.attempt(ctx, req, img, plantnet.OrganFlower)
	switch {
	case flowerErr == nil:
	case leaf != nil:
		if !isNotFound(flowerErr) {
			slog.Warn("flower attempt failed, keeping leaf answer", "error", flowerErr)
		}
		return leaf, nil
	case isNotFound(flowerErr):
		return nil, leafErr
	default:
		return nil, flowerErr
	}

	if leaf == nil {
		return flower, nil
	}

	slog.Debug("organ comparison",
		"leaf_score", leaf.Result.BestScore(),
		"flower_score", flower.Result.BestScore(),
	)
	if flower.Result.BestScore() > leaf.Result.BestScore() {
		return flower, nil
	}
	return leaf, nil
}

func (s *Service) attempt(ctx context.Context, req Request, img *imagefetch.Image, organ string) (*Answer, error) {
	res, err := s.plantnet.Identify(ctx, plantnet.IdentifyRequest{
		APIKey:    req.APIKey,
		Organ:     organ,
		Image:     img.Data,
		MIME:      img.MIME,
		Extension: img.Extension,
		Lang:      req.Lang,
		NbResults: req.NbResults,
	})
	if err != nil {
		return nil, fmt.Errorf("identify %s: %w", organ, err)
	}
	return &Answer{Organ: organ, Result: res}, nil
}

func isNotFound(err error) bool {
	var apiErr *plantnet.APIError
	return errors.As(err, &apiErr) && apiErr.NotFound()
}

type cachedAnswer struct {
	Organ string          `json:"organ"`
	Body  json.RawMessage `json:"body"`
}

func (s *Service) cacheKey(req Request) string {
	h := sha256.New()
	for _, part := range []string{req.ImageURL, req.Organs, s.cfg.Project, req.Lang, strconv.Itoa(req.NbResults)} {
		h.Write([]byte(part))
		h.Write([]byte{0})
	}
	return "identify:" + hex.EncodeToString(h.Sum(nil))
}

func (s *Service) lookup(ctx context.Context, key string) *Answer {
	if s.cache == nil {
		return nil
	}
	var c cachedAnswer
	if err := s.cache.Get(ctx, key, &c); err != nil {
		return nil
	}
	res, err := plantnet.ParseResult(c.Body)
	if err != nil {
		slog.Warn("discarding corrupt cache entry", "key", key, "error", err)
		return nil
	}
	return &Answer{Organ: c.Organ, Result: res, Cached: true}
}

func (s *Service) store(ctx context.Context, key string, ans *Answer) {
	if s.cache == nil || s.cfg.CacheTTL <= 0 {
		return
	}
	if err := s.cache.Set(ctx, key, cachedAnswer{Organ: ans.Organ, Body: ans.Result.Raw}, s.cfg.CacheTTL); err != nil {
		slog.Warn("cache identification failed", "key", key, "error", err)
	}
}

func (s *Service) record(ctx context.Context, req Request, ans *Answer) {
	if s.recorder == nil {
		return
	}
	err := s.recorder.Record(ctx, history.Entry{
		ImageURL:       req.ImageURL,
		Organs:         req.Organs,
		OrganUsed:      ans.Organ,
		BestMatch:      ans.Result.BestName(),
		BestScore:      ans.Result.BestScore(),
		RemainingQuota: ans.Result.RemainingIdentificationRequests,
		Cached:         ans.Cached,
	})
	if err != nil {
		slog.Warn("record identification failed", "error", err)
	}
}
