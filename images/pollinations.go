// Package images generates and edits pictures through the Pollinations
// HTTP API.
package images

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"ceniza-bot/metrics"
	"ceniza-bot/utils"

	"go.uber.org/zap"
)

const (
	DefaultBaseURL      = "https://image.pollinations.ai"
	DefaultFreeModel    = "flux"
	DefaultPremiumModel = "nanobanana"

	DefaultSize = 1024
	MinSize     = 256
	MaxSize     = 1536

	minImageBytes  = 4000
	maxImageBytes  = 16 << 20
	defaultTimeout = 140 * time.Second
)

var (
	ErrEmptyPrompt   = errors.New("empty prompt")
	ErrMissingSource = errors.New("edit needs a source image url")
	ErrNotImage      = errors.New("response is not an image")
	ErrTooSmall      = errors.New("image too small")
)

// Request describes one generation. SourceURL turns it into an edit.
type Request struct {
	Prompt    string
	Model     string
	Width     int
	Height    int
	Seed      int
	SourceURL string
}

// Image is a generated picture.
type Image struct {
	Data        []byte
	ContentType string
	Model       string
	Seed        int
	Width       int
	Height      int
}

// Filename picks an extension from the content type.
func (i *Image) Filename(base string) string {
	switch {
	case strings.Contains(i.ContentType, "jpeg"):
		return base + ".jpg"
	case strings.Contains(i.ContentType, "webp"):
		return base + ".webp"
	default:
		return base + ".png"
	}
}

// Config configures Client.
type Config struct {
	BaseURL      string
	FreeModel    string
	PremiumModel string
	APIToken     string
	Timeout      time.Duration
	HTTPClient   *http.Client
}

// Client talks to Pollinations. It is safe for concurrent use.
type Client struct {
	cfg    Config
	client *http.Client
	log    *zap.Logger
}

func New(cfg Config, log *zap.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.FreeModel == "" {
		cfg.FreeModel = DefaultFreeModel
	}
	if cfg.PremiumModel == "" {
		cfg.PremiumModel = DefaultPremiumModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = defaultTimeout
	}
	hc := cfg.HTTPClient
	if hc == nil {
		hc = utils.NewHTTPClient(cfg.Timeout)
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{cfg: cfg, client: hc, log: log.Named("images")}
}

func (c *Client) FreeModel() string    { return c.cfg.FreeModel }
func (c *Client) PremiumModel() string { return c.cfg.PremiumModel }

// Generate renders req.Prompt.
func (c *Client) Generate(ctx context.Context, req Request) (*Image, error) {
	req.SourceURL = ""
	return c.do(ctx, req)
}

// Edit applies req.Prompt to req.SourceURL.
func (c *Client) Edit(ctx context.Context, req Request) (*Image, error) {
	if !isHTTPURL(req.SourceURL) {
		return nil, ErrMissingSource
	}
	return c.do(ctx, req)
}

func (c *Client) do(ctx context.Context, req Request) (*Image, error) {
	req.Prompt = strings.TrimSpace(req.Prompt)
	if req.Prompt == "" {
		return nil, ErrEmptyPrompt
	}
	if req.Model == "" {
		req.Model = c.cfg.FreeModel
	}
	req.Width = ClampSize(req.Width)
	req.Height = ClampSize(req.Height)
	req.Seed = max(req.Seed, 0)

	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.buildURL(req), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build image request: %w", err)
	}
	httpReq.Header.Set("Accept", "image/*")
	if c.cfg.APIToken != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.cfg.APIToken)
	}

	start := time.Now()
	img, err := c.fetch(httpReq)
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	metrics.ImagesTotal.WithLabelValues(req.Model, outcome).Inc()
	if err != nil {
		c.log.Warn("image request failed",
			zap.String("model", req.Model),
			zap.Bool("edit", req.SourceURL != ""),
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err))
		return nil, err
	}
	img.Model, img.Seed, img.Width, img.Height = req.Model, req.Seed, req.Width, req.Height
	c.log.Debug("image generated",
		zap.String("model", req.Model),
		zap.Int("bytes", len(img.Data)),
		zap.Duration("elapsed", time.Since(start)))
	return img, nil
}

func (c *Client) buildURL(req Request) string {
	q := url.Values{}
	q.Set("model", req.Model)
	q.Set("width", strconv.Itoa(req.Width))
	q.Set("height", strconv.Itoa(req.Height))
	if req.Seed > 0 {
		q.Set("seed", strconv.Itoa(req.Seed))
	}
	q.Set("nologo", "true")
	if req.SourceURL != "" {
		q.Set("image", req.SourceURL)
	}
	return c.cfg.BaseURL + "/prompt/" + url.PathEscape(req.Prompt) + "?" + q.Encode()
}

func (c *Client) fetch(req *http.Request) (*Image, error) {
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("image request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 400))
		return nil, fmt.Errorf("image backend returned %s: %s", resp.Status, strings.TrimSpace(string(body)))
	}
	ctype := strings.ToLower(resp.Header.Get("Content-Type"))
	if !strings.HasPrefix(ctype, "image/") {
		return nil, fmt.Errorf("%w (content-type %q)", ErrNotImage, ctype)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read image: %w", err)
	}
	if len(data) < minImageBytes {
		return nil, fmt.Errorf("%w: %d bytes", ErrTooSmall, len(data))
	}
	return &Image{Data: data, ContentType: ctype}, nil
}

// ClampSize bounds a dimension, treating zero as the default size.
func ClampSize(n int) int {
	if n <= 0 {
		return DefaultSize
	}
	return min(max(n, MinSize), MaxSize)
}

// FallbackEditPrompt builds a generation prompt that recreates an image
// from its description with the requested change applied.
func FallbackEditPrompt(description, edit string) string {
	description = strings.TrimSpace(description)
	if description == "" {
		description = "(no disponible)"
	}
	return strings.Join([]string{
		"Descripción de la imagen original: " + description,
		"",
		"Edición solicitada: " + strings.TrimSpace(edit),
		"",
		"Genera una nueva imagen aplicando la edición solicitada.",
	}, "\n")
}

func isHTTPURL(raw string) bool {
	u, err := url.Parse(strings.TrimSpace(raw))
	return err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
