// Package wiki summarizes or answers questions about a linked web page.
package wiki

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"ceniza-bot/llm"
	"ceniza-bot/utils"

	"go.uber.org/zap"
	"golang.org/x/net/html"
)

const (
	maxPageBytes  = 2 << 20
	maxPageChars  = 12000
	fetchTimeout  = 20 * time.Second
	wikiMaxTokens = 700
)

var (
	ErrNoURL   = errors.New("no http url in text")
	ErrNoText  = errors.New("page has no readable text")
	urlRe      = regexp.MustCompile(`https?://[^\s>]+`)
	spaceRunRe = regexp.MustCompile(`[ \t\f\r]+`)
	blankRunRe = regexp.MustCompile(`\n{3,}`)
)

const systemPrompt = "Eres CenizaGPT. Te paso el texto de una página web. Responde en español, claro y breve, usando solo lo que dice la página. Si la página no trae la respuesta, dilo."

// Summarizer fetches pages and asks a completion model about them.
type Summarizer struct {
	llm    llm.CompletionService
	client *http.Client
	log    *zap.Logger
}

func New(svc llm.CompletionService, client *http.Client, log *zap.Logger) *Summarizer {
	if client == nil {
		client = utils.GlobalHTTPClient
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Summarizer{llm: svc, client: client, log: log.Named("wiki")}
}

// FirstURL returns the first http(s) link in text.
func FirstURL(text string) string {
	return strings.TrimRight(urlRe.FindString(text), ".,;)")
}

// Ask summarizes the page at rawURL, or answers question about it when
// question is not empty.
func (s *Summarizer) Ask(ctx context.Context, rawURL, question string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", ErrNoURL
	}
	text, title, err := s.fetch(ctx, u.String())
	if err != nil {
		return "", err
	}

	task := "Resume la página en pocos párrafos."
	if q := strings.TrimSpace(question); q != "" {
		task = "Pregunta: " + q
	}
	prompt := fmt.Sprintf("URL: %s\nTítulo: %s\n\n%s\n\nTexto de la página:\n%s", u, title, task, text)
	return s.llm.Complete(ctx, llm.CompletionRequest{
		System:      systemPrompt,
		Messages:    []llm.Message{{Role: "user", Content: prompt}},
		Temperature: 0.3,
		MaxTokens:   wikiMaxTokens,
		Purpose:     "wiki",
	})
}

func (s *Summarizer) fetch(ctx context.Context, rawURL string) (string, string, error) {
	ctx, cancel := context.WithTimeout(ctx, fetchTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", "", fmt.Errorf("failed to build page request: %w", err)
	}
	req.Header.Set("Accept", "text/html,text/plain;q=0.9")
	req.Header.Set("Accept-Language", "es-ES,es;q=0.9,en;q=0.7")

	resp, err := s.client.Do(req)
	if err != nil {
		return "", "", fmt.Errorf("fetch page: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return "", "", fmt.Errorf("fetch page: bad status %s", resp.Status)
	}

	body := io.LimitReader(resp.Body, maxPageBytes)
	var text, title string
	if strings.Contains(strings.ToLower(resp.Header.Get("Content-Type")), "text/plain") {
		raw, err := io.ReadAll(body)
		if err != nil {
			return "", "", fmt.Errorf("read page: %w", err)
		}
		text = string(raw)
	} else {
		doc, err := html.Parse(body)
		if err != nil {
			return "", "", fmt.Errorf("parse page: %w", err)
		}
		text, title = ExtractText(doc)
	}

	text = utils.Truncate(strings.TrimSpace(text), maxPageChars)
	if text == "" {
		return "", "", ErrNoText
	}
	s.log.Debug("page fetched", zap.String("url", rawURL), zap.Int("chars", len(text)))
	return text, title, nil
}

var skipped = map[string]bool{
	"script": true, "style": true, "noscript": true, "nav": true,
	"footer": true, "header": true, "aside": true, "form": true, "svg": true,
}

var blocks = map[string]bool{
	"p": true, "div": true, "li": true, "br": true, "tr": true, "section": true,
	"article": true, "h1": true, "h2": true, "h3": true, "h4": true, "table": true,
}

// ExtractText returns the readable text of doc and its title.
func ExtractText(doc *html.Node) (string, string) {
	var b strings.Builder
	var title string
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			if skipped[n.Data] {
				return
			}
			if n.Data == "title" && n.FirstChild != nil && title == "" {
				title = strings.TrimSpace(n.FirstChild.Data)
				return
			}
		}
		if n.Type == html.TextNode {
			if t := strings.TrimSpace(n.Data); t != "" {
				b.WriteString(t)
				b.WriteByte(' ')
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
		if n.Type == html.ElementNode && blocks[n.Data] {
			b.WriteByte('\n')
		}
	}
	walk(doc)

	text := spaceRunRe.ReplaceAllString(b.String(), " ")
	lines := strings.Split(text, "\n")
	for i := range lines {
		lines[i] = strings.TrimSpace(lines[i])
	}
	text = blankRunRe.ReplaceAllString(strings.Join(lines, "\n"), "\n\n")
	return strings.TrimSpace(text), title
}
