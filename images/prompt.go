package images

import (
	"regexp"
	"strconv"
	"strings"

	"ceniza-bot/utils"
)

var (
	seedRe     = regexp.MustCompile(`(?i)\b(?:seed|semilla)\s*[:=]?\s*(\d{1,10})\b`)
	sizeRe     = regexp.MustCompile(`(?i)\b(\d{3,4})\s*[x×]\s*(\d{3,4})\b`)
	userMentRe = regexp.MustCompile(`<@!?\d{16,20}>`)
	triggerRe  = regexp.MustCompile(`(?i)(?:^|\s)@?(?:dibujar|dibuja|editar|edita)\b:?`)
	modelRe    = regexp.MustCompile(`(?i)\b(?:ceniturbo|zeniza|fluxeniza|nanoceniza\s*pro|nanoceniza|nanobanana|zimage|flux|turbo)\b`)
	flagRe     = regexp.MustCompile(`(?i)--?(?:seed|semilla|width|height|w|h)\s*[=:]?\s*\d{1,10}`)
	spacesRe   = regexp.MustCompile(`\s{2,}`)
)

// Parsed is a draw or edit request pulled out of free text.
type Parsed struct {
	Prompt string
	// Model is empty unless the text names one.
	Model  string
	Width  int
	Height int
	Seed   int
}

// ParsePrompt extracts size, seed and model hints and strips them, along
// with mentions and trigger words, from the visual prompt.
func ParsePrompt(text string) Parsed {
	w, h := sizeHint(text)
	return Parsed{
		Prompt: stripControl(text),
		Model:  modelHint(text),
		Width:  w,
		Height: h,
		Seed:   seedHint(text),
	}
}

func seedHint(text string) int {
	m := seedRe.FindStringSubmatch(text)
	if m == nil {
		return 0
	}
	n, err := strconv.Atoi(m[1])
	if err != nil || n < 0 {
		return 0
	}
	return n
}

func sizeHint(text string) (int, int) {
	if m := sizeRe.FindStringSubmatch(text); m != nil {
		w, _ := strconv.Atoi(m[1])
		h, _ := strconv.Atoi(m[2])
		if w >= MinSize && h >= MinSize && w <= 2048 && h <= 2048 {
			return ClampSize(w), ClampSize(h)
		}
	}
	t := utils.Normalize(text)
	switch {
	case strings.Contains(t, "cuadrad"):
		return 1024, 1024
	case utils.ContainsAny(t, []string{"vertical", "retrato", "portrait"}):
		return 768, 1024
	case utils.ContainsAny(t, []string{"horizontal", "paisaje", "landscape"}):
		return 1024, 768
	case strings.Contains(text, "16:9"):
		return 1024, 576
	case strings.Contains(text, "9:16"):
		return 576, 1024
	}
	return DefaultSize, DefaultSize
}

// modelHint maps the bot's model nicknames to backend model ids.
func modelHint(text string) string {
	t := utils.Normalize(text)
	switch {
	case strings.Contains(t, "nanobanana") || strings.Contains(t, "nanoceniza"):
		return "nanobanana"
	case strings.Contains(t, "turbo"):
		return "turbo"
	case strings.Contains(t, "zimage") || strings.Contains(t, "zeniza"):
		return "zimage"
	case strings.Contains(t, "flux"):
		return "flux"
	}
	return ""
}

// ModelLabel is the name shown to users for a model id.
func ModelLabel(model string) string {
	switch model {
	case "flux":
		return "Fluxeniza"
	case "zimage":
		return "Zeniza"
	case "turbo":
		return "Ceniturbo"
	case "nanobanana":
		return "Nanoceniza Pro"
	case "":
		return "Fluxeniza"
	default:
		return model
	}
}

func stripControl(text string) string {
	s := userMentRe.ReplaceAllString(text, " ")
	s = triggerRe.ReplaceAllString(s, " ")
	s = modelRe.ReplaceAllString(s, " ")
	s = flagRe.ReplaceAllString(s, " ")
	s = sizeRe.ReplaceAllString(s, " ")
	s = seedRe.ReplaceAllString(s, " ")
	return strings.TrimSpace(spacesRe.ReplaceAllString(s, " "))
}
