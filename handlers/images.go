package handlers

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"ceniza-bot/bot"
	"ceniza-bot/images"
	"ceniza-bot/model"
	"ceniza-bot/stores/memory"
	"ceniza-bot/stores/usage"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

const (
	msgDrawNoPrompt = "decime qué querés que dibuje. ej: `@ceniza dibuja un slime con sombrero (ceniturbo)`"
	msgEditNoPrompt = "decime qué cambio querés hacer. ej: `@ceniza edita: pon el pelo rojo`"
	msgEditNoImage  = "para editar necesito una imagen: respondé a una imagen, adjuntala, o pegá una url directa de imagen."
	msgDrawFailed   = "⚠️ no pude generar la imagen ahora mismo."
	msgEditFailed   = "⚠️ no pude editar esa imagen ahora mismo (modelo alternativo)."
	describeForEdit = "Describe la imagen con detalle (sujeto, estilo, colores, composición y fondo) para poder recrearla."
	premiumArgValue = "premium"
)

type imageBackend interface {
	Generate(ctx context.Context, req images.Request) (*images.Image, error)
	Edit(ctx context.Context, req images.Request) (*images.Image, error)
	FreeModel() string
	PremiumModel() string
}

type quota interface {
	TryConsume(ctx context.Context, userID string, kind usage.Kind) (usage.Grant, error)
	Limits() model.UsageLimits
}

type describer interface {
	Describe(ctx context.Context, imageURL, prompt string) (string, error)
}

// studio runs draw and edit requests for every surface.
type studio struct {
	img    imageBackend
	quota  quota
	vision describer
	log    *zap.Logger
}

func newStudio(b *bot.Bot) *studio {
	return &studio{img: b.Images, quota: b.Usage, vision: b.Vision, log: b.Log.Named("images")}
}

// imageJob is a draw or edit request. Zero sizes and seed mean "take them
// from the prompt text".
type imageJob struct {
	UserID    string
	Text      string
	SourceURL string
	Model     string
	Premium   bool
	Width     int
	Height    int
	Seed      int
}

// imageReply is what gets posted back. Image is nil when only Content
// should be shown.
type imageReply struct {
	Content  string
	Image    *images.Image
	Filename string
}

func (j imageJob) parse() images.Parsed {
	p := images.ParsePrompt(j.Text)
	if j.Width > 0 && j.Height > 0 {
		p.Width, p.Height = images.ClampSize(j.Width), images.ClampSize(j.Height)
	}
	if j.Seed > 0 {
		p.Seed = j.Seed
	}
	return p
}

// freeModel picks the model used when the premium one is not in play.
func (st *studio) freeModel(named string) string {
	if named != "" && named != st.img.PremiumModel() {
		return named
	}
	return st.img.FreeModel()
}

func (st *studio) wantsPremium(j imageJob, p images.Parsed) bool {
	return j.Premium || j.Model == premiumArgValue || (p.Model != "" && p.Model == st.img.PremiumModel())
}

func (st *studio) consume(ctx context.Context, userID string, kind usage.Kind) usage.Grant {
	if userID == "" {
		return usage.Grant{Reason: usage.ReasonUser}
	}
	grant, err := st.quota.TryConsume(ctx, userID, kind)
	if err != nil {
		st.log.Warn("usage check failed", zap.String("user_id", userID), zap.Error(err))
		return usage.Grant{Reason: usage.ReasonUser}
	}
	return grant
}

func quotaLine(g usage.Grant, limits model.UsageLimits, kind usage.Kind) string {
	user, userMax := g.Remaining.Edit, limits.EditPerDay
	if kind == usage.KindGenerate {
		user, userMax = g.Remaining.Generate, limits.GeneratePerDay
	}
	return fmt.Sprintf("Tus intentos: %d/%d · Global: %d/%d", user, userMax, g.Remaining.Global, limits.GlobalPerDay)
}

// Draw generates an image. The premium model is only used when asked for
// and the daily quota allows it.
func (st *studio) Draw(ctx context.Context, j imageJob) imageReply {
	p := j.parse()
	if p.Prompt == "" {
		return imageReply{Content: msgDrawNoPrompt}
	}
	req := images.Request{Prompt: p.Prompt, Width: p.Width, Height: p.Height, Seed: p.Seed}

	notice := ""
	if st.wantsPremium(j, p) {
		grant := st.consume(ctx, j.UserID, usage.KindGenerate)
		if grant.Granted {
			req.Model = st.img.PremiumModel()
			img, err := st.img.Generate(ctx, req)
			if err == nil {
				content := fmt.Sprintf("🖼️ Listo · %s · %dx%d · %s",
					images.ModelLabel(img.Model), img.Width, img.Height, quotaLine(grant, st.quota.Limits(), usage.KindGenerate))
				return imageReply{Content: content, Image: img, Filename: img.Filename("ceniza")}
			}
			st.log.Warn("premium generation failed, using free model", zap.Error(err))
		}
		notice = fmt.Sprintf("⚠️ %s no disponible ahora (%s). Se usó un modelo alternativo.\n",
			images.ModelLabel(st.img.PremiumModel()), quotaLine(grant, st.quota.Limits(), usage.KindGenerate))
	}

	req.Model = st.freeModel(p.Model)
	img, err := st.img.Generate(ctx, req)
	if err != nil {
		st.log.Warn("generation failed", zap.String("model", req.Model), zap.Error(err))
		return imageReply{Content: msgDrawFailed}
	}
	content := fmt.Sprintf("%s🖼️ Listo · Modelo: %s · %dx%d", notice, images.ModelLabel(img.Model), img.Width, img.Height)
	return imageReply{Content: content, Image: img, Filename: img.Filename("ceniza")}
}

// Edit applies a change to an existing image. It tries the premium model
// first and otherwise describes the source and regenerates it with the
// change applied.
func (st *studio) Edit(ctx context.Context, j imageJob) imageReply {
	if strings.TrimSpace(j.SourceURL) == "" {
		return imageReply{Content: msgEditNoImage}
	}
	p := j.parse()
	if p.Prompt == "" {
		return imageReply{Content: msgEditNoPrompt}
	}

	grant := st.consume(ctx, j.UserID, usage.KindEdit)
	if grant.Granted {
		img, err := st.img.Edit(ctx, images.Request{
			Prompt:    p.Prompt,
			Model:     st.img.PremiumModel(),
			SourceURL: j.SourceURL,
			Width:     p.Width,
			Height:    p.Height,
			Seed:      p.Seed,
		})
		if err == nil {
			content := fmt.Sprintf("✏️ Listo · %s · %s",
				images.ModelLabel(img.Model), quotaLine(grant, st.quota.Limits(), usage.KindEdit))
			return imageReply{Content: content, Image: img, Filename: img.Filename("ceniza_edit")}
		}
		st.log.Warn("premium edit failed, falling back", zap.Error(err))
	}

	desc, err := st.vision.Describe(ctx, j.SourceURL, describeForEdit)
	if err != nil {
		st.log.Warn("describe for edit failed", zap.Error(err))
		desc = ""
	}
	fallback := st.freeModel(p.Model)
	img, err := st.img.Generate(ctx, images.Request{
		Prompt: images.FallbackEditPrompt(desc, p.Prompt),
		Model:  fallback,
		Width:  p.Width,
		Height: p.Height,
		Seed:   p.Seed,
	})
	if err != nil {
		st.log.Warn("fallback edit failed", zap.String("model", fallback), zap.Error(err))
		return imageReply{Content: msgEditFailed}
	}
	content := fmt.Sprintf("⚠️ Edición con %s no disponible ahora (%s).\nSe usó un modelo alternativo para tu edición.\nModelo: %s",
		images.ModelLabel(st.img.PremiumModel()), quotaLine(grant, st.quota.Limits(), usage.KindEdit), images.ModelLabel(fallback))
	return imageReply{Content: content, Image: img, Filename: img.Filename("ceniza_edit")}
}

func (r imageReply) files() []*discordgo.File {
	if r.Image == nil {
		return nil
	}
	return []*discordgo.File{{
		Name:        r.Filename,
		ContentType: r.Image.ContentType,
		Reader:      bytes.NewReader(r.Image.Data),
	}}
}

// sendImageReply posts r as a reply to m and remembers the produced image
// as the user's default edit source.
func sendImageReply(s *discordgo.Session, m *discordgo.Message, b *bot.Bot, r imageReply) {
	sent, err := s.ChannelMessageSendComplex(m.ChannelID, &discordgo.MessageSend{
		Content:   r.Content,
		Files:     r.files(),
		Reference: m.Reference(),
	})
	if err != nil {
		b.Log.Warn("failed to send image reply", zap.String("channel_id", m.ChannelID), zap.Error(err))
		return
	}
	if r.Image != nil && len(sent.Attachments) > 0 {
		url := sent.Attachments[0].URL
		b.Memory.UpdateUser(m.GuildID, m.Author.ID, func(st *memory.UserState) { st.LastImageURL = url })
	}
}
