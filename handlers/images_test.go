package handlers

import (
	"context"
	"errors"
	"testing"

	"ceniza-bot/images"
	"ceniza-bot/model"
	"ceniza-bot/stores/usage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeBackend struct {
	generated []images.Request
	edited    []images.Request
	genErr    error
	editErr   error
}

func (f *fakeBackend) Generate(_ context.Context, req images.Request) (*images.Image, error) {
	f.generated = append(f.generated, req)
	if f.genErr != nil {
		return nil, f.genErr
	}
	return &images.Image{Data: []byte("png"), ContentType: "image/png", Model: req.Model, Width: req.Width, Height: req.Height}, nil
}

func (f *fakeBackend) Edit(_ context.Context, req images.Request) (*images.Image, error) {
	f.edited = append(f.edited, req)
	if f.editErr != nil {
		return nil, f.editErr
	}
	return &images.Image{Data: []byte("jpg"), ContentType: "image/jpeg", Model: req.Model, Width: req.Width, Height: req.Height}, nil
}

func (f *fakeBackend) FreeModel() string    { return "flux" }
func (f *fakeBackend) PremiumModel() string { return "nanobanana" }

type fakeQuota struct {
	grant usage.Grant
	err   error
	kinds []usage.Kind
}

func (f *fakeQuota) TryConsume(_ context.Context, _ string, kind usage.Kind) (usage.Grant, error) {
	f.kinds = append(f.kinds, kind)
	return f.grant, f.err
}

func (f *fakeQuota) Limits() model.UsageLimits { return usage.DefaultLimits() }

type fakeDescriber struct {
	desc string
	err  error
	urls []string
}

func (f *fakeDescriber) Describe(_ context.Context, imageURL, _ string) (string, error) {
	f.urls = append(f.urls, imageURL)
	return f.desc, f.err
}

func newTestStudio(q *fakeQuota) (*studio, *fakeBackend, *fakeDescriber) {
	be := &fakeBackend{}
	d := &fakeDescriber{desc: "un slime verde"}
	return &studio{img: be, quota: q, vision: d, log: zap.NewNop()}, be, d
}

func TestDrawUsesFreeModelByDefault(t *testing.T) {
	q := &fakeQuota{}
	st, be, _ := newTestStudio(q)

	r := st.Draw(context.Background(), imageJob{UserID: "u1", Text: "dibuja un slime con sombrero"})
	require.NotNil(t, r.Image)
	require.Len(t, be.generated, 1)
	assert.Equal(t, "flux", be.generated[0].Model)
	assert.Equal(t, "un slime con sombrero", be.generated[0].Prompt)
	assert.Contains(t, r.Content, "Modelo: Fluxeniza")
	assert.Equal(t, "ceniza.png", r.Filename)
	assert.Empty(t, q.kinds, "free draws do not touch the quota")
}

func TestDrawNamedFreeModel(t *testing.T) {
	st, be, _ := newTestStudio(&fakeQuota{})

	st.Draw(context.Background(), imageJob{Text: "un dragón ceniturbo", Width: 100, Height: 5000, Seed: 7})
	require.Len(t, be.generated, 1)
	assert.Equal(t, "turbo", be.generated[0].Model)
	assert.Equal(t, images.MinSize, be.generated[0].Width)
	assert.Equal(t, images.MaxSize, be.generated[0].Height)
	assert.Equal(t, 7, be.generated[0].Seed)
}

func TestDrawPremiumGranted(t *testing.T) {
	q := &fakeQuota{grant: usage.Grant{Granted: true, Remaining: usage.Remaining{Global: 14, Generate: 0}}}
	st, be, _ := newTestStudio(q)

	r := st.Draw(context.Background(), imageJob{UserID: "u1", Text: "un castillo", Premium: true})
	require.Len(t, be.generated, 1)
	assert.Equal(t, "nanobanana", be.generated[0].Model)
	assert.Equal(t, []usage.Kind{usage.KindGenerate}, q.kinds)
	assert.Contains(t, r.Content, "Nanoceniza Pro")
	assert.Contains(t, r.Content, "Tus intentos: 0/1 · Global: 14/15")
}

func TestDrawPremiumDeniedFallsBack(t *testing.T) {
	q := &fakeQuota{grant: usage.Grant{Reason: usage.ReasonUser, Remaining: usage.Remaining{Global: 3}}}
	st, be, _ := newTestStudio(q)

	r := st.Draw(context.Background(), imageJob{UserID: "u1", Text: "un castillo nanoceniza pro"})
	require.Len(t, be.generated, 1)
	assert.Equal(t, "flux", be.generated[0].Model)
	assert.Contains(t, r.Content, "⚠️ Nanoceniza Pro no disponible ahora")
	assert.Contains(t, r.Content, "Modelo: Fluxeniza")
}

func TestDrawPremiumFailureFallsBack(t *testing.T) {
	q := &fakeQuota{grant: usage.Grant{Granted: true}}
	st, be, _ := newTestStudio(q)
	be.genErr = errors.New("502")

	r := st.Draw(context.Background(), imageJob{UserID: "u1", Text: "un castillo", Model: premiumArgValue})
	assert.Len(t, be.generated, 2)
	assert.Equal(t, msgDrawFailed, r.Content)
	assert.Nil(t, r.Image)
}

func TestDrawWithoutPrompt(t *testing.T) {
	st, be, _ := newTestStudio(&fakeQuota{})

	r := st.Draw(context.Background(), imageJob{Text: "@dibujar"})
	assert.Equal(t, msgDrawNoPrompt, r.Content)
	assert.Empty(t, be.generated)
}

func TestEditNeedsSourceAndPrompt(t *testing.T) {
	st, be, _ := newTestStudio(&fakeQuota{})

	assert.Equal(t, msgEditNoImage, st.Edit(context.Background(), imageJob{Text: "pelo rojo"}).Content)
	assert.Equal(t, msgEditNoPrompt, st.Edit(context.Background(), imageJob{SourceURL: "https://cdn/a.png", Text: "edita:"}).Content)
	assert.Empty(t, be.edited)
}

func TestEditPremium(t *testing.T) {
	q := &fakeQuota{grant: usage.Grant{Granted: true, Remaining: usage.Remaining{Global: 10, Edit: 1}}}
	st, be, d := newTestStudio(q)

	r := st.Edit(context.Background(), imageJob{UserID: "u1", SourceURL: "https://cdn/a.png", Text: "pon el pelo rojo"})
	require.Len(t, be.edited, 1)
	assert.Equal(t, "https://cdn/a.png", be.edited[0].SourceURL)
	assert.Equal(t, "nanobanana", be.edited[0].Model)
	assert.Equal(t, "ceniza_edit.jpg", r.Filename)
	assert.Contains(t, r.Content, "Tus intentos: 1/2")
	assert.Empty(t, d.urls)
}

func TestEditFallsBackToDescription(t *testing.T) {
	q := &fakeQuota{grant: usage.Grant{Granted: true}}
	st, be, d := newTestStudio(q)
	be.editErr = errors.New("timeout")

	r := st.Edit(context.Background(), imageJob{UserID: "u1", SourceURL: "https://cdn/a.png", Text: "pon el pelo rojo"})
	require.NotNil(t, r.Image)
	assert.Equal(t, []string{"https://cdn/a.png"}, d.urls)
	require.Len(t, be.generated, 1)
	assert.Equal(t, "flux", be.generated[0].Model)
	assert.Equal(t, images.FallbackEditPrompt("un slime verde", "pon el pelo rojo"), be.generated[0].Prompt)
	assert.Contains(t, r.Content, "Se usó un modelo alternativo")
}

func TestEditQuotaErrorStillEdits(t *testing.T) {
	q := &fakeQuota{err: errors.New("db locked")}
	st, be, d := newTestStudio(q)
	d.err = errors.New("vision down")

	r := st.Edit(context.Background(), imageJob{UserID: "u1", SourceURL: "https://cdn/a.png", Text: "más oscuro"})
	assert.Empty(t, be.edited)
	require.Len(t, be.generated, 1)
	assert.Contains(t, be.generated[0].Prompt, "(no disponible)")
	assert.NotNil(t, r.Image)
}

func TestImageReplyFiles(t *testing.T) {
	assert.Nil(t, imageReply{Content: "x"}.files())

	files := imageReply{Image: &images.Image{Data: []byte("abc"), ContentType: "image/png"}, Filename: "a.png"}.files()
	require.Len(t, files, 1)
	assert.Equal(t, "a.png", files[0].Name)
	assert.Equal(t, "image/png", files[0].ContentType)
}
