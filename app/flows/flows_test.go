package flows

import (
	"bytes"
	"context"
	"image"
	"image/png"
	"net/http"
	"strings"
	"testing"

	appconfig "github.com/Promitpolok/ai-image-telegram-bot/app/config"
	"github.com/Promitpolok/ai-image-telegram-bot/app/imaging"
	"github.com/Promitpolok/ai-image-telegram-bot/app/inference"
	"github.com/Promitpolok/ai-image-telegram-bot/app/session"

	tele "gopkg.in/telebot.v4"
)

// fakeContext implements the slice of tele.Context the flows touch.
// Unimplemented methods panic via the embedded nil interface, which is
// fine: a panic means the flow reached for something unexpected.
type fakeContext struct {
	tele.Context
	user  *tele.User
	text  string
	msg   *tele.Message
	cb    *tele.Callback
	store    map[string]any
	sent     []any
	lastOpts []any
	edits    int
}

func newFakeContext(userID int64) *fakeContext {
	return &fakeContext{
		user:  &tele.User{ID: userID},
		store: map[string]any{},
	}
}

func (f *fakeContext) Sender() *tele.User        { return f.user }
func (f *fakeContext) Chat() *tele.Chat          { return &tele.Chat{ID: f.user.ID} }
func (f *fakeContext) Update() tele.Update       { return tele.Update{ID: 1} }
func (f *fakeContext) Text() string              { return f.text }
func (f *fakeContext) Message() *tele.Message    { return f.msg }
func (f *fakeContext) Callback() *tele.Callback  { return f.cb }
func (f *fakeContext) Get(key string) any        { return f.store[key] }
func (f *fakeContext) Set(key string, value any) { f.store[key] = value }

func (f *fakeContext) Send(what any, opts ...any) error {
	f.sent = append(f.sent, what)
	f.lastOpts = opts
	return nil
}

func (f *fakeContext) EditOrSend(what any, opts ...any) error {
	f.sent = append(f.sent, what)
	f.lastOpts = opts
	f.edits++
	return nil
}

func (f *fakeContext) lastParseMode(t *testing.T) tele.ParseMode {
	t.Helper()
	for _, opt := range f.lastOpts {
		if so, ok := opt.(*tele.SendOptions); ok {
			return so.ParseMode
		}
	}
	return ""
}

func (f *fakeContext) lastText(t *testing.T) string {
	t.Helper()
	for i := len(f.sent) - 1; i >= 0; i-- {
		if s, ok := f.sent[i].(string); ok {
			return s
		}
	}
	t.Fatal("no text message sent")
	return ""
}

func (f *fakeContext) sentPhotos() []*tele.Photo {
	var out []*tele.Photo
	for _, s := range f.sent {
		if p, ok := s.(*tele.Photo); ok {
			out = append(out, p)
		}
	}
	return out
}

// fakeGenerator records inference calls and returns canned results.
type fakeGenerator struct {
	generateParams inference.GenerateParams
	generatePrompt string
	transformInput []byte
	captionText    string
	err            error
	onGenerate     func()
}

func (g *fakeGenerator) GenerateImage(_ context.Context, prompt string, params inference.GenerateParams) ([]byte, error) {
	g.generatePrompt = prompt
	g.generateParams = params
	if g.onGenerate != nil {
		g.onGenerate()
	}
	if g.err != nil {
		return nil, g.err
	}
	return []byte("generated"), nil
}

func (g *fakeGenerator) TransformImage(_ context.Context, image []byte, prompt string, _ inference.TransformParams) ([]byte, error) {
	g.transformInput = image
	if g.err != nil {
		return nil, g.err
	}
	return []byte("transformed"), nil
}

func (g *fakeGenerator) CaptionImage(context.Context, []byte) (string, error) {
	if g.err != nil {
		return "", g.err
	}
	return g.captionText, nil
}

func (g *fakeGenerator) UpscaleImage(context.Context, []byte) ([]byte, error) {
	if g.err != nil {
		return nil, g.err
	}
	return []byte("upscaled"), nil
}

func newTestManager(t *testing.T, gen *fakeGenerator) (*Manager, *session.Store) {
	t.Helper()
	cfg := &appconfig.Config{}
	cfg.Core.Telegram.Token = "123:abc"
	cfg.HuggingFace.Token = "hf_test"
	if err := appconfig.Normalize(cfg); err != nil {
		t.Fatalf("Normalize: %v", err)
	}

	sessions := session.NewStore()
	m := NewManager(Deps{
		Config:   cfg,
		Sessions: sessions,
		Client:   gen,
		Download: func(tele.Context) ([]byte, error) { return []byte("photo-bytes"), nil },
		OCR: func(context.Context, []byte) (string, error) {
			return "extracted text", nil
		},
		Sync: true,
	})
	return m, sessions
}

func pressRatio(c *fakeContext, key string) {
	c.cb = &tele.Callback{Unique: "ratio", Data: key}
}

func TestGenerateFlowEndToEnd(t *testing.T) {
	gen := &fakeGenerator{}
	m, sessions := newTestManager(t, gen)
	c := newFakeContext(1)

	if err := m.handleGenerate(c); err != nil {
		t.Fatalf("handleGenerate: %v", err)
	}
	if got := c.lastText(t); got != msgChooseRatio {
		t.Errorf("after /generate: %q", got)
	}

	pressRatio(c, "portrait")
	if err := m.handleRatioCallback(c); err != nil {
		t.Fatalf("ratio callback: %v", err)
	}
	if got := c.lastText(t); got != msgSendPrompt {
		t.Errorf("after ratio: %q", got)
	}

	c.text = "a red fox"
	if err := m.HandleText(c); err != nil {
		t.Fatalf("HandleText: %v", err)
	}

	if gen.generatePrompt != "a red fox" {
		t.Errorf("prompt = %q", gen.generatePrompt)
	}
	p := gen.generateParams
	if p.Width != 768 || p.Height != 1152 {
		t.Errorf("size = %dx%d, want 768x1152", p.Width, p.Height)
	}
	if p.GuidanceScale != 7.5 || p.NumInferenceSteps != 30 {
		t.Errorf("diffusion params = %v/%v", p.GuidanceScale, p.NumInferenceSteps)
	}
	if len(c.sentPhotos()) != 1 {
		t.Errorf("photos sent = %d", len(c.sentPhotos()))
	}
	if sessions.Get(1).Active() {
		t.Error("session still active after delivery")
	}
}

func TestGenerateFailureSendsGenericMessage(t *testing.T) {
	gen := &fakeGenerator{err: &inference.Error{
		Op: "generate", Model: "m", Status: http.StatusInternalServerError,
	}}
	m, sessions := newTestManager(t, gen)
	c := newFakeContext(1)

	_ = m.handleGenerate(c)
	pressRatio(c, "square")
	_ = m.handleRatioCallback(c)
	c.text = "anything"
	if err := m.HandleText(c); err != nil {
		t.Fatalf("HandleText: %v", err)
	}

	if got := c.lastText(t); got != msgGenericFailure {
		t.Errorf("failure message = %q", got)
	}
	if len(c.sentPhotos()) != 0 {
		t.Error("photo sent despite failure")
	}
	if sessions.Get(1).Active() {
		t.Error("session not reset after failure")
	}
}

func TestFlowRestartDiscardsPendingImage(t *testing.T) {
	gen := &fakeGenerator{}
	m, sessions := newTestManager(t, gen)
	c := newFakeContext(1)

	_ = m.handleTransform(c)
	c.msg = &tele.Message{Photo: &tele.Photo{}}
	if err := m.HandleImage(c); err != nil {
		t.Fatalf("HandleImage: %v", err)
	}
	if len(sessions.Get(1).PendingImage) == 0 {
		t.Fatal("pending image not stored")
	}

	_ = m.handleGenerate(c)

	s := sessions.Get(1)
	if s.Flow != session.FlowTextToImage {
		t.Errorf("flow = %q", s.Flow)
	}
	if s.PendingImage != nil {
		t.Error("pending image survived restart")
	}
}

func TestTransformFlowUsesUploadedImage(t *testing.T) {
	gen := &fakeGenerator{}
	m, _ := newTestManager(t, gen)
	c := newFakeContext(1)

	_ = m.handleTransform(c)
	c.msg = &tele.Message{Photo: &tele.Photo{}}
	_ = m.HandleImage(c)
	if got := c.lastText(t); got != msgSendEditPrompt {
		t.Errorf("after photo: %q", got)
	}

	c.text = "make it snowy"
	if err := m.HandleText(c); err != nil {
		t.Fatalf("HandleText: %v", err)
	}
	if string(gen.transformInput) != "photo-bytes" {
		t.Errorf("transform input = %q", gen.transformInput)
	}
	if len(c.sentPhotos()) != 1 {
		t.Errorf("photos sent = %d", len(c.sentPhotos()))
	}
}

func encodePNG(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, w, h))); err != nil {
		t.Fatalf("encode fixture: %v", err)
	}
	return buf.Bytes()
}

func TestTransformBoundsLargeUpload(t *testing.T) {
	gen := &fakeGenerator{}
	m, _ := newTestManager(t, gen)
	m.deps.Download = func(tele.Context) ([]byte, error) {
		return encodePNG(t, 4000, 3000), nil
	}
	c := newFakeContext(1)

	_ = m.handleTransform(c)
	c.msg = &tele.Message{Photo: &tele.Photo{}}
	if err := m.HandleImage(c); err != nil {
		t.Fatalf("HandleImage: %v", err)
	}
	c.text = "oil painting"
	if err := m.HandleText(c); err != nil {
		t.Fatalf("HandleText: %v", err)
	}

	w, h, err := imaging.Dimensions(gen.transformInput)
	if err != nil {
		t.Fatalf("backend did not receive a decodable image: %v", err)
	}
	if w > 1024 || h > 1024 {
		t.Errorf("backend received %dx%d image, want within 1024x1024", w, h)
	}
	if w != 1024 || h != 768 {
		t.Errorf("got %dx%d, want 1024x768 (aspect preserved)", w, h)
	}
}

func TestTransformKeepsUndecodableUpload(t *testing.T) {
	gen := &fakeGenerator{}
	m, sessions := newTestManager(t, gen)
	c := newFakeContext(1)

	_ = m.handleTransform(c)
	c.msg = &tele.Message{Photo: &tele.Photo{}}
	if err := m.HandleImage(c); err != nil {
		t.Fatalf("HandleImage: %v", err)
	}

	// Download fake returns bytes no codec accepts; the flow must
	// carry on with them rather than abort.
	if got := string(sessions.Get(1).PendingImage); got != "photo-bytes" {
		t.Errorf("pending image = %q", got)
	}
	if got := c.lastText(t); got != msgSendEditPrompt {
		t.Errorf("after photo: %q", got)
	}
}

func TestPhotoWhileAwaitingPromptIsHinted(t *testing.T) {
	gen := &fakeGenerator{}
	m, sessions := newTestManager(t, gen)
	c := newFakeContext(1)

	_ = m.handleTransform(c)
	c.msg = &tele.Message{Photo: &tele.Photo{}}
	_ = m.HandleImage(c)
	before := sessions.Get(1)

	// A second photo while the flow wants a prompt.
	if err := m.HandleImage(c); err != nil {
		t.Fatalf("HandleImage: %v", err)
	}
	if got := c.lastText(t); got != msgExpectedPrompt {
		t.Errorf("hint = %q", got)
	}

	after := sessions.Get(1)
	if after.Flow != before.Flow || after.Step != before.Step {
		t.Errorf("session changed: %+v -> %+v", before, after)
	}
	if string(after.PendingImage) != string(before.PendingImage) {
		t.Error("pending image changed by ignored upload")
	}
	if gen.transformInput != nil {
		t.Error("ignored upload consumed the flow")
	}
}

func TestTextWhileAwaitingImageNudges(t *testing.T) {
	gen := &fakeGenerator{}
	m, sessions := newTestManager(t, gen)
	c := newFakeContext(1)

	_ = m.handleTransform(c)
	c.text = "not a photo"
	if err := m.HandleText(c); err != nil {
		t.Fatalf("HandleText: %v", err)
	}
	if got := c.lastText(t); got != msgExpectedPhoto {
		t.Errorf("nudge = %q", got)
	}
	if sessions.Get(1).Flow != session.FlowImageToImage {
		t.Error("flow aborted by wrong input")
	}
}

func TestCancel(t *testing.T) {
	gen := &fakeGenerator{}
	m, sessions := newTestManager(t, gen)
	c := newFakeContext(1)

	if err := m.handleCancel(c); err != nil {
		t.Fatalf("handleCancel: %v", err)
	}
	if got := c.lastText(t); got != msgNothingToCancel {
		t.Errorf("idle cancel = %q", got)
	}

	_ = m.handleUpscale(c)
	if err := m.handleCancel(c); err != nil {
		t.Fatalf("handleCancel: %v", err)
	}
	if got := c.lastText(t); got != msgCancelled {
		t.Errorf("cancel = %q", got)
	}
	if sessions.Get(1).Active() {
		t.Error("session active after cancel")
	}
}

func TestCancelDuringInferenceDropsResult(t *testing.T) {
	gen := &fakeGenerator{}
	m, sessions := newTestManager(t, gen)
	c := newFakeContext(1)

	// The user cancels while generation is running.
	gen.onGenerate = func() { sessions.Clear(1) }

	_ = m.handleGenerate(c)
	pressRatio(c, "square")
	_ = m.handleRatioCallback(c)
	c.text = "a castle"
	if err := m.HandleText(c); err != nil {
		t.Fatalf("HandleText: %v", err)
	}

	if len(c.sentPhotos()) != 0 {
		t.Error("stale result was delivered")
	}
}

func TestCaptionFlow(t *testing.T) {
	gen := &fakeGenerator{captionText: "a dog on a beach"}
	m, _ := newTestManager(t, gen)
	c := newFakeContext(1)

	_ = m.handleCaption(c)
	c.msg = &tele.Message{Photo: &tele.Photo{}}
	if err := m.HandleImage(c); err != nil {
		t.Fatalf("HandleImage: %v", err)
	}
	if got := c.lastText(t); got != "a dog on a beach" {
		t.Errorf("caption = %q", got)
	}
}

func TestOCRFlow(t *testing.T) {
	gen := &fakeGenerator{}
	m, _ := newTestManager(t, gen)
	c := newFakeContext(1)

	_ = m.handleOCR(c)
	c.msg = &tele.Message{Photo: &tele.Photo{}}
	if err := m.HandleImage(c); err != nil {
		t.Fatalf("HandleImage: %v", err)
	}
	if got := c.lastText(t); got != "extracted text" {
		t.Errorf("ocr = %q", got)
	}
}

func TestOCRUnavailable(t *testing.T) {
	gen := &fakeGenerator{}
	m, _ := newTestManager(t, gen)
	m.deps.OCR = func(context.Context, []byte) (string, error) {
		return "", imaging.ErrOCRUnavailable
	}
	c := newFakeContext(1)

	_ = m.handleOCR(c)
	c.msg = &tele.Message{Photo: &tele.Photo{}}
	if err := m.HandleImage(c); err != nil {
		t.Fatalf("HandleImage: %v", err)
	}
	if got := c.lastText(t); got != msgOCRUnavailable {
		t.Errorf("ocr unavailable = %q", got)
	}
}

func TestRatioOutsideFlowStoresPreferenceOnly(t *testing.T) {
	gen := &fakeGenerator{}
	m, sessions := newTestManager(t, gen)
	c := newFakeContext(1)

	if err := m.handleRatio(c); err != nil {
		t.Fatalf("handleRatio: %v", err)
	}
	pressRatio(c, "wide")
	if err := m.handleRatioCallback(c); err != nil {
		t.Fatalf("ratio callback: %v", err)
	}
	if got := c.lastText(t); got != msgRatioSaved {
		t.Errorf("after ratio save: %q", got)
	}
	if sessions.Get(1).Active() {
		t.Error("/ratio should not start a flow")
	}
}

func TestUserIsolation(t *testing.T) {
	gen := &fakeGenerator{}
	m, sessions := newTestManager(t, gen)
	alice := newFakeContext(1)
	bob := newFakeContext(2)

	_ = m.handleGenerate(alice)
	_ = m.handleCaption(bob)

	_ = m.handleCancel(alice)

	if got := sessions.Get(2).Flow; got != session.FlowCaption {
		t.Errorf("bob's flow = %q after alice cancelled", got)
	}
	if !m.InProgress(2) || m.InProgress(1) {
		t.Error("InProgress mixed up users")
	}
}

func TestUnknownRatioKeyFails(t *testing.T) {
	gen := &fakeGenerator{}
	m, _ := newTestManager(t, gen)
	c := newFakeContext(1)

	_ = m.handleGenerate(c)
	pressRatio(c, "cinema")
	if err := m.handleRatioCallback(c); err != nil {
		t.Fatalf("ratio callback: %v", err)
	}
	if got := c.lastText(t); got != msgGenericFailure {
		t.Errorf("unknown ratio = %q", got)
	}
}

func TestHelpListsCommands(t *testing.T) {
	gen := &fakeGenerator{}
	m, _ := newTestManager(t, gen)
	c := newFakeContext(1)

	if err := m.handleHelp(c); err != nil {
		t.Fatalf("handleHelp: %v", err)
	}
	help := c.lastText(t)
	for _, cmd := range []string{"/generate", "/transform", "/caption", "/ocr", "/upscale", "/cancel"} {
		if !strings.Contains(help, cmd) {
			t.Errorf("help missing %s", cmd)
		}
	}
	if got := c.lastParseMode(t); got != tele.ModeMarkdown {
		t.Errorf("help parse mode = %q, want Markdown", got)
	}
}

func TestStartUsesMarkdown(t *testing.T) {
	gen := &fakeGenerator{}
	m, _ := newTestManager(t, gen)
	c := newFakeContext(1)

	if err := m.handleStart(c); err != nil {
		t.Fatalf("handleStart: %v", err)
	}
	if got := c.lastParseMode(t); got != tele.ModeMarkdown {
		t.Errorf("start parse mode = %q, want Markdown", got)
	}
}

func TestRatioCallbackRetiresKeyboard(t *testing.T) {
	gen := &fakeGenerator{}
	m, _ := newTestManager(t, gen)
	c := newFakeContext(1)

	_ = m.handleGenerate(c)
	pressRatio(c, "square")
	if err := m.handleRatioCallback(c); err != nil {
		t.Fatalf("ratio callback: %v", err)
	}
	if c.edits != 1 {
		t.Errorf("edits = %d, the keyboard message should be replaced in place", c.edits)
	}
	if got := c.lastText(t); got != msgSendPrompt {
		t.Errorf("after ratio: %q", got)
	}
}
