package flows

import (
	"context"
	"log/slog"
	"time"

	appconfig "github.com/Promitpolok/ai-image-telegram-bot/app/config"
	"github.com/Promitpolok/ai-image-telegram-bot/app/inference"
	"github.com/Promitpolok/ai-image-telegram-bot/app/session"
	"github.com/Promitpolok/ai-image-telegram-bot/app/storage"
	"github.com/Promitpolok/ai-image-telegram-bot/core/logger"
	tg "github.com/Promitpolok/ai-image-telegram-bot/core/telegram"
	"github.com/Promitpolok/ai-image-telegram-bot/core/telegram/commands"
	tghelpers "github.com/Promitpolok/ai-image-telegram-bot/core/telegram/helpers"

	tele "gopkg.in/telebot.v4"
)

// Generator is the slice of the inference client the flows need.
// Declared here so tests can substitute a fake.
type Generator interface {
	GenerateImage(ctx context.Context, prompt string, params inference.GenerateParams) ([]byte, error)
	TransformImage(ctx context.Context, image []byte, prompt string, params inference.TransformParams) ([]byte, error)
	CaptionImage(ctx context.Context, image []byte) (string, error)
	UpscaleImage(ctx context.Context, image []byte) ([]byte, error)
}

// Deps bundles everything the flow handlers depend on.
type Deps struct {
	Config   *appconfig.Config
	Sessions *session.Store
	Client   Generator
	Store    *storage.Store

	// Download fetches image bytes from an incoming message.
	// Defaults to DownloadImage; injectable for tests.
	Download func(c tele.Context) ([]byte, error)
	// OCR extracts text from image bytes. Defaults to imaging.ExtractText.
	OCR func(ctx context.Context, data []byte) (string, error)

	// Sync runs inference inline instead of in a goroutine. Tests only.
	Sync bool
}

// Manager routes free-form user input to the active flow and owns all
// flow handlers. It implements the message router's Flow interface.
type Manager struct {
	deps Deps
}

// NewManager validates deps and builds a manager.
func NewManager(deps Deps) *Manager {
	if deps.Download == nil {
		deps.Download = DownloadImage
	}
	if deps.OCR == nil {
		deps.OCR = defaultOCR
	}
	return &Manager{deps: deps}
}

// InProgress reports whether the user has an active flow.
func (m *Manager) InProgress(userID int64) bool {
	return m.deps.Sessions.Get(userID).Active()
}

// HandleText feeds a text message to the active flow.
func (m *Manager) HandleText(c tele.Context) error {
	s := m.deps.Sessions.Get(c.Sender().ID)
	switch {
	case s.Flow == session.FlowTextToImage && s.Step == session.StepAwaitingPrompt:
		return m.generateFromPrompt(c, c.Text())
	case s.Flow == session.FlowImageToImage && s.Step == session.StepAwaitingPrompt:
		return m.transformFromPrompt(c, c.Text())
	case s.Step == session.StepAwaitingRatio:
		return tghelpers.SendText(c, msgExpectedRatio)
	case s.Step == session.StepAwaitingImage:
		return tghelpers.SendText(c, msgExpectedPhoto)
	}
	return tghelpers.SendText(c, msgUnknownText)
}

// HandleImage feeds an incoming photo to the active flow.
func (m *Manager) HandleImage(c tele.Context) error {
	s := m.deps.Sessions.Get(c.Sender().ID)
	if s.Step != session.StepAwaitingImage {
		if s.Step == session.StepAwaitingPrompt {
			return tghelpers.SendText(c, msgExpectedPrompt)
		}
		return tghelpers.SendText(c, msgUnexpectedPhoto)
	}

	switch s.Flow {
	case session.FlowImageToImage:
		return m.transformReceiveImage(c)
	case session.FlowCaption:
		return m.captionImage(c)
	case session.FlowOCR:
		return m.ocrImage(c)
	case session.FlowUpscale:
		return m.upscaleImage(c)
	}
	return tghelpers.SendText(c, msgUnexpectedPhoto)
}

// Register wires all commands and callbacks into the registry.
func (m *Manager) Register(reg *tg.Registry) {
	reg.RegisterCommand("/start", commands.Command{
		Handler:     m.handleStart,
		Description: "What this bot can do",
	})
	reg.RegisterCommand("/help", commands.Command{
		Handler:     m.handleHelp,
		Description: "How to use the bot",
	})
	reg.RegisterCommand("/generate", commands.Command{
		Handler:     m.handleGenerate,
		Description: "Create an image from a text prompt",
		Aliases:     []string{"gen"},
	})
	reg.RegisterCommand("/ratio", commands.Command{
		Handler:     m.handleRatio,
		Description: "Set your preferred image size",
	})
	reg.RegisterCommand("/transform", commands.Command{
		Handler:     m.handleTransform,
		Description: "Edit a photo with a text instruction",
	})
	reg.RegisterCommand("/caption", commands.Command{
		Handler:     m.handleCaption,
		Description: "Describe what's in a photo",
	})
	reg.RegisterCommand("/ocr", commands.Command{
		Handler:     m.handleOCR,
		Description: "Read text from a photo",
	})
	reg.RegisterCommand("/upscale", commands.Command{
		Handler:     m.handleUpscale,
		Description: "Enlarge a photo 4x",
	})
	reg.RegisterCommand("/cancel", commands.Command{
		Handler:     m.handleCancel,
		Description: "Stop the current operation",
	})
	reg.RegisterCommand("/stats", commands.Command{
		Handler:     m.handleStats,
		Description: "Usage statistics",
		AdminOnly:   true,
		Hidden:      true,
	})

	_ = reg.RegisterCallback(ratioCallbackKey, m.handleRatioCallback)

	reg.SetTextFallback(func(c tele.Context) error {
		return tghelpers.SendText(c, msgUnknownText)
	})
}

// runInference executes op off the handler goroutine, journals the
// call, and drops the result if the user moved on meanwhile.
func (m *Manager) runInference(c tele.Context, flow session.Flow, model string, epoch uint64, op func(ctx context.Context) error) error {
	userID := c.Sender().ID
	ctx := tghelpers.BuildContext(c)

	work := func() {
		start := time.Now()
		err := op(ctx)
		took := time.Since(start)

		status := "ok"
		if err != nil {
			status = "fail"
		}
		m.deps.Store.RecordRequest(ctx, userID, string(flow), model, status, took)

		if m.deps.Sessions.Stale(userID, epoch) {
			m.deps.Sessions.LogDrop(ctx, userID, flow)
			return
		}

		if err != nil {
			logger.Error(ctx, "session", "flow.failed",
				slog.Int64("user_id", userID),
				slog.String("flow", string(flow)),
				slog.String("model", model),
				slog.Duration("duration", logger.RoundMS(took)),
				slog.String("err", logger.SanitizeLimit(err.Error(), 256)),
			)
			m.deps.Sessions.Set(userID, session.Session{})
			_ = tghelpers.SendText(c, msgGenericFailure)
			return
		}

		logger.Info(ctx, "session", "flow.done",
			slog.Int64("user_id", userID),
			slog.String("flow", string(flow)),
			slog.String("model", model),
			slog.Duration("duration", logger.RoundMS(took)),
		)
	}

	if m.deps.Sync {
		work()
		return nil
	}
	go work()
	return nil
}

// finish resets the user to idle without invalidating the epoch, so a
// result that is being delivered right now is not discarded.
func (m *Manager) finish(userID int64) {
	m.deps.Sessions.Set(userID, session.Session{})
}
