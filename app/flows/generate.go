package flows

import (
	"context"
	"log/slog"

	"github.com/Promitpolok/ai-image-telegram-bot/app/inference"
	"github.com/Promitpolok/ai-image-telegram-bot/app/session"
	"github.com/Promitpolok/ai-image-telegram-bot/core/logger"
	"github.com/Promitpolok/ai-image-telegram-bot/core/telegram/callbacks"
	tghelpers "github.com/Promitpolok/ai-image-telegram-bot/core/telegram/helpers"
	"github.com/Promitpolok/ai-image-telegram-bot/core/telegram/keyboard"

	tele "gopkg.in/telebot.v4"
)

const ratioCallbackKey = "ratio"

func (m *Manager) ratioMarkup() *tele.ReplyMarkup {
	keys := m.deps.Config.RatioKeys()
	buttons := make([]keyboard.InlineBtn, 0, len(keys))
	for _, key := range keys {
		buttons = append(buttons, keyboard.InlineBtn{
			Text:   m.deps.Config.Ratios[key].Label,
			Unique: ratioCallbackKey,
			Data:   key,
		})
	}
	return keyboard.InlineButtonsNPerRow(buttons, 2)
}

// handleGenerate starts the text-to-image flow by asking for a size.
func (m *Manager) handleGenerate(c tele.Context) error {
	m.deps.Sessions.Begin(c.Sender().ID, session.FlowTextToImage, session.StepAwaitingRatio)
	return tghelpers.SendText(c, msgChooseRatio, &tele.SendOptions{ReplyMarkup: m.ratioMarkup()})
}

// handleRatio lets the user pick a default size outside any flow.
func (m *Manager) handleRatio(c tele.Context) error {
	return tghelpers.SendText(c, msgChooseDefault, &tele.SendOptions{ReplyMarkup: m.ratioMarkup()})
}

// handleRatioCallback consumes a size button press. Inside the
// generation flow it advances to the prompt step; outside it just
// stores the preference.
func (m *Manager) handleRatioCallback(c tele.Context) error {
	userID := c.Sender().ID
	key := callbacks.CallbackPayload(c)
	if _, ok := m.deps.Config.Ratios[key]; !ok {
		logger.Warn(tghelpers.BuildContext(c), "session", "ratio.unknown",
			slog.Int64("user_id", userID),
			slog.String("ratio", key),
		)
		return tghelpers.SendText(c, msgGenericFailure)
	}

	ctx := tghelpers.BuildContext(c)
	if err := m.deps.Store.SetPreferredRatio(ctx, userID, key); err != nil {
		logger.Warn(ctx, "storage", "prefs.save_failed",
			slog.Int64("user_id", userID),
			slog.String("err", err.Error()),
		)
	}

	// Replacing the keyboard message keeps the chat tidy and retires
	// the buttons so a second press cannot double-advance the flow.
	s := m.deps.Sessions.Get(userID)
	if s.Flow != session.FlowTextToImage || s.Step != session.StepAwaitingRatio {
		return tghelpers.EditOrSendMD(c, msgRatioSaved)
	}

	m.deps.Sessions.Update(userID, func(s *session.Session) {
		s.Ratio = key
		s.Step = session.StepAwaitingPrompt
	})
	return tghelpers.EditOrSendMD(c, msgSendPrompt)
}

// generateFromPrompt runs text-to-image once the prompt arrives.
func (m *Manager) generateFromPrompt(c tele.Context, prompt string) error {
	userID := c.Sender().ID
	s := m.deps.Sessions.Get(userID)

	ratioKey := s.Ratio
	if _, ok := m.deps.Config.Ratios[ratioKey]; !ok {
		ratioKey = m.deps.Store.PreferredRatio(tghelpers.BuildContext(c), userID)
	}
	if _, ok := m.deps.Config.Ratios[ratioKey]; !ok {
		ratioKey = m.deps.Config.DefaultRatio
	}
	ratio := m.deps.Config.Ratios[ratioKey]

	hf := m.deps.Config.HuggingFace
	params := inference.GenerateParams{
		GuidanceScale:     hf.GuidanceScale,
		NumInferenceSteps: hf.NumInferenceSteps,
		Width:             ratio.Width,
		Height:            ratio.Height,
	}

	epoch := m.deps.Sessions.Epoch(userID)
	if err := tghelpers.SendText(c, msgGenerating); err != nil {
		return err
	}

	err := m.runInference(c, session.FlowTextToImage, hf.Models.TextToImage, epoch, func(ctx context.Context) error {
		image, err := m.deps.Client.GenerateImage(ctx, prompt, params)
		if err != nil {
			return err
		}
		logger.Info(ctx, "session", "generate.result",
			slog.Int64("user_id", userID),
			slog.String("ratio", ratioKey),
			slog.Int("width", ratio.Width),
			slog.Int("height", ratio.Height),
			slog.Int("bytes", len(image)),
		)
		return tghelpers.SendPhoto(c, image, promptCaption(prompt),
			&tele.SendOptions{ParseMode: tele.ModeMarkdown})
	})
	m.finish(userID)
	return err
}
