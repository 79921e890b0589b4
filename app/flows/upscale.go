package flows

import (
	"context"

	"github.com/Promitpolok/ai-image-telegram-bot/app/imaging"
	"github.com/Promitpolok/ai-image-telegram-bot/app/session"
	tghelpers "github.com/Promitpolok/ai-image-telegram-bot/core/telegram/helpers"

	tele "gopkg.in/telebot.v4"
)

// handleUpscale starts the super-resolution flow.
func (m *Manager) handleUpscale(c tele.Context) error {
	m.deps.Sessions.Begin(c.Sender().ID, session.FlowUpscale, session.StepAwaitingImage)
	return tghelpers.SendText(c, msgSendPhoto)
}

// upscaleImage enlarges the received photo. The result goes back as a
// document so Telegram does not recompress the upscaled pixels.
func (m *Manager) upscaleImage(c tele.Context) error {
	userID := c.Sender().ID
	image, err := m.deps.Download(c)
	if err != nil {
		m.deps.Sessions.Clear(userID)
		return tghelpers.SendText(c, msgGenericFailure)
	}

	hf := m.deps.Config.HuggingFace
	epoch := m.deps.Sessions.Epoch(userID)
	if err := tghelpers.SendText(c, msgUpscaling); err != nil {
		return err
	}

	err = m.runInference(c, session.FlowUpscale, hf.Models.Upscaling, epoch, func(ctx context.Context) error {
		result, err := m.deps.Client.UpscaleImage(ctx, image)
		if err != nil {
			return err
		}
		// The backend's output encoding varies by model; normalize so
		// the file name stays honest.
		if png, convErr := imaging.Convert(result, imaging.FormatPNG); convErr == nil {
			result = png
		}
		return tghelpers.SendDocument(c, result, "upscaled.png", "")
	})
	m.finish(userID)
	return err
}
