package flows

import (
	"context"
	"errors"

	"github.com/Promitpolok/ai-image-telegram-bot/app/imaging"
	"github.com/Promitpolok/ai-image-telegram-bot/app/session"
	tghelpers "github.com/Promitpolok/ai-image-telegram-bot/core/telegram/helpers"

	tele "gopkg.in/telebot.v4"
)

func defaultOCR(ctx context.Context, data []byte) (string, error) {
	return imaging.ExtractText(ctx, data)
}

// handleCaption starts the captioning flow.
func (m *Manager) handleCaption(c tele.Context) error {
	m.deps.Sessions.Begin(c.Sender().ID, session.FlowCaption, session.StepAwaitingImage)
	return tghelpers.SendText(c, msgSendPhoto)
}

// handleOCR starts the text extraction flow.
func (m *Manager) handleOCR(c tele.Context) error {
	m.deps.Sessions.Begin(c.Sender().ID, session.FlowOCR, session.StepAwaitingImage)
	return tghelpers.SendText(c, msgSendPhoto)
}

// captionImage describes the received photo.
func (m *Manager) captionImage(c tele.Context) error {
	userID := c.Sender().ID
	image, err := m.deps.Download(c)
	if err != nil {
		m.deps.Sessions.Clear(userID)
		return tghelpers.SendText(c, msgGenericFailure)
	}

	hf := m.deps.Config.HuggingFace
	epoch := m.deps.Sessions.Epoch(userID)
	if err := tghelpers.SendText(c, msgCaptioning); err != nil {
		return err
	}

	err = m.runInference(c, session.FlowCaption, hf.Models.Captioning, epoch, func(ctx context.Context) error {
		caption, err := m.deps.Client.CaptionImage(ctx, image)
		if err != nil {
			return err
		}
		return tghelpers.SendText(c, caption)
	})
	m.finish(userID)
	return err
}

// ocrImage extracts text locally; no inference API call involved.
func (m *Manager) ocrImage(c tele.Context) error {
	userID := c.Sender().ID
	image, err := m.deps.Download(c)
	if err != nil {
		m.deps.Sessions.Clear(userID)
		return tghelpers.SendText(c, msgGenericFailure)
	}
	defer m.finish(userID)

	ctx := tghelpers.BuildContext(c)
	if err := tghelpers.SendText(c, msgReadingText); err != nil {
		return err
	}

	text, err := m.deps.OCR(ctx, image)
	if err != nil {
		if errors.Is(err, imaging.ErrOCRUnavailable) {
			return tghelpers.SendText(c, msgOCRUnavailable)
		}
		return tghelpers.SendText(c, msgGenericFailure)
	}
	if text == "" {
		return tghelpers.SendText(c, msgOCRNoText)
	}
	return tghelpers.SendText(c, text)
}
