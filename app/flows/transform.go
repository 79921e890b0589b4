package flows

import (
	"context"
	"log/slog"

	"github.com/Promitpolok/ai-image-telegram-bot/app/imaging"
	"github.com/Promitpolok/ai-image-telegram-bot/app/inference"
	"github.com/Promitpolok/ai-image-telegram-bot/app/session"
	"github.com/Promitpolok/ai-image-telegram-bot/core/logger"
	tghelpers "github.com/Promitpolok/ai-image-telegram-bot/core/telegram/helpers"

	tele "gopkg.in/telebot.v4"
)

// Uploads are bounded before they go to the backend; diffusion models
// work on ~1 megapixel inputs anyway and oversized payloads just slow
// the round trip down.
const maxUploadDim = 1024

// handleTransform starts the image-to-image flow by asking for a photo.
func (m *Manager) handleTransform(c tele.Context) error {
	m.deps.Sessions.Begin(c.Sender().ID, session.FlowImageToImage, session.StepAwaitingImage)
	return tghelpers.SendText(c, msgSendPhoto)
}

// transformReceiveImage stores the photo and asks for the instruction.
func (m *Manager) transformReceiveImage(c tele.Context) error {
	userID := c.Sender().ID
	image, err := m.deps.Download(c)
	if err != nil {
		logger.Warn(tghelpers.BuildContext(c), "session", "photo.download_failed",
			slog.Int64("user_id", userID),
			slog.String("err", err.Error()),
		)
		m.deps.Sessions.Clear(userID)
		return tghelpers.SendText(c, msgGenericFailure)
	}

	fitted, err := imaging.Fit(image, maxUploadDim, maxUploadDim)
	if err != nil {
		// Keep the original bytes and let the backend decide.
		logger.Warn(tghelpers.BuildContext(c), "imaging", "photo.fit_failed",
			slog.Int64("user_id", userID),
			slog.Int("bytes", len(image)),
			slog.String("err", err.Error()),
		)
	} else {
		image = fitted
		if w, h, dimErr := imaging.Dimensions(image); dimErr == nil {
			logger.Debug(tghelpers.BuildContext(c), "imaging", "photo.bounded",
				slog.Int64("user_id", userID),
				slog.Int("width", w),
				slog.Int("height", h),
				slog.Int("bytes", len(image)),
			)
		}
	}

	m.deps.Sessions.Update(userID, func(s *session.Session) {
		s.PendingImage = image
		s.Step = session.StepAwaitingPrompt
	})
	return tghelpers.SendText(c, msgSendEditPrompt)
}

// transformFromPrompt runs image-to-image once the instruction arrives.
func (m *Manager) transformFromPrompt(c tele.Context, prompt string) error {
	userID := c.Sender().ID
	s := m.deps.Sessions.Get(userID)
	image := s.PendingImage
	if len(image) == 0 {
		m.deps.Sessions.Clear(userID)
		return tghelpers.SendText(c, msgGenericFailure)
	}

	hf := m.deps.Config.HuggingFace
	params := inference.TransformParams{
		GuidanceScale:     hf.GuidanceScale,
		NumInferenceSteps: hf.NumInferenceSteps,
		Strength:          hf.Strength,
	}

	epoch := m.deps.Sessions.Epoch(userID)
	if err := tghelpers.SendText(c, msgTransforming); err != nil {
		return err
	}

	err := m.runInference(c, session.FlowImageToImage, hf.Models.ImageToImage, epoch, func(ctx context.Context) error {
		result, err := m.deps.Client.TransformImage(ctx, image, prompt, params)
		if err != nil {
			return err
		}
		return tghelpers.SendPhoto(c, result, promptCaption(prompt),
			&tele.SendOptions{ParseMode: tele.ModeMarkdown})
	})
	m.finish(userID)
	return err
}
