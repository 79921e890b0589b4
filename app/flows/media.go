package flows

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/Promitpolok/ai-image-telegram-bot/core/telegram/format"

	tele "gopkg.in/telebot.v4"
)

// Telegram caps photo captions at 1024 characters.
const maxCaptionLen = 1000

// promptCaption echoes the user's prompt back as an italic Markdown
// caption, escaped so prompt text cannot break formatting.
func promptCaption(prompt string) string {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return ""
	}
	if len(prompt) > maxCaptionLen {
		prompt = prompt[:maxCaptionLen]
	}
	escaped, err := format.EscapeMarkdown(prompt, format.MarkdownV1)
	if err != nil {
		return prompt
	}
	return "_" + escaped + "_"
}

// Telegram bot API caps downloads at 20 MB anyway.
const maxDownloadBytes = 20 << 20

var errNoImage = errors.New("message carries no image")

// DownloadImage fetches the bytes of the photo (or image document)
// attached to the incoming message.
func DownloadImage(c tele.Context) ([]byte, error) {
	msg := c.Message()
	if msg == nil {
		return nil, errNoImage
	}

	var file *tele.File
	switch {
	case msg.Photo != nil:
		file = &msg.Photo.File
	case msg.Document != nil && strings.HasPrefix(msg.Document.MIME, "image/"):
		file = &msg.Document.File
	default:
		return nil, errNoImage
	}

	rc, err := c.Bot().File(file)
	if err != nil {
		return nil, fmt.Errorf("telegram file download: %w", err)
	}
	defer rc.Close()

	data, err := io.ReadAll(io.LimitReader(rc, maxDownloadBytes))
	if err != nil {
		return nil, fmt.Errorf("telegram file read: %w", err)
	}
	if len(data) == 0 {
		return nil, errors.New("empty file download")
	}
	return data, nil
}
