package router

import (
	"time"

	tg "github.com/Promitpolok/ai-image-telegram-bot/core/telegram"
	"github.com/Promitpolok/ai-image-telegram-bot/core/telegram/middleware"

	tele "gopkg.in/telebot.v4"
)

// Flow defines the minimal interface for a per-user conversation manager.
// When a user has an active flow, free-form text and media updates are
// handed to the manager instead of the command registry.
type Flow interface {
	InProgress(userID int64) bool
	HandleText(c tele.Context) error
	HandleImage(c tele.Context) error
}

// MessageOptions controls fallback behaviour for text/photo/document updates.
type MessageOptions struct {
	UnknownText  tele.HandlerFunc
	UnknownImage tele.HandlerFunc
}

// MessageRoutes builds handlers for text, photo and document routing.
// Commands registered in the registry always win over an active flow, so
// the user can restart or cancel from any step.
func MessageRoutes(flowMgr Flow, reg *tg.Registry, opts MessageOptions) []tg.Route {
	textHandler := func(c tele.Context) error {
		start := time.Now()
		text := c.Text()

		if reg != nil {
			if key, cmd, ok := reg.LookupCommand(text); ok && cmd.Handler != nil {
				name := normalizeHandlerName(key)
				return handleWithSummary(c, name, start, "", "", func() error {
					return cmd.Handler(c)
				})
			}
		}

		if flowMgr != nil && flowMgr.InProgress(c.Sender().ID) {
			return handleWithSummary(c, "flow_text", start, "", "", func() error {
				return flowMgr.HandleText(c)
			})
		}

		if reg != nil {
			if fb := reg.TextFallback(); fb != nil {
				return handleWithSummary(c, "fallback", start, "", "", func() error {
					return fb(c)
				})
			}
		}

		if opts.UnknownText != nil {
			return handleWithSummary(c, "unknown_text", start, "", "", func() error {
				return opts.UnknownText(c)
			})
		}

		logHandlerSummary(c, "unknown_text", start, "skip", "ok", nil)
		return nil
	}

	imageHandler := func(handlerName string) tele.HandlerFunc {
		return func(c tele.Context) error {
			start := time.Now()
			if flowMgr != nil && flowMgr.InProgress(c.Sender().ID) {
				return handleWithSummary(c, handlerName, start, "", "", func() error {
					return flowMgr.HandleImage(c)
				})
			}
			if opts.UnknownImage != nil {
				return handleWithSummary(c, "unexpected_image", start, "", "", func() error {
					return opts.UnknownImage(c)
				})
			}
			logHandlerSummary(c, "unexpected_image", start, "skip", "ok", nil)
			return nil
		}
	}

	return []tg.Route{
		{
			Endpoint: tele.OnText,
			Handler:  middleware.RecoverMiddleware(middleware.LoggerMiddleware(textHandler)),
		},
		{
			Endpoint: tele.OnPhoto,
			Handler:  middleware.RecoverMiddleware(middleware.LoggerMiddleware(imageHandler("flow_photo"))),
		},
		{
			Endpoint: tele.OnDocument,
			Handler:  middleware.RecoverMiddleware(middleware.LoggerMiddleware(imageHandler("flow_document"))),
		},
	}
}
