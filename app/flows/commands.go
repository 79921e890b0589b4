package flows

import (
	"fmt"

	tghelpers "github.com/Promitpolok/ai-image-telegram-bot/core/telegram/helpers"

	tele "gopkg.in/telebot.v4"
)

func (m *Manager) handleStart(c tele.Context) error {
	m.deps.Sessions.Clear(c.Sender().ID)
	return tghelpers.SendMD(c, msgStart)
}

func (m *Manager) handleHelp(c tele.Context) error {
	return tghelpers.SendMD(c, msgHelp)
}

func (m *Manager) handleCancel(c tele.Context) error {
	userID := c.Sender().ID
	if !m.deps.Sessions.Get(userID).Active() {
		return tghelpers.SendText(c, msgNothingToCancel)
	}
	m.deps.Sessions.Clear(userID)
	return tghelpers.SendText(c, msgCancelled)
}

func (m *Manager) handleStats(c tele.Context) error {
	ctx := tghelpers.BuildContext(c)
	stats, err := m.deps.Store.GetStats(ctx)
	if err != nil {
		return tghelpers.SendText(c, msgStatsUnavailable)
	}
	text := fmt.Sprintf("Requests: %d\nFailed: %d\nUnique users: %d",
		stats.TotalRequests, stats.FailedRequests, stats.UniqueUsers)
	return tghelpers.SendText(c, text)
}

// AdminReject is the handler used when a non-admin hits an admin command.
func AdminReject(c tele.Context) error {
	return tghelpers.SendText(c, msgAdminOnly)
}

// UnexpectedImage handles photos that arrive outside any flow.
func UnexpectedImage(c tele.Context) error {
	return tghelpers.SendText(c, msgUnexpectedPhoto)
}
