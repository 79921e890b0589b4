package session

import (
	"context"
	"log/slog"
	"sync"

	"github.com/Promitpolok/ai-image-telegram-bot/core/logger"
)

// Flow identifies which multi-step operation a user is currently in.
type Flow string

// Known flows. FlowNone means the user is idle.
const (
	FlowNone         Flow = ""
	FlowTextToImage  Flow = "text_to_image"
	FlowImageToImage Flow = "image_to_image"
	FlowCaption      Flow = "caption"
	FlowOCR          Flow = "ocr"
	FlowUpscale      Flow = "upscale"
)

// Step identifies what input the active flow is waiting for.
type Step string

const (
	StepIdle           Step = "idle"
	StepAwaitingRatio  Step = "awaiting_ratio"
	StepAwaitingPrompt Step = "awaiting_prompt"
	StepAwaitingImage  Step = "awaiting_image"
)

// Session is the per-user conversation state. The zero value is idle.
type Session struct {
	Flow Flow
	Step Step
	// Ratio is the selected size preset key for text-to-image.
	Ratio string
	// PendingImage holds a downloaded photo while the flow waits for
	// the follow-up prompt (image-to-image).
	PendingImage []byte
}

// Active reports whether the user is inside a flow.
func (s Session) Active() bool {
	return s.Flow != FlowNone
}

type entry struct {
	session Session
	// epoch increments on every reset so in-flight inference results
	// started under an older session can be discarded.
	epoch uint64
}

// Store keeps per-user sessions in memory. Safe for concurrent use.
type Store struct {
	mu    sync.Mutex
	users map[int64]*entry
}

// NewStore creates an empty session store.
func NewStore() *Store {
	return &Store{users: make(map[int64]*entry)}
}

func (st *Store) get(userID int64) *entry {
	e, ok := st.users[userID]
	if !ok {
		e = &entry{}
		st.users[userID] = e
	}
	return e
}

// Get returns a copy of the user's session. Unknown users get a zero session.
func (st *Store) Get(userID int64) Session {
	st.mu.Lock()
	defer st.mu.Unlock()
	if e, ok := st.users[userID]; ok {
		return e.session
	}
	return Session{}
}

// Set replaces the user's session without bumping the epoch.
func (st *Store) Set(userID int64, s Session) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.get(userID).session = s
}

// Update applies fn to the user's session under the store lock.
func (st *Store) Update(userID int64, fn func(s *Session)) {
	st.mu.Lock()
	defer st.mu.Unlock()
	e := st.get(userID)
	fn(&e.session)
}

// Clear resets the user to idle, releases any pending image, and bumps
// the epoch so late results from the previous flow are dropped.
func (st *Store) Clear(userID int64) {
	st.mu.Lock()
	defer st.mu.Unlock()
	e := st.get(userID)
	if e.session.Active() {
		logger.Debug(context.Background(), "session", "session.clear",
			slog.Int64("user_id", userID),
			slog.String("flow", string(e.session.Flow)),
		)
	}
	e.session = Session{}
	e.epoch++
}

// Begin clears any previous flow and starts a new one. Returns the new
// epoch, which callers hand to background work for staleness checks.
func (st *Store) Begin(userID int64, flow Flow, step Step) uint64 {
	st.mu.Lock()
	defer st.mu.Unlock()
	e := st.get(userID)
	e.session = Session{Flow: flow, Step: step}
	e.epoch++
	return e.epoch
}

// Epoch returns the user's current epoch.
func (st *Store) Epoch(userID int64) uint64 {
	st.mu.Lock()
	defer st.mu.Unlock()
	if e, ok := st.users[userID]; ok {
		return e.epoch
	}
	return 0
}

// Stale reports whether the epoch captured at flow start no longer
// matches the user's current epoch.
func (st *Store) Stale(userID int64, epoch uint64) bool {
	return st.Epoch(userID) != epoch
}

// LogDrop records a discarded late result.
func (st *Store) LogDrop(ctx context.Context, userID int64, flow Flow) {
	logger.Warn(ctx, "session", "result.stale",
		slog.Int64("user_id", userID),
		slog.String("flow", string(flow)),
		slog.String("status", "stale"),
	)
}
