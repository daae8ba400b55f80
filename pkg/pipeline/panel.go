package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/olash/SignalReach-sub000/internal/metrics"
	"github.com/olash/SignalReach-sub000/internal/util"
	"github.com/olash/SignalReach-sub000/pkg/domain"
	"github.com/olash/SignalReach-sub000/pkg/draft"
)

var (
	ErrUnknownAction      = errors.New("unknown action")
	ErrInvalidTransition  = errors.New("action not allowed from current status")
	ErrDraftUnavailable   = errors.New("draft unavailable, please retry")
	ErrOverCharacterLimit = errors.New("draft exceeds the platform character limit")
	ErrNoDraft            = errors.New("no draft to send")
	ErrPanelClosed        = errors.New("panel closed")
	ErrPanelBusy          = errors.New("another action is in progress")
)

// Drafter produces reply text for a post.
type Drafter interface {
	Generate(ctx context.Context, req draft.Request) (string, error)
}

// SignalWriter persists lifecycle changes.
type SignalWriter interface {
	UpdateSignal(id string, update domain.SignalUpdate) error
	DeleteSignal(id string) error
}

// Outcome describes an applied action.
type Outcome struct {
	Action    Action        `json:"action"`
	Signal    domain.Signal `json:"signal"`
	Effects   []Effect      `json:"effects"`
	Draft     string        `json:"draft,omitempty"`
	Drafts    []string      `json:"drafts,omitempty"`
	CharCount int           `json:"charCount"`
	OverLimit bool          `json:"overLimit"`
	Deleted   bool          `json:"deleted,omitempty"`
	// Discarded marks a generation that finished after the panel was closed.
	Discarded bool `json:"-"`
}

// Panel holds the working state for one open signal. It is safe for
// concurrent use; only one action runs at a time and no lock is held while
// calling the drafter or the writer.
type Panel struct {
	mu      sync.Mutex
	signal  domain.Signal
	drafts  []string
	current int
	closed  bool
	busy    bool

	drafter      Drafter
	writer       SignalWriter
	metrics      *metrics.Metrics
	onChange     func(domain.Signal, bool)
	tone         string
	instructions string
}

type PanelOption func(*Panel)

// WithOnChange registers fn to run after every persisted status change or
// delete. The bool reports a delete.
func WithOnChange(fn func(sig domain.Signal, deleted bool)) PanelOption {
	return func(p *Panel) { p.onChange = fn }
}

func WithMetrics(m *metrics.Metrics) PanelOption {
	return func(p *Panel) { p.metrics = m }
}

// WithDrafts seeds the draft list, selecting the last one.
func WithDrafts(drafts ...string) PanelOption {
	return func(p *Panel) {
		p.drafts = append([]string(nil), drafts...)
		p.current = len(p.drafts) - 1
	}
}

func NewPanel(sig domain.Signal, drafter Drafter, writer SignalWriter, opts ...PanelOption) *Panel {
	p := &Panel{signal: sig, drafter: drafter, writer: writer, current: -1}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Panel) Signal() domain.Signal {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.signal
}

func (p *Panel) Drafts() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.drafts...)
}

// CurrentDraft returns the selected draft.
func (p *Panel) CurrentDraft() (string, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.currentLocked()
}

func (p *Panel) currentLocked() (string, bool) {
	if p.current < 0 || p.current >= len(p.drafts) {
		return "", false
	}
	return p.drafts[p.current], true
}

// SelectDraft moves the pointer over the draft list.
func (p *Panel) SelectDraft(i int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if i < 0 || i >= len(p.drafts) {
		return fmt.Errorf("draft index %d out of range", i)
	}
	p.current = i
	return nil
}

// SetCurrentDraft replaces the selected draft with edited text, or appends
// it when the list is empty.
func (p *Panel) SetCurrentDraft(text string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.currentLocked(); !ok {
		p.drafts = append(p.drafts, text)
		p.current = len(p.drafts) - 1
		return
	}
	p.drafts[p.current] = text
}

// SetDraftOptions sets tone and extra instructions for later generations.
func (p *Panel) SetDraftOptions(tone, instructions string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.tone = tone
	p.instructions = instructions
}

func (p *Panel) CharCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	d, _ := p.currentLocked()
	return utf8.RuneCountInString(d)
}

// OverLimit reports whether the current draft breaks the platform's
// character limit. Only short-form platforms have one.
func (p *Panel) OverLimit() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.overLimitLocked()
}

func (p *Panel) overLimitLocked() bool {
	if !p.signal.Platform.IsShortForm() {
		return false
	}
	d, _ := p.currentLocked()
	return utf8.RuneCountInString(d) > domain.ShortFormCharLimit
}

// CanSend reports whether copy_and_engage is currently enabled.
func (p *Panel) CanSend() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.sendErrLocked() == nil
}

func (p *Panel) sendErrLocked() error {
	if p.signal.Status != domain.StatusActionRequired {
		return ErrInvalidTransition
	}
	d, ok := p.currentLocked()
	if !ok || strings.TrimSpace(d) == "" {
		return ErrNoDraft
	}
	if p.overLimitLocked() {
		return ErrOverCharacterLimit
	}
	return nil
}

// Close marks the panel closed. In-flight generations are not cancelled but
// their results are dropped.
func (p *Panel) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
}

// Do applies action. Drafter failures leave the status and the draft list
// untouched; writer failures leave the local signal untouched.
func (p *Panel) Do(ctx context.Context, action Action) (Outcome, error) {
	out, err := p.do(ctx, action)
	result := "ok"
	switch {
	case err != nil:
		result = "error"
	case out.Discarded:
		result = "discarded"
	}
	p.metrics.IncSignalAction(string(action), result)
	return out, err
}

func (p *Panel) do(ctx context.Context, action Action) (Outcome, error) {
	logger := util.LoggerFromContext(ctx)

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return Outcome{}, ErrPanelClosed
	}
	if p.busy {
		p.mu.Unlock()
		return Outcome{}, ErrPanelBusy
	}
	t, ok := Lookup(p.signal.Status, action)
	if !ok {
		from := p.signal.Status
		p.mu.Unlock()
		return Outcome{}, fmt.Errorf("%w: %s from %s", ErrInvalidTransition, action, from)
	}
	if action == ActionCopyAndEngage {
		if err := p.sendErrLocked(); err != nil {
			p.mu.Unlock()
			return Outcome{}, err
		}
	}
	sig := p.signal
	sent, _ := p.currentLocked()
	req := draft.Request{
		PostContext:  sig.Content,
		Platform:     string(sig.Platform),
		Tone:         p.tone,
		Instructions: p.instructions,
	}
	if action == ActionDraftFollowUp {
		req.PreviousReply = sig.ReplyText
	}
	p.busy = true
	p.mu.Unlock()
	defer func() {
		p.mu.Lock()
		p.busy = false
		p.mu.Unlock()
	}()

	var generated string
	if t.has(EffectGenerateDraft) {
		text, err := p.drafter.Generate(ctx, req)
		if err != nil {
			logger.Warn("signal draft failed", "signal_id", sig.ID, "action", action, "err", err)
			return Outcome{}, fmt.Errorf("%w: %w", ErrDraftUnavailable, err)
		}
		p.mu.Lock()
		closed := p.closed
		p.mu.Unlock()
		if closed {
			logger.Info("late draft discarded", "signal_id", sig.ID)
			return Outcome{Action: action, Signal: sig, Discarded: true}, nil
		}
		generated = text
	}

	switch {
	case t.has(EffectDelete):
		if err := p.writer.DeleteSignal(sig.ID); err != nil {
			return Outcome{}, fmt.Errorf("delete signal: %w", err)
		}
	case t.has(EffectWriteStatus):
		to := t.To
		update := domain.SignalUpdate{Status: &to}
		if action == ActionCopyAndEngage {
			update.ReplyText = &sent
		}
		if err := p.writer.UpdateSignal(sig.ID, update); err != nil {
			return Outcome{}, fmt.Errorf("update signal status: %w", err)
		}
	}

	p.mu.Lock()
	if generated != "" {
		p.drafts = append(p.drafts, generated)
		p.current = len(p.drafts) - 1
	}
	deleted := t.has(EffectDelete)
	if t.has(EffectWriteStatus) {
		p.signal.Status = t.To
		p.signal.UpdatedAt = time.Now().UTC()
		if action == ActionCopyAndEngage {
			p.signal.ReplyText = sent
		}
	}
	current, _ := p.currentLocked()
	out := Outcome{
		Action:    action,
		Signal:    p.signal,
		Effects:   append([]Effect(nil), t.Effects...),
		Draft:     current,
		Drafts:    append([]string(nil), p.drafts...),
		CharCount: utf8.RuneCountInString(current),
		OverLimit: p.overLimitLocked(),
		Deleted:   deleted,
	}
	notify := p.onChange
	p.mu.Unlock()

	if notify != nil && (deleted || t.has(EffectWriteStatus)) {
		notify(out.Signal, deleted)
	}
	logger.Info("signal action applied", "signal_id", sig.ID, "action", action, "from", t.From, "to", out.Signal.Status)
	return out, nil
}
