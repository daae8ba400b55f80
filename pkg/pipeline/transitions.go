// Package pipeline drives a signal through its lifecycle: new leads get
// drafts, drafts are sent, and engaged leads are closed as won or lost.
package pipeline

import (
	"fmt"
	"strings"

	"github.com/olash/SignalReach-sub000/pkg/domain"
)

type Action string

const (
	ActionGenerateDraft Action = "generate_draft"
	ActionDiscard       Action = "discard"
	ActionRegenerate    Action = "regenerate"
	ActionCopyAndEngage Action = "copy_and_engage"
	ActionArchive       Action = "archive"
	ActionDraftFollowUp Action = "draft_follow_up"
	ActionMarkLost      Action = "mark_lost"
	ActionMarkWon       Action = "mark_won"
	ActionRestore       Action = "restore"
	ActionDelete        Action = "delete"
)

// Effect is a side effect the caller performs or observes for an action.
type Effect string

const (
	EffectGenerateDraft Effect = "generate_draft"
	EffectWriteStatus   Effect = "write_status"
	EffectCopyDraft     Effect = "copy_draft"
	EffectOpenURL       Effect = "open_url"
	EffectCelebrate     Effect = "celebrate"
	EffectDelete        Effect = "delete"
)

type Transition struct {
	From    domain.SignalStatus
	Action  Action
	To      domain.SignalStatus
	Effects []Effect
}

func (t Transition) has(e Effect) bool {
	for _, have := range t.Effects {
		if have == e {
			return true
		}
	}
	return false
}

var transitions = buildTransitions()

func buildTransitions() []Transition {
	ts := []Transition{
		{domain.StatusNew, ActionGenerateDraft, domain.StatusActionRequired, []Effect{EffectGenerateDraft, EffectWriteStatus}},
		{domain.StatusNew, ActionDiscard, domain.StatusDiscarded, []Effect{EffectWriteStatus}},
		{domain.StatusActionRequired, ActionRegenerate, domain.StatusActionRequired, []Effect{EffectGenerateDraft}},
		{domain.StatusActionRequired, ActionCopyAndEngage, domain.StatusEngaged, []Effect{EffectCopyDraft, EffectOpenURL, EffectWriteStatus}},
		{domain.StatusActionRequired, ActionArchive, domain.StatusDiscarded, []Effect{EffectWriteStatus}},
		{domain.StatusEngaged, ActionDraftFollowUp, domain.StatusEngaged, []Effect{EffectGenerateDraft}},
		{domain.StatusEngaged, ActionMarkLost, domain.StatusLost, []Effect{EffectWriteStatus}},
		{domain.StatusEngaged, ActionMarkWon, domain.StatusWon, []Effect{EffectWriteStatus, EffectCelebrate}},
	}
	for _, closed := range []domain.SignalStatus{domain.StatusWon, domain.StatusLost, domain.StatusDiscarded} {
		ts = append(ts,
			Transition{closed, ActionRestore, domain.StatusEngaged, []Effect{EffectWriteStatus}},
			Transition{closed, ActionDelete, "", []Effect{EffectDelete}},
		)
	}
	return ts
}

// Lookup returns the transition for action from status.
func Lookup(from domain.SignalStatus, action Action) (Transition, bool) {
	for _, t := range transitions {
		if t.From == from && t.Action == action {
			return t, true
		}
	}
	return Transition{}, false
}

// AvailableActions lists the actions allowed from status in table order.
func AvailableActions(from domain.SignalStatus) []Action {
	var out []Action
	for _, t := range transitions {
		if t.From == from {
			out = append(out, t.Action)
		}
	}
	return out
}

// ParseAction validates an action label.
func ParseAction(raw string) (Action, error) {
	a := Action(strings.ToLower(strings.TrimSpace(raw)))
	for _, t := range transitions {
		if t.Action == a {
			return a, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownAction, raw)
}
