package draft

import (
	"fmt"
	"strings"

	"github.com/olash/SignalReach-sub000/pkg/domain"
)

type Tone string

const (
	ToneHelpful      Tone = "helpful"
	ToneProfessional Tone = "professional"
	ToneCasual       Tone = "casual"
	ToneWitty        Tone = "witty"
)

var toneGuidance = map[Tone]string{
	ToneHelpful:      "warm and genuinely helpful, like a knowledgeable peer offering advice",
	ToneProfessional: "polished and professional, confident without being stiff",
	ToneCasual:       "relaxed and conversational, the way people actually talk in comments",
	ToneWitty:        "light and clever, with a touch of humor that never undercuts the help",
}

// ParseTone normalizes a tone label. Unknown labels select ToneHelpful.
func ParseTone(raw string) Tone {
	t := Tone(strings.ToLower(strings.TrimSpace(raw)))
	if _, ok := toneGuidance[t]; ok {
		return t
	}
	return ToneHelpful
}

// Request is the input to one draft generation.
type Request struct {
	PostContext  string
	Platform     string
	Tone         string
	Instructions string
	// PreviousReply, when set, asks for a follow-up to an already sent reply.
	PreviousReply string
}

// BuildPrompt renders the single instruction prompt sent to the model.
func BuildPrompt(req Request) string {
	platform, err := domain.ParsePlatform(req.Platform)
	platformName := platform.DisplayName()
	if err != nil {
		platformName = strings.TrimSpace(req.Platform)
		if platformName == "" {
			platformName = domain.Platform("").DisplayName()
		}
	}
	tone := ParseTone(req.Tone)

	var b strings.Builder
	if prev := strings.TrimSpace(req.PreviousReply); prev != "" {
		fmt.Fprintf(&b, "You already replied to the %s post below. Write a short follow-up that keeps the conversation going.\n\n", platformName)
		fmt.Fprintf(&b, "Post:\n\"\"\"\n%s\n\"\"\"\n\nYour earlier reply:\n\"\"\"\n%s\n\"\"\"\n\n", strings.TrimSpace(req.PostContext), prev)
	} else {
		fmt.Fprintf(&b, "Write a reply to the following %s post.\n\n", platformName)
		fmt.Fprintf(&b, "Post:\n\"\"\"\n%s\n\"\"\"\n\n", strings.TrimSpace(req.PostContext))
	}
	b.WriteString("Rules:\n")
	b.WriteString("- Write exactly one reply and nothing else. No preamble, no options, no explanation.\n")
	b.WriteString("- Do not quote or repeat the original post.\n")
	b.WriteString("- Reference something specific the author said so the reply is clearly about this post.\n")
	b.WriteString("- Be useful first. Do not sound like an advertisement.\n")
	b.WriteString("- End with a soft question or a low-pressure call to action.\n")
	fmt.Fprintf(&b, "- Tone: %s.\n", toneGuidance[tone])
	if platform.IsShortForm() {
		fmt.Fprintf(&b, "- Hard limit: the reply must be under %d characters.\n", domain.ShortFormCharLimit)
	}
	if extra := strings.TrimSpace(req.Instructions); extra != "" {
		fmt.Fprintf(&b, "\nAdditional instructions from the user:\n%s\n", extra)
	}
	return b.String()
}
