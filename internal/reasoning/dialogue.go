package reasoning

import (
	"context"
	"fmt"
	"strings"

	"github.com/cory-johannsen/destiny/internal/game/dialogue"
)

const reactorSystem = `You voice characters in a survival horror game about an alien serial killer.
Stay in character. Answer in one or two sentences, then rate your reaction.
Reply with labeled lines only:
RESPONSE: your line
EMOTION: scared, happy, suspicious or confused
TRUST_CHANGE: a number from -1 to 1
SUSPICION: a number from 0 to 1`

// Reactor implements dialogue.Reactor with a Completer. The reply text is
// returned unparsed; the dialogue resolver reads its labeled lines.
type Reactor struct {
	c Completer
}

// NewReactor creates a Reactor over c.
func NewReactor(c Completer) *Reactor {
	return &Reactor{c: c}
}

// React asks the model how the speaker answers the player.
func (r *Reactor) React(ctx context.Context, req dialogue.ReactionRequest) (string, error) {
	return r.c.Complete(ctx, reactorSystem, ReactionPrompt(req))
}

// ReactionPrompt renders req as the user turn of a reaction request.
func ReactionPrompt(req dialogue.ReactionRequest) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "You are %s", req.Speaker)
	if req.Role != "" {
		fmt.Fprintf(&sb, ", a %s", strings.ReplaceAll(string(req.Role), "_", " "))
	}
	sb.WriteString(".\n")
	fmt.Fprintf(&sb, "The player just said: %q\n", req.Text)
	fmt.Fprintf(&sb, "Player morality: %s\n", req.Alignment)
	if req.Intent != "" {
		fmt.Fprintf(&sb, "Apparent intent: %s\n", req.Intent)
	}
	if len(req.History) > 0 {
		sb.WriteString("Recent lines:\n")
		for _, l := range req.History {
			fmt.Fprintf(&sb, "%s: %s\n", l.Speaker, l.Text)
		}
	}
	return sb.String()
}
