package reasoning

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/cory-johannsen/destiny/internal/game/killer"
)

const killerSystem = `You are K-7, an alien killer AI hunting a human in a ruined city.
Choose your next move. Reply with labeled lines only:
TYPE: one of CHASE, PSYCH_ATTACK, STALK, NEGOTIATE
MESSAGE: what you say or do, one sentence
STRATEGY: a short name for the approach
OFFER_JOIN: true or false`

// Reasoner implements killer.Reasoner with a Completer.
type Reasoner struct {
	c Completer
}

// NewReasoner creates a Reasoner over c.
func NewReasoner(c Completer) *Reasoner {
	return &Reasoner{c: c}
}

// Decide asks the model for the killer's next move. The engine validates the
// decision type and falls back to its own table when it is unknown.
func (r *Reasoner) Decide(ctx context.Context, req killer.ReasoningRequest) (killer.Decision, error) {
	body, err := json.MarshalIndent(req, "", "  ")
	if err != nil {
		return killer.Decision{}, fmt.Errorf("reasoning: encoding request: %w", err)
	}
	reply, err := r.c.Complete(ctx, killerSystem, "Situation:\n"+string(body))
	if err != nil {
		return killer.Decision{}, err
	}
	return ParseDecision(reply)
}

// ParseDecision reads a decision either as a JSON object or as TYPE:,
// MESSAGE:, STRATEGY: and OFFER_JOIN: lines. Unlabeled lines are ignored.
func ParseDecision(reply string) (killer.Decision, error) {
	trimmed := strings.TrimSpace(reply)
	if strings.HasPrefix(trimmed, "{") {
		var d killer.Decision
		if err := json.Unmarshal([]byte(trimmed), &d); err != nil {
			return killer.Decision{}, fmt.Errorf("reasoning: decoding decision object: %w", err)
		}
		d.Type = killer.DecisionType(strings.ToUpper(string(d.Type)))
		return d, nil
	}
	var d killer.Decision
	for _, line := range strings.Split(trimmed, "\n") {
		label, value, ok := strings.Cut(strings.TrimSpace(line), ":")
		if !ok {
			continue
		}
		value = strings.TrimSpace(value)
		switch strings.ToUpper(strings.TrimSpace(label)) {
		case "TYPE":
			d.Type = killer.DecisionType(strings.ToUpper(value))
		case "MESSAGE":
			d.Message = value
		case "STRATEGY":
			d.Strategy = value
		case "OFFER_JOIN":
			d.OfferJoin, _ = strconv.ParseBool(value)
		}
	}
	if d.Type == "" {
		return killer.Decision{}, fmt.Errorf("reasoning: reply has no TYPE line")
	}
	return d, nil
}
