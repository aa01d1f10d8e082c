package console

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/cory-johannsen/destiny/internal/gameserver"
)

// ErrUnknownCommand is returned by ParseCommand for verbs that are neither
// actions nor aliases.
var ErrUnknownCommand = errors.New("unknown command")

// aliases maps extra verbs onto actions.
var aliases = map[string]gameserver.ActionType{
	"go":      gameserver.ActionTravel,
	"move":    gameserver.ActionTravel,
	"flee":    gameserver.ActionEscape,
	"run":     gameserver.ActionEscape,
	"fight":   gameserver.ActionAttack,
	"analyze": gameserver.ActionPsychology,
	"psych":   gameserver.ActionPsychology,
	"answer":  gameserver.ActionRespond,
	"look":    gameserver.ActionStatus,
}

// argShape says how the words after the verb fill an Action.
type argShape int

const (
	argsNone argShape = iota
	argsTarget
	argsTargetText
	argsText
	argsSlot
)

var shapes = map[gameserver.ActionType]argShape{
	gameserver.ActionStart:      argsTargetText,
	gameserver.ActionEngage:     argsNone,
	gameserver.ActionHide:       argsTarget,
	gameserver.ActionAttack:     argsTarget,
	gameserver.ActionPsychology: argsTargetText,
	gameserver.ActionEscape:     argsTarget,
	gameserver.ActionRespond:    argsTargetText,
	gameserver.ActionSay:        argsText,
	gameserver.ActionChoose:     argsTargetText,
	gameserver.ActionTalk:       argsTarget,
	gameserver.ActionTravel:     argsTarget,
	gameserver.ActionSave:       argsSlot,
	gameserver.ActionLoad:       argsSlot,
	gameserver.ActionReset:      argsNone,
	gameserver.ActionEnd:        argsNone,
	gameserver.ActionPause:      argsNone,
	gameserver.ActionResume:     argsNone,
	gameserver.ActionStatus:     argsNone,
	gameserver.ActionReport:     argsNone,
}

// ParseCommand turns a typed line into an Action. The first word is the verb;
// the rest fill the action's target, text or save slot.
//
// Postcondition: returns ErrUnknownCommand for unrecognised verbs and an
// error for a non-numeric slot.
func ParseCommand(line string) (gameserver.Action, error) {
	verb, rest, _ := strings.Cut(strings.TrimSpace(line), " ")
	verb = strings.ToLower(verb)
	rest = strings.TrimSpace(rest)

	typ, ok := aliases[verb]
	if !ok {
		typ = gameserver.ActionType(verb)
	}
	shape, ok := shapes[typ]
	if !ok {
		return gameserver.Action{}, fmt.Errorf("%w: %q", ErrUnknownCommand, verb)
	}

	a := gameserver.Action{Type: typ}
	switch shape {
	case argsTarget:
		a.Target, _, _ = strings.Cut(rest, " ")
	case argsTargetText:
		a.Target, a.Text, _ = strings.Cut(rest, " ")
		a.Text = strings.TrimSpace(a.Text)
	case argsText:
		a.Text = rest
	case argsSlot:
		if rest != "" {
			slot, err := strconv.Atoi(rest)
			if err != nil {
				return gameserver.Action{}, fmt.Errorf("save slot %q is not a number", rest)
			}
			a.Slot = slot
		}
	}
	return a, nil
}
