package gameserver

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/cory-johannsen/destiny/internal/game/dialogue"
	"github.com/cory-johannsen/destiny/internal/game/killer"
	"github.com/cory-johannsen/destiny/internal/game/state"
)

// Dialogue nodes opened when the killer appears.
const (
	FirstEncounterNode  = "killer_first_encounter"
	RepeatEncounterNode = "killer_aggressive"
)

// DialogueHandler handles say, choose and talk, keeping the coordinator's
// alignment and NPC relationships in step with the dialogue resolver.
type DialogueHandler struct {
	dialogue *dialogue.Resolver
	killer   *killer.Engine
	state    *state.Coordinator
	world    *WorldHandler
	logger   *zap.Logger
}

// NewDialogueHandler creates a DialogueHandler with the given dependencies.
//
// Precondition: all arguments must be non-nil.
func NewDialogueHandler(dlg *dialogue.Resolver, eng *killer.Engine, coord *state.Coordinator, world *WorldHandler, logger *zap.Logger) *DialogueHandler {
	return &DialogueHandler{
		dialogue: dlg,
		killer:   eng,
		state:    coord,
		world:    world,
		logger:   logger,
	}
}

// OpenEncounter opens the killer's dialogue for encounter number n.
func (h *DialogueHandler) OpenEncounter(n int) (dialogue.Session, error) {
	node := RepeatEncounterNode
	if n <= 1 {
		node = FirstEncounterNode
	}
	return h.dialogue.Start(node)
}

// Say answers the killer, or the speaker of the open node, with free text.
//
// Postcondition: returns ErrMissingText for blank text.
func (h *DialogueHandler) Say(ctx context.Context, text string) (dialogue.FreeTextResult, error) {
	if strings.TrimSpace(text) == "" {
		return dialogue.FreeTextResult{}, ErrMissingText
	}
	res := h.dialogue.RespondFreeText(ctx, text)
	h.state.SetAlignment(res.Alignment)
	return res, nil
}

// Choose selects an option of the open session. The custom option of an NPC
// conversation takes text.
func (h *DialogueHandler) Choose(ctx context.Context, choiceID, text string) (dialogue.ChoiceResult, error) {
	s, open := h.dialogue.Current()
	var (
		res dialogue.ChoiceResult
		err error
	)
	if choiceID == dialogue.CustomChoice && text != "" {
		res, err = h.dialogue.ChooseCustom(ctx, text)
	} else {
		res, err = h.dialogue.Choose(choiceID)
	}
	if err != nil {
		return dialogue.ChoiceResult{}, err
	}
	h.killer.RecordChoice(choiceID)
	h.state.SetAlignment(res.Alignment)
	if open && s.Kind == dialogue.KindConversation && res.Reply != nil {
		h.state.UpdateNPCRelationship(s.NPC.ID, res.Reply.TrustChange)
	}
	return res, nil
}

// Talk opens a conversation with a bystander of the current visit.
func (h *DialogueHandler) Talk(npcID string) (dialogue.Session, error) {
	n, err := h.world.NPC(npcID)
	if err != nil {
		return dialogue.Session{}, err
	}
	h.state.RegisterNPC(n.ID)
	h.logger.Debug("talking to npc", zap.String("npc", n.ID), zap.String("role", n.Role))
	return h.dialogue.Talk(dialogue.NPC{ID: n.ID, Name: n.Name, Role: dialogue.Role(n.Role)}), nil
}
