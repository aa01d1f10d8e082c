package console

import (
	"fmt"
	"sort"
	"strings"

	"github.com/cory-johannsen/destiny/internal/game/dialogue"
	"github.com/cory-johannsen/destiny/internal/game/event"
	"github.com/cory-johannsen/destiny/internal/game/evolution"
	"github.com/cory-johannsen/destiny/internal/game/killer"
	"github.com/cory-johannsen/destiny/internal/game/location"
	"github.com/cory-johannsen/destiny/internal/game/state"
	"github.com/cory-johannsen/destiny/internal/game/survival"
	"github.com/cory-johannsen/destiny/internal/gameserver"
)

// Render describes an action outcome as text lines.
func Render(out gameserver.Outcome) []string {
	switch d := out.Data.(type) {
	case gameserver.StartResult:
		lines := []string{fmt.Sprintf("A new night begins for %s (%s).", d.Game.Player.Name, d.Game.Difficulty)}
		return append(lines, renderVisit(d.Visit)...)
	case gameserver.EngagementResult:
		lines := []string{
			d.Message,
			fmt.Sprintf("Encounter %d. You have %s.", d.EncounterNumber, countdown(d.CountdownSeconds)),
		}
		if d.Decision.Message != "" {
			lines = append(lines, d.Decision.Message)
		}
		return append(lines, renderSession(d.Dialogue)...)
	case gameserver.HideResult:
		if d.Hiding == nil {
			return renderSpots(d.Spots)
		}
		lines := []string{fmt.Sprintf("You hide in %s (power %d, stress %d).", d.Hiding.Spot, d.Hiding.HidingPower, d.Hiding.StressLevel)}
		return append(lines, renderReaction(d.Reaction)...)
	case gameserver.AttackResult:
		if d.Attack == nil {
			return renderWeapons(d.Weapons)
		}
		return append(renderAttack(*d.Attack), renderReaction(d.Reaction)...)
	case gameserver.PsychologyResult:
		if d.Attempt == nil && d.Analysis != nil {
			return renderAnalysis(*d.Analysis)
		}
		var lines []string
		if d.Attempt != nil {
			verdict := "fails"
			if d.Attempt.Success {
				verdict = "works"
			}
			lines = append(lines, fmt.Sprintf("Your %s %s.", d.Attempt.Tactic, verdict))
			if d.Attempt.Result != "" {
				lines = append(lines, d.Attempt.Result)
			}
		}
		return append(lines, renderReaction(d.Reaction)...)
	case gameserver.EscapeResult:
		if d.Escape == nil {
			return renderRoutes(d.Routes)
		}
		var lines []string
		if d.Escape.Success {
			lines = append(lines, fmt.Sprintf("You escape via %s. %dm between you and the killer.", d.Escape.Route, d.Escape.SafeDistance))
		} else {
			lines = append(lines, fmt.Sprintf("Your escape via %s fails.", d.Escape.Route))
			if d.Escape.CaughtBy != "" {
				lines = append(lines, d.Escape.CaughtBy)
			}
		}
		lines = append(lines, renderReaction(d.Reaction)...)
		return append(lines, renderSummary(d.Summary)...)
	case gameserver.RespondResult:
		return append(renderReaction(&d.Reaction), renderSummary(d.Summary)...)
	case dialogue.FreeTextResult:
		lines := []string{fmt.Sprintf("%s: %s", d.Speaker, d.Response)}
		if d.Consequence != "" {
			lines = append(lines, d.Consequence)
		}
		return lines
	case dialogue.ChoiceResult:
		return renderChoice(d)
	case dialogue.Session:
		return renderSession(d)
	case gameserver.TravelResult:
		return renderTravel(d)
	case gameserver.SaveResult:
		if d.Info == nil {
			return []string{fmt.Sprintf("Slot %d.", d.Slot)}
		}
		return []string{fmt.Sprintf("Slot %d: %s, playthrough %d, %s.", d.Slot, d.Info.Location, d.Info.Playthrough, d.Info.Timestamp.Format("2006-01-02 15:04"))}
	case gameserver.EndResult:
		return []string{d.Ending.Message, d.Ending.Twist, fmt.Sprintf("Ending: %s", d.Ending.Type)}
	case state.Snapshot:
		return renderSnapshot(d)
	case gameserver.Status:
		lines := renderSnapshot(d.Game)
		lines = append(lines, fmt.Sprintf("Killer: %s, threat %d, %s.", d.Killer.State, d.Killer.ThreatLevel, d.Killer.EmotionalState))
		if d.Killer.CountdownActive {
			lines = append(lines, fmt.Sprintf("Time left: %s.", countdown(d.Killer.CountdownSeconds)))
		}
		return append(lines, renderVisit(d.Visit)...)
	case string:
		return strings.Split(d, "\n")
	}
	return []string{fmt.Sprintf("%s done.", out.Action)}
}

func countdown(secs int) string {
	return fmt.Sprintf("%d:%02d", secs/60, secs%60)
}

func renderVisit(in *location.Instance) []string {
	if in == nil {
		return nil
	}
	lines := []string{in.Name + ".", in.Description}
	if len(in.NPCs) > 0 {
		names := make([]string, 0, len(in.NPCs))
		for _, n := range in.NPCs {
			names = append(names, fmt.Sprintf("%s the %s [%s]", n.Name, n.Role, n.ID))
		}
		lines = append(lines, "People: "+strings.Join(names, ", "))
	}
	if len(in.Hazards) > 0 {
		types := make([]string, 0, len(in.Hazards))
		for _, h := range in.Hazards {
			types = append(types, h.Type)
		}
		lines = append(lines, "Danger: "+strings.Join(types, ", "))
	}
	return lines
}

func renderTravel(d gameserver.TravelResult) []string {
	lines := renderVisit(d.Visit)
	if d.Killer.Atmosphere != "" {
		lines = append(lines, d.Killer.Atmosphere)
	}
	for _, h := range d.Hazards {
		switch {
		case h.Avoided:
			lines = append(lines, fmt.Sprintf("You avoid the %s.", h.Type))
		case h.Damage != nil:
			lines = append(lines, fmt.Sprintf("The %s hurts you: %.0f damage, %d injuries.", h.Type, h.Damage.Damage, h.Damage.Injuries))
		}
	}
	if len(d.Exits) > 0 {
		exits := make([]string, 0, len(d.Exits))
		for _, e := range d.Exits {
			exits = append(exits, string(e))
		}
		lines = append(lines, "Exits: "+strings.Join(exits, ", "))
	}
	return lines
}

func renderSpots(spots []location.HidingSpot) []string {
	lines := []string{"Hiding spots:"}
	for _, s := range spots {
		lines = append(lines, fmt.Sprintf("  %s: %s (power %d)", s.ID, s.Name, s.HidingPower))
	}
	return lines
}

func renderWeapons(weapons []location.Weapon) []string {
	if len(weapons) == 0 {
		return []string{"Nothing here to fight with."}
	}
	lines := []string{"Weapons:"}
	for _, w := range weapons {
		lines = append(lines, fmt.Sprintf("  %s: %s (damage %.0f, accuracy %.0f%%)", w.ID, w.Name, w.Damage, w.Accuracy*100))
	}
	return lines
}

func renderRoutes(routes []location.EscapeRoute) []string {
	if len(routes) == 0 {
		return []string{"There is no way out."}
	}
	lines := []string{"Escape routes:"}
	for _, r := range routes {
		lines = append(lines, fmt.Sprintf("  %s: %s (%s)", r.ID, r.Name, r.DangerRating))
	}
	return lines
}

func renderAttack(a survival.AttackResult) []string {
	var lines []string
	switch {
	case a.Critical:
		lines = append(lines, fmt.Sprintf("Critical hit with the %s: %.0f damage.", a.Weapon, a.Damage))
	case a.Hit:
		lines = append(lines, fmt.Sprintf("You hit with the %s: %.0f damage.", a.Weapon, a.Damage))
	default:
		lines = append(lines, fmt.Sprintf("You miss with the %s.", a.Weapon))
	}
	if a.Broken {
		lines = append(lines, fmt.Sprintf("The %s breaks.", a.Weapon))
	}
	return lines
}

func renderAnalysis(a survival.Analysis) []string {
	lines := []string{
		"Killer profile: " + a.KillerType,
		"Motivations: " + strings.Join(a.Motivations, ", "),
		"Vulnerabilities: " + strings.Join(a.Vulnerabilities, ", "),
	}
	names := make([]string, 0, len(a.Tactics))
	for t := range a.Tactics {
		names = append(names, string(t))
	}
	sort.Strings(names)
	return append(lines, "Tactics: "+strings.Join(names, ", "))
}

func renderReaction(r *killer.Reaction) []string {
	if r == nil || r.Message == "" {
		return nil
	}
	return []string{r.Message}
}

func renderSummary(s *evolution.Summary) []string {
	if s == nil {
		return nil
	}
	lines := []string{fmt.Sprintf("The encounter is over: %s.", s.Outcome)}
	if s.Evolved {
		lines = append(lines, fmt.Sprintf("The killer evolves to level %d.", s.EvolutionLevel))
	}
	return lines
}

func renderSession(s dialogue.Session) []string {
	var lines []string
	for _, l := range s.Lines {
		lines = append(lines, fmt.Sprintf("%s: %s", l.Speaker, l.Text))
	}
	return append(lines, renderChoices(s.Choices)...)
}

func renderChoice(c dialogue.ChoiceResult) []string {
	var lines []string
	switch {
	case c.Reply != nil:
		lines = append(lines, c.Reply.Text)
	case c.Reaction != nil:
		lines = append(lines, fmt.Sprintf("%s: %s", c.Reaction.Speaker, c.Reaction.Response))
	}
	if c.Consequence != "" {
		lines = append(lines, c.Consequence)
	}
	if c.Ended {
		return append(lines, "The conversation ends.")
	}
	return append(lines, renderChoices(c.Choices)...)
}

func renderChoices(choices []dialogue.Choice) []string {
	var lines []string
	for _, c := range choices {
		lines = append(lines, fmt.Sprintf("  [%s] %s", c.ID, c.Text))
	}
	return lines
}

func renderSnapshot(s state.Snapshot) []string {
	return []string{
		fmt.Sprintf("%s: %s, playthrough %d.", s.Player.Name, s.Phase, s.Playthrough),
		fmt.Sprintf("Health %d/%d, stress %d, alignment %s, corruption %d.", s.Player.Health, s.Player.MaxHealth, s.Player.Stress, s.Player.Alignment, s.Player.CorruptionLevel),
		fmt.Sprintf("Encounters %d, wanted level %d.", s.KillerEncounters, s.WantedLevel),
	}
}

// RenderEvent describes the bus events worth showing between actions. Events
// that only echo an action's own outcome render as nothing.
func RenderEvent(ev event.Event) []string {
	switch p := ev.Payload.(type) {
	case event.TimerTickPayload:
		if p.SecondsRemaining > 0 && p.SecondsRemaining%60 == 0 {
			return []string{fmt.Sprintf("%d minutes left.", p.MinutesRemaining)}
		}
	case event.KillerEscalationPayload:
		return []string{p.Message}
	case event.TimerExpiredPayload:
		return []string{"Time is up: " + p.FateMessage}
	case event.HidingDiscoveredPayload:
		return []string{fmt.Sprintf("You are discovered in the %s!", p.SpotName)}
	case event.PlayerDeadPayload:
		return []string{"You are dead."}
	case event.GovernmentResponsePayload:
		return []string{p.Message}
	case event.KillerEvolvedPayload:
		return []string{"The killer has learned from you."}
	case event.AbilityUnlockedPayload:
		return []string{"The killer gains a new ability: " + p.Ability}
	}
	return nil
}
