package gameserver

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/cory-johannsen/destiny/internal/game/event"
	"github.com/cory-johannsen/destiny/internal/game/evolution"
	"github.com/cory-johannsen/destiny/internal/game/killer"
	"github.com/cory-johannsen/destiny/internal/game/location"
	"github.com/cory-johannsen/destiny/internal/game/state"
	"github.com/cory-johannsen/destiny/internal/game/survival"
	"github.com/cory-johannsen/destiny/internal/game/tactic"
)

// AwarenessPerEncounter is the government awareness gained by every finished
// encounter.
const AwarenessPerEncounter = 10

// EngageResult is returned by Engage.
type EngageResult struct {
	killer.Engagement
	EncounterNumber int             `json:"encounterNumber"`
	Decision        killer.Decision `json:"decision"`
}

// HideResult is returned by Hide. Spots is set when no spot was named.
type HideResult struct {
	Spots    []location.HidingSpot  `json:"spots,omitempty"`
	Hiding   *survival.HidingResult `json:"hiding,omitempty"`
	Reaction *killer.Reaction       `json:"reaction,omitempty"`
}

// AttackResult is returned by Attack. Weapons is set when no weapon was named.
type AttackResult struct {
	Weapons  []location.Weapon      `json:"weapons,omitempty"`
	Attack   *survival.AttackResult `json:"attack,omitempty"`
	Reaction *killer.Reaction       `json:"reaction,omitempty"`
}

// PsychologyResult is returned by Psychology. Analysis is set when no tactic
// was named.
type PsychologyResult struct {
	Analysis *survival.Analysis         `json:"analysis,omitempty"`
	Attempt  *survival.PsychologyResult `json:"attempt,omitempty"`
	Reaction *killer.Reaction           `json:"reaction,omitempty"`
}

// EscapeResult is returned by Escape. Routes is set when no route was named.
type EscapeResult struct {
	Routes   []location.EscapeRoute `json:"routes,omitempty"`
	Escape   *survival.EscapeResult `json:"escape,omitempty"`
	Reaction *killer.Reaction       `json:"reaction,omitempty"`
	Summary  *evolution.Summary     `json:"summary,omitempty"`
}

// RespondResult is returned by Respond.
type RespondResult struct {
	Reaction killer.Reaction    `json:"reaction"`
	Summary  *evolution.Summary `json:"summary,omitempty"`
}

// fateOutcomes maps a countdown fate onto the encounter result the killer
// learns from.
var fateOutcomes = map[killer.Fate]evolution.Outcome{
	killer.FateEscapedSafely:        evolution.PlayerEscaped,
	killer.FateNegotiationSuccess:   evolution.PlayerEscaped,
	killer.FateWoundedKillerEscaped: evolution.PlayerDefeated,
	killer.FateCapturedOrKilled:     evolution.PlayerKilled,
	killer.FateUnknown:              evolution.PlayerKilled,
}

// severityByWanted selects the government response for a wanted level.
var severityByWanted = map[int]killer.Severity{
	1: killer.SeverityLow,
	2: killer.SeverityMedium,
	3: killer.SeverityMedium,
	4: killer.SeverityHigh,
}

func validateEncounterTables() error {
	var errs []string
	for _, f := range []killer.Fate{killer.FateEscapedSafely, killer.FateNegotiationSuccess, killer.FateWoundedKillerEscaped, killer.FateCapturedOrKilled, killer.FateUnknown} {
		if _, ok := fateOutcomes[f]; !ok {
			errs = append(errs, fmt.Sprintf("fate %s has no outcome", f))
		}
	}
	for lvl := 1; lvl <= 4; lvl++ {
		if _, ok := severityByWanted[lvl]; !ok {
			errs = append(errs, fmt.Sprintf("wanted level %d has no severity", lvl))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("gameserver: encounter tables invalid: %s", strings.Join(errs, "; "))
	}
	return nil
}

// EncounterHandler runs the player's side of a killer encounter and closes
// the encounter when it ends, whichever way it ends.
type EncounterHandler struct {
	killer    *killer.Engine
	survival  *survival.Resolver
	evolution *evolution.Tracker
	state     *state.Coordinator
	logger    *zap.Logger

	mu        sync.Mutex
	telemetry killer.Telemetry
	last      tactic.ID
	closed    map[string]bool
}

// NewEncounterHandler creates an EncounterHandler with the given dependencies.
//
// Precondition: all arguments must be non-nil.
func NewEncounterHandler(eng *killer.Engine, surv *survival.Resolver, evo *evolution.Tracker, coord *state.Coordinator, logger *zap.Logger) *EncounterHandler {
	return &EncounterHandler{
		killer:    eng,
		survival:  surv,
		evolution: evo,
		state:     coord,
		logger:    logger,
		closed:    make(map[string]bool),
	}
}

// Attach subscribes the handler to the events that end an encounter.
func (h *EncounterHandler) Attach(bus state.Bus) (detach func()) {
	unsubs := []func(){
		bus.Subscribe(event.TimerExpired, h.onTimerExpired),
		bus.Subscribe(event.PlayerDead, h.onPlayerDead),
		bus.Subscribe(event.HidingDiscovered, h.onHidingDiscovered),
	}
	return func() {
		for _, u := range unsubs {
			u()
		}
	}
}

// Telemetry is the killer's view of the player when the countdown runs out.
// Hiding intensity is read live so a discovered or abandoned hiding spot
// no longer counts.
func (h *EncounterHandler) Telemetry() (killer.Telemetry, bool) {
	h.mu.Lock()
	t := h.telemetry
	h.mu.Unlock()
	t.HidingIntensity = h.survival.HidingIntensity()
	return t, true
}

func (h *EncounterHandler) observe(fn func(t *killer.Telemetry)) {
	h.mu.Lock()
	fn(&h.telemetry)
	h.mu.Unlock()
}

// record feeds a player tactic to the evolution tracker while an encounter runs.
func (h *EncounterHandler) record(id tactic.ID, succeeded bool) {
	if !h.killer.Encounter().Active {
		return
	}
	h.mu.Lock()
	h.last = id
	h.mu.Unlock()
	h.evolution.RecordPlayerTactic(id, succeeded, map[string]string{
		"location": string(h.state.Player().Location),
	})
}

// playerContext describes the player to the killer.
func (h *EncounterHandler) playerContext() killer.PlayerContext {
	p := h.state.Player()
	s := h.survival.Status()
	return killer.PlayerContext{
		Name:       p.Name,
		Psychology: string(p.Alignment),
		Location:   string(p.Location),
		Extra: map[string]string{
			"stress":   fmt.Sprint(s.Stress),
			"injuries": fmt.Sprint(s.Injuries),
			"hiding":   fmt.Sprint(s.Hiding != ""),
		},
	}
}

// Engage starts a killer encounter at the player's location.
//
// Postcondition: returns killer.ErrAlreadyEngaged without any change while an
// encounter runs.
func (h *EncounterHandler) Engage(ctx context.Context) (EngageResult, error) {
	if h.survival.Status().Dead {
		return EngageResult{}, survival.ErrPlayerDead
	}
	pc := h.playerContext()
	eng, err := h.killer.InitiateEngagement(ctx, pc)
	if err != nil {
		return EngageResult{}, err
	}
	h.mu.Lock()
	h.telemetry = killer.Telemetry{}
	h.last = ""
	h.mu.Unlock()

	res := EngageResult{Engagement: eng}
	res.EncounterNumber = h.state.EncounterKiller(string(eng.KillerState))
	if mem := h.killer.Memory(); len(mem) > 0 {
		res.Decision = mem[len(mem)-1].Context
	}
	return res, nil
}

// Hide lists the hiding spots of the current location when spotID is empty,
// otherwise hides there.
func (h *EncounterHandler) Hide(spotID string) (HideResult, error) {
	loc := h.state.Player().Location
	if spotID == "" {
		return HideResult{Spots: h.survival.SearchHidingSpots(loc)}, nil
	}
	res, err := h.survival.ExecuteHiding(spotID)
	if err != nil {
		return HideResult{}, err
	}
	h.record(tactic.HidingInCrowds, true)
	r := h.react(killer.ActionHide, "")
	return HideResult{Hiding: &res, Reaction: r}, nil
}

// Attack lists the weapons at hand when weaponID is empty, otherwise attacks
// the killer with it.
func (h *EncounterHandler) Attack(weaponID string) (AttackResult, error) {
	loc := h.state.Player().Location
	if weaponID == "" {
		return AttackResult{Weapons: h.survival.FindWeapons(loc)}, nil
	}
	res, err := h.survival.AttackKiller(weaponID)
	if err != nil {
		return AttackResult{}, err
	}
	h.observe(func(t *killer.Telemetry) {
		t.AttemptedAttack = true
		t.DamageDealt += res.Damage
		t.DistanceFromKiller = 0
	})
	h.record(tactic.DirectCombat, res.Hit)
	r := h.react(killer.ActionAttack, "")
	return AttackResult{Attack: &res, Reaction: r}, nil
}

// Psychology analyses the killer when name is empty, otherwise tries the
// named tactic with message.
func (h *EncounterHandler) Psychology(name, message string) (PsychologyResult, error) {
	if name == "" {
		a := h.survival.AnalyzeKillerPsychology()
		return PsychologyResult{Analysis: &a}, nil
	}
	res, err := h.survival.ExecutePsychologyTactic(survival.PsychTactic(strings.ToLower(name)), message)
	if err != nil {
		return PsychologyResult{}, err
	}
	h.observe(func(t *killer.Telemetry) { t.PsychologySuccess = res.Success })
	h.record(tactic.PsychologyManipulation, res.Success)
	r := h.react(killer.ActionPsychology, message)
	return PsychologyResult{Attempt: &res, Reaction: r}, nil
}

// Escape lists the escape routes of the current location when routeID is
// empty, otherwise flees along it. A successful escape closes the encounter;
// a failed one still puts the ground covered between player and killer.
func (h *EncounterHandler) Escape(routeID string) (EscapeResult, error) {
	loc := h.state.Player().Location
	if routeID == "" {
		return EscapeResult{Routes: h.survival.FindEscapeRoute(loc)}, nil
	}
	res, err := h.survival.AttemptEscape(routeID)
	if err != nil {
		return EscapeResult{}, err
	}
	out := EscapeResult{Escape: &res, Reaction: h.react(killer.ActionFlee, "")}
	if !res.Success {
		h.observe(func(t *killer.Telemetry) {
			t.DistanceFromKiller = max(t.DistanceFromKiller, float64(res.GroundCovered))
		})
		return out, nil
	}
	h.observe(func(t *killer.Telemetry) { t.DistanceFromKiller = survival.SafeDistance })
	h.mu.Lock()
	last := h.last
	h.mu.Unlock()
	out.Summary = h.close(evolution.PlayerEscaped, last)
	return out, nil
}

// Respond answers the killer directly. JOIN ends the encounter with the
// player at the killer's side.
//
// Precondition: an encounter is active; otherwise ErrNoEncounter is returned
// and nothing changes.
func (h *EncounterHandler) Respond(action, text string) (RespondResult, error) {
	a := killer.Action(strings.ToUpper(action))
	known := false
	for _, k := range killer.Actions {
		known = known || k == a
	}
	if !known {
		return RespondResult{}, fmt.Errorf("%w: %q", ErrUnknownResponse, action)
	}
	enc := h.killer.Encounter()
	if !enc.Active {
		return RespondResult{}, ErrNoEncounter
	}
	if a == killer.ActionNegotiate || a == killer.ActionPsychology {
		h.record(tactic.PsychologyManipulation, true)
	}
	res := RespondResult{Reaction: h.killer.PlayerResponds(a, text)}
	if a == killer.ActionJoin {
		h.state.UpdatePlayer(func(p *state.Player) {
			p.JoinedKiller = true
			p.CorruptionLevel += state.CorruptionThreshold
		})
		// Joining already ended the encounter on the killer's side.
		h.killer.Stop()
		h.survival.EndHiding()
		res.Summary = h.closeEncounter(enc.ID, evolution.PlayerJoined, "")
	}
	return res, nil
}

// react passes a player action to the killer while an encounter runs.
func (h *EncounterHandler) react(a killer.Action, text string) *killer.Reaction {
	if !h.killer.Encounter().Active {
		return nil
	}
	r := h.killer.PlayerResponds(a, text)
	return &r
}

func (h *EncounterHandler) onTimerExpired(e event.Event) {
	p, ok := e.Payload.(event.TimerExpiredPayload)
	if !ok {
		return
	}
	fate := killer.Fate(p.FateMessage)
	outcome, ok := fateOutcomes[fate]
	if !ok {
		outcome = evolution.PlayerKilled
	}
	var escape tactic.ID
	switch fate {
	case killer.FateNegotiationSuccess:
		escape = tactic.PsychologyManipulation
	case killer.FateEscapedSafely:
		h.mu.Lock()
		escape = h.last
		h.mu.Unlock()
	}
	h.survival.EndHiding()
	h.closeEncounter(p.EncounterID, outcome, escape)
	if outcome == evolution.PlayerKilled {
		h.survival.TakeDamage(survival.FatalInjuries * survival.InjuryDamage)
	}
}

func (h *EncounterHandler) onPlayerDead(event.Event) {
	h.close(evolution.PlayerKilled, "")
}

// onHidingDiscovered puts the killer back on top of the player.
func (h *EncounterHandler) onHidingDiscovered(event.Event) {
	h.observe(func(t *killer.Telemetry) { t.DistanceFromKiller = 0 })
}

// close ends the active encounter with outcome. It is a no-op when no
// encounter is active, so an encounter that already timed out or was
// stopped by a load is never reported twice.
func (h *EncounterHandler) close(outcome evolution.Outcome, escape tactic.ID) *evolution.Summary {
	enc, ok := h.killer.End()
	if !ok {
		return nil
	}
	h.survival.EndHiding()
	return h.closeEncounter(enc.ID, outcome, escape)
}

// closeEncounter reports encounter id to the learners once; later calls for
// the same encounter return nil.
func (h *EncounterHandler) closeEncounter(id string, outcome evolution.Outcome, escape tactic.ID) *evolution.Summary {
	h.mu.Lock()
	if h.closed[id] {
		h.mu.Unlock()
		return nil
	}
	h.closed[id] = true
	h.mu.Unlock()

	sum := h.evolution.ProcessEncounterResult(evolution.Result{
		Outcome:      outcome,
		EscapeTactic: escape,
		Context:      map[string]string{"encounter_id": id},
	})
	h.killer.LearnFromEncounter(killer.EncounterRecord{EncounterID: id, Outcome: string(outcome)})

	before := h.state.Snapshot().WantedLevel
	h.state.UpdateGovernmentAwareness(AwarenessPerEncounter)
	if after := h.state.Snapshot().WantedLevel; after > before {
		if _, err := h.killer.TriggerGovernmentResponse(severityByWanted[after]); err != nil {
			h.logger.Warn("government response failed", zap.Error(err))
		}
	}
	h.logger.Info("encounter closed",
		zap.String("encounter_id", id),
		zap.String("outcome", string(outcome)),
	)
	return &sum
}

// Reset forgets the telemetry of the current encounter. Closed encounter IDs
// are kept so a late expiry from before the reset is still ignored.
func (h *EncounterHandler) Reset() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.telemetry = killer.Telemetry{}
	h.last = ""
}
