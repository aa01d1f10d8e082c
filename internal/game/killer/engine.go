package killer

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cory-johannsen/destiny/internal/game/clock"
	"github.com/cory-johannsen/destiny/internal/game/dice"
	"github.com/cory-johannsen/destiny/internal/game/event"
	"github.com/cory-johannsen/destiny/internal/game/location"
)

const (
	// BaseCountdown is the shortest countdown in seconds.
	BaseCountdown = 300
	// CountdownJitter is the largest extra countdown in seconds.
	CountdownJitter = 180
	// TickInterval is the countdown cadence.
	TickInterval = time.Second
	// DefaultReasoningTimeout bounds a Reasoner call.
	DefaultReasoningTimeout = 5 * time.Second
	// MinThreat and MaxThreat bound the threat level.
	MinThreat = 1
	MaxThreat = 10
	// MemoryWindow is how many recent decisions a Reasoner sees.
	MemoryWindow = 5
	// LearnEvery is the number of recorded encounters per learning step.
	LearnEvery = 3
)

// Traits are the killer's runtime characteristics.
type Traits struct {
	Name            string      `json:"name"`
	ThreatLevel     int         `json:"threatLevel"`
	HunterInstinct  float64     `json:"hunterInstinct"`
	Emotion         Emotion     `json:"emotionalState"`
	Adaptability    float64     `json:"adaptability"`
	Psychopathy     float64     `json:"psychopathy"`
	Resourcefulness float64     `json:"resourcefulness"`
	Patience        float64     `json:"patience"`
	Cruelty         float64     `json:"cruelty"`
	Location        location.ID `json:"location"`
}

// DefaultTraits returns the killer as it is first met.
func DefaultTraits() Traits {
	return Traits{
		Name:            "K-7 (Codename: Reaper)",
		ThreatLevel:     MinThreat,
		HunterInstinct:  0.9,
		Emotion:         EmotionPredatory,
		Adaptability:    0.88,
		Psychopathy:     0.95,
		Resourcefulness: 0.92,
		Patience:        0.85,
		Cruelty:         0.90,
		Location:        location.StartingLocation,
	}
}

// PlayerContext describes the player to the decision logic.
type PlayerContext struct {
	Name       string            `json:"name"`
	Psychology string            `json:"psychology,omitempty"`
	Location   string            `json:"location,omitempty"`
	Extra      map[string]string `json:"extra,omitempty"`
}

// Telemetry is the last known player situation used to judge their fate.
type Telemetry struct {
	HidingIntensity    float64 `json:"hidingIntensity"`
	DistanceFromKiller float64 `json:"distanceFromKiller"`
	PsychologySuccess  bool    `json:"psychologyAttemptSuccess"`
	AttemptedAttack    bool    `json:"attemptedAttack"`
	DamageDealt        float64 `json:"damageDealt"`
}

// TelemetryProvider supplies Telemetry when an encounter times out. ok is
// false when no player telemetry is available.
type TelemetryProvider interface {
	Telemetry() (t Telemetry, ok bool)
}

// TelemetryFunc adapts a function to TelemetryProvider.
type TelemetryFunc func() (Telemetry, bool)

func (f TelemetryFunc) Telemetry() (Telemetry, bool) { return f() }

// ThreatAssessment is the part of the killer's traits a Reasoner sees.
type ThreatAssessment struct {
	HunterInstinct float64 `json:"hunterInstinct"`
	Psychopathy    float64 `json:"psychopathy"`
	Adaptability   float64 `json:"adaptability"`
}

// ReasoningRequest is the input to an external Reasoner.
type ReasoningRequest struct {
	KillerState      State            `json:"killerState"`
	PlayerBehavior   PlayerContext    `json:"playerBehavior"`
	Memory           []MemoryEntry    `json:"memory"`
	ThreatAssessment ThreatAssessment `json:"threatAssessment"`
}

// Reasoner is an external decision service.
type Reasoner interface {
	Decide(ctx context.Context, req ReasoningRequest) (Decision, error)
}

// Decision is one killer move.
type Decision struct {
	Type       DecisionType `json:"type"`
	Strategy   string       `json:"strategy,omitempty"`
	Message    string       `json:"message"`
	Speed      float64      `json:"speed,omitempty"`
	Effect     string       `json:"effect,omitempty"`
	Visibility float64      `json:"visibility,omitempty"`
	OfferJoin  bool         `json:"offerJoin,omitempty"`
	Source     string       `json:"source"`
}

// Decision sources.
const (
	SourceStrategy = "strategy"
	SourceReasoner = "reasoner"
)

// MemoryEntry records one decision.
type MemoryEntry struct {
	Timestamp time.Time    `json:"timestamp"`
	Decision  DecisionType `json:"decision"`
	Context   Decision     `json:"context"`
}

// PlayerReaction is a recorded player response.
type PlayerReaction struct {
	Action    Action    `json:"type"`
	Text      string    `json:"text,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// BehaviorProfile is the killer's read of the player in the current encounter.
type BehaviorProfile struct {
	FirstEncounter bool             `json:"firstEncounter"`
	Reactions      []PlayerReaction `json:"reactions"`
	Choices        []string         `json:"choices"`
	Psychology     string           `json:"psychology"`
	FearLevel      int              `json:"fearLevel"`
}

// Encounter is the current (or most recent) encounter session.
//
// Invariant: while Active, CountdownSeconds strictly decreases once per
// tick and never goes below 0; Phase only moves forward.
type Encounter struct {
	ID               string `json:"id"`
	State            State  `json:"state"`
	Active           bool   `json:"active"`
	CountdownSeconds int    `json:"countdownSeconds"`
	Phase            Phase  `json:"escalationPhase"`
	Fate             Fate   `json:"fate,omitempty"`
	phaseIdx         int
}

// Engagement is returned by InitiateEngagement.
type Engagement struct {
	EncounterID      string `json:"encounterId"`
	TimerActive      bool   `json:"timerActive"`
	CountdownSeconds int    `json:"countdownSeconds"`
	KillerState      State  `json:"killerState"`
	Message          string `json:"message"`
}

// Engine is the killer's encounter state machine.
type Engine struct {
	catalog   *location.Catalog
	roller    *dice.Roller
	sched     clock.Scheduler
	bus       event.Publisher
	logger    *zap.Logger
	reasoner  Reasoner
	timeout   time.Duration
	telemetry TelemetryProvider
	interval  time.Duration

	mu      sync.Mutex
	traits  Traits
	enc     Encounter
	ticker  clock.Ticker
	profile BehaviorProfile
	memory  []MemoryEntry
	recent  []EncounterRecord
}

// Option configures an Engine.
type Option func(*Engine)

// WithReasoner delegates decisions to r, bounded by timeout. A non-positive
// timeout selects DefaultReasoningTimeout.
func WithReasoner(r Reasoner, timeout time.Duration) Option {
	return func(e *Engine) {
		e.reasoner = r
		if timeout <= 0 {
			timeout = DefaultReasoningTimeout
		}
		e.timeout = timeout
	}
}

// WithTelemetry attaches the player telemetry used when the countdown expires.
func WithTelemetry(p TelemetryProvider) Option {
	return func(e *Engine) { e.telemetry = p }
}

// WithTickInterval sets the wall time of one countdown second. A
// non-positive d keeps TickInterval.
func WithTickInterval(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.interval = d
		}
	}
}

// NewEngine creates an idle Engine.
//
// Precondition: catalog must be validated; roller, sched, bus and logger must be non-nil.
// Postcondition: returns an error when a dispatch table is incomplete.
func NewEngine(catalog *location.Catalog, roller *dice.Roller, sched clock.Scheduler, bus event.Publisher, logger *zap.Logger, opts ...Option) (*Engine, error) {
	if err := validateTables(); err != nil {
		return nil, err
	}
	e := &Engine{
		catalog:  catalog,
		roller:   roller,
		sched:    sched,
		bus:      bus,
		logger:   logger,
		timeout:  DefaultReasoningTimeout,
		interval: TickInterval,
		traits:   DefaultTraits(),
		enc:      Encounter{State: StateIdle, Phase: PhaseNone},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// InitiateEngagement starts a new encounter and runs one decision cycle.
//
// Postcondition: returns ErrAlreadyEngaged without any change while an
// encounter is active. Otherwise the state is HUNTING_PLAYER, the countdown is
// in [BaseCountdown, BaseCountdown+CountdownJitter] and ticking.
func (e *Engine) InitiateEngagement(ctx context.Context, pc PlayerContext) (Engagement, error) {
	e.mu.Lock()
	if e.enc.Active {
		e.mu.Unlock()
		return Engagement{}, ErrAlreadyEngaged
	}
	e.enc = Encounter{
		ID:               uuid.NewString(),
		State:            StateHuntingPlayer,
		Active:           true,
		CountdownSeconds: BaseCountdown + e.roller.Intn("countdown", CountdownJitter+1),
		Phase:            PhaseNone,
	}
	psych := pc.Psychology
	if psych == "" {
		psych = "unknown"
	}
	e.profile = BehaviorProfile{FirstEncounter: true, Psychology: psych, FearLevel: 5}
	id := e.enc.ID
	e.ticker = e.sched.Every(e.interval, func() { e.tick(id) })
	eng := Engagement{
		EncounterID:      id,
		TimerActive:      true,
		CountdownSeconds: e.enc.CountdownSeconds,
		KillerState:      e.enc.State,
		Message:          OpeningLine,
	}
	e.mu.Unlock()

	e.logger.Info("engagement initiated",
		zap.String("encounter_id", id),
		zap.String("player", pc.Name),
		zap.Int("countdown_seconds", eng.CountdownSeconds),
	)
	e.MakeDecision(ctx, pc)
	return eng, nil
}

// tick advances the countdown of encounter id by one second. Ticks for an
// encounter that is no longer active are ignored.
func (e *Engine) tick(id string) {
	e.mu.Lock()
	if !e.enc.Active || e.enc.ID != id {
		e.mu.Unlock()
		return
	}
	e.enc.CountdownSeconds--
	remaining := max(0, e.enc.CountdownSeconds)
	e.enc.CountdownSeconds = remaining
	payloads := []event.Payload{event.TimerTickPayload{
		SecondsRemaining: remaining,
		MinutesRemaining: remaining / 60,
	}}
	for e.enc.phaseIdx < len(escalations) && remaining <= escalations[e.enc.phaseIdx].At {
		esc := escalations[e.enc.phaseIdx]
		e.enc.phaseIdx++
		e.enc.Phase = esc.Phase
		e.traits.ThreatLevel = min(MaxThreat, e.traits.ThreatLevel+2)
		e.traits.HunterInstinct = min(1.0, e.traits.HunterInstinct+0.1)
		payloads = append(payloads, event.KillerEscalationPayload{
			Phase:              esc.Name,
			Message:            esc.Message,
			VisibilityModifier: esc.Visibility,
			SpeedModifier:      esc.Speed,
			ThreatLevel:        e.traits.ThreatLevel,
		})
		e.logger.Info("hunt escalated", zap.String("phase", esc.Name), zap.Int("threat_level", e.traits.ThreatLevel))
	}
	expired := remaining == 0
	finalState := e.enc.State
	emotion := e.traits.Emotion
	if expired {
		e.stopLocked()
		e.enc.State = StateEnded
	}
	e.mu.Unlock()

	if expired {
		fate := e.expiryFate(emotion)
		e.mu.Lock()
		if e.enc.ID == id {
			e.enc.Fate = fate
		}
		e.mu.Unlock()
		payloads = append(payloads, event.TimerExpiredPayload{
			EncounterID: id,
			FinalState:  string(finalState),
			FateMessage: string(fate),
		})
		e.logger.Info("countdown expired", zap.String("encounter_id", id), zap.String("fate", string(fate)))
	}
	for _, p := range payloads {
		e.bus.Publish(p)
	}
}

// expiryFate is called without e.mu so the provider may read other state.
func (e *Engine) expiryFate(emotion Emotion) Fate {
	if e.telemetry == nil {
		return FateUnknown
	}
	t, ok := e.telemetry.Telemetry()
	if !ok {
		return FateUnknown
	}
	return decideFate(t, emotion)
}

// EvaluatePlayerFate judges t against the killer's current emotional state.
// Exactly one fate is returned, by fixed priority.
func (e *Engine) EvaluatePlayerFate(t Telemetry) Fate {
	e.mu.Lock()
	emotion := e.traits.Emotion
	e.mu.Unlock()
	return decideFate(t, emotion)
}

func decideFate(t Telemetry, emotion Emotion) Fate {
	switch {
	case t.HidingIntensity > 0.8 && t.DistanceFromKiller > 50:
		return FateEscapedSafely
	case t.PsychologySuccess && emotion != EmotionPredatory:
		return FateNegotiationSuccess
	case t.AttemptedAttack && t.DamageDealt > 0:
		return FateWoundedKillerEscaped
	default:
		return FateCapturedOrKilled
	}
}

// MakeDecision chooses the killer's next move, records it in memory and
// publishes it. With a Reasoner configured the choice is delegated under a
// timeout; any failure falls back to the weighted strategy table.
func (e *Engine) MakeDecision(ctx context.Context, pc PlayerContext) Decision {
	d, ok := e.reason(ctx, pc)
	if !ok {
		d = e.strategyDecision()
	}
	e.mu.Lock()
	e.memory = append(e.memory, MemoryEntry{Timestamp: e.sched.Now(), Decision: d.Type, Context: d})
	e.mu.Unlock()

	e.logger.Info("killer decision",
		zap.String("type", string(d.Type)),
		zap.String("source", d.Source),
	)
	e.bus.Publish(event.KillerActionPayload{
		Type:       string(d.Type),
		Message:    d.Message,
		Strategy:   d.Strategy,
		Source:     d.Source,
		Speed:      d.Speed,
		Effect:     d.Effect,
		Visibility: d.Visibility,
		OfferJoin:  d.OfferJoin,
	})
	return d
}

func (e *Engine) reason(ctx context.Context, pc PlayerContext) (Decision, bool) {
	if e.reasoner == nil {
		return Decision{}, false
	}
	e.mu.Lock()
	mem := e.memory
	if len(mem) > MemoryWindow {
		mem = mem[len(mem)-MemoryWindow:]
	}
	req := ReasoningRequest{
		KillerState:    e.enc.State,
		PlayerBehavior: pc,
		Memory:         append([]MemoryEntry(nil), mem...),
		ThreatAssessment: ThreatAssessment{
			HunterInstinct: e.traits.HunterInstinct,
			Psychopathy:    e.traits.Psychopathy,
			Adaptability:   e.traits.Adaptability,
		},
	}
	e.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()
	d, err := e.reasoner.Decide(ctx, req)
	if err != nil {
		e.logger.Warn("reasoner unavailable, using strategy fallback", zap.Error(err))
		return Decision{}, false
	}
	if !knownDecision(d.Type) || d.Message == "" {
		e.logger.Warn("reasoner returned malformed decision, using strategy fallback",
			zap.String("type", string(d.Type)),
		)
		return Decision{}, false
	}
	d.Source = SourceReasoner
	return d, true
}

func knownDecision(t DecisionType) bool {
	for _, s := range strategies {
		if s.Decision.Type == t {
			return true
		}
	}
	return false
}

// strategyDecision selects from the weighted table with a single draw.
func (e *Engine) strategyDecision() Decision {
	draw := e.roller.Float("killer_strategy")
	var cumulative float64
	pick := strategies[len(strategies)-1]
	for _, s := range strategies {
		cumulative += s.Weight
		if draw < cumulative {
			pick = s
			break
		}
	}
	d := pick.Decision
	d.Strategy = pick.Name
	d.Source = SourceStrategy
	return d
}

// Stop cancels the countdown. No tick runs after Stop returns; the state is
// left as it was.
func (e *Engine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.stopLocked()
}

// End stops the running encounter and returns it. ok is false when no
// encounter is active, including one whose countdown already ran out.
func (e *Engine) End() (enc Encounter, ok bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.enc.Active {
		return Encounter{}, false
	}
	e.stopLocked()
	return e.enc, true
}

// stopLocked requires e.mu.
func (e *Engine) stopLocked() {
	if e.ticker != nil {
		e.ticker.Stop()
		e.ticker = nil
	}
	e.enc.Active = false
}

// Reset stops any encounter and restores the killer's starting traits.
// Learned memory is cleared.
func (e *Engine) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.stopLocked()
	e.traits = DefaultTraits()
	e.enc = Encounter{State: StateIdle, Phase: PhaseNone}
	e.profile = BehaviorProfile{}
	e.memory = nil
	e.recent = nil
}

// Encounter returns a snapshot of the current encounter.
func (e *Engine) Encounter() Encounter {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.enc
}

// Traits returns a snapshot of the killer's traits.
func (e *Engine) Traits() Traits {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.traits
}

// Memory returns a copy of the decision log.
func (e *Engine) Memory() []MemoryEntry {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]MemoryEntry(nil), e.memory...)
}

// BehaviorProfile returns a copy of the current player behavior profile.
func (e *Engine) BehaviorProfile() BehaviorProfile {
	e.mu.Lock()
	defer e.mu.Unlock()
	p := e.profile
	p.Reactions = append([]PlayerReaction(nil), p.Reactions...)
	p.Choices = append([]string(nil), p.Choices...)
	return p
}
