package evolution

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cory-johannsen/destiny/internal/game/dice"
	"github.com/cory-johannsen/destiny/internal/game/event"
	"github.com/cory-johannsen/destiny/internal/game/tactic"
)

// Outcome is how an encounter ended, from the killer's perspective.
type Outcome string

const (
	PlayerKilled   Outcome = "PLAYER_KILLED"
	PlayerEscaped  Outcome = "PLAYER_ESCAPED"
	PlayerJoined   Outcome = "PLAYER_JOINED"
	PlayerDefeated Outcome = "PLAYER_DEFEATED"
)

// Result describes a finished encounter.
type Result struct {
	Outcome      Outcome
	EscapeTactic tactic.ID
	Context      map[string]string
}

// Summary is returned by ProcessEncounterResult.
type Summary struct {
	Outcome         Outcome `json:"outcome"`
	Evolved         bool    `json:"evolved"`
	TotalEncounters int     `json:"totalEncounters"`
	PlayersKilled   int     `json:"playersKilled"`
	PlayersEscaped  int     `json:"playersEscaped"`
	PlayersJoined   int     `json:"playersJoined"`
	EvolutionLevel  int     `json:"evolutionLevel"`
	KnownTactics    int     `json:"knownTactics"`
}

// GameProfile is the presentation view of the killer.
type GameProfile struct {
	Name                string   `json:"name"`
	EvolutionLevel      int      `json:"evolutionLevel"`
	Intelligence        int      `json:"intelligence"`
	Adaptability        int      `json:"adaptability"`
	Aggressiveness      int      `json:"aggressiveness"`
	CurrentBehavior     Behavior `json:"currentBehavior"`
	HuntsThisSession    int      `json:"huntsThisSession"`
	KnownCounterTactics int      `json:"knownCounterTactics"`
	DifficultyEstimate  float64  `json:"difficultyEstimate"`
}

// Tracker owns the killer Profile.
type Tracker struct {
	catalog *tactic.Catalog
	roller  *dice.Roller
	bus     event.Publisher
	logger  *zap.Logger
	now     func() time.Time

	mu            sync.Mutex
	profile       Profile
	lastEvolvedAt int

	// Learning events and counters from before the current encounter.
	eventsBefore   int
	countersBefore int
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(t *Tracker) { t.now = now }
}

// WithProfile starts the tracker from an existing profile.
func WithProfile(p Profile) Option {
	return func(t *Tracker) { t.profile = p.clone() }
}

// NewTracker creates a Tracker for a fresh killer.
//
// Precondition: catalog must be validated; roller, bus and logger must be non-nil.
func NewTracker(catalog *tactic.Catalog, roller *dice.Roller, bus event.Publisher, logger *zap.Logger, opts ...Option) *Tracker {
	t := &Tracker{
		catalog: catalog,
		roller:  roller,
		bus:     bus,
		logger:  logger,
		now:     time.Now,
		profile: DefaultProfile(),
	}
	for _, opt := range opts {
		opt(t)
	}
	t.markEncounterLocked()
	return t
}

func (t *Tracker) markEncounterLocked() {
	t.eventsBefore = len(t.profile.LearningEvents)
	t.countersBefore = len(t.profile.AdaptedBehaviors)
}

// scoreCountersLocked grades every counter adopted before this encounter
// against the tactics the player tried during it.
func (t *Tracker) scoreCountersLocked(o Outcome) {
	tried := make(map[tactic.ID]bool)
	for _, ev := range t.profile.LearningEvents[t.eventsBefore:] {
		tried[ev.Tactic] = true
	}
	held := 0.0
	if o != PlayerEscaped {
		held = 1
	}
	for i := range t.profile.AdaptedBehaviors[:t.countersBefore] {
		ab := &t.profile.AdaptedBehaviors[i]
		if !tried[ab.CounteredTactic] {
			continue
		}
		ab.Trials++
		ab.EffectivenessRealized += (held - ab.EffectivenessRealized) / float64(ab.Trials)
		t.logger.Debug("counter graded",
			zap.String("counter", ab.SelectedCounter.Name),
			zap.Int("trials", ab.Trials),
			zap.Float64("effectiveness_realized", ab.EffectivenessRealized),
		)
	}
}

// Profile returns a deep copy of the current profile.
func (t *Tracker) Profile() Profile {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.profile.clone()
}

// RecordPlayerTactic appends a learning event. When the player succeeded the
// tactic joins KnownPlayerTricks and a counter is generated.
//
// Postcondition: len(LearningEvents) grows by exactly one.
func (t *Tracker) RecordPlayerTactic(id tactic.ID, succeeded bool, context map[string]string) LearningEvent {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.recordLocked(id, succeeded, context)
}

func (t *Tracker) recordLocked(id tactic.ID, succeeded bool, context map[string]string) LearningEvent {
	ev := LearningEvent{
		ID:              "LEARN-" + uuid.NewString(),
		Tactic:          id,
		PlayerSucceeded: succeeded,
		Timestamp:       t.now(),
		Context:         context,
	}
	t.profile.LearningEvents = append(t.profile.LearningEvents, ev)
	t.logger.Info("killer learns",
		zap.String("tactic", string(id)),
		zap.Bool("player_succeeded", succeeded),
	)
	if succeeded {
		if !t.profile.knows(id) {
			t.profile.KnownPlayerTricks = append(t.profile.KnownPlayerTricks, id)
		}
		t.counterLocked(id)
	}
	return ev
}

// GenerateCounterTactic adopts the most effective catalog counter for id.
//
// Postcondition: ok is false and nothing changes when id is not in the
// catalog; otherwise exactly one AdaptedBehavior is appended, tied to the
// current evolution level.
func (t *Tracker) GenerateCounterTactic(id tactic.ID) (AdaptedBehavior, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.counterLocked(id)
}

func (t *Tracker) counterLocked(id tactic.ID) (AdaptedBehavior, bool) {
	tc, ok := t.catalog.Lookup(id)
	if !ok {
		t.logger.Debug("no counters available", zap.String("tactic", string(id)))
		return AdaptedBehavior{}, false
	}
	best, ok := tc.BestCounter()
	if !ok {
		return AdaptedBehavior{}, false
	}
	ab := AdaptedBehavior{
		CounteredTactic: id,
		SelectedCounter: best,
		ImplementedAt:   t.now(),
		EvolutionLevel:  t.profile.EvolutionLevel,
	}
	t.profile.AdaptedBehaviors = append(t.profile.AdaptedBehaviors, ab)
	t.logger.Info("counter tactic selected",
		zap.String("tactic", string(id)),
		zap.String("counter", best.Name),
		zap.Float64("effectiveness", best.Effectiveness),
	)
	return ab, true
}

// EvolveKiller raises the evolution level when the encounter count is a
// positive multiple of EvolveEvery and has not already triggered an evolution.
//
// Postcondition: returns true iff the level was raised by exactly one.
func (t *Tracker) EvolveKiller() bool {
	t.mu.Lock()
	payloads := t.evolveLocked()
	t.mu.Unlock()
	t.publish(payloads)
	return len(payloads) > 0
}

// evolveLocked returns the events to publish; empty means no evolution.
func (t *Tracker) evolveLocked() []event.Payload {
	n := t.profile.EncountersThisSession
	if n <= 0 || n%EvolveEvery != 0 || n == t.lastEvolvedAt {
		return nil
	}
	t.lastEvolvedAt = n
	p := &t.profile
	p.EvolutionLevel++
	p.Intelligence = clampStat(p.Intelligence + 2)
	p.Adaptability = clampStat(p.Adaptability + 2)
	p.Aggressiveness = clampStat(p.Aggressiveness + 1)
	p.PsychologyResistance = clampStat(p.PsychologyResistance + 2)
	p.LearningRate = min(MaxLearningRate, p.LearningRate+0.05)

	payloads := []event.Payload{event.KillerEvolvedPayload{
		Level:      p.EvolutionLevel,
		Difficulty: Difficulty(p.EvolutionLevel, len(p.AdaptedBehaviors)),
	}}
	for _, a := range t.catalog.AbilitiesAt(p.EvolutionLevel) {
		p.UnlockedAbilities = append(p.UnlockedAbilities, a)
		payloads = append(payloads, event.AbilityUnlockedPayload{
			Ability:     a.Name,
			Description: a.Description,
			Level:       p.EvolutionLevel,
		})
		t.logger.Info("ability unlocked", zap.String("ability", a.Name), zap.Int("level", p.EvolutionLevel))
	}
	t.logger.Info("killer evolves",
		zap.Int("level", p.EvolutionLevel),
		zap.Int("intelligence", p.Intelligence),
		zap.Int("adaptability", p.Adaptability),
		zap.Float64("learning_rate", p.LearningRate),
	)
	return payloads
}

func (t *Tracker) publish(payloads []event.Payload) {
	for _, p := range payloads {
		t.bus.Publish(p)
	}
}

// CalculateDifficulty returns the current difficulty multiplier.
//
// Postcondition: result in [1.0, MaxDifficulty].
func (t *Tracker) CalculateDifficulty() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return Difficulty(t.profile.EvolutionLevel, len(t.profile.AdaptedBehaviors))
}

// ProcessEncounterResult counts the encounter, grades the counters that were
// already in place against the tactics tried since the previous encounter,
// records its outcome and then attempts an evolution.
//
// Postcondition: EncountersThisSession has grown by exactly one.
func (t *Tracker) ProcessEncounterResult(r Result) Summary {
	t.mu.Lock()
	p := &t.profile
	p.EncountersThisSession++
	t.scoreCountersLocked(r.Outcome)
	switch r.Outcome {
	case PlayerKilled:
		p.PlayersKilled++
	case PlayerEscaped:
		p.PlayersEscaped++
		escape := r.EscapeTactic
		if escape == "" {
			escape = tactic.UnknownEscape
		}
		t.recordLocked(escape, true, r.Context)
	case PlayerJoined:
		p.PlayersJoined++
	case PlayerDefeated:
		t.logger.Info("player defeated the killer")
	default:
		t.logger.Warn("unrecognised encounter outcome", zap.String("outcome", string(r.Outcome)))
	}
	payloads := t.evolveLocked()
	t.markEncounterLocked()
	s := Summary{
		Outcome:         r.Outcome,
		Evolved:         len(payloads) > 0,
		TotalEncounters: p.EncountersThisSession,
		PlayersKilled:   p.PlayersKilled,
		PlayersEscaped:  p.PlayersEscaped,
		PlayersJoined:   p.PlayersJoined,
		EvolutionLevel:  p.EvolutionLevel,
		KnownTactics:    len(p.KnownPlayerTricks),
	}
	t.mu.Unlock()

	t.publish(payloads)
	t.logger.Info("encounter processed",
		zap.String("outcome", string(r.Outcome)),
		zap.Int("encounters", s.TotalEncounters),
		zap.Bool("evolved", s.Evolved),
	)
	return s
}

// GameProfile returns the presentation view of the killer.
func (t *Tracker) GameProfile() GameProfile {
	t.mu.Lock()
	defer t.mu.Unlock()
	p := t.profile
	return GameProfile{
		Name:                p.Name,
		EvolutionLevel:      p.EvolutionLevel,
		Intelligence:        p.Intelligence,
		Adaptability:        p.Adaptability,
		Aggressiveness:      p.Aggressiveness,
		CurrentBehavior:     p.CurrentBehavior,
		HuntsThisSession:    p.EncountersThisSession,
		KnownCounterTactics: len(p.KnownPlayerTricks),
		DifficultyEstimate:  Difficulty(p.EvolutionLevel, len(p.AdaptedBehaviors)),
	}
}

// SelectPsychologicalTactic picks one of the killer's psychological tactics,
// weighted by success rate, with a single draw.
//
// Postcondition: ok is false only when the catalog has no positive weights.
func (t *Tracker) SelectPsychologicalTactic() (tactic.Psychological, bool) {
	var total float64
	for _, p := range t.catalog.Psychological {
		total += p.SuccessRate
	}
	if total <= 0 {
		return tactic.Psychological{}, false
	}
	draw := t.roller.Float("psychological_tactic") * total
	var cumulative float64
	for _, p := range t.catalog.Psychological {
		cumulative += p.SuccessRate
		if draw < cumulative {
			return *p, true
		}
	}
	return *t.catalog.Psychological[len(t.catalog.Psychological)-1], true
}

// BehaviorReport renders a plain-text analysis of the killer.
func (t *Tracker) BehaviorReport() string {
	t.mu.Lock()
	p := t.profile.clone()
	t.mu.Unlock()

	rule := strings.Repeat("=", 60)
	var b strings.Builder
	fmt.Fprintf(&b, "%s\nALIEN KILLER BEHAVIOR ANALYSIS - %s\n%s\n\n", rule, strings.ToUpper(p.Name), rule)
	fmt.Fprintf(&b, "Profile:\n  Name: %s\n  Species: %s\n  Age: %d years\n  Evolution Level: %d\n\n",
		p.Name, p.Species, p.Age, p.EvolutionLevel)
	fmt.Fprintf(&b, "Core Attributes:\n  Intelligence: %d/100\n  Adaptability: %d/100\n  Psychology Resistance: %d/100\n  Aggressiveness: %d/100\n\n",
		p.Intelligence, p.Adaptability, p.PsychologyResistance, p.Aggressiveness)
	fmt.Fprintf(&b, "Session Statistics:\n  Encounters: %d\n  Players Killed: %d\n  Players Escaped: %d\n  Players Joined: %d\n\n",
		p.EncountersThisSession, p.PlayersKilled, p.PlayersEscaped, p.PlayersJoined)
	fmt.Fprintf(&b, "Learning Progress:\n  Adapted Behaviors: %d\n  Known Player Tactics: %d\n  Learning Rate: %.0f%%\n\n",
		len(p.AdaptedBehaviors), len(p.KnownPlayerTricks), p.LearningRate*100)
	fmt.Fprintf(&b, "Difficulty Multiplier: %.2fx\n\n", Difficulty(p.EvolutionLevel, len(p.AdaptedBehaviors)))

	b.WriteString("Known Player Tricks:\n")
	for _, id := range p.KnownPlayerTricks {
		fmt.Fprintf(&b, "  • %s\n", id)
	}
	b.WriteString("\nRecent Learning Events:\n")
	recent := p.LearningEvents
	if len(recent) > 5 {
		recent = recent[len(recent)-5:]
	}
	for _, e := range recent {
		status := "FAILED"
		if e.PlayerSucceeded {
			status = "LEARNED"
		}
		fmt.Fprintf(&b, "  • %s: %s (%s)\n", e.Timestamp.Format(time.TimeOnly), e.Tactic, status)
	}
	b.WriteString("\n" + rule + "\n")
	return b.String()
}
