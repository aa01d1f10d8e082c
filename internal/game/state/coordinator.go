package state

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/cory-johannsen/destiny/internal/game/dialogue"
	"github.com/cory-johannsen/destiny/internal/game/event"
	"github.com/cory-johannsen/destiny/internal/game/location"
)

// ErrUnknownDifficulty is returned by StartGame for values outside Difficulties.
var ErrUnknownDifficulty = errors.New("unknown difficulty")

// Bus is the part of event.Bus the coordinator uses.
type Bus interface {
	event.Publisher
	Subscribe(name event.Name, h event.Handler) (unsubscribe func())
}

// Snapshot is the full presentation state of the playthrough.
type Snapshot struct {
	Player              Player             `json:"player"`
	Stats               event.Stats        `json:"stats"`
	Phase               Phase              `json:"phase"`
	Difficulty          Difficulty         `json:"difficulty"`
	Paused              bool               `json:"paused"`
	Playthrough         int                `json:"playthrough"`
	KillerEncounters    int                `json:"killerEncounters"`
	GovernmentAwareness int                `json:"governmentAwareness"`
	WantedLevel         int                `json:"wantedLevel"`
	MilitaryInvolved    bool               `json:"militaryInvolved"`
	VisitedLocations    []string           `json:"visitedLocations"`
	NPCRelationships    map[string]float64 `json:"npcRelationships"`
	EndingType          string             `json:"endingType,omitempty"`
}

// Coordinator owns the playthrough state. It is constructed explicitly and
// shared by reference; there is no package-level instance.
type Coordinator struct {
	bus    Bus
	store  SaveStore
	logger *zap.Logger
	now    func() time.Time

	mu            sync.Mutex
	player        Player
	stats         event.Stats
	phase         Phase
	difficulty    Difficulty
	paused        bool
	playthrough   int
	encounters    int
	awareness     int
	wanted        int
	military      bool
	visited       []string
	relationships map[string]float64
	endingType    string

	unsubscribe []func()
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithClock overrides the save timestamp source.
func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) { c.now = now }
}

// NewCoordinator creates a Coordinator in the MENU phase of playthrough 1 and
// subscribes its statistics counters to bus.
//
// Precondition: bus, store and logger must be non-nil.
// Postcondition: Close must be called to release the subscriptions.
func NewCoordinator(bus Bus, store SaveStore, logger *zap.Logger, opts ...Option) *Coordinator {
	c := &Coordinator{
		bus:           bus,
		store:         store,
		logger:        logger,
		now:           time.Now,
		player:        DefaultPlayer(),
		phase:         PhaseMenu,
		difficulty:    DifficultyNormal,
		playthrough:   1,
		relationships: map[string]float64{},
	}
	for _, opt := range opts {
		opt(c)
	}
	counters := map[event.Name]func(*event.Stats){
		event.EscapeSuccess:    func(s *event.Stats) { s.EscapeCount++ },
		event.PlayerDead:       func(s *event.Stats) { s.DeathCount++ },
		event.DialogueReaction: func(s *event.Stats) { s.ChoicesMade++ },
		event.TimerExpired:     func(s *event.Stats) { s.EncountersCompleted++ },
	}
	for name, inc := range counters {
		c.unsubscribe = append(c.unsubscribe, bus.Subscribe(name, func(event.Event) {
			c.mu.Lock()
			inc(&c.stats)
			c.mu.Unlock()
		}))
	}
	return c
}

// Close releases the bus subscriptions.
func (c *Coordinator) Close() {
	for _, u := range c.unsubscribe {
		u()
	}
}

// StartGame enters MAIN_GAME at difficulty. An empty difficulty means NORMAL;
// an empty name keeps the current player name.
func (c *Coordinator) StartGame(difficulty Difficulty, name string) error {
	if difficulty == "" {
		difficulty = DifficultyNormal
	}
	known := false
	for _, d := range Difficulties {
		known = known || d == difficulty
	}
	if !known {
		return fmt.Errorf("%w: %q", ErrUnknownDifficulty, difficulty)
	}
	c.mu.Lock()
	if name != "" {
		c.player.Name = name
	}
	c.difficulty = difficulty
	c.phase = PhaseMainGame
	c.stats.TimePlayed = 0
	p := event.GameStartPayload{Difficulty: string(difficulty), PlayerName: c.player.Name, Playthrough: c.playthrough}
	c.mu.Unlock()

	c.logger.Info("game started", zap.String("difficulty", string(difficulty)))
	c.bus.Publish(p)
	return nil
}

// Pause pauses the game.
func (c *Coordinator) Pause() {
	c.mu.Lock()
	c.paused = true
	c.mu.Unlock()
	c.bus.Publish(event.GamePausePayload{})
}

// Resume resumes the game.
func (c *Coordinator) Resume() {
	c.mu.Lock()
	c.paused = false
	c.mu.Unlock()
	c.bus.Publish(event.GameResumePayload{})
}

// AddPlayTime adds d to the time played while the game is running.
func (c *Coordinator) AddPlayTime(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.phase == PhaseMainGame && !c.paused {
		c.stats.TimePlayed += int(d / time.Second)
	}
}

// Player returns a copy of the player.
func (c *Coordinator) Player() Player {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.player.clone()
}

// UpdatePlayer applies fn to the player. It publishes ALIGNMENT_CHANGE when
// the alignment changed and CORRUPTION_THRESHOLD_REACHED when corruption
// crossed CorruptionThreshold upward. Corruption is clamped to [0, 100].
func (c *Coordinator) UpdatePlayer(fn func(p *Player)) Player {
	c.mu.Lock()
	oldAlignment := c.player.Alignment
	oldCorruption := c.player.CorruptionLevel
	fn(&c.player)
	c.player.CorruptionLevel = max(0, min(MaxCorruption, c.player.CorruptionLevel))
	var payloads []event.Payload
	if c.player.Alignment != oldAlignment {
		payloads = append(payloads, event.AlignmentChangePayload{
			OldAlignment: string(oldAlignment),
			NewAlignment: string(c.player.Alignment),
		})
	}
	if oldCorruption < CorruptionThreshold && c.player.CorruptionLevel >= CorruptionThreshold {
		payloads = append(payloads, event.CorruptionThresholdReachedPayload{CorruptionLevel: c.player.CorruptionLevel})
	}
	p := c.player.clone()
	c.mu.Unlock()

	for _, pl := range payloads {
		c.bus.Publish(pl)
	}
	return p
}

// SetAlignment is UpdatePlayer for the alignment alone.
func (c *Coordinator) SetAlignment(a dialogue.Alignment) {
	c.UpdatePlayer(func(p *Player) { p.Alignment = a })
}

// EncounterKiller counts a new killer encounter and returns its number.
func (c *Coordinator) EncounterKiller(killerState string) int {
	c.mu.Lock()
	c.encounters++
	n := c.encounters
	loc := c.player.Location
	c.mu.Unlock()

	c.bus.Publish(event.KillerEncounterPayload{EncounterNumber: n, KillerState: killerState, Location: string(loc)})
	return n
}

// UpdateGovernmentAwareness adds amount to the awareness, clamped to [0, 100].
func (c *Coordinator) UpdateGovernmentAwareness(amount int) int {
	c.mu.Lock()
	c.awareness = max(0, min(MaxAwareness, c.awareness+amount))
	c.wanted, c.military = WantedLevel(c.awareness)
	p := event.GovernmentAwarenessChangePayload{Awareness: c.awareness, WantedLevel: c.wanted, MilitaryInvolved: c.military}
	c.mu.Unlock()

	c.bus.Publish(p)
	return p.Awareness
}

// ChangeLocation moves the player to id and marks it visited.
func (c *Coordinator) ChangeLocation(id location.ID) {
	c.mu.Lock()
	from := c.player.Location
	c.player.Location = id
	if !contains(c.visited, string(id)) {
		c.visited = append(c.visited, string(id))
	}
	p := event.LocationChangePayload{From: string(from), To: string(id), VisitCount: len(c.visited)}
	c.mu.Unlock()

	c.bus.Publish(p)
}

func contains(xs []string, x string) bool {
	for _, v := range xs {
		if v == x {
			return true
		}
	}
	return false
}

// RegisterNPC starts a neutral relationship with npcID if none exists.
func (c *Coordinator) RegisterNPC(npcID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.relationships[npcID]; !ok {
		c.relationships[npcID] = 0
	}
}

// UpdateNPCRelationship adds amount to the relationship with npcID.
func (c *Coordinator) UpdateNPCRelationship(npcID string, amount float64) float64 {
	c.mu.Lock()
	c.relationships[npcID] += amount
	v := c.relationships[npcID]
	c.mu.Unlock()

	c.bus.Publish(event.NPCRelationshipChangePayload{NPCID: npcID, Amount: amount, NewValue: v})
	return v
}

// TriggerEnding enters the ENDING phase.
func (c *Coordinator) TriggerEnding(endingType string) {
	c.mu.Lock()
	c.endingType = endingType
	c.phase = PhaseEnding
	p := event.GameEndingPayload{
		EndingType:      endingType,
		Alignment:       string(c.player.Alignment),
		CorruptionLevel: c.player.CorruptionLevel,
		Stats:           c.stats,
	}
	c.mu.Unlock()

	c.logger.Info("ending reached", zap.String("ending", endingType))
	c.bus.Publish(p)
}

// Save writes the playthrough to slot.
func (c *Coordinator) Save(ctx context.Context, slot int) error {
	if err := ValidSlot(slot); err != nil {
		return err
	}
	raw, err := Encode(c.saveData())
	if err != nil {
		return err
	}
	if err := c.store.Put(ctx, slot, raw); err != nil {
		return fmt.Errorf("saving slot %d: %w", slot, err)
	}
	c.logger.Info("game saved", zap.Int("slot", slot))
	c.bus.Publish(event.GameSavedPayload{Slot: slot})
	return nil
}

func (c *Coordinator) saveData() SaveData {
	c.mu.Lock()
	defer c.mu.Unlock()
	rel := make(map[string]float64, len(c.relationships))
	for k, v := range c.relationships {
		rel[k] = v
	}
	return SaveData{
		Timestamp:           c.now(),
		Playthrough:         c.playthrough,
		Player:              c.player.clone(),
		Stats:               c.stats,
		GovernmentAwareness: c.awareness,
		KillerEncounters:    c.encounters,
		VisitedLocations:    append([]string{}, c.visited...),
		NPCRelationships:    rel,
	}
}

// Load restores the playthrough from slot and resumes it in MAIN_GAME. Any
// failure leaves the state untouched and reports false.
func (c *Coordinator) Load(ctx context.Context, slot int) bool {
	d, err := c.read(ctx, slot)
	if err != nil {
		c.logger.Warn("load failed", zap.Int("slot", slot), zap.Error(err))
		return false
	}
	c.mu.Lock()
	c.player = d.Player
	if c.player.Skills == nil {
		c.player.Skills = DefaultPlayer().Skills
	}
	if d.Playthrough > 0 {
		c.playthrough = d.Playthrough
	}
	c.phase = PhaseMainGame
	c.paused = false
	c.endingType = ""
	c.stats = d.Stats
	c.awareness = max(0, min(MaxAwareness, d.GovernmentAwareness))
	c.wanted, c.military = WantedLevel(c.awareness)
	c.encounters = d.KillerEncounters
	c.visited = append([]string{}, d.VisitedLocations...)
	c.relationships = map[string]float64{}
	for k, v := range d.NPCRelationships {
		c.relationships[k] = v
	}
	c.mu.Unlock()

	c.logger.Info("game loaded", zap.Int("slot", slot))
	c.bus.Publish(event.GameLoadedPayload{Slot: slot})
	return true
}

func (c *Coordinator) read(ctx context.Context, slot int) (SaveData, error) {
	if err := ValidSlot(slot); err != nil {
		return SaveData{}, err
	}
	raw, err := c.store.Get(ctx, slot)
	if err != nil {
		return SaveData{}, err
	}
	return Decode(raw)
}

// DeleteSave empties slot.
func (c *Coordinator) DeleteSave(ctx context.Context, slot int) error {
	if err := ValidSlot(slot); err != nil {
		return err
	}
	return c.store.Delete(ctx, slot)
}

// SaveInfo summarises slot. ok is false for empty, invalid or corrupt slots.
func (c *Coordinator) SaveInfo(ctx context.Context, slot int) (info SaveInfo, ok bool) {
	d, err := c.read(ctx, slot)
	if err != nil {
		return SaveInfo{}, false
	}
	return infoFor(slot, d), true
}

// ResetGame starts the next playthrough from the menu. Player, statistics
// and world state return to their defaults; NPC relationships are kept.
func (c *Coordinator) ResetGame() {
	c.mu.Lock()
	c.player = DefaultPlayer()
	c.stats = event.Stats{}
	c.phase = PhaseMenu
	c.paused = false
	c.encounters = 0
	c.awareness = 0
	c.wanted = 0
	c.military = false
	c.visited = nil
	c.endingType = ""
	c.playthrough++
	p := event.GameResetPayload{Playthrough: c.playthrough}
	c.mu.Unlock()

	c.logger.Info("game reset", zap.Int("playthrough", p.Playthrough))
	c.bus.Publish(p)
}

// Snapshot returns the full presentation state.
func (c *Coordinator) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	rel := make(map[string]float64, len(c.relationships))
	for k, v := range c.relationships {
		rel[k] = v
	}
	visited := append([]string{}, c.visited...)
	sort.Strings(visited)
	return Snapshot{
		Player:              c.player.clone(),
		Stats:               c.stats,
		Phase:               c.phase,
		Difficulty:          c.difficulty,
		Paused:              c.paused,
		Playthrough:         c.playthrough,
		KillerEncounters:    c.encounters,
		GovernmentAwareness: c.awareness,
		WantedLevel:         c.wanted,
		MilitaryInvolved:    c.military,
		VisitedLocations:    visited,
		NPCRelationships:    rel,
		EndingType:          c.endingType,
	}
}
