// Package gameserver runs a Destiny World playthrough: it wires the killer,
// survival, evolution, dialogue and state components onto one event bus,
// exposes them through a single action vocabulary and serves that vocabulary
// over gRPC.
package gameserver

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/cory-johannsen/destiny/internal/config"
	"github.com/cory-johannsen/destiny/internal/game/clock"
	"github.com/cory-johannsen/destiny/internal/game/dialogue"
	"github.com/cory-johannsen/destiny/internal/game/dice"
	"github.com/cory-johannsen/destiny/internal/game/event"
	"github.com/cory-johannsen/destiny/internal/game/evolution"
	"github.com/cory-johannsen/destiny/internal/game/killer"
	"github.com/cory-johannsen/destiny/internal/game/location"
	"github.com/cory-johannsen/destiny/internal/game/state"
	"github.com/cory-johannsen/destiny/internal/game/survival"
	"github.com/cory-johannsen/destiny/internal/game/tactic"
	"github.com/cory-johannsen/destiny/internal/observability"
	"github.com/cory-johannsen/destiny/internal/scripting"
)

const (
	// DefaultHistory is the number of recent events the bus keeps.
	DefaultHistory = 256
	// PlayClockInterval is the cadence at which play time is credited.
	PlayClockInterval = time.Second
)

var (
	ErrUnknownAction   = errors.New("unknown action")
	ErrMissingTarget   = errors.New("action needs a target")
	ErrMissingText     = errors.New("action needs text")
	ErrNotPlaying      = errors.New("game is not in progress")
	ErrPaused          = errors.New("game is paused")
	ErrUnknownNPC      = errors.New("npc not found")
	ErrUnknownResponse = errors.New("unknown response to the killer")
	ErrNoEncounter     = errors.New("no killer encounter in progress")
)

// ActionType names a player action.
type ActionType string

const (
	ActionStart      ActionType = "start"
	ActionEngage     ActionType = "engage"
	ActionHide       ActionType = "hide"
	ActionAttack     ActionType = "attack"
	ActionPsychology ActionType = "psychology"
	ActionEscape     ActionType = "escape"
	ActionRespond    ActionType = "respond"
	ActionSay        ActionType = "say"
	ActionChoose     ActionType = "choose"
	ActionTalk       ActionType = "talk"
	ActionTravel     ActionType = "travel"
	ActionSave       ActionType = "save"
	ActionLoad       ActionType = "load"
	ActionReset      ActionType = "reset"
	ActionEnd        ActionType = "end"
	ActionPause      ActionType = "pause"
	ActionResume     ActionType = "resume"
	ActionStatus     ActionType = "status"
	ActionReport     ActionType = "report"
)

// ActionTypes lists the full action vocabulary.
var ActionTypes = []ActionType{
	ActionStart, ActionEngage, ActionHide, ActionAttack, ActionPsychology,
	ActionEscape, ActionRespond, ActionSay, ActionChoose, ActionTalk,
	ActionTravel, ActionSave, ActionLoad, ActionReset, ActionEnd,
	ActionPause, ActionResume, ActionStatus, ActionReport,
}

// Action is one player command. Target names the spot, weapon, tactic,
// route, response, choice, NPC, location, difficulty or ending the action
// applies to; Text carries the player's words; Slot selects a save slot.
type Action struct {
	Type   ActionType `json:"type"`
	Target string     `json:"target,omitempty"`
	Text   string     `json:"text,omitempty"`
	Slot   int        `json:"slot,omitempty"`
}

// Outcome is the result of an accepted action.
type Outcome struct {
	Action ActionType `json:"action"`
	Data   any        `json:"data,omitempty"`
}

// Status is the full presentation state of the game.
type Status struct {
	Game      state.Snapshot        `json:"game"`
	Killer    killer.Status         `json:"killer"`
	Survival  survival.Status       `json:"survival"`
	Evolution evolution.GameProfile `json:"evolution"`
	Visit     *location.Instance    `json:"visit,omitempty"`
	Dialogue  *dialogue.Session     `json:"dialogue,omitempty"`
}

// StartResult is returned by the start action.
type StartResult struct {
	Game  state.Snapshot     `json:"game"`
	Visit *location.Instance `json:"visit"`
}

// EngagementResult is returned by the engage action.
type EngagementResult struct {
	EngageResult
	Dialogue dialogue.Session `json:"dialogue"`
}

// SaveResult is returned by the save and load actions.
type SaveResult struct {
	Slot int             `json:"slot"`
	Info *state.SaveInfo `json:"info,omitempty"`
}

// EndResult is returned by the end action.
type EndResult struct {
	Ending killer.Ending  `json:"ending"`
	Game   state.Snapshot `json:"game"`
}

type actionFunc func(ctx context.Context, a Action) (any, error)

// route is one entry of the dispatch table. inGame actions are refused
// outside MAIN_GAME and while paused.
type route struct {
	fn     actionFunc
	inGame bool
}

type options struct {
	sched          clock.Scheduler
	src            dice.Source
	reasoner       killer.Reasoner
	reasonTimeout  time.Duration
	reactor        dialogue.Reactor
	reactorTimeout time.Duration
	scriptDir      string
	scriptLimit    int
	history        int
}

// Option configures a Game.
type Option func(*options)

// WithScheduler replaces the wall clock.
func WithScheduler(s clock.Scheduler) Option {
	return func(o *options) { o.sched = s }
}

// WithSource replaces the random source chosen from the configured seed.
func WithSource(src dice.Source) Option {
	return func(o *options) { o.src = src }
}

// WithReasoner lets r make the killer's decisions, bounded by timeout.
func WithReasoner(r killer.Reasoner, timeout time.Duration) Option {
	return func(o *options) {
		o.reasoner = r
		o.reasonTimeout = timeout
	}
}

// WithReactor lets rx generate dialogue reactions, bounded by timeout.
func WithReactor(rx dialogue.Reactor, timeout time.Duration) Option {
	return func(o *options) {
		o.reactor = rx
		o.reactorTimeout = timeout
	}
}

// WithScripts loads the Lua event hooks in dir, each call limited to
// instLimit instructions. An empty dir disables scripting.
func WithScripts(dir string, instLimit int) Option {
	return func(o *options) {
		o.scriptDir = dir
		o.scriptLimit = instLimit
	}
}

// WithHistory sets the number of recent events kept on the bus.
func WithHistory(n int) Option {
	return func(o *options) { o.history = n }
}

// Game is one playthrough of Destiny World.
type Game struct {
	logger    *zap.Logger
	bus       *event.Bus
	sched     clock.Scheduler
	roller    *dice.Roller
	state     *state.Coordinator
	killer    *killer.Engine
	survival  *survival.Resolver
	evolution *evolution.Tracker
	dialogue  *dialogue.Resolver
	scripts   *scripting.Manager

	world     *WorldHandler
	encounter *EncounterHandler
	talk      *DialogueHandler
	routes    map[ActionType]route

	stopClock func()
	detach    []func()
}

// NewGame builds a Game around store.
//
// Precondition: cfg must be validated; store and logger must be non-nil.
// Postcondition: returns an error when an embedded catalog or a dispatch
// table is invalid, or the script directory cannot be loaded. Close must be
// called to stop the game's timers and subscriptions.
func NewGame(cfg config.GameConfig, store state.SaveStore, logger *zap.Logger, opts ...Option) (*Game, error) {
	o := options{sched: clock.NewReal(), history: DefaultHistory}
	for _, opt := range opts {
		opt(&o)
	}
	if o.src == nil {
		if cfg.Seed != 0 {
			o.src = dice.NewSeededSource(cfg.Seed)
		} else {
			o.src = dice.NewCryptoSource()
		}
	}
	if err := validateEncounterTables(); err != nil {
		return nil, err
	}
	locations, err := location.LoadDefault()
	if err != nil {
		return nil, fmt.Errorf("loading locations: %w", err)
	}
	tactics, err := tactic.LoadDefault()
	if err != nil {
		return nil, fmt.Errorf("loading tactics: %w", err)
	}
	nodes, err := dialogue.LoadDefault()
	if err != nil {
		return nil, fmt.Errorf("loading dialogue: %w", err)
	}

	g := &Game{logger: logger, sched: o.sched}
	g.roller = dice.NewRoller(o.src, logger.Named("dice"))
	g.bus = event.NewBus(logger.Named("bus"), event.WithClock(o.sched.Now), event.WithHistory(o.history))
	g.state = state.NewCoordinator(g.bus, store, logger.Named("state"), state.WithClock(o.sched.Now))

	killerOpts := []killer.Option{
		killer.WithTickInterval(cfg.TickInterval),
		killer.WithTelemetry(killer.TelemetryFunc(func() (killer.Telemetry, bool) {
			return g.encounter.Telemetry()
		})),
	}
	if o.reasoner != nil {
		killerOpts = append(killerOpts, killer.WithReasoner(o.reasoner, o.reasonTimeout))
	}
	if g.killer, err = killer.NewEngine(locations, g.roller, o.sched, g.bus, logger.Named("killer"), killerOpts...); err != nil {
		g.state.Close()
		return nil, err
	}
	g.survival, err = survival.NewResolver(locations, g.roller, o.sched, g.bus, logger.Named("survival"),
		survival.WithHidingTick(cfg.HidingTick),
		survival.WithEncounterActive(func() bool { return g.killer.Encounter().Active }))
	if err != nil {
		g.state.Close()
		return nil, err
	}
	g.evolution = evolution.NewTracker(tactics, g.roller, g.bus, logger.Named("evolution"), evolution.WithClock(o.sched.Now))

	dlgOpts := []dialogue.Option{dialogue.WithMaxLength(cfg.DialogueMaxLength), dialogue.WithClock(o.sched.Now)}
	if o.reactor != nil {
		dlgOpts = append(dlgOpts, dialogue.WithReactor(o.reactor, o.reactorTimeout))
	}
	if g.dialogue, err = dialogue.NewResolver(nodes, g.bus, logger.Named("dialogue"), dlgOpts...); err != nil {
		g.state.Close()
		return nil, err
	}

	g.world = NewWorldHandler(locations, g.roller, g.state, g.survival, g.killer, logger.Named("world"))
	g.encounter = NewEncounterHandler(g.killer, g.survival, g.evolution, g.state, logger.Named("encounter"))
	g.talk = NewDialogueHandler(g.dialogue, g.killer, g.state, g.world, logger.Named("dialogue"))
	g.routes = g.buildRoutes()
	if err := validateRoutes(g.routes); err != nil {
		g.state.Close()
		return nil, err
	}

	g.detach = append(g.detach,
		g.state.Close,
		g.encounter.Attach(g.bus),
		observability.LogEvents(g.bus, logger),
	)
	if o.scriptDir != "" {
		g.scripts = scripting.NewManager(g.roller, logger.Named("scripting"), o.scriptLimit)
		n, err := g.scripts.LoadDir(o.scriptDir)
		if err != nil {
			g.Close()
			return nil, fmt.Errorf("loading scripts: %w", err)
		}
		g.detach = append(g.detach, scripting.NewEventHooks(g.scripts, logger.Named("hooks")).Attach(g.bus))
		logger.Info("scripts loaded", zap.String("dir", o.scriptDir), zap.Int("count", n))
	}
	g.stopClock = NewPlayClock(o.sched, PlayClockInterval, g.state.AddPlayTime).Start()
	return g, nil
}

func (g *Game) buildRoutes() map[ActionType]route {
	return map[ActionType]route{
		ActionStart:      {fn: g.start},
		ActionEngage:     {fn: g.engage, inGame: true},
		ActionHide:       {fn: func(_ context.Context, a Action) (any, error) { return g.encounter.Hide(a.Target) }, inGame: true},
		ActionAttack:     {fn: func(_ context.Context, a Action) (any, error) { return g.encounter.Attack(a.Target) }, inGame: true},
		ActionPsychology: {fn: func(_ context.Context, a Action) (any, error) { return g.encounter.Psychology(a.Target, a.Text) }, inGame: true},
		ActionEscape:     {fn: func(_ context.Context, a Action) (any, error) { return g.encounter.Escape(a.Target) }, inGame: true},
		ActionRespond:    {fn: g.respond, inGame: true},
		ActionSay:        {fn: func(ctx context.Context, a Action) (any, error) { return g.talk.Say(ctx, a.Text) }, inGame: true},
		ActionChoose:     {fn: g.choose, inGame: true},
		ActionTalk:       {fn: g.talkTo, inGame: true},
		ActionTravel:     {fn: g.travel, inGame: true},
		ActionSave:       {fn: g.save, inGame: true},
		ActionLoad:       {fn: g.load},
		ActionReset:      {fn: g.reset},
		ActionEnd:        {fn: g.end, inGame: true},
		ActionPause:      {fn: g.pause},
		ActionResume:     {fn: g.resume},
		ActionStatus:     {fn: func(context.Context, Action) (any, error) { return g.Status(), nil }},
		ActionReport:     {fn: func(context.Context, Action) (any, error) { return g.evolution.BehaviorReport(), nil }},
	}
}

func validateRoutes(routes map[ActionType]route) error {
	var errs []string
	for _, t := range ActionTypes {
		if r, ok := routes[t]; !ok || r.fn == nil {
			errs = append(errs, fmt.Sprintf("action %q has no handler", t))
		}
	}
	known := make(map[ActionType]bool, len(ActionTypes))
	for _, t := range ActionTypes {
		known[t] = true
	}
	for t := range routes {
		if !known[t] {
			errs = append(errs, fmt.Sprintf("handler for undeclared action %q", t))
		}
	}
	if len(errs) > 0 {
		sort.Strings(errs)
		return fmt.Errorf("gameserver: dispatch table invalid: %s", strings.Join(errs, "; "))
	}
	return nil
}

// Bus returns the game's event bus.
func (g *Game) Bus() *event.Bus {
	return g.bus
}

// SaveInfo summarises a save slot; ok is false for empty or unreadable slots.
func (g *Game) SaveInfo(ctx context.Context, slot int) (state.SaveInfo, bool) {
	return g.state.SaveInfo(ctx, slot)
}

// Act performs one player action.
//
// Postcondition: unknown action types return ErrUnknownAction; in-game
// actions return ErrNotPlaying outside MAIN_GAME and ErrPaused while paused.
// Rejected actions change nothing.
func (g *Game) Act(ctx context.Context, a Action) (Outcome, error) {
	a.Type = ActionType(strings.ToLower(strings.TrimSpace(string(a.Type))))
	r, ok := g.routes[a.Type]
	if !ok {
		return Outcome{}, fmt.Errorf("%w: %q", ErrUnknownAction, a.Type)
	}
	if r.inGame {
		snap := g.state.Snapshot()
		if snap.Phase != state.PhaseMainGame {
			return Outcome{}, fmt.Errorf("%w: phase %s", ErrNotPlaying, snap.Phase)
		}
		if snap.Paused {
			return Outcome{}, ErrPaused
		}
	}
	data, err := r.fn(ctx, a)
	if err != nil {
		g.logger.Debug("action rejected", zap.String("action", string(a.Type)), zap.Error(err))
		return Outcome{}, err
	}
	g.syncPlayer()
	return Outcome{Action: a.Type, Data: data}, nil
}

// Status returns the full presentation state.
func (g *Game) Status() Status {
	g.syncPlayer()
	s := Status{
		Game:      g.state.Snapshot(),
		Killer:    g.killer.Status(),
		Survival:  g.survival.Status(),
		Evolution: g.evolution.GameProfile(),
		Visit:     g.world.Visit(),
	}
	if d, ok := g.dialogue.Current(); ok {
		s.Dialogue = &d
	}
	return s
}

// Close stops the game's timers and releases its subscriptions.
func (g *Game) Close() {
	if g.stopClock != nil {
		g.stopClock()
	}
	g.killer.Stop()
	g.survival.EndHiding()
	for i := len(g.detach) - 1; i >= 0; i-- {
		g.detach[i]()
	}
	g.detach = nil
	if g.scripts != nil {
		g.scripts.Close()
	}
}

// syncPlayer copies the survival side of the player into the coordinator.
func (g *Game) syncPlayer() {
	s := g.survival.Status()
	g.state.UpdatePlayer(func(p *state.Player) {
		p.Stress = s.Stress
		p.HideLevel = s.HideLevel
		p.Injuries = s.Injuries
		p.Skills = s.Skills
		p.Health = health(s.PlayerState)
	})
}

// health maps injuries onto the coordinator's health scale.
func health(p survival.PlayerState) int {
	if p.Dead {
		return 0
	}
	return max(1, state.MaxHealth-p.Injuries*(state.MaxHealth/survival.FatalInjuries))
}

func (g *Game) start(_ context.Context, a Action) (any, error) {
	if err := g.state.StartGame(state.Difficulty(strings.ToUpper(a.Target)), a.Text); err != nil {
		return nil, err
	}
	in, err := g.world.Arrive()
	if err != nil {
		return nil, err
	}
	g.state.ChangeLocation(in.LocationID)
	return StartResult{Game: g.state.Snapshot(), Visit: in}, nil
}

func (g *Game) engage(ctx context.Context, _ Action) (any, error) {
	res, err := g.encounter.Engage(ctx)
	if err != nil {
		return nil, err
	}
	s, err := g.talk.OpenEncounter(res.EncounterNumber)
	if err != nil {
		return nil, err
	}
	return EngagementResult{EngageResult: res, Dialogue: s}, nil
}

func (g *Game) respond(_ context.Context, a Action) (any, error) {
	if a.Target == "" {
		return nil, fmt.Errorf("%w: response", ErrMissingTarget)
	}
	return g.encounter.Respond(a.Target, a.Text)
}

func (g *Game) choose(ctx context.Context, a Action) (any, error) {
	if a.Target == "" {
		return nil, fmt.Errorf("%w: choice", ErrMissingTarget)
	}
	return g.talk.Choose(ctx, a.Target, a.Text)
}

func (g *Game) talkTo(_ context.Context, a Action) (any, error) {
	if a.Target == "" {
		return nil, fmt.Errorf("%w: npc", ErrMissingTarget)
	}
	return g.talk.Talk(a.Target)
}

func (g *Game) travel(_ context.Context, a Action) (any, error) {
	if a.Target == "" {
		return nil, fmt.Errorf("%w: location", ErrMissingTarget)
	}
	res, err := g.world.Travel(location.ID(a.Target))
	if err != nil {
		return nil, err
	}
	if g.killer.Encounter().Active {
		g.encounter.record(tactic.ExplorationAvoidance, true)
	}
	return res, nil
}

func (g *Game) save(ctx context.Context, a Action) (any, error) {
	g.syncPlayer()
	if err := g.state.Save(ctx, a.Slot); err != nil {
		return nil, err
	}
	res := SaveResult{Slot: a.Slot}
	if info, ok := g.state.SaveInfo(ctx, a.Slot); ok {
		res.Info = &info
	}
	return res, nil
}

// load restores a slot. The running encounter, hiding attempt and dialogue
// are abandoned; the evolved killer is kept.
func (g *Game) load(ctx context.Context, a Action) (any, error) {
	if !g.state.Load(ctx, a.Slot) {
		return nil, fmt.Errorf("%w: %d", state.ErrNoSave, a.Slot)
	}
	g.killer.Stop()
	p := g.state.Player()
	g.survival.Restore(survival.PlayerState{
		Location:  p.Location,
		Stress:    p.Stress,
		HideLevel: p.HideLevel,
		Injuries:  p.Injuries,
		Skills:    p.Skills,
		Inventory: p.Inventory,
		Dead:      p.Injuries >= survival.FatalInjuries,
	})
	g.dialogue.Reset()
	g.dialogue.SetAlignment(p.Alignment)
	g.encounter.Reset()
	if _, err := g.world.Arrive(); err != nil {
		g.logger.Warn("saved location not in catalog", zap.String("location", string(p.Location)), zap.Error(err))
		g.world.Clear()
	}
	res := SaveResult{Slot: a.Slot}
	if info, ok := g.state.SaveInfo(ctx, a.Slot); ok {
		res.Info = &info
	}
	return res, nil
}

// reset starts the next playthrough. The killer's evolution carries over.
func (g *Game) reset(context.Context, Action) (any, error) {
	g.state.ResetGame()
	g.killer.Reset()
	g.survival.Reset()
	g.dialogue.Reset()
	g.encounter.Reset()
	g.world.Clear()
	return g.state.Snapshot(), nil
}

// end reaches the alien planet. An encounter still running at that point
// counts as an escape; one that already ended is not reported again.
func (g *Game) end(context.Context, Action) (any, error) {
	g.encounter.close(evolution.PlayerEscaped, "")
	ending := g.killer.ReachAlienPlanet(g.state.Player().JoinedKiller)
	g.state.TriggerEnding(ending.Type)
	return EndResult{Ending: ending, Game: g.state.Snapshot()}, nil
}

func (g *Game) pause(context.Context, Action) (any, error) {
	g.state.Pause()
	return g.state.Snapshot(), nil
}

func (g *Game) resume(context.Context, Action) (any, error) {
	g.state.Resume()
	return g.state.Snapshot(), nil
}
