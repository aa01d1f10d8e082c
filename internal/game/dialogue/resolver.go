package dialogue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cory-johannsen/destiny/internal/game/event"
)

const (
	// DefaultMaxLength is the line count after which only EndChoice is offered.
	DefaultMaxLength = 10
	// DefaultReactionTimeout bounds a Reactor call.
	DefaultReactionTimeout = 5 * time.Second
	// KillerSpeaker answers free text outside a node session.
	KillerSpeaker = "K-7"
	// PlayerSpeaker labels the player's lines.
	PlayerSpeaker = "You"
	// reactorHistory is how many recent lines a Reactor sees.
	reactorHistory = 3
)

// Reply sources.
const (
	SourceTable    = "table"
	SourceReactor  = "reactor"
	SourceFallback = "fallback"
)

var (
	// ErrNoSession is returned when no dialogue session is open.
	ErrNoSession = errors.New("no dialogue session")
	// ErrUnknownChoice is returned for a choice not currently offered.
	ErrUnknownChoice = errors.New("choice not offered")
	// ErrTextRequired is returned when the custom option is chosen without text.
	ErrTextRequired = errors.New("custom response requires text")
	// ErrNotConversation is returned for custom text in a node session.
	ErrNotConversation = errors.New("session is not an NPC conversation")
)

// Kind distinguishes fixed node sessions from NPC conversations.
type Kind string

const (
	KindNode         Kind = "node"
	KindConversation Kind = "conversation"
)

// Line is one spoken line of a session.
type Line struct {
	Speaker string `json:"speaker"`
	Text    string `json:"text"`
}

// Session is one dialogue.
//
// Invariant: once Ended, a session is only found in History.
type Session struct {
	ID        string    `json:"id"`
	Kind      Kind      `json:"kind"`
	NodeID    string    `json:"nodeId,omitempty"`
	NPC       NPC       `json:"npc,omitempty"`
	Speaker   string    `json:"speaker"`
	Lines     []Line    `json:"lines"`
	Choices   []Choice  `json:"choices"`
	Trust     float64   `json:"trust"`
	Suspicion float64   `json:"suspicion"`
	Ended     bool      `json:"ended"`
	StartedAt time.Time `json:"startedAt"`
}

func (s *Session) clone() Session {
	c := *s
	c.Lines = append([]Line(nil), s.Lines...)
	c.Choices = append([]Choice(nil), s.Choices...)
	return c
}

func (s *Session) choice(id string) (Choice, bool) {
	for _, c := range s.Choices {
		if c.ID == id {
			return c, true
		}
	}
	return Choice{}, false
}

// ChoiceResult is the outcome of choosing an option.
type ChoiceResult struct {
	Choice      Choice    `json:"choice"`
	Reaction    *Reaction `json:"reaction,omitempty"`
	Reply       *Reply    `json:"reply,omitempty"`
	Source      string    `json:"source,omitempty"`
	Alignment   Alignment `json:"alignment"`
	Consequence string    `json:"consequence"`
	Choices     []Choice  `json:"choices"`
	Ended       bool      `json:"ended"`
}

// FreeTextResult is the outcome of a typed utterance to the killer.
type FreeTextResult struct {
	Text         string    `json:"text"`
	Intent       Intent    `json:"intent"`
	Sentiment    Sentiment `json:"sentiment"`
	Shift        Alignment `json:"alignmentShift"`
	Alignment    Alignment `json:"alignment"`
	Speaker      string    `json:"speaker"`
	Response     string    `json:"response"`
	Consequence  string    `json:"consequence,omitempty"`
	Relationship float64   `json:"relationship"`
	Emotion      string    `json:"emotion,omitempty"`
	TrustChange  float64   `json:"trustChange"`
	Suspicion    float64   `json:"suspicion"`
	Source       string    `json:"source"`
}

// ConsequenceRecord logs a consequence raised in conversation.
type ConsequenceRecord struct {
	Type      string    `json:"type"`
	NPCID     string    `json:"npcId"`
	Timestamp time.Time `json:"timestamp"`
}

// Resolver owns the player's alignment and the active dialogue session.
type Resolver struct {
	catalog   *Catalog
	bus       event.Publisher
	logger    *zap.Logger
	reactor   Reactor
	timeout   time.Duration
	maxLength int
	now       func() time.Time

	mu           sync.Mutex
	alignment    Alignment
	current      *Session
	history      []Session
	consequences []ConsequenceRecord
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithReactor routes custom text to rx, bounded by timeout. A non-positive
// timeout selects DefaultReactionTimeout.
func WithReactor(rx Reactor, timeout time.Duration) Option {
	return func(r *Resolver) {
		r.reactor = rx
		if timeout <= 0 {
			timeout = DefaultReactionTimeout
		}
		r.timeout = timeout
	}
}

// WithMaxLength sets the session line cap. Values below 1 are ignored.
func WithMaxLength(n int) Option {
	return func(r *Resolver) {
		if n >= 1 {
			r.maxLength = n
		}
	}
}

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(r *Resolver) { r.now = now }
}

// NewResolver creates a Resolver with NEUTRAL alignment and no session.
//
// Precondition: catalog must be validated; bus and logger must be non-nil.
// Postcondition: returns an error when a reaction table is incomplete.
func NewResolver(catalog *Catalog, bus event.Publisher, logger *zap.Logger, opts ...Option) (*Resolver, error) {
	if err := validateIntentTables(); err != nil {
		return nil, err
	}
	r := &Resolver{
		catalog:   catalog,
		bus:       bus,
		logger:    logger,
		timeout:   DefaultReactionTimeout,
		maxLength: DefaultMaxLength,
		now:       time.Now,
		alignment: Neutral,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Start opens node nodeID, archiving any open session.
func (r *Resolver) Start(nodeID string) (Session, error) {
	node, ok := r.catalog.Lookup(nodeID)
	if !ok {
		return Session{}, fmt.Errorf("%w: %q", ErrUnknownNode, nodeID)
	}
	s := &Session{
		ID:        uuid.NewString(),
		Kind:      KindNode,
		NodeID:    node.ID,
		Speaker:   node.Speaker,
		Choices:   append([]Choice(nil), node.Choices...),
		StartedAt: r.now(),
	}
	for _, l := range node.Lines {
		s.Lines = append(s.Lines, Line{Speaker: node.Speaker, Text: l})
	}
	r.open(s)
	r.logger.Info("dialogue started", zap.String("node", nodeID), zap.String("speaker", node.Speaker))
	r.bus.Publish(event.DialogueStartPayload{
		NodeID:  node.ID,
		Speaker: node.Speaker,
		Lines:   append([]string(nil), node.Lines...),
		Choices: toEventChoices(s.Choices),
	})
	return s.clone(), nil
}

// Talk opens a conversation with npc, archiving any open session.
func (r *Resolver) Talk(npc NPC) Session {
	greeting := Greeting(npc.Role)
	s := &Session{
		ID:        uuid.NewString(),
		Kind:      KindConversation,
		NPC:       npc,
		Speaker:   npc.Name,
		Lines:     []Line{{Speaker: npc.Name, Text: greeting}},
		Choices:   append([]Choice(nil), openingChoices...),
		StartedAt: r.now(),
	}
	r.open(s)
	r.logger.Info("conversation started", zap.String("npc", npc.ID), zap.String("role", string(npc.Role)))
	r.bus.Publish(event.DialogueStartPayload{
		NodeID:  string(npc.Role),
		Speaker: npc.Name,
		Lines:   []string{greeting},
		Choices: toEventChoices(s.Choices),
	})
	return s.clone()
}

func (r *Resolver) open(s *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.archiveLocked()
	r.current = s
}

// archiveLocked requires r.mu.
func (r *Resolver) archiveLocked() {
	if r.current == nil {
		return
	}
	r.current.Ended = true
	r.history = append(r.history, r.current.clone())
	r.current = nil
}

// appendLocked adds lines and applies the length cap. It requires r.mu.
func (r *Resolver) appendLocked(lines ...Line) {
	r.current.Lines = append(r.current.Lines, lines...)
	if len(r.current.Lines) >= r.maxLength {
		r.current.Choices = []Choice{EndChoice}
	}
}

// Choose selects an offered option of the open session. A node choice
// without a reaction yields a nil Reaction, which callers treat as silence.
func (r *Resolver) Choose(choiceID string) (ChoiceResult, error) {
	r.mu.Lock()
	s := r.current
	if s == nil {
		r.mu.Unlock()
		return ChoiceResult{}, ErrNoSession
	}
	ch, ok := s.choice(choiceID)
	if !ok {
		r.mu.Unlock()
		return ChoiceResult{}, fmt.Errorf("%w: %q", ErrUnknownChoice, choiceID)
	}
	if ch.ID == CustomChoice && s.Kind == KindConversation {
		r.mu.Unlock()
		return ChoiceResult{}, ErrTextRequired
	}

	res := ChoiceResult{Choice: ch, Consequence: ch.Consequence}
	if res.Consequence == "" {
		res.Consequence = NoConsequence
	}
	r.alignment = CalculateAlignment(r.alignment, ch.Alignment)
	res.Alignment = r.alignment
	lines := []Line{{Speaker: PlayerSpeaker, Text: ch.Text}}

	var payload event.Payload
	switch {
	case ch.End:
	case s.Kind == KindNode:
		node, _ := r.catalog.Lookup(s.NodeID)
		if re, ok := node.Reactions[ch.ID]; ok {
			res.Reaction = &re
			lines = append(lines, Line{Speaker: re.Speaker, Text: re.Response})
		}
	default:
		reply := presetReply(ch.ID)
		res.Reply = &reply
		res.Source = SourceTable
		r.applyReplyLocked(reply)
		lines = append(lines, Line{Speaker: s.Speaker, Text: reply.Text})
		s.Choices = followUps(reply)
		if reply.Consequence != "" {
			res.Consequence = reply.Consequence
		}
	}
	r.appendLocked(lines...)

	if ch.End {
		res.Ended = true
		r.archiveLocked()
	} else {
		res.Choices = append([]Choice(nil), s.Choices...)
		payload = reactionPayload(s, res)
	}
	r.mu.Unlock()

	r.logger.Info("dialogue choice",
		zap.String("choice", ch.ID),
		zap.String("alignment", string(res.Alignment)),
		zap.Bool("ended", res.Ended),
	)
	if payload != nil {
		r.bus.Publish(payload)
	}
	return res, nil
}

// applyReplyLocked folds a conversation reply into the session. It requires r.mu.
func (r *Resolver) applyReplyLocked(reply Reply) {
	s := r.current
	s.Trust += reply.TrustChange
	s.Suspicion = reply.Suspicion
	if reply.Consequence != "" {
		r.consequences = append(r.consequences, ConsequenceRecord{
			Type:      reply.Consequence,
			NPCID:     s.NPC.ID,
			Timestamp: r.now(),
		})
	}
}

// reactionPayload is nil when there is nothing to say.
func reactionPayload(s *Session, res ChoiceResult) event.Payload {
	p := event.DialogueReactionPayload{
		Alignment:   string(res.Alignment),
		Consequence: res.Consequence,
		Choices:     toEventChoices(res.Choices),
	}
	switch {
	case res.Reaction != nil:
		p.Speaker = res.Reaction.Speaker
		p.Response = res.Reaction.Response
	case res.Reply != nil:
		p.Speaker = s.Speaker
		p.Response = res.Reply.Text
		p.Emotion = res.Reply.Emotion
		p.TrustDelta = res.Reply.TrustChange
		p.Suspicion = res.Reply.Suspicion
	default:
		return nil
	}
	return p
}

// ChooseCustom answers a conversation with typed text. With a Reactor the
// NPC's reply is generated; otherwise, or on any Reactor failure, the NPC
// is confused.
func (r *Resolver) ChooseCustom(ctx context.Context, text string) (ChoiceResult, error) {
	r.mu.Lock()
	s := r.current
	if s == nil {
		r.mu.Unlock()
		return ChoiceResult{}, ErrNoSession
	}
	if s.Kind != KindConversation {
		r.mu.Unlock()
		return ChoiceResult{}, ErrNotConversation
	}
	req := ReactionRequest{Speaker: s.Speaker, Role: s.NPC.Role, Text: text, Alignment: r.alignment, History: tail(s.Lines)}
	r.mu.Unlock()

	reply, source := r.generate(ctx, req, confusedReply)

	r.mu.Lock()
	if r.current != s {
		r.mu.Unlock()
		return ChoiceResult{}, ErrNoSession
	}
	r.applyReplyLocked(reply)
	s.Choices = followUps(reply)
	r.appendLocked(Line{Speaker: PlayerSpeaker, Text: text}, Line{Speaker: s.Speaker, Text: reply.Text})
	res := ChoiceResult{
		Choice:      Choice{ID: CustomChoice, Text: text},
		Reply:       &reply,
		Source:      source,
		Alignment:   r.alignment,
		Consequence: NoConsequence,
		Choices:     append([]Choice(nil), s.Choices...),
	}
	if reply.Consequence != "" {
		res.Consequence = reply.Consequence
	}
	payload := reactionPayload(s, res)
	r.mu.Unlock()

	r.bus.Publish(payload)
	return res, nil
}

// RespondFreeText classifies text typed to the killer, walks the alignment
// and answers it. Without a Reactor the answer comes from the intent table.
// The exchange is logged to the open node session, if any.
func (r *Resolver) RespondFreeText(ctx context.Context, text string) FreeTextResult {
	intent, shift := ClassifyIntent(text)
	sentiment := ClassifySentiment(text)

	r.mu.Lock()
	r.alignment = CalculateAlignment(r.alignment, shift)
	res := FreeTextResult{
		Text:      text,
		Intent:    intent,
		Sentiment: sentiment,
		Shift:     shift,
		Alignment: r.alignment,
		Speaker:   KillerSpeaker,
	}
	var history []Line
	if r.current != nil && r.current.Kind == KindNode {
		res.Speaker = r.current.Speaker
		history = tail(r.current.Lines)
	}
	req := ReactionRequest{Speaker: res.Speaker, Text: text, Intent: intent, Alignment: r.alignment, History: history}
	r.mu.Unlock()

	if r.reactor != nil {
		reply, source := r.generate(ctx, req, confusedReply)
		res.Response = reply.Text
		res.Emotion = reply.Emotion
		res.TrustChange = reply.TrustChange
		res.Suspicion = reply.Suspicion
		res.Source = source
	} else {
		fixed := intentReactions[intent]
		res.Response = fixed.Response
		res.Consequence = fixed.Consequence
		res.Relationship = fixed.Relationship
		res.Suspicion = 0.5
		res.Source = SourceTable
	}

	r.mu.Lock()
	if r.current != nil && r.current.Kind == KindNode {
		r.appendLocked(Line{Speaker: PlayerSpeaker, Text: text}, Line{Speaker: res.Speaker, Text: res.Response})
	}
	r.mu.Unlock()

	r.logger.Info("free text parsed",
		zap.String("intent", string(intent)),
		zap.String("sentiment", string(sentiment)),
		zap.String("source", res.Source),
	)
	r.bus.Publish(event.DialogueReactionPayload{
		Speaker:     res.Speaker,
		Response:    res.Response,
		Intent:      string(intent),
		Sentiment:   string(sentiment),
		Emotion:     res.Emotion,
		Alignment:   string(res.Alignment),
		Consequence: res.Consequence,
		TrustDelta:  res.TrustChange,
		Suspicion:   res.Suspicion,
	})
	return res
}

// generate asks the Reactor for a reply. Errors, timeouts and replies with
// no RESPONSE line yield fallback.
func (r *Resolver) generate(ctx context.Context, req ReactionRequest, fallback Reply) (Reply, string) {
	if r.reactor == nil {
		return fallback, SourceFallback
	}
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	raw, err := r.reactor.React(ctx, req)
	if err != nil {
		r.logger.Warn("reactor unavailable, using default reaction", zap.Error(err))
		return fallback, SourceFallback
	}
	reply := ParseGenerated(raw)
	if reply.Text == "" {
		r.logger.Warn("reactor reply has no response, using default reaction")
		return fallback, SourceFallback
	}
	return reply, SourceReactor
}

func tail(lines []Line) []Line {
	if len(lines) > reactorHistory {
		lines = lines[len(lines)-reactorHistory:]
	}
	return append([]Line(nil), lines...)
}

func toEventChoices(cs []Choice) []event.Choice {
	out := make([]event.Choice, 0, len(cs))
	for _, c := range cs {
		out = append(out, event.Choice{ID: c.ID, Text: c.Text, Alignment: string(c.Alignment), End: c.End})
	}
	return out
}

// End archives the open session. It reports whether one was open.
func (r *Resolver) End() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.current == nil {
		return false
	}
	r.archiveLocked()
	return true
}

// Current returns the open session.
func (r *Resolver) Current() (Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.current == nil {
		return Session{}, false
	}
	return r.current.clone(), true
}

// History returns the archived sessions, oldest first.
func (r *Resolver) History() []Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Session(nil), r.history...)
}

// Consequences returns the conversation consequence log.
func (r *Resolver) Consequences() []ConsequenceRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]ConsequenceRecord(nil), r.consequences...)
}

// Alignment returns the player's alignment.
func (r *Resolver) Alignment() Alignment {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.alignment
}

// SetAlignment restores a saved alignment. Unknown values are ignored.
func (r *Resolver) SetAlignment(a Alignment) {
	for _, v := range Alignments {
		if v == a {
			r.mu.Lock()
			r.alignment = a
			r.mu.Unlock()
			return
		}
	}
}

// Reset ends any session and clears history and alignment.
func (r *Resolver) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.current = nil
	r.history = nil
	r.consequences = nil
	r.alignment = Neutral
}
