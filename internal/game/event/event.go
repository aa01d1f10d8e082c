// Package event defines the typed event vocabulary exchanged between the
// killer engine, the resolvers, the coordinator and the presentation layer,
// together with the Bus that carries it.
package event

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"
)

// Name identifies the kind of event.
type Name string

const (
	TimerTick        Name = "TIMER_TICK"
	KillerEscalation Name = "KILLER_ESCALATION"
	TimerExpired     Name = "TIMER_EXPIRED"
	KillerAction     Name = "KILLER_ACTION"
	KillerReaction   Name = "KILLER_REACTION"

	DialogueStart    Name = "DIALOGUE_START"
	DialogueReaction Name = "DIALOGUE_REACTION"

	PlayerHiding      Name = "PLAYER_HIDING"
	HidingDiscovered  Name = "HIDING_DISCOVERED"
	AttackHit         Name = "ATTACK_HIT"
	AttackMiss        Name = "ATTACK_MISS"
	WeaponBroken      Name = "WEAPON_BROKEN"
	PsychologySuccess Name = "PSYCHOLOGY_SUCCESS"
	PsychologyFailed  Name = "PSYCHOLOGY_FAILED"
	EscapeSuccess     Name = "ESCAPE_SUCCESS"
	EscapeFailed      Name = "ESCAPE_FAILED"
	PlayerDead        Name = "PLAYER_DEAD"

	GovernmentResponse Name = "GOVERNMENT_RESPONSE"
	GameEnding         Name = "GAME_ENDING"
	EndingReached      Name = "ENDING_REACHED"

	GameStart                  Name = "GAME_START"
	GamePause                  Name = "GAME_PAUSE"
	GameResume                 Name = "GAME_RESUME"
	GameReset                  Name = "GAME_RESET"
	KillerEncounter            Name = "KILLER_ENCOUNTER"
	AlignmentChange            Name = "ALIGNMENT_CHANGE"
	CorruptionThresholdReached Name = "CORRUPTION_THRESHOLD_REACHED"
	GovernmentAwarenessChange  Name = "GOVERNMENT_AWARENESS_CHANGE"
	LocationChange             Name = "LOCATION_CHANGE"
	NPCRelationshipChange      Name = "NPC_RELATIONSHIP_CHANGE"
	GameSaved                  Name = "GAME_SAVED"
	GameLoaded                 Name = "GAME_LOADED"

	KillerEvolved   Name = "KILLER_EVOLVED"
	AbilityUnlocked Name = "ABILITY_UNLOCKED"
)

// Payload is implemented by every event payload struct. The name is fixed by
// the payload type so a payload can never be published under the wrong name.
type Payload interface {
	EventName() Name
}

// Event is a published occurrence.
type Event struct {
	ID        ulid.ULID `json:"id"`
	Name      Name      `json:"name"`
	Timestamp time.Time `json:"timestamp"`
	Payload   Payload   `json:"payload"`
}

// Fields flattens the event into a generic map suitable for scripting and
// wire transports. The payload fields are nested under "payload".
//
// Postcondition: the returned map contains the keys id, name, timestamp and payload.
func (e Event) Fields() (map[string]any, error) {
	raw, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("marshalling event %s: %w", e.Name, err)
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("unmarshalling event %s: %w", e.Name, err)
	}
	return out, nil
}
