package state

import (
	"context"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"golang.org/x/crypto/blake2b"

	"github.com/cory-johannsen/destiny/internal/game/event"
)

// SlotCount is the number of save slots, numbered from 0.
const SlotCount = 3

// saveFormat is the envelope version written by Save.
const saveFormat = 1

var (
	// ErrNoSave is returned by a SaveStore for an empty slot.
	ErrNoSave = errors.New("no save in slot")
	// ErrInvalidSlot is returned for slots outside [0, SlotCount).
	ErrInvalidSlot = errors.New("invalid save slot")
	// ErrCorruptSave is returned when a save cannot be parsed or fails its digest.
	ErrCorruptSave = errors.New("corrupt save data")
)

// SaveStore persists encoded save slots. Writes are last-write-wins.
type SaveStore interface {
	// Put stores data in slot, replacing any previous save.
	Put(ctx context.Context, slot int, data []byte) error
	// Get returns the data in slot, or ErrNoSave.
	Get(ctx context.Context, slot int) ([]byte, error)
	// Delete empties slot. Deleting an empty slot is not an error.
	Delete(ctx context.Context, slot int) error
}

// ValidSlot reports ErrInvalidSlot for slots outside [0, SlotCount).
func ValidSlot(slot int) error {
	if slot < 0 || slot >= SlotCount {
		return fmt.Errorf("%w: %d", ErrInvalidSlot, slot)
	}
	return nil
}

// SaveData is the persisted playthrough snapshot.
type SaveData struct {
	Timestamp           time.Time          `json:"timestamp"`
	Playthrough         int                `json:"playthrough"`
	Player              Player             `json:"player"`
	Stats               event.Stats        `json:"stats"`
	GovernmentAwareness int                `json:"governmentAwareness"`
	KillerEncounters    int                `json:"killerEncounters"`
	VisitedLocations    []string           `json:"visitedLocations"`
	NPCRelationships    map[string]float64 `json:"npcRelationships"`
}

type envelope struct {
	Format int             `json:"format"`
	Digest string          `json:"digest"`
	Data   json.RawMessage `json:"data"`
}

// Encode serialises d as JSON inside an envelope carrying its BLAKE2b-256 digest.
func Encode(d SaveData) ([]byte, error) {
	data, err := json.Marshal(d)
	if err != nil {
		return nil, fmt.Errorf("encoding save: %w", err)
	}
	sum := blake2b.Sum256(data)
	return json.Marshal(envelope{Format: saveFormat, Digest: hex.EncodeToString(sum[:]), Data: data})
}

// Decode parses an envelope written by Encode.
//
// Postcondition: returns ErrCorruptSave when the bytes are unparsable, the
// format is unknown, or the digest does not match.
func Decode(raw []byte) (SaveData, error) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return SaveData{}, fmt.Errorf("%w: %v", ErrCorruptSave, err)
	}
	if env.Format != saveFormat {
		return SaveData{}, fmt.Errorf("%w: unknown format %d", ErrCorruptSave, env.Format)
	}
	want, err := hex.DecodeString(env.Digest)
	if err != nil {
		return SaveData{}, fmt.Errorf("%w: bad digest encoding", ErrCorruptSave)
	}
	sum := blake2b.Sum256(env.Data)
	if subtle.ConstantTimeCompare(sum[:], want) != 1 {
		return SaveData{}, fmt.Errorf("%w: digest mismatch", ErrCorruptSave)
	}
	var d SaveData
	if err := json.Unmarshal(env.Data, &d); err != nil {
		return SaveData{}, fmt.Errorf("%w: %v", ErrCorruptSave, err)
	}
	return d, nil
}

// SaveInfo summarises a save slot for a load menu.
type SaveInfo struct {
	Slot            int       `json:"slot"`
	Timestamp       time.Time `json:"timestamp"`
	Playthrough     int       `json:"playthrough"`
	PlayerAlignment string    `json:"playerAlignment"`
	TimePlayed      string    `json:"timePlayed"`
	Location        string    `json:"location"`
	CorruptionLevel int       `json:"corruptionLevel"`
}

func infoFor(slot int, d SaveData) SaveInfo {
	return SaveInfo{
		Slot:            slot,
		Timestamp:       d.Timestamp,
		Playthrough:     d.Playthrough,
		PlayerAlignment: string(d.Player.Alignment),
		TimePlayed:      fmt.Sprintf("%dh", d.Stats.TimePlayed/3600),
		Location:        string(d.Player.Location),
		CorruptionLevel: d.Player.CorruptionLevel,
	}
}
