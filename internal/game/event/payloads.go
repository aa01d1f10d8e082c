package event

// TimerTickPayload is published once per countdown second.
type TimerTickPayload struct {
	SecondsRemaining int `json:"secondsRemaining"`
	MinutesRemaining int `json:"minutesRemaining"`
}

func (TimerTickPayload) EventName() Name { return TimerTick }

// KillerEscalationPayload is published when the hunt enters a new phase.
type KillerEscalationPayload struct {
	Phase              string  `json:"phase"`
	Message            string  `json:"message"`
	VisibilityModifier float64 `json:"visibilityModifier"`
	SpeedModifier      float64 `json:"speedModifier"`
	ThreatLevel        int     `json:"threatLevel"`
}

func (KillerEscalationPayload) EventName() Name { return KillerEscalation }

// TimerExpiredPayload is the terminal countdown event.
type TimerExpiredPayload struct {
	EncounterID string `json:"encounterId"`
	FinalState  string `json:"finalState"`
	FateMessage string `json:"fateMessage"`
}

func (TimerExpiredPayload) EventName() Name { return TimerExpired }

// KillerActionPayload carries one killer decision. Only the fields relevant
// to Type are set.
type KillerActionPayload struct {
	Type       string  `json:"type"`
	Message    string  `json:"message"`
	Strategy   string  `json:"strategy,omitempty"`
	Source     string  `json:"source"`
	Speed      float64 `json:"speed,omitempty"`
	Effect     string  `json:"effect,omitempty"`
	Visibility float64 `json:"visibility,omitempty"`
	OfferJoin  bool    `json:"offerJoin,omitempty"`
}

func (KillerActionPayload) EventName() Name { return KillerAction }

// KillerReactionPayload carries the killer's response to a player action.
type KillerReactionPayload struct {
	Action            string  `json:"action"`
	Message           string  `json:"message"`
	MechanicalResult  string  `json:"mechanicalResult"`
	RelationshipDelta float64 `json:"relationshipDelta"`
	DamageToPlayer    int     `json:"damageToPlayer,omitempty"`
	KillerSpeed       float64 `json:"killerSpeed,omitempty"`
	PsychologyCheck   bool    `json:"psychologyCheck,omitempty"`
	Difficulty        int     `json:"difficulty,omitempty"`
	Ending            string  `json:"ending,omitempty"`
}

func (KillerReactionPayload) EventName() Name { return KillerReaction }

// Choice is a selectable dialogue option as presented to the player.
type Choice struct {
	ID        string `json:"id"`
	Text      string `json:"text"`
	Alignment string `json:"alignment,omitempty"`
	End       bool   `json:"end,omitempty"`
}

// DialogueStartPayload opens a dialogue node or conversation.
type DialogueStartPayload struct {
	NodeID  string   `json:"nodeId"`
	Speaker string   `json:"speaker"`
	Lines   []string `json:"lines"`
	Choices []Choice `json:"choices,omitempty"`
}

func (DialogueStartPayload) EventName() Name { return DialogueStart }

// DialogueReactionPayload carries a speaker's reaction to a player utterance.
type DialogueReactionPayload struct {
	Speaker     string   `json:"speaker"`
	Response    string   `json:"response"`
	Intent      string   `json:"intent,omitempty"`
	Sentiment   string   `json:"sentiment,omitempty"`
	Emotion     string   `json:"emotion,omitempty"`
	Alignment   string   `json:"alignment,omitempty"`
	Consequence string   `json:"consequence,omitempty"`
	TrustDelta  float64  `json:"trustDelta,omitempty"`
	Suspicion   float64  `json:"suspicion,omitempty"`
	Choices     []Choice `json:"choices,omitempty"`
}

func (DialogueReactionPayload) EventName() Name { return DialogueReaction }

// PlayerHidingPayload is published when a hiding attempt starts.
type PlayerHidingPayload struct {
	SpotName    string `json:"spotName"`
	HidingPower int    `json:"hidingPower"`
	StressLevel int    `json:"stressLevel"`
}

func (PlayerHidingPayload) EventName() Name { return PlayerHiding }

// HidingDiscoveredPayload is published when the killer finds the player.
type HidingDiscoveredPayload struct {
	SpotName     string `json:"spotName"`
	KillerNearby bool   `json:"killerNearby"`
	StressLevel  int    `json:"stressLevel"`
}

func (HidingDiscoveredPayload) EventName() Name { return HidingDiscovered }

// AttackHitPayload is published when a player attack lands.
type AttackHitPayload struct {
	Weapon   string  `json:"weapon"`
	Damage   float64 `json:"damage"`
	Critical bool    `json:"critical"`
}

func (AttackHitPayload) EventName() Name { return AttackHit }

// AttackMissPayload is published when a player attack misses.
type AttackMissPayload struct {
	Weapon      string `json:"weapon"`
	StressLevel int    `json:"stressLevel"`
}

func (AttackMissPayload) EventName() Name { return AttackMiss }

// WeaponBrokenPayload is published when a weapon breaks and leaves the inventory.
type WeaponBrokenPayload struct {
	Weapon string `json:"weapon"`
}

func (WeaponBrokenPayload) EventName() Name { return WeaponBroken }

// PsychologySuccessPayload is published when a psychology tactic works.
type PsychologySuccessPayload struct {
	Tactic              string  `json:"tactic"`
	Chance              float64 `json:"chance"`
	EscapeWindowSeconds int     `json:"escapeWindowSeconds"`
}

func (PsychologySuccessPayload) EventName() Name { return PsychologySuccess }

// PsychologyFailedPayload is published when a psychology tactic fails.
type PsychologyFailedPayload struct {
	Tactic      string  `json:"tactic"`
	Chance      float64 `json:"chance"`
	StressLevel int     `json:"stressLevel"`
}

func (PsychologyFailedPayload) EventName() Name { return PsychologyFailed }

// EscapeSuccessPayload is published when an escape attempt works.
type EscapeSuccessPayload struct {
	Route        string `json:"route"`
	SafeDistance int    `json:"safeDistance"`
}

func (EscapeSuccessPayload) EventName() Name { return EscapeSuccess }

// EscapeFailedPayload is published when an escape attempt fails.
type EscapeFailedPayload struct {
	Route   string  `json:"route"`
	Chance  float64 `json:"chance"`
	Message string  `json:"message"`
}

func (EscapeFailedPayload) EventName() Name { return EscapeFailed }

// PlayerDeadPayload is published once when injuries reach the fatal count.
type PlayerDeadPayload struct {
	Injuries int    `json:"injuries"`
	Cause    string `json:"cause,omitempty"`
}

func (PlayerDeadPayload) EventName() Name { return PlayerDead }

// GovernmentResponsePayload reports an escalation of the authorities.
type GovernmentResponsePayload struct {
	Severity        string  `json:"severity"`
	Message         string  `json:"message"`
	PlayerCelebrity int     `json:"playerCelebrity"`
	HunterDanger    float64 `json:"hunterDanger"`
}

func (GovernmentResponsePayload) EventName() Name { return GovernmentResponse }

// Stats are the per-playthrough counters kept by the coordinator.
type Stats struct {
	TimePlayed          int `json:"timePlayed"`
	EncountersCompleted int `json:"encountersCompleted"`
	ChoicesMade         int `json:"choicesMade"`
	ItemsFound          int `json:"itemsFound"`
	KillsCommitted      int `json:"killsCommitted"`
	DeathCount          int `json:"deathCount"`
	EscapeCount         int `json:"escapeCount"`
}

// GameEndingPayload is published when the playthrough reaches an ending.
type GameEndingPayload struct {
	EndingType      string `json:"endingType"`
	Alignment       string `json:"alignment"`
	CorruptionLevel int    `json:"corruptionLevel"`
	Stats           Stats  `json:"stats"`
}

func (GameEndingPayload) EventName() Name { return GameEnding }

// EndingReachedPayload carries the alien-planet outcome.
type EndingReachedPayload struct {
	Type    string `json:"type"`
	Message string `json:"message"`
	Twist   string `json:"twist"`
}

func (EndingReachedPayload) EventName() Name { return EndingReached }

type GameStartPayload struct {
	Difficulty  string `json:"difficulty"`
	PlayerName  string `json:"playerName"`
	Playthrough int    `json:"playthrough"`
}

func (GameStartPayload) EventName() Name { return GameStart }

type GamePausePayload struct{}

func (GamePausePayload) EventName() Name { return GamePause }

type GameResumePayload struct{}

func (GameResumePayload) EventName() Name { return GameResume }

type GameResetPayload struct {
	Playthrough int `json:"playthrough"`
}

func (GameResetPayload) EventName() Name { return GameReset }

type KillerEncounterPayload struct {
	EncounterNumber int    `json:"encounterNumber"`
	KillerState     string `json:"killerState,omitempty"`
	Location        string `json:"location,omitempty"`
}

func (KillerEncounterPayload) EventName() Name { return KillerEncounter }

type AlignmentChangePayload struct {
	OldAlignment string `json:"oldAlignment"`
	NewAlignment string `json:"newAlignment"`
}

func (AlignmentChangePayload) EventName() Name { return AlignmentChange }

type CorruptionThresholdReachedPayload struct {
	CorruptionLevel int `json:"corruptionLevel"`
}

func (CorruptionThresholdReachedPayload) EventName() Name { return CorruptionThresholdReached }

type GovernmentAwarenessChangePayload struct {
	Awareness        int  `json:"awareness"`
	WantedLevel      int  `json:"wantedLevel"`
	MilitaryInvolved bool `json:"militaryInvolved"`
}

func (GovernmentAwarenessChangePayload) EventName() Name { return GovernmentAwarenessChange }

type LocationChangePayload struct {
	From       string `json:"from"`
	To         string `json:"to"`
	VisitCount int    `json:"visitCount"`
}

func (LocationChangePayload) EventName() Name { return LocationChange }

type NPCRelationshipChangePayload struct {
	NPCID    string  `json:"npcId"`
	Amount   float64 `json:"amount"`
	NewValue float64 `json:"newValue"`
}

func (NPCRelationshipChangePayload) EventName() Name { return NPCRelationshipChange }

type GameSavedPayload struct {
	Slot int `json:"slot"`
}

func (GameSavedPayload) EventName() Name { return GameSaved }

type GameLoadedPayload struct {
	Slot int `json:"slot"`
}

func (GameLoadedPayload) EventName() Name { return GameLoaded }

// KillerEvolvedPayload is published when the killer gains an evolution level.
type KillerEvolvedPayload struct {
	Level      int     `json:"level"`
	Difficulty float64 `json:"difficulty"`
}

func (KillerEvolvedPayload) EventName() Name { return KillerEvolved }

// AbilityUnlockedPayload is published for each ability unlocked by evolution.
type AbilityUnlockedPayload struct {
	Ability     string `json:"ability"`
	Description string `json:"description"`
	Level       int    `json:"level"`
}

func (AbilityUnlockedPayload) EventName() Name { return AbilityUnlocked }
