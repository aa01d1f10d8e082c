package location_test

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/cory-johannsen/destiny/internal/game/dice"
	"github.com/cory-johannsen/destiny/internal/game/location"
)

func TestDefaultCatalog_Loads(t *testing.T) {
	c, err := location.LoadDefault()
	require.NoError(t, err)
	assert.Len(t, c.Locations, 13)
	_, ok := c.Lookup(location.StartingLocation)
	assert.True(t, ok)
}

func TestAtmosphere(t *testing.T) {
	c := location.MustLoadDefault()
	assert.Equal(t, "Abandoned platform. Wet footsteps echo. Tunnel darkness.", c.Atmosphere("SUBWAY_STATION_A"))
	assert.Equal(t, "Crowded venue. Killer blends in. Easy prey.", c.Atmosphere("DOWNTOWN_NIGHTCLUB"))
	assert.Equal(t, "Dark, echoing subway tunnels with trains", c.Atmosphere("subway_main"))
	assert.Equal(t, location.UnknownAtmosphere, c.Atmosphere("MOON_BASE"))
}

func TestDifficulty(t *testing.T) {
	c := location.MustLoadDefault()
	assert.Equal(t, 10, c.Difficulty("ALIEN_SHIP"))
	assert.Equal(t, 4, c.Difficulty("POLICE_STATION"))
	assert.Equal(t, location.DefaultDifficulty, c.Difficulty("MOON_BASE"))
}

func TestAreaTables(t *testing.T) {
	c := location.MustLoadDefault()

	spots := c.HidingSpots(location.AreaSubway)
	require.Len(t, spots, 3)
	assert.Equal(t, "subway_ventshaft", spots[2].ID)
	assert.Equal(t, 7, spots[2].Requirements[location.Stealth])
	assert.Equal(t, 5, spots[2].Requirements[location.Endurance])

	assert.Equal(t, c.HidingSpots(location.AreaStreet), c.HidingSpots("NOWHERE"), "unknown areas fall back to street spots")

	weapons := c.Weapons(location.AreaResidentialHome)
	require.Len(t, weapons, 3)
	assert.Equal(t, ".38 Revolver", weapons[2].Name)
	assert.Equal(t, 4, weapons[2].Ammo)
	assert.Empty(t, c.Weapons("NOWHERE"))

	assert.Len(t, c.EscapeRoutes(location.AreaSubway), 2)
	assert.Empty(t, c.EscapeRoutes(location.AreaStreet))
}

func TestHidingSpots_ReturnsCopy(t *testing.T) {
	c := location.MustLoadDefault()
	spots := c.HidingSpots(location.AreaSubway)
	spots[0].Name = "changed"
	assert.Equal(t, "Under the Platform Bench", c.HidingSpots(location.AreaSubway)[0].Name)
}

func TestAreaOf(t *testing.T) {
	c := location.MustLoadDefault()
	assert.Equal(t, location.AreaResidentialHome, c.AreaOf("ABANDONED_HOME"))
	assert.Equal(t, location.FallbackArea, c.AreaOf("MOON_BASE"))
}

func TestLoad_RejectsBadReferences(t *testing.T) {
	_, err := location.Load([]byte(`
locations:
  - id: A
    area: MARS
    npc_density: crowded
    hide_spot_types: [nope]
    neighbors: [B]
    hazards: [{type: fire, damage: lots}]
spot_types: {}
areas: {}
`))
	require.Error(t, err)
	msg := err.Error()
	assert.Contains(t, msg, `unknown area "MARS"`)
	assert.Contains(t, msg, `unknown npc_density "crowded"`)
	assert.Contains(t, msg, `unknown hide spot type "nope"`)
	assert.Contains(t, msg, `neighbor "B" is not a location`)
	assert.Contains(t, msg, `hazard "fire"`)
	assert.Contains(t, msg, "generic_spot must be defined")
	assert.Contains(t, msg, "fallback area")
	assert.Contains(t, msg, "population")
}

func TestGenerate_UnknownLocation(t *testing.T) {
	g := location.NewGenerator(location.MustLoadDefault(), dice.NewSeededSource(1))
	_, err := g.Generate("MOON_BASE")
	assert.True(t, errors.Is(err, location.ErrUnknownLocation))
}

func TestGenerate_SubwayHasTrainHazard(t *testing.T) {
	g := location.NewGenerator(location.MustLoadDefault(), dice.NewSeededSource(7))
	in, err := g.Generate("subway_main")
	require.NoError(t, err)
	require.NotEmpty(t, in.Hazards)
	assert.Equal(t, "incoming_train", in.Hazards[0].Type)
	assert.Equal(t, 8*time.Second, in.Hazards[0].Warning)
	assert.Equal(t, 100, dice.Roll(in.Hazards[0].Damage, dice.NewSeededSource(1)).Total())
}

func TestGenerate_CavesHaveTemplateHazards(t *testing.T) {
	g := location.NewGenerator(location.MustLoadDefault(), dice.NewSeededSource(3))
	in, err := g.Generate("caves_system")
	require.NoError(t, err)
	require.Len(t, in.Hazards, 2)
	for _, h := range in.Hazards {
		dmg := dice.Roll(h.Damage, dice.NewSeededSource(9)).Total()
		assert.GreaterOrEqual(t, dmg, 25)
		assert.LessOrEqual(t, dmg, 74)
		assert.GreaterOrEqual(t, h.Warning, 3*time.Second)
		assert.Less(t, h.Warning, 13*time.Second)
	}
	assert.Empty(t, in.NPCs, "caves have no npcs")
}

func TestGenerate_SpotLookup(t *testing.T) {
	g := location.NewGenerator(location.MustLoadDefault(), dice.NewSeededSource(11))
	in, err := g.Generate("apartment_complex")
	require.NoError(t, err)
	s, ok := in.Spot("hidespot_apartment_complex_0")
	require.True(t, ok)
	assert.NotEmpty(t, s.Name)
	_, ok = in.Spot("missing")
	assert.False(t, ok)
}

func TestGeneratedSpot_Modifiers(t *testing.T) {
	assert.Equal(t, 0.7, location.GeneratedSpot{SoundProof: true}.AwarenessReduction())
	assert.Equal(t, 0.4, location.GeneratedSpot{}.AwarenessReduction())
	assert.Equal(t, 0.3, location.GeneratedSpot{PlayerVisible: true}.Visibility())
	assert.Equal(t, 0.05, location.GeneratedSpot{}.Visibility())
}

func TestProperty_Generate_RespectsTemplate(t *testing.T) {
	c := location.MustLoadDefault()
	rapid.Check(t, func(rt *rapid.T) {
		loc := rapid.SampledFrom(c.Locations).Draw(rt, "location")
		seed := rapid.Uint64().Draw(rt, "seed")
		in, err := location.NewGenerator(c, dice.NewSeededSource(seed)).Generate(loc.ID)
		require.NoError(rt, err)

		assert.Len(rt, in.HideSpots, loc.HideSpotCount)
		for _, s := range in.HideSpots {
			assert.Contains(rt, loc.HideSpotTypes, s.Type)
			assert.GreaterOrEqual(rt, s.RiskOfDiscovery, 0.0)
			assert.Less(rt, s.RiskOfDiscovery, 0.5)
		}
		assert.GreaterOrEqual(rt, len(in.Items), 3)
		assert.LessOrEqual(rt, len(in.Items), 7)

		switch loc.NPCDensity {
		case "none":
			assert.Empty(rt, in.NPCs)
		case "very_low":
			assert.Len(rt, in.NPCs, 1)
		case "low":
			assert.GreaterOrEqual(rt, len(in.NPCs), 2)
			assert.LessOrEqual(rt, len(in.NPCs), 3)
		case "medium":
			assert.GreaterOrEqual(rt, len(in.NPCs), 4)
			assert.LessOrEqual(rt, len(in.NPCs), 5)
		case "high":
			assert.GreaterOrEqual(rt, len(in.NPCs), 6)
			assert.LessOrEqual(rt, len(in.NPCs), 8)
		}
		for _, n := range in.NPCs {
			assert.NotEmpty(rt, n.Knowledge)
			assert.LessOrEqual(rt, len(n.Knowledge), 3)
			assert.Equal(rt, c.Population.Knowledge[0], n.Knowledge[0])
		}
	})
}

func TestGenerate_SameSeedSameContent(t *testing.T) {
	c := location.MustLoadDefault()
	a, err := location.NewGenerator(c, dice.NewSeededSource(5)).Generate("downtown_city")
	require.NoError(t, err)
	b, err := location.NewGenerator(c, dice.NewSeededSource(5)).Generate("downtown_city")
	require.NoError(t, err)
	assert.Equal(t, a, b)
}
