package chase_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/cory-johannsen/keeper/internal/game/character"
	"github.com/cory-johannsen/keeper/internal/game/chase"
	"github.com/cory-johannsen/keeper/internal/game/check"
	"github.com/cory-johannsen/keeper/internal/game/dice"
)

func runner(id string, role chase.Role, loc, speed int) *chase.Participant {
	return &chase.Participant{
		ID: id, Name: id, Role: role,
		Speed: speed, DEX: 50, CON: 50, HP: 10, MaxHP: 10,
		Location: loc,
	}
}

func newChase(t *testing.T, track chase.Track, src dice.Source, ps ...*chase.Participant) *chase.Chase {
	t.Helper()
	c, err := chase.New(track, src)
	require.NoError(t, err)
	for _, p := range ps {
		require.NoError(t, c.Add(p))
	}
	c.Start()
	return c
}

func nextRound(c *chase.Chase) {
	r := c.Round
	for c.Round == r && !c.IsOver() {
		c.AdvanceTurn()
	}
}

func TestScenario_ChaseEscape(t *testing.T) {
	prey := runner("prey", chase.Prey, 5, 2)
	hunter := runner("hunter", chase.Pursuer, 1, 1)
	c := newChase(t, chase.NewTrack("road", 6), dice.NewScriptedSource(50), prey, hunter)

	entries, err := c.SpeedPhase()
	require.NoError(t, err)
	assert.Equal(t, 6, prey.Location)
	assert.Equal(t, 2, hunter.Location)
	assert.True(t, prey.Escaped)
	assert.False(t, prey.IsActive())
	assert.True(t, c.IsOver())
	assert.Equal(t, chase.EntryEscaped, entries[len(entries)-1].Kind)

	_, err = c.ExtraMove("prey")
	assert.ErrorIs(t, err, chase.ErrParticipantInactive)
}

func TestScenario_BarrierBlock(t *testing.T) {
	track := chase.NewTrack("alley", 6)
	track.Locations[2].Barrier = &chase.Barrier{Name: "a locked gate", Skill: "Climb", Difficulty: check.Regular}
	prey := runner("prey", chase.Prey, 1, 3)
	c := newChase(t, track, dice.NewScriptedSource(20), prey)

	entries, err := c.SpeedPhase()
	require.NoError(t, err)
	assert.Equal(t, 3, prey.Location)
	require.Len(t, entries, 1)
	assert.Contains(t, entries[0].Summary, "a locked gate")

	nextRound(c)
	_, err = c.SpeedPhase()
	require.NoError(t, err)
	assert.Equal(t, 3, prey.Location, "a participant on a barrier does not move")

	// No Climb skill: the default of 50 applies and 20 passes.
	e, err := c.AttemptObstacle("prey")
	require.NoError(t, err)
	require.NotNil(t, e.Check)
	assert.Equal(t, 50, e.Check.Target)
	assert.True(t, e.Check.Passed)
	assert.Equal(t, 4, prey.Location)
}

func TestAttemptObstacle_FailureStays(t *testing.T) {
	track := chase.NewTrack("alley", 6)
	track.Locations[0].Barrier = &chase.Barrier{Skill: "Climb", Value: 40, Difficulty: check.Hard}
	prey := runner("prey", chase.Prey, 1, 3)
	c := newChase(t, track, dice.NewScriptedSource(25), prey)

	e, err := c.AttemptObstacle("prey")
	require.NoError(t, err)
	// 25 against 40 is a regular success, short of hard.
	assert.Equal(t, 40, e.Check.Target)
	assert.False(t, e.Check.Passed)
	assert.Equal(t, 1, prey.Location)
}

func TestAttemptObstacle_Hazard(t *testing.T) {
	tests := []struct {
		name   string
		faces  []int
		passed bool
		hp     int
	}{
		{"passed avoids damage", []int{30}, true, 10},
		{"failed takes damage", []int{80, 4}, false, 6},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			track := chase.NewTrack("docks", 6)
			track.Locations[1].Hazard = &chase.Hazard{Name: "a rotten plank", Skill: "Jump", Damage: "1D6"}
			prey := runner("prey", chase.Prey, 2, 1)
			c := newChase(t, track, dice.NewScriptedSource(tc.faces...), prey)

			e, err := c.AttemptObstacle("prey")
			require.NoError(t, err)
			assert.Equal(t, chase.EntryHazard, e.Kind)
			require.NotNil(t, e.Check)
			assert.Equal(t, 50, e.Check.Target)
			assert.Equal(t, tc.passed, e.Check.Passed)
			assert.Equal(t, tc.hp, prey.HP)
			assert.Equal(t, 2, prey.Location)
			if tc.passed {
				assert.Nil(t, e.Damage)
			} else {
				require.NotNil(t, e.Damage)
				assert.Equal(t, 4, e.Damage.Total())
			}

			_, err = c.AttemptObstacle("prey")
			assert.ErrorIs(t, err, chase.ErrHazardChecked)
			assert.Equal(t, tc.hp, prey.HP, "a second attempt in the round deals nothing")

			nextRound(c)
			_, err = c.AttemptObstacle("prey")
			assert.NoError(t, err)
		})
	}
}

func TestExtraMove_OntoHazard(t *testing.T) {
	track := chase.NewTrack("docks", 6)
	track.Locations[1].Hazard = &chase.Hazard{Name: "an oil slick", Skill: "Dodge", Damage: "1D6"}
	prey := runner("prey", chase.Prey, 1, 1)
	// CON 10 passes, the hazard roll of 90 fails, the 1D6 shows 5.
	c := newChase(t, track, dice.NewScriptedSource(10, 90, 5), prey)

	e, err := c.ExtraMove("prey")
	require.NoError(t, err)
	assert.True(t, e.Check.Passed)
	assert.Equal(t, 2, e.To)
	assert.Equal(t, 2, prey.Location)
	assert.Equal(t, 5, prey.HP)

	log := c.Log()
	haz := log[len(log)-1]
	assert.Equal(t, chase.EntryHazard, haz.Kind)
	assert.False(t, haz.Check.Passed)
	require.NotNil(t, haz.Damage)
	assert.Equal(t, 5, haz.Damage.Total())
	assert.Contains(t, haz.Summary, "an oil slick")

	_, err = c.AttemptObstacle("prey")
	assert.ErrorIs(t, err, chase.ErrHazardChecked)
	assert.Equal(t, 5, prey.HP)
}

func TestSpeedPhase_Caught(t *testing.T) {
	prey := runner("prey", chase.Prey, 3, 1)
	hunter := runner("hunter", chase.Pursuer, 1, 4)
	c := newChase(t, chase.NewTrack("road", 10), dice.NewScriptedSource(50), prey, hunter)

	_, err := c.SpeedPhase()
	require.NoError(t, err)
	assert.Equal(t, 4, prey.Location)
	assert.Equal(t, 5, hunter.Location)
	assert.True(t, prey.Caught)
	assert.False(t, prey.Escaped)
	assert.True(t, hunter.IsActive())
	assert.True(t, c.IsOver())
}

func TestSpeedPhase_CaughtAtTrackEnd(t *testing.T) {
	prey := runner("prey", chase.Prey, 4, 2)
	hunter := runner("hunter", chase.Pursuer, 3, 5)
	c := newChase(t, chase.NewTrack("road", 6), dice.NewScriptedSource(50), prey, hunter)

	_, err := c.SpeedPhase()
	require.NoError(t, err)
	assert.Equal(t, 6, prey.Location)
	assert.Equal(t, 6, hunter.Location)
	assert.True(t, prey.Caught)
	assert.False(t, prey.Escaped)
}

func TestSpeedPhase_HazardEliminates(t *testing.T) {
	track := chase.NewTrack("rooftops", 6)
	track.Locations[1].Hazard = &chase.Hazard{Name: "a gap between roofs", Skill: "Jump", Damage: "1D6"}
	prey := runner("prey", chase.Prey, 1, 3)
	prey.HP = 3
	c := newChase(t, track, dice.NewScriptedSource(90, 6), prey)

	entries, err := c.SpeedPhase()
	require.NoError(t, err)
	assert.Equal(t, 2, prey.Location)
	assert.True(t, prey.Eliminated)
	assert.Equal(t, 0, prey.HP)
	assert.True(t, c.IsOver())

	require.Len(t, entries, 2)
	haz := entries[0]
	assert.Equal(t, chase.EntryHazard, haz.Kind)
	assert.Equal(t, 50, haz.Check.Target)
	require.NotNil(t, haz.Damage)
	assert.Equal(t, 6, haz.Damage.Total())
}

func TestSpeedPhase_HazardPassedWithSkill(t *testing.T) {
	track := chase.NewTrack("rooftops", 6)
	track.Locations[1].Hazard = &chase.Hazard{Skill: "Jump", Difficulty: check.Regular, Damage: "1D6"}
	prey := runner("prey", chase.Prey, 1, 3)
	prey.Skills = []character.SkillGroup{{Name: "Physical", Skills: []character.Skill{{Name: "Jump", Value: 95}}}}
	c := newChase(t, track, dice.NewScriptedSource(90), prey)

	_, err := c.SpeedPhase()
	require.NoError(t, err)
	assert.Equal(t, 4, prey.Location)
	assert.Equal(t, 10, prey.HP)
}

func TestSpeedPhase_OncePerRound(t *testing.T) {
	prey := runner("prey", chase.Prey, 1, 1)
	c := newChase(t, chase.NewTrack("road", 10), dice.NewScriptedSource(50), prey)
	_, err := c.SpeedPhase()
	require.NoError(t, err)
	_, err = c.SpeedPhase()
	assert.ErrorIs(t, err, chase.ErrSpeedPhaseDone)
	assert.Equal(t, 2, prey.Location)

	nextRound(c)
	_, err = c.SpeedPhase()
	require.NoError(t, err)
	assert.Equal(t, 3, prey.Location)
}

func TestExtraMove_DifficultyEscalatesAndExhausts(t *testing.T) {
	prey := runner("prey", chase.Prey, 1, 1)
	prey.CON = 60
	c := newChase(t, chase.NewTrack("road", 6), dice.NewScriptedSource(25, 25, 25, 2), prey)

	want := []check.Difficulty{check.Regular, check.Hard, check.Extreme}
	for i, d := range want {
		e, err := c.ExtraMove("prey")
		require.NoError(t, err)
		assert.Equal(t, d, e.Check.Difficulty, "attempt %d", i+1)
		assert.Equal(t, "CON", e.Check.Skill)
	}
	assert.Equal(t, 3, prey.Location)
	assert.Equal(t, 3, prey.ExtraMoveAttempts)
	assert.True(t, prey.Exhausted)
	assert.Equal(t, 8, prey.HP)

	_, err := c.ExtraMove("prey")
	assert.ErrorIs(t, err, chase.ErrExhausted)
	assert.Equal(t, 3, prey.ExtraMoveAttempts)

	nextRound(c)
	assert.False(t, prey.Exhausted)
	assert.Equal(t, 0, prey.ExtraMoveAttempts)
	assert.Equal(t, 0, prey.MovesMade)
}

func TestExtraMove_BarrierCancelsAdvance(t *testing.T) {
	track := chase.NewTrack("alley", 6)
	track.Locations[1].Barrier = &chase.Barrier{Skill: "Climb"}
	prey := runner("prey", chase.Prey, 1, 1)
	c := newChase(t, track, dice.NewScriptedSource(10), prey)

	e, err := c.ExtraMove("prey")
	require.NoError(t, err)
	assert.True(t, e.Check.Passed)
	assert.Equal(t, 1, prey.Location)
	assert.Equal(t, 1, prey.ExtraMoveAttempts)
}

func TestExtraMove_MountedUsesDriveAndCollision(t *testing.T) {
	car := runner("car", chase.Pursuer, 1, 5)
	car.Mounted = true
	car.HP, car.MaxHP = 15, 15
	car.Skills = []character.SkillGroup{{Name: "Practical", Skills: []character.Skill{{Name: "Drive Auto", Value: 40}}}}
	c := newChase(t, chase.NewTrack("highway", 10), dice.NewScriptedSource(70, 9), car)

	e, err := c.ExtraMove("car")
	require.NoError(t, err)
	assert.Equal(t, chase.DriveSkill, e.Check.Skill)
	assert.Equal(t, 40, e.Check.Target)
	assert.False(t, e.Check.Passed)
	require.NotNil(t, e.Damage)
	assert.Equal(t, "1D10", e.Damage.Expression)
	assert.Equal(t, 6, car.HP)
	assert.True(t, car.Exhausted)
}

func TestInvalidInvocations(t *testing.T) {
	prey := runner("prey", chase.Prey, 1, 1)
	c := newChase(t, chase.NewTrack("road", 6), dice.NewScriptedSource(10), prey)

	_, err := c.ExtraMove("nobody")
	assert.ErrorIs(t, err, chase.ErrParticipantNotFound)
	_, err = c.AttemptObstacle("nobody")
	assert.ErrorIs(t, err, chase.ErrParticipantNotFound)
	_, err = c.AttemptObstacle("prey")
	assert.ErrorIs(t, err, chase.ErrNoObstacle)
	assert.Empty(t, c.Log())
	assert.Equal(t, 1, prey.Location)

	assert.ErrorIs(t, c.Add(runner("far", chase.Prey, 7, 1)), chase.ErrOffTrack)
	assert.ErrorIs(t, c.Add(runner("prey", chase.Prey, 1, 1)), chase.ErrDuplicateParticipant)
}

func TestTurnOrder_SkipsInactiveAndWrapsRound(t *testing.T) {
	a := runner("a", chase.Prey, 1, 1)
	a.DEX = 40
	b := runner("b", chase.Pursuer, 1, 1)
	b.DEX = 70
	d := runner("d", chase.Prey, 1, 1)
	d.DEX = 60
	c := newChase(t, chase.NewTrack("road", 10), dice.NewScriptedSource(10), a, b, d)

	assert.Equal(t, "b", c.Current().ID)
	assert.Equal(t, "d", c.AdvanceTurn().ID)
	d.Eliminated = true
	assert.Equal(t, "a", c.AdvanceTurn().ID)
	assert.Equal(t, 1, c.Round)
	assert.Equal(t, "b", c.AdvanceTurn().ID)
	assert.Equal(t, 2, c.Round)
	assert.Len(t, c.TurnOrder(), 2)
}

func TestMaxRounds_PreyGetsAway(t *testing.T) {
	prey := runner("prey", chase.Prey, 3, 1)
	hunter := runner("hunter", chase.Pursuer, 1, 1)
	rules := chase.DefaultRules()
	rules.MaxRounds = 2
	c, err := chase.New(chase.NewTrack("moor", 20), dice.NewScriptedSource(10), chase.WithRules(rules))
	require.NoError(t, err)
	require.NoError(t, c.Add(prey))
	require.NoError(t, c.Add(hunter))
	c.Start()

	for !c.IsOver() {
		_, err := c.SpeedPhase()
		require.NoError(t, err)
		nextRound(c)
	}
	assert.True(t, prey.Escaped)
	assert.Equal(t, 3, c.Round)
}

func TestSpeedPhase_Property_LocationMonotonic(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		n := rapid.IntRange(2, 12).Draw(rt, "length")
		track := chase.NewTrack("generated", n)
		for i := range track.Locations {
			switch rapid.IntRange(0, 4).Draw(rt, "obstacle") {
			case 0:
				track.Locations[i].Barrier = &chase.Barrier{Skill: "Climb", Difficulty: check.DifficultyFromTier(rapid.IntRange(1, 3).Draw(rt, "tier"))}
			case 1:
				track.Locations[i].Hazard = &chase.Hazard{Skill: "Jump", Difficulty: check.Regular, Damage: "1D4"}
			}
		}

		last := map[string]int{}
		var violations []string
		c, err := chase.New(track, dice.NewSeededSource(rapid.Uint64().Draw(rt, "seed")),
			chase.WithObserver(func(e chase.LogEntry) {
				if e.To < e.From || e.To > n {
					violations = append(violations, e.Summary)
				}
				if e.To < last[e.ParticipantID] {
					violations = append(violations, e.Summary)
				}
				last[e.ParticipantID] = e.To
			}))
		require.NoError(rt, err)
		count := rapid.IntRange(1, 4).Draw(rt, "participants")
		for i := 0; i < count; i++ {
			role := chase.Role(rapid.IntRange(0, 1).Draw(rt, "role"))
			p := runner(string(rune('a'+i)), role, rapid.IntRange(1, n).Draw(rt, "loc"), rapid.IntRange(0, 6).Draw(rt, "speed"))
			p.DEX = rapid.IntRange(1, 99).Draw(rt, "dex")
			require.NoError(rt, c.Add(p))
			last[p.ID] = p.Location
		}
		c.Start()

		for round := 0; round < 4 && !c.IsOver(); round++ {
			before := map[string]int{}
			for _, p := range c.Participants() {
				before[p.ID] = p.Location
			}
			_, err := c.SpeedPhase()
			require.NoError(rt, err)
			for _, p := range c.Participants() {
				assert.GreaterOrEqual(rt, p.Location, before[p.ID])
				assert.LessOrEqual(rt, p.Location, n)
				assert.LessOrEqual(rt, boolCount(p.Eliminated, p.Escaped, p.Caught), 1)
			}
			nextRound(c)
		}
		assert.Empty(rt, violations)
	})
}

func boolCount(bs ...bool) int {
	n := 0
	for _, b := range bs {
		if b {
			n++
		}
	}
	return n
}

const trackYAML = `
name: Dockside
locations:
  - name: warehouse
  - name: crates
    hazard: {name: toppling crates, skill: Dodge, difficulty: 2, damage: "1D4"}
  - name: fence
    barrier: {name: chain-link fence, skill: Climb, difficulty: 1}
  - name: pier
`

func TestParseAndLoadTrack(t *testing.T) {
	tr, err := chase.ParseTrack([]byte(trackYAML))
	require.NoError(t, err)
	assert.Equal(t, 4, tr.Len())
	assert.Equal(t, 3, tr.At(3).Position)
	require.NotNil(t, tr.At(2).Hazard)
	assert.Equal(t, check.Hard, tr.At(2).Hazard.Difficulty)
	require.NotNil(t, tr.At(3).Barrier)
	assert.Nil(t, tr.At(0))
	assert.Nil(t, tr.At(5))

	path := filepath.Join(t.TempDir(), "dockside.yaml")
	require.NoError(t, os.WriteFile(path, []byte(trackYAML), 0o644))
	loaded, err := chase.LoadTrack(path)
	require.NoError(t, err)
	assert.Equal(t, tr, loaded)
}

func TestParseTrack_Invalid(t *testing.T) {
	bad := []string{
		"name: empty\nlocations: []\n",
		"name: x\nlocations:\n  - hazard: {skill: Jump, damage: \"2Q\"}\n",
		"name: x\nlocations:\n  - barrier: {skill: \"\"}\n",
		"name: x\nlocations:\n  - barrier: {skill: Climb, difficulty: 4}\n",
		"name: x\nbogus: true\n",
	}
	for _, y := range bad {
		_, err := chase.ParseTrack([]byte(y))
		assert.Error(t, err, y)
	}
}

func TestFromInvestigator_Vehicle(t *testing.T) {
	inv := &character.Investigator{
		Key: "harvey", Name: "Harvey",
		Stats:   character.Characteristics{STR: 40, CON: 50, SIZ: 60, DEX: 55, POW: 50},
		Vehicle: &character.Vehicle{Name: "Model T", Speed: 12, Build: 2},
	}
	p := chase.FromInvestigator(inv, chase.Prey, 2)
	assert.True(t, p.Mounted)
	assert.Equal(t, 12, p.Speed)
	assert.Equal(t, 2, p.Location)
	assert.Equal(t, 11, p.HP)

	cr := &character.Creature{Key: "hound", Name: "Hound", Stats: character.Characteristics{STR: 90, CON: 70, SIZ: 60, DEX: 80}}
	q := chase.FromCreature(cr, chase.Pursuer, 1)
	assert.False(t, q.Mounted)
	assert.Equal(t, 9, q.Speed)
	assert.Equal(t, "active", q.Status())
}

func TestFromInvestigator_RestoredCondition(t *testing.T) {
	stats := character.Characteristics{STR: 40, CON: 50, SIZ: 60, DEX: 55, POW: 50}

	over := &character.Investigator{Key: "a", Name: "A", Stats: stats, MaxHP: 11, HP: 15}
	p := chase.FromInvestigator(over, chase.Prey, 1)
	assert.Equal(t, 11, p.HP)
	assert.True(t, p.IsActive())

	down := &character.Investigator{Key: "b", Name: "B", Stats: stats}
	down.Restore(0, 40, 10, character.Condition{})
	q := chase.FromInvestigator(down, chase.Prey, 1)
	assert.Equal(t, 0, q.HP)
	assert.True(t, q.Eliminated)
	assert.Equal(t, "eliminated", q.Status())

	dying := &character.Investigator{Key: "c", Name: "C", Stats: stats}
	dying.Restore(3, 40, 10, character.Condition{MajorWound: true, Dying: true})
	assert.False(t, chase.FromInvestigator(dying, chase.Pursuer, 1).IsActive())
}

func TestEngine_Registry(t *testing.T) {
	eng := chase.NewEngine()
	ch, err := eng.Begin(chase.NewTrack("road", 3), dice.NewCryptoSource())
	require.NoError(t, err)
	got, err := eng.Get(ch.ID)
	require.NoError(t, err)
	assert.Same(t, ch, got)
	_, err = eng.End(ch.ID)
	require.NoError(t, err)
	_, err = eng.Get(ch.ID)
	assert.ErrorIs(t, err, chase.ErrChaseNotFound)

	_, err = eng.Begin(chase.Track{Name: "empty"}, dice.NewCryptoSource())
	assert.Error(t, err)
}
