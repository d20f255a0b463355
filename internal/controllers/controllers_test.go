package controllers

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/annel0/mmo-region/internal/vec"
	"github.com/annel0/mmo-region/internal/world"
)

const dt = 0.05

func newWorld(t *testing.T, width, height int) (*world.World, *world.Map) {
	t.Helper()
	m, err := world.NewMap("test", width, height)
	require.NoError(t, err)
	w := world.New(world.Options{Seed: 3})
	w.AddMap(m)
	return w, m
}

func TestWander_SpawnsNPCs(t *testing.T) {
	w, m := newWorld(t, 24, 24)
	c := NewWander(w, m, 5)
	w.AddController(c)
	w.Initialize(dt)

	require.Len(t, c.NPCs(), 5)
	assert.Equal(t, 5, w.EntityCount())
	for _, e := range c.NPCs() {
		assert.Equal(t, world.EntityTypeNPC, e.Type)
		assert.True(t, e.Movable())
		assert.NotNil(t, e.Region())
		assert.False(t, w.IsColliding(e, e.X, e.Y))
	}
}

func TestWander_StaysOnWalkableGround(t *testing.T) {
	w, m := newWorld(t, 16, 16)
	for x := 0; x < 16; x++ {
		require.NoError(t, m.InitTile(x, 8, world.TileWall))
	}
	m.Spawn = vec.Rect{X: 1, Y: 1, W: 14, H: 5}

	c := NewWander(w, m, 4)
	w.AddController(c)
	w.Initialize(dt)

	now := 0.0
	for i := 0; i < 400; i++ {
		now += dt
		w.Update(dt, now)
		for _, e := range c.NPCs() {
			require.True(t, m.Contains(e.X, e.Y), "NPC %s за картой: (%.2f, %.2f)", e.Name, e.X, e.Y)
			require.Less(t, e.Y, 8.0, "NPC %s прошёл сквозь стену", e.Name)
		}
	}
}

func TestWander_StopsBeforeWall(t *testing.T) {
	w, m := newWorld(t, 16, 16)
	require.NoError(t, m.InitTile(5, 2, world.TileWall))

	c := NewWander(w, m, 0)
	e := world.NewEntity(world.EntityTypeNPC, "npc", world.FlagMovable, 4.5, 2.5)
	e.Colliders = []vec.Rect{NPCCollider}
	require.NoError(t, w.AddEntity(e, m))
	c.npcs = append(c.npcs, &wanderer{entity: e, timer: 100})

	w.SetEntityPosition(e, 4.65, 2.5, world.SpeedWalking, 0)
	c.Update(dt)

	assert.Zero(t, e.VX)
	assert.Zero(t, e.VY)
	assert.InDelta(t, 4.7, e.X, 1e-9, "Бокс упирается в западный край стены")
	assert.Equal(t, world.PoseStanding, e.State.Pose())
}

type fakeSaver struct {
	calls []string
	err   error
}

func (f *fakeSaver) SaveMap(m *world.Map) (int, error) {
	f.calls = append(f.calls, m.Name)
	if f.err != nil {
		return 0, f.err
	}
	return 1, nil
}

func TestAutosave_Interval(t *testing.T) {
	w, _ := newWorld(t, 8, 8)
	saver := &fakeSaver{}
	c := NewAutosave(w, saver, 0.98)
	c.Initialize(dt)

	for i := 0; i < 19; i++ {
		c.Update(dt)
	}
	assert.Empty(t, saver.calls)

	c.Update(dt)
	assert.Equal(t, []string{"test"}, saver.calls)

	for i := 0; i < 20; i++ {
		c.Update(dt)
	}
	assert.Len(t, saver.calls, 2)
}

func TestAutosave_Disabled(t *testing.T) {
	w, _ := newWorld(t, 8, 8)
	saver := &fakeSaver{}
	c := NewAutosave(w, saver, 0)

	for i := 0; i < 100; i++ {
		c.Update(dt)
	}
	assert.Empty(t, saver.calls)
}

func TestAutosave_ErrorDoesNotStop(t *testing.T) {
	w, _ := newWorld(t, 8, 8)
	saver := &fakeSaver{err: errors.New("disk full")}
	c := NewAutosave(w, saver, 1.0)

	assert.Zero(t, c.SaveAll())
	saver.err = nil
	assert.Equal(t, 1, c.SaveAll())
}
