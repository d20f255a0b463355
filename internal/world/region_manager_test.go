package world

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/annel0/mmo-region/internal/protocol"
)

func TestUpdateRegions_TeleportAcrossMap(t *testing.T) {
	w, m := newTestWorld(t, 80, 80)
	e := addNPC(t, w, m, 1, 1)

	start, _ := m.GetRegion(0, 0)
	require.Same(t, start, e.Region())

	e.X, e.Y = 79, 79
	w.UpdateRegions(w.Maps())

	target, err := m.GetRegion(9, 9)
	require.NoError(t, err)
	assert.Same(t, target, e.Region())
	assert.Contains(t, start.EntityRemoves(), e.ID)
	assert.False(t, start.HasEntity(e.ID))
	assert.True(t, target.HasEntity(e.ID))

	u, ok := target.PendingUpdate(e.ID)
	require.True(t, ok)
	assert.NotZero(t, u.Flags&protocol.UpdateAdded, "Новый регион получает полное состояние")
}

func TestUpdateRegions_Hysteresis(t *testing.T) {
	w, m := newTestWorld(t, 32, 32)
	e := addNPC(t, w, m, 7.5, 4)
	home := e.Region()

	e.X = 8.5
	w.UpdateRegions(w.Maps())
	assert.Same(t, home, e.Region(), "Внутри границы с запасом сущность остаётся в регионе")
	assert.Empty(t, home.EntityRemoves())

	e.X = 9.5
	w.UpdateRegions(w.Maps())
	right, _ := m.GetRegion(1, 0)
	assert.Same(t, right, e.Region())
	assert.Equal(t, []EntityID{e.ID}, home.EntityRemoves())

	w.UpdateRegions(w.Maps())
	assert.Equal(t, []EntityID{e.ID}, home.EntityRemoves(), "Перенос происходит ровно один раз")

	e.X = 7.5
	w.UpdateRegions(w.Maps())
	assert.Same(t, right, e.Region(), "Обратно тоже с запасом")
}

func TestUpdateRegions_OutsideMapClampsToEdge(t *testing.T) {
	w, m := newTestWorld(t, 32, 32)
	e := addNPC(t, w, m, 30, 30)

	e.X, e.Y = 40, -5
	w.UpdateRegions(w.Maps())

	edge, _ := m.GetRegion(3, 0)
	assert.Same(t, edge, e.Region())
}

func TestUpdateRegions_SkipsNonMovable(t *testing.T) {
	w, m := newTestWorld(t, 32, 32)
	rock := NewEntity(EntityTypeObject, "rock", 0, 2, 2)
	require.NoError(t, w.AddEntity(rock, m))
	home := rock.Region()

	rock.X = 20
	w.UpdateRegions(w.Maps())
	assert.Same(t, home, rock.Region())
}

func TestGetExpectedRegion_SingleRegion(t *testing.T) {
	w, m := newTestWorld(t, 8, 8)
	e := addNPC(t, w, m, 4, 4)

	e.X, e.Y = 100, 100
	assert.Same(t, m.Regions()[0], GetExpectedRegion(e, m))
}

func TestGetExpectedRegion_Unassigned(t *testing.T) {
	m, err := NewMap("main", 32, 32)
	require.NoError(t, err)

	e := NewEntity(EntityTypeNPC, "", FlagMovable, 17, 9)
	expected, _ := m.GetRegion(2, 1)
	assert.Same(t, expected, GetExpectedRegion(e, m))
}
