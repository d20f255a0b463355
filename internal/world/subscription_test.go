package world

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/annel0/mmo-region/internal/protocol"
	"github.com/annel0/mmo-region/internal/vec"
)

func TestJoin_AdmittedAfterCommit(t *testing.T) {
	w, m := newTestWorld(t, 64, 64)
	m.Spawn = vec.Rect{X: 2, Y: 2, W: 1, H: 1}

	conn := &fakeConn{}
	c := NewClient("acc", "Twilight", conn)
	w.QueueJoin(c)
	assert.Empty(t, w.Clients(), "До тика клиент только в очереди")

	w.Update(0.05, 1)

	require.Len(t, w.Clients(), 1)
	require.NotNil(t, c.Pony)
	assert.NotZero(t, c.Pony.ID)
	assert.Equal(t, "Twilight", c.Pony.Name)
	assert.True(t, c.Loading)
	assert.Same(t, m, c.Map)
	assert.True(t, m.Spawn.Contains(c.Pony.X, c.Pony.Y))
	assert.Empty(t, c.RegionUpdates(), "Коммит этого тика прошёл до входа")

	packets := decodeQueue(t, c.UpdateQueue())
	require.NotEmpty(t, packets)
	state, ok := packets[0].(*protocol.MapState)
	require.True(t, ok, "Первой записью идут параметры карты")
	assert.Equal(t, uint32(c.Pony.ID), state.PlayerID)
	assert.Equal(t, 64, state.Width)
	assert.Equal(t, RegionSize, state.RegionSize)

	assert.Equal(t, 4, countPackets[*protocol.Subscribe](packets))
	assert.Len(t, c.Regions, 4)

	var found bool
	for _, p := range packets {
		sub, ok := p.(*protocol.Subscribe)
		if !ok || sub.X != 0 || sub.Y != 0 {
			continue
		}
		for _, e := range sub.Entities {
			if e.ID == uint32(c.Pony.ID) {
				found = true
				assert.NotZero(t, e.Flags&protocol.UpdateAdded)
				assert.Equal(t, "Twilight", e.Name)
			}
		}
		tiles, err := protocol.DecompressTiles(sub.Tiles)
		require.NoError(t, err)
		assert.Len(t, tiles, RegionSize*RegionSize)
	}
	assert.True(t, found, "Свой персонаж есть в состоянии своего региона")

	_, pending := c.Pony.Region().PendingUpdate(c.Pony.ID)
	assert.True(t, pending, "Появление разошлётся остальным на следующем коммите")

	w.Move(c, MoveRequest{X: 2.5, Y: 2.5, Time: 1})
	assert.NotEqual(t, 2.5, c.Pony.X, "Пока карта грузится, движение игнорируется")
}

func TestJoin_NoMap(t *testing.T) {
	w := New(Options{})
	conn := &fakeConn{}
	c := NewClient("acc", "lost", conn)
	w.QueueJoin(c)
	w.Update(0.05, 1)

	assert.Empty(t, w.Clients())
	require.Len(t, conn.disconnects, 1)
	assert.True(t, conn.disconnects[0].immediate)
}

func TestSubscriptions_FollowCamera(t *testing.T) {
	w, m := newTestWorld(t, 64, 64)
	c, _ := joinClient(t, w, m, "acc", 4, 4)
	require.Len(t, c.Regions, 4)
	oldRegions := append([]*Region(nil), c.Regions...)

	c.Camera = vec.NewRectCentered(50, 50, DefaultCameraWidth, DefaultCameraHeight)
	w.UpdateRegions(w.Maps())

	packets := decodeQueue(t, c.UpdateQueue())
	assert.Equal(t, 4, countPackets[*protocol.Unsubscribe](packets))
	assert.Equal(t, 9, countPackets[*protocol.Subscribe](packets))
	assert.Len(t, c.Regions, 9)

	for _, r := range oldRegions {
		assert.False(t, r.HasClient(c))
	}
	for _, r := range c.Regions {
		assert.True(t, r.HasClient(c))
		assert.True(t, r.X >= 5 && r.X <= 7 && r.Y >= 5 && r.Y <= 7, "Регион (%d, %d) вне камеры", r.X, r.Y)
	}
}

func TestSubscriptions_StableCameraIsQuiet(t *testing.T) {
	w, m := newTestWorld(t, 64, 64)
	c, _ := joinClient(t, w, m, "acc", 20, 20)

	w.UpdateRegions(w.Maps())
	assert.Empty(t, c.UpdateQueue())
}

func TestUnsubscribeFromAllRegions_Silent(t *testing.T) {
	w, m := newTestWorld(t, 64, 64)
	c, _ := joinClient(t, w, m, "acc", 20, 20)
	regions := append([]*Region(nil), c.Regions...)
	require.NotEmpty(t, regions)

	w.UnsubscribeFromAllRegions(c, true)
	assert.Empty(t, c.Regions)
	assert.Empty(t, c.UpdateQueue())
	for _, r := range regions {
		assert.False(t, r.HasClient(c))
	}
}

func TestUnsubscribeFromAllRegions_Loud(t *testing.T) {
	w, m := newTestWorld(t, 64, 64)
	c, _ := joinClient(t, w, m, "acc", 20, 20)
	n := len(c.Regions)

	w.UnsubscribeFromAllRegions(c, false)
	assert.Equal(t, n, countPackets[*protocol.Unsubscribe](decodeQueue(t, c.UpdateQueue())))
}

func TestSubscribe_HidesShadowedEntities(t *testing.T) {
	w, m := newTestWorld(t, 64, 64)
	hidden, _ := joinClient(t, w, m, "hidden", 20, 20)
	w.SetShadowed(hidden, true)

	viewer, _ := joinClient(t, w, m, "viewer", 40, 40)
	viewer.Camera = vec.NewRectCentered(20, 20, DefaultCameraWidth, DefaultCameraHeight)
	w.UpdateRegions(w.Maps())

	for _, p := range decodeQueue(t, viewer.UpdateQueue()) {
		sub, ok := p.(*protocol.Subscribe)
		if !ok {
			continue
		}
		for _, e := range sub.Entities {
			assert.NotEqual(t, uint32(hidden.Pony.ID), e.ID, "Скрытый персонаж не виден при подписке")
		}
	}
}

func TestLeaveClient(t *testing.T) {
	w, m := newTestWorld(t, 64, 64)
	c, conn := joinClient(t, w, m, "acc", 20, 20)
	pony := c.Pony
	region := pony.Region()

	w.LeaveClient(c, "bye")

	assert.Empty(t, w.Clients())
	_, ok := w.Entity(pony.ID)
	assert.False(t, ok)
	assert.Contains(t, region.EntityRemoves(), pony.ID)
	assert.Empty(t, c.Regions)
	assert.Equal(t, []string{"bye"}, conn.left)
}

func TestKick(t *testing.T) {
	w, m := newTestWorld(t, 64, 64)
	c, conn := joinClient(t, w, m, "acc", 20, 20)

	w.Kick(c, "")
	require.Len(t, conn.disconnects, 1)
	assert.Equal(t, disconnectCall{reason: "kicked"}, conn.disconnects[0])
}
