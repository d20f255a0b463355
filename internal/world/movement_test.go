package world

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/annel0/mmo-region/internal/protocol"
	"github.com/annel0/mmo-region/internal/vec"
)

func TestMove_OutsideMapDisconnects(t *testing.T) {
	w, m := newTestWorld(t, 100, 100)
	c, conn := joinClient(t, w, m, "acc", 50, 50)

	w.Move(c, MoveRequest{X: 150, Y: 20, Time: 1})

	require.Len(t, conn.disconnects, 1)
	assert.True(t, strings.HasPrefix(conn.disconnects[0].reason, "outside map"))
	assert.True(t, conn.disconnects[0].immediate)
	assert.Equal(t, 50.0, c.Pony.X, "Позиция не должна меняться")
	assert.Equal(t, 50.0, c.Pony.Y)
	_, pending := c.Pony.Region().PendingUpdate(c.Pony.ID)
	assert.False(t, pending)
}

func TestMove_IgnoredWhileLoadingOrFixing(t *testing.T) {
	w, m := newTestWorld(t, 32, 32)
	c, _ := joinClient(t, w, m, "acc", 4, 4)

	c.Loading = true
	w.Move(c, MoveRequest{X: 5, Y: 4, Time: 1})
	assert.Equal(t, 4.0, c.Pony.X)

	c.Loading = false
	c.FixingPosition = true
	w.Move(c, MoveRequest{X: 5, Y: 4, Time: 1})
	assert.Equal(t, 4.0, c.Pony.X)

	w.FixedPosition(c)
	w.Move(c, MoveRequest{X: 5, Y: 4, Time: 1})
	assert.Equal(t, 5.0, c.Pony.X)
}

func TestMove_AppliesStateAndVelocity(t *testing.T) {
	w, m := newTestWorld(t, 32, 32)
	c, _ := joinClient(t, w, m, "acc", 4, 4)

	w.Move(c, MoveRequest{
		X: 4.5, Y: 4,
		Dir:   2,
		State: PoseTrotting | StateHeadTurned | StateFacingRight,
		Time:  1,
		Camera: vec.Rect{
			X: 0, Y: 0, W: 20, H: 15,
		},
	})

	pony := c.Pony
	assert.Equal(t, PoseTrotting|StateFacingRight, pony.State, "Поворот головы сбрасывается при движении")
	assert.InDelta(t, SpeedTrotting, pony.VX, 1e-9)
	assert.InDelta(t, 0, pony.VY, 1e-9)
	assert.Equal(t, vec.Rect{W: 20, H: 15}, c.Camera)
	assert.Equal(t, 4.5, c.SafeX)
	assert.Equal(t, 1.0, c.LastTime)

	u, ok := pony.Region().PendingUpdate(pony.ID)
	require.True(t, ok)
	assert.Equal(t, protocol.UpdatePosition|protocol.UpdateState, u.Flags)
	assert.Equal(t, 4.5, u.X)

	w.Move(c, MoveRequest{X: 4.6, Y: 4, Dir: 2, State: PoseSitting, Time: 1.1})
	assert.Equal(t, PoseStanding, pony.State, "Сидеть на ходу нельзя")
	assert.Zero(t, pony.VX)
}

func TestMove_ClearsCancellableExpression(t *testing.T) {
	w, m := newTestWorld(t, 32, 32)
	c, _ := joinClient(t, w, m, "acc", 4, 4)

	w.SetEntityExpression(c.Pony, 9, true)
	w.CommitRegionUpdates(w.Maps())

	w.Move(c, MoveRequest{X: 4.2, Y: 4, Time: 1})
	assert.Zero(t, c.Pony.Expression)

	u, ok := c.Pony.Region().PendingUpdate(c.Pony.ID)
	require.True(t, ok)
	assert.NotZero(t, u.Flags&protocol.UpdateExpression)

	w.SetEntityExpression(c.Pony, 4, false)
	w.Move(c, MoveRequest{X: 4.3, Y: 4, Time: 1.2})
	assert.Equal(t, uint32(4), c.Pony.Expression, "Постоянное выражение остаётся")
}

func TestMove_CollisionSnapsBackToSafe(t *testing.T) {
	w, m := newTestWorld(t, 16, 16)
	require.NoError(t, m.InitTile(6, 4, TileWall))
	c, conn := joinClient(t, w, m, "acc", 4.5, 4.5)

	w.Move(c, MoveRequest{X: 6.5, Y: 4.5, Time: 1})

	require.Len(t, conn.fixes, 1)
	assert.Equal(t, fixCall{x: 4.5, y: 4.5, safe: true}, conn.fixes[0])
	assert.Equal(t, 4.5, c.Pony.X)
	assert.True(t, c.FixingPosition)
	assert.Equal(t, 4.5, c.LastX)
}

func TestMove_CollidingSafePositionLeavesEntity(t *testing.T) {
	w, m := newTestWorld(t, 16, 16)
	require.NoError(t, m.InitTile(6, 4, TileWall))
	c, conn := joinClient(t, w, m, "acc", 4.5, 4.5)
	c.SafeX, c.SafeY = 6.5, 4.5

	w.Move(c, MoveRequest{X: 6.6, Y: 4.5, Time: 1})

	assert.Empty(t, conn.fixes)
	assert.Equal(t, 6.6, c.Pony.X)
	assert.Equal(t, 6.5, c.SafeX, "Безопасная позиция не обновляется")
}

func TestMove_LaggingKick(t *testing.T) {
	w, m := newTestWorldWith(t, 32, 32, Options{Settings: Settings{LogLagging: true, KickLagging: true}})
	c, conn := joinClient(t, w, m, "acc", 4, 4)

	w.Move(c, MoveRequest{X: 4.2, Y: 4, Time: 1})
	require.Empty(t, conn.disconnects)

	w.Move(c, MoveRequest{X: 4.4, Y: 4, Time: 1 + LagLimit + 1})
	require.Len(t, conn.disconnects, 1)
	assert.Equal(t, disconnectCall{reason: "lagging", immediate: false}, conn.disconnects[0])
	assert.Equal(t, 4.2, c.Pony.X)
}

func TestMove_LaggingLogOnly(t *testing.T) {
	w, m := newTestWorldWith(t, 32, 32, Options{Settings: Settings{LogLagging: true}})
	c, conn := joinClient(t, w, m, "acc", 4, 4)

	w.Move(c, MoveRequest{X: 4.2, Y: 4, Time: 1})
	w.Move(c, MoveRequest{X: 4.4, Y: 4, Time: 30})

	assert.Empty(t, conn.disconnects)
	assert.Equal(t, 4.4, c.Pony.X)
}

func TestMove_TeleportFixAndReport(t *testing.T) {
	counter := newFakeCounter()
	reporter := &fakeReporter{}
	w, m := newTestWorldWith(t, 32, 32, Options{
		Settings: Settings{FixTeleporting: true, ReportTeleporting: true, TeleportLimit: 1},
		Counter:  counter,
		Reporter: reporter,
	})
	c, conn := joinClient(t, w, m, "acc", 4, 4)

	w.Move(c, MoveRequest{X: 4.5, Y: 4, Time: 1})
	w.Move(c, MoveRequest{X: 14, Y: 14, Time: 1.1})
	assert.Equal(t, 14.0, c.Pony.X, "Первый телепорт в пределах лимита")
	assert.Len(t, counter.items["acc"], 1)

	w.Move(c, MoveRequest{X: 4, Y: 4, Time: 1.2})
	require.Len(t, conn.fixes, 1)
	assert.Equal(t, fixCall{x: 14, y: 14, safe: true}, conn.fixes[0])
	assert.Equal(t, 14.0, c.Pony.X)
	assert.Equal(t, []string{"acc"}, counter.removed)

	require.Len(t, reporter.reports, 1)
	assert.Equal(t, "teleporting", reporter.reports[0].reason)
	assert.Contains(t, reporter.reports[0].details, "->")
}

func TestMove_TeleportKick(t *testing.T) {
	counter := newFakeCounter()
	w, m := newTestWorldWith(t, 32, 32, Options{
		Settings: Settings{KickTeleporting: true, TeleportLimit: 0},
		Counter:  counter,
	})
	c, conn := joinClient(t, w, m, "acc", 4, 4)

	w.Move(c, MoveRequest{X: 4.5, Y: 4, Time: 1})
	w.Move(c, MoveRequest{X: 20, Y: 20, Time: 1.1})

	require.Len(t, conn.disconnects, 1)
	assert.Equal(t, "teleporting", conn.disconnects[0].reason)
	assert.Equal(t, 4.5, c.Pony.X)
}

func TestMove_NormalSpeedIsNotTeleport(t *testing.T) {
	counter := newFakeCounter()
	w, m := newTestWorldWith(t, 32, 32, Options{Counter: counter})
	c, _ := joinClient(t, w, m, "acc", 4, 4)

	w.Move(c, MoveRequest{X: 4.5, Y: 4, Time: 1})
	w.Move(c, MoveRequest{X: 8.5, Y: 4, Time: 2})
	assert.Empty(t, counter.items)
}

func TestResolveMovement_ClipsAgainstWater(t *testing.T) {
	w, m := newTestWorld(t, 16, 16)
	require.NoError(t, m.InitTile(9, 1, TileWater))
	e := addNPC(t, w, m, 8, 1)

	dx, dy := w.ResolveMovement(e, 1, 0)
	assert.InDelta(t, 0.75, dx, 1e-9, "X обрезается до границы тайла")
	assert.Equal(t, 0.0, dy)
	assert.Less(t, dx, 1.0)
}

func TestResolveMovement_StuckEscapesWithinMap(t *testing.T) {
	w, m := newTestWorld(t, 16, 16)
	require.NoError(t, m.InitTile(0, 0, TileWall))
	e := addNPC(t, w, m, 0.5, 0.5)

	dx, dy := w.ResolveMovement(e, 1, 0)
	assert.Equal(t, 1.0, dx, "Из занятой клетки можно выйти")
	assert.Equal(t, 0.0, dy)

	dx, dy = w.ResolveMovement(e, -3, -3)
	assert.Equal(t, -0.5, dx, "Но не за край карты")
	assert.Equal(t, -0.5, dy)
}

func TestFreeIntegration(t *testing.T) {
	w, m := newTestWorld(t, 32, 32)
	npc := addNPC(t, w, m, 2, 2)
	npc.VX = 1
	delayed := addNPC(t, w, m, 5, 5)
	delayed.VY = 1
	delayed.Timestamp = 10
	c, _ := joinClient(t, w, m, "acc", 20, 20)
	c.Pony.VX = 2

	w.Update(0.5, 1)

	assert.Equal(t, 2.5, npc.X)
	assert.Equal(t, 5.0, delayed.Y, "До своего времени сущность стоит")
	assert.Equal(t, 20.0, c.Pony.X, "Персонажа двигает только клиент")

	w.Update(0.5, 10)
	assert.Equal(t, 5.5, delayed.Y)
}

func TestMove_ZeroClientClockStillChecksTeleport(t *testing.T) {
	counter := newFakeCounter()
	w, m := newTestWorldWith(t, 80, 80, Options{
		Settings: Settings{KickTeleporting: true, TeleportLimit: 0},
		Counter:  counter,
	})
	c, conn := joinClient(t, w, m, "acc", 4, 4)

	w.Move(c, MoveRequest{X: 4.5, Y: 4, Time: 0})
	require.Empty(t, conn.disconnects)
	assert.True(t, c.HasReported)

	w.Move(c, MoveRequest{X: 60, Y: 60, Time: 0})
	require.Len(t, conn.disconnects, 1, "Нулевые часы клиента не отключают проверку")
	assert.Equal(t, "teleporting", conn.disconnects[0].reason)
	assert.Equal(t, 4.5, c.Pony.X)
	assert.Len(t, counter.removed, 1)
}

func TestMove_FirstMoveAfterJoinIsChecked(t *testing.T) {
	counter := newFakeCounter()
	w, m := newTestWorldWith(t, 80, 80, Options{
		Settings: Settings{KickTeleporting: true, TeleportLimit: 0},
		Counter:  counter,
	})
	c, conn := joinClient(t, w, m, "acc", 4, 4)
	require.False(t, c.HasReported)

	w.Move(c, MoveRequest{X: 60, Y: 60, Time: 1})

	require.Len(t, conn.disconnects, 1)
	assert.Equal(t, "teleporting", conn.disconnects[0].reason)
	assert.Equal(t, 4.0, c.Pony.X)
	assert.False(t, c.HasReported)
}

func TestMove_FirstMoveAllowsTimeSinceLoad(t *testing.T) {
	counter := newFakeCounter()
	w, m := newTestWorldWith(t, 80, 80, Options{
		Settings: Settings{KickTeleporting: true, TeleportLimit: 0},
		Counter:  counter,
	})
	c, conn := joinClient(t, w, m, "acc", 4, 4)

	w.Update(2, 2)
	w.Move(c, MoveRequest{X: 14, Y: 4, Time: 100})

	assert.Empty(t, conn.disconnects, "За 2 секунды после загрузки можно пройти 11 тайлов")
	assert.Empty(t, counter.items)
	assert.Equal(t, 14.0, c.Pony.X)
}

func TestMove_LagNeedsPreviousReport(t *testing.T) {
	w, m := newTestWorldWith(t, 32, 32, Options{Settings: Settings{KickLagging: true}})
	c, conn := joinClient(t, w, m, "acc", 4, 4)

	w.Move(c, MoveRequest{X: 4.2, Y: 4, Time: 0})
	w.Move(c, MoveRequest{X: 4.4, Y: 4, Time: LagLimit + 1})

	require.Len(t, conn.disconnects, 1, "Отсчёт идёт и от нулевого времени клиента")
	assert.Equal(t, "lagging", conn.disconnects[0].reason)
}
