package world

import (
	"fmt"
	"math"
	"strings"

	"go.uber.org/zap"

	"github.com/annel0/mmo-region/internal/protocol"
	"github.com/annel0/mmo-region/internal/vec"
)

const (
	// LagLimit сколько секунд по часам клиента может пройти между движениями
	LagLimit = 15.0
	// TeleportTolerance допуск в тайлах сверх максимальной скорости
	TeleportTolerance = 3.0
)

// MoveRequest разобранное сообщение клиента о движении
type MoveRequest struct {
	X, Y   float64
	Dir    uint8
	State  EntityState
	Time   float64 // секунды по часам клиента
	Camera vec.Rect
}

// Move применяет движение клиента с проверками античита и коллизий
func (w *World) Move(c *Client, req MoveRequest) {
	if c.Loading || c.FixingPosition || c.Pony == nil || c.Map == nil {
		return
	}

	pony := c.Pony
	if !c.Map.Contains(req.X, req.Y) {
		w.log.Warn("Клиент %s прислал позицию вне карты: (%.2f, %.2f)", c.ID, req.X, req.Y)
		w.disconnect(c, fmt.Sprintf("outside map: (%.2f, %.2f)", req.X, req.Y), true)
		return
	}

	settings := w.settings

	if c.HasReported && req.Time-c.LastTime > LagLimit {
		if settings.LogLagging {
			w.log.Structured().Warn("lagging",
				zap.String("client", c.ID),
				zap.String("account", c.AccountID),
				zap.Float64("gap", req.Time-c.LastTime))
		}
		if settings.KickLagging {
			w.disconnect(c, "lagging", false)
			return
		}
	}

	if w.checkTeleport(c, req) {
		return
	}

	pose := req.State.Pose()
	switch pose {
	case PoseStanding, PoseWalking, PoseTrotting, PoseFlying:
	default:
		pose = PoseStanding
	}
	pony.State = req.State&StateFacingRight | pose

	velocity := DirToVector(req.Dir).Mul(SpeedFromState(pose))
	pony.X, pony.Y = req.X, req.Y
	pony.VX, pony.VY = velocity.X, velocity.Y

	flags := protocol.UpdatePosition | protocol.UpdateState
	if pony.ExpressionCancellable && pony.Expression != 0 {
		pony.Expression = 0
		pony.ExpressionCancellable = false
		flags |= protocol.UpdateExpression
	}

	if req.Camera.W > 0 && req.Camera.H > 0 {
		c.Camera = req.Camera
	}

	if !w.IsColliding(pony, pony.X, pony.Y) {
		c.SafeX, c.SafeY = pony.X, pony.Y
	} else if !w.IsColliding(pony, c.SafeX, c.SafeY) {
		w.fixPosition(c, c.SafeX, c.SafeY, true)
	}
	// если занята и безопасная точка, оставляем как есть

	w.pushEntityUpdate(pony, flags)
	w.rememberMove(c, req.Time)
}

// checkTeleport true, если запрос поглощён: клиент отключён или возвращён.
// Первое движение после входа сверяется с точкой появления по времени мира,
// часам клиента ещё не с чем сравниваться.
func (w *World) checkTeleport(c *Client, req MoveRequest) bool {
	elapsed := math.Max(w.now-c.LoadedAt, 0)
	if c.HasReported {
		elapsed = math.Max(req.Time-c.LastTime, 0)
	}
	distance := math.Hypot(req.X-c.LastX, req.Y-c.LastY)
	if distance <= MaxSpeed*elapsed+TeleportTolerance {
		return false
	}

	settings := w.settings
	if settings.LogTeleporting {
		w.log.Structured().Warn("teleporting",
			zap.String("client", c.ID),
			zap.String("account", c.AccountID),
			zap.Float64("distance", distance),
			zap.Float64("elapsed", elapsed))
	}

	if w.counter == nil {
		return false
	}
	result := w.counter.Add(c.AccountID,
		fmt.Sprintf("(%.1f, %.1f) -> (%.1f, %.1f)", c.LastX, c.LastY, req.X, req.Y))
	if result.Count <= settings.TeleportLimit {
		return false
	}
	w.counter.Remove(c.AccountID)

	if settings.ReportTeleporting && w.reporter != nil {
		w.reporter.Report(c.AccountID, "teleporting", strings.Join(result.Items, "; "))
	}
	if settings.KickTeleporting {
		w.disconnect(c, "teleporting", false)
		return true
	}
	if settings.FixTeleporting {
		w.fixPosition(c, c.SafeX, c.SafeY, true)
		w.rememberMove(c, req.Time)
		return true
	}
	return false
}

// fixPosition ставит персонажа в точку и просит клиента синхронизироваться.
// Движение клиента игнорируется до FixedPosition.
func (w *World) fixPosition(c *Client, x, y float64, safe bool) {
	pony := c.Pony
	pony.X, pony.Y = x, y
	pony.VX, pony.VY = 0, 0
	c.FixingPosition = true
	w.pushEntityUpdate(pony, protocol.UpdatePosition)
	c.conn.FixPosition(x, y, safe)
}

func (w *World) rememberMove(c *Client, clientTime float64) {
	c.LastX, c.LastY = c.Pony.X, c.Pony.Y
	c.LastVX, c.LastVY = c.Pony.VX, c.Pony.VY
	c.LastTime = clientTime
	c.HasReported = true
}
