package world

import (
	"math"

	"github.com/annel0/mmo-region/internal/physics"
	"github.com/annel0/mmo-region/internal/vec"
)

// edgeEpsilon отступ от правого и нижнего края карты, чтобы прижатая
// позиция оставалась внутри полуинтервала [0, size)
const edgeEpsilon = 1e-6

// IsColliding пересекает ли сущность в позиции (x, y) непроходимые тайлы
// или неподвижные коллайдеры карты
func (w *World) IsColliding(e *Entity, x, y float64) bool {
	m := e.mapRef
	if m == nil {
		return false
	}
	for _, box := range e.BoundsAt(x, y) {
		if physics.Collides(m, ColliderScale, box) {
			return true
		}
	}
	return false
}

// ResolveMovement разрешает смещение (dx, dy) сущности с учётом коллизий и
// возвращает допустимое смещение. Сущность не меняется.
// Если сущность уже застряла, смещение применяется целиком, но позиция
// не покидает карту.
func (w *World) ResolveMovement(e *Entity, dx, dy float64) (float64, float64) {
	m := e.mapRef
	if m == nil {
		return dx, dy
	}

	box, ok := colliderHull(e)
	if !ok {
		return w.clampDelta(e, dx, dy)
	}

	rdx, rdy, stuck := physics.Resolve(m, ColliderScale, box, dx, dy)
	if stuck {
		return w.clampDelta(e, dx, dy)
	}
	return rdx, rdy
}

func (w *World) clampDelta(e *Entity, dx, dy float64) (float64, float64) {
	m := e.mapRef
	x := clampFloat(e.X+dx, 0, float64(m.Width)-edgeEpsilon)
	y := clampFloat(e.Y+dy, 0, float64(m.Height)-edgeEpsilon)
	return x - e.X, y - e.Y
}

// colliderHull общий прямоугольник всех коллайдеров сущности в мире
func colliderHull(e *Entity) (vec.Rect, bool) {
	if len(e.Colliders) == 0 {
		return vec.Rect{}, false
	}
	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	for _, c := range e.Colliders {
		minX = math.Min(minX, c.X)
		minY = math.Min(minY, c.Y)
		maxX = math.Max(maxX, c.Right())
		maxY = math.Max(maxY, c.Bottom())
	}
	return vec.Rect{X: e.X + minX, Y: e.Y + minY, W: maxX - minX, H: maxY - minY}, true
}

func clampFloat(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
