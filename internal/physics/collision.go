package physics

import (
	"math"

	"github.com/annel0/mmo-region/internal/vec"
)

// Grid сетка коллизий. Ячейка имеет сторону 1/scale тайла.
type Grid interface {
	// Solid сообщает, занята ли ячейка. Ячейки за пределами карты заняты.
	Solid(cx, cy int) bool
}

// CellSpan возвращает диапазон ячеек [lo, hi], которые накрывает
// полуинтервал [min, max). Для пустого интервала hi < lo.
func CellSpan(min, max, scale float64) (lo, hi int) {
	lo = int(math.Floor(min * scale))
	hi = int(math.Ceil(max*scale)) - 1
	return lo, hi
}

// Collides проверяет, накрывает ли бокс хотя бы одну занятую ячейку
func Collides(g Grid, scale float64, box vec.Rect) bool {
	x0, x1 := CellSpan(box.X, box.Right(), scale)
	y0, y1 := CellSpan(box.Y, box.Bottom(), scale)

	for cy := y0; cy <= y1; cy++ {
		for cx := x0; cx <= x1; cx++ {
			if g.Solid(cx, cy) {
				return true
			}
		}
	}
	return false
}

// SweepX обрезает горизонтальное смещение dx так, чтобы бокс
// остановился вплотную к первой занятой колонке на пути.
// Бокс в начальной позиции не должен пересекать занятые ячейки.
func SweepX(g Grid, scale float64, box vec.Rect, dx float64) float64 {
	if dx == 0 {
		return 0
	}
	y0, y1 := CellSpan(box.Y, box.Bottom(), scale)

	if dx > 0 {
		right := box.Right()
		first := int(math.Ceil(right * scale))
		last := int(math.Ceil((right+dx)*scale)) - 1
		for cx := first; cx <= last; cx++ {
			if columnSolid(g, cx, y0, y1) {
				return math.Min(dx, float64(cx)/scale-right)
			}
		}
		return dx
	}

	left := box.X
	first := int(math.Floor(left*scale)) - 1
	last := int(math.Floor((left + dx) * scale))
	for cx := first; cx >= last; cx-- {
		if columnSolid(g, cx, y0, y1) {
			return math.Max(dx, float64(cx+1)/scale-left)
		}
	}
	return dx
}

// SweepY то же, что SweepX, но по вертикали
func SweepY(g Grid, scale float64, box vec.Rect, dy float64) float64 {
	if dy == 0 {
		return 0
	}
	x0, x1 := CellSpan(box.X, box.Right(), scale)

	if dy > 0 {
		bottom := box.Bottom()
		first := int(math.Ceil(bottom * scale))
		last := int(math.Ceil((bottom+dy)*scale)) - 1
		for cy := first; cy <= last; cy++ {
			if rowSolid(g, cy, x0, x1) {
				return math.Min(dy, float64(cy)/scale-bottom)
			}
		}
		return dy
	}

	top := box.Y
	first := int(math.Floor(top*scale)) - 1
	last := int(math.Floor((top + dy) * scale))
	for cy := first; cy >= last; cy-- {
		if rowSolid(g, cy, x0, x1) {
			return math.Max(dy, float64(cy+1)/scale-top)
		}
	}
	return dy
}

// Resolve разрешает смещение (dx, dy) бокса на сетке.
// Если конечная позиция свободна, смещение возвращается без изменений.
// Иначе сначала обрезается движение по X, затем по Y от уже сдвинутого бокса.
// stuck = true, если бокс уже стоит в занятых ячейках: тогда смещение
// возвращается как есть, и вызывающий сам решает, как вытолкнуть объект.
func Resolve(g Grid, scale float64, box vec.Rect, dx, dy float64) (rdx, rdy float64, stuck bool) {
	if !Collides(g, scale, box.Offset(dx, dy)) {
		return dx, dy, false
	}
	if Collides(g, scale, box) {
		return dx, dy, true
	}

	rdx = SweepX(g, scale, box, dx)
	rdy = SweepY(g, scale, box.Offset(rdx, 0), dy)
	return rdx, rdy, false
}

func columnSolid(g Grid, cx, y0, y1 int) bool {
	for cy := y0; cy <= y1; cy++ {
		if g.Solid(cx, cy) {
			return true
		}
	}
	return false
}

func rowSolid(g Grid, cy, x0, x1 int) bool {
	for cx := x0; cx <= x1; cx++ {
		if g.Solid(cx, cy) {
			return true
		}
	}
	return false
}
