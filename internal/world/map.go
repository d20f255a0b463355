package world

import (
	"fmt"
	"math"

	"github.com/annel0/mmo-region/internal/vec"
)

const (
	// RegionSize сторона региона в тайлах
	RegionSize = 8
	// RegionBorder гистерезис: сущность остаётся в регионе, пока не выйдет
	// за его границы, расширенные на это расстояние
	RegionBorder = 1.0
	// ViewBorder запас вокруг камеры клиента при подписке на регионы
	ViewBorder = 2.0
	// ColliderScale количество ячеек маски коллизий на тайл по каждой оси
	ColliderScale = 4

	regionCells = RegionSize * ColliderScale
)

// Map прямоугольная карта, разбитая на сетку регионов
type Map struct {
	Name     string
	Width    int // в тайлах
	Height   int
	RegionsX int
	RegionsY int
	// Spawn область появления новых игроков
	Spawn vec.Rect

	regions []*Region
}

// NewMap создаёт карту, залитую травой
func NewMap(name string, width, height int) (*Map, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: %dx%d", ErrInvalidMapParameters, width, height)
	}

	m := &Map{
		Name:     name,
		Width:    width,
		Height:   height,
		RegionsX: (width + RegionSize - 1) / RegionSize,
		RegionsY: (height + RegionSize - 1) / RegionSize,
		Spawn:    vec.Rect{W: float64(width), H: float64(height)},
	}

	m.regions = make([]*Region, 0, m.RegionsX*m.RegionsY)
	for ry := 0; ry < m.RegionsY; ry++ {
		for rx := 0; rx < m.RegionsX; rx++ {
			r := newRegion(rx, ry, len(m.regions))
			for ty := 0; ty < RegionSize; ty++ {
				for tx := 0; tx < RegionSize; tx++ {
					if rx*RegionSize+tx < width && ry*RegionSize+ty < height {
						r.tiles[ty*RegionSize+tx] = TileGrass
					}
				}
			}
			m.regions = append(m.regions, r)
		}
	}

	return m, nil
}

// Bounds прямоугольник карты
func (m *Map) Bounds() vec.Rect {
	return vec.Rect{W: float64(m.Width), H: float64(m.Height)}
}

// Contains лежит ли точка на карте
func (m *Map) Contains(x, y float64) bool {
	return m.Bounds().Contains(x, y)
}

// Regions все регионы карты построчно
func (m *Map) Regions() []*Region {
	return m.regions
}

// GetRegion регион по координатам сетки
func (m *Map) GetRegion(rx, ry int) (*Region, error) {
	if rx < 0 || ry < 0 || rx >= m.RegionsX || ry >= m.RegionsY {
		return nil, fmt.Errorf("%w: region (%d, %d) on %s", ErrInvalidCoordinates, rx, ry, m.Name)
	}
	return m.regions[ry*m.RegionsX+rx], nil
}

// GetRegionGlobal регион, содержащий точку. Точка прижимается к краям
// сетки, поэтому результат всегда есть.
func (m *Map) GetRegionGlobal(x, y float64) *Region {
	rx := clampInt(int(math.Floor(x/RegionSize)), 0, m.RegionsX-1)
	ry := clampInt(int(math.Floor(y/RegionSize)), 0, m.RegionsY-1)
	return m.regions[ry*m.RegionsX+rx]
}

// TileAt тип тайла, за пределами карты TileNone
func (m *Map) TileAt(x, y int) TileType {
	if x < 0 || y < 0 || x >= m.Width || y >= m.Height {
		return TileNone
	}
	r := m.regions[(y/RegionSize)*m.RegionsX+x/RegionSize]
	return r.tileAt(x%RegionSize, y%RegionSize)
}

// InitTile пишет тайл без рассылки изменения: генерация и загрузка карты
func (m *Map) InitTile(x, y int, t TileType) error {
	if x < 0 || y < 0 || x >= m.Width || y >= m.Height {
		return fmt.Errorf("%w: tile (%d, %d)", ErrInvalidCoordinates, x, y)
	}
	if !t.Valid() {
		return fmt.Errorf("%w: %d", ErrInvalidTile, t)
	}
	r := m.regions[(y/RegionSize)*m.RegionsX+x/RegionSize]
	r.setTile(x%RegionSize, y%RegionSize, t)
	return nil
}

// LoadRegionTiles заменяет тайлы региона сохранёнными данными
func (m *Map) LoadRegionTiles(rx, ry int, data []byte) error {
	r, err := m.GetRegion(rx, ry)
	if err != nil {
		return err
	}
	if len(data) != RegionSize*RegionSize {
		return fmt.Errorf("%w: region (%d, %d) data has %d tiles", ErrInvalidTile, rx, ry, len(data))
	}
	for i, b := range data {
		t := TileType(b)
		if !t.Valid() {
			return fmt.Errorf("%w: %d", ErrInvalidTile, b)
		}
		r.tiles[i] = t
	}
	r.collidersDirty = true
	r.tilesDirty = false
	return nil
}

// Solid ячейка маски коллизий в глобальных координатах ячеек.
// Ячейки за картой заняты.
func (m *Map) Solid(cx, cy int) bool {
	if cx < 0 || cy < 0 || cx >= m.Width*ColliderScale || cy >= m.Height*ColliderScale {
		return true
	}
	r := m.regions[(cy/regionCells)*m.RegionsX+cx/regionCells]
	return r.solidCell(cx%regionCells, cy%regionCells)
}

// addStaticCollider запекает боксы неподвижной сущности во все регионы,
// которые они задевают
func (m *Map) addStaticCollider(e *Entity) {
	for _, box := range e.BoundsAt(e.X, e.Y) {
		for _, r := range m.regionsOverlapping(box) {
			r.addStaticBox(e.ID, box)
		}
	}
}

func (m *Map) removeStaticCollider(e *Entity) {
	for _, box := range e.BoundsAt(e.X, e.Y) {
		for _, r := range m.regionsOverlapping(box) {
			r.removeStaticBoxes(e.ID)
		}
	}
}

func (m *Map) regionsOverlapping(box vec.Rect) []*Region {
	rx0 := clampInt(int(math.Floor(box.X/RegionSize)), 0, m.RegionsX-1)
	ry0 := clampInt(int(math.Floor(box.Y/RegionSize)), 0, m.RegionsY-1)
	rx1 := clampInt(int(math.Floor(box.Right()/RegionSize)), 0, m.RegionsX-1)
	ry1 := clampInt(int(math.Floor(box.Bottom()/RegionSize)), 0, m.RegionsY-1)

	var result []*Region
	for ry := ry0; ry <= ry1; ry++ {
		for rx := rx0; rx <= rx1; rx++ {
			r := m.regions[ry*m.RegionsX+rx]
			if r.Bounds.Intersects(box) {
				result = append(result, r)
			}
		}
	}
	return result
}

// regionsInRect регионы, пересекающие прямоугольник, с прижатием к сетке
func (m *Map) regionsInRect(rect vec.Rect) []*Region {
	rx0 := clampInt(int(math.Floor(rect.X/RegionSize)), 0, m.RegionsX-1)
	ry0 := clampInt(int(math.Floor(rect.Y/RegionSize)), 0, m.RegionsY-1)
	rx1 := clampInt(int(math.Ceil(rect.Right()/RegionSize))-1, rx0, m.RegionsX-1)
	ry1 := clampInt(int(math.Ceil(rect.Bottom()/RegionSize))-1, ry0, m.RegionsY-1)

	result := make([]*Region, 0, (rx1-rx0+1)*(ry1-ry0+1))
	for ry := ry0; ry <= ry1; ry++ {
		for rx := rx0; rx <= rx1; rx++ {
			result = append(result, m.regions[ry*m.RegionsX+rx])
		}
	}
	return result
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
