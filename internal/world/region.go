package world

import (
	"github.com/bits-and-blooms/bitset"

	"github.com/annel0/mmo-region/internal/physics"
	"github.com/annel0/mmo-region/internal/protocol"
	"github.com/annel0/mmo-region/internal/vec"
)

// Region квадрат RegionSize×RegionSize тайлов: единица рассылки изменений
// и подписки клиентов. Хранит id сущностей, сами сущности живут в мире.
type Region struct {
	X, Y             int
	Bounds           vec.Rect
	BoundsWithBorder vec.Rect

	index int
	tiles [RegionSize * RegionSize]TileType

	entities    []EntityID
	entityIndex map[EntityID]int
	clients     []*Client

	// буферы изменений за тик, очищаются после рассылки
	entityUpdates []protocol.EntityUpdate
	updateIndex   map[EntityID]int
	entityRemoves []EntityID
	tileUpdates   []protocol.TileUpdate

	colliders      *bitset.BitSet
	collidersDirty bool
	staticBoxes    map[EntityID][]vec.Rect

	// tilesDirty тайлы менялись с последнего сохранения
	tilesDirty bool
}

func newRegion(rx, ry, index int) *Region {
	bounds := vec.Rect{
		X: float64(rx * RegionSize),
		Y: float64(ry * RegionSize),
		W: RegionSize,
		H: RegionSize,
	}
	return &Region{
		X:                rx,
		Y:                ry,
		Bounds:           bounds,
		BoundsWithBorder: bounds.Expand(RegionBorder),
		index:            index,
		entityIndex:      make(map[EntityID]int),
		updateIndex:      make(map[EntityID]int),
		colliders:        bitset.New(regionCells * regionCells),
		collidersDirty:   true,
		staticBoxes:      make(map[EntityID][]vec.Rect),
	}
}

// Coords координаты региона в сетке
func (r *Region) Coords() vec.Vec2 {
	return vec.Vec2{X: r.X, Y: r.Y}
}

// Entities id сущностей региона. Срез принадлежит региону.
func (r *Region) Entities() []EntityID {
	return r.entities
}

// HasEntity состоит ли сущность в регионе
func (r *Region) HasEntity(id EntityID) bool {
	_, ok := r.entityIndex[id]
	return ok
}

// Clients подписчики региона
func (r *Region) Clients() []*Client {
	return r.clients
}

// HasClient подписан ли клиент
func (r *Region) HasClient(c *Client) bool {
	for _, other := range r.clients {
		if other == c {
			return true
		}
	}
	return false
}

// EntityUpdates накопленные за тик обновления
func (r *Region) EntityUpdates() []protocol.EntityUpdate {
	return r.entityUpdates
}

// PendingUpdate накопленное обновление сущности, если есть
func (r *Region) PendingUpdate(id EntityID) (protocol.EntityUpdate, bool) {
	if i, ok := r.updateIndex[id]; ok {
		return r.entityUpdates[i], true
	}
	return protocol.EntityUpdate{}, false
}

// EntityRemoves сущности, покинувшие регион за тик
func (r *Region) EntityRemoves() []EntityID {
	return r.entityRemoves
}

// TileUpdates изменения тайлов за тик
func (r *Region) TileUpdates() []protocol.TileUpdate {
	return r.tileUpdates
}

// HasPendingUpdates есть ли что рассылать
func (r *Region) HasPendingUpdates() bool {
	return len(r.entityUpdates) > 0 || len(r.entityRemoves) > 0 || len(r.tileUpdates) > 0
}

// TilesDirty менялись ли тайлы с последнего сохранения
func (r *Region) TilesDirty() bool {
	return r.tilesDirty
}

// MarkSaved сбрасывает признак несохранённых тайлов
func (r *Region) MarkSaved() {
	r.tilesDirty = false
}

// TilesData копия тайлов региона построчно
func (r *Region) TilesData() []byte {
	data := make([]byte, len(r.tiles))
	for i, t := range r.tiles {
		data[i] = byte(t)
	}
	return data
}

func (r *Region) tileAt(lx, ly int) TileType {
	return r.tiles[ly*RegionSize+lx]
}

func (r *Region) setTile(lx, ly int, t TileType) {
	r.tiles[ly*RegionSize+lx] = t
	r.collidersDirty = true
	r.tilesDirty = true
}

func (r *Region) addEntityID(id EntityID) {
	if _, ok := r.entityIndex[id]; ok {
		return
	}
	r.entityIndex[id] = len(r.entities)
	r.entities = append(r.entities, id)
}

// removeEntityID удаляет id перестановкой с последним
func (r *Region) removeEntityID(id EntityID) bool {
	i, ok := r.entityIndex[id]
	if !ok {
		return false
	}
	last := len(r.entities) - 1
	if i != last {
		moved := r.entities[last]
		r.entities[i] = moved
		r.entityIndex[moved] = i
	}
	r.entities = r.entities[:last]
	delete(r.entityIndex, id)
	return true
}

func (r *Region) addClient(c *Client) bool {
	if r.HasClient(c) {
		return false
	}
	r.clients = append(r.clients, c)
	return true
}

func (r *Region) removeClient(c *Client) bool {
	for i, other := range r.clients {
		if other == c {
			r.clients = append(r.clients[:i], r.clients[i+1:]...)
			return true
		}
	}
	return false
}

func (r *Region) clearUpdates() {
	r.entityUpdates = r.entityUpdates[:0]
	r.entityRemoves = r.entityRemoves[:0]
	r.tileUpdates = r.tileUpdates[:0]
	for id := range r.updateIndex {
		delete(r.updateIndex, id)
	}
}

func (r *Region) addStaticBox(id EntityID, box vec.Rect) {
	r.staticBoxes[id] = append(r.staticBoxes[id], box)
	r.collidersDirty = true
}

func (r *Region) removeStaticBoxes(id EntityID) {
	if _, ok := r.staticBoxes[id]; ok {
		delete(r.staticBoxes, id)
		r.collidersDirty = true
	}
}

// solidCell ячейка маски в локальных координатах региона
func (r *Region) solidCell(lcx, lcy int) bool {
	if r.collidersDirty {
		r.rebuildColliders()
	}
	return r.colliders.Test(uint(lcy*regionCells + lcx))
}

// rebuildColliders пересобирает маску: непроходимые тайлы плюс
// боксы неподвижных сущностей
func (r *Region) rebuildColliders() {
	r.colliders.ClearAll()

	for ty := 0; ty < RegionSize; ty++ {
		for tx := 0; tx < RegionSize; tx++ {
			if r.tiles[ty*RegionSize+tx].Walkable() {
				continue
			}
			r.fillCells(tx*ColliderScale, ty*ColliderScale, (tx+1)*ColliderScale-1, (ty+1)*ColliderScale-1)
		}
	}

	for _, boxes := range r.staticBoxes {
		for _, box := range boxes {
			part, ok := box.Intersection(r.Bounds)
			if !ok {
				continue
			}
			x0, x1 := physics.CellSpan(part.X-r.Bounds.X, part.Right()-r.Bounds.X, ColliderScale)
			y0, y1 := physics.CellSpan(part.Y-r.Bounds.Y, part.Bottom()-r.Bounds.Y, ColliderScale)
			r.fillCells(
				clampInt(x0, 0, regionCells-1), clampInt(y0, 0, regionCells-1),
				clampInt(x1, 0, regionCells-1), clampInt(y1, 0, regionCells-1),
			)
		}
	}

	r.collidersDirty = false
}

func (r *Region) fillCells(x0, y0, x1, y1 int) {
	for cy := y0; cy <= y1; cy++ {
		for cx := x0; cx <= x1; cx++ {
			r.colliders.Set(uint(cy*regionCells + cx))
		}
	}
}
