package world

import (
	"github.com/annel0/mmo-region/internal/protocol"
)

// GetExpectedRegion регион, в котором должна состоять сущность.
// Пока сущность внутри границ текущего региона, расширенных на
// RegionBorder, она из него не уходит.
func GetExpectedRegion(e *Entity, m *Map) *Region {
	if len(m.regions) == 1 {
		return m.regions[0]
	}
	if current := e.Region(); current != nil && e.mapRef == m &&
		current.BoundsWithBorder.Contains(e.X, e.Y) {
		return current
	}
	return m.GetRegionGlobal(e.X, e.Y)
}

// TransferToRegion переводит сущность в регион той же карты:
// удаление из старого и полное состояние в новом
func (w *World) TransferToRegion(e *Entity, r *Region) {
	old := e.Region()
	if old == r {
		return
	}
	if old != nil {
		w.removeFromRegion(e, old)
	}
	w.addToRegion(e, r)
}

func (w *World) addToRegion(e *Entity, r *Region) {
	r.addEntityID(e.ID)
	e.regionIndex = r.index
	w.PushUpdateEntityToRegion(r, e, w.makeUpdate(e, protocol.UpdateFull))
}

func (w *World) removeFromRegion(e *Entity, r *Region) {
	if r.removeEntityID(e.ID) {
		pushRemoveEntityFromRegion(r, e)
	}
	e.regionIndex = -1
}

// UpdateRegions переносит подвижные сущности, ушедшие из своих регионов,
// и обновляет подписки клиентов на этих картах
func (w *World) UpdateRegions(maps []*Map) {
	for _, m := range maps {
		moving := w.transferScratch[:0]
		for _, r := range m.regions {
			for _, id := range r.entities {
				e := w.entities[id]
				if e == nil || !e.Movable() {
					continue
				}
				if GetExpectedRegion(e, m) != r {
					moving = append(moving, e)
				}
			}
		}

		for _, e := range moving {
			w.TransferToRegion(e, GetExpectedRegion(e, m))
		}
		w.transferScratch = moving[:0]
	}

	for _, c := range w.clients {
		if !containsMap(maps, c.Map) {
			continue
		}
		w.SubscribeToRegionsInRange(c)
		w.UnsubscribeFromOutOfRangeRegions(c)
	}
}

func containsMap(maps []*Map, m *Map) bool {
	for _, other := range maps {
		if other == m {
			return true
		}
	}
	return false
}
