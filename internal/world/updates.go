package world

import (
	"github.com/annel0/mmo-region/internal/protocol"
)

// MergeUpdates сливает входящее обновление в накопленное за тик.
// Флаги объединяются, группа полей перезаписывается только если
// её флаг стоит во входящем обновлении.
func MergeUpdates(existing, incoming protocol.EntityUpdate) protocol.EntityUpdate {
	result := existing
	result.Flags |= incoming.Flags

	if incoming.Flags&protocol.UpdateAdded != 0 {
		result.Type = incoming.Type
		result.Name = incoming.Name
	}
	if incoming.Flags&protocol.UpdatePosition != 0 {
		result.X = incoming.X
		result.Y = incoming.Y
		result.VX = incoming.VX
		result.VY = incoming.VY
	} else if incoming.Flags&protocol.UpdateVelocity != 0 {
		result.VX = incoming.VX
		result.VY = incoming.VY
	}
	if incoming.Flags&protocol.UpdateState != 0 {
		result.State = incoming.State
	}
	if incoming.Flags&protocol.UpdateExpression != 0 {
		result.Expression = incoming.Expression
	}
	if incoming.Flags&protocol.UpdateAction != 0 {
		result.Action = incoming.Action
	}
	if incoming.Flags&protocol.UpdateOptions != 0 {
		result.Options = incoming.Options
	}
	return result
}

// makeUpdate снимок отмеченных групп полей сущности
func (w *World) makeUpdate(e *Entity, flags protocol.UpdateFlags) protocol.EntityUpdate {
	u := protocol.EntityUpdate{ID: uint32(e.ID), Flags: flags}

	if flags&protocol.UpdateAdded != 0 {
		u.Type = uint16(e.Type)
		u.Name = e.Name
	}
	if flags&(protocol.UpdatePosition|protocol.UpdateVelocity) != 0 {
		u.X, u.Y = e.X, e.Y
		u.VX, u.VY = e.VX, e.VY
	}
	if flags&protocol.UpdateState != 0 {
		u.State = uint8(e.State)
	}
	if flags&protocol.UpdateExpression != 0 {
		u.Expression = e.Expression
	}
	if flags&protocol.UpdateOptions != 0 {
		data, err := protocol.EncodeOptions(e.Options)
		if err != nil {
			w.log.Warn("Опции сущности %d не сериализуются: %v", e.ID, err)
		}
		u.Options = data
	}
	return u
}

// PushUpdateEntityToRegion кладёт обновление сущности в буфер региона.
// Обновления скрытого клиента уходят только в его собственную очередь.
func (w *World) PushUpdateEntityToRegion(r *Region, e *Entity, u protocol.EntityUpdate) {
	if e.Shadowed() {
		protocol.WriteSingleUpdate(e.Client.updateQueue, &u)
		return
	}
	if r == nil {
		return
	}

	if i, ok := r.updateIndex[e.ID]; ok {
		r.entityUpdates[i] = MergeUpdates(r.entityUpdates[i], u)
		return
	}
	r.updateIndex[e.ID] = len(r.entityUpdates)
	r.entityUpdates = append(r.entityUpdates, u)
}

// pushEntityUpdate обновление сущности в её текущий регион
func (w *World) pushEntityUpdate(e *Entity, flags protocol.UpdateFlags) {
	w.PushUpdateEntityToRegion(e.Region(), e, w.makeUpdate(e, flags))
}

// pushRemoveEntityFromRegion отменяет накопленное обновление сущности
// и записывает её удаление. Удаление скрытой сущности видит только владелец.
func pushRemoveEntityFromRegion(r *Region, e *Entity) {
	dropPendingUpdate(r, e.ID)
	if e.Shadowed() {
		protocol.WriteRegionUpdate(e.Client.updateQueue, &protocol.RegionUpdate{
			X:       r.X,
			Y:       r.Y,
			Removes: []uint32{uint32(e.ID)},
		})
		return
	}
	r.entityRemoves = append(r.entityRemoves, e.ID)
}

func dropPendingUpdate(r *Region, id EntityID) {
	if i, ok := r.updateIndex[id]; ok {
		last := len(r.entityUpdates) - 1
		if i != last {
			moved := r.entityUpdates[last]
			r.entityUpdates[i] = moved
			r.updateIndex[EntityID(moved.ID)] = i
		}
		r.entityUpdates = r.entityUpdates[:last]
		delete(r.updateIndex, id)
	}
}

func pushTileUpdate(r *Region, x, y int, t TileType) {
	r.tileUpdates = append(r.tileUpdates, protocol.TileUpdate{X: uint16(x), Y: uint16(y), Type: uint8(t)})
}

// encodeRegionUpdate пакет изменений региона за тик
func encodeRegionUpdate(r *Region) []byte {
	removes := make([]uint32, len(r.entityRemoves))
	for i, id := range r.entityRemoves {
		removes[i] = uint32(id)
	}

	packet := protocol.RegionUpdate{
		X:       r.X,
		Y:       r.Y,
		Updates: r.entityUpdates,
		Removes: removes,
		Tiles:   r.tileUpdates,
	}

	writer := protocol.NewWriter(16 + len(r.entityUpdates)*32 + len(removes)*4 + len(r.tileUpdates)*5)
	protocol.WriteRegionUpdate(writer, &packet)
	return writer.Take()
}

// CommitRegionUpdates рассылает буферы регионов подписчикам и очищает их.
// Пустые регионы пропускаются. Возвращает число разосланных пакетов и байт.
func (w *World) CommitRegionUpdates(maps []*Map) (packets, bytes int) {
	for _, m := range maps {
		for _, r := range m.regions {
			if !r.HasPendingUpdates() {
				continue
			}

			if len(r.clients) > 0 {
				data := encodeRegionUpdate(r)
				for _, c := range r.clients {
					c.regionUpdates = append(c.regionUpdates, data)
				}
				packets++
				bytes += len(data)
			}

			r.clearUpdates()
		}
	}
	return packets, bytes
}
