package world

import (
	"github.com/annel0/mmo-region/internal/protocol"
)

// regionsInView регионы, которые видит камера клиента с запасом ViewBorder
func (w *World) regionsInView(c *Client) []*Region {
	if c.Map == nil {
		return nil
	}
	return c.Map.regionsInRect(c.Camera.Expand(ViewBorder))
}

// SubscribeToRegion подписывает клиента и пишет ему полное состояние региона
func (w *World) SubscribeToRegion(c *Client, r *Region) {
	if !r.addClient(c) {
		return
	}
	c.Regions = append(c.Regions, r)

	entities := make([]protocol.EntityUpdate, 0, len(r.entities))
	for _, id := range r.entities {
		e := w.entities[id]
		if e == nil || (e.Shadowed() && e.Client != c) {
			continue
		}
		entities = append(entities, w.makeUpdate(e, protocol.UpdateFull))
	}

	protocol.WriteSubscribe(c.updateQueue, &protocol.Subscribe{
		X:        r.X,
		Y:        r.Y,
		Entities: entities,
		Tiles:    protocol.CompressTiles(r.TilesData()),
	})
}

// UnsubscribeFromRegion отписывает клиента. silent - без записи клиенту,
// когда он всё равно уходит.
func (w *World) UnsubscribeFromRegion(c *Client, r *Region, silent bool) {
	if !r.removeClient(c) {
		return
	}
	c.removeRegion(r)
	if !silent {
		protocol.WriteUnsubscribe(c.updateQueue, &protocol.Unsubscribe{X: r.X, Y: r.Y})
	}
}

// SubscribeToRegionsInRange подписывает на все видимые регионы
func (w *World) SubscribeToRegionsInRange(c *Client) {
	for _, r := range w.regionsInView(c) {
		if !c.IsSubscribed(r) {
			w.SubscribeToRegion(c, r)
		}
	}
}

// UnsubscribeFromOutOfRangeRegions отписывает от регионов вне камеры
func (w *World) UnsubscribeFromOutOfRangeRegions(c *Client) {
	visible := w.regionsInView(c)

	var stale []*Region
	for _, r := range c.Regions {
		if !containsRegion(visible, r) {
			stale = append(stale, r)
		}
	}
	for _, r := range stale {
		w.UnsubscribeFromRegion(c, r, false)
	}
}

// UnsubscribeFromAllRegions снимает все подписки клиента
func (w *World) UnsubscribeFromAllRegions(c *Client, silent bool) {
	regions := append([]*Region(nil), c.Regions...)
	for _, r := range regions {
		w.UnsubscribeFromRegion(c, r, silent)
	}
}

func containsRegion(regions []*Region, r *Region) bool {
	for _, other := range regions {
		if other == r {
			return true
		}
	}
	return false
}
