package controllers

import (
	"github.com/annel0/mmo-region/internal/logging"
	"github.com/annel0/mmo-region/internal/world"
)

// TileSaver сохраняет изменённые регионы карты
type TileSaver interface {
	SaveMap(m *world.Map) (int, error)
}

// Autosave периодически сохраняет изменённые тайлы. Работает в потоке тика,
// поэтому тайлы не меняются во время записи.
type Autosave struct {
	world    *world.World
	saver    TileSaver
	interval float64
	elapsed  float64
	log      *logging.Logger
}

// NewAutosave создаёт контроллер. intervalSeconds <= 0 отключает сохранение.
func NewAutosave(w *world.World, saver TileSaver, intervalSeconds float64) *Autosave {
	return &Autosave{
		world:    w,
		saver:    saver,
		interval: intervalSeconds,
		log:      logging.GetComponentLogger("autosave"),
	}
}

func (c *Autosave) Initialize(deltaSeconds float64) {
	c.elapsed = 0
}

func (c *Autosave) Update(deltaSeconds float64) {
	if c.interval <= 0 {
		return
	}
	c.elapsed += deltaSeconds
	if c.elapsed < c.interval {
		return
	}
	c.elapsed = 0
	c.SaveAll()
}

// SaveAll сохраняет все карты сразу. Возвращает число записанных регионов.
func (c *Autosave) SaveAll() int {
	total := 0
	for _, m := range c.world.Maps() {
		saved, err := c.saver.SaveMap(m)
		total += saved
		if err != nil {
			c.log.Error("Ошибка сохранения карты %s: %v", m.Name, err)
			continue
		}
	}
	if total > 0 {
		c.log.Debug("Сохранено регионов: %d", total)
	}
	return total
}
