package controllers

import (
	"fmt"

	"github.com/annel0/mmo-region/internal/logging"
	"github.com/annel0/mmo-region/internal/vec"
	"github.com/annel0/mmo-region/internal/world"
)

// NPCCollider бокс бродячего NPC
var NPCCollider = vec.Rect{X: -0.3, Y: -0.3, W: 0.6, H: 0.6}

// Интервалы смены решения, секунды
const (
	wanderMinDecision = 1.0
	wanderMaxDecision = 4.0
	wanderIdleChance  = 0.3
)

type wanderer struct {
	entity *world.Entity
	timer  float64
}

// Wander контроллер бродячих NPC. Скорость хранится в сущности и
// применяется свободной интеграцией мира, контроллер заранее проверяет
// смещение следующего тика и останавливает NPC перед препятствием.
type Wander struct {
	world *world.World
	m     *world.Map
	count int

	npcs []*wanderer
	log  *logging.Logger
}

// NewWander создаёт контроллер, который расселит count NPC по карте m
func NewWander(w *world.World, m *world.Map, count int) *Wander {
	return &Wander{
		world: w,
		m:     m,
		count: count,
		log:   logging.GetComponentLogger("wander"),
	}
}

// Initialize расселяет NPC
func (c *Wander) Initialize(deltaSeconds float64) {
	for i := 0; i < c.count; i++ {
		e := world.NewEntity(world.EntityTypeNPC, fmt.Sprintf("npc-%d", i+1), world.FlagMovable, 0, 0)
		e.Colliders = []vec.Rect{NPCCollider}
		e.X, e.Y = c.world.SpawnPoint(c.m, e)

		if err := c.world.AddEntity(e, c.m); err != nil {
			c.log.Warn("Не удалось добавить NPC: %v", err)
			continue
		}
		c.npcs = append(c.npcs, &wanderer{entity: e})
	}
	c.log.Info("На карте %s бродит NPC: %d", c.m.Name, len(c.npcs))
}

// Update принимает решения и отсекает движение в препятствия
func (c *Wander) Update(deltaSeconds float64) {
	for _, n := range c.npcs {
		e := n.entity
		if e.Map() == nil {
			continue
		}

		n.timer -= deltaSeconds
		if n.timer <= 0 {
			c.decide(n)
		}

		if e.VX == 0 && e.VY == 0 {
			continue
		}

		dx, dy := e.VX*deltaSeconds, e.VY*deltaSeconds
		rdx, rdy := c.world.ResolveMovement(e, dx, dy)
		if rdx != dx || rdy != dy {
			c.world.SetEntityPosition(e, e.X+rdx, e.Y+rdy, 0, 0)
			c.world.SetEntityState(e, e.State&^world.StatePoseMask|world.PoseStanding)
		}
	}
}

// NPCs сущности под управлением контроллера
func (c *Wander) NPCs() []*world.Entity {
	out := make([]*world.Entity, 0, len(c.npcs))
	for _, n := range c.npcs {
		out = append(out, n.entity)
	}
	return out
}

func (c *Wander) decide(n *wanderer) {
	rng := c.world.Rand()
	e := n.entity
	n.timer = wanderMinDecision + rng.Float64()*(wanderMaxDecision-wanderMinDecision)

	if rng.Float64() < wanderIdleChance {
		if e.VX != 0 || e.VY != 0 {
			c.world.SetEntityPosition(e, e.X, e.Y, 0, 0)
		}
		c.world.SetEntityState(e, e.State&^world.StatePoseMask|world.PoseStanding)
		return
	}

	dir := uint8(rng.Intn(world.DirCount))
	v := world.DirToVector(dir).Mul(world.SpeedWalking)

	state := e.State&^world.StatePoseMask | world.PoseWalking
	if v.X > 0 {
		state |= world.StateFacingRight
	} else if v.X < 0 {
		state &^= world.StateFacingRight
	}

	c.world.SetEntityPosition(e, e.X, e.Y, v.X, v.Y)
	c.world.SetEntityState(e, state)
}
