package world

import (
	"math"

	"github.com/annel0/mmo-region/internal/vec"
)

// EntityID идентификатор сущности, уникален в пределах мира
type EntityID uint32

// EntityType определяет тип сущности
type EntityType uint16

const (
	EntityTypeUnknown EntityType = 0   // Неизвестный тип
	EntityTypePony    EntityType = 1   // Персонаж игрока
	EntityTypeObject  EntityType = 100 // Статический объект
	EntityTypeTree    EntityType = 101 // Дерево
	EntityTypeNPC     EntityType = 300 // Неигровой персонаж
)

// EntityFlags свойства сущности
type EntityFlags uint16

const (
	FlagMovable    EntityFlags = 1 << iota // участвует в интеграции и переносе между регионами
	FlagCanCollide                         // неподвижная сущность с таким флагом попадает в маску коллизий
	FlagInteractive
)

// EntityState битовое поле состояния: направление взгляда и поза
type EntityState uint8

const (
	StateFacingRight EntityState = 1
	StateHeadTurned  EntityState = 2
	StatePoseMask    EntityState = 0xF0

	PoseStanding EntityState = 0x00
	PoseWalking  EntityState = 0x10
	PoseTrotting EntityState = 0x20
	PoseSitting  EntityState = 0x30
	PoseLying    EntityState = 0x40
	PoseFlying   EntityState = 0x50
)

// Pose выделяет позу из состояния
func (s EntityState) Pose() EntityState {
	return s & StatePoseMask
}

// Скорости в тайлах в секунду
const (
	SpeedWalking  = 2.0
	SpeedTrotting = 4.0
	SpeedFlying   = 4.0
	MaxSpeed      = SpeedTrotting
)

// SpeedFromState скорость, которую даёт поза
func SpeedFromState(s EntityState) float64 {
	switch s.Pose() {
	case PoseWalking:
		return SpeedWalking
	case PoseTrotting:
		return SpeedTrotting
	case PoseFlying:
		return SpeedFlying
	default:
		return 0
	}
}

// DirCount количество направлений движения. Направление 0 смотрит вверх,
// дальше по часовой стрелке с шагом 45°.
const DirCount = 8

// DirToVector единичный вектор направления, нулевой для неизвестного
func DirToVector(dir uint8) vec.Vec2Float {
	if dir >= DirCount {
		return vec.Vec2Float{}
	}
	angle := float64(dir) * math.Pi / 4
	return vec.Vec2Float{X: math.Sin(angle), Y: -math.Cos(angle)}
}

// Action разовое действие, передаётся одним обновлением и не хранится
type Action uint8

const (
	ActionNone Action = iota
	ActionBoop
	ActionYawn
	ActionLaugh
	ActionSneeze
	ActionTurnHead
)

// Entity сущность мира. Позиция и скорость в тайлах.
// Регион хранится индексом в карте, а не ссылкой.
type Entity struct {
	ID    EntityID
	Type  EntityType
	Name  string
	Flags EntityFlags

	X, Y   float64
	VX, VY float64
	State  EntityState

	// Timestamp момент, до которого свободная интеграция не трогает
	// сущность (позиция пришла извне с более поздним временем)
	Timestamp float64

	Expression            uint32
	ExpressionCancellable bool
	Options               map[string]interface{}

	// Colliders боксы коллизий относительно позиции сущности
	Colliders []vec.Rect

	Client *Client

	mapRef      *Map
	regionIndex int
}

// NewEntity создаёт сущность вне карты
func NewEntity(entityType EntityType, name string, flags EntityFlags, x, y float64) *Entity {
	return &Entity{
		Type:        entityType,
		Name:        name,
		Flags:       flags,
		X:           x,
		Y:           y,
		regionIndex: -1,
	}
}

// PonyCollider бокс персонажа игрока
var PonyCollider = vec.Rect{X: -0.25, Y: -0.25, W: 0.5, H: 0.5}

// Map карта, на которой находится сущность
func (e *Entity) Map() *Map {
	return e.mapRef
}

// Region текущий регион сущности или nil
func (e *Entity) Region() *Region {
	if e.mapRef == nil || e.regionIndex < 0 {
		return nil
	}
	return e.mapRef.regions[e.regionIndex]
}

// Movable участвует ли сущность в движении
func (e *Entity) Movable() bool {
	return e.Flags&FlagMovable != 0
}

// StaticCollider неподвижная сущность, которая запекается в маску коллизий
func (e *Entity) StaticCollider() bool {
	return e.Flags&FlagCanCollide != 0 && e.Flags&FlagMovable == 0 && len(e.Colliders) > 0
}

// Shadowed обновления сущности видит только её владелец
func (e *Entity) Shadowed() bool {
	return e.Client != nil && e.Client.Shadowed
}

// Position текущая позиция
func (e *Entity) Position() vec.Vec2Float {
	return vec.Vec2Float{X: e.X, Y: e.Y}
}

// BoundsAt боксы сущности в мировых координатах для позиции (x, y)
func (e *Entity) BoundsAt(x, y float64) []vec.Rect {
	boxes := make([]vec.Rect, len(e.Colliders))
	for i, c := range e.Colliders {
		boxes[i] = c.Offset(x, y)
	}
	return boxes
}
