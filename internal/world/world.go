package world

import (
	"fmt"
	"math/rand"
	"sync/atomic"
	"time"

	"github.com/annel0/mmo-region/internal/logging"
	"github.com/annel0/mmo-region/internal/protocol"
	"github.com/annel0/mmo-region/internal/vec"
)

// Controller игровая система, которую мир тикает раз в кадр
type Controller interface {
	Initialize(deltaSeconds float64)
	Update(deltaSeconds float64)
}

// CounterResult состояние скользящего счётчика после добавления
type CounterResult struct {
	Count int
	Items []string
	Date  time.Time
}

// RollingCounter счётчик нарушений по аккаунтам со скользящим окном
type RollingCounter interface {
	Add(key, item string) CounterResult
	Remove(key string)
}

// Reporter отправляет жалобы на аккаунты модераторам
type Reporter interface {
	Report(accountID, reason, details string)
}

// Observer получает статистику тиков, например для метрик
type Observer interface {
	TickCompleted(duration time.Duration, stats Stats)
	ClientDisconnected(reason string)
}

// Settings флаги античита, меняются на лету
type Settings struct {
	LogLagging        bool `json:"log_lagging"`
	KickLagging       bool `json:"kick_lagging"`
	LogTeleporting    bool `json:"log_teleporting"`
	KickTeleporting   bool `json:"kick_teleporting"`
	FixTeleporting    bool `json:"fix_teleporting"`
	ReportTeleporting bool `json:"report_teleporting"`
	// TeleportLimit сколько телепортов в окне счётчика прощается
	TeleportLimit int `json:"teleport_limit"`
}

// Stats снимок состояния мира после тика
type Stats struct {
	Tick             uint64        `json:"tick"`
	Time             float64       `json:"time"`
	Maps             int           `json:"maps"`
	Entities         int           `json:"entities"`
	Clients          int           `json:"clients"`
	PacketsCommitted int           `json:"packets_committed"`
	BytesCommitted   int           `json:"bytes_committed"`
	TickDuration     time.Duration `json:"tick_duration"`
}

// Options зависимости мира. Без Counter проверка телепортации не работает,
// без Reporter жалобы не отправляются.
type Options struct {
	Settings Settings
	Counter  RollingCounter
	Reporter Reporter
	Observer Observer
	Seed     int64
}

// World контекст симуляции: карты, сущности, клиенты и контроллеры.
// Все методы вызываются из одного потока тика.
type World struct {
	maps        []*Map
	entities    map[EntityID]*Entity
	nextID      EntityID
	clients     []*Client
	joinQueue   []*Client
	controllers []Controller

	settings Settings
	counter  RollingCounter
	reporter Reporter
	observer Observer

	now  float64
	tick uint64
	rng  *rand.Rand
	log  *logging.Logger

	transferScratch []*Entity
	lastStats       atomic.Pointer[Stats]
}

// New создаёт пустой мир
func New(opts Options) *World {
	w := &World{
		entities: make(map[EntityID]*Entity),
		settings: opts.Settings,
		counter:  opts.Counter,
		reporter: opts.Reporter,
		observer: opts.Observer,
		rng:      rand.New(rand.NewSource(opts.Seed)),
		log:      logging.GetWorldLogger(),
	}
	if w.observer == nil {
		w.observer = nopObserver{}
	}
	w.lastStats.Store(&Stats{})
	return w
}

type nopObserver struct{}

func (nopObserver) TickCompleted(time.Duration, Stats) {}
func (nopObserver) ClientDisconnected(string)          {}

// AddMap регистрирует карту. Первая карта считается основной.
func (w *World) AddMap(m *Map) {
	w.maps = append(w.maps, m)
}

// Maps карты мира
func (w *World) Maps() []*Map {
	return w.maps
}

// MainMap основная карта или nil
func (w *World) MainMap() *Map {
	if len(w.maps) == 0 {
		return nil
	}
	return w.maps[0]
}

// AddController регистрирует контроллер, порядок вызова - порядок регистрации
func (w *World) AddController(c Controller) {
	w.controllers = append(w.controllers, c)
}

// Initialize вызывает Initialize у контроллеров перед первым тиком
func (w *World) Initialize(deltaSeconds float64) {
	for _, c := range w.controllers {
		c.Initialize(deltaSeconds)
	}
}

// Settings текущие настройки античита
func (w *World) Settings() Settings {
	return w.settings
}

// SetSettings заменяет настройки на лету
func (w *World) SetSettings(s Settings) {
	w.settings = s
}

// Now время мира в секундах на последнем тике
func (w *World) Now() float64 {
	return w.now
}

// Rand генератор случайных чисел мира, только для потока тика
func (w *World) Rand() *rand.Rand {
	return w.rng
}

// Clients клиенты в мире
func (w *World) Clients() []*Client {
	return w.clients
}

// Entity сущность по id
func (w *World) Entity(id EntityID) (*Entity, bool) {
	e, ok := w.entities[id]
	return e, ok
}

// EntityCount количество сущностей в мире
func (w *World) EntityCount() int {
	return len(w.entities)
}

// NewEntityID выдаёт следующий свободный id, 0 зарезервирован
func (w *World) NewEntityID() EntityID {
	w.nextID++
	return w.nextID
}

// Stats последний снимок статистики. Безопасен из любого потока.
func (w *World) Stats() Stats {
	return *w.lastStats.Load()
}

// Update один тик мира. delta и now в секундах.
func (w *World) Update(delta, now float64) {
	start := time.Now()
	w.now = now
	w.tick++

	w.integrate(delta)
	w.UpdateRegions(w.maps)

	for _, c := range w.controllers {
		c.Update(delta)
	}

	packets, bytes := w.CommitRegionUpdates(w.maps)
	w.admitJoins()

	stats := &Stats{
		Tick:             w.tick,
		Time:             now,
		Maps:             len(w.maps),
		Entities:         len(w.entities),
		Clients:          len(w.clients),
		PacketsCommitted: packets,
		BytesCommitted:   bytes,
		TickDuration:     time.Since(start),
	}
	w.lastStats.Store(stats)
	w.observer.TickCompleted(stats.TickDuration, *stats)
}

// integrate свободное движение сущностей без клиента, без проверки коллизий
func (w *World) integrate(delta float64) {
	for _, m := range w.maps {
		for _, r := range m.regions {
			for _, id := range r.entities {
				e := w.entities[id]
				if e == nil || !e.Movable() || e.Client != nil || e.Timestamp > w.now {
					continue
				}
				if e.VX == 0 && e.VY == 0 {
					continue
				}
				e.X += e.VX * delta
				e.Y += e.VY * delta
			}
		}
	}
}

// AddEntity помещает сущность на карту и рассылает её появление
func (w *World) AddEntity(e *Entity, m *Map) error {
	if e.mapRef != nil {
		return fmt.Errorf("%w: entity %d", ErrEntityOnMap, e.ID)
	}
	if e.ID == 0 {
		e.ID = w.NewEntityID()
	}

	w.entities[e.ID] = e
	e.mapRef = m
	e.regionIndex = -1
	w.TransferToRegion(e, GetExpectedRegion(e, m))

	if e.StaticCollider() {
		m.addStaticCollider(e)
	}
	return nil
}

// RemoveEntity убирает сущность из мира
func (w *World) RemoveEntity(e *Entity) error {
	if _, ok := w.entities[e.ID]; !ok {
		return fmt.Errorf("%w: %d", ErrEntityNotFound, e.ID)
	}
	if r := e.Region(); r != nil {
		w.removeFromRegion(e, r)
	}
	if e.StaticCollider() && e.mapRef != nil {
		e.mapRef.removeStaticCollider(e)
	}
	delete(w.entities, e.ID)
	e.mapRef = nil
	return nil
}

// SetEntityPosition ставит сущность в точку с заданной скоростью
func (w *World) SetEntityPosition(e *Entity, x, y, vx, vy float64) {
	e.X, e.Y = x, y
	e.VX, e.VY = vx, vy
	w.pushEntityUpdate(e, protocol.UpdatePosition)
}

// SetEntityVelocity меняет только скорость
func (w *World) SetEntityVelocity(e *Entity, vx, vy float64) {
	e.VX, e.VY = vx, vy
	w.pushEntityUpdate(e, protocol.UpdateVelocity)
}

// SetEntityState меняет биты состояния
func (w *World) SetEntityState(e *Entity, state EntityState) {
	e.State = state
	w.pushEntityUpdate(e, protocol.UpdateState)
}

// SetEntityExpression меняет выражение. cancellable - снимется при движении.
func (w *World) SetEntityExpression(e *Entity, expression uint32, cancellable bool) {
	e.Expression = expression
	e.ExpressionCancellable = cancellable
	w.pushEntityUpdate(e, protocol.UpdateExpression)
}

// SetEntityAction разовое действие, в сущности не хранится
func (w *World) SetEntityAction(e *Entity, action Action) {
	u := w.makeUpdate(e, protocol.UpdateAction)
	u.Action = uint8(action)
	w.PushUpdateEntityToRegion(e.Region(), e, u)
}

// SetEntityOptions дописывает опции сущности
func (w *World) SetEntityOptions(e *Entity, options map[string]interface{}) {
	if e.Options == nil {
		e.Options = make(map[string]interface{}, len(options))
	}
	for k, v := range options {
		e.Options[k] = v
	}
	w.pushEntityUpdate(e, protocol.UpdateOptions)
}

// SetTile меняет тайл: маска коллизий региона пересоберётся, подписчики
// получат изменение на коммите
func (w *World) SetTile(m *Map, x, y int, t TileType) error {
	if x < 0 || y < 0 || x >= m.Width || y >= m.Height {
		return fmt.Errorf("%w: tile (%d, %d)", ErrInvalidCoordinates, x, y)
	}
	if !t.Valid() {
		return fmt.Errorf("%w: %d", ErrInvalidTile, t)
	}

	r := m.regions[(y/RegionSize)*m.RegionsX+x/RegionSize]
	lx, ly := x%RegionSize, y%RegionSize
	if r.tileAt(lx, ly) == t {
		return nil
	}
	r.setTile(lx, ly, t)
	pushTileUpdate(r, x, y, t)
	return nil
}

// QueueJoin ставит клиента в очередь, он войдёт в конце следующего тика
func (w *World) QueueJoin(c *Client) {
	w.joinQueue = append(w.joinQueue, c)
}

func (w *World) admitJoins() {
	if len(w.joinQueue) == 0 {
		return
	}
	queue := w.joinQueue
	w.joinQueue = nil
	for _, c := range queue {
		if err := w.joinClientToWorld(c); err != nil {
			w.log.Error("Клиент %s не вошёл в мир: %v", c.ID, err)
			c.conn.Disconnect("failed to join", true)
		}
	}
}

// joinClientToWorld создаёт персонажа, ставит его на карту и отправляет
// клиенту параметры карты и видимые регионы
func (w *World) joinClientToWorld(c *Client) error {
	m := c.Map
	if m == nil {
		m = w.MainMap()
	}
	if m == nil {
		return ErrNoMap
	}
	c.Map = m

	pony := c.Pony
	if pony == nil {
		pony = NewEntity(EntityTypePony, c.Name, FlagMovable|FlagCanCollide, 0, 0)
		pony.Colliders = []vec.Rect{PonyCollider}
	}
	pony.Client = c
	c.Pony = pony

	pony.X, pony.Y = w.SpawnPoint(m, pony)
	pony.VX, pony.VY = 0, 0
	c.SafeX, c.SafeY = pony.X, pony.Y
	c.LastX, c.LastY = pony.X, pony.Y
	c.LastVX, c.LastVY = 0, 0
	c.LastTime = 0
	c.HasReported = false
	c.Camera = vec.NewRectCentered(pony.X, pony.Y, DefaultCameraWidth, DefaultCameraHeight)
	c.Loading = true

	if err := w.AddEntity(pony, m); err != nil {
		return err
	}

	protocol.WriteMapState(c.updateQueue, &protocol.MapState{
		Name:       m.Name,
		Width:      m.Width,
		Height:     m.Height,
		RegionSize: RegionSize,
		PlayerID:   uint32(pony.ID),
	})

	w.clients = append(w.clients, c)
	w.SubscribeToRegionsInRange(c)

	w.log.Info("Клиент %s (%s) вошёл на карту %s в (%.2f, %.2f)", c.ID, c.AccountID, m.Name, pony.X, pony.Y)
	return nil
}

// SpawnPoint случайная свободная точка области появления карты для сущности
func (w *World) SpawnPoint(m *Map, e *Entity) (float64, float64) {
	area, ok := m.Spawn.Intersection(m.Bounds())
	if !ok {
		area = m.Bounds()
	}

	for attempt := 0; attempt < 16; attempt++ {
		x := area.X + w.rng.Float64()*area.W
		y := area.Y + w.rng.Float64()*area.H
		if !w.isCollidingOn(m, e, x, y) {
			return x, y
		}
	}

	center := area.Center()
	return center.X, center.Y
}

func (w *World) isCollidingOn(m *Map, e *Entity, x, y float64) bool {
	prev := e.mapRef
	e.mapRef = m
	colliding := w.IsColliding(e, x, y)
	e.mapRef = prev
	return colliding
}

// Loaded клиент загрузил карту, движение разрешено
func (w *World) Loaded(c *Client) {
	c.Loading = false
	c.LoadedAt = w.now
}

// FixedPosition клиент подтвердил принудительную позицию
func (w *World) FixedPosition(c *Client) {
	c.FixingPosition = false
}

// LeaveClient убирает клиента и его персонажа из мира
func (w *World) LeaveClient(c *Client, reason string) {
	for i, queued := range w.joinQueue {
		if queued == c {
			w.joinQueue = append(w.joinQueue[:i], w.joinQueue[i+1:]...)
			break
		}
	}

	found := false
	for i, other := range w.clients {
		if other == c {
			w.clients = append(w.clients[:i], w.clients[i+1:]...)
			found = true
			break
		}
	}

	w.UnsubscribeFromAllRegions(c, true)
	if found && c.Pony != nil {
		if err := w.RemoveEntity(c.Pony); err != nil {
			w.log.Warn("Персонаж клиента %s уже удалён: %v", c.ID, err)
		}
	}

	w.log.Info("Клиент %s покинул мир: %s", c.ID, reason)
	c.conn.Left(reason)
}

// Kick отключает клиента модератором
func (w *World) Kick(c *Client, reason string) {
	if reason == "" {
		reason = "kicked"
	}
	w.disconnect(c, reason, false)
}

func (w *World) disconnect(c *Client, reason string, immediate bool) {
	w.observer.ClientDisconnected(reason)
	c.conn.Disconnect(reason, immediate)
}

// SetShadowed скрывает персонажа клиента от остальных
func (w *World) SetShadowed(c *Client, shadowed bool) {
	c.Shadowed = shadowed
}
