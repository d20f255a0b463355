package world

import (
	"github.com/google/uuid"

	"github.com/annel0/mmo-region/internal/protocol"
	"github.com/annel0/mmo-region/internal/vec"
)

// Connection сторона сетевого слоя, через которую мир управляет клиентом
type Connection interface {
	// FixPosition принудительно ставит персонажа клиента в точку
	FixPosition(x, y float64, safe bool)
	// Disconnect разрывает соединение. immediate - без ожидания отправки очереди.
	Disconnect(reason string, immediate bool)
	// Left уведомляет, что мир забыл клиента
	Left(reason string)
}

// DefaultCameraWidth размеры камеры до первого сообщения о движении
const (
	DefaultCameraWidth  = 16
	DefaultCameraHeight = 12
)

// Client подключённый игрок. Мир трогает клиента только из потока тика.
type Client struct {
	ID        string
	AccountID string
	Name      string

	Pony   *Entity
	Map    *Map
	Camera vec.Rect

	// Regions регионы, на которые подписан клиент
	Regions []*Region

	// Shadowed обновления персонажа видит только сам клиент
	Shadowed bool
	// Loading клиент ещё грузит карту, движение игнорируется
	Loading bool
	// FixingPosition ждём подтверждения принудительной позиции
	FixingPosition bool

	SafeX, SafeY   float64
	LastX, LastY   float64
	LastVX, LastVY float64
	// LastTime время последнего движения по часам клиента, в секундах
	LastTime float64
	// HasReported клиент уже присылал движение после входа. Значение
	// LastTime само по себе этого не говорит: часы клиента могут стоять на нуле.
	HasReported bool
	// LoadedAt время мира, когда клиент загрузил карту
	LoadedAt float64

	conn          Connection
	regionUpdates [][]byte
	updateQueue   *protocol.Writer
}

// NewClient создаёт клиента с новым идентификатором сессии
func NewClient(accountID, name string, conn Connection) *Client {
	return &Client{
		ID:          uuid.NewString(),
		AccountID:   accountID,
		Name:        name,
		conn:        conn,
		updateQueue: protocol.NewWriter(256),
	}
}

// Conn соединение клиента
func (c *Client) Conn() Connection {
	return c.conn
}

// IsSubscribed подписан ли клиент на регион
func (c *Client) IsSubscribed(r *Region) bool {
	for _, other := range c.Regions {
		if other == r {
			return true
		}
	}
	return false
}

// RegionUpdates пакеты регионов, ещё не забранные сетевым слоем.
// Один пакет разделяется всеми подписчиками региона, менять его нельзя.
func (c *Client) RegionUpdates() [][]byte {
	return c.regionUpdates
}

// UpdateQueue индивидуальные записи клиента
func (c *Client) UpdateQueue() []byte {
	return c.updateQueue.Bytes()
}

// TakeOutbound забирает все исходящие данные: сначала индивидуальную
// очередь (подписки идут раньше изменений регионов), затем пакеты регионов
func (c *Client) TakeOutbound() (queue []byte, regions [][]byte) {
	queue = c.updateQueue.Take()
	regions = c.regionUpdates
	c.regionUpdates = nil
	return queue, regions
}

func (c *Client) removeRegion(r *Region) bool {
	for i, other := range c.Regions {
		if other == r {
			c.Regions = append(c.Regions[:i], c.Regions[i+1:]...)
			return true
		}
	}
	return false
}
