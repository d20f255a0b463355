package protocol

import "fmt"

// PacketType тип записи в исходящем потоке клиента
type PacketType uint8

const (
	PacketRegionUpdate PacketType = iota + 1 // изменения региона за тик
	PacketSubscribe                          // полное состояние региона
	PacketUnsubscribe                        // клиент больше не видит регион
	PacketMapState                           // параметры карты при входе
	PacketEntityUpdate                       // одиночное обновление вне регионов
)

func (p PacketType) String() string {
	switch p {
	case PacketRegionUpdate:
		return "RegionUpdate"
	case PacketSubscribe:
		return "Subscribe"
	case PacketUnsubscribe:
		return "Unsubscribe"
	case PacketMapState:
		return "MapState"
	case PacketEntityUpdate:
		return "EntityUpdate"
	default:
		return fmt.Sprintf("Packet(%d)", uint8(p))
	}
}

// UpdateFlags битовая маска групп полей в EntityUpdate
type UpdateFlags uint8

const (
	UpdatePosition   UpdateFlags = 1 << iota // x, y и скорость
	UpdateVelocity                           // только скорость
	UpdateState                              // биты состояния
	UpdateExpression                         // выражение лица
	UpdateAction                             // разовое действие
	UpdateOptions                            // JSON опции
	UpdateAdded                              // тип и имя, сущность появилась в регионе
)

// UpdateFull все группы полей, которые есть у появившейся сущности
const UpdateFull = UpdateAdded | UpdatePosition | UpdateState | UpdateExpression | UpdateOptions

// EntityUpdate изменение одной сущности. Поля вне Flags не значимы.
type EntityUpdate struct {
	ID         uint32
	Flags      UpdateFlags
	Type       uint16
	Name       string
	X, Y       float64
	VX, VY     float64
	State      uint8
	Expression uint32
	Action     uint8
	Options    []byte
}

// TileUpdate смена тайла в глобальных координатах
type TileUpdate struct {
	X, Y uint16
	Type uint8
}

// WriteEntityUpdate пишет запись: флаги, id и только отмеченные группы
func WriteEntityUpdate(w *Writer, u *EntityUpdate) {
	w.WriteUint8(uint8(u.Flags))
	w.WriteUint32(u.ID)

	if u.Flags&UpdateAdded != 0 {
		w.WriteUint16(u.Type)
		w.WriteString(u.Name)
	}
	if u.Flags&UpdatePosition != 0 {
		w.WriteFloat32(u.X)
		w.WriteFloat32(u.Y)
		w.WriteFloat32(u.VX)
		w.WriteFloat32(u.VY)
	} else if u.Flags&UpdateVelocity != 0 {
		w.WriteFloat32(u.VX)
		w.WriteFloat32(u.VY)
	}
	if u.Flags&UpdateState != 0 {
		w.WriteUint8(u.State)
	}
	if u.Flags&UpdateExpression != 0 {
		w.WriteUint32(u.Expression)
	}
	if u.Flags&UpdateAction != 0 {
		w.WriteUint8(u.Action)
	}
	if u.Flags&UpdateOptions != 0 {
		w.WriteBytes(u.Options)
	}
}

// ReadEntityUpdate читает запись WriteEntityUpdate
func ReadEntityUpdate(r *Reader) EntityUpdate {
	u := EntityUpdate{Flags: UpdateFlags(r.ReadUint8())}
	u.ID = r.ReadUint32()

	if u.Flags&UpdateAdded != 0 {
		u.Type = r.ReadUint16()
		u.Name = r.ReadString()
	}
	if u.Flags&UpdatePosition != 0 {
		u.X = r.ReadFloat32()
		u.Y = r.ReadFloat32()
		u.VX = r.ReadFloat32()
		u.VY = r.ReadFloat32()
	} else if u.Flags&UpdateVelocity != 0 {
		u.VX = r.ReadFloat32()
		u.VY = r.ReadFloat32()
	}
	if u.Flags&UpdateState != 0 {
		u.State = r.ReadUint8()
	}
	if u.Flags&UpdateExpression != 0 {
		u.Expression = r.ReadUint32()
	}
	if u.Flags&UpdateAction != 0 {
		u.Action = r.ReadUint8()
	}
	if u.Flags&UpdateOptions != 0 {
		u.Options = r.ReadBytes()
	}
	return u
}

// RegionUpdate изменения региона за тик
type RegionUpdate struct {
	X, Y    int
	Updates []EntityUpdate
	Removes []uint32
	Tiles   []TileUpdate
}

// WriteRegionUpdate пишет пакет. Координаты региона в заголовке нужны
// клиенту, чтобы отбросить удаление из региона, на который он уже не подписан.
func WriteRegionUpdate(w *Writer, p *RegionUpdate) {
	w.WriteUint8(uint8(PacketRegionUpdate))
	w.WriteUint16(uint16(p.X))
	w.WriteUint16(uint16(p.Y))

	w.WriteUint16(uint16(len(p.Updates)))
	for i := range p.Updates {
		WriteEntityUpdate(w, &p.Updates[i])
	}

	w.WriteUint16(uint16(len(p.Removes)))
	for _, id := range p.Removes {
		w.WriteUint32(id)
	}

	w.WriteUint16(uint16(len(p.Tiles)))
	for _, t := range p.Tiles {
		w.WriteUint16(t.X)
		w.WriteUint16(t.Y)
		w.WriteUint8(t.Type)
	}
}

// Subscribe полное состояние региона при подписке. Tiles сжаты zstd.
type Subscribe struct {
	X, Y     int
	Entities []EntityUpdate
	Tiles    []byte
}

func WriteSubscribe(w *Writer, p *Subscribe) {
	w.WriteUint8(uint8(PacketSubscribe))
	w.WriteUint16(uint16(p.X))
	w.WriteUint16(uint16(p.Y))
	w.WriteUint16(uint16(len(p.Entities)))
	for i := range p.Entities {
		WriteEntityUpdate(w, &p.Entities[i])
	}
	w.WriteBytes(p.Tiles)
}

// Unsubscribe клиент должен забыть регион и его сущности
type Unsubscribe struct {
	X, Y int
}

func WriteUnsubscribe(w *Writer, p *Unsubscribe) {
	w.WriteUint8(uint8(PacketUnsubscribe))
	w.WriteUint16(uint16(p.X))
	w.WriteUint16(uint16(p.Y))
}

// MapState параметры карты, которые клиент получает при входе
type MapState struct {
	Name       string
	Width      int
	Height     int
	RegionSize int
	PlayerID   uint32
}

func WriteMapState(w *Writer, p *MapState) {
	w.WriteUint8(uint8(PacketMapState))
	w.WriteString(p.Name)
	w.WriteUint16(uint16(p.Width))
	w.WriteUint16(uint16(p.Height))
	w.WriteUint8(uint8(p.RegionSize))
	w.WriteUint32(p.PlayerID)
}

// WriteSingleUpdate одиночное обновление сущности вне потока регионов
func WriteSingleUpdate(w *Writer, u *EntityUpdate) {
	w.WriteUint8(uint8(PacketEntityUpdate))
	WriteEntityUpdate(w, u)
}

// DecodePackets разбирает поток записей клиента. Возвращает значения
// *RegionUpdate, *Subscribe, *Unsubscribe, *MapState или *EntityUpdate.
func DecodePackets(data []byte) ([]interface{}, error) {
	r := NewReader(data)
	var packets []interface{}

	for r.Remaining() > 0 && r.Err() == nil {
		packetType := PacketType(r.ReadUint8())
		switch packetType {
		case PacketRegionUpdate:
			p := &RegionUpdate{X: int(r.ReadUint16()), Y: int(r.ReadUint16())}
			for i, n := 0, int(r.ReadUint16()); i < n && r.Err() == nil; i++ {
				p.Updates = append(p.Updates, ReadEntityUpdate(r))
			}
			for i, n := 0, int(r.ReadUint16()); i < n && r.Err() == nil; i++ {
				p.Removes = append(p.Removes, r.ReadUint32())
			}
			for i, n := 0, int(r.ReadUint16()); i < n && r.Err() == nil; i++ {
				p.Tiles = append(p.Tiles, TileUpdate{X: r.ReadUint16(), Y: r.ReadUint16(), Type: r.ReadUint8()})
			}
			packets = append(packets, p)
		case PacketSubscribe:
			p := &Subscribe{X: int(r.ReadUint16()), Y: int(r.ReadUint16())}
			for i, n := 0, int(r.ReadUint16()); i < n && r.Err() == nil; i++ {
				p.Entities = append(p.Entities, ReadEntityUpdate(r))
			}
			p.Tiles = r.ReadBytes()
			packets = append(packets, p)
		case PacketUnsubscribe:
			packets = append(packets, &Unsubscribe{X: int(r.ReadUint16()), Y: int(r.ReadUint16())})
		case PacketMapState:
			p := &MapState{Name: r.ReadString()}
			p.Width = int(r.ReadUint16())
			p.Height = int(r.ReadUint16())
			p.RegionSize = int(r.ReadUint8())
			p.PlayerID = r.ReadUint32()
			packets = append(packets, p)
		case PacketEntityUpdate:
			u := ReadEntityUpdate(r)
			packets = append(packets, &u)
		default:
			return packets, fmt.Errorf("protocol: unknown packet type %d", uint8(packetType))
		}
	}

	return packets, r.Err()
}
