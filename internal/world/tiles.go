package world

// TileType тип тайла карты
type TileType uint8

const (
	TileNone TileType = iota // пустота за краем карты
	TileDirt
	TileGrass
	TileWater
	TileWood
	TileIce
	TileStone
	TileWall
	tileTypeCount
)

var tileNames = [...]string{
	TileNone:  "none",
	TileDirt:  "dirt",
	TileGrass: "grass",
	TileWater: "water",
	TileWood:  "wood",
	TileIce:   "ice",
	TileStone: "stone",
	TileWall:  "wall",
}

func (t TileType) String() string {
	if t < tileTypeCount {
		return tileNames[t]
	}
	return "unknown"
}

// Valid проверяет, известен ли тип тайла
func (t TileType) Valid() bool {
	return t < tileTypeCount
}

// Walkable можно ли стоять на тайле
func (t TileType) Walkable() bool {
	switch t {
	case TileNone, TileWater, TileWall:
		return false
	default:
		return t.Valid()
	}
}
