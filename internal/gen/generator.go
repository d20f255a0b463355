package gen

import (
	"math/rand"

	"github.com/aquilax/go-perlin"

	"github.com/annel0/mmo-region/internal/vec"
	"github.com/annel0/mmo-region/internal/world"
)

// Пороги высоты, значения шума приведены к [0, 1]
const (
	WaterMax = 0.30 // ниже вода
	DirtMax  = 0.38 // берег
	StoneMin = 0.78 // выше камень
)

// TreeCollider ствол дерева относительно его позиции
var TreeCollider = vec.Rect{X: -0.4, Y: -0.4, W: 0.8, H: 0.8}

// Generator заполняет карту ландшафтом по шуму Перлина
type Generator struct {
	Seed        int64
	NoiseScale  float64 // масштаб шума высот
	TreeDensity float64 // вероятность дерева на траве

	height *perlin.Perlin
}

// NewGenerator создаёт генератор с настройками по умолчанию
func NewGenerator(seed int64) *Generator {
	return &Generator{
		Seed:        seed,
		NoiseScale:  0.08,
		TreeDensity: 0.03,
		height:      perlin.NewPerlin(2.0, 2.0, 3, seed),
	}
}

// HeightAt высота в точке, от 0 до 1
func (g *Generator) HeightAt(x, y int) float64 {
	n := g.height.Noise2D(float64(x)*g.NoiseScale, float64(y)*g.NoiseScale)
	h := (n + 1.0) / 2.0
	if h < 0 {
		return 0
	}
	if h > 1 {
		return 1
	}
	return h
}

func tileForHeight(h float64) world.TileType {
	switch {
	case h < WaterMax:
		return world.TileWater
	case h < DirtMax:
		return world.TileDirt
	case h >= StoneMin:
		return world.TileStone
	default:
		return world.TileGrass
	}
}

// FillTiles пишет тайлы карты без рассылки изменений
func (g *Generator) FillTiles(m *world.Map) error {
	for y := 0; y < m.Height; y++ {
		for x := 0; x < m.Width; x++ {
			if err := m.InitTile(x, y, tileForHeight(g.HeightAt(x, y))); err != nil {
				return err
			}
		}
	}
	return nil
}

// PlaceTrees ставит деревья на траву. Возвращает число поставленных.
// Тайлы должны быть заполнены заранее.
func (g *Generator) PlaceTrees(w *world.World, m *world.Map) (int, error) {
	rng := rand.New(rand.NewSource(g.Seed + 31))
	placed := 0
	for y := 1; y < m.Height-1; y++ {
		for x := 1; x < m.Width-1; x++ {
			if m.TileAt(x, y) != world.TileGrass || rng.Float64() >= g.TreeDensity {
				continue
			}
			tree := world.NewEntity(world.EntityTypeTree, "", world.FlagCanCollide,
				float64(x)+0.5, float64(y)+0.5)
			tree.Colliders = []vec.Rect{TreeCollider}
			if err := w.AddEntity(tree, m); err != nil {
				return placed, err
			}
			placed++
		}
	}
	return placed, nil
}

// Generate заполняет тайлы и ставит деревья
func (g *Generator) Generate(w *world.World, m *world.Map) error {
	if err := g.FillTiles(m); err != nil {
		return err
	}
	_, err := g.PlaceTrees(w, m)
	return err
}
