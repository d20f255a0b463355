package vec

// Vec2 целочисленные координаты: тайл или ячейка сетки регионов
type Vec2 struct {
	X, Y int
}

// Add складывает два вектора
func (v Vec2) Add(other Vec2) Vec2 {
	return Vec2{X: v.X + other.X, Y: v.Y + other.Y}
}

// Sub вычитает вектор
func (v Vec2) Sub(other Vec2) Vec2 {
	return Vec2{X: v.X - other.X, Y: v.Y - other.Y}
}

// DistanceChebyshev расстояние в шагах сетки с учётом диагоналей
func (v Vec2) DistanceChebyshev(other Vec2) int {
	dx := abs(v.X - other.X)
	dy := abs(v.Y - other.Y)
	if dx > dy {
		return dx
	}
	return dy
}

// Neighbors возвращает 8 соседних клеток
func (v Vec2) Neighbors() []Vec2 {
	result := make([]Vec2, 0, 8)
	for dy := -1; dy <= 1; dy++ {
		for dx := -1; dx <= 1; dx++ {
			if dx == 0 && dy == 0 {
				continue
			}
			result = append(result, Vec2{X: v.X + dx, Y: v.Y + dy})
		}
	}
	return result
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
