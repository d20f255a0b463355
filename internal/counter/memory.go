package counter

import (
	"sync"
	"time"

	"github.com/annel0/mmo-region/internal/world"
)

type mark struct {
	item string
	at   time.Time
}

// MemoryCounter скользящий счётчик в памяти процесса
type MemoryCounter struct {
	mu      sync.Mutex
	window  time.Duration
	now     func() time.Time
	entries map[string][]mark
}

// NewMemoryCounter создаёт счётчик с окном window
func NewMemoryCounter(window time.Duration) *MemoryCounter {
	return &MemoryCounter{
		window:  window,
		now:     time.Now,
		entries: make(map[string][]mark),
	}
}

// Add отмечает событие и возвращает события ключа за окно.
// Date - время самого старого события в окне.
func (c *MemoryCounter) Add(key, item string) world.CounterResult {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	marks := c.prune(c.entries[key], now)
	marks = append(marks, mark{item: item, at: now})
	c.entries[key] = marks

	items := make([]string, len(marks))
	for i, m := range marks {
		items[i] = m.item
	}
	return world.CounterResult{Count: len(marks), Items: items, Date: marks[0].at}
}

// Remove забывает ключ
func (c *MemoryCounter) Remove(key string) {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
}

// Cleanup выбрасывает ключи без событий в окне
func (c *MemoryCounter) Cleanup() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	removed := 0
	for key, marks := range c.entries {
		marks = c.prune(marks, now)
		if len(marks) == 0 {
			delete(c.entries, key)
			removed++
			continue
		}
		c.entries[key] = marks
	}
	return removed
}

func (c *MemoryCounter) prune(marks []mark, now time.Time) []mark {
	cutoff := now.Add(-c.window)
	i := 0
	for i < len(marks) && !marks[i].at.After(cutoff) {
		i++
	}
	return marks[i:]
}
