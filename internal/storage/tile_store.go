package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/dgraph-io/badger/v3"

	"github.com/annel0/mmo-region/internal/logging"
	"github.com/annel0/mmo-region/internal/protocol"
	"github.com/annel0/mmo-region/internal/world"
)

// ErrMapMismatch сохранённая карта другого размера
var ErrMapMismatch = errors.New("сохранённая карта не совпадает по размеру")

var errNotReady = errors.New("хранилище не готово")

// TileStore хранит тайлы регионов в BadgerDB
type TileStore struct {
	db      *badger.DB
	mutex   sync.RWMutex
	isReady bool
}

// mapMeta заголовок карты, пишется вместе с регионами
type mapMeta struct {
	Width      int `json:"width"`
	Height     int `json:"height"`
	RegionSize int `json:"region_size"`
}

// NewTileStore открывает базу в каталоге path. При inMemory путь игнорируется.
func NewTileStore(path string, inMemory bool) (*TileStore, error) {
	opts := badger.DefaultOptions(path)
	if inMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	}
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("не удалось открыть BadgerDB: %w", err)
	}

	return &TileStore{db: db, isReady: true}, nil
}

// Close закрывает хранилище
func (s *TileStore) Close() error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if !s.isReady {
		return nil
	}
	s.isReady = false
	return s.db.Close()
}

func regionKey(mapName string, rx, ry int) []byte {
	return []byte(fmt.Sprintf("map:%s:region:%d:%d", mapName, rx, ry))
}

func metaKey(mapName string) []byte {
	return []byte(fmt.Sprintf("map:%s:meta", mapName))
}

// SaveRegion записывает тайлы региона и снимает с него признак изменений
func (s *TileStore) SaveRegion(m *world.Map, r *world.Region) error {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	if !s.isReady {
		return errNotReady
	}

	meta, err := json.Marshal(mapMeta{Width: m.Width, Height: m.Height, RegionSize: world.RegionSize})
	if err != nil {
		return err
	}

	data := protocol.CompressTiles(r.TilesData())
	err = s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set(metaKey(m.Name), meta); err != nil {
			return err
		}
		return txn.Set(regionKey(m.Name, r.X, r.Y), data)
	})
	if err != nil {
		return fmt.Errorf("ошибка сохранения региона (%d, %d): %w", r.X, r.Y, err)
	}

	r.MarkSaved()
	return nil
}

// SaveMap сохраняет все изменённые регионы карты. Возвращает число записанных.
func (s *TileStore) SaveMap(m *world.Map) (int, error) {
	saved := 0
	for _, r := range m.Regions() {
		if !r.TilesDirty() {
			continue
		}
		if err := s.SaveRegion(m, r); err != nil {
			return saved, err
		}
		saved++
	}
	return saved, nil
}

// LoadMap загружает сохранённые регионы в карту. Отсутствующие регионы не трогаются.
func (s *TileStore) LoadMap(m *world.Map) (int, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	if !s.isReady {
		return 0, errNotReady
	}

	loaded := 0
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(metaKey(m.Name))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}

		var meta mapMeta
		if err := item.Value(func(val []byte) error {
			return json.Unmarshal(val, &meta)
		}); err != nil {
			return err
		}
		if meta.Width != m.Width || meta.Height != m.Height || meta.RegionSize != world.RegionSize {
			return fmt.Errorf("%w: %s %dx%d, ожидалось %dx%d",
				ErrMapMismatch, m.Name, meta.Width, meta.Height, m.Width, m.Height)
		}

		for ry := 0; ry < m.RegionsY; ry++ {
			for rx := 0; rx < m.RegionsX; rx++ {
				item, err := txn.Get(regionKey(m.Name, rx, ry))
				if errors.Is(err, badger.ErrKeyNotFound) {
					continue
				}
				if err != nil {
					return err
				}

				var compressed []byte
				if err := item.Value(func(val []byte) error {
					compressed = append([]byte{}, val...)
					return nil
				}); err != nil {
					return err
				}

				tiles, err := protocol.DecompressTiles(compressed)
				if err != nil {
					return fmt.Errorf("регион (%d, %d): %w", rx, ry, err)
				}
				if err := m.LoadRegionTiles(rx, ry, tiles); err != nil {
					return err
				}
				loaded++
			}
		}
		return nil
	})
	if err != nil {
		return loaded, err
	}

	if loaded > 0 {
		logging.GetComponentLogger("storage").Info("Карта %s: загружено регионов %d", m.Name, loaded)
	}
	return loaded, nil
}
