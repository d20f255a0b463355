package world

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/annel0/mmo-region/internal/protocol"
	"github.com/annel0/mmo-region/internal/vec"
)

type fixCall struct {
	x, y float64
	safe bool
}

type disconnectCall struct {
	reason    string
	immediate bool
}

// fakeConn записывает вызовы мира к сетевому слою
type fakeConn struct {
	fixes       []fixCall
	disconnects []disconnectCall
	left        []string
}

func (f *fakeConn) FixPosition(x, y float64, safe bool) {
	f.fixes = append(f.fixes, fixCall{x: x, y: y, safe: safe})
}

func (f *fakeConn) Disconnect(reason string, immediate bool) {
	f.disconnects = append(f.disconnects, disconnectCall{reason: reason, immediate: immediate})
}

func (f *fakeConn) Left(reason string) {
	f.left = append(f.left, reason)
}

type fakeCounter struct {
	items   map[string][]string
	removed []string
}

func newFakeCounter() *fakeCounter {
	return &fakeCounter{items: make(map[string][]string)}
}

func (f *fakeCounter) Add(key, item string) CounterResult {
	f.items[key] = append(f.items[key], item)
	return CounterResult{Count: len(f.items[key]), Items: f.items[key], Date: time.Now()}
}

func (f *fakeCounter) Remove(key string) {
	delete(f.items, key)
	f.removed = append(f.removed, key)
}

type reportCall struct {
	account, reason, details string
}

type fakeReporter struct {
	reports []reportCall
}

func (f *fakeReporter) Report(accountID, reason, details string) {
	f.reports = append(f.reports, reportCall{account: accountID, reason: reason, details: details})
}

func newTestWorld(t *testing.T, width, height int) (*World, *Map) {
	t.Helper()
	return newTestWorldWith(t, width, height, Options{Seed: 1})
}

func newTestWorldWith(t *testing.T, width, height int, opts Options) (*World, *Map) {
	t.Helper()
	m, err := NewMap("test", width, height)
	require.NoError(t, err)
	w := New(opts)
	w.AddMap(m)
	return w, m
}

// addNPC ставит подвижную сущность на карту
func addNPC(t *testing.T, w *World, m *Map, x, y float64) *Entity {
	t.Helper()
	e := NewEntity(EntityTypeNPC, "npc", FlagMovable|FlagCanCollide, x, y)
	e.Colliders = []vec.Rect{PonyCollider}
	require.NoError(t, w.AddEntity(e, m))
	return e
}

// joinClient вводит клиента в мир, ставит персонажа в (x, y) и очищает
// все буферы, чтобы тест видел только свои изменения
func joinClient(t *testing.T, w *World, m *Map, account string, x, y float64) (*Client, *fakeConn) {
	t.Helper()
	conn := &fakeConn{}
	c := NewClient(account, account, conn)
	c.Map = m
	require.NoError(t, w.joinClientToWorld(c))
	w.Loaded(c)

	c.Pony.X, c.Pony.Y = x, y
	c.SafeX, c.SafeY = x, y
	c.LastX, c.LastY = x, y
	c.Camera = vec.NewRectCentered(x, y, DefaultCameraWidth, DefaultCameraHeight)
	w.TransferToRegion(c.Pony, GetExpectedRegion(c.Pony, m))
	w.UpdateRegions(w.Maps())

	w.CommitRegionUpdates(w.Maps())
	c.TakeOutbound()
	return c, conn
}

func decodeQueue(t *testing.T, data []byte) []interface{} {
	t.Helper()
	packets, err := protocol.DecodePackets(data)
	require.NoError(t, err)
	return packets
}

func countPackets[T any](packets []interface{}) int {
	n := 0
	for _, p := range packets {
		if _, ok := p.(T); ok {
			n++
		}
	}
	return n
}
