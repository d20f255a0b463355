package protocol

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEntityUpdateWritesOnlyFlaggedGroups(t *testing.T) {
	w := NewWriter(64)
	WriteEntityUpdate(w, &EntityUpdate{ID: 7, Flags: UpdateState, State: 0x11, X: 100})

	// флаги + id + состояние
	assert.Equal(t, 1+4+1, w.Len())

	u := ReadEntityUpdate(NewReader(w.Bytes()))
	assert.Equal(t, uint32(7), u.ID)
	assert.Equal(t, uint8(0x11), u.State)
	assert.Zero(t, u.X, "Позиция не передавалась")
}

func TestEntityUpdateVelocityOnly(t *testing.T) {
	w := NewWriter(64)
	WriteEntityUpdate(w, &EntityUpdate{ID: 1, Flags: UpdateVelocity, X: 5, VX: 2, VY: -1})

	u := ReadEntityUpdate(NewReader(w.Bytes()))
	assert.Equal(t, 2.0, u.VX)
	assert.Equal(t, -1.0, u.VY)
	assert.Zero(t, u.X)
}

func TestDecodePacketStream(t *testing.T) {
	w := NewWriter(256)
	WriteMapState(w, &MapState{Name: "main", Width: 64, Height: 48, RegionSize: 8, PlayerID: 3})
	WriteRegionUpdate(w, &RegionUpdate{
		X: 1, Y: 2,
		Updates: []EntityUpdate{{ID: 3, Flags: UpdateFull, Type: 1, Name: "пони", X: 9.5, Y: 17.25, Options: []byte(`{"hat":1}`)}},
		Removes: []uint32{4, 5},
		Tiles:   []TileUpdate{{X: 9, Y: 17, Type: 3}},
	})
	WriteUnsubscribe(w, &Unsubscribe{X: 0, Y: 0})
	WriteSingleUpdate(w, &EntityUpdate{ID: 3, Flags: UpdateAction, Action: 2})

	packets, err := DecodePackets(w.Bytes())
	require.NoError(t, err)
	require.Len(t, packets, 4)

	state := packets[0].(*MapState)
	assert.Equal(t, "main", state.Name)
	assert.Equal(t, uint32(3), state.PlayerID)

	region := packets[1].(*RegionUpdate)
	assert.Equal(t, 1, region.X)
	assert.Equal(t, 2, region.Y)
	require.Len(t, region.Updates, 1)
	assert.Equal(t, "пони", region.Updates[0].Name)
	assert.Equal(t, 17.25, region.Updates[0].Y)
	assert.Equal(t, []uint32{4, 5}, region.Removes)
	assert.Equal(t, []TileUpdate{{X: 9, Y: 17, Type: 3}}, region.Tiles)

	assert.Equal(t, &Unsubscribe{}, packets[2])
	assert.Equal(t, uint8(2), packets[3].(*EntityUpdate).Action)
}

func TestDecodeTruncatedPacket(t *testing.T) {
	w := NewWriter(64)
	WriteRegionUpdate(w, &RegionUpdate{Removes: []uint32{1, 2, 3}})

	_, err := DecodePackets(w.Bytes()[:w.Len()-3])
	assert.ErrorIs(t, err, ErrShortBuffer)

	_, err = DecodePackets([]byte{0xEE})
	assert.Error(t, err)
}

func TestSubscribeCarriesCompressedTiles(t *testing.T) {
	raw := bytes.Repeat([]byte{2}, 64)
	compressed := CompressTiles(raw)
	assert.Less(t, len(compressed), len(raw))

	w := NewWriter(128)
	WriteSubscribe(w, &Subscribe{X: 3, Y: 4, Tiles: compressed})

	packets, err := DecodePackets(w.Bytes())
	require.NoError(t, err)
	sub := packets[0].(*Subscribe)

	tiles, err := DecompressTiles(sub.Tiles)
	require.NoError(t, err)
	assert.Equal(t, raw, tiles)
}

func TestOptionsJSON(t *testing.T) {
	data, err := EncodeOptions(map[string]interface{}{"tag": "mod"})
	require.NoError(t, err)

	options, err := DecodeOptions(data)
	require.NoError(t, err)
	assert.Equal(t, "mod", options["tag"])

	data, err = EncodeOptions(nil)
	assert.NoError(t, err)
	assert.Nil(t, data)
}

func TestWriterTake(t *testing.T) {
	w := NewWriter(8)
	w.WriteString("abc")
	data := w.Take()
	assert.Equal(t, 5, len(data))
	assert.Equal(t, 0, w.Len())
}
