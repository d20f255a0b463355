package protocol

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"math"
)

// ErrShortBuffer данных меньше, чем требует формат
var ErrShortBuffer = errors.New("protocol: short buffer")

// Writer накапливает бинарные записи в big-endian формате
type Writer struct {
	buf []byte
}

// NewWriter создаёт писатель с начальной ёмкостью
func NewWriter(capacity int) *Writer {
	return &Writer{buf: make([]byte, 0, capacity)}
}

func (w *Writer) WriteUint8(v uint8) { w.buf = append(w.buf, v) }

func (w *Writer) WriteUint16(v uint16) { w.buf = binary.BigEndian.AppendUint16(w.buf, v) }

func (w *Writer) WriteUint32(v uint32) { w.buf = binary.BigEndian.AppendUint32(w.buf, v) }

func (w *Writer) WriteFloat32(v float64) {
	w.buf = binary.BigEndian.AppendUint32(w.buf, math.Float32bits(float32(v)))
}

func (w *Writer) WriteBool(v bool) {
	if v {
		w.WriteUint8(1)
	} else {
		w.WriteUint8(0)
	}
}

// WriteBytes пишет длину (uint32) и данные
func (w *Writer) WriteBytes(data []byte) {
	w.WriteUint32(uint32(len(data)))
	w.buf = append(w.buf, data...)
}

// WriteString пишет строку с длиной uint16
func (w *Writer) WriteString(s string) {
	if len(s) > math.MaxUint16 {
		s = s[:math.MaxUint16]
	}
	w.WriteUint16(uint16(len(s)))
	w.buf = append(w.buf, s...)
}

// Len количество записанных байт
func (w *Writer) Len() int { return len(w.buf) }

// Bytes возвращает накопленные данные без копирования
func (w *Writer) Bytes() []byte { return w.buf }

// Take отдаёт накопленные данные и начинает новый буфер
func (w *Writer) Take() []byte {
	data := w.buf
	w.buf = nil
	return data
}

// Reset очищает буфер, сохраняя ёмкость
func (w *Writer) Reset() { w.buf = w.buf[:0] }

// Reader читает записи, сделанные Writer. Первая ошибка запоминается,
// последующие чтения возвращают нули.
type Reader struct {
	data []byte
	pos  int
	err  error
}

// NewReader создаёт читатель поверх данных
func NewReader(data []byte) *Reader {
	return &Reader{data: data}
}

func (r *Reader) need(n int) bool {
	if r.err != nil {
		return false
	}
	if len(r.data)-r.pos < n {
		r.err = fmt.Errorf("%w: need %d bytes at offset %d", ErrShortBuffer, n, r.pos)
		return false
	}
	return true
}

func (r *Reader) ReadUint8() uint8 {
	if !r.need(1) {
		return 0
	}
	v := r.data[r.pos]
	r.pos++
	return v
}

func (r *Reader) ReadUint16() uint16 {
	if !r.need(2) {
		return 0
	}
	v := binary.BigEndian.Uint16(r.data[r.pos:])
	r.pos += 2
	return v
}

func (r *Reader) ReadUint32() uint32 {
	if !r.need(4) {
		return 0
	}
	v := binary.BigEndian.Uint32(r.data[r.pos:])
	r.pos += 4
	return v
}

func (r *Reader) ReadFloat32() float64 {
	return float64(math.Float32frombits(r.ReadUint32()))
}

func (r *Reader) ReadBool() bool {
	return r.ReadUint8() != 0
}

func (r *Reader) ReadBytes() []byte {
	n := int(r.ReadUint32())
	if !r.need(n) {
		return nil
	}
	v := r.data[r.pos : r.pos+n]
	r.pos += n
	return v
}

func (r *Reader) ReadString() string {
	n := int(r.ReadUint16())
	if !r.need(n) {
		return ""
	}
	v := string(r.data[r.pos : r.pos+n])
	r.pos += n
	return v
}

// Remaining сколько байт ещё не прочитано
func (r *Reader) Remaining() int { return len(r.data) - r.pos }

// Err первая ошибка чтения
func (r *Reader) Err() error { return r.err }

// EncodeOptions сериализует произвольные опции сущности в JSON
func EncodeOptions(options map[string]interface{}) ([]byte, error) {
	if len(options) == 0 {
		return nil, nil
	}
	data, err := json.Marshal(options)
	if err != nil {
		return nil, fmt.Errorf("ошибка сериализации опций в JSON: %w", err)
	}
	return data, nil
}

// DecodeOptions обратная операция к EncodeOptions
func DecodeOptions(data []byte) (map[string]interface{}, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var result map[string]interface{}
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("ошибка десериализации опций из JSON: %w", err)
	}
	return result, nil
}
