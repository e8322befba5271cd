package listfile

import (
	"bufio"
	"encoding/binary"
	"io"
	"math"
	"os"
	"time"

	"github.com/shopspring/decimal"

	"github.com/quarrydb/quarry/sql"
)

// On-disk tuple layout: a uint32 header with the total tuple length,
// followed by one entry per value. Each value carries a BOUND/UNBOUND flag
// byte, a domain tag byte, a uint16 disk size and the payload padded to a
// four byte boundary.

const (
	flagUnbound = 0
	flagBound   = 1

	tagNil byte = iota
	tagInt32
	tagInt64
	tagFloat64
	tagNumeric
	tagString
	tagDateTime
	tagBool
	tagSet

	tupleHeaderSize = 4
	valueHeaderSize = 4
)

func pad4(n int) int { return (n + 3) &^ 3 }

func encodeValue(v interface{}) (tag byte, payload []byte, err error) {
	switch x := v.(type) {
	case nil:
		return tagNil, nil, nil
	case int:
		return tagInt64, binary.BigEndian.AppendUint64(nil, uint64(int64(x))), nil
	case int32:
		return tagInt32, binary.BigEndian.AppendUint32(nil, uint32(x)), nil
	case int64:
		return tagInt64, binary.BigEndian.AppendUint64(nil, uint64(x)), nil
	case float64:
		return tagFloat64, binary.BigEndian.AppendUint64(nil, math.Float64bits(x)), nil
	case decimal.Decimal:
		return tagNumeric, []byte(x.String()), nil
	case string:
		return tagString, []byte(x), nil
	case time.Time:
		return tagDateTime, binary.BigEndian.AppendUint64(nil, uint64(x.UnixNano())), nil
	case bool:
		if x {
			return tagBool, []byte{1}, nil
		}
		return tagBool, []byte{0}, nil
	case sql.SetValue:
		nested, err := EncodeTuple(sql.Row(x))
		if err != nil {
			return 0, nil, err
		}
		return tagSet, nested, nil
	}
	return 0, nil, sql.ErrTypeCoercion.New(v, "list file value")
}

func decodeValue(tag byte, payload []byte) (interface{}, error) {
	switch tag {
	case tagNil:
		return nil, nil
	case tagInt32:
		return int32(binary.BigEndian.Uint32(payload)), nil
	case tagInt64:
		return int64(binary.BigEndian.Uint64(payload)), nil
	case tagFloat64:
		return math.Float64frombits(binary.BigEndian.Uint64(payload)), nil
	case tagNumeric:
		return decimal.NewFromString(string(payload))
	case tagString:
		return string(payload), nil
	case tagDateTime:
		return time.Unix(0, int64(binary.BigEndian.Uint64(payload))).UTC(), nil
	case tagBool:
		return payload[0] == 1, nil
	case tagSet:
		row, err := DecodeTuple(payload, nil)
		if err != nil {
			return nil, err
		}
		return sql.SetValue(row), nil
	}
	return nil, sql.ErrInvariantViolation.New("unknown list file value tag")
}

// ValueDiskSize returns the aligned on-disk size of one value, header
// included.
func ValueDiskSize(v interface{}) (int, error) {
	_, payload, err := encodeValue(v)
	if err != nil {
		return 0, err
	}
	return valueHeaderSize + pad4(len(payload)), nil
}

// EncodeTuple serializes a row into the on-disk tuple layout.
func EncodeTuple(row sql.Row) ([]byte, error) {
	buf := make([]byte, tupleHeaderSize)
	for _, v := range row {
		tag, payload, err := encodeValue(v)
		if err != nil {
			return nil, err
		}
		if len(payload) > 0xffff {
			return nil, sql.ErrOutOfMemory.New("tuple value exceeds maximum disk size")
		}
		hdr := make([]byte, valueHeaderSize)
		if v == nil {
			hdr[0] = flagUnbound
		} else {
			hdr[0] = flagBound
		}
		hdr[1] = tag
		binary.BigEndian.PutUint16(hdr[2:], uint16(len(payload)))
		buf = append(buf, hdr...)
		buf = append(buf, payload...)
		for i := len(payload); i < pad4(len(payload)); i++ {
			buf = append(buf, 0)
		}
	}
	binary.BigEndian.PutUint32(buf[:tupleHeaderSize], uint32(len(buf)))
	return buf, nil
}

// DecodeTuple deserializes one tuple. The types slice gives the expected
// arity; values keep the domain they were written with.
func DecodeTuple(b []byte, types []sql.Type) (sql.Row, error) {
	if len(b) < tupleHeaderSize {
		return nil, sql.ErrInvariantViolation.New("short tuple")
	}
	row := make(sql.Row, 0, len(types))
	off := tupleHeaderSize
	for off < len(b) {
		if off+valueHeaderSize > len(b) {
			return nil, sql.ErrInvariantViolation.New("truncated tuple value header")
		}
		bound := b[off] == flagBound
		tag := b[off+1]
		size := int(binary.BigEndian.Uint16(b[off+2:]))
		off += valueHeaderSize
		if off+size > len(b) {
			return nil, sql.ErrInvariantViolation.New("truncated tuple value payload")
		}
		if !bound {
			row = append(row, nil)
		} else {
			v, err := decodeValue(tag, b[off:off+size])
			if err != nil {
				return nil, err
			}
			row = append(row, v)
		}
		off += pad4(size)
	}
	if len(types) > 0 && len(row) != len(types) {
		return nil, sql.ErrInvariantViolation.New("tuple arity does not match list file")
	}
	return row, nil
}

type tupleWriter struct {
	w *bufio.Writer
}

func newTupleWriter(w io.Writer) *tupleWriter {
	return &tupleWriter{w: bufio.NewWriter(w)}
}

func (t *tupleWriter) write(row sql.Row) error {
	b, err := EncodeTuple(row)
	if err != nil {
		return err
	}
	_, err = t.w.Write(b)
	return err
}

func (t *tupleWriter) flush() error { return t.w.Flush() }

type tupleReader struct {
	f *os.File
	r *bufio.Reader
}

func openTupleReader(path string) (*tupleReader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	return &tupleReader{f: f, r: bufio.NewReader(f)}, nil
}

func (t *tupleReader) read(types []sql.Type) (sql.Row, error) {
	var hdr [tupleHeaderSize]byte
	if _, err := io.ReadFull(t.r, hdr[:]); err != nil {
		if err == io.ErrUnexpectedEOF {
			return nil, sql.ErrInvariantViolation.New("truncated tuple header")
		}
		return nil, err
	}
	total := int(binary.BigEndian.Uint32(hdr[:]))
	if total < tupleHeaderSize {
		return nil, sql.ErrInvariantViolation.New("bad tuple length")
	}
	buf := make([]byte, total)
	copy(buf, hdr[:])
	if _, err := io.ReadFull(t.r, buf[tupleHeaderSize:]); err != nil {
		return nil, sql.ErrInvariantViolation.New("truncated tuple body")
	}
	return DecodeTuple(buf, types)
}

func (t *tupleReader) close() { t.f.Close() }
