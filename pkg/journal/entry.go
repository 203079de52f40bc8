package journal

import (
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"time"

	"github.com/nainya/timegraph/pkg/changefeed"
	"github.com/nainya/timegraph/pkg/rdf"
	"github.com/nainya/timegraph/pkg/temporal"
)

// OpType is the kind of change an entry records
type OpType byte

const (
	// OpInsert records an insertion
	OpInsert OpType = 1

	// OpRemove records a removal
	OpRemove OpType = 2
)

const (
	// EntryHeaderSize is the fixed size of the entry header
	// Layout: LSN(8) + OpType(1) + Addressing(1) + Reserved(6) + SpanLen(4) + FactLen(4) + Timestamp(8)
	EntryHeaderSize = 32

	// maxFieldLen bounds a single span or fact; larger lengths mean a damaged header
	maxFieldLen = 1 << 20
)

// Entry is one journaled change event
type Entry struct {
	LSN        uint64
	OpType     OpType
	Addressing changefeed.Addressing
	Span       string // canonical span text, empty for the base graph
	Fact       string // N-Triples line, or N-Quads for quad-addressed removals
	Timestamp  time.Time
}

// NewEntry records ev. The LSN is assigned by the journal.
func NewEntry(ev changefeed.Event) (Entry, error) {
	if err := ev.Validate(); err != nil {
		return Entry{}, err
	}
	e := Entry{Timestamp: time.Now()}

	switch ev := ev.(type) {
	case changefeed.Insertion:
		e.OpType = OpInsert
		e.Addressing = changefeed.AddressBase
		if ev.GraphSpan != nil {
			e.Addressing = changefeed.AddressSpan
			e.Span = ev.GraphSpan.String()
		}
		e.Fact = ev.Fact.String()
	case changefeed.Removal:
		e.OpType = OpRemove
		e.Addressing = ev.Addressing()
		switch e.Addressing {
		case changefeed.AddressQuad:
			e.Fact = ev.Quad.String()
		case changefeed.AddressSpan:
			e.Span = ev.GraphSpan.String()
			e.Fact = ev.Fact.String()
		default:
			e.Fact = ev.Fact.String()
		}
	default:
		return Entry{}, fmt.Errorf("%w: unsupported event %T", ErrInvalidEntry, ev)
	}
	return e, nil
}

// Event rebuilds the change event the entry records
func (e *Entry) Event() (changefeed.Event, error) {
	q, ok, err := rdf.ParseLine(e.Fact)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidEntry, err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: empty fact", ErrInvalidEntry)
	}

	var span *temporal.Span
	if e.Addressing == changefeed.AddressSpan {
		sp, err := temporal.ParseSpan(e.Span)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidEntry, err)
		}
		span = &sp
	}

	switch e.OpType {
	case OpInsert:
		return changefeed.Insertion{GraphSpan: span, Fact: q.Triple}, nil
	case OpRemove:
		switch e.Addressing {
		case changefeed.AddressQuad:
			return changefeed.NewQuadRemoval(q), nil
		case changefeed.AddressSpan:
			return changefeed.NewSpanRemoval(*span, q.Triple), nil
		default:
			return changefeed.NewBaseRemoval(q.Triple), nil
		}
	}
	return nil, fmt.Errorf("%w: op %d", ErrInvalidEntry, e.OpType)
}

// Encode serializes the entry to bytes with CRC32 checksum
// Format: [Header(32)] [Span] [Fact] [CRC32(4)]
func (e *Entry) Encode() []byte {
	spanLen := len(e.Span)
	factLen := len(e.Fact)
	buf := make([]byte, e.Size())

	binary.LittleEndian.PutUint64(buf[0:8], e.LSN)
	buf[8] = byte(e.OpType)
	buf[9] = byte(e.Addressing)
	// bytes 10-15 are reserved
	binary.LittleEndian.PutUint32(buf[16:20], uint32(spanLen))
	binary.LittleEndian.PutUint32(buf[20:24], uint32(factLen))
	binary.LittleEndian.PutUint64(buf[24:32], uint64(e.Timestamp.UnixNano()))

	offset := EntryHeaderSize
	copy(buf[offset:], e.Span)
	offset += spanLen
	copy(buf[offset:], e.Fact)
	offset += factLen

	crc := crc32.ChecksumIEEE(buf[:offset])
	binary.LittleEndian.PutUint32(buf[offset:offset+4], crc)
	return buf
}

// bodyLen returns the span+fact+crc length announced by a header
func bodyLen(header []byte) (int, error) {
	spanLen := binary.LittleEndian.Uint32(header[16:20])
	factLen := binary.LittleEndian.Uint32(header[20:24])
	if spanLen > maxFieldLen || factLen > maxFieldLen {
		return 0, ErrCorrupted
	}
	return int(spanLen) + int(factLen) + 4, nil
}

// DecodeEntry deserializes an entry from bytes
func DecodeEntry(data []byte) (*Entry, error) {
	if len(data) < EntryHeaderSize+4 {
		return nil, ErrTruncated
	}

	n, err := bodyLen(data)
	if err != nil {
		return nil, err
	}
	if len(data) < EntryHeaderSize+n {
		return nil, ErrTruncated
	}
	data = data[:EntryHeaderSize+n]

	stored := binary.LittleEndian.Uint32(data[len(data)-4:])
	if stored != crc32.ChecksumIEEE(data[:len(data)-4]) {
		return nil, ErrCorrupted
	}

	spanLen := int(binary.LittleEndian.Uint32(data[16:20]))
	factLen := int(binary.LittleEndian.Uint32(data[20:24]))
	offset := EntryHeaderSize
	return &Entry{
		LSN:        binary.LittleEndian.Uint64(data[0:8]),
		OpType:     OpType(data[8]),
		Addressing: changefeed.Addressing(data[9]),
		Span:       string(data[offset : offset+spanLen]),
		Fact:       string(data[offset+spanLen : offset+spanLen+factLen]),
		Timestamp:  time.Unix(0, int64(binary.LittleEndian.Uint64(data[24:32]))),
	}, nil
}

// Size returns the encoded size of the entry
func (e *Entry) Size() int {
	return EntryHeaderSize + len(e.Span) + len(e.Fact) + 4
}

// String returns a human-readable representation of the entry
func (e *Entry) String() string {
	op := "UNKNOWN"
	switch e.OpType {
	case OpInsert:
		op = "INSERT"
	case OpRemove:
		op = "REMOVE"
	}
	target := e.Addressing.String()
	if e.Span != "" {
		target += " " + e.Span
	}
	return fmt.Sprintf("JOURNAL[LSN=%d Op=%s Target=%s] %s", e.LSN, op, target, e.Fact)
}
