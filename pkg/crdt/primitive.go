package crdt

import (
	"encoding/binary"
	"math"
	"time"

	crdterrors "github.com/S-Corkum/crdt-engine/pkg/errors"
	"github.com/S-Corkum/crdt-engine/pkg/timestamp"
)

// ValueType tags the payload carried by a Primitive (spec §3.2).
type ValueType int

const (
	ValueTypeNull ValueType = iota
	ValueTypeBoolean
	ValueTypeInteger
	ValueTypeLong
	ValueTypeDouble
	ValueTypeString
	ValueTypeBytes
	ValueTypeDate
)

// Primitive is a leaf scalar value: null, bool, int32, int64, float64,
// string, bytes, or a timestamp. Values are also encodable to a fixed
// big-endian byte layout per type (spec §4.2).
type Primitive struct {
	baseElement
	valueType ValueType
	value     any
}

// NewPrimitive constructs a Primitive of the Go-native value v, tagging its
// ValueType by v's dynamic type.
func NewPrimitive(v any, createdAt timestamp.TimeTicket) (*Primitive, error) {
	vt, err := valueTypeOf(v)
	if err != nil {
		return nil, err
	}
	return &Primitive{baseElement: newBaseElement(createdAt), valueType: vt, value: v}, nil
}

func valueTypeOf(v any) (ValueType, error) {
	switch v.(type) {
	case nil:
		return ValueTypeNull, nil
	case bool:
		return ValueTypeBoolean, nil
	case int32:
		return ValueTypeInteger, nil
	case int64:
		return ValueTypeLong, nil
	case float64:
		return ValueTypeDouble, nil
	case string:
		return ValueTypeString, nil
	case []byte:
		return ValueTypeBytes, nil
	case time.Time:
		return ValueTypeDate, nil
	default:
		return 0, crdterrors.New(crdterrors.KindUnsupported, "NewPrimitive", "unsupported primitive value type")
	}
}

// ValueType returns the primitive's type tag.
func (p *Primitive) ValueType() ValueType { return p.valueType }

// Value returns the Go-native value.
func (p *Primitive) Value() any { return p.value }

// DeepCopy returns an independent copy; primitives are immutable values so
// this simply clones the bookkeeping.
func (p *Primitive) DeepCopy() Element {
	clone := *p
	clone.baseElement = p.baseElement.clone()
	return &clone
}

// ToJSON returns the primitive's Go-native value as-is.
func (p *Primitive) ToJSON() any { return p.value }

// DataSize reports a fixed per-type byte length for the value, plus a
// constant per-element metadata overhead, per spec §3.2/§3.3.
func (p *Primitive) DataSize() DataSize {
	data := 0
	switch p.valueType {
	case ValueTypeNull:
		data = 0
	case ValueTypeBoolean:
		data = 1
	case ValueTypeInteger:
		data = 4
	case ValueTypeLong, ValueTypeDouble, ValueTypeDate:
		data = 8
	case ValueTypeString:
		data = len(p.value.(string))
	case ValueTypeBytes:
		data = len(p.value.([]byte))
	}
	size := DataSize{Live: GroupSize{Data: data, Meta: metaSize}}
	if p.IsRemoved() {
		size.GC, size.Live = size.Live, GroupSize{}
	}
	return size
}

// metaSize is the fixed per-element bookkeeping overhead (createdAt +
// movedAt + removedAt tickets) counted toward every element's size.
const metaSize = 24

// Encode renders the primitive to the fixed big-endian byte layout in spec
// §4.2: bool=1B, int32=4B, int64=8B, float64=8B (IEEE-754 bits), string as
// UTF-8 bytes, bytes raw, timestamp as int64 ms since epoch.
func (p *Primitive) Encode() []byte {
	switch p.valueType {
	case ValueTypeNull:
		return nil
	case ValueTypeBoolean:
		if p.value.(bool) {
			return []byte{1}
		}
		return []byte{0}
	case ValueTypeInteger:
		buf := make([]byte, 4)
		binary.BigEndian.PutUint32(buf, uint32(p.value.(int32)))
		return buf
	case ValueTypeLong:
		buf := make([]byte, 8)
		binary.BigEndian.PutUint64(buf, uint64(p.value.(int64)))
		return buf
	case ValueTypeDouble:
		buf := make([]byte, 8)
		binary.BigEndian.PutUint64(buf, math.Float64bits(p.value.(float64)))
		return buf
	case ValueTypeString:
		return []byte(p.value.(string))
	case ValueTypeBytes:
		return p.value.([]byte)
	case ValueTypeDate:
		buf := make([]byte, 8)
		binary.BigEndian.PutUint64(buf, uint64(p.value.(time.Time).UnixMilli()))
		return buf
	default:
		return nil
	}
}

// DecodePrimitive reconstructs a Primitive from its wire ValueType and byte
// payload. An unrecognized type tag is Unimplemented, per spec §4.2.
func DecodePrimitive(vt ValueType, payload []byte, createdAt timestamp.TimeTicket) (*Primitive, error) {
	var value any
	switch vt {
	case ValueTypeNull:
		value = nil
	case ValueTypeBoolean:
		if len(payload) != 1 {
			return nil, crdterrors.New(crdterrors.KindUnexpected, "DecodePrimitive", "malformed bool primitive payload")
		}
		value = payload[0] != 0
	case ValueTypeInteger:
		if len(payload) != 4 {
			return nil, crdterrors.New(crdterrors.KindUnexpected, "DecodePrimitive", "malformed int32 primitive payload")
		}
		value = int32(binary.BigEndian.Uint32(payload))
	case ValueTypeLong:
		if len(payload) != 8 {
			return nil, crdterrors.New(crdterrors.KindUnexpected, "DecodePrimitive", "malformed int64 primitive payload")
		}
		value = int64(binary.BigEndian.Uint64(payload))
	case ValueTypeDouble:
		if len(payload) != 8 {
			return nil, crdterrors.New(crdterrors.KindUnexpected, "DecodePrimitive", "malformed float64 primitive payload")
		}
		value = math.Float64frombits(binary.BigEndian.Uint64(payload))
	case ValueTypeString:
		value = string(payload)
	case ValueTypeBytes:
		value = append([]byte(nil), payload...)
	case ValueTypeDate:
		if len(payload) != 8 {
			return nil, crdterrors.New(crdterrors.KindUnexpected, "DecodePrimitive", "malformed date primitive payload")
		}
		value = time.UnixMilli(int64(binary.BigEndian.Uint64(payload))).UTC()
	default:
		return nil, crdterrors.New(crdterrors.KindUnimplemented, "DecodePrimitive", "unknown primitive type tag")
	}
	return &Primitive{baseElement: newBaseElement(createdAt), valueType: vt, value: value}, nil
}

// IsNumeric reports whether p holds a value usable as a Counter operand.
func (p *Primitive) IsNumeric() bool {
	switch p.valueType {
	case ValueTypeInteger, ValueTypeLong, ValueTypeDouble:
		return true
	default:
		return false
	}
}
