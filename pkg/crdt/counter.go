package crdt

import (
	"math"

	crdterrors "github.com/S-Corkum/crdt-engine/pkg/errors"
	"github.com/S-Corkum/crdt-engine/pkg/timestamp"
)

// Counter is a numeric leaf value that only ever changes by Increase, so
// concurrent increases commute regardless of delivery order (spec §3.2).
type Counter struct {
	baseElement
	valueType ValueType
	value     any
	applied   map[timestamp.TimeTicket]bool
}

// NewCounter constructs a Counter over an int32, int64, or float64 seed
// value. Any other type is Unsupported.
func NewCounter(v any, createdAt timestamp.TimeTicket) (*Counter, error) {
	vt, err := valueTypeOf(v)
	if err != nil {
		return nil, err
	}
	if !isNumericType(vt) {
		return nil, crdterrors.New(crdterrors.KindUnsupported, "NewCounter", "counter value must be numeric")
	}
	return &Counter{
		baseElement: newBaseElement(createdAt),
		valueType:   vt,
		value:       v,
		applied:     make(map[timestamp.TimeTicket]bool),
	}, nil
}

func isNumericType(vt ValueType) bool {
	switch vt {
	case ValueTypeInteger, ValueTypeLong, ValueTypeDouble:
		return true
	default:
		return false
	}
}

// ValueType returns the counter's numeric type tag.
func (c *Counter) ValueType() ValueType { return c.valueType }

// Value returns the current numeric value.
func (c *Counter) Value() any { return c.value }

// Increase applies delta to the counter's value. delta must be a numeric
// Primitive; any other element is Unsupported. Each numeric type saturates
// independently at its own range rather than overflowing (spec §4.7).
func (c *Counter) Increase(delta *Primitive) error {
	if delta == nil || !delta.IsNumeric() {
		return crdterrors.New(crdterrors.KindUnsupported, "Increase", "increase operand must be a numeric primitive")
	}
	if c.applied[delta.CreatedAt()] {
		// Replay of an already-applied Increase: a no-op (spec §4.7, §8
		// property 3), matching RHT.Set's own createdAt-keyed dedupe.
		return nil
	}
	c.applied[delta.CreatedAt()] = true

	switch c.valueType {
	case ValueTypeInteger:
		cur := c.value.(int32)
		d := asInt64(delta)
		c.value = saturateInt32(int64(cur) + d)
	case ValueTypeLong:
		cur := c.value.(int64)
		d := asInt64(delta)
		c.value = saturateInt64Add(cur, d)
	case ValueTypeDouble:
		cur := c.value.(float64)
		c.value = cur + asFloat64(delta)
	default:
		return crdterrors.New(crdterrors.KindUnsupported, "Increase", "counter holds a non-numeric value")
	}
	return nil
}

func asInt64(p *Primitive) int64 {
	switch p.valueType {
	case ValueTypeInteger:
		return int64(p.value.(int32))
	case ValueTypeLong:
		return p.value.(int64)
	case ValueTypeDouble:
		return int64(p.value.(float64))
	default:
		return 0
	}
}

func asFloat64(p *Primitive) float64 {
	switch p.valueType {
	case ValueTypeInteger:
		return float64(p.value.(int32))
	case ValueTypeLong:
		return float64(p.value.(int64))
	case ValueTypeDouble:
		return p.value.(float64)
	default:
		return 0
	}
}

func saturateInt32(v int64) int32 {
	if v > math.MaxInt32 {
		return math.MaxInt32
	}
	if v < math.MinInt32 {
		return math.MinInt32
	}
	return int32(v)
}

// saturateInt64Add adds a and b, clamping to the int64 range on overflow
// rather than wrapping (spec §4.7: "Arithmetic overflow in Increase
// saturates per numeric type").
func saturateInt64Add(a, b int64) int64 {
	sum := a + b
	if (b > 0 && sum < a) || (b < 0 && sum > a) {
		if b > 0 {
			return math.MaxInt64
		}
		return math.MinInt64
	}
	return sum
}

// DeepCopy returns an independent copy of the counter.
func (c *Counter) DeepCopy() Element {
	clone := *c
	clone.baseElement = c.baseElement.clone()
	clone.applied = make(map[timestamp.TimeTicket]bool, len(c.applied))
	for k, v := range c.applied {
		clone.applied[k] = v
	}
	return &clone
}

// ToJSON returns the counter's current numeric value.
func (c *Counter) ToJSON() any { return c.value }

// DataSize reports the counter's byte footprint using the same fixed
// per-type layout as Primitive.
func (c *Counter) DataSize() DataSize {
	data := 8
	if c.valueType == ValueTypeInteger {
		data = 4
	}
	size := DataSize{Live: GroupSize{Data: data, Meta: metaSize}}
	if c.IsRemoved() {
		size.GC, size.Live = size.Live, GroupSize{}
	}
	return size
}
