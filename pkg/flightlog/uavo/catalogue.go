// Package uavo describes the device object types that appear in flight logs
// and in the settings mirror: their ids, names and packed field layouts.
package uavo

import (
	"errors"
	"fmt"
	"strings"
)

// Catalogue errors.
var (
	// ErrDuplicateType is returned when an id or name is registered twice.
	ErrDuplicateType = errors.New("duplicate object type")

	// ErrInvalidType is returned for object types that cannot be registered.
	ErrInvalidType = errors.New("invalid object type")

	// ErrUnknownFieldType is returned when a field type name is not recognized.
	ErrUnknownFieldType = errors.New("unknown field type")
)

// FieldType is the wire type of a single field element.
type FieldType uint8

// Supported field types.
const (
	Int8 FieldType = iota
	Int16
	Int32
	Uint8
	Uint16
	Uint32
	Float32
	Enum
)

var fieldTypeNames = [...]string{
	Int8:    "int8",
	Int16:   "int16",
	Int32:   "int32",
	Uint8:   "uint8",
	Uint16:  "uint16",
	Uint32:  "uint32",
	Float32: "float32",
	Enum:    "enum",
}

// String returns the lowercase type name.
func (t FieldType) String() string {
	if int(t) < len(fieldTypeNames) {
		return fieldTypeNames[t]
	}
	return fmt.Sprintf("FieldType(%d)", t)
}

// Size returns the packed size of one element in bytes.
func (t FieldType) Size() int {
	switch t {
	case Int8, Uint8, Enum:
		return 1
	case Int16, Uint16:
		return 2
	case Int32, Uint32, Float32:
		return 4
	default:
		return 0
	}
}

// ParseFieldType converts a type name to a FieldType.
func ParseFieldType(s string) (FieldType, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for i, n := range fieldTypeNames {
		if n == name {
			return FieldType(i), nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownFieldType, s)
}

// Field is one named field of an object. Fields with more than one element
// are packed as consecutive elements of the same type.
type Field struct {
	Name     string    `yaml:"name"`
	Type     FieldType `yaml:"type"`
	Elements int       `yaml:"elements,omitempty"`
	Options  []string  `yaml:"options,omitempty"`
	Units    string    `yaml:"units,omitempty"`
}

// Count returns the number of elements, treating zero as one.
func (f *Field) Count() int {
	if f.Elements < 1 {
		return 1
	}
	return f.Elements
}

// Size returns the packed size of the field in bytes.
func (f *Field) Size() int {
	return f.Type.Size() * f.Count()
}

// ObjectType describes one device object.
type ObjectType struct {
	ID       uint32  `yaml:"id"`
	Name     string  `yaml:"name"`
	Loggable bool    `yaml:"loggable"`
	Fields   []Field `yaml:"fields"`
}

// Size returns the packed payload size of the object.
func (o *ObjectType) Size() int {
	n := 0
	for i := range o.Fields {
		n += o.Fields[i].Size()
	}
	return n
}

// MetaID returns the id of the metadata object paired with this type.
func (o *ObjectType) MetaID() uint32 {
	return o.ID + 1
}

// Catalogue is an ordered registry of object types. It is not safe for
// concurrent mutation; build it once and share it read-only.
type Catalogue struct {
	types  []*ObjectType
	byID   map[uint32]*ObjectType
	byName map[string]*ObjectType
}

// NewCatalogue creates a catalogue holding the given types in order.
func NewCatalogue(types ...*ObjectType) (*Catalogue, error) {
	c := &Catalogue{
		byID:   make(map[uint32]*ObjectType),
		byName: make(map[string]*ObjectType),
	}
	for _, t := range types {
		if err := c.Register(t); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// Register appends a type to the catalogue.
func (c *Catalogue) Register(t *ObjectType) error {
	if t == nil || t.Name == "" {
		return fmt.Errorf("%w: missing name", ErrInvalidType)
	}
	for i := range t.Fields {
		f := &t.Fields[i]
		if f.Name == "" {
			return fmt.Errorf("%w: %s has an unnamed field", ErrInvalidType, t.Name)
		}
		if f.Type.Size() == 0 {
			return fmt.Errorf("%w: %s.%s", ErrUnknownFieldType, t.Name, f.Name)
		}
	}
	if _, ok := c.byID[t.ID]; ok {
		return fmt.Errorf("%w: id 0x%08X", ErrDuplicateType, t.ID)
	}
	if _, ok := c.byID[t.MetaID()]; ok {
		return fmt.Errorf("%w: metadata id 0x%08X of %s", ErrDuplicateType, t.MetaID(), t.Name)
	}
	if _, ok := c.byName[t.Name]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateType, t.Name)
	}
	c.types = append(c.types, t)
	c.byID[t.ID] = t
	c.byName[t.Name] = t
	return nil
}

// Lookup finds a type by id.
func (c *Catalogue) Lookup(id uint32) (*ObjectType, bool) {
	t, ok := c.byID[id]
	return t, ok
}

// ByName finds a type by name.
func (c *Catalogue) ByName(name string) (*ObjectType, bool) {
	t, ok := c.byName[name]
	return t, ok
}

// MetaOwner returns the type whose metadata object has the given id.
func (c *Catalogue) MetaOwner(id uint32) (*ObjectType, bool) {
	if id == 0 {
		return nil, false
	}
	t, ok := c.byID[id-1]
	return t, ok
}

// Types returns every registered type in registration order.
func (c *Catalogue) Types() []*ObjectType {
	out := make([]*ObjectType, len(c.types))
	copy(out, c.types)
	return out
}

// Loggable returns the types that can be written to the flight log, in
// registration order.
func (c *Catalogue) Loggable() []*ObjectType {
	var out []*ObjectType
	for _, t := range c.types {
		if t.Loggable {
			out = append(out, t)
		}
	}
	return out
}

// Len returns the number of registered types.
func (c *Catalogue) Len() int {
	return len(c.types)
}
