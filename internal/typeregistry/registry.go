// Package typeregistry maps PostgreSQL type OIDs to semantic type
// descriptors, built on pgx's codec map and extended per-snapshot with
// user-defined enums, domains and composites discovered by the catalog
// introspector. The compiler consults it to validate operators against
// a column's category (e.g. LIKE only against text-like fields); actual
// row decoding still goes through pgx's own RowToMap.
package typeregistry

import (
	"fmt"

	"github.com/jackc/pgx/v5/pgtype"
)

// Category is the semantic shape of a type, independent of its OID.
type Category string

const (
	Boolean   Category = "boolean"
	Integer   Category = "integer"
	Floating  Category = "floating"
	Numeric   Category = "numeric"
	Text      Category = "text"
	Bytea     Category = "bytea"
	Timestamp Category = "timestamp"
	Date      Category = "date"
	Time      Category = "time"
	Interval  Category = "interval"
	UUID      Category = "uuid"
	JSON      Category = "json"
	JSONB     Category = "jsonb"
	Array     Category = "array"
	Enum      Category = "enum"
	Composite Category = "composite"
	Domain    Category = "domain"
	Range     Category = "range"
	Unknown   Category = "unknown"
)

// Descriptor is the total, serializable description of one PG type.
type Descriptor struct {
	OID      uint32
	Name     string
	Category Category

	// Width is the bit width for Integer, precision for Numeric.
	Width int
	Scale int

	TZ bool // Timestamp/Time carries a timezone

	Element *Descriptor // Array: element type
	Base    *Descriptor // Domain: base type
	Fields  []Field     // Composite: ordered fields
	Labels  []string    // Enum: ordered labels
}

// Field is one attribute of a composite type.
type Field struct {
	Name string
	Type *Descriptor
}

// Registry is rebuilt from each SchemaModel so enum labels, domain
// bases and composite fields are always current for the published
// snapshot.
type Registry struct {
	m           *pgtype.Map
	descriptors map[uint32]*Descriptor
}

// New builds a Registry seeded with pgx's built-in OID map, then layers
// in the user-defined types discovered by the introspector.
func New(userTypes []UserType) *Registry {
	r := &Registry{
		m:           pgtype.NewMap(),
		descriptors: make(map[uint32]*Descriptor),
	}
	for _, t := range userTypes {
		r.register(t)
	}
	return r
}

// UserType is the subset of a catalog type row the registry needs to
// register a domain/enum/composite that pgx doesn't know about natively.
type UserType struct {
	OID        uint32
	Name       string
	Kind       string // "enum" | "domain" | "composite" | "base" | "array" | "range"
	ElementOID uint32 // array/range element, or domain base
	EnumLabels []string
	Fields     []UserField
}

type UserField struct {
	Name string
	OID  uint32
}

func (r *Registry) register(t UserType) {
	switch t.Kind {
	case "enum":
		r.descriptors[t.OID] = &Descriptor{OID: t.OID, Name: t.Name, Category: Enum, Labels: t.EnumLabels}
		r.m.RegisterType(&pgtype.Type{Name: t.Name, OID: t.OID, Codec: &pgtype.TextCodec{}})
	case "domain":
		base := r.describeOID(t.ElementOID)
		r.descriptors[t.OID] = &Descriptor{OID: t.OID, Name: t.Name, Category: Domain, Base: base}
		if dt, ok := r.m.TypeForOID(t.ElementOID); ok {
			r.m.RegisterType(&pgtype.Type{Name: t.Name, OID: t.OID, Codec: dt.Codec})
		}
	case "composite":
		fields := make([]Field, 0, len(t.Fields))
		for _, f := range t.Fields {
			fields = append(fields, Field{Name: f.Name, Type: r.describeOID(f.OID)})
		}
		r.descriptors[t.OID] = &Descriptor{OID: t.OID, Name: t.Name, Category: Composite, Fields: fields}
	case "array":
		elem := r.describeOID(t.ElementOID)
		r.descriptors[t.OID] = &Descriptor{OID: t.OID, Name: t.Name, Category: Array, Element: elem}
	default:
		// Built-in types keep the category pgx's map gives them; only
		// types pgx does not know are recorded, as Unknown with their name.
		if _, known := r.m.TypeForOID(t.OID); known {
			return
		}
		r.descriptors[t.OID] = &Descriptor{OID: t.OID, Name: t.Name, Category: Unknown}
	}
}

// describeOID is an internal helper that never recurses into the
// not-yet-registered set; it falls through to Describe, which is total.
func (r *Registry) describeOID(oid uint32) *Descriptor {
	d := r.Describe(oid)
	return &d
}

// Describe is a total function: unknown OIDs produce an Unknown
// descriptor carrying the raw pgx type name when available.
func (r *Registry) Describe(oid uint32) Descriptor {
	if d, ok := r.descriptors[oid]; ok {
		return *d
	}
	pt, ok := r.m.TypeForOID(oid)
	if !ok {
		return Descriptor{OID: oid, Category: Unknown, Name: fmt.Sprintf("oid:%d", oid)}
	}
	return Descriptor{OID: oid, Name: pt.Name, Category: categoryFor(pt.Name)}
}

func categoryFor(name string) Category {
	switch name {
	case "bool":
		return Boolean
	case "int2", "int4", "int8":
		return Integer
	case "float4", "float8":
		return Floating
	case "numeric":
		return Numeric
	case "text", "varchar", "bpchar", "name":
		return Text
	case "bytea":
		return Bytea
	case "timestamp", "timestamptz":
		return Timestamp
	case "date":
		return Date
	case "time", "timetz":
		return Time
	case "interval":
		return Interval
	case "uuid":
		return UUID
	case "json":
		return JSON
	case "jsonb":
		return JSONB
	default:
		if len(name) > 1 && name[0] == '_' {
			return Array
		}
		return Unknown
	}
}
