// Package catalog introspects the live PostgreSQL catalog into an
// immutable SchemaModel via a single composite query.
package catalog

import "github.com/pghatch/pghatch/internal/typeregistry"

// RelationKind enumerates the relkinds the gateway mounts endpoints for.
type RelationKind string

const (
	KindOrdinary        RelationKind = "ordinary"
	KindView            RelationKind = "view"
	KindMaterializeView RelationKind = "materialized_view"
	KindForeign         RelationKind = "foreign"
	KindPartitioned     RelationKind = "partitioned"
	KindPartitionChild  RelationKind = "partition_child"
)

// ConstraintKind enumerates pg_constraint.contype, expanded to words.
type ConstraintKind string

const (
	ConstraintPrimaryKey ConstraintKind = "primary_key"
	ConstraintUnique     ConstraintKind = "unique"
	ConstraintForeignKey ConstraintKind = "foreign_key"
	ConstraintCheck      ConstraintKind = "check"
	ConstraintExclusion  ConstraintKind = "exclusion"
)

// CallableKind enumerates pg_proc.prokind.
type CallableKind string

const (
	CallableFunction  CallableKind = "function"
	CallableProcedure CallableKind = "procedure"
	CallableAggregate CallableKind = "aggregate"
	CallableWindow    CallableKind = "window"
)

// Volatility enumerates pg_proc.provolatile.
type Volatility string

const (
	VolatilityImmutable Volatility = "immutable"
	VolatilityStable    Volatility = "stable"
	VolatilityVolatile  Volatility = "volatile"
)

// ArgMode enumerates pg_proc argument modes.
type ArgMode string

const (
	ArgIn       ArgMode = "in"
	ArgOut      ArgMode = "out"
	ArgInOut    ArgMode = "inout"
	ArgVariadic ArgMode = "variadic"
	ArgTable    ArgMode = "table"
)

// Namespace is one exposed PostgreSQL schema.
type Namespace struct {
	Name  string
	Owner string
	ACL   []string
}

// Attribute is one column of a relation.
type Attribute struct {
	Ordinal    int
	Name       string
	TypeOID    uint32
	NotNull    bool
	HasDefault bool
	Generated  bool
	Identity   bool
}

// Constraint is one table constraint.
type Constraint struct {
	Name       string
	Kind       ConstraintKind
	Ordinals   []int // participating attribute ordinals, this relation
	RefSchema  string
	RefRelName string
	RefOrdinals []int
	Deferrable bool
	Dangling   bool // FK only: referenced relation not present in this snapshot
}

// Relation is one table/view/matview/foreign table/partitioned table.
type Relation struct {
	Namespace   string
	Name        string
	OID         uint32
	Kind        RelationKind
	Comment     string
	Attributes  []Attribute
	Constraints []Constraint
	// Privileges is the set of privileges the connected role holds on
	// this relation (select/insert/update/delete), per has_table_privilege.
	Privileges map[string]bool
}

// QualifiedName returns "namespace.name".
func (r Relation) QualifiedName() string { return r.Namespace + "." + r.Name }

// PrimaryKey returns the relation's primary key constraint, if any.
func (r Relation) PrimaryKey() (Constraint, bool) {
	for _, c := range r.Constraints {
		if c.Kind == ConstraintPrimaryKey {
			return c, true
		}
	}
	return Constraint{}, false
}

// UniqueConstraints returns the relation's unique constraints, ordered
// by definition order.
func (r Relation) UniqueConstraints() []Constraint {
	var out []Constraint
	for _, c := range r.Constraints {
		if c.Kind == ConstraintUnique {
			out = append(out, c)
		}
	}
	return out
}

// AttributeByName looks up an attribute by column name.
func (r Relation) AttributeByName(name string) (Attribute, bool) {
	for _, a := range r.Attributes {
		if a.Name == name {
			return a, true
		}
	}
	return Attribute{}, false
}

// AttributeNames returns the column names indexed by ordinal for the
// given ordinal set, in the order given.
func (r Relation) AttributeNames(ordinals []int) []string {
	byOrdinal := make(map[int]string, len(r.Attributes))
	for _, a := range r.Attributes {
		byOrdinal[a.Ordinal] = a.Name
	}
	out := make([]string, 0, len(ordinals))
	for _, o := range ordinals {
		out = append(out, byOrdinal[o])
	}
	return out
}

// Argument is one parameter or OUT column of a callable.
type Argument struct {
	Name       string
	Mode       ArgMode
	TypeOID    uint32
	HasDefault bool
}

// ReturnShape describes how a callable's result should be dispatched.
type ReturnShape string

const (
	ReturnScalar         ReturnShape = "scalar"
	ReturnComposite      ReturnShape = "composite"
	ReturnSetOfComposite ReturnShape = "set_of_composite"
	ReturnTable          ReturnShape = "table"
	ReturnVoid           ReturnShape = "void"
)

// Callable is one function or procedure.
type Callable struct {
	Namespace       string
	Name            string
	OID             uint32
	Kind            CallableKind
	Arguments       []Argument
	ReturnTypeOID   uint32
	ReturnShape     ReturnShape
	Volatility      Volatility
	Strict          bool
	SecurityDefiner bool
	// Privileges is the set of privileges the connected role holds on
	// this callable (execute), per has_function_privilege.
	Privileges map[string]bool
}

// QualifiedName returns "namespace.name".
func (c Callable) QualifiedName() string { return c.Namespace + "." + c.Name }

// ArgumentByName looks up an argument by name.
func (c Callable) ArgumentByName(name string) (Argument, bool) {
	for _, a := range c.Arguments {
		if a.Name == name {
			return a, true
		}
	}
	return Argument{}, false
}

// SchemaModel is an immutable snapshot of the introspected catalog
// No component may mutate it after publication.
type SchemaModel struct {
	Namespaces []Namespace
	Relations  []Relation
	Callables  []Callable
	Types      []typeregistry.UserType

	// Checksum is a deterministic hash of the snapshot, used by the
	// Router/Watcher to detect no-op rebuilds.
	Checksum string
}

// RelationByQualifiedName looks up a relation by "namespace.name".
func (m *SchemaModel) RelationByQualifiedName(qname string) (Relation, bool) {
	for _, r := range m.Relations {
		if r.QualifiedName() == qname {
			return r, true
		}
	}
	return Relation{}, false
}

// CallableByQualifiedName looks up a callable by "namespace.name".
func (m *SchemaModel) CallableByQualifiedName(qname string) (Callable, bool) {
	for _, c := range m.Callables {
		if c.QualifiedName() == qname {
			return c, true
		}
	}
	return Callable{}, false
}

// MountableRelations returns relations the gateway mounts an endpoint
// for: every kind except partition children, whose rows are already
// reachable transparently through the partitioned parent (open
// question, decided in SPEC_FULL.md), and only those the connected
// role can at least select from. A relation with no select privilege
// stays invisible rather than mounted read-only-never.
func (m *SchemaModel) MountableRelations() []Relation {
	out := make([]Relation, 0, len(m.Relations))
	for _, r := range m.Relations {
		if r.Kind != KindPartitionChild && r.Privileges["select"] {
			out = append(out, r)
		}
	}
	return out
}
