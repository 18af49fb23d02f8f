package catalog

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"regexp"
	"sort"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pghatch/pghatch/internal/typeregistry"
)

// IntrospectionErrorKind enumerates the introspector's failure modes.
type IntrospectionErrorKind string

const (
	ErrConnectionLost IntrospectionErrorKind = "connection_lost"
	ErrQueryFailed    IntrospectionErrorKind = "query_failed"
	ErrDecodeFailed   IntrospectionErrorKind = "decode_failed"
)

// IntrospectionError carries the failure kind and a short context string.
type IntrospectionError struct {
	Kind    IntrospectionErrorKind
	Context string
	Cause   error
}

func (e *IntrospectionError) Error() string {
	return fmt.Sprintf("introspection %s: %s: %v", e.Kind, e.Context, e.Cause)
}

func (e *IntrospectionError) Unwrap() error { return e.Cause }

// Options configures which namespaces/objects the Introspector exposes.
type Options struct {
	// Namespaces to include. Defaults to {"public"}.
	Namespaces []string
	// ExcludedObjects is a list of regexes matched against bare object
	// names (relations and callables); matches are dropped from the
	// returned model.
	ExcludedObjects []string
}

// Introspector runs the single composite catalog query.
type Introspector struct {
	pool    *pgxpool.Pool
	opts    Options
	exclude []*regexp.Regexp
}

func New(pool *pgxpool.Pool, opts Options) (*Introspector, error) {
	if len(opts.Namespaces) == 0 {
		opts.Namespaces = []string{"public"}
	}
	var exclude []*regexp.Regexp
	for _, pat := range opts.ExcludedObjects {
		re, err := regexp.Compile(pat)
		if err != nil {
			return nil, fmt.Errorf("compile exclusion pattern %q: %w", pat, err)
		}
		exclude = append(exclude, re)
	}
	return &Introspector{pool: pool, opts: opts, exclude: exclude}, nil
}

// Introspect runs the catalog query inside one repeatable-read
// transaction so the returned model reflects a single catalog instant
// and returns an all-or-nothing SchemaModel.
func (in *Introspector) Introspect(ctx context.Context) (*SchemaModel, error) {
	conn, err := in.pool.Acquire(ctx)
	if err != nil {
		return nil, &IntrospectionError{Kind: ErrConnectionLost, Context: "acquire connection", Cause: err}
	}
	defer conn.Release()

	tx, err := conn.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead, AccessMode: pgx.ReadOnly})
	if err != nil {
		return nil, &IntrospectionError{Kind: ErrConnectionLost, Context: "begin transaction", Cause: err}
	}
	defer tx.Rollback(ctx)

	var raw []byte
	if err := tx.QueryRow(ctx, introspectionQuery, in.opts.Namespaces).Scan(&raw); err != nil {
		return nil, &IntrospectionError{Kind: ErrQueryFailed, Context: "catalog query", Cause: err}
	}

	var doc document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, &IntrospectionError{Kind: ErrDecodeFailed, Context: "decode catalog document", Cause: err}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, &IntrospectionError{Kind: ErrConnectionLost, Context: "commit transaction", Cause: err}
	}

	model, err := in.build(doc)
	if err != nil {
		return nil, &IntrospectionError{Kind: ErrDecodeFailed, Context: "build schema model", Cause: err}
	}
	return model, nil
}

// --- wire shape of the jsonb document produced by introspectionQuery ---

type document struct {
	Namespaces []docNamespace `json:"namespaces"`
	Relations  []docRelation  `json:"relations"`
	Callables  []docCallable  `json:"callables"`
	Types      []docType      `json:"types"`
}

type docNamespace struct {
	Name  string   `json:"name"`
	Owner string   `json:"owner"`
	ACL   []string `json:"acl"`
}

type docAttribute struct {
	Ordinal    int    `json:"ordinal"`
	Name       string `json:"name"`
	TypeOID    uint32 `json:"type_oid"`
	NotNull    bool   `json:"not_null"`
	HasDefault bool   `json:"has_default"`
	Generated  bool   `json:"generated"`
	Identity   bool   `json:"identity"`
}

type docConstraint struct {
	Name       string `json:"name"`
	Type       string `json:"type"` // p, u, f, c, x
	Deferrable bool   `json:"deferrable"`
	Keys       []int  `json:"keys"`
	RefRelID   uint32 `json:"ref_relid"`
	RefKeys    []int  `json:"ref_keys"`
}

type docRelation struct {
	OID         uint32          `json:"oid"`
	Namespace   string          `json:"namespace"`
	Name        string          `json:"name"`
	Kind        string          `json:"kind"` // r,v,m,f,p
	IsPartition bool            `json:"is_partition"`
	Comment     string          `json:"comment"`
	Privileges  map[string]bool `json:"privileges"`
	Attributes  []docAttribute  `json:"attributes"`
	Constraints []docConstraint `json:"constraints"`
}

type docCallable struct {
	OID            uint32   `json:"oid"`
	Namespace      string   `json:"namespace"`
	Name           string   `json:"name"`
	Kind           string   `json:"kind"` // f,p,a,w
	Volatility     string   `json:"volatility"`
	Strict         bool     `json:"strict"`
	SecurityDef    bool     `json:"security_definer"`
	ReturnTypeOID  uint32   `json:"return_type_oid"`
	ReturnsSet     bool     `json:"returns_set"`
	ArgNames       []string `json:"arg_names"`
	ArgModes       []string `json:"arg_modes"`
	AllArgTypes    []uint32 `json:"all_arg_types"`
	ArgTypes       []uint32 `json:"arg_types"`
	NumDefaultArgs int      `json:"num_default_args"`
	Privileges     map[string]bool `json:"privileges"`
}

type docField struct {
	Name    string `json:"name"`
	TypeOID uint32 `json:"type_oid"`
}

type docType struct {
	OID             uint32     `json:"oid"`
	Name            string     `json:"name"`
	Kind            string     `json:"kind"` // b,e,d,c,r
	ElemOID         uint32     `json:"elem_oid"`
	BaseOID         uint32     `json:"base_oid"`
	RelOID          uint32     `json:"rel_oid"`
	EnumLabels      []string   `json:"enum_labels"`
	CompositeFields []docField `json:"composite_fields"`
}

func (in *Introspector) excluded(name string) bool {
	for _, re := range in.exclude {
		if re.MatchString(name) {
			return true
		}
	}
	return false
}

func relKind(k string, isPartition bool) RelationKind {
	switch k {
	case "v":
		return KindView
	case "m":
		return KindMaterializeView
	case "f":
		return KindForeign
	case "p":
		return KindPartitioned
	case "r":
		if isPartition {
			return KindPartitionChild
		}
		return KindOrdinary
	default:
		return KindOrdinary
	}
}

func constraintKind(t string) (ConstraintKind, bool) {
	switch t {
	case "p":
		return ConstraintPrimaryKey, true
	case "u":
		return ConstraintUnique, true
	case "f":
		return ConstraintForeignKey, true
	case "c":
		return ConstraintCheck, true
	case "x":
		return ConstraintExclusion, true
	default:
		return "", false
	}
}

func callableKind(k string) CallableKind {
	switch k {
	case "p":
		return CallableProcedure
	case "a":
		return CallableAggregate
	case "w":
		return CallableWindow
	default:
		return CallableFunction
	}
}

func argMode(m string) ArgMode {
	switch m {
	case "o":
		return ArgOut
	case "b":
		return ArgInOut
	case "v":
		return ArgVariadic
	case "t":
		return ArgTable
	default:
		return ArgIn
	}
}

// build converts the wire document into the public SchemaModel,
// resolving FK targets within the snapshot and computing
// a deterministic checksum over the sorted output.
func (in *Introspector) build(doc document) (*SchemaModel, error) {
	relByOID := make(map[uint32]docRelation, len(doc.Relations))
	for _, r := range doc.Relations {
		relByOID[r.OID] = r
	}

	model := &SchemaModel{}

	for _, n := range doc.Namespaces {
		model.Namespaces = append(model.Namespaces, Namespace{Name: n.Name, Owner: n.Owner, ACL: n.ACL})
	}

	for _, r := range doc.Relations {
		if in.excluded(r.Name) {
			continue
		}
		rel := Relation{
			Namespace:  r.Namespace,
			Name:       r.Name,
			OID:        r.OID,
			Kind:       relKind(r.Kind, r.IsPartition),
			Comment:    r.Comment,
			Privileges: truthySet(r.Privileges),
		}
		for _, a := range r.Attributes {
			rel.Attributes = append(rel.Attributes, Attribute{
				Ordinal:    a.Ordinal,
				Name:       a.Name,
				TypeOID:    a.TypeOID,
				NotNull:    a.NotNull,
				HasDefault: a.HasDefault,
				Generated:  a.Generated,
				Identity:   a.Identity,
			})
		}
		for _, c := range r.Constraints {
			kind, ok := constraintKind(c.Type)
			if !ok {
				continue
			}
			con := Constraint{
				Name:       c.Name,
				Kind:       kind,
				Ordinals:   c.Keys,
				Deferrable: c.Deferrable,
			}
			if kind == ConstraintForeignKey {
				if refRel, ok := relByOID[c.RefRelID]; ok && !in.excluded(refRel.Name) {
					con.RefSchema = refRel.Namespace
					con.RefRelName = refRel.Name
					con.RefOrdinals = c.RefKeys
				} else {
					con.Dangling = true
				}
			}
			rel.Constraints = append(rel.Constraints, con)
		}
		sort.Slice(rel.Attributes, func(i, j int) bool { return rel.Attributes[i].Ordinal < rel.Attributes[j].Ordinal })
		model.Relations = append(model.Relations, rel)
	}
	sort.Slice(model.Relations, func(i, j int) bool {
		if model.Relations[i].Namespace != model.Relations[j].Namespace {
			return model.Relations[i].Namespace < model.Relations[j].Namespace
		}
		return model.Relations[i].Name < model.Relations[j].Name
	})

	compositeTypes := make(map[uint32]bool)
	for _, t := range doc.Types {
		if t.Kind == "c" {
			compositeTypes[t.OID] = true
		}
	}

	for _, p := range doc.Callables {
		if in.excluded(p.Name) {
			continue
		}
		call := Callable{
			Namespace:       p.Namespace,
			Name:            p.Name,
			OID:             p.OID,
			Kind:            callableKind(p.Kind),
			ReturnTypeOID:   p.ReturnTypeOID,
			Volatility:      volatilityOf(p.Volatility),
			Strict:          p.Strict,
			SecurityDefiner: p.SecurityDef,
			Privileges:      truthySet(p.Privileges),
		}
		call.Arguments = buildArguments(p)
		call.ReturnShape = returnShapeOf(p, call.Arguments, compositeTypes)
		model.Callables = append(model.Callables, call)
	}
	sort.Slice(model.Callables, func(i, j int) bool {
		if model.Callables[i].Namespace != model.Callables[j].Namespace {
			return model.Callables[i].Namespace < model.Callables[j].Namespace
		}
		return model.Callables[i].Name < model.Callables[j].Name
	})

	for _, t := range doc.Types {
		ut := typeregistry.UserType{OID: t.OID, Name: t.Name, ElementOID: t.ElemOID}
		switch t.Kind {
		case "e":
			ut.Kind = "enum"
			ut.EnumLabels = t.EnumLabels
		case "d":
			ut.Kind = "domain"
			ut.ElementOID = t.BaseOID
		case "c":
			ut.Kind = "composite"
			for _, f := range t.CompositeFields {
				ut.Fields = append(ut.Fields, typeregistry.UserField{Name: f.Name, OID: f.TypeOID})
			}
		default:
			ut.Kind = "base"
		}
		model.Types = append(model.Types, ut)
	}

	sum := sha256.Sum256(mustJSON(model))
	model.Checksum = hex.EncodeToString(sum[:])
	return model, nil
}

func buildArguments(p docCallable) []Argument {
	types := p.AllArgTypes
	if len(types) == 0 {
		types = p.ArgTypes
	}
	args := make([]Argument, 0, len(types))
	for i, oid := range types {
		var name string
		if i < len(p.ArgNames) {
			name = p.ArgNames[i]
		}
		mode := ArgIn
		if i < len(p.ArgModes) {
			mode = argMode(p.ArgModes[i])
		}
		hasDefault := i >= len(types)-p.NumDefaultArgs && p.NumDefaultArgs > 0
		args = append(args, Argument{Name: name, Mode: mode, TypeOID: oid, HasDefault: hasDefault})
	}
	return args
}

func returnShapeOf(p docCallable, args []Argument, compositeTypes map[uint32]bool) ReturnShape {
	if p.Kind == "p" && p.ReturnTypeOID == 0 {
		return ReturnVoid
	}
	outCount := 0
	for _, a := range args {
		if a.Mode == ArgOut || a.Mode == ArgInOut || a.Mode == ArgTable {
			outCount++
		}
	}
	switch {
	case outCount > 1:
		return ReturnTable
	case p.ReturnsSet:
		return ReturnSetOfComposite
	case compositeTypes[p.ReturnTypeOID]:
		return ReturnComposite
	default:
		return ReturnScalar
	}
}

func volatilityOf(v string) Volatility {
	switch v {
	case "i":
		return VolatilityImmutable
	case "s":
		return VolatilityStable
	default:
		return VolatilityVolatile
	}
}

// truthySet drops the false entries from a privilege-check map, so
// downstream code can test membership with a plain map lookup.
func truthySet(m map[string]bool) map[string]bool {
	out := make(map[string]bool, len(m))
	for name, ok := range m {
		if ok {
			out[name] = true
		}
	}
	return out
}

func mustJSON(v any) []byte {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return b
}
