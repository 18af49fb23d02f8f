// Package compiler translates a FilterDocument and a target relation
// into a parameterized SQL statement, and compiles
// insert/update/delete/call operations under the same safety rules:
// every literal is a numbered placeholder, every identifier is quoted
// via pgx.Identifier.Sanitize, nothing from the input is concatenated
// into SQL text.
package compiler

import "encoding/json"

// Operator is one of the comparison operators FilterDocument allows.
type Operator string

const (
	OpEq        Operator = "eq"
	OpNeq       Operator = "neq"
	OpGt        Operator = "gt"
	OpGte       Operator = "gte"
	OpLt        Operator = "lt"
	OpLte       Operator = "lte"
	OpLike      Operator = "like"
	OpILike     Operator = "ilike"
	OpIn        Operator = "in"
	OpNotIn     Operator = "not_in"
	OpIsNull    Operator = "is_null"
	OpIsNotNull Operator = "is_not_null"
)

// sqlOperators maps an Operator to its rendered SQL infix (or special
// handling for the unary/array ones, done in the builder directly).
var sqlOperators = map[Operator]string{
	OpEq: "=", OpNeq: "<>", OpGt: ">", OpGte: ">=", OpLt: "<", OpLte: "<=",
	OpLike: "LIKE", OpILike: "ILIKE",
}

// textOperators require a text-like attribute category.
var textOperators = map[Operator]bool{OpLike: true, OpILike: true}

// arrayOperators require the value to be a JSON array literal.
var arrayOperators = map[Operator]bool{OpIn: true, OpNotIn: true}

// nullaryOperators take no value.
var nullaryOperators = map[Operator]bool{OpIsNull: true, OpIsNotNull: true}

// SelectClause names which fields (and, recursively, which related
// relations) to return. A nil Fields list means "all declared columns".
type SelectClause struct {
	Fields  []string                `json:"fields,omitempty"`
	Nested  map[string]*SelectClause `json:"-"`
}

// UnmarshalJSON decodes the "fields" key plus any other key as a
// nested relation alias -> SelectClause.
func (s *SelectClause) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	s.Nested = map[string]*SelectClause{}
	for k, v := range raw {
		if k == "fields" {
			if err := json.Unmarshal(v, &s.Fields); err != nil {
				return err
			}
			continue
		}
		nested := &SelectClause{}
		if err := json.Unmarshal(v, nested); err != nil {
			return err
		}
		s.Nested[k] = nested
	}
	return nil
}

// WhereClause is either a Comparison or a Logical node.
type WhereClause struct {
	Type       string         `json:"type"` // "comparison" | "logical"
	Field      string         `json:"field,omitempty"`
	Operator   Operator       `json:"operator,omitempty"`
	Value      any            `json:"value,omitempty"`
	Conditions []*WhereClause `json:"conditions,omitempty"`
}

// IsLogical reports whether w is a logical (and/or/not) node.
func (w *WhereClause) IsLogical() bool { return w != nil && w.Type == "logical" }

// Pagination requests a page of results, optionally via an opaque cursor.
type Pagination struct {
	Limit  *int    `json:"limit,omitempty"`
	Offset int     `json:"offset,omitempty"`
	Cursor *string `json:"cursor,omitempty"`
}

// FilterDocument is the declarative query shape accepted by list endpoints.
type FilterDocument struct {
	Select     *SelectClause `json:"select,omitempty"`
	Where      *WhereClause  `json:"where,omitempty"`
	Pagination *Pagination   `json:"pagination,omitempty"`
}
