package compiler

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/pghatch/pghatch/internal/catalog"
	"github.com/pghatch/pghatch/internal/errs"
)

// PrimaryKeyRequest identifies one row by an exact match against the
// primary key or one unique constraint's column set.
type PrimaryKeyRequest struct {
	Values map[string]any `json:"values"`
}

// UpdateRequest is the inbound body for a relation POST update: Key
// identifies the row, Data holds the columns to set.
type UpdateRequest struct {
	Key  PrimaryKeyRequest `json:"key"`
	Data map[string]any    `json:"data"`
}

// CreateRequest is the inbound body for a relation PUT: Data is either
// a single row object or a batch of rows.
type CreateRequest struct {
	Data []map[string]any `json:"data"`
}

// UnmarshalJSON accepts Data as either one row object or an array of
// rows, so a single-row PUT doesn't have to wrap itself in an array.
func (r *CreateRequest) UnmarshalJSON(data []byte) error {
	var wire struct {
		Data json.RawMessage `json:"data"`
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&wire); err != nil {
		return err
	}
	if len(wire.Data) == 0 {
		return nil
	}
	if wire.Data[0] == '[' {
		return json.Unmarshal(wire.Data, &r.Data)
	}
	var row map[string]any
	if err := json.Unmarshal(wire.Data, &row); err != nil {
		return err
	}
	r.Data = []map[string]any{row}
	return nil
}

// CompileInsert compiles a CreateRequest into a single (possibly
// multi-row) INSERT ... RETURNING * statement. Every row must declare
// the same column set; unknown columns fail with UnknownField, an
// empty Data fails with MissingField.
func (c *Compiler) CompileInsert(rel catalog.Relation, req CreateRequest) (*CompiledStatement, error) {
	if len(req.Data) == 0 {
		return nil, errs.MissingField("data")
	}

	cols := make([]string, 0, len(req.Data[0]))
	given := make(map[string]bool, len(req.Data[0]))
	for col := range req.Data[0] {
		cols = append(cols, col)
		given[col] = true
	}
	sort.Strings(cols)
	for _, col := range cols {
		if _, ok := rel.AttributeByName(col); !ok {
			return nil, errs.UnknownField(col)
		}
	}
	for _, attr := range rel.Attributes {
		if attr.NotNull && !attr.HasDefault && !attr.Generated && !attr.Identity && !given[attr.Name] {
			return nil, errs.MissingField(attr.Name)
		}
	}

	b := &argBuilder{}
	rowExprs := make([]string, len(req.Data))
	for i, row := range req.Data {
		if len(row) != len(cols) {
			return nil, errs.New(errs.Validation, "row %d has a different column set than row 0", i)
		}
		placeholders := make([]string, len(cols))
		for j, col := range cols {
			v, ok := row[col]
			if !ok {
				return nil, errs.MissingField(col)
			}
			placeholders[j] = b.add(v)
		}
		rowExprs[i] = "(" + strings.Join(placeholders, ", ") + ")"
	}

	quotedCols := make([]string, len(cols))
	for i, col := range cols {
		quotedCols[i] = quoteIdent(col)
	}

	table := quoteQualified(rel.Namespace, rel.Name)
	sql := fmt.Sprintf("INSERT INTO %s (%s) VALUES %s RETURNING *",
		table, strings.Join(quotedCols, ", "), strings.Join(rowExprs, ", "))

	if err := validate(sql); err != nil {
		return nil, err
	}
	return &CompiledStatement{SQL: sql, Args: b.args, Decode: DecodeRows}, nil
}

// CompileUpdate compiles an UpdateRequest into an UPDATE ... RETURNING *
// statement. req.Key.Values must match exactly the primary key's column
// set or exactly one unique constraint's column set; any other shape
// fails with KeyShapeMismatch.
func (c *Compiler) CompileUpdate(rel catalog.Relation, req UpdateRequest) (*CompiledStatement, error) {
	if len(req.Data) == 0 {
		return nil, errs.MissingField("data")
	}
	keyCols, err := matchKeyShape(rel, req.Key.Values)
	if err != nil {
		return nil, err
	}

	setCols := make([]string, 0, len(req.Data))
	for col := range req.Data {
		setCols = append(setCols, col)
	}
	sort.Strings(setCols)

	b := &argBuilder{}
	sets := make([]string, len(setCols))
	for i, col := range setCols {
		if _, ok := rel.AttributeByName(col); !ok {
			return nil, errs.UnknownField(col)
		}
		sets[i] = fmt.Sprintf("%s = %s", quoteIdent(col), b.add(req.Data[col]))
	}

	where, err := buildKeyPredicate(keyCols, req.Key.Values, b)
	if err != nil {
		return nil, err
	}

	table := quoteQualified(rel.Namespace, rel.Name)
	sql := fmt.Sprintf("UPDATE %s SET %s WHERE %s RETURNING *",
		table, strings.Join(sets, ", "), where)

	if err := validate(sql); err != nil {
		return nil, err
	}
	return &CompiledStatement{SQL: sql, Args: b.args, Decode: DecodeRows}, nil
}

// CompileDelete compiles a PrimaryKeyRequest into a DELETE ... RETURNING *
// statement, under the same key-shape rule as CompileUpdate.
func (c *Compiler) CompileDelete(rel catalog.Relation, req PrimaryKeyRequest) (*CompiledStatement, error) {
	keyCols, err := matchKeyShape(rel, req.Values)
	if err != nil {
		return nil, err
	}

	b := &argBuilder{}
	where, err := buildKeyPredicate(keyCols, req.Values, b)
	if err != nil {
		return nil, err
	}

	table := quoteQualified(rel.Namespace, rel.Name)
	sql := fmt.Sprintf("DELETE FROM %s WHERE %s RETURNING *", table, where)

	if err := validate(sql); err != nil {
		return nil, err
	}
	return &CompiledStatement{SQL: sql, Args: b.args, Decode: DecodeRows}, nil
}

// matchKeyShape validates that key's column set is exactly the
// relation's primary key or exactly one of its unique constraints,
// returning that constraint's column names.
func matchKeyShape(rel catalog.Relation, key map[string]any) ([]string, error) {
	if len(key) == 0 {
		return nil, errs.MissingField("key")
	}
	given := make([]string, 0, len(key))
	for k := range key {
		given = append(given, k)
	}
	sort.Strings(given)

	candidates := make([][]string, 0, 1+len(rel.UniqueConstraints()))
	if pk, ok := rel.PrimaryKey(); ok {
		candidates = append(candidates, rel.AttributeNames(pk.Ordinals))
	}
	for _, u := range rel.UniqueConstraints() {
		candidates = append(candidates, rel.AttributeNames(u.Ordinals))
	}

	for _, cand := range candidates {
		sortedCand := append([]string(nil), cand...)
		sort.Strings(sortedCand)
		if equalStrings(sortedCand, given) {
			return cand, nil
		}
	}
	return nil, errs.KeyShapeMismatch(given)
}

func buildKeyPredicate(keyCols []string, key map[string]any, b *argBuilder) (string, error) {
	parts := make([]string, len(keyCols))
	for i, col := range keyCols {
		parts[i] = fmt.Sprintf("%s = %s", quoteIdent(col), b.add(key[col]))
	}
	return strings.Join(parts, " AND "), nil
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
