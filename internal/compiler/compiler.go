package compiler

import (
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/pghatch/pghatch/internal/catalog"
	"github.com/pghatch/pghatch/internal/errs"
	"github.com/pghatch/pghatch/internal/typeregistry"
)

// Compiler builds parameterized SQL against one SchemaModel snapshot.
// It is stateless beyond the snapshot and registry it closes over, and
// is rebuilt alongside the ResolverSet on every hot-swap.
type Compiler struct {
	model        *catalog.SchemaModel
	types        *typeregistry.Registry
	defaultLimit int
	maxLimit     int
}

func New(model *catalog.SchemaModel, types *typeregistry.Registry, defaultLimit, maxLimit int) *Compiler {
	return &Compiler{model: model, types: types, defaultLimit: defaultLimit, maxLimit: maxLimit}
}

// argBuilder numbers placeholders as values are added.
type argBuilder struct{ args []any }

func (b *argBuilder) add(v any) string {
	b.args = append(b.args, v)
	return fmt.Sprintf("$%d", len(b.args))
}

// quoteIdent quotes a single identifier using pgx's own sanitizer
// rather than hand-rolled quoting.
func quoteIdent(name string) string {
	return pgx.Identifier{name}.Sanitize()
}

func quoteQualified(schema, name string) string {
	return pgx.Identifier{schema, name}.Sanitize()
}

func isTextLike(cat typeregistry.Category) bool {
	return cat == typeregistry.Text || cat == typeregistry.JSON || cat == typeregistry.JSONB
}

// CompileQuery translates (relation, FilterDocument) into a list
// CompiledStatement plus a companion count statement.
// Any pagination.cursor is assumed already resolved to an offset by
// the caller (internal/envelope) — the compiler only ever sees
// limit/offset, matching SPEC_FULL.md's resolution of the cursor open
// question.
func (c *Compiler) CompileQuery(rel catalog.Relation, doc FilterDocument) (*CompiledStatement, error) {
	fields, err := c.resolveFields(rel, doc.Select)
	if err != nil {
		return nil, err
	}

	b := &argBuilder{}
	where, err := c.buildWhere(rel, doc.Where, b)
	if err != nil {
		return nil, err
	}
	whereClause := ""
	if where != "" {
		whereClause = " WHERE " + where
	}

	nestedCols, err := c.buildNestedSelects(rel, doc.Select)
	if err != nil {
		return nil, err
	}

	limit, offset, err := c.resolvePagination(doc.Pagination)
	if err != nil {
		return nil, err
	}

	table := quoteQualified(rel.Namespace, rel.Name)
	selectList := make([]string, 0, len(fields)+len(nestedCols))
	for _, f := range fields {
		selectList = append(selectList, quoteIdent(f))
	}
	selectList = append(selectList, nestedCols...)

	orderBy := c.deterministicOrderBy(rel)

	limitPh := b.add(limit)
	offsetPh := b.add(offset)

	sql := fmt.Sprintf("SELECT %s FROM %s%s%s LIMIT %s OFFSET %s",
		strings.Join(selectList, ", "), table, whereClause, orderBy, limitPh, offsetPh)

	countArgs := &argBuilder{}
	countWhere, err := c.buildWhere(rel, doc.Where, countArgs)
	if err != nil {
		return nil, err
	}
	countClause := ""
	if countWhere != "" {
		countClause = " WHERE " + countWhere
	}
	countSQL := fmt.Sprintf("SELECT count(*) FROM %s%s", table, countClause)

	if err := validate(sql); err != nil {
		return nil, err
	}
	if err := validate(countSQL); err != nil {
		return nil, err
	}

	return &CompiledStatement{
		SQL:       sql,
		Args:      b.args,
		Decode:    DecodeRows,
		CountSQL:  countSQL,
		CountArgs: countArgs.args,
		Limit:     limit,
		Offset:    offset,
	}, nil
}

func (c *Compiler) resolveFields(rel catalog.Relation, sel *SelectClause) ([]string, error) {
	if sel == nil || len(sel.Fields) == 0 {
		names := make([]string, 0, len(rel.Attributes))
		for _, a := range rel.Attributes {
			names = append(names, a.Name)
		}
		return names, nil
	}
	for _, f := range sel.Fields {
		if _, ok := rel.AttributeByName(f); !ok {
			return nil, errs.UnknownField(f)
		}
	}
	return sel.Fields, nil
}

func (c *Compiler) deterministicOrderBy(rel catalog.Relation) string {
	pk, ok := rel.PrimaryKey()
	if !ok {
		return ""
	}
	cols := rel.AttributeNames(pk.Ordinals)
	if len(cols) == 0 {
		return ""
	}
	quoted := make([]string, len(cols))
	for i, col := range cols {
		quoted[i] = quoteIdent(col)
	}
	return " ORDER BY " + strings.Join(quoted, ", ")
}

func (c *Compiler) resolvePagination(p *Pagination) (limit, offset int, err error) {
	limit = c.defaultLimit
	if p != nil {
		if p.Limit != nil {
			limit = *p.Limit
		}
		offset = p.Offset
	}
	if limit > c.maxLimit {
		return 0, 0, errs.LimitExceeded(limit, c.maxLimit)
	}
	if limit < 0 || offset < 0 {
		return 0, 0, errs.New(errs.Validation, "limit and offset must be >= 0")
	}
	return limit, offset, nil
}

// buildWhere recursively compiles a WhereClause into a SQL boolean
// expression, resolving every field against rel's attributes
// and checking operator/type compatibility.
func (c *Compiler) buildWhere(rel catalog.Relation, w *WhereClause, b *argBuilder) (string, error) {
	if w == nil {
		return "", nil
	}
	if w.Type == "logical" {
		return c.buildLogical(rel, w, b)
	}
	return c.buildComparison(rel, w, b)
}

func (c *Compiler) buildLogical(rel catalog.Relation, w *WhereClause, b *argBuilder) (string, error) {
	switch w.Operator {
	case "and", "or":
		if len(w.Conditions) == 0 {
			return "", errs.New(errs.Validation, "logical %q requires at least one condition", w.Operator)
		}
		parts := make([]string, 0, len(w.Conditions))
		for _, cond := range w.Conditions {
			sql, err := c.buildWhere(rel, cond, b)
			if err != nil {
				return "", err
			}
			parts = append(parts, "("+sql+")")
		}
		joiner := " AND "
		if w.Operator == "or" {
			joiner = " OR "
		}
		return strings.Join(parts, joiner), nil
	case "not":
		if len(w.Conditions) != 1 {
			return "", errs.New(errs.Validation, "logical \"not\" requires exactly one condition")
		}
		sql, err := c.buildWhere(rel, w.Conditions[0], b)
		if err != nil {
			return "", err
		}
		return "NOT (" + sql + ")", nil
	default:
		return "", errs.New(errs.Validation, "unknown logical operator %q", w.Operator)
	}
}

func (c *Compiler) buildComparison(rel catalog.Relation, w *WhereClause, b *argBuilder) (string, error) {
	attr, ok := rel.AttributeByName(w.Field)
	if !ok {
		return "", errs.UnknownField(w.Field)
	}
	col := quoteIdent(attr.Name)

	if nullaryOperators[w.Operator] {
		if w.Operator == OpIsNull {
			return col + " IS NULL", nil
		}
		return col + " IS NOT NULL", nil
	}

	cat := c.types.Describe(attr.TypeOID).Category
	if textOperators[w.Operator] && !isTextLike(cat) {
		return "", errs.OperatorTypeMismatch(w.Field, string(w.Operator))
	}

	if arrayOperators[w.Operator] {
		values, ok := w.Value.([]any)
		if !ok {
			return "", errs.OperatorTypeMismatch(w.Field, string(w.Operator))
		}
		if len(values) == 0 {
			// An empty IN-list matches nothing; NOT IN matches everything.
			if w.Operator == OpIn {
				return "FALSE", nil
			}
			return "TRUE", nil
		}
		placeholders := make([]string, len(values))
		for i, v := range values {
			placeholders[i] = b.add(v)
		}
		op := "IN"
		if w.Operator == OpNotIn {
			op = "NOT IN"
		}
		return fmt.Sprintf("%s %s (%s)", col, op, strings.Join(placeholders, ", ")), nil
	}

	sqlOp, ok := sqlOperators[w.Operator]
	if !ok {
		return "", errs.New(errs.Validation, "unknown operator %q", w.Operator)
	}
	ph := b.add(w.Value)
	return fmt.Sprintf("%s %s %s", col, sqlOp, ph), nil
}
