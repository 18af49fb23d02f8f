package compiler

import (
	"fmt"
	"strings"

	"github.com/pghatch/pghatch/internal/catalog"
	"github.com/pghatch/pghatch/internal/errs"
)

// buildNestedSelects compiles every nested SelectClause key into a
// correlated sub-aggregation column. A nested name must
// be reachable from rel by a non-dangling foreign key in either
// direction; anything else fails with UnknownRelation.
func (c *Compiler) buildNestedSelects(rel catalog.Relation, sel *SelectClause) ([]string, error) {
	if sel == nil || len(sel.Nested) == 0 {
		return nil, nil
	}
	cols := make([]string, 0, len(sel.Nested))
	for alias, nested := range sel.Nested {
		col, err := c.buildNestedSelect(rel, alias, nested)
		if err != nil {
			return nil, err
		}
		cols = append(cols, col)
	}
	return cols, nil
}

func (c *Compiler) buildNestedSelect(rel catalog.Relation, alias string, nested *SelectClause) (string, error) {
	child, fk, childIsMany, err := c.resolveNestedRelation(rel, alias)
	if err != nil {
		return "", err
	}

	fields, err := c.resolveFields(child, nested)
	if err != nil {
		return "", err
	}
	obj := make([]string, 0, len(fields)*2)
	for _, f := range fields {
		obj = append(obj, fmt.Sprintf("'%s', %s.%s", f, quoteIdent(alias), quoteIdent(f)))
	}

	childTable := fmt.Sprintf("%s AS %s", quoteQualified(child.Namespace, child.Name), quoteIdent(alias))

	var correlation string
	if childIsMany {
		// child references rel: child.fk_cols = rel.referenced_cols
		fkCols := child.AttributeNames(fk.Ordinals)
		refCols := rel.AttributeNames(fk.RefOrdinals)
		correlation = joinCorrelation(alias, fkCols, rel.Name, refCols)
	} else {
		// rel references child: rel.fk_cols = child.referenced_cols
		fkCols := rel.AttributeNames(fk.Ordinals)
		refCols := child.AttributeNames(fk.RefOrdinals)
		correlation = joinCorrelation(rel.Name, fkCols, alias, refCols)
	}

	// Always aggregates to a JSON array, even on the to-one side of the
	// FK (a belongs-to relation matches at most one row); callers that
	// know the relation is to-one can index element 0.
	sub := fmt.Sprintf(
		"COALESCE((SELECT jsonb_agg(jsonb_build_object(%s)) FROM %s WHERE %s), '[]'::jsonb) AS %s",
		strings.Join(obj, ", "), childTable, correlation, quoteIdent(alias),
	)
	return sub, nil
}

func joinCorrelation(manyAlias string, manyCols []string, oneAlias string, oneCols []string) string {
	parts := make([]string, len(manyCols))
	for i := range manyCols {
		parts[i] = fmt.Sprintf("%s.%s = %s.%s", quoteIdent(manyAlias), quoteIdent(manyCols[i]), quoteIdent(oneAlias), quoteIdent(oneCols[i]))
	}
	return strings.Join(parts, " AND ")
}

// resolveNestedRelation finds the relation named alias and the FK
// constraint connecting it to rel, reporting which side is the "many"
// side (child) so the correlation predicate is built in the right
// direction.
func (c *Compiler) resolveNestedRelation(rel catalog.Relation, alias string) (catalog.Relation, catalog.Constraint, bool, error) {
	child, ok := c.findRelationByBareName(alias)
	if !ok {
		return catalog.Relation{}, catalog.Constraint{}, false, errs.UnknownRelation(alias)
	}

	for _, fk := range child.Constraints {
		if fk.Kind == catalog.ConstraintForeignKey && !fk.Dangling &&
			fk.RefSchema == rel.Namespace && fk.RefRelName == rel.Name {
			return child, fk, true, nil
		}
	}
	for _, fk := range rel.Constraints {
		if fk.Kind == catalog.ConstraintForeignKey && !fk.Dangling &&
			fk.RefSchema == child.Namespace && fk.RefRelName == child.Name {
			return child, fk, false, nil
		}
	}
	return catalog.Relation{}, catalog.Constraint{}, false, errs.UnknownRelation(alias)
}

func (c *Compiler) findRelationByBareName(name string) (catalog.Relation, bool) {
	for _, r := range c.model.Relations {
		if r.Name == name {
			return r, true
		}
	}
	return catalog.Relation{}, false
}
