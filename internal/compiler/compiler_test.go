package compiler

import (
	"strings"
	"testing"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pghatch/pghatch/internal/catalog"
	"github.com/pghatch/pghatch/internal/typeregistry"
)

func testRelation() catalog.Relation {
	return catalog.Relation{
		Namespace: "public",
		Name:      "books",
		Kind:      catalog.KindOrdinary,
		Attributes: []catalog.Attribute{
			{Ordinal: 1, Name: "id", TypeOID: pgtype.Int4OID, NotNull: true},
			{Ordinal: 2, Name: "title", TypeOID: pgtype.TextOID, NotNull: true},
			{Ordinal: 3, Name: "author_id", TypeOID: pgtype.Int4OID},
		},
		Constraints: []catalog.Constraint{
			{Name: "books_pkey", Kind: catalog.ConstraintPrimaryKey, Ordinals: []int{1}},
			{Name: "books_title_key", Kind: catalog.ConstraintUnique, Ordinals: []int{2}},
			{
				Name: "books_author_id_fkey", Kind: catalog.ConstraintForeignKey,
				Ordinals: []int{3}, RefSchema: "public", RefRelName: "authors", RefOrdinals: []int{1},
			},
		},
	}
}

func testAuthorsRelation() catalog.Relation {
	return catalog.Relation{
		Namespace: "public",
		Name:      "authors",
		Kind:      catalog.KindOrdinary,
		Attributes: []catalog.Attribute{
			{Ordinal: 1, Name: "id", TypeOID: pgtype.Int4OID, NotNull: true},
			{Ordinal: 2, Name: "name", TypeOID: pgtype.TextOID, NotNull: true},
		},
		Constraints: []catalog.Constraint{
			{Name: "authors_pkey", Kind: catalog.ConstraintPrimaryKey, Ordinals: []int{1}},
		},
	}
}

func testModel() *catalog.SchemaModel {
	return &catalog.SchemaModel{
		Relations: []catalog.Relation{testRelation(), testAuthorsRelation()},
	}
}

func testCompiler() *Compiler {
	return New(testModel(), typeregistry.New(nil), 50, 1000)
}

func TestCompileQuery_DefaultsAllColumnsAndPkOrder(t *testing.T) {
	c := testCompiler()
	stmt, err := c.CompileQuery(testRelation(), FilterDocument{})
	require.NoError(t, err)

	assert.Contains(t, stmt.SQL, `"id", "title", "author_id"`)
	assert.Contains(t, stmt.SQL, `FROM "public"."books"`)
	assert.Contains(t, stmt.SQL, `ORDER BY "id"`)
	assert.Equal(t, 50, stmt.Limit)
	assert.Equal(t, 0, stmt.Offset)
	assert.Equal(t, []any{50, 0}, stmt.Args)
	assert.Contains(t, stmt.CountSQL, `SELECT count(*) FROM "public"."books"`)
}

func TestCompileQuery_SelectedFields(t *testing.T) {
	c := testCompiler()
	stmt, err := c.CompileQuery(testRelation(), FilterDocument{
		Select: &SelectClause{Fields: []string{"title"}},
	})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(stmt.SQL, `SELECT "title" FROM`))
}

func TestCompileQuery_UnknownFieldRejected(t *testing.T) {
	c := testCompiler()
	_, err := c.CompileQuery(testRelation(), FilterDocument{
		Select: &SelectClause{Fields: []string{"nope"}},
	})
	require.Error(t, err)
}

func TestCompileQuery_ComparisonFilter(t *testing.T) {
	c := testCompiler()
	stmt, err := c.CompileQuery(testRelation(), FilterDocument{
		Where: &WhereClause{Type: "comparison", Field: "title", Operator: OpEq, Value: "Dune"},
	})
	require.NoError(t, err)
	assert.Contains(t, stmt.SQL, `WHERE "title" = $1`)
	assert.Equal(t, []any{"Dune", 50, 0}, stmt.Args)
}

func TestCompileQuery_LikeRequiresTextLikeField(t *testing.T) {
	c := testCompiler()
	_, err := c.CompileQuery(testRelation(), FilterDocument{
		Where: &WhereClause{Type: "comparison", Field: "author_id", Operator: OpLike, Value: "x"},
	})
	require.Error(t, err)
}

func TestCompileQuery_LogicalAnd(t *testing.T) {
	c := testCompiler()
	stmt, err := c.CompileQuery(testRelation(), FilterDocument{
		Where: &WhereClause{Type: "logical", Operator: "and", Conditions: []*WhereClause{
			{Type: "comparison", Field: "title", Operator: OpEq, Value: "Dune"},
			{Type: "comparison", Field: "author_id", Operator: OpGt, Value: 1},
		}},
	})
	require.NoError(t, err)
	assert.Contains(t, stmt.SQL, `WHERE ("title" = $1) AND ("author_id" > $2)`)
}

func TestCompileQuery_EmptyInListMatchesNothing(t *testing.T) {
	c := testCompiler()
	stmt, err := c.CompileQuery(testRelation(), FilterDocument{
		Where: &WhereClause{Type: "comparison", Field: "id", Operator: OpIn, Value: []any{}},
	})
	require.NoError(t, err)
	assert.Contains(t, stmt.SQL, "WHERE FALSE")
}

func TestCompileQuery_LimitExceedsMax(t *testing.T) {
	c := testCompiler()
	limit := 5000
	_, err := c.CompileQuery(testRelation(), FilterDocument{Pagination: &Pagination{Limit: &limit}})
	require.Error(t, err)
}

func TestCompileQuery_NegativeOffsetRejected(t *testing.T) {
	c := testCompiler()
	_, err := c.CompileQuery(testRelation(), FilterDocument{Pagination: &Pagination{Offset: -1}})
	require.Error(t, err)
}
