package compiler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pghatch/pghatch/internal/catalog"
)

func TestCompileQuery_NestedToOne(t *testing.T) {
	c := testCompiler()
	stmt, err := c.CompileQuery(testRelation(), FilterDocument{
		Select: &SelectClause{
			Fields: []string{"title"},
			Nested: map[string]*SelectClause{
				"authors": {Fields: []string{"name"}},
			},
		},
	})
	require.NoError(t, err)
	assert.Contains(t, stmt.SQL, `"authors" AS "authors"`)
	assert.Contains(t, stmt.SQL, `'name', "authors"."name"`)
	assert.Contains(t, stmt.SQL, `"books"."author_id" = "authors"."id"`)
	assert.Contains(t, stmt.SQL, `COALESCE((SELECT jsonb_agg`)
}

func TestCompileQuery_NestedToMany(t *testing.T) {
	c := testCompiler()
	stmt, err := c.CompileQuery(testAuthorsRelation(), FilterDocument{
		Select: &SelectClause{
			Fields: []string{"name"},
			Nested: map[string]*SelectClause{
				"books": {Fields: []string{"title"}},
			},
		},
	})
	require.NoError(t, err)
	assert.Contains(t, stmt.SQL, `"books"."author_id" = "authors"."id"`)
}

func TestCompileQuery_NestedUnknownAliasRejected(t *testing.T) {
	c := testCompiler()
	_, err := c.CompileQuery(testRelation(), FilterDocument{
		Select: &SelectClause{
			Nested: map[string]*SelectClause{"widgets": {}},
		},
	})
	require.Error(t, err)
}

func TestCompileQuery_NestedNoFkPathRejected(t *testing.T) {
	c := &Compiler{
		model: &catalog.SchemaModel{Relations: []catalog.Relation{
			testRelation(),
			{Namespace: "public", Name: "unrelated", Attributes: []catalog.Attribute{{Ordinal: 1, Name: "id"}}},
		}},
		types:        testCompiler().types,
		defaultLimit: 50,
		maxLimit:     1000,
	}
	_, err := c.CompileQuery(testRelation(), FilterDocument{
		Select: &SelectClause{Nested: map[string]*SelectClause{"unrelated": {}}},
	})
	require.Error(t, err)
}
