package compiler

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateRequest_UnmarshalSingleRow(t *testing.T) {
	var req CreateRequest
	require.NoError(t, json.Unmarshal([]byte(`{"data":{"title":"Dune","author_id":1}}`), &req))
	require.Len(t, req.Data, 1)
	assert.Equal(t, "Dune", req.Data[0]["title"])
}

func TestCreateRequest_UnmarshalBatch(t *testing.T) {
	var req CreateRequest
	require.NoError(t, json.Unmarshal([]byte(`{"data":[{"title":"Dune"},{"title":"Hyperion"}]}`), &req))
	require.Len(t, req.Data, 2)
}

func TestCompileInsert_SingleRow(t *testing.T) {
	c := testCompiler()
	stmt, err := c.CompileInsert(testRelation(), CreateRequest{Data: []map[string]any{
		{"id": 1, "title": "Dune", "author_id": 1},
	}})
	require.NoError(t, err)
	assert.Contains(t, stmt.SQL, `INSERT INTO "public"."books"`)
	assert.Contains(t, stmt.SQL, "VALUES")
	assert.Contains(t, stmt.SQL, "RETURNING *")
	assert.Len(t, stmt.Args, 3)
}

func TestCompileInsert_Batch(t *testing.T) {
	c := testCompiler()
	stmt, err := c.CompileInsert(testRelation(), CreateRequest{Data: []map[string]any{
		{"id": 1, "title": "Dune"},
		{"id": 2, "title": "Hyperion"},
	}})
	require.NoError(t, err)
	assert.Len(t, stmt.Args, 4)
	assert.Contains(t, stmt.SQL, "), ($")
}

func TestCompileInsert_MissingNotNullColumnRejected(t *testing.T) {
	c := testCompiler()
	_, err := c.CompileInsert(testRelation(), CreateRequest{Data: []map[string]any{
		{"title": "Dune"},
	}})
	require.Error(t, err)
}

func TestCompileInsert_EmptyDataRejected(t *testing.T) {
	c := testCompiler()
	_, err := c.CompileInsert(testRelation(), CreateRequest{})
	require.Error(t, err)
}

func TestCompileInsert_UnknownColumnRejected(t *testing.T) {
	c := testCompiler()
	_, err := c.CompileInsert(testRelation(), CreateRequest{Data: []map[string]any{
		{"nope": 1},
	}})
	require.Error(t, err)
}

func TestCompileInsert_InconsistentRowShapeRejected(t *testing.T) {
	c := testCompiler()
	_, err := c.CompileInsert(testRelation(), CreateRequest{Data: []map[string]any{
		{"id": 1, "title": "Dune"},
		{"id": 2, "title": "Hyperion", "author_id": 2},
	}})
	require.Error(t, err)
}

func TestCompileUpdate_ByPrimaryKey(t *testing.T) {
	c := testCompiler()
	stmt, err := c.CompileUpdate(testRelation(), UpdateRequest{
		Key:  PrimaryKeyRequest{Values: map[string]any{"id": 1}},
		Data: map[string]any{"title": "Dune Messiah"},
	})
	require.NoError(t, err)
	assert.Contains(t, stmt.SQL, `UPDATE "public"."books" SET "title" = $1 WHERE "id" = $2`)
	assert.Equal(t, []any{"Dune Messiah", 1}, stmt.Args)
}

func TestCompileUpdate_ByUniqueConstraint(t *testing.T) {
	c := testCompiler()
	stmt, err := c.CompileUpdate(testRelation(), UpdateRequest{
		Key:  PrimaryKeyRequest{Values: map[string]any{"title": "Dune"}},
		Data: map[string]any{"author_id": 2},
	})
	require.NoError(t, err)
	assert.Contains(t, stmt.SQL, `WHERE "title" = $2`)
}

func TestCompileUpdate_KeyShapeMismatchRejected(t *testing.T) {
	c := testCompiler()
	_, err := c.CompileUpdate(testRelation(), UpdateRequest{
		Key:  PrimaryKeyRequest{Values: map[string]any{"author_id": 1}},
		Data: map[string]any{"title": "x"},
	})
	require.Error(t, err)
}

func TestCompileDelete_ByPrimaryKey(t *testing.T) {
	c := testCompiler()
	stmt, err := c.CompileDelete(testRelation(), PrimaryKeyRequest{Values: map[string]any{"id": 1}})
	require.NoError(t, err)
	assert.Contains(t, stmt.SQL, `DELETE FROM "public"."books" WHERE "id" = $1`)
	assert.Equal(t, []any{1}, stmt.Args)
}
