package compiler

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pghatch/pghatch/internal/catalog"
)

func testCallable(shape catalog.ReturnShape) catalog.Callable {
	return catalog.Callable{
		Namespace:   "public",
		Name:        "checkout_cart",
		ReturnShape: shape,
		Volatility:  catalog.VolatilityVolatile,
		Arguments: []catalog.Argument{
			{Name: "cart_id", Mode: catalog.ArgIn},
			{Name: "coupon", Mode: catalog.ArgIn, HasDefault: true},
			{Name: "total", Mode: catalog.ArgOut},
		},
	}
}

func TestCompileCall_ScalarReturn(t *testing.T) {
	c := testCompiler()
	stmt, err := c.CompileCall(testCallable(catalog.ReturnScalar), map[string]any{"cart_id": 1})
	require.NoError(t, err)
	assert.Contains(t, stmt.SQL, `SELECT "public"."checkout_cart"("cart_id" := $1) AS result`)
	assert.Equal(t, []any{1}, stmt.Args)
}

func TestCompileCall_VoidReturn(t *testing.T) {
	c := testCompiler()
	stmt, err := c.CompileCall(testCallable(catalog.ReturnVoid), map[string]any{"cart_id": 1})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(stmt.SQL, "SELECT "))
	assert.NotContains(t, stmt.SQL, "AS result")
}

func TestCompileCall_SetReturn(t *testing.T) {
	c := testCompiler()
	stmt, err := c.CompileCall(testCallable(catalog.ReturnSetOfComposite), map[string]any{"cart_id": 1})
	require.NoError(t, err)
	assert.Contains(t, stmt.SQL, `SELECT * FROM "public"."checkout_cart"`)
}

func TestCompileCall_CompositeReturn(t *testing.T) {
	c := testCompiler()
	stmt, err := c.CompileCall(testCallable(catalog.ReturnComposite), map[string]any{"cart_id": 1})
	require.NoError(t, err)
	assert.Contains(t, stmt.SQL, `SELECT * FROM "public"."checkout_cart"`)
}

func TestCompileCall_MissingRequiredArgument(t *testing.T) {
	c := testCompiler()
	_, err := c.CompileCall(testCallable(catalog.ReturnScalar), map[string]any{})
	require.Error(t, err)
}

func TestCompileCall_DefaultArgumentOmittable(t *testing.T) {
	c := testCompiler()
	_, err := c.CompileCall(testCallable(catalog.ReturnScalar), map[string]any{"cart_id": 1})
	require.NoError(t, err)
}

func TestCompileCall_UnknownArgumentRejected(t *testing.T) {
	c := testCompiler()
	_, err := c.CompileCall(testCallable(catalog.ReturnScalar), map[string]any{"cart_id": 1, "bogus": 1})
	require.Error(t, err)
}
