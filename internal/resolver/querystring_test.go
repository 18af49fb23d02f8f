package resolver

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pghatch/pghatch/internal/compiler"
)

func TestDocFromQueryString_PlainEqualityFilter(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/public/books?title=Dune", nil)
	doc, err := docFromQueryString(r)
	require.NoError(t, err)
	require.NotNil(t, doc.Where)
	assert.Equal(t, "title", doc.Where.Field)
	assert.Equal(t, compiler.OpEq, doc.Where.Operator)
}

func TestDocFromQueryString_MultipleFiltersAnded(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/public/books?title=Dune&author_id=1", nil)
	doc, err := docFromQueryString(r)
	require.NoError(t, err)
	require.NotNil(t, doc.Where)
	assert.True(t, doc.Where.IsLogical())
	assert.Len(t, doc.Where.Conditions, 2)
}

func TestDocFromQueryString_SelectFieldsAndPagination(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/public/books?select_fields=id,title&limit=10&offset=5", nil)
	doc, err := docFromQueryString(r)
	require.NoError(t, err)
	require.NotNil(t, doc.Select)
	assert.Equal(t, []string{"id", "title"}, doc.Select.Fields)
	require.NotNil(t, doc.Pagination)
	require.NotNil(t, doc.Pagination.Limit)
	assert.Equal(t, 10, *doc.Pagination.Limit)
	assert.Equal(t, 5, doc.Pagination.Offset)
}

func TestDocFromQueryString_InvalidLimitRejected(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/public/books?limit=abc", nil)
	_, err := docFromQueryString(r)
	require.Error(t, err)
}

func TestDocFromQueryString_NoFiltersWhenOnlyReserved(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/public/books?cursor=xyz", nil)
	doc, err := docFromQueryString(r)
	require.NoError(t, err)
	assert.Nil(t, doc.Where)
}
