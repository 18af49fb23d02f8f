package envelope

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pghatch/pghatch/internal/compiler"
	"github.com/pghatch/pghatch/internal/errs"
)

func request(body string) *http.Request {
	return httptest.NewRequest(http.MethodPost, "/public/books", strings.NewReader(body))
}

func TestDecodeFilterDocument_EmptyBody(t *testing.T) {
	doc, err := DecodeFilterDocument(request(""))
	require.NoError(t, err)
	assert.Nil(t, doc.Select)
}

func TestDecodeFilterDocument_RejectsUnknownFields(t *testing.T) {
	_, err := DecodeFilterDocument(request(`{"bogus":1}`))
	require.Error(t, err)
}

func TestDecodePostBody_FilterDocumentWhenNoKey(t *testing.T) {
	isUpdate, doc, _, err := DecodePostBody(request(`{"where":{"type":"comparison","field":"id","operator":"eq","value":1}}`))
	require.NoError(t, err)
	assert.False(t, isUpdate)
	require.NotNil(t, doc.Where)
	assert.Equal(t, "id", doc.Where.Field)
}

func TestDecodePostBody_UpdateWhenKeyPresent(t *testing.T) {
	isUpdate, _, update, err := DecodePostBody(request(`{"key":{"values":{"id":1}},"data":{"title":"x"}}`))
	require.NoError(t, err)
	assert.True(t, isUpdate)
	assert.Equal(t, float64(1), update.Key.Values["id"])
	assert.Equal(t, "x", update.Data["title"])
}

func TestDecodeCreateRequest_SingleAndBatch(t *testing.T) {
	req, err := DecodeCreateRequest(request(`{"data":{"title":"Dune"}}`))
	require.NoError(t, err)
	assert.Len(t, req.Data, 1)

	req, err = DecodeCreateRequest(request(`{"data":[{"title":"Dune"},{"title":"Hyperion"}]}`))
	require.NoError(t, err)
	assert.Len(t, req.Data, 2)
}

func TestDecodeCallArguments(t *testing.T) {
	args, err := DecodeCallArguments(request(`{"arguments":{"cart_id":1}}`))
	require.NoError(t, err)
	assert.Equal(t, float64(1), args["cart_id"])
}

func TestDecodeCallArguments_EmptyBody(t *testing.T) {
	args, err := DecodeCallArguments(request(""))
	require.NoError(t, err)
	assert.Empty(t, args)
}

func TestResolveCursor_FallsBackToOffset(t *testing.T) {
	offset, err := ResolveCursor(&compiler.Pagination{Offset: 42})
	require.NoError(t, err)
	assert.Equal(t, 42, offset)
}

func TestResolveCursor_NilPagination(t *testing.T) {
	offset, err := ResolveCursor(nil)
	require.NoError(t, err)
	assert.Equal(t, 0, offset)
}

func TestEncodeDecodeCursorRoundTrip(t *testing.T) {
	tok := EncodeCursor(0, 10, 25)
	require.NotNil(t, tok)
	offset, err := ResolveCursor(&compiler.Pagination{Cursor: tok})
	require.NoError(t, err)
	assert.Equal(t, 10, offset)
}

func TestEncodeCursor_NilOncePageExhausted(t *testing.T) {
	assert.Nil(t, EncodeCursor(20, 10, 25))
}

func TestResolveCursor_MalformedCursorFallsBackToOffset(t *testing.T) {
	bogus := "not-valid-base64!!"
	offset, err := ResolveCursor(&compiler.Pagination{Cursor: &bogus, Offset: 7})
	require.NoError(t, err)
	assert.Equal(t, 7, offset)
}

func TestWriteError_RendersKindAndMessage(t *testing.T) {
	w := httptest.NewRecorder()
	WriteError(w, errs.UnknownField("bogus"))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), `"kind":"validation"`)
	assert.Contains(t, w.Body.String(), "bogus")
}

func TestWriteError_UnclassifiedErrorIsInternal(t *testing.T) {
	w := httptest.NewRecorder()
	WriteError(w, assert.AnError)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}
