// Package envelope shapes the JSON going in and out of the gateway:
// decoding FilterDocument/CreateRequest/UpdateRequest/PrimaryKeyRequest
// bodies strictly (unknown top-level keys rejected), and rendering list
// and mutation responses in the gateway's standard shape.
package envelope

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/pghatch/pghatch/internal/compiler"
	"github.com/pghatch/pghatch/internal/errs"
)

// ListResponse is the outbound shape for a successful list query.
type ListResponse struct {
	Results    []map[string]any `json:"results"`
	Total      int64            `json:"total"`
	Pagination PaginationOut    `json:"pagination"`
}

// MarshalJSON copies Total into the pagination object and derives
// has_more from it, so both positions always report the same count.
func (l ListResponse) MarshalJSON() ([]byte, error) {
	type page struct {
		PaginationOut
		Total   int64 `json:"total"`
		HasMore bool  `json:"has_more"`
	}
	hasMore := int64(l.Pagination.Offset+len(l.Results)) < l.Total
	return json.Marshal(struct {
		Results    []map[string]any `json:"results"`
		Total      int64            `json:"total"`
		Pagination page             `json:"pagination"`
	}{l.Results, l.Total, page{l.Pagination, l.Total, hasMore}})
}

// PaginationOut echoes back the effective page window plus an opaque
// cursor pointing at the next page, omitted once the page runs dry.
type PaginationOut struct {
	Limit      int     `json:"limit"`
	Offset     int     `json:"offset"`
	NextCursor *string `json:"next_cursor,omitempty"`
}

// DeleteResponse is the outbound shape for a successful delete: the
// number of rows actually removed.
type DeleteResponse struct {
	Deleted int    `json:"deleted"`
	Message string `json:"message,omitempty"`
}

// ErrorResponse is the outbound shape for any failed request.
type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

type ErrorBody struct {
	Kind    string         `json:"kind"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

// DecodeFilterDocument reads and strictly validates a FilterDocument
// body. A GET request with no body is treated as the empty document.
func DecodeFilterDocument(r *http.Request) (compiler.FilterDocument, error) {
	var doc compiler.FilterDocument
	body, err := readBody(r)
	if err != nil {
		return doc, err
	}
	if len(body) == 0 {
		return doc, nil
	}
	if err := decodeStrict(body, &doc); err != nil {
		return doc, err
	}
	return doc, nil
}

// DecodePostBody reads a relation POST body and disambiguates it by
// the presence of the "key" field: present means an UpdateRequest,
// absent means a FilterDocument.
func DecodePostBody(r *http.Request) (isUpdate bool, doc compiler.FilterDocument, update compiler.UpdateRequest, err error) {
	body, err := readBody(r)
	if err != nil {
		return false, doc, update, err
	}
	var peek struct {
		Key json.RawMessage `json:"key"`
	}
	if len(body) > 0 {
		if unmarshalErr := json.Unmarshal(body, &peek); unmarshalErr != nil {
			return false, doc, update, errs.Wrap(unmarshalErr, errs.Validation, "malformed request body")
		}
	}
	if peek.Key != nil {
		if decodeErr := decodeStrict(body, &update); decodeErr != nil {
			return false, doc, update, decodeErr
		}
		return true, doc, update, nil
	}
	if len(body) > 0 {
		if decodeErr := decodeStrict(body, &doc); decodeErr != nil {
			return false, doc, update, decodeErr
		}
	}
	return false, doc, update, nil
}

// DecodeCreateRequest reads and strictly validates a CreateRequest body.
func DecodeCreateRequest(r *http.Request) (compiler.CreateRequest, error) {
	var req compiler.CreateRequest
	body, err := readBody(r)
	if err != nil {
		return req, err
	}
	if err := decodeStrict(body, &req); err != nil {
		return req, err
	}
	return req, nil
}

// DecodeUpdateRequest reads and strictly validates an UpdateRequest body.
func DecodeUpdateRequest(r *http.Request) (compiler.UpdateRequest, error) {
	var req compiler.UpdateRequest
	body, err := readBody(r)
	if err != nil {
		return req, err
	}
	if err := decodeStrict(body, &req); err != nil {
		return req, err
	}
	return req, nil
}

// DecodePrimaryKeyRequest reads and strictly validates a
// PrimaryKeyRequest body.
func DecodePrimaryKeyRequest(r *http.Request) (compiler.PrimaryKeyRequest, error) {
	var req compiler.PrimaryKeyRequest
	body, err := readBody(r)
	if err != nil {
		return req, err
	}
	if err := decodeStrict(body, &req); err != nil {
		return req, err
	}
	return req, nil
}

// DecodeCallArguments reads a callable POST body's {"arguments": {...}}
// envelope.
func DecodeCallArguments(r *http.Request) (map[string]any, error) {
	body, err := readBody(r)
	if err != nil {
		return nil, err
	}
	if len(body) == 0 {
		return map[string]any{}, nil
	}
	var wire struct {
		Arguments map[string]any `json:"arguments"`
	}
	if err := decodeStrict(body, &wire); err != nil {
		return nil, err
	}
	if wire.Arguments == nil {
		return map[string]any{}, nil
	}
	return wire.Arguments, nil
}

const maxBodyBytes = 8 << 20

func readBody(r *http.Request) ([]byte, error) {
	if r.Body == nil {
		return nil, nil
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		return nil, errs.Wrap(err, errs.Validation, "could not read request body")
	}
	return body, nil
}

func decodeStrict(body []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return errs.Wrap(err, errs.Validation, "malformed request body")
	}
	return nil
}

// ResolveCursor turns an opaque pagination cursor into an offset,
// falling back to p.Offset when no cursor is present, or when the
// cursor fails to decode — a stale or hand-edited cursor degrades to
// plain offset pagination rather than failing the request. The cursor
// is a base64 token wrapping a plain integer offset — the compiler
// never sees it, only the resolved int (open question: cursors are an
// ignorable convenience over offset pagination, not a keyset scheme).
func ResolveCursor(p *compiler.Pagination) (int, error) {
	if p == nil {
		return 0, nil
	}
	if p.Cursor == nil {
		return p.Offset, nil
	}
	raw, err := base64.RawURLEncoding.DecodeString(*p.Cursor)
	if err != nil {
		return p.Offset, nil
	}
	offset, err := strconv.Atoi(string(raw))
	if err != nil || offset < 0 {
		return p.Offset, nil
	}
	return offset, nil
}

// EncodeCursor wraps the offset of the page following the one just
// served, or nil once the result set is exhausted.
func EncodeCursor(offset, limit int, total int64) *string {
	next := offset + limit
	if int64(next) >= total {
		return nil
	}
	tok := base64.RawURLEncoding.EncodeToString([]byte(fmt.Sprintf("%d", next)))
	return &tok
}

// WriteError renders an *errs.Error (or any error, classified as
// Internal) as the standard error envelope.
func WriteError(w http.ResponseWriter, err error) {
	e, ok := errs.As(err)
	if !ok {
		e = errs.Wrap(err, errs.Internal, "internal error")
	}
	WriteJSON(w, e.Kind.Status(), ErrorResponse{Error: ErrorBody{
		Kind:    string(e.Kind),
		Message: e.Message,
		Details: e.Details,
	}})
}

// WriteJSON writes v as a JSON response body with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
