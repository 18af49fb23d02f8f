package resolver

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/pghatch/pghatch/internal/compiler"
	"github.com/pghatch/pghatch/internal/errs"
)

// reservedQueryParams are handled specially and never become equality
// filters on a same-named column.
var reservedQueryParams = map[string]bool{
	"limit": true, "offset": true, "cursor": true, "select_fields": true,
}

// docFromQueryString builds the FilterDocument a plain GET list
// request implies: limit/offset/cursor, select_fields, and every other
// query parameter as an equality filter, ANDed together.
func docFromQueryString(r *http.Request) (compiler.FilterDocument, error) {
	q := r.URL.Query()
	var doc compiler.FilterDocument

	if fields := q.Get("select_fields"); fields != "" {
		doc.Select = &compiler.SelectClause{Fields: strings.Split(fields, ",")}
	}

	pagination := &compiler.Pagination{}
	hasPagination := false
	if v := q.Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil {
			return doc, errs.New(errs.Validation, "invalid limit %q", v)
		}
		pagination.Limit = &limit
		hasPagination = true
	}
	if v := q.Get("offset"); v != "" {
		offset, err := strconv.Atoi(v)
		if err != nil {
			return doc, errs.New(errs.Validation, "invalid offset %q", v)
		}
		pagination.Offset = offset
		hasPagination = true
	}
	if v := q.Get("cursor"); v != "" {
		pagination.Cursor = &v
		hasPagination = true
	}
	if hasPagination {
		doc.Pagination = pagination
	}

	var conditions []*compiler.WhereClause
	for key, values := range q {
		if reservedQueryParams[key] || len(values) == 0 {
			continue
		}
		conditions = append(conditions, &compiler.WhereClause{
			Type:     "comparison",
			Field:    key,
			Operator: compiler.OpEq,
			Value:    values[0],
		})
	}
	if len(conditions) == 1 {
		doc.Where = conditions[0]
	} else if len(conditions) > 1 {
		doc.Where = &compiler.WhereClause{Type: "logical", Operator: "and", Conditions: conditions}
	}

	return doc, nil
}
