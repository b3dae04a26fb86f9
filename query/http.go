package query

import (
	"net/http"
	"net/url"
	"strconv"
)

const (
	paramSortField = "sort_field"
	paramSortDir   = "sort_dir"
	paramMarker    = "marker"
	paramLimit     = "limit"
)

// ParseRequest splits list query parameters into the page request and the
// remaining filters. A limit above maxLimit is clamped to it.
func ParseRequest(values url.Values, maxLimit int) (PageRequest, Filters, error) {
	p := PageRequest{
		SortField: values.Get(paramSortField),
		SortDir:   values.Get(paramSortDir),
	}

	if raw := values.Get(paramMarker); raw != "" {
		marker, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return p, nil, &InvalidParameterError{Name: paramMarker, Value: raw, Reason: "must be an integer id"}
		}
		p.Marker = &marker
	}

	if raw := values.Get(paramLimit); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit <= 0 {
			return p, nil, &InvalidParameterError{Name: paramLimit, Value: raw, Reason: "must be a positive integer"}
		}
		if maxLimit > 0 && limit > maxLimit {
			limit = maxLimit
		}
		p.Limit = &limit
	}

	filters := Filters{}
	for k, v := range values {
		switch k {
		case paramSortField, paramSortDir, paramMarker, paramLimit:
			continue
		}
		filters[k] = v
	}

	return p, filters, nil
}

// SetHeaders writes X-Total, and X-Limit and X-Marker when they apply.
func SetHeaders[T any](w http.ResponseWriter, res *PageResult[T]) {
	w.Header().Set("X-Total", strconv.FormatInt(res.Total, 10))
	if res.Limit != nil {
		w.Header().Set("X-Limit", strconv.Itoa(*res.Limit))
	}
	if res.Marker != nil {
		w.Header().Set("X-Marker", strconv.FormatInt(*res.Marker, 10))
	}
}
