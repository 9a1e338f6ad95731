package store

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
)

// Params carries the raw, untrusted list-endpoint parameters exactly as
// they appeared in the request. Empty string means the parameter was
// absent.
type Params struct {
	Where  string
	Select string
	Sort   string
	Skip   string
	Limit  string
	Count  string
}

// ParseError reports which list parameter failed translation. The API layer
// maps it to a 400 response.
type ParseError struct {
	Param string
	Err   error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("invalid %s parameter: %v", e.Param, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// Translate converts raw list parameters into a Query descriptor.
// defaultLimit is applied when the limit parameter is absent; 0 means no
// default cap. Any malformed parameter fails the whole translation; nothing
// falls back to a default on bad input.
func Translate(p Params, defaultLimit int64) (Query, error) {
	q := Query{Limit: defaultLimit}

	if p.Where != "" {
		if err := json.Unmarshal([]byte(p.Where), &q.Filter); err != nil {
			return Query{}, &ParseError{Param: "where", Err: err}
		}
	}
	if p.Select != "" {
		if err := json.Unmarshal([]byte(p.Select), &q.Projection); err != nil {
			return Query{}, &ParseError{Param: "select", Err: err}
		}
	}
	if p.Sort != "" {
		sort, err := parseSort(p.Sort)
		if err != nil {
			return Query{}, &ParseError{Param: "sort", Err: err}
		}
		q.Sort = sort
	}
	if p.Skip != "" {
		skip, err := parseNonNegative(p.Skip)
		if err != nil {
			return Query{}, &ParseError{Param: "skip", Err: err}
		}
		q.Skip = skip
	}
	if p.Limit != "" {
		limit, err := parseNonNegative(p.Limit)
		if err != nil {
			return Query{}, &ParseError{Param: "limit", Err: err}
		}
		q.Limit = limit
	}
	q.CountOnly = p.Count == "true"

	return q, nil
}

// parseSort decodes a JSON object of field->direction pairs into a bson.D,
// preserving key order so multi-key sorts apply in request order.
func parseSort(raw string) (bson.D, error) {
	dec := json.NewDecoder(strings.NewReader(raw))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, fmt.Errorf("expected a JSON object")
	}

	var sort bson.D
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key := keyTok.(string)

		valTok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		num, ok := valTok.(json.Number)
		if !ok {
			return nil, fmt.Errorf("direction for %q must be numeric", key)
		}
		dir, err := num.Int64()
		if err != nil {
			return nil, fmt.Errorf("direction for %q must be an integer", key)
		}
		sort = append(sort, bson.E{Key: key, Value: int32(dir)})
	}

	// Consume the closing brace and reject trailing content.
	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	if dec.More() {
		return nil, fmt.Errorf("trailing content after sort object")
	}
	return sort, nil
}

func parseNonNegative(raw string) (int64, error) {
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%q is not an integer", raw)
	}
	if n < 0 {
		return 0, fmt.Errorf("must not be negative")
	}
	return n, nil
}
