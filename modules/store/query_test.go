package store

import (
	"errors"
	"testing"

	"go.mongodb.org/mongo-driver/bson"
)

func TestTranslateDefaults(t *testing.T) {
	q, err := Translate(Params{}, 0)
	if err != nil {
		t.Fatalf("Translate() error = %v", err)
	}
	if q.Filter != nil {
		t.Errorf("Filter = %v, expected nil (match all)", q.Filter)
	}
	if q.Projection != nil {
		t.Errorf("Projection = %v, expected nil (all fields)", q.Projection)
	}
	if q.Sort != nil {
		t.Errorf("Sort = %v, expected nil (natural order)", q.Sort)
	}
	if q.Skip != 0 || q.Limit != 0 {
		t.Errorf("Skip/Limit = %d/%d, expected 0/0", q.Skip, q.Limit)
	}
	if q.CountOnly {
		t.Error("CountOnly = true for absent count parameter")
	}
}

func TestTranslateDefaultLimit(t *testing.T) {
	q, err := Translate(Params{}, 100)
	if err != nil {
		t.Fatalf("Translate() error = %v", err)
	}
	if q.Limit != 100 {
		t.Errorf("Limit = %d, expected default 100", q.Limit)
	}

	q, err = Translate(Params{Limit: "5"}, 100)
	if err != nil {
		t.Fatalf("Translate() error = %v", err)
	}
	if q.Limit != 5 {
		t.Errorf("Limit = %d, expected explicit 5 to override default", q.Limit)
	}
}

func TestTranslateFilterAndProjection(t *testing.T) {
	q, err := Translate(Params{
		Where:  `{"completed":false}`,
		Select: `{"name":1,"deadline":1}`,
	}, 0)
	if err != nil {
		t.Fatalf("Translate() error = %v", err)
	}
	if got := q.Filter["completed"]; got != false {
		t.Errorf("Filter[completed] = %v, expected false", got)
	}
	if len(q.Projection) != 2 {
		t.Errorf("Projection = %v, expected two fields", q.Projection)
	}
}

func TestTranslateSortPreservesOrder(t *testing.T) {
	q, err := Translate(Params{Sort: `{"deadline":1,"name":-1}`}, 0)
	if err != nil {
		t.Fatalf("Translate() error = %v", err)
	}
	expected := bson.D{{Key: "deadline", Value: int32(1)}, {Key: "name", Value: int32(-1)}}
	if len(q.Sort) != len(expected) {
		t.Fatalf("Sort = %v, expected %v", q.Sort, expected)
	}
	for i := range expected {
		if q.Sort[i] != expected[i] {
			t.Errorf("Sort[%d] = %v, expected %v", i, q.Sort[i], expected[i])
		}
	}
}

func TestTranslateCountMode(t *testing.T) {
	q, err := Translate(Params{Count: "true", Where: `{"name":"Alice"}`}, 0)
	if err != nil {
		t.Fatalf("Translate() error = %v", err)
	}
	if !q.CountOnly {
		t.Error("CountOnly = false for count=true")
	}

	q, err = Translate(Params{Count: "yes"}, 0)
	if err != nil {
		t.Fatalf("Translate() error = %v", err)
	}
	if q.CountOnly {
		t.Error("CountOnly = true for count=yes; only the literal \"true\" enables count mode")
	}
}

func TestTranslateRejectsMalformedParameters(t *testing.T) {
	tests := []struct {
		name  string
		p     Params
		param string
	}{
		{"malformed where JSON", Params{Where: `{"completed":`}, "where"},
		{"malformed select JSON", Params{Select: `[not json`}, "select"},
		{"malformed sort JSON", Params{Sort: `{"deadline":`}, "sort"},
		{"sort is not an object", Params{Sort: `[1,2]`}, "sort"},
		{"sort direction not numeric", Params{Sort: `{"deadline":"up"}`}, "sort"},
		{"skip not an integer", Params{Skip: "abc"}, "skip"},
		{"skip negative", Params{Skip: "-1"}, "skip"},
		{"limit not an integer", Params{Limit: "abc"}, "limit"},
		{"limit fractional", Params{Limit: "1.5"}, "limit"},
		{"limit negative", Params{Limit: "-10"}, "limit"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Translate(tt.p, 0)
			if err == nil {
				t.Fatal("Translate() succeeded, expected a parse error")
			}
			var parseErr *ParseError
			if !errors.As(err, &parseErr) {
				t.Fatalf("error type = %T, expected *ParseError", err)
			}
			if parseErr.Param != tt.param {
				t.Errorf("ParseError.Param = %q, expected %q", parseErr.Param, tt.param)
			}
		})
	}
}

func TestParseID(t *testing.T) {
	if _, err := ParseID("abcdefabcdefabcdefabcdef"); err != nil {
		t.Errorf("ParseID(valid hex) error = %v", err)
	}
	if _, err := ParseID("nope"); !errors.Is(err, ErrInvalidID) {
		t.Errorf("ParseID(malformed) error = %v, expected ErrInvalidID", err)
	}
}
