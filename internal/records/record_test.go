package records

import (
	"errors"
	"testing"
)

func TestRecord_String_FormatsIntegralNumbers(t *testing.T) {
	t.Parallel()

	r := Record{Index: 4, Fields: map[string]any{
		"id_str":   "39",
		"id_int":   int64(39),
		"id_float": float64(39),
		"frac":     1.5,
		"nil":      nil,
	}}

	tests := []struct {
		key    string
		want   string
		wantOK bool
	}{
		{key: "id_str", want: "39", wantOK: true},
		{key: "id_int", want: "39", wantOK: true},
		{key: "id_float", want: "39", wantOK: true},
		{key: "frac", want: "1.5", wantOK: true},
		{key: "nil", wantOK: false},
		{key: "absent", wantOK: false},
	}
	for _, tc := range tests {
		got, ok := r.String(tc.key)
		if ok != tc.wantOK || got != tc.want {
			t.Fatalf("String(%q)=(%q,%v), want (%q,%v)", tc.key, got, ok, tc.want, tc.wantOK)
		}
	}
}

func TestRecord_Float_WidensIntegers(t *testing.T) {
	t.Parallel()

	r := Record{Fields: map[string]any{"a": int64(296), "b": 296.12, "c": "296"}}

	if got, ok := r.Float("a"); !ok || got != 296 {
		t.Fatalf("Float(a)=(%v,%v), want (296,true)", got, ok)
	}
	if got, ok := r.Float("b"); !ok || got != 296.12 {
		t.Fatalf("Float(b)=(%v,%v), want (296.12,true)", got, ok)
	}
	if _, ok := r.Float("c"); ok {
		t.Fatalf("Float(c) ok=true, want false for string value")
	}
}

func TestRecord_Int_RejectsFractions(t *testing.T) {
	t.Parallel()

	r := Record{Fields: map[string]any{"year": int64(2004), "bad": 2004.5, "f": float64(2000)}}
	if got, ok := r.Int("year"); !ok || got != 2004 {
		t.Fatalf("Int(year)=(%v,%v), want (2004,true)", got, ok)
	}
	if _, ok := r.Int("bad"); ok {
		t.Fatalf("Int(bad) ok=true, want false")
	}
	if got, ok := r.Int("f"); !ok || got != 2000 {
		t.Fatalf("Int(f)=(%v,%v), want (2000,true)", got, ok)
	}
}

func TestRecord_RequireString_BlankIsIncomplete(t *testing.T) {
	t.Parallel()

	r := Record{Index: 3, Fields: map[string]any{"userId": "  "}}
	_, err := r.RequireString("userId")

	var ie *IncompleteRecordError
	if !errors.As(err, &ie) {
		t.Fatalf("RequireString() err=%v, want *IncompleteRecordError", err)
	}
	if ie.Index != 3 || ie.Field != "userId" {
		t.Fatalf("IncompleteRecordError=%+v, want index=3 field=userId", ie)
	}
}

func TestRecord_Optional(t *testing.T) {
	t.Parallel()

	r := Record{Fields: map[string]any{"loc": "", "lat": nil, "lon": -0.12}}
	if got := r.OptionalString("loc"); got != nil {
		t.Fatalf("OptionalString(loc)=%v, want nil for blank", *got)
	}
	if got := r.OptionalFloat("lat"); got != nil {
		t.Fatalf("OptionalFloat(lat)=%v, want nil", *got)
	}
	if got := r.OptionalFloat("lon"); got == nil || *got != -0.12 {
		t.Fatalf("OptionalFloat(lon)=%v, want -0.12", got)
	}
}

func TestMalformedRecordError_Unwraps(t *testing.T) {
	t.Parallel()

	base := errors.New("boom")
	err := error(&MalformedRecordError{Index: 2, Err: base})
	if !errors.Is(err, base) {
		t.Fatalf("errors.Is(MalformedRecordError, base)=false, want true")
	}
}
