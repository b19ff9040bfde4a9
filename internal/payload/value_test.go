package payload

import (
	"errors"
	"math"
	"testing"
)

func TestValueSerialization(t *testing.T) {
	nested := NewObject()
	nested.Set("b", Bool(true))
	nested.Set("a", Null())

	tests := []struct {
		name  string
		value Value
		want  string
	}{
		{"zero value is null", Value{}, `null`},
		{"false", Bool(false), `false`},
		{"negative int", Int(-12), `-12`},
		{"float", Float(1.5), `1.5`},
		{"whole float", Float(2), `2`},
		{"tiny float", Float(1e-9), `1e-09`},
		{"string escapes", String("say \"hi\"\n"), `"say \"hi\"\n"`},
		{"html is not escaped", String("<b>&</b>"), `"<b>&</b>"`},
		{"unicode", String("café ☕"), `"café ☕"`},
		{"empty array", Array(), `[]`},
		{"strings", Strings("x", "y"), `["x","y"]`},
		{"object keeps insertion order", ObjectValue(nested), `{"b":true,"a":null}`},
		{"nil object", ObjectValue(nil), `{}`},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := tc.value.MarshalJSON()
			if err != nil {
				t.Fatalf("MarshalJSON: %v", err)
			}
			if string(got) != tc.want {
				t.Fatalf("MarshalJSON() = %s, want %s", got, tc.want)
			}
		})
	}
}

func TestValueRejectsNonFiniteNumbers(t *testing.T) {
	for _, f := range []float64{math.NaN(), math.Inf(1), math.Inf(-1)} {
		_, err := Array(Float(f)).MarshalJSON()
		if !errors.Is(err, ErrUnsupportedNumber) {
			t.Fatalf("expected ErrUnsupportedNumber for %v, got %v", f, err)
		}
	}
}

func TestObjectSetKeepsPosition(t *testing.T) {
	o := NewObject()
	o.Set("first", Int(1))
	o.Set("second", Int(2))
	o.Set("first", Int(3))

	got, err := o.MarshalJSON()
	if err != nil {
		t.Fatalf("MarshalJSON: %v", err)
	}
	if string(got) != `{"first":3,"second":2}` {
		t.Fatalf("unexpected document %s", got)
	}
	if o.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", o.Len())
	}
}

func TestZeroObjectIsUsable(t *testing.T) {
	var o Object
	o.Set("k", String("v"))
	if v, ok := o.Get("k"); !ok || v.Kind() != KindString {
		t.Fatalf("expected string value, got %v %v", v.Kind(), ok)
	}
}
