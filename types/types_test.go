package types_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/yaoapp/signals/types"
)

type celsius float64

// --- Priority ---

func TestPriority_Order(t *testing.T) {
	all := types.Priorities()
	if len(all) != 6 {
		t.Fatalf("expected 6 priorities, got %d", len(all))
	}
	for i := 1; i < len(all); i++ {
		if all[i-1] >= all[i] {
			t.Fatalf("priorities not ascending: %v", all)
		}
	}
	if types.Immediate != 1 || types.None != 6 {
		t.Fatalf("unexpected bounds: %d..%d", types.Immediate, types.None)
	}
	if types.Normal.String() != "NORMAL" {
		t.Fatalf("unexpected name: %s", types.Normal)
	}
	if got := types.Priority(9).String(); got != "Priority(9)" {
		t.Fatalf("unexpected name for invalid priority: %s", got)
	}
}

func TestLookupPriority(t *testing.T) {
	cases := []struct {
		in   any
		want types.Priority
	}{
		{"high", types.High},
		{" IMMEDIATE ", types.Immediate},
		{5, types.Low},
		{"2", types.High},
		{int64(6), types.None},
		{types.Moderate, types.Moderate},
	}
	for _, c := range cases {
		got, err := types.LookupPriority(c.in)
		if err != nil {
			t.Fatalf("LookupPriority(%v): %v", c.in, err)
		}
		if got != c.want {
			t.Fatalf("LookupPriority(%v) = %s, want %s", c.in, got, c.want)
		}
	}

	for _, in := range []any{"urgent", 0, 7, types.Priority(-1), nil} {
		if _, err := types.LookupPriority(in); !errors.Is(err, types.ErrInvalidPriority) {
			t.Fatalf("LookupPriority(%v): expected ErrInvalidPriority, got %v", in, err)
		}
	}
}

// --- Signature ---

func TestSignature_Generic(t *testing.T) {
	sig := types.Sig(types.TypeOf[int](), types.TypeOf[string]())
	if sig.IsGeneric() {
		t.Fatal("(int, string) reported generic")
	}

	g := sig.Generic()
	if !g.IsGeneric() || len(g) != 2 {
		t.Fatalf("unexpected generic form: %s", g)
	}
	if !types.Sig(nil, types.Any).IsGeneric() {
		t.Fatal("nil descriptors should count as Any")
	}
	if !types.Sig().IsGeneric() {
		t.Fatal("empty signature is generic")
	}
}

func TestSignature_Equal(t *testing.T) {
	a := types.Sig(types.TypeOf[int](), nil)
	b := types.Sig(types.TypeOf[int](), types.Any)
	if !a.Equal(b) {
		t.Fatalf("%s != %s", a, b)
	}
	if a.Key() != b.Key() {
		t.Fatalf("keys differ: %s vs %s", a.Key(), b.Key())
	}
	if a.Equal(types.Sig(types.TypeOf[int]())) {
		t.Fatal("different lengths compared equal")
	}

	// Distinct named types never share a key.
	f := types.Sig(types.TypeOf[float64]())
	c := types.Sig(types.TypeOf[celsius]())
	if f.Equal(c) || f.Key() == c.Key() {
		t.Fatalf("float64 and celsius collide: %s %s", f.Key(), c.Key())
	}
}

func TestSignature_Of(t *testing.T) {
	sig := types.Of(6, "Boo", nil)
	want := types.Sig(types.TypeOf[int](), types.TypeOf[string](), types.Any)
	if !sig.Equal(want) {
		t.Fatalf("Of = %s, want %s", sig, want)
	}
	if sig.String() != "(int, string, interface {})" {
		t.Fatalf("unexpected rendering: %s", sig)
	}
}

// --- Failure ---

func TestFailure_JSON(t *testing.T) {
	cause := errors.New("boom")
	f := &types.Failure{
		Kind:    "*errors.errorString",
		Message: "boom",
		Worker:  "SignalProcessor_1",
		Trace:   []types.Frame{{File: "slot.go", Function: "main.onEvent", Line: 12}},
		Err:     cause,
	}

	if !errors.Is(f, cause) {
		t.Fatal("Failure does not unwrap to its cause")
	}
	if f.Error() != "*errors.errorString: boom" {
		t.Fatalf("unexpected error text: %s", f.Error())
	}

	data, err := f.JSON()
	if err != nil {
		t.Fatalf("JSON: %v", err)
	}
	out := string(data)
	for _, key := range []string{`"type"`, `"message"`, `"thread"`, `"trace"`, `"filename"`, `"name"`, `"lineno"`} {
		if !strings.Contains(out, key) {
			t.Fatalf("missing %s in %s", key, out)
		}
	}
	if strings.Contains(out, `"line"`) {
		t.Fatalf("empty source line should be omitted: %s", out)
	}
}
