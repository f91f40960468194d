package palette

import (
	"math/rand/v2"
	"testing"
)

func TestColorStringAndParse(t *testing.T) {
	tests := []struct {
		in   string
		want Color
		out  string
	}{
		{"rgba(12,200,7,1)", Color{12, 200, 7, 1}, "rgba(12,200,7,1)"},
		{"rgba(0, 0, 255, 0.1)", Color{0, 0, 255, 0.1}, "rgba(0,0,255,0.1)"},
		{"rgb(1,2,3)", Color{1, 2, 3, 1}, "rgba(1,2,3,1)"},
	}
	for _, tc := range tests {
		got, err := ParseColor(tc.in)
		if err != nil {
			t.Fatalf("ParseColor(%q): %v", tc.in, err)
		}
		if got != tc.want {
			t.Errorf("ParseColor(%q) = %+v, want %+v", tc.in, got, tc.want)
		}
		if got.String() != tc.out {
			t.Errorf("String() = %q, want %q", got.String(), tc.out)
		}
	}

	for _, bad := range []string{"", "#ffffff", "rgba(1,2,3)", "rgb(256,0,0)", "rgba(1,2,3,2)", "rgba(a,b,c,1)"} {
		if _, err := ParseColor(bad); err == nil {
			t.Errorf("ParseColor(%q) should fail", bad)
		}
	}
}

func TestDeriveFillIsPure(t *testing.T) {
	c := Color{R: 10, G: 20, B: 30, A: 1}
	f := DeriveFill(c)
	if f.String() != "rgba(10,20,30,0.1)" {
		t.Fatalf("fill = %s", f)
	}
	if c.A != 1 {
		t.Fatal("DeriveFill mutated its input")
	}
	if DeriveFill(f) != f {
		t.Fatal("DeriveFill should be idempotent")
	}
	if c.Hex() != "#0a141e" {
		t.Fatalf("hex = %s", c.Hex())
	}
}

func TestGenerateOpaque(t *testing.T) {
	r := rand.New(rand.NewPCG(1, 2))
	p := Generate(r, 5)
	if len(p) != 5 {
		t.Fatalf("len = %d", len(p))
	}
	for i, c := range p {
		if c.A != 1 {
			t.Errorf("color %d alpha = %v", i, c.A)
		}
	}
	if len(Generate(r, -1)) != 0 {
		t.Fatal("negative count should give an empty palette")
	}
}
