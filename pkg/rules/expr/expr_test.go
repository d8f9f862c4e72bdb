package expr

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestEvalComparisons(t *testing.T) {
	t.Parallel()

	values := map[string]any{
		"fl_deslocamento": "P",
		"fl_viagem":       true,
		"qt_usuarios":     3.0,
		"vl_contrato":     "1500",
		"empty":           "",
	}

	cases := []struct {
		expr string
		want bool
	}{
		{`fl_deslocamento == "P"`, true},
		{`fl_deslocamento == 'R'`, false},
		{`fl_deslocamento != R`, true},
		{`fl_viagem`, true},
		{`!fl_viagem`, false},
		{`fl_viagem == true && qt_usuarios == 3`, true},
		{`qt_usuarios > 3 || vl_contrato >= 1500`, true},
		{`qt_usuarios < 3`, false},
		{`qt_usuarios <= 3`, true},
		{`missing == null`, true},
		{`missing`, false},
		{`empty`, false},
		{`!(fl_viagem && missing != null)`, true},
		{``, true},
	}

	for _, tc := range cases {
		program, err := Compile(tc.expr)
		if err != nil {
			t.Fatalf("Compile(%q): %v", tc.expr, err)
		}
		got, err := program.Eval(values)
		if err != nil {
			t.Fatalf("Eval(%q): %v", tc.expr, err)
		}
		if got != tc.want {
			t.Fatalf("Eval(%q) = %v, want %v", tc.expr, got, tc.want)
		}
	}
}

func TestIdentifiers(t *testing.T) {
	t.Parallel()

	program := MustCompile(`tp_plano == "E" && (fl_viagem || !tp_plano)`)
	if diff := cmp.Diff([]string{"fl_viagem", "tp_plano"}, program.Identifiers()); diff != "" {
		t.Fatalf("identifiers mismatch (-want +got):\n%s", diff)
	}
}

func TestCompileErrors(t *testing.T) {
	t.Parallel()

	for _, src := range []string{
		`a = 1`,
		`a & b`,
		`a | b`,
		`"unterminated`,
		`(a == 1`,
		`a == `,
		`a > "x"`,
		`== 1`,
		`a == 1 b`,
	} {
		if _, err := Compile(src); err == nil {
			t.Fatalf("Compile(%q) expected error", src)
		}
	}
}
