package extractor

import "testing"

func TestParseBRLNumber(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  *float64
	}{
		{name: "grouped price", input: "R$ 350.000,00", want: f(350000)},
		{name: "millions", input: "R$ 1.250.000,00", want: f(1250000)},
		{name: "small fee", input: "R$ 450,00", want: f(450)},
		{name: "decimal only", input: "120,5", want: f(120.5)},
		{name: "plain integer", input: "120", want: f(120)},
		{name: "embedded text", input: "IPTU: R$ 1.200,00 ao ano", want: f(1200)},
		{name: "consult us", input: "Consulte-nos", want: nil},
		{name: "empty", input: "", want: nil},
		{name: "currency only", input: "R$", want: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseBRLNumber(tt.input)
			switch {
			case tt.want == nil && got != nil:
				t.Fatalf("ParseBRLNumber(%q) = %v, want nil", tt.input, *got)
			case tt.want != nil && got == nil:
				t.Fatalf("ParseBRLNumber(%q) = nil, want %v", tt.input, *tt.want)
			case tt.want != nil && *got != *tt.want:
				t.Fatalf("ParseBRLNumber(%q) = %v, want %v", tt.input, *got, *tt.want)
			}
		})
	}
}

func TestParseCount(t *testing.T) {
	if got := ParseCount("3 quartos"); got == nil || *got != 3 {
		t.Fatalf("ParseCount = %v, want 3", got)
	}
	if got := ParseCount("sem número"); got != nil {
		t.Fatalf("ParseCount = %v, want nil", got)
	}
}

func TestNormalizeText(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{input: "  Casa   com \n\t quintal  ", want: "Casa com quintal"},
		{input: "\n\n", want: ""},
		{input: "já limpo", want: "já limpo"},
	}

	for _, tt := range tests {
		if got := NormalizeText(tt.input); got != tt.want {
			t.Fatalf("NormalizeText(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func f(v float64) *float64 {
	return &v
}
