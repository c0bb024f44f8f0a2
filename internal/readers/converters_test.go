package readers

import "testing"

func TestInt(t *testing.T) {
	tests := []struct {
		name  string
		input any
		want  int
		ok    bool
	}{
		{name: "int", input: 42, want: 42, ok: true},
		{name: "int64", input: int64(42), want: 42, ok: true},
		{name: "json number", input: float64(42), want: 42, ok: true},
		{name: "decimal string", input: "42", want: 42, ok: true},
		{name: "padded string", input: " 42 ", want: 42, ok: true},
		{name: "hex string", input: "0x2a", ok: false},
		{name: "empty string", input: "", ok: false},
		{name: "nil", input: nil, ok: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Int(tt.input)
			if ok != tt.ok || got != tt.want {
				t.Errorf("Int(%v) = %d, %v; want %d, %v", tt.input, got, ok, tt.want, tt.ok)
			}
		})
	}
}

func TestInt64(t *testing.T) {
	// Traffic counters overflow 32 bits on long uptimes.
	got, ok := Int64("4294967296")
	if !ok || got != 4294967296 {
		t.Errorf("Int64 = %d, %v", got, ok)
	}
	if _, ok := Int64("not a number"); ok {
		t.Errorf("Int64 accepted garbage")
	}
}

func TestFloat(t *testing.T) {
	tests := []struct {
		input any
		want  float64
		ok    bool
	}{
		{input: "61.5", want: 61.5, ok: true},
		{input: float64(61.5), want: 61.5, ok: true},
		{input: 61, want: 61, ok: true},
		{input: "61,5", ok: false},
		{input: nil, ok: false},
	}
	for _, tt := range tests {
		got, ok := Float(tt.input)
		if ok != tt.ok || got != tt.want {
			t.Errorf("Float(%v) = %v, %v; want %v, %v", tt.input, got, ok, tt.want, tt.ok)
		}
	}
}

func TestBool(t *testing.T) {
	truthy := []any{true, 1, float64(2), "1", "on", "TRUE", "Enabled", " yes "}
	for _, input := range truthy {
		if got, ok := Bool(input); !ok || !got {
			t.Errorf("Bool(%v) = %v, %v; want true", input, got, ok)
		}
	}
	falsy := []any{false, 0, "0", "off", "False", "disabled", "no", ""}
	for _, input := range falsy {
		if got, ok := Bool(input); !ok || got {
			t.Errorf("Bool(%v) = %v, %v; want false", input, got, ok)
		}
	}
	if _, ok := Bool("maybe"); ok {
		t.Errorf("Bool accepted an unknown spelling")
	}
	if _, ok := Bool(nil); ok {
		t.Errorf("Bool accepted nil")
	}
}

func TestString(t *testing.T) {
	if got, ok := String("  RT-AX88U  "); !ok || got != "RT-AX88U" {
		t.Errorf("String = %q, %v", got, ok)
	}
	// Unset nvram keys come back as empty strings; report them absent.
	if _, ok := String(""); ok {
		t.Errorf("String reported an empty value as present")
	}
	if _, ok := String(42); ok {
		t.Errorf("String accepted a non-string")
	}
}
