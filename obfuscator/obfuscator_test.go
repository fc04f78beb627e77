package obfuscator

import (
	"errors"
	"strings"
	"testing"
)

func TestEncodeKnownPayload(t *testing.T) {
	cases := []struct {
		name string
		o    *Obfuscator
		in   string
		want string
	}{
		{"bytes", New(DefaultKey), "a", "ig=="},
		{"charcodes", New(DefaultKey, WithCharCodes()), "a", "woo="},
		{"zero key", New(0), "abc", "YWJj"},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := c.o.Encode(c.in); got != c.want {
				t.Fatalf("Encode(%q) = %q, want %q", c.in, got, c.want)
			}
		})
	}
}

func TestRoundTrip(t *testing.T) {
	inputs := []string{
		"a",
		`print("Welcome to LuaCrypt!")` + "\n" + `warn("This script is protected.")`,
		"local t = {1, 2, 3}\nfor i, v in ipairs(t) do print(i, v) end",
		"unicode: héllo wörld ✓ 🎮",
		strings.Repeat("x", 4096),
	}

	for _, mode := range []struct {
		name string
		o    *Obfuscator
	}{
		{"bytes", New(DefaultKey)},
		{"charcodes", New(DefaultKey, WithCharCodes())},
		{"other key", New(17)},
	} {
		for _, in := range inputs {
			got, err := mode.o.Decode(mode.o.Encode(in))
			if err != nil {
				t.Fatalf("%s: decode: %v", mode.name, err)
			}
			if got != in {
				t.Fatalf("%s: round trip mismatch: %q != %q", mode.name, got, in)
			}
		}
	}
}

func TestObfuscateIsDeterministic(t *testing.T) {
	o := New(DefaultKey)
	code := `print("hi")`

	first, second := o.Obfuscate(code), o.Obfuscate(code)
	if first != second {
		t.Fatalf("output differs between calls")
	}
}

func TestObfuscateWrapper(t *testing.T) {
	out := New(DefaultKey).Obfuscate("a")

	if !strings.HasPrefix(out, "--[[This File was protects with LuaCrypt Pro]]\nreturn(function(...)\n") {
		t.Fatalf("unexpected header: %q", out[:60])
	}
	if !strings.HasSuffix(out, "\nend)(...)") {
		t.Fatalf("unexpected trailer")
	}
	for _, want := range []string{
		`local _src = __xor(__b64d("ig=="), 235)`,
		"local s,r = pcall(main)",
		"local function UXqHCrTc()",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("wrapper missing %q", want)
		}
	}
	if strings.Count(out, "UXqHCrTc") != 1 {
		t.Fatalf("anti-debug stub should only be defined")
	}
}

func TestDeobfuscate(t *testing.T) {
	src := "game:GetService(\"Players\")"

	for _, o := range []*Obfuscator{New(DefaultKey), New(3), New(DefaultKey, WithCharCodes())} {
		got, err := o.Deobfuscate(o.Obfuscate(src))
		if err != nil {
			t.Fatalf("deobfuscate: %v", err)
		}
		if got != src {
			t.Fatalf("got %q, want %q", got, src)
		}
	}

	// The key is read from the wrapper, not the receiver.
	got, err := New(1).Deobfuscate(New(200).Obfuscate(src))
	if err != nil || got != src {
		t.Fatalf("cross-key deobfuscate: %q, %v", got, err)
	}
}

func TestDeobfuscateRejectsPlainText(t *testing.T) {
	_, err := New(DefaultKey).Deobfuscate(`print("not wrapped")`)
	if !errors.Is(err, ErrNoPayload) {
		t.Fatalf("expected ErrNoPayload, got %v", err)
	}
}
