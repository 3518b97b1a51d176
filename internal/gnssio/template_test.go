package gnssio

import "testing"

func TestTemplateExpand(t *testing.T) {
	tmpl := Template("out/{station}/track.{prn}.{timeStart}.json")
	got, err := tmpl.Expand(map[string]string{
		"station":   "ALGO",
		"prn":       "G07",
		"timeStart": "20260314T000000",
	})
	if err != nil {
		t.Fatalf("Expand: %v", err)
	}
	want := "out/ALGO/track.G07.20260314T000000.json"
	if got != want {
		t.Fatalf("Expand = %q, want %q", got, want)
	}
}

func TestTemplateExpandUnknownVariable(t *testing.T) {
	tmpl := Template("out/{station}/{typo}.json")
	if _, err := tmpl.Expand(map[string]string{"station": "ALGO"}); err == nil {
		t.Fatal("expected error for unknown placeholder")
	}
}

func TestTemplateWithoutPlaceholders(t *testing.T) {
	got, err := Template("plain/path.json").Expand(nil)
	if err != nil || got != "plain/path.json" {
		t.Fatalf("Expand = %q, %v", got, err)
	}
}

func TestTemplateIsSet(t *testing.T) {
	if Template("").IsSet() {
		t.Fatal("empty template reported as set")
	}
	if !Template("x").IsSet() {
		t.Fatal("non-empty template reported as unset")
	}
}
