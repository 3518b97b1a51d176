package gnssio

import (
	"reflect"
	"strings"
	"testing"
)

func TestReadStationList(t *testing.T) {
	input := `
# reference network
ALGO ALG2 ALG3
BREW

  CHUR   CHU2
`
	entries, err := ReadStationList(strings.NewReader(input))
	if err != nil {
		t.Fatalf("ReadStationList: %v", err)
	}

	want := []StationEntry{
		{Alternatives: []string{"ALGO", "ALG2", "ALG3"}},
		{Alternatives: []string{"BREW"}},
		{Alternatives: []string{"CHUR", "CHU2"}},
	}
	if !reflect.DeepEqual(entries, want) {
		t.Fatalf("entries = %v, want %v", entries, want)
	}
	if entries[0].Name() != "ALGO" {
		t.Fatalf("Name() = %q, want ALGO", entries[0].Name())
	}
}

func TestReadStationListEmpty(t *testing.T) {
	if _, err := ReadStationList(strings.NewReader("# only comments\n")); err == nil {
		t.Fatal("expected error for empty station list")
	}
}
