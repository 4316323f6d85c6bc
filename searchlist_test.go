package stubdns

import (
	"slices"
	"testing"
)

func TestSearchListRootedName(t *testing.T) {
	got := searchList("example.org.", []string{"corp.example"}, 1)
	want := []string{"example.org."}
	if !slices.Equal(got, want) {
		t.Fatalf("searchList(rooted) = %v; want %v", got, want)
	}
}

func TestSearchListNoDomains(t *testing.T) {
	got := searchList("example.org", nil, 1)
	want := []string{"example.org."}
	if !slices.Equal(got, want) {
		t.Fatalf("searchList(no domains) = %v; want %v", got, want)
	}
}

func TestSearchListEnoughDots(t *testing.T) {
	got := searchList("db.svc", []string{"corp.example", "example.org"}, 1)
	want := []string{"db.svc.", "db.svc.corp.example.", "db.svc.example.org."}
	if !slices.Equal(got, want) {
		t.Fatalf("searchList(ndots met) = %v; want %v", got, want)
	}
}

func TestSearchListShortName(t *testing.T) {
	got := searchList("db", []string{"corp.example", "example.org"}, 1)
	want := []string{"db.corp.example.", "db.example.org.", "db."}
	if !slices.Equal(got, want) {
		t.Fatalf("searchList(short) = %v; want %v", got, want)
	}
}

func TestSearchListHighNdots(t *testing.T) {
	got := searchList("db.svc", []string{"corp.example"}, 3)
	want := []string{"db.svc.corp.example.", "db.svc."}
	if !slices.Equal(got, want) {
		t.Fatalf("searchList(ndots 3) = %v; want %v", got, want)
	}
}
