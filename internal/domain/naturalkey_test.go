package domain

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestNaturalKeyDeterministic(t *testing.T) {
	org := uuid.MustParse("123e4567-e89b-12d3-a456-426614174000")
	date := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)

	first := NaturalKey(org, date, "C101", "vagao", "manha")
	second := NaturalKey(org, date, "C101", "vagao", "manha")
	if first != second {
		t.Fatalf("same tuple must produce the same key: %s vs %s", first, second)
	}
	if len(first) != 32 {
		t.Fatalf("expected 32 hex chars, got %d (%s)", len(first), first)
	}
}

func TestNaturalKeyNormalizesParts(t *testing.T) {
	org := uuid.New()
	date := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)

	plain := NaturalKey(org, date, "c101", "vagao")
	noisy := NaturalKey(org, date, "  C101 ", "VAGAO")
	if plain != noisy {
		t.Fatalf("case and whitespace must not change the key")
	}
}

func TestNaturalKeyDistinguishesTuples(t *testing.T) {
	org := uuid.New()
	date := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)

	base := NaturalKey(org, date, "C101", "vagao", "manha")

	if other := NaturalKey(org, date, "C102", "vagao", "manha"); other == base {
		t.Errorf("different pen must produce a different key")
	}
	if other := NaturalKey(org, date, "C101", "vagao", "tarde"); other == base {
		t.Errorf("different shift must produce a different key")
	}
	if other := NaturalKey(org, date.AddDate(0, 0, 1), "C101", "vagao", "manha"); other == base {
		t.Errorf("different date must produce a different key")
	}
	if other := NaturalKey(uuid.New(), date, "C101", "vagao", "manha"); other == base {
		t.Errorf("different organization must produce a different key")
	}
	if other := NaturalKey(org, date, "vagao", "C101", "manha"); other == base {
		t.Errorf("part order is significant")
	}
}

func TestNaturalKeyTimeOfDayIgnored(t *testing.T) {
	org := uuid.New()
	midnight := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)
	afternoon := time.Date(2024, 3, 15, 14, 30, 0, 0, time.UTC)

	if NaturalKey(org, midnight, "C101") != NaturalKey(org, afternoon, "C101") {
		t.Fatalf("only the calendar date participates in the key")
	}
}
