package random_test

import (
	"strings"
	"testing"

	"triad-service/pkg/utils/random"
)

func TestCodeUsesAlphabet(t *testing.T) {
	code := random.Code(32)
	if len(code) != 32 {
		t.Fatalf("expected 32 chars, got %d", len(code))
	}
	for _, r := range code {
		if !strings.ContainsRune("ABCDEFGHJKLMNPQRSTUVWXYZ23456789", r) {
			t.Fatalf("unexpected rune %q in %s", r, code)
		}
	}
}

func TestSampleIsDistinct(t *testing.T) {
	for round := 0; round < 50; round++ {
		got := random.Sample(10, 5)
		if len(got) != 5 {
			t.Fatalf("expected 5 indexes, got %d", len(got))
		}
		seen := map[int]bool{}
		for _, v := range got {
			if v < 0 || v >= 10 {
				t.Fatalf("index out of range: %d", v)
			}
			if seen[v] {
				t.Fatalf("duplicate index %d in %v", v, got)
			}
			seen[v] = true
		}
	}
}

func TestSampleClampsToPool(t *testing.T) {
	if got := random.Sample(3, 5); len(got) != 3 {
		t.Fatalf("expected 3 indexes, got %v", got)
	}
	if got := random.Sample(3, 0); len(got) != 0 {
		t.Fatalf("expected empty sample, got %v", got)
	}
}
