//nolint:testpackage // Testing internal model requires same package access
package model

import (
	"reflect"
	"testing"
)

func TestLabelEncoder_RoundTrip(t *testing.T) {
	enc := &LabelEncoder{}
	enc.Fit([]string{"сеть", "почта", "сеть", "печать", "почта"})

	if enc.Len() != 3 {
		t.Fatalf("expected 3 classes, got %d", enc.Len())
	}
	want := []string{"печать", "почта", "сеть"}
	if !reflect.DeepEqual(enc.Classes, want) {
		t.Fatalf("classes = %v, want %v", enc.Classes, want)
	}

	for _, class := range want {
		idx, err := enc.Transform(class)
		if err != nil {
			t.Fatalf("Transform(%q): %v", class, err)
		}
		back, err := enc.Inverse(idx)
		if err != nil {
			t.Fatalf("Inverse(%d): %v", idx, err)
		}
		if back != class {
			t.Errorf("round trip %q -> %d -> %q", class, idx, back)
		}
	}
}

func TestLabelEncoder_UnknownClass(t *testing.T) {
	enc := &LabelEncoder{}
	enc.Fit([]string{"почта"})

	if _, err := enc.Transform("телефония"); err == nil {
		t.Error("expected error for unknown class")
	}
	if _, err := enc.Inverse(5); err == nil {
		t.Error("expected error for out-of-range index")
	}
}

func TestLabelEncoder_RefitRebuilds(t *testing.T) {
	enc := &LabelEncoder{}
	enc.Fit([]string{"почта", "сеть"})
	if _, err := enc.Transform("почта"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	enc.Fit([]string{"печать"})
	if _, err := enc.Transform("почта"); err == nil {
		t.Error("class from a previous fit must be unknown after refit")
	}
	if enc.Len() != 1 {
		t.Errorf("expected 1 class after refit, got %d", enc.Len())
	}
}
