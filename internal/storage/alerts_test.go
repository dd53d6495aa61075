package storage

import "testing"

func TestTextArrayNeverBindsNil(t *testing.T) {
	got := textArray(nil)
	if got == nil {
		t.Fatal("nil slice must bind as an empty array, not SQL NULL")
	}
	if len(got) != 0 {
		t.Fatalf("expected empty array, got %v", got)
	}

	populated := textArray([]string{"acct-1"})
	if len(populated) != 1 || populated[0] != "acct-1" {
		t.Fatalf("populated slice must pass through unchanged, got %v", populated)
	}
}

func TestHistoryFilterClampsLimit(t *testing.T) {
	cases := []struct {
		limit int
		want  int
	}{
		{limit: 0, want: defaultHistoryLimit},
		{limit: -5, want: defaultHistoryLimit},
		{limit: 50, want: 50},
		{limit: maxHistoryLimit + 1, want: maxHistoryLimit},
	}
	for _, tc := range cases {
		if got := (HistoryFilter{Limit: tc.limit}).clampedLimit(); got != tc.want {
			t.Errorf("limit %d: expected %d, got %d", tc.limit, tc.want, got)
		}
	}
}
