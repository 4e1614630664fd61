package pipeline

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestWindows(t *testing.T) {
	tests := []struct {
		name string
		n, w int
		want [][]int
	}{
		{"twelve by five", 12, 5, [][]int{{1, 2, 3, 4, 5}, {6, 7, 8, 9, 10}, {11, 12}}},
		{"exact multiple", 10, 5, [][]int{{1, 2, 3, 4, 5}, {6, 7, 8, 9, 10}}},
		{"fewer than window", 3, 5, [][]int{{1, 2, 3}}},
		{"window of one", 3, 1, [][]int{{1}, {2}, {3}}},
		{"zero count", 0, 5, nil},
		{"negative count", -4, 5, nil},
		{"zero window treated as one", 2, 0, [][]int{{1}, {2}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Windows(tt.n, tt.w)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Windows(%d, %d) mismatch (-want +got):\n%s", tt.n, tt.w, diff)
			}
		})
	}
}

func TestWindows_CoversRangeOnce(t *testing.T) {
	for n := 1; n <= 40; n++ {
		for w := 1; w <= 7; w++ {
			next := 1
			for _, window := range Windows(n, w) {
				if len(window) == 0 || len(window) > w {
					t.Fatalf("Windows(%d, %d) has window of size %d", n, w, len(window))
				}
				for _, i := range window {
					if i != next {
						t.Fatalf("Windows(%d, %d) index %d, want %d", n, w, i, next)
					}
					next++
				}
			}
			if next != n+1 {
				t.Fatalf("Windows(%d, %d) covered up to %d", n, w, next-1)
			}
		}
	}
}
