package similarity

import (
	"math"
	"testing"
)

func TestRatioKnownPairs(t *testing.T) {
	t.Parallel()

	tests := []struct {
		a, b string
		want float64
	}{
		{"AI Development News", "AI Development Updates", 34.0 / 41.0},
		{"OpenAI releases GPT-5", "OpenAI releases GPT-5 model", 0.875},
		{"apple", "banana", 4.0 / 22.0},
		{"Same Title", "same title", 1},
		{"", "", 1},
	}

	for _, tt := range tests {
		got := Ratio(tt.a, tt.b)
		if math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("Ratio(%q, %q) = %.4f, want %.4f", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestIsDuplicateThresholds(t *testing.T) {
	t.Parallel()

	a, b := "AI Development News", "AI Development Updates"
	if !IsDuplicate(a, b, 0.8) {
		t.Fatalf("expected duplicate at threshold 0.8")
	}
	if IsDuplicate(a, b, 0.85) {
		t.Fatalf("expected no duplicate at threshold 0.85")
	}
}

func TestIsDuplicateEmptyTitles(t *testing.T) {
	t.Parallel()

	cases := [][2]string{
		{"", "anything"},
		{"anything", ""},
		{"", ""},
		{"   ", "   "},
	}
	for _, c := range cases {
		if IsDuplicate(c[0], c[1], 0.8) {
			t.Errorf("IsDuplicate(%q, %q) = true, want false", c[0], c[1])
		}
		if IsDuplicate(c[0], c[1], 0) {
			t.Errorf("IsDuplicate(%q, %q, 0) = true, want false", c[0], c[1])
		}
	}
}

func TestIsDuplicateProperties(t *testing.T) {
	t.Parallel()

	titles := []string{
		"AI Development News",
		"AI Development Updates",
		"Anthropic publishes interpretability research",
		"Meta releases Llama 4",
		"Meta released Llama 4!",
		"인공지능 뉴스",
		"인공지능 소식",
		"x",
	}
	thresholds := []float64{0, 0.3, 0.5, 0.8, 0.85, 0.95, 1}

	for _, a := range titles {
		for _, th := range thresholds {
			if !IsDuplicate(a, a, th) {
				t.Errorf("identity failed for %q at %.2f", a, th)
			}
		}
		for _, b := range titles {
			if Ratio(a, b) != Ratio(b, a) {
				t.Errorf("ratio not symmetric for %q / %q", a, b)
			}
			for i, t1 := range thresholds {
				if IsDuplicate(a, b, t1) != IsDuplicate(b, a, t1) {
					t.Errorf("symmetry failed for %q / %q at %.2f", a, b, t1)
				}
				if !IsDuplicate(a, b, t1) {
					continue
				}
				for _, t2 := range thresholds[:i] {
					if !IsDuplicate(a, b, t2) {
						t.Errorf("monotonicity failed for %q / %q: dup at %.2f but not at %.2f", a, b, t1, t2)
					}
				}
			}
		}
	}
}

func TestRatioBounds(t *testing.T) {
	t.Parallel()

	pairs := [][2]string{
		{"abc", "xyz"},
		{"short", "a much longer headline about models"},
		{"GPU shortage", "gpu SHORTAGE"},
	}
	for _, p := range pairs {
		r := Ratio(p[0], p[1])
		if r < 0 || r > 1 {
			t.Errorf("Ratio(%q, %q) = %f out of range", p[0], p[1], r)
		}
	}
	if Ratio("abc", "xyz") != 0 {
		t.Errorf("disjoint strings should have ratio 0")
	}
}
