package points

import "testing"

func TestComputeMonotone(t *testing.T) {
	for c := 1; c <= 4; c++ {
		for r := 1; r <= 4; r++ {
			v, err := Compute(c, r)
			if err != nil {
				t.Fatalf("compute(%d,%d): %v", c, r, err)
			}
			if v < 0 {
				t.Fatalf("compute(%d,%d) negative: %d", c, r, v)
			}
			if c > 1 {
				prev, _ := Compute(c-1, r)
				if v < prev {
					t.Errorf("points decreased raising complexity: (%d,%d)=%d < (%d,%d)=%d", c, r, v, c-1, r, prev)
				}
			}
			if r > 1 {
				prev, _ := Compute(c, r-1)
				if v < prev {
					t.Errorf("points decreased raising risk: (%d,%d)=%d < (%d,%d)=%d", c, r, v, c, r-1, prev)
				}
			}
		}
	}
}

func TestComputeDeterministic(t *testing.T) {
	a, err := Compute(3, 4)
	if err != nil {
		t.Fatal(err)
	}
	b, err := Compute(3, 4)
	if err != nil {
		t.Fatal(err)
	}
	if a != b {
		t.Fatalf("compute(3,4) not stable: %d vs %d", a, b)
	}
	if a != 13 {
		t.Fatalf("compute(3,4) = %d, want 13", a)
	}
}

func TestComputeOutOfRange(t *testing.T) {
	cases := [][2]int{{0, 1}, {5, 1}, {1, 0}, {1, 5}, {-1, -1}}
	for _, c := range cases {
		if _, err := Compute(c[0], c[1]); err == nil {
			t.Errorf("compute(%d,%d): expected validation error", c[0], c[1])
		}
	}
}
