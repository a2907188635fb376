package mathx

import "testing"

func TestClamp(t *testing.T) {
	if Clamp(-5, 0, 10) != 0 || Clamp(15, 0, 10) != 10 || Clamp(7, 0, 10) != 7 {
		t.Fatal("clamp failed")
	}
	if Clamp(15, 10, 0) != 10 {
		t.Fatal("swapped bounds not honoured")
	}
}

func TestBetween(t *testing.T) {
	if !Between(5, 0, 10) || Between(11, 0, 10) || !Between(5, 10, 0) {
		t.Fatal("between failed")
	}
}

func TestAbsDiff(t *testing.T) {
	if AbsDiff(uint32(3), uint32(10)) != 7 || AbsDiff(uint32(10), uint32(3)) != 7 {
		t.Fatal("unsigned absdiff failed")
	}
	if AbsDiff(-3, 4) != 7 {
		t.Fatal("signed absdiff failed")
	}
}

func TestSnapStep(t *testing.T) {
	cases := []struct{ v, lo, hi, step, want int64 }{
		{5, 0, 10, 1, 5},
		{5, 0, 10, 4, 4},
		{7, 0, 10, 4, 8},
		{11, 0, 10, 4, 8},
		{-3, 0, 10, 2, 0},
		{9, 1, 9, 0, 9},
	}
	for _, c := range cases {
		if got := SnapStep(c.v, c.lo, c.hi, c.step); got != c.want {
			t.Fatalf("SnapStep(%d,%d,%d,%d) = %d, want %d", c.v, c.lo, c.hi, c.step, got, c.want)
		}
	}
}
