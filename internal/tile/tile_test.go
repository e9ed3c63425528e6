package tile

import "testing"

func TestValid(t *testing.T) {
	cases := []struct {
		name string
		c    Coordinate
		want bool
	}{
		{"origin at zoom 0", Coordinate{0, 0, 0}, true},
		{"x out of range at zoom 0", Coordinate{1, 0, 0}, false},
		{"y out of range at zoom 0", Coordinate{0, 1, 0}, false},
		{"last tile at zoom 3", Coordinate{7, 7, 3}, true},
		{"x just past the grid", Coordinate{8, 7, 3}, false},
		{"y just past the grid", Coordinate{7, 8, 3}, false},
		{"deep zoom in range", Coordinate{123456, 654321, 20}, true},
		{"zoom too deep for the grid math", Coordinate{0, 0, 32}, false},
	}

	for _, tc := range cases {
		if got := tc.c.Valid(); got != tc.want {
			t.Errorf("%s: Valid() = %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestString(t *testing.T) {
	c := Coordinate{X: 5, Y: 9, Z: 4}
	if got := c.String(); got != "4/5/9" {
		t.Errorf("String() = %q, want %q", got, "4/5/9")
	}
}

func TestMaptileRoundTrip(t *testing.T) {
	c := Coordinate{X: 17, Y: 11, Z: 5}
	if got := FromMaptile(c.Maptile()); got != c {
		t.Errorf("FromMaptile(Maptile()) = %v, want %v", got, c)
	}
}

func TestFlipY(t *testing.T) {
	cases := []struct {
		c    Coordinate
		want uint32
	}{
		{Coordinate{0, 0, 0}, 0},
		{Coordinate{3, 0, 3}, 7},
		{Coordinate{3, 7, 3}, 0},
		{Coordinate{10, 5, 4}, 10},
	}
	for _, tc := range cases {
		if got := tc.c.FlipY(); got != tc.want {
			t.Errorf("%v.FlipY() = %d, want %d", tc.c, got, tc.want)
		}
	}
}
