// internal/reading/reading_test.go
package reading

import "testing"

func TestTokenize(t *testing.T) {
	cases := []struct {
		name    string
		payload string
		rows    int
		want    map[[2]int]float64 // {row,col} -> value
	}{
		{
			name:    "single row",
			payload: "76,22.5,55,12,0",
			rows:    1,
			want: map[[2]int]float64{
				{0, 0}: 76, {0, 1}: 22.5, {0, 2}: 55, {0, 3}: 12,
			},
		},
		{
			name:    "pipe advances row",
			payload: "76,22.5,55,12,0,|,44,19.1,48.2,13,0,|",
			rows:    2,
			want: map[[2]int]float64{
				{0, 0}: 76, {0, 1}: 22.5,
				{1, 0}: 44, {1, 1}: 19.1, {1, 3}: 13,
			},
		},
		{
			name:    "short row keeps remaining fields zero",
			payload: "58,11.5,|,77,30",
			rows:    2,
			want: map[[2]int]float64{
				{0, 0}: 58, {0, 1}: 11.5, {0, 2}: 0,
				{1, 0}: 77, {1, 1}: 30,
			},
		},
		{
			name:    "rows past the fifth are dropped",
			payload: "1,|,2,|,3,|,4,|,5,|,6,|,7",
			rows:    5,
			want: map[[2]int]float64{
				{0, 0}: 1, {4, 0}: 5,
			},
		},
		{
			name:    "extra fields in a row are ignored",
			payload: "76,1,2,3,4,5,6,7,|,44,9",
			rows:    2,
			want: map[[2]int]float64{
				{0, 4}: 4,
				{1, 0}: 44, {1, 1}: 9,
			},
		},
		{
			// Endpoints sometimes glue the row separator onto the last
			// field instead of sending it as its own token.
			name:    "separator glued to last field",
			payload: "77,22.5,55.0,0|",
			rows:    1,
			want: map[[2]int]float64{
				{0, 0}: 77, {0, 1}: 22.5, {0, 2}: 55, {0, 3}: 0,
			},
		},
		{
			name:    "garbage fields read as zero",
			payload: "76,abc,22.5",
			rows:    1,
			want: map[[2]int]float64{
				{0, 1}: 0, {0, 2}: 22.5,
			},
		},
		{
			name:    "empty payload",
			payload: "",
			rows:    0,
			want:    nil,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			g := Tokenize(tc.payload)
			if got := g.Populated(); got != tc.rows {
				t.Fatalf("Populated() = %d, want %d", got, tc.rows)
			}
			for pos, want := range tc.want {
				if got := g[pos[0]][pos[1]]; got != want {
					t.Errorf("grid[%d][%d] = %v, want %v", pos[0], pos[1], got, want)
				}
			}
		})
	}
}

func TestGridCode(t *testing.T) {
	g := Tokenize("77,1,2,|,28,3")
	if g.Code(0) != 77 || g.Code(1) != 28 || g.Code(2) != 0 {
		t.Fatalf("codes = %d,%d,%d, want 77,28,0", g.Code(0), g.Code(1), g.Code(2))
	}
}

func TestLeadingFloat(t *testing.T) {
	cases := []struct {
		in   string
		want float64
	}{
		{"22.5", 22.5},
		{"-3.25", -3.25},
		{"12|", 12},
		{"7abc", 7},
		{"1e2", 100},
		{"abc", 0},
		{"", 0},
		{".", 0},
	}
	for _, tc := range cases {
		if got := leadingFloat(tc.in); got != tc.want {
			t.Errorf("leadingFloat(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}
