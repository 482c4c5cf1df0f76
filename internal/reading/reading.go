// internal/reading/reading.go
package reading

import (
	"strconv"
	"strings"
)

// Rows is the fixed number of sensor rows per poll cycle.
const Rows = 5

// Fields is the fixed number of fields per row.
// Field 0 is the sensor-type code; fields 1..4 are measurements.
const Fields = 5

// Grid is one poll cycle's worth of readings.
// A row whose code field is zero terminates the populated set.
type Grid [Rows][Fields]float64

// Code returns the sensor-type code of row i.
func (g *Grid) Code(i int) int {
	return int(g[i][0])
}

// Populated returns the number of leading rows with a non-zero code.
func (g *Grid) Populated() int {
	for i := 0; i < Rows; i++ {
		if g[i][0] == 0 {
			return i
		}
	}
	return Rows
}

// Tokenize parses a validated payload into a Grid.
//
// Fields are comma-separated; a literal "|" token advances to the next
// row and resets the column index. Population stops once all rows are
// filled or tokens are exhausted. Unparseable fields read as zero.
func Tokenize(payload string) Grid {
	var g Grid
	row, col := 0, 0

	for _, tok := range strings.Split(payload, ",") {
		if tok == "|" {
			row++
			col = 0
			continue
		}
		if row >= Rows {
			break
		}
		if col >= Fields {
			continue
		}
		g[row][col] = leadingFloat(strings.TrimSpace(tok))
		col++
	}
	return g
}

// leadingFloat parses the longest numeric prefix of s, matching C atof
// semantics: trailing garbage is ignored, no prefix reads as zero.
func leadingFloat(s string) float64 {
	end := 0
	for end < len(s) {
		c := s[end]
		if (c >= '0' && c <= '9') || c == '+' || c == '-' || c == '.' || c == 'e' || c == 'E' {
			end++
			continue
		}
		break
	}
	for end > 0 {
		if v, err := strconv.ParseFloat(s[:end], 64); err == nil {
			return v
		}
		end--
	}
	return 0
}
