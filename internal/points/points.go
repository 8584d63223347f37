// Package points computes delivery points from complexity and risk.
package points

import "fmt"

// matrix holds the delivery-points value for each (complexity, risk)
// pair, both in 1..4. Non-decreasing along both axes.
var matrix = [4][4]int{
	{1, 2, 3, 5},
	{2, 3, 5, 8},
	{3, 5, 8, 13},
	{5, 8, 13, 21},
}

// Compute returns the delivery points for a (complexity, risk) pair.
// Values outside 1..4 are rejected; callers validate inputs, they are
// never clamped here.
func Compute(complexity, risk int) (int, error) {
	if complexity < 1 || complexity > 4 {
		return 0, fmt.Errorf("complexity %d out of range 1..4", complexity)
	}
	if risk < 1 || risk > 4 {
		return 0, fmt.Errorf("risk %d out of range 1..4", risk)
	}
	return matrix[complexity-1][risk-1], nil
}
