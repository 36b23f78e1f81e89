package geo

import "github.com/bannergress/recalc/pkg/core"

// PathLength sums the great-circle distances between consecutive locations.
func PathLength(path []core.Location) float64 {
	var total float64
	for i := 1; i < len(path); i++ {
		total += Distance(path[i-1], path[i])
	}
	return total
}
