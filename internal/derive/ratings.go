package derive

import "github.com/bannergress/recalc/pkg/core"

type mean struct {
	sum float64
	n   int
}

func (m *mean) add(v float64) {
	m.sum += v
	m.n++
}

func (m *mean) value() *float64 {
	if m.n == 0 {
		return nil
	}
	v := m.sum / float64(m.n)
	return &v
}

// AverageRatings averages each rating dimension over the comments that rated it.
// Accessible247 counts yes as 1 and no as 0.
func AverageRatings(comments []core.Comment) core.Ratings {
	var overall, accessibility, passphrases, accessible247 mean
	for _, c := range comments {
		if c.Overall != nil {
			overall.add(float64(*c.Overall))
		}
		if c.Accessibility != nil {
			accessibility.add(float64(*c.Accessibility))
		}
		if c.Passphrases != nil {
			passphrases.add(float64(*c.Passphrases))
		}
		if c.Accessible247 != nil {
			if *c.Accessible247 {
				accessible247.add(1)
			} else {
				accessible247.add(0)
			}
		}
	}
	return core.Ratings{
		Overall:       overall.value(),
		Accessibility: accessibility.value(),
		Passphrases:   passphrases.value(),
		Accessible247: accessible247.value(),
	}
}
