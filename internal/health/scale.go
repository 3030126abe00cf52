package health

// Step is one row of a piecewise scoring table.
type Step struct {
	Bound     float64 `yaml:"bound" json:"bound"`
	Inclusive bool    `yaml:"inclusive,omitempty" json:"inclusive,omitempty"`
	Score     int     `yaml:"score" json:"score"`
}

// Scale is an ordered table; the first matching step wins, Else otherwise.
type Scale struct {
	Steps []Step `yaml:"steps" json:"steps"`
	Else  int    `yaml:"else" json:"else"`
}

// AtLeast scores v against descending lower bounds (v >= Bound).
func (s Scale) AtLeast(v float64) int {
	score, _ := s.atLeast(v)
	return score
}

func (s Scale) atLeast(v float64) (int, bool) {
	for _, st := range s.Steps {
		if v >= st.Bound {
			return st.Score, true
		}
	}
	return s.Else, false
}

// Below scores v against ascending upper bounds (v < Bound, or v <= Bound
// when the step is inclusive).
func (s Scale) Below(v float64) int {
	for _, st := range s.Steps {
		if v < st.Bound || (st.Inclusive && v == st.Bound) {
			return st.Score
		}
	}
	return s.Else
}

// capAbove returns the cap of the first step whose bound v exceeds.
func capAbove(steps []Step, v float64) (int, bool) {
	for _, st := range steps {
		if v > st.Bound {
			return st.Score, true
		}
	}
	return 0, false
}
