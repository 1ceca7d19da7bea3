package domain

// RuleRecommender maps a (season, soil) pair to a fixed crop list. The zero
// value is ready to use.
type RuleRecommender struct{}

// Recommend returns the crops for the first matching rule:
//
//	Kharif + Alluvial  -> Paddy, Maize, Jute
//	Rabi + Black       -> Wheat, Barley, Gram
//	Zaid (any soil)    -> Watermelon, Cucumber, Bitter Gourd
//	otherwise          -> Millets, Pulses, Sunflower
//
// Soil matching is exact. The returned slice is freshly allocated.
func (RuleRecommender) Recommend(season Season, soil string) []string {
	switch {
	case season == SeasonKharif && soil == SoilAlluvial:
		return []string{"Paddy", "Maize", "Jute"}
	case season == SeasonRabi && soil == SoilBlack:
		return []string{"Wheat", "Barley", "Gram"}
	case season == SeasonZaid:
		return []string{"Watermelon", "Cucumber", "Bitter Gourd"}
	default:
		return []string{"Millets", "Pulses", "Sunflower"}
	}
}
