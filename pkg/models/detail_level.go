package models

// DetailLevel selects how verbose a generated report is. Levels are strictly
// additive: every field rendered at a tier is also rendered at all higher tiers.
type DetailLevel string

const (
	LevelCompact  DetailLevel = "compact"
	LevelStandard DetailLevel = "standard"
	LevelDetailed DetailLevel = "detailed"
	LevelForensic DetailLevel = "forensic"
)

// DetailLevels lists the tiers in ascending verbosity, which is also the UI
// toggle cycle order.
var DetailLevels = []DetailLevel{LevelCompact, LevelStandard, LevelDetailed, LevelForensic}

// IsValidDetailLevel reports whether l is a known detail level.
func IsValidDetailLevel(l DetailLevel) bool {
	switch l {
	case LevelCompact, LevelStandard, LevelDetailed, LevelForensic:
		return true
	}
	return false
}

// Next returns the following tier in the UI toggle cycle. The cycle wraps:
// after forensic comes compact again.
func (l DetailLevel) Next() DetailLevel {
	for i, level := range DetailLevels {
		if level == l {
			return DetailLevels[(i+1)%len(DetailLevels)]
		}
	}
	return LevelCompact
}

// AtLeast reports whether l includes everything the other tier renders.
func (l DetailLevel) AtLeast(other DetailLevel) bool {
	return l.rank() >= other.rank()
}

func (l DetailLevel) rank() int {
	for i, level := range DetailLevels {
		if level == l {
			return i
		}
	}
	return 0
}
