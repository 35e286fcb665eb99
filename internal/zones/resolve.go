package zones

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
)

// Mode selects how a point is matched to a zone
type Mode int

const (
	// Containment answers which zone serves the point.
	Containment Mode = iota + 1
	// NearestCentroid answers which zone is physically closest, by centroid.
	NearestCentroid
)

func (m Mode) String() string {
	switch m {
	case Containment:
		return "containment"
	case NearestCentroid:
		return "nearest"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// ParseMode parses a mode name as accepted on the command line and API
func ParseMode(s string) (Mode, error) {
	switch strings.TrimSpace(strings.ToLower(s)) {
	case "containment", "contains":
		return Containment, nil
	case "nearest", "nearest-centroid", "centroid":
		return NearestCentroid, nil
	default:
		return 0, fmt.Errorf("mode must be containment or nearest, got %q", s)
	}
}

// MatchKind records which test produced a match
type MatchKind int

const (
	Contains MatchKind = iota + 1
	Nearest
)

func (k MatchKind) String() string {
	switch k {
	case Contains:
		return "contains"
	case Nearest:
		return "nearest"
	default:
		return ""
	}
}

// Resolved is a matched zone
type Resolved struct {
	Feature  *Feature
	Kind     MatchKind
	Distance float64 // Degrees from point to centroid; 0 for containment
}

// Resolve matches p against c. A nil result means no match, which is a normal
// outcome for an empty collection or a point outside every polygon.
func Resolve(c Collection, p orb.Point, mode Mode) *Resolved {
	switch mode {
	case Containment:
		return resolveContainment(c, p)
	case NearestCentroid:
		return resolveNearest(c, p)
	default:
		return nil
	}
}

// ResolveWithFallback tries containment first and falls back to the nearest
// centroid when no polygon contains p.
func ResolveWithFallback(c Collection, p orb.Point) *Resolved {
	if r := resolveContainment(c, p); r != nil {
		return r
	}
	return resolveNearest(c, p)
}

// Overlapping zones resolve to whichever comes first in collection order.
func resolveContainment(c Collection, p orb.Point) *Resolved {
	for _, f := range c {
		if f.Contains(p) {
			return &Resolved{Feature: f, Kind: Contains}
		}
	}
	return nil
}

// Distance is planar, in degrees. Ties keep the earlier feature.
func resolveNearest(c Collection, p orb.Point) *Resolved {
	var best *Feature
	bestDist := math.Inf(1)

	for _, f := range c {
		d := planar.Distance(f.Centroid, p)
		if best == nil || d < bestDist {
			best = f
			bestDist = d
		}
	}

	if best == nil {
		return nil
	}
	return &Resolved{Feature: best, Kind: Nearest, Distance: bestDist}
}

// Rank returns every zone ordered by centroid distance from p. Zones that
// contain p are marked Contains. Distance is always the centroid distance here;
// order among equal distances is collection order.
func Rank(c Collection, p orb.Point) []Resolved {
	ranked := make([]Resolved, 0, len(c))
	for _, f := range c {
		kind := Nearest
		if f.Contains(p) {
			kind = Contains
		}
		ranked = append(ranked, Resolved{
			Feature:  f,
			Kind:     kind,
			Distance: planar.Distance(f.Centroid, p),
		})
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Distance < ranked[j].Distance
	})
	return ranked
}
