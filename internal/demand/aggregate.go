// Package demand turns raw current readings into an averaged daily load profile.
package demand

import (
	"sort"

	"github.com/jgoulah/gridheadroom/pkg/models"
)

// Aggregate groups valid samples by time of day, discarding the date, and
// averages each bucket. Invalid samples are dropped before grouping.
func Aggregate(samples []models.DemandSample) models.DemandProfile {
	buckets := make(map[models.TimeOfDay][]float64)
	for _, s := range samples {
		if !s.Valid() {
			continue
		}
		tod := models.ClockOf(s.Timestamp)
		buckets[tod] = append(buckets[tod], *s.CurrentAmps)
	}

	profile := make(models.DemandProfile, 0, len(buckets))
	for tod, values := range buckets {
		profile = append(profile, models.ProfilePoint{
			TimeOfDay:          tod,
			AverageCurrentAmps: mean(values),
			Samples:            len(values),
		})
	}

	sort.Slice(profile, func(i, j int) bool {
		return profile[i].TimeOfDay < profile[j].TimeOfDay
	})
	return profile
}

// mean sums in sorted order so the result does not depend on sample order
func mean(values []float64) float64 {
	sort.Float64s(values)
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// Peak returns the bucket with the highest average current
func Peak(profile models.DemandProfile) (models.ProfilePoint, bool) {
	if len(profile) == 0 {
		return models.ProfilePoint{}, false
	}
	peak := profile[0]
	for _, p := range profile[1:] {
		if p.AverageCurrentAmps > peak.AverageCurrentAmps {
			peak = p
		}
	}
	return peak, true
}
