package mcp

import (
	"fmt"
	"math"
	"sort"

	"github.com/trekjournal/media-proxy/internal/journeys"
)

// Difficulty buckets a trek by how demanding its daily profile is.
type Difficulty string

const (
	DifficultyEasy     Difficulty = "Easy"
	DifficultyModerate Difficulty = "Moderate"
	DifficultyHard     Difficulty = "Hard"
	DifficultyExtreme  Difficulty = "Extreme"
)

// TrekStats is the extended statistics payload re-derived from raw route
// points and waypoints on every request.
type TrekStats struct {
	TotalDistanceKM     float64    `json:"totalDistanceKm"`
	TotalElevationGainM float64    `json:"totalElevationGainM"`
	TotalElevationLossM float64    `json:"totalElevationLossM"`
	Days                int        `json:"days"`
	MaxDailyGainM       float64    `json:"maxDailyGain"`
	MaxDailyLossM       float64    `json:"maxDailyLoss"`
	LongestDayKM        float64    `json:"longestDayKm"`
	SteepestGradient    float64    `json:"steepestGradient"`
	Difficulty          Difficulty `json:"difficulty"`
	EstimatedHikingTime string     `json:"estimatedHikingTime"`
}

// earthRadiusKM is the mean radius used by the haversine distance.
const earthRadiusKM = 6371.0

// haversineKM returns the great-circle distance between two [lat, lon]
// points in kilometers.
func haversineKM(lat1, lon1, lat2, lon2 float64) float64 {
	toRad := math.Pi / 180
	dLat := (lat2 - lat1) * toRad
	dLon := (lon2 - lon1) * toRad

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1*toRad)*math.Cos(lat2*toRad)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * earthRadiusKM * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}

// routePoint reads one route entry as [lat, lon, elevationM]. Entries
// shorter than three elements carry no elevation.
func routePoint(entry []float64) (lat, lon, elevation float64, hasElevation bool) {
	if len(entry) < 2 {
		return 0, 0, 0, false
	}
	lat, lon = entry[0], entry[1]
	if len(entry) >= 3 {
		return lat, lon, entry[2], true
	}
	return lat, lon, 0, false
}

// segmentStats accumulates distance and elevation deltas between
// consecutive route points across an inclusive index span [from, to].
type segmentStats struct {
	distanceKM float64
	gainM      float64
	lossM      float64
}

func sumSegment(route [][]float64, from, to int) segmentStats {
	var seg segmentStats
	if from < 0 {
		from = 0
	}
	if to > len(route)-1 {
		to = len(route) - 1
	}
	for i := from; i < to; i++ {
		lat1, lon1, ele1, ok1 := routePoint(route[i])
		lat2, lon2, ele2, ok2 := routePoint(route[i+1])
		seg.distanceKM += haversineKM(lat1, lon1, lat2, lon2)
		if ok1 && ok2 {
			delta := ele2 - ele1
			if delta > 0 {
				seg.gainM += delta
			} else {
				seg.lossM += -delta
			}
		}
	}
	return seg
}

// DeriveStats recomputes trek statistics from route points and waypoints.
// Waypoints are walked in day order; each consecutive pair bounds one
// day's route-index span. Returns an error when the journey has no route.
func DeriveStats(route [][]float64, waypoints []journeys.Waypoint) (*TrekStats, error) {
	if len(route) < 2 {
		return nil, fmt.Errorf("journey has no route data")
	}

	sorted := make([]journeys.Waypoint, len(waypoints))
	copy(sorted, waypoints)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].DayNumber < sorted[j].DayNumber })

	total := sumSegment(route, 0, len(route)-1)

	stats := &TrekStats{
		TotalDistanceKM:     roundTo(total.distanceKM, 1),
		TotalElevationGainM: math.Round(total.gainM),
		TotalElevationLossM: math.Round(total.lossM),
	}

	var steepest float64
	days := 0
	for i := 0; i+1 < len(sorted); i++ {
		day := sumSegment(route, sorted[i].RouteIndex, sorted[i+1].RouteIndex)
		days++

		if day.gainM > stats.MaxDailyGainM {
			stats.MaxDailyGainM = math.Round(day.gainM)
		}
		if day.lossM > stats.MaxDailyLossM {
			stats.MaxDailyLossM = math.Round(day.lossM)
		}
		if day.distanceKM > stats.LongestDayKM {
			stats.LongestDayKM = roundTo(day.distanceKM, 1)
		}
		if day.distanceKM > 0 {
			gradient := (day.gainM + day.lossM) / day.distanceKM
			if gradient > steepest {
				steepest = gradient
			}
		}
	}
	if days == 0 {
		// No camp pairs to split on: the whole route is one day.
		days = 1
		stats.MaxDailyGainM = stats.TotalElevationGainM
		stats.MaxDailyLossM = stats.TotalElevationLossM
		stats.LongestDayKM = stats.TotalDistanceKM
		if total.distanceKM > 0 {
			steepest = (total.gainM + total.lossM) / total.distanceKM
		}
	}

	stats.Days = days
	stats.SteepestGradient = roundTo(steepest, 1)
	stats.Difficulty = rateDifficulty(total.distanceKM, total.gainM, float64(days), stats.MaxDailyGainM)
	stats.EstimatedHikingTime = estimateHikingTime(total.distanceKM, total.gainM, total.lossM)
	return stats, nil
}

// rateDifficulty scores a trek from average daily distance, peak daily gain,
// and total climb, then buckets the score.
func rateDifficulty(totalKM, totalGainM, days, maxDailyGainM float64) Difficulty {
	if days < 1 {
		days = 1
	}
	avgDailyKM := totalKM / days
	score := avgDailyKM*2 + maxDailyGainM/100 + totalGainM/1000

	switch {
	case score < 20:
		return DifficultyEasy
	case score < 40:
		return DifficultyModerate
	case score < 60:
		return DifficultyHard
	default:
		return DifficultyExtreme
	}
}

// estimateHikingTime applies the rule of thumb distance/5 hours plus one
// minute per 10 m of ascent and one per 20 m of descent.
func estimateHikingTime(totalKM, gainM, lossM float64) string {
	hours := totalKM/5 + (gainM/10)/60 + (lossM/20)/60
	whole := int(hours)
	minutes := int(math.Round((hours - float64(whole)) * 60))
	if minutes == 60 {
		whole++
		minutes = 0
	}
	return fmt.Sprintf("%dh %dmin", whole, minutes)
}

func roundTo(value float64, decimals int) float64 {
	factor := math.Pow(10, float64(decimals))
	return math.Round(value*factor) / factor
}
