package sync

import (
	"fmt"
	"math"
	"strings"
	"time"
	"unicode"

	"github.com/marcnester/glycofy-api/internal/domain"
	"github.com/marcnester/glycofy-api/internal/strava"
)

// kJPerKcal converts provider-reported kilojoules to kilocalories.
const kJPerKcal = 0.239

// sportNames maps Strava's raw type vocabulary (lowercased, spaces
// stripped) to the canonical sport labels stored locally.
var sportNames = map[string]string{
	"ride":             "Cycling",
	"virtualride":      "Cycling (Virtual)",
	"ebikeride":        "E-Bike",
	"mountainbikeride": "Cycling (MTB)",
	"gravelride":       "Cycling (Gravel)",
	"run":              "Running",
	"trailrun":         "Running (Trail)",
	"walk":             "Walking",
	"hike":             "Hiking",
	"swim":             "Swimming",
	"rowing":           "Rowing",
	"alpineski":        "Skiing (Alpine)",
	"nordicski":        "Skiing (Nordic)",
	"snowboard":        "Snowboard",
	"workout":          "Workout",
	"weighttraining":   "Strength",
	"yoga":             "Yoga",
	"pilates":          "Pilates",
	"elliptical":       "Elliptical",
	"wheelchair":       "Wheelchair",
	"iceskate":         "Ice Skate",
	"rollerski":        "Roller Ski",
	"kayaking":         "Kayaking",
	"canoeing":         "Canoeing",
	"surfing":          "Surfing",
	"kitesurf":         "Kitesurf",
	"windsurf":         "Windsurf",
	"golf":             "Golf",
	"rockclimbing":     "Climbing",
}

// Normalizer maps raw provider records into the canonical activity shape.
// It is pure: no I/O, total over any decoded record.
type Normalizer struct {
	// KcalPerMinute is the flat moving-time calorie heuristic used when
	// the provider reports neither calories nor kilojoules. A rough
	// placeholder rather than a calibrated model, hence a tunable.
	KcalPerMinute float64

	now func() time.Time
}

// NewNormalizer constructs a Normalizer. kcalPerMinute values <= 0 fall
// back to the default of 7.
func NewNormalizer(kcalPerMinute float64) Normalizer {
	if kcalPerMinute <= 0 {
		kcalPerMinute = 7
	}
	return Normalizer{KcalPerMinute: kcalPerMinute, now: time.Now}
}

// Normalize converts one raw record to canonical activity fields. The
// user and provider keys are filled in by the caller.
func (n Normalizer) Normalize(raw strava.RawActivity) domain.Activity {
	sport := normalizeSport(raw)
	return domain.Activity{
		ExternalID:  raw.ExternalID(),
		Sport:       sport,
		Title:       composeTitle(raw, sport),
		StartedAt:   n.parseStart(raw),
		DurationSec: roundToInt(float64(raw.MovingTime)),
		DistanceM:   roundToInt(float64(raw.Distance)),
		Kcal:        n.estimateKcal(raw),
	}
}

// normalizeSport maps the provider's raw type string into the canonical
// vocabulary. Unmapped values pass through capitalized; empty becomes
// "Workout".
func normalizeSport(raw strava.RawActivity) string {
	label := strings.TrimSpace(raw.SportType)
	if label == "" {
		label = strings.TrimSpace(raw.Type)
	}
	key := strings.ToLower(strings.ReplaceAll(label, " ", ""))
	if mapped, ok := sportNames[key]; ok {
		return mapped
	}
	if label == "" {
		return "Workout"
	}
	return capitalize(label)
}

// estimateKcal applies a strict fallback chain: provider calories, then
// kilojoules converted at 0.239 kcal/kJ, then the moving-time heuristic,
// then zero.
func (n Normalizer) estimateKcal(raw strava.RawActivity) int {
	if raw.Calories != nil {
		return roundToInt(float64(*raw.Calories))
	}
	if raw.Kilojoules != nil {
		return roundToInt(float64(*raw.Kilojoules) * kJPerKcal)
	}
	if raw.MovingTime > 0 {
		return roundToInt(float64(raw.MovingTime) / 60 * n.KcalPerMinute)
	}
	return 0
}

// composeTitle keeps the provider's name unless it is empty, a stock
// placeholder, or just the sport name, in which case a title is built
// from the sport plus distance or duration.
func composeTitle(raw strava.RawActivity, sport string) string {
	name := strings.TrimSpace(raw.Name)
	generic := map[string]bool{
		"":             true,
		"workout":      true,
		"morning run":  true,
		"evening run":  true,
		"morning ride": true,
		"evening ride": true,
	}
	lower := strings.ToLower(name)
	isGeneric := generic[lower] || lower == strings.ToLower(sport)
	if !isGeneric {
		return name
	}

	pieces := []string{sport}
	if raw.Distance > 0 {
		km := float64(raw.Distance) / 1000
		if km < 100 {
			pieces = append(pieces, fmt.Sprintf("%.1f km", km))
		} else {
			pieces = append(pieces, fmt.Sprintf("%d km", roundToInt(km)))
		}
	} else if raw.MovingTime > 0 {
		pieces = append(pieces, fmt.Sprintf("%d min", roundToInt(float64(raw.MovingTime)/60)))
	}
	return strings.Join(pieces, " — ")
}

func (n Normalizer) parseStart(raw strava.RawActivity) time.Time {
	for _, candidate := range []string{raw.StartDate, raw.StartDateLocal} {
		if candidate == "" {
			continue
		}
		if ts, err := time.Parse(time.RFC3339, candidate); err == nil {
			return ts.UTC()
		}
	}
	return n.now().UTC()
}

func roundToInt(f float64) int {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return int(math.Round(f))
}

func capitalize(s string) string {
	runes := []rune(s)
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}
