package sync

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/marcnester/glycofy-api/internal/strava"
)

func floatPtr(f float64) *strava.Float {
	v := strava.Float(f)
	return &v
}

func TestNormalizeSportMapping(t *testing.T) {
	cases := []struct {
		name     string
		raw      strava.RawActivity
		expected string
	}{
		{"mapped ride", strava.RawActivity{Type: "Ride"}, "Cycling"},
		{"mapped virtual ride", strava.RawActivity{Type: "VirtualRide"}, "Cycling (Virtual)"},
		{"sport_type preferred over type", strava.RawActivity{SportType: "TrailRun", Type: "Run"}, "Running (Trail)"},
		{"spaces stripped", strava.RawActivity{Type: "Weight Training"}, "Strength"},
		{"unmapped passes through capitalized", strava.RawActivity{Type: "parkour"}, "Parkour"},
		{"empty becomes workout", strava.RawActivity{}, "Workout"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.expected, normalizeSport(tc.raw))
		})
	}
}

func TestEstimateKcalFallbackChain(t *testing.T) {
	n := NewNormalizer(7)

	// Provider calories win over kilojoules.
	require.Equal(t, 500, n.estimateKcal(strava.RawActivity{
		Calories:   floatPtr(500.4),
		Kilojoules: floatPtr(1000),
		MovingTime: 1800,
	}))

	// Kilojoules convert at 0.239 kcal/kJ.
	require.Equal(t, 239, n.estimateKcal(strava.RawActivity{
		Kilojoules: floatPtr(1000),
		MovingTime: 1800,
	}))

	// Moving-time heuristic applies last.
	require.Equal(t, 210, n.estimateKcal(strava.RawActivity{MovingTime: 1800}))

	// Nothing reported at all.
	require.Equal(t, 0, n.estimateKcal(strava.RawActivity{}))
}

func TestEstimateKcalTunableRate(t *testing.T) {
	n := NewNormalizer(10)
	require.Equal(t, 300, n.estimateKcal(strava.RawActivity{MovingTime: 1800}))
}

func TestComposeTitle(t *testing.T) {
	t.Run("specific name kept verbatim", func(t *testing.T) {
		raw := strava.RawActivity{Name: "Hill repeats with the club", Distance: 42195}
		require.Equal(t, "Hill repeats with the club", composeTitle(raw, "Running"))
	})

	t.Run("generic name composed from distance", func(t *testing.T) {
		raw := strava.RawActivity{Name: "Morning Ride", Distance: 12345}
		require.Equal(t, "Cycling — 12.3 km", composeTitle(raw, "Cycling"))
	})

	t.Run("long distance rounds to whole km", func(t *testing.T) {
		raw := strava.RawActivity{Name: "", Distance: 160934}
		require.Equal(t, "Cycling — 161 km", composeTitle(raw, "Cycling"))
	})

	t.Run("sport name counts as generic", func(t *testing.T) {
		raw := strava.RawActivity{Name: "running", MovingTime: 1800}
		require.Equal(t, "Running — 30 min", composeTitle(raw, "Running"))
	})

	t.Run("no distance or time leaves bare sport", func(t *testing.T) {
		raw := strava.RawActivity{Name: "Workout"}
		require.Equal(t, "Yoga", composeTitle(raw, "Yoga"))
	})
}

func TestNormalizeFullRecord(t *testing.T) {
	n := NewNormalizer(7)
	raw := strava.RawActivity{
		ID:         "987654321",
		Name:       "Evening Ride",
		Type:       "Ride",
		StartDate:  "2026-08-02T17:30:00Z",
		MovingTime: 3600,
		Distance:   30000,
		Kilojoules: floatPtr(800),
	}

	activity := n.Normalize(raw)
	require.Equal(t, "987654321", activity.ExternalID)
	require.Equal(t, "Cycling", activity.Sport)
	require.Equal(t, "Cycling — 30.0 km", activity.Title)
	require.Equal(t, time.Date(2026, 8, 2, 17, 30, 0, 0, time.UTC), activity.StartedAt)
	require.Equal(t, 3600, activity.DurationSec)
	require.Equal(t, 30000, activity.DistanceM)
	require.Equal(t, 191, activity.Kcal)
}

func TestParseStartFallsBackToLocal(t *testing.T) {
	n := NewNormalizer(7)
	raw := strava.RawActivity{StartDateLocal: "2026-03-01T08:00:00Z"}
	require.Equal(t, time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC), n.parseStart(raw))
}

func TestParseStartUnparseableUsesNow(t *testing.T) {
	fixed := time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)
	n := NewNormalizer(7)
	n.now = func() time.Time { return fixed }
	require.Equal(t, fixed, n.parseStart(strava.RawActivity{StartDate: "not-a-timestamp"}))
}
