package strava

import (
	"encoding/json"
	"strconv"
	"strings"
)

// Float is a tolerant numeric counter. Providers occasionally emit
// counters as quoted strings or garbage; any value that cannot be read
// as a number decodes to 0 instead of failing the record.
type Float float64

func (f *Float) UnmarshalJSON(data []byte) error {
	var n float64
	if err := json.Unmarshal(data, &n); err == nil {
		*f = Float(n)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		if parsed, parseErr := strconv.ParseFloat(strings.TrimSpace(s), 64); parseErr == nil {
			*f = Float(parsed)
			return nil
		}
	}
	*f = 0
	return nil
}

// RawActivity is the subset of Strava's activity listing payload consumed
// by the sync engine. Every field we read is declared here; anything else
// in the provider response is ignored.
type RawActivity struct {
	ID             json.Number `json:"id"`
	Name           string      `json:"name"`
	Type           string      `json:"type"`
	SportType      string      `json:"sport_type"`
	StartDate      string      `json:"start_date"`
	StartDateLocal string      `json:"start_date_local"`
	ElapsedTime    Float       `json:"elapsed_time"`
	MovingTime     Float       `json:"moving_time"`
	Distance       Float       `json:"distance"`
	Calories       *Float      `json:"calories"`
	Kilojoules     *Float      `json:"kilojoules"`
}

// ExternalID returns the provider-assigned id as a string, or "" when absent.
func (a RawActivity) ExternalID() string {
	return a.ID.String()
}

// decodeActivityPage decodes a listing response element-wise, so one
// malformed record degrades to a zero RawActivity (skipped downstream for
// its missing id) instead of discarding the whole page. Counter fields
// never trigger this path: Float coerces bad values to 0, keeping the
// record and its id.
func decodeActivityPage(body []byte) ([]RawActivity, error) {
	var elements []json.RawMessage
	if err := json.Unmarshal(body, &elements); err != nil {
		return nil, err
	}

	page := make([]RawActivity, 0, len(elements))
	for _, element := range elements {
		var raw RawActivity
		if err := json.Unmarshal(element, &raw); err != nil {
			page = append(page, RawActivity{})
			continue
		}
		page = append(page, raw)
	}
	return page, nil
}
