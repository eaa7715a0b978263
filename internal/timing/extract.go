package timing

import (
	"math"

	"github.com/nickborgers/monorepo/pagegaze/internal/models"
)

// RoundingPrecision is the number of decimal places every duration is
// rounded to (hundredths of a millisecond)
const RoundingPrecision = 2

var roundingScale = math.Pow10(RoundingPrecision)

// Extract converts a raw navigation timing record into page load phases.
// Negative differences, which only occur for records that break the
// lifecycle ordering, are reported as zero.
func Extract(raw models.RawTiming) models.NavigationMetrics {
	m := models.NavigationMetrics{
		Redirect:                 duration(raw.RedirectStart, raw.RedirectEnd),
		DNS:                      duration(raw.DomainLookupStart, raw.DomainLookupEnd),
		TCP:                      duration(raw.ConnectStart, raw.ConnectEnd),
		TTFB:                     duration(raw.RequestStart, raw.ResponseStart),
		Transmit:                 duration(raw.ResponseStart, raw.ResponseEnd),
		DOMParse:                 duration(raw.ResponseEnd, raw.DOMInteractive),
		DeferExecuteDuration:     duration(raw.DOMInteractive, raw.DOMContentLoadedEventStart),
		DOMContentLoadedCallback: duration(raw.DOMContentLoadedEventStart, raw.DOMContentLoadedEventEnd),
		ResourceLoad:             duration(raw.DOMContentLoadedEventEnd, raw.LoadEventStart),
		DOMReady:                 duration(raw.FetchStart, raw.DOMContentLoadedEventEnd),
		Load:                     duration(raw.FetchStart, raw.LoadEventStart),
	}

	// secureConnectionStart is zero when the connection was not encrypted
	if raw.SecureConnectionStart != 0 {
		m.SSL = duration(raw.SecureConnectionStart, raw.ConnectEnd)
	}

	return m
}

func duration(start, end float64) float64 {
	d := Round(end - start)
	if d <= 0 {
		return 0
	}
	return d
}

// Round rounds v to RoundingPrecision decimal places, half away from zero
func Round(v float64) float64 {
	return math.Round(v*roundingScale) / roundingScale
}
