// Package pricing implements the server-authoritative fare formula from spec
// §6. Pricing is computed only by the server, never trusted from a client
// (spec invariant 5), so this is a pure function of distance and the current
// SystemConfig — no store, no I/O. Grounded on the teacher's
// internal/modules/pricing package, whose service.go/store.go were stubs
// ("not implemented") for exactly this formula; the real math comes from the
// spec, not the teacher.
package pricing

import (
	"math"

	"ark/internal/types"
)

// Price implements spec §6's bit-exact formula:
//
//	price(distanceKm) = max(minFareIls, ceil(ceil(distanceKm/0.1)*0.1*ratePerKm))
//
// Distance is first rounded up to the nearest 100 metres, then priced at
// ratePerKm, then rounded up to the nearest whole shekel, then floored at
// minFareIls.
func Price(distanceKm float64, ratePerKm float64, minFareIls types.ILS) types.ILS {
	roundedKm := math.Ceil(distanceKm/0.1) * 0.1
	raw := math.Ceil(roundedKm * ratePerKm)
	price := types.ILS(raw)
	if price < minFareIls {
		return minFareIls
	}
	return price
}
