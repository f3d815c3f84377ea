// Route sampling for the road-hazard overlap annotation (SPEC_FULL §C.2),
// adapted from the teacher's internal/maps/route_service.go RouteService.
// The teacher's ETA/duration lookup is exactly the kind of "external
// collaborator" spec §1 Non-goals puts outside this core; this module keeps
// only the one thing the core's Geo Math component (C4) owns per spec
// §2: "route-midpoint sampling for road-hazard overlap".
package geo

import (
	"context"
	"fmt"

	gmaps "googlemaps.github.io/maps"
)

// HazardChecker reports whether a sampled point along a route overlaps a
// known road hazard. The concrete hazard set lives outside this core (spec
// §1 Out-of-scope); RouteSampler only supplies the sample point, and the
// caller-supplied HazardChecker decides overlap.
type HazardChecker interface {
	Overlaps(ctx context.Context, lat, lng float64) (bool, error)
}

// RouteSampler fetches a driving route between two points and exposes a
// midpoint to check against road hazards.
type RouteSampler struct {
	client *gmaps.Client
}

// NewRouteSampler builds a RouteSampler against the Google Maps Directions
// API. Grounded on the teacher's maps.NewClient(maps.WithAPIKey(...)) call.
func NewRouteSampler(apiKey string) (*RouteSampler, error) {
	client, err := gmaps.NewClient(gmaps.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("geo: creating maps client: %w", err)
	}
	return &RouteSampler{client: client}, nil
}

// RouteMidpoint asks the Directions API for the driving route between origin
// and destination and returns the middle point of the first route's decoded
// overview polyline. If the API call fails, returns no geometry, or the
// polyline cannot be decoded, it returns an error; there is no straight-line
// fallback. CheckHazardOverlap turns that error into "unchecked".
func (r *RouteSampler) RouteMidpoint(ctx context.Context, originLat, originLng, destLat, destLng float64) (lat, lng float64, err error) {
	req := &gmaps.DirectionsRequest{
		Origin:      fmt.Sprintf("%f,%f", originLat, originLng),
		Destination: fmt.Sprintf("%f,%f", destLat, destLng),
		Mode:        gmaps.TravelModeDriving,
	}

	routes, _, err := r.client.Directions(ctx, req)
	if err != nil {
		return 0, 0, fmt.Errorf("geo: directions api error: %w", err)
	}
	if len(routes) == 0 || len(routes[0].OverviewPolyline.Points) == 0 {
		return 0, 0, fmt.Errorf("geo: no route geometry returned")
	}

	path, err := routes[0].OverviewPolyline.Decode()
	if err != nil || len(path) == 0 {
		return 0, 0, fmt.Errorf("geo: decoding overview polyline: %w", err)
	}

	mid := path[len(path)/2]
	return mid.Lat, mid.Lng, nil
}

// CheckHazardOverlap samples the route midpoint and asks checker whether it
// overlaps a hazard. Any failure (API error, no checker configured) is
// treated as "unknown" rather than propagated — callers should log and leave
// the trip's hazard fields unset, per SPEC_FULL §C.2.
func (r *RouteSampler) CheckHazardOverlap(ctx context.Context, checker HazardChecker, originLat, originLng, destLat, destLng float64) (overlap bool, checked bool) {
	if checker == nil {
		return false, false
	}
	lat, lng, err := r.RouteMidpoint(ctx, originLat, originLng, destLat, destLng)
	if err != nil {
		return false, false
	}
	ok, err := checker.Overlaps(ctx, lat, lng)
	if err != nil {
		return false, false
	}
	return ok, true
}
