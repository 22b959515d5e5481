// Package speed provides the mode-dependent highway speed profile used to
// turn an OSM way into a travel-time edge weight.
package speed

// Mode identifies a transport mode understood by the speed profile and the
// rest of the engine.
type Mode string

const (
	Auto       Mode = "auto"
	Bicycle    Mode = "bicycle"
	Pedestrian Mode = "pedestrian"
)

// Valid reports whether m is one of the three recognized modes.
func (m Mode) Valid() bool {
	switch m {
	case Auto, Bicycle, Pedestrian:
		return true
	default:
		return false
	}
}

// kmh holds the speed table from spec.md §4.1: highway class -> mode -> km/h.
// A missing entry means "not routable for this mode".
var kmh = map[string]map[Mode]float64{
	"motorway":       {Auto: 120, Bicycle: 5, Pedestrian: 3},
	"motorway_link":  {Auto: 80, Bicycle: 5, Pedestrian: 3},
	"trunk":          {Auto: 100, Bicycle: 12, Pedestrian: 5},
	"trunk_link":     {Auto: 60, Bicycle: 12, Pedestrian: 5},
	"primary":        {Auto: 80, Bicycle: 15, Pedestrian: 5},
	"primary_link":   {Auto: 50, Bicycle: 15, Pedestrian: 5},
	"secondary":      {Auto: 60, Bicycle: 18, Pedestrian: 5},
	"secondary_link": {Auto: 40, Bicycle: 18, Pedestrian: 5},
	"tertiary":       {Auto: 50, Bicycle: 20, Pedestrian: 5},
	"tertiary_link":  {Auto: 30, Bicycle: 20, Pedestrian: 5},
	"residential":    {Auto: 30, Bicycle: 18, Pedestrian: 5},
	"living_street":  {Auto: 20, Bicycle: 15, Pedestrian: 5},
	"service":        {Auto: 20, Bicycle: 15, Pedestrian: 5},
	"unclassified":   {Auto: 40, Bicycle: 18, Pedestrian: 5},
	"cycleway":       {Bicycle: 20, Pedestrian: 5},
	"path":           {Bicycle: 15, Pedestrian: 4.5},
	"track":          {Bicycle: 12, Pedestrian: 4},
	"bridleway":      {Bicycle: 10, Pedestrian: 4},
	"footway":        {Bicycle: 10, Pedestrian: 5},
	"pedestrian":     {Bicycle: 8, Pedestrian: 5},
	"steps":          {Bicycle: 3, Pedestrian: 3},
}

// mainRoads is the set of highway classes eligible for spatial-index
// inclusion (spec.md §4.1's main-road predicate). It governs snapping only
// and has no bearing on edge construction for any mode.
var mainRoads = map[string]bool{
	"motorway":       true,
	"motorway_link":  true,
	"trunk":          true,
	"trunk_link":     true,
	"primary":        true,
	"primary_link":   true,
	"secondary":      true,
	"secondary_link": true,
	"tertiary":       true,
	"tertiary_link":  true,
	"residential":    true,
	"living_street":  true,
	"service":        true,
	"unclassified":   true,
}

// KMH returns the travel speed in km/h for a highway class under the given
// mode, and false if the class is unroutable for that mode (including
// unknown classes).
func KMH(highwayClass string, mode Mode) (float64, bool) {
	byMode, ok := kmh[highwayClass]
	if !ok {
		return 0, false
	}
	v, ok := byMode[mode]
	return v, ok
}

// IsMainRoad reports whether a highway class belongs to the drivable
// network used to filter the spatial index.
func IsMainRoad(highwayClass string) bool {
	return mainRoads[highwayClass]
}
