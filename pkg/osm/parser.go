// Package osm parses OpenStreetMap PBF extracts into mode-weighted directed
// edges ready for graph.Build.
package osm

import (
	"context"
	"io"
	"log/slog"

	"github.com/paulmach/osm"
	"github.com/paulmach/osm/osmpbf"
	"github.com/pkg/errors"

	"routex/pkg/geo"
	"routex/pkg/speed"
)

// RawEdge is a directed edge parsed from OSM data, weighted by travel time.
type RawEdge struct {
	FromNodeID osm.NodeID
	ToNodeID   osm.NodeID
	WeightMS   uint32 // travel time in milliseconds
	MainRoad   bool   // highway class belongs to the main-road set (spec.md §4.1)
}

// ParseResult holds the output of parsing an OSM PBF file for one mode.
type ParseResult struct {
	Edges   []RawEdge
	NodeLat map[osm.NodeID]float64
	NodeLon map[osm.NodeID]float64
}

// accessTag names the mode-specific access tag consulted in addition to the
// general "access" tag.
func accessTag(mode speed.Mode) string {
	switch mode {
	case speed.Bicycle:
		return "bicycle"
	case speed.Pedestrian:
		return "foot"
	default:
		return "motor_vehicle"
	}
}

// isAccessible reports whether a way is usable by mode, independent of
// whether its highway class has a speed entry for that mode.
func isAccessible(tags osm.Tags, mode speed.Mode) bool {
	if tags.Find("area") == "yes" {
		return false
	}
	access := tags.Find("access")
	if access == "no" || access == "private" {
		return false
	}
	if tags.Find(accessTag(mode)) == "no" {
		return false
	}
	return true
}

// directionFlags returns (forward, backward) based on highway type and
// oneway tags. A oneway=reversible way is dropped (time-dependent, unmodeled).
func directionFlags(tags osm.Tags) (forward, backward bool) {
	forward = true
	backward = true

	hw := tags.Find("highway")
	if hw == "motorway" || hw == "motorway_link" || tags.Find("junction") == "roundabout" {
		backward = false
	}

	switch tags.Find("oneway") {
	case "yes", "true", "1":
		forward = true
		backward = false
	case "-1", "reverse":
		forward = false
		backward = true
	case "no":
		forward = true
		backward = true
	case "reversible":
		forward = false
		backward = false
	}

	return forward, backward
}

// wayInfo holds parsed way data collected during Pass 1.
type wayInfo struct {
	NodeIDs  []osm.NodeID
	Forward  bool
	Backward bool
	KMH      float64
	MainRoad bool
}

// BBox defines a geographic bounding box for filtering.
// If non-zero, only edges with both endpoints inside the box are kept.
type BBox struct {
	MinLat, MaxLat float64
	MinLng, MaxLng float64
}

// IsZero returns true if the bbox is unset.
func (b BBox) IsZero() bool {
	return b.MinLat == 0 && b.MaxLat == 0 && b.MinLng == 0 && b.MaxLng == 0
}

// Contains returns true if the point is inside the bounding box.
func (b BBox) Contains(lat, lng float64) bool {
	return lat >= b.MinLat && lat <= b.MaxLat && lng >= b.MinLng && lng <= b.MaxLng
}

// ParseOptions configures the OSM parser.
type ParseOptions struct {
	Mode   speed.Mode
	BBox   BBox // if non-zero, filter edges to this bounding box
	Logger *slog.Logger
}

// Parse reads an OSM PBF file and returns directed, mode-weighted edges.
// The reader is consumed twice (seeks back to start for the second pass),
// so it must implement io.ReadSeeker.
func Parse(ctx context.Context, rs io.ReadSeeker, opt ParseOptions) (*ParseResult, error) {
	if !opt.Mode.Valid() {
		return nil, errors.Errorf("osm: invalid mode %q", opt.Mode)
	}
	logger := opt.Logger
	if logger == nil {
		logger = slog.Default()
	}
	useBBox := !opt.BBox.IsZero()

	referencedNodes := make(map[osm.NodeID]struct{})
	var ways []wayInfo

	scanner := osmpbf.New(ctx, rs, 1)
	scanner.SkipNodes = true
	scanner.SkipRelations = true

	for scanner.Scan() {
		w, ok := scanner.Object().(*osm.Way)
		if !ok {
			continue
		}
		if len(w.Nodes) < 2 {
			continue
		}
		if !isAccessible(w.Tags, opt.Mode) {
			continue
		}
		hw := w.Tags.Find("highway")
		kmh, ok := speed.KMH(hw, opt.Mode)
		if !ok {
			continue
		}
		fwd, bwd := directionFlags(w.Tags)
		if !fwd && !bwd {
			continue
		}

		nodeIDs := make([]osm.NodeID, len(w.Nodes))
		for i, wn := range w.Nodes {
			nodeIDs[i] = wn.ID
			referencedNodes[wn.ID] = struct{}{}
		}

		ways = append(ways, wayInfo{
			NodeIDs:  nodeIDs,
			Forward:  fwd,
			Backward: bwd,
			KMH:      kmh,
			MainRoad: speed.IsMainRoad(hw),
		})
	}
	if err := scanner.Err(); err != nil {
		scanner.Close()
		return nil, errors.Wrap(err, "pass 1 (ways)")
	}
	scanner.Close()

	logger.Info("osm pass 1 complete", "ways", len(ways), "referenced_nodes", len(referencedNodes), "mode", opt.Mode)

	if _, err := rs.Seek(0, io.SeekStart); err != nil {
		return nil, errors.Wrap(err, "seek for pass 2")
	}

	nodeLat := make(map[osm.NodeID]float64, len(referencedNodes))
	nodeLon := make(map[osm.NodeID]float64, len(referencedNodes))

	scanner = osmpbf.New(ctx, rs, 1)
	scanner.SkipWays = true
	scanner.SkipRelations = true

	for scanner.Scan() {
		n, ok := scanner.Object().(*osm.Node)
		if !ok {
			continue
		}
		if _, needed := referencedNodes[n.ID]; !needed {
			continue
		}
		nodeLat[n.ID] = n.Lat
		nodeLon[n.ID] = n.Lon
	}
	if err := scanner.Err(); err != nil {
		scanner.Close()
		return nil, errors.Wrap(err, "pass 2 (nodes)")
	}
	scanner.Close()

	logger.Info("osm pass 2 complete", "node_coords", len(nodeLat))

	var edges []RawEdge
	var skippedEdges, bboxFiltered, zeroWeight int

	for _, w := range ways {
		for i := 0; i < len(w.NodeIDs)-1; i++ {
			fromID := w.NodeIDs[i]
			toID := w.NodeIDs[i+1]

			fromLat, fromOk := nodeLat[fromID]
			fromLon := nodeLon[fromID]
			toLat, toOk := nodeLat[toID]
			toLon := nodeLon[toID]

			if !fromOk || !toOk {
				skippedEdges++
				continue
			}
			if useBBox && (!opt.BBox.Contains(fromLat, fromLon) || !opt.BBox.Contains(toLat, toLon)) {
				bboxFiltered++
				continue
			}

			distKM := geo.Haversine(fromLat, fromLon, toLat, toLon) / 1000
			hours := distKM / w.KMH
			weightMS := uint32(hours * 3600 * 1000)
			if weightMS == 0 {
				zeroWeight++
				continue
			}

			if w.Forward {
				edges = append(edges, RawEdge{FromNodeID: fromID, ToNodeID: toID, WeightMS: weightMS, MainRoad: w.MainRoad})
			}
			if w.Backward {
				edges = append(edges, RawEdge{FromNodeID: toID, ToNodeID: fromID, WeightMS: weightMS, MainRoad: w.MainRoad})
			}
		}
	}

	if skippedEdges > 0 {
		logger.Warn("skipped edges with missing node coordinates", "count", skippedEdges)
	}
	if bboxFiltered > 0 {
		logger.Info("filtered edges outside bounding box", "count", bboxFiltered)
	}
	if zeroWeight > 0 {
		logger.Info("dropped zero-time segments", "count", zeroWeight)
	}
	logger.Info("built directed edges", "count", len(edges), "mode", opt.Mode)

	return &ParseResult{Edges: edges, NodeLat: nodeLat, NodeLon: nodeLon}, nil
}
