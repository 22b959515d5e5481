// Package geometry implements the external geometry collaborator: decoding
// an opaque WKT/WKB geometry into the (lon, lat) centroid a route endpoint
// needs (spec.md §6's "Geometry collaborator").
package geometry

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/wkb"
	"github.com/paulmach/orb/encoding/wkt"
	"github.com/paulmach/orb/planar"
	"github.com/pkg/errors"
)

// ErrUnsupportedGeometry is returned for a geometry variant with no
// well-defined centroid (an empty collection, a degenerate ring).
var ErrUnsupportedGeometry = errors.New("geometry: unsupported or empty geometry")

// FromWKT decodes a WKT-encoded geometry and returns its centroid as (lon, lat).
func FromWKT(s string) (lon, lat float64, err error) {
	geom, err := wkt.UnmarshalString(s)
	if err != nil {
		return 0, 0, errors.Wrap(err, "geometry: decode wkt")
	}
	return centroidOf(geom)
}

// FromWKB decodes a WKB-encoded geometry and returns its centroid as (lon, lat).
func FromWKB(b []byte) (lon, lat float64, err error) {
	geom, err := wkb.Unmarshal(b)
	if err != nil {
		return 0, 0, errors.Wrap(err, "geometry: decode wkb")
	}
	return centroidOf(geom)
}

// centroidOf extracts a (lon, lat) centroid for every orb.Geometry variant,
// mirroring the original implementation's per-variant dispatch: points
// return themselves, polygons use an area-weighted centroid, everything
// else falls back to the arithmetic mean of its constituent points.
func centroidOf(geom orb.Geometry) (lon, lat float64, err error) {
	switch g := geom.(type) {
	case orb.Point:
		return g[0], g[1], nil

	case orb.MultiPoint:
		return meanPoint(g)

	case orb.LineString:
		return meanPoint(orb.MultiPoint(g))

	case orb.MultiLineString:
		var pts orb.MultiPoint
		for _, ls := range g {
			pts = append(pts, orb.MultiPoint(ls)...)
		}
		return meanPoint(pts)

	case orb.Polygon:
		if len(g) == 0 || len(g[0]) == 0 {
			return 0, 0, ErrUnsupportedGeometry
		}
		c, _ := planar.CentroidArea(g)
		return c[0], c[1], nil

	case orb.MultiPolygon:
		if len(g) == 0 {
			return 0, 0, ErrUnsupportedGeometry
		}
		// Area-weighted mean of each polygon's centroid.
		var sumLon, sumLat, totalArea float64
		for _, poly := range g {
			if len(poly) == 0 || len(poly[0]) == 0 {
				continue
			}
			c, area := planar.CentroidArea(poly)
			if area < 0 {
				area = -area
			}
			sumLon += c[0] * area
			sumLat += c[1] * area
			totalArea += area
		}
		if totalArea == 0 {
			return 0, 0, ErrUnsupportedGeometry
		}
		return sumLon / totalArea, sumLat / totalArea, nil

	case orb.Ring:
		return centroidOf(orb.Polygon{g})

	case orb.Collection:
		var pts orb.MultiPoint
		for _, sub := range g {
			slon, slat, err := centroidOf(sub)
			if err != nil {
				continue
			}
			pts = append(pts, orb.Point{slon, slat})
		}
		return meanPoint(pts)

	default:
		return 0, 0, ErrUnsupportedGeometry
	}
}

// meanPoint returns the arithmetic mean of a point set's coordinates.
func meanPoint(pts orb.MultiPoint) (lon, lat float64, err error) {
	if len(pts) == 0 {
		return 0, 0, ErrUnsupportedGeometry
	}
	for _, p := range pts {
		lon += p[0]
		lat += p[1]
	}
	n := float64(len(pts))
	return lon / n, lat / n, nil
}
