package geospatial

import (
	"errors"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
	"github.com/paulmach/orb/geojson"
)

// ValidateGeoJSON validates a GeoJSON payload. Both single Features and
// FeatureCollections are accepted; anything else is rejected.
func ValidateGeoJSON(data []byte) (orb.Geometry, error) {
	if fc, err := geojson.UnmarshalFeatureCollection(data); err == nil {
		if len(fc.Features) == 0 {
			return nil, errors.New("invalid GeoJSON: empty FeatureCollection")
		}
		g := fc.Features[0].Geometry
		if g == nil {
			return nil, errors.New("invalid GeoJSON: feature has no geometry")
		}
		return g, nil
	}

	feature, err := geojson.UnmarshalFeature(data)
	if err != nil {
		return nil, errors.New("geoData must be a GeoJSON Feature or FeatureCollection")
	}
	if feature.Geometry == nil {
		return nil, errors.New("invalid GeoJSON: no geometry")
	}
	return feature.Geometry, nil
}

// ValidatePoint checks a [longitude, latitude] pair.
func ValidatePoint(coordinates []float64) (orb.Point, error) {
	if len(coordinates) != 2 {
		return orb.Point{}, errors.New("coordinates must be [longitude, latitude]")
	}
	lon, lat := coordinates[0], coordinates[1]
	if lon < -180 || lon > 180 || lat < -90 || lat > 90 {
		return orb.Point{}, errors.New("coordinates out of range")
	}
	return orb.Point{lon, lat}, nil
}

// CalculateArea calculates the geodesic area in square meters for a geometry
func CalculateArea(geometry orb.Geometry) float64 {
	return geo.Area(geometry)
}

// ConvertToHectares converts square meters to hectares
func ConvertToHectares(sqMeters float64) float64 {
	return sqMeters / 10000
}
