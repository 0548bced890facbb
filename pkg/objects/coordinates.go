package objects

import (
	"io"
	"math"
)

const earthRadiusKm = 6371.0

// Coordinates is a WGS84 latitude/longitude pair.
type Coordinates struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

func NewCoordinates(lat float64, lng float64) Coordinates {
	return Coordinates{Lat: lat, Lng: lng}
}

// DistanceTo returns the great-circle distance to other in kilometres.
func (c Coordinates) DistanceTo(other Coordinates) float64 {
	lat1 := c.Lat * math.Pi / 180
	lat2 := other.Lat * math.Pi / 180
	dLat := (other.Lat - c.Lat) * math.Pi / 180
	dLng := (other.Lng - c.Lng) * math.Pi / 180

	a := math.Pow(math.Sin(dLat/2), 2) + math.Cos(lat1)*math.Cos(lat2)*math.Pow(math.Sin(dLng/2), 2)

	return 2 * math.Asin(math.Sqrt(a)) * earthRadiusKm
}

func (c Coordinates) MarshalBinary(w io.Writer) error {
	if err := writeFloat64(w, c.Lat); err != nil {
		return err
	}
	return writeFloat64(w, c.Lng)
}

func readCoordinates(r io.Reader) (Coordinates, error) {
	lat, err := readFloat64(r)
	if err != nil {
		return Coordinates{}, err
	}
	lng, err := readFloat64(r)
	if err != nil {
		return Coordinates{}, err
	}
	return Coordinates{Lat: lat, Lng: lng}, nil
}
