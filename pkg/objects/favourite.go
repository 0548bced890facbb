package objects

import (
	"io"
)

// FavouriteStopMode selects how a favourite resolves its stop.
type FavouriteStopMode string

const (
	// FavouriteStopModeFixed pins the exact stop chosen by the user.
	FavouriteStopModeFixed FavouriteStopMode = "FIXED"
	// FavouriteStopModeClosest re-resolves to whichever stop on the route is
	// nearest the user's current location.
	FavouriteStopModeClosest FavouriteStopMode = "CLOSEST"
)

func FavouriteStopModeFrom(name string) FavouriteStopMode {
	if name == string(FavouriteStopModeClosest) {
		return FavouriteStopModeClosest
	}
	return FavouriteStopModeFixed
}

// FavouriteRouteStop is one user-pinned route-stop slot.
type FavouriteRouteStop struct {
	StopID    string            `json:"stopId"`
	Operator  Operator          `json:"co"`
	Index     int               `json:"index"`
	Stop      *Stop             `json:"stop"`
	Route     *Route            `json:"route"`
	Mode      FavouriteStopMode `json:"favouriteStopMode"`
}

func (f *FavouriteRouteStop) MarshalBinary(w io.Writer) error {
	if err := writeString(w, f.StopID); err != nil {
		return err
	}
	if err := writeString(w, f.Operator.Name()); err != nil {
		return err
	}
	if err := writeInt32(w, int32(f.Index)); err != nil {
		return err
	}
	if err := f.Stop.MarshalBinary(w); err != nil {
		return err
	}
	if err := f.Route.MarshalBinary(w); err != nil {
		return err
	}
	return writeString(w, string(f.Mode))
}

func ReadFavouriteRouteStop(r io.Reader) (*FavouriteRouteStop, error) {
	favourite := &FavouriteRouteStop{}

	var err error
	if favourite.StopID, err = readString(r); err != nil {
		return nil, err
	}
	name, err := readString(r)
	if err != nil {
		return nil, err
	}
	favourite.Operator = OperatorFrom(name)
	index, err := readInt32(r)
	if err != nil {
		return nil, err
	}
	favourite.Index = int(index)
	if favourite.Stop, err = ReadStop(r); err != nil {
		return nil, err
	}
	if favourite.Route, err = ReadRoute(r); err != nil {
		return nil, err
	}
	mode, err := readString(r)
	if err != nil {
		return nil, err
	}
	favourite.Mode = FavouriteStopModeFrom(mode)

	return favourite, nil
}
