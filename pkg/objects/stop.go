package objects

import (
	"io"
)

// Stop is one physical stop in the dataset. Stops are identified externally
// by a string stop-id held in the DataSheet index tables, not by the value
// itself.
type Stop struct {
	Location Coordinates    `json:"location"`
	Name     BilingualText  `json:"name"`
	Remark   *BilingualText `json:"remark,omitempty"`

	// KmbBbiID is KMB's bus-bus interchange identifier, where one exists.
	KmbBbiID *string `json:"kmbBbiId,omitempty"`
}

func (s *Stop) MarshalBinary(w io.Writer) error {
	if err := s.Location.MarshalBinary(w); err != nil {
		return err
	}
	if err := s.Name.MarshalBinary(w); err != nil {
		return err
	}
	if err := writeNullable(w, s.Remark, func(w io.Writer, t BilingualText) error {
		return t.MarshalBinary(w)
	}); err != nil {
		return err
	}
	return writeNullable(w, s.KmbBbiID, writeString)
}

func ReadStop(r io.Reader) (*Stop, error) {
	location, err := readCoordinates(r)
	if err != nil {
		return nil, err
	}
	name, err := readBilingualText(r)
	if err != nil {
		return nil, err
	}
	remark, err := readNullable(r, readBilingualText)
	if err != nil {
		return nil, err
	}
	kmbBbiID, err := readNullable(r, readString)
	if err != nil {
		return nil, err
	}

	return &Stop{
		Location: location,
		Name:     name,
		Remark:   remark,
		KmbBbiID: kmbBbiID,
	}, nil
}
