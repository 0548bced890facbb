package objects

import (
	"io"
)

// BilingualText holds the Traditional Chinese and English renderings of a
// display string. Values are immutable once constructed.
type BilingualText struct {
	Zh string `json:"zh"`
	En string `json:"en"`
}

var EmptyBilingualText = BilingualText{}

func NewBilingualText(zh string, en string) BilingualText {
	return BilingualText{Zh: zh, En: en}
}

// Get returns the string for the requested language, defaulting to Chinese
// for any unrecognised language code.
func (b BilingualText) Get(language string) string {
	if language == "en" {
		return b.En
	}
	return b.Zh
}

// Append concatenates both languages element-wise.
func (b BilingualText) Append(other BilingualText) BilingualText {
	return BilingualText{Zh: b.Zh + other.Zh, En: b.En + other.En}
}

// AppendString concatenates the same suffix onto both languages.
func (b BilingualText) AppendString(suffix string) BilingualText {
	return BilingualText{Zh: b.Zh + suffix, En: b.En + suffix}
}

func (b BilingualText) IsEmpty() bool {
	return b.Zh == "" && b.En == ""
}

func (b BilingualText) String() string {
	return b.Zh + " " + b.En
}

func (b BilingualText) MarshalBinary(w io.Writer) error {
	if err := writeString(w, b.Zh); err != nil {
		return err
	}
	return writeString(w, b.En)
}

func readBilingualText(r io.Reader) (BilingualText, error) {
	zh, err := readString(r)
	if err != nil {
		return BilingualText{}, err
	}
	en, err := readString(r)
	if err != nil {
		return BilingualText{}, err
	}
	return BilingualText{Zh: zh, En: en}, nil
}
