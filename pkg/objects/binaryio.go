package objects

import (
	"encoding/binary"
	"errors"
	"io"
	"math"

	"golang.org/x/exp/slices"
)

// The compact binary form used for in-process transfer of large payloads.
// Strings are written as a big-endian int32 byte length followed by UTF-8
// bytes; numerics are fixed width big-endian; optional values carry a
// one-byte present/absent discriminator.

const maxBinaryStringLength = 16 * 1024 * 1024

var errStringTooLong = errors.New("objects: string length exceeds binary frame limit")

func writeString(w io.Writer, s string) error {
	if len(s) > maxBinaryStringLength {
		return errStringTooLong
	}
	if err := binary.Write(w, binary.BigEndian, int32(len(s))); err != nil {
		return err
	}
	_, err := w.Write([]byte(s))
	return err
}

func readString(r io.Reader) (string, error) {
	var length int32
	if err := binary.Read(r, binary.BigEndian, &length); err != nil {
		return "", err
	}
	if length < 0 || length > maxBinaryStringLength {
		return "", errStringTooLong
	}
	buffer := make([]byte, length)
	if _, err := io.ReadFull(r, buffer); err != nil {
		return "", err
	}
	return string(buffer), nil
}

func writeBool(w io.Writer, b bool) error {
	value := byte(0)
	if b {
		value = 1
	}
	_, err := w.Write([]byte{value})
	return err
}

func readBool(r io.Reader) (bool, error) {
	var buffer [1]byte
	if _, err := io.ReadFull(r, buffer[:]); err != nil {
		return false, err
	}
	return buffer[0] != 0, nil
}

func writeInt32(w io.Writer, i int32) error {
	return binary.Write(w, binary.BigEndian, i)
}

func readInt32(r io.Reader) (int32, error) {
	var i int32
	err := binary.Read(r, binary.BigEndian, &i)
	return i, err
}

func writeInt64(w io.Writer, i int64) error {
	return binary.Write(w, binary.BigEndian, i)
}

func readInt64(r io.Reader) (int64, error) {
	var i int64
	err := binary.Read(r, binary.BigEndian, &i)
	return i, err
}

func writeFloat64(w io.Writer, f float64) error {
	return binary.Write(w, binary.BigEndian, math.Float64bits(f))
}

func readFloat64(r io.Reader) (float64, error) {
	var bits uint64
	if err := binary.Read(r, binary.BigEndian, &bits); err != nil {
		return 0, err
	}
	return math.Float64frombits(bits), nil
}

// writeNullable writes the presence discriminator followed by the value when
// present.
func writeNullable[T any](w io.Writer, value *T, write func(io.Writer, T) error) error {
	if err := writeBool(w, value != nil); err != nil {
		return err
	}
	if value == nil {
		return nil
	}
	return write(w, *value)
}

func readNullable[T any](r io.Reader, read func(io.Reader) (T, error)) (*T, error) {
	present, err := readBool(r)
	if err != nil {
		return nil, err
	}
	if !present {
		return nil, nil
	}
	value, err := read(r)
	if err != nil {
		return nil, err
	}
	return &value, nil
}

// Map keys are written in sorted order so encodings are deterministic for a
// given value.
func sortedStringKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	slices.Sort(keys)
	return keys
}

func writeStringSlice(w io.Writer, values []string) error {
	if err := writeInt32(w, int32(len(values))); err != nil {
		return err
	}
	for _, value := range values {
		if err := writeString(w, value); err != nil {
			return err
		}
	}
	return nil
}

func readStringSlice(r io.Reader) ([]string, error) {
	length, err := readInt32(r)
	if err != nil {
		return nil, err
	}
	values := make([]string, 0, length)
	for i := int32(0); i < length; i++ {
		value, err := readString(r)
		if err != nil {
			return nil, err
		}
		values = append(values, value)
	}
	return values, nil
}
