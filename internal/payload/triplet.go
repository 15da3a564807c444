// Package payload implements the 12-byte uplink wire format: four 3-byte
// triplets, each carrying one reduced temperature/humidity pair as
// offset-biased unsigned bytes.
package payload

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"picolink/internal/utils"
)

const (
	BytesPerMessage    = 12
	BytesPerTriplet    = 3
	TripletsPerPayload = BytesPerMessage / BytesPerTriplet

	// Offset is added to every value before narrowing to a byte and must be
	// subtracted again on decode.
	Offset = 27
	// MaxEncodable is the largest pre-offset value that still fits a byte.
	MaxEncodable = math.MaxUint8 - Offset
)

// Field names used in RangeError.
const (
	FieldTemperatureInt  = "temperature_int"
	FieldTemperatureFrac = "temperature_frac"
	FieldHumidity        = "humidity"
)

// ErrEncodingRange matches any value that cannot be carried by a biased byte.
var ErrEncodingRange = errors.New("value outside encodable range")

// RangeError reports the field and the pre-offset value that did not fit.
type RangeError struct {
	Field string
	Value float64
}

func (e *RangeError) Error() string {
	return fmt.Sprintf("encode %s: %v outside [0, %d]", e.Field, e.Value, MaxEncodable)
}

func (e *RangeError) Is(target error) bool { return target == ErrEncodingRange }

// Triplet is one encoded reading: biased integer part of the temperature,
// biased two-digit fractional part, biased rounded humidity.
type Triplet [BytesPerTriplet]byte

// Reading is a decoded triplet with the offset removed.
type Reading struct {
	IntPart  int
	FracPart int
	Humidity int
}

// Temperature recombines the integer and two-digit fractional parts.
func (r Reading) Temperature() float64 {
	return float64(r.IntPart) + float64(r.FracPart)/100
}

// EncodeTriplet encodes a reduced temperature (printed with two decimals)
// and humidity (rounded to the nearest integer). Values that would not fit
// a biased byte are rejected with a *RangeError, never wrapped around.
func EncodeTriplet(meanTemp, meanHumidity float64) (Triplet, error) {
	if math.IsNaN(meanTemp) || math.IsInf(meanTemp, 0) || meanTemp < 0 {
		return Triplet{}, &RangeError{Field: FieldTemperatureInt, Value: meanTemp}
	}

	// Negative zero prints as "-0.00"; Atoi reads its integer token as 0.
	text := strconv.FormatFloat(meanTemp, 'f', 2, 64)
	intTok, fracTok, _ := strings.Cut(text, ".")

	intPart, err := strconv.Atoi(intTok)
	if err != nil {
		return Triplet{}, &RangeError{Field: FieldTemperatureInt, Value: meanTemp}
	}
	fracPart, err := strconv.Atoi(fracTok)
	if err != nil {
		return Triplet{}, &RangeError{Field: FieldTemperatureFrac, Value: meanTemp}
	}

	hum := math.Round(meanHumidity)
	if math.IsNaN(hum) || hum < 0 || hum > MaxEncodable {
		return Triplet{}, &RangeError{Field: FieldHumidity, Value: hum}
	}

	pre, err := bias(FieldTemperatureInt, intPart)
	if err != nil {
		return Triplet{}, err
	}
	post, err := bias(FieldTemperatureFrac, fracPart)
	if err != nil {
		return Triplet{}, err
	}
	h, err := bias(FieldHumidity, int(hum))
	if err != nil {
		return Triplet{}, err
	}

	return Triplet{pre, post, h}, nil
}

// bias adds Offset and narrows to a byte, failing instead of wrapping.
func bias(field string, v int) (byte, error) {
	if v < 0 || v > MaxEncodable {
		return 0, &RangeError{Field: field, Value: float64(v)}
	}
	return byte(v + Offset), nil
}

func unbias(field string, b byte) (int, error) {
	v := int(b) - Offset
	if v < 0 {
		return 0, fmt.Errorf("decode %s: byte 0x%02X below offset %d", field, b, Offset)
	}
	return v, nil
}

// Decode removes the offset from each byte.
func (t Triplet) Decode() (Reading, error) {
	intPart, err := unbias(FieldTemperatureInt, t[0])
	if err != nil {
		return Reading{}, err
	}
	fracPart, err := unbias(FieldTemperatureFrac, t[1])
	if err != nil {
		return Reading{}, err
	}
	if fracPart > 99 {
		return Reading{}, fmt.Errorf("decode %s: %d is not two decimal digits", FieldTemperatureFrac, fracPart)
	}
	hum, err := unbias(FieldHumidity, t[2])
	if err != nil {
		return Reading{}, err
	}
	return Reading{IntPart: intPart, FracPart: fracPart, Humidity: hum}, nil
}

func (t Triplet) String() string {
	return utils.BytesToHex(t[:])
}
