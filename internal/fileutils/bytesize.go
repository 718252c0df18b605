package fileutils

import (
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"
	"unicode"

	"github.com/go-viper/mapstructure/v2"
)

// ByteSize is an amount of bytes which can be parsed from a human readable string such as "20MiB".
//
// It implements pflag.Value so it can be used directly as a command line flag.
type ByteSize int64

// String returns the amount of bytes as a plain decimal number.
func (b *ByteSize) String() string {
	return strconv.FormatInt(int64(*b), 10)
}

// Set parses s and stores the result.
func (b *ByteSize) Set(s string) error {
	v, err := ParseByteSize(s)
	if err != nil {
		return err
	}
	*b = v
	return nil
}

// Type returns the flag type name.
func (b *ByteSize) Type() string {
	return "bytes"
}

// ParseByteSize parses a number followed by an optional unit, e.g. "512", "128KiB" or "20 mb".
func ParseByteSize(s string) (ByteSize, error) {
	s = strings.TrimSpace(s)
	i := strings.IndexFunc(s, func(r rune) bool { return !unicode.IsDigit(r) })
	if i == 0 {
		return 0, fmt.Errorf("invalid byte size %q: missing value", s)
	}
	num, unit := s, ""
	if i > 0 {
		num, unit = s[:i], strings.TrimSpace(s[i:])
	}

	value, err := strconv.ParseInt(num, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid byte size %q: %v", s, err)
	}

	n, err := ConvertUnitToBytes(unit, value)
	if err != nil {
		return 0, fmt.Errorf("invalid byte size %q: %w", s, err)
	}
	return ByteSize(n), nil
}

// ConvertUnitToBytes takes a string bytes unit and converts value to bytes.
// If the unit is not recognized or the result doesn't fit in an int64, an error is returned and value is returned as is.
func ConvertUnitToBytes(unit string, value int64) (int64, error) {
	var multiplier int64
	switch strings.ToLower(unit) {
	case "", "b":
		multiplier = 1
	case "k", "kb", "kib":
		multiplier = 1 << 10
	case "m", "mb", "mib":
		multiplier = 1 << 20
	case "g", "gb", "gib":
		multiplier = 1 << 30
	default:
		return value, fmt.Errorf("unrecognized bytes unit: %s", unit)
	}

	if value < 0 || value > math.MaxInt64/multiplier {
		return value, fmt.Errorf("%d%s is out of range", value, unit)
	}
	return value * multiplier, nil
}

// ByteSizeHookFunc returns a mapstructure decode hook converting strings to ByteSize.
func ByteSizeHookFunc() mapstructure.DecodeHookFuncType {
	return func(from reflect.Type, to reflect.Type, data any) (any, error) {
		if to != reflect.TypeOf(ByteSize(0)) || from.Kind() != reflect.String {
			return data, nil
		}
		s, ok := data.(string)
		if !ok {
			return data, nil
		}
		return ParseByteSize(s)
	}
}
