package config

import (
	"errors"
	"math"
	"strconv"
	"strings"
)

// ErrInvalidSize is returned by ParseSize for anything that is not a positive
// byte count that fits in 64 bits.
var ErrInvalidSize = errors.New("invalid size: use positive integer bytes, optionally with K/M/G suffix")

// ParseSize parses a positive decimal byte count with an optional
// case-insensitive K, M or G suffix (powers of 1024).
func ParseSize(raw string) (uint64, error) {
	if raw == "" {
		return 0, ErrInvalidSize
	}
	var multiplier uint64 = 1
	switch strings.ToUpper(raw[len(raw)-1:]) {
	case "K":
		multiplier = 1 << 10
	case "M":
		multiplier = 1 << 20
	case "G":
		multiplier = 1 << 30
	}
	digits := raw
	if multiplier != 1 {
		digits = raw[:len(raw)-1]
	}
	if digits == "" {
		return 0, ErrInvalidSize
	}
	for i := 0; i < len(digits); i++ {
		if digits[i] < '0' || digits[i] > '9' {
			return 0, ErrInvalidSize
		}
	}
	value, err := strconv.ParseUint(digits, 10, 64)
	if err != nil {
		return 0, ErrInvalidSize
	}
	if value == 0 || value > math.MaxUint64/multiplier {
		return 0, ErrInvalidSize
	}
	return value * multiplier, nil
}
