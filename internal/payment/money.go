package payment

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"math/big"
	"strings"

	"github.com/shopspring/decimal"
)

// moneyPlaces is the number of fraction digits the gateway expects on every
// amount ("19.90", never 19.9).
const moneyPlaces = 2

// NormalizeMoney renders an amount as a fixed two-decimal string. Rounding is
// half away from zero.
//
// Floats are first converted to their shortest decimal form, so 1.005 rounds
// to "1.01" even though its binary value is slightly below 1.005. Pass a
// decimal.Decimal or a numeric string for exact amounts.
func NormalizeMoney(v any) (string, error) {
	d, err := toDecimal(v)
	if err != nil {
		return "", err
	}
	return d.StringFixed(moneyPlaces), nil
}

func toDecimal(v any) (decimal.Decimal, error) {
	switch x := v.(type) {
	case decimal.Decimal:
		return x, nil
	case *decimal.Decimal:
		if x == nil {
			return decimal.Decimal{}, errors.New("nil amount")
		}
		return *x, nil
	case float64:
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return decimal.Decimal{}, fmt.Errorf("non-finite amount %v", x)
		}
		return decimal.NewFromFloat(x), nil
	case float32:
		if math.IsNaN(float64(x)) || math.IsInf(float64(x), 0) {
			return decimal.Decimal{}, fmt.Errorf("non-finite amount %v", x)
		}
		return decimal.NewFromFloat32(x), nil
	case int:
		return decimal.NewFromInt(int64(x)), nil
	case int8:
		return decimal.NewFromInt(int64(x)), nil
	case int16:
		return decimal.NewFromInt(int64(x)), nil
	case int32:
		return decimal.NewFromInt(int64(x)), nil
	case int64:
		return decimal.NewFromInt(x), nil
	case uint:
		return decimal.NewFromBigInt(new(big.Int).SetUint64(uint64(x)), 0), nil
	case uint8:
		return decimal.NewFromInt(int64(x)), nil
	case uint16:
		return decimal.NewFromInt(int64(x)), nil
	case uint32:
		return decimal.NewFromInt(int64(x)), nil
	case uint64:
		return decimal.NewFromBigInt(new(big.Int).SetUint64(x), 0), nil
	case json.Number:
		return parseDecimal(string(x))
	case string:
		return parseDecimal(x)
	default:
		return decimal.Decimal{}, fmt.Errorf("unsupported amount type %T", v)
	}
}

func parseDecimal(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Decimal{}, errors.New("empty amount")
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("not a numeric string: %q", s)
	}
	return d, nil
}
