package store

import (
	"fmt"

	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"
)

var gradeBands = []struct {
	min   decimal.Decimal
	grade string
}{
	{decimal.NewFromInt(90), "A"},
	{decimal.NewFromInt(80), "B"},
	{decimal.NewFromInt(70), "C"},
	{decimal.NewFromInt(60), "D"},
}

// Grade converts obtained/total marks into a letter grade.
func Grade(obtained, total any) (string, error) {
	o, err := toDecimal(obtained)
	if err != nil {
		return "", invalidf("obtained marks: %v", err)
	}
	t, err := toDecimal(total)
	if err != nil {
		return "", invalidf("total marks: %v", err)
	}
	if !t.IsPositive() {
		return "", invalidf("total marks must be greater than zero")
	}
	if o.IsNegative() {
		return "", invalidf("obtained marks cannot be negative")
	}
	if o.GreaterThan(t) {
		return "", invalidf("obtained marks cannot exceed total marks")
	}
	pct := o.Div(t).Mul(decimal.NewFromInt(100))
	for _, band := range gradeBands {
		if pct.GreaterThanOrEqual(band.min) {
			return band.grade, nil
		}
	}
	return "F", nil
}

func toDecimal(v any) (decimal.Decimal, error) {
	switch n := v.(type) {
	case decimal.Decimal:
		return n, nil
	case float64:
		return decimal.NewFromFloat(n), nil
	case int64:
		return decimal.NewFromInt(n), nil
	case int:
		return decimal.NewFromInt(int64(n)), nil
	case string:
		return decimal.NewFromString(n)
	case nil:
		return decimal.Zero, fmt.Errorf("missing")
	default:
		return decimal.Zero, fmt.Errorf("unsupported type %T", v)
	}
}

// HashPassword hashes a plain-text password with bcrypt.
func HashPassword(plain string) (string, error) {
	if plain == "" {
		return "", invalidf("password must not be empty")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(plain), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}
