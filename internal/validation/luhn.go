// Package validation содержит функции проверки входных данных.
package validation

import (
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
)

// IsValidCardNumber проверяет номер карты по алгоритму Луна. Пробелы и
// дефисы между группами цифр допускаются.
func IsValidCardNumber(number string) bool {
	digits := stripSeparators(number)
	if len(digits) < 12 || len(digits) > 19 {
		return false
	}

	sum := 0
	double := false

	for i := len(digits) - 1; i >= 0; i-- {
		ch := rune(digits[i])
		if !unicode.IsDigit(ch) {
			return false
		}
		digit := int(ch - '0')
		if double {
			digit *= 2
			if digit > 9 {
				digit -= 9
			}
		}
		sum += digit
		double = !double
	}

	return sum%10 == 0
}

// MaskCardNumber оставляет видимыми только последние четыре цифры номера.
func MaskCardNumber(number string) string {
	digits := stripSeparators(number)
	if len(digits) < 4 {
		return strings.Repeat("*", len(digits))
	}
	return "**** **** **** " + digits[len(digits)-4:]
}

func stripSeparators(s string) string {
	return strings.Map(func(r rune) rune {
		if r == ' ' || r == '-' {
			return -1
		}
		return r
	}, strings.TrimSpace(s))
}

// maxAmountLength ограничивает длину строки суммы.
const maxAmountLength = 32

// ParseAmount разбирает положительную денежную сумму не более чем с двумя
// знаками после запятой. Экспоненциальная запись не принимается.
func ParseAmount(s string) (decimal.Decimal, bool) {
	s = strings.TrimSpace(s)
	if s == "" || len(s) > maxAmountLength || strings.ContainsAny(s, "eE") {
		return decimal.Zero, false
	}

	v, err := decimal.NewFromString(s)
	if err != nil || !v.IsPositive() {
		return decimal.Zero, false
	}
	if v.Exponent() < -2 && !v.Equal(v.Round(2)) {
		return decimal.Zero, false
	}

	return v, true
}
