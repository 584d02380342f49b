package classify

import (
	"regexp"

	"github.com/hyperjump/toridasu/internal/models"
)

// identifierShape checks for the ISIN structure: 2 letters, 9 alphanumeric, 1 digit.
var identifierShape = regexp.MustCompile(`^[A-Z]{2}[A-Z0-9]{9}[0-9]$`)

// ParseIdentifier returns the token's identifier when it matches the
// 12-character ISIN shape. A failed checksum does not reject the code: OCR
// noise can corrupt a single digit, so the identifier is kept as a
// low-confidence candidate with ChecksumValid false.
func ParseIdentifier(raw string) *models.Identifier {
	if !identifierShape.MatchString(raw) {
		return nil
	}
	return &models.Identifier{Code: raw, ChecksumValid: ValidChecksum(raw)}
}

// ValidChecksum verifies an ISIN check digit: letters expand to two-digit
// numbers (A=10 .. Z=35), then a Luhn pass with alternating doubling runs
// over the expanded digit string of the first 11 characters, and the result
// is compared against the final digit.
func ValidChecksum(code string) bool {
	if len(code) != 12 {
		return false
	}
	var digits []int
	for i := 0; i < 11; i++ {
		ch := code[i]
		switch {
		case ch >= 'A' && ch <= 'Z':
			n := int(ch) - 55
			digits = append(digits, n/10, n%10)
		case ch >= '0' && ch <= '9':
			digits = append(digits, int(ch-'0'))
		default:
			return false
		}
	}

	sum := 0
	double := true
	for i := len(digits) - 1; i >= 0; i-- {
		d := digits[i]
		if double {
			d *= 2
		}
		sum += d/10 + d%10
		double = !double
	}

	check := code[11]
	if check < '0' || check > '9' {
		return false
	}
	return (10-sum%10)%10 == int(check-'0')
}

// ChecksumDigit computes the check digit for the first 11 characters of an
// ISIN-shaped code. Used by tests to generate valid identifiers.
func ChecksumDigit(prefix string) int {
	var digits []int
	for i := 0; i < len(prefix); i++ {
		ch := prefix[i]
		if ch >= 'A' && ch <= 'Z' {
			n := int(ch) - 55
			digits = append(digits, n/10, n%10)
		} else {
			digits = append(digits, int(ch-'0'))
		}
	}
	sum := 0
	double := true
	for i := len(digits) - 1; i >= 0; i-- {
		d := digits[i]
		if double {
			d *= 2
		}
		sum += d/10 + d%10
		double = !double
	}
	return (10 - sum%10) % 10
}
