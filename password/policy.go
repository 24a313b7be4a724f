package password

import (
	"crypto/rand"
	"errors"
	"math/big"
	"strings"
	"unicode"
)

const (
	// MinLength and MaxLength bound acceptable password sizes.
	MinLength = 12
	MaxLength = 128

	longBonusLength = 16
)

const (
	upperChars   = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	lowerChars   = "abcdefghijklmnopqrstuvwxyz"
	digitChars   = "0123456789"
	symbolChars  = "!@#$%^&*()_+-=[]{}|;:,.<>?"
	allGenerated = upperChars + lowerChars + digitChars + symbolChars
)

// keyboardRuns are adjacency substrings rejected regardless of the rest of
// the password.
var keyboardRuns = []string{"qwerty", "asdfgh", "zxcvbn", "qazwsx", "edcrfv", "tgbyhn"}

// Strength labels returned by Validate.
const (
	StrengthWeak       = "weak"
	StrengthMedium     = "medium"
	StrengthStrong     = "strong"
	StrengthVeryStrong = "very_strong"
)

// Result is the structured verdict for one candidate password. Every rule is
// checked independently; Issues accumulates all of them.
type Result struct {
	Valid       bool
	Score       int
	Strength    string
	Issues      []string
	Suggestions []string
}

// Policy evaluates password strength and membership in the compromised set.
// The zero value is not usable; construct with NewPolicy.
type Policy struct {
	common map[string]struct{}
}

// NewPolicy returns a Policy over the bundled common-password set.
func NewPolicy() *Policy {
	common := make(map[string]struct{}, len(commonPasswords))
	for _, p := range commonPasswords {
		common[p] = struct{}{}
	}
	return &Policy{common: common}
}

// Validate scores the candidate 0–4 and collects issues and suggestions.
// Valid requires an empty issue list and a score of at least 3.
func (p *Policy) Validate(candidate string) Result {
	var res Result
	score := 0.0

	switch {
	case len(candidate) < MinLength:
		res.issue("Password must be at least 12 characters long",
			"Use a longer passphrase")
	case len(candidate) > MaxLength:
		res.issue("Password must be at most 128 characters long", "")
	case len(candidate) >= longBonusLength:
		score++
	default:
		score += 0.5
	}

	if p.IsCompromised(candidate) {
		res.issue("Password is too common", "Choose a more unique password")
	}

	var hasUpper, hasLower, hasDigit, hasSymbol bool
	for _, r := range candidate {
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsDigit(r):
			hasDigit = true
		default:
			hasSymbol = true
		}
	}
	if hasUpper {
		score++
	} else {
		res.issue("Include at least one uppercase letter", "Add uppercase letters (A-Z)")
	}
	if hasLower {
		score++
	} else {
		res.issue("Include at least one lowercase letter", "Add lowercase letters (a-z)")
	}
	if hasDigit {
		score++
	} else {
		res.issue("Include at least one number", "Add numbers (0-9)")
	}
	if hasSymbol {
		score++
	} else {
		res.issue("Include at least one special character", "Add special characters (!@#$%^&*)")
	}

	if hasRepeatedRun(candidate) {
		res.issue("Avoid repeated characters",
			"Don't repeat the same character more than twice")
	}
	if hasSequentialRun(candidate) {
		res.issue("Avoid sequential characters",
			"Don't use sequential letters or numbers (abc, 123, etc.)")
	}
	if hasKeyboardRun(candidate) {
		res.issue("Avoid keyboard patterns",
			"Don't use keyboard patterns (qwerty, asdfgh, etc.)")
	}

	res.Score = int(score)
	if res.Score > 4 {
		res.Score = 4
	}
	res.Strength = strengthLabel(res.Score)
	res.Valid = len(res.Issues) == 0 && res.Score >= 3
	return res
}

// IsCompromised reports membership in the known-breached/common set,
// case-insensitively. A false result proves nothing; the set is small and
// offline.
func (p *Policy) IsCompromised(candidate string) bool {
	_, ok := p.common[strings.ToLower(candidate)]
	return ok
}

// GenerateSecure produces a random password of at least MinLength characters
// containing one character from each required class. The random source is
// crypto/rand throughout, including the final shuffle.
func (p *Policy) GenerateSecure(length int) (string, error) {
	if length < MinLength {
		length = MinLength
	}

	chars := make([]byte, 0, length)
	for _, class := range []string{upperChars, lowerChars, digitChars, symbolChars} {
		c, err := pick(class)
		if err != nil {
			return "", err
		}
		chars = append(chars, c)
	}
	for len(chars) < length {
		c, err := pick(allGenerated)
		if err != nil {
			return "", err
		}
		chars = append(chars, c)
	}

	// Fisher-Yates with a crypto source so the mandatory class characters
	// do not sit at predictable positions.
	for i := len(chars) - 1; i > 0; i-- {
		j, err := secureIntn(i + 1)
		if err != nil {
			return "", err
		}
		chars[i], chars[j] = chars[j], chars[i]
	}

	return string(chars), nil
}

func (r *Result) issue(issue, suggestion string) {
	r.Issues = append(r.Issues, issue)
	if suggestion != "" {
		r.Suggestions = append(r.Suggestions, suggestion)
	}
}

func strengthLabel(score int) string {
	switch {
	case score < 2:
		return StrengthWeak
	case score < 3:
		return StrengthMedium
	case score < 4:
		return StrengthStrong
	default:
		return StrengthVeryStrong
	}
}

func hasRepeatedRun(s string) bool {
	run := 1
	var prev rune
	for i, r := range s {
		if i > 0 && r == prev {
			run++
			if run >= 3 {
				return true
			}
		} else {
			run = 1
		}
		prev = r
	}
	return false
}

// hasSequentialRun detects three forward-consecutive lowercase-folded
// letters or digits: abc, hij, 123, 012. Reverse runs (cba) pass.
func hasSequentialRun(s string) bool {
	folded := strings.ToLower(s)
	for i := 0; i+2 < len(folded); i++ {
		a, b, c := folded[i], folded[i+1], folded[i+2]
		letters := a >= 'a' && c <= 'z' && b == a+1 && c == b+1
		digits := a >= '0' && c <= '9' && b == a+1 && c == b+1
		if letters || digits {
			return true
		}
	}
	return false
}

func hasKeyboardRun(s string) bool {
	folded := strings.ToLower(s)
	for _, run := range keyboardRuns {
		if strings.Contains(folded, run) {
			return true
		}
	}
	return false
}

func pick(class string) (byte, error) {
	i, err := secureIntn(len(class))
	if err != nil {
		return 0, err
	}
	return class[i], nil
}

func secureIntn(n int) (int, error) {
	if n <= 0 {
		return 0, errors.New("secureIntn: non-positive bound")
	}
	v, err := rand.Int(rand.Reader, big.NewInt(int64(n)))
	if err != nil {
		return 0, err
	}
	return int(v.Int64()), nil
}
