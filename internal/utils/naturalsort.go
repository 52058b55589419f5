package utils

import (
	"sort"
	"strings"
	"unicode"
)

// NaturalLess compares two filenames so that embedded numbers sort
// numerically: page_2.png sorts before page_10.png.
func NaturalLess(a, b string) bool {
	a, b = strings.ToLower(a), strings.ToLower(b)
	for a != "" && b != "" {
		aTok, aNum, aRest := nextToken(a)
		bTok, bNum, bRest := nextToken(b)

		switch {
		case aNum >= 0 && bNum >= 0:
			if aNum != bNum {
				return aNum < bNum
			}
		case aTok != bTok:
			return aTok < bTok
		}
		a, b = aRest, bRest
	}
	return a < b
}

// SortNatural sorts filenames in natural order, in place.
func SortNatural(names []string) {
	sort.SliceStable(names, func(i, j int) bool { return NaturalLess(names[i], names[j]) })
}

// nextToken splits off the leading run of digits or non-digits.
// num is -1 for non-numeric tokens.
func nextToken(s string) (tok string, num int64, rest string) {
	if s == "" {
		return "", -1, ""
	}
	isDigit := unicode.IsDigit(rune(s[0]))
	i := 0
	for i < len(s) && unicode.IsDigit(rune(s[i])) == isDigit {
		i++
	}
	tok, rest = s[:i], s[i:]
	if !isDigit {
		return tok, -1, rest
	}
	num = 0
	for _, r := range tok {
		num = num*10 + int64(r-'0')
		if num < 0 { // overflow, fall back to string compare
			return tok, -1, rest
		}
	}
	return tok, num, rest
}
