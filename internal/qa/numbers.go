package qa

import (
	"regexp"
	"strings"
)

// numberRe matches integers and decimals using comma or dot separators,
// optionally followed by a percent or currency symbol.
var numberRe = regexp.MustCompile(`\d+(?:[.,]\d+)*[%$€£¥]?`)

// ExtractNumbers returns the numeric tokens of text in order of appearance.
func ExtractNumbers(text string) []string {
	return numberRe.FindAllString(text, -1)
}

var numberNoise = strings.NewReplacer(
	"%", "", "$", "", "€", "", "£", "", "¥", "",
	",", "", ".", "",
)

// NormalizeNumber strips currency and percent symbols, thousands separators
// and decimal points so that "1,234.56" and "1234.56" compare equal.
// It is idempotent.
func NormalizeNumber(token string) string {
	return numberNoise.Replace(token)
}
