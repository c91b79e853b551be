// Package validator checks that translated text is written in the language
// it was translated to.
package validator

import (
	"fmt"
	"strings"

	"github.com/dutchyankee87/weconnect-translate/internal/detector"
)

// minValidationLength is the rune count below which detection is too
// unreliable to act on.
const minValidationLength = 20

type Validator struct {
	det *detector.Detector
}

func New(det *detector.Detector) *Validator {
	return &Validator{det: det}
}

// Check returns an error when text is empty or detected as a language other
// than targetLang. Regional variants compare by base language, so "EN-GB"
// accepts English. Short or ambiguous texts pass.
func (v *Validator) Check(text, targetLang string) error {
	base, _, _ := strings.Cut(strings.TrimSpace(targetLang), "-")
	if base == "" {
		return nil
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return fmt.Errorf("translation is empty")
	}
	if len([]rune(text)) < minValidationLength {
		return nil
	}

	detected, ok := v.det.DetectISO(text)
	if !ok {
		return nil
	}
	if !strings.EqualFold(detected, base) {
		return fmt.Errorf("expected %s but detected %s", strings.ToUpper(base), detected)
	}
	return nil
}
