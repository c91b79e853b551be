// Package detector guesses the source language of documents submitted with
// source language "auto".
package detector

import (
	"strings"

	lingua "github.com/pemistahl/lingua-go"
)

// sampleRunes limits how much of a document is inspected.
const sampleRunes = 2000

type Detector struct {
	detector lingua.LanguageDetector
}

// New builds a detector for the given languages, or for every language
// lingua knows when none are given.
func New(languages ...lingua.Language) *Detector {
	var builder lingua.LanguageDetectorBuilder
	if len(languages) >= 2 {
		builder = lingua.NewLanguageDetectorBuilder().FromLanguages(languages...)
	} else {
		builder = lingua.NewLanguageDetectorBuilder().FromAllLanguages()
	}
	return &Detector{detector: builder.Build()}
}

func (d *Detector) Detect(text string) (lingua.Language, bool) {
	text = sample(text)
	if text == "" {
		return lingua.Unknown, false
	}
	return d.detector.DetectLanguageOf(text)
}

// DetectISO returns the upper-case ISO 639-1 code of text's language.
func (d *Detector) DetectISO(text string) (string, bool) {
	lang, ok := d.Detect(text)
	if !ok {
		return "", false
	}
	return lang.IsoCode639_1().String(), true
}

func sample(text string) string {
	text = strings.TrimSpace(text)
	if r := []rune(text); len(r) > sampleRunes {
		text = string(r[:sampleRunes])
	}
	return text
}
