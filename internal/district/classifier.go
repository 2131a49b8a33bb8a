// Package district maps free-text Russian addresses to the coarse
// administrative bucket used as the join key between lots and offers.
//
// Classification is deterministic and total: unmatched input degrades to the
// broadest bucket (the city) instead of failing. More specific signals always
// win over generic ones, so the match order below is load-bearing.
package district

import (
	"regexp"
	"strings"
	"unicode"
)

// DefaultTag is the broadest bucket, used when nothing more specific matches.
const DefaultTag = "Москва"

// wellKnownDistricts are central Moscow districts that often appear in
// addresses without the "район" keyword.
var wellKnownDistricts = []string{
	"Хамовники", "Арбат", "Тверской", "Пресненский", "Замоскворечье",
	"Басманный", "Таганский", "Беговой", "Сокол", "Аэропорт",
	"Щукино", "Хорошево-Мневники", "Строгино",
}

// okrugByAbbreviation maps administrative okrug abbreviations to their tags.
var okrugByAbbreviation = map[string]string{
	"цао":   "Центральный АО",
	"сао":   "Северный АО",
	"свао":  "Северо-Восточный АО",
	"вао":   "Восточный АО",
	"ювао":  "Юго-Восточный АО",
	"юао":   "Южный АО",
	"юзао":  "Юго-Западный АО",
	"зао":   "Западный АО",
	"сзао":  "Северо-Западный АО",
	"зелао": "Зеленоградский АО",
	"тинао": "Троицкий и Новомосковский АО",
}

var (
	municipalPrefixRe = regexp.MustCompile(`(?i)(?:район|р-н)\s+([а-яё][а-яё\- ]*)`)
	municipalSuffixRe = regexp.MustCompile(`(?i)([а-яё][а-яё\- ]*?)\s+(?:район|р-н)(?:\s|,|$)`)
	cityRe            = regexp.MustCompile(`(?i)(?:г\.|^г\s|\sг\s|город(?:ской округ)?)\s*([а-яё][а-яё\-]*)`)
)

// Classify returns the district tag for a free-text address. It never fails:
// the fallback chain ends at the city-wide bucket.
func Classify(address string) string {
	lower := strings.ToLower(address)

	// Explicit district or okrug keyword inside a comma-separated part wins
	// outright; it is the strongest signal the address carries.
	for _, part := range strings.Split(address, ",") {
		p := strings.TrimSpace(part)
		pl := strings.ToLower(p)
		if strings.Contains(pl, "район") || strings.Contains(pl, "округ") {
			return capitalize(pl)
		}
	}

	if m := municipalPrefixRe.FindStringSubmatch(address); m != nil {
		return "Район " + capitalize(strings.TrimSpace(m[1]))
	}
	if m := municipalSuffixRe.FindStringSubmatch(address); m != nil {
		return "Район " + capitalize(strings.TrimSpace(m[1]))
	}

	for _, d := range wellKnownDistricts {
		if strings.Contains(lower, strings.ToLower(d)) {
			return d
		}
	}

	if m := cityRe.FindStringSubmatch(address); m != nil {
		city := capitalize(strings.TrimSpace(m[1]))
		if city != "Москва" {
			return "г. " + city
		}
	}

	for _, token := range tokenize(lower) {
		if okrug, ok := okrugByAbbreviation[token]; ok {
			return okrug
		}
	}

	return DefaultTag
}

// tokenize splits on anything that is not a letter. Cyrillic is not covered
// by \b in regexp, so word matching is done on tokens instead.
func tokenize(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r)
	})
}

func capitalize(s string) string {
	runes := []rune(strings.ToLower(s))
	if len(runes) == 0 {
		return s
	}
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}
