package datetime

import "golang.org/x/text/language"

// relativeMatcher resolves an arbitrary locale tag to the closest of the
// languages ParseRelative understands natural-language phrases for. Errors
// fall back to English so an unrecognized locale never breaks parsing.
var relativeMatcher = language.NewMatcher([]language.Tag{
	language.English,
	language.SimplifiedChinese,
	language.Japanese,
	language.Korean,
})

// normalizeLocale maps a BCP-47 locale string to one of the languages the
// relative-phrase tables cover, defaulting to English for anything else.
func normalizeLocale(locale string) language.Tag {
	if locale == "" {
		return language.English
	}
	tag, _, err := language.ParseAcceptLanguage(locale)
	if err != nil || len(tag) == 0 {
		parsed, parseErr := language.Parse(locale)
		if parseErr != nil {
			return language.English
		}
		_, idx, _ := relativeMatcher.Match(parsed)
		return []language.Tag{language.English, language.SimplifiedChinese, language.Japanese, language.Korean}[idx]
	}
	_, idx, _ := relativeMatcher.Match(tag...)
	return []language.Tag{language.English, language.SimplifiedChinese, language.Japanese, language.Korean}[idx]
}
