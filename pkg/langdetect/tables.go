package langdetect

// info describes a supported language for engines and voice selection.
type info struct {
	locale string   // locale requested from capture engines and TTS services
	names  []string // names that appear in platform voice names
}

var languages = map[Code]info{
	English:   {"en-IN", []string{"English"}},
	Hindi:     {"hi-IN", []string{"Hindi", "हिन्दी", "हिंदी"}},
	Tamil:     {"ta-IN", []string{"Tamil", "தமிழ்"}},
	Telugu:    {"te-IN", []string{"Telugu", "తెలుగు"}},
	Kannada:   {"kn-IN", []string{"Kannada", "ಕನ್ನಡ"}},
	Malayalam: {"ml-IN", []string{"Malayalam", "മലയാളം"}},
	Bengali:   {"bn-IN", []string{"Bengali", "Bangla", "বাংলা"}},
	Marathi:   {"mr-IN", []string{"Marathi", "मराठी"}},
	Gujarati:  {"gu-IN", []string{"Gujarati", "ગુજરાતી"}},
	Punjabi:   {"pa-IN", []string{"Punjabi", "ਪੰਜਾਬੀ"}},
	Odia:      {"or-IN", []string{"Odia", "Oriya", "ଓଡ଼ିଆ"}},
}

// EngineLocale returns the locale used to address engines and voices for code.
// Unknown codes are returned unchanged.
func EngineLocale(code Code) string {
	if l, ok := languages[code]; ok {
		return l.locale
	}
	return string(code)
}

// Names returns the names a platform voice for code may carry.
func Names(code Code) []string {
	return languages[code].names
}

// Name returns the English name of code, or the code itself if unknown.
func Name(code Code) string {
	if l, ok := languages[code]; ok && len(l.names) > 0 {
		return l.names[0]
	}
	return string(code)
}

// Supported reports whether code is a known language.
func Supported(code Code) bool {
	_, ok := languages[code]
	return ok
}

// Parse converts a user-supplied code into a Code, falling back to Default.
func Parse(s string) Code {
	if code, ok := FromLocale(s); ok {
		return code
	}
	return Default
}
