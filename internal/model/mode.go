package model

import "fmt"

// Mode selects which search endpoint the server uses.
type Mode string

const (
	ModeText          Mode = "text"
	ModeFuzzy         Mode = "fuzzy"
	ModeFirstEachWord Mode = "first_each_word"
)

// Modes lists every supported mode in command order.
var Modes = []Mode{ModeFirstEachWord, ModeText, ModeFuzzy}

func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeText, ModeFuzzy, ModeFirstEachWord:
		return Mode(s), nil
	}
	return "", fmt.Errorf("unknown search mode %q (want text, fuzzy or first_each_word)", s)
}

func (m Mode) Valid() bool {
	_, err := ParseMode(string(m))
	return err == nil
}

// Label is the command title shown for the mode.
func (m Mode) Label() string {
	switch m {
	case ModeText:
		return "Pankti (Text)"
	case ModeFuzzy:
		return "Pankti (Fuzzy)"
	case ModeFirstEachWord:
		return "Pankti (First Letter Start)"
	default:
		return string(m)
	}
}
