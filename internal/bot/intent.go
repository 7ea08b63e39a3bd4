package bot

import (
	"context"
	"strings"
)

type IntentKind string

const (
	IntentUnknown    IntentKind = "unknown"
	IntentPredict    IntentKind = "predict"
	IntentCheckPrice IntentKind = "check_price"
	IntentDefine     IntentKind = "define"
)

// ClassifiedIntent is what a fallback classifier extracted from free text.
type ClassifiedIntent struct {
	Type       IntentKind     `json:"type"`
	Args       map[string]any `json:"args"`
	Confidence float32        `json:"confidence"`
	Message    string         `json:"message,omitempty"`
}

// StringArg returns a trimmed string argument, or "".
func (ci *ClassifiedIntent) StringArg(key string) string {
	if ci == nil || ci.Args == nil {
		return ""
	}
	s, _ := ci.Args[key].(string)
	return strings.TrimSpace(s)
}

// IntentClassifier resolves free text the keyword rules did not match.
type IntentClassifier interface {
	Classify(ctx context.Context, message string) (*ClassifiedIntent, error)
}

// DetectIntent performs the keyword heuristics that start a flow from free
// text. msg must already be lower case.
func DetectIntent(msg string) IntentKind {
	if containsAny(msg, []string{"predict", "forecast"}) {
		return IntentPredict
	}
	if strings.Contains(msg, "check price") {
		return IntentCheckPrice
	}
	return IntentUnknown
}

func containsAny(s string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(s, n) {
			return true
		}
	}
	return false
}
