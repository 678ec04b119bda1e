package casefile

import "fmt"

type Kind string

const (
	KindIntendedParent Kind = "intended_parent"
	KindSurrogate      Kind = "surrogate"
)

func ParseKind(s string) (Kind, error) {
	switch Kind(s) {
	case KindIntendedParent, KindSurrogate:
		return Kind(s), nil
	default:
		return "", fmt.Errorf("unknown case kind: %s", s)
	}
}
