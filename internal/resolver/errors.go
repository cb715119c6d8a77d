package resolver

import "strings"

// ErrorKind classifies an extraction failure by its error text. The
// signatures are matched in a fixed order; the first hit wins.
type ErrorKind int

const (
	KindGeneric ErrorKind = iota
	KindParse
	KindTimeout
	KindConnectionReset
	KindAgeRestricted
	KindPrivate
	KindLoginRequired
	KindNotFound
	KindGeoRestricted
)

func (k ErrorKind) String() string {
	switch k {
	case KindParse:
		return "parse"
	case KindTimeout:
		return "timeout"
	case KindConnectionReset:
		return "connection-reset"
	case KindAgeRestricted:
		return "age-restricted"
	case KindPrivate:
		return "private"
	case KindLoginRequired:
		return "login-required"
	case KindNotFound:
		return "not-found"
	case KindGeoRestricted:
		return "geo-restricted"
	default:
		return "generic"
	}
}

// signature pairs a set of substrings with the kind they indicate. All
// substrings of an entry must appear for it to match, which keeps
// "connection reset" from shadowing plain timeouts.
type signature struct {
	all  []string
	any  []string
	kind ErrorKind
}

var signatures = []signature{
	{any: []string{"cannot parse data", "parse"}, kind: KindParse},
	{all: []string{"connection"}, any: []string{"reset", "aborted", "10054"}, kind: KindConnectionReset},
	{any: []string{"timeout", "timed out"}, kind: KindTimeout},
	{any: []string{"inappropriate", "unavailable for certain audiences", "age-restricted"}, kind: KindAgeRestricted},
	{any: []string{"private"}, kind: KindPrivate},
	{any: []string{"login", "sign in"}, kind: KindLoginRequired},
	{any: []string{"not found", "404"}, kind: KindNotFound},
	{any: []string{"geo", "region"}, kind: KindGeoRestricted},
}

// ClassifyError maps raw extractor error text to an ErrorKind.
func ClassifyError(msg string) ErrorKind {
	lower := strings.ToLower(msg)
	for _, sig := range signatures {
		if !containsAll(lower, sig.all) {
			continue
		}
		if len(sig.any) == 0 || containsAny(lower, sig.any) {
			return sig.kind
		}
	}
	return KindGeneric
}

func containsAll(s string, subs []string) bool {
	for _, sub := range subs {
		if !strings.Contains(s, sub) {
			return false
		}
	}
	return true
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
