package models

import "strings"

// Entity kinds. The kind prefixes the cache key so a company and a country
// with the same name never collide.
const (
	KindCompany = "company"
	KindCountry = "country"
)

// EntityKey builds the normalized cache key for an entity. Keys differing
// only in case or whitespace map to the same slot.
func EntityKey(kind, raw string) string {
	return kind + ":" + strings.ToLower(strings.Join(strings.Fields(raw), " "))
}

// ParseKey splits a refresh key of the form "company:andela" or
// "country:ng" into kind and name. A bare name defaults to a company.
func ParseKey(raw string) (kind, name string) {
	raw = strings.TrimSpace(raw)
	if k, rest, ok := strings.Cut(raw, ":"); ok {
		switch k {
		case KindCompany, KindCountry:
			return k, strings.TrimSpace(rest)
		}
	}
	return KindCompany, raw
}
