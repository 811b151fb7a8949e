package elements

import "strings"

// Split divides an element key "<kind>_<id>" on the first underscore.
// ok is false if key contains no underscore at all.
func Split(key string) (kind, id string, ok bool) {
	idx := strings.IndexByte(key, '_')
	if idx < 0 {
		return "", "", false
	}
	return key[:idx], key[idx+1:], true
}

// MakeKey joins a kind and id into an element key.
func MakeKey(kind, id string) string {
	return kind + "_" + id
}
