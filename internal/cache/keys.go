package cache

import (
	"fmt"
	"strings"
)

// KeyGenerator builds cache keys scoped to one owner, shaped like
// "owner.$name.$part1.$part2" and lowercased.
type KeyGenerator struct {
	owner string
}

func NewKeyGenerator(owner string) KeyGenerator {
	return KeyGenerator{owner: owner}
}

func (g KeyGenerator) Key(name string, parts ...any) string {
	var b strings.Builder
	b.WriteString(g.owner)
	b.WriteString(".$")
	b.WriteString(name)
	for _, p := range parts {
		b.WriteString(".$")
		b.WriteString(fmt.Sprint(p))
	}
	return strings.ToLower(b.String())
}

// prefixOf returns "owner.$name" of a generated key for metric labels.
func prefixOf(key string) string {
	first := strings.Index(key, ".$")
	if first < 0 {
		return key
	}
	second := strings.Index(key[first+2:], ".$")
	if second < 0 {
		return key
	}
	return key[:first+2+second]
}
