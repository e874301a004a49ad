// Package cachekey derives cache keys and invalidation patterns.
//
// Keys have the form {prefix}{entity}:{qualifier}:{discriminator}. Point
// lookups (id, name) use the raw value as discriminator; collection lookups
// (cond, list, ids) use a hash of a canonical encoding, so logically equal
// inputs always land on the same key.
package cachekey

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// Qualifier is the second key segment.
type Qualifier string

const (
	QualifierID   Qualifier = "id"
	QualifierName Qualifier = "name"
	QualifierCond Qualifier = "cond"
	QualifierList Qualifier = "list"
	QualifierIDs  Qualifier = "ids"
)

const (
	minHashLength     = 8
	maxHashLength     = 16
	defaultHashLength = maxHashLength
)

// Builder builds keys under a fixed prefix. The zero value is not usable; call New.
type Builder struct {
	prefix     string
	hashLength int
}

// Option configures a Builder.
type Option func(*Builder)

// WithHashLength sets how many hex characters of the 64-bit hash are kept.
// Values are clamped to [8, 16].
func WithHashLength(n int) Option {
	return func(b *Builder) {
		switch {
		case n < minHashLength:
			n = minHashLength
		case n > maxHashLength:
			n = maxHashLength
		}
		b.hashLength = n
	}
}

// New returns a Builder for prefix, e.g. "agora:".
func New(prefix string, opts ...Option) *Builder {
	b := &Builder{prefix: prefix, hashLength: defaultHashLength}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Prefix returns the configured key prefix.
func (b *Builder) Prefix() string { return b.prefix }

func (b *Builder) key(entity string, q Qualifier, discriminator string) string {
	return b.prefix + entity + ":" + string(q) + ":" + discriminator
}

// ID returns the key of a single entity looked up by id.
func (b *Builder) ID(entity, id string) string {
	return b.key(entity, QualifierID, id)
}

// Name returns the key of a single entity looked up by its unique name.
func (b *Builder) Name(entity, name string) string {
	return b.key(entity, QualifierName, name)
}

// Cond returns the key of a compound-condition lookup.
func (b *Builder) Cond(entity string, cond any) (string, error) {
	h, err := b.hashOf(cond)
	if err != nil {
		return "", fmt.Errorf("cachekey: cond for %s: %w", entity, err)
	}
	return b.key(entity, QualifierCond, h), nil
}

// List returns the key of a paginated listing filtered by cond.
func (b *Builder) List(entity string, cond, paging any) (string, error) {
	h, err := b.hashOf(map[string]any{"condition": cond, "paging": paging})
	if err != nil {
		return "", fmt.Errorf("cachekey: list for %s: %w", entity, err)
	}
	return b.key(entity, QualifierList, h), nil
}

// IDs returns the key of a bulk lookup. The id order does not matter.
// The sorted ids are hashed as a JSON array, so no id can be mistaken for
// a separator.
func (b *Builder) IDs(entity string, ids []string) string {
	sorted := make([]string, len(ids))
	copy(sorted, ids)
	sort.Strings(sorted)
	// a []string always marshals
	data, _ := json.Marshal(sorted)
	return b.key(entity, QualifierIDs, b.hash(data))
}

// Pattern matches every key of entity under qualifier q.
func (b *Builder) Pattern(entity string, q Qualifier) string {
	return b.key(entity, q, "*")
}

// CollectionPatterns returns the patterns covering every list, ids and cond key of entity.
func (b *Builder) CollectionPatterns(entity string) []string {
	return []string{
		b.Pattern(entity, QualifierList),
		b.Pattern(entity, QualifierIDs),
		b.Pattern(entity, QualifierCond),
	}
}

func (b *Builder) hashOf(v any) (string, error) {
	canon, err := Canonical(v)
	if err != nil {
		return "", err
	}
	return b.hash(canon), nil
}

func (b *Builder) hash(data []byte) string {
	sum := strconv.FormatUint(xxhash.Sum64(data), 16)
	if pad := maxHashLength - len(sum); pad > 0 {
		sum = strings.Repeat("0", pad) + sum
	}
	return sum[:b.hashLength]
}

// Canonical encodes v as JSON with object keys sorted at every depth.
// Struct field order, map iteration order and number formatting do not
// affect the result.
func Canonical(v any) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var generic any
	if err := dec.Decode(&generic); err != nil {
		return nil, err
	}

	// encoding/json writes map keys in sorted order.
	return json.Marshal(generic)
}
