package domain

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// DimensionFilter maps a dimension name to its accepted values.
// A record matches when, for every key, its dimension value is in the set.
// The empty filter matches every record.
type DimensionFilter map[string][]string

// Normalize returns a copy with values deduplicated and sorted, and keys with
// no values dropped.
func (f DimensionFilter) Normalize() DimensionFilter {
	out := make(DimensionFilter, len(f))
	for k, vals := range f {
		if len(vals) == 0 {
			continue
		}
		seen := make(map[string]struct{}, len(vals))
		uniq := make([]string, 0, len(vals))
		for _, v := range vals {
			if _, ok := seen[v]; ok {
				continue
			}
			seen[v] = struct{}{}
			uniq = append(uniq, v)
		}
		sort.Strings(uniq)
		out[k] = uniq
	}
	return out
}

// Matches reports whether dims satisfies every constraint in f.
func (f DimensionFilter) Matches(dims map[string]string) bool {
	for k, accepted := range f {
		if len(accepted) == 0 {
			continue
		}
		v, ok := dims[k]
		if !ok {
			return false
		}
		found := false
		for _, a := range accepted {
			if a == v {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// Accepts reports whether f admits value for dimension.
func (f DimensionFilter) Accepts(dimension, value string) bool {
	accepted := f[dimension]
	if len(accepted) == 0 {
		return true
	}
	for _, a := range accepted {
		if a == value {
			return true
		}
	}
	return false
}

// With returns a copy of f where dimension only accepts value.
// Callers check Accepts first when f may already constrain dimension.
func (f DimensionFilter) With(dimension, value string) DimensionFilter {
	out := f.Normalize()
	out[dimension] = []string{value}
	return out
}

// Key returns a canonical string form used in cache keys. Names and values
// are quoted, so separators inside a value cannot merge two filters.
func (f DimensionFilter) Key() string {
	n := f.Normalize()
	keys := make([]string, 0, len(n))
	for k := range n {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var sb strings.Builder
	for i, k := range keys {
		if i > 0 {
			sb.WriteByte(';')
		}
		sb.WriteString(strconv.Quote(k))
		sb.WriteByte('=')
		for j, v := range n[k] {
			if j > 0 {
				sb.WriteByte(',')
			}
			sb.WriteString(strconv.Quote(v))
		}
	}
	return sb.String()
}

// ParseDimensionFilter parses entries of the form "dimension:v1,v2".
// Repeated dimensions are merged.
func ParseDimensionFilter(entries []string) (DimensionFilter, error) {
	f := DimensionFilter{}
	for _, e := range entries {
		if strings.TrimSpace(e) == "" {
			continue
		}
		name, vals, ok := strings.Cut(e, ":")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, fmt.Errorf("filter %q: expected dimension:value[,value]", e)
		}
		if !IsDimension(name) {
			return nil, fmt.Errorf("filter %q: unknown dimension %q (expected one of %v)", e, name, Dimensions())
		}
		for _, v := range strings.Split(vals, ",") {
			if v = strings.TrimSpace(v); v != "" {
				f[name] = append(f[name], v)
			}
		}
	}
	return f.Normalize(), nil
}
