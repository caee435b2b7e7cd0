package redox

import (
	"fmt"
	"sort"

	"github.com/rsms/go-json"
)

// Kind is the tag of a Value's variant. Exactly one kind is live for a
// given key at any point in its lifetime (until the key is deleted).
type Kind int

const (
	KindNone Kind = iota
	KindStr
	KindList
	KindSet
	KindHash
	KindZSet
)

func (k Kind) String() string {
	switch k {
	case KindStr:
		return "Str"
	case KindList:
		return "List"
	case KindSet:
		return "Set"
	case KindHash:
		return "Hash"
	case KindZSet:
		return "ZSet"
	default:
		return "None"
	}
}

// Value is a tagged variant: exactly one of the carrier fields below is
// meaningful, selected by Kind. Dispatch on Kind is always a switch, never
// a type assertion or interface method call — see the value model's
// "no I/O, no concurrency" design.
type Value struct {
	Kind Kind

	str  string
	list []string
	set  map[string]struct{}
	hash map[string]string
	zset map[string]float64 // member => score
}

func newStr(s string) *Value  { return &Value{Kind: KindStr, str: s} }
func newList() *Value         { return &Value{Kind: KindList} }
func newSet() *Value          { return &Value{Kind: KindSet, set: make(map[string]struct{})} }
func newHash() *Value         { return &Value{Kind: KindHash, hash: make(map[string]string)} }
func newZSet() *Value         { return &Value{Kind: KindZSet, zset: make(map[string]float64)} }

// ZMember is a (member, score) pair used for sorted enumeration and wire
// output of ZSet values.
type ZMember struct {
	Member string
	Score  float64
}

// sortedMembers returns the ZSet's members in (score asc, member asc)
// order, per spec invariant I4 and the normative ZRANGE ordering.
func (v *Value) sortedMembers() []ZMember {
	members := make([]ZMember, 0, len(v.zset))
	for m, s := range v.zset {
		members = append(members, ZMember{m, s})
	}
	sort.Slice(members, func(i, j int) bool {
		if members[i].Score != members[j].Score {
			return members[i].Score < members[j].Score
		}
		return members[i].Member < members[j].Member
	})
	return members
}

// EncodeJSON writes v as a single-key tagged object keyed by its variant
// name, e.g. {"List":["a","b"]}, the externally-tagged shape the snapshot
// format uses for every keyspace entry.
func (v *Value) EncodeJSON(b *json.Builder) {
	b.StartObject()
	switch v.Kind {
	case KindStr:
		b.Key("Str")
		b.Str(v.str)
	case KindList:
		b.Key("List")
		b.StartArray()
		for _, s := range v.list {
			b.Str(s)
		}
		b.EndArray()
	case KindSet:
		b.Key("Set")
		b.StartArray()
		for m := range v.set {
			b.Str(m)
		}
		b.EndArray()
	case KindHash:
		b.Key("Hash")
		b.StartObject()
		for f, val := range v.hash {
			b.Key(f)
			b.Str(val)
		}
		b.EndObject()
	case KindZSet:
		b.Key("ZSet")
		b.StartObject()
		for m, s := range v.zset {
			b.Key(m)
			b.Float(s, 64)
		}
		b.EndObject()
	}
	b.EndObject()
}

// DecodeValueJSON reads one tagged Value object from r, positioned just
// before it. It is the inverse of EncodeJSON.
func DecodeValueJSON(r *json.Reader) (*Value, error) {
	if !r.ObjectStart() {
		return nil, fmt.Errorf("expected value object")
	}
	var v *Value
	for r.More() {
		switch r.Key() {
		case "Str":
			v = newStr(r.Str())
		case "List":
			v = newList()
			if r.ArrayStart() {
				for r.More() {
					v.list = append(v.list, r.Str())
				}
			}
		case "Set":
			v = newSet()
			if r.ArrayStart() {
				for r.More() {
					v.set[r.Str()] = struct{}{}
				}
			}
		case "Hash":
			v = newHash()
			if r.ObjectStart() {
				for r.More() {
					f := r.Key()
					v.hash[f] = r.Str()
				}
			}
		case "ZSet":
			v = newZSet()
			if r.ObjectStart() {
				for r.More() {
					m := r.Key()
					v.zset[m] = r.Float(64)
				}
			}
		default:
			r.Discard()
		}
	}
	if v == nil {
		return nil, fmt.Errorf("empty value object")
	}
	return v, nil
}

// normalizeRange converts possibly-negative start/stop indices into an
// inclusive [lo, hi] position range over a sequence of length n: negative
// indices count from the end, both bounds are clamped into [0, n-1], and
// ok is false (empty range) whenever n == 0 or start ends up greater than
// stop after clamping.
func normalizeRange(start, stop, n int64) (lo, hi int, ok bool) {
	if n == 0 {
		return 0, 0, false
	}
	if start < 0 {
		start += n
		if start < 0 {
			start = 0
		}
	} else if start > n-1 {
		start = n - 1
	}
	if stop < 0 {
		stop += n
		if stop < 0 {
			stop = 0
		}
	} else if stop > n-1 {
		stop = n - 1
	}
	if start > stop {
		return 0, 0, false
	}
	return int(start), int(stop), true
}
