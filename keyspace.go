// Package redox implements the in-memory, multi-type keyspace engine at
// the core of a Redox server: the tagged Value model and the
// mutex-guarded Keyspace that every connected session dispatches
// commands against.
package redox

import (
	"sync"
	"time"
)

// DirtyMarker is the interface the keyspace calls into on every
// observably-mutating operation. Persistence is optional: when disabled,
// a no-op implementation is used so the keyspace never has to branch on
// whether persistence is configured. See NoOpDirtyMarker.
type DirtyMarker interface {
	MarkDirty()
}

type noopDirtyMarker struct{}

func (noopDirtyMarker) MarkDirty() {}

// NoOpDirtyMarker is the default DirtyMarker used when no persistence
// backend is configured.
var NoOpDirtyMarker DirtyMarker = noopDirtyMarker{}

// Keyspace is the process-wide mapping from key to Value, plus a parallel
// mapping from key to absolute expiry second. All operations acquire mu
// for their entire duration: this trades contention for a simple
// linearisability guarantee across every command (§5 of the design).
type Keyspace struct {
	mu     sync.Mutex
	data   map[string]*Value
	expiry map[string]int64 // key => absolute unix second deadline

	dirty DirtyMarker
	now   func() time.Time // overridable for tests
}

// NewKeyspace creates an empty keyspace. dirty may be nil, in which case
// NoOpDirtyMarker is used.
func NewKeyspace(dirty DirtyMarker) *Keyspace {
	if dirty == nil {
		dirty = NoOpDirtyMarker
	}
	return &Keyspace{
		data:   make(map[string]*Value),
		expiry: make(map[string]int64),
		dirty:  dirty,
		now:    time.Now,
	}
}

// LoadSnapshot replaces the whole keyspace atomically, as called for by
// persistence's forward-compatible load path. It never marks the
// keyspace dirty: loading is not itself a mutation that needs saving.
func (k *Keyspace) LoadSnapshot(data map[string]*Value, expiry map[string]int64) {
	k.mu.Lock()
	defer k.mu.Unlock()
	if data == nil {
		data = make(map[string]*Value)
	}
	if expiry == nil {
		expiry = make(map[string]int64)
	}
	k.data = data
	k.expiry = expiry
}

// Snapshot returns a copy of the live keyspace suitable for encoding by
// the persistence layer: every Value is copied, so the result can be
// encoded without holding mu. Expired-but-not-yet-swept keys are
// excluded.
func (k *Keyspace) Snapshot() (data map[string]*Value, expiry map[string]int64) {
	k.mu.Lock()
	defer k.mu.Unlock()
	now := k.now().Unix()
	data = make(map[string]*Value, len(k.data))
	expiry = make(map[string]int64, len(k.expiry))
	for key, v := range k.data {
		if exp, has := k.expiry[key]; has && exp <= now {
			continue
		}
		c := &Value{Kind: v.Kind, str: v.str, list: append([]string(nil), v.list...)}
		switch v.Kind {
		case KindSet:
			c.set = make(map[string]struct{}, len(v.set))
			for m := range v.set {
				c.set[m] = struct{}{}
			}
		case KindHash:
			c.hash = make(map[string]string, len(v.hash))
			for f, s := range v.hash {
				c.hash[f] = s
			}
		case KindZSet:
			c.zset = make(map[string]float64, len(v.zset))
			for m, s := range v.zset {
				c.zset[m] = s
			}
		}
		data[key] = c
		if exp, has := k.expiry[key]; has {
			expiry[key] = exp
		}
	}
	return data, expiry
}

// evictIfExpired removes key if it has an expiry at or before now. Must be
// called with mu held. Returns true if the key was evicted.
func (k *Keyspace) evictIfExpired(key string) bool {
	exp, has := k.expiry[key]
	if !has || exp > k.now().Unix() {
		return false
	}
	delete(k.data, key)
	delete(k.expiry, key)
	return true
}

// Sweep evicts every key whose expiry has passed. It is the periodic
// background counterpart to the lazy, on-access eviction every read/write
// op performs; both routes observe the same invariant I2. TTL is the one
// keyed op that does not evict: it reports -1 for such a key instead.
func (k *Keyspace) Sweep() (evicted int) {
	k.mu.Lock()
	defer k.mu.Unlock()
	now := k.now().Unix()
	for key, exp := range k.expiry {
		if exp <= now {
			delete(k.data, key)
			delete(k.expiry, key)
			evicted++
		}
	}
	if evicted > 0 {
		k.dirty.MarkDirty()
	}
	return evicted
}

// ---------------------------------------------------------------------
// String

func (k *Keyspace) Set(key, value string) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.evictIfExpired(key)
	k.data[key] = newStr(value)
	delete(k.expiry, key)
	k.dirty.MarkDirty()
}

// Get returns the string value at key, or ("", false) if the key is
// missing, expired, or holds a non-Str variant (a typed no-op per I1).
func (k *Keyspace) Get(key string) (string, bool) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.evictIfExpired(key)
	v, ok := k.data[key]
	if !ok || v.Kind != KindStr {
		return "", false
	}
	return v.str, true
}

// ---------------------------------------------------------------------
// List

func (k *Keyspace) LPush(key, value string) (newLen int, ok bool) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.evictIfExpired(key)
	v, exists := k.data[key]
	if !exists {
		v = newList()
		k.data[key] = v
	} else if v.Kind != KindList {
		return 0, false
	}
	v.list = append([]string{value}, v.list...)
	k.dirty.MarkDirty()
	return len(v.list), true
}

func (k *Keyspace) RPush(key, value string) (newLen int, ok bool) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.evictIfExpired(key)
	v, exists := k.data[key]
	if !exists {
		v = newList()
		k.data[key] = v
	} else if v.Kind != KindList {
		return 0, false
	}
	v.list = append(v.list, value)
	k.dirty.MarkDirty()
	return len(v.list), true
}

// LPop removes and returns the TAIL element of the list. This inverts the
// conventional Redis meaning of LPOP; it is preserved verbatim from the
// source being reimplemented (see design notes, "LPOP/RPOP
// directionality") and is normative, not a bug to fix.
func (k *Keyspace) LPop(key string) (string, bool) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.evictIfExpired(key)
	v, ok := k.data[key]
	if !ok || v.Kind != KindList || len(v.list) == 0 {
		return "", false
	}
	last := len(v.list) - 1
	val := v.list[last]
	v.list = v.list[:last]
	k.dirty.MarkDirty()
	return val, true
}

// RPop removes and returns the HEAD element of the list — see LPop.
func (k *Keyspace) RPop(key string) (string, bool) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.evictIfExpired(key)
	v, ok := k.data[key]
	if !ok || v.Kind != KindList || len(v.list) == 0 {
		return "", false
	}
	val := v.list[0]
	v.list = v.list[1:]
	k.dirty.MarkDirty()
	return val, true
}

func (k *Keyspace) LRange(key string, start, stop int64) []string {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.evictIfExpired(key)
	v, ok := k.data[key]
	if !ok || v.Kind != KindList {
		return nil
	}
	lo, hi, ok := normalizeRange(start, stop, int64(len(v.list)))
	if !ok {
		return nil
	}
	out := make([]string, hi-lo+1)
	copy(out, v.list[lo:hi+1])
	return out
}

// ---------------------------------------------------------------------
// Set

func (k *Keyspace) SAdd(key, member string) (added bool, ok bool) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.evictIfExpired(key)
	v, exists := k.data[key]
	if !exists {
		v = newSet()
		k.data[key] = v
	} else if v.Kind != KindSet {
		return false, false
	}
	if _, has := v.set[member]; has {
		return false, true
	}
	v.set[member] = struct{}{}
	k.dirty.MarkDirty()
	return true, true
}

func (k *Keyspace) SRem(key, member string) (removed bool, ok bool) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.evictIfExpired(key)
	v, exists := k.data[key]
	if !exists || v.Kind != KindSet {
		return false, exists && v.Kind == KindSet
	}
	if _, has := v.set[member]; !has {
		return false, true
	}
	delete(v.set, member)
	k.dirty.MarkDirty()
	return true, true
}

func (k *Keyspace) SMembers(key string) []string {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.evictIfExpired(key)
	v, ok := k.data[key]
	if !ok || v.Kind != KindSet {
		return nil
	}
	out := make([]string, 0, len(v.set))
	for m := range v.set {
		out = append(out, m)
	}
	return out
}

func (k *Keyspace) SIsMember(key, member string) bool {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.evictIfExpired(key)
	v, ok := k.data[key]
	if !ok || v.Kind != KindSet {
		return false
	}
	_, has := v.set[member]
	return has
}

// ---------------------------------------------------------------------
// Hash

func (k *Keyspace) HSet(key, field, value string) (created bool, ok bool) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.evictIfExpired(key)
	v, exists := k.data[key]
	if !exists {
		v = newHash()
		k.data[key] = v
	} else if v.Kind != KindHash {
		return false, false
	}
	_, had := v.hash[field]
	v.hash[field] = value
	k.dirty.MarkDirty()
	return !had, true
}

func (k *Keyspace) HGet(key, field string) (string, bool) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.evictIfExpired(key)
	v, ok := k.data[key]
	if !ok || v.Kind != KindHash {
		return "", false
	}
	val, has := v.hash[field]
	return val, has
}

func (k *Keyspace) HDel(key, field string) (removed bool, ok bool) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.evictIfExpired(key)
	v, exists := k.data[key]
	if !exists || v.Kind != KindHash {
		return false, exists && v.Kind == KindHash
	}
	if _, has := v.hash[field]; !has {
		return false, true
	}
	delete(v.hash, field)
	k.dirty.MarkDirty()
	return true, true
}

func (k *Keyspace) HGetAll(key string) map[string]string {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.evictIfExpired(key)
	v, ok := k.data[key]
	if !ok || v.Kind != KindHash {
		return nil
	}
	out := make(map[string]string, len(v.hash))
	for f, val := range v.hash {
		out[f] = val
	}
	return out
}

// ---------------------------------------------------------------------
// Sorted set

func (k *Keyspace) ZAdd(key string, score float64, member string) (added bool, ok bool) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.evictIfExpired(key)
	v, exists := k.data[key]
	if !exists {
		v = newZSet()
		k.data[key] = v
	} else if v.Kind != KindZSet {
		return false, false
	}
	_, had := v.zset[member]
	v.zset[member] = score
	k.dirty.MarkDirty()
	return !had, true
}

func (k *Keyspace) ZRem(key, member string) (removed bool, ok bool) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.evictIfExpired(key)
	v, exists := k.data[key]
	if !exists || v.Kind != KindZSet {
		return false, exists && v.Kind == KindZSet
	}
	if _, has := v.zset[member]; !has {
		return false, true
	}
	delete(v.zset, member)
	k.dirty.MarkDirty()
	return true, true
}

// ZRange enumerates members sorted by (score asc, member asc), then
// applies ordinal-position range normalisation — see normalizeRange.
func (k *Keyspace) ZRange(key string, start, stop int64) []ZMember {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.evictIfExpired(key)
	v, ok := k.data[key]
	if !ok || v.Kind != KindZSet {
		return nil
	}
	members := v.sortedMembers()
	lo, hi, ok := normalizeRange(start, stop, int64(len(members)))
	if !ok {
		return nil
	}
	return members[lo : hi+1]
}

// ZRangeByScore enumerates the same sorted order, filtered to
// min <= score <= max (both inclusive).
func (k *Keyspace) ZRangeByScore(key string, min, max float64) []ZMember {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.evictIfExpired(key)
	v, ok := k.data[key]
	if !ok || v.Kind != KindZSet {
		return nil
	}
	members := v.sortedMembers()
	out := make([]ZMember, 0, len(members))
	for _, m := range members {
		if m.Score >= min && m.Score <= max {
			out = append(out, m)
		}
	}
	return out
}

// ---------------------------------------------------------------------
// Multi-key and admin

func (k *Keyspace) MSet(pairs [][2]string) int {
	k.mu.Lock()
	defer k.mu.Unlock()
	for _, p := range pairs {
		k.evictIfExpired(p[0])
		k.data[p[0]] = newStr(p[1])
		delete(k.expiry, p[0])
	}
	if len(pairs) > 0 {
		k.dirty.MarkDirty()
	}
	return len(pairs)
}

// MGet returns, for each key, its Str value or (_, false) if the key is
// missing, expired, or holds a non-Str variant.
func (k *Keyspace) MGet(keys []string) []struct {
	Value string
	OK    bool
} {
	k.mu.Lock()
	defer k.mu.Unlock()
	out := make([]struct {
		Value string
		OK    bool
	}, len(keys))
	for i, key := range keys {
		k.evictIfExpired(key)
		v, ok := k.data[key]
		if ok && v.Kind == KindStr {
			out[i].Value = v.str
			out[i].OK = true
		}
	}
	return out
}

func (k *Keyspace) Del(keys []string) int {
	k.mu.Lock()
	defer k.mu.Unlock()
	count := 0
	for _, key := range keys {
		k.evictIfExpired(key)
		if _, ok := k.data[key]; ok {
			delete(k.data, key)
			delete(k.expiry, key)
			count++
		}
	}
	if count > 0 {
		k.dirty.MarkDirty()
	}
	return count
}

// Info summarises the keyspace per variant. Keys of the returned map are
// exactly {keys, strings, lists, sets, hashes, zsets} — invariant I3.
func (k *Keyspace) Info() map[string]int {
	k.mu.Lock()
	defer k.mu.Unlock()
	now := k.now().Unix()
	counts := map[string]int{"strings": 0, "lists": 0, "sets": 0, "hashes": 0, "zsets": 0}
	for key, v := range k.data {
		if exp, has := k.expiry[key]; has && exp <= now {
			continue
		}
		switch v.Kind {
		case KindStr:
			counts["strings"]++
		case KindList:
			counts["lists"]++
		case KindSet:
			counts["sets"]++
		case KindHash:
			counts["hashes"]++
		case KindZSet:
			counts["zsets"]++
		}
	}
	counts["keys"] = counts["strings"] + counts["lists"] + counts["sets"] + counts["hashes"] + counts["zsets"]
	return counts
}

// ---------------------------------------------------------------------
// Expiry

// Expire sets key's absolute expiry to now+seconds. Returns false if the
// key does not currently exist.
func (k *Keyspace) Expire(key string, seconds int64) bool {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.evictIfExpired(key) {
		return false
	}
	if _, ok := k.data[key]; !ok {
		return false
	}
	k.expiry[key] = k.now().Unix() + seconds
	k.dirty.MarkDirty()
	return true
}

// TTL reports seconds remaining until key expires, -1 if it has already
// expired (but not yet swept), or (_, false) if the key has no expiry set
// (including if it does not exist at all).
func (k *Keyspace) TTL(key string) (seconds int64, has bool) {
	k.mu.Lock()
	defer k.mu.Unlock()
	exp, ok := k.expiry[key]
	if !ok {
		return 0, false
	}
	now := k.now().Unix()
	if exp <= now {
		return -1, true
	}
	return exp - now, true
}

// Persist clears key's expiry, returning true if one was cleared.
func (k *Keyspace) Persist(key string) bool {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.evictIfExpired(key) {
		return false
	}
	if _, ok := k.expiry[key]; !ok {
		return false
	}
	delete(k.expiry, key)
	k.dirty.MarkDirty()
	return true
}
