package redox

import (
	"testing"

	"github.com/rsms/go-testutil"
)

func TestStringSetGet(t *testing.T) {
	assert := testutil.NewAssert(t)
	ks := NewKeyspace(nil)

	ks.Set("k", "v")
	v, ok := ks.Get("k")
	assert.Ok("present", ok)
	assert.Eq("value", v, "v")

	_, ok = ks.Get("missing")
	assert.Ok("absent", !ok)
}

func TestGetWrongVariantIsNilNotError(t *testing.T) {
	assert := testutil.NewAssert(t)
	ks := NewKeyspace(nil)

	ks.LPush("k", "a")
	_, ok := ks.Get("k")
	assert.Ok("typed no-op, not an error", !ok)
}

func TestListPushPopDirectionality(t *testing.T) {
	assert := testutil.NewAssert(t)
	ks := NewKeyspace(nil)

	ks.RPush("k", "a")
	ks.RPush("k", "b")
	ks.RPush("k", "c")
	// list is now [a b c]

	// LPOP returns from the tail end.
	v, ok := ks.LPop("k")
	assert.Ok("ok", ok)
	assert.Eq("lpop returns tail", v, "c")

	// RPOP returns from the head end.
	v, ok = ks.RPop("k")
	assert.Ok("ok", ok)
	assert.Eq("rpop returns head", v, "a")
}

func TestLRange(t *testing.T) {
	assert := testutil.NewAssert(t)
	ks := NewKeyspace(nil)

	ks.RPush("mylist", "hello")
	ks.RPush("mylist", "world")

	got := ks.LRange("mylist", 0, -1)
	assert.Eq("len", len(got), 2)
	assert.Eq("first", got[0], "hello")
	assert.Eq("second", got[1], "world")

	empty := ks.LRange("mylist", 1, 0)
	assert.Eq("start>stop empty", len(empty), 0)
}

func TestSetOps(t *testing.T) {
	assert := testutil.NewAssert(t)
	ks := NewKeyspace(nil)

	added, ok := ks.SAdd("s", "a")
	assert.Ok("added", added && ok)

	added, ok = ks.SAdd("s", "a")
	assert.Ok("not added twice", !added && ok)

	assert.Ok("ismember", ks.SIsMember("s", "a"))
	assert.Ok("not ismember", !ks.SIsMember("s", "b"))

	removed, _ := ks.SRem("s", "a")
	assert.Ok("removed", removed)
}

func TestHashOps(t *testing.T) {
	assert := testutil.NewAssert(t)
	ks := NewKeyspace(nil)

	created, ok := ks.HSet("h", "f", "1")
	assert.Ok("created", created && ok)

	created, ok = ks.HSet("h", "f", "2")
	assert.Ok("overwrite returns 0", !created && ok)

	v, ok := ks.HGet("h", "f")
	assert.Ok("present", ok)
	assert.Eq("overwritten value", v, "2")
}

func TestZSetOrderingAndScoreUpdate(t *testing.T) {
	assert := testutil.NewAssert(t)
	ks := NewKeyspace(nil)

	ks.ZAdd("scores", 66, "user1")
	ks.ZAdd("scores", 77, "user2")
	ks.ZAdd("scores", 88, "user3")
	ks.ZAdd("scores", 100, "user4")
	ks.ZAdd("scores", 99, "user5")

	members := ks.ZRange("scores", 0, -1)
	want := []string{"user1", "user2", "user3", "user5", "user4"}
	assert.Eq("len", len(members), len(want))
	for i, m := range members {
		assert.Eq("order", m.Member, want[i])
	}

	added, ok := ks.ZAdd("scores", 1, "user1")
	assert.Ok("score update returns 0", !added && ok)

	byScore := ks.ZRangeByScore("scores", 80, 100)
	assert.Eq("filtered len", len(byScore), 3)
}

func TestMGetMixedKeys(t *testing.T) {
	assert := testutil.NewAssert(t)
	ks := NewKeyspace(nil)

	ks.Set("present", "v")
	ks.LPush("wrongtype", "x")

	results := ks.MGet([]string{"present", "absent", "wrongtype"})
	assert.Ok("present ok", results[0].OK)
	assert.Eq("present value", results[0].Value, "v")
	assert.Ok("absent nil", !results[1].OK)
	assert.Ok("wrong variant nil", !results[2].OK)
}

func TestInfoCounters(t *testing.T) {
	assert := testutil.NewAssert(t)
	ks := NewKeyspace(nil)

	ks.Set("a", "1")
	ks.LPush("b", "x")
	ks.SAdd("c", "x")
	ks.HSet("d", "f", "v")
	ks.ZAdd("e", 1, "m")

	info := ks.Info()
	assert.Eq("keys", info["keys"], 5)
	assert.Eq("strings", info["strings"], 1)
	assert.Eq("lists", info["lists"], 1)
	assert.Eq("sets", info["sets"], 1)
	assert.Eq("hashes", info["hashes"], 1)
	assert.Eq("zsets", info["zsets"], 1)
}

func TestExpireTTLPersist(t *testing.T) {
	assert := testutil.NewAssert(t)
	ks := NewKeyspace(nil)

	ks.Set("k", "v")
	assert.Ok("expire existing", ks.Expire("k", 100))
	assert.Ok("expire missing", !ks.Expire("nope", 100))

	ttl, has := ks.TTL("k")
	assert.Ok("has ttl", has)
	assert.Ok("ttl positive", ttl > 0 && ttl <= 100)

	assert.Ok("persist clears", ks.Persist("k"))
	_, has = ks.TTL("k")
	assert.Ok("no ttl after persist", !has)
}

func TestDel(t *testing.T) {
	assert := testutil.NewAssert(t)
	ks := NewKeyspace(nil)

	ks.Set("a", "1")
	ks.Set("b", "2")

	n := ks.Del([]string{"a", "b", "c"})
	assert.Eq("only existing counted", n, 2)

	_, ok := ks.Get("a")
	assert.Ok("gone", !ok)
}

type countingDirtyMarker struct{ n int }

func (c *countingDirtyMarker) MarkDirty() { c.n++ }

func TestDirtyMarkerCalledOnlyOnMutation(t *testing.T) {
	assert := testutil.NewAssert(t)
	dm := &countingDirtyMarker{}
	ks := NewKeyspace(dm)

	ks.Set("k", "v")
	assert.Ok("set marks dirty", dm.n > 0)

	before := dm.n
	ks.Get("k")
	assert.Eq("read does not mark dirty", dm.n, before)
}
