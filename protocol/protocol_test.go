package protocol

import (
	"testing"

	"github.com/rsms/go-testutil"
)

func TestDecodeArity(t *testing.T) {
	assert := testutil.NewAssert(t)

	cmd, err := Decode("SET k v")
	assert.Ok("no error", err == nil)
	assert.Eq("op", cmd.Op, OpSet)
	assert.Eq("key", cmd.Key, "k")
	assert.Eq("value", cmd.Value, "v")

	_, err = Decode("SET k")
	assert.Ok("arity mismatch is an error", err != nil)
	assert.Eq("message", err.Error(), "SET command requires KEY and VALUE")
}

func TestDecodeCaseInsensitiveOpcode(t *testing.T) {
	assert := testutil.NewAssert(t)
	cmd, err := Decode("get k")
	assert.Ok("no error", err == nil)
	assert.Eq("op", cmd.Op, OpGet)
}

func TestDecodeUnknownOpcode(t *testing.T) {
	assert := testutil.NewAssert(t)
	_, err := Decode("FROBNICATE x")
	assert.Ok("error", err != nil)
	assert.Eq("message", err.Error(), "Unknown command: FROBNICATE")
}

func TestDecodeNumberParseFailure(t *testing.T) {
	assert := testutil.NewAssert(t)
	_, err := Decode("LRANGE k notanumber 5")
	assert.Ok("error", err != nil)
	assert.Eq("message", err.Error(), "Invalid START index")
}

func TestDecodeRejectsNaNScore(t *testing.T) {
	assert := testutil.NewAssert(t)
	_, err := Decode("ZADD k NaN m")
	assert.Ok("NaN rejected", err != nil)
}

func TestDecodeMSet(t *testing.T) {
	assert := testutil.NewAssert(t)
	cmd, err := Decode("MSET a 1 b 2")
	assert.Ok("no error", err == nil)
	assert.Eq("pair count", len(cmd.Pairs), 2)
	assert.Eq("first pair", cmd.Pairs[0], [2]string{"a", "1"})

	_, err = Decode("MSET a 1 b")
	assert.Ok("odd arity rejected", err != nil)
}

func TestEncodeResponses(t *testing.T) {
	assert := testutil.NewAssert(t)

	assert.Eq("ok", Encode(OK()), "OK\n")
	assert.Eq("error", Encode(Err("boom")), "ERR boom\n")
	assert.Eq("integer", Encode(Integer(42)), "42\n")
	assert.Eq("present str", Encode(Str0("hello", true)), "hello\n")
	assert.Eq("absent str", Encode(Str0("", false)), "NIL\n")
	assert.Eq("empty list", Encode(Response{Kind: RespList}), "\n")
	assert.Eq("list", Encode(Response{Kind: RespList, List: []string{"a", "b"}}), "a b\n")

	arr := Encode(Response{Kind: RespArray, Array: []*string{strPtr("a"), nil}})
	assert.Eq("array with nil", arr, "a NIL\n")

	zset := Encode(Response{Kind: RespZSet, ZSet: []ZPair{{"user1", 66}, {"user2", 77.5}}})
	assert.Eq("zset", zset, "user1 66 user2 77.5\n")

	info := Encode(Response{Kind: RespInfo, Info: map[string]int{"zzz": 1, "aaa": 2}})
	assert.Eq("info sorted", info, "aaa: 2\nzzz: 1\n")
}

func strPtr(s string) *string { return &s }
