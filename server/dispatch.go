package server

import (
	"github.com/rsms/redox"
	"github.com/rsms/redox/protocol"
)

// dispatch runs an authenticated, already-decoded Command against ks and
// returns the Response to encode. This is the single place that
// translates the protocol's wire-shaped Command/Response pair into the
// keyspace's typed method calls.
func dispatch(ks *redox.Keyspace, cmd protocol.Command) protocol.Response {
	switch cmd.Op {
	case protocol.OpSet:
		ks.Set(cmd.Key, cmd.Value)
		return protocol.OK()

	case protocol.OpGet:
		v, ok := ks.Get(cmd.Key)
		return protocol.Str0(v, ok)

	case protocol.OpLPush:
		n, ok := ks.LPush(cmd.Key, cmd.Value)
		if !ok {
			return protocol.Integer(0)
		}
		return protocol.Integer(int64(n))

	case protocol.OpRPush:
		n, ok := ks.RPush(cmd.Key, cmd.Value)
		if !ok {
			return protocol.Integer(0)
		}
		return protocol.Integer(int64(n))

	case protocol.OpLPop:
		v, ok := ks.LPop(cmd.Key)
		return protocol.Str0(v, ok)

	case protocol.OpRPop:
		v, ok := ks.RPop(cmd.Key)
		return protocol.Str0(v, ok)

	case protocol.OpLRange:
		list := ks.LRange(cmd.Key, cmd.Start, cmd.Stop)
		return protocol.Response{Kind: protocol.RespList, List: list}

	case protocol.OpSAdd:
		added, ok := ks.SAdd(cmd.Key, cmd.Member)
		if !ok {
			return protocol.Integer(0)
		}
		return protocol.Bool01(added)

	case protocol.OpSRem:
		removed, _ := ks.SRem(cmd.Key, cmd.Member)
		return protocol.Bool01(removed)

	case protocol.OpSMembers:
		return protocol.Response{Kind: protocol.RespSet, List: ks.SMembers(cmd.Key)}

	case protocol.OpSIsMember:
		return protocol.Bool01(ks.SIsMember(cmd.Key, cmd.Member))

	case protocol.OpHSet:
		created, ok := ks.HSet(cmd.Key, cmd.Field, cmd.Value)
		if !ok {
			return protocol.Integer(0)
		}
		return protocol.Bool01(created)

	case protocol.OpHGet:
		v, ok := ks.HGet(cmd.Key, cmd.Field)
		return protocol.Str0(v, ok)

	case protocol.OpHDel:
		removed, _ := ks.HDel(cmd.Key, cmd.Field)
		return protocol.Bool01(removed)

	case protocol.OpHGetAll:
		hash := ks.HGetAll(cmd.Key)
		pairs := make([]string, 0, len(hash)*2)
		for f, v := range hash {
			pairs = append(pairs, f, v)
		}
		return protocol.Response{Kind: protocol.RespHash, Hash: pairs}

	case protocol.OpZAdd:
		added, ok := ks.ZAdd(cmd.Key, cmd.Score, cmd.Member)
		if !ok {
			return protocol.Integer(0)
		}
		return protocol.Bool01(added)

	case protocol.OpZRem:
		removed, _ := ks.ZRem(cmd.Key, cmd.Member)
		return protocol.Bool01(removed)

	case protocol.OpZRange:
		return zsetResponse(ks.ZRange(cmd.Key, cmd.Start, cmd.Stop))

	case protocol.OpZRangeByScore:
		return zsetResponse(ks.ZRangeByScore(cmd.Key, cmd.Min, cmd.Max))

	case protocol.OpMSet:
		n := ks.MSet(cmd.Pairs)
		return protocol.Integer(int64(n))

	case protocol.OpMGet:
		results := ks.MGet(cmd.Keys)
		array := make([]*string, len(results))
		for i, r := range results {
			if r.OK {
				v := r.Value
				array[i] = &v
			}
		}
		return protocol.Response{Kind: protocol.RespArray, Array: array}

	case protocol.OpDel:
		n := ks.Del(cmd.Keys)
		return protocol.Integer(int64(n))

	case protocol.OpInfo:
		return protocol.Response{Kind: protocol.RespInfo, Info: ks.Info()}

	default:
		return protocol.Err("Unknown command")
	}
}

func zsetResponse(members []redox.ZMember) protocol.Response {
	pairs := make([]protocol.ZPair, len(members))
	for i, m := range members {
		pairs[i] = protocol.ZPair{Member: m.Member, Score: m.Score}
	}
	return protocol.Response{Kind: protocol.RespZSet, ZSet: pairs}
}
