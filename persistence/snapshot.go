// Package persistence implements Redox's on-disk snapshot: a
// dirty-flag-gated, atomically-replaced JSON file holding the keyspace
// and its expiry map, plus a forward-compatible load path that falls
// back to a legacy pre-expiry layout.
package persistence

import (
	"fmt"
	"os"
	"sync/atomic"

	"github.com/rsms/go-json"
	"github.com/rsms/go-log"

	"github.com/rsms/redox"
)

// Snapshot manages a single on-disk file: the canonical
// {"data": ..., "expiry": ...} shape, written atomically via a sibling
// ".temp" file and rename.
type Snapshot struct {
	path string

	dirty    atomic.Bool
	lastSave atomic.Int64 // unix seconds, 0 = never
}

// NewSnapshot returns a manager for the snapshot file at path. path may
// be empty, in which case persistence is effectively disabled: Load
// returns empty maps and Save is a no-op.
func NewSnapshot(path string) *Snapshot {
	return &Snapshot{path: path}
}

// MarkDirty implements redox.DirtyMarker. The keyspace calls this on
// every observable mutation; reads never call it.
func (s *Snapshot) MarkDirty() {
	if s.path == "" {
		return
	}
	s.dirty.Store(true)
}

// LastSave returns the unix second of the most recent successful save,
// or 0 if none has happened yet.
func (s *Snapshot) LastSave() int64 { return s.lastSave.Load() }

// Load reads the snapshot file, if any, and returns the decoded keyspace
// and expiry maps. A missing file is not an error: both maps come back
// empty. A present-but-unparseable file is logged and treated the same
// as missing, matching redox-server's "log and proceed with empty maps"
// failure policy.
func (s *Snapshot) Load() (data map[string]*redox.Value, expiry map[string]int64) {
	data = make(map[string]*redox.Value)
	expiry = make(map[string]int64)
	if s.path == "" {
		return data, expiry
	}

	raw, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Warn("persistence: error reading %s: %s", s.path, err)
		}
		return data, expiry
	}

	if d, e, err := decodeCurrent(raw); err == nil {
		return d, e
	} else if d, err2 := decodeLegacy(raw); err2 == nil {
		log.Info("persistence: loaded %s in legacy format", s.path)
		return d, expiry
	} else {
		log.Warn("persistence: failed to parse %s (current: %s; legacy: %s); starting empty", s.path, err, err2)
		return make(map[string]*redox.Value), make(map[string]int64)
	}
}

// Save writes data+expiry to the snapshot file by writing a sibling
// "<path>.temp" file and renaming it over the target, then clears the
// dirty flag and records LastSave. If the dirty flag is unset, Save does
// nothing and returns nil.
func (s *Snapshot) Save(data map[string]*redox.Value, expiry map[string]int64, now int64) error {
	if s.path == "" || !s.dirty.Load() {
		return nil
	}

	raw, err := encodeCurrent(data, expiry)
	if err != nil {
		return fmt.Errorf("persistence: encode: %w", err)
	}

	tempPath := s.path + ".temp"
	if err := os.WriteFile(tempPath, raw, 0644); err != nil {
		return fmt.Errorf("persistence: write %s: %w", tempPath, err)
	}
	if err := os.Rename(tempPath, s.path); err != nil {
		return fmt.Errorf("persistence: rename %s -> %s: %w", tempPath, s.path, err)
	}

	s.dirty.Store(false)
	s.lastSave.Store(now)
	return nil
}

func encodeCurrent(data map[string]*redox.Value, expiry map[string]int64) ([]byte, error) {
	var b json.Builder
	b.StartObject()

	b.Key("data")
	b.StartObject()
	for key, v := range data {
		b.Key(key)
		v.EncodeJSON(&b)
	}
	b.EndObject()

	b.Key("expiry")
	b.StartObject()
	for key, exp := range expiry {
		b.Key(key)
		b.Int(exp, 64)
	}
	b.EndObject()

	b.EndObject()
	return b.Bytes(), b.Err
}

func decodeCurrent(raw []byte) (map[string]*redox.Value, map[string]int64, error) {
	var r json.Reader
	r.ResetBytes(raw)

	if !r.ObjectStart() {
		return nil, nil, fmt.Errorf("expected top-level object")
	}

	data := make(map[string]*redox.Value)
	expiry := make(map[string]int64)
	sawData, sawExpiry := false, false

	for r.More() {
		switch r.Key() {
		case "data":
			if r.ObjectStart() {
				for r.More() {
					key := r.Key()
					v, err := redox.DecodeValueJSON(&r)
					if err != nil {
						return nil, nil, err
					}
					data[key] = v
				}
			}
			sawData = true
		case "expiry":
			if r.ObjectStart() {
				for r.More() {
					key := r.Key()
					expiry[key] = r.Int(64)
				}
			}
			sawExpiry = true
		default:
			r.Discard()
		}
	}
	if err := r.Err; err != nil {
		return nil, nil, err
	}
	if !sawData || !sawExpiry {
		return nil, nil, fmt.Errorf("missing data or expiry field")
	}
	return data, expiry, nil
}

func decodeLegacy(raw []byte) (map[string]*redox.Value, error) {
	var r json.Reader
	r.ResetBytes(raw)

	if !r.ObjectStart() {
		return nil, fmt.Errorf("expected top-level object")
	}

	data := make(map[string]*redox.Value)
	sawData := false

	for r.More() {
		switch r.Key() {
		case "data":
			if r.ObjectStart() {
				for r.More() {
					key := r.Key()
					v, err := redox.DecodeValueJSON(&r)
					if err != nil {
						return nil, err
					}
					data[key] = v
				}
			}
			sawData = true
		default:
			r.Discard()
		}
	}
	if err := r.Err; err != nil {
		return nil, err
	}
	if !sawData {
		return nil, fmt.Errorf("missing data field")
	}
	return data, nil
}
