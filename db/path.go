package db

import (
	"encoding/hex"
	"fmt"

	"github.com/tansudb/tansu/core"
)

// Documents live at aa/bb/<hexkey>, where aa and bb are the first two bytes
// of the hex-encoded key. Sharding by key prefix bounds directory fan-out
// while keeping key-prefix scans confined to matching shard subtrees.
// Single-byte keys use the sentinel second shard "--".
const shardPad = "--"

func encodeKey(key string) string {
	return hex.EncodeToString([]byte(key))
}

func decodeKey(name string) (string, bool) {
	raw, err := hex.DecodeString(name)
	if err != nil || len(raw) == 0 {
		return "", false
	}
	return string(raw), true
}

func docPath(key string) (string, error) {
	if key == "" {
		return "", core.ErrInvalidKey
	}
	h := encodeKey(key)
	d1 := h[:2]
	d2 := shardPad
	if len(h) >= 4 {
		d2 = h[2:4]
	}
	return fmt.Sprintf("%s/%s/%s", d1, d2, h), nil
}

// isShardName reports whether a tree entry name is a shard directory.
func isShardName(name string) bool {
	if name == shardPad {
		return true
	}
	if len(name) != 2 {
		return false
	}
	_, err := hex.DecodeString(name)
	return err == nil
}
