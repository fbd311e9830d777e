package domain

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"hash"
	"sort"
	"strings"
)

// Fingerprint derives the cache key for a read-only request from its kind and entities.
// Execution mode is deliberately absent so dry-run and execute share entries.
func Fingerprint(kind OperationKind, entities map[string]string) string {
	h := sha256.New()
	writeField(h, string(kind))

	keys := make([]string, 0, len(entities))
	for k, v := range entities {
		if strings.TrimSpace(v) != "" {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	for _, k := range keys {
		writeField(h, k)
		writeField(h, strings.TrimSpace(entities[k]))
	}
	return string(kind) + ":" + hex.EncodeToString(h.Sum(nil))
}

// writeField length-prefixes each field so ("ab","c") and ("a","bc") differ.
func writeField(h hash.Hash, value string) {
	var size [8]byte
	binary.BigEndian.PutUint64(size[:], uint64(len(value)))
	h.Write(size[:])
	h.Write([]byte(value))
}
