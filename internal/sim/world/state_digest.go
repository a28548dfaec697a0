package world

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"sort"

	"github.com/Scylla-Station/Scylla-Station/internal/consent"
)

// stateDigest hashes the simulation state that matters for replay: entity
// ids, names, positions and preferences, in sorted order.
func (w *World) stateDigest(nowTick uint64) string {
	h := sha256.New()
	var buf [8]byte
	writeU64 := func(v uint64) {
		binary.LittleEndian.PutUint64(buf[:], v)
		h.Write(buf[:])
	}
	writeStr := func(s string) {
		writeU64(uint64(len(s)))
		h.Write([]byte(s))
	}

	writeU64(nowTick)
	for _, id := range w.sortedEntityIDs() {
		e := w.entities[id]
		writeStr(string(e.ID))
		writeStr(e.Name)
		writeU64(uint64(int64(e.Pos.X)))
		writeU64(uint64(int64(e.Pos.Y)))

		prefs := w.registry.Store(id).Snapshot()
		topics := make([]consent.TopicID, 0, len(prefs))
		for t := range prefs {
			topics = append(topics, t)
		}
		sort.Slice(topics, func(i, j int) bool { return topics[i] < topics[j] })
		writeU64(uint64(len(topics)))
		for _, t := range topics {
			writeStr(string(t))
			writeU64(uint64(int64(prefs[t])))
		}
	}
	return hex.EncodeToString(h.Sum(nil))
}
