package jsonfile

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"firestige.xyz/wiresentry/internal/config"
	"firestige.xyz/wiresentry/internal/core"
)

func readRecords(t *testing.T, path string) []Record {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var out []Record
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var r Record
		require.NoError(t, json.Unmarshal(sc.Bytes(), &r))
		out = append(out, r)
	}
	require.NoError(t, sc.Err())
	return out
}

func TestCreateAndUpdate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "attacks.jsonl")
	s := New(config.FileSinkConfig{Path: path})
	require.NoError(t, s.Open())

	p1 := core.NewPacket(core.ProtocolTCP, time.Now())
	p1.DstPort = 22
	a := core.NewAttack(core.DetectorInfo{ID: "det", Name: "Port Scan Scanner"}, "m1", "m2", "Port Scan", []*core.Packet{p1})

	require.NoError(t, s.Create(a))
	require.NoError(t, s.Update(a), "no new packets")

	p2 := core.NewPacket(core.ProtocolTCP, time.Now())
	a.Merge([]*core.Packet{p2})
	require.NoError(t, s.Update(a))
	require.NoError(t, s.Close())

	recs := readRecords(t, path)
	require.Len(t, recs, 2)
	assert.Equal(t, "create", recs[0].Op)
	assert.Equal(t, a.Signature(), recs[0].Attack.Signature)
	require.Len(t, recs[0].Packets, 1)
	assert.Equal(t, uint16(22), recs[0].Packets[0].DstPort)

	assert.Equal(t, "update", recs[1].Op)
	require.Len(t, recs[1].Packets, 1)
	assert.Equal(t, p2.ID.String(), recs[1].Packets[0].ID)
	assert.Equal(t, 2, recs[1].Attack.Packets)
}

func TestWriteAfterClose(t *testing.T) {
	s := New(config.FileSinkConfig{Path: filepath.Join(t.TempDir(), "x.jsonl")})
	a := core.NewAttack(core.DetectorInfo{ID: "d"}, "a", "b", "t", []*core.Packet{core.NewPacket(core.ProtocolARP, time.Now())})
	assert.ErrorIs(t, s.Create(a), core.ErrSinkClosed)
}
