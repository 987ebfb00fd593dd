package tasks

import (
	"fmt"
	"hash/crc32"
	"sync"

	"superloop/internal/sched"

	logx "superloop/pkg/logx"
)

// DefaultChunk is how many bytes Checksum hashes per run.
const DefaultChunk = 256

// Checksum verifies a memory region incrementally, Chunk bytes per run, so a
// single run stays inside a small slice. When a pass completes the CRC is
// compared with the one from the first pass.
type Checksum struct {
	Region []byte
	Chunk  int
	Log    logx.Logger

	mu         sync.Mutex
	pos        int
	crc        uint32
	want       uint32
	haveWant   bool
	passes     uint64
	mismatches uint64
}

func (c *Checksum) Run(now sched.Tick) {
	c.mu.Lock()
	defer c.mu.Unlock()

	chunk := c.Chunk
	if chunk <= 0 {
		chunk = DefaultChunk
	}
	end := min(c.pos+chunk, len(c.Region))
	c.crc = crc32.Update(c.crc, crc32.IEEETable, c.Region[c.pos:end])
	c.pos = end
	if c.pos < len(c.Region) {
		return
	}

	c.passes++
	switch {
	case !c.haveWant:
		c.want, c.haveWant = c.crc, true
	case c.crc != c.want:
		c.mismatches++
		c.Log.Error("checksum mismatch",
			logx.Uint64("tick", uint64(now)),
			logx.String("want", fmt.Sprintf("%08x", c.want)),
			logx.String("got", fmt.Sprintf("%08x", c.crc)),
		)
	}
	c.pos, c.crc = 0, 0
}

// Stats returns completed passes and how many of them mismatched.
func (c *Checksum) Stats() (passes, mismatches uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.passes, c.mismatches
}
