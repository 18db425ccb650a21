package blockfs

import (
	"sync"

	"github.com/example/sectorfs/pkg/device"
)

// cacheSlots is the fixed number of buffer cache entries.
const cacheSlots = 64

// noSector marks an empty slot.
const noSector = ^uint32(0)

// bufferHead describes one cache slot. The sector mapping, pin count and
// clock state are guarded by the cache table mutex; the payload and the
// valid/dirty bits are guarded by the per-head mutex, which is held for
// the duration of a single copy-in/out or fault-in.
type bufferHead struct {
	mu       sync.Mutex
	sector   uint32
	valid    bool
	dirty    bool
	clockBit bool
	pins     int
	data     []byte
}

// bufferCache is a fixed-count, clock-replacement, write-back cache of
// sectors. Lookup pins the head so victim selection cannot steal a slot
// that is being copied from.
type bufferCache struct {
	mu    sync.Mutex
	dev   device.BlockDevice
	heads [cacheSlots]bufferHead
	arena []byte
	hand  int
}

func newBufferCache(dev device.BlockDevice) *bufferCache {
	c := &bufferCache{
		dev:   dev,
		arena: make([]byte, cacheSlots*SectorSize),
	}
	for i := range c.heads {
		c.heads[i].sector = noSector
		c.heads[i].data = c.arena[i*SectorSize : (i+1)*SectorSize]
	}
	return c
}

// lookup scans the head array for sector. Caller holds c.mu.
func (c *bufferCache) lookup(sector uint32) *bufferHead {
	for i := range c.heads {
		if c.heads[i].sector == sector {
			return &c.heads[i]
		}
	}
	return nil
}

// selectVictim runs the clock algorithm and returns an emptied slot.
// Caller holds c.mu; a dirty victim is written back before it is handed
// out so no later fault-in can observe stale device contents.
func (c *bufferCache) selectVictim() (*bufferHead, error) {
	for {
		h := &c.heads[c.hand]
		c.hand = (c.hand + 1) % cacheSlots
		if h.pins > 0 {
			continue
		}
		if h.clockBit {
			h.clockBit = false
			continue
		}
		h.clockBit = true

		if h.valid && h.dirty {
			h.mu.Lock()
			err := c.dev.WriteSector(h.sector, h.data)
			h.dirty = false
			h.mu.Unlock()
			if err != nil {
				return nil, err
			}
		}
		h.valid = false
		h.dirty = false
		h.sector = noSector
		return h, nil
	}
}

// get returns the head for sector, pinned and with its mutex held. On a
// miss the slot is faulted in from the device when readIn is set, or
// zero-filled when the caller is about to overwrite the whole sector.
func (c *bufferCache) get(sector uint32, readIn bool) (*bufferHead, error) {
	c.mu.Lock()
	if h := c.lookup(sector); h != nil {
		h.pins++
		h.clockBit = true
		c.mu.Unlock()
		h.mu.Lock()
		return h, nil
	}

	h, err := c.selectVictim()
	if err != nil {
		c.mu.Unlock()
		return nil, err
	}
	h.sector = sector
	h.pins = 1
	h.clockBit = true
	h.mu.Lock()
	c.mu.Unlock()

	if readIn {
		if err := c.dev.ReadSector(sector, h.data); err != nil {
			h.mu.Unlock()
			c.mu.Lock()
			h.sector = noSector
			h.pins--
			c.mu.Unlock()
			return nil, err
		}
	} else {
		for i := range h.data {
			h.data[i] = 0
		}
	}
	h.valid = true
	return h, nil
}

// put releases a head returned by get.
func (c *bufferCache) put(h *bufferHead) {
	h.mu.Unlock()
	c.mu.Lock()
	h.pins--
	c.mu.Unlock()
}

// read copies chunk bytes of sector, starting at sectorOfs, into
// dst[dstOfs:], faulting the sector in if needed.
func (c *bufferCache) read(sector uint32, dst []byte, dstOfs, chunk, sectorOfs int) error {
	h, err := c.get(sector, true)
	if err != nil {
		return err
	}
	copy(dst[dstOfs:dstOfs+chunk], h.data[sectorOfs:sectorOfs+chunk])
	c.put(h)
	return nil
}

// write copies chunk bytes from src[srcOfs:] into sector at sectorOfs and
// marks the slot dirty. A partial write faults the old contents in first
// so bytes outside the chunk are preserved; a full-sector write skips the
// device read.
func (c *bufferCache) write(sector uint32, src []byte, srcOfs, chunk, sectorOfs int) error {
	readIn := chunk < SectorSize
	h, err := c.get(sector, readIn)
	if err != nil {
		return err
	}
	copy(h.data[sectorOfs:sectorOfs+chunk], src[srcOfs:srcOfs+chunk])
	h.dirty = true
	c.put(h)
	return nil
}

// zero fills the whole sector with zeroes in the cache without reading it
// from the device.
func (c *bufferCache) zero(sector uint32) error {
	h, err := c.get(sector, false)
	if err != nil {
		return err
	}
	for i := range h.data {
		h.data[i] = 0
	}
	h.dirty = true
	c.put(h)
	return nil
}

// flushEntry writes a dirty head back and clears its dirty bit. Caller
// holds c.mu.
func (c *bufferCache) flushEntry(h *bufferHead) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.valid || !h.dirty {
		return nil
	}
	if err := c.dev.WriteSector(h.sector, h.data); err != nil {
		return err
	}
	h.dirty = false
	return nil
}

// flushAll iterates every slot and writes the dirty ones back.
func (c *bufferCache) flushAll() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.heads {
		if err := c.flushEntry(&c.heads[i]); err != nil {
			return err
		}
	}
	return nil
}
