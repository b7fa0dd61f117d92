package imapkit

import "sync"

// UIDCache maps message sequence numbers to UIDs per folder, invalidating
// automatically when a folder's UIDVALIDITY changes. The default
// implementation (memUIDCache, below) is in-memory and never shared across
// sessions. An optional durable backend living in the top-level uidcache
// package implements this same interface via structural typing, without
// importing this package.
type UIDCache interface {
	SetUIDValidity(folder string, validity uint32)
	Put(folder string, msgno, uid uint32)
	UIDForMSN(folder string, msgno uint32) (uint32, bool)
	MSNForUID(folder string, uid uint32) (uint32, bool)
	Flush(folder string)
}

type folderUIDs struct {
	validity uint32
	msnToUID map[uint32]uint32
	uidToMSN map[uint32]uint32
}

// memUIDCache is the always-present default UID cache.
type memUIDCache struct {
	mu      sync.Mutex
	folders map[string]*folderUIDs
}

func newMemUIDCache() *memUIDCache {
	return &memUIDCache{folders: make(map[string]*folderUIDs)}
}

func (c *memUIDCache) entry(folder string) *folderUIDs {
	f, ok := c.folders[folder]
	if !ok {
		f = &folderUIDs{msnToUID: make(map[uint32]uint32), uidToMSN: make(map[uint32]uint32)}
		c.folders[folder] = f
	}
	return f
}

// SetUIDValidity flushes the folder's cached mappings if validity differs
// from what was last recorded: a UIDVALIDITY change always flushes, and
// is never silently ignored.
func (c *memUIDCache) SetUIDValidity(folder string, validity uint32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	f := c.entry(folder)
	if f.validity != 0 && f.validity != validity {
		f.msnToUID = make(map[uint32]uint32)
		f.uidToMSN = make(map[uint32]uint32)
	}
	f.validity = validity
}

func (c *memUIDCache) Put(folder string, msgno, uid uint32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	f := c.entry(folder)
	f.msnToUID[msgno] = uid
	f.uidToMSN[uid] = msgno
}

func (c *memUIDCache) UIDForMSN(folder string, msgno uint32) (uint32, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	f := c.entry(folder)
	uid, ok := f.msnToUID[msgno]
	return uid, ok
}

func (c *memUIDCache) MSNForUID(folder string, uid uint32) (uint32, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	f := c.entry(folder)
	msgno, ok := f.uidToMSN[uid]
	return msgno, ok
}

func (c *memUIDCache) Flush(folder string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.folders, folder)
}
