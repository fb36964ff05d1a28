package crosscat

// sessionCache memoizes metadata and model-state reads for one session. It
// is never authoritative: entries are rebuildable from the store, and every
// writer updates the store first and the cache only after the enclosing
// scope's writes succeed.
type sessionCache struct {
	metadata map[int64]*Metadata
	models   map[int64]map[int]*modelState
}

// cache returns the session's crosscat cache, creating it if needed.
func (cc *Crosscat) cache(s cacheHost) *sessionCache {
	if c, ok := s.CacheSlot(Name).(*sessionCache); ok {
		return c
	}
	c := &sessionCache{
		metadata: make(map[int64]*Metadata),
		models:   make(map[int64]map[int]*modelState),
	}
	s.SetCacheSlot(Name, c)
	return c
}

// cacheHost is the slice of the session the cache needs.
type cacheHost interface {
	CacheSlot(name string) any
	SetCacheSlot(name string, v any)
}

func (c *sessionCache) putModel(generatorID int64, modelNo int, st *modelState) {
	byNo, ok := c.models[generatorID]
	if !ok {
		byNo = make(map[int]*modelState)
		c.models[generatorID] = byNo
	}
	byNo[modelNo] = st
}

func (c *sessionCache) evictGenerator(generatorID int64) {
	delete(c.metadata, generatorID)
	delete(c.models, generatorID)
}

func (c *sessionCache) evictModel(generatorID int64, modelNo int) {
	byNo, ok := c.models[generatorID]
	if !ok {
		return
	}
	delete(byNo, modelNo)
	if len(byNo) == 0 {
		delete(c.models, generatorID)
	}
}
