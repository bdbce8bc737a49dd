package daemon

import (
	"sync"

	"github.com/pcran/pcran/pkg/types"
)

// resultCache keeps the most recent results keyed by input fingerprint, so a
// scheduled run over unchanged input is not recomputed.
type resultCache struct {
	mu    sync.Mutex
	size  int
	order []string
	byFP  map[string]*types.Result
	last  *types.Result
}

func newResultCache(size int) *resultCache {
	return &resultCache{size: size, byFP: map[string]*types.Result{}}
}

func (c *resultCache) Get(fingerprint string) (*types.Result, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	res, ok := c.byFP[fingerprint]
	return res, ok
}

// Put stores res and makes it the last result.
func (c *resultCache) Put(res *types.Result) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.last = res
	if _, ok := c.byFP[res.Fingerprint]; !ok {
		c.order = append(c.order, res.Fingerprint)
	}
	c.byFP[res.Fingerprint] = res

	for len(c.order) > c.size {
		delete(c.byFP, c.order[0])
		c.order = c.order[1:]
	}
}

// Touch makes an already cached result the last one.
func (c *resultCache) Touch(res *types.Result) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.last = res
}

func (c *resultCache) Last() *types.Result {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.last
}
