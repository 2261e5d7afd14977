package ncompose

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetupCacheLoad(t *testing.T) {
	t.Parallel()
	c := NewSetupCache()
	calls := 0
	build := func(r Reporter) ([]*Setup, error) {
		calls++
		reportf(r, NoRoots, Warning, nil, "remembered")
		return []*Setup{{Name: "A"}}, nil
	}
	var first Diagnostics
	setups, cached, err := c.Load([]byte("text"), &first, build)
	require.NoError(t, err)
	assert.False(t, cached)
	require.Len(t, setups, 1)
	assert.Len(t, first.ByID(NoRoots), 1)

	var second Diagnostics
	again, cached, err := c.Load([]byte("text"), &second, build)
	require.NoError(t, err)
	assert.True(t, cached)
	assert.Same(t, setups[0], again[0])
	assert.Len(t, second.ByID(NoRoots), 1, "diagnostics are replayed")
	assert.Equal(t, 1, calls)

	hits, misses := c.Stats()
	assert.Equal(t, int64(1), hits)
	assert.Equal(t, int64(1), misses)

	c.Forget([]byte("text"))
	_, cached, _ = c.Load([]byte("text"), nil, build)
	assert.False(t, cached)
	assert.Equal(t, 2, calls)
}

func TestSetupCacheConcurrent(t *testing.T) {
	t.Parallel()
	c := NewSetupCache()
	var lock sync.Mutex
	calls := 0
	build := func(Reporter) ([]*Setup, error) {
		lock.Lock()
		defer lock.Unlock()
		calls++
		return nil, nil
	}
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, _ = c.Load([]byte("same"), nil, build)
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, calls)
	hits, misses := c.Stats()
	assert.Equal(t, int64(7), hits)
	assert.Equal(t, int64(1), misses)
}

func TestGeneratorUsesCache(t *testing.T) {
	p := newTestProject(t, `type Service struct{}`)
	config := configHeader + `
func setup() {
	di.Setup("App").Root[*Service]("Service")
}
`
	cache := NewSetupCache()
	for i := 0; i < 2; i++ {
		g := NewGenerator(p.u, Options{Reporter: p.diags, Cache: cache})
		f := p.parse("config.go", config)
		require.NoError(t, g.ProcessFile(p.fset, nil, testPkg, f, []byte(config)))
		require.Len(t, g.Setups(), 1)
		graphs, err := g.Compose()
		require.NoError(t, err, p.diags.String())
		require.Len(t, graphs, 1)
	}
	hits, misses := cache.Stats()
	assert.Equal(t, int64(1), hits)
	assert.Equal(t, int64(1), misses)
}

func TestChecksum(t *testing.T) {
	t.Parallel()
	assert.Equal(t, Checksum([]byte("a")), Checksum([]byte("a")))
	assert.NotEqual(t, Checksum([]byte("a")), Checksum([]byte("b")))
	assert.Len(t, Checksum(nil), 64)
}
