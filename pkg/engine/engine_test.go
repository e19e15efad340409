package engine

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"domcache/pkg/cache"
	"domcache/pkg/config"
	"domcache/pkg/dom"
	"domcache/pkg/utils"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

const testPage = `<html><head></head><body>
<div id="container" class="wrapper">
  <button id="submitBtn" class="btn btn-primary">Send</button>
  <p class="card foo bar">One</p>
  <p class="card">Two</p>
  <input name="email" type="text">
</div>
<ul id="list">
  <li class="item">a</li>
  <li class="item">b</li>
</ul>
</body></html>`

func boolPtr(b bool) *bool { return &b }

// testEngine builds an engine over the shared test page with fast timers.
func testEngine(t *testing.T, mutate func(*config.Config)) (*Engine, *dom.Document) {
	t.Helper()
	doc, err := dom.ParseString(testPage)
	require.NoError(t, err)

	cfg := config.Config{
		DebounceDelay:    5 * time.Millisecond,
		WaitPollInterval: 10 * time.Millisecond,
	}
	if mutate != nil {
		mutate(&cfg)
	}
	e := New(doc, cfg, nil)
	t.Cleanup(e.Destroy)
	return e, doc
}

// --- Lookup dispatch ---

func TestLookupByIDIdempotent(t *testing.T) {
	e, _ := testEngine(t, nil)

	first := e.LookupByID("submitBtn")
	require.NotNil(t, first)
	second := e.LookupByID("submitBtn")
	assert.Same(t, first, second)

	s := e.Stats()
	assert.Equal(t, uint64(1), s.Hits)
	assert.Equal(t, uint64(1), s.Misses)
	assert.True(t, e.IsCached(cache.KindID, "submitBtn"))
}

func TestLookupByIDMissing(t *testing.T) {
	e, _ := testEngine(t, nil)

	assert.Nil(t, e.LookupByID("missing"))
	assert.Nil(t, e.LookupByID("missing"))
	// nil results are never cached
	assert.False(t, e.IsCached(cache.KindID, "missing"))
	assert.Equal(t, uint64(2), e.Stats().Misses)
}

func TestLookupByIDBlankInput(t *testing.T) {
	e, _ := testEngine(t, nil)
	assert.Nil(t, e.LookupByID(""))
	assert.Nil(t, e.LookupByID("   "))
	assert.Zero(t, e.Stats().Misses)
}

func TestLookupCollectionHitWrapsSameCollection(t *testing.T) {
	e, _ := testEngine(t, nil)

	first := e.LookupCollection(CollectionClass, "card")
	require.Equal(t, 2, first.Length())
	second := e.LookupCollection(CollectionClass, "card")
	assert.Same(t, first, second, "cache hit must return the same collection object")
	assert.Equal(t, uint64(1), e.Stats().Hits)
}

func TestLookupCollectionKinds(t *testing.T) {
	e, _ := testEngine(t, nil)

	assert.Equal(t, 2, e.LookupCollection(CollectionClass, "item").Length())
	assert.Equal(t, 2, e.LookupCollection(CollectionTag, "li").Length())
	assert.Equal(t, 1, e.LookupCollection(CollectionName, "email").Length())
	assert.Equal(t, 0, e.LookupCollection(CollectionKind("bogus"), "x").Length())
}

func TestEmptyResultStability(t *testing.T) {
	e, _ := testEngine(t, nil)

	check := func(c *dom.Collection) {
		t.Helper()
		assert.Equal(t, 0, c.Length())
		assert.True(t, c.IsEmpty())
		assert.Nil(t, c.First())
		visits := 0
		c.Each(func(int, *dom.Node) { visits++ })
		assert.Zero(t, visits)
	}

	check(e.LookupCollection(CollectionClass, "does-not-exist")) // fresh miss
	check(e.LookupCollection(CollectionClass, "does-not-exist")) // cache hit

	s := e.Stats()
	assert.Equal(t, uint64(1), s.Hits, "empty collections are cached too")
	assert.Equal(t, uint64(1), s.Misses)
}

func TestLookupSelector(t *testing.T) {
	e, _ := testEngine(t, nil)

	n := e.LookupSelector(".btn-primary")
	require.NotNil(t, n)
	assert.Equal(t, "submitBtn", dom.ID(n))
	assert.Same(t, n, e.LookupSelector(".btn-primary"))

	all := e.LookupSelectorAll("#container .card")
	assert.Equal(t, 2, all.Length())
}

func TestInvalidSelectorDegrades(t *testing.T) {
	e, _ := testEngine(t, nil)

	assert.Nil(t, e.LookupSelector("[[["))
	assert.Equal(t, 0, e.LookupSelectorAll("[[[").Length())
	assert.Nil(t, e.LookupSelector(""))
	// invalid input is rejected before touching cache or counters
	assert.Zero(t, e.Stats().Misses)
	assert.Empty(t, e.CacheSnapshot())
}

func TestLookupScoped(t *testing.T) {
	e, doc := testEngine(t, nil)
	list := doc.GetElementByID("list")

	// container by element
	n := e.LookupScoped(list, ".item")
	require.NotNil(t, n)
	assert.Equal(t, "a", dom.Text(n))

	// container by selector string, resolved eagerly
	items := e.LookupScopedAll("#list", ".item")
	assert.Equal(t, 2, items.Length())

	// absent container degrades to empty, not an error
	assert.Nil(t, e.LookupScoped("#nope", ".item"))
	assert.Equal(t, 0, e.LookupScopedAll("#nope", ".item").Length())

	// unsupported container type degrades the same way
	assert.Nil(t, e.LookupScoped(42, ".item"))
	assert.Nil(t, e.LookupScoped(nil, ".item"))
}

func TestScopedKeysAreDistinctPerContainer(t *testing.T) {
	e, doc := testEngine(t, nil)
	container := doc.GetElementByID("container")
	list := doc.GetElementByID("list")

	inContainer := e.LookupScopedAll(container, "p")
	inList := e.LookupScopedAll(list, "p")
	assert.Equal(t, 2, inContainer.Length())
	assert.Equal(t, 0, inList.Length())
	assert.Equal(t, uint64(2), e.Stats().Misses)
}

// --- Invalidation through the engine ---

func TestIDRenameInvalidation(t *testing.T) {
	e, doc := testEngine(t, nil)

	btn := e.LookupByID("submitBtn")
	require.NotNil(t, btn)

	doc.SetID(btn, "sendBtn")
	e.FlushInvalidation()

	assert.False(t, e.IsCached(cache.KindID, "submitBtn"))
	assert.Nil(t, e.LookupByID("submitBtn"), "renamed element must be a fresh miss")
	assert.Same(t, btn, e.LookupByID("sendBtn"))
}

func TestClassMutationKeepsResultsCorrect(t *testing.T) {
	e, doc := testEngine(t, nil)

	foo := e.LookupCollection(CollectionClass, "foo")
	bar := e.LookupCollection(CollectionClass, "bar")
	require.Equal(t, 1, foo.Length())
	require.Equal(t, 1, bar.Length())

	p := foo.First()
	doc.RemoveClass(p, "bar")
	e.FlushInvalidation()

	assert.False(t, e.IsCached(cache.KindClass, "bar"))
	assert.Equal(t, 0, e.LookupCollection(CollectionClass, "bar").Length())
	// foo was untouched; whether served from cache or re-queried it must be correct
	assert.Equal(t, 1, e.LookupCollection(CollectionClass, "foo").Length())
}

func TestDetachedElementIsFreshMiss(t *testing.T) {
	e, doc := testEngine(t, nil)

	btn := e.LookupByID("submitBtn")
	require.NotNil(t, btn)
	require.NoError(t, doc.RemoveChild(btn.Parent, btn))
	e.FlushInvalidation()

	assert.Nil(t, e.LookupByID("submitBtn"))
}

// --- Eviction ---

func TestBoundedCacheFIFO(t *testing.T) {
	var sb strings.Builder
	sb.WriteString("<html><body>")
	for i := 0; i < 10; i++ {
		fmt.Fprintf(&sb, `<div id="k%d"></div>`, i)
	}
	sb.WriteString("</body></html>")
	doc, err := dom.ParseString(sb.String())
	require.NoError(t, err)

	e := New(doc, config.Config{MaxCacheSize: 5}, nil)
	t.Cleanup(e.Destroy)

	for i := 0; i < 10; i++ {
		require.NotNil(t, e.LookupByID(fmt.Sprintf("k%d", i)))
	}

	s := e.Stats()
	assert.LessOrEqual(t, s.CacheSize, 5)
	assert.Equal(t, uint64(5), s.Evictions)
	assert.False(t, e.IsCached(cache.KindID, "k0"), "earliest-inserted entries evicted first")
	assert.False(t, e.IsCached(cache.KindID, "k4"))
	assert.True(t, e.IsCached(cache.KindID, "k5"))
	assert.True(t, e.IsCached(cache.KindID, "k9"))
}

// --- Reaper ---

func TestReaperSafetyNet(t *testing.T) {
	e, doc := testEngine(t, func(c *config.Config) {
		c.EnableSmartCaching = boolPtr(false)
		c.CleanupInterval = 25 * time.Millisecond
	})

	btn := e.LookupSelector("#submitBtn")
	require.NotNil(t, btn)
	require.True(t, e.IsCached(cache.KindSelectorSingle, "#submitBtn"))

	// with smart caching off nothing watches selector keys; detach and let
	// the reaper find the stale entry on its own
	require.NoError(t, doc.RemoveChild(btn.Parent, btn))

	require.Eventually(t, func() bool {
		return !e.IsCached(cache.KindSelectorSingle, "#submitBtn")
	}, time.Second, 10*time.Millisecond)

	s := e.Stats()
	assert.GreaterOrEqual(t, s.Reaped, uint64(1))
	assert.False(t, s.LastCleanup.IsZero())
}

func TestManualReap(t *testing.T) {
	e, doc := testEngine(t, func(c *config.Config) {
		c.AutoCleanup = boolPtr(false)
		c.EnableSmartCaching = boolPtr(false)
	})

	btn := e.LookupSelector("#submitBtn")
	require.NotNil(t, btn)
	require.NoError(t, doc.RemoveChild(btn.Parent, btn))

	assert.Equal(t, 1, e.Reap())
	assert.False(t, e.IsCached(cache.KindSelectorSingle, "#submitBtn"))
}

// --- WaitFor / Require ---

func TestWaitForFindsExisting(t *testing.T) {
	e, _ := testEngine(t, nil)

	found, err := e.WaitFor(context.Background(), []string{"submitBtn", ".card"}, time.Second)
	require.NoError(t, err)
	assert.Len(t, found, 2)
	assert.Equal(t, "submitBtn", dom.ID(found["submitBtn"]))
	assert.NotNil(t, found[".card"])
}

func TestWaitForLateElement(t *testing.T) {
	e, doc := testEngine(t, nil)

	go func() {
		time.Sleep(30 * time.Millisecond)
		_ = doc.AppendChild(doc.Body(), dom.CreateElement("div", "id", "late"))
	}()

	n, err := e.WaitForElement(context.Background(), "late", time.Second)
	require.NoError(t, err)
	assert.Equal(t, "late", dom.ID(n))
}

func TestWaitForTimeout(t *testing.T) {
	e, _ := testEngine(t, nil)

	start := time.Now()
	_, err := e.WaitFor(context.Background(), []string{"#missingId", "submitBtn"}, 150*time.Millisecond)
	elapsed := time.Since(start)

	require.Error(t, err)
	assert.ErrorIs(t, err, utils.ErrWaitTimeout)
	assert.Contains(t, err.Error(), "#missingId")
	assert.NotContains(t, err.Error(), "submitBtn", "resolved discriminators are not reported missing")
	assert.GreaterOrEqual(t, elapsed, 150*time.Millisecond)
	assert.Less(t, elapsed, time.Second)
}

func TestRequire(t *testing.T) {
	e, _ := testEngine(t, nil)

	found, err := e.Require("submitBtn", ".card")
	require.NoError(t, err)
	assert.Len(t, found, 2)

	_, err = e.Require("submitBtn", "#ghost", "#phantom")
	require.Error(t, err)
	assert.ErrorIs(t, err, utils.ErrRequiredMissing)
	assert.Contains(t, err.Error(), "#ghost")
	assert.Contains(t, err.Error(), "#phantom")
}

// --- Lifecycle ---

func TestDestroyDegradesToPassthrough(t *testing.T) {
	e, _ := testEngine(t, nil)

	require.NotNil(t, e.LookupByID("submitBtn"))
	require.Equal(t, 1, e.Stats().CacheSize)

	e.Destroy()
	e.Destroy() // idempotent

	n := e.LookupByID("submitBtn")
	require.NotNil(t, n, "lookups must keep working after destroy")
	assert.Equal(t, "submitBtn", dom.ID(n))
	assert.Equal(t, 2, e.LookupCollection(CollectionClass, "card").Length())

	s := e.Stats()
	assert.Equal(t, 0, s.CacheSize, "cache stays empty after destroy")
	assert.Empty(t, e.CacheSnapshot())
}

func TestClear(t *testing.T) {
	e, _ := testEngine(t, nil)

	e.LookupByID("submitBtn")
	e.LookupCollection(CollectionClass, "card")
	require.Equal(t, 2, e.Stats().CacheSize)

	e.Clear()
	assert.Equal(t, 0, e.Stats().CacheSize)
	// lookups repopulate after a clear, unlike after destroy
	e.LookupByID("submitBtn")
	assert.Equal(t, 1, e.Stats().CacheSize)
}

func TestCacheSnapshotFormat(t *testing.T) {
	e, _ := testEngine(t, nil)

	e.LookupByID("submitBtn")
	e.LookupCollection(CollectionClass, "card")
	e.LookupSelector(".btn-primary")

	snap := e.CacheSnapshot()
	assert.Equal(t, []string{"id:submitBtn", "className:card", "selector:single:.btn-primary"}, snap)
}

func TestConfigureShrinksCache(t *testing.T) {
	e, _ := testEngine(t, func(c *config.Config) { c.MaxCacheSize = 10 })

	for _, id := range []string{"container", "submitBtn", "list"} {
		require.NotNil(t, e.LookupByID(id))
	}
	require.Equal(t, 3, e.Stats().CacheSize)

	cfg := config.Config{
		MaxCacheSize:  2,
		DebounceDelay: 5 * time.Millisecond,
	}
	e.Configure(cfg)
	assert.LessOrEqual(t, e.Stats().CacheSize, 2)
}

func TestConfigureTogglesSmartCaching(t *testing.T) {
	e, doc := testEngine(t, nil)

	require.NotNil(t, e.LookupSelector("#submitBtn"))

	cfg := config.Config{
		DebounceDelay:      5 * time.Millisecond,
		EnableSmartCaching: boolPtr(false),
	}
	e.Configure(cfg)

	// structural change no longer clears selector entries
	require.NoError(t, doc.AppendChild(doc.Body(), dom.CreateElement("div")))
	e.FlushInvalidation()
	assert.True(t, e.IsCached(cache.KindSelectorSingle, "#submitBtn"))
}

func TestStatsUptime(t *testing.T) {
	e, _ := testEngine(t, nil)
	s := e.Stats()
	assert.NotEmpty(t, s.InstanceID)
	assert.GreaterOrEqual(t, s.Uptime, time.Duration(0))
}

func TestConfigureTogglesLogging(t *testing.T) {
	doc, err := dom.ParseString(testPage)
	require.NoError(t, err)

	var buf bytes.Buffer
	logger := logrus.New()
	logger.SetOutput(&buf)
	logger.SetLevel(logrus.DebugLevel)

	cfg := config.Config{
		EnableLogging:    true,
		AutoCleanup:      boolPtr(false),
		DebounceDelay:    5 * time.Millisecond,
		WaitPollInterval: 10 * time.Millisecond,
	}
	e := New(doc, cfg, logger)
	t.Cleanup(e.Destroy)

	e.Clear()
	require.NotZero(t, buf.Len(), "enabled logging must reach the provided output")

	cfg.EnableLogging = false
	e.Configure(cfg)
	mark := buf.Len()
	e.Clear()
	assert.Equal(t, mark, buf.Len(), "disabled logging must be silenced")

	cfg.EnableLogging = true
	e.Configure(cfg)
	e.Clear()
	assert.Greater(t, buf.Len(), mark, "re-enabled logging must resume on the same output")
}

func TestDestroyDuringConcurrentLookups(t *testing.T) {
	e, _ := testEngine(t, nil)

	ids := []string{"submitBtn", "container", "list"}
	var wg sync.WaitGroup
	for g := 0; g < 4; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				e.LookupByID(ids[i%len(ids)])
				e.LookupSelectorAll(".card")
			}
		}()
	}
	time.Sleep(2 * time.Millisecond)
	e.Destroy()
	wg.Wait()

	assert.Empty(t, e.CacheSnapshot(), "no entry may outlive Destroy")
}

func TestWaitForCanceledContext(t *testing.T) {
	e, _ := testEngine(t, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	_, err := e.WaitFor(ctx, []string{"#neverThere"}, time.Second)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, utils.ErrWaitTimeout)
	assert.Less(t, time.Since(start), time.Second, "cancellation must not wait out the timeout")
}
