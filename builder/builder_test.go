package builder

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360studio/semreq/cache"
	"github.com/c360studio/semreq/config"
	"github.com/c360studio/semreq/metrics"
	"github.com/c360studio/semreq/requirement"
	"github.com/c360studio/semreq/storage"
)

const (
	indexRST = `=====
Index
=====

.. req-list::
   :sort: id

See :req:` + "`REQ-B`" + `.
`
	apiRST = `API
===

.. req:: REQ-A
   Authentication
   :priority: high

   Users log in.
`
	uiMD = "# UI\n\n```{req} REQ-B\n:priority: low\n:parent: REQ-A\n\nShows the login form.\n```\n"
)

func writeTree(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for name, content := range files {
		writeFile(t, root, name, content)
	}
	return root
}

func writeFile(t *testing.T, root, name, content string) {
	t.Helper()
	p := filepath.Join(root, filepath.FromSlash(name))
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0755))
	require.NoError(t, os.WriteFile(p, []byte(content), 0644))
}

func newBuilder(t *testing.T, root string, mutate func(*Options)) *Builder {
	t.Helper()
	opts := Options{Config: config.DefaultConfig(), Root: root}
	if mutate != nil {
		mutate(&opts)
	}
	b, err := New(opts)
	require.NoError(t, err)
	return b
}

func TestBuild_EndToEnd(t *testing.T) {
	root := writeTree(t, map[string]string{
		"index.rst":     indexRST,
		"specs/api.rst": apiRST,
		"specs/ui.md":   uiMD,
	})
	b := newBuilder(t, root, nil)

	res, err := b.Build(context.Background())
	require.NoError(t, err)
	assert.NotEmpty(t, res.BuildID)
	assert.Equal(t, 3, res.Documents)
	assert.Equal(t, 3, res.Parsed)
	assert.Empty(t, res.Errors)
	require.NotNil(t, res.Report)
	assert.Equal(t, 2, res.Report.Requirements)
	assert.True(t, res.OK())
	assert.ElementsMatch(t, []string{"index.html", "specs/api.html", "specs/ui.html"}, res.Written)

	index, err := os.ReadFile(filepath.Join(root, "_build", "index.html"))
	require.NoError(t, err)
	assert.Contains(t, string(index), `href="specs/api.html#req-REQ-A"`)
	assert.Contains(t, string(index), `href="specs/ui.html#req-REQ-B"`)

	api, err := os.ReadFile(filepath.Join(root, "_build", "specs", "api.html"))
	require.NoError(t, err)
	assert.Contains(t, string(api), "Children: ")
	assert.Contains(t, string(api), `href="ui.html#req-REQ-B"`)

	hashes := b.Hashes()
	assert.Len(t, hashes, 3)
	assert.Contains(t, hashes, "specs/ui.md")
}

func TestBuild_UnresolvedReference(t *testing.T) {
	root := writeTree(t, map[string]string{
		"index.rst": "Index\n=====\n\nSee :req:`NOPE`.\n",
	})
	b := newBuilder(t, root, func(o *Options) { o.Formats = []string{} })

	res, err := b.Build(context.Background())
	require.NoError(t, err)
	assert.False(t, res.OK())
	require.Len(t, res.Report.Unresolved, 1)
	assert.Equal(t, "NOPE", res.Report.Unresolved[0].Target)
	assert.Empty(t, res.Written)
}

func TestBuild_DuplicateIdentityIsFatal(t *testing.T) {
	root := writeTree(t, map[string]string{
		"a.rst": ".. req:: REQ-1\n\n   First.\n",
		"b.rst": ".. req:: REQ-1\n\n   Second.\n",
	})
	b := newBuilder(t, root, nil)

	res, err := b.Build(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, requirement.ErrDuplicateIdentity))
	assert.Nil(t, res.Report, "phase 2 must not run")
	require.Len(t, res.Errors, 1)
	assert.Equal(t, "b.rst", res.Errors[0].Path)
	assert.False(t, b.Environment().Finalized())

	_, err = os.Stat(filepath.Join(root, "_build"))
	assert.True(t, os.IsNotExist(err))

	// Fixing the duplicate succeeds incrementally.
	writeFile(t, root, "b.rst", ".. req:: REQ-2\n\n   Second.\n")
	res, err = b.Rebuild(context.Background(), []string{"b.rst"})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Report.Requirements)
}

func TestBuild_DocumentErrorIsIsolated(t *testing.T) {
	root := writeTree(t, map[string]string{
		"bad.rst":  ".. req:: REQ-1\n   :colour: red\n\n   Unknown option.\n",
		"good.rst": ".. req:: REQ-2\n\n   Fine.\n",
	})
	b := newBuilder(t, root, func(o *Options) { o.Formats = []string{} })

	res, err := b.Build(context.Background())
	require.NoError(t, err)
	require.Len(t, res.Errors, 1)
	assert.Equal(t, "bad.rst", res.Errors[0].Path)
	assert.ErrorIs(t, res.Err(), requirement.ErrUnknownOption)
	assert.Equal(t, 1, res.Report.Requirements)
	assert.False(t, res.OK())
}

func TestRebuild_Incremental(t *testing.T) {
	root := writeTree(t, map[string]string{
		"index.rst":     indexRST,
		"specs/api.rst": apiRST,
		"specs/ui.md":   uiMD,
	})
	b := newBuilder(t, root, nil)
	_, err := b.Build(context.Background())
	require.NoError(t, err)

	writeFile(t, root, "specs/ui.md", strings.Replace(uiMD, "REQ-B", "REQ-C", 1))
	res, err := b.Rebuild(context.Background(), []string{"specs/ui.md"})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Parsed)
	assert.Equal(t, 2, res.Skipped)
	_, ok := b.Environment().Lookup("REQ-C")
	assert.True(t, ok)
	_, ok = b.Environment().Lookup("REQ-B")
	assert.False(t, ok)
	require.Len(t, res.Report.Unresolved, 1, "index still points at REQ-B")

	require.NoError(t, os.Remove(filepath.Join(root, "specs", "ui.md")))
	res, err = b.Rebuild(context.Background(), []string{"specs/ui.md"})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Removed)
	assert.Equal(t, 1, res.Report.Requirements)
	_, err = os.Stat(filepath.Join(root, "_build", "specs", "ui.html"))
	assert.True(t, os.IsNotExist(err))
}

func TestRebuild_CSVDependency(t *testing.T) {
	root := writeTree(t, map[string]string{
		"specs/import.rst": ".. req::\n   :csv-file: reqs.csv\n",
		"specs/reqs.csv":   "id;priority;text\nCSV-1;high;Imported.\n",
		"other.rst":        "Other\n=====\n",
	})
	b := newBuilder(t, root, func(o *Options) { o.Formats = []string{} })
	_, err := b.Build(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"specs/reqs.csv"}, b.Dependencies())
	assert.True(t, b.watches("specs/reqs.csv"))
	assert.True(t, b.watches("other.rst"))
	assert.False(t, b.watches("notes.txt"))

	writeFile(t, root, "specs/reqs.csv", "id;priority;text\nCSV-1;high;Imported.\nCSV-2;low;Also.\n")
	res, err := b.Rebuild(context.Background(), []string{"specs/reqs.csv"})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Parsed)
	assert.Equal(t, 2, res.Report.Requirements)
}

func TestBuild_WithCacheAndMetrics(t *testing.T) {
	root := writeTree(t, map[string]string{
		"specs/api.rst": apiRST,
		"specs/ui.md":   uiMD,
	})
	c, err := cache.Open(cache.Config{InMemory: true})
	require.NoError(t, err)
	defer c.Close()
	m := metrics.New(prometheus.NewRegistry())

	b := newBuilder(t, root, func(o *Options) {
		o.Cache = c
		o.Metrics = m
		o.Formats = []string{}
	})
	res, err := b.Build(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, res.Parsed)

	// A second builder over the same cache parses nothing.
	b2 := newBuilder(t, root, func(o *Options) {
		o.Cache = c
		o.Metrics = m
		o.Formats = []string{}
	})
	res, err = b2.Build(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, res.Parsed)
	assert.Equal(t, 2, res.Cached)
	assert.Equal(t, 2, res.Report.Requirements)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.Builds.WithLabelValues("ok")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.Documents.WithLabelValues("cached")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.Requirements))
}

type fakePublisher struct {
	subjects []string
}

func (f *fakePublisher) Publish(_ context.Context, subject string, _ []byte) error {
	f.subjects = append(f.subjects, subject)
	return nil
}

type fakeSyncer struct {
	records int
	buildID string
}

func (f *fakeSyncer) Sync(_ context.Context, records []*requirement.Record, buildID string) (storage.SyncResult, error) {
	f.records = len(records)
	f.buildID = buildID
	return storage.SyncResult{Stored: len(records)}, nil
}

func TestBuild_PublishesGraph(t *testing.T) {
	root := writeTree(t, map[string]string{
		"specs/api.rst": apiRST,
		"specs/ui.md":   uiMD,
	})
	pub := &fakePublisher{}
	store := &fakeSyncer{}
	b := newBuilder(t, root, func(o *Options) {
		o.Publisher = pub
		o.Store = store
		o.Formats = []string{}
	})

	res, err := b.Build(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, store.records)
	assert.Equal(t, res.BuildID, store.buildID)
	assert.Positive(t, res.Published)
	assert.Len(t, pub.subjects, res.Published)
	for _, s := range pub.subjects {
		assert.Equal(t, config.DefaultSubject, s)
	}
}

func TestBuild_Cancelled(t *testing.T) {
	root := writeTree(t, map[string]string{"a.rst": apiRST})
	b := newBuilder(t, root, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := b.Build(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNew_UnknownFormat(t *testing.T) {
	_, err := New(Options{Config: config.DefaultConfig(), Root: t.TempDir(), Formats: []string{"pdf"}})
	assert.Error(t, err)

	_, err = New(Options{})
	assert.Error(t, err)
}

func TestWatch_RebuildsOnChange(t *testing.T) {
	root := writeTree(t, map[string]string{"specs/api.rst": apiRST})
	b := newBuilder(t, root, func(o *Options) { o.Formats = []string{} })
	_, err := b.Build(context.Background())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	results := make(chan *Result, 4)
	done := make(chan error, 1)
	go func() {
		done <- b.Watch(ctx, 50*time.Millisecond, func(res *Result, err error) {
			if err == nil {
				results <- res
			}
		})
	}()

	// Give watcher time to set up
	time.Sleep(200 * time.Millisecond)
	writeFile(t, root, "specs/ui.md", uiMD)

	select {
	case res := <-results:
		assert.Equal(t, 2, res.Report.Requirements)
	case <-ctx.Done():
		t.Fatal("timeout waiting for rebuild")
	}

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}
