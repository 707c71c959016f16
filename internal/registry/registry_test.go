package registry

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/sectionconf/internal/conferr"
	"github.com/vk/sectionconf/internal/scanner"
	"github.com/vk/sectionconf/internal/testutil"
)

// recordingHandler records the events routed to it and counts finalizer
// calls.
type recordingHandler struct {
	section  string
	decline  bool
	params   map[string]string
	finished int
}

func newRecording(section string) *recordingHandler {
	return &recordingHandler{section: section, params: map[string]string{}}
}

func (h *recordingHandler) Section() string { return h.section }

func (h *recordingHandler) SectionStarted(string) (bool, error) { return !h.decline, nil }

func (h *recordingHandler) Parameter(section, key, value string) error {
	h.params[section+"."+key] = value
	return nil
}

func (h *recordingHandler) SectionComplete(string) error { return nil }

func (h *recordingHandler) ParseComplete() error {
	h.finished++
	return nil
}

func (h *recordingHandler) Configuration() map[string]string { return h.params }

func parse(t *testing.T, r *Registry, text string) error {
	t.Helper()
	return scanner.Scan(context.Background(), testutil.Lines("test.conf", text), nil, r.Dispatcher())
}

func TestRegister_ConflictFailsFast(t *testing.T) {
	r := New()
	require.NoError(t, r.Register("object", newRecording("object")))

	err := r.Register("object", newRecording("object"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, conferr.KindRegistration))
	assert.ErrorContains(t, err, `section "object" is already owned`)
}

func TestRegister_SameInstanceIsIdempotent(t *testing.T) {
	r := New()
	h := newRecording("object")
	require.NoError(t, r.Register("object", h))
	require.NoError(t, r.Register("object", h))
	assert.Equal(t, []string{"object"}, r.Sections())
}

func TestRegister_Nil(t *testing.T) {
	err := New().Register("object", nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, conferr.KindRegistration))
}

type mapHandler map[string]string

func (mapHandler) SectionStarted(string) (bool, error) { return true, nil }

func (m mapHandler) Parameter(_, key, value string) error {
	m[key] = value
	return nil
}

func (mapHandler) SectionComplete(string) error { return nil }

func TestRegister_RejectsIncomparableHandlers(t *testing.T) {
	r := New()
	err := r.Register("a", mapHandler{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, conferr.KindRegistration))
	assert.ErrorContains(t, err, "not comparable")
	assert.Empty(t, r.Sections())

	require.NotPanics(t, func() {
		require.NoError(t, parse(t, r, "[a]\nk=v"))
	})
}

func TestMustRegister_Panics(t *testing.T) {
	r := New()
	r.MustRegister("a", newRecording("a"))
	assert.Panics(t, func() { r.MustRegister("a", newRecording("a")) })
}

func TestRegisterAlias(t *testing.T) {
	r := New()
	h := newRecording("mappings")
	require.NoError(t, r.RegisterBound(h))
	require.NoError(t, r.RegisterAlias("routes", "mappings"))
	require.NoError(t, r.RegisterAlias("routes", "mappings"), "same alias twice is a no-op")

	assert.Equal(t, "mappings", r.Resolve("routes"))
	assert.Equal(t, "other", r.Resolve("other"))
	got, ok := r.Handler("routes")
	require.True(t, ok)
	assert.Same(t, h, got)

	require.NoError(t, parse(t, r, "[routes]\nx=1\n[mappings]\ny=2"))
	expected := map[string]string{"mappings.x": "1", "mappings.y": "2"}
	if diff := cmp.Diff(expected, h.params); diff != "" {
		t.Errorf("routed parameters mismatch (-want +got):\n%s", diff)
	}

	testCases := []struct {
		name        string
		alias       string
		section     string
		errContains string
	}{
		{name: "self", alias: "a", section: "a", errContains: "cannot alias itself"},
		{name: "onto a section", alias: "mappings", section: "x", errContains: "collides with a registered section"},
		{name: "repointed", alias: "routes", section: "x", errContains: `already points to "mappings"`},
		{name: "chained", alias: "r2", section: "routes", errContains: "another alias"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := r.RegisterAlias(tc.alias, tc.section)
			require.Error(t, err)
			assert.ErrorContains(t, err, tc.errContains)
		})
	}

	err := r.Register("routes", newRecording("routes"))
	require.Error(t, err, "a section cannot take an alias name")
}

func TestDispatch_RoutesBySection(t *testing.T) {
	r := New()
	a, b := newRecording("a"), newRecording("b")
	r.MustRegister("a", a)
	r.MustRegister("b", b)

	require.NoError(t, parse(t, r, "orphan=0\n[a]\nx=1\n[c]\nz=3\n[b]\ny=2\n[a]\nw=4"))

	assert.Equal(t, map[string]string{"a.x": "1", "a.w": "4"}, a.params)
	assert.Equal(t, map[string]string{"b.y": "2"}, b.params)
	assert.Equal(t, 1, a.finished)
	assert.Equal(t, 1, b.finished)
}

func TestDispatch_DeclinedSectionIsSkipped(t *testing.T) {
	r := New()
	h := newRecording("a")
	h.decline = true
	r.MustRegister("a", h)

	d := r.Dispatcher()
	process, err := d.SectionStarted("a")
	require.NoError(t, err)
	assert.False(t, process)

	require.NoError(t, parse(t, r, "[a]\nx=1"))
	assert.Empty(t, h.params)
}

func TestDispatch_ObserversSeeEverything(t *testing.T) {
	r := New()
	h := newRecording("a")
	h.decline = true
	r.MustRegister("a", h)
	rec := &scanner.Recorder{}
	r.Observe(rec)

	d := r.Dispatcher()
	process, err := d.SectionStarted("unowned")
	require.NoError(t, err)
	assert.True(t, process, "observers want parameters of unowned sections")
	require.NoError(t, d.SectionComplete("unowned"))

	require.NoError(t, parse(t, r, "[a]\nx=1\n[b]\ny=2"))

	expected := []scanner.Event{
		{Kind: scanner.EventParameter, Section: "a", Key: "x", Value: "1"},
		{Kind: scanner.EventParameter, Section: "b", Key: "y", Value: "2"},
	}
	if diff := cmp.Diff(expected, rec.Parameters()); diff != "" {
		t.Errorf("observer parameters mismatch (-want +got):\n%s", diff)
	}
	assert.Empty(t, h.params, "a declined handler still receives nothing")
}

func TestDispatch_UnstartedSectionIsAnError(t *testing.T) {
	r := New()
	r.MustRegister("a", newRecording("a"))

	t.Run("parameter", func(t *testing.T) {
		err := r.Dispatcher().Parameter("a", "x", "1")
		require.Error(t, err)
		assert.True(t, errors.Is(err, conferr.KindDispatch))
		assert.ErrorContains(t, err, "never started")
	})

	t.Run("parameter for another section", func(t *testing.T) {
		d := r.Dispatcher()
		_, err := d.SectionStarted("a")
		require.NoError(t, err)
		err = d.Parameter("b", "x", "1")
		require.Error(t, err)
		assert.True(t, errors.Is(err, conferr.KindDispatch))
	})

	t.Run("complete", func(t *testing.T) {
		err := r.Dispatcher().SectionComplete("a")
		require.Error(t, err)
		assert.True(t, errors.Is(err, conferr.KindDispatch))
	})

	t.Run("nested start", func(t *testing.T) {
		d := r.Dispatcher()
		_, err := d.SectionStarted("a")
		require.NoError(t, err)
		_, err = d.SectionStarted("b")
		require.Error(t, err)
	})
}

func TestDispatch_FinalizesDistinctHandlersOnce(t *testing.T) {
	r := New()
	h := newRecording("a")
	r.MustRegister("a", h)
	r.MustRegister("b", h)
	rec := &scanner.Recorder{}
	r.Observe(rec)

	require.NoError(t, parse(t, r, "[a]\nx=1\n[b]\ny=2"))

	assert.Equal(t, 1, h.finished)
	events := rec.Events
	require.NotEmpty(t, events)
	assert.Equal(t, scanner.EventParseComplete, events[len(events)-1].Kind)
}

type failingHandler struct {
	recordingHandler
	err error
}

func (h *failingHandler) Parameter(string, string, string) error { return h.err }

func TestDispatch_HandlerErrorAborts(t *testing.T) {
	r := New()
	boom := errors.New("boom")
	r.MustRegister("a", &failingHandler{err: boom})
	after := newRecording("b")
	r.MustRegister("b", after)

	err := parse(t, r, "[a]\nx=1\n[b]\ny=2")
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.ErrorContains(t, err, "test.conf:2")
	assert.Empty(t, after.params)
	assert.Zero(t, after.finished, "an aborted parse never completes")
}

func TestDispatcher_SnapshotIsolatesParses(t *testing.T) {
	r := New()
	d := r.Dispatcher()
	late := newRecording("late")
	r.MustRegister("late", late)

	process, err := d.SectionStarted("late")
	require.NoError(t, err)
	assert.False(t, process, "a dispatcher only sees handlers registered before it was created")
}

func TestRegistry_ConcurrentUse(t *testing.T) {
	r := New()
	shared := newRecording("shared")
	r.MustRegister("shared", shared)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_ = r.Register("shared", shared)
			_, _ = r.Handler("shared")
			_ = r.Sections()
		}()
		go func() {
			defer wg.Done()
			d := r.Dispatcher()
			_, _ = d.SectionStarted("unowned")
			_ = d.SectionComplete("unowned")
		}()
	}
	wg.Wait()
	assert.Equal(t, []string{"shared"}, r.Sections())
}

func TestGetSection(t *testing.T) {
	r := New()
	h := newRecording("a")
	r.MustRegister("a", h)
	require.NoError(t, r.RegisterAlias("alias", "a"))
	require.NoError(t, parse(t, r, "[a]\nx=1"))

	got, err := GetSection[map[string]string](r, "a")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"a.x": "1"}, got)

	got, err = GetSection[map[string]string](r, "alias")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"a.x": "1"}, got)

	_, err = GetSection[map[string]string](r, "missing")
	require.Error(t, err)
	assert.True(t, errors.Is(err, conferr.KindRegistration))

	_, err = GetSection[int](r, "a")
	require.Error(t, err)
	assert.ErrorContains(t, err, "does not produce int")
}

func TestGet(t *testing.T) {
	t.Run("single bound producer", func(t *testing.T) {
		r := New()
		h := newRecording("a")
		require.NoError(t, r.RegisterBound(h))
		require.NoError(t, parse(t, r, "[a]\nx=1"))

		got, err := Get[map[string]string](r)
		require.NoError(t, err)
		assert.Equal(t, map[string]string{"a.x": "1"}, got)
	})

	t.Run("registered under a foreign name only", func(t *testing.T) {
		r := New()
		r.MustRegister("b", newRecording("a"))
		_, err := Get[map[string]string](r)
		require.Error(t, err)
		assert.ErrorContains(t, err, "no registered section produces")
	})

	t.Run("ambiguous", func(t *testing.T) {
		r := New()
		require.NoError(t, r.RegisterBound(newRecording("a")))
		require.NoError(t, r.RegisterBound(newRecording("b")))
		_, err := Get[map[string]string](r)
		require.Error(t, err)
		assert.ErrorContains(t, err, `sections ["a" "b"]`)
	})
}
