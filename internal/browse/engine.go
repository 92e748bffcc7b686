package browse

import (
	"context"
	"encoding/json"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/biblioapp/biblio/internal/catalog"
	"github.com/biblioapp/biblio/internal/errors"
	"github.com/biblioapp/biblio/internal/state"
	"github.com/biblioapp/biblio/internal/validation"
)

// Status messages.
const (
	StatusReady        = "Ready"
	StatusLoading      = "Loading books..."
	StatusLoadError    = "Error loading library"
	StatusNoLibraries  = "No libraries found"
	StatusLibraryError = "Error loading libraries"
)

// ErrSuperseded is returned when an activation finished after a newer one began.
// Its result has been discarded.
var ErrSuperseded = &errors.Error{Code: errors.CodeConflict, Message: "activation superseded by a newer request"}

var validate = validation.New()

// Persistence saves and loads one client's state in the two scopes.
type Persistence interface {
	Save(ctx context.Context, scope state.Scope, data []byte) error
	Load(ctx context.Context, scope state.Scope) ([]byte, bool, error)
}

// Recorder receives engine measurements.
type Recorder interface {
	Activation(decision string)
	Recompute(filtered int, elapsed time.Duration)
	PageMaterialized(records int)
	PersistFailure(scope string)
	FetchFailure()
}

type nopRecorder struct{}

func (nopRecorder) Activation(string)            {}
func (nopRecorder) Recompute(int, time.Duration) {}
func (nopRecorder) PageMaterialized(int)         {}
func (nopRecorder) PersistFailure(string)        {}
func (nopRecorder) FetchFailure()                {}

// Options configures an Engine. Source is required; everything else is optional.
type Options struct {
	Source      catalog.Source
	Persistence Persistence
	Logger      *slog.Logger
	Listener    Listener
	Metrics     Recorder
	PageSize    int
}

// Status summarizes the engine for a status line.
type Status struct {
	LibraryID   string
	LibraryName string
	Total       int
	Filtered    int
	Displayed   int
	HasMore     bool
	Message     string
}

// Engine is one browsing view over the active library.
//
// An Engine is not safe for concurrent use. Callers serialize every method except Fetch,
// which touches no engine state.
type Engine struct {
	source   catalog.Source
	persist  Persistence
	logger   *slog.Logger
	listener Listener
	metrics  Recorder

	libraries  []catalog.Library
	catalog    *catalog.Catalog
	view       *ViewState
	ordered    []*catalog.Record
	viewport   *Viewport
	reconciler *Reconciler
	prefs      Preferences
	message    string

	// snapshot is the session state loaded by Start. The first committed activation
	// consumes it, restoring it only when it names the library being activated.
	snapshot *ViewState
}

// New creates an engine with an empty view and default preferences.
func New(opts Options) *Engine {
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}
	if opts.Metrics == nil {
		opts.Metrics = nopRecorder{}
	}
	return &Engine{
		source:     opts.Source,
		persist:    opts.Persistence,
		logger:     opts.Logger,
		listener:   opts.Listener,
		metrics:    opts.Metrics,
		view:       NewViewState(),
		viewport:   NewViewport(opts.PageSize),
		reconciler: NewReconciler(),
		prefs:      DefaultPreferences(),
	}
}

// Start loads preferences, the session snapshot and the library list, then activates the
// snapshot's library if it still exists, else the first library.
func (e *Engine) Start(ctx context.Context) error {
	e.loadPreferences(ctx)
	e.loadSnapshot(ctx)

	if err := e.loadLibraries(ctx); err != nil {
		e.message = StatusLibraryError
		return err
	}
	if len(e.libraries) == 0 {
		e.message = StatusNoLibraries
		return nil
	}

	_, err := e.ActivateLibrary(ctx, e.target())
	return err
}

// RefreshLibraries rescans the library list. The active library is reactivated as a
// refresh if it still exists; otherwise the first library is activated. With no libraries
// left the view is emptied.
func (e *Engine) RefreshLibraries(ctx context.Context) error {
	if err := e.loadLibraries(ctx); err != nil {
		e.message = StatusLibraryError
		return err
	}

	if len(e.libraries) == 0 {
		e.deactivate(ctx)
		return nil
	}

	_, err := e.ActivateLibrary(ctx, e.target())
	return err
}

// ActivateLibrary loads libraryID and reconciles the view with it.
func (e *Engine) ActivateLibrary(ctx context.Context, libraryID string) (Decision, error) {
	t, err := e.BeginActivation(libraryID)
	if err != nil {
		return 0, err
	}
	cat, err := e.Fetch(ctx, t)
	return e.CompleteActivation(ctx, t, cat, err)
}

// BeginActivation starts activating libraryID. Any activation still in flight is
// superseded.
func (e *Engine) BeginActivation(libraryID string) (Ticket, error) {
	if !e.hasLibrary(libraryID) {
		return Ticket{}, errors.NotFoundf("library %s not found", libraryID)
	}
	e.message = StatusLoading
	return e.reconciler.Begin(libraryID), nil
}

// Fetch loads the catalog an activation needs. It reads no engine state and may run
// while other methods are called.
func (e *Engine) Fetch(ctx context.Context, t Ticket) (*catalog.Catalog, error) {
	return catalog.Fetch(ctx, e.source, t.LibraryID)
}

// CompleteActivation applies the outcome of a fetch. Stale tickets return ErrSuperseded
// and change nothing. A fetch error sets the error status and leaves the view as it was.
func (e *Engine) CompleteActivation(ctx context.Context, t Ticket, cat *catalog.Catalog, fetchErr error) (Decision, error) {
	if !e.reconciler.Current(t) {
		e.logger.Debug("Discarding superseded activation", "library", t.LibraryID)
		return 0, ErrSuperseded
	}

	if fetchErr != nil {
		e.message = StatusLoadError
		e.metrics.FetchFailure()
		e.logger.Warn("Failed to load library", "library", t.LibraryID, "error", fetchErr)
		return 0, fetchErr
	}
	if cat == nil || cat.LibraryID != t.LibraryID {
		return 0, errors.Internal("catalog does not belong to the library being activated")
	}

	snapshotLibrary := ""
	if e.snapshot != nil {
		snapshotLibrary = e.snapshot.ActiveLibraryID
	}
	decision, _ := e.reconciler.Decide(t, snapshotLibrary)

	depth := 0
	switch decision {
	case DecisionRefresh:
		depth = e.view.Displayed
	case DecisionRestore:
		e.restoreSnapshot()
		depth = e.view.Displayed
	case DecisionClear:
		e.view.ResetFilters()
	}

	e.reconciler.Commit(t)
	e.snapshot = nil
	e.catalog = cat
	e.view.ActiveLibraryID = t.LibraryID

	e.recompute()
	if depth > e.view.Displayed {
		e.materialize(e.viewport.Restore(depth))
	}
	e.reconcileSelection()

	e.message = StatusReady
	e.metrics.Activation(decision.String())
	e.logger.Info("Library activated",
		"library", t.LibraryID,
		"decision", decision.String(),
		"records", cat.Len(),
		"filtered", len(e.ordered),
	)

	e.persistSession(ctx)
	return decision, nil
}

// ToggleAuthor flips an author id in the author filter and reports whether it is now
// selected.
func (e *Engine) ToggleAuthor(ctx context.Context, id int64) (bool, error) {
	return e.toggleFacet(ctx, AxisAuthors, id)
}

// ToggleTag flips a tag id in the tag filter.
func (e *Engine) ToggleTag(ctx context.Context, id int64) (bool, error) {
	return e.toggleFacet(ctx, AxisTags, id)
}

// ToggleSeries flips a series id in the series filter.
func (e *Engine) ToggleSeries(ctx context.Context, id int64) (bool, error) {
	return e.toggleFacet(ctx, AxisSeries, id)
}

// ToggleFacet flips an id on a facet axis. Ids unknown to the active library can be
// removed but not added.
func (e *Engine) ToggleFacet(ctx context.Context, axis Axis, id int64) (bool, error) {
	return e.toggleFacet(ctx, axis, id)
}

func (e *Engine) toggleFacet(ctx context.Context, axis Axis, id int64) (bool, error) {
	if err := e.requireLibrary(); err != nil {
		return false, err
	}

	t, ok := axis.FacetType()
	if !ok {
		return false, errors.Validationf("%s is not an id axis", axis)
	}

	sel := e.view.IDs(axis)
	if !sel.Has(id) && !e.catalog.Index.Has(t, id) {
		return false, errors.NotFoundf("%s %d not found in library %s", t, id, e.catalog.LibraryID)
	}

	on := sel.Toggle(id)
	e.mutated(ctx)
	return on, nil
}

// ToggleFormat flips a format name (case-insensitive) in the format filter.
func (e *Engine) ToggleFormat(ctx context.Context, name string) (bool, error) {
	if err := e.requireLibrary(); err != nil {
		return false, err
	}

	name = strings.ToUpper(strings.TrimSpace(name))
	if name == "" {
		return false, errors.Validation("format name is required")
	}
	known := slices.ContainsFunc(e.catalog.Formats, func(f catalog.FormatCount) bool { return f.Name == name })
	if !e.view.Formats.Has(name) && !known {
		return false, errors.NotFoundf("format %s not found in library %s", name, e.catalog.LibraryID)
	}

	on := e.view.Formats.Toggle(name)
	e.mutated(ctx)
	return on, nil
}

// ClearAxis empties one filter axis.
func (e *Engine) ClearAxis(ctx context.Context, axis Axis) error {
	if err := e.requireLibrary(); err != nil {
		return err
	}
	e.view.ClearAxis(axis)
	e.mutated(ctx)
	return nil
}

// ClearFilters empties every axis and the search term. Sort and selection are kept.
func (e *Engine) ClearFilters(ctx context.Context) error {
	if err := e.requireLibrary(); err != nil {
		return err
	}
	for _, a := range Axes {
		e.view.ClearAxis(a)
	}
	e.view.Search = ""
	e.mutated(ctx)
	return nil
}

// SetSearch replaces the search term. An empty term matches everything.
func (e *Engine) SetSearch(ctx context.Context, term string) error {
	if err := e.requireLibrary(); err != nil {
		return err
	}
	e.view.Search = term
	e.mutated(ctx)
	return nil
}

// SetSort changes the sort method.
func (e *Engine) SetSort(ctx context.Context, method SortMethod) error {
	if err := e.requireLibrary(); err != nil {
		return err
	}
	if !method.Valid() {
		return errors.Validationf("unknown sort method %q", method)
	}
	e.view.Sort = method
	e.mutated(ctx)
	return nil
}

// MaterializeNextPage makes the next page visible and returns it.
func (e *Engine) MaterializeNextPage(ctx context.Context) ([]*catalog.Record, error) {
	if err := e.requireLibrary(); err != nil {
		return nil, err
	}
	page := e.viewport.MaterializeNextPage()
	e.materialize(page)
	e.persistSession(ctx)
	return page, nil
}

// Fill materializes pages while hasRoom reports unused space.
func (e *Engine) Fill(ctx context.Context, hasRoom func() bool) ([]*catalog.Record, error) {
	if err := e.requireLibrary(); err != nil {
		return nil, err
	}
	added := e.viewport.Fill(hasRoom)
	e.materialize(added)
	e.persistSession(ctx)
	return added, nil
}

// SelectRecord selects a record of the active library.
func (e *Engine) SelectRecord(ctx context.Context, id int64) (*catalog.Record, error) {
	if err := e.requireLibrary(); err != nil {
		return nil, err
	}
	r, ok := e.catalog.Record(id)
	if !ok {
		return nil, errors.NotFoundf("book %d not found in library %s", id, e.catalog.LibraryID)
	}

	e.view.Select(id, e.catalog.LibraryID)
	e.listener.selectionChanged(r)
	e.persistSession(ctx)
	return r, nil
}

// ClearSelection drops the selected record.
func (e *Engine) ClearSelection(ctx context.Context) {
	if !e.view.HasSelection() {
		return
	}
	e.view.ClearSelection()
	e.listener.selectionChanged(nil)
	e.persistSession(ctx)
}

// SetViewMode switches between grid and table. The durable preference is saved and the
// visible list starts over from the first page.
func (e *Engine) SetViewMode(ctx context.Context, mode ViewMode) error {
	if err := validate.Var(string(mode), "required,oneof=grid table"); err != nil {
		return err
	}
	e.prefs.ViewMode = mode
	e.persistPreferences(ctx)
	e.rewind(ctx)
	return nil
}

// Preferences returns a copy of the display preferences.
func (e *Engine) Preferences() Preferences {
	return e.prefs.Clone()
}

// SetPreferences validates p and stores it over the current preferences.
func (e *Engine) SetPreferences(ctx context.Context, p Preferences) (Preferences, error) {
	if err := validate.Validate(p); err != nil {
		return Preferences{}, err
	}

	modeChanged := p.ViewMode != e.prefs.ViewMode
	e.prefs = e.prefs.Merge(p)
	e.persistPreferences(ctx)
	if modeChanged {
		e.rewind(ctx)
	}
	return e.prefs.Clone(), nil
}

// View returns a copy of the view state.
func (e *Engine) View() *ViewState {
	return e.view.Clone()
}

// Ordered returns the filtered, sorted list.
func (e *Engine) Ordered() []*catalog.Record {
	return slices.Clone(e.ordered)
}

// Visible returns the materialized prefix of the ordered list.
func (e *Engine) Visible() []*catalog.Record {
	return slices.Clone(e.viewport.Visible())
}

// Libraries returns the known libraries.
func (e *Engine) Libraries() []catalog.Library {
	return slices.Clone(e.libraries)
}

// ActiveLibrary returns the committed library.
func (e *Engine) ActiveLibrary() (catalog.Library, bool) {
	id, ok := e.reconciler.Active()
	if !ok {
		return catalog.Library{}, false
	}
	return e.library(id)
}

// Catalog returns the loaded catalog, or nil before the first activation.
func (e *Engine) Catalog() *catalog.Catalog {
	return e.catalog
}

// SelectedRecord returns the selected record when it belongs to the loaded catalog.
func (e *Engine) SelectedRecord() (*catalog.Record, bool) {
	if !e.view.HasSelection() || e.catalog == nil || e.view.SelectedRecordLibraryID != e.catalog.LibraryID {
		return nil, false
	}
	return e.catalog.Record(*e.view.SelectedRecordID)
}

// Facets returns a facet table of the active library sorted and grouped for display.
func (e *Engine) Facets(t catalog.FacetType) Grouping {
	var facets []catalog.Facet
	if e.catalog != nil {
		facets = e.catalog.Index.Facets(t)
	}
	return Group(SortFacets(facets, t), t)
}

// Formats returns the format counts of the active library.
func (e *Engine) Formats() []catalog.FormatCount {
	if e.catalog == nil {
		return nil
	}
	return slices.Clone(e.catalog.Formats)
}

// Status summarizes the view.
func (e *Engine) Status() Status {
	s := Status{
		Total:     e.catalog.Len(),
		Filtered:  len(e.ordered),
		Displayed: e.viewport.Displayed(),
		HasMore:   e.viewport.HasMore(),
		Message:   e.message,
	}
	if lib, ok := e.ActiveLibrary(); ok {
		s.LibraryID = lib.ID
		s.LibraryName = lib.Name
	}
	return s
}

func (e *Engine) requireLibrary() error {
	if _, ok := e.reconciler.Active(); !ok || e.catalog == nil {
		return errors.ErrNoLibrary
	}
	return nil
}

func (e *Engine) mutated(ctx context.Context) {
	e.recompute()
	e.persistSession(ctx)
}

// recompute runs filter and sort over the loaded catalog and shows the first page.
func (e *Engine) recompute() {
	start := time.Now()

	var (
		records []*catalog.Record
		idx     *catalog.FacetIndex
	)
	if e.catalog != nil {
		records = e.catalog.Records
		idx = e.catalog.Index
	}

	e.ordered = Sort(Filter(records, e.view, idx), e.view.Sort, idx)
	e.viewport.Reset(e.ordered)
	e.view.Displayed = 0

	e.listener.filteredSetChanged(e.ordered)
	e.metrics.Recompute(len(e.ordered), time.Since(start))

	e.materialize(e.viewport.MaterializeNextPage())
}

func (e *Engine) rewind(ctx context.Context) {
	e.viewport.Rewind()
	e.view.Displayed = 0
	e.materialize(e.viewport.MaterializeNextPage())
	e.persistSession(ctx)
}

func (e *Engine) materialize(page []*catalog.Record) {
	e.view.Displayed = e.viewport.Displayed()
	if len(page) > 0 {
		e.metrics.PageMaterialized(len(page))
	}
	e.listener.pageMaterialized(page)
}

// reconcileSelection keeps the selected record when it exists in the new catalog,
// otherwise selects the first record, or clears the selection for an empty library.
// A view that never had a selection is left alone.
func (e *Engine) reconcileSelection() {
	if !e.view.HasSelection() {
		return
	}

	if e.view.SelectedRecordLibraryID == e.catalog.LibraryID {
		if r, ok := e.catalog.Record(*e.view.SelectedRecordID); ok {
			e.listener.selectionChanged(r)
			return
		}
	}

	if e.catalog.Len() > 0 {
		first := e.catalog.Records[0]
		e.view.Select(first.ID, e.catalog.LibraryID)
		e.listener.selectionChanged(first)
		return
	}

	e.view.ClearSelection()
	e.listener.selectionChanged(nil)
}

func (e *Engine) restoreSnapshot() {
	snap := e.snapshot
	e.view.Authors = NewSelection(snap.Authors.Values()...)
	e.view.Tags = NewSelection(snap.Tags.Values()...)
	e.view.Series = NewSelection(snap.Series.Values()...)
	e.view.Formats = NewSelection(snap.Formats.Values()...)
	e.view.Search = snap.Search
	e.view.Sort = snap.Sort
	e.view.Displayed = snap.Displayed
}

// deactivate empties the view after every library disappeared.
func (e *Engine) deactivate(ctx context.Context) {
	e.reconciler.Deactivate()
	e.catalog = nil
	e.view.ActiveLibraryID = ""
	e.recompute()
	e.message = StatusNoLibraries
	e.logger.Info("No libraries available")
	e.persistSession(ctx)
}

// target picks the library to activate: the active one, then the snapshot's, then the first.
func (e *Engine) target() string {
	if id, ok := e.reconciler.Active(); ok && e.hasLibrary(id) {
		return id
	}
	if e.snapshot != nil && e.hasLibrary(e.snapshot.ActiveLibraryID) {
		return e.snapshot.ActiveLibraryID
	}
	return e.libraries[0].ID
}

func (e *Engine) loadLibraries(ctx context.Context) error {
	libs, err := e.source.Libraries(ctx)
	if err != nil {
		e.metrics.FetchFailure()
		e.logger.Warn("Failed to load libraries", "error", err)
		return errors.Unavailable(err, "failed to load libraries")
	}
	e.libraries = libs
	return nil
}

func (e *Engine) library(id string) (catalog.Library, bool) {
	i := slices.IndexFunc(e.libraries, func(l catalog.Library) bool { return l.ID == id })
	if i < 0 {
		return catalog.Library{}, false
	}
	return e.libraries[i], true
}

func (e *Engine) hasLibrary(id string) bool {
	_, ok := e.library(id)
	return ok
}

// loadSnapshot reads the session snapshot. Missing, unreadable and malformed snapshots
// all count as absent.
func (e *Engine) loadSnapshot(ctx context.Context) {
	if e.persist == nil {
		return
	}

	data, ok, err := e.persist.Load(ctx, state.ScopeSession)
	if err != nil {
		e.logger.Warn("Failed to read session state", "error", err)
		return
	}
	if !ok {
		return
	}

	snap, ok := DecodeSnapshot(data)
	if !ok {
		e.logger.Warn("Ignoring malformed session state")
		return
	}

	e.snapshot = snap
	if snap.HasSelection() {
		e.view.Select(*snap.SelectedRecordID, snap.SelectedRecordLibraryID)
	}
}

func (e *Engine) loadPreferences(ctx context.Context) {
	if e.persist == nil {
		return
	}

	data, ok, err := e.persist.Load(ctx, state.ScopeDurable)
	if err != nil {
		e.logger.Warn("Failed to read preferences", "error", err)
		return
	}
	if !ok {
		return
	}

	prefs, ok := decodePreferences(data)
	if !ok {
		e.logger.Warn("Ignoring malformed preferences")
	}
	e.prefs = prefs
}

// persistSession writes the view to the session scope. Failures are logged and counted
// but never fail the action that triggered them.
func (e *Engine) persistSession(ctx context.Context) {
	e.view.normalize(len(e.ordered))
	if e.persist == nil {
		return
	}

	data, err := EncodeSnapshot(e.view)
	if err == nil {
		err = e.persist.Save(ctx, state.ScopeSession, data)
	}
	if err != nil {
		e.metrics.PersistFailure(string(state.ScopeSession))
		e.logger.Warn("Failed to save session state", "error", err)
	}
}

func (e *Engine) persistPreferences(ctx context.Context) {
	if e.persist == nil {
		return
	}

	data, err := json.Marshal(e.prefs)
	if err == nil {
		err = e.persist.Save(ctx, state.ScopeDurable, data)
	}
	if err != nil {
		e.metrics.PersistFailure(string(state.ScopeDurable))
		e.logger.Warn("Failed to save preferences", "error", err)
	}
}
