package browse

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/biblioapp/biblio/internal/catalog"
	"github.com/biblioapp/biblio/internal/state"
)

// duneLibrary is the three-record library used throughout the engine tests.
func duneLibrary() ([]*catalog.Record, []catalog.Facet, []catalog.Facet, []catalog.Facet) {
	records := []*catalog.Record{
		{ID: 1, Title: "Dune", Authors: []string{"Herbert, Frank"}, Tags: []string{"Fiction"}, Formats: []string{"epub"}},
		{ID: 2, Title: "Foundation", Authors: []string{"Asimov, Isaac"}, Tags: []string{"Fiction"}, Series: "Foundation", Formats: []string{"pdf"}},
		{ID: 3, Title: "Dune Messiah", Authors: []string{"Herbert, Frank"}, Tags: []string{"Sequel"}, Series: "Dune", Formats: []string{"EPUB", "mobi"}},
	}
	authors := []catalog.Facet{
		{ID: 10, Name: "Herbert, Frank", Sort: "Herbert, Frank", Count: 2},
		{ID: 11, Name: "Asimov, Isaac", Sort: "Asimov, Isaac", Count: 1},
	}
	tags := []catalog.Facet{
		{ID: 20, Name: "Fiction", Count: 2},
		{ID: 21, Name: "Sequel", Count: 1},
	}
	series := []catalog.Facet{
		{ID: 30, Name: "Dune", Count: 1},
		{ID: 31, Name: "Foundation", Count: 1},
	}
	return records, authors, tags, series
}

func duneCatalog() *catalog.Catalog {
	records, authors, tags, series := duneLibrary()
	return catalog.New("lib-l", records, authors, tags, series)
}

func titles(records []*catalog.Record) []string {
	out := make([]string, len(records))
	for i, r := range records {
		out[i] = r.Title
	}
	return out
}

func ids(records []*catalog.Record) []int64 {
	out := make([]int64, len(records))
	for i, r := range records {
		out[i] = r.ID
	}
	return out
}

func numbered(n int) []*catalog.Record {
	out := make([]*catalog.Record, n)
	for i := range out {
		out[i] = &catalog.Record{ID: int64(i + 1), Title: fmt.Sprintf("Book %04d", i+1)}
	}
	return out
}

// memoryPersistence records every write and can be told to fail.
type memoryPersistence struct {
	mu     sync.Mutex
	data   map[state.Scope][]byte
	saves  map[state.Scope]int
	failOn map[state.Scope]error
}

func newMemoryPersistence() *memoryPersistence {
	return &memoryPersistence{
		data:   make(map[state.Scope][]byte),
		saves:  make(map[state.Scope]int),
		failOn: make(map[state.Scope]error),
	}
}

func (p *memoryPersistence) Save(_ context.Context, scope state.Scope, data []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.failOn[scope]; err != nil {
		return err
	}
	p.data[scope] = append([]byte(nil), data...)
	p.saves[scope]++
	return nil
}

func (p *memoryPersistence) Load(_ context.Context, scope state.Scope) ([]byte, bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	data, ok := p.data[scope]
	return data, ok, nil
}

func (p *memoryPersistence) snapshot() *ViewState {
	p.mu.Lock()
	defer p.mu.Unlock()

	vs, _ := DecodeSnapshot(p.data[state.ScopeSession])
	return vs
}

// countingRecorder counts engine measurements.
type countingRecorder struct {
	activations     map[string]int
	recomputes      int
	pages           int
	persistFailures map[string]int
	fetchFailures   int
}

func newCountingRecorder() *countingRecorder {
	return &countingRecorder{activations: map[string]int{}, persistFailures: map[string]int{}}
}

func (r *countingRecorder) Activation(decision string) {
	r.activations[decision]++
}

func (r *countingRecorder) Recompute(int, time.Duration) {
	r.recomputes++
}

func (r *countingRecorder) PageMaterialized(int) {
	r.pages++
}

func (r *countingRecorder) PersistFailure(scope string) {
	r.persistFailures[scope]++
}

func (r *countingRecorder) FetchFailure() {
	r.fetchFailures++
}
