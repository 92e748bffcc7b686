package browse

// Decision is how an activation treats the current ViewState.
type Decision int

// Activation decisions.
const (
	// DecisionRefresh reactivates the library already active: reload, keep the view.
	DecisionRefresh Decision = iota
	// DecisionClear is a switch to a different library: filters, search and sort are reset.
	DecisionClear
	// DecisionRestore is the first activation of the process, matching the session snapshot.
	DecisionRestore
)

func (d Decision) String() string {
	switch d {
	case DecisionRefresh:
		return "refresh"
	case DecisionClear:
		return "clear"
	case DecisionRestore:
		return "restore"
	default:
		return "unknown"
	}
}

// Ticket identifies one activation attempt.
type Ticket struct {
	LibraryID  string
	generation uint64
}

// Reconciler tracks the committed active library and orders overlapping activations.
// Only the most recently begun activation may commit; earlier tickets become stale.
type Reconciler struct {
	active     string // "" means no library
	generation uint64
	committed  bool // whether any activation has ever committed
}

// NewReconciler starts with no active library.
func NewReconciler() *Reconciler {
	return &Reconciler{}
}

// Active returns the committed library id and whether there is one.
func (r *Reconciler) Active() (string, bool) {
	return r.active, r.active != ""
}

// Begin starts an activation of libraryID, superseding any activation still in flight.
func (r *Reconciler) Begin(libraryID string) Ticket {
	r.generation++
	return Ticket{LibraryID: libraryID, generation: r.generation}
}

// Current reports whether t is still the latest activation.
func (r *Reconciler) Current(t Ticket) bool {
	return t.generation == r.generation
}

// Decide classifies the activation in t. snapshotLibraryID is the library recorded in the
// session snapshot loaded at start-up, or "" when there is none. ok is false for a stale
// ticket, whose results must be discarded.
func (r *Reconciler) Decide(t Ticket, snapshotLibraryID string) (d Decision, ok bool) {
	if !r.Current(t) {
		return 0, false
	}

	switch {
	case r.active != "" && r.active == t.LibraryID:
		return DecisionRefresh, true
	case !r.committed && snapshotLibraryID != "" && snapshotLibraryID == t.LibraryID:
		return DecisionRestore, true
	default:
		return DecisionClear, true
	}
}

// Commit records t's library as active. Stale tickets are ignored.
func (r *Reconciler) Commit(t Ticket) bool {
	if !r.Current(t) {
		return false
	}
	r.active = t.LibraryID
	r.committed = true
	return true
}

// Deactivate returns to having no library, e.g. after the active one disappeared.
// Pending tickets become stale.
func (r *Reconciler) Deactivate() {
	r.active = ""
	r.generation++
}
