// Package orchestrator sequences the discovery pipeline: route, fan
// out to jurisdiction workers, join and validate their output, then
// branch into admin notification and an ROI refinement cycle gated on
// a user-supplied shortlist.
package orchestrator

import (
	"sync"
	"time"

	"github.com/Mindburn-Labs/incentive-discovery/pkg/identity"
	"github.com/Mindburn-Labs/incentive-discovery/pkg/join"
	"github.com/Mindburn-Labs/incentive-discovery/pkg/programcache"
	"github.com/Mindburn-Labs/incentive-discovery/pkg/roi"
)

// Status is the coarse session lifecycle state surfaced over the HTTP
// façade.
type Status string

const (
	StatusStarted     Status = "started"
	StatusRouting     Status = "routing"
	StatusDiscovering Status = "discovering"
	StatusSearching   Status = "searching"
	StatusMerging     Status = "merging"
	StatusValidating  Status = "validating"
	StatusCompleted   Status = "completed"
	StatusFailed      Status = "failed"
	StatusROICycle    Status = "roi_cycle"
	StatusComplete    Status = "complete"
)

// LevelProgress tracks one jurisdiction worker's lifecycle within a
// session, surfaced in the status endpoint's search_progress map.
type LevelProgress string

const (
	LevelPending   LevelProgress = "pending"
	LevelRunning   LevelProgress = "running"
	LevelCompleted LevelProgress = "completed"
)

// Session is the ephemeral, process-lifetime-scoped state for one
// discovery run. Persistence beyond process lifetime is an explicit
// non-goal — an in-memory map is the reference implementation's store.
type Session struct {
	mu sync.Mutex

	ID              string `json:"id"`
	Address         string `json:"address"`
	LegalEntityType string `json:"legal_entity_type"`
	IndustryCode    string `json:"industry_code,omitempty"`

	Status       Status    `json:"status"`
	CurrentPhase string    `json:"current_phase"`
	Error        string    `json:"error,omitempty"`
	CreatedAt    time.Time `json:"created_at"`

	StateName        string                           `json:"state_name,omitempty"`
	CountyName       string                           `json:"county_name,omitempty"`
	CityName         string                           `json:"city_name,omitempty"`
	GovernmentLevels []identity.Level                 `json:"government_levels,omitempty"`
	SearchProgress   map[identity.Level]LevelProgress `json:"search_progress,omitempty"`

	Programs          []programcache.Program `json:"-"`
	MergedPrograms    []programcache.Program `json:"-"`
	ValidatedPrograms []join.Validated        `json:"validated_programs,omitempty"`
	Errors            []string                `json:"errors,omitempty"`

	ShortlistedProgramIDs []string `json:"shortlisted_program_ids,omitempty"`
	ROIState              roi.State `json:"roi_state"`
	DemoMode              bool      `json:"demo_mode,omitempty"`
}

// Store is the in-memory session registry. Its mutex guards only the
// registry map. Each Session carries its own mutex, which the
// orchestrator's fan-out goroutines take when they record progress,
// append programs or append errors; a discovery.Worker itself sees
// only its Request and never touches the Session.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

func NewStore() *Store {
	return &Store{sessions: make(map[string]*Session)}
}

func (s *Store) Put(sess *Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sess.ID] = sess
}

func (s *Store) Get(id string) (*Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[id]
	return sess, ok
}

// setProgress safely updates one level's search_progress entry; worker
// goroutines call this concurrently during the fan-out phase.
func (sess *Session) setProgress(level identity.Level, p LevelProgress) {
	sess.mu.Lock()
	defer sess.mu.Unlock()
	sess.SearchProgress[level] = p
}

// setStatus safely transitions the session's coarse status, guarding
// against the race between the owning orchestrator goroutine and a
// concurrent HTTP status read.
func (sess *Session) setStatus(status Status) {
	sess.mu.Lock()
	defer sess.mu.Unlock()
	sess.Status = status
}

// getStatus safely reads the current status.
func (sess *Session) getStatus() Status {
	sess.mu.Lock()
	defer sess.mu.Unlock()
	return sess.Status
}

// appendPrograms safely extends the session's append-on-merge
// programs accumulator from a worker's result.
func (sess *Session) appendPrograms(programs []programcache.Program) {
	sess.mu.Lock()
	defer sess.mu.Unlock()
	sess.Programs = append(sess.Programs, programs...)
}

// Snapshot returns a shallow copy of the session's fields under lock,
// safe for an HTTP handler to read and serialize without racing the
// orchestrator's background goroutine. Slice and map fields are
// copied by reference, which is safe here because the orchestrator
// only ever replaces them wholesale (e.g. sess.MergedPrograms = ...)
// rather than mutating in place after the fan-out phase.
func (sess *Session) Snapshot() Session {
	sess.mu.Lock()
	defer sess.mu.Unlock()
	cp := *sess
	cp.mu = sync.Mutex{}
	return cp
}
