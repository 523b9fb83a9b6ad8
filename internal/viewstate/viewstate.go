// Package viewstate tracks where each client session is in the analysis
// flow. The flow is a strict machine: an image is picked, analyzed, its
// result displayed and then either saved or discarded. Transitions outside
// that order fail instead of silently corrupting the view.
package viewstate

import (
	"sync"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/redharvest/redharvest-go/internal/detection"
	"github.com/redharvest/redharvest-go/internal/errors"
)

// Phase is a position in the analysis flow.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseImageSelected
	PhaseAnalyzing
	PhaseResultDisplayed
	PhaseSaved
)

var phaseNames = map[Phase]string{
	PhaseIdle:            "idle",
	PhaseImageSelected:   "image_selected",
	PhaseAnalyzing:       "analyzing",
	PhaseResultDisplayed: "result_displayed",
	PhaseSaved:           "saved",
}

func (p Phase) String() string {
	if name, ok := phaseNames[p]; ok {
		return name
	}
	return "unknown"
}

// View is one session's analysis state. All fields describing the current
// image and result are cleared together on Reset.
type View struct {
	Phase         Phase             `json:"phase"`
	ImageName     string            `json:"imageName,omitempty"`
	Result        *detection.Result `json:"result,omitempty"`
	RecordID      string            `json:"recordId,omitempty"`
	ImageLocation string            `json:"imageLocation,omitempty"`
	LastError     string            `json:"lastError,omitempty"`
	UpdatedAt     time.Time         `json:"updatedAt"`
}

// DefaultTTL is how long an inactive session's view survives.
const DefaultTTL = 30 * time.Minute

// Manager keeps a view per session id with a sliding expiration.
type Manager struct {
	mu    sync.Mutex
	views *cache.Cache
	ttl   time.Duration
}

// NewManager creates a manager expiring idle sessions after ttl.
func NewManager(ttl time.Duration) *Manager {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Manager{
		views: cache.New(ttl, ttl/2),
		ttl:   ttl,
	}
}

// Get returns the session's view, creating an idle one if none exists.
func (m *Manager) Get(sessionID string) View {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.load(sessionID)
}

func (m *Manager) load(sessionID string) *View {
	if v, found := m.views.Get(sessionID); found {
		view := v.(*View)
		m.views.Set(sessionID, view, m.ttl)
		return view
	}
	view := &View{Phase: PhaseIdle, UpdatedAt: time.Now()}
	m.views.Set(sessionID, view, m.ttl)
	return view
}

// transition applies fn under the lock and refreshes the view's TTL.
func (m *Manager) transition(sessionID string, fn func(*View) error) (View, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	view := m.load(sessionID)
	if err := fn(view); err != nil {
		return *view, err
	}
	view.UpdatedAt = time.Now()
	return *view, nil
}

func invalidTransition(from Phase, action string) error {
	return errors.Newf("cannot %s while %s", action, from).
		Component("viewstate").
		Category(errors.CategoryState).
		Context("phase", from.String()).
		Context("action", action).
		Build()
}

// SelectImage moves the session to image-selected. Picking a new image is
// allowed from any phase except mid-analysis.
func (m *Manager) SelectImage(sessionID, imageName string) (View, error) {
	return m.transition(sessionID, func(v *View) error {
		if v.Phase == PhaseAnalyzing {
			return invalidTransition(v.Phase, "select an image")
		}
		*v = View{Phase: PhaseImageSelected, ImageName: imageName}
		return nil
	})
}

// StartAnalysis marks the selected image as being analyzed.
func (m *Manager) StartAnalysis(sessionID string) (View, error) {
	return m.transition(sessionID, func(v *View) error {
		if v.Phase != PhaseImageSelected {
			return invalidTransition(v.Phase, "start analysis")
		}
		v.Phase = PhaseAnalyzing
		v.LastError = ""
		return nil
	})
}

// CompleteAnalysis records the classification result.
func (m *Manager) CompleteAnalysis(sessionID string, result *detection.Result) (View, error) {
	return m.transition(sessionID, func(v *View) error {
		if v.Phase != PhaseAnalyzing {
			return invalidTransition(v.Phase, "complete analysis")
		}
		v.Phase = PhaseResultDisplayed
		v.Result = result
		return nil
	})
}

// FailAnalysis returns the session to image-selected with the failure
// message so the client can retry.
func (m *Manager) FailAnalysis(sessionID, message string) (View, error) {
	return m.transition(sessionID, func(v *View) error {
		if v.Phase != PhaseAnalyzing {
			return invalidTransition(v.Phase, "fail analysis")
		}
		v.Phase = PhaseImageSelected
		v.Result = nil
		v.LastError = message
		return nil
	})
}

// MarkSaved records that the displayed result was persisted.
func (m *Manager) MarkSaved(sessionID, recordID, imageLocation string) (View, error) {
	return m.transition(sessionID, func(v *View) error {
		if v.Phase != PhaseResultDisplayed {
			return invalidTransition(v.Phase, "save result")
		}
		v.Phase = PhaseSaved
		v.RecordID = recordID
		v.ImageLocation = imageLocation
		return nil
	})
}

// Reset discards the session's state entirely.
func (m *Manager) Reset(sessionID string) View {
	view, _ := m.transition(sessionID, func(v *View) error {
		*v = View{Phase: PhaseIdle}
		return nil
	})
	return view
}
