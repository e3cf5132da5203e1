package runtimeclient

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/bolthost/runtime/internal/runtimeerr"
)

// DefaultHeartbeatInterval is how often SessionClient heartbeats once a
// session is established, per §4.13.
const DefaultHeartbeatInterval = 30 * time.Second

// DefaultRefreshInterval is how often SessionClient polls session status.
const DefaultRefreshInterval = 4 * time.Second

// SessionClientState is the observable state of a SessionClient at a point
// in time.
type SessionClientState struct {
	ChatID           string
	TemplateID       string
	Token            string
	Session          Session
	Status           string
	DeploymentStatus string
	PreviewURL       string
	LastError        error
}

// SessionClient drives server-side session creation and lifecycle: ensure,
// heartbeat, refresh, teardown (§4.13). It generalizes the browser's
// fetch-and-timer-driven client to a goroutine-and-channel lifecycle, the
// same Start/Stop plus periodic-goroutine shape used elsewhere in this
// codebase for long-lived background loops.
type SessionClient struct {
	api RuntimeAPI

	heartbeatInterval time.Duration
	refreshInterval   time.Duration

	mu          sync.Mutex
	state       SessionClientState
	visible     bool
	inFlight    chan struct{}
	pendingChat string

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// NewSessionClient builds a SessionClient. heartbeatInterval <= 0 uses
// DefaultHeartbeatInterval.
func NewSessionClient(api RuntimeAPI, heartbeatInterval time.Duration) *SessionClient {
	if heartbeatInterval <= 0 {
		heartbeatInterval = DefaultHeartbeatInterval
	}
	return &SessionClient{
		api:               api,
		heartbeatInterval: heartbeatInterval,
		refreshInterval:   DefaultRefreshInterval,
		visible:           true,
	}
}

// State returns a copy of the current client state.
func (s *SessionClient) State() SessionClientState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// EnsureSession resolves a chat id, reuses an existing session for it
// unless forced, and otherwise creates a fresh one. Concurrent callers for
// the same chat share the in-flight result; a caller for a different chat
// waits for the prior attempt to settle before restarting.
func (s *SessionClient) EnsureSession(ctx context.Context, chatID, templateID string, force bool) (*CreateResponse, error) {
	s.mu.Lock()
	if chatID == "" {
		chatID = s.state.ChatID
	}
	if chatID == "" {
		chatID = "draft-" + uuid.NewString()
	}

	if !force && s.state.Token != "" && s.state.ChatID == chatID && s.state.LastError == nil {
		result := s.currentResultLocked()
		s.mu.Unlock()
		return result, nil
	}

	for s.inFlight != nil {
		wait := s.inFlight
		samechat := s.pendingChat == chatID
		s.mu.Unlock()
		<-wait
		s.mu.Lock()
		if samechat {
			if s.state.Token != "" && s.state.ChatID == chatID && s.state.LastError == nil {
				result := s.currentResultLocked()
				s.mu.Unlock()
				return result, nil
			}
			break
		}
	}

	prevToken := s.state.Token
	prevChat := s.state.ChatID
	done := make(chan struct{})
	s.inFlight = done
	s.pendingChat = chatID
	s.state.Status = "creating"
	s.mu.Unlock()

	if prevToken != "" && prevChat != "" && prevChat != chatID {
		_ = s.api.DeleteSession(ctx, prevToken) // best-effort, mirrors §4.13
	}

	result, err := s.api.CreateSession(ctx, chatID, templateID, "")

	s.mu.Lock()
	close(done)
	s.inFlight = nil
	if err != nil {
		s.state.Status = "error"
		s.state.LastError = err
		s.mu.Unlock()
		return nil, err
	}
	s.state = SessionClientState{
		ChatID:           chatID,
		TemplateID:       templateID,
		Token:            result.RuntimeToken,
		Session:          result.Session,
		Status:           result.Session.Status,
		DeploymentStatus: result.DeploymentStatus,
		PreviewURL:       result.Session.PreviewURL,
	}
	s.mu.Unlock()

	s.startTimers()
	return result, nil
}

func (s *SessionClient) currentResultLocked() *CreateResponse {
	return &CreateResponse{RuntimeToken: s.state.Token, Session: s.state.Session, DeploymentStatus: s.state.DeploymentStatus}
}

// RefreshSession calls get and updates local state; a 401/missing-token
// response resets the client entirely, other errors move it to an error
// state without discarding the token.
func (s *SessionClient) RefreshSession(ctx context.Context) error {
	s.mu.Lock()
	token := s.state.Token
	s.mu.Unlock()
	if token == "" {
		return runtimeerr.MissingToken()
	}

	result, err := s.api.GetSession(ctx, token)
	if err != nil {
		re := runtimeerr.As(err)
		s.mu.Lock()
		if re.Code == runtimeerr.CodeUnauthorized || re.Code == runtimeerr.CodeMissingRuntimeToken {
			s.state = SessionClientState{}
		} else {
			s.state.Status = "error"
			s.state.LastError = err
		}
		s.mu.Unlock()
		return err
	}

	s.mu.Lock()
	s.state.Session = result.Session
	s.state.DeploymentStatus = result.DeploymentStatus
	s.state.PreviewURL = result.PreviewURL
	s.state.Status = result.SessionStatus
	s.state.LastError = nil
	s.mu.Unlock()
	return nil
}

// Heartbeat calls heartbeat, updates expiry/status, and absorbs a rotated
// token if the server issued one (sliding TTL).
func (s *SessionClient) Heartbeat(ctx context.Context) error {
	s.mu.Lock()
	token := s.state.Token
	s.mu.Unlock()
	if token == "" {
		return runtimeerr.MissingToken()
	}

	result, err := s.api.Heartbeat(ctx, token)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.state.Status = result.Status
	s.state.Session.ExpiresAt = result.ExpiresAt
	if result.RuntimeToken != "" {
		s.state.Token = result.RuntimeToken
	}
	s.mu.Unlock()
	return nil
}

// TeardownSession deletes the session and resets local state. It is
// best-effort about the remote call (the error is still returned, but the
// local state always resets).
func (s *SessionClient) TeardownSession(ctx context.Context) error {
	s.mu.Lock()
	token := s.state.Token
	s.mu.Unlock()
	if token == "" {
		return nil
	}

	err := s.api.DeleteSession(ctx, token)
	s.Stop()
	s.mu.Lock()
	s.state = SessionClientState{}
	s.mu.Unlock()
	return err
}

// SetVisible toggles whether the heartbeat/refresh timers are active,
// mirroring the browser's visibilitychange handling. Becoming visible
// immediately heartbeats and refreshes.
func (s *SessionClient) SetVisible(visible bool) {
	s.mu.Lock()
	s.visible = visible
	s.mu.Unlock()
	if visible {
		_ = s.Heartbeat(context.Background())
		_ = s.RefreshSession(context.Background())
	}
}

func (s *SessionClient) isVisible() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.visible
}

func (s *SessionClient) startTimers() {
	s.mu.Lock()
	if s.stopCh != nil {
		s.mu.Unlock()
		return
	}
	stop := make(chan struct{})
	s.stopCh = stop
	s.mu.Unlock()

	s.wg.Add(2)
	go s.runHeartbeatLoop(stop)
	go s.runRefreshLoop(stop)
}

func (s *SessionClient) runHeartbeatLoop(stop chan struct{}) {
	defer s.wg.Done()
	ticker := time.NewTicker(s.heartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if s.isVisible() {
				_ = s.Heartbeat(context.Background())
			}
		}
	}
}

func (s *SessionClient) runRefreshLoop(stop chan struct{}) {
	defer s.wg.Done()
	ticker := time.NewTicker(s.refreshInterval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if s.isVisible() {
				_ = s.RefreshSession(context.Background())
			}
		}
	}
}

// Stop halts the heartbeat/refresh timers, if running.
func (s *SessionClient) Stop() {
	s.mu.Lock()
	stop := s.stopCh
	s.stopCh = nil
	s.mu.Unlock()
	if stop != nil {
		close(stop)
	}
	s.wg.Wait()
}
