package share

import (
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/heartmarshall/proofdesk/internal/domain"
	"github.com/heartmarshall/proofdesk/internal/review"
)

// register adds a session, making room by closing the least recently used
// one when the registry is full.
func (s *Service) register(session *review.Session) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for len(s.sessions) >= s.cfg.MaxSessions && len(s.sessions) > 0 {
		var oldest *review.Session
		for _, cand := range s.sessions {
			if oldest == nil || cand.LastSeen().Before(oldest.LastSeen()) {
				oldest = cand
			}
		}
		s.removeLocked(oldest)
		s.log.Info("review session evicted", slog.String("session_id", oldest.ID()))
	}
	s.sessions[session.ID()] = session
}

// Session returns a live session that belongs to projectID.
func (s *Service) Session(id string, projectID uuid.UUID) (*review.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[id]
	if !ok {
		return nil, fmt.Errorf("review session %s: %w", id, domain.ErrNotFound)
	}
	if s.expiredLocked(session) {
		s.removeLocked(session)
		return nil, fmt.Errorf("review session %s expired: %w", id, domain.ErrNotFound)
	}
	if session.Project().ID != projectID {
		return nil, domain.ErrForbidden
	}
	return session, nil
}

// CloseSession ends a session. Unknown ids are ignored.
func (s *Service) CloseSession(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if session, ok := s.sessions[id]; ok {
		s.removeLocked(session)
	}
}

// Sweep closes sessions idle for longer than the session TTL.
func (s *Service) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for _, session := range s.sessions {
		if s.expiredLocked(session) {
			s.removeLocked(session)
			n++
		}
	}
	if n > 0 {
		s.log.Info("idle review sessions closed", slog.Int("count", n))
	}
	return n
}

// Len returns the number of tracked sessions.
func (s *Service) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Close ends every session.
func (s *Service) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, session := range s.sessions {
		s.removeLocked(session)
	}
}

func (s *Service) live() []*review.Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*review.Session, 0, len(s.sessions))
	for _, session := range s.sessions {
		out = append(out, session)
	}
	return out
}

func (s *Service) expiredLocked(session *review.Session) bool {
	return s.cfg.SessionTTL > 0 && s.now().Sub(session.LastSeen()) > s.cfg.SessionTTL
}

func (s *Service) removeLocked(session *review.Session) {
	delete(s.sessions, session.ID())
	session.Close()
}
