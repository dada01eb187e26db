// Package service contains application services for session issuance and widget action logging.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/and161185/dojo-relay/internal/crypto"
	"github.com/and161185/dojo-relay/internal/errs"
	"github.com/and161185/dojo-relay/internal/model"
	"github.com/and161185/dojo-relay/internal/upstream"
)

// SessionIssuer is the upstream capability used by SessionService. *upstream.Client implements it.
type SessionIssuer interface {
	// Configured reports whether the upstream credential is present.
	Configured() bool
	// CreateSession performs exactly one upstream call.
	CreateSession(ctx context.Context, user string) (upstream.Session, error)
}

// SessionService defines session issuance for a device.
type SessionService interface {
	// Configured reports whether sessions can be issued at all.
	Configured() bool
	// Issue obtains a session for userID and returns the sanitized response.
	Issue(ctx context.Context, userID string) (model.SessionResponse, error)
}

type SessionServiceImpl struct {
	issuer SessionIssuer
	log    *zap.Logger
}

// NewSessionService constructs SessionService.
func NewSessionService(issuer SessionIssuer, log *zap.Logger) *SessionServiceImpl {
	if log == nil {
		log = zap.NewNop()
	}
	return &SessionServiceImpl{issuer: issuer, log: log}
}

// Configured reports whether the upstream secret is set.
func (s *SessionServiceImpl) Configured() bool { return s.issuer.Configured() }

// Issue validates input and relays one upstream call. Only session_token and
// expires_at survive into the result.
func (s *SessionServiceImpl) Issue(ctx context.Context, userID string) (model.SessionResponse, error) {
	if !s.issuer.Configured() {
		s.log.Error("upstream secret not configured")
		return model.SessionResponse{}, errs.ErrConfig
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return model.SessionResponse{}, fmt.Errorf("%w: empty userId", errs.ErrValidation)
	}

	user := crypto.Fingerprint(userID)
	s.log.Info("creating session", zap.String("user", user))

	sess, err := s.issuer.CreateSession(ctx, userID)
	if err != nil {
		var se *upstream.StatusError
		if errors.As(err, &se) {
			s.log.Error("upstream rejected session",
				zap.String("user", user),
				zap.Int("status", se.Status),
				zap.String("statusText", se.StatusText),
				zap.String("body", se.Body),
			)
		} else {
			s.log.Error("create session", zap.String("user", user), zap.Error(err))
		}
		return model.SessionResponse{}, fmt.Errorf("create session: %w", err)
	}

	s.log.Info("session created", zap.String("user", user))
	return model.SessionResponse{SessionToken: sess.Token, ExpiresAt: sess.ExpiresAt}, nil
}
