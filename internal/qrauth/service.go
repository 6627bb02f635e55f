// Package qrauth runs the customer pairing sessions: a kiosk opens a
// short-lived session, a phone finds it through the kiosk's 4-digit code and
// proves possession of a number by SMS. Expiry is evaluated on read; nothing
// sweeps sessions in the background.
package qrauth

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/vendkiosk/kiosk-backend/internal/sms"
	"github.com/vendkiosk/kiosk-backend/pkg/config"
	"github.com/vendkiosk/kiosk-backend/pkg/db/models"
	"github.com/vendkiosk/kiosk-backend/pkg/enums"
	pkgerrors "github.com/vendkiosk/kiosk-backend/pkg/errors"
	"github.com/vendkiosk/kiosk-backend/pkg/logger"
	"github.com/vendkiosk/kiosk-backend/pkg/security"
	"gorm.io/gorm"
)

const (
	smsCodeDigits  = 6
	smsMessageText = "[키오스크] 인증번호 [%s]를 입력해 주세요."
)

var (
	pairCodePattern = regexp.MustCompile(`^\d{4}$`)
	mobilePattern   = regexp.MustCompile(`^01[016789]\d{7,8}$`)
	nonDigits       = regexp.MustCompile(`\D`)
)

type kioskFinder interface {
	FindByID(ctx context.Context, id int64) (*models.Kiosk, error)
}

// RateLimiter is a fixed-window counter keyed by scope.
type RateLimiter interface {
	FixedWindowAllow(ctx context.Context, scope string, limit int64, window time.Duration) (bool, int64, error)
}

type Service interface {
	CreateSession(ctx context.Context, input CreateSessionInput) (*CreateSessionResult, error)
	Status(ctx context.Context, sessionID int64) (*StatusResult, error)
	Complete(ctx context.Context, sessionID int64, input CompleteInput) error
	Cancel(ctx context.Context, sessionID int64) (*StatusResult, error)
	FindLatestPendingByPairCode(ctx context.Context, pairCode string) (*PairResult, error)
	SendPhoneAuthCode(ctx context.Context, sessionID int64, input SendCodeInput) (*SendCodeResult, error)
	VerifyPhoneAuthCode(ctx context.Context, sessionID int64, input VerifyCodeInput) (*VerifyCodeResult, error)
}

type ServiceParams struct {
	Repo     *Repository
	Kiosks   kioskFinder
	Sender   sms.Sender
	Limiter  RateLimiter
	Config   config.QrAuthConfig
	Password config.PasswordConfig
	Logger   *logger.Logger
	Now      func() time.Time
	NewCode  func() (string, error)
}

type service struct {
	repo     *Repository
	kiosks   kioskFinder
	sender   sms.Sender
	limiter  RateLimiter
	cfg      config.QrAuthConfig
	password config.PasswordConfig
	logg     *logger.Logger
	now      func() time.Time
	newCode  func() (string, error)
}

func NewService(params ServiceParams) (Service, error) {
	switch {
	case params.Repo == nil:
		return nil, fmt.Errorf("qr auth repository required")
	case params.Kiosks == nil:
		return nil, fmt.Errorf("kiosk finder required")
	case params.Sender == nil:
		return nil, fmt.Errorf("sms sender required")
	case params.Logger == nil:
		return nil, fmt.Errorf("logger required")
	}
	s := &service{
		repo:     params.Repo,
		kiosks:   params.Kiosks,
		sender:   params.Sender,
		limiter:  params.Limiter,
		cfg:      params.Config,
		password: params.Password,
		logg:     params.Logger,
		now:      params.Now,
		newCode:  params.NewCode,
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.newCode == nil {
		s.newCode = func() (string, error) { return security.GenerateNumericCode(smsCodeDigits) }
	}
	return s, nil
}

func (s *service) CreateSession(ctx context.Context, input CreateSessionInput) (*CreateSessionResult, error) {
	ttl := s.cfg.DefaultTTLSec
	if input.TTLSec != nil {
		ttl = *input.TTLSec
	}
	if ttl < s.cfg.MinTTLSec || ttl > s.cfg.MaxTTLSec {
		return nil, pkgerrors.New(pkgerrors.CodeValidation,
			fmt.Sprintf("ttl_sec must be within %d..%d", s.cfg.MinTTLSec, s.cfg.MaxTTLSec))
	}

	kiosk, err := s.kiosks.FindByID(ctx, input.KioskID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "kiosk not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load kiosk")
	}
	if kiosk.PairCode4 == nil || *kiosk.PairCode4 == "" {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "kiosk has no pair code assigned")
	}

	now := s.now().UTC()
	session := &models.QrAuthSession{
		KioskID:   kiosk.ID,
		Status:    enums.QrAuthStatusPending,
		CreatedAt: now,
		ExpiresAt: now.Add(time.Duration(ttl) * time.Second),
	}
	if err := s.repo.Create(ctx, session); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create qr session")
	}

	ctx = s.logg.WithSessionID(s.logg.WithKioskID(ctx, kiosk.ID), session.ID)
	s.logg.Info(s.logg.WithField(ctx, "ttl_sec", ttl), "qr_auth.session.created")

	return &CreateSessionResult{
		SessionID: session.ID,
		PairCode4: *kiosk.PairCode4,
		ExpiresAt: session.ExpiresAt,
	}, nil
}

func (s *service) Status(ctx context.Context, sessionID int64) (*StatusResult, error) {
	session, err := s.load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return statusFromModel(session), nil
}

func (s *service) Complete(ctx context.Context, sessionID int64, input CompleteInput) error {
	session, err := s.loadPending(ctx, sessionID)
	if err != nil {
		return err
	}
	fields := map[string]any{"verified_at": s.now().UTC()}
	if input.UserID != nil {
		fields["user_id"] = *input.UserID
	}
	if err := s.transition(ctx, session.ID, enums.QrAuthStatusVerified, fields); err != nil {
		return err
	}
	s.logg.Info(s.logg.WithSessionID(ctx, session.ID), "qr_auth.session.verified")
	return nil
}

func (s *service) Cancel(ctx context.Context, sessionID int64) (*StatusResult, error) {
	session, err := s.loadPending(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if err := s.transition(ctx, session.ID, enums.QrAuthStatusCancelled, nil); err != nil {
		return nil, err
	}
	s.logg.Info(s.logg.WithSessionID(ctx, session.ID), "qr_auth.session.cancelled")
	return s.Status(ctx, session.ID)
}

func (s *service) FindLatestPendingByPairCode(ctx context.Context, pairCode string) (*PairResult, error) {
	pairCode = strings.TrimSpace(pairCode)
	if !pairCodePattern.MatchString(pairCode) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "pair code must be 4 digits")
	}
	if _, err := s.repo.ExpireStaleByPairCode(ctx, pairCode, s.now().UTC()); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "expire stale sessions")
	}
	session, err := s.repo.LatestPendingByPairCode(ctx, pairCode)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "no pending session for this code")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "find pending session")
	}
	kiosk, err := s.kiosks.FindByID(ctx, session.KioskID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load kiosk")
	}
	return &PairResult{
		SessionID: session.ID,
		KioskID:   kiosk.ID,
		KioskName: kiosk.Name,
		ExpiresAt: session.ExpiresAt,
	}, nil
}

func (s *service) SendPhoneAuthCode(ctx context.Context, sessionID int64, input SendCodeInput) (*SendCodeResult, error) {
	session, err := s.loadPending(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	phone, err := NormalizePhone(input.Phone)
	if err != nil {
		return nil, err
	}
	if err := s.allow(ctx, "sms_send", session.ID, input.ClientIP, s.cfg.SendSessionLimit, s.cfg.SendIPLimit); err != nil {
		return nil, err
	}

	code, err := s.newCode()
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "generate sms code")
	}
	hash, err := security.HashSecret(code, s.password)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "hash sms code")
	}
	ctx = s.logg.WithSessionID(ctx, session.ID)
	if err := s.sender.Send(ctx, phone, fmt.Sprintf(smsMessageText, code)); err != nil {
		s.logg.Error(ctx, "qr_auth.sms.send_failed", err)
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "send sms")
	}

	// The code is persisted only once the carrier accepted it. The deadline
	// is extended to cover the code, never pulled in.
	now := s.now().UTC()
	expiresAt := now.Add(s.cfg.SMSCodeTTL)
	if session.ExpiresAt.After(expiresAt) {
		expiresAt = session.ExpiresAt
	}
	ok, err := s.repo.StoreSMSCode(ctx, session.ID, phone, hash, now, expiresAt)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "store sms code")
	}
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "session is no longer pending")
	}
	s.logg.Info(ctx, "qr_auth.sms.sent")
	return &SendCodeResult{OK: true, ExpiresAt: expiresAt}, nil
}

func (s *service) VerifyPhoneAuthCode(ctx context.Context, sessionID int64, input VerifyCodeInput) (*VerifyCodeResult, error) {
	session, err := s.loadPending(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if err := s.allow(ctx, "sms_verify", session.ID, input.ClientIP, s.cfg.VerifySessionLimit, s.cfg.VerifyIPLimit); err != nil {
		return nil, err
	}
	if session.SMSCodeHash == nil || *session.SMSCodeHash == "" {
		return nil, pkgerrors.New(pkgerrors.CodeSessionInvalid, "no verification code was sent")
	}
	match, err := security.VerifySecret(strings.TrimSpace(input.Code), *session.SMSCodeHash)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "verify sms code")
	}
	ctx = s.logg.WithSessionID(ctx, session.ID)
	if !match {
		s.logg.Warn(ctx, "qr_auth.sms.code_mismatch")
		return nil, pkgerrors.New(pkgerrors.CodeSessionInvalid, "verification code does not match")
	}

	verifiedAt := s.now().UTC()
	if err := s.transition(ctx, session.ID, enums.QrAuthStatusVerified, map[string]any{"verified_at": verifiedAt}); err != nil {
		return nil, err
	}
	s.logg.Info(ctx, "qr_auth.session.verified")
	return &VerifyCodeResult{OK: true, Status: enums.QrAuthStatusVerified, VerifiedAt: &verifiedAt}, nil
}

// load reads a session and flips it to EXPIRED when its deadline has passed.
func (s *service) load(ctx context.Context, sessionID int64) (*models.QrAuthSession, error) {
	session, err := s.repo.FindByID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "session not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load session")
	}
	if session.Status != enums.QrAuthStatusPending || !s.now().After(session.ExpiresAt) {
		return session, nil
	}
	if _, err := s.repo.Transition(ctx, session.ID, enums.QrAuthStatusExpired, nil); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "expire session")
	}
	// Re-read: a concurrent transition may have won.
	session, err = s.repo.FindByID(ctx, sessionID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload session")
	}
	return session, nil
}

// loadPending is load plus the guard shared by every transition.
func (s *service) loadPending(ctx context.Context, sessionID int64) (*models.QrAuthSession, error) {
	session, err := s.load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	switch session.Status {
	case enums.QrAuthStatusPending:
		return session, nil
	case enums.QrAuthStatusExpired:
		return nil, pkgerrors.New(pkgerrors.CodeSessionExpired, "session expired")
	default:
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, fmt.Sprintf("session is %s", session.Status))
	}
}

func (s *service) transition(ctx context.Context, sessionID int64, to enums.QrAuthStatus, fields map[string]any) error {
	ok, err := s.repo.Transition(ctx, sessionID, to, fields)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update session")
	}
	if !ok {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "session is no longer pending")
	}
	return nil
}

func (s *service) allow(ctx context.Context, action string, sessionID int64, clientIP string, sessionLimit, ipLimit int) error {
	if s.limiter == nil {
		return nil
	}
	type bucket struct {
		scope string
		limit int
	}
	buckets := []bucket{{fmt.Sprintf("qr:%s:session:%d", action, sessionID), sessionLimit}}
	if clientIP != "" {
		buckets = append(buckets, bucket{fmt.Sprintf("qr:%s:ip:%s", action, clientIP), ipLimit})
	}
	for _, b := range buckets {
		if b.limit <= 0 {
			continue
		}
		ok, _, err := s.limiter.FixedWindowAllow(ctx, b.scope, int64(b.limit), s.cfg.RateLimitWindow)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "rate limit")
		}
		if !ok {
			return pkgerrors.New(pkgerrors.CodeRateLimit, "too many attempts, try again later")
		}
	}
	return nil
}

// NormalizePhone strips everything but digits and accepts Korean mobile numbers.
func NormalizePhone(raw string) (string, error) {
	phone := nonDigits.ReplaceAllString(raw, "")
	if !mobilePattern.MatchString(phone) {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "phone must be a valid mobile number")
	}
	return phone, nil
}
