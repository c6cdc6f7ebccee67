// Package license is the single authorization decision point. It
// combines registry lookup, token verification and status/expiry checks
// into one decision, and manages the refresh-token active set.
package license

import (
	"errors"
	"time"

	"omni-license-server/internal/model"
	"omni-license-server/internal/registry"
	"omni-license-server/internal/token"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Reason is the machine-readable denial cause exposed to callers. The
// codec's finer-grained failures (malformed, bad signature, wrong type)
// all surface as ReasonExpired so validation responses never leak
// cryptographic diagnostics.
type Reason string

const (
	ReasonNotFound      Reason = "not_found"
	ReasonDeactivated   Reason = "deactivated"
	ReasonExpired       Reason = "expired"
	ReasonTokenMismatch Reason = "token_mismatch"
)

// Refresh flow failures.
var (
	ErrRefreshDenied = errors.New("refresh token rejected")
	ErrDeactivated   = errors.New("license is not active")
)

// Decision is the outcome of one validation request.
type Decision struct {
	Valid     bool      `json:"valid"`
	Reason    Reason    `json:"reason,omitempty"`
	Message   string    `json:"message,omitempty"`
	Plan      string    `json:"plan,omitempty"`
	Modules   []string  `json:"modules,omitempty"`
	ExpiresAt time.Time `json:"expires_at,omitempty"`
}

func denied(reason Reason, message string) Decision {
	return Decision{Reason: reason, Message: message}
}

// TokenPair is a short-lived access token plus its long-lived refresh
// counterpart.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

type Service struct {
	registry   *registry.Registry
	codec      *token.Codec
	db         *gorm.DB
	accessTTL  time.Duration
	refreshTTL time.Duration
}

func NewService(reg *registry.Registry, codec *token.Codec, db *gorm.DB, accessTTL, refreshTTL time.Duration) *Service {
	if accessTTL <= 0 {
		accessTTL = time.Hour
	}
	if refreshTTL <= 0 {
		refreshTTL = 90 * 24 * time.Hour
	}
	return &Service{
		registry:   reg,
		codec:      codec,
		db:         db,
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
	}
}

// Validate decides whether tokenString currently authorizes clientID.
//
// The check order is deliberate: the exact-string token match runs
// before signature verification so a superseded token (still
// cryptographically valid after an extension) is rejected as a
// mismatch, and status is checked before expiry so a deactivated
// account reports deactivated even when it is also expired.
func (s *Service) Validate(clientID, tokenString string) Decision {
	rec, err := s.registry.Find(clientID)
	if err != nil {
		return denied(ReasonNotFound, "no license found for this client")
	}

	if tokenString != rec.Token {
		// A string that does not even decode as a token is malformed,
		// which callers see as expired/invalid; a decodable but
		// superseded token is a genuine mismatch.
		if token.DecodeUnsafe(tokenString) == nil {
			return denied(ReasonExpired, "license token is expired or invalid")
		}
		return denied(ReasonTokenMismatch, "token does not match the issued license")
	}

	if rec.Status != model.StatusActive {
		return denied(ReasonDeactivated, "license has been deactivated")
	}

	if rec.Expired(time.Now()) {
		return denied(ReasonExpired, "license has expired")
	}

	if _, err := s.codec.Verify(tokenString, token.TypeLicense); err != nil {
		// Malformed, bad signature and wrong type all collapse here.
		return denied(ReasonExpired, "license token is expired or invalid")
	}

	// Failing to record usage must not turn a valid license invalid.
	_ = s.registry.Touch(clientID)

	return Decision{
		Valid:     true,
		Plan:      rec.Plan,
		Modules:   rec.ModuleList(),
		ExpiresAt: rec.ExpiresAt,
	}
}

// IssuePair issues an access/refresh token pair for an existing active
// license. The refresh token's jti joins the active set; the access
// token lives on its own embedded expiry.
func (s *Service) IssuePair(clientID string) (*TokenPair, error) {
	rec, err := s.registry.Find(clientID)
	if err != nil {
		return nil, err
	}
	if rec.Status != model.StatusActive {
		return nil, ErrDeactivated
	}

	access, err := s.codec.EncodeAccess(rec.ClientID, rec.Plan, rec.ModuleList(), s.accessTTL)
	if err != nil {
		return nil, err
	}

	jti := uuid.NewString()
	refresh, err := s.codec.EncodeRefresh(rec.ClientID, jti, s.refreshTTL)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	entry := &model.RefreshToken{
		JTI:       jti,
		ClientID:  rec.ClientID,
		CreatedAt: now,
		LastUsed:  now,
	}
	if err := s.db.Create(entry).Error; err != nil {
		return nil, err
	}

	return &TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

// Refresh trades a live refresh token for a new access token. Signature
// validity alone is not enough: the jti must still be in the active
// set, and the underlying license must still exist and be active.
func (s *Service) Refresh(refreshToken string) (string, error) {
	claims, err := s.codec.Verify(refreshToken, token.TypeRefresh)
	if err != nil {
		return "", ErrRefreshDenied
	}

	var entry model.RefreshToken
	err = s.db.Where("jti = ?", claims.ID).First(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", ErrRefreshDenied
	}
	if err != nil {
		return "", err
	}

	rec, err := s.registry.Find(entry.ClientID)
	if err != nil {
		return "", err
	}
	if rec.Status != model.StatusActive {
		return "", ErrDeactivated
	}

	if err := s.db.Model(&model.RefreshToken{}).
		Where("jti = ?", claims.ID).
		Update("last_used", time.Now()).Error; err != nil {
		return "", err
	}

	return s.codec.EncodeAccess(rec.ClientID, rec.Plan, rec.ModuleList(), s.accessTTL)
}

// Revoke removes a refresh token from the active set. Revoking a token
// that is already gone is not an error; the false return tells the
// caller nothing was removed.
func (s *Service) Revoke(refreshToken string) (bool, error) {
	claims, err := s.codec.Verify(refreshToken, token.TypeRefresh)
	if err != nil {
		return false, ErrRefreshDenied
	}

	res := s.db.Where("jti = ?", claims.ID).Delete(&model.RefreshToken{})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
