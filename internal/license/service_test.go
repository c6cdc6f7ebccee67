package license

import (
	"sync"
	"testing"
	"time"

	"omni-license-server/internal/config"
	"omni-license-server/internal/database"
	"omni-license-server/internal/model"
	"omni-license-server/internal/registry"
	"omni-license-server/internal/token"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService(t *testing.T) (*Service, *registry.Registry) {
	t.Helper()
	database.InitTestDB()
	t.Cleanup(database.CleanTestDB)

	codec, err := token.NewCodec("test-secret", "omni-license-server")
	require.NoError(t, err)
	reg := registry.New(database.DB, codec, config.DefaultPlans())
	svc := NewService(reg, codec, database.DB, time.Hour, 90*24*time.Hour)
	return svc, reg
}

func expireRecord(t *testing.T, clientID string) {
	t.Helper()
	err := database.DB.Table("license_records").
		Where("client_id = ?", clientID).
		Update("expires_at", time.Now().Add(-time.Minute)).Error
	require.NoError(t, err)
}

func TestValidateAuthorized(t *testing.T) {
	svc, reg := newTestService(t)

	rec, err := reg.Create("DEMO001", "demo", registry.ContactInfo{})
	require.NoError(t, err)

	d := svc.Validate("DEMO001", rec.Token)
	require.True(t, d.Valid)
	assert.Equal(t, "demo", d.Plan)
	assert.Equal(t, []string{"ceniki"}, d.Modules)
	assert.WithinDuration(t, rec.ExpiresAt, d.ExpiresAt, time.Second)

	got, err := reg.Find("DEMO001")
	require.NoError(t, err)
	assert.EqualValues(t, 1, got.UsageCount)
}

func TestValidateGarbageToken(t *testing.T) {
	svc, reg := newTestService(t)

	_, err := reg.Create("DEMO001", "demo", registry.ContactInfo{})
	require.NoError(t, err)

	// A structurally invalid token reads as expired/invalid, never as a
	// crypto diagnostic.
	d := svc.Validate("DEMO001", "garbage")
	assert.False(t, d.Valid)
	assert.Equal(t, ReasonExpired, d.Reason)
}

func TestValidateDeactivated(t *testing.T) {
	svc, reg := newTestService(t)

	rec, err := reg.Create("DEMO001", "demo", registry.ContactInfo{})
	require.NoError(t, err)

	_, err = reg.ToggleStatus("DEMO001")
	require.NoError(t, err)

	d := svc.Validate("DEMO001", rec.Token)
	assert.False(t, d.Valid)
	assert.Equal(t, ReasonDeactivated, d.Reason)
}

func TestValidateDeactivatedBeatsExpired(t *testing.T) {
	svc, reg := newTestService(t)

	rec, err := reg.Create("DEMO001", "demo", registry.ContactInfo{})
	require.NoError(t, err)
	_, err = reg.ToggleStatus("DEMO001")
	require.NoError(t, err)
	expireRecord(t, "DEMO001")

	// Both true: manual deactivation is the reported cause.
	d := svc.Validate("DEMO001", rec.Token)
	assert.Equal(t, ReasonDeactivated, d.Reason)
}

func TestValidateExpired(t *testing.T) {
	svc, reg := newTestService(t)

	rec, err := reg.Create("DEMO001", "demo", registry.ContactInfo{})
	require.NoError(t, err)
	expireRecord(t, "DEMO001")

	d := svc.Validate("DEMO001", rec.Token)
	assert.False(t, d.Valid)
	assert.Equal(t, ReasonExpired, d.Reason)
}

func TestValidateSupersededToken(t *testing.T) {
	svc, reg := newTestService(t)

	created, err := reg.Create("DEMO001", "demo", registry.ContactInfo{})
	require.NoError(t, err)
	oldToken := created.Token

	_, err = reg.Extend("DEMO001", 30)
	require.NoError(t, err)

	// The old token's own embedded expiry is still in the future, but
	// the registry has moved on.
	d := svc.Validate("DEMO001", oldToken)
	assert.False(t, d.Valid)
	assert.Equal(t, ReasonTokenMismatch, d.Reason)
}

func TestValidateDeleted(t *testing.T) {
	svc, reg := newTestService(t)

	rec, err := reg.Create("DEMO001", "demo", registry.ContactInfo{})
	require.NoError(t, err)

	deleted, err := reg.Delete("DEMO001")
	require.NoError(t, err)
	require.True(t, deleted)

	d := svc.Validate("DEMO001", rec.Token)
	assert.False(t, d.Valid)
	assert.Equal(t, ReasonNotFound, d.Reason)
}

func TestValidateConcurrentUsageCount(t *testing.T) {
	svc, reg := newTestService(t)

	rec, err := reg.Create("DEMO001", "demo", registry.ContactInfo{})
	require.NoError(t, err)

	const calls = 25
	var wg sync.WaitGroup
	wg.Add(calls)
	for i := 0; i < calls; i++ {
		go func() {
			defer wg.Done()
			d := svc.Validate("DEMO001", rec.Token)
			assert.True(t, d.Valid)
		}()
	}
	wg.Wait()

	got, err := reg.Find("DEMO001")
	require.NoError(t, err)
	assert.EqualValues(t, calls, got.UsageCount)
}

func TestIssuePairAndRefresh(t *testing.T) {
	svc, reg := newTestService(t)

	_, err := reg.Create("DEMO001", "demo", registry.ContactInfo{})
	require.NoError(t, err)

	pair, err := svc.IssuePair("DEMO001")
	require.NoError(t, err)
	require.NotEmpty(t, pair.AccessToken)
	require.NotEmpty(t, pair.RefreshToken)

	access, err := svc.Refresh(pair.RefreshToken)
	require.NoError(t, err)
	assert.NotEmpty(t, access)

	codec, err := token.NewCodec("test-secret", "omni-license-server")
	require.NoError(t, err)
	claims, err := codec.Verify(access, token.TypeAccess)
	require.NoError(t, err)
	assert.Equal(t, "DEMO001", claims.ClientID())
	assert.Equal(t, "demo", claims.Plan)
}

func TestIssuePairUnknownClient(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.IssuePair("NOBODY")
	assert.ErrorIs(t, err, registry.ErrNotFound)
}

func TestRefreshRejectsUnknownJTI(t *testing.T) {
	svc, reg := newTestService(t)

	_, err := reg.Create("DEMO001", "demo", registry.ContactInfo{})
	require.NoError(t, err)

	// Correctly signed but never part of the active set.
	codec, err := token.NewCodec("test-secret", "omni-license-server")
	require.NoError(t, err)
	forged, err := codec.EncodeRefresh("DEMO001", "never-issued", time.Hour)
	require.NoError(t, err)

	_, err = svc.Refresh(forged)
	assert.ErrorIs(t, err, ErrRefreshDenied)
}

func TestRevokeIdempotent(t *testing.T) {
	svc, reg := newTestService(t)

	_, err := reg.Create("DEMO001", "demo", registry.ContactInfo{})
	require.NoError(t, err)

	pair, err := svc.IssuePair("DEMO001")
	require.NoError(t, err)

	removed, err := svc.Revoke(pair.RefreshToken)
	require.NoError(t, err)
	assert.True(t, removed)

	removed, err = svc.Revoke(pair.RefreshToken)
	require.NoError(t, err)
	assert.False(t, removed)

	_, err = svc.Refresh(pair.RefreshToken)
	assert.ErrorIs(t, err, ErrRefreshDenied)
}

func TestRevokeBadSignature(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.Revoke("garbage")
	assert.ErrorIs(t, err, ErrRefreshDenied)
}

func TestSweeperRemovesStaleEntries(t *testing.T) {
	svc, reg := newTestService(t)

	_, err := reg.Create("DEMO001", "demo", registry.ContactInfo{})
	require.NoError(t, err)

	fresh, err := svc.IssuePair("DEMO001")
	require.NoError(t, err)
	stale, err := svc.IssuePair("DEMO001")
	require.NoError(t, err)

	staleClaims := token.DecodeUnsafe(stale.RefreshToken)
	require.NotNil(t, staleClaims)
	err = database.DB.Model(&model.RefreshToken{}).
		Where("jti = ?", staleClaims.ID).
		Update("last_used", time.Now().Add(-40*24*time.Hour)).Error
	require.NoError(t, err)

	sweeper := NewSweeper(database.DB, time.Hour, 30*24*time.Hour)
	removed, err := sweeper.Sweep()
	require.NoError(t, err)
	assert.EqualValues(t, 1, removed)

	_, err = svc.Refresh(stale.RefreshToken)
	assert.ErrorIs(t, err, ErrRefreshDenied)
	_, err = svc.Refresh(fresh.RefreshToken)
	assert.NoError(t, err)
}

func TestSweeperStartStop(t *testing.T) {
	_, _ = newTestService(t)

	sweeper := NewSweeper(database.DB, 10*time.Millisecond, 30*24*time.Hour)
	sweeper.Start()
	time.Sleep(30 * time.Millisecond)
	sweeper.Stop()
}
