package registry

import (
	"testing"
	"time"

	"omni-license-server/internal/config"
	"omni-license-server/internal/database"
	"omni-license-server/internal/token"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	database.InitTestDB()
	t.Cleanup(database.CleanTestDB)

	codec, err := token.NewCodec("test-secret", "omni-license-server")
	require.NoError(t, err)
	return New(database.DB, codec, config.DefaultPlans())
}

func TestCreate(t *testing.T) {
	reg := newTestRegistry(t)

	rec, err := reg.Create("DEMO001", "demo", ContactInfo{CompanyName: "Turizem d.o.o."})
	require.NoError(t, err)
	assert.Equal(t, "DEMO001", rec.ClientID)
	assert.Equal(t, "active", rec.Status)
	assert.Equal(t, []string{"ceniki"}, rec.ModuleList())
	assert.NotEmpty(t, rec.Token)
	assert.WithinDuration(t, time.Now().Add(14*24*time.Hour), rec.ExpiresAt, 5*time.Second)

	// Stored expiry and token-embedded expiry come from the same
	// computation at issuance.
	claims := token.DecodeUnsafe(rec.Token)
	require.NotNil(t, claims)
	assert.WithinDuration(t, rec.ExpiresAt, claims.ExpiresAt.Time, time.Second)
}

func TestCreateDuplicate(t *testing.T) {
	reg := newTestRegistry(t)

	_, err := reg.Create("DEMO001", "demo", ContactInfo{})
	require.NoError(t, err)

	_, err = reg.Create("DEMO001", "premium", ContactInfo{})
	assert.ErrorIs(t, err, ErrDuplicateClient)
}

func TestCreateUnknownPlan(t *testing.T) {
	reg := newTestRegistry(t)

	// Hard failure, never a fallback to the demo plan.
	_, err := reg.Create("DEMO001", "platinum", ContactInfo{})
	assert.ErrorIs(t, err, ErrUnknownPlan)

	_, err = reg.Find("DEMO001")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestToggleStatusIdempotentPair(t *testing.T) {
	reg := newTestRegistry(t)

	_, err := reg.Create("DEMO001", "demo", ContactInfo{})
	require.NoError(t, err)

	rec, err := reg.ToggleStatus("DEMO001")
	require.NoError(t, err)
	assert.Equal(t, "inactive", rec.Status)

	rec, err = reg.ToggleStatus("DEMO001")
	require.NoError(t, err)
	assert.Equal(t, "active", rec.Status)
}

func TestToggleStatusNotFound(t *testing.T) {
	reg := newTestRegistry(t)

	_, err := reg.ToggleStatus("NOBODY")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestExtend(t *testing.T) {
	reg := newTestRegistry(t)

	created, err := reg.Create("DEMO001", "demo", ContactInfo{})
	require.NoError(t, err)
	oldToken := created.Token

	rec, err := reg.Extend("DEMO001", 30)
	require.NoError(t, err)

	// Exactly 30 days, to the second.
	assert.Equal(t, 30*24*time.Hour, rec.ExpiresAt.Sub(created.ExpiresAt).Round(time.Second))
	assert.True(t, rec.ExpiresAt.After(created.ExpiresAt))
	assert.NotEqual(t, oldToken, rec.Token)

	_, err = reg.Extend("DEMO001", 0)
	assert.Error(t, err)
	_, err = reg.Extend("DEMO001", -5)
	assert.Error(t, err)
}

func TestUpdateModulesDoesNotRotateToken(t *testing.T) {
	reg := newTestRegistry(t)

	created, err := reg.Create("DEMO001", "demo", ContactInfo{})
	require.NoError(t, err)

	rec, err := reg.UpdateModules("DEMO001", []string{"ceniki", "rezervacije"})
	require.NoError(t, err)
	assert.Equal(t, []string{"ceniki", "rezervacije"}, rec.ModuleList())
	assert.Equal(t, created.Token, rec.Token)

	// Explicit reissue picks up the new set.
	rec, err = reg.Reissue("DEMO001")
	require.NoError(t, err)
	assert.NotEqual(t, created.Token, rec.Token)
	claims := token.DecodeUnsafe(rec.Token)
	require.NotNil(t, claims)
	assert.Equal(t, []string{"ceniki", "rezervacije"}, claims.Modules)
}

func TestDelete(t *testing.T) {
	reg := newTestRegistry(t)

	_, err := reg.Create("DEMO001", "demo", ContactInfo{})
	require.NoError(t, err)

	deleted, err := reg.Delete("DEMO001")
	require.NoError(t, err)
	assert.True(t, deleted)

	deleted, err = reg.Delete("DEMO001")
	require.NoError(t, err)
	assert.False(t, deleted)

	_, err = reg.Find("DEMO001")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListActiveExpired(t *testing.T) {
	reg := newTestRegistry(t)

	_, err := reg.Create("FRESH", "demo", ContactInfo{})
	require.NoError(t, err)
	_, err = reg.Create("STALE", "demo", ContactInfo{})
	require.NoError(t, err)

	// Age one record past its expiry directly in the table.
	err = database.DB.Table("license_records").
		Where("client_id = ?", "STALE").
		Update("expires_at", time.Now().Add(-time.Hour)).Error
	require.NoError(t, err)

	active, err := reg.ListActive()
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "FRESH", active[0].ClientID)

	expired, err := reg.ListExpired()
	require.NoError(t, err)
	require.Len(t, expired, 1)
	assert.Equal(t, "STALE", expired[0].ClientID)
}

func TestTouch(t *testing.T) {
	reg := newTestRegistry(t)

	_, err := reg.Create("DEMO001", "demo", ContactInfo{})
	require.NoError(t, err)

	require.NoError(t, reg.Touch("DEMO001"))
	require.NoError(t, reg.Touch("DEMO001"))

	rec, err := reg.Find("DEMO001")
	require.NoError(t, err)
	assert.EqualValues(t, 2, rec.UsageCount)
	assert.WithinDuration(t, time.Now(), rec.LastCheck, 5*time.Second)

	assert.ErrorIs(t, reg.Touch("NOBODY"), ErrNotFound)
}
