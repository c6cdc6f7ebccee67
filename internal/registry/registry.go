// Package registry owns the license table: one record per client_id,
// with the administrative operations that mutate it. All token issuance
// goes through the token codec so the stored expiry and the embedded
// expiry always come from the same computation.
package registry

import (
	"errors"
	"fmt"
	"time"

	"omni-license-server/internal/config"
	"omni-license-server/internal/model"
	"omni-license-server/internal/token"

	"gorm.io/gorm"
)

// Expected operation failures.
var (
	ErrNotFound        = errors.New("license not found")
	ErrDuplicateClient = errors.New("client already has a license")
	ErrUnknownPlan     = errors.New("unknown plan")
)

// ContactInfo is the optional metadata captured at creation time.
type ContactInfo struct {
	CompanyName  string
	ContactEmail string
}

// Registry maps client_id to its current LicenseRecord. Read-modify-write
// mutations run inside a transaction; counter updates are single atomic
// statements, so concurrent validations never lose an increment.
type Registry struct {
	db    *gorm.DB
	codec *token.Codec
	plans map[string]config.PlanConfig
}

func New(db *gorm.DB, codec *token.Codec, plans map[string]config.PlanConfig) *Registry {
	return &Registry{db: db, codec: codec, plans: plans}
}

// Plan looks up a plan definition by name.
func (r *Registry) Plan(name string) (config.PlanConfig, error) {
	plan, ok := r.plans[name]
	if !ok {
		return config.PlanConfig{}, fmt.Errorf("%w: %q", ErrUnknownPlan, name)
	}
	return plan, nil
}

// Find returns the record for clientID or ErrNotFound.
func (r *Registry) Find(clientID string) (*model.LicenseRecord, error) {
	var rec model.LicenseRecord
	err := r.db.Where("client_id = ?", clientID).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// Create issues a new license for clientID under the named plan. The
// plan must exist (no silent fallback to demo) and the client must not
// already hold a license. The initial token is issued here so record
// and token expiry agree by construction.
func (r *Registry) Create(clientID, planName string, contact ContactInfo) (*model.LicenseRecord, error) {
	plan, err := r.Plan(planName)
	if err != nil {
		return nil, err
	}

	signed, expiresAt, err := r.codec.Encode(clientID, planName, plan.Modules, plan.Duration)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	rec := &model.LicenseRecord{
		ClientID:     clientID,
		Plan:         planName,
		Status:       model.StatusActive,
		Token:        signed,
		CompanyName:  contact.CompanyName,
		ContactEmail: contact.ContactEmail,
		IssuedAt:     now,
		ExpiresAt:    expiresAt,
	}
	rec.SetModules(plan.Modules)

	err = r.db.Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&model.LicenseRecord{}).Where("client_id = ?", clientID).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return ErrDuplicateClient
		}
		return tx.Create(rec).Error
	})
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// ToggleStatus flips a record between active and inactive. A suspended
// record toggles back to active.
func (r *Registry) ToggleStatus(clientID string) (*model.LicenseRecord, error) {
	var rec *model.LicenseRecord
	err := r.db.Transaction(func(tx *gorm.DB) error {
		var err error
		rec, err = findForUpdate(tx, clientID)
		if err != nil {
			return err
		}
		if rec.Status == model.StatusActive {
			rec.Status = model.StatusInactive
		} else {
			rec.Status = model.StatusActive
		}
		rec.UpdatedAt = time.Now()
		return tx.Save(rec).Error
	})
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// Extend pushes the expiry out by the given number of days and re-issues
// the token with the new expiry. The superseded token is not revoked
// here; validation rejects it via the exact-match check.
func (r *Registry) Extend(clientID string, days int) (*model.LicenseRecord, error) {
	if days <= 0 {
		return nil, fmt.Errorf("extension days must be positive, got %d", days)
	}
	var rec *model.LicenseRecord
	err := r.db.Transaction(func(tx *gorm.DB) error {
		var err error
		rec, err = findForUpdate(tx, clientID)
		if err != nil {
			return err
		}
		rec.ExpiresAt = rec.ExpiresAt.Add(time.Duration(days) * 24 * time.Hour)
		signed, err := r.codec.EncodeUntil(rec.ClientID, rec.Plan, rec.ModuleList(), rec.ExpiresAt)
		if err != nil {
			return err
		}
		rec.Token = signed
		rec.UpdatedAt = time.Now()
		return tx.Save(rec).Error
	})
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// UpdateModules replaces the granted module set. The token is left
// alone on purpose: a metadata edit must not rotate credentials as a
// side effect. Call Reissue to push the new set into a fresh token.
func (r *Registry) UpdateModules(clientID string, modules []string) (*model.LicenseRecord, error) {
	var rec *model.LicenseRecord
	err := r.db.Transaction(func(tx *gorm.DB) error {
		var err error
		rec, err = findForUpdate(tx, clientID)
		if err != nil {
			return err
		}
		rec.SetModules(modules)
		rec.UpdatedAt = time.Now()
		return tx.Save(rec).Error
	})
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// Reissue signs a fresh token for the record's current plan, modules and
// expiry, superseding the previous one.
func (r *Registry) Reissue(clientID string) (*model.LicenseRecord, error) {
	var rec *model.LicenseRecord
	err := r.db.Transaction(func(tx *gorm.DB) error {
		var err error
		rec, err = findForUpdate(tx, clientID)
		if err != nil {
			return err
		}
		signed, err := r.codec.EncodeUntil(rec.ClientID, rec.Plan, rec.ModuleList(), rec.ExpiresAt)
		if err != nil {
			return err
		}
		rec.Token = signed
		rec.UpdatedAt = time.Now()
		return tx.Save(rec).Error
	})
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// Delete removes the record and reports whether one existed.
func (r *Registry) Delete(clientID string) (bool, error) {
	res := r.db.Where("client_id = ?", clientID).Delete(&model.LicenseRecord{})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// ListActive returns records whose expiry is still in the future,
// computed against the clock at call time.
func (r *Registry) ListActive() ([]model.LicenseRecord, error) {
	var recs []model.LicenseRecord
	err := r.db.Where("expires_at > ?", time.Now()).Order("client_id").Find(&recs).Error
	return recs, err
}

// ListExpired returns records whose expiry has passed.
func (r *Registry) ListExpired() ([]model.LicenseRecord, error) {
	var recs []model.LicenseRecord
	err := r.db.Where("expires_at <= ?", time.Now()).Order("client_id").Find(&recs).Error
	return recs, err
}

// List returns every record.
func (r *Registry) List() ([]model.LicenseRecord, error) {
	var recs []model.LicenseRecord
	err := r.db.Order("client_id").Find(&recs).Error
	return recs, err
}

// Touch bumps the usage counter and last-check timestamp in a single
// SQL statement, so racing validations cannot lose updates.
func (r *Registry) Touch(clientID string) error {
	res := r.db.Model(&model.LicenseRecord{}).
		Where("client_id = ?", clientID).
		Updates(map[string]interface{}{
			"usage_count": gorm.Expr("usage_count + ?", 1),
			"last_check":  time.Now(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func findForUpdate(tx *gorm.DB, clientID string) (*model.LicenseRecord, error) {
	var rec model.LicenseRecord
	err := tx.Where("client_id = ?", clientID).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}
