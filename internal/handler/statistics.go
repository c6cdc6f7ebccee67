package handler

import (
	"time"

	"omni-license-server/internal/database"
	"omni-license-server/internal/model"

	"github.com/gofiber/fiber/v2"
)

// HandleStatistics summarizes the license table and validation traffic
// for the admin dashboard. Optional start_date/end_date (YYYY-MM-DD)
// bound the usage aggregates; the default window is the last 30 days.
func (h *Handler) HandleStatistics(c *fiber.Ctx) error {
	start, end, err := parseDateRange(c.Query("start_date"), c.Query("end_date"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "dates must use the YYYY-MM-DD format",
		})
	}

	db := database.DB
	now := time.Now()

	stats := &model.LicenseStatistics{
		LicensesByPlan:  make(map[string]int),
		ChecksByOutcome: make(map[string]int),
		DailyUsage:      make([]model.DailyUsage, 0),
	}

	if err := db.Model(&model.LicenseRecord{}).Count(&stats.TotalLicenses).Error; err != nil {
		return statisticsError(c)
	}
	if err := db.Model(&model.LicenseRecord{}).
		Where("status = ? AND expires_at > ?", model.StatusActive, now).
		Count(&stats.ActiveLicenses).Error; err != nil {
		return statisticsError(c)
	}
	if err := db.Model(&model.LicenseRecord{}).
		Where("status = ?", model.StatusInactive).
		Count(&stats.InactiveLicenses).Error; err != nil {
		return statisticsError(c)
	}
	if err := db.Model(&model.LicenseRecord{}).
		Where("status = ?", model.StatusSuspended).
		Count(&stats.SuspendedLicenses).Error; err != nil {
		return statisticsError(c)
	}
	if err := db.Model(&model.LicenseRecord{}).
		Where("expires_at <= ?", now).
		Count(&stats.ExpiredLicenses).Error; err != nil {
		return statisticsError(c)
	}
	if err := db.Model(&model.LicenseRecord{}).
		Where("expires_at > ? AND expires_at <= ?", now, now.AddDate(0, 0, 30)).
		Count(&stats.ExpiringLicenses).Error; err != nil {
		return statisticsError(c)
	}

	var planStats []struct {
		Plan  string
		Count int
	}
	if err := db.Model(&model.LicenseRecord{}).
		Select("plan, count(*) as count").
		Group("plan").
		Scan(&planStats).Error; err != nil {
		return statisticsError(c)
	}
	for _, ps := range planStats {
		stats.LicensesByPlan[ps.Plan] = ps.Count
	}

	if err := db.Model(&model.UsageLog{}).
		Where("timestamp BETWEEN ? AND ?", start, end).
		Count(&stats.TotalChecks).Error; err != nil {
		return statisticsError(c)
	}

	var outcomeStats []struct {
		Outcome string
		Count   int
	}
	if err := db.Model(&model.UsageLog{}).
		Select("outcome, count(*) as count").
		Where("timestamp BETWEEN ? AND ?", start, end).
		Group("outcome").
		Scan(&outcomeStats).Error; err != nil {
		return statisticsError(c)
	}
	for _, oc := range outcomeStats {
		stats.ChecksByOutcome[oc.Outcome] = oc.Count
	}

	var dailyStats []model.DailyUsage
	if err := db.Model(&model.UsageLog{}).
		Select("DATE(timestamp) as date, COUNT(DISTINCT client_id) as clients, COUNT(*) as total_checks").
		Where("timestamp BETWEEN ? AND ?", start, end).
		Group("DATE(timestamp)").
		Order("date ASC").
		Scan(&dailyStats).Error; err != nil {
		return statisticsError(c)
	}
	stats.DailyUsage = dailyStats

	return c.JSON(fiber.Map{
		"data": stats,
	})
}

func parseDateRange(startDate, endDate string) (time.Time, time.Time, error) {
	start := time.Now().AddDate(0, 0, -30)
	end := time.Now()

	var err error
	if startDate != "" {
		start, err = time.Parse("2006-01-02", startDate)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
	}
	if endDate != "" {
		end, err = time.Parse("2006-01-02", endDate)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
		end = end.AddDate(0, 0, 1) // inclusive end day
	}
	return start, end, nil
}

func statisticsError(c *fiber.Ctx) error {
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
		"error": "failed to compute statistics",
	})
}
