// kotatsu/engine/ban.go
package engine

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"kotatsu/models"
	"kotatsu/utils"
)

// Ban issues an ACTIVE ban against an IP. A nil until means the ban is
// indefinite; a past until is rejected before anything is written. One
// active ban per IP; a second attempt surfaces as a ConflictError.
func (e *Engine) Ban(ip, reason, issuedBy string, until *time.Time) (*models.Ban, error) {
	return e.issueBan(ip, reason, issuedBy, until, models.BanStatusActive)
}

// Warn records a WARNING against an IP. Warnings are durable moderation
// history but never block submissions.
func (e *Engine) Warn(ip, reason, issuedBy string) (*models.Ban, error) {
	return e.issueBan(ip, reason, issuedBy, nil, models.BanStatusWarning)
}

func (e *Engine) issueBan(ip, reason, issuedBy string, until *time.Time, status models.BanStatus) (*models.Ban, error) {
	if ip == "" {
		return nil, models.Validationf("ban requires an IP")
	}
	if issuedBy == "" {
		return nil, models.Validationf("ban requires an issuer")
	}
	now := utils.GetSQLTime()
	if until != nil && !until.After(now) {
		return nil, models.Validationf("ban end %s is in the past", until.Format(time.RFC3339))
	}

	ban := &models.Ban{
		IP:        ip,
		Reason:    reason,
		Status:    status,
		ValidFrom: now,
		IssuedBy:  issuedBy,
	}
	if until != nil {
		ban.ValidTo = sql.NullTime{Time: *until, Valid: true}
	}

	id, err := e.db.InsertBan(ban)
	if err != nil {
		return nil, err
	}
	ban.ID = id
	e.logger.Info("Ban recorded", "ip", ip, "status", status, "issued_by", issuedBy)
	return ban, nil
}

// Unban lifts an ACTIVE ban, recording who resolved it and why. Resolving a
// ban in any other state is a conflict, so expiry and manual resolution can
// never both claim the same ban.
func (e *Engine) Unban(id int64, resolvedBy, reason string) error {
	if resolvedBy == "" {
		return models.Validationf("unban requires a resolver")
	}

	ok, err := e.db.ResolveBan(id, resolvedBy, reason)
	if err != nil {
		return err
	}
	if !ok {
		ban, err := e.db.GetBan(id)
		if err != nil {
			return err
		}
		return &models.ConflictError{Reason: fmt.Sprintf("ban %d is %s, not ACTIVE", id, ban.Status)}
	}
	e.logger.Info("Ban lifted", "ban", id, "resolved_by", resolvedBy)
	return nil
}

// Bans lists all moderation records, most recent first.
func (e *Engine) Bans() ([]models.Ban, error) {
	return e.db.ListBans()
}

// SweepExpiredBans transitions every ACTIVE ban whose end has passed to
// EXPIRED. Idempotent.
func (e *Engine) SweepExpiredBans() (int64, error) {
	expired, err := e.db.ExpireBans(utils.GetSQLTime())
	if err != nil {
		return 0, err
	}
	if expired > 0 {
		e.logger.Info("Expired bans swept", "count", expired)
	}
	return expired, nil
}

// BanSweeper runs the expiry sweep on a fixed period until the context is
// cancelled. Intended to run as a background goroutine.
func (e *Engine) BanSweeper(ctx context.Context, period time.Duration) {
	ticker := time.NewTicker(period)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := e.SweepExpiredBans(); err != nil {
				e.logger.Error("Ban expiry sweep failed", "error", err)
			}
		}
	}
}
