// kotatsu/database/bans.go
package database

import (
	"database/sql"
	"fmt"
	"strconv"
	"time"

	"kotatsu/models"
)

const banColumns = `id, ip, reason, status, valid_from, valid_to, issued_by, resolved_by, resolution_reason`

func scanBan(row interface{ Scan(...any) error }) (*models.Ban, error) {
	var b models.Ban
	err := row.Scan(&b.ID, &b.IP, &b.Reason, &b.Status, &b.ValidFrom, &b.ValidTo,
		&b.IssuedBy, &b.ResolvedBy, &b.ResolutionReason)
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// ActiveBan returns the ACTIVE ban for an IP, or nil when none exists.
// WARNING records never block posting.
func (s *Service) ActiveBan(ip string) (*models.Ban, error) {
	ban, err := scanBan(s.DB.QueryRow(
		"SELECT "+banColumns+" FROM bans WHERE ip = ? AND status = 'ACTIVE'", ip))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query active ban for %s: %w", ip, err)
	}
	return ban, nil
}

// InsertBan records a new ban or warning. The partial unique index on
// (ip WHERE status='ACTIVE') enforces one active ban per IP; a violation is
// surfaced as a ConflictError.
func (s *Service) InsertBan(ban *models.Ban) (int64, error) {
	res, err := s.DB.Exec(`
		INSERT INTO bans (ip, reason, status, valid_from, valid_to, issued_by, resolved_by, resolution_reason)
		VALUES (?, ?, ?, ?, ?, ?, '', '')`,
		ban.IP, ban.Reason, ban.Status, ban.ValidFrom, ban.ValidTo, ban.IssuedBy)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, &models.ConflictError{Reason: fmt.Sprintf("IP %s already has an active ban", ban.IP)}
		}
		return 0, fmt.Errorf("failed to insert ban: %w", err)
	}
	return res.LastInsertId()
}

// GetBan fetches a ban by id.
func (s *Service) GetBan(id int64) (*models.Ban, error) {
	ban, err := scanBan(s.DB.QueryRow("SELECT "+banColumns+" FROM bans WHERE id = ?", id))
	if err == sql.ErrNoRows {
		return nil, &models.NotFoundError{Kind: "ban", Ref: strconv.FormatInt(id, 10)}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query ban %d: %w", id, err)
	}
	return ban, nil
}

// ResolveBan transitions an ACTIVE ban to UNBANNED. The status guard in the
// WHERE clause makes resolution and expiry mutually exclusive: whichever
// transition commits first wins and the other matches zero rows.
func (s *Service) ResolveBan(id int64, resolver, reason string) (bool, error) {
	res, err := s.DB.Exec(`
		UPDATE bans SET status = 'UNBANNED', resolved_by = ?, resolution_reason = ?
		WHERE id = ? AND status = 'ACTIVE'`, resolver, reason, id)
	if err != nil {
		return false, fmt.Errorf("failed to resolve ban %d: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

// ExpireBans transitions every ACTIVE ban whose end has passed to EXPIRED,
// as one guarded statement. Idempotent; safe to run concurrently with ban
// creation and resolution.
func (s *Service) ExpireBans(now time.Time) (int64, error) {
	res, err := s.DB.Exec(`
		UPDATE bans SET status = 'EXPIRED'
		WHERE status = 'ACTIVE' AND valid_to IS NOT NULL AND valid_to <= ?`, now)
	if err != nil {
		return 0, fmt.Errorf("failed to expire bans: %w", err)
	}
	return res.RowsAffected()
}

// ListBans returns all bans, most recent first.
func (s *Service) ListBans() ([]models.Ban, error) {
	rows, err := s.DB.Query("SELECT " + banColumns + " FROM bans ORDER BY valid_from DESC, id DESC")
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := rows.Close(); err != nil {
			s.logger.Error("Failed to close rows in ListBans", "error", err)
		}
	}()

	var bans []models.Ban
	for rows.Next() {
		b, err := scanBan(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan ban row: %w", err)
		}
		bans = append(bans, *b)
	}
	return bans, rows.Err()
}
