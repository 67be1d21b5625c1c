// kotatsu/engine/ban_test.go
package engine

import (
	"context"
	"testing"
	"time"

	"kotatsu/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestActiveBanBlocksSubmissions(t *testing.T) {
	e, _ := newTestEngine(t)
	createTestBoard(t, e, "b", 100, 300)
	ctx := context.Background()

	thread, err := e.CreateThread(ctx, threadForm("b", "op"))
	require.NoError(t, err)

	_, err = e.Ban("203.0.113.1", "spam", "mod", nil)
	require.NoError(t, err)

	var banned *models.BannedError
	_, err = e.CreateThread(ctx, threadForm("b", "blocked"))
	require.ErrorAs(t, err, &banned)
	_, err = e.ReplyToThread(ctx, replyForm("b", thread.Number(), "blocked"))
	require.ErrorAs(t, err, &banned)

	// A different IP is unaffected.
	form := threadForm("b", "fine")
	form.IP = "198.51.100.9"
	_, err = e.CreateThread(ctx, form)
	assert.NoError(t, err)

	// The rejected submissions spent no post numbers.
	form2 := threadForm("b", "counting")
	form2.IP = "198.51.100.9"
	thread2, err := e.CreateThread(ctx, form2)
	require.NoError(t, err)
	assert.Equal(t, int64(3), thread2.Number())
}

func TestWarningDoesNotBlock(t *testing.T) {
	e, _ := newTestEngine(t)
	createTestBoard(t, e, "b", 100, 300)

	_, err := e.Warn("203.0.113.1", "first strike", "mod")
	require.NoError(t, err)

	_, err = e.CreateThread(context.Background(), threadForm("b", "still posting"))
	assert.NoError(t, err)
}

func TestBanValidation(t *testing.T) {
	e, _ := newTestEngine(t)

	var validation *models.ValidationError

	_, err := e.Ban("", "reason", "mod", nil)
	assert.ErrorAs(t, err, &validation, "missing IP")

	_, err = e.Ban("203.0.113.1", "reason", "", nil)
	assert.ErrorAs(t, err, &validation, "missing issuer")

	past := time.Now().UTC().Add(-time.Hour)
	_, err = e.Ban("203.0.113.1", "reason", "mod", &past)
	assert.ErrorAs(t, err, &validation, "end already passed")
}

func TestOneActiveBanPerIP(t *testing.T) {
	e, _ := newTestEngine(t)

	_, err := e.Ban("203.0.113.1", "spam", "mod", nil)
	require.NoError(t, err)

	var conflict *models.ConflictError
	_, err = e.Ban("203.0.113.1", "again", "mod", nil)
	require.ErrorAs(t, err, &conflict)

	// Warnings are exempt from the one-active rule.
	_, err = e.Warn("203.0.113.1", "noted", "mod")
	assert.NoError(t, err)
}

func TestUnbanLifecycle(t *testing.T) {
	e, _ := newTestEngine(t)
	createTestBoard(t, e, "b", 100, 300)
	ctx := context.Background()

	ban, err := e.Ban("203.0.113.1", "spam", "mod", nil)
	require.NoError(t, err)

	var validation *models.ValidationError
	err = e.Unban(ban.ID, "", "oops")
	assert.ErrorAs(t, err, &validation, "resolver required")

	var notFound *models.NotFoundError
	err = e.Unban(9999, "mod", "no such ban")
	assert.ErrorAs(t, err, &notFound)

	require.NoError(t, e.Unban(ban.ID, "admin", "appeal accepted"))

	// A resolved ban cannot be resolved again.
	var conflict *models.ConflictError
	err = e.Unban(ban.ID, "admin", "twice")
	assert.ErrorAs(t, err, &conflict)

	// The IP can post again, and a fresh ban may be issued later.
	_, err = e.CreateThread(ctx, threadForm("b", "released"))
	assert.NoError(t, err)
	_, err = e.Ban("203.0.113.1", "relapse", "mod", nil)
	assert.NoError(t, err)
}

func TestExpiredBansStopBlocking(t *testing.T) {
	e, _ := newTestEngine(t)
	createTestBoard(t, e, "b", 100, 300)
	ctx := context.Background()

	until := time.Now().UTC().Add(time.Hour)
	ban, err := e.Ban("203.0.113.1", "short ban", "mod", &until)
	require.NoError(t, err)

	// Nothing to expire yet.
	expired, err := e.SweepExpiredBans()
	require.NoError(t, err)
	assert.Zero(t, expired)

	// Sweep as if the window has passed.
	expired, err = e.db.ExpireBans(until.Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, int64(1), expired)

	_, err = e.CreateThread(ctx, threadForm("b", "back"))
	assert.NoError(t, err)

	// An EXPIRED ban is no longer resolvable.
	var conflict *models.ConflictError
	err = e.Unban(ban.ID, "mod", "late")
	assert.ErrorAs(t, err, &conflict)
}
