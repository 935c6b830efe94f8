package store_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/callpath/backbone/pkg/models"
	"github.com/callpath/backbone/pkg/store"
)

func TestSessionStoreCreateAndGetRoundTrips(t *testing.T) {
	ctx := context.Background()
	_, sessions := newTestStores(t)

	tenant := "acme"
	sess, err := sessions.Create(ctx, models.ScopeTags{Tenant: &tenant})
	require.NoError(t, err)
	assert.Equal(t, models.SessionActive, sess.Status)

	fetched, err := sessions.Get(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, sess.ID, fetched.ID)
	require.NotNil(t, fetched.Scope.Tenant)
	assert.Equal(t, tenant, *fetched.Scope.Tenant)
}

func TestSessionStoreGetUnknownIDReturnsNotFound(t *testing.T) {
	ctx := context.Background()
	_, sessions := newTestStores(t)

	_, err := sessions.Get(ctx, "does-not-exist")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestSessionStoreIsActiveReflectsStatus(t *testing.T) {
	ctx := context.Background()
	_, sessions := newTestStores(t)

	sess, err := sessions.Create(ctx, models.ScopeTags{})
	require.NoError(t, err)

	active, err := sessions.IsActive(ctx, sess.ID)
	require.NoError(t, err)
	assert.True(t, active)

	_, err = sessions.End(ctx, sess.ID, "summary", models.DispositionBooked)
	require.NoError(t, err)

	active, err = sessions.IsActive(ctx, sess.ID)
	require.NoError(t, err)
	assert.False(t, active)
}

func TestSessionStoreEndIsIdempotentWithAlreadyCompleted(t *testing.T) {
	ctx := context.Background()
	_, sessions := newTestStores(t)

	sess, err := sessions.Create(ctx, models.ScopeTags{})
	require.NoError(t, err)

	ended, err := sessions.End(ctx, sess.ID, "Booked a demo", models.DispositionBooked)
	require.NoError(t, err)
	require.NotNil(t, ended.Summary)
	assert.Equal(t, "Booked a demo", *ended.Summary)

	again, err := sessions.End(ctx, sess.ID, "different summary", models.DispositionSpam)
	assert.ErrorIs(t, err, store.ErrAlreadyCompleted)
	require.NotNil(t, again)
	assert.Equal(t, "Booked a demo", *again.Summary)
	require.NotNil(t, again.Disposition)
	assert.Equal(t, models.DispositionBooked, *again.Disposition)
}
