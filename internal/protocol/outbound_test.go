package protocol

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lvollmer/bazaarnode/pkg/db/models"
	"github.com/lvollmer/bazaarnode/pkg/enums"
)

func TestOutboundRepositoryLifecycle(t *testing.T) {
	f := setupProtocolFixture(t)
	ctx := context.Background()

	for _, hash := range []string{"msghash-1", "msghash-2"} {
		require.NoError(t, f.outbound.Enqueue(ctx, &models.OutboundMessage{
			MessageHash: hash,
			Kind:        enums.ActionKindBid,
			Recipient:   "pSellerAddr",
			Raw:         json.RawMessage(`{"kind":"bid"}`),
		}))
	}

	rows, err := f.outbound.FetchUnpublished(ctx, 10, 5)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	require.NoError(t, f.outbound.MarkPublished(ctx, rows[0].ID, time.Now().UTC()))
	require.NoError(t, f.outbound.MarkFailed(ctx, rows[1].ID, "broker unavailable"))

	rows, err = f.outbound.FetchUnpublished(ctx, 10, 5)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "msghash-2", rows[0].MessageHash)
	assert.Equal(t, 1, rows[0].AttemptCount)
	require.NotNil(t, rows[0].LastError)
	assert.Equal(t, "broker unavailable", *rows[0].LastError)

	// a row at max attempts stops being offered
	rows, err = f.outbound.FetchUnpublished(ctx, 10, 1)
	require.NoError(t, err)
	assert.Empty(t, rows)
}
