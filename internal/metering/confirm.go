package metering

import (
	"context"
	"fmt"
	"time"

	"github.com/snt-portal/snt-portal/internal/kv"
)

// KVConfirmationStore keeps session-held candidate meter numbers in the
// scratch store. A candidate expires on its own if the member walks away
// without submitting.
type KVConfirmationStore struct {
	store *kv.Store
	ttl   time.Duration
}

// NewConfirmationStore builds a confirmation store with the given hold time.
func NewConfirmationStore(store *kv.Store, ttl time.Duration) *KVConfirmationStore {
	return &KVConfirmationStore{store: store, ttl: ttl}
}

func confirmKey(accountID int64, plotNumber string) string {
	return fmt.Sprintf("confirm:%d:%s", accountID, plotNumber)
}

// SetCandidate stores the confirmed-but-unsubmitted meter number.
func (c *KVConfirmationStore) SetCandidate(ctx context.Context, accountID int64, plotNumber, meterNumber string) error {
	return c.store.Set(ctx, confirmKey(accountID, plotNumber), meterNumber, c.ttl)
}

// Candidate returns the held meter number, or "" when none is held.
func (c *KVConfirmationStore) Candidate(ctx context.Context, accountID int64, plotNumber string) (string, error) {
	var meterNumber string
	ok, err := c.store.Get(ctx, confirmKey(accountID, plotNumber), &meterNumber)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", nil
	}
	return meterNumber, nil
}

// ClearCandidate drops the held meter number.
func (c *KVConfirmationStore) ClearCandidate(ctx context.Context, accountID int64, plotNumber string) error {
	return c.store.Remove(ctx, confirmKey(accountID, plotNumber))
}

var _ ConfirmationStore = (*KVConfirmationStore)(nil)
