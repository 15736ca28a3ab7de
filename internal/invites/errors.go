package invites

import (
	"errors"
	"fmt"
)

// ErrNotEnabled is returned by the query surface when the attribution
// system was never configured for this deployment. Distinct from "no data
// found", which is a nil record without error.
var ErrNotEnabled = errors.New("invite tracking is not enabled")

// FetchError marks a failed platform gateway call. The guild's current
// operation is aborted; the next join retries the fetch fresh.
type FetchError struct {
	GuildID string
	Err     error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch invites for guild %s: %v", e.GuildID, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// StoreError marks a failed durable read or write. Counter deltas for the
// event are applied atomically or not at all.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}
