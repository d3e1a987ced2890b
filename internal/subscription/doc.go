// Package subscription owns the user -> item subscription table.
//
// Registration resolves free-text item names against the item set seen on
// the latest successful poll using a character similarity ratio, so "carot
// seed" subscribes to "Carrot Seed". Every mutation is persisted before the
// caller gets its answer.
package subscription
