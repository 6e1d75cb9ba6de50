// SPDX-License-Identifier: GPL-3.0-or-later
package domain

//go:generate mockgen -destination=mocks/cursor.go -package=mocks . CursorStore

// CursorStore persists the highest uid already handed to the pipeline.
// It is written only by the watch loop (single writer), overwrite
// semantics, durable before Save returns.
type CursorStore interface {
	Load(folder string) (uint32, bool, error)
	Save(folder string, uid uint32) error
	Close() error
}
