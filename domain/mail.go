// SPDX-License-Identifier: GPL-3.0-or-later
package domain

import "time"

// Envelope is the header projection attached to every fetched mail.
// It is constructed once during fetch and never mutated afterwards.
type Envelope struct {
	Sender  string
	Date    time.Time
	Subject string
}

// FetchedMail is the full message as handed to the filter chain: the
// server-assigned uid, the envelope and the raw RFC822 body. It is
// owned exclusively by the worker that fetched it.
type FetchedMail struct {
	Uid      uint32
	Envelope Envelope
	RawMail  []byte
}
