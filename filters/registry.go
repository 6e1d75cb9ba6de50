// SPDX-License-Identifier: GPL-3.0-or-later
package filters

import (
	"fmt"

	"github.com/jkoelker/go-imap-watch/config"
	"github.com/jkoelker/go-imap-watch/filterchain"
)

// Build turns the configured filter list into ordered chain entries.
// Order in the config file is chain order. The chain never inspects
// filter internals, it only sees the Filter contract.
func Build(configs []config.FilterConfig) ([]filterchain.Entry, error) {
	entries := []filterchain.Entry{}

	for i, fc := range configs {
		name := fmt.Sprintf("%s-%d", fc.Type, i)
		act := action{
			moveTo: fc.MoveTo,
			delete: fc.Delete,
		}

		switch fc.Type {
		case "political":
			filter, err := NewPolitical(fc.Patterns, act)
			if err != nil {
				return nil, fmt.Errorf("could not build filter %s: %w", name, err)
			}
			entries = append(entries, filterchain.Entry{Name: name, Filter: filter})

		case "sender":
			entries = append(entries, filterchain.Entry{Name: name, Filter: NewSender(fc.Senders, act)})

		case "spamd":
			filter, err := NewSpamd(fc.SpamdHost, act)
			if err != nil {
				return nil, fmt.Errorf("could not build filter %s: %w", name, err)
			}
			entries = append(entries, filterchain.Entry{Name: name, Filter: filter})

		default:
			return nil, fmt.Errorf("unknown filter type %q", fc.Type)
		}
	}

	return entries, nil
}
