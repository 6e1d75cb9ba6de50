// SPDX-License-Identifier: GPL-3.0-or-later
package domain

//go:generate mockgen -destination=mocks/filter.go -package=mocks . Filter

// Filter inspects a fetched mail and may take a terminal action on it
// through the given MailActions (move, delete, flag). Returning true
// means a terminal action was taken and the chain must stop; running
// further filters against that mail would be undefined. Returning
// (false, nil) means "no opinion". An error is an unexpected internal
// failure, the chain logs it and continues with the next filter.
type Filter interface {
	Apply(actions MailActions, mail *FetchedMail) (bool, error)
}
