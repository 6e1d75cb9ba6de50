// SPDX-License-Identifier: GPL-3.0-or-later
package filters

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/jkoelker/go-imap-watch/domain"
	"github.com/jkoelker/go-imap-watch/log"
	"github.com/jkoelker/go-imap-watch/mail"

	"github.com/sirupsen/logrus"
)

// Reliable disclaimer phrasings, matched anywhere in the body.
var politicalPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?im)paid for by actblue`),
	regexp.MustCompile(`(?im)paid for by (((\w+\s*){1,4} ((\d\d(\d\d)?)|(for \w+)))|(the ((democratic national (convention|committee))|(dccc)))|((\w+\s*){1,6} PAC))`),
}

var (
	paidForByPattern   = regexp.MustCompile(`(?im)paid for by`)
	unsubscribePattern = regexp.MustCompile(`(?im)unsubscribe`)
)

// Political matches campaign-funding disclaimers in the mail body. A
// bare "paid for by" is too common to act on alone, so it only counts
// in the last 30% of the text and only together with an unsubscribe
// link there.
type Political struct {
	extra []*regexp.Regexp

	action action

	l *logrus.Logger
}

func NewPolitical(patterns []string, action action) (*Political, error) {
	extra := []*regexp.Regexp{}
	for _, p := range patterns {
		compiled, err := regexp.Compile(`(?im)` + p)
		if err != nil {
			return nil, fmt.Errorf("could not compile pattern %q: %w", p, err)
		}
		extra = append(extra, compiled)
	}

	return &Political{
		extra:  extra,
		action: action,
		l:      log.Logger(log.LOG_FILTER),
	}, nil
}

func (p *Political) Apply(actions domain.MailActions, fetched *domain.FetchedMail) (bool, error) {
	text, err := mail.ExtractText(fetched.RawMail)
	if err != nil {
		return false, fmt.Errorf("could not extract mail text: %w", err)
	}

	if p.matches(text) {
		p.l.WithFields(logrus.Fields{"uid": fetched.Uid, "subject": mail.ShortSubject(fetched.Envelope.Subject)}).Info("Mail matched political spam heuristics")
		return p.action.take(actions, fetched)
	}

	p.l.WithFields(logrus.Fields{"uid": fetched.Uid}).Debug("No political spam match")
	return false, nil
}

func (p *Political) matches(text string) bool {
	for _, pattern := range politicalPatterns {
		if pattern.MatchString(text) {
			return true
		}
	}

	for _, pattern := range p.extra {
		if pattern.MatchString(text) {
			return true
		}
	}

	tail := text[int(float64(len(text))*0.7):]
	return paidForByPattern.MatchString(tail) && unsubscribePattern.MatchString(tail)
}

// Sender drops mail from a blocklist of addresses or domains.
type Sender struct {
	blocked []string

	action action

	l *logrus.Logger
}

func NewSender(senders []string, action action) *Sender {
	blocked := []string{}
	for _, s := range senders {
		s = strings.ToLower(strings.TrimSpace(s))
		if len(s) > 0 {
			blocked = append(blocked, s)
		}
	}

	return &Sender{
		blocked: blocked,
		action:  action,
		l:       log.Logger(log.LOG_FILTER),
	}
}

func (s *Sender) Apply(actions domain.MailActions, fetched *domain.FetchedMail) (bool, error) {
	sender := strings.ToLower(fetched.Envelope.Sender)

	for _, blocked := range s.blocked {
		if strings.Contains(sender, blocked) {
			s.l.WithFields(logrus.Fields{"uid": fetched.Uid, "sender": fetched.Envelope.Sender, "blocked": blocked}).Info("Mail matched sender blocklist")
			return s.action.take(actions, fetched)
		}
	}

	return false, nil
}
