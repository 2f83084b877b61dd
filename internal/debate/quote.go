package debate

import "strings"

// Request describes one debate to run. FreeText is what the user typed;
// QuotedText is reference material handed over from the selection UI.
// At least one of the two must be non-empty.
type Request struct {
	ProjectID  string
	FreeText   string
	QuotedText string
}

// Topic composes the outbound topic string: the quoted reference block
// first, then the free text, separated by a blank line when both are set.
func (r Request) Topic() string {
	quoted := strings.TrimSpace(r.QuotedText)
	free := strings.TrimSpace(r.FreeText)

	switch {
	case quoted == "":
		return free
	case free == "":
		return quoted
	default:
		return quoted + "\n\n" + free
	}
}

// Empty reports whether the request carries no effective content.
func (r Request) Empty() bool {
	return r.Topic() == ""
}

// QuoteInbox hands quoted text from the selection UI to the request
// builder. It is a capacity-1 latest-wins mailbox: offering a new quote
// replaces any unconsumed one, and Take drains it. Safe for concurrent
// use by one offering side and one taking side.
type QuoteInbox struct {
	ch chan string
}

// NewQuoteInbox returns an empty inbox.
func NewQuoteInbox() *QuoteInbox {
	return &QuoteInbox{ch: make(chan string, 1)}
}

// Offer deposits quoted text, replacing any quote not yet taken.
func (q *QuoteInbox) Offer(text string) {
	for {
		select {
		case q.ch <- text:
			return
		default:
			select {
			case <-q.ch:
			default:
			}
		}
	}
}

// Take removes and returns the pending quote, if any.
func (q *QuoteInbox) Take() (string, bool) {
	select {
	case text := <-q.ch:
		return text, true
	default:
		return "", false
	}
}
