package signal

import "fmt"

// Message is one received text message.
type Message struct {
	// SenderID is the sender's phone number, e.g. "+15551234567".
	SenderID   string
	SenderName string

	// GroupID is set when the message was sent to a group.
	GroupID string

	Text      string
	Timestamp int64
}

// Target addresses a send: a group when GroupID is set, else Recipient.
type Target struct {
	Recipient string
	GroupID   string
}

// ReplyTarget answers in the group the message came from, or directly to
// the sender.
func (m Message) ReplyTarget() Target {
	if m.GroupID != "" {
		return Target{GroupID: m.GroupID}
	}
	return Target{Recipient: m.SenderID}
}

// SignalError reports a failed signal-cli operation.
type SignalError struct {
	// Op is the operation that failed, e.g. "send" or "receive".
	Op string

	// UserID is the account the operation ran as.
	UserID string

	Err error
}

func (e *SignalError) Error() string {
	if e.UserID != "" {
		return fmt.Sprintf("signal %s (user: %s): %v", e.Op, e.UserID, e.Err)
	}
	return fmt.Sprintf("signal %s: %v", e.Op, e.Err)
}

func (e *SignalError) Unwrap() error {
	return e.Err
}

// envelopeLine is one line of `signal-cli -o json receive`.
type envelopeLine struct {
	Envelope struct {
		Source       string `json:"source"`
		SourceNumber string `json:"sourceNumber"`
		SourceName   string `json:"sourceName"`
		Timestamp    int64  `json:"timestamp"`
		DataMessage  *struct {
			Message   string `json:"message"`
			GroupInfo *struct {
				GroupID string `json:"groupId"`
			} `json:"groupInfo"`
		} `json:"dataMessage"`
	} `json:"envelope"`
}
