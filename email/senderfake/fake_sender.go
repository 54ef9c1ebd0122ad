package senderfake

import (
	"context"
	"sync"

	"github.com/jrsteele09/go-magic-auth/email"
)

var _ email.Sender = (*FakeSender)(nil)

// SentMessage records one delivery made through the fake.
type SentMessage struct {
	To      string
	Message email.Message
}

// FakeSender records messages instead of delivering them.
type FakeSender struct {
	mu   sync.Mutex
	sent []SentMessage

	// Err, when set, is returned by Send instead of recording.
	Err error
}

func NewFakeSender() *FakeSender {
	return &FakeSender{}
}

func (f *FakeSender) Send(ctx context.Context, to string, msg email.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.Err != nil {
		return f.Err
	}
	f.sent = append(f.sent, SentMessage{To: to, Message: msg})
	return nil
}

// Sent returns a copy of everything delivered so far.
func (f *FakeSender) Sent() []SentMessage {
	f.mu.Lock()
	defer f.mu.Unlock()

	sent := make([]SentMessage, len(f.sent))
	copy(sent, f.sent)
	return sent
}
