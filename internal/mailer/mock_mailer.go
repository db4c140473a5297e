package mailer

import "sync"

// MockMailer records sent messages for assertions in tests.
type MockMailer struct {
	mu   sync.Mutex
	Sent []SentMessage
}

type SentMessage struct {
	Recipient    string
	TemplateFile string
	Data         any
}

func (m *MockMailer) Send(recipient, templateFile string, data any) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Sent = append(m.Sent, SentMessage{
		Recipient:    recipient,
		TemplateFile: templateFile,
		Data:         data,
	})

	return nil
}
