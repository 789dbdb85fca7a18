package mocks

import (
	"context"
	"sync"

	"github.com/john2100013/kpi-review/internal/notify"
)

// SentMessage is one recorded Send call.
type SentMessage struct {
	CompanyID    uint
	Address      string
	TemplateType string
	Vars         map[string]string
}

// MockSender records Send calls. SendFunc, when set, decides the result.
type MockSender struct {
	SendFunc func(ctx context.Context, companyID uint, address, templateType string, vars map[string]string) notify.Result

	mu    sync.Mutex
	calls []SentMessage
}

func (m *MockSender) Send(ctx context.Context, companyID uint, address, templateType string, vars map[string]string) notify.Result {
	m.mu.Lock()
	m.calls = append(m.calls, SentMessage{CompanyID: companyID, Address: address, TemplateType: templateType, Vars: vars})
	m.mu.Unlock()

	if m.SendFunc != nil {
		return m.SendFunc(ctx, companyID, address, templateType, vars)
	}
	return notify.Result{Success: true}
}

// Calls returns a copy of the recorded calls.
func (m *MockSender) Calls() []SentMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]SentMessage, len(m.calls))
	copy(out, m.calls)
	return out
}

// CallsFor returns the recorded calls of one template type.
func (m *MockSender) CallsFor(templateType string) []SentMessage {
	var out []SentMessage
	for _, c := range m.Calls() {
		if c.TemplateType == templateType {
			out = append(out, c)
		}
	}
	return out
}

// Addresses returns the distinct addresses of one template type.
func (m *MockSender) Addresses(templateType string) map[string]int {
	out := make(map[string]int)
	for _, c := range m.CallsFor(templateType) {
		out[c.Address]++
	}
	return out
}

// Reset clears the recorded calls.
func (m *MockSender) Reset() {
	m.mu.Lock()
	m.calls = nil
	m.mu.Unlock()
}
