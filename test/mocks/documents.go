package mocks

import (
	"context"
	"sync"

	"github.com/john2100013/kpi-review/internal/document"
)

// MockDocumentPublisher records published review IDs.
type MockDocumentPublisher struct {
	PublishFunc func(ctx context.Context, reviewID uint) error

	mu        sync.Mutex
	published []uint
}

func (m *MockDocumentPublisher) Publish(ctx context.Context, reviewID uint) error {
	m.mu.Lock()
	m.published = append(m.published, reviewID)
	m.mu.Unlock()

	if m.PublishFunc != nil {
		return m.PublishFunc(ctx, reviewID)
	}
	return nil
}

// Published returns the review IDs passed to Publish.
func (m *MockDocumentPublisher) Published() []uint {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]uint, len(m.published))
	copy(out, m.published)
	return out
}

// MockGenerator is a document generator stub.
type MockGenerator struct {
	GenerateFunc func(ctx context.Context, doc *document.ReviewDocument) ([]byte, error)
}

func (m *MockGenerator) Generate(ctx context.Context, doc *document.ReviewDocument) ([]byte, error) {
	if m.GenerateFunc != nil {
		return m.GenerateFunc(ctx, doc)
	}
	return []byte("%PDF-1.3 test"), nil
}

// MockStore keeps stored objects in memory.
type MockStore struct {
	PutFunc func(ctx context.Context, key, contentType string, data []byte) (string, error)

	mu      sync.Mutex
	Objects map[string][]byte
}

func (m *MockStore) Put(ctx context.Context, key, contentType string, data []byte) (string, error) {
	if m.PutFunc != nil {
		return m.PutFunc(ctx, key, contentType, data)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Objects == nil {
		m.Objects = make(map[string][]byte)
	}
	m.Objects[key] = data
	return "mem://" + key, nil
}
