package store

import (
	"context"
	"sync"
)

// MemoryDocumentStore 記憶體版 DocumentStore，供測試與本地開發使用。
// 交易在單一鎖下執行，天然滿足原子性。
type MemoryDocumentStore struct {
	mu   sync.Mutex
	docs map[string][]byte
}

func NewMemoryDocumentStore() *MemoryDocumentStore {
	return &MemoryDocumentStore{
		docs: make(map[string][]byte),
	}
}

func (s *MemoryDocumentStore) Get(ctx context.Context, path string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	value, ok := s.docs[path]
	if !ok {
		return nil, ErrDocumentNotFound
	}
	return cloneBytes(value), nil
}

func (s *MemoryDocumentStore) Set(ctx context.Context, path string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.docs[path] = cloneBytes(value)
	return nil
}

func (s *MemoryDocumentStore) RunTransaction(ctx context.Context, path string, fn TxFunc) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var current []byte
	if value, ok := s.docs[path]; ok {
		current = cloneBytes(value)
	}

	next, err := fn(current)
	if err != nil {
		// 中止：文件保持不變
		return nil, err
	}

	if next == nil {
		delete(s.docs, path)
		return nil, nil
	}

	s.docs[path] = cloneBytes(next)
	return next, nil
}

// Len 目前文件數量，僅供測試驗證
func (s *MemoryDocumentStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.docs)
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
