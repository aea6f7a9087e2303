package storage

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/lumenmfb/backend/internal/domain/document"
)

var _ document.ObjectStore = (*MemoryStore)(nil)

type memObject struct {
	body        []byte
	contentType string
}

// MemoryStore keeps objects in process. Signed URLs point at baseURL, which
// the API serves from Get when this store is active.
type MemoryStore struct {
	mu      sync.RWMutex
	objects map[document.Bucket]map[string]memObject
	baseURL string
	now     func() time.Time
}

func NewMemoryStore(baseURL string) *MemoryStore {
	return &MemoryStore{
		objects: map[document.Bucket]map[string]memObject{},
		baseURL: strings.TrimRight(baseURL, "/"),
		now:     time.Now,
	}
}

func (m *MemoryStore) Put(_ context.Context, bucket document.Bucket, key string, body []byte, contentType string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.objects[bucket] == nil {
		m.objects[bucket] = map[string]memObject{}
	}
	m.objects[bucket][key] = memObject{body: append([]byte(nil), body...), contentType: contentType}
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, bucket document.Bucket, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.objects[bucket], k)
	}
	return nil
}

func (m *MemoryStore) List(_ context.Context, bucket document.Bucket, prefix string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0)
	for k := range m.objects[bucket] {
		if strings.HasPrefix(k, prefix) {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (m *MemoryStore) PresignGet(_ context.Context, bucket document.Bucket, key string, ttl time.Duration) (string, error) {
	m.mu.RLock()
	_, ok := m.objects[bucket][key]
	m.mu.RUnlock()
	if !ok {
		return "", fmt.Errorf("object %s/%s not found", bucket, key)
	}
	q := url.Values{"expires": {fmt.Sprint(m.now().Add(ttl).Unix())}}
	return fmt.Sprintf("%s/%s/%s?%s", m.baseURL, bucket, key, q.Encode()), nil
}

// Get returns a stored object, for tests and local serving.
func (m *MemoryStore) Get(bucket document.Bucket, key string) ([]byte, string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	obj, ok := m.objects[bucket][key]
	return obj.body, obj.contentType, ok
}
