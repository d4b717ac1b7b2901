package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"
	"time"
)

// Memory is an in-memory ObjectStore implementation. It is safe for
// concurrent use and intended primarily for testing.
type Memory struct {
	mu   sync.Mutex
	data map[string]memObject
}

type memObject struct {
	body []byte
	info ObjectInfo
}

// NewMemory creates a new in-memory ObjectStore.
func NewMemory() *Memory {
	return &Memory{data: make(map[string]memObject)}
}

func (m *Memory) Put(_ context.Context, key string, body io.Reader, opts PutOptions) error {
	b, err := io.ReadAll(body)
	if err != nil {
		return fmt.Errorf("storage: put %s: %w", key, err)
	}
	meta := lowerKeys(opts.Metadata)
	m.mu.Lock()
	m.data[key] = memObject{
		body: b,
		info: ObjectInfo{
			Key:          key,
			Size:         int64(len(b)),
			ContentType:  opts.ContentType,
			Metadata:     meta,
			LastModified: time.Now(),
		},
	}
	m.mu.Unlock()
	return nil
}

func (m *Memory) Get(_ context.Context, key string) (io.ReadCloser, *ObjectInfo, error) {
	m.mu.Lock()
	obj, ok := m.data[key]
	m.mu.Unlock()
	if !ok {
		return nil, nil, fmt.Errorf("storage: get %s: %w", key, os.ErrNotExist)
	}
	info := obj.info
	return io.NopCloser(bytes.NewReader(obj.body)), &info, nil
}

func (m *Memory) Head(_ context.Context, key string) (*ObjectInfo, error) {
	m.mu.Lock()
	obj, ok := m.data[key]
	m.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("storage: head %s: %w", key, os.ErrNotExist)
	}
	info := obj.info
	return &info, nil
}

func (m *Memory) List(_ context.Context, prefix string) ([]ObjectInfo, error) {
	m.mu.Lock()
	var infos []ObjectInfo
	for k, obj := range m.data {
		if strings.HasPrefix(k, prefix) {
			infos = append(infos, obj.info)
		}
	}
	m.mu.Unlock()
	sort.Slice(infos, func(i, j int) bool { return infos[i].Key < infos[j].Key })
	return infos, nil
}

func (m *Memory) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	delete(m.data, key)
	m.mu.Unlock()
	return nil
}

// Len returns the number of stored objects. For tests.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.data)
}

// Compile-time interface check.
var _ ObjectStore = (*Memory)(nil)
