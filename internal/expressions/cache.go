package expressions

import "sync"

// programs memoizes compiled expressions by source text. Compiled programs
// from both libraries are immutable and safe to share between goroutines.
type programs[P any] struct {
	mu      sync.RWMutex
	byKey   map[string]P
	compile func(key string) (P, error)
}

func newPrograms[P any](compile func(key string) (P, error)) *programs[P] {
	return &programs[P]{byKey: make(map[string]P), compile: compile}
}

func (c *programs[P]) get(key string) (P, error) {
	c.mu.RLock()
	p, ok := c.byKey[key]
	c.mu.RUnlock()
	if ok {
		return p, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if p, ok := c.byKey[key]; ok {
		return p, nil
	}
	p, err := c.compile(key)
	if err != nil {
		return p, err
	}
	c.byKey[key] = p
	return p, nil
}

func (c *programs[P]) len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.byKey)
}
