package paramstore

import (
	"context"
	"strings"
	"sync"
)

// TokenGetter is the interface that wraps GetToken.
type TokenGetter interface {
	GetToken(ctx context.Context, name string) (string, error)
}

// KeySource resolves the upstream API key. A statically configured key wins;
// otherwise the key is read from Parameter Store on first use and cached once
// a read succeeds. An empty key with a nil error means nothing is configured.
type KeySource struct {
	static string
	getter TokenGetter
	param  string

	mu     sync.Mutex
	cached string
}

func NewKeySource(static string, getter TokenGetter, param string) *KeySource {
	return &KeySource{
		static: strings.TrimSpace(static),
		getter: getter,
		param:  strings.TrimSpace(param),
	}
}

// StaticKey returns a KeySource that always yields key.
func StaticKey(key string) *KeySource {
	return NewKeySource(key, nil, "")
}

func (k *KeySource) APIKey(ctx context.Context) (string, error) {
	if k.static != "" {
		return k.static, nil
	}
	if k.getter == nil || k.param == "" {
		return "", nil
	}

	k.mu.Lock()
	defer k.mu.Unlock()
	if k.cached != "" {
		return k.cached, nil
	}
	key, err := k.getter.GetToken(ctx, k.param)
	if err != nil {
		return "", err
	}
	k.cached = key
	return key, nil
}
