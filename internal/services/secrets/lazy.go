package secrets

import (
	"context"
	"sync"

	"github.com/ternarybob/earningsear/internal/interfaces"
)

// Lazy defers building a resolver until the first lookup, so local runs
// never touch the AWS credential chain.
type Lazy struct {
	build func(ctx context.Context) (interfaces.SecretResolver, error)

	once  sync.Once
	inner interfaces.SecretResolver
	err   error
}

var _ interfaces.SecretResolver = (*Lazy)(nil)

// NewLazy creates a resolver that calls build once.
func NewLazy(build func(ctx context.Context) (interfaces.SecretResolver, error)) *Lazy {
	return &Lazy{build: build}
}

func (l *Lazy) Resolve(ctx context.Context, secretID, field string) (string, error) {
	l.once.Do(func() {
		l.inner, l.err = l.build(ctx)
	})
	if l.err != nil {
		return "", l.err
	}
	return l.inner.Resolve(ctx, secretID, field)
}
