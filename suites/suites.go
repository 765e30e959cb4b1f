// Package suites holds the test classes shipped with op-testqueue.
package suites

import (
	"context"

	"github.com/ethereum-optimism/infra/op-testqueue/registry"
)

// Pinger is a backend that answers "PONG" when healthy
type Pinger interface {
	Ping(ctx context.Context) (string, error)
}

// Deps are the collaborators the built-in classes exercise
type Deps struct {
	Backend Pinger
}

// Register adds every built-in class to reg
func Register(reg *registry.Registry, deps Deps) error {
	if err := reg.Register(PingClass, pingFactory(deps.Backend)); err != nil {
		return err
	}
	return reg.Register(LifecycleClass, lifecycleFactory)
}
