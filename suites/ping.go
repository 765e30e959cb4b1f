package suites

import (
	"context"
	"errors"

	"github.com/ethereum-optimism/infra/op-testqueue/registry"
	"github.com/ethereum-optimism/infra/op-testqueue/types"
	"github.com/stretchr/testify/assert"
)

const PingClass = "ping"

// pingFactory builds a class checking that the backend answers PONG
func pingFactory(backend Pinger) registry.Factory {
	return func() *types.Class {
		return &types.Class{
			Name:       PingClass,
			Tag:        "monitor",
			Sequential: types.Bool(true),
			SetUpClass: func(context.Context, *types.Class) error {
				if backend == nil {
					return errors.New("no backend to ping")
				}
				return nil
			},
			Methods: []types.Method{
				{
					Name: "TestPing",
					Body: func(ctx context.Context, _ *types.TestCase) error {
						reply, err := backend.Ping(ctx)
						if err != nil {
							return err
						}
						a := new(types.Assertions)
						assert.Equal(a, "PONG", reply)
						return a.Err()
					},
				},
			},
		}
	}
}
