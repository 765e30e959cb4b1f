package registry

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ethereum-optimism/infra/op-testqueue/types"
	"github.com/ethereum/go-ethereum/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	r := NewRegistry(Config{Log: log.NewLogger(log.DiscardHandler())})
	r.MustRegister("alpha", func() *types.Class {
		return &types.Class{Tag: "default", Methods: []types.Method{{Name: "TestA"}}}
	})
	r.MustRegister("beta", func() *types.Class {
		return &types.Class{Name: "beta", Timeout: time.Second}
	})
	return r
}

func writePlan(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestRegistry(t *testing.T) {
	r := newTestRegistry(t)

	t.Run("names keep registration order", func(t *testing.T) {
		assert.Equal(t, []string{"alpha", "beta"}, r.Names())
		assert.Equal(t, []string{"alpha", "beta"}, r.Planned())
		assert.True(t, r.Has("alpha"))
		assert.False(t, r.Has("gamma"))
	})

	t.Run("duplicate registration", func(t *testing.T) {
		err := r.Register("alpha", func() *types.Class { return &types.Class{} })
		require.Error(t, err)
		require.Error(t, r.Register("", func() *types.Class { return &types.Class{} }))
		require.Error(t, r.Register("nil", nil))
	})

	t.Run("fresh class per call", func(t *testing.T) {
		a, err := r.Class("alpha")
		require.NoError(t, err)
		b, err := r.Class("alpha")
		require.NoError(t, err)
		assert.NotSame(t, a, b)
		assert.Equal(t, "alpha", a.Name, "name defaults to the registered name")
	})

	t.Run("unknown class", func(t *testing.T) {
		_, err := r.Class("gamma")
		require.ErrorIs(t, err, ErrUnknownClass)
	})

	t.Run("duplicate method names", func(t *testing.T) {
		require.NoError(t, r.Register("dup", func() *types.Class {
			return &types.Class{Methods: []types.Method{{Name: "TestA"}, {Name: "TestA"}}}
		}))
		_, err := r.Class("dup")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "duplicate method TestA")
	})
}

func TestLoadPlan(t *testing.T) {
	yamlPlan := `
classes:
  - name: beta
    sequential: true
    timeout: 5s
  - name: alpha
    tag: nightly
    skip: true
    skip_reason: "needs l2"
`
	tomlPlan := `
[[classes]]
name = "beta"
sequential = true
timeout = "5s"

[[classes]]
name = "alpha"
tag = "nightly"
skip = true
skip_reason = "needs l2"
`
	tests := []struct {
		name    string
		file    string
		content string
	}{
		{name: "yaml", file: "plan.yaml", content: yamlPlan},
		{name: "toml", file: "plan.toml", content: tomlPlan},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newTestRegistry(t)
			require.NoError(t, r.LoadPlan(writePlan(t, tt.file, tt.content)))

			assert.Equal(t, []string{"beta", "alpha"}, r.Planned())

			beta, err := r.Class("beta")
			require.NoError(t, err)
			require.NotNil(t, beta.Sequential)
			assert.True(t, *beta.Sequential)
			assert.Equal(t, 5*time.Second, beta.Timeout)

			alpha, err := r.Class("alpha")
			require.NoError(t, err)
			assert.Equal(t, "nightly", alpha.Tag)
			assert.True(t, alpha.Skip)
			assert.Equal(t, "needs l2", alpha.SkipReason)
			assert.Nil(t, alpha.Sequential)
		})
	}
}

func TestLoadPlanErrors(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
		errMsg  string
	}{
		{
			name:    "unknown class",
			file:    "plan.yaml",
			content: "classes:\n  - name: gamma\n",
			errMsg:  "unknown test class: gamma",
		},
		{
			name:    "planned twice",
			file:    "plan.yaml",
			content: "classes:\n  - name: alpha\n  - name: alpha\n",
			errMsg:  "planned twice",
		},
		{
			name:    "unsupported extension",
			file:    "plan.json",
			content: "{}",
			errMsg:  "unsupported plan file extension",
		},
		{
			name:    "malformed yaml",
			file:    "plan.yml",
			content: "classes: [",
			errMsg:  "failed to parse yaml plan",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newTestRegistry(t)
			err := r.LoadPlan(writePlan(t, tt.file, tt.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}

	t.Run("missing file", func(t *testing.T) {
		r := newTestRegistry(t)
		require.Error(t, r.LoadPlan(filepath.Join(t.TempDir(), "missing.yaml")))
	})
}
