package registry

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/ethereum-optimism/infra/op-testqueue/types"
	"github.com/ethereum/go-ethereum/log"
	"gopkg.in/yaml.v3"
)

// ErrUnknownClass is returned when a class name has no registered factory
var ErrUnknownClass = errors.New("unknown test class")

// Factory builds a fresh class value. It is invoked once per job so that
// runs never share class state.
type Factory func() *types.Class

// ClassPlan overrides the registered settings of one class
type ClassPlan struct {
	Name       string        `yaml:"name" toml:"name"`
	Tag        string        `yaml:"tag,omitempty" toml:"tag"`
	Sequential *bool         `yaml:"sequential,omitempty" toml:"sequential"`
	Skip       bool          `yaml:"skip,omitempty" toml:"skip"`
	SkipReason string        `yaml:"skip_reason,omitempty" toml:"skip_reason"`
	Timeout    time.Duration `yaml:"timeout,omitempty" toml:"timeout"`
}

// Plan is the content of a plan file. The order of Classes is the order in
// which classes are run when no explicit selection is made.
type Plan struct {
	Classes []ClassPlan `yaml:"classes" toml:"classes"`
}

// Registry maps class names to their factories and plan overrides
type Registry struct {
	log       log.Logger
	mu        sync.RWMutex
	names     []string
	factories map[string]Factory
	plan      []ClassPlan
}

// Config contains registry configuration
type Config struct {
	Log log.Logger
}

// NewRegistry creates an empty registry
func NewRegistry(cfg Config) *Registry {
	if cfg.Log == nil {
		cfg.Log = log.New()
		cfg.Log.Error("No logger provided, using default")
	}
	return &Registry{
		log:       cfg.Log.New("component", "registry"),
		factories: make(map[string]Factory),
	}
}

// Register adds a class factory under name. Names are unique.
func (r *Registry) Register(name string, factory Factory) error {
	if name == "" {
		return fmt.Errorf("class name is required")
	}
	if factory == nil {
		return fmt.Errorf("class %s: factory is required", name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.factories[name]; exists {
		return fmt.Errorf("class %s is already registered", name)
	}
	r.factories[name] = factory
	r.names = append(r.names, name)
	return nil
}

// MustRegister is like Register but panics on error
func (r *Registry) MustRegister(name string, factory Factory) {
	if err := r.Register(name, factory); err != nil {
		panic(err)
	}
}

// Names returns the registered class names in registration order
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.names...)
}

// Has reports whether a class is registered under name
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.factories[name]
	return ok
}

// Planned returns the class names of the loaded plan in plan order,
// or every registered name when no plan is loaded.
func (r *Registry) Planned() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if len(r.plan) == 0 {
		return append([]string(nil), r.names...)
	}
	names := make([]string, 0, len(r.plan))
	for _, p := range r.plan {
		names = append(names, p.Name)
	}
	return names
}

// Class builds a fresh class from its factory and applies the plan overrides.
func (r *Registry) Class(name string) (*types.Class, error) {
	r.mu.RLock()
	factory, ok := r.factories[name]
	var override *ClassPlan
	for i := range r.plan {
		if r.plan[i].Name == name {
			override = &r.plan[i]
			break
		}
	}
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownClass, name)
	}
	cls := factory()
	if cls == nil {
		return nil, fmt.Errorf("class %s: factory returned nil", name)
	}
	if cls.Name == "" {
		cls.Name = name
	}
	if err := cls.Validate(); err != nil {
		return nil, err
	}
	if override != nil {
		override.apply(cls)
	}
	return cls, nil
}

func (p *ClassPlan) apply(cls *types.Class) {
	if p.Tag != "" {
		cls.Tag = p.Tag
	}
	if p.Sequential != nil {
		cls.Sequential = types.Bool(*p.Sequential)
	}
	if p.Skip {
		cls.Skip = true
		cls.SkipReason = p.SkipReason
	}
	if p.Timeout > 0 {
		cls.Timeout = p.Timeout
	}
}

// LoadPlan reads a YAML or TOML plan file and installs its overrides.
// Every class named in the plan must already be registered.
func (r *Registry) LoadPlan(path string) error {
	plan, err := loadPlan(path)
	if err != nil {
		return fmt.Errorf("failed to load plan: %w", err)
	}
	return r.SetPlan(plan)
}

// SetPlan validates and installs a plan
func (r *Registry) SetPlan(plan *Plan) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	seen := make(map[string]bool)
	for _, p := range plan.Classes {
		if _, ok := r.factories[p.Name]; !ok {
			return fmt.Errorf("%w: %s", ErrUnknownClass, p.Name)
		}
		if seen[p.Name] {
			return fmt.Errorf("class %s is planned twice", p.Name)
		}
		if p.Timeout < 0 {
			return fmt.Errorf("class %s: timeout cannot be negative", p.Name)
		}
		seen[p.Name] = true
	}
	r.plan = append([]ClassPlan(nil), plan.Classes...)
	r.log.Debug("Plan loaded", "classes", len(r.plan))
	return nil
}

func loadPlan(path string) (*Plan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read plan file: %w", err)
	}

	var plan Plan
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &plan); err != nil {
			return nil, fmt.Errorf("failed to parse yaml plan: %w", err)
		}
	case ".toml":
		if _, err := toml.Decode(string(data), &plan); err != nil {
			return nil, fmt.Errorf("failed to parse toml plan: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported plan file extension %q", filepath.Ext(path))
	}
	return &plan, nil
}
