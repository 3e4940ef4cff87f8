package config

import (
	"time"

	"github.com/kbukum/resilience/logger"
	"github.com/kbukum/resilience/validation"
)

// Breaker declares a named circuit breaker policy.
type Breaker struct {
	FailureThreshold int           `yaml:"failure_threshold" mapstructure:"failure_threshold" validate:"min=1"`
	SuccessThreshold int           `yaml:"success_threshold" mapstructure:"success_threshold" validate:"min=1"`
	CallTimeout      time.Duration `yaml:"call_timeout" mapstructure:"call_timeout" validate:"min=0"`
	ResetTimeout     time.Duration `yaml:"reset_timeout" mapstructure:"reset_timeout" validate:"min=1ms"`
	WindowKind       string        `yaml:"window_kind" mapstructure:"window_kind" validate:"oneof=count time"`
	WindowSize       int           `yaml:"window_size" mapstructure:"window_size" validate:"min=0"`
	WindowSpan       time.Duration `yaml:"window_span" mapstructure:"window_span" validate:"min=0"`
	MetricsWindow    time.Duration `yaml:"metrics_window" mapstructure:"metrics_window" validate:"min=0"`
}

// ApplyDefaults fills unset breaker fields.
func (b *Breaker) ApplyDefaults() {
	if b.FailureThreshold == 0 {
		b.FailureThreshold = 5
	}
	if b.SuccessThreshold == 0 {
		b.SuccessThreshold = 1
	}
	if b.ResetTimeout == 0 {
		b.ResetTimeout = 30 * time.Second
	}
	if b.WindowKind == "" {
		b.WindowKind = "count"
	}
	if b.WindowKind == "count" && b.WindowSize == 0 {
		b.WindowSize = 10
	}
	if b.WindowKind == "time" && b.WindowSpan == 0 {
		b.WindowSpan = time.Minute
	}
	if b.MetricsWindow == 0 {
		b.MetricsWindow = time.Minute
	}
}

// Retry declares a named retry policy.
type Retry struct {
	MaxAttempts int           `yaml:"max_attempts" mapstructure:"max_attempts" validate:"min=0"`
	Strategy    string        `yaml:"strategy" mapstructure:"strategy" validate:"oneof=fixed linear exponential"`
	BaseDelay   time.Duration `yaml:"base_delay" mapstructure:"base_delay" validate:"min=1ms"`
	MaxDelay    time.Duration `yaml:"max_delay" mapstructure:"max_delay" validate:"min=1ms"`
	Jitter      bool          `yaml:"jitter" mapstructure:"jitter"`
}

// ApplyDefaults fills unset retry fields.
func (r *Retry) ApplyDefaults() {
	if r.MaxAttempts == 0 {
		r.MaxAttempts = 3
	}
	if r.Strategy == "" {
		r.Strategy = "exponential"
	}
	if r.BaseDelay == 0 {
		r.BaseDelay = 100 * time.Millisecond
	}
	if r.MaxDelay == 0 {
		r.MaxDelay = 10 * time.Second
	}
}

// Bulkhead declares a named bulkhead policy.
type Bulkhead struct {
	MaxConcurrent int           `yaml:"max_concurrent" mapstructure:"max_concurrent" validate:"min=1"`
	MaxQueue      int           `yaml:"max_queue" mapstructure:"max_queue" validate:"min=0"`
	QueueTimeout  time.Duration `yaml:"queue_timeout" mapstructure:"queue_timeout" validate:"min=0"`
}

// ApplyDefaults fills unset bulkhead fields.
func (b *Bulkhead) ApplyDefaults() {
	if b.MaxConcurrent == 0 {
		b.MaxConcurrent = 10
	}
}

// Limiter declares a named rate limiter policy.
type Limiter struct {
	Strategy   string        `yaml:"strategy" mapstructure:"strategy" validate:"oneof=token_bucket sliding_window"`
	Max        int           `yaml:"max" mapstructure:"max" validate:"min=1"`
	Window     time.Duration `yaml:"window" mapstructure:"window" validate:"min=1ms"`
	RefillRate float64       `yaml:"refill_rate" mapstructure:"refill_rate" validate:"min=0"`
}

// ApplyDefaults fills unset limiter fields.
func (l *Limiter) ApplyDefaults() {
	if l.Strategy == "" {
		l.Strategy = "token_bucket"
	}
	if l.Max == 0 {
		l.Max = 10
	}
	if l.Window == 0 {
		l.Window = time.Second
	}
}

// Policies is the root configuration document: named resilience policies
// plus logging settings.
type Policies struct {
	Logging   logger.Config       `yaml:"logging" mapstructure:"logging"`
	Breakers  map[string]Breaker  `yaml:"breakers" mapstructure:"breakers"`
	Retries   map[string]Retry    `yaml:"retries" mapstructure:"retries"`
	Bulkheads map[string]Bulkhead `yaml:"bulkheads" mapstructure:"bulkheads"`
	Limiters  map[string]Limiter  `yaml:"limiters" mapstructure:"limiters"`
}

// ApplyDefaults fills unset fields on every declared policy.
func (p *Policies) ApplyDefaults() {
	p.Logging.ApplyDefaults()
	for name, b := range p.Breakers {
		b.ApplyDefaults()
		p.Breakers[name] = b
	}
	for name, r := range p.Retries {
		r.ApplyDefaults()
		p.Retries[name] = r
	}
	for name, b := range p.Bulkheads {
		b.ApplyDefaults()
		p.Bulkheads[name] = b
	}
	for name, l := range p.Limiters {
		l.ApplyDefaults()
		p.Limiters[name] = l
	}
}

// Validate checks every declared policy. Call ApplyDefaults first.
func (p *Policies) Validate() error {
	if err := p.Logging.Validate(); err != nil {
		return err
	}
	for name, b := range p.Breakers {
		if err := validation.Validate(b); err != nil {
			return policyError("breakers", name, err)
		}
	}
	for name, r := range p.Retries {
		if err := validation.Validate(r); err != nil {
			return policyError("retries", name, err)
		}
	}
	for name, b := range p.Bulkheads {
		if err := validation.Validate(b); err != nil {
			return policyError("bulkheads", name, err)
		}
	}
	for name, l := range p.Limiters {
		if err := validation.Validate(l); err != nil {
			return policyError("limiters", name, err)
		}
	}
	return nil
}
