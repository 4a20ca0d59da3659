package cors

import (
	_ "embed"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/benvon/originguard/internal/validation"
	"gopkg.in/yaml.v3"
)

//go:embed default_policy.yaml
var defaultPolicy []byte

// OriginList is the allowed origin configuration of one environment.
type OriginList struct {
	Origins  []string `yaml:"origins" validate:"dive,required,web_origin"`
	Patterns []string `yaml:"patterns" validate:"dive,required,regex_pattern"`
}

// Policy maps deployment environment names to their origin lists.
type Policy struct {
	Environments map[string]OriginList `yaml:"environments" validate:"required,min=1,dive"`
}

// DefaultPolicy returns the policy compiled into the binary.
func DefaultPolicy() (*Policy, error) {
	return ParsePolicy(defaultPolicy)
}

// LoadPolicy reads a policy file, or the built-in default when path is empty.
func LoadPolicy(path string) (*Policy, error) {
	if path == "" {
		return DefaultPolicy()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read cors policy: %w", err)
	}
	return ParsePolicy(data)
}

// ParsePolicy decodes and validates a YAML policy document. Every regular
// expression is compiled here so bad patterns fail at startup.
func ParsePolicy(data []byte) (*Policy, error) {
	var p Policy
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("decode cors policy: %w", err)
	}
	if err := validation.Validate.Struct(&p); err != nil {
		return nil, fmt.Errorf("invalid cors policy: %w", err)
	}
	for env, list := range p.Environments {
		for _, expr := range list.Patterns {
			if _, err := Regex(expr); err != nil {
				return nil, fmt.Errorf("environment %q: %w", env, err)
			}
		}
	}
	return &p, nil
}

// EnvironmentNames lists the configured environments in sorted order.
func (p *Policy) EnvironmentNames() []string {
	names := make([]string, 0, len(p.Environments))
	for name := range p.Environments {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// OriginSet builds the allowed origin set for env: the environment's literal
// origins, then its patterns, then frontendURL if set, then extra.
func (p *Policy) OriginSet(env, frontendURL string, extra ...Pattern) ([]Pattern, error) {
	list, ok := p.Environments[env]
	if !ok {
		return nil, fmt.Errorf("cors policy has no environment %q (have %s)", env, strings.Join(p.EnvironmentNames(), ", "))
	}
	set := make([]Pattern, 0, len(list.Origins)+len(list.Patterns)+1+len(extra))
	for _, o := range list.Origins {
		set = append(set, Exact(o))
	}
	for _, expr := range list.Patterns {
		pat, err := Regex(expr)
		if err != nil {
			return nil, fmt.Errorf("environment %q: %w", env, err)
		}
		set = append(set, pat)
	}
	if f := strings.TrimSpace(frontendURL); f != "" {
		set = append(set, Exact(f))
	}
	return append(set, extra...), nil
}

// NewAuthorizerForEnv is a convenience wrapper around OriginSet and NewAuthorizer.
func (p *Policy) NewAuthorizerForEnv(env, frontendURL string, extra ...Pattern) (*Authorizer, error) {
	set, err := p.OriginSet(env, frontendURL, extra...)
	if err != nil {
		return nil, err
	}
	return NewAuthorizer(set...), nil
}
