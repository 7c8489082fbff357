package xalert

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/omeyang/xautometrics/pkg/autometrics/xobjective"
	"github.com/omeyang/xautometrics/pkg/autometrics/xregistry"
)

// File 是 Prometheus 规则文件。
type File struct {
	Groups []Group `yaml:"groups"`
}

// Group 是规则组。
type Group struct {
	Name     string `yaml:"name"`
	Interval string `yaml:"interval,omitempty"`
	Rules    []Rule `yaml:"rules"`
}

// Rule 是规则文件中的一条记录规则或告警规则。
type Rule struct {
	Record      string            `yaml:"record,omitempty"`
	Alert       string            `yaml:"alert,omitempty"`
	Expr        string            `yaml:"expr"`
	For         string            `yaml:"for,omitempty"`
	Labels      map[string]string `yaml:"labels,omitempty"`
	Annotations map[string]string `yaml:"annotations,omitempty"`
}

// Rule 转换为规则文件条目。
func (r AlertRule) Rule() Rule {
	return Rule{
		Alert:       r.Name,
		Expr:        r.Expr,
		Labels:      r.Labels,
		Annotations: r.Annotations,
	}
}

// Rule 转换为规则文件条目。
func (r RecordingRule) Rule() Rule {
	return Rule{
		Record: r.Record,
		Expr:   r.Expr,
		Labels: r.Labels,
	}
}

// Groups 为每个目标生成一个规则组：先记录规则，后告警规则。
func Groups(objectives []xobjective.Objective, opts ...Option) []Group {
	recording := Recording(objectives, opts...)
	alerts := Generate(objectives, opts...)

	var groups []Group
	for _, obj := range sortedObjectives(objectives) {
		g := Group{Name: "autometrics-slo-" + obj.Name()}
		for _, r := range recording {
			if r.Objective == obj.Name() {
				g.Rules = append(g.Rules, r.Rule())
			}
		}
		for _, r := range alerts {
			if r.Objective == obj.Name() {
				g.Rules = append(g.Rules, r.Rule())
			}
		}
		groups = append(groups, g)
	}
	return groups
}

// GroupsFromRegistry 读取 Registry 并生成规则组。
func GroupsFromRegistry(r *xregistry.Registry, opts ...Option) ([]Group, error) {
	objs, err := registryObjectives(r)
	if err != nil {
		return nil, err
	}
	return Groups(objs, opts...), nil
}

// RuleFile 把规则组渲染为 Prometheus 规则文件 YAML。
func RuleFile(groups []Group) ([]byte, error) {
	if groups == nil {
		groups = []Group{}
	}
	out, err := yaml.Marshal(File{Groups: groups})
	if err != nil {
		return nil, fmt.Errorf("xalert: render rule file: %w", err)
	}
	return out, nil
}
