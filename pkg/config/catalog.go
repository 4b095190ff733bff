package config

import "fmt"

// Visibility controls who may see or invoke a Tool or Skill (consumed by C6).
type Visibility string

const (
	VisibilityPublic   Visibility = "public"
	VisibilityInternal Visibility = "internal"
	VisibilityPrivate  Visibility = "private"
)

// ToolKind determines how C3 dispatches a catalog tool.
type ToolKind string

const (
	ToolKindMLModel     ToolKind = "ml_model"
	ToolKindDataAPI     ToolKind = "data_api"
	ToolKindExternalAPI ToolKind = "external_api"
	ToolKindBuiltin     ToolKind = "builtin"
)

// ToolStatus is the lifecycle status of a catalog tool.
type ToolStatus string

const (
	ToolStatusDraft      ToolStatus = "draft"
	ToolStatusActive     ToolStatus = "active"
	ToolStatusDeprecated ToolStatus = "deprecated"
)

// ToolEntryConfig is a Tool catalog entry (§3 DATA MODEL).
type ToolEntryConfig struct {
	ID          string     `yaml:"id,omitempty"`
	Name        string     `yaml:"name,omitempty"`
	DisplayName string     `yaml:"display_name,omitempty"`
	Description string     `yaml:"description,omitempty"`
	Kind        ToolKind   `yaml:"kind,omitempty"`
	Status      ToolStatus `yaml:"status,omitempty"`
	Visibility  Visibility `yaml:"visibility,omitempty"`

	ServiceConfig map[string]interface{} `yaml:"service_config,omitempty"`
	InputSchema   map[string]interface{} `yaml:"input_schema,omitempty"`
	OutputSchema  map[string]interface{} `yaml:"output_schema,omitempty"`
	Examples      []map[string]interface{} `yaml:"examples,omitempty"`

	AllowedDepartments []string `yaml:"allowed_departments,omitempty"`
	AllowedRoles       []string `yaml:"allowed_roles,omitempty"`
	CreatedBy          string   `yaml:"created_by,omitempty"`

	CallCount     int64   `yaml:"call_count,omitempty"`
	AvgLatencyMs  float64 `yaml:"avg_latency_ms,omitempty"`
	SuccessRate   float64 `yaml:"success_rate,omitempty"`
}

// SetDefaults fills in name/status/visibility/kind defaults.
func (t *ToolEntryConfig) SetDefaults(name string) {
	if t.Name == "" {
		t.Name = name
	}
	if t.ID == "" {
		t.ID = name
	}
	if t.DisplayName == "" {
		t.DisplayName = t.Name
	}
	if t.Status == "" {
		t.Status = ToolStatusActive
	}
	if t.Visibility == "" {
		t.Visibility = VisibilityPublic
	}
	if t.Kind == "" {
		t.Kind = ToolKindBuiltin
	}
}

// Validate checks required fields per kind, per §4.3 dispatch requirements.
func (t *ToolEntryConfig) Validate() error {
	if t.Name == "" {
		return fmt.Errorf("name is required")
	}
	switch t.Kind {
	case ToolKindMLModel:
		if _, ok := t.ServiceConfig["model_id"]; !ok {
			if _, ok := t.ServiceConfig["endpoint"]; !ok {
				return fmt.Errorf("ml_model tool requires service_config.model_id or .endpoint")
			}
		}
	case ToolKindDataAPI:
		if _, ok := t.ServiceConfig["query_template"]; !ok {
			if _, ok := t.ServiceConfig["table_name"]; !ok {
				return fmt.Errorf("data_api tool requires service_config.query_template or .table_name")
			}
		}
	case ToolKindExternalAPI:
		if _, ok := t.ServiceConfig["url"]; !ok {
			return fmt.Errorf("external_api tool requires service_config.url")
		}
	}
	return nil
}

// GetVisibility implements permission.Object.
func (t *ToolEntryConfig) GetVisibility() Visibility { return t.Visibility }

// GetCreatedBy implements permission.Object.
func (t *ToolEntryConfig) GetCreatedBy() string { return t.CreatedBy }

// GetAllowedDepartments implements permission.Object.
func (t *ToolEntryConfig) GetAllowedDepartments() []string { return t.AllowedDepartments }

// GetAllowedRoles implements permission.Object.
func (t *ToolEntryConfig) GetAllowedRoles() []string { return t.AllowedRoles }

// WorkflowNodeConfig is one node of a Skill's DAG (§3 WorkflowNode).
type WorkflowNodeConfig struct {
	ID           string                 `yaml:"id"`
	Tool         string                 `yaml:"tool"`
	DependsOn    []string               `yaml:"depends_on,omitempty"`
	ParamsMapping map[string]interface{} `yaml:"params_mapping,omitempty"`
	Condition    string                 `yaml:"condition,omitempty"`
}

// SkillConfig is a Skill catalog entry (§3 DATA MODEL).
type SkillConfig struct {
	ID          string   `yaml:"id,omitempty"`
	Name        string   `yaml:"name,omitempty"`
	Description string   `yaml:"description,omitempty"`

	Nodes        []WorkflowNodeConfig   `yaml:"nodes,omitempty"`
	OutputMapping map[string]interface{} `yaml:"output_mapping,omitempty"`

	InputSchema  map[string]interface{} `yaml:"input_schema,omitempty"`
	OutputSchema map[string]interface{} `yaml:"output_schema,omitempty"`

	Visibility         Visibility `yaml:"visibility,omitempty"`
	AllowedDepartments []string   `yaml:"allowed_departments,omitempty"`
	AllowedRoles       []string   `yaml:"allowed_roles,omitempty"`
	CreatedBy          string     `yaml:"created_by,omitempty"`
}

// GetVisibility implements permission.Object.
func (s *SkillConfig) GetVisibility() Visibility { return s.Visibility }

// GetCreatedBy implements permission.Object.
func (s *SkillConfig) GetCreatedBy() string { return s.CreatedBy }

// GetAllowedDepartments implements permission.Object.
func (s *SkillConfig) GetAllowedDepartments() []string { return s.AllowedDepartments }

// GetAllowedRoles implements permission.Object.
func (s *SkillConfig) GetAllowedRoles() []string { return s.AllowedRoles }

// Validate checks node id uniqueness and that depends_on references exist.
// Cycle detection itself is C4's responsibility (a pure topological check).
func (s *SkillConfig) Validate() error {
	seen := make(map[string]bool, len(s.Nodes))
	for _, n := range s.Nodes {
		if n.ID == "" {
			return fmt.Errorf("workflow node missing id")
		}
		if seen[n.ID] {
			return fmt.Errorf("duplicate workflow node id %q", n.ID)
		}
		seen[n.ID] = true
	}
	for _, n := range s.Nodes {
		for _, dep := range n.DependsOn {
			if !seen[dep] {
				return fmt.Errorf("node %q depends on unknown node %q", n.ID, dep)
			}
		}
	}
	return nil
}
