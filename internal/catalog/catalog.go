// Package catalog defines which setup tasks exist: their categories,
// prerequisite links, shell commands, and wizard step definitions. A built-in
// Ubuntu server catalog ships with the binary; a YAML file can replace it.
package catalog

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"setuptask/internal/core"
	"setuptask/internal/wizard"
)

// StepSpec declares one wizard step for a task.
type StepSpec struct {
	Field     string   `yaml:"field"`
	Prompt    string   `yaml:"prompt"`
	Validator string   `yaml:"validator,omitempty"`
	Options   []string `yaml:"options,omitempty"`
	Default   string   `yaml:"default,omitempty"`
	Required  bool     `yaml:"required,omitempty"`
}

// TaskSpec declares one task.
type TaskSpec struct {
	ID           string     `yaml:"id"`
	Category     string     `yaml:"category"`
	Name         string     `yaml:"name"`
	Description  string     `yaml:"description,omitempty"`
	Prerequisite string     `yaml:"prerequisite,omitempty"`
	Command      string     `yaml:"command"`
	WorkingDir   string     `yaml:"working_dir,omitempty"`
	Steps        []StepSpec `yaml:"steps,omitempty"`
}

// CategorySpec declares one display category.
type CategorySpec struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`
}

// Catalog is the full task table in declaration order.
type Catalog struct {
	Categories []CategorySpec `yaml:"categories"`
	Tasks      []TaskSpec     `yaml:"tasks"`
}

var validatorKinds = map[string]wizard.Kind{
	string(wizard.KindEmail):    wizard.KindEmail,
	string(wizard.KindIPv4):     wizard.KindIPv4,
	string(wizard.KindPort):     wizard.KindPort,
	string(wizard.KindDomain):   wizard.KindDomain,
	string(wizard.KindUsername): wizard.KindUsername,
	string(wizard.KindPassword): wizard.KindPassword,
	string(wizard.KindPath):     wizard.KindPath,
	string(wizard.KindBoolean):  wizard.KindBoolean,
	string(wizard.KindInteger):  wizard.KindInteger,
	string(wizard.KindFreeform): wizard.KindFreeform,
}

// Load reads a catalog from a YAML file and checks its step declarations.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	if err := c.check(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Catalog) check() error {
	for _, task := range c.Tasks {
		if task.ID == "" {
			return fmt.Errorf("catalog task %q: missing id", task.Name)
		}
		if task.Command == "" {
			return fmt.Errorf("catalog task %s: missing command", task.ID)
		}
		for _, step := range task.Steps {
			if step.Field == "" {
				return fmt.Errorf("catalog task %s: step with no field name", task.ID)
			}
			if len(step.Options) > 0 {
				continue
			}
			if _, ok := validatorKinds[step.Validator]; !ok {
				return fmt.Errorf("catalog task %s field %s: unknown validator %q", task.ID, step.Field, step.Validator)
			}
		}
	}
	return nil
}

// BuildRegistry constructs and validates a task registry from the catalog.
// Any registry error here is fatal configuration and must block startup.
func (c *Catalog) BuildRegistry() (*core.Registry, error) {
	registry := core.NewRegistry()
	for _, category := range c.Categories {
		if err := registry.RegisterCategory(core.Category{ID: category.ID, DisplayName: category.Name}); err != nil {
			return nil, err
		}
	}
	for _, spec := range c.Tasks {
		task := core.Task{
			ID:          spec.ID,
			CategoryID:  spec.Category,
			DisplayName: spec.Name,
			Description: spec.Description,
			Executor:    core.ExecutorRef{Command: spec.Command},
		}
		if spec.Prerequisite != "" {
			prereq := spec.Prerequisite
			task.PrerequisiteID = &prereq
		}
		if spec.WorkingDir != "" {
			dir := spec.WorkingDir
			task.Executor.WorkingDir = &dir
		}
		if err := registry.Register(task); err != nil {
			return nil, err
		}
	}
	if err := registry.Validate(); err != nil {
		return nil, err
	}
	return registry, nil
}

// WizardDefinition builds the wizard step list for a task. ok is false when
// the task is unknown; a task with no steps yields an empty definition that
// reviews immediately.
func (c *Catalog) WizardDefinition(taskID string) (wizard.Definition, bool) {
	for _, task := range c.Tasks {
		if task.ID != taskID {
			continue
		}
		def := wizard.Definition{Name: task.ID}
		for _, step := range task.Steps {
			def.Steps = append(def.Steps, wizard.Step{
				Field:    step.Field,
				Prompt:   step.Prompt,
				Kind:     validatorKinds[step.Validator],
				Options:  step.Options,
				Default:  step.Default,
				Required: step.Required,
			})
		}
		return def, true
	}
	return wizard.Definition{}, false
}
