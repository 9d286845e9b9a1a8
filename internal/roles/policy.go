package roles

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/greenroomhq/greenroom/model"
)

// policyFile is the YAML shape for table overrides. Any section left empty
// keeps its built-in default.
type policyFile struct {
	StepRoles       map[int][]string    `yaml:"step_roles"`
	TaskRoles       map[string][]string `yaml:"task_roles"`
	DeadlineOffsets map[string]int      `yaml:"deadline_offsets"`
}

// LoadFile returns the default tables with overrides applied from the YAML
// file at path.
func LoadFile(path string) (*Tables, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("roles: reading policy file %s: %w", path, err)
	}

	var p policyFile
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("roles: parsing policy file %s: %w", path, err)
	}

	t := Defaults()
	if err := t.apply(p); err != nil {
		return nil, fmt.Errorf("roles: policy file %s: %w", path, err)
	}
	return t, nil
}

func (t *Tables) apply(p policyFile) error {
	for step, names := range p.StepRoles {
		if step < 1 || step > len(t.steps) {
			return fmt.Errorf("step_roles: step %d out of range", step)
		}
		rs, err := parseRoleSet(names)
		if err != nil {
			return fmt.Errorf("step_roles[%d]: %w", step, err)
		}
		t.steps[step-1].Roles = rs
	}

	for task, names := range p.TaskRoles {
		tt, ok := model.ParseTaskType(task)
		if !ok {
			return fmt.Errorf("task_roles: unknown task type %q", task)
		}
		rs, err := parseRoleSet(names)
		if err != nil {
			return fmt.Errorf("task_roles[%s]: %w", task, err)
		}
		t.taskRoles[tt] = rs
	}

	for name, days := range p.DeadlineOffsets {
		role, ok := model.ParseRole(name)
		if !ok {
			return fmt.Errorf("deadline_offsets: unknown role %q", name)
		}
		if days < 0 {
			return fmt.Errorf("deadline_offsets[%s]: negative offset", name)
		}
		t.deadlineOffsets[role] = days
	}

	return nil
}

func parseRoleSet(names []string) (model.RoleSet, error) {
	rs := make(model.RoleSet, len(names))
	for _, n := range names {
		role, ok := model.ParseRole(n)
		if !ok {
			return nil, fmt.Errorf("unknown role %q", n)
		}
		rs[role] = true
	}
	return rs, nil
}
