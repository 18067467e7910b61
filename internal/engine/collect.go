package engine

import (
	"fmt"
	"strings"

	"github.com/bcnelson/env-manager/internal/domain"
	"github.com/bcnelson/env-manager/internal/validation"
)

// CollectGroup turns edited group input into a group ready to be saved.
//
// Incomplete rows are ignored rather than rejected: items with a blank name
// are dropped, and variable rows with a blank name or value are dropped from
// their item. A blank group name, an unknown scope, a malformed variable or a
// repeated item name fail with validation errors. No I/O happens here.
func CollectGroup(input domain.Group) (*domain.Group, error) {
	var errs validation.ValidationErrors

	group := &domain.Group{
		Name:   strings.TrimSpace(input.Name),
		Remark: strings.TrimSpace(input.Remark),
		Items:  make([]domain.GroupItem, 0, len(input.Items)),
	}
	if err := validation.ValidateGroupName(group.Name); err != nil {
		errs.Add("name", input.Name, err.Error())
	}

	seen := make(map[string]bool, len(input.Items))
	for i, in := range input.Items {
		name := strings.TrimSpace(in.Name)
		if name == "" {
			continue
		}
		field := fmt.Sprintf("itemList[%d]", i)
		if err := validation.ValidateGroupName(name); err != nil {
			errs.Add(field+".name", name, err.Error())
			continue
		}
		if seen[name] {
			errs.Add(field+".name", name, "duplicate item name")
			continue
		}
		seen[name] = true

		item := domain.GroupItem{
			Name:      name,
			Remark:    strings.TrimSpace(in.Remark),
			Selected:  in.Selected,
			Variables: make([]domain.EnvironmentVariable, 0, len(in.Variables)),
		}
		for j, row := range in.Variables {
			v, ok, err := collectVariable(row)
			if err != nil {
				errs.Add(fmt.Sprintf("%s.envList[%d]", field, j), row.Name, err.Error())
				continue
			}
			if ok {
				item.Variables = append(item.Variables, v)
			}
		}
		group.Items = append(group.Items, item)
	}

	if err := errs.Err(); err != nil {
		return nil, err
	}
	return group, nil
}

func collectVariable(row domain.EnvironmentVariable) (domain.EnvironmentVariable, bool, error) {
	name := strings.TrimSpace(row.Name)
	value := strings.TrimSpace(row.Value)
	if name == "" || value == "" {
		return domain.EnvironmentVariable{}, false, nil
	}
	scope, err := domain.ParseScope(string(row.Scope))
	if err != nil {
		return domain.EnvironmentVariable{}, false, err
	}
	v := domain.EnvironmentVariable{
		Name:   name,
		Value:  value,
		Scope:  scope,
		Remark: strings.TrimSpace(row.Remark),
	}
	if err := validation.ValidateVariable(v); err != nil {
		return domain.EnvironmentVariable{}, false, err
	}
	return v, true, nil
}
