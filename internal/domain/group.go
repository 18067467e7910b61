package domain

import "time"

// GroupItem is one named preset inside a group.
type GroupItem struct {
	Name      string                `json:"name" yaml:"name"`
	Remark    string                `json:"remark" yaml:"remark,omitempty"`
	Selected  bool                  `json:"selected" yaml:"selected,omitempty"`
	Variables []EnvironmentVariable `json:"envList" yaml:"variables"`
}

// Group is a named collection of alternative presets.
// The group owns its items; items are never shared between groups.
type Group struct {
	Name      string      `json:"name" yaml:"name"`
	Remark    string      `json:"remark" yaml:"remark,omitempty"`
	Items     []GroupItem `json:"itemList" yaml:"items"`
	CreatedAt time.Time   `json:"createdAt,omitzero" yaml:"-"`
	UpdatedAt time.Time   `json:"updatedAt,omitzero" yaml:"-"`
}

// FindItem returns the item with exactly the given name.
func (g *Group) FindItem(name string) (*GroupItem, bool) {
	for i := range g.Items {
		if g.Items[i].Name == name {
			return &g.Items[i], true
		}
	}
	return nil, false
}

// DefaultItem resolves the item to propose first when switching.
// Stored data may mark zero or several items as selected; the first selected
// item in stored order wins, then the first item overall. An empty group has
// no default.
func (g *Group) DefaultItem() (*GroupItem, bool) {
	for i := range g.Items {
		if g.Items[i].Selected {
			return &g.Items[i], true
		}
	}
	if len(g.Items) > 0 {
		return &g.Items[0], true
	}
	return nil, false
}

// Clone returns a deep copy of the group.
func (g *Group) Clone() *Group {
	c := *g
	c.Items = make([]GroupItem, len(g.Items))
	for i, item := range g.Items {
		c.Items[i] = item
		if item.Variables != nil {
			c.Items[i].Variables = make([]EnvironmentVariable, len(item.Variables))
			copy(c.Items[i].Variables, item.Variables)
		}
	}
	return &c
}

// ActivationRequest asks for an item of a group to become the live environment.
type ActivationRequest struct {
	GroupName string `json:"groupName"`
	ItemName  string `json:"itemName"`
}

// ActivationResponse is returned after a successful activation.
type ActivationResponse struct {
	ActivationID string     `json:"activationId,omitempty"`
	Applied      AppliedSet `json:"applied"`
}
