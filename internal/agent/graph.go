package agent

import (
	"fmt"

	"github.com/cruxlabs/crux/internal/model"
)

// Stage is one layer of the resolved role dependency graph. Roles within
// a stage have no dependency on each other and run concurrently; stages
// run in order.
type Stage []model.RoleConfig

// ResolveStages turns the configured role dependency graph into an
// ordered stage list. Resolution happens once at configuration load; a
// cycle or unknown dependency is a configuration error.
func ResolveStages(roles []model.RoleConfig) ([]Stage, error) {
	byRole := make(map[model.Role]model.RoleConfig, len(roles))
	for _, rc := range roles {
		if _, dup := byRole[rc.Role]; dup {
			return nil, fmt.Errorf("role %q configured twice", rc.Role)
		}
		byRole[rc.Role] = rc
	}
	for _, rc := range roles {
		for _, dep := range rc.DependsOn {
			if _, ok := byRole[dep]; !ok {
				return nil, fmt.Errorf("role %q depends on unknown role %q", rc.Role, dep)
			}
		}
	}

	placed := make(map[model.Role]bool, len(roles))
	var stages []Stage

	for len(placed) < len(roles) {
		var stage Stage
		for _, rc := range roles {
			if placed[rc.Role] {
				continue
			}
			ready := true
			for _, dep := range rc.DependsOn {
				if !placed[dep] {
					ready = false
					break
				}
			}
			if ready {
				stage = append(stage, rc)
			}
		}
		if len(stage) == 0 {
			return nil, fmt.Errorf("role dependency cycle involving %d unplaced roles", len(roles)-len(placed))
		}
		for _, rc := range stage {
			placed[rc.Role] = true
		}
		stages = append(stages, stage)
	}

	return stages, nil
}

// FilterStages restricts a resolved stage list to the given role subset,
// dropping roles whose dependencies are not in the subset. Used by the
// scan pipeline's lightweight verification.
func FilterStages(stages []Stage, keep []model.Role) []Stage {
	keepSet := make(map[model.Role]bool, len(keep))
	for _, r := range keep {
		keepSet[r] = true
	}

	var out []Stage
	for _, stage := range stages {
		var filtered Stage
		for _, rc := range stage {
			if !keepSet[rc.Role] {
				continue
			}
			depsKept := true
			for _, dep := range rc.DependsOn {
				if !keepSet[dep] {
					depsKept = false
					break
				}
			}
			if depsKept {
				filtered = append(filtered, rc)
			}
		}
		if len(filtered) > 0 {
			out = append(out, filtered)
		}
	}
	return out
}
