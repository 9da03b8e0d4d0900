package route

import "github.com/atlo/dashboard/pkg/core"

// AllTypes selects every activity type.
const AllTypes = "All"

// Filter keeps the activities of the given type. An empty type or AllTypes
// keeps everything.
func Filter(activities []core.Activity, activityType string) []core.Activity {
	if activityType == "" || activityType == AllTypes {
		return activities
	}
	out := make([]core.Activity, 0, len(activities))
	for _, a := range activities {
		if matchesType(a, activityType) {
			out = append(out, a)
		}
	}
	return out
}

func matchesType(a core.Activity, activityType string) bool {
	return activityType == "" || activityType == AllTypes || a.Type == activityType
}

// Types lists AllTypes followed by the distinct activity types in first-seen
// order.
func Types(activities []core.Activity) []string {
	seen := make(map[string]struct{}, 8)
	out := []string{AllTypes}
	for _, a := range activities {
		if a.Type == "" {
			continue
		}
		if _, ok := seen[a.Type]; ok {
			continue
		}
		seen[a.Type] = struct{}{}
		out = append(out, a.Type)
	}
	return out
}
