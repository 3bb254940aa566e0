package plugins

import (
	"fmt"
	"strings"
)

// ValidateDescriptor checks a descriptor's required fields and shape.
// It returns every problem found; an empty slice means the descriptor is valid.
func ValidateDescriptor(d *Descriptor) []ValidationError {
	if d == nil {
		return []ValidationError{{
			Field:   "descriptor",
			Message: "descriptor is nil",
		}}
	}

	var errors []ValidationError
	id := d.ID

	// Required fields
	if strings.TrimSpace(d.ID) == "" {
		errors = append(errors, ValidationError{
			Field:   "id",
			Message: "plugin ID is required",
		})
	}

	if strings.TrimSpace(d.Version) == "" {
		errors = append(errors, ValidationError{
			PluginID: id,
			Field:    "version",
			Message:  "version is required",
		})
	}

	for name := range d.Components {
		if name == "" {
			errors = append(errors, ValidationError{
				PluginID: id,
				Field:    "components",
				Message:  "component name must not be empty",
			})
		}
	}

	for name, hook := range d.Hooks {
		if name == "" {
			errors = append(errors, ValidationError{
				PluginID: id,
				Field:    "hooks",
				Message:  "hook name must not be empty",
			})
			continue
		}
		if hook == nil {
			errors = append(errors, ValidationError{
				PluginID: id,
				Field:    "hooks",
				Message:  fmt.Sprintf("hook %q has no function", name),
			})
		}
	}

	seen := make(map[string]bool, len(d.Dependencies))
	for _, dep := range d.Dependencies {
		switch {
		case strings.TrimSpace(dep) == "":
			errors = append(errors, ValidationError{
				PluginID: id,
				Field:    "dependencies",
				Message:  "dependency ID must not be empty",
			})
		case dep == d.ID:
			// rejected in every mode, so the resolver never sees a one-node cycle
			errors = append(errors, ValidationError{
				PluginID: id,
				Field:    "dependencies",
				Message:  "plugin cannot depend on itself",
			})
		case seen[dep]:
			errors = append(errors, ValidationError{
				PluginID: id,
				Field:    "dependencies",
				Message:  fmt.Sprintf("dependency %q listed more than once", dep),
			})
		}
		seen[dep] = true
	}

	for i, route := range d.Routes {
		if route.Path == "" {
			errors = append(errors, ValidationError{
				PluginID: id,
				Field:    fmt.Sprintf("routes[%d].path", i),
				Message:  "route path is required",
			})
		}
	}

	return errors
}
