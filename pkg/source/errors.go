package source

import "fmt"

// PluginNotFoundError reports a call against a plugin name the manager does
// not have registered.
type PluginNotFoundError struct {
	Name string
}

func (e *PluginNotFoundError) Error() string {
	return fmt.Sprintf("plugin %q not found", e.Name)
}

// PluginDisabledError reports a call against a registered but disabled
// plugin.
type PluginDisabledError struct {
	Name string
}

func (e *PluginDisabledError) Error() string {
	return fmt.Sprintf("plugin %q is disabled", e.Name)
}
