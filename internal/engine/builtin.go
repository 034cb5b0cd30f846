package engine

// Built-in platform tools run inside the platform itself and never carry
// external data, so they bypass policy evaluation entirely: always trusted,
// always allowed.
var builtinTools = map[string]struct{}{
	"get_current_datetime":  {},
	"list_available_tools":  {},
	"memory_read":           {},
	"memory_write":          {},
	"conversation_metadata": {},
}

// IsBuiltinTool reports whether toolName is a built-in platform tool.
func IsBuiltinTool(toolName string) bool {
	_, ok := builtinTools[toolName]
	return ok
}
