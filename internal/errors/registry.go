package errors

import "sort"

// ErrorTemplate defines a registered error type.
type ErrorTemplate struct {
	Category Category
	Message  string
	DocURL   string
}

// registry maps error codes to their templates.
var registry = map[string]ErrorTemplate{
	// ============================================
	// Manifest Errors (E100-E119)
	// ============================================

	"E100": {
		Category: CategoryNotReady,
		Message:  "Manifest not yet ready",
		DocURL:   "https://devstack.dev/docs/errors/E100",
	},
	"E101": {
		Category: CategoryInvalidArgument,
		Message:  "Invalid argument",
		DocURL:   "https://devstack.dev/docs/errors/E101",
	},
	"E102": {
		Category: CategoryNotFound,
		Message:  "Entry not found",
		DocURL:   "https://devstack.dev/docs/errors/E102",
	},
	"E103": {
		Category: CategoryInvalidArgument,
		Message:  "Router mode doesn't have a manifest",
		DocURL:   "https://devstack.dev/docs/errors/E103",
	},
	"E104": {
		Category: CategoryNotFound,
		Message:  "Router not found",
		DocURL:   "https://devstack.dev/docs/errors/E104",
	},
	"E105": {
		Category: CategoryRuntime,
		Message:  "Manifest already installed",
		DocURL:   "https://devstack.dev/docs/errors/E105",
	},
	"E106": {
		Category: CategoryRuntime,
		Message:  "Asset computation failed",
		DocURL:   "https://devstack.dev/docs/errors/E106",
	},

	// ============================================
	// Configuration Errors (E120-E139)
	// ============================================

	"E120": {
		Category: CategoryConfig,
		Message:  "Invalid configuration file",
		DocURL:   "https://devstack.dev/docs/errors/E120",
	},
	"E121": {
		Category: CategoryConfig,
		Message:  "Router references an unknown bundler",
		DocURL:   "https://devstack.dev/docs/errors/E121",
	},
	"E122": {
		Category: CategoryConfig,
		Message:  "Invalid port",
		DocURL:   "https://devstack.dev/docs/errors/E122",
	},
	"E123": {
		Category: CategoryConfig,
		Message:  "Unknown router mode",
		DocURL:   "https://devstack.dev/docs/errors/E123",
	},
	"E124": {
		Category: CategoryConfig,
		Message:  "Unknown bundler target",
		DocURL:   "https://devstack.dev/docs/errors/E124",
	},
	"E125": {
		Category: CategoryConfig,
		Message:  "Unknown plugin",
		DocURL:   "https://devstack.dev/docs/errors/E125",
	},
	"E126": {
		Category: CategoryConfig,
		Message:  "File router scan failed",
		DocURL:   "https://devstack.dev/docs/errors/E126",
	},

	// ============================================
	// CLI Errors (E140-E149)
	// ============================================

	"E140": {
		Category: CategoryCLI,
		Message:  "Dev server already started",
		DocURL:   "https://devstack.dev/docs/errors/E140",
	},
	"E141": {
		Category: CategoryCLI,
		Message:  "Configuration file not found",
		DocURL:   "https://devstack.dev/docs/errors/E141",
	},

	// ============================================
	// Dev Server Errors (E150-E169)
	// ============================================

	"E150": {
		Category: CategoryStartup,
		Message:  "Dev server startup failed",
		DocURL:   "https://devstack.dev/docs/errors/E150",
	},
	"E151": {
		Category: CategoryStartup,
		Message:  "Reload channel unavailable",
		DocURL:   "https://devstack.dev/docs/errors/E151",
	},
	"E152": {
		Category: CategoryRuntime,
		Message:  "Module load failed",
		DocURL:   "https://devstack.dev/docs/errors/E152",
	},
	"E153": {
		Category: CategoryRuntime,
		Message:  "Build failed",
		DocURL:   "https://devstack.dev/docs/errors/E153",
	},
	"E154": {
		Category: CategoryRuntime,
		Message:  "Style collection failed",
		DocURL:   "https://devstack.dev/docs/errors/E154",
	},
}

// GetAllCodes returns all registered error codes, sorted.
func GetAllCodes() []string {
	codes := make([]string, 0, len(registry))
	for code := range registry {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}

// GetTemplate returns the template for an error code.
func GetTemplate(code string) (ErrorTemplate, bool) {
	t, ok := registry[code]
	return t, ok
}

// Register adds a new error template to the registry.
func Register(code string, template ErrorTemplate) {
	registry[code] = template
}
