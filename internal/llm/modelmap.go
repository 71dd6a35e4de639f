package llm

// Model identifiers differ per provider. The gateway namespaces vendor
// models under "anthropic/"; the vendor API uses dated snapshot ids.
// The table is fixed and bidirectional; ids without an entry pass
// through unchanged, which is the intentional default for models both
// providers name identically.
var gatewayToVendor = map[string]string{
	"anthropic/claude-sonnet-4":  "claude-sonnet-4-20250514",
	"anthropic/claude-opus-4":    "claude-opus-4-20250514",
	"anthropic/claude-haiku-3.5": "claude-3-5-haiku-20241022",
}

var vendorToGateway = invert(gatewayToVendor)

func invert(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[v] = k
	}
	return out
}

// TranslateModel maps a model id into the target provider's namespace.
// Unmapped ids are returned unchanged.
func TranslateModel(modelID, targetProvider string) string {
	var mapped string
	var ok bool
	switch targetProvider {
	case ProviderVendor:
		mapped, ok = gatewayToVendor[modelID]
	case ProviderGateway:
		mapped, ok = vendorToGateway[modelID]
	}
	if !ok {
		return modelID
	}
	return mapped
}

// DefaultModel returns the model id used when none is configured.
func DefaultModel(provider string) string {
	if provider == ProviderVendor {
		return "claude-sonnet-4-20250514"
	}
	return "anthropic/claude-sonnet-4"
}
