package llm

import "fmt"

// Variant selects which kind of backend answers a question.
type Variant string

const (
	// VariantRemote is a hosted multimodal API (Anthropic, OpenAI, Gemini
	// or OpenRouter, chosen by Config.Provider).
	VariantRemote Variant = "remote"

	// VariantLocal is a multimodal model served locally through an
	// OpenAI-compatible API, such as Ollama.
	VariantLocal Variant = "local"

	// VariantTextOnly cannot see images and says so.
	VariantTextOnly Variant = "text"
)

// Variants lists every known variant in display order.
var Variants = []Variant{VariantRemote, VariantLocal, VariantTextOnly}

// ParseVariant maps a name to a Variant.
func ParseVariant(s string) (Variant, error) {
	for _, v := range Variants {
		if string(v) == s {
			return v, nil
		}
	}
	return "", fmt.Errorf("unknown model variant %q (want remote, local or text)", s)
}

// Label is a short human-readable name.
func (v Variant) Label() string {
	switch v {
	case VariantRemote:
		return "Cloud vision"
	case VariantLocal:
		return "Local vision"
	case VariantTextOnly:
		return "Text only"
	default:
		return string(v)
	}
}
