package alert

import (
	"fmt"
	"strings"
)

// Preset selects how the webhook URL of an upload is chosen.
type Preset string

// Presets.
const (
	PresetLocal   Preset = "local"
	PresetCustom  Preset = "custom"
	PresetRequest Preset = "request"
)

// LocalWebhookURL is the receiver a locally running n8n exposes by default.
const LocalWebhookURL = "http://localhost:5678/webhook/fraud-alert"

// ParsePreset validates s.
func ParsePreset(s string) (Preset, error) {
	switch p := Preset(strings.ToLower(strings.TrimSpace(s))); p {
	case PresetLocal, PresetCustom, PresetRequest:
		return p, nil
	case "":
		return PresetLocal, nil
	default:
		return "", fmt.Errorf("unknown alert preset %q", s)
	}
}

// Target returns the URL alerts of one upload go to. requested is the URL the
// operator supplied with the upload and only counts for PresetRequest.
func (p Preset) Target(configured, requested string) string {
	switch p {
	case PresetCustom:
		return configured
	case PresetRequest:
		if r := strings.TrimSpace(requested); r != "" {
			return r
		}
		return configured
	default:
		return LocalWebhookURL
	}
}
