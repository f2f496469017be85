package qr

import (
	"encoding/base64"
	"fmt"
	"strings"
)

// Activation is the material parsed from an enrollment QR payload.
type Activation struct {
	Code string
	Host string
}

// ParseActivation splits an enrollment QR payload into activation code and
// API host.
//
// The payload has the form "<code>-<base64 host>", with the host base64
// sometimes stripped of its "=" padding. Angle brackets around either part
// are tolerated.
func ParseActivation(payload string) (Activation, error) {
	code, rawHost, ok := strings.Cut(strings.TrimSpace(payload), "-")
	if !ok {
		return Activation{}, fmt.Errorf("qr: payload %q has no code-host separator", payload)
	}

	code = strings.Trim(code, "<>")
	rawHost = strings.Trim(rawHost, "<>")
	if code == "" || rawHost == "" {
		return Activation{}, fmt.Errorf("qr: payload %q is missing code or host", payload)
	}

	if m := len(rawHost) % 4; m != 0 {
		rawHost += strings.Repeat("=", 4-m)
	}
	host, err := base64.StdEncoding.DecodeString(rawHost)
	if err != nil {
		return Activation{}, fmt.Errorf("qr: host part is not valid base64: %w", err)
	}

	return Activation{Code: code, Host: string(host)}, nil
}
