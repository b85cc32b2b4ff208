// Package device classifies the client for login strategy selection and
// reports the connection capability hints attached to diagnostics.
package device

import (
	"regexp"
	"strings"

	"github.com/dmitrijs2005/restosession/internal/client/models"
)

// Class is the coarse device class that selects the login strategy.
type Class int

const (
	Desktop Class = iota
	Mobile
)

func (c Class) String() string {
	if c == Mobile {
		return "mobile"
	}
	return "desktop"
}

var mobileUA = regexp.MustCompile(`(?i)android|webos|iphone|ipad|ipod|blackberry|iemobile|opera mini|mobile`)

// Classify returns Mobile for user agents of phones and tablets.
func Classify(userAgent string) Class {
	if mobileUA.MatchString(userAgent) {
		return Mobile
	}
	return Desktop
}

// Detector reports the device class at the time of a call.
type Detector func() Class

// FixedDetector classifies userAgent once and always returns that class.
func FixedDetector(userAgent string) Detector {
	c := Classify(userAgent)
	return func() Class { return c }
}

// NetworkProbe reports the current connection capability hints.
type NetworkProbe func() models.NetworkInfo

// StaticNetwork returns a NetworkProbe for hints known at startup.
// Unknown effective types are dropped.
func StaticNetwork(effectiveType string, downlink float64, saveData bool) NetworkProbe {
	info := models.NetworkInfo{
		EffectiveType: normalizeType(effectiveType),
		Downlink:      downlink,
		SaveData:      saveData,
	}
	if info.Downlink < 0 {
		info.Downlink = 0
	}
	return func() models.NetworkInfo { return info }
}

func normalizeType(t string) string {
	t = strings.ToLower(strings.TrimSpace(t))
	switch t {
	case "slow-2g", "2g", "3g", "4g":
		return t
	}
	return ""
}
