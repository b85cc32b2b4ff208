package models

// NetworkInfo carries optional connection capability hints. Zero values
// mean "unknown".
type NetworkInfo struct {
	EffectiveType string  `json:"effectiveType,omitempty"`
	Downlink      float64 `json:"downlink,omitempty"`
	SaveData      bool    `json:"saveData,omitempty"`
}

// Empty reports whether no capability was detected.
func (n NetworkInfo) Empty() bool {
	return n.EffectiveType == "" && n.Downlink == 0 && !n.SaveData
}

// Degraded reports a slow or data-saving connection.
func (n NetworkInfo) Degraded() bool {
	return n.SaveData || n.EffectiveType == "2g" || n.EffectiveType == "slow-2g"
}

// Tokens is an access/refresh token pair. RefreshToken may be empty when
// the server does not rotate it.
type Tokens struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
}
