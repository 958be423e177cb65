package dto

// ProviderKeyStatus reports one configuration key and whether it is set.
// Values are never echoed back.
type ProviderKeyStatus struct {
	Key      string `json:"key"`
	Required bool   `json:"required"`
	Set      bool   `json:"set"`
}

// ProviderStatus reports the setup state of one provider
type ProviderStatus struct {
	Provider   string              `json:"provider"`
	Label      string              `json:"label"`
	Core       bool                `json:"core"`
	Configured bool                `json:"configured"`
	Keys       []ProviderKeyStatus `json:"keys"`
}
