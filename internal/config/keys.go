package config

import "os"

// APIKeySource represents where an API key comes from.
type APIKeySource string

const (
	KeySourceEnv    APIKeySource = "env"
	KeySourceConfig APIKeySource = "config"
	KeySourceNone   APIKeySource = "none"
)

// KeyStatus represents the status of a provider credential.
type KeyStatus struct {
	Name     string       `json:"name"`
	Source   APIKeySource `json:"source"`
	IsSet    bool         `json:"is_set"`
	Masked   string       `json:"masked,omitempty"` // e.g., "abc...xyz"
	Optional bool         `json:"optional"`
}

// CheckAPIKeys returns the status of every provider credential. None is
// required: without FMP, Alpha Vantage or FRED keys those providers are simply skipped.
func CheckAPIKeys(cfg *Config) []KeyStatus {
	return []KeyStatus{
		checkKey("FMP API Key", cfg.Providers.FMPAPIKey, "DCFVALUE_PROVIDERS_FMP_API_KEY", "FMP_API_KEY"),
		checkKey("Alpha Vantage API Key", cfg.Providers.AlphaVantageAPIKey,
			"DCFVALUE_PROVIDERS_ALPHA_VANTAGE_API_KEY", "ALPHA_VANTAGE_API_KEY", "ALPHA_VANTAGE_KEY"),
		checkKey("FRED API Key", cfg.Providers.FredAPIKey, "DCFVALUE_PROVIDERS_FRED_API_KEY", "FRED_API_KEY"),
		checkKey("SEC User-Agent", cfg.Providers.SECUserAgent, "DCFVALUE_PROVIDERS_SEC_USER_AGENT", "SEC_USER_AGENT"),
	}
}

// checkKey checks if a key is set and where it came from.
func checkKey(name, value string, envVars ...string) KeyStatus {
	status := KeyStatus{
		Name:     name,
		IsSet:    value != "",
		Optional: true,
		Source:   KeySourceNone,
	}
	if value == "" {
		return status
	}

	status.Source = KeySourceConfig
	for _, env := range envVars {
		if os.Getenv(env) == value {
			status.Source = KeySourceEnv
			break
		}
	}
	status.Masked = maskKey(value)
	return status
}

// maskKey masks an API key for display, showing only first 3 and last 3 chars.
func maskKey(key string) string {
	if len(key) <= 8 {
		return "***"
	}
	return key[:3] + "..." + key[len(key)-3:]
}
