package config

func DefaultSystemConfig() *SystemConfig {
	return &SystemConfig{
		DataDirectory: "~/.local/share/djrag",
	}
}

func DefaultUserConfig() *UserConfig {
	return &UserConfig{
		API: APIConfig{
			BaseURL:        DefaultAPIBaseURL,
			RequestTimeout: "120s",
		},
		Health: HealthConfig{
			Interval: "30s",
			Timeout:  "5s",
		},
	}
}

func GenerateSystemConfigTemplate() string {
	return `# djrag System Configuration
# Location: ~/.config/djrag/settings.toml
# This file uses TOML format: https://toml.io

# Directory for the local cache, logs and user config
data_directory = "~/.local/share/djrag"
`
}

func GenerateUserConfigTemplate() string {
	return `# djrag User Configuration
# Location: <data_directory>/config.toml
# This file uses TOML format: https://toml.io

[api]
# DJ Rag backend URL (DJRAG_API_BASE_URL takes precedence)
base_url = "http://127.0.0.1:8000"

# Upper bound for a single request. Answers can take a while on large documents.
request_timeout = "120s"

[health]
# How often the backend is probed for the online/offline banner
interval = "30s"

# A probe slower than this counts as unreachable
timeout = "5s"
`
}
