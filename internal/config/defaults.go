package config

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Storage.SnapshotPath == "" {
		cfg.Storage.SnapshotPath = "/usr/local/var/kotae/data/records.json"
	}
	if cfg.Storage.AuditDBPath == "" {
		cfg.Storage.AuditDBPath = "/usr/local/var/kotae/data/audit.db"
	}
	if cfg.Retrieval.TopK == 0 {
		cfg.Retrieval.TopK = 8
	}
	if cfg.Retrieval.MaxContextChars == 0 {
		cfg.Retrieval.MaxContextChars = 20000
	}
	if cfg.Gateway.CallTimeoutSeconds == 0 {
		cfg.Gateway.CallTimeoutSeconds = 20
	}
	if cfg.Gateway.FailureThreshold == 0 {
		cfg.Gateway.FailureThreshold = 5
	}
	if cfg.Gateway.HalfOpenTimeoutSecs == 0 {
		cfg.Gateway.HalfOpenTimeoutSecs = 30
	}
	if cfg.Gateway.HalfOpenSuccessCount == 0 {
		cfg.Gateway.HalfOpenSuccessCount = 2
	}
	if cfg.Gateway.EmbeddingCacheEntries == 0 {
		cfg.Gateway.EmbeddingCacheEntries = 10000
	}
	if cfg.Providers.APIKeyEnv == "" {
		cfg.Providers.APIKeyEnv = "KOTAE_API_KEY"
	}
}
