package config

// Config holds coordcard's runtime settings, read from coordcard.yaml.
// Flags and environment variables override every field.
type Config struct {
	DB       DBConfig     `yaml:"db"`
	Server   ServerConfig `yaml:"server"`
	Log      LogConfig    `yaml:"log"`
	Defaults Defaults     `yaml:"defaults"`
}

// DBConfig locates the decision log.
type DBConfig struct {
	DSN string `yaml:"dsn"`
}

// ServerConfig configures coordcard serve.
type ServerConfig struct {
	Addr         string `yaml:"addr"`
	LogDecisions *bool  `yaml:"log_decisions"`
}

// LogConfig sets the zap level used when --verbose is not given.
type LogConfig struct {
	Level string `yaml:"level"`
}

// Defaults fills in flags the user leaves unset.
type Defaults struct {
	Card string `yaml:"card"`
}

// DecisionLogging reports whether the server should record decisions.
func (s ServerConfig) DecisionLogging() bool {
	return s.LogDecisions == nil || *s.LogDecisions
}
