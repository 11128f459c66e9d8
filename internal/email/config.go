package email

import "fmt"

// Config is the IMAP account the assistant reads. It lives under the
// "email" YAML key.
type Config struct {
	Host string `yaml:"host"`
	// Port defaults to 993.
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	// Password supports ${ENV} expansion through the config loader.
	Password string `yaml:"password"`
	// TLS defaults to true unless Port is 143.
	TLS bool `yaml:"tls"`
	// Folder defaults to INBOX.
	Folder string `yaml:"folder"`
}

// Configured reports whether enough is set to attempt a connection.
func (c Config) Configured() bool {
	return c.Host != "" && c.Username != ""
}

// ApplyDefaults fills zero-value fields.
func (c *Config) ApplyDefaults() {
	if !c.Configured() {
		return
	}
	if c.Port == 0 {
		c.Port = 993
	}
	if !c.TLS && c.Port != 143 {
		c.TLS = true
	}
	if c.Folder == "" {
		c.Folder = "INBOX"
	}
}

// Validate reports the first inconsistency in a configured account. An
// unconfigured account is valid; the email handler reports it as
// unavailable.
func (c Config) Validate() error {
	if c.Host == "" && c.Username == "" {
		return nil
	}
	if c.Host == "" {
		return fmt.Errorf("email.host is required when email.username is set")
	}
	if c.Username == "" {
		return fmt.Errorf("email.username is required when email.host is set")
	}
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("email.port %d out of range (1-65535)", c.Port)
	}
	return nil
}
