// internal/crm/config.go
package crm

const (
	defaultPageLimit = 50
	maxPageLimit     = 200
)

type Config struct {
	DefaultLimit int
	MaxLimit     int
}

func (c *Config) defaultLimit() int {
	if c == nil || c.DefaultLimit <= 0 {
		return defaultPageLimit
	}
	return c.DefaultLimit
}

func (c *Config) maxLimit() int {
	if c == nil || c.MaxLimit <= 0 {
		return maxPageLimit
	}
	return c.MaxLimit
}
