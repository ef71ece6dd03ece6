package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/joho/godotenv"
)

// DevJWTSecret signs tokens when no secret is configured outside production.
const DevJWTSecret = "dev-secret-only"

// Config is bound by kong from flags, falling back to environment
// variables (which may come from a .env file, see LoadDotEnv).
type Config struct {
	Env      string `help:"Runtime environment." default:"development" enum:"development,production,test" env:"APP_ENV"`
	AppPort  string `help:"HTTP listen port." default:"8080" env:"APP_PORT"`
	DBDriver string `help:"Database driver (mysql, postgres or memory)." default:"mysql" enum:"mysql,postgres,memory" env:"DB_DRIVER"`
	DSN      string `help:"Database connection string." env:"DATABASE_DSN,MYSQL_DSN"`

	JWTSecret  string        `help:"HMAC secret for access tokens." env:"JWT_SECRET"`
	TokenTTL   time.Duration `help:"Access token lifetime." default:"24h" env:"JWT_TTL"`
	BcryptCost int           `help:"bcrypt cost for new password hashes." default:"10" env:"BCRYPT_COST"`

	CORSOrigins       []string `help:"Allowed CORS origins." default:"*" env:"CORS_ORIGINS"`
	AuthRatePerMinute float64  `help:"Requests per minute per IP on /auth routes (0 disables)." default:"20" env:"AUTH_RATE_PER_MINUTE"`
	AuthRateBurst     int      `help:"Burst allowance for the /auth rate limiter." default:"10" env:"AUTH_RATE_BURST"`
}

// LoadDotEnv loads .env into the process environment. Variables already
// set win. A missing file is not an error.
func LoadDotEnv(paths ...string) (bool, error) {
	if err := godotenv.Load(paths...); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// Check verifies required settings and fills development defaults.
// Call it after parsing.
func (c *Config) Check() error {
	if c.DBDriver != "memory" && c.DSN == "" {
		return fmt.Errorf("DATABASE_DSN not set for driver %q", c.DBDriver)
	}
	if c.JWTSecret == "" {
		if c.IsProduction() {
			return errors.New("JWT_SECRET must be set in production")
		}
		c.JWTSecret = DevJWTSecret
	}
	if c.TokenTTL <= 0 {
		return fmt.Errorf("JWT_TTL must be positive, got %s", c.TokenTTL)
	}
	if c.AuthRatePerMinute < 0 || c.AuthRateBurst < 0 {
		return errors.New("auth rate limit settings must not be negative")
	}
	if c.AppPort == "" {
		c.AppPort = "8080"
	}
	return nil
}

func (c Config) IsProduction() bool { return c.Env == "production" }

func (c Config) IsDevelopment() bool { return c.Env == "development" }

func (c Config) Addr() string { return ":" + c.AppPort }
