package authclaims

import "time"

type Config struct {
	Secret      string        `env:"AUTH_JWT_SECRET"`
	Issuer      string        `env:"AUTH_JWT_ISSUER"`
	Audience    string        `env:"AUTH_JWT_AUDIENCE"`
	Leeway      time.Duration `env:"AUTH_JWT_LEEWAY" envDefault:"30s"`
}

// VerifierOptions translates the config into Verifier options.
func (c Config) VerifierOptions() []Option {
	return []Option{
		WithIssuer(c.Issuer),
		WithAudience(c.Audience),
		WithLeeway(c.Leeway),
	}
}
