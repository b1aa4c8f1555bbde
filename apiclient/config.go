package apiclient

import (
	"net/url"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Config holds the configuration of a Client.
type Config struct {
	// BaseURL is the root of the REST service, e.g. https://console.example.com/api.
	BaseURL string

	// Token is a static bearer token. Ignored when a TokenSource is supplied.
	Token string

	// RateLimit is the sustained number of requests per second. Zero disables limiting.
	RateLimit float64

	// Burst is the number of requests allowed above RateLimit at once.
	Burst int

	// Timeout bounds every request, including reading the body.
	Timeout time.Duration
}

// DefaultConfig returns a Config with sensible defaults and no BaseURL.
func DefaultConfig() Config {
	return Config{
		RateLimit: 10,
		Burst:     20,
		Timeout:   10 * time.Second,
	}
}

// Validate checks whether the configuration values are valid.
func (c Config) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.BaseURL, validation.Required, validation.By(absoluteURL)),
		validation.Field(&c.RateLimit, validation.Min(0.0)),
		validation.Field(&c.Burst, validation.When(c.RateLimit > 0, validation.Required, validation.Min(1))),
		validation.Field(&c.Timeout, validation.Min(time.Duration(0))),
	)
}

func absoluteURL(value any) error {
	s, _ := value.(string)
	u, err := url.Parse(s)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return validation.NewError("validation_absolute_url", "must be an absolute URL")
	}
	return nil
}
