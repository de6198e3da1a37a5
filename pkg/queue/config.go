// Package queue provides the broker client used to consume gateway evaluation requests
// and publish continuation messages.
package queue

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

// Config configures the queue client.
type Config struct {
	ReadingQueue string `validate:"required"`
	WritingQueue string `validate:"required"`

	// ErrorsQueues enables the delay queues and their relays.
	ErrorsQueues bool

	MaxHandlingMessages int           `validate:"gte=1"`
	WIPTTL              time.Duration `validate:"gt=0"`
	DoneTTL             time.Duration `validate:"gt=0"`
	RequeueDelay        time.Duration `validate:"gte=0"`

	ReconnectDelay       time.Duration `validate:"gt=0"`
	ShutdownTimeout      time.Duration `validate:"gt=0"`
	ShutdownPollInterval time.Duration `validate:"gt=0"`

	// FatalErrors lists error substrings that terminate the process after scheduling a reconnect.
	FatalErrors []string
}

// DefaultFatalErrors are the broker errors that cannot be recovered by reconnecting.
var DefaultFatalErrors = []string{
	"socket hang up",
	"ECONNRESET",
	"connection reset by peer",
	"broken pipe",
}

// DefaultConfig returns a configuration with production defaults for the given queues.
func DefaultConfig(readingQueue, writingQueue string) Config {
	return Config{
		ReadingQueue:         readingQueue,
		WritingQueue:         writingQueue,
		ErrorsQueues:         true,
		MaxHandlingMessages:  10,
		WIPTTL:               5 * time.Minute,
		DoneTTL:              24 * time.Hour,
		RequeueDelay:         time.Second,
		ReconnectDelay:       5 * time.Second,
		ShutdownTimeout:      30 * time.Second,
		ShutdownPollInterval: 500 * time.Millisecond,
		FatalErrors:          DefaultFatalErrors,
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	validate := validator.New(validator.WithRequiredStructEnabled())

	err := validate.Struct(c)
	if err != nil {
		return fmt.Errorf("invalid queue configuration: %w", err)
	}

	return nil
}
