package summarizer

import (
	"log"
	"os"
	"time"
)

const (
	// EnvKaiwaMode is the environment variable name for mode selection.
	EnvKaiwaMode = "KAIWA_MODE"
	// ModeMock indicates mock mode should be used.
	ModeMock = "MOCK"
)

// NewEngine creates a summarization engine based on the KAIWA_MODE
// environment variable. If KAIWA_MODE=MOCK, returns a MockClient; otherwise
// returns a real Client.
func NewEngine(baseURL, apiKey, model string, timeout time.Duration) Engine {
	if os.Getenv(EnvKaiwaMode) == ModeMock {
		log.Println("KAIWA_MODE=MOCK detected, using mock summarization engine")
		return NewMockClient()
	}
	return NewClient(baseURL, apiKey, model, timeout)
}
