// utils/http.go
package utils

import (
	"net/http"
	"time"
)

// HTTPClient is shared by the proof store, Gemini and archive clients.
var HTTPClient = &http.Client{
	Timeout: 120 * time.Second, // proof uploads can be close to the 128 MiB ceiling
}
