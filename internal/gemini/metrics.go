package gemini

import (
	"sync"

	"github.com/pkoukk/tiktoken-go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	requestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "story_client_gemini_requests_total",
			Help: "Total number of requests to the Gemini API.",
		},
		[]string{"model", "status"},
	)
	requestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "story_client_gemini_request_duration_seconds",
			Help:    "Histogram of Gemini API request durations.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"model"},
	)
	requestRetries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "story_client_gemini_request_retries_total",
			Help: "Total number of retried Gemini API attempts.",
		},
		[]string{"model"},
	)
	promptTokens = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "story_client_gemini_prompt_tokens",
			Help:    "Histogram of approximate prompt token counts.",
			Buckets: prometheus.LinearBuckets(50, 50, 20), // 50, 100, ..., 1000
		},
		[]string{"model"},
	)
)

// tokenEncoding approximates Gemini token counts. The exact tokenizer is not
// public, so a cl100k_base estimate is close enough for capacity metrics.
const tokenEncoding = "cl100k_base"

var (
	tokenCodec     *tiktoken.Tiktoken
	tokenCodecErr  error
	tokenCodecOnce sync.Once
)

// approximateTokens estimates the token count of text, or 0 when the
// encoding is unavailable (e.g. offline first run without the BPE cache).
// The encoding loads lazily because the loader may fetch the BPE file.
func approximateTokens(text string) int {
	tokenCodecOnce.Do(func() {
		tokenCodec, tokenCodecErr = tiktoken.GetEncoding(tokenEncoding)
	})
	if tokenCodecErr != nil || tokenCodec == nil {
		return 0
	}
	return len(tokenCodec.Encode(text, nil, nil))
}
