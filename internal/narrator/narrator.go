package narrator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const chatCompletionsPath = "/chat/completions"

// Verdict is the parsed outcome of an AI narration call.
type Verdict struct {
	Action     string
	Reason     string
	Confidence int
}

// FallbackVerdict is substituted whenever a response cannot be parsed.
var FallbackVerdict = Verdict{Action: "NOTHING", Confidence: 50}

// Options parameterise the narration client.
type Options struct {
	BaseURL     string
	APIKey      string
	Model       string
	Temperature float64
	MaxTokens   int
	Timeout     time.Duration
}

// Client calls a DeepSeek-compatible chat-completions endpoint.
type Client struct {
	opts    Options
	client  *http.Client
	baseURL string
	logger  zerolog.Logger
}

// NewClient constructs a narration client.
func NewClient(opts Options, logger zerolog.Logger) *Client {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.deepseek.com"
	}

	return &Client{
		opts:    opts,
		client:  &http.Client{Timeout: timeout},
		baseURL: baseURL,
		logger:  logger.With().Str("component", "narrator").Logger(),
	}
}

// Generate performs a synchronous text generation call and returns the raw
// completion text.
func (c *Client) Generate(ctx context.Context, systemPrompt, userContent string) (string, error) {
	if c.opts.APIKey == "" {
		return "", fmt.Errorf("narrator api key not configured")
	}

	payload := chatRequest{
		Model: c.opts.Model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userContent},
		},
		Temperature: c.opts.Temperature,
		MaxTokens:   c.opts.MaxTokens,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+chatCompletionsPath, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.opts.APIKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	payloadBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("narrator api error (%d): %s", resp.StatusCode, strings.TrimSpace(string(payloadBytes)))
	}

	var res chatResponse
	if err := json.Unmarshal(payloadBytes, &res); err != nil {
		return "", err
	}
	if len(res.Choices) == 0 {
		return "", fmt.Errorf("narrator returned no choices")
	}

	return res.Choices[0].Message.Content, nil
}

var confidenceRe = regexp.MustCompile(`(\d+)%`)

// ParseVerdict extracts the 3-line ACTION / reason / "Confidence: NN%"
// protocol from free text. It never fails: anything malformed collapses to
// the NOTHING / 50% fallback.
func ParseVerdict(text string) Verdict {
	lines := make([]string, 0, 3)
	for _, line := range strings.Split(text, "\n") {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			lines = append(lines, trimmed)
		}
	}
	if len(lines) == 0 {
		return FallbackVerdict
	}

	action := strings.ToUpper(lines[0])
	switch action {
	case "BUY", "SELL", "NOTHING":
	default:
		return FallbackVerdict
	}

	verdict := Verdict{Action: action, Confidence: FallbackVerdict.Confidence}
	if len(lines) > 1 {
		verdict.Reason = lines[1]
	}
	if len(lines) > 2 {
		if m := confidenceRe.FindStringSubmatch(lines[2]); m != nil {
			if n, err := strconv.Atoi(m[1]); err == nil && n >= 0 && n <= 100 {
				verdict.Confidence = n
			}
		}
	}
	return verdict
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature,omitempty"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}
