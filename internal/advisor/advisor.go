// Package advisor turns a savings amount into allocation suggestions, either
// from a remote text-generation endpoint or from a local plan.
package advisor

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/shopspring/decimal"

	"finadvisor/internal/core"
	applog "finadvisor/internal/log"
)

// DefaultAPIURL is the HuggingFace inference endpoint used when none is configured.
const DefaultAPIURL = "https://api-inference.huggingface.co/models/facebook/opt-350m"

// RemotePreamble is prepended to generated text.
const RemotePreamble = "Here are some suggestions for allocating your savings:\n\n"

// Config configures an Advisor. An empty APIKey selects fallback mode.
type Config struct {
	APIURL     string
	APIKey     string
	Plan       Plan
	HTTPClient *http.Client
	Logger     *applog.Logger
}

type Advisor struct {
	apiURL string
	apiKey string
	plan   Plan
	client *http.Client
	logger *applog.Logger
}

// New builds an Advisor. A zero Plan means DefaultPlan.
func New(cfg Config) *Advisor {
	a := &Advisor{
		apiURL: strings.TrimSpace(cfg.APIURL),
		apiKey: strings.TrimSpace(cfg.APIKey),
		plan:   cfg.Plan,
		client: cfg.HTTPClient,
		logger: cfg.Logger,
	}
	if a.apiURL == "" {
		a.apiURL = DefaultAPIURL
	}
	if len(a.plan.Buckets) == 0 {
		a.plan = DefaultPlan()
	}
	if a.client == nil {
		// Deadlines come from the caller's context
		a.client = &http.Client{}
	}
	if a.logger == nil {
		a.logger = applog.New(applog.DefaultConfig())
	}
	a.logger = a.logger.WithComponent(applog.ComponentAdvisor)
	return a
}

// Remote reports whether a credential is configured.
func (a *Advisor) Remote() bool {
	return a.apiKey != ""
}

// GetSuggestions never fails: any remote problem degrades to Fallback(savings).
func (a *Advisor) GetSuggestions(ctx context.Context, savings decimal.Decimal) string {
	if !a.Remote() {
		return a.Fallback(savings)
	}
	text, err := a.generate(ctx, Prompt(savings))
	if err != nil {
		a.logger.WarnContext(ctx, "Remote suggestions unavailable, using fallback",
			applog.NewFields().
				WithOperation(applog.OpSuggest).
				WithSavings(savings.String()).
				WithError(err).
				ToSlice()...)
		return a.Fallback(savings)
	}
	return RemotePreamble + text
}

type generateRequest struct {
	Inputs string `json:"inputs"`
}

type generation struct {
	GeneratedText *string `json:"generated_text"`
}

var errEmptyGeneration = errors.New("response carried no generated_text")

func (a *Advisor) generate(ctx context.Context, prompt string) (string, error) {
	payload, err := json.Marshal(generateRequest{Inputs: prompt})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.apiURL, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+a.apiKey)

	resp, err := a.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("call %s: %w", a.apiURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("remote status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var out []generation
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if len(out) == 0 || out[0].GeneratedText == nil || strings.TrimSpace(*out[0].GeneratedText) == "" {
		return "", errEmptyGeneration
	}
	return *out[0].GeneratedText, nil
}

// Prompt is the natural-language request sent to the remote model.
func Prompt(savings decimal.Decimal) string {
	return fmt.Sprintf(`Given a savings amount of %s, suggest 3-4 ways to allocate
these savings across different investment options and goals. Consider:
1. Investment opportunities (stocks, crypto, etc.)
2. Travel plans
3. Education savings
4. Emergency fund
Be specific with suggestions and approximate allocations.`, core.FormatCurrency(savings))
}

// Fallback renders the plan for savings. Same input, same text.
func (a *Advisor) Fallback(savings decimal.Decimal) string {
	return a.plan.Render(savings)
}

// Render lists each bucket with its share of savings and its hints.
func (p Plan) Render(savings decimal.Decimal) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Here are some general suggestions for your %s savings:\n", core.FormatCurrency(savings))
	for i, b := range p.Buckets {
		fmt.Fprintf(&sb, "\n%d. %s (%d%%): %s\n", i+1, b.Name, b.Percent, core.FormatCurrency(b.Share(savings)))
		for _, h := range b.Hints {
			fmt.Fprintf(&sb, "   - %s\n", h)
		}
	}
	return sb.String()
}
