// Package captcha implements the one-call verification of an external
// reCAPTCHA Enterprise assessment token against an expected action. The
// gateway isolates the blocking external RPC behind a context-bounded
// net/http call so it never stalls the caller's goroutine indefinitely.
package captcha

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Verdict is the result of verifying a client token.
type Verdict struct {
	Valid  bool
	Action string
	Score  float64
}

// Gateway verifies a client-supplied reCAPTCHA token against an expected
// action. Implementations must not block the caller past ctx's deadline.
type Gateway interface {
	Verify(ctx context.Context, clientToken, expectedAction string) (Verdict, error)
}

// Accept implements the server's acceptance policy: valid, matching action,
// and a score at or above the configured minimum. Kept as a pure function so
// it is testable without a network call.
func Accept(v Verdict, expectedAction string, minScore float64) bool {
	return v.Valid && v.Action == expectedAction && v.Score >= minScore
}

// enterpriseGateway calls the reCAPTCHA Enterprise REST API directly. No Go
// SDK for reCAPTCHA Enterprise appears anywhere in the retrieved corpus, so
// this one component is built on net/http rather than a third-party client
// (see DESIGN.md).
type enterpriseGateway struct {
	httpClient *http.Client
	projectID  string
	siteKey    string
	apiKey     string
	endpoint   string
}

// NewEnterpriseGateway builds a Gateway backed by the reCAPTCHA Enterprise
// assessments.create REST endpoint. apiKey authenticates the REST call (the
// API-key variant of the Enterprise API, used directly over net/http since
// no suitable Go client library for it is vendored here; see DESIGN.md).
func NewEnterpriseGateway(projectID, siteKey, apiKey string, timeout time.Duration) Gateway {
	return &enterpriseGateway{
		httpClient: &http.Client{Timeout: timeout},
		projectID:  projectID,
		siteKey:    siteKey,
		apiKey:     apiKey,
		endpoint:   "https://recaptchaenterprise.googleapis.com/v1",
	}
}

type assessmentRequest struct {
	Event struct {
		Token   string `json:"token"`
		SiteKey string `json:"siteKey"`
	} `json:"event"`
}

type assessmentResponse struct {
	TokenProperties struct {
		Valid  bool   `json:"valid"`
		Action string `json:"action"`
	} `json:"tokenProperties"`
	RiskAnalysis struct {
		Score float64 `json:"score"`
	} `json:"riskAnalysis"`
}

func (g *enterpriseGateway) Verify(ctx context.Context, clientToken, expectedAction string) (Verdict, error) {
	var body assessmentRequest
	body.Event.Token = clientToken
	body.Event.SiteKey = g.siteKey

	payload, err := json.Marshal(body)
	if err != nil {
		return Verdict{}, err
	}

	url := fmt.Sprintf("%s/projects/%s/assessments?key=%s", g.endpoint, g.projectID, g.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return Verdict{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return Verdict{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Verdict{}, fmt.Errorf("captcha: unexpected status %d", resp.StatusCode)
	}

	var out assessmentResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return Verdict{}, err
	}

	return Verdict{
		Valid:  out.TokenProperties.Valid,
		Action: out.TokenProperties.Action,
		Score:  out.RiskAnalysis.Score,
	}, nil
}

// noopGateway always succeeds, so --test runs never need captcha
// credentials configured.
type noopGateway struct{}

// NewNoopGateway returns a Gateway that accepts every token, for use when
// the server is started with --test.
func NewNoopGateway() Gateway {
	return noopGateway{}
}

func (noopGateway) Verify(_ context.Context, _, expectedAction string) (Verdict, error) {
	return Verdict{Valid: true, Action: expectedAction, Score: 1}, nil
}
