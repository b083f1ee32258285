package fetcher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"homework-watcher/internal/version"
)

const defaultEndpoint = "https://practicum.yandex.ru/api/user_api/homework_statuses/"

// PracticumOptions parameterise the review service fetcher.
type PracticumOptions struct {
	Endpoint   string
	Token      string
	AuthScheme string
	Timeout    time.Duration
	UserAgent  string
}

// Practicum fetches homework statuses from the review service API.
type Practicum struct {
	opts     PracticumOptions
	logger   zerolog.Logger
	client   *http.Client
	endpoint string
}

// NewPracticum constructs a review service fetcher.
func NewPracticum(opts PracticumOptions, logger zerolog.Logger) *Practicum {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	endpoint := strings.TrimSpace(opts.Endpoint)
	if endpoint == "" {
		endpoint = defaultEndpoint
	}

	return &Practicum{
		opts:     opts,
		logger:   logger.With().Str("component", "practicum_fetcher").Logger(),
		client:   &http.Client{Timeout: timeout},
		endpoint: endpoint,
	}
}

// FetchStatuses requests every status change since the given timestamp and
// returns the raw JSON body.
func (p *Practicum) FetchStatuses(ctx context.Context, since int64) (json.RawMessage, error) {
	if p.opts.Token == "" {
		return nil, errors.New("practicum token not configured")
	}

	endpoint, err := url.Parse(p.endpoint)
	if err != nil {
		return nil, fmt.Errorf("parse endpoint: %w", err)
	}
	query := endpoint.Query()
	query.Set("from_date", strconv.FormatInt(since, 10))
	endpoint.RawQuery = query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return nil, err
	}
	scheme := p.opts.AuthScheme
	if scheme == "" {
		scheme = "OAuth"
	}
	req.Header.Set("Authorization", scheme+" "+p.opts.Token)
	req.Header.Set("Accept", "application/json")
	if ua := strings.TrimSpace(p.opts.UserAgent); ua != "" {
		req.Header.Set("User-Agent", ua)
	} else {
		req.Header.Set("User-Agent", version.UserAgent())
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, parseHTTPError(resp.StatusCode, body)
	}

	if !json.Valid(body) {
		return nil, fmt.Errorf("practicum api returned malformed json (%d bytes)", len(body))
	}

	p.logger.Debug().Int64("from_date", since).Int("bytes", len(body)).Msg("statuses fetched")
	return json.RawMessage(body), nil
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Error   string `json:"error"`
}

func parseHTTPError(status int, payload []byte) error {
	var apiErr errorResponse
	if err := json.Unmarshal(payload, &apiErr); err == nil {
		if apiErr.Message != "" {
			if apiErr.Code != "" {
				return fmt.Errorf("practicum api error (%d): %s: %s", status, apiErr.Code, apiErr.Message)
			}
			return fmt.Errorf("practicum api error (%d): %s", status, apiErr.Message)
		}
		if apiErr.Error != "" {
			return fmt.Errorf("practicum api error (%d): %s", status, apiErr.Error)
		}
		if apiErr.Code != "" {
			return fmt.Errorf("practicum api error (%d): %s", status, apiErr.Code)
		}
	}
	if snippet := bodySnippet(payload, maxErrorBody); snippet != "" {
		return fmt.Errorf("practicum api error (%d): %s", status, snippet)
	}
	return fmt.Errorf("practicum api error (%d)", status)
}

const maxErrorBody = 200

// bodySnippet folds payload onto a single line and caps it at limit bytes
// without splitting a multi-byte character.
func bodySnippet(payload []byte, limit int) string {
	line := strings.Join(strings.Fields(string(payload)), " ")
	if len(line) <= limit {
		return line
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(line[cut]) {
		cut--
	}
	return line[:cut]
}

var _ StatusFetcher = (*Practicum)(nil)
