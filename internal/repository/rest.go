package repository

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/ivanoskov/ibadah_bot/internal/model"
)

const defaultTimeout = 15 * time.Second

// RESTRepository talks to the ibadah REST API.
type RESTRepository struct {
	baseURL string
	client  *http.Client
}

var _ Repository = (*RESTRepository)(nil)

// NewRESTRepository creates a repository for the API rooted at baseURL
// (for example https://host/api). A nil client gets a default with a timeout.
func NewRESTRepository(baseURL string, client *http.Client) (*RESTRepository, error) {
	u, err := url.Parse(strings.TrimSpace(baseURL))
	if err != nil {
		return nil, fmt.Errorf("invalid api url: %w", err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("invalid api url %q: want http(s)://host[/path]", baseURL)
	}
	if client == nil {
		client = &http.Client{Timeout: defaultTimeout}
	}

	return &RESTRepository{
		baseURL: strings.TrimRight(u.String(), "/"),
		client:  client,
	}, nil
}

func (r *RESTRepository) ListIbadah(ctx context.Context) ([]model.Ibadah, error) {
	data, err := r.do(ctx, http.MethodGet, "/ibadah", nil)
	if err != nil {
		return nil, err
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return []model.Ibadah{}, nil
	}

	var envelope listEnvelope
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, &ClientError{Err: fmt.Errorf("failed to parse ibadah list: %w", err)}
	}
	if envelope.Data == nil {
		return []model.Ibadah{}, nil
	}
	return envelope.Data, nil
}

func (r *RESTRepository) CreateIbadah(ctx context.Context, draft model.Draft) error {
	_, err := r.do(ctx, http.MethodPost, "/ibadah", draft)
	return err
}

func (r *RESTRepository) UpdateIbadah(ctx context.Context, id int64, draft model.Draft) error {
	_, err := r.do(ctx, http.MethodPut, fmt.Sprintf("/ibadah/%d", id), draft)
	return err
}

// DeleteIbadah succeeds on any 2xx status whatever the body looks like.
func (r *RESTRepository) DeleteIbadah(ctx context.Context, id int64) error {
	_, err := r.do(ctx, http.MethodDelete, fmt.Sprintf("/ibadah/%d", id), nil)
	return err
}

// do sends one request and classifies its failure. The returned body is
// only meaningful on success.
func (r *RESTRepository) do(ctx context.Context, method, path string, body any) ([]byte, error) {
	requestID := uuid.NewString()
	target := r.baseURL + path

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, &ClientError{Err: fmt.Errorf("failed to encode request: %w", err)}
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, &ClientError{Err: err}
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", requestID)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	log.Debug().Str("request_id", requestID).Str("method", method).Str("url", target).Msg("[ibadah] remote request")

	// a request whose context is already done is never dispatched
	if err := ctx.Err(); err != nil {
		return nil, &ClientError{Err: err}
	}

	resp, err := r.client.Do(req)
	if err != nil {
		log.Warn().Err(err).Str("request_id", requestID).Str("method", method).Str("url", target).Msg("[ibadah] no response")
		return nil, &NetworkError{Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		// the status line already arrived, keep whatever body was read
		log.Warn().Err(err).Str("request_id", requestID).Int("status", resp.StatusCode).Msg("[ibadah] truncated response body")
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		log.Warn().
			Str("request_id", requestID).
			Str("method", method).
			Str("url", target).
			Int("status", resp.StatusCode).
			Msg("[ibadah] remote error")
		raw := strings.TrimSpace(string(data))
		if resp.StatusCode >= 400 && resp.StatusCode < 500 {
			if fields := parseFieldErrors(data); len(fields) > 0 {
				return nil, &RemoteValidationError{StatusCode: resp.StatusCode, Body: raw, Fields: fields}
			}
		}
		return nil, &ServerError{StatusCode: resp.StatusCode, Body: raw}
	}

	log.Debug().Str("request_id", requestID).Int("status", resp.StatusCode).Int("bytes", len(data)).Msg("[ibadah] remote response")
	return data, nil
}
