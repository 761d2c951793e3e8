package tablestore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/salesplan/salesplan/internal/config"
	log "github.com/sirupsen/logrus"
	"golang.org/x/oauth2/clientcredentials"
)

// RemoteClient talks to a table API over HTTP:
//
//	GET  {base}/tables/{table}/rows?field=value  -> {"rows": [...]}
//	POST {base}/tables/{table}/rows              <- {"rows": [...]}
type RemoteClient struct {
	baseURL    string
	httpClient *http.Client
}

var _ Client = (*RemoteClient)(nil)

type rowsEnvelope struct {
	Rows []Row `json:"rows"`
}

// NewRemoteClient authenticates with the OAuth2 client credentials flow when a client id is
// configured and falls back to an unauthenticated client otherwise.
func NewRemoteClient(ctx context.Context, cfg config.Remote) *RemoteClient {
	httpClient := http.DefaultClient
	if cfg.ClientId != "" {
		credentials := clientcredentials.Config{
			ClientID:     cfg.ClientId,
			ClientSecret: cfg.ClientSecret,
			TokenURL:     cfg.TokenURL,
			Scopes:       cfg.Scopes,
		}
		httpClient = credentials.Client(ctx)
	} else {
		log.Warn("Remote table API configured without client credentials")
	}
	return newRemoteClient(cfg.BaseURL, httpClient)
}

func newRemoteClient(baseURL string, httpClient *http.Client) *RemoteClient {
	return &RemoteClient{baseURL: strings.TrimRight(baseURL, "/"), httpClient: httpClient}
}

func (c *RemoteClient) Find(ctx context.Context, table string, filter Filter) ([]Row, error) {
	query := url.Values{}
	for field, value := range filter {
		query.Set(field, fmt.Sprint(encodeValue(value)))
	}
	endpoint := c.rowsURL(table)
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		log.Errorf("Failed to create request: %v", err)
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		err := fmt.Errorf("could not query table %s: %w", table, err)
		log.Error(err)
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, unexpectedStatus(table, resp)
	}

	decoder := json.NewDecoder(resp.Body)
	decoder.UseNumber()
	var envelope rowsEnvelope
	if err := decoder.Decode(&envelope); err != nil {
		err := fmt.Errorf("could not decode rows of table %s: %w", table, err)
		log.Error(err)
		return nil, err
	}

	// the API may ignore filter fields it does not index
	rows := make([]Row, 0, len(envelope.Rows))
	for _, row := range envelope.Rows {
		if filter.Matches(row) {
			rows = append(rows, row)
		}
	}
	return rows, nil
}

func (c *RemoteClient) Add(ctx context.Context, table string, rows []Row) error {
	body, err := json.Marshal(rowsEnvelope{Rows: rows})
	if err != nil {
		return fmt.Errorf("could not encode rows for table %s: %w", table, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.rowsURL(table), bytes.NewReader(body))
	if err != nil {
		log.Errorf("Failed to create request: %v", err)
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		err := fmt.Errorf("could not add rows to table %s: %w", table, err)
		log.Error(err)
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return unexpectedStatus(table, resp)
	}
	return nil
}

func (c *RemoteClient) rowsURL(table string) string {
	return c.baseURL + "/tables/" + url.PathEscape(table) + "/rows"
}

func unexpectedStatus(table string, resp *http.Response) error {
	message, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	err := fmt.Errorf("table %s: unexpected status %d: %s", table, resp.StatusCode, strings.TrimSpace(string(message)))
	log.Error(err)
	return err
}
