package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"
)

const (
	DefaultPinataAPIURL     = "https://api.pinata.cloud"
	DefaultPinataGatewayURL = "https://gateway.pinata.cloud"
)

// PinataStore пинит шифртекст в IPFS через REST API Pinata.
type PinataStore struct {
	jwt        string
	apiURL     string
	gatewayURL string
	client     *http.Client
	now        func() time.Time
}

// NewPinataStore создаёт клиента. Пустые URL заменяются значениями по умолчанию.
func NewPinataStore(jwt, apiURL, gatewayURL string, client *http.Client) *PinataStore {
	if apiURL == "" {
		apiURL = DefaultPinataAPIURL
	}
	if gatewayURL == "" {
		gatewayURL = DefaultPinataGatewayURL
	}
	if client == nil {
		client = &http.Client{Timeout: 60 * time.Second}
	}
	return &PinataStore{
		jwt:        jwt,
		apiURL:     strings.TrimRight(apiURL, "/"),
		gatewayURL: strings.TrimRight(gatewayURL, "/"),
		client:     client,
		now:        time.Now,
	}
}

type pinRequest struct {
	Content  json.RawMessage `json:"pinataContent"`
	Metadata pinMetadata     `json:"pinataMetadata"`
	Options  pinOptions      `json:"pinataOptions"`
}

type pinMetadata struct {
	Name      string            `json:"name"`
	KeyValues map[string]string `json:"keyvalues"`
}

type pinOptions struct {
	CIDVersion int `json:"cidVersion"`
}

type pinResponse struct {
	IpfsHash  string `json:"IpfsHash"`
	PinSize   int64  `json:"PinSize"`
	Timestamp string `json:"Timestamp"`
}

// TestAuthentication проверяет JWT у Pinata.
func (p *PinataStore) TestAuthentication(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.apiURL+"/data/testAuthentication", nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+p.jwt)
	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStorage, err)
	}
	defer resp.Body.Close()
	return statusError(resp)
}

// Store пинит {"cypher": hex(payload)} с метаданными владельца и времени.
func (p *PinataStore) Store(ctx context.Context, ownerID string, payload []byte) (string, error) {
	doc, err := encodeDoc(payload)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrStorage, err)
	}
	at := p.now()
	body, err := json.Marshal(pinRequest{
		Content: doc,
		Metadata: pinMetadata{
			Name: blobName(ownerID, at),
			KeyValues: map[string]string{
				"id":        ownerID,
				"timestamp": strconv.FormatInt(at.UnixMilli(), 10),
			},
		},
		Options: pinOptions{CIDVersion: 1},
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrStorage, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.apiURL+"/pinning/pinJSONToIPFS", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrStorage, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.jwt)

	resp, err := p.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrStorage, err)
	}
	defer resp.Body.Close()
	if err := statusError(resp); err != nil {
		return "", err
	}

	var pr pinResponse
	if err := json.NewDecoder(resp.Body).Decode(&pr); err != nil {
		return "", fmt.Errorf("%w: decoding pin response: %v", ErrStorage, err)
	}
	if pr.IpfsHash == "" {
		return "", fmt.Errorf("%w: empty IpfsHash in pin response", ErrStorage)
	}
	return pr.IpfsHash, nil
}

// Fetch читает документ через шлюз и возвращает исходный шифртекст.
func (p *PinataStore) Fetch(ctx context.Context, address string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.gatewayURL+"/ipfs/"+address, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorage, err)
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorage, err)
	}
	defer resp.Body.Close()
	if err := statusError(resp); err != nil {
		return nil, err
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorage, err)
	}
	return decodeDoc(data)
}

func statusError(resp *http.Response) error {
	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return fmt.Errorf("%w: %w (%s)", ErrStorage, ErrUnauthorized, resp.Status)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%w: %s: %s", ErrStorage, resp.Status, strings.TrimSpace(string(msg)))
	}
	return nil
}
