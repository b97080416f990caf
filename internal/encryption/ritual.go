package encryption

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Ritual — параметры DKG-ритуала пороговой сети для домена.
type Ritual struct {
	ID        uint32 `json:"ritual_id"`
	PublicKey string `json:"public_key"` // age1... получатель
	Threshold int    `json:"threshold"`
	Shares    int    `json:"shares"`
}

// RitualSource получает текущие параметры ритуала.
type RitualSource interface {
	Ritual(ctx context.Context, domain string) (Ritual, error)
}

// PorterRitualSource читает параметры ритуала у porter-сервиса пороговой сети.
type PorterRitualSource struct {
	baseURL string
	client  *http.Client
}

// NewPorterRitualSource создаёт источник. При client == nil используется клиент с таймаутом.
func NewPorterRitualSource(baseURL string, client *http.Client) *PorterRitualSource {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &PorterRitualSource{baseURL: strings.TrimRight(baseURL, "/"), client: client}
}

// Ritual выполняет GET {porter}/dkg/{domain}/ritual.
func (p *PorterRitualSource) Ritual(ctx context.Context, domain string) (Ritual, error) {
	endpoint := p.baseURL + "/dkg/" + url.PathEscape(domain) + "/ritual"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return Ritual{}, err
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return Ritual{}, fmt.Errorf("porter request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return Ritual{}, fmt.Errorf("porter returned %s", resp.Status)
	}
	var r Ritual
	if err := json.NewDecoder(resp.Body).Decode(&r); err != nil {
		return Ritual{}, fmt.Errorf("decoding ritual: %w", err)
	}
	if r.PublicKey == "" {
		return Ritual{}, errors.New("ritual has no public key")
	}
	return r, nil
}
