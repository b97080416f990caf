package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

// Client — HTTP-клиент CLI. В тестах может переназначаться.
var Client = &http.Client{Timeout: 30 * time.Second}

// PostJSON sends a JSON POST request. If token is non-empty, it is passed as Bearer token.
func PostJSON(ctx context.Context, url string, payload any, token string) (*http.Response, []byte, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return nil, nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(b))
	if err != nil {
		return nil, nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	setToken(req.Header, token)
	resp, err := Client.Do(req)
	if err != nil {
		return nil, nil, err
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	return resp, body, nil
}

// GetJSON выполняет GET и декодирует ответ в out. Не-2xx возвращается ошибкой с телом ответа.
func GetJSON(ctx context.Context, url, token string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	setToken(req.Header, token)
	resp, err := Client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("server status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// WebsocketURL превращает http(s)://host в ws(s)://host и добавляет path.
func WebsocketURL(serverURL, path string) string {
	u := strings.TrimRight(serverURL, "/") + path
	switch {
	case strings.HasPrefix(u, "https://"):
		return "wss://" + strings.TrimPrefix(u, "https://")
	case strings.HasPrefix(u, "http://"):
		return "ws://" + strings.TrimPrefix(u, "http://")
	}
	return u
}

// DialFeed подключается к живой ленте сервера.
func DialFeed(ctx context.Context, serverURL, token string) (*websocket.Conn, error) {
	h := http.Header{}
	setToken(h, token)
	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, WebsocketURL(serverURL, "/ws"), h)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial feed: %w (status %d)", err, resp.StatusCode)
		}
		return nil, fmt.Errorf("dial feed: %w", err)
	}
	return conn, nil
}

func setToken(h http.Header, token string) {
	if token != "" {
		h.Set("Authorization", "Bearer "+token)
	}
}
