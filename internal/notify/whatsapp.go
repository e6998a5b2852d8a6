package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// WhatsAppClient talks to a WhatsApp Business API gateway. It only knows how
// to deliver text; message composition lives in messages.go and the fallback
// policy in the Dispatcher.
type WhatsAppClient struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

func NewWhatsAppClient(baseURL, token string) *WhatsAppClient {
	return &WhatsAppClient{
		baseURL: baseURL,
		token:   token,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

type sendMessageRequest struct {
	To   string `json:"to"`
	Type string `json:"type"`
	Text struct {
		Body string `json:"body"`
	} `json:"text"`
}

type sendMessageResponse struct {
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// SendText delivers a plain text message to the given phone number.
func (c *WhatsAppClient) SendText(ctx context.Context, phone, text string) error {
	reqBody := sendMessageRequest{To: phone, Type: "text"}
	reqBody.Text.Body = text

	var resp sendMessageResponse
	if err := c.doRequest(ctx, "/v1/messages", reqBody, &resp); err != nil {
		return err
	}
	if resp.Error != nil {
		return fmt.Errorf("whatsapp gateway error [%d]: %s", resp.Error.Code, resp.Error.Message)
	}
	return nil
}

// doRequest posts a JSON body to the gateway and decodes the JSON response.
func (c *WhatsAppClient) doRequest(ctx context.Context, path string, body, result any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("whatsapp request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("whatsapp gateway returned %d: %s", resp.StatusCode, raw)
	}
	if result != nil {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return fmt.Errorf("failed to decode whatsapp response: %w", err)
		}
	}
	return nil
}

// WhatsAppChannel adapts the client to the Dispatcher's Channel interface,
// rendering the message with its title as a bold header.
type WhatsAppChannel struct {
	client *WhatsAppClient
}

func NewWhatsAppChannel(client *WhatsAppClient) *WhatsAppChannel {
	return &WhatsAppChannel{client: client}
}

func (c *WhatsAppChannel) Name() string { return "whatsapp" }

func (c *WhatsAppChannel) Send(ctx context.Context, to Recipient, msg Message) error {
	if to.Phone == "" {
		return fmt.Errorf("recipient %q has no phone on file", to.Name)
	}
	text := fmt.Sprintf("*%s*\n%s", msg.Title, msg.Body)
	return c.client.SendText(ctx, to.Phone, text)
}
