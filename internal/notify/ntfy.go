package notify

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/banshee-data/posture.report/internal/httputil"
	"github.com/banshee-data/posture.report/internal/version"
)

// NtfyNotifier pushes toasts to an ntfy topic. It has no sound of its own;
// the receiving device plays its configured notification sound.
type NtfyNotifier struct {
	endpoint string
	client   httputil.HTTPClient
}

// NewNtfyNotifier posts to server/topic. A nil client gets a standard client
// with a 10s timeout.
func NewNtfyNotifier(server, topic string, client httputil.HTTPClient) *NtfyNotifier {
	if client == nil {
		client = httputil.NewStandardClient(10 * time.Second)
	}
	return &NtfyNotifier{
		endpoint: strings.TrimRight(server, "/") + "/" + strings.TrimLeft(topic, "/"),
		client:   httputil.WithUserAgent(client, "posture-report/"+version.Version),
	}
}

func (n *NtfyNotifier) PlaySound(context.Context, Sound) error { return nil }

func (n *NtfyNotifier) ShowToast(ctx context.Context, t Toast) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(t.Message))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if t.Title != "" {
		req.Header.Set("Title", t.Title)
	}
	if t.Urgent {
		req.Header.Set("Tags", "warning")
		req.Header.Set("Priority", "high")
	} else {
		req.Header.Set("Tags", "white_check_mark")
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}
