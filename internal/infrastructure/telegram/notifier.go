// Package telegram posts run summaries to a Telegram chat via the bot API.
package telegram

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"CorpusHarvester/internal/domain"
	"CorpusHarvester/internal/ports"
)

// Notifier sends a short end-of-run report. It is optional wiring: the
// harvest itself never depends on a delivered message.
type Notifier struct {
	endpoint string
	chatID   string
	client   *http.Client
}

var _ ports.Notifier = (*Notifier)(nil)

// NewNotifier registers bot token and chat identifier.
func NewNotifier(botToken, chatID string) *Notifier {
	return &Notifier{
		endpoint: fmt.Sprintf("https://api.telegram.org/bot%s/sendMessage", botToken),
		chatID:   chatID,
		client:   &http.Client{Timeout: 5 * time.Second},
	}
}

// NotifyRunComplete posts the final counters and the corpus location.
func (n *Notifier) NotifyRunComplete(ctx context.Context, stats domain.HarvestStats, outputPath string) error {
	if n.chatID == "" || n.client == nil {
		return fmt.Errorf("telegram notifier misconfigured")
	}

	form := url.Values{}
	form.Set("chat_id", n.chatID)
	form.Set("text", summary(stats, outputPath))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("telegram error: %s", resp.Status)
	}

	return nil
}

func summary(stats domain.HarvestStats, outputPath string) string {
	var b strings.Builder
	b.WriteString("Corpus harvest finished\n")
	fmt.Fprintf(&b, "Issues: %d, articles seen: %d\n", stats.Issues, stats.Articles)
	fmt.Fprintf(&b, "Processed: %d, skipped: %d, failed: %d\n", stats.Processed, stats.Skipped, stats.Failed)
	if !stats.StartedAt.IsZero() {
		fmt.Fprintf(&b, "Duration: %s\n", time.Since(stats.StartedAt).Round(time.Second))
	}
	fmt.Fprintf(&b, "Corpus: %s", outputPath)
	return b.String()
}
