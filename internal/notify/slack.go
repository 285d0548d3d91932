package notify

import (
	"context"
	"fmt"
	"strings"

	"github.com/pep299/qiita-highlight-bridge/internal/model"
)

// MessageSender posts a text message to a chat channel.
type MessageSender interface {
	SendMessage(ctx context.Context, text string) error
}

// Slack posts the digest as a single message.
type Slack struct {
	sender MessageSender
}

// NewSlack creates a Slack notifier on top of sender.
func NewSlack(sender MessageSender) *Slack {
	return &Slack{sender: sender}
}

func (s *Slack) Notify(ctx context.Context, articles []model.Article) error {
	if len(articles) == 0 {
		return nil
	}
	if err := s.sender.SendMessage(ctx, FormatSlackDigest(articles)); err != nil {
		return fmt.Errorf("sending slack digest: %w", err)
	}
	return nil
}

// FormatSlackDigest renders articles as Slack mrkdwn.
func FormatSlackDigest(articles []model.Article) string {
	var b strings.Builder
	b.WriteString("*" + Header(len(articles)) + "*\n")
	for _, article := range articles {
		fmt.Fprintf(&b, "• <%s|%s> (LGTM: %d)\n", article.URL, escapeMrkdwn(TruncateTitle(article.Title)), article.Likes)
	}
	return strings.TrimRight(b.String(), "\n")
}

var mrkdwnEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")

func escapeMrkdwn(text string) string {
	return mrkdwnEscaper.Replace(text)
}
