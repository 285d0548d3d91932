// Package notify announces newly created articles.
package notify

import (
	"context"
	"errors"
	"fmt"

	"github.com/mattn/go-runewidth"

	"github.com/pep299/qiita-highlight-bridge/internal/model"
)

// MaxTitleWidth is the display width titles are truncated to in a digest.
const MaxTitleWidth = 80

// Notifier announces a batch of new articles.
type Notifier interface {
	Notify(ctx context.Context, articles []model.Article) error
}

// Header returns the digest heading for n articles.
func Header(n int) string {
	return fmt.Sprintf("今日のQiitaハイライト (%d件)", n)
}

// Line formats one article of the digest.
func Line(article model.Article) string {
	return fmt.Sprintf("- %s (LGTM: %d) %s", TruncateTitle(article.Title), article.Likes, article.URL)
}

// TruncateTitle shortens title to MaxTitleWidth display columns. Wide
// characters count as two columns.
func TruncateTitle(title string) string {
	return runewidth.Truncate(title, MaxTitleWidth, "...")
}

// Multi fans a notification out to every notifier and joins their errors.
type Multi []Notifier

func (m Multi) Notify(ctx context.Context, articles []model.Article) error {
	var errs []error
	for _, n := range m {
		if err := n.Notify(ctx, articles); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
