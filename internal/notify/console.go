package notify

import (
	"context"

	"github.com/pep299/qiita-highlight-bridge/internal/logger"
	"github.com/pep299/qiita-highlight-bridge/internal/model"
)

// Console writes the digest to the log.
type Console struct {
	logger logger.Logger
}

// NewConsole creates a console notifier.
func NewConsole(log logger.Logger) *Console {
	if log == nil {
		log = logger.NewNop()
	}
	return &Console{logger: log}
}

func (c *Console) Notify(ctx context.Context, articles []model.Article) error {
	if len(articles) == 0 {
		c.logger.Info("No new articles to notify")
		return nil
	}

	c.logger.Info(Header(len(articles)))
	for _, article := range articles {
		c.logger.Info(Line(article))
	}
	return nil
}
