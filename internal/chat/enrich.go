package chat

import (
	"context"
	"fmt"
	"strings"
	"time"

	"adpulse/internal/store"
	"adpulse/pkg/logging"
)

type accountLister interface {
	GetConnectedAccounts(ctx context.Context, orgID, platform string) ([]store.Account, error)
}

// Enricher rewrites the outbound prompt with resolved account names and a
// default reporting window so the model does not have to guess either. The
// original user message is what gets persisted; only the prompt changes.
type Enricher struct {
	store  accountLister
	logger logging.Logger
	now    func() time.Time
}

func NewEnricher(st accountLister, logger logging.Logger) *Enricher {
	return &Enricher{store: st, logger: logger, now: time.Now}
}

// Enrich returns the message with a context block appended. Any failure
// degrades to the original message unchanged.
func (e *Enricher) Enrich(ctx context.Context, orgID, message string) string {
	if e == nil || e.store == nil {
		return message
	}
	accounts, err := e.store.GetConnectedAccounts(ctx, orgID, "")
	if err != nil {
		if e.logger != nil {
			e.logger.WithError(err).Debug("Prompt enrichment skipped")
		}
		return message
	}
	if len(accounts) == 0 {
		return message
	}

	var sb strings.Builder
	sb.WriteString(message)
	sb.WriteString("\n\n[context]\nConnected accounts:\n")
	for _, a := range accounts {
		fmt.Fprintf(&sb, "- %s (id=%s, platform=%s)\n", a.Name, a.ID, a.Platform)
	}
	today := e.now().UTC().Truncate(24 * time.Hour)
	fmt.Fprintf(&sb, "Default reporting window: %s ~ %s\n[/context]",
		today.AddDate(0, 0, -7).Format("2006-01-02"), today.Format("2006-01-02"))
	return sb.String()
}
