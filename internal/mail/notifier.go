package mail

import (
	"context"
	"log/slog"
)

// PlotRoster lists the email addresses of a plot's active members.
type PlotRoster interface {
	ListPlotEmails(ctx context.Context, plotNumber string) ([]string, error)
}

// MeteringNotifier emails plot members after workflow changes. Roster lookup
// or enqueue failures are logged, never surfaced: mail is advisory and must
// not fail a submission or an unlock.
type MeteringNotifier struct {
	svc    *Service
	roster PlotRoster
	logger *slog.Logger
}

// NewMeteringNotifier builds a MeteringNotifier.
func NewMeteringNotifier(svc *Service, roster PlotRoster, logger *slog.Logger) *MeteringNotifier {
	return &MeteringNotifier{svc: svc, roster: roster, logger: logger}
}

// ReadingReceived notifies the plot's members about a recorded reading.
func (n *MeteringNotifier) ReadingReceived(ctx context.Context, plotNumber, periodKey string, value float64) {
	recipients, err := n.roster.ListPlotEmails(ctx, plotNumber)
	if err != nil {
		n.logger.Warn("list plot recipients", slog.String("plot", plotNumber), slog.Any("error", err))
		return
	}
	if err := n.svc.ReadingReceived(ctx, recipients, plotNumber, periodKey, value); err != nil {
		n.logger.Warn("enqueue reading notice", slog.String("plot", plotNumber), slog.Any("error", err))
	}
}

// UnlockNotice notifies the plot's members that their meter number was reset.
func (n *MeteringNotifier) UnlockNotice(ctx context.Context, plotNumber string) {
	recipients, err := n.roster.ListPlotEmails(ctx, plotNumber)
	if err != nil {
		n.logger.Warn("list plot recipients", slog.String("plot", plotNumber), slog.Any("error", err))
		return
	}
	if err := n.svc.UnlockNotice(ctx, recipients, plotNumber); err != nil {
		n.logger.Warn("enqueue unlock notice", slog.String("plot", plotNumber), slog.Any("error", err))
	}
}
