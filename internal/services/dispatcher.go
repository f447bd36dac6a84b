package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ArowuTest/ecell-newsletter-backend/internal/apperrors"
	"github.com/ArowuTest/ecell-newsletter-backend/internal/models"
	"github.com/ArowuTest/ecell-newsletter-backend/internal/repositories"
	"github.com/ArowuTest/ecell-newsletter-backend/internal/templates"
	"github.com/ArowuTest/ecell-newsletter-backend/pkg/logger"
	"github.com/ArowuTest/ecell-newsletter-backend/pkg/mailer"
	"github.com/ArowuTest/ecell-newsletter-backend/pkg/metrics"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

const (
	DefaultBatchSize  = 10
	DefaultBatchDelay = 2 * time.Second

	resetTimeout = 10 * time.Second
)

// SettingsProvider supplies the runtime dispatch settings.
type SettingsProvider interface {
	GetSettings(ctx context.Context) (*models.NewsletterSettings, error)
}

// DispatcherConfig holds the static dispatch parameters. BatchSize and
// BatchDelay are used when no SettingsProvider is configured.
type DispatcherConfig struct {
	FrontendBaseURL string
	BatchSize       int
	BatchDelay      time.Duration
}

// Dispatcher sends one campaign to its recipients in sequential, rate-limited batches
type Dispatcher struct {
	campaignRepo   repositories.CampaignRepository
	subscriberRepo repositories.SubscriberRepository
	transport      mailer.Transport
	settings       SettingsProvider
	cfg            DispatcherConfig
	log            *zap.Logger

	now  func() time.Time
	wait func(ctx context.Context, d time.Duration) error
}

// NewDispatcher creates a new Dispatcher. settings may be nil.
func NewDispatcher(
	campaignRepo repositories.CampaignRepository,
	subscriberRepo repositories.SubscriberRepository,
	transport mailer.Transport,
	settings SettingsProvider,
	cfg DispatcherConfig,
) *Dispatcher {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.BatchDelay < 0 {
		cfg.BatchDelay = DefaultBatchDelay
	}
	return &Dispatcher{
		campaignRepo:   campaignRepo,
		subscriberRepo: subscriberRepo,
		transport:      transport,
		settings:       settings,
		cfg:            cfg,
		log:            logger.Named("dispatcher"),
		now:            func() time.Time { return time.Now().UTC() },
		wait:           sleepCtx,
	}
}

type recipient struct {
	email          string
	unsubscribeURL string
}

type batching struct {
	size  int
	delay time.Duration
}

// SendCampaign snapshots the active subscribers and sends the campaign to
// all of them. Per-recipient failures are reported in the result. Any other
// failure after the campaign entered sending resets it to draft.
func (d *Dispatcher) SendCampaign(ctx context.Context, id primitive.ObjectID) (*models.DispatchResult, error) {
	started := time.Now()
	log := d.log.With(logger.CampaignID(id.Hex()))

	campaign, err := d.campaignRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := sendGuard(campaign.Status); err != nil {
		metrics.CampaignDispatches.WithLabelValues("rejected").Inc()
		return nil, err
	}
	if err := d.transport.Ready(); err != nil {
		metrics.CampaignDispatches.WithLabelValues("failed").Inc()
		return nil, err
	}

	plan, err := d.batching(ctx)
	if err != nil {
		return nil, err
	}

	snapshot, err := d.subscriberRepo.FindActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("snapshot subscribers: %w", err)
	}
	if len(snapshot) == 0 {
		metrics.CampaignDispatches.WithLabelValues("no_recipients").Inc()
		return nil, apperrors.ErrNoRecipients
	}
	totalRecipients := len(snapshot)

	// commit point: only one caller can move the campaign into sending
	campaign, err = d.campaignRepo.TransitionStatus(ctx, id, models.SendableStatuses, models.CampaignSending)
	if err != nil {
		if errors.Is(err, apperrors.ErrStatusMismatch) {
			err = d.classifyRejected(ctx, id)
			metrics.CampaignDispatches.WithLabelValues("rejected").Inc()
		}
		return nil, err
	}
	log.Info("campaign dispatch started",
		logger.Count("recipients", totalRecipients),
		logger.Count("batch_size", plan.size),
		zap.Duration("batch_delay", plan.delay),
	)

	recipients := make([]recipient, len(snapshot))
	for i, s := range snapshot {
		recipients[i] = recipient{
			email:          s.Email,
			unsubscribeURL: templates.UnsubscribeURL(d.cfg.FrontendBaseURL, s.UnsubscribeToken),
		}
	}

	result, delivered, err := d.run(ctx, campaign, recipients, plan, log)
	if err == nil {
		sentAt := d.now()
		if err = d.campaignRepo.MarkSent(ctx, id, totalRecipients, sentAt); err == nil {
			if mErr := d.subscriberRepo.MarkEmailed(ctx, delivered, sentAt); mErr != nil {
				log.Warn("failed to stamp lastEmailSent", logger.Err(mErr))
			}
		} else {
			err = fmt.Errorf("mark campaign sent: %w", err)
		}
	}
	if err != nil {
		d.resetToDraft(ctx, id, log)
		metrics.CampaignDispatches.WithLabelValues("failed").Inc()
		log.Error("campaign dispatch failed; reset to draft", logger.Err(err))
		return nil, err
	}

	metrics.CampaignDispatches.WithLabelValues("sent").Inc()
	metrics.DispatchDuration.Observe(time.Since(started).Seconds())
	log.Info("campaign dispatch finished",
		logger.Count("sent", result.TotalSent),
		logger.Count("failed", result.TotalFailed),
		zap.Duration("took", time.Since(started)),
	)
	return result, nil
}

// SendCampaignToAddresses runs the send pipeline against an explicit address
// list. Campaign status and stats are left untouched.
func (d *Dispatcher) SendCampaignToAddresses(ctx context.Context, id primitive.ObjectID, addresses []string) (*models.DispatchResult, error) {
	emails, err := normalizeAddresses(addresses)
	if err != nil {
		return nil, err
	}

	campaign, err := d.campaignRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := d.transport.Ready(); err != nil {
		return nil, err
	}
	plan, err := d.batching(ctx)
	if err != nil {
		return nil, err
	}

	known, err := d.subscriberRepo.FindByEmails(ctx, emails)
	if err != nil {
		return nil, fmt.Errorf("look up subscribers: %w", err)
	}
	tokens := make(map[string]string, len(known))
	for _, s := range known {
		tokens[s.Email] = s.UnsubscribeToken
	}

	recipients := make([]recipient, len(emails))
	for i, e := range emails {
		url := templates.NewsletterURL(d.cfg.FrontendBaseURL)
		if tok, ok := tokens[e]; ok {
			url = templates.UnsubscribeURL(d.cfg.FrontendBaseURL, tok)
		}
		recipients[i] = recipient{email: e, unsubscribeURL: url}
	}

	log := d.log.With(logger.CampaignID(id.Hex()), logger.Op("send_to_addresses"))
	result, _, err := d.run(ctx, campaign, recipients, plan, log)
	if err != nil {
		return nil, err
	}
	return result, nil
}

// run renders every message, then hands the batches to the transport in
// order, pausing between batches. Cancellation is honoured between batches only.
func (d *Dispatcher) run(ctx context.Context, campaign *models.Campaign, recipients []recipient, plan batching, log *zap.Logger) (*models.DispatchResult, []string, error) {
	messages := make([]*mailer.Message, len(recipients))
	for i, r := range recipients {
		rendered, err := templates.RenderCampaign(campaign, r.unsubscribeURL)
		if err != nil {
			return nil, nil, err
		}
		messages[i] = &mailer.Message{
			To:      r.email,
			Subject: rendered.Subject,
			Text:    rendered.Text,
			HTML:    rendered.HTML,
		}
	}

	batches := partition(messages, plan.size)
	result := &models.DispatchResult{Errors: []models.RecipientError{}}
	delivered := make([]string, 0, len(messages))

	for i, batch := range batches {
		if i > 0 {
			if err := d.wait(ctx, plan.delay); err != nil {
				log.Warn("dispatch interrupted between batches",
					logger.Batch(i+1, len(batches)), logger.Err(err))
				return nil, nil, err
			}
		}

		res := d.transport.SendBulkEmails(ctx, batch)
		metrics.BatchesSent.Inc()
		metrics.EmailsSent.Add(float64(len(res.Results)))
		metrics.EmailsFailed.Add(float64(len(res.Errors)))

		for _, ok := range res.Results {
			delivered = append(delivered, ok.To)
		}
		for _, failed := range res.Errors {
			// the channel itself is down, not this recipient
			if errors.Is(failed.Err, mailer.ErrNotInitialized) {
				return nil, nil, failed.Err
			}
			result.Errors = append(result.Errors, models.RecipientError{To: failed.To, Error: failed.Err.Error()})
		}
		log.Debug("batch processed",
			logger.Batch(i+1, len(batches)),
			logger.Count("sent", len(res.Results)),
			logger.Count("failed", len(res.Errors)),
		)
	}

	result.TotalSent = len(delivered)
	result.TotalFailed = len(result.Errors)
	return result, delivered, nil
}

func (d *Dispatcher) batching(ctx context.Context) (batching, error) {
	plan := batching{size: d.cfg.BatchSize, delay: d.cfg.BatchDelay}
	if d.settings == nil {
		return plan, nil
	}
	s, err := d.settings.GetSettings(ctx)
	if err != nil {
		return plan, fmt.Errorf("load dispatch settings: %w", err)
	}
	if s.BatchSize > 0 {
		plan.size = s.BatchSize
	}
	if s.BatchDelayMs >= 0 {
		plan.delay = s.BatchDelay()
	}
	return plan, nil
}

// classifyRejected explains why the conditional move into sending matched nothing.
func (d *Dispatcher) classifyRejected(ctx context.Context, id primitive.ObjectID) error {
	current, err := d.campaignRepo.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if err := sendGuard(current.Status); err != nil {
		return err
	}
	// lost a race with a dispatch that has since finished or failed
	return apperrors.ErrAlreadySending
}

// resetToDraft returns a failed dispatch to draft. It runs on a context
// detached from ctx so a cancelled dispatch can still be reset.
func (d *Dispatcher) resetToDraft(ctx context.Context, id primitive.ObjectID, log *zap.Logger) {
	rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), resetTimeout)
	defer cancel()
	_, err := d.campaignRepo.TransitionStatus(rctx, id, []models.CampaignStatus{models.CampaignSending}, models.CampaignDraft)
	if err != nil {
		log.Error("failed to reset campaign to draft", logger.Err(err))
	}
}

// sendGuard rejects statuses a dispatch may not start from.
func sendGuard(status models.CampaignStatus) error {
	switch status {
	case models.CampaignDraft, models.CampaignScheduled:
		return nil
	case models.CampaignSending:
		return apperrors.ErrAlreadySending
	case models.CampaignSent:
		return apperrors.ErrAlreadySent
	default:
		return fmt.Errorf("%w: cannot send a %s campaign", apperrors.ErrInvalidTransition, status)
	}
}

func partition(msgs []*mailer.Message, size int) [][]*mailer.Message {
	batches := make([][]*mailer.Message, 0, (len(msgs)+size-1)/size)
	for start := 0; start < len(msgs); start += size {
		end := start + size
		if end > len(msgs) {
			end = len(msgs)
		}
		batches = append(batches, msgs[start:end])
	}
	return batches
}

func normalizeAddresses(addresses []string) ([]string, error) {
	seen := make(map[string]bool, len(addresses))
	out := make([]string, 0, len(addresses))
	for _, a := range addresses {
		e := models.NormalizeEmail(a)
		if e == "" || seen[e] {
			continue
		}
		if !validEmail(e) {
			return nil, apperrors.NewValidation("addresses", fmt.Sprintf("%q is not a valid email address", a))
		}
		seen[e] = true
		out = append(out, e)
	}
	if len(out) == 0 {
		return nil, apperrors.NewValidation("addresses", "at least one address is required")
	}
	return out, nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
