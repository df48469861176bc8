package whatsapp

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/mamadbah2/mandi/internal/config"
	"github.com/mamadbah2/mandi/internal/domain/models"
	"github.com/mamadbah2/mandi/internal/domain/settlement"
	"github.com/mamadbah2/mandi/internal/observability/metrics"
	"github.com/mamadbah2/mandi/internal/service/billing"
	client "github.com/mamadbah2/mandi/pkg/clients/whatsapp"
)

const sendTimeout = 10 * time.Second

// Notifier pushes settlement messages to farmers and the committee.
type Notifier interface {
	SendOutbound(ctx context.Context, req models.OutboundMessageRequest) error
	NotifyFarmerPaid(ctx context.Context, lot models.Lot, invoice settlement.Invoice) error
	NotifyCommittee(ctx context.Context, message string) error
}

// MetaWhatsAppService is the production implementation backed by WhatsApp Cloud API.
// A nil client turns every send into a logged no-op.
type MetaWhatsAppService struct {
	cfg    config.WhatsAppConfig
	client client.Client
	logger *zap.Logger
}

// NewMetaWhatsAppService wires a new service instance.
func NewMetaWhatsAppService(cfg config.WhatsAppConfig, client client.Client, logger *zap.Logger) *MetaWhatsAppService {
	svc := &MetaWhatsAppService{
		cfg:    cfg,
		client: client,
		logger: logger,
	}
	if svc.logger == nil {
		svc.logger = zap.NewNop()
	}
	return svc
}

// SendOutbound sends a free-form text message.
func (s *MetaWhatsAppService) SendOutbound(ctx context.Context, req models.OutboundMessageRequest) error {
	return s.send(ctx, "outbound", req)
}

// NotifyFarmerPaid confirms a settled lot to the farmer.
func (s *MetaWhatsAppService) NotifyFarmerPaid(ctx context.Context, lot models.Lot, inv settlement.Invoice) error {
	if lot.FarmerPhone == "" {
		return nil
	}
	return s.send(ctx, "farmer_paid", models.OutboundMessageRequest{
		To:      lot.FarmerPhone,
		Message: FarmerPaidMessage(inv),
	})
}

// NotifyCommittee sends a message to the committee number, if configured.
func (s *MetaWhatsAppService) NotifyCommittee(ctx context.Context, message string) error {
	if s.cfg.CommitteeNumber == "" {
		s.logger.Debug("committee number not configured, digest not sent")
		return nil
	}
	return s.send(ctx, "committee_digest", models.OutboundMessageRequest{
		To:      s.cfg.CommitteeNumber,
		Message: message,
	})
}

func (s *MetaWhatsAppService) send(ctx context.Context, kind string, req models.OutboundMessageRequest) error {
	if s.client == nil {
		s.logger.Debug("whatsapp disabled, message dropped", zap.String("kind", kind))
		return nil
	}

	ctxWithTimeout, cancel := context.WithTimeout(ctx, sendTimeout)
	defer cancel()

	_, err := s.client.SendTextMessage(ctxWithTimeout, client.SendTextMessageRequest{
		To:         req.To,
		Body:       req.Message,
		PreviewURL: req.PreviewURL,
	})
	metrics.IncNotification(kind, err)
	if err != nil {
		return fmt.Errorf("send %s message: %w", kind, err)
	}
	s.logger.Info("whatsapp message sent", zap.String("kind", kind))
	return nil
}

// FarmerPaidMessage renders the payment confirmation sent to a farmer.
func FarmerPaidMessage(inv settlement.Invoice) string {
	return fmt.Sprintf(
		"Namaste %s, payment for your %s lot (%s %s) is confirmed.\nSale amount: Rs %s\nCommission: Rs %s\nPaid to you: Rs %s",
		inv.FarmerName,
		inv.Crop,
		billing.FormatQuantity(inv.SoldQuantity),
		inv.Unit,
		billing.FormatMoney(inv.BaseAmount),
		billing.FormatMoney(inv.Commission),
		billing.FormatMoney(inv.FinalAmount),
	)
}
