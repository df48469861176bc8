package billing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/mamadbah2/mandi/internal/domain/models"
	"github.com/mamadbah2/mandi/internal/domain/settlement"
	"github.com/mamadbah2/mandi/internal/observability/metrics"
	"github.com/mamadbah2/mandi/internal/repository"
	"github.com/mamadbah2/mandi/internal/repository/cache"
	"github.com/mamadbah2/mandi/internal/repository/sheets"
)

const (
	dateLayout        = "2006-01-02"
	defaultCacheTTL   = 60 * time.Second
	defaultSheetRange = "Billing!A:N"
)

// ErrInvalidRange indicates a report window that ends before it starts.
var ErrInvalidRange = errors.New("report range end must be after start")

// Options tunes the billing service.
type Options struct {
	CacheTTL   time.Duration
	SheetRange string
	Location   *time.Location
}

// Service builds committee billing reports, trader statements and the daily digest.
type Service struct {
	lots       repository.LotRepository
	digests    repository.SettlementRepository
	cache      cache.Cache
	sheet      sheets.Repository
	rates      settlement.Rates
	ttl        time.Duration
	sheetRange string
	loc        *time.Location
	logger     *zap.Logger
	now        func() time.Time
}

// NewService wires a billing service. reportCache and sheet may be nil.
func NewService(lots repository.LotRepository, digests repository.SettlementRepository, reportCache cache.Cache, sheet sheets.Repository, rates settlement.Rates, opts Options, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = defaultCacheTTL
	}
	if opts.SheetRange == "" {
		opts.SheetRange = defaultSheetRange
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	return &Service{
		lots:       lots,
		digests:    digests,
		cache:      reportCache,
		sheet:      sheet,
		rates:      rates,
		ttl:        opts.CacheTTL,
		sheetRange: opts.SheetRange,
		loc:        opts.Location,
		logger:     logger,
		now:        time.Now,
	}
}

// Totals are the committee-wide sums over the sales dated in a report
// window. Lots counts every lot with activity in the window.
type Totals struct {
	Lots              int     `json:"lots"`
	BaseAmount        float64 `json:"base_amount"`
	FarmerCommission  float64 `json:"farmer_commission"`
	NetPayable        float64 `json:"net_payable"`
	FarmerOutstanding float64 `json:"farmer_outstanding"`
	TraderGross       float64 `json:"trader_gross"`
	TraderCommission  float64 `json:"trader_commission"`
	TraderPayable     float64 `json:"trader_payable"`
	TraderOutstanding float64 `json:"trader_outstanding"`
	CommitteeIncome   float64 `json:"committee_income"`
}

// Report is the billing view for a window. Invoices are whole-lot snapshots
// of every lot with activity in the window; Charges and Totals cover only the
// splits dated inside it. Dates are in the market timezone. Every amount
// comes from the settlement package.
type Report struct {
	From        time.Time                 `json:"from"`
	To          time.Time                 `json:"to"`
	GeneratedAt time.Time                 `json:"generated_at"`
	Invoices    []settlement.Invoice      `json:"invoices"`
	Sales       []settlement.FarmerShare  `json:"sales"`
	Charges     []settlement.TraderCharge `json:"charges"`
	Totals      Totals                    `json:"totals"`
}

// StatementTotals sums one trader's charges.
type StatementTotals struct {
	Splits      int     `json:"splits"`
	Gross       float64 `json:"gross"`
	Commission  float64 `json:"commission"`
	Payable     float64 `json:"payable"`
	Paid        float64 `json:"paid"`
	Outstanding float64 `json:"outstanding"`
}

// TraderStatement lists what one trader bought and owes.
type TraderStatement struct {
	TraderID   string                    `json:"trader_id"`
	TraderName string                    `json:"trader_name"`
	From       time.Time                 `json:"from"`
	To         time.Time                 `json:"to"`
	Charges    []settlement.TraderCharge `json:"charges"`
	Totals     StatementTotals           `json:"totals"`
}

// Location returns the market timezone used for day boundaries.
func (s *Service) Location() *time.Location {
	return s.loc
}

// Report reconciles every lot active in [from, to) and totals the result.
// Reports are cached until the TTL elapses or any lot changes.
func (s *Service) Report(ctx context.Context, from, to time.Time) (report Report, err error) {
	if !to.After(from) {
		return Report{}, ErrInvalidRange
	}
	started := time.Now()

	key, cacheable := s.cacheKey(ctx, from, to)
	if cacheable {
		if cached, ok := s.cachedReport(ctx, key); ok {
			metrics.ObserveBillingReport(true, nil, time.Since(started))
			return cached, nil
		}
	}
	defer func() { metrics.ObserveBillingReport(false, err, time.Since(started)) }()

	window := repository.LotFilter{From: from, To: to}
	lots, err := s.lots.ListLots(ctx, window)
	if err != nil {
		return Report{}, fmt.Errorf("load lots for billing: %w", err)
	}

	report = Report{
		From:        from.In(s.loc),
		To:          to.In(s.loc),
		GeneratedAt: s.now().UTC(),
		Invoices:    make([]settlement.Invoice, 0, len(lots)),
		Sales:       []settlement.FarmerShare{},
		Charges:     []settlement.TraderCharge{},
	}
	for _, lot := range lots {
		inv := s.reconcile(lot)
		report.Invoices = append(report.Invoices, inv)
		for _, share := range settlement.FarmerShares(inv) {
			if window.Covers(share.Date) {
				report.Sales = append(report.Sales, share)
			}
		}
		for _, charge := range settlement.TraderCharges(inv, s.rates) {
			if window.Covers(charge.Date) {
				report.Charges = append(report.Charges, charge)
			}
		}
	}
	report.Totals = sumTotals(len(report.Invoices), report.Sales, report.Charges)

	if cacheable {
		s.storeReport(ctx, key, report)
	}

	s.logger.Debug("billing report built",
		zap.Time("from", from),
		zap.Time("to", to),
		zap.Int("invoices", len(report.Invoices)),
		zap.Int("sales", len(report.Sales)),
		zap.Int("charges", len(report.Charges)))
	return report, nil
}

// TraderStatement lists one trader's purchases in [from, to). Zero bounds
// leave that side open.
func (s *Service) TraderStatement(ctx context.Context, traderID string, from, to time.Time) (TraderStatement, error) {
	if !from.IsZero() && !to.IsZero() && !to.After(from) {
		return TraderStatement{}, ErrInvalidRange
	}
	lots, err := s.lots.ListLots(ctx, repository.LotFilter{TraderID: traderID, From: from, To: to})
	if err != nil {
		return TraderStatement{}, fmt.Errorf("load lots for trader %s: %w", traderID, err)
	}

	window := repository.LotFilter{From: from, To: to}
	stmt := TraderStatement{TraderID: traderID, From: from, To: to, Charges: []settlement.TraderCharge{}}
	var gross, commission, payable, paid decimal.Decimal
	for _, lot := range lots {
		inv := s.reconcile(lot)
		for _, charge := range settlement.TraderCharges(inv, s.rates) {
			if charge.TraderID != traderID || !window.Covers(charge.Date) {
				continue
			}
			if stmt.TraderName == "" {
				stmt.TraderName = charge.TraderName
			}
			stmt.Charges = append(stmt.Charges, charge)
			gross = gross.Add(money(charge.BaseAmount))
			commission = commission.Add(money(charge.Commission))
			payable = payable.Add(money(charge.TotalPayable))
			if !charge.PaymentPending {
				paid = paid.Add(money(charge.TotalPayable))
			}
		}
	}

	stmt.Totals = StatementTotals{
		Splits:      len(stmt.Charges),
		Gross:       amount(gross),
		Commission:  amount(commission),
		Payable:     amount(payable),
		Paid:        amount(paid),
		Outstanding: amount(payable.Sub(paid)),
	}
	return stmt, nil
}

// ExportToSheet appends the report rows for [from, to) to the billing sheet.
func (s *Service) ExportToSheet(ctx context.Context, from, to time.Time) (rows int, err error) {
	defer func() { metrics.IncExport("sheet", err) }()

	if s.sheet == nil {
		return 0, sheets.ErrDisabled
	}
	report, err := s.Report(ctx, from, to)
	if err != nil {
		return 0, err
	}
	values := SheetRows(report)
	if err := s.sheet.AppendRows(ctx, s.sheetRange, values); err != nil {
		return 0, fmt.Errorf("export billing sheet: %w", err)
	}
	s.logger.Info("billing rows exported", zap.Int("rows", len(values)), zap.String("range", s.sheetRange))
	return len(values), nil
}

// DailyDigest totals the splits sold on the given market day and persists the
// result.
func (s *Service) DailyDigest(ctx context.Context, day time.Time) (models.DailySettlement, error) {
	local := day.In(s.loc)
	start := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, s.loc)
	end := start.AddDate(0, 0, 1)
	window := repository.LotFilter{From: start, To: end}

	lots, err := s.lots.ListLots(ctx, window)
	if err != nil {
		return models.DailySettlement{}, fmt.Errorf("load lots for digest: %w", err)
	}

	var gross, farmerCommission, traderCommission, outstanding, receivable decimal.Decimal
	digest := models.DailySettlement{Date: start, CreatedAt: s.now().UTC()}
	for _, lot := range lots {
		inv := s.reconcile(lot)
		traded := false
		for _, split := range inv.Splits {
			if !window.Covers(split.Date) {
				continue
			}
			traded = true
			digest.SplitsRecorded++

			share := settlement.ChargeFarmer(split, inv.CommissionRate)
			charge := settlement.ChargeTrader(split, inv.Unit, s.rates)

			gross = gross.Add(money(share.BaseAmount))
			farmerCommission = farmerCommission.Add(money(share.Commission))
			traderCommission = traderCommission.Add(money(charge.Commission))
			if share.PaymentPending {
				outstanding = outstanding.Add(money(share.NetAmount))
			}
			if charge.PaymentPending {
				receivable = receivable.Add(money(charge.TotalPayable))
			}
		}
		if traded {
			digest.LotsTraded++
		}
	}

	digest.GrossSales = amount(gross)
	digest.FarmerCommission = amount(farmerCommission)
	digest.TraderCommission = amount(traderCommission)
	digest.FarmerPayable = amount(gross.Sub(farmerCommission))
	digest.FarmerOutstanding = amount(outstanding)
	digest.TraderReceivable = amount(receivable)

	if s.digests != nil {
		if err := s.digests.SaveDailySettlement(ctx, digest); err != nil {
			return models.DailySettlement{}, fmt.Errorf("save daily settlement: %w", err)
		}
	}
	return digest, nil
}

// DigestMessage renders a digest as a WhatsApp text.
func DigestMessage(d models.DailySettlement) string {
	if d.SplitsRecorded == 0 {
		return fmt.Sprintf("Mandi settlement %s: no sales recorded.", d.Date.Format(dateLayout))
	}
	return fmt.Sprintf(
		"Mandi settlement %s\nLots traded: %d (%d sales)\nGross sales: Rs %s\nFarmer commission: Rs %s\nTrader commission: Rs %s\nFarmer payable: Rs %s (outstanding Rs %s)\nTrader receivable: Rs %s",
		d.Date.Format(dateLayout),
		d.LotsTraded,
		d.SplitsRecorded,
		FormatMoney(d.GrossSales),
		FormatMoney(d.FarmerCommission),
		FormatMoney(d.TraderCommission),
		FormatMoney(d.FarmerPayable),
		FormatMoney(d.FarmerOutstanding),
		FormatMoney(d.TraderReceivable),
	)
}

func (s *Service) cacheKey(ctx context.Context, from, to time.Time) (string, bool) {
	if s.cache == nil {
		return "", false
	}
	gen, err := s.cache.Generation(ctx)
	if err != nil {
		s.logger.Warn("billing cache generation unavailable", zap.Error(err))
		return "", false
	}
	return fmt.Sprintf("report:%d:%d:%d", gen, from.Unix(), to.Unix()), true
}

func (s *Service) cachedReport(ctx context.Context, key string) (Report, bool) {
	raw, ok, err := s.cache.Get(ctx, key)
	if err != nil {
		s.logger.Warn("billing cache read failed", zap.String("key", key), zap.Error(err))
		return Report{}, false
	}
	if !ok {
		return Report{}, false
	}
	var report Report
	if err := json.Unmarshal(raw, &report); err != nil {
		s.logger.Warn("discarding unreadable cached report", zap.String("key", key), zap.Error(err))
		return Report{}, false
	}
	return report, true
}

func (s *Service) storeReport(ctx context.Context, key string, report Report) {
	raw, err := json.Marshal(report)
	if err != nil {
		s.logger.Warn("encode billing report", zap.Error(err))
		return
	}
	if err := s.cache.Set(ctx, key, raw, s.ttl); err != nil {
		s.logger.Warn("billing cache write failed", zap.String("key", key), zap.Error(err))
	}
}

func (s *Service) reconcile(lot models.Lot) settlement.Invoice {
	return LocalizeInvoice(settlement.Reconcile(lot, lot.FarmerID, s.rates), s.loc)
}

func sumTotals(lots int, sales []settlement.FarmerShare, charges []settlement.TraderCharge) Totals {
	var base, farmerCommission, net, outstanding decimal.Decimal
	for _, sale := range sales {
		base = base.Add(money(sale.BaseAmount))
		farmerCommission = farmerCommission.Add(money(sale.Commission))
		net = net.Add(money(sale.NetAmount))
		if sale.PaymentPending {
			outstanding = outstanding.Add(money(sale.NetAmount))
		}
	}

	var traderGross, traderCommission, traderPayable, traderOutstanding decimal.Decimal
	for _, c := range charges {
		traderGross = traderGross.Add(money(c.BaseAmount))
		traderCommission = traderCommission.Add(money(c.Commission))
		traderPayable = traderPayable.Add(money(c.TotalPayable))
		if c.PaymentPending {
			traderOutstanding = traderOutstanding.Add(money(c.TotalPayable))
		}
	}

	return Totals{
		Lots:              lots,
		BaseAmount:        amount(base),
		FarmerCommission:  amount(farmerCommission),
		NetPayable:        amount(net),
		FarmerOutstanding: amount(outstanding),
		TraderGross:       amount(traderGross),
		TraderCommission:  amount(traderCommission),
		TraderPayable:     amount(traderPayable),
		TraderOutstanding: amount(traderOutstanding),
		CommitteeIncome:   amount(farmerCommission.Add(traderCommission)),
	}
}
