package lots

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mamadbah2/mandi/internal/auth"
	"github.com/mamadbah2/mandi/internal/domain/models"
	"github.com/mamadbah2/mandi/internal/domain/settlement"
	"github.com/mamadbah2/mandi/internal/observability/metrics"
	"github.com/mamadbah2/mandi/internal/repository"
)

var (
	// ErrLotLocked indicates the lot already has sales recorded against it.
	ErrLotLocked = errors.New("lot is locked once a sale is recorded")
	// ErrOverSold indicates a split would exceed the lot's official total.
	ErrOverSold = errors.New("split exceeds the quantity awaiting sale")
	// ErrWeightPending indicates weighing staff have not confirmed the lot yet.
	ErrWeightPending = errors.New("official weight has not been confirmed")
	// ErrUnitMismatch indicates a figure in a different unit than the lot.
	ErrUnitMismatch = errors.New("quantity unit does not match the lot")
	// ErrForbidden indicates the actor may not touch the lot.
	ErrForbidden = errors.New("lot belongs to another farmer")
	// ErrNothingToSettle indicates every payment on the lot is already confirmed.
	ErrNothingToSettle = errors.New("nothing pending to settle")
	// ErrInvalidInput indicates a malformed request payload.
	ErrInvalidInput = errors.New("invalid input")
)

const notifyTimeout = 15 * time.Second

// Invalidator drops cached billing reports after a lot changes.
type Invalidator interface {
	Invalidate(ctx context.Context) error
}

// Notifier tells a farmer their payment was confirmed.
type Notifier interface {
	NotifyFarmerPaid(ctx context.Context, lot models.Lot, invoice settlement.Invoice) error
}

// LotInput is the farmer-editable part of a lot.
type LotInput struct {
	FarmerID    string  `json:"farmer_id"`
	FarmerName  string  `json:"farmer_name"`
	FarmerPhone string  `json:"farmer_phone"`
	Crop        string  `json:"crop"`
	Notes       string  `json:"notes"`
	Quantity    float64 `json:"quantity"`
	Carat       float64 `json:"carat"`
}

// WeightInput carries the official figure recorded at the weighbridge.
type WeightInput struct {
	OfficialQty   float64 `json:"official_qty"`
	OfficialCarat float64 `json:"official_carat"`
}

// SplitInput describes one sale to a trader.
type SplitInput struct {
	Qty        float64   `json:"qty"`
	Nag        float64   `json:"nag"`
	Rate       float64   `json:"rate"`
	Amount     float64   `json:"amount"`
	TraderID   string    `json:"trader_id"`
	TraderName string    `json:"trader_name"`
	Date       time.Time `json:"date"`
}

// Service owns the lot lifecycle: logging, weighing, splitting and settlement.
type Service struct {
	repo     repository.LotRepository
	cache    Invalidator
	notifier Notifier
	rates    settlement.Rates
	logger   *zap.Logger
	now      func() time.Time
	newID    func() string
	wg       sync.WaitGroup
}

// NewService constructs a lot service. cache and notifier may be nil.
func NewService(repo repository.LotRepository, cache Invalidator, notifier Notifier, rates settlement.Rates, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		repo:     repo,
		cache:    cache,
		notifier: notifier,
		rates:    rates,
		logger:   logger,
		now:      time.Now,
		newID:    uuid.NewString,
	}
}

// Rates returns the commission rates applied to new splits.
func (s *Service) Rates() settlement.Rates {
	return s.rates
}

// Create logs a new lot for a farmer.
func (s *Service) Create(ctx context.Context, actor auth.Actor, input LotInput) (lot models.Lot, err error) {
	defer func() { metrics.IncLotMutation("create", err) }()

	if actor.IsFarmer() {
		input.FarmerID = actor.FarmerID
	}
	if err := validateLotInput(input); err != nil {
		return models.Lot{}, err
	}
	qty, err := models.ParseQuantity(input.Quantity, input.Carat)
	if err != nil {
		return models.Lot{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	now := s.now().UTC()
	lot = models.Lot{
		ID:        s.newID(),
		CreatedAt: now,
		UpdatedAt: now,
		Version:   1,
		Status:    models.StatusPending,
	}
	applyLotInput(&lot, input, qty)
	lot = settlement.Aggregate(lot)

	if err := s.repo.InsertLot(ctx, lot); err != nil {
		return models.Lot{}, fmt.Errorf("insert lot: %w", err)
	}
	s.invalidate(ctx)

	s.logger.Info("lot created", zap.String("lot_id", lot.ID), zap.String("farmer_id", lot.FarmerID), zap.Stringer("quantity", qty))
	return lot, nil
}

// Get loads one lot visible to the actor.
func (s *Service) Get(ctx context.Context, actor auth.Actor, id string) (models.Lot, error) {
	lot, err := s.repo.FindLot(ctx, id)
	if err != nil {
		return models.Lot{}, fmt.Errorf("find lot %s: %w", id, err)
	}
	if !actor.CanAccessFarmer(lot.FarmerID) {
		return models.Lot{}, ErrForbidden
	}
	return lot, nil
}

// List returns lots matching the filter. Farmers only see their own.
func (s *Service) List(ctx context.Context, actor auth.Actor, filter repository.LotFilter) ([]models.Lot, error) {
	if actor.IsFarmer() {
		filter.FarmerID = actor.FarmerID
	}
	lots, err := s.repo.ListLots(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list lots: %w", err)
	}
	return lots, nil
}

// Invoice reconciles one lot into its settlement view.
func (s *Service) Invoice(ctx context.Context, actor auth.Actor, id string) (settlement.Invoice, error) {
	lot, err := s.Get(ctx, actor, id)
	if err != nil {
		return settlement.Invoice{}, err
	}
	return settlement.Reconcile(lot, lot.FarmerID, s.rates), nil
}

// Update edits a lot that has nothing sold yet.
func (s *Service) Update(ctx context.Context, actor auth.Actor, id string, input LotInput) (lot models.Lot, err error) {
	defer func() { metrics.IncLotMutation("update", err) }()

	current, err := s.Get(ctx, actor, id)
	if err != nil {
		return models.Lot{}, err
	}
	if hasSales(current) {
		return models.Lot{}, ErrLotLocked
	}

	input.FarmerID = current.FarmerID
	if err := validateLotInput(input); err != nil {
		return models.Lot{}, err
	}
	qty, err := models.ParseQuantity(input.Quantity, input.Carat)
	if err != nil {
		return models.Lot{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	next := current
	if qty != current.Measure() {
		next.OfficialQty, next.OfficialCarat = 0, 0
		next.WeightConfirmed = false
	}
	applyLotInput(&next, input, qty)

	return s.save(ctx, current, settlement.Aggregate(next))
}

// Delete removes a lot that has nothing sold yet.
func (s *Service) Delete(ctx context.Context, actor auth.Actor, id string) (err error) {
	defer func() { metrics.IncLotMutation("delete", err) }()

	current, err := s.Get(ctx, actor, id)
	if err != nil {
		return err
	}
	if hasSales(current) {
		return ErrLotLocked
	}
	if err := s.repo.DeleteLot(ctx, id, current.Version); err != nil {
		return fmt.Errorf("delete lot %s: %w", id, err)
	}
	s.invalidate(ctx)
	s.logger.Info("lot deleted", zap.String("lot_id", id), zap.String("by", actor.Subject))
	return nil
}

// ConfirmWeight records the official figure measured by weighing staff.
func (s *Service) ConfirmWeight(ctx context.Context, id string, input WeightInput) (lot models.Lot, err error) {
	defer func() { metrics.IncLotMutation("weigh", err) }()

	current, err := s.repo.FindLot(ctx, id)
	if err != nil {
		return models.Lot{}, fmt.Errorf("find lot %s: %w", id, err)
	}
	if hasSales(current) {
		return models.Lot{}, ErrLotLocked
	}
	official, err := models.ParseQuantity(input.OfficialQty, input.OfficialCarat)
	if err != nil {
		return models.Lot{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if official.Unit() != current.Measure().Unit() {
		return models.Lot{}, ErrUnitMismatch
	}

	next := current
	next.OfficialQty, next.OfficialCarat = official.Fields()
	next.WeightConfirmed = true

	return s.save(ctx, current, settlement.Aggregate(next))
}

// AddSplit appends a sale to a weighed lot and refreshes its aggregates.
func (s *Service) AddSplit(ctx context.Context, id string, input SplitInput) (lot models.Lot, err error) {
	defer func() { metrics.IncLotMutation("split", err) }()

	current, err := s.repo.FindLot(ctx, id)
	if err != nil {
		return models.Lot{}, fmt.Errorf("find lot %s: %w", id, err)
	}
	if !current.WeightConfirmed {
		return models.Lot{}, ErrWeightPending
	}

	size, err := models.ParseQuantity(input.Qty, input.Nag)
	if err != nil {
		return models.Lot{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	unit := current.Measure().Unit()
	if size.Unit() != unit {
		return models.Lot{}, ErrUnitMismatch
	}
	if strings.TrimSpace(input.TraderID) == "" {
		return models.Lot{}, fmt.Errorf("%w: trader_id is required", ErrInvalidInput)
	}
	if input.Rate < 0 || input.Amount < 0 {
		return models.Lot{}, fmt.Errorf("%w: rate and amount must not be negative", ErrInvalidInput)
	}

	total := current.OfficialTotal().Value()
	if settlement.SoldQuantity(current)+size.Value() > total+settlement.Tolerance {
		return models.Lot{}, ErrOverSold
	}

	amount := input.Amount
	if amount == 0 {
		amount = roundMoney(size.Value() * input.Rate)
	}
	if amount == 0 {
		return models.Lot{}, fmt.Errorf("%w: rate or amount is required", ErrInvalidInput)
	}

	date := input.Date
	if date.IsZero() {
		date = s.now()
	}

	split := models.Split{
		ID:                   s.newID(),
		Rate:                 input.Rate,
		Amount:               amount,
		Date:                 date.UTC(),
		TraderID:             input.TraderID,
		TraderName:           input.TraderName,
		FarmerCommissionRate: s.rates.FarmerRate(),
		FarmerCommission:     roundMoney(amount * s.rates.FarmerRate()),
		TraderCommissionRate: s.rates.TraderRate(),
		TraderCommission:     roundMoney(amount * s.rates.TraderRate()),
		FarmerPaymentStatus:  models.PaymentPending,
		TraderPaymentStatus:  models.PaymentPending,
	}
	split.Qty, split.Nag = size.Fields()

	next := current
	next.Splits = append(append([]models.Split(nil), current.Splits...), split)

	saved, err := s.save(ctx, current, settlement.Aggregate(next))
	if err != nil {
		return models.Lot{}, err
	}
	metrics.IncSplitRecorded(string(unit))
	s.logger.Info("split recorded",
		zap.String("lot_id", saved.ID),
		zap.String("split_id", split.ID),
		zap.String("trader_id", split.TraderID),
		zap.Stringer("quantity", size),
		zap.Float64("amount", amount))
	return saved, nil
}

// SettleFarmer confirms payment of every outstanding sale to the farmer and
// notifies them in the background.
func (s *Service) SettleFarmer(ctx context.Context, id string) (inv settlement.Invoice, err error) {
	defer func() { metrics.IncLotMutation("settle_farmer", err) }()

	current, err := s.repo.FindLot(ctx, id)
	if err != nil {
		return settlement.Invoice{}, fmt.Errorf("find lot %s: %w", id, err)
	}

	next := current
	next.Splits = append([]models.Split(nil), current.Splits...)
	changed := false
	for i := range next.Splits {
		if next.Splits[i].FarmerPaymentStatus.OrDefault() != models.PaymentPaid {
			next.Splits[i].FarmerPaymentStatus = models.PaymentPaid
			changed = true
		}
	}
	if len(next.Splits) == 0 && !current.IsParent && settlement.SoldQuantity(current) > 0 &&
		current.FarmerPaymentStatus.OrDefault() != models.PaymentPaid {
		next.FarmerPaymentStatus = models.PaymentPaid
		changed = true
	}
	if !changed {
		return settlement.Invoice{}, ErrNothingToSettle
	}
	if next.IsParent || len(next.Splits) > 0 {
		next = settlement.Aggregate(next)
	}

	saved, err := s.save(ctx, current, next)
	if err != nil {
		return settlement.Invoice{}, err
	}
	metrics.IncSettlement("farmer")

	inv = settlement.Reconcile(saved, saved.FarmerID, s.rates)
	s.notifyFarmer(ctx, saved, inv)
	return inv, nil
}

// SettleTrader confirms that the trader paid for one split.
func (s *Service) SettleTrader(ctx context.Context, id, splitID string) (charge settlement.TraderCharge, err error) {
	defer func() { metrics.IncLotMutation("settle_trader", err) }()

	current, err := s.repo.FindLot(ctx, id)
	if err != nil {
		return settlement.TraderCharge{}, fmt.Errorf("find lot %s: %w", id, err)
	}

	next := current
	next.Splits = append([]models.Split(nil), current.Splits...)
	idx := -1
	for i := range next.Splits {
		if next.Splits[i].ID == splitID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return settlement.TraderCharge{}, fmt.Errorf("split %s: %w", splitID, repository.ErrNotFound)
	}
	if next.Splits[idx].TraderPaymentStatus.OrDefault() == models.PaymentPaid {
		return settlement.TraderCharge{}, ErrNothingToSettle
	}
	next.Splits[idx].TraderPaymentStatus = models.PaymentPaid

	saved, err := s.save(ctx, current, next)
	if err != nil {
		return settlement.TraderCharge{}, err
	}
	metrics.IncSettlement("trader")

	charge = settlement.ChargeTrader(saved.Splits[idx], saved.Measure().Unit(), s.rates)
	charge.LotID = saved.ID
	charge.Crop = saved.Crop
	return charge, nil
}

// Wait blocks until background notifications have finished.
func (s *Service) Wait() {
	s.wg.Wait()
}

func (s *Service) save(ctx context.Context, current, next models.Lot) (models.Lot, error) {
	next.Version = current.Version + 1
	next.UpdatedAt = s.now().UTC()
	if err := s.repo.ReplaceLot(ctx, next, current.Version); err != nil {
		return models.Lot{}, fmt.Errorf("replace lot %s: %w", current.ID, err)
	}
	s.invalidate(ctx)
	return next, nil
}

func (s *Service) invalidate(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx); err != nil {
		s.logger.Warn("billing cache invalidation failed", zap.Error(err))
	}
}

func (s *Service) notifyFarmer(ctx context.Context, lot models.Lot, inv settlement.Invoice) {
	if s.notifier == nil || lot.FarmerPhone == "" {
		return
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), notifyTimeout)
		defer cancel()
		if err := s.notifier.NotifyFarmerPaid(ctx, lot, inv); err != nil {
			s.logger.Warn("farmer payment notification failed", zap.String("lot_id", lot.ID), zap.Error(err))
		}
	}()
}

func hasSales(lot models.Lot) bool {
	return len(lot.Splits) > 0 || settlement.SoldQuantity(lot) > 0
}

func validateLotInput(input LotInput) error {
	if strings.TrimSpace(input.FarmerID) == "" {
		return fmt.Errorf("%w: farmer_id is required", ErrInvalidInput)
	}
	if strings.TrimSpace(input.Crop) == "" {
		return fmt.Errorf("%w: crop is required", ErrInvalidInput)
	}
	if input.Quantity < 0 || input.Carat < 0 {
		return fmt.Errorf("%w: quantity must not be negative", ErrInvalidInput)
	}
	return nil
}

func applyLotInput(lot *models.Lot, input LotInput, qty models.Quantity) {
	lot.FarmerID = input.FarmerID
	lot.FarmerName = strings.TrimSpace(input.FarmerName)
	lot.FarmerPhone = strings.TrimSpace(input.FarmerPhone)
	lot.Crop = strings.TrimSpace(input.Crop)
	lot.Notes = strings.TrimSpace(input.Notes)
	lot.Quantity, lot.Carat = qty.Fields()
}

func roundMoney(v float64) float64 {
	return math.Round(v*100) / 100
}
