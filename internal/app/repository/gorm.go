package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/samber/lo"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/fatflowers/iftar/internal/models"
	"github.com/fatflowers/iftar/pkg/types"
)

type gormRepository struct {
	db *gorm.DB
}

func NewGorm(db *gorm.DB) Repository { return &gormRepository{db: db} }

func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return fmt.Errorf("%w: %v", ErrNotFound, err)
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return fmt.Errorf("%w: %v", ErrDuplicate, err)
	default:
		return err
	}
}

func (r *gormRepository) withParticipantRelations(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).
		Preload("Guests", func(db *gorm.DB) *gorm.DB { return db.Order("is_main DESC, created_at ASC") }).
		Preload("Payments", func(db *gorm.DB) *gorm.DB { return db.Order("created_at DESC") }).
		Preload("ManualPayments", func(db *gorm.DB) *gorm.DB { return db.Order("created_at DESC") })
}

func (r *gormRepository) CreateParticipant(ctx context.Context, p *models.Participant) error {
	// participant and guests go in one insert; gorm creates the associations
	return translate(r.db.WithContext(ctx).Create(p).Error)
}

func (r *gormRepository) GetParticipant(ctx context.Context, id string) (*models.Participant, error) {
	var p models.Participant
	if err := r.withParticipantRelations(ctx).Where("id = ?", id).First(&p).Error; err != nil {
		return nil, translate(err)
	}
	return &p, nil
}

func (r *gormRepository) GetParticipantByShortCode(ctx context.Context, code string) (*models.Participant, error) {
	var p models.Participant
	if err := r.withParticipantRelations(ctx).Where("short_code = ?", code).First(&p).Error; err != nil {
		return nil, translate(err)
	}
	return &p, nil
}

func (r *gormRepository) GetParticipantByQRCode(ctx context.Context, qr string) (*models.Participant, error) {
	var p models.Participant
	if err := r.withParticipantRelations(ctx).Where("qr_code = ?", qr).First(&p).Error; err != nil {
		return nil, translate(err)
	}
	return &p, nil
}

func (r *gormRepository) ShortCodeExists(ctx context.Context, code string) (bool, error) {
	var n int64
	if err := r.db.WithContext(ctx).Model(&models.Participant{}).Where("short_code = ?", code).Count(&n).Error; err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *gormRepository) SetMembership(ctx context.Context, id string, isMember bool) error {
	res := r.db.WithContext(ctx).Model(&models.Participant{}).Where("id = ?", id).Update("is_member", isMember)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *gormRepository) AssignQRCode(ctx context.Context, participantID, qr string) (bool, error) {
	res := r.db.WithContext(ctx).Model(&models.Participant{}).
		Where("id = ? AND (qr_code IS NULL OR qr_code = '')", participantID).
		Update("qr_code", qr)
	if res.Error != nil {
		return false, translate(res.Error)
	}
	return res.RowsAffected > 0, nil
}

func (r *gormRepository) MarkCheckedIn(ctx context.Context, participantID string, at time.Time) (bool, error) {
	res := r.db.WithContext(ctx).Model(&models.Participant{}).
		Where("id = ? AND checked_in = ?", participantID, false).
		Updates(map[string]interface{}{"checked_in": true, "checked_in_at": at})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *gormRepository) ListParticipants(ctx context.Context, req ListParticipantsRequest) ([]*models.Participant, int64, error) {
	if err := types.ValidateFilters(req.Filters, ParticipantFilterFields); err != nil {
		return nil, 0, err
	}
	q := r.db.WithContext(ctx).Model(&models.Participant{})
	if len(req.Filters) > 0 {
		exprs := make([]clause.Expression, 0, len(req.Filters))
		for _, f := range req.Filters {
			if f != nil {
				exprs = append(exprs, f)
			}
		}
		q = q.Where(clause.Where{Exprs: exprs})
	}
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	sortBy := "created_at"
	if lo.Contains(ParticipantSortFields, req.SortBy) {
		sortBy = req.SortBy
	}
	q = q.Order(clause.OrderByColumn{Column: clause.Column{Name: sortBy}, Desc: req.Desc})
	if req.Limit > 0 {
		q = q.Limit(req.Limit)
	}
	if req.Offset > 0 {
		q = q.Offset(req.Offset)
	}
	var out []*models.Participant
	if err := q.Preload("Guests").Find(&out).Error; err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

func (r *gormRepository) AllParticipants(ctx context.Context) ([]*models.Participant, error) {
	var out []*models.Participant
	if err := r.withParticipantRelations(ctx).Order("created_at ASC").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *gormRepository) CreateGuest(ctx context.Context, g *models.Guest) error {
	return translate(r.db.WithContext(ctx).Create(g).Error)
}

func (r *gormRepository) GetGuest(ctx context.Context, id string) (*models.Guest, error) {
	var g models.Guest
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&g).Error; err != nil {
		return nil, translate(err)
	}
	return &g, nil
}

func (r *gormRepository) MarkGuestCheckedIn(ctx context.Context, guestID string, at time.Time) (bool, error) {
	res := r.db.WithContext(ctx).Model(&models.Guest{}).
		Where("id = ? AND checked_in = ?", guestID, false).
		Updates(map[string]interface{}{"checked_in": true, "checked_in_at": at})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *gormRepository) CreatePayment(ctx context.Context, p *models.Payment) error {
	return translate(r.db.WithContext(ctx).Create(p).Error)
}

func (r *gormRepository) GetPayment(ctx context.Context, id string) (*models.Payment, error) {
	var p models.Payment
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&p).Error; err != nil {
		return nil, translate(err)
	}
	return &p, nil
}

func (r *gormRepository) SetPaymentGatewayRef(ctx context.Context, id, apiResponseID, paymentURL string) error {
	updates := map[string]interface{}{"payment_url": paymentURL}
	if apiResponseID != "" {
		updates["api_response_id"] = apiResponseID
	}
	return r.db.WithContext(ctx).Model(&models.Payment{}).Where("id = ?", id).Updates(updates).Error
}

func (r *gormRepository) TransitionPayment(ctx context.Context, id string, from, to types.PaymentStatus, operatorID *string, at time.Time) (bool, error) {
	updates := map[string]interface{}{"status": to}
	if operatorID != nil {
		updates["operator_id"] = *operatorID
	}
	if to == types.PaymentStatusCompleted {
		updates["completed_at"] = at
	}
	res := r.db.WithContext(ctx).Model(&models.Payment{}).
		Where("id = ? AND status = ?", id, from).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *gormRepository) PaymentRefsByExactID(ctx context.Context, id string) ([]models.PaymentRef, error) {
	var refs []models.PaymentRef
	err := r.db.WithContext(ctx).Model(&models.Payment{}).
		Select("id, transaction_id, api_response_id, created_at").
		Where("transaction_id = ? OR api_response_id = ?", id, id).
		Scan(&refs).Error
	return refs, err
}

func (r *gormRepository) PaymentRefs(ctx context.Context) ([]models.PaymentRef, error) {
	var refs []models.PaymentRef
	err := r.db.WithContext(ctx).Model(&models.Payment{}).
		Select("id, transaction_id, api_response_id, created_at").
		Scan(&refs).Error
	return refs, err
}

func (r *gormRepository) CreateManualPayment(ctx context.Context, m *models.ManualPayment) error {
	return translate(r.db.WithContext(ctx).Create(m).Error)
}

func (r *gormRepository) GetManualPayment(ctx context.Context, id string) (*models.ManualPayment, error) {
	var m models.ManualPayment
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&m).Error; err != nil {
		return nil, translate(err)
	}
	return &m, nil
}

func (r *gormRepository) TransitionManualPayment(ctx context.Context, id string, to types.PaymentStatus, adminComment, validatedBy string, at time.Time) (bool, error) {
	res := r.db.WithContext(ctx).Model(&models.ManualPayment{}).
		Where("id = ? AND status = ?", id, types.PaymentStatusPending).
		Updates(map[string]interface{}{
			"status":        to,
			"admin_comment": adminComment,
			"validated_by":  validatedBy,
			"validated_at":  at,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *gormRepository) ListManualPayments(ctx context.Context, status types.PaymentStatus) ([]*models.ManualPayment, error) {
	q := r.db.WithContext(ctx).Order("created_at DESC")
	if status != "" {
		q = q.Where("status = ?", status)
	}
	var out []*models.ManualPayment
	if err := q.Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *gormRepository) CreateCheckIn(ctx context.Context, c *models.CheckIn) error {
	return r.db.WithContext(ctx).Create(c).Error
}

func (r *gormRepository) ListCheckIns(ctx context.Context, limit int) ([]*models.CheckIn, error) {
	q := r.db.WithContext(ctx).Order("checked_in_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var out []*models.CheckIn
	if err := q.Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *gormRepository) SavePaymentNotificationLog(ctx context.Context, l *models.PaymentNotificationLog) error {
	return r.db.WithContext(ctx).Save(l).Error
}

func (r *gormRepository) SaveNotificationLog(ctx context.Context, l *models.NotificationLog) error {
	return r.db.WithContext(ctx).Create(l).Error
}

type statusCount struct {
	Status string
	Count  int64
}

func (r *gormRepository) Stats(ctx context.Context) (*Stats, error) {
	db := r.db.WithContext(ctx)
	s := &Stats{PaymentsByStatus: map[string]int64{}, ManualPaymentsByStatus: map[string]int64{}}
	if err := db.Model(&models.Participant{}).Count(&s.Participants).Error; err != nil {
		return nil, err
	}
	if err := db.Model(&models.Participant{}).Where("is_member = ?", true).Count(&s.Members).Error; err != nil {
		return nil, err
	}
	if err := db.Model(&models.Participant{}).Where("checked_in = ?", true).Count(&s.CheckedIn).Error; err != nil {
		return nil, err
	}
	if err := db.Model(&models.Guest{}).Where("is_main = ?", false).Count(&s.Guests).Error; err != nil {
		return nil, err
	}

	var rows []statusCount
	if err := db.Model(&models.Payment{}).Select("status, count(*) as count").Group("status").Scan(&rows).Error; err != nil {
		return nil, err
	}
	for _, row := range rows {
		s.PaymentsByStatus[row.Status] = row.Count
	}
	rows = nil
	if err := db.Model(&models.ManualPayment{}).Select("status, count(*) as count").Group("status").Scan(&rows).Error; err != nil {
		return nil, err
	}
	for _, row := range rows {
		s.ManualPaymentsByStatus[row.Status] = row.Count
	}

	var revenue struct{ Total int64 }
	err := db.Raw(`
SELECT COALESCE((SELECT SUM(amount) FROM payments WHERE status = ?), 0)
     + COALESCE((SELECT SUM(amount) FROM manual_payments WHERE status = ?), 0) AS total`,
		types.PaymentStatusCompleted, types.PaymentStatusCompleted).Scan(&revenue).Error
	if err != nil {
		return nil, err
	}
	s.Revenue = revenue.Total
	return s, nil
}

func (r *gormRepository) Wipe(ctx context.Context) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, m := range []interface{}{
			&models.CheckIn{},
			&models.Guest{},
			&models.Payment{},
			&models.ManualPayment{},
			&models.Participant{},
		} {
			if err := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(m).Error; err != nil {
				return fmt.Errorf("wipe %T: %w", m, err)
			}
		}
		return nil
	})
}
