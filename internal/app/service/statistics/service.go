package statistics

import (
	"context"
	"fmt"
	"sync"

	"github.com/samber/lo"
	"go.uber.org/fx"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/fatflowers/iftar/internal/app/repository"
	"github.com/fatflowers/iftar/internal/models"
	"github.com/fatflowers/iftar/pkg/types"
)

type StatisticType string

const (
	StatisticTypeDailyRegistrationCount StatisticType = "daily_registration_count"
	StatisticTypeDailyRevenue           StatisticType = "daily_revenue"
	StatisticTypeTotalRevenue           StatisticType = "total_revenue"
	StatisticTypeDailyCheckInCount      StatisticType = "daily_checkin_count"
	StatisticTypeRevenueByMethod        StatisticType = "revenue_by_method"
)

var statisticTypes = []StatisticType{
	StatisticTypeDailyRegistrationCount,
	StatisticTypeDailyRevenue,
	StatisticTypeTotalRevenue,
	StatisticTypeDailyCheckInCount,
	StatisticTypeRevenueByMethod,
}

type FilterType string

const (
	FilterTypeIsMember FilterType = "is_member"
	FilterTypeMethod   FilterType = "method"
	FilterTypeSource   FilterType = "source"
)

// validFilters lists the statistics each filter applies to. A statistic that a filter does not
// apply to comes back empty.
var validFilters = map[FilterType][]StatisticType{
	FilterTypeIsMember: {StatisticTypeDailyRegistrationCount},
	FilterTypeMethod:   {StatisticTypeDailyRevenue, StatisticTypeDailyCheckInCount},
	FilterTypeSource:   {StatisticTypeDailyRevenue, StatisticTypeRevenueByMethod},
}

type DataItem struct {
	ID StatisticType `json:"id"`
}

type Request struct {
	Filters   []*types.CommonFilter `json:"filters"`
	DataItems []*DataItem           `json:"data_items"`
}

func (r *Request) Validate() error {
	if len(r.DataItems) == 0 {
		return fmt.Errorf("%w: data_items is required", types.ErrInvalidInput)
	}
	for _, di := range r.DataItems {
		if di == nil || !lo.Contains(statisticTypes, di.ID) {
			return fmt.Errorf("%w: invalid data item id", types.ErrInvalidInput)
		}
	}
	allowed := lo.Map(lo.Keys(validFilters), func(f FilterType, _ int) string { return string(f) })
	if err := types.ValidateFilters(r.Filters, allowed); err != nil {
		return fmt.Errorf("%w: %v", types.ErrInvalidInput, err)
	}
	return nil
}

// applies reports whether every filter of r can be applied to statisticType.
func (r *Request) applies(statisticType StatisticType) bool {
	for _, f := range r.Filters {
		if f != nil && !lo.Contains(validFilters[FilterType(f.Field)], statisticType) {
			return false
		}
	}
	return true
}

// Build composes the WHERE clause from the filters.
func (r *Request) Build(builder clause.Builder) {
	filters := lo.Filter(r.Filters, func(f *types.CommonFilter, _ int) bool { return f != nil })
	if len(filters) == 0 {
		builder.WriteString("1=1")
		return
	}
	for i, f := range filters {
		if i > 0 {
			builder.WriteString(" AND ")
		}
		f.Build(builder)
	}
}

type ResponseDataItem struct {
	Date  string `json:"date,omitempty"`
	Label string `json:"label,omitempty"`
	Value int64  `json:"value"`
}

type Response struct {
	DataItems map[StatisticType][]ResponseDataItem `json:"data_items"`
}

// Service serves the admin dashboard: a summary from the repository and time series from SQL.
type Service struct {
	db   *gorm.DB
	repo repository.Repository
}

type Params struct {
	fx.In

	DB   *gorm.DB
	Repo repository.Repository
}

func New(p Params) *Service { return &Service{db: p.DB, repo: p.Repo} }

func (s *Service) Summary(ctx context.Context) (*repository.Stats, error) {
	return s.repo.Stats(ctx)
}

// paid is every completed payment, gateway or manual, with the moment it was confirmed.
func (s *Service) paid() *gorm.DB {
	return s.db.Raw(`
SELECT amount, method, 'gateway' AS source, completed_at AS paid_at FROM payments WHERE status = ?
UNION ALL
SELECT amount, method, 'manual' AS source, validated_at AS paid_at FROM manual_payments WHERE status = ?
`, types.PaymentStatusCompleted, types.PaymentStatusCompleted)
}

func (s *Service) getDailyRegistrationCount(ctx context.Context, request *Request) ([]ResponseDataItem, error) {
	var results []ResponseDataItem
	q := s.db.WithContext(ctx).Table((models.Participant{}).TableName()).
		Select("TO_CHAR(created_at, 'YYYY-MM-DD') as date, count(*) as value").
		Where(clause.Where{Exprs: []clause.Expression{request}}).
		Group("TO_CHAR(created_at, 'YYYY-MM-DD')").
		Order("date")
	if err := q.Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (s *Service) getDailyRevenue(ctx context.Context, request *Request) ([]ResponseDataItem, error) {
	var results []ResponseDataItem
	q := s.db.WithContext(ctx).Table("(?) AS paid", s.paid()).
		Select("TO_CHAR(paid_at, 'YYYY-MM-DD') as date, sum(amount) as value").
		Where(clause.Where{Exprs: []clause.Expression{request}}).
		Group("TO_CHAR(paid_at, 'YYYY-MM-DD')").
		Order(clause.OrderByColumn{Column: clause.Column{Name: "date"}, Desc: true})
	if err := q.Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (s *Service) getTotalRevenue(ctx context.Context, _ *Request) ([]ResponseDataItem, error) {
	var results []ResponseDataItem
	err := s.db.WithContext(ctx).Raw(`
WITH paid AS (
    SELECT amount, completed_at AS paid_at FROM payments WHERE status = ?
    UNION ALL
    SELECT amount, validated_at AS paid_at FROM manual_payments WHERE status = ?
),
min_max_dates AS (
    SELECT MIN(DATE(paid_at)) as min_date, MAX(DATE(paid_at)) as max_date FROM paid
),
distinct_dates AS (
    SELECT generate_series(min_date, max_date, '1 day'::interval) as date FROM min_max_dates
),
daily AS (
    SELECT d.date, COALESCE(SUM(p.amount), 0) as value
    FROM distinct_dates d
    LEFT JOIN paid p ON DATE(p.paid_at) = d.date
    GROUP BY d.date
)
SELECT TO_CHAR(d.date, 'YYYY-MM-DD') as date, SUM(s.value) as value
FROM daily d
LEFT JOIN daily s ON s.date <= d.date
GROUP BY d.date
ORDER BY d.date DESC
`, types.PaymentStatusCompleted, types.PaymentStatusCompleted).Scan(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}

func (s *Service) getDailyCheckInCount(ctx context.Context, request *Request) ([]ResponseDataItem, error) {
	var results []ResponseDataItem
	q := s.db.WithContext(ctx).Table((models.CheckIn{}).TableName()).
		Select("TO_CHAR(checked_in_at, 'YYYY-MM-DD') as date, count(*) as value").
		Where(clause.Where{Exprs: []clause.Expression{request}}).
		Group("TO_CHAR(checked_in_at, 'YYYY-MM-DD')").
		Order("date")
	if err := q.Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (s *Service) getRevenueByMethod(ctx context.Context, request *Request) ([]ResponseDataItem, error) {
	var results []ResponseDataItem
	q := s.db.WithContext(ctx).Table("(?) AS paid", s.paid()).
		Select("method AS label, sum(amount) as value").
		Where(clause.Where{Exprs: []clause.Expression{request}}).
		Group("method").
		Order("value DESC")
	if err := q.Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (s *Service) getStatistic(ctx context.Context, request *Request, dataItem *DataItem) ([]ResponseDataItem, error) {
	switch dataItem.ID {
	case StatisticTypeDailyRegistrationCount:
		return s.getDailyRegistrationCount(ctx, request)
	case StatisticTypeDailyRevenue:
		return s.getDailyRevenue(ctx, request)
	case StatisticTypeTotalRevenue:
		return s.getTotalRevenue(ctx, request)
	case StatisticTypeDailyCheckInCount:
		return s.getDailyCheckInCount(ctx, request)
	case StatisticTypeRevenueByMethod:
		return s.getRevenueByMethod(ctx, request)
	default:
		return nil, fmt.Errorf("invalid data item id: %s", dataItem.ID)
	}
}

// Series computes the requested data items concurrently.
func (s *Service) Series(ctx context.Context, request *Request) (*Response, error) {
	if err := request.Validate(); err != nil {
		return nil, err
	}
	var wg sync.WaitGroup
	errChan := make(chan error, len(request.DataItems))
	resChan := make(chan *lo.Entry[StatisticType, []ResponseDataItem], len(request.DataItems))

	for _, item := range request.DataItems {
		wg.Add(1)
		go func(di *DataItem) {
			defer wg.Done()
			if !request.applies(di.ID) {
				resChan <- &lo.Entry[StatisticType, []ResponseDataItem]{Key: di.ID, Value: nil}
				return
			}
			res, err := s.getStatistic(ctx, request, di)
			if err != nil {
				errChan <- err
				return
			}
			resChan <- &lo.Entry[StatisticType, []ResponseDataItem]{Key: di.ID, Value: res}
		}(item)
	}

	wg.Wait()
	close(errChan)
	close(resChan)
	if err, ok := <-errChan; ok {
		return nil, err
	}

	results := make(map[StatisticType][]ResponseDataItem)
	for entry := range resChan {
		results[entry.Key] = entry.Value
	}
	return &Response{DataItems: results}, nil
}

var Module = fx.Options(
	fx.Provide(New),
)
