package datasource

import (
	"context"
	"fmt"
	"time"

	"go-chainwatch/internal/config"
	"go-chainwatch/internal/connectors"
	"go-chainwatch/internal/features/dashboard"
	"go-chainwatch/pkg/filter"

	"go.uber.org/zap"
)

// MaxSQLRows caps the rows a SQL source returns per refresh.
const MaxSQLRows = 1000

// DataSourceService resolves widget rows and runs transform scripts.
type DataSourceService interface {
	Resolver
	Transformer
}

// SQLQuerier is the part of connectors.Pool the service needs.
type SQLQuerier interface {
	Query(ctx context.Context, dbType, dsn string, req connectors.QueryRequest) (*connectors.QueryResponse, error)
}

type DataSourceServiceImpl struct {
	mock        *MockGenerator
	api         *APIClient
	sql         SQLQuerier
	transformer Transformer
	logger      *zap.Logger
}

func NewDataSourceService(cfg *config.Config, pool *connectors.Pool, logger *zap.Logger) DataSourceService {
	return NewDataSourceServiceWith(
		NewMockGenerator(time.Now().UnixNano()),
		NewAPIClient(cfg.APITimeout),
		pool,
		NewTengoTransformer(),
		logger,
	)
}

func NewDataSourceServiceWith(mock *MockGenerator, api *APIClient, sql SQLQuerier, transformer Transformer, logger *zap.Logger) *DataSourceServiceImpl {
	return &DataSourceServiceImpl{
		mock:        mock,
		api:         api,
		sql:         sql,
		transformer: transformer,
		logger:      logger,
	}
}

// Resolve dispatches on the data source type. Missing and mock sources use
// the configured mockData, or synthesized rows when there is none; the
// websocket and realtime types are simulated the same way.
func (s *DataSourceServiceImpl) Resolve(ctx context.Context, req Request) ([]filter.Row, error) {
	w := req.Widget
	src := w.DataSourceConfig
	if src == nil {
		return s.mock.Generate(w), nil
	}

	switch src.Type {
	case "", dashboard.DataSourceMock, dashboard.DataSourceWebsocket, dashboard.DataSourceRealtime:
		if len(src.MockData) > 0 {
			return copyRows(src.MockData), nil
		}
		return s.mock.Generate(w), nil

	case dashboard.DataSourceAPI:
		if src.URL == "" {
			return nil, fmt.Errorf("widget %s: api source has no url", w.ID)
		}
		return s.api.Fetch(ctx, ExpandURL(src.URL, req.Variables), src.ResultPath)

	case dashboard.DataSourcePostgres, dashboard.DataSourceMySQL:
		if s.sql == nil {
			return nil, fmt.Errorf("widget %s: sql sources are not available", w.ID)
		}
		resp, err := s.sql.Query(ctx, string(src.Type), src.URL, connectors.QueryRequest{
			Query: src.Query,
			Limit: MaxSQLRows,
		})
		if err != nil {
			s.logger.Warn("SQL data source query failed", zap.String("widgetId", w.ID), zap.Error(err))
			return nil, err
		}
		rows := make([]filter.Row, len(resp.Data))
		for i, r := range resp.Data {
			rows[i] = r
		}
		return rows, nil
	}
	return nil, fmt.Errorf("widget %s: unsupported data source type %q", w.ID, src.Type)
}

func (s *DataSourceServiceImpl) Transform(ctx context.Context, script string, rows []filter.Row) ([]filter.Row, error) {
	return s.transformer.Transform(ctx, script, rows)
}

func copyRows(in []filter.Row) []filter.Row {
	out := make([]filter.Row, len(in))
	for i, row := range in {
		r := make(filter.Row, len(row))
		for k, v := range row {
			r[k] = v
		}
		out[i] = r
	}
	return out
}
