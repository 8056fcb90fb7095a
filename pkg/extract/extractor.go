// Package extract pulls all records for one configured Salesforce object
// and turns them into a label-mapped record set.
package extract

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/eleveniq/sfexport/pkg/errors"
	"github.com/eleveniq/sfexport/pkg/logger"
	"github.com/eleveniq/sfexport/pkg/models"
	"github.com/eleveniq/sfexport/pkg/retry"
	"github.com/eleveniq/sfexport/pkg/salesforce"
)

// Extractor fetches record sets object by object. It is safe for
// concurrent use across distinct objects.
type Extractor struct {
	session        salesforce.Session
	standardFields []string
	policy         *retry.Policy
	logger         *zap.Logger
}

// New creates an extractor over an authenticated session.
func New(session salesforce.Session, standardFields []string, policy *retry.Policy, logger *zap.Logger) *Extractor {
	return &Extractor{
		session:        session,
		standardFields: standardFields,
		policy:         policy,
		logger:         logger,
	}
}

// Extract fetches all records of one object type, resolving every field
// to its label. It returns the record set and the number of retries the
// call consumed. Exhausted retries surface as an extraction error. The
// object name is stamped into the context so downstream calls and log
// lines share the scope.
func (e *Extractor) Extract(ctx context.Context, object string) (*models.RecordSet, int, error) {
	ctx = context.WithValue(ctx, logger.ObjectKey, object)
	log := e.logger.With(logger.ContextFields(ctx)...)

	var set *models.RecordSet
	retries, err := e.policy.ExecuteWithCondition(ctx, func() error {
		rs, err := e.extractOnce(ctx, object, log)
		if err != nil {
			return err
		}
		set = rs
		return nil
	}, errors.IsRetryable)
	if err != nil {
		return nil, retries, errors.NewExtractionError(object, err).
			WithDetail("attempts", retries+1)
	}

	log.Info("object extracted",
		zap.Int("records", set.Len()),
		zap.Int("fields", len(set.Columns)),
		zap.Int("retries", retries))

	return set, retries, nil
}

// extractOnce is one attempt: discover fields, query all records, map
// labels. Paging is the client library's concern.
func (e *Extractor) extractOnce(ctx context.Context, object string, log *zap.Logger) (*models.RecordSet, error) {
	defs, err := e.session.DescribeFields(ctx, object)
	if err != nil {
		return nil, err
	}

	fieldMap := salesforce.BuildFieldMap(object, defs, e.standardFields)
	if fieldMap.Len() == 0 {
		log.Warn("no exportable fields discovered")
		return models.NewRecordSet(object, nil), nil
	}

	columns := make([]string, 0, fieldMap.Len())
	for _, f := range fieldMap.Fields() {
		columns = append(columns, fieldMap.Label(f))
	}

	soql := "SELECT " + strings.Join(fieldMap.Fields(), ", ") + " FROM " + object
	log.Debug("executing query", zap.String("soql", soql))

	raw, err := e.session.Query(ctx, soql)
	if err != nil {
		return nil, err
	}

	set := models.NewRecordSet(object, columns)
	for _, r := range raw {
		rec := make(models.Record, fieldMap.Len())
		for _, f := range fieldMap.Fields() {
			rec[fieldMap.Label(f)] = models.FromRaw(r[f])
		}
		set.Append(rec)
	}

	return set, nil
}
