// Package salesforce wraps the simpleforce client behind a narrow session
// interface. Authentication and result paging stay in the client library;
// this package only classifies failures and drains pages into records.
package salesforce

import (
	"context"
	"strings"

	"github.com/simpleforce/simpleforce"
	"go.uber.org/zap"

	"github.com/eleveniq/sfexport/pkg/config"
	"github.com/eleveniq/sfexport/pkg/errors"
	"github.com/eleveniq/sfexport/pkg/retry"
)

// Session is the authenticated handle the extractor works against.
type Session interface {
	// DescribeFields returns the field definitions for one object type.
	DescribeFields(ctx context.Context, object string) ([]FieldDefinition, error)
	// Query runs a SOQL query and returns all raw records, in source
	// order, across every result page.
	Query(ctx context.Context, soql string) ([]map[string]interface{}, error)
}

// Client is a Session backed by simpleforce.
type Client struct {
	sf     *simpleforce.Client
	logger *zap.Logger
}

// Login authenticates against Salesforce, retrying transient failures
// under the given policy. Authentication rejections fail immediately.
func Login(ctx context.Context, cfg config.SalesforceConfig, policy *retry.Policy, logger *zap.Logger) (*Client, error) {
	sf := simpleforce.NewClient(cfg.LoginURL(), simpleforce.DefaultClientID, cfg.APIVersion)
	if sf == nil {
		return nil, errors.New(errors.ErrorTypeConnection, "failed to construct salesforce client")
	}

	_, err := policy.ExecuteWithCondition(ctx, func() error {
		if err := sf.LoginPassword(cfg.Username, cfg.Password, cfg.SecurityToken); err != nil {
			return classify(err)
		}
		return nil
	}, errors.IsRetryable)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeAuthentication, "salesforce login failed")
	}

	logger.Info("salesforce login successful", zap.String("domain", cfg.Domain))

	return &Client{sf: sf, logger: logger}, nil
}

// DescribeFields queries the FieldDefinition metadata object for the
// given object type.
func (c *Client) DescribeFields(ctx context.Context, object string) ([]FieldDefinition, error) {
	soql := "SELECT QualifiedApiName, Label FROM FieldDefinition " +
		"WHERE EntityDefinition.QualifiedApiName = '" + object + "'"

	raw, err := c.Query(ctx, soql)
	if err != nil {
		return nil, err
	}

	defs := make([]FieldDefinition, 0, len(raw))
	for _, rec := range raw {
		name, _ := rec["QualifiedApiName"].(string)
		label, _ := rec["Label"].(string)
		if name == "" {
			continue
		}
		defs = append(defs, FieldDefinition{QualifiedAPIName: name, Label: label})
	}

	return defs, nil
}

// Query runs a SOQL query and follows NextRecordsURL until the result is
// complete. The library owns paging; this loop only feeds the next-page
// locator back in.
func (c *Client) Query(ctx context.Context, soql string) ([]map[string]interface{}, error) {
	var records []map[string]interface{}

	q := soql
	for {
		if err := ctx.Err(); err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeTimeout, "query cancelled")
		}

		result, err := c.sf.Query(q)
		if err != nil {
			return nil, classify(err)
		}

		for _, sobj := range result.Records {
			rec := make(map[string]interface{}, len(sobj))
			for k, v := range sobj {
				if k == "attributes" {
					continue
				}
				rec[k] = v
			}
			records = append(records, rec)
		}

		if result.Done || result.NextRecordsURL == "" {
			return records, nil
		}
		q = result.NextRecordsURL
	}
}

// classify maps a client library failure onto the error taxonomy so the
// retry wrapper can tell transient failures from fatal ones.
func classify(err error) error {
	if err == nil {
		return nil
	}

	msg := strings.ToUpper(err.Error())
	switch {
	case strings.Contains(msg, "INVALID_LOGIN"),
		strings.Contains(msg, "INVALID_SESSION_ID"),
		strings.Contains(msg, "AUTHENTICATION"):
		return errors.Wrap(err, errors.ErrorTypeAuthentication, "salesforce rejected credentials")
	case strings.Contains(msg, "INSUFFICIENT_ACCESS"):
		return errors.Wrap(err, errors.ErrorTypePermission, "salesforce denied access")
	case strings.Contains(msg, "REQUEST_LIMIT_EXCEEDED"):
		return errors.Wrap(err, errors.ErrorTypeRateLimit, "salesforce request limit exceeded")
	case strings.Contains(msg, "TIMEOUT"), strings.Contains(msg, "DEADLINE"):
		return errors.Wrap(err, errors.ErrorTypeTimeout, "salesforce request timed out")
	default:
		return errors.Wrap(err, errors.ErrorTypeQuery, "salesforce query failed")
	}
}
