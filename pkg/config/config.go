// Package config provides the configuration for the export pipeline.
// It is loaded once at startup, validated, and passed by reference to
// every component; nothing reads ambient global state after INIT.
//
// The configuration is organized into logical sections:
//   - Salesforce: credentials and API settings for the source
//   - Drive: credentials and target folder for the sink
//   - Output: local output directory, file names, format thresholds
//   - Reliability: retry policy, extraction concurrency, failure policy
//   - Observability: log level, tracing, optional metrics push
package config

import (
	"os"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/eleveniq/sfexport/pkg/errors"
)

// Config is the immutable pipeline configuration.
type Config struct {
	// Objects lists the Salesforce object types to export, in output order
	Objects []string `yaml:"objects" validate:"min=1,dive,required"`

	// StandardFields whitelists the standard (non-custom) fields kept
	// during field discovery. Custom fields (suffix __c) are always kept.
	StandardFields []string `yaml:"standard_fields"`

	Salesforce    SalesforceConfig    `yaml:"salesforce"`
	Drive         DriveConfig         `yaml:"drive"`
	Output        OutputConfig        `yaml:"output"`
	Reliability   ReliabilityConfig   `yaml:"reliability"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// SalesforceConfig holds source credentials and API settings.
type SalesforceConfig struct {
	// Username for SOAP password login
	Username string `yaml:"username" validate:"required"`
	// Password for SOAP password login
	Password string `yaml:"password" validate:"required"`
	// SecurityToken appended to the password during login
	SecurityToken string `yaml:"security_token"`
	// Domain selects the login host: "login" (production) or "test" (sandbox)
	Domain string `yaml:"domain" validate:"oneof=login test"`
	// APIVersion pins the REST API version
	APIVersion string `yaml:"api_version"`
}

// LoginURL returns the SOAP login endpoint for the configured domain.
func (c SalesforceConfig) LoginURL() string {
	return "https://" + c.Domain + ".salesforce.com"
}

// DriveConfig holds sink credentials and the remote target.
type DriveConfig struct {
	// CredentialsFile is the path to the Google service-account JSON key
	CredentialsFile string `yaml:"credentials_file" validate:"required"`
	// FolderName is the Drive folder the export lands in; created if absent
	FolderName string `yaml:"folder_name" validate:"required"`
	// ParentID optionally scopes the folder lookup to a parent folder ID
	ParentID string `yaml:"parent_id"`
}

// OutputConfig holds local output settings and format thresholds.
type OutputConfig struct {
	// Dir is the local output directory, created if absent
	Dir string `yaml:"dir" validate:"required"`
	// DataFileBase is the data file name without extension
	DataFileBase string `yaml:"data_file_base" validate:"required"`
	// LogFileName is the append-only statistics log file name
	LogFileName string `yaml:"log_file_name" validate:"required"`
	// RowLimit is the row count at which output switches from Excel to CSV
	RowLimit int `yaml:"row_limit" validate:"gt=0"`
	// ColumnLimit is the column count at which output switches to CSV
	ColumnLimit int `yaml:"column_limit" validate:"gt=0"`
}

// ReliabilityConfig holds retry and failure policy settings.
type ReliabilityConfig struct {
	// RetryAttempts sets maximum attempts for extraction calls
	RetryAttempts int `yaml:"retry_attempts" validate:"gt=0"`
	// RetryDelay is the initial delay between retries
	RetryDelay time.Duration `yaml:"retry_delay"`
	// RetryMultiplier increases delay exponentially
	RetryMultiplier float64 `yaml:"retry_multiplier"`
	// MaxRetryDelay caps the retry delay
	MaxRetryDelay time.Duration `yaml:"max_retry_delay"`
	// Concurrency limits concurrent object extractions
	Concurrency int `yaml:"concurrency" validate:"gt=0"`
	// FailFast aborts the whole run on the first exhausted object instead
	// of continuing with the remaining objects
	FailFast bool `yaml:"fail_fast"`
}

// ObservabilityConfig holds logging, tracing and metrics settings.
type ObservabilityConfig struct {
	// LogLevel sets logging verbosity (debug, info, warn, error)
	LogLevel string `yaml:"log_level"`
	// EnableTracing emits one span per pipeline stage to stdout
	EnableTracing bool `yaml:"enable_tracing"`
	// PushGateway, when set, receives run metrics at the end of the run
	PushGateway string `yaml:"push_gateway"`
}

// Default returns the configuration defaults. Credentials are left empty
// and expected from the config file or ${VAR} substitution.
func Default() *Config {
	return &Config{
		Objects: []string{
			"RecordType",
			"Account",
			"Contact",
			"User",
			"Work_Order__c",
			"Elevator__c",
			"Property__c",
			"Property_Unit__c",
			"Elevator_Service_Cost__c",
			"Elevator_Document_Check__c",
			"Contract",
			"Opportunity",
			"Product2",
			"Pricebook2",
			"PricebookEntry",
			"OpportunityLineItem",
			"Order",
			"OrderItem",
			"OrderElevatorRelation__c",
			"Service_Fulfillment__c",
			"Elevator_Property__c",
			"OSI_WorkOrder_Item__c",
		},
		StandardFields: []string{
			"Id", "Name", "OwnerId", "CreatedDate", "LastModifiedDate", "CreatedById",
			"DeveloperName", "IsActive", "SobjectType",
			"BillingStreet", "BillingCity", "BillingPostalCode", "BillingCountry",
			"ShippingStreet", "ShippingCity", "ShippingPostalCode", "ShippingCountry",
			"Phone", "Email", "Salutation", "AccountId", "Title", "ContractId", "OrderId",
			"EndDate", "EffectiveDate", "ListPrice", "OrderItemNumber", "Product2Id",
			"Quantity", "ServiceDate", "UnitPrice", "TotalPrice", "Status", "StageName",
			"ContractName", "OpportunityId", "OrderNumber", "Type",
			"Pricebook2Id", "RecordTypeId", "StartDate", "ContractTerm", "ExternalId",
			"ProductCode", "Family", "IsStandard", "UseStandardPrice",
		},
		Salesforce: SalesforceConfig{
			Domain:     "login",
			APIVersion: "57.0",
		},
		Drive: DriveConfig{
			CredentialsFile: "credentials/google.json",
			FolderName:      "ELEVENIQ",
		},
		Output: OutputConfig{
			Dir:          "files",
			DataFileBase: "all_data",
			LogFileName:  "pipeline_log.csv",
			RowLimit:     1_000_000,
			ColumnLimit:  16_384,
		},
		Reliability: ReliabilityConfig{
			RetryAttempts:   5,
			RetryDelay:      1 * time.Second,
			RetryMultiplier: 2.0,
			MaxRetryDelay:   30 * time.Second,
			Concurrency:     4,
		},
		Observability: ObservabilityConfig{
			LogLevel: "info",
		},
	}
}

// ValidateSettings checks required settings without touching the
// filesystem. Dry runs validate with this alone since they never open
// the Drive credentials.
func (c *Config) ValidateSettings() error {
	if err := validator.New().Struct(c); err != nil {
		return errors.Wrap(err, errors.ErrorTypeConfig, "invalid configuration")
	}
	return nil
}

// Validate checks required settings and referenced files. It returns a
// ConfigurationError; configuration errors are fatal and never retried.
func (c *Config) Validate() error {
	if err := c.ValidateSettings(); err != nil {
		return err
	}

	if _, err := os.Stat(c.Drive.CredentialsFile); err != nil {
		return errors.Wrap(err, errors.ErrorTypeConfig,
			"drive credentials file not found").WithDetail("path", c.Drive.CredentialsFile)
	}

	return nil
}
