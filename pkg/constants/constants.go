package constants

import (
	"github.com/go-playground/validator/v10"
)

type ContextKey string

const (
	TenantIDKey ContextKey = "tenantID"
	PoolKey     ContextKey = "pool"
	TxKey       ContextKey = "tx"
	LoggerKey   ContextKey = "logger"
)

// Validate is the shared validator instance used for DTO validation.
var Validate = validator.New(validator.WithRequiredStructEnabled())
