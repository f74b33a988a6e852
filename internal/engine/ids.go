package engine

import "github.com/google/uuid"

// Token prefixes distinguish id kinds at a glance in logs and the ledger.
const (
	requestIDPrefix = "req_"
	auditIDPrefix   = "aud_"
	ruleIDPrefix    = "rule_"
)

func newRequestID() string { return requestIDPrefix + uuid.NewString() }
func newAuditID() string   { return auditIDPrefix + uuid.NewString() }
func newRuleID() string    { return ruleIDPrefix + uuid.NewString() }
