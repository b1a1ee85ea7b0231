package sampledata

import "time"

// Transaction types, as in the PaySim data set.
const (
	TypeCashIn   = "CASH_IN"
	TypeCashOut  = "CASH_OUT"
	TypeDebit    = "DEBIT"
	TypePayment  = "PAYMENT"
	TypeTransfer = "TRANSFER"
)

// Defaults for the command line.
const (
	DefaultRows      = 1000
	DefaultFraudRate = 0.02
	DefaultSeed      = 42
	DefaultSteps     = 24
	DefaultTimeout   = 2 * time.Minute
)

// flaggedThreshold is the transfer amount PaySim's rule engine flags.
const flaggedThreshold = 200000

// Header is the column order of generated files.
var Header = []string{ //nolint:gochecknoglobals // fixed column order
	"step", "type", "amount", "nameOrig", "oldbalanceOrg", "newbalanceOrig",
	"nameDest", "oldbalanceDest", "newbalanceDest", "isFraud", "isFlaggedFraud",
}
