// Package intent defines the closed set of banking intents and the
// classifier contract.
//
// Two classifiers implement it: keyword (deterministic substring rules)
// and hosted (a chat model constrained to the label set by JSON Schema).
package intent

import (
	"context"
	"errors"
	"fmt"

	"github.com/nadzzz/voicedesk/internal/message"
)

// Label is one intent category.
type Label string

const (
	AccountConversion Label = "Account Conversion"
	FraudReport       Label = "Fraud Report"
	CardCharges       Label = "Card Charges"
	CardBlock         Label = "Card Block"
	UPIIssue          Label = "UPI Issue"
	FailedTransaction Label = "Failed Transaction"
	RefundRequest     Label = "Refund Request"
	BalanceInquiry    Label = "Account Balance Inquiry"
	MiniStatement     Label = "Mini Statement"
	LoanInquiry       Label = "Loan Inquiry"
	CreditCardApply   Label = "Credit Card Application"
	PINReset          Label = "PIN Reset"
	DebitCardIssue    Label = "Debit Card Issue"
	ATMIssue          Label = "ATM Issue"
	KYCUpdate         Label = "KYC Update"
	ContactUpdate     Label = "Contact Details Update"
	ChequeBook        Label = "Cheque Book Request"
	FixedDeposit      Label = "Fixed Deposit"
	InterestRate      Label = "Interest Rate Inquiry"
	DigitalBanking    Label = "Net Banking Issue"
	AccountOpening    Label = "Account Opening"
	GeneralQuery      Label = "General Banking Query"
)

// labels is the closed set in declaration order; GeneralQuery is last.
var labels = []Label{
	AccountConversion,
	FraudReport,
	CardCharges,
	CardBlock,
	UPIIssue,
	FailedTransaction,
	RefundRequest,
	BalanceInquiry,
	MiniStatement,
	LoanInquiry,
	CreditCardApply,
	PINReset,
	DebitCardIssue,
	ATMIssue,
	KYCUpdate,
	ContactUpdate,
	ChequeBook,
	FixedDeposit,
	InterestRate,
	DigitalBanking,
	AccountOpening,
	GeneralQuery,
}

var labelSet = func() map[Label]struct{} {
	m := make(map[Label]struct{}, len(labels))
	for _, l := range labels {
		m[l] = struct{}{}
	}
	return m
}()

// ErrUnknownLabel is returned by Parse for values outside the closed set.
var ErrUnknownLabel = errors.New("unknown intent label")

// Labels returns a copy of the closed label set.
func Labels() []Label {
	out := make([]Label, len(labels))
	copy(out, labels)
	return out
}

// Parse converts s to a Label, rejecting anything outside the set.
func Parse(s string) (Label, error) {
	l := Label(s)
	if !l.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownLabel, s)
	}
	return l, nil
}

// Valid reports whether l is in the closed set.
func (l Label) Valid() bool {
	_, ok := labelSet[l]
	return ok
}

func (l Label) String() string { return string(l) }

// Source names the classifier variant that produced a Result.
type Source string

const (
	SourceKeyword Source = "keyword"
	SourceHosted  Source = "hosted"
)

// Result pairs an utterance with its label.
type Result struct {
	Utterance message.Utterance
	Label     Label
	Rationale string // hosted classifier only
	Source    Source
}

// Classifier assigns one Label to an utterance.
type Classifier interface {
	// Name returns the classifier identifier.
	Name() string

	// Classify labels the utterance. Implementations never return a label
	// outside the closed set.
	Classify(ctx context.Context, u message.Utterance) (*Result, error)
}
