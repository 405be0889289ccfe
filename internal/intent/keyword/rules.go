package keyword

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/nadzzz/voicedesk/internal/intent"
)

// Rule maps one label to the phrases that select it.
type Rule struct {
	Label    intent.Label `yaml:"label"`
	Keywords []string     `yaml:"keywords"`
}

// DefaultRules is the built-in table. Order is priority: the first rule with
// a matching keyword wins, so more specific requests sit above broader ones.
// Keywords cover English and romanised Hindi.
func DefaultRules() []Rule {
	return []Rule{
		{intent.AccountConversion, []string{"salary account", "convert account", "convert my account", "account conversion", "convert to savings", "change account type", "account type change"}},
		{intent.FraudReport, []string{"fraud", "scam", "unauthorized", "unauthorised", "shared otp", "otp share", "dhokha"}},
		{intent.CardCharges, []string{"card charges", "card charge", "annual fee", "card fee", "joining fee", "hidden charges"}},
		{intent.CardBlock, []string{"block card", "card block", "block my card", "lost card", "card lost", "lost my card", "stolen card", "card stolen", "freeze card", "block karna", "band karna"}},
		{intent.UPIIssue, []string{"upi", "gpay", "google pay", "phonepe", "paytm", "bhim"}},
		{intent.FailedTransaction, []string{"transaction failed", "failed transaction", "payment failed", "money deducted", "amount deducted", "debited but", "paisa kat gaya", "paise kat gaye", "kat gaya"}},
		{intent.RefundRequest, []string{"refund", "money back", "chargeback", "paisa wapas", "paise wapas"}},
		{intent.BalanceInquiry, []string{"balance", "kitna paisa", "kitne paise", "how much money"}},
		{intent.MiniStatement, []string{"statement", "transaction history", "last transactions", "recent transactions", "passbook"}},
		{intent.LoanInquiry, []string{"loan", "emi", "karz", "karza"}},
		{intent.CreditCardApply, []string{"new credit card", "apply for credit card", "apply credit card", "credit card apply", "credit card chahiye", "get a credit card"}},
		{intent.PINReset, []string{"pin reset", "reset pin", "reset my pin", "forgot pin", "forgot my pin", "change pin", "change my pin", "pin change", "atm pin", "pin bhool gaya", "pin bhul gaya"}},
		{intent.DebitCardIssue, []string{"debit card", "atm card", "card not working", "card declined", "card expired"}},
		{intent.ATMIssue, []string{"atm", "cash not dispensed", "cash withdrawal"}},
		{intent.KYCUpdate, []string{"kyc", "aadhaar", "aadhar", "pan card", "re-kyc"}},
		{intent.ContactUpdate, []string{"change mobile number", "update mobile", "update phone", "update email", "change address", "update address", "new address"}},
		{intent.ChequeBook, []string{"cheque book", "chequebook", "check book", "checkbook"}},
		{intent.FixedDeposit, []string{"fixed deposit", "fd rate", "open fd", "fd account", "fd interest", "break fd"}},
		{intent.InterestRate, []string{"interest rate", "rate of interest", "byaj"}},
		{intent.DigitalBanking, []string{"net banking", "netbanking", "internet banking", "mobile banking", "login issue", "cannot login", "can't login", "password reset"}},
		{intent.AccountOpening, []string{"open account", "open an account", "new account", "account kholna", "khata kholna", "khata khulwana"}},
	}
}

// rulesFile is the on-disk shape of a rules override.
type rulesFile struct {
	Rules []Rule `yaml:"rules"`
}

// LoadRules reads a YAML rules file that replaces the default table.
//
//	rules:
//	  - label: Card Block
//	    keywords: ["block card", "card block"]
func LoadRules(path string) ([]Rule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading rules file: %w", err)
	}
	var f rulesFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing rules file: %w", err)
	}
	if err := ValidateRules(f.Rules); err != nil {
		return nil, fmt.Errorf("rules file %s: %w", path, err)
	}
	return f.Rules, nil
}

// ValidateRules checks labels against the closed set and rejects empty rules.
func ValidateRules(rules []Rule) error {
	if len(rules) == 0 {
		return errors.New("no rules")
	}
	seen := make(map[intent.Label]bool, len(rules))
	for i, r := range rules {
		if !r.Label.Valid() {
			return fmt.Errorf("rule %d: %w: %q", i, intent.ErrUnknownLabel, r.Label)
		}
		if r.Label == intent.GeneralQuery {
			return fmt.Errorf("rule %d: %q is the catch-all and cannot have keywords", i, r.Label)
		}
		if seen[r.Label] {
			return fmt.Errorf("rule %d: duplicate label %q", i, r.Label)
		}
		seen[r.Label] = true
		if len(r.Keywords) == 0 {
			return fmt.Errorf("rule %d (%s): no keywords", i, r.Label)
		}
		for _, k := range r.Keywords {
			if strings.TrimSpace(k) == "" {
				return fmt.Errorf("rule %d (%s): blank keyword", i, r.Label)
			}
		}
	}
	return nil
}
