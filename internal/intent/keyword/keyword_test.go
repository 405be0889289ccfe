package keyword

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nadzzz/voicedesk/internal/intent"
	"github.com/nadzzz/voicedesk/internal/message"
)

func TestMatch_DefaultRules(t *testing.T) {
	c := New(DefaultRules())

	tests := []struct {
		text string
		want intent.Label
	}{
		{"mera UPI fail ho gaya", intent.UPIIssue},
		{"mujhe apna card block karna hai", intent.CardBlock},
		{"what's my balance", intent.BalanceInquiry},
		{"nice weather today", intent.GeneralQuery},
		{"What is the EMI on my home loan?", intent.LoanInquiry},
		{"I need a new cheque book", intent.ChequeBook},
		{"can't login to net banking", intent.DigitalBanking},
		{"someone made an unauthorized withdrawal", intent.FraudReport},
		{"I forgot my PIN", intent.PINReset},
		{"please send my bank statements", intent.MiniStatement},
		{"has my money been refunded", intent.RefundRequest},
		{"tell me about home loans", intent.LoanInquiry},
		{"my cards were blocked by the bank", intent.GeneralQuery},
		{"", intent.GeneralQuery},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			assert.Equal(t, tt.want, c.Match(tt.text))
		})
	}
}

func TestMatch_EarlierRuleWins(t *testing.T) {
	c := New(DefaultRules())
	assert.Equal(t, intent.AccountConversion, c.Match("please block card and also look at my salary account"))
}

func TestMatch_AnchoredAtWordStart(t *testing.T) {
	c := New(DefaultRules())
	assert.Equal(t, intent.GeneralQuery, c.Match("is the premium worth it"))
	assert.Equal(t, intent.LoanInquiry, c.Match("how are EMIs calculated"))
	assert.Equal(t, intent.CardBlock, c.Match("Block card!!"))
}

func TestClassify_KeepsUtterance(t *testing.T) {
	c := New(DefaultRules())
	u := message.NewUtterance("Block my card please", "en", "msg-1")

	res, err := c.Classify(context.Background(), u)
	require.NoError(t, err)
	assert.Equal(t, intent.CardBlock, res.Label)
	assert.Equal(t, intent.SourceKeyword, res.Source)
	assert.Equal(t, u, res.Utterance)
	assert.Empty(t, res.Rationale)
}

func TestDefaultRules_Valid(t *testing.T) {
	require.NoError(t, ValidateRules(DefaultRules()))
	// every label except the catch-all has a rule
	assert.Len(t, DefaultRules(), len(intent.Labels())-1)
}

func TestLoadRules(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rules.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`rules:
  - label: Card Block
    keywords: ["hold my card"]
  - label: UPI Issue
    keywords: ["upi"]
`), 0o644))

	rules, err := LoadRules(path)
	require.NoError(t, err)
	require.Len(t, rules, 2)

	c := New(rules)
	assert.Equal(t, intent.CardBlock, c.Match("please hold my card"))
	assert.Equal(t, intent.GeneralQuery, c.Match("what's my balance"))
}

func TestLoadRules_Invalid(t *testing.T) {
	dir := t.TempDir()

	cases := map[string]string{
		"unknown label": "rules:\n  - label: Wire Transfer\n    keywords: [wire]\n",
		"catch-all":     "rules:\n  - label: General Banking Query\n    keywords: [hello]\n",
		"no keywords":   "rules:\n  - label: Card Block\n    keywords: []\n",
		"empty":         "rules: []\n",
		"duplicate":     "rules:\n  - label: Card Block\n    keywords: [a]\n  - label: Card Block\n    keywords: [b]\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(dir, name+".yaml")
			require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
			_, err := LoadRules(path)
			assert.Error(t, err)
		})
	}

	_, err := LoadRules(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}
