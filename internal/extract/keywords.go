package extract

import (
	_ "embed"
	"fmt"
	"strings"

	"github.com/cloudflare/ahocorasick"
	"gopkg.in/yaml.v3"
)

// Role is the semantic meaning of a table column.
type Role int

const (
	RoleDate Role = iota
	RoleDescription
	RoleDebit
	RoleCredit
	RoleAmount
	RoleBalance
	roleCount
)

// Roles lists every role in classification order.
var Roles = [roleCount]Role{RoleDate, RoleDescription, RoleDebit, RoleCredit, RoleAmount, RoleBalance}

func (r Role) String() string {
	switch r {
	case RoleDate:
		return "date"
	case RoleDescription:
		return "description"
	case RoleDebit:
		return "debit"
	case RoleCredit:
		return "credit"
	case RoleAmount:
		return "amount"
	case RoleBalance:
		return "balance"
	}
	return fmt.Sprintf("role(%d)", int(r))
}

//go:embed keywords.yaml
var keywordsYAML []byte

type keywordFile struct {
	Columns struct {
		Date        []string `yaml:"date"`
		Description []string `yaml:"description"`
		Debit       []string `yaml:"debit"`
		Credit      []string `yaml:"credit"`
		Amount      []string `yaml:"amount"`
		Balance     []string `yaml:"balance"`
	} `yaml:"columns"`
	Direction struct {
		Credit []string `yaml:"credit"`
		Debit  []string `yaml:"debit"`
	} `yaml:"direction"`
}

// keywordSet answers "does this normalized text contain any of these keywords".
type keywordSet struct {
	words   []string
	matcher *ahocorasick.Matcher
	tokens  map[string]struct{}
}

func newKeywordSet(words []string) keywordSet {
	set := keywordSet{tokens: make(map[string]struct{}, len(words))}
	patterns := make([][]byte, 0, len(words))
	for _, w := range words {
		w = Normalize(w)
		if w == "" {
			continue
		}
		set.words = append(set.words, w)
		set.tokens[w] = struct{}{}
		patterns = append(patterns, []byte(w))
	}
	if len(patterns) > 0 {
		set.matcher = ahocorasick.NewMatcher(patterns)
	}
	return set
}

// Matches reports whether normalized text contains a keyword as a substring,
// or has a whitespace-separated token equal to one.
func (k keywordSet) Matches(normalized string) bool {
	if k.matcher == nil || normalized == "" {
		return false
	}
	if len(k.matcher.MatchThreadSafe([]byte(normalized))) > 0 {
		return true
	}
	for _, tok := range strings.Fields(normalized) {
		if _, ok := k.tokens[tok]; ok {
			return true
		}
	}
	return false
}

// Words returns the normalized keywords in configuration order.
func (k keywordSet) Words() []string {
	out := make([]string, len(k.words))
	copy(out, k.words)
	return out
}

var (
	columnKeywords  [roleCount]keywordSet
	creditIndicator keywordSet
	debitIndicator  keywordSet
)

func init() {
	var kf keywordFile
	if err := yaml.Unmarshal(keywordsYAML, &kf); err != nil {
		panic(fmt.Sprintf("extract: parsing embedded keywords.yaml: %v", err))
	}

	columnKeywords[RoleDate] = newKeywordSet(kf.Columns.Date)
	columnKeywords[RoleDescription] = newKeywordSet(kf.Columns.Description)
	columnKeywords[RoleDebit] = newKeywordSet(kf.Columns.Debit)
	columnKeywords[RoleCredit] = newKeywordSet(kf.Columns.Credit)
	columnKeywords[RoleAmount] = newKeywordSet(kf.Columns.Amount)
	columnKeywords[RoleBalance] = newKeywordSet(kf.Columns.Balance)

	creditIndicator = newKeywordSet(kf.Direction.Credit)
	debitIndicator = newKeywordSet(kf.Direction.Debit)
}

// ColumnKeywords returns the configured header keywords for a role.
func ColumnKeywords(r Role) []string {
	if r < 0 || r >= roleCount {
		return nil
	}
	return columnKeywords[r].Words()
}
