package mpesa

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/NgigiN/groupbanker/internal/storage"
)

// ErrNotConfirmation is returned for text that is not an outgoing M-PESA confirmation.
var ErrNotConfirmation = errors.New("not a valid outgoing M-PESA message")

type ParsedTransaction struct {
	TransactionID string
	Amount        float64
	Recipient     string
	DateTime      time.Time
	Balance       float64
	Cost          float64
}

// money matches Ksh<number>[,number]* with an optional fractional part, so a
// trailing period is never swallowed.
const money = `Ksh[\d,]+(?:\.\d+)?`

// confirmationPattern accepts the variants seen in real messages: a missing
// space before "New" ("PM.New"), "for account ..." inside the recipient,
// "M-PESA" or "business" balance, and an optional space before AM/PM.
var confirmationPattern = regexp.MustCompile(`(?i)(\w+)\s+Confirmed\.?\s+(` + money + `)\s+(sent|paid)\s+to\s+(.*?)\s*\.?\s+on\s+(\d{1,2}/\d{1,2}/\d{2})\s+at\s+(\d{1,2}:\d{2})\s?(AM|PM)\.?\s*New\s+(?:M-PESA|business)\s+balance\s+is\s+(` + money + `)\.\s*Transaction\s+cost,?\s*(` + money + `)(?:\.|\b)`)

var confirmationStart = regexp.MustCompile(`(?i)\b\w+\s+Confirmed\.?\s+Ksh[\d,]+(?:\.\d+)?\s+(?:sent|paid)\s+to\b`)

func ParseMPesaMessage(msg string) (*ParsedTransaction, error) {
	m := confirmationPattern.FindStringSubmatch(msg)
	if m == nil {
		return nil, ErrNotConfirmation
	}

	amount, err := parseKsh(m[2])
	if err != nil {
		return nil, fmt.Errorf("failed to parse amount: %w", err)
	}
	balance, err := parseKsh(m[8])
	if err != nil {
		return nil, fmt.Errorf("failed to parse balance: %w", err)
	}
	cost, err := parseKsh(m[9])
	if err != nil {
		return nil, fmt.Errorf("failed to parse cost: %w", err)
	}

	// "17/9/25 6:56 PM"
	stamp := m[5] + " " + m[6] + " " + strings.ToUpper(m[7])
	dateTime, err := time.Parse("2/1/06 3:04 PM", stamp)
	if err != nil {
		return nil, fmt.Errorf("failed to parse date/time: %w", err)
	}

	recipient := strings.TrimSuffix(strings.TrimSpace(m[4]), ".")
	recipient = strings.Join(strings.Fields(recipient), " ")

	return &ParsedTransaction{
		TransactionID: strings.ToUpper(m[1]),
		Amount:        amount,
		Recipient:     recipient,
		DateTime:      dateTime,
		Balance:       balance,
		Cost:          cost,
	}, nil
}

func parseKsh(s string) (float64, error) {
	s = strings.ReplaceAll(s[len("Ksh"):], ",", "")
	return strconv.ParseFloat(s, 64)
}

// Record maps the message onto store fields. Outgoing payments are recorded
// as negative amounts including the transaction cost.
func (p *ParsedTransaction) Record() (amount float64, description, when string) {
	amount = -(p.Amount + p.Cost)
	description = fmt.Sprintf("%s to %s", p.TransactionID, p.Recipient)
	return amount, description, p.DateTime.Format(storage.TimeLayout)
}

// IsConfirmation reports whether line starts an outgoing M-PESA confirmation.
func IsConfirmation(line string) bool {
	return confirmationStart.MatchString(line)
}

// SplitMessages returns every confirmation message in a pasted batch, one per
// entry. Text before the first confirmation is dropped.
func SplitMessages(text string) []string {
	starts := confirmationStart.FindAllStringIndex(text, -1)
	messages := make([]string, 0, len(starts))
	for i, loc := range starts {
		end := len(text)
		if i+1 < len(starts) {
			end = starts[i+1][0]
		}
		messages = append(messages, strings.TrimSpace(text[loc[0]:end]))
	}
	return messages
}
