package ledger

import (
	"fmt"
	"os"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"rewards/internal/core"
)

// SeedFile is the YAML layout of a ledger seed:
//
//	transactions:
//	  - id: 1
//	    customerId: 1
//	    amount: "120.00"
//	    date: "2023-01-15"
type SeedFile struct {
	Transactions []SeedTransaction `yaml:"transactions"`
}

// SeedTransaction is one purchase of a seed file. Amount and date are kept as
// text so decimal precision survives YAML decoding.
type SeedTransaction struct {
	ID         int64  `yaml:"id"`
	CustomerID int64  `yaml:"customerId"`
	Amount     string `yaml:"amount"`
	Date       string `yaml:"date"`
}

// DefaultSeed is used when no seed file is present.
func DefaultSeed() []core.Transaction {
	return []core.Transaction{
		{ID: 1, CustomerID: 1, Amount: decimal.NewFromInt(120), Date: core.NewDate(2023, 1, 15)},
		{ID: 2, CustomerID: 1, Amount: decimal.NewFromInt(80), Date: core.NewDate(2023, 2, 20)},
		{ID: 3, CustomerID: 2, Amount: decimal.NewFromInt(200), Date: core.NewDate(2023, 3, 10)},
	}
}

// LoadSeedFile reads and parses a YAML seed file.
func LoadSeedFile(path string) ([]core.Transaction, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}
	return ParseSeed(data)
}

// ParseSeed decodes YAML seed data into transactions.
func ParseSeed(data []byte) ([]core.Transaction, error) {
	var file SeedFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("decode seed yaml: %w", err)
	}

	out := make([]core.Transaction, 0, len(file.Transactions))
	for i, st := range file.Transactions {
		tx, err := st.toCore()
		if err != nil {
			return nil, fmt.Errorf("seed transaction %d: %w", i, err)
		}
		out = append(out, tx)
	}
	return out, nil
}

func (st SeedTransaction) toCore() (core.Transaction, error) {
	if st.CustomerID <= 0 {
		return core.Transaction{}, fmt.Errorf("invalid customer id %d", st.CustomerID)
	}
	amount, err := decimal.NewFromString(st.Amount)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("invalid amount %q: %w", st.Amount, err)
	}
	if !core.FitsAmountScale(amount) {
		return core.Transaction{}, fmt.Errorf("invalid amount %q: more than %d decimal places", st.Amount, core.AmountScale)
	}
	date, err := core.ParseDate(st.Date)
	if err != nil {
		return core.Transaction{}, err
	}
	return core.Transaction{ID: st.ID, CustomerID: st.CustomerID, Amount: amount, Date: date}, nil
}

// MarshalSeed encodes transactions in the seed file layout.
func MarshalSeed(txs []core.Transaction) ([]byte, error) {
	file := SeedFile{Transactions: make([]SeedTransaction, 0, len(txs))}
	for _, tx := range txs {
		file.Transactions = append(file.Transactions, SeedTransaction{
			ID:         tx.ID,
			CustomerID: tx.CustomerID,
			Amount:     tx.Amount.StringFixed(2),
			Date:       tx.Date.String(),
		})
	}
	return yaml.Marshal(file)
}
