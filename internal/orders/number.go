package orders

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"time"
)

const orderNumberPrefix = "TLM"

var orderNumberSpace = big.NewInt(10000)

// NewOrderNumber returns TLM + YYMM + four random digits.
func NewOrderNumber(now time.Time) (string, error) {
	n, err := rand.Int(rand.Reader, orderNumberSpace)
	if err != nil {
		return "", fmt.Errorf("generate order number: %w", err)
	}
	return fmt.Sprintf("%s%s%04d", orderNumberPrefix, now.UTC().Format("0601"), n.Int64()), nil
}
