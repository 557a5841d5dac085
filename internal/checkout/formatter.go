package checkout

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"bakery/storefront/internal/config"
	"bakery/storefront/internal/domain"
)

var (
	ErrCartNotCheckoutable = errors.New("cart cannot be checked out")
	ErrNoDestination       = errors.New("no destination phone number configured")
)

// Order is a formatted order ready to be handed to the messaging service
type Order struct {
	Message string
	Link    string
}

type Formatter struct {
	phone        string
	linkTemplate string
	greeting     string
	money        *MoneyFormatter
}

func NewFormatter(cfg config.CheckoutConfig) *Formatter {
	return &Formatter{
		phone:        SanitizePhone(cfg.Phone),
		linkTemplate: cfg.LinkTemplate,
		greeting:     cfg.Greeting,
		money:        NewMoneyFormatter(cfg.CurrencySymbol, cfg.Locale, cfg.Decimals),
	}
}

// SanitizePhone keeps digits and a leading plus sign
func SanitizePhone(raw string) string {
	raw = strings.TrimSpace(raw)

	var b strings.Builder
	for i, r := range raw {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '+' && i == 0:
			b.WriteRune(r)
		}
	}

	if b.String() == "+" {
		return ""
	}
	return b.String()
}

func (f *Formatter) Money() *MoneyFormatter {
	return f.money
}

// Message renders one line per valid cart line followed by the grand total
func (f *Formatter) Message(v domain.CheckoutValidation) string {
	lines := make([]string, 0, len(v.ValidItems)+2)
	if f.greeting != "" {
		lines = append(lines, f.greeting)
	}
	for _, line := range v.ValidItems {
		lines = append(lines, fmt.Sprintf("%s x%d - %s", line.Name, line.Quantity, f.money.Format(line.LineTotal())))
	}
	lines = append(lines, "Total: "+f.money.Format(v.TotalCost))

	return strings.Join(lines, "\n")
}

// Checkout formats the order and builds the deep link. It refuses carts that
// fail validation and refuses to run without a destination number.
func (f *Formatter) Checkout(v domain.CheckoutValidation) (*Order, error) {
	if !v.IsValid {
		if len(v.ValidItems) == 0 && len(v.UnavailableItems) == 0 {
			return nil, fmt.Errorf("%w: cart is empty", ErrCartNotCheckoutable)
		}
		return nil, fmt.Errorf("%w: %d item(s) are no longer available", ErrCartNotCheckoutable, len(v.UnavailableItems))
	}
	if f.phone == "" {
		return nil, ErrNoDestination
	}

	message := f.Message(v)
	return &Order{
		Message: message,
		Link:    fmt.Sprintf(f.linkTemplate, f.phone, encodeText(message)),
	}, nil
}

// encodeText escapes like encodeURIComponent, spaces become %20
func encodeText(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}
