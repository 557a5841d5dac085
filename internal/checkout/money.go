package checkout

import (
	"fmt"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// MoneyFormatter renders amounts with locale digit grouping and a fixed
// currency symbol in front.
type MoneyFormatter struct {
	symbol   string
	decimals int32
	tag      language.Tag
}

func NewMoneyFormatter(symbol, locale string, decimals int) *MoneyFormatter {
	tag, err := language.Parse(locale)
	if err != nil {
		tag = language.English
	}
	if decimals < 0 {
		decimals = 0
	}
	return &MoneyFormatter{
		symbol:   symbol,
		decimals: int32(decimals),
		tag:      tag,
	}
}

func (f *MoneyFormatter) Format(amount decimal.Decimal) string {
	p := message.NewPrinter(f.tag)
	format := fmt.Sprintf("%%.%df", f.decimals)
	return f.symbol + p.Sprintf(format, amount.Round(f.decimals).InexactFloat64())
}
