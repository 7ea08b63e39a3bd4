package bot

import (
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"

	"cryptosight-backend/internal/market"
)

const (
	binanceNote = "<br><br><small><i>Note: Prices are sourced from Binance and may differ slightly from other platforms.</i></small><br><br>"

	predictionUnavailable = "Sorry, I couldn't generate a prediction at this time. The model might be unavailable. Please try again later."
)

// rupees renders an INR amount with thousands separators and two decimals.
func rupees(v float64) string {
	return "₹" + humanize.FormatFloat("#,###.##", v)
}

func priceMessage(coin string, price float64, ok bool) string {
	var line string
	if ok {
		line = fmt.Sprintf("The current price of <b>%s</b> is <b>%s</b>.", coin, rupees(price))
	} else {
		line = fmt.Sprintf("Sorry, I couldn't fetch the price for %s right now.", coin)
	}
	return line + binanceNote + "What would you like to do next?"
}

func predictionMessage(p *market.Prediction) string {
	unit := "day"
	if p.Interval == market.Hourly {
		unit = "hour"
	}
	if p.Steps > 1 {
		unit += "s"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "📈 <b>Prediction for %s (%d %s)</b><br><br>", p.Symbol, p.Steps, unit)
	b.WriteString("<div style='display: flex; justify-content: center;'>")
	b.WriteString("<table style='border-spacing: 0 5px; width: 90%;'>")
	fmt.Fprintf(&b, "<tr><td style='width: 120px;'><b>Current Price</b></td><td style='width: 10px;'>:</td><td>%s</td></tr>", rupees(p.CurrentPrice))
	fmt.Fprintf(&b, "<tr><td><b>Predicted Price</b></td><td>:</td><td>%s</td></tr>", rupees(p.PredictedPrice))
	fmt.Fprintf(&b, "<tr><td><b>Confidence</b></td><td>:</td><td>%s%%</td></tr>", humanize.Ftoa(p.ConfidenceLevel))
	fmt.Fprintf(&b, "<tr><td><b>Market Sentiment</b></td><td>:</td><td>%s</td></tr>", p.MarketSentiment)
	b.WriteString("</table>")
	b.WriteString("</div>")
	return b.String()
}
