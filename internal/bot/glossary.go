package bot

import (
	"fmt"
	"strings"
)

type definition struct {
	Term string
	Text string
}

// glossary is matched in order; the first term contained in the question wins.
var glossary = []definition{
	{
		Term: "market sentiment",
		Text: "Market sentiment refers to the overall attitude of investors toward a particular security or financial market. It is the feeling or tone of a market, or its crowd psychology, as revealed through the activity and price movement.",
	},
	{
		Term: "lstm",
		Text: "LSTM stands for Long Short-Term Memory. It is a type of recurrent neural network (RNN) architecture that is well-suited for time-series data, like stock prices, because it can remember patterns over long sequences.",
	},
	{
		Term: "volatility",
		Text: "Volatility is a statistical measure of the dispersion of returns for a given security or market index. In simple terms, higher volatility means that a security's price can change dramatically over a short time period in either direction.",
	},
}

func isGlossaryQuestion(msg string) bool {
	return strings.HasPrefix(msg, "what is") || strings.HasPrefix(msg, "define")
}

// lookupDefinition returns the rendered definition of the first glossary term
// found in msg.
func lookupDefinition(msg string) (string, bool) {
	for _, d := range glossary {
		if strings.Contains(msg, d.Term) {
			return fmt.Sprintf("<b>%s:</b><br>%s", titleCase(d.Term), d.Text), true
		}
	}
	return "", false
}

func titleCase(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}
