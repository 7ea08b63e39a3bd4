// Package bot answers /chat/ turns. The conversation state lives entirely in
// the context the client echoes back; the "awaiting" key names the question
// the bot asked last.
package bot

import (
	"context"
	"fmt"
	"html"
	"maps"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"cryptosight-backend/internal/market"
	"cryptosight-backend/internal/types"
)

const (
	keyAwaiting = "awaiting"
	keyCoin     = "coin"
	keyInterval = "interval"
	keySteps    = "steps"

	awaitInitialChoice = "initial_choice"
	awaitPriceCoin     = "price_check_coin"
	awaitCoin          = "coin"
	awaitInterval      = "interval"
	awaitSteps         = "steps"
	awaitAnother       = "another_prediction"
)

const (
	greeting       = "Hello! I am CryptoSight. How can I help you today?"
	startOver      = "Okay, let's start over. How can I help you?"
	askCoin        = "Sure, I can help with that! Which cryptocurrency would you like to predict?"
	askPriceCoin   = "Which cryptocurrency would you like to check the price for?"
	defaultMessage = "I can help with cryptocurrency predictions. Try saying 'predict bitcoin'."
)

var (
	mainMenu     = []string{"Get Prediction", "Check Price"}
	intervalMenu = []string{"Daily", "Hourly"}
)

// PriceQuoter returns a live price in INR.
type PriceQuoter interface {
	Price(ctx context.Context, symbol string) (float64, error)
}

type Predictor interface {
	Predict(ctx context.Context, symbol string, interval market.Interval, steps int) (*market.Prediction, error)
}

type Engine struct {
	prices     PriceQuoter
	predictor  Predictor
	classifier IntentClassifier
	logger     zerolog.Logger
}

// NewEngine builds an engine; classifier may be nil.
func NewEngine(prices PriceQuoter, predictor Predictor, classifier IntentClassifier, logger zerolog.Logger) *Engine {
	return &Engine{
		prices:     prices,
		predictor:  predictor,
		classifier: classifier,
		logger:     logger.With().Str("component", "chat").Logger(),
	}
}

func reply(message string, options []string, c types.Context) *types.ChatResponse {
	return &types.ChatResponse{Message: message, Options: options, Context: c}
}

func coinMenu() []string { return append([]string(nil), market.SupportedCoins...) }

// Respond computes the bot's answer to one turn. The incoming context is
// never modified; keys the engine does not know survive the turn.
func (e *Engine) Respond(ctx context.Context, message string, in types.Context) (*types.ChatResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	msg := strings.ToLower(strings.TrimSpace(message))
	c := maps.Clone(in)
	if c == nil {
		c = types.Context{}
	}

	if msg == types.InitMessage {
		return reply(greeting, mainMenu, types.Context{keyAwaiting: awaitInitialChoice}), nil
	}
	if strings.Contains(msg, "reset") || strings.Contains(msg, "start over") {
		return reply(startOver, nil, types.Context{}), nil
	}

	awaiting, _ := c[keyAwaiting].(string)

	if strings.Contains(msg, "go back") {
		switch awaiting {
		case awaitInterval:
			c[keyAwaiting] = awaitCoin
			return reply("Okay, which cryptocurrency would you like to predict?", coinMenu(), c), nil
		case awaitSteps:
			c[keyAwaiting] = awaitInterval
			return reply("No problem. Do you want a daily or hourly prediction?", intervalMenu, c), nil
		}
	}

	if awaiting == awaitInitialChoice {
		if strings.Contains(msg, "prediction") {
			c[keyAwaiting] = awaitCoin
			return reply(askCoin, coinMenu(), c), nil
		} else if strings.Contains(msg, "price") {
			c[keyAwaiting] = awaitPriceCoin
			return reply(askPriceCoin, coinMenu(), c), nil
		}
	}

	if awaiting == awaitPriceCoin {
		if coin := strings.ToUpper(msg); market.IsSupported(coin) {
			return e.priceReply(ctx, coin, c), nil
		}
	}

	switch awaiting {
	case awaitCoin:
		return e.chooseCoin(msg, c), nil
	case awaitInterval:
		return e.chooseInterval(msg, c), nil
	case awaitSteps:
		return e.chooseSteps(ctx, msg, c), nil
	case awaitAnother:
		return e.chooseAnother(msg, c), nil
	}

	if isGlossaryQuestion(msg) {
		if text, ok := lookupDefinition(msg); ok {
			return reply(text, nil, c), nil
		}
	}

	switch DetectIntent(msg) {
	case IntentPredict:
		c[keyAwaiting] = awaitCoin
		return reply(askCoin, coinMenu(), c), nil
	case IntentCheckPrice:
		c[keyAwaiting] = awaitPriceCoin
		return reply(askPriceCoin, coinMenu(), c), nil
	}

	if e.classifier != nil {
		if r := e.classify(ctx, message, c); r != nil {
			return r, nil
		}
	}
	return reply(defaultMessage, nil, c), nil
}

func (e *Engine) priceReply(ctx context.Context, coin string, c types.Context) *types.ChatResponse {
	price, err := e.prices.Price(ctx, coin)
	if err != nil {
		e.logger.Warn().Err(err).Str("coin", coin).Msg("price lookup failed")
	}
	c[keyAwaiting] = awaitInitialChoice
	return reply(priceMessage(coin, price, err == nil), mainMenu, c)
}

func (e *Engine) chooseCoin(msg string, c types.Context) *types.ChatResponse {
	coin := strings.ToUpper(msg)
	if !market.IsSupported(coin) {
		return reply(fmt.Sprintf("Sorry, I don't support %s. Please choose from: %s.", coin, strings.Join(market.SupportedCoins, ", ")), coinMenu(), c)
	}
	c[keyCoin] = coin
	c[keyAwaiting] = awaitInterval
	return reply(fmt.Sprintf("Great! For %s. Do you want a daily or hourly prediction?", coin), []string{"Daily", "Hourly", "Go Back"}, c)
}

func (e *Engine) chooseInterval(msg string, c types.Context) *types.ChatResponse {
	var interval market.Interval
	var example string
	switch msg {
	case "daily":
		interval, example = market.Daily, "e.g., 7 days"
	case "hourly":
		interval, example = market.Hourly, "e.g., 12 hours"
	default:
		return reply("Please choose either 'Daily' or 'Hourly'.", []string{"Daily", "Hourly", "Go Back"}, c)
	}
	c[keyInterval] = string(interval)
	c[keyAwaiting] = awaitSteps
	return reply(fmt.Sprintf("Got it. How many steps (%s) ahead should I predict?", example), []string{"Go Back"}, c)
}

// maxSteps is the longest horizon offered per interval.
func maxSteps(interval market.Interval) int {
	if interval == market.Hourly {
		return 23
	}
	return 30
}

func (e *Engine) chooseSteps(ctx context.Context, msg string, c types.Context) *types.ChatResponse {
	steps, err := strconv.Atoi(msg)
	if err != nil {
		return reply("That doesn't look like a number. Please enter how many steps to predict.", []string{"Go Back"}, c)
	}
	raw, _ := c[keyInterval].(string)
	interval := market.Interval(raw)
	valid := (interval == market.Hourly || interval == market.Daily) && steps >= 1 && steps <= maxSteps(interval)
	if !valid {
		return reply(fmt.Sprintf("Please enter a number between 1 and %d.", maxSteps(interval)), []string{"Go Back"}, c)
	}
	c[keySteps] = steps

	coin, _ := c[keyCoin].(string)
	var text string
	pred, err := e.predictor.Predict(ctx, coin, interval, steps)
	if err != nil {
		e.logger.Error().Err(err).Str("coin", coin).Str("interval", raw).Int("steps", steps).Msg("prediction failed")
		text = predictionUnavailable
	} else {
		text = predictionMessage(pred)
	}

	c[keyAwaiting] = awaitAnother
	return reply(text+binanceNote+"Would you like to start another prediction?", []string{"New Prediction", "No Thanks"}, c)
}

func (e *Engine) chooseAnother(msg string, c types.Context) *types.ChatResponse {
	if strings.Contains(msg, "new") || strings.Contains(msg, "yes") {
		return reply("Great! Which cryptocurrency would you like to predict?", coinMenu(), types.Context{keyAwaiting: awaitCoin})
	}
	if strings.Contains(msg, "no") {
		return reply("You got it! Feel free to ask for another prediction or anything else.", mainMenu, types.Context{})
	}
	return reply("I'm sorry, I didn't understand that. Would you like to start a new prediction or not?", []string{"New Prediction", "No Thanks", "Go Back"}, c)
}

// classify asks the fallback classifier about text no rule matched. A nil
// result means "use the default reply".
func (e *Engine) classify(ctx context.Context, message string, c types.Context) *types.ChatResponse {
	ci, err := e.classifier.Classify(ctx, message)
	if err != nil || ci == nil {
		e.logger.Warn().Err(err).Msg("intent classification failed")
		return nil
	}
	e.logger.Debug().Str("intent", string(ci.Type)).Float32("confidence", ci.Confidence).Msg("classified free text")

	coin := strings.ToUpper(ci.StringArg("coin"))
	switch ci.Type {
	case IntentPredict:
		if market.IsSupported(coin) {
			c[keyAwaiting] = awaitCoin
			return e.chooseCoin(strings.ToLower(coin), c)
		}
		c[keyAwaiting] = awaitCoin
		return reply(askCoin, coinMenu(), c)
	case IntentCheckPrice:
		if market.IsSupported(coin) {
			return e.priceReply(ctx, coin, c)
		}
		c[keyAwaiting] = awaitPriceCoin
		return reply(askPriceCoin, coinMenu(), c)
	case IntentDefine:
		if text, ok := lookupDefinition(strings.ToLower(ci.StringArg("term"))); ok {
			return reply(text, nil, c)
		}
	case IntentUnknown:
		if m := strings.TrimSpace(ci.Message); m != "" {
			// Model output is not trusted markup.
			return reply(html.EscapeString(m), nil, c)
		}
	}
	return nil
}
