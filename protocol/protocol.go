// Package protocol implements the line protocol spoken with the transport
// layer: one colon-delimited command per inbound line, colon-delimited
// SUCCESS/ERROR/UPDATE notifications outbound.
package protocol

import (
	"strings"

	"github.com/rotisserie/eris"
)

// ErrMalformed is the cause of every parse failure: wrong token count,
// unknown verb, empty argument.
var ErrMalformed = eris.New("malformed command")

// Kind identifies a parsed command.
type Kind string

const (
	KindCharacterSetup   Kind = "CHARACTER_SETUP"
	KindMatchmakingEnter Kind = "MATCHMAKING_ENTER"
	KindPlayCard         Kind = "PLAY_CARD"
	KindStoreBuy         Kind = "STORE_BUY"
	KindTradePropose     Kind = "TRADE_PROPOSE"
	KindTradeAccept      Kind = "TRADE_ACCEPT"
	KindTradeReject      Kind = "TRADE_REJECT"
)

// Command is the typed form of one inbound line.
type Command struct {
	Kind Kind

	// CHARACTER_SETUP
	Name, Race, Class string
	// MATCHMAKING:ENTER
	DeckID string
	// PLAY_CARD
	MatchID, CardID string
	// STORE:BUY
	PackType string
	// TRADE:*
	TargetID  string
	Offered   []string
	Requested []string
	TradeID   string
}

// Parse turns one line into a Command. It never panics on bad input; every
// failure wraps ErrMalformed.
func Parse(line string) (Command, error) {
	tokens := strings.Split(strings.TrimRight(line, "\r\n"), ":")
	switch tokens[0] {
	case "CHARACTER_SETUP":
		if len(tokens) != 4 || hasEmpty(tokens[1:]) {
			return Command{}, eris.Wrap(ErrMalformed, "CHARACTER_SETUP wants name:race:class")
		}
		return Command{Kind: KindCharacterSetup, Name: tokens[1], Race: tokens[2], Class: tokens[3]}, nil
	case "MATCHMAKING":
		if len(tokens) < 2 || tokens[1] != "ENTER" || len(tokens) > 3 {
			return Command{}, eris.Wrap(ErrMalformed, "MATCHMAKING wants ENTER[:deckId]")
		}
		cmd := Command{Kind: KindMatchmakingEnter}
		if len(tokens) == 3 {
			cmd.DeckID = tokens[2]
		}
		return cmd, nil
	case "PLAY_CARD":
		if len(tokens) != 3 || hasEmpty(tokens[1:]) {
			return Command{}, eris.Wrap(ErrMalformed, "PLAY_CARD wants matchId:cardId")
		}
		return Command{Kind: KindPlayCard, MatchID: tokens[1], CardID: tokens[2]}, nil
	case "STORE":
		if len(tokens) != 3 || tokens[1] != "BUY" || tokens[2] == "" {
			return Command{}, eris.Wrap(ErrMalformed, "STORE wants BUY:packType")
		}
		return Command{Kind: KindStoreBuy, PackType: tokens[2]}, nil
	case "TRADE":
		return parseTrade(tokens)
	}
	return Command{}, eris.Wrapf(ErrMalformed, "unknown verb %q", tokens[0])
}

func parseTrade(tokens []string) (Command, error) {
	if len(tokens) < 2 {
		return Command{}, eris.Wrap(ErrMalformed, "TRADE wants a subcommand")
	}
	switch tokens[1] {
	case "PROPOSE":
		if len(tokens) != 5 || hasEmpty(tokens[2:]) {
			return Command{}, eris.Wrap(ErrMalformed, "TRADE:PROPOSE wants targetId:offeredCsv:requestedCsv")
		}
		return Command{
			Kind:      KindTradePropose,
			TargetID:  tokens[2],
			Offered:   splitCSV(tokens[3]),
			Requested: splitCSV(tokens[4]),
		}, nil
	case "ACCEPT":
		if len(tokens) != 3 || tokens[2] == "" {
			return Command{}, eris.Wrap(ErrMalformed, "TRADE:ACCEPT wants tradeId")
		}
		return Command{Kind: KindTradeAccept, TradeID: tokens[2]}, nil
	case "REJECT":
		if len(tokens) != 3 || tokens[2] == "" {
			return Command{}, eris.Wrap(ErrMalformed, "TRADE:REJECT wants tradeId")
		}
		return Command{Kind: KindTradeReject, TradeID: tokens[2]}, nil
	}
	return Command{}, eris.Wrapf(ErrMalformed, "unknown trade subcommand %q", tokens[1])
}

func splitCSV(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func hasEmpty(tokens []string) bool {
	for _, t := range tokens {
		if t == "" {
			return true
		}
	}
	return false
}
