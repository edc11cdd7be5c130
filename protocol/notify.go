package protocol

import (
	"strconv"
	"strings"
	"time"
)

// Game-over outcomes delivered on UPDATE:GAME_OVER lines.
const (
	OutcomeVictory            = "VICTORY"
	OutcomeDefeat             = "DEFEAT"
	OutcomeOpponentDisconnect = "OPPONENT_DISCONNECT"
)

// Trade completion results delivered on UPDATE:TRADE_COMPLETE lines.
const (
	TradeResultSuccess      = "SUCCESS"
	TradeResultMissingCards = "FAILED_MISSING_CARDS"
	TradeResultCancelled    = "CANCELLED"
)

func Success(text string) string {
	return "SUCCESS:" + text
}

func Error(text string) string {
	return "ERROR:" + text
}

func GameStart(matchID, opponentName string) string {
	return "UPDATE:GAME_START:" + matchID + ":" + opponentName
}

func NewTurn(playerID string, deadline time.Time) string {
	return "UPDATE:NEW_TURN:" + playerID + ":" + strconv.FormatInt(deadline.UnixMilli(), 10)
}

func Health(playerID string, value int) string {
	return "UPDATE:HEALTH:" + playerID + ":" + strconv.Itoa(value)
}

func Resource(p1Value, p2Value int) string {
	return "UPDATE:RESOURCE:" + strconv.Itoa(p1Value) + ":" + strconv.Itoa(p2Value)
}

func GameOver(outcome string) string {
	return "UPDATE:GAME_OVER:" + outcome
}

func TradeProposal(tradeID, proposerID string, offered, requested []string) string {
	return "UPDATE:TRADE_PROPOSAL:" + tradeID + ":" + proposerID + ":" +
		strings.Join(offered, ",") + ":" + strings.Join(requested, ",")
}

func TradeComplete(result string) string {
	return "UPDATE:TRADE_COMPLETE:" + result
}
