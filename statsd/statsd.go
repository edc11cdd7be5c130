// Package statsd is a helper package that wraps some common statsd methods.
// It hides the datadog dependency so a future move away from datadog only
// needs to edit this single file.
package statsd

import (
	"time"

	ddstatsd "github.com/DataDog/datadog-go/v5/statsd"
	"github.com/rotisserie/eris"
	"github.com/rs/zerolog/log"
)

var client ddstatsd.ClientInterface = &ddstatsd.NoOpClient{}

func Client() ddstatsd.ClientInterface {
	return client
}

// EmitSweepStat records the duration of one background sweep iteration.
func EmitSweepStat(start time.Time, sweep string) {
	duration := time.Since(start)
	err := Client().Timing("sweep", duration, []string{sweep}, 1)
	if err != nil {
		log.Logger.Warn().Msgf("failed to emit sweep stat: %v", err)
	}
}

// EmitMatchStarted counts a new session, tagged local or remote.
func EmitMatchStarted(kind string) {
	if err := Client().Count("match.started", 1, []string{kind}, 1); err != nil {
		log.Logger.Warn().Msgf("failed to emit match stat: %v", err)
	}
}

// EmitTradeStat counts a trade outcome.
func EmitTradeStat(outcome string) {
	if err := Client().Count("trade.executed", 1, []string{outcome}, 1); err != nil {
		log.Logger.Warn().Msgf("failed to emit trade stat: %v", err)
	}
}

func Init(address string, tags []string) error {
	if address == "" {
		return eris.New("address must not be empty")
	}
	opts := []ddstatsd.Option{
		// The statsd namespace is the prefix of all metrics
		ddstatsd.WithNamespace("arena"),
	}
	if len(tags) > 0 {
		opts = append(opts, ddstatsd.WithTags(tags))
	}

	newClient, err := ddstatsd.New(address, opts...)
	if err != nil {
		return err
	}
	// Success! replace the global client
	client = newClient
	return nil
}
