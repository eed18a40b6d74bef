// Command deepsearch-token mints credentials for local development and
// operations: a signed bearer token for a user, and optionally a fresh API key
// whose hash and prefix can be stored in the api_keys table.
package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/gosuda/deepsearch/internal/auth"
	"github.com/gosuda/deepsearch/internal/domain"
)

func main() {
	log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()

	if err := run(os.Args[1:]); err != nil {
		log.Fatal().Err(err).Msg("deepsearch-token failed")
	}
}

func run(args []string) error {
	fs := flag.NewFlagSet("deepsearch-token", flag.ContinueOnError)
	user := fs.String("user", "", "user id to embed in the token (required)")
	ttl := fs.Duration("ttl", 24*time.Hour, "token lifetime")
	apiKey := fs.Bool("api-key", false, "also generate an API key")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *user == "" {
		return errors.New("-user is required")
	}

	secret := os.Getenv("DEEPSEARCH_JWT_SECRET")
	if len(secret) < 32 {
		return errors.New("DEEPSEARCH_JWT_SECRET must be set and at least 32 characters")
	}

	token, err := auth.IssueAccessToken(secret, domain.UserID(*user), *ttl)
	if err != nil {
		return err
	}
	fmt.Println("token:", token)

	if *apiKey {
		key, err := auth.GenerateAPIKey()
		if err != nil {
			return err
		}
		fmt.Println("api_key:", key.Raw)
		fmt.Println("api_key_prefix:", key.Prefix)
		fmt.Println("api_key_hash:", key.Hash)
	}

	log.Info().Str("user_id", *user).Dur("ttl", *ttl).Msg("issued token")
	return nil
}
