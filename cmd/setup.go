package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/desertthunder/spotsync/internal/server"
	"github.com/desertthunder/spotsync/internal/shared"
	"github.com/urfave/cli/v3"
	"golang.org/x/oauth2"
)

const defaultAuthTimeout = 2 * time.Minute

// Setup creates the config file when missing, then migrates the database.
func (r *Runner) Setup(ctx context.Context, cmd *cli.Command) error {
	configPath := cmd.String("config")

	if _, err := os.Stat(configPath); errors.Is(err, os.ErrNotExist) {
		r.logger.Info("config file not found, creating from template", "path", configPath)
		if err := shared.CreateConfigFile(configPath); err != nil {
			return err
		}
		r.writePlain("%s Created %s\n", r.palette.OK("✓"), configPath)
	}

	config, err := r.loadConfig(cmd)
	if err != nil {
		return err
	}

	r.logger.Info("initializing database", "path", config.Database.Path)
	db, err := shared.NewDatabase(config.Database.Path)
	if err != nil {
		return fmt.Errorf("failed to create database: %w", err)
	}
	defer db.Close()
	shared.ConfigureDatabase(db, config.Database.Path, config.Database.MaxOpenConns, config.Database.MaxIdleConns)

	if cmd.Bool("rollback") {
		if err := shared.RollbackMigration(db); err != nil {
			return err
		}
	} else if err := shared.RunMigrations(db); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	version, err := shared.MigrationVersion(db)
	if err != nil {
		return err
	}

	r.writePlain("%s Database %s at migration %d\n", r.palette.OK("✓"), config.Database.Path, version)
	return nil
}

type authOutcome struct {
	token *oauth2.Token
	err   error
}

// Auth runs the authorization code flow through a local callback listener and
// stores the resulting tokens in the config file.
func (r *Runner) Auth(ctx context.Context, cmd *cli.Command) error {
	config, err := r.loadConfig(cmd)
	if err != nil {
		return err
	}

	creds := config.Credentials.Spotify
	if creds.ClientID == "" || creds.ClientSecret == "" {
		return fmt.Errorf("%w: spotify client_id and client_secret must be set", shared.ErrMissingCredentials)
	}

	addr, path, err := server.CallbackAddr(creds.RedirectURI)
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrInvalidConfig, err)
	}

	handler := server.NewOAuthHandler(shared.OAuthConfig(creds), shared.GenerateID(), path)
	router := server.NewRouter()
	router.Use(server.RequestLogger(r.logger))
	router.Register(handler)

	srv, err := server.Listen(addr, router)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			r.logger.Warn("error shutting down callback server", "error", err)
		}
	}()

	timeout := cmd.Duration("timeout")
	r.writePlain("Open this URL in your browser to authorize spotsync:\n\n%s\n\n", handler.AuthCodeURL())
	r.writePlain("%s\n", r.palette.Help(fmt.Sprintf("Waiting for the redirect on %s (%s timeout)...", srv.Addr(), timeout)))

	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	done := make(chan authOutcome, 1)
	go func() {
		token, err := handler.Wait(waitCtx)
		done <- authOutcome{token: token, err: err}
	}()

	var outcome authOutcome
	select {
	case outcome = <-done:
	case err := <-srv.Errors():
		return fmt.Errorf("callback server failed: %w", err)
	}
	if outcome.err != nil {
		return fmt.Errorf("%w: %v", shared.ErrNotAuthenticated, outcome.err)
	}

	if err := r.saveTokens(cmd.String("config"), config, outcome.token); err != nil {
		return err
	}
	r.writePlain("%s Tokens saved to %s\n", r.palette.OK("✓"), cmd.String("config"))
	return nil
}

// saveTokens copies the token into the Spotify credentials and rewrites the config file.
func (r *Runner) saveTokens(path string, config *shared.Config, token *oauth2.Token) error {
	if config == nil {
		return fmt.Errorf("%w: no config loaded", shared.ErrMissingConfig)
	}
	if path == "" {
		return fmt.Errorf("%w: config path", shared.ErrMissingArgument)
	}
	if token == nil || token.AccessToken == "" {
		return fmt.Errorf("%w: empty token", shared.ErrNotAuthenticated)
	}

	config.Credentials.Spotify.AccessToken = token.AccessToken
	if token.RefreshToken != "" {
		config.Credentials.Spotify.RefreshToken = token.RefreshToken
	}

	if err := shared.SaveConfig(path, config); err != nil {
		return err
	}
	r.config = config
	return nil
}
